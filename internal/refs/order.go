// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package refs

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/pdiddy/jats-engine/internal/jats"
)

var labelNumberRe = regexp.MustCompile(`\d+`)

// labelNumber returns the number shown by a ref's label, e.g. 3 for "[3]"
// or "3.".
func labelNumber(ref *etree.Element) (int, bool) {
	label := ref.SelectElement("label")
	if label == nil {
		return 0, false
	}
	text := strings.TrimSpace(jats.Text(label))
	digits := labelNumberRe.FindString(text)
	if digits == "" || strings.Trim(text, "[]().: \t") != digits {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	return n, err == nil
}

// numbering maps the numbers in-text markers use to ref ids. When every ref
// has a distinct numeric label the labels are used, otherwise refs are
// numbered by position.
func numbering(refs []*etree.Element) (map[int]string, bool) {
	byLabel := make(map[int]string, len(refs))
	labeled := len(refs) > 0
	for _, ref := range refs {
		n, ok := labelNumber(ref)
		if !ok {
			labeled = false
			break
		}
		if _, dup := byLabel[n]; dup {
			labeled = false
			break
		}
		byLabel[n] = ref.SelectAttrValue("id", "")
	}
	if labeled {
		return byLabel, true
	}

	byPosition := make(map[int]string, len(refs))
	for i, ref := range refs {
		byPosition[i+1] = ref.SelectAttrValue("id", "")
	}
	return byPosition, false
}

// firstAppearance ranks ref ids by their first citation in the body,
// counting existing xrefs and resolvable bracket groups alike.
func (p *processor) firstAppearance() map[string]int {
	rank := make(map[string]int)
	see := func(id string) {
		if _, ok := rank[id]; !ok && p.ids[id] {
			rank[id] = len(rank)
		}
	}
	for _, body := range p.article.Root().SelectElements("body") {
		visitCitations(body,
			func(x *etree.Element) {
				for _, rid := range rids(x) {
					see(rid)
				}
			},
			func(cd *etree.CharData) {
				for _, g := range findGroups(cd.Data) {
					ids, _ := p.resolve(g)
					for _, id := range ids {
						see(id)
					}
				}
			})
	}
	return rank
}

// reorder sorts each ref-list by first citation. Uncited refs follow the
// cited ones in their original order. Numeric labels are renumbered to the
// new sequence.
func (p *processor) reorder() {
	rank := p.firstAppearance()
	lists := p.article.RefLists()

	_, labeled := numbering(p.article.References())

	for _, list := range lists {
		refs := list.SelectElements("ref")
		sorted := append([]*etree.Element(nil), refs...)
		sort.SliceStable(sorted, func(i, j int) bool {
			ri, ci := rank[sorted[i].SelectAttrValue("id", "")]
			rj, cj := rank[sorted[j].SelectAttrValue("id", "")]
			switch {
			case ci && cj:
				return ri < rj
			case ci != cj:
				return ci
			}
			return false
		})

		moved := false
		for i := range refs {
			if refs[i] != sorted[i] {
				moved = true
				p.report.Moved++
				p.verbose("moved reference %s to position %d", sorted[i].SelectAttrValue("id", ""), i+1)
			}
		}
		if moved {
			placeInSlots(list, refs, sorted)
		}
	}

	if labeled {
		p.relabel(lists)
	}
}

// placeInSlots puts sorted into the child positions refs occupied.
func placeInSlots(list *etree.Element, refs, sorted []*etree.Element) {
	slots := make([]int, len(refs))
	for i, r := range refs {
		slots[i] = r.Index()
	}
	for i := len(refs) - 1; i >= 0; i-- {
		list.RemoveChildAt(slots[i])
	}
	for i, r := range sorted {
		list.InsertChildAt(slots[i], r)
	}
}

// relabel renumbers numeric labels 1..n across all lists, keeping any
// decoration such as brackets or a trailing period.
func (p *processor) relabel(lists []*etree.Element) {
	n := 0
	for _, list := range lists {
		for _, ref := range list.SelectElements("ref") {
			n++
			label := ref.SelectElement("label")
			old := jats.Text(label)
			digits := labelNumberRe.FindString(old)
			want := strconv.Itoa(n)
			if digits == want {
				continue
			}
			setText(label, strings.Replace(old, digits, want, 1))
			p.report.Relabeled++
			p.verbose("relabeled reference %s from %q to %q", ref.SelectAttrValue("id", ""), strings.TrimSpace(old), want)
		}
	}
}
