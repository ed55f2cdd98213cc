// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package refs

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/pdiddy/jats-engine/internal/jats"
)

// maxRange bounds how many markers one range such as [3-9] may expand to.
const maxRange = 50

var (
	// bracketRe matches one bracketed group without nested brackets.
	bracketRe = regexp.MustCompile(`\[([^\[\]\n]{1,200})\]`)

	// numericGroupRe matches groups like 12 / 1,3 / 12,14-16 / 3–5; 7.
	numericGroupRe = regexp.MustCompile(`^\s*\d{1,3}(?:\s*[-–—]\s*\d{1,3})?(?:\s*[,;]\s*\d{1,3}(?:\s*[-–—]\s*\d{1,3})?)*\s*$`)
	numericItemRe  = regexp.MustCompile(`(\d{1,3})(?:\s*[-–—]\s*(\d{1,3}))?`)

	// authorYearRe matches one author-year item like "Smith et al., 2020",
	// "Smith and Jones 2019" or "Smith, 2020a".
	authorYearRe = regexp.MustCompile(`^\s*(\p{Lu}[\p{L}'’-]+)(?:\s+et\s+al\.?|\s+(?:and|&)\s+\p{Lu}[\p{L}'’-]+)?,?\s+((?:1[5-9]|20)\d{2}[a-z]?)\s*$`)
)

// skipTags hold text that never contains citation markers.
var skipTags = map[string]bool{
	"xref":           true,
	"ext-link":       true,
	"uri":            true,
	"email":          true,
	"inline-formula": true,
	"disp-formula":   true,
	"tex-math":       true,
	"math":           true,
	"code":           true,
	"preformat":      true,
	"object-id":      true,
	"ref-list":       true,
}

type groupKind int

const (
	numericGroup groupKind = iota
	authorYearGroup
)

// citeItem is one marker inside a bracketed group.
type citeItem struct {
	number    int
	author    string
	year      string
	text      string
	fromRange bool
}

// group is a bracketed citation group found in text, e.g. "[1,3-4]".
type group struct {
	start, end int
	kind       groupKind
	items      []citeItem
}

// findGroups returns the citation groups in text; bracketed text that is
// neither numeric nor author-year (e.g. "[sic]") is ignored.
func findGroups(text string) []group {
	var groups []group
	for _, m := range bracketRe.FindAllStringSubmatchIndex(text, -1) {
		g, ok := parseGroup(text[m[2]:m[3]])
		if !ok {
			continue
		}
		g.start, g.end = m[0], m[1]
		groups = append(groups, g)
	}
	return groups
}

func parseGroup(inner string) (group, bool) {
	if numericGroupRe.MatchString(inner) {
		g := group{kind: numericGroup}
		for _, m := range numericItemRe.FindAllStringSubmatch(inner, -1) {
			from, _ := strconv.Atoi(m[1])
			if m[2] == "" {
				g.items = append(g.items, citeItem{number: from})
				continue
			}
			to, _ := strconv.Atoi(m[2])
			if to < from || to-from >= maxRange {
				return group{}, false
			}
			for n := from; n <= to; n++ {
				g.items = append(g.items, citeItem{number: n, fromRange: true})
			}
		}
		return g, len(g.items) > 0
	}

	g := group{kind: authorYearGroup}
	for _, part := range strings.Split(inner, ";") {
		m := authorYearRe.FindStringSubmatch(part)
		if m == nil {
			return group{}, false
		}
		g.items = append(g.items, citeItem{author: m[1], year: m[2], text: strings.TrimSpace(part)})
	}
	return g, true
}

// compressNumbers renders numbers in order, collapsing ascending runs of
// three or more into a range.
func compressNumbers(nums []int) string {
	var parts []string
	for i := 0; i < len(nums); {
		j := i
		for j+1 < len(nums) && nums[j+1] == nums[j]+1 {
			j++
		}
		if j-i >= 2 {
			parts = append(parts, fmt.Sprintf("%d-%d", nums[i], nums[j]))
		} else {
			for k := i; k <= j; k++ {
				parts = append(parts, strconv.Itoa(nums[k]))
			}
		}
		i = j + 1
	}
	return strings.Join(parts, ", ")
}

// resolve maps each item of g to a ref id using the source numbering and
// the reference texts. Items that cannot be resolved are returned as
// marker strings.
func (p *processor) resolve(g group) (ids []string, missing []string) {
	for _, it := range g.items {
		var id string
		if g.kind == numericGroup {
			id = p.source[it.number]
		} else {
			id = p.lookupAuthorYear(it.author, it.year)
		}
		if id == "" || !p.ids[id] {
			if g.kind == numericGroup {
				missing = append(missing, fmt.Sprintf("[%d]", it.number))
			} else {
				missing = append(missing, "["+it.text+"]")
			}
			continue
		}
		ids = append(ids, id)
	}
	return ids, missing
}

// lookupAuthorYear finds the first ref whose text names both the author
// and the year.
func (p *processor) lookupAuthorYear(author, year string) string {
	for _, ref := range p.article.References() {
		text := textWithoutLabel(ref)
		if strings.Contains(text, author) && strings.Contains(text, year) {
			return ref.SelectAttrValue("id", "")
		}
	}
	return ""
}

// visitCitations walks e in document order, calling onXref for bibliography
// xrefs and onText for text that may hold bracketed markers.
func visitCitations(e *etree.Element, onXref func(*etree.Element), onText func(*etree.CharData)) {
	for _, t := range e.Child {
		switch c := t.(type) {
		case *etree.CharData:
			if onText != nil {
				onText(c)
			}
		case *etree.Element:
			if isBibXref(c) {
				if onXref != nil {
					onXref(c)
				}
				continue
			}
			if skipTags[c.Tag] || c.Space == "mml" {
				continue
			}
			visitCitations(c, onXref, onText)
		}
	}
}

func isBibXref(e *etree.Element) bool {
	return e.Tag == "xref" && e.SelectAttrValue("ref-type", "") == "bibr"
}

func rids(xref *etree.Element) []string {
	return strings.Fields(xref.SelectAttrValue("rid", ""))
}

// bodyTextNodes snapshots the marker-bearing text of every body.
func (p *processor) bodyTextNodes() []*etree.CharData {
	var nodes []*etree.CharData
	for _, body := range p.article.Root().SelectElements("body") {
		visitCitations(body, nil, func(cd *etree.CharData) { nodes = append(nodes, cd) })
	}
	return nodes
}

func (p *processor) bodyXrefs() []*etree.Element {
	var xrefs []*etree.Element
	for _, body := range p.article.Root().SelectElements("body") {
		visitCitations(body, func(x *etree.Element) { xrefs = append(xrefs, x) }, nil)
	}
	return xrefs
}

// linkBrackets turns resolvable bracket groups in body text into xref
// markers, one per cited reference, with ranges expanded.
func (p *processor) linkBrackets() {
	for _, cd := range p.bodyTextNodes() {
		groups := findGroups(cd.Data)
		if len(groups) == 0 {
			continue
		}

		var tokens []etree.Token
		pending := ""
		last := 0
		changed := false
		for _, g := range groups {
			ids, missing := p.resolve(g)
			if len(missing) > 0 {
				for _, m := range missing {
					p.unresolved(m)
				}
				p.verbose("left %s unlinked: %s unresolved", cd.Data[g.start:g.end], strings.Join(missing, ", "))
				continue
			}

			pending += cd.Data[last:g.start] + "["
			for i, id := range ids {
				if i > 0 {
					if g.kind == authorYearGroup {
						pending += "; "
					} else {
						pending += ", "
					}
				}
				tokens = append(tokens, etree.NewText(pending))
				pending = ""
				tokens = append(tokens, p.newXref(id, g, g.items[i]))
				if g.items[i].fromRange {
					p.report.Expanded++
				}
			}
			pending = "]"
			last = g.end
			changed = true
			p.report.Linked += len(ids)
			p.verbose("linked %s to %s", cd.Data[g.start:g.end], strings.Join(ids, ", "))
		}
		if !changed {
			continue
		}
		pending += cd.Data[last:]
		if pending != "" {
			tokens = append(tokens, etree.NewText(pending))
		}
		replaceToken(cd, tokens)
	}
}

func (p *processor) newXref(id string, g group, it citeItem) *etree.Element {
	x := etree.NewElement("xref")
	x.CreateAttr("ref-type", "bibr")
	x.CreateAttr("rid", id)
	if g.kind == authorYearGroup {
		x.SetText(it.text)
	} else if n, ok := p.display[id]; ok {
		x.SetText(strconv.Itoa(n))
	} else {
		x.SetText(strconv.Itoa(it.number))
	}
	return x
}

// replaceToken swaps cd for tokens at the same position in its parent.
func replaceToken(cd *etree.CharData, tokens []etree.Token) {
	parent := cd.Parent()
	index := cd.Index()
	parent.RemoveChildAt(index)
	for _, t := range tokens {
		if text, ok := t.(*etree.CharData); ok && text.Data == "" {
			continue
		}
		parent.InsertChildAt(index, t)
		index++
	}
}

// renumberText rewrites numeric bracket groups left as text so that they
// show the numbers references carry after splitting and reordering.
func (p *processor) renumberText() {
	for _, cd := range p.bodyTextNodes() {
		groups := findGroups(cd.Data)
		if len(groups) == 0 {
			continue
		}
		var b strings.Builder
		last := 0
		for _, g := range groups {
			if g.kind != numericGroup {
				continue
			}
			ids, missing := p.resolve(g)
			if len(missing) > 0 {
				continue
			}
			nums := make([]int, len(ids))
			same := true
			for i, id := range ids {
				n, ok := p.display[id]
				if !ok {
					n = g.items[i].number
				}
				nums[i] = n
				if n != g.items[i].number {
					same = false
				}
			}
			if same {
				continue
			}
			renumbered := "[" + compressNumbers(nums) + "]"
			b.WriteString(cd.Data[last:g.start])
			b.WriteString(renumbered)
			last = g.end
			p.report.Renumbered++
			p.verbose("renumbered %s to %s", cd.Data[g.start:g.end], renumbered)
		}
		if last == 0 {
			continue
		}
		b.WriteString(cd.Data[last:])
		cd.Data = b.String()
	}
}

// renumberXrefs updates the visible number of existing bibliography xrefs
// whose text is the source number of their target.
func (p *processor) renumberXrefs() {
	for _, x := range p.bodyXrefs() {
		targets := rids(x)
		if len(targets) != 1 {
			continue
		}
		text := strings.TrimSpace(jats.Text(x))
		n, err := strconv.Atoi(text)
		if err != nil || p.source[n] != targets[0] {
			continue
		}
		shown, ok := p.display[targets[0]]
		if !ok || shown == n {
			continue
		}
		setText(x, strconv.Itoa(shown))
		p.report.Renumbered++
		p.verbose("renumbered xref to %s from %d to %d", targets[0], n, shown)
	}
}

// check verifies that every bibliography xref targets an existing ref and,
// when brackets are left as text, that every bracket group resolves.
func (p *processor) check() {
	for _, x := range p.bodyXrefs() {
		for _, rid := range rids(x) {
			if !p.ids[rid] {
				p.unresolved(fmt.Sprintf("xref rid=%q", rid))
			}
		}
	}
	if p.opts.ProcessBrackets {
		return
	}
	for _, cd := range p.bodyTextNodes() {
		for _, g := range findGroups(cd.Data) {
			_, missing := p.resolve(g)
			for _, m := range missing {
				p.unresolved(m)
			}
		}
	}
}
