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

var (
	// entryEnumeratorRe finds "[n] " enumerators inside a citation text.
	entryEnumeratorRe = regexp.MustCompile(`(?:^|\s)\[(\d{1,3})\]\s+`)

	// yearRe matches a publication year.
	yearRe = regexp.MustCompile(`\b(?:1[5-9]|20)\d{2}[a-z]?\b`)

	// semicolonRe splits "A. 2019; B. 2020" style bundles.
	semicolonRe = regexp.MustCompile(`;\s+`)
)

// minSegmentWords is the fewest words a semicolon-separated part must have
// to count as a citation of its own.
const minSegmentWords = 3

// segment is one citation carved out of a bundled entry.
type segment struct {
	label string
	text  string
}

// split separates entries that bundle several citations. A ref with more
// than one citation element is split per element; a text-only citation is
// split on inner [n] enumerators, line breaks or semicolons when every part
// carries a year. Derived refs are inserted after the original and get ids
// of the form <id>-<k>.
func (p *processor) split() {
	for _, list := range p.article.RefLists() {
		for _, ref := range list.SelectElements("ref") {
			p.splitRef(list, ref)
		}
	}
}

func (p *processor) splitRef(list, ref *etree.Element) {
	id := ref.SelectAttrValue("id", "")
	cites := directCitations(ref)

	// In a labeled list derived refs start with the parent's label and are
	// renumbered once splitting is done.
	var parentLabel string
	if l := ref.SelectElement("label"); p.labeled && l != nil {
		parentLabel = jats.Text(l)
	}

	var derived []*etree.Element
	switch {
	case len(cites) > 1:
		for _, c := range cites[1:] {
			ref.RemoveChild(c)
			derived = append(derived, p.derivedRef(id, len(derived)+2, parentLabel, c))
		}

	case len(cites) == 1 && textOnly(cites[0]):
		segments := splitCitationText(jats.Text(cites[0]))
		if len(segments) < 2 {
			return
		}
		first := segments[0]
		setText(cites[0], first.text)
		if first.label != "" && ref.SelectElement("label") == nil {
			ref.InsertChildAt(0, jats.NewTextElement("label", first.label))
		}
		for _, s := range segments[1:] {
			c := cites[0].Copy()
			setText(c, s.text)
			label := s.label
			if label == "" {
				label = parentLabel
			}
			derived = append(derived, p.derivedRef(id, len(derived)+2, label, c))
		}

	default:
		return
	}

	index := ref.Index()
	for i, d := range derived {
		list.InsertChildAt(index+1+i, d)
		p.registerDerived(d)
	}
	p.report.Split += len(derived)
	p.verbose("split reference %s into %d entries", id, len(derived)+1)
}

func (p *processor) derivedRef(parentID string, k int, label string, citation *etree.Element) *etree.Element {
	ref := etree.NewElement("ref")
	ref.CreateAttr("id", p.uniqueID(fmt.Sprintf("%s-%d", parentID, k)))
	if label != "" {
		ref.AddChild(jats.NewTextElement("label", label))
	}
	ref.AddChild(citation)
	return ref
}

// registerDerived makes a derived ref addressable by its own label number
// when that number is not already taken.
func (p *processor) registerDerived(ref *etree.Element) {
	n, ok := labelNumber(ref)
	if !ok {
		return
	}
	if _, taken := p.source[n]; !taken {
		p.source[n] = ref.SelectAttrValue("id", "")
	}
}

func textOnly(e *etree.Element) bool {
	return len(e.ChildElements()) == 0
}

// splitCitationText returns the citations bundled in text, or nil when the
// text holds a single citation or the split would be ambiguous.
func splitCitationText(text string) []segment {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if segs := splitOnEnumerators(text); len(segs) > 1 && allHaveYears(segs) {
		return segs
	}

	var lines []segment
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, segment{text: line})
		}
	}
	if len(lines) > 1 && allHaveYears(lines) {
		return lines
	}

	var parts []segment
	for _, part := range semicolonRe.Split(text, -1) {
		part = strings.TrimSpace(part)
		if len(strings.Fields(part)) < minSegmentWords {
			return nil
		}
		parts = append(parts, segment{text: part})
	}
	if len(parts) > 1 && allHaveYears(parts) {
		return parts
	}
	return nil
}

func splitOnEnumerators(text string) []segment {
	matches := entryEnumeratorRe.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}

	var segs []segment
	if head := strings.TrimSpace(text[:matches[0][0]]); head != "" {
		segs = append(segs, segment{text: head})
	}
	for i, m := range matches {
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		n, _ := strconv.Atoi(text[m[2]:m[3]])
		segs = append(segs, segment{
			label: strconv.Itoa(n),
			text:  strings.TrimSpace(text[m[1]:end]),
		})
	}
	return segs
}

func allHaveYears(segs []segment) bool {
	for _, s := range segs {
		if !yearRe.MatchString(s.text) {
			return false
		}
	}
	return true
}
