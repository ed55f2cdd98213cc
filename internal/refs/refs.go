// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package refs normalizes the reference list of a JATS article and the
// in-text citations that point at it. Steps run in a fixed order: defaults,
// split, reorder, renumber, bracket linking, check. Each step is switched
// by a ConversionOptions flag except defaults, which always run.
package refs

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/pdiddy/jats-engine/internal/jats"
	"github.com/pdiddy/jats-engine/pkg/types"
)

// DefaultPublicationType is set on citations that do not declare one.
const DefaultPublicationType = "journal"

// citationTags are the JATS elements that hold one bibliographic citation.
var citationTags = map[string]bool{
	"mixed-citation":   true,
	"element-citation": true,
	"citation":         true,
	"nlm-citation":     true,
}

// Report counts what Normalize changed. Diagnostics hold the summary and,
// with verbose logging, one line per decision.
type Report struct {
	Defaulted  int // publication-type set to the default
	Wrapped    int // bare refs given a mixed-citation
	Identified int // refs given a synthesized id
	Split      int // entries created by splitting
	Moved      int // refs whose position changed
	Relabeled  int // labels renumbered
	Renumbered int // in-text markers renumbered in place
	Linked     int // bracket citations turned into xrefs
	Expanded   int // xrefs produced by range expansion

	Unresolved  []string
	Diagnostics []types.Diagnostic
}

// Changes is the number of edits made to the tree.
func (r *Report) Changes() int {
	return r.Defaulted + r.Wrapped + r.Identified + r.Split + r.Moved +
		r.Relabeled + r.Renumbered + r.Linked
}

// Summary is the one-line count of changes.
func (r *Report) Summary() string {
	if r.Changes() == 0 {
		return "references: 0 changes"
	}
	return fmt.Sprintf("references: %d change(s): %d publication-type default(s), %d wrapped, %d id(s) assigned, "+
		"%d split, %d moved, %d relabeled, %d renumbered, %d linked (%d from ranges)",
		r.Changes(), r.Defaulted, r.Wrapped, r.Identified, r.Split, r.Moved,
		r.Relabeled, r.Renumbered, r.Linked, r.Expanded)
}

type processor struct {
	article *jats.Article
	opts    types.ConversionOptions
	report  *Report

	ids     map[string]bool
	labeled bool           // every source ref had a distinct numeric label
	source  map[int]string // number as written in the source -> ref id
	display map[string]int // ref id -> number shown after normalization
}

// Normalize runs the reference pipeline over article in place. It fails
// only when referenceCheck is on, the unresolved policy is "fail" and some
// citation does not resolve; the report is returned either way.
func Normalize(article *jats.Article, opts types.ConversionOptions) (*Report, error) {
	p := &processor{
		article: article,
		opts:    opts,
		report:  &Report{},
		ids:     map[string]bool{},
	}

	p.applyDefaults()
	p.source, p.labeled = numbering(article.References())

	if opts.SplitReferences {
		p.split()
		if p.labeled && p.report.Split > 0 {
			p.relabel(article.RefLists())
		}
	}
	if opts.ReorderReferences {
		p.reorder()
	}

	refs := article.References()
	byNumber, _ := numbering(refs)
	p.display = make(map[string]int, len(byNumber))
	for n, id := range byNumber {
		p.display[id] = n
	}

	p.renumberXrefs()
	if opts.ProcessBrackets {
		p.linkBrackets()
	} else {
		p.renumberText()
	}
	if opts.ReferenceCheck {
		p.check()
	}

	return p.finish()
}

func (p *processor) verbose(format string, args ...any) {
	if p.opts.VerboseLogging {
		p.report.Diagnostics = append(p.report.Diagnostics,
			types.Info(types.StageNormalizing, fmt.Sprintf(format, args...)))
	}
}

func (p *processor) unresolved(marker string) {
	p.report.Unresolved = append(p.report.Unresolved, marker)
}

func (p *processor) finish() (*Report, error) {
	r := p.report
	r.Diagnostics = append(r.Diagnostics, types.Info(types.StageNormalizing, r.Summary()))

	fail := p.opts.ReferenceCheck && p.opts.FailOnUnresolved() && len(r.Unresolved) > 0
	for _, u := range r.Unresolved {
		msg := "unresolved citation " + u
		if fail {
			r.Diagnostics = append(r.Diagnostics, types.Error(types.StageNormalizing, msg))
		} else {
			r.Diagnostics = append(r.Diagnostics, types.Warning(types.StageNormalizing, msg))
		}
	}
	if fail {
		return r, types.NewError(types.ErrUnresolvedCitation, types.StageNormalizing,
			"%d unresolved citation(s): %s", len(r.Unresolved), strings.Join(r.Unresolved, ", "))
	}
	return r, nil
}

// applyDefaults gives every ref an id and a citation element carrying a
// publication-type.
func (p *processor) applyDefaults() {
	refs := p.article.References()
	for _, ref := range refs {
		if id := ref.SelectAttrValue("id", ""); id != "" {
			p.ids[id] = true
		}
	}

	for i, ref := range refs {
		if ref.SelectAttrValue("id", "") == "" {
			id := p.uniqueID(fmt.Sprintf("ref-%d", i+1))
			ref.CreateAttr("id", id)
			p.report.Identified++
			p.verbose("assigned id %q to reference %d", id, i+1)
		}
		id := ref.SelectAttrValue("id", "")

		cites := citations(ref)
		if len(cites) == 0 && strings.TrimSpace(textWithoutLabel(ref)) != "" {
			cites = []*etree.Element{wrapCitation(ref)}
			p.report.Wrapped++
			p.verbose("wrapped bare reference %s in mixed-citation", id)
		}

		for _, c := range cites {
			if c.SelectAttrValue("publication-type", "") != "" {
				continue
			}
			value := DefaultPublicationType
			if legacy := c.SelectAttrValue("citation-type", ""); legacy != "" {
				value = legacy
			}
			c.CreateAttr("publication-type", value)
			p.report.Defaulted++
			p.verbose("set publication-type=%q on reference %s", value, id)
		}
	}
}

// uniqueID returns base, or base with a numeric suffix, that is not yet a
// ref id, and reserves it.
func (p *processor) uniqueID(base string) string {
	id := base
	for k := 2; p.ids[id]; k++ {
		id = fmt.Sprintf("%s-%d", base, k)
	}
	p.ids[id] = true
	return id
}

// citations returns the citation elements of ref, including those nested in
// citation-alternatives.
func citations(ref *etree.Element) []*etree.Element {
	var out []*etree.Element
	for _, c := range ref.ChildElements() {
		switch {
		case citationTags[c.Tag]:
			out = append(out, c)
		case c.Tag == "citation-alternatives":
			out = append(out, directCitations(c)...)
		}
	}
	return out
}

// directCitations returns the citation elements that are children of e.
// Alternatives of one citation are not separate entries, so splitting only
// looks at these.
func directCitations(e *etree.Element) []*etree.Element {
	var out []*etree.Element
	for _, c := range e.ChildElements() {
		if citationTags[c.Tag] {
			out = append(out, c)
		}
	}
	return out
}

func textWithoutLabel(ref *etree.Element) string {
	var b strings.Builder
	for _, t := range ref.Child {
		switch c := t.(type) {
		case *etree.CharData:
			b.WriteString(c.Data)
		case *etree.Element:
			if c.Tag != "label" {
				b.WriteString(jats.Text(c))
			}
		}
	}
	return b.String()
}

// wrapCitation moves everything but the label of ref into a new
// mixed-citation.
func wrapCitation(ref *etree.Element) *etree.Element {
	mc := etree.NewElement("mixed-citation")
	for _, t := range append([]etree.Token(nil), ref.Child...) {
		if e, ok := t.(*etree.Element); ok && e.Tag == "label" {
			continue
		}
		mc.AddChild(t)
	}
	ref.AddChild(mc)
	return mc
}

func setText(e *etree.Element, text string) {
	for len(e.Child) > 0 {
		e.RemoveChildAt(0)
	}
	if text != "" {
		e.CreateText(text)
	}
}
