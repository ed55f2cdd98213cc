// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package refs

import (
	"regexp"
	"strings"

	"github.com/beevik/etree"

	"github.com/pdiddy/jats-engine/internal/jats"
)

// Entry is the bibliographic data recovered from one reference.
type Entry struct {
	ID      string
	Label   string
	Type    string // publication-type
	Authors []Author
	Title   string
	Source  string
	Year    string
	Volume  string
	Pages   string
	DOI     string
	Raw     string
}

// Author is one person in an author list.
type Author struct {
	Surname    string
	GivenNames string
	Literal    string
}

var (
	// authorBlockRe matches an author block like "Smith, A. and Jones, B."
	// or "Brown T, Lee K, et al." at the start of an unstructured citation.
	authorBlockRe = regexp.MustCompile(
		`^((?:\p{Lu}[\p{L}'’-]+(?:,?\s+(?:\p{Lu}\.?\s?)+)?(?:,\s+|;\s+|,?\s+(?:and|&)\s+)?)+(?:\s*et\s+al\.)?)\s*[.]?\s+(.+)$`,
	)

	doiRe     = regexp.MustCompile(`\b10\.\d{4,9}/[^\s"<>]+`)
	initialRe = regexp.MustCompile(`\b(\p{Lu})\.`)
)

// Entries returns the parsed entries of every reference in article order.
func Entries(article *jats.Article) []Entry {
	var entries []Entry
	for _, ref := range article.References() {
		entries = append(entries, parseRef(ref))
	}
	return entries
}

func parseRef(ref *etree.Element) Entry {
	e := Entry{ID: ref.SelectAttrValue("id", "")}
	if label := ref.SelectElement("label"); label != nil {
		e.Label = strings.TrimSpace(jats.Text(label))
	}

	cites := citations(ref)
	if len(cites) == 0 {
		e.Raw = strings.TrimSpace(textWithoutLabel(ref))
		fillFromText(&e, e.Raw)
		return e
	}
	c := cites[0]
	e.Type = c.SelectAttrValue("publication-type", "")
	e.Raw = collapseSpace(jats.Text(c))

	if group := c.FindElements(".//name"); len(group) > 0 {
		for _, n := range group {
			e.Authors = append(e.Authors, Author{
				Surname:    childText(n, "surname"),
				GivenNames: childText(n, "given-names"),
			})
		}
	}
	for _, tag := range []string{"article-title", "chapter-title", "data-title", "part-title"} {
		if e.Title = childText(c, tag); e.Title != "" {
			break
		}
	}
	e.Source = childText(c, "source")
	e.Year = childText(c, "year")
	e.Volume = childText(c, "volume")
	if fpage := childText(c, "fpage"); fpage != "" {
		e.Pages = fpage
		if lpage := childText(c, "lpage"); lpage != "" {
			e.Pages += "-" + lpage
		}
	}
	for _, id := range c.FindElements(".//pub-id") {
		if strings.EqualFold(id.SelectAttrValue("pub-id-type", ""), "doi") {
			e.DOI = strings.TrimSpace(jats.Text(id))
		}
	}

	if e.Title == "" || len(e.Authors) == 0 || e.Year == "" {
		fillFromText(&e, e.Raw)
	}
	return e
}

// fillFromText recovers missing fields from an unstructured citation:
// author block, then title and venue split at sentence boundaries.
func fillFromText(e *Entry, raw string) {
	if e.Year == "" {
		e.Year = strings.TrimRight(yearRe.FindString(raw), "abcdefghijklmnopqrstuvwxyz")
	}
	if e.DOI == "" {
		e.DOI = strings.TrimRight(doiRe.FindString(raw), ".,;")
	}

	remainder := raw
	if m := authorBlockRe.FindStringSubmatch(raw); m != nil {
		if len(e.Authors) == 0 {
			e.Authors = parseAuthors(strings.TrimRight(m[1], ". "))
		}
		remainder = m[2]
	}

	parts := splitOnPeriods(remainder)
	if e.Title == "" && len(parts) >= 1 {
		e.Title = strings.TrimSpace(parts[0])
	}
	if e.Source == "" && len(parts) >= 2 {
		e.Source = cleanVenue(parts[1])
	}
}

// splitOnPeriods splits a citation into sentences without breaking on
// "et al.", "e.g.", "i.e." or single-letter initials.
func splitOnPeriods(text string) []string {
	safe := strings.ReplaceAll(text, "et al.", "et al\x00")
	safe = strings.ReplaceAll(safe, "e.g.", "e\x00g\x00")
	safe = strings.ReplaceAll(safe, "i.e.", "i\x00e\x00")
	safe = initialRe.ReplaceAllString(safe, "${1}\x00")

	var result []string
	for _, p := range strings.Split(safe, ". ") {
		p = strings.ReplaceAll(p, "\x00", ".")
		p = strings.TrimSpace(strings.TrimRight(p, "."))
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// parseAuthors splits "Smith, A., Jones, B. and Lee, C." style blocks into
// names. Each name is "Surname, Initials" or "Surname Initials".
func parseAuthors(block string) []Author {
	block = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(block), "et al."))
	if block == "" {
		return nil
	}
	block = strings.NewReplacer(" and ", "; ", " & ", "; ").Replace(block)

	var names []string
	if strings.Contains(block, ";") {
		names = strings.Split(block, ";")
	} else {
		// "Smith, A., Jones, B." pairs surname and initials around commas.
		fields := strings.Split(block, ",")
		for i := 0; i < len(fields); i++ {
			name := strings.TrimSpace(fields[i])
			if i+1 < len(fields) && isInitials(fields[i+1]) {
				name += ", " + strings.TrimSpace(fields[i+1])
				i++
			}
			names = append(names, name)
		}
	}

	var authors []Author
	for _, n := range names {
		if a := parseAuthorName(n); a != (Author{}) {
			authors = append(authors, a)
		}
	}
	return authors
}

func isInitials(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 8 {
		return false
	}
	for _, r := range s {
		if r != '.' && r != ' ' && r != '-' && !('A' <= r && r <= 'Z') {
			return false
		}
	}
	return true
}

// parseAuthorName reads "Smith, A. B." or "Smith AB" as surname and given
// names. Single tokens become literal names.
func parseAuthorName(name string) Author {
	name = strings.TrimSpace(strings.TrimRight(name, ". "))
	if name == "" {
		return Author{}
	}
	if i := strings.Index(name, ","); i >= 0 {
		return Author{Surname: strings.TrimSpace(name[:i]), GivenNames: strings.TrimSpace(name[i+1:])}
	}
	fields := strings.Fields(name)
	if len(fields) == 1 {
		return Author{Literal: name}
	}
	last := fields[len(fields)-1]
	if isInitials(last) {
		return Author{Surname: strings.Join(fields[:len(fields)-1], " "), GivenNames: last}
	}
	return Author{Surname: last, GivenNames: strings.Join(fields[:len(fields)-1], " ")}
}

// cleanVenue drops the year and trailing punctuation from a venue segment.
func cleanVenue(text string) string {
	text = yearRe.ReplaceAllString(strings.TrimSpace(text), "")
	return strings.TrimSpace(strings.TrimRight(text, "., ()"))
}

func childText(e *etree.Element, tag string) string {
	c := e.FindElement(".//" + tag)
	if c == nil {
		return ""
	}
	return collapseSpace(jats.Text(c))
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
