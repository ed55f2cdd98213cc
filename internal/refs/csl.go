package refs

import (
	"io"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/jats-engine/internal/jats"
)

// CSLItem represents a bibliographic entry in CSL (Citation Style Language)
// format. The field names and structure follow the CSL-JSON/CSL-YAML schema
// so that output is consumable by Pandoc and reference managers.
type CSLItem struct {
	ID             string    `yaml:"id"`
	Type           string    `yaml:"type"`
	Title          string    `yaml:"title,omitempty"`
	Author         []CSLName `yaml:"author,omitempty"`
	ContainerTitle string    `yaml:"container-title,omitempty"`
	Issued         *CSLDate  `yaml:"issued,omitempty"`
	Volume         string    `yaml:"volume,omitempty"`
	Page           string    `yaml:"page,omitempty"`
	DOI            string    `yaml:"DOI,omitempty"`
	Note           string    `yaml:"note,omitempty"`
}

// CSLName represents a person's name in CSL format.
type CSLName struct {
	Family  string `yaml:"family,omitempty"`
	Given   string `yaml:"given,omitempty"`
	Literal string `yaml:"literal,omitempty"`
}

// CSLDate represents a date in CSL format using date-parts.
type CSLDate struct {
	DateParts [][]int `yaml:"date-parts"`
}

// cslTypes maps JATS publication-type values to CSL item types.
var cslTypes = map[string]string{
	"journal":    "article-journal",
	"book":       "book",
	"chapter":    "chapter",
	"confproc":   "paper-conference",
	"conference": "paper-conference",
	"thesis":     "thesis",
	"report":     "report",
	"web":        "webpage",
	"webpage":    "webpage",
	"data":       "dataset",
	"software":   "software",
	"patent":     "patent",
}

// FormatCSL writes the article's reference list as a CSL-YAML list to w.
func FormatCSL(article *jats.Article, w io.Writer) error {
	entries := Entries(article)
	items := make([]CSLItem, len(entries))
	for i, e := range entries {
		items[i] = toCSLItem(e)
	}
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(items)
}

// toCSLItem converts a parsed reference to a CSLItem. The raw citation is
// kept as a note so nothing is lost when parsing was partial.
func toCSLItem(e Entry) CSLItem {
	item := CSLItem{
		ID:             e.ID,
		Type:           "article",
		Title:          e.Title,
		ContainerTitle: e.Source,
		Volume:         e.Volume,
		Page:           e.Pages,
		DOI:            e.DOI,
		Note:           e.Raw,
	}
	if t, ok := cslTypes[strings.ToLower(e.Type)]; ok {
		item.Type = t
	}

	for _, a := range e.Authors {
		item.Author = append(item.Author, CSLName{
			Family:  a.Surname,
			Given:   a.GivenNames,
			Literal: a.Literal,
		})
	}

	if year, err := strconv.Atoi(e.Year); err == nil && year > 0 {
		item.Issued = &CSLDate{DateParts: [][]int{{year}}}
	}
	return item
}
