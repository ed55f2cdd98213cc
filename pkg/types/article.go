// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the jats-engine pipeline:
// source formats, conversion options, journal metadata context, diagnostics,
// conversion errors and results, media assets, manifests and bundles.
package types

import (
	"fmt"
	"strings"
)

// SourceFormat identifies the format of a manuscript handed to the engine.
type SourceFormat string

const (
	FormatDOCX SourceFormat = "docx"
	FormatJATS SourceFormat = "jats"
)

// ParseSourceFormat maps a user supplied format name to a SourceFormat.
// "xml" and "jats_xml" are accepted as aliases for FormatJATS.
func ParseSourceFormat(s string) (SourceFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "docx", "word":
		return FormatDOCX, nil
	case "jats", "xml", "jats_xml", "jats-xml":
		return FormatJATS, nil
	}
	return "", &ConversionError{
		Kind:  ErrUnsupportedFormat,
		Stage: StageInit,
		Err:   fmt.Errorf("unknown source format %q", s),
	}
}

// JournalContext carries the host's journal metadata used to fill the
// front-matter skeleton. Every field is optional.
type JournalContext struct {
	// Path is the journal's URL path, emitted as journal-id (type "ojs").
	Path string `json:"path,omitempty" yaml:"path,omitempty" mapstructure:"path"`

	// PrimaryLocale is the locale of the primary journal title (e.g. "en_US").
	PrimaryLocale string `json:"primary_locale,omitempty" yaml:"primary_locale,omitempty" mapstructure:"primary_locale"`

	// Names maps locale to journal title. The PrimaryLocale entry becomes
	// journal-title, the others trans-title-group entries.
	Names map[string]string `json:"names,omitempty" yaml:"names,omitempty" mapstructure:"names"`

	PrintISSN  string `json:"print_issn,omitempty" yaml:"print_issn,omitempty" mapstructure:"print_issn"`
	OnlineISSN string `json:"online_issn,omitempty" yaml:"online_issn,omitempty" mapstructure:"online_issn"`
	Publisher  string `json:"publisher,omitempty" yaml:"publisher,omitempty" mapstructure:"publisher"`

	// ArticleTitle and Abstract come from the host's publication record.
	// When set they take precedence over anything found in the source.
	ArticleTitle string `json:"article_title,omitempty" yaml:"article_title,omitempty" mapstructure:"article_title"`
	Abstract     string `json:"abstract,omitempty" yaml:"abstract,omitempty" mapstructure:"abstract"`
}

// PrimaryName returns the journal title in the primary locale.
func (c *JournalContext) PrimaryName() string {
	if c == nil {
		return ""
	}
	return c.Names[c.PrimaryLocale]
}

// MediaAsset is one embedded binary found in the source archive.
type MediaAsset struct {
	// ID is the figure id that references the asset, or fig-<position>
	// in archive order when no figure references it.
	ID string `json:"id" yaml:"id"`

	// Name is the base file name (e.g. "image1.png"), the key used by
	// graphic xlink:href values and by bundles.
	Name string `json:"name" yaml:"name"`

	// Type is the sniffed media type (e.g. "image/png").
	Type string `json:"type" yaml:"type"`

	// Path is the location inside the source archive (e.g. "word/media/image1.png").
	Path string `json:"path" yaml:"path"`

	// DocumentID is the owning document, always "manuscript" for now.
	DocumentID string `json:"document_id" yaml:"document_id"`

	Data []byte `json:"-" yaml:"-"`
}

// Size returns the asset size in bytes.
func (a MediaAsset) Size() int {
	return len(a.Data)
}
