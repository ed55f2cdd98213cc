// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert is the structural conversion entry point: it detects the
// source format and dispatches to a Converter that builds the JATS article
// tree. Two backends exist, near-JATS import and DOCX synthesis.
package convert

import (
	"archive/zip"
	"bytes"
	"fmt"

	"github.com/gabriel-vasile/mimetype"

	"github.com/pdiddy/jats-engine/internal/docx"
	"github.com/pdiddy/jats-engine/internal/jats"
	"github.com/pdiddy/jats-engine/pkg/types"
)

const docxMIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Converter turns source bytes into a JATS article. Different source
// formats (DOCX, near-JATS XML) implement this interface.
type Converter interface {
	// Format returns the source format the converter reads.
	Format() types.SourceFormat

	// Convert parses data and returns the article together with the
	// diagnostics collected while parsing. Errors are ConversionErrors.
	Convert(data []byte, ctx *types.JournalContext, opts types.ConversionOptions) (*jats.Article, []types.Diagnostic, error)
}

// JATSConverter imports near-JATS XML.
type JATSConverter struct{}

func (JATSConverter) Format() types.SourceFormat { return types.FormatJATS }

func (JATSConverter) Convert(data []byte, ctx *types.JournalContext, opts types.ConversionOptions) (*jats.Article, []types.Diagnostic, error) {
	return jats.FromJATS(data, ctx, jats.ImportOptions{PreserveArticleType: opts.PreserveArticleType})
}

// DOCXConverter synthesizes an article from a Word package.
type DOCXConverter struct{}

func (DOCXConverter) Format() types.SourceFormat { return types.FormatDOCX }

func (DOCXConverter) Convert(data []byte, ctx *types.JournalContext, _ types.ConversionOptions) (*jats.Article, []types.Diagnostic, error) {
	return docx.Convert(data, ctx)
}

// For returns the converter for format.
func For(format types.SourceFormat) (Converter, error) {
	switch format {
	case types.FormatJATS:
		return JATSConverter{}, nil
	case types.FormatDOCX:
		return DOCXConverter{}, nil
	}
	return nil, types.NewError(types.ErrUnsupportedFormat, types.StageParsing, "no converter for format %q", format)
}

// ToArticle converts data in the given format. An empty format is
// detected from the content.
func ToArticle(data []byte, format types.SourceFormat, ctx *types.JournalContext, opts types.ConversionOptions) (*jats.Article, []types.Diagnostic, error) {
	if format == "" {
		detected, err := DetectFormat(data)
		if err != nil {
			return nil, nil, err
		}
		format = detected
	}
	c, err := For(format)
	if err != nil {
		return nil, nil, err
	}
	return c.Convert(data, ctx, opts)
}

// DetectFormat sniffs the source format: a Word package (by MIME type or a
// zip holding word/document.xml) is DOCX, anything XML-like is JATS.
// Other content is ErrUnsupportedFormat.
func DetectFormat(data []byte) (types.SourceFormat, error) {
	m := mimetype.Detect(data)
	switch {
	case m.Is(docxMIME):
		return types.FormatDOCX, nil
	case m.Is("application/zip") && hasDocumentPart(data):
		return types.FormatDOCX, nil
	case isXML(m) || looksLikeMarkup(data):
		return types.FormatJATS, nil
	}
	return "", types.NewError(types.ErrUnsupportedFormat, types.StageParsing,
		"cannot convert %s content", m.String())
}

func isXML(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is("text/xml") || m.Is("application/xml") {
			return true
		}
	}
	return false
}

// looksLikeMarkup accepts text whose first non-space byte opens a tag, so
// fragments the sniffer does not recognize as XML still reach the parser.
func looksLikeMarkup(data []byte) bool {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	data = bytes.TrimLeft(data, " \t\r\n")
	return len(data) > 1 && data[0] == '<'
}

func hasDocumentPart(data []byte) bool {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return false
	}
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			return true
		}
	}
	return false
}

// Describe returns a one-line description of a detected or requested
// format for logs.
func Describe(format types.SourceFormat) string {
	switch format {
	case types.FormatDOCX:
		return "DOCX"
	case types.FormatJATS:
		return "JATS XML"
	}
	return fmt.Sprintf("unknown (%s)", format)
}
