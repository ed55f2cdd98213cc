// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package docx reads Word (OOXML) packages and synthesizes JATS articles
// from their document stream. Only structure that JATS can represent
// survives: paragraphs, headings as sections, lists, tables, figures,
// hyperlinks, bold/italic/underline/super/subscript and reference lists.
package docx

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/beevik/etree"

	"github.com/pdiddy/jats-engine/pkg/types"
)

const (
	documentPart  = "word/document.xml"
	relsPart      = "word/_rels/document.xml.rels"
	stylesPart    = "word/styles.xml"
	numberingPart = "word/numbering.xml"
	corePart      = "docProps/core.xml"

	// maxPartSize caps how much of a single package part is read.
	maxPartSize = 20 << 20
)

// relationship is one entry of document.xml.rels.
type relationship struct {
	Target   string
	External bool
}

// Package is an opened DOCX package.
type Package struct {
	document  *etree.Document
	rels      map[string]relationship
	styles    map[string]string // styleId -> normalized style name
	numFormat map[string]string // numId -> numFmt of level 0
	coreTitle string
}

// Open unpacks a DOCX package. Inputs that are not ZIP archives or lack a
// readable word/document.xml fail with ErrMalformedSource.
func Open(data []byte) (*Package, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, types.NewError(types.ErrMalformedSource, types.StageParsing, "opening DOCX archive: %w", err)
	}

	parts := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		parts[f.Name] = f
	}

	docFile, ok := parts[documentPart]
	if !ok {
		return nil, types.NewError(types.ErrMalformedSource, types.StageParsing, "DOCX archive has no %s", documentPart)
	}
	document, err := readXMLPart(docFile)
	if err != nil {
		return nil, types.NewError(types.ErrMalformedSource, types.StageParsing, "reading %s: %w", documentPart, err)
	}

	pkg := &Package{
		document:  document,
		rels:      map[string]relationship{},
		styles:    map[string]string{},
		numFormat: map[string]string{},
	}

	// The remaining parts are optional; a broken one only loses information.
	if f, ok := parts[relsPart]; ok {
		if doc, err := readXMLPart(f); err == nil {
			pkg.rels = parseRelationships(doc)
		}
	}
	if f, ok := parts[stylesPart]; ok {
		if doc, err := readXMLPart(f); err == nil {
			pkg.styles = parseStyles(doc)
		}
	}
	if f, ok := parts[numberingPart]; ok {
		if doc, err := readXMLPart(f); err == nil {
			pkg.numFormat = parseNumbering(doc)
		}
	}
	if f, ok := parts[corePart]; ok {
		if doc, err := readXMLPart(f); err == nil && doc.Root() != nil {
			if t := doc.Root().SelectElement("title"); t != nil {
				pkg.coreTitle = strings.TrimSpace(t.Text())
			}
		}
	}

	return pkg, nil
}

func readXMLPart(f *zip.File) (*etree.Document, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	if f.UncompressedSize64 > maxPartSize {
		return nil, fmt.Errorf("%s is %d bytes, limit %d", f.Name, f.UncompressedSize64, maxPartSize)
	}
	data, err := io.ReadAll(io.LimitReader(rc, maxPartSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxPartSize {
		return nil, fmt.Errorf("%s is more than %d bytes", f.Name, maxPartSize)
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, err
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("%s has no root element", f.Name)
	}
	return doc, nil
}

func parseRelationships(doc *etree.Document) map[string]relationship {
	rels := make(map[string]relationship)
	for _, r := range doc.Root().SelectElements("Relationship") {
		id := r.SelectAttrValue("Id", "")
		if id == "" {
			continue
		}
		rels[id] = relationship{
			Target:   r.SelectAttrValue("Target", ""),
			External: strings.EqualFold(r.SelectAttrValue("TargetMode", ""), "External"),
		}
	}
	return rels
}

func parseStyles(doc *etree.Document) map[string]string {
	styles := make(map[string]string)
	for _, s := range doc.Root().SelectElements("style") {
		id := s.SelectAttrValue("styleId", "")
		if id == "" {
			continue
		}
		name := id
		if n := s.SelectElement("name"); n != nil {
			name = n.SelectAttrValue("val", id)
		}
		styles[id] = normalizeStyle(name)
	}
	return styles
}

func parseNumbering(doc *etree.Document) map[string]string {
	abstractFmt := make(map[string]string)
	for _, an := range doc.Root().SelectElements("abstractNum") {
		for _, lvl := range an.SelectElements("lvl") {
			if lvl.SelectAttrValue("ilvl", "0") != "0" {
				continue
			}
			if f := lvl.SelectElement("numFmt"); f != nil {
				abstractFmt[an.SelectAttrValue("abstractNumId", "")] = f.SelectAttrValue("val", "")
			}
		}
	}

	formats := make(map[string]string)
	for _, num := range doc.Root().SelectElements("num") {
		if ref := num.SelectElement("abstractNumId"); ref != nil {
			formats[num.SelectAttrValue("numId", "")] = abstractFmt[ref.SelectAttrValue("val", "")]
		}
	}
	return formats
}

// normalizeStyle lowercases a style name and removes spaces, so that
// "heading 1", "Heading1" and "HEADING 1" compare equal.
func normalizeStyle(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, " ", ""))
}

// styleName resolves a paragraph's style id to its normalized name.
func (p *Package) styleName(id string) string {
	if id == "" {
		return ""
	}
	if name, ok := p.styles[id]; ok {
		return name
	}
	return normalizeStyle(id)
}

// mediaRef resolves an image relationship id to the graphic reference used
// in the article: the base name of an embedded part, or the URL of an
// external image.
func (p *Package) mediaRef(relID string) (string, bool) {
	rel, ok := p.rels[relID]
	if !ok || rel.Target == "" {
		return "", false
	}
	if rel.External {
		return rel.Target, true
	}
	return path.Base(rel.Target), true
}

// hyperlink resolves a hyperlink relationship id to its URL.
func (p *Package) hyperlink(relID string) string {
	rel, ok := p.rels[relID]
	if !ok {
		return ""
	}
	return rel.Target
}
