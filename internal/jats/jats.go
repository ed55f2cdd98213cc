// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package jats holds the in-memory JATS article tree and its canonical
// emission. Articles are built from fully constructed subtrees (front, body,
// back) that are attached to the root in one pass; near-JATS sources are
// imported by deep-copying their body and back into a fresh article.
package jats

import (
	"bytes"
	"encoding/xml"

	"github.com/beevik/etree"
	"golang.org/x/net/html/charset"

	"github.com/pdiddy/jats-engine/pkg/types"
)

const (
	// XlinkNamespace is the only xlink binding an emitted article carries.
	XlinkNamespace = "http://www.w3.org/1999/xlink"

	// DefaultArticleType is forced onto every article unless the caller
	// asks to preserve the source value.
	DefaultArticleType = "research-article"

	doctypePublicID = "-//NLM//DTD JATS (Z39.96) Journal Archiving and Interchange DTD v1.2 20190208//EN"
	doctypeSystemID = "JATS-archivearticle1.dtd"
)

// Doctype is the DOCTYPE directive body written before the root element.
const Doctype = `DOCTYPE article PUBLIC "` + doctypePublicID + `" "` + doctypeSystemID + `"`

// Article wraps a JATS document. The tree is owned by one conversion and
// must not be shared between goroutines.
type Article struct {
	doc *etree.Document
}

// Parse reads XML bytes into a tree. Non-UTF-8 encodings declared in the
// prolog are decoded, and HTML named entities (&nbsp; and friends, common in
// JATS that relies on the DTD) are accepted. Failures are ErrMalformedSource.
func Parse(data []byte) (*etree.Document, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = charset.NewReaderLabel
	doc.ReadSettings.Entity = xml.HTMLEntity
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, types.NewError(types.ErrMalformedSource, types.StageParsing, "parsing XML: %w", err)
	}
	if doc.Root() == nil {
		return nil, types.NewError(types.ErrMalformedSource, types.StageParsing, "no root element found")
	}
	return doc, nil
}

// Load parses an already converted article, e.g. for manifest building or
// round-trip merging.
func Load(data []byte) (*Article, error) {
	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return &Article{doc: doc}, nil
}

// Root returns the article element.
func (a *Article) Root() *etree.Element {
	return a.doc.Root()
}

// Front returns the front element, or nil.
func (a *Article) Front() *etree.Element {
	return a.Root().SelectElement("front")
}

// Body returns the first body element, or nil.
func (a *Article) Body() *etree.Element {
	return a.Root().SelectElement("body")
}

// Back returns the first back element, or nil.
func (a *Article) Back() *etree.Element {
	return a.Root().SelectElement("back")
}

// RefLists returns every ref-list in the back matter, in document order.
func (a *Article) RefLists() []*etree.Element {
	var lists []*etree.Element
	for _, back := range a.Root().SelectElements("back") {
		lists = append(lists, back.FindElements(".//ref-list")...)
	}
	return lists
}

// References returns every ref element in the back matter, in document order.
func (a *Article) References() []*etree.Element {
	var refs []*etree.Element
	for _, list := range a.RefLists() {
		refs = append(refs, list.SelectElements("ref")...)
	}
	return refs
}

// Bytes emits the article as UTF-8 XML with the JATS Archiving DOCTYPE.
func (a *Article) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := a.doc.WriteTo(&buf); err != nil {
		return nil, types.NewError(types.ErrConversionFailed, types.StagePackaging, "writing article XML: %w", err)
	}
	return buf.Bytes(), nil
}

// String is Bytes for tests and debugging; write errors yield "".
func (a *Article) String() string {
	b, err := a.Bytes()
	if err != nil {
		return ""
	}
	return string(b)
}

// wrap attaches root to a new document with the canonical prolog.
func wrap(root *etree.Element) *Article {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	doc.CreateText("\n")
	doc.CreateDirective(Doctype)
	doc.CreateText("\n")
	doc.SetRoot(root)
	doc.CreateText("\n")
	return &Article{doc: doc}
}
