// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package jats

import (
	"strings"

	"github.com/beevik/etree"
)

// Text returns the concatenated character data of e and all its descendants.
func Text(e *etree.Element) string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	collectText(e, &b)
	return b.String()
}

func collectText(e *etree.Element, b *strings.Builder) {
	for _, t := range e.Child {
		switch c := t.(type) {
		case *etree.CharData:
			b.WriteString(c.Data)
		case *etree.Element:
			collectText(c, b)
		}
	}
}

// AppendText adds s to the end of e, merging with a trailing text token so
// that adjacent runs form one text node.
func AppendText(e *etree.Element, s string) {
	if s == "" {
		return
	}
	if n := len(e.Child); n > 0 {
		if cd, ok := e.Child[n-1].(*etree.CharData); ok {
			cd.Data += s
			return
		}
	}
	e.CreateText(s)
}

// NewTextElement returns <tag>text</tag>.
func NewTextElement(tag, text string) *etree.Element {
	e := etree.NewElement(tag)
	if text != "" {
		e.SetText(text)
	}
	return e
}

// IsNamespaceDecl reports whether a is an xmlns or xmlns:prefix attribute.
func IsNamespaceDecl(a etree.Attr) bool {
	return a.Space == "xmlns" || (a.Space == "" && a.Key == "xmlns")
}

func isXlinkDecl(a etree.Attr) bool {
	return a.Space == "xmlns" && a.Key == "xlink"
}

// NamespaceDecls returns the namespace declarations carried by e.
func NamespaceDecls(e *etree.Element) []etree.Attr {
	var decls []etree.Attr
	for _, a := range e.Attr {
		if IsNamespaceDecl(a) {
			decls = append(decls, a)
		}
	}
	return decls
}

// stripXlinkDecls removes xmlns:xlink declarations from e and its
// descendants; the article root declares xlink once for the whole tree.
func stripXlinkDecls(e *etree.Element) int {
	removed := 0
	for _, el := range append([]*etree.Element{e}, e.FindElements(".//*")...) {
		kept := el.Attr[:0]
		for _, a := range el.Attr {
			if isXlinkDecl(a) {
				removed++
				continue
			}
			kept = append(kept, a)
		}
		el.Attr = kept
	}
	return removed
}

// CountXlinkDecls counts xmlns:xlink declarations in the tree rooted at e.
func CountXlinkDecls(e *etree.Element) int {
	n := 0
	for _, el := range append([]*etree.Element{e}, e.FindElements(".//*")...) {
		for _, a := range el.Attr {
			if isXlinkDecl(a) {
				n++
			}
		}
	}
	return n
}

// Paragraphs splits plain text on blank lines into <p> elements.
func Paragraphs(text string) []*etree.Element {
	var ps []*etree.Element
	for _, chunk := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		ps = append(ps, NewTextElement("p", chunk))
	}
	return ps
}
