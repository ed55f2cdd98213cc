// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package jats

import (
	"sort"

	"github.com/beevik/etree"

	"github.com/pdiddy/jats-engine/pkg/types"
)

// Parts are the fully built pieces of an article. Build attaches them to a
// fresh root; none of them may still be attached to another tree.
type Parts struct {
	// Namespaces are copied onto the root; any xlink binding is dropped in
	// favor of the canonical one.
	Namespaces []etree.Attr

	// ArticleType defaults to DefaultArticleType.
	ArticleType string

	// Lang is the optional xml:lang of the article.
	Lang string

	// Context fills journal-meta; nil leaves the skeleton empty.
	Context *types.JournalContext

	Title    string
	Subtitle string
	Abstract []*etree.Element

	Body []*etree.Element
	Back []*etree.Element
}

// Build assembles an article from parts.
func Build(p Parts) *Article {
	article := etree.NewElement("article")
	for _, ns := range p.Namespaces {
		if isXlinkDecl(ns) {
			continue
		}
		article.CreateAttr(ns.FullKey(), ns.Value)
	}
	article.CreateAttr("xmlns:xlink", XlinkNamespace)

	articleType := p.ArticleType
	if articleType == "" {
		articleType = DefaultArticleType
	}
	article.CreateAttr("article-type", articleType)
	if p.Lang != "" {
		article.CreateAttr("xml:lang", p.Lang)
	}

	sections := []*etree.Element{buildFront(p)}
	sections = append(sections, p.Body...)
	sections = append(sections, p.Back...)
	for _, s := range sections {
		stripXlinkDecls(s)
		article.CreateText("\n")
		article.AddChild(s)
	}
	article.CreateText("\n")

	return wrap(article)
}

func buildFront(p Parts) *etree.Element {
	front := etree.NewElement("front")
	front.AddChild(buildJournalMeta(p.Context))
	front.AddChild(buildArticleMeta(p))
	return front
}

// buildJournalMeta always emits journal-id and journal-title-group; ISSNs and
// publisher only appear when the context has them.
func buildJournalMeta(ctx *types.JournalContext) *etree.Element {
	meta := etree.NewElement("journal-meta")

	var path string
	if ctx != nil {
		path = ctx.Path
	}
	journalID := NewTextElement("journal-id", path)
	journalID.CreateAttr("journal-id-type", "ojs")
	meta.AddChild(journalID)

	meta.AddChild(buildJournalTitleGroup(ctx))

	if ctx == nil {
		return meta
	}
	if ctx.PrintISSN != "" {
		issn := NewTextElement("issn", ctx.PrintISSN)
		issn.CreateAttr("pub-type", "ppub")
		meta.AddChild(issn)
	}
	if ctx.OnlineISSN != "" {
		issn := NewTextElement("issn", ctx.OnlineISSN)
		issn.CreateAttr("pub-type", "epub")
		meta.AddChild(issn)
	}
	if ctx.Publisher != "" {
		publisher := etree.NewElement("publisher")
		publisher.AddChild(NewTextElement("publisher-name", ctx.Publisher))
		meta.AddChild(publisher)
	}
	return meta
}

func buildJournalTitleGroup(ctx *types.JournalContext) *etree.Element {
	group := etree.NewElement("journal-title-group")
	name := ctx.PrimaryName()
	if name == "" {
		return group
	}

	title := NewTextElement("journal-title", name)
	if lang := langCode(ctx.PrimaryLocale); lang != "" {
		title.CreateAttr("xml:lang", lang)
	}
	group.AddChild(title)

	locales := make([]string, 0, len(ctx.Names))
	for locale, t := range ctx.Names {
		if locale != ctx.PrimaryLocale && t != "" {
			locales = append(locales, locale)
		}
	}
	sort.Strings(locales)
	for _, locale := range locales {
		trans := etree.NewElement("trans-title-group")
		if lang := langCode(locale); lang != "" {
			trans.CreateAttr("xml:lang", lang)
		}
		trans.AddChild(NewTextElement("trans-title", ctx.Names[locale]))
		group.AddChild(trans)
	}
	return group
}

func buildArticleMeta(p Parts) *etree.Element {
	meta := etree.NewElement("article-meta")

	title := p.Title
	if p.Context != nil && p.Context.ArticleTitle != "" {
		title = p.Context.ArticleTitle
	}
	titleGroup := etree.NewElement("title-group")
	titleGroup.AddChild(NewTextElement("article-title", title))
	if p.Subtitle != "" {
		titleGroup.AddChild(NewTextElement("subtitle", p.Subtitle))
	}
	meta.AddChild(titleGroup)

	abstract := etree.NewElement("abstract")
	paragraphs := p.Abstract
	if p.Context != nil && p.Context.Abstract != "" {
		paragraphs = Paragraphs(p.Context.Abstract)
	}
	for _, para := range paragraphs {
		abstract.AddChild(para)
	}
	meta.AddChild(abstract)

	return meta
}

// langCode shortens a locale such as "en_US" to "en".
func langCode(locale string) string {
	if len(locale) < 2 {
		return ""
	}
	return locale[:2]
}
