// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package jats

import (
	"fmt"

	"github.com/beevik/etree"

	"github.com/pdiddy/jats-engine/pkg/types"
)

// ImportOptions adjust how a near-JATS source is imported.
type ImportOptions struct {
	// PreserveArticleType keeps the source article-type.
	PreserveArticleType bool
}

// FromJATS imports a near-JATS document: namespace declarations of the
// source root are copied (xlink is re-declared once), the article-type is
// forced to research-article, a front-matter skeleton is built from ctx, and
// the source body and back are deep-copied into the new article. The source
// front matter is not carried over.
func FromJATS(data []byte, ctx *types.JournalContext, opts ImportOptions) (*Article, []types.Diagnostic, error) {
	src, err := Parse(data)
	if err != nil {
		return nil, nil, err
	}
	root := src.Root()

	var diags []types.Diagnostic
	if root.Tag != "article" {
		diags = append(diags, types.Warning(types.StageParsing,
			fmt.Sprintf("source root element is <%s>, expected <article>", root.FullTag())))
	}

	if n := CountXlinkDecls(root); n != 1 {
		diags = append(diags, types.Info(types.StageParsing,
			fmt.Sprintf("source declares the xlink namespace %d time(s); emitting one declaration", n)))
	}

	articleType := DefaultArticleType
	if srcType := root.SelectAttrValue("article-type", ""); srcType != "" && srcType != DefaultArticleType {
		if opts.PreserveArticleType {
			articleType = srcType
		} else {
			diags = append(diags, types.Warning(types.StageParsing,
				fmt.Sprintf("article-type %q replaced by %q", srcType, DefaultArticleType)))
		}
	}

	body := copyAll(root.SelectElements("body"))
	back := copyAll(root.SelectElements("back"))
	if len(body) == 0 {
		diags = append(diags, types.Warning(types.StageParsing, "source has no <body>"))
	}
	diags = append(diags, types.Info(types.StageParsing,
		fmt.Sprintf("imported %d body and %d back section(s)", len(body), len(back))))

	article := Build(Parts{
		Namespaces:  NamespaceDecls(root),
		ArticleType: articleType,
		Lang:        root.SelectAttrValue("xml:lang", ""),
		Context:     ctx,
		Body:        body,
		Back:        back,
	})
	return article, diags, nil
}

func copyAll(elements []*etree.Element) []*etree.Element {
	copies := make([]*etree.Element, len(elements))
	for i, e := range elements {
		copies[i] = e.Copy()
	}
	return copies
}
