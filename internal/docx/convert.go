// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package docx

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/pdiddy/jats-engine/internal/jats"
	"github.com/pdiddy/jats-engine/pkg/types"
)

type mode int

const (
	modeBody mode = iota
	modeAbstract
	modeReferences
)

var (
	headingStyleRe = regexp.MustCompile(`^heading(\d)$`)
	enumeratorRe   = regexp.MustCompile(`^\s*(?:\[(\d+)\]|(\d+)[.)])\s+`)
	yearRe         = regexp.MustCompile(`\b(1[5-9]\d\d|20\d\d)[a-z]?\b`)
	figureLabelRe  = regexp.MustCompile(`(?i)^((?:figure|fig\.?)\s*\d+)\s*[.:]?\s*(.*)$`)
)

var referenceHeadings = map[string]bool{
	"references":       true,
	"reference list":   true,
	"bibliography":     true,
	"literature":       true,
	"literature cited": true,
	"works cited":      true,
	"sources":          true,
}

// Stats counts what the converter produced.
type Stats struct {
	Paragraphs int
	Sections   int
	Figures    int
	Tables     int
	Lists      int
	References int
}

// Convert synthesizes a JATS article from a DOCX package. Styles named
// Title and Subtitle fill the title group, Heading N styles open nested
// sections, a heading named Abstract collects the abstract, and a
// References (or Bibliography) heading switches following paragraphs to
// reference entries. Formatting JATS cannot express is dropped and noted.
func Convert(data []byte, ctx *types.JournalContext) (*jats.Article, []types.Diagnostic, error) {
	pkg, err := Open(data)
	if err != nil {
		return nil, nil, err
	}

	body := pkg.document.Root().SelectElement("body")
	if body == nil {
		return nil, nil, types.NewError(types.ErrMalformedSource, types.StageParsing,
			"%s has no <w:body>", documentPart)
	}

	b := newBuilder(pkg)
	b.blocks(body)

	title := b.title
	if title == "" {
		title = pkg.coreTitle
	}

	var back []*etree.Element
	if len(b.refs) > 0 {
		list := etree.NewElement("ref-list")
		list.AddChild(jats.NewTextElement("title", b.refsTitle))
		for _, r := range b.refs {
			list.AddChild(r)
		}
		backEl := etree.NewElement("back")
		backEl.AddChild(list)
		back = append(back, backEl)
	}

	article := jats.Build(jats.Parts{
		Context:  ctx,
		Title:    title,
		Subtitle: b.subtitle,
		Abstract: b.abstract,
		Body:     []*etree.Element{b.body},
		Back:     back,
	})
	return article, b.diagnostics(), nil
}

type section struct {
	level int
	el    *etree.Element
}

type builder struct {
	pkg *Package

	body     *etree.Element
	sections []section
	list     *etree.Element
	lastFig  *etree.Element
	mode     mode

	title, subtitle string
	abstract        []*etree.Element
	refs            []*etree.Element
	refsTitle       string

	stats   Stats
	dropped map[string]bool
	missing []string
}

func newBuilder(pkg *Package) *builder {
	return &builder{
		pkg:       pkg,
		body:      etree.NewElement("body"),
		refsTitle: "References",
		dropped:   map[string]bool{},
	}
}

// container returns the element new blocks are appended to.
func (b *builder) container() *etree.Element {
	if n := len(b.sections); n > 0 {
		return b.sections[n-1].el
	}
	return b.body
}

func (b *builder) appendBlock(e *etree.Element) {
	b.list = nil
	b.lastFig = nil
	b.container().AddChild(e)
}

func (b *builder) blocks(parent *etree.Element) {
	for _, child := range parent.ChildElements() {
		switch child.Tag {
		case "p":
			b.paragraph(child)
		case "tbl":
			b.table(child)
		case "sdt":
			if content := child.SelectElement("sdtContent"); content != nil {
				b.blocks(content)
			}
		case "customXml":
			b.blocks(child)
		case "sectPr", "bookmarkStart", "bookmarkEnd":
		default:
			b.dropped["unsupported block content"] = true
		}
	}
}

func (b *builder) paragraph(p *etree.Element) {
	props := p.SelectElement("pPr")
	style, numID := "", ""
	if props != nil {
		if s := props.SelectElement("pStyle"); s != nil {
			style = b.pkg.styleName(s.SelectAttrValue("val", ""))
		}
		if num := props.FindElement("./numPr/numId"); num != nil {
			numID = num.SelectAttrValue("val", "")
		}
		for _, c := range props.ChildElements() {
			switch c.Tag {
			case "jc", "ind", "spacing", "shd", "pBdr", "tabs":
				b.dropped["paragraph layout"] = true
			}
		}
	}

	content, images := b.inline(p)
	text := strings.TrimSpace(jats.Text(content))

	switch {
	case style == "title":
		b.title = text
		return
	case style == "subtitle":
		b.subtitle = text
		return
	case style == "caption" && b.lastFig != nil && text != "":
		b.caption(content)
		return
	}

	if level := headingLevel(style); (level > 0 && text != "") || isKnownHeading(text) {
		if level == 0 {
			level = 1
		}
		b.heading(level, content, text)
		return
	}

	if text == "" && len(images) == 0 {
		return
	}

	if text != "" {
		switch {
		case b.mode == modeReferences:
			b.reference(content, numID != "")
		case b.mode == modeAbstract || style == "abstract":
			b.list = nil
			b.abstract = append(b.abstract, content)
			b.stats.Paragraphs++
		case looksLikeReference(text):
			b.reference(content, false)
		case numID != "":
			b.listItem(content, numID)
		default:
			b.appendBlock(content)
			b.stats.Paragraphs++
		}
	}

	for _, ref := range images {
		b.figure(ref)
	}
}

func headingLevel(style string) int {
	m := headingStyleRe.FindStringSubmatch(style)
	if m == nil {
		return 0
	}
	level, _ := strconv.Atoi(m[1])
	return level
}

func headingKey(text string) string {
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(text)), ":. ")
}

func isKnownHeading(text string) bool {
	key := headingKey(text)
	return key == "abstract" || referenceHeadings[key]
}

// looksLikeReference matches a body paragraph shaped like a numbered
// bibliography entry, e.g. "[3] Smith J. Title. 2020."
func looksLikeReference(text string) bool {
	m := enumeratorRe.FindStringSubmatch(text)
	return m != nil && m[1] != "" && yearRe.MatchString(text)
}

func (b *builder) heading(level int, content *etree.Element, text string) {
	b.list = nil
	b.lastFig = nil

	key := headingKey(text)
	switch {
	case key == "abstract":
		b.mode = modeAbstract
		return
	case referenceHeadings[key]:
		b.mode = modeReferences
		b.refsTitle = text
		return
	}
	b.mode = modeBody

	for len(b.sections) > 0 && b.sections[len(b.sections)-1].level >= level {
		b.sections = b.sections[:len(b.sections)-1]
	}

	b.stats.Sections++
	sec := etree.NewElement("sec")
	sec.CreateAttr("id", fmt.Sprintf("sec-%d", b.stats.Sections))
	title := etree.NewElement("title")
	moveChildren(title, content)
	sec.AddChild(title)

	b.container().AddChild(sec)
	b.sections = append(b.sections, section{level: level, el: sec})
}

func (b *builder) listItem(content *etree.Element, numID string) {
	if b.list == nil {
		listType := "bullet"
		if f := b.pkg.numFormat[numID]; f != "" && f != "bullet" && f != "none" {
			listType = "order"
		}
		list := etree.NewElement("list")
		list.CreateAttr("list-type", listType)
		b.appendBlock(list)
		b.list = list
		b.stats.Lists++
	}
	item := b.list.CreateElement("list-item")
	item.AddChild(content)
	b.stats.Paragraphs++
}

func (b *builder) reference(content *etree.Element, numbered bool) {
	b.stats.References++
	ref := etree.NewElement("ref")
	ref.CreateAttr("id", fmt.Sprintf("ref-%d", b.stats.References))

	label := stripEnumerator(content)
	if label == "" && numbered {
		label = strconv.Itoa(b.stats.References)
	}
	if label != "" {
		ref.AddChild(jats.NewTextElement("label", label))
	}

	citation := etree.NewElement("mixed-citation")
	moveChildren(citation, content)
	ref.AddChild(citation)
	b.refs = append(b.refs, ref)
}

// stripEnumerator removes a leading "[n]" or "n." from the first text of
// content and returns n.
func stripEnumerator(content *etree.Element) string {
	if len(content.Child) == 0 {
		return ""
	}
	cd, ok := content.Child[0].(*etree.CharData)
	if !ok {
		return ""
	}
	m := enumeratorRe.FindStringSubmatch(cd.Data)
	if m == nil {
		return ""
	}
	cd.Data = cd.Data[len(m[0]):]
	if m[1] != "" {
		return m[1]
	}
	return m[2]
}

func (b *builder) figure(ref string) {
	b.stats.Figures++
	fig := etree.NewElement("fig")
	fig.CreateAttr("id", fmt.Sprintf("fig-%d", b.stats.Figures))

	graphic := fig.CreateElement("graphic")
	graphic.CreateAttr("xlink:href", ref)
	if sub := mimeSubtype(ref); sub != "" {
		graphic.CreateAttr("mimetype", "image")
		graphic.CreateAttr("mime-subtype", sub)
	}

	b.appendBlock(fig)
	b.lastFig = fig
}

func mimeSubtype(ref string) string {
	switch strings.ToLower(strings.TrimPrefix(path.Ext(ref), ".")) {
	case "png":
		return "png"
	case "jpg", "jpeg":
		return "jpeg"
	case "gif":
		return "gif"
	case "tif", "tiff":
		return "tiff"
	case "svg":
		return "svg+xml"
	}
	return ""
}

// caption attaches a Caption-styled paragraph to the preceding figure. A
// leading "Figure N" becomes the figure label.
func (b *builder) caption(content *etree.Element) {
	fig := b.lastFig
	b.lastFig = nil

	caption := etree.NewElement("caption")
	if len(content.Child) > 0 {
		if cd, ok := content.Child[0].(*etree.CharData); ok {
			if m := figureLabelRe.FindStringSubmatch(cd.Data); m != nil {
				fig.InsertChildAt(0, jats.NewTextElement("label", m[1]))
				cd.Data = m[2]
			}
		}
	}
	caption.AddChild(content)

	index := 0
	if label := fig.SelectElement("label"); label != nil {
		index = label.Index() + 1
	}
	fig.InsertChildAt(index, caption)
}

func (b *builder) table(tbl *etree.Element) {
	b.stats.Tables++
	wrap := etree.NewElement("table-wrap")
	wrap.CreateAttr("id", fmt.Sprintf("table-%d", b.stats.Tables))
	tbody := wrap.CreateElement("table").CreateElement("tbody")

	for _, tr := range tbl.SelectElements("tr") {
		row := tbody.CreateElement("tr")
		for _, tc := range tr.SelectElements("tc") {
			cell := row.CreateElement("td")
			if span := tc.FindElement("./tcPr/gridSpan"); span != nil {
				if n, err := strconv.Atoi(span.SelectAttrValue("val", "")); err == nil && n > 1 {
					cell.CreateAttr("colspan", strconv.Itoa(n))
				}
			}
			if tc.FindElement("./tcPr/vMerge") != nil {
				b.dropped["vertically merged cells"] = true
			}
			for i, p := range tc.SelectElements("p") {
				content, images := b.inline(p)
				if i > 0 && len(content.Child) > 0 {
					cell.CreateElement("break")
				}
				moveChildren(cell, content)
				if len(images) > 0 {
					b.dropped["images inside tables"] = true
				}
			}
			if len(tc.SelectElements("tbl")) > 0 {
				b.dropped["nested tables"] = true
			}
		}
	}

	b.appendBlock(wrap)
}

// inline renders the runs of a paragraph into a <p>, returning the
// references of images anchored in it.
func (b *builder) inline(p *etree.Element) (*etree.Element, []string) {
	w := &inlineWriter{root: etree.NewElement("p")}
	var images []string
	b.runs(p, w, "", &images)
	trimEdges(w.root)
	return w.root, images
}

func (b *builder) runs(parent *etree.Element, w *inlineWriter, link string, images *[]string) {
	for _, c := range parent.ChildElements() {
		switch c.Tag {
		case "r":
			b.run(c, w, link, images)
		case "hyperlink":
			target := link
			if id := c.SelectAttrValue("r:id", ""); id != "" {
				target = b.pkg.hyperlink(id)
			}
			b.runs(c, w, target, images)
		case "ins", "smartTag", "fldSimple", "customXml", "moveTo", "sdtContent":
			b.runs(c, w, link, images)
		case "sdt":
			if content := c.SelectElement("sdtContent"); content != nil {
				b.runs(content, w, link, images)
			}
		case "oMath", "oMathPara":
			b.dropped["equations"] = true
		case "commentRangeStart", "commentRangeEnd":
			b.dropped["comments"] = true
		}
	}
}

func (b *builder) run(r *etree.Element, w *inlineWriter, link string, images *[]string) {
	format := b.runFormat(r.SelectElement("rPr"))
	for _, c := range r.ChildElements() {
		switch c.Tag {
		case "t":
			w.write(c.Text(), format, link)
		case "tab", "br", "cr":
			w.write(" ", format, link)
		case "noBreakHyphen":
			w.write("-", format, link)
		case "drawing", "pict", "object":
			b.collectImages(c, images)
		case "footnoteReference", "endnoteReference":
			b.dropped["footnotes"] = true
		case "commentReference":
			b.dropped["comments"] = true
		}
	}
}

func (b *builder) collectImages(e *etree.Element, images *[]string) {
	var ids []string
	for _, blip := range e.FindElements(".//blip") {
		if id := blip.SelectAttrValue("r:embed", ""); id != "" {
			ids = append(ids, id)
		} else if id := blip.SelectAttrValue("r:link", ""); id != "" {
			ids = append(ids, id)
		}
	}
	for _, img := range e.FindElements(".//imagedata") {
		if id := img.SelectAttrValue("r:id", ""); id != "" {
			ids = append(ids, id)
		}
	}
	for _, id := range ids {
		ref, ok := b.pkg.mediaRef(id)
		if !ok {
			b.missing = append(b.missing, id)
			continue
		}
		*images = append(*images, ref)
	}
}

// runFormat maps run properties to JATS emphasis elements, outermost
// first. Properties without a JATS equivalent are recorded as dropped.
func (b *builder) runFormat(props *etree.Element) []string {
	if props == nil {
		return nil
	}
	var format []string
	for _, c := range props.ChildElements() {
		on := c.SelectAttrValue("val", "true")
		enabled := on != "false" && on != "0" && on != "none"
		switch c.Tag {
		case "b":
			if enabled {
				format = append(format, "bold")
			}
		case "i":
			if enabled {
				format = append(format, "italic")
			}
		case "u":
			if enabled {
				format = append(format, "underline")
			}
		case "strike", "dstrike":
			if enabled {
				format = append(format, "strike")
			}
		case "smallCaps":
			if enabled {
				format = append(format, "sc")
			}
		case "vertAlign":
			switch on {
			case "superscript":
				format = append(format, "sup")
			case "subscript":
				format = append(format, "sub")
			}
		case "rFonts", "sz", "szCs", "color", "highlight", "shd", "spacing", "kern":
			b.dropped["character formatting"] = true
		}
	}
	return format
}

func (b *builder) diagnostics() []types.Diagnostic {
	diags := []types.Diagnostic{
		types.Info(types.StageParsing, "DOCX conversion keeps structure only; formatting JATS cannot represent is dropped"),
	}
	if len(b.dropped) > 0 {
		dropped := make([]string, 0, len(b.dropped))
		for d := range b.dropped {
			dropped = append(dropped, d)
		}
		sort.Strings(dropped)
		diags = append(diags, types.Warning(types.StageParsing,
			"dropped content not representable in JATS: "+strings.Join(dropped, ", ")))
	}
	for _, id := range b.missing {
		diags = append(diags, types.Warning(types.StageParsing,
			fmt.Sprintf("image relationship %s not found; figure skipped", id)))
	}
	if b.title == "" && b.pkg.coreTitle == "" {
		diags = append(diags, types.Warning(types.StageParsing, "no Title paragraph found; article-title is empty"))
	}
	diags = append(diags, types.Info(types.StageParsing, fmt.Sprintf(
		"DOCX: %d paragraph(s), %d section(s), %d figure(s), %d table(s), %d list(s), %d reference(s)",
		b.stats.Paragraphs, b.stats.Sections, b.stats.Figures, b.stats.Tables, b.stats.Lists, b.stats.References)))
	return diags
}

// inlineWriter appends text runs to a paragraph, merging consecutive runs
// that share formatting and link target into one node.
type inlineWriter struct {
	root    *etree.Element
	lastKey string
	last    *etree.Element
}

func (w *inlineWriter) write(text string, format []string, link string) {
	if text == "" {
		return
	}
	key := strings.Join(format, "+") + "|" + link
	if w.last != nil && key == w.lastKey && w.last == w.tail() {
		jats.AppendText(w.last, text)
		return
	}

	parent := w.root
	if link != "" {
		ext := parent.CreateElement("ext-link")
		ext.CreateAttr("ext-link-type", "uri")
		ext.CreateAttr("xlink:href", link)
		parent = ext
	}
	for _, f := range format {
		parent = parent.CreateElement(f)
	}
	jats.AppendText(parent, text)
	w.lastKey = key
	w.last = parent
}

// tail returns the innermost element on the right edge of the paragraph.
func (w *inlineWriter) tail() *etree.Element {
	e := w.root
	for {
		n := len(e.Child)
		if n == 0 {
			return e
		}
		child, ok := e.Child[n-1].(*etree.Element)
		if !ok {
			return e
		}
		e = child
	}
}

// trimEdges removes leading and trailing whitespace of a paragraph's
// direct text.
func trimEdges(p *etree.Element) {
	if n := len(p.Child); n > 0 {
		if cd, ok := p.Child[0].(*etree.CharData); ok {
			cd.Data = strings.TrimLeft(cd.Data, " \t")
		}
		if cd, ok := p.Child[n-1].(*etree.CharData); ok {
			cd.Data = strings.TrimRight(cd.Data, " \t")
		}
	}
}

// moveChildren reparents every child token of src onto dst.
func moveChildren(dst, src *etree.Element) {
	for _, t := range append([]etree.Token(nil), src.Child...) {
		dst.AddChild(t)
	}
}
