// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/jats-engine/internal/jats"
	"github.com/pdiddy/jats-engine/internal/validate"
	"github.com/pdiddy/jats-engine/pkg/types"
)

var (
	fixedTime = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	pngData   = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
)

func newTestEngine(opts ...Option) *Engine {
	base := []Option{
		WithClock(func() time.Time { return fixedTime }),
		WithRunID(func() string { return "run-1" }),
	}
	return New(append(base, opts...)...)
}

// docxWithImages builds a Word package holding paragraphs text paragraphs
// followed by one paragraph per embedded PNG.
func docxWithImages(t *testing.T, paragraphs, images int) []byte {
	t.Helper()

	var body strings.Builder
	body.WriteString(`<w:p><w:pPr><w:pStyle w:val="Title"/></w:pPr><w:r><w:t>A Title</w:t></w:r></w:p>`)
	for i := 1; i <= paragraphs; i++ {
		fmt.Fprintf(&body, `<w:p><w:r><w:t>Paragraph %d.</w:t></w:r></w:p>`, i)
	}
	var rels strings.Builder
	rels.WriteString(`<?xml version="1.0" encoding="UTF-8"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	for i := 1; i <= images; i++ {
		fmt.Fprintf(&body, `<w:p><w:r><w:drawing><wp:inline><a:graphic><a:graphicData><a:blip r:embed="rImg%d"/></a:graphicData></a:graphic></wp:inline></w:drawing></w:r></w:p>`, i)
		fmt.Fprintf(&rels, `<Relationship Id="rImg%d" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="media/image%d.png"/>`, i, i)
	}
	rels.WriteString(`</Relationships>`)

	document := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"` +
		` xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"` +
		` xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"` +
		` xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main">` +
		`<w:body>` + body.String() + `</w:body></w:document>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	add := func(name string, data []byte) {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	add("[Content_Types].xml", []byte(`<?xml version="1.0"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`))
	add("word/document.xml", []byte(document))
	add("word/_rels/document.xml.rels", []byte(rels.String()))
	for i := 1; i <= images; i++ {
		add(fmt.Sprintf("word/media/image%d.png", i), pngData)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func jatsWithCitations(body string) []byte {
	return []byte(`<?xml version="1.0"?>
<article xmlns:xlink="http://www.w3.org/1999/xlink"><body xmlns:xlink="http://www.w3.org/1999/xlink">` + body + `</body>
<back><ref-list>
<ref id="c"><label>3</label><mixed-citation>Carol C. Third paper. 2018.</mixed-citation></ref>
<ref id="a"><label>1</label><mixed-citation>Alice A. First paper. 2020.</mixed-citation></ref>
<ref id="b"><label>2</label><mixed-citation>Bob B. Second paper. 2019.</mixed-citation></ref>
</ref-list></back></article>`)
}

func outputRefIDs(t *testing.T, output []byte) []string {
	t.Helper()
	art, err := jats.Load(output)
	require.NoError(t, err)
	var ids []string
	for _, r := range art.References() {
		ids = append(ids, r.SelectAttrValue("id", ""))
	}
	return ids
}

func logContains(result *types.ConversionResult, s string) bool {
	for _, l := range result.Log {
		if strings.Contains(l, s) {
			return true
		}
	}
	return false
}

func TestConvert_DOCXWithImages(t *testing.T) {
	data := docxWithImages(t, 5, 2)

	result := newTestEngine().Convert(context.Background(), Request{Name: "paper.docx", Data: data, Format: types.FormatDOCX})

	require.True(t, result.Success, result.LogText())
	assert.Equal(t, types.StageDone, result.Stage)
	assert.Equal(t, "run-1", result.RunID)
	require.Len(t, result.Media, 2)

	art, err := jats.Load(result.Output)
	require.NoError(t, err)
	require.NotNil(t, art.Body())
	assert.NotEmpty(t, art.Body().ChildElements())
	assert.Len(t, art.Body().FindElements(".//p"), 5)

	require.NotNil(t, result.Manifest)
	require.Len(t, result.Manifest.Assets.Items, 2)
	for i, a := range result.Manifest.Assets.Items {
		assert.Equal(t, fmt.Sprintf("image%d.png", i+1), a.Path)
		assert.Equal(t, "image/png", a.Type)
	}
	ids := map[string]bool{}
	for _, m := range result.Media {
		ids[m.ID] = true
	}
	for _, a := range result.Manifest.Assets.Items {
		assert.True(t, ids[a.ID], "media should carry manifest id %s", a.ID)
	}

	assert.True(t, logContains(result, "DOCX conversion keeps structure only"))
	assert.True(t, logContains(result, "Extracted 2 media asset(s)"))
}

func TestConvert_ReorderScenario(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantIDs []string
	}{
		{name: "second cited before third", body: `<p>First [1] then [2] and [1,3].</p>`, wantIDs: []string{"a", "b", "c"}},
		{name: "third cited before second", body: `<p>First [1] then [3] and [1,2].</p>`, wantIDs: []string{"a", "c", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := newTestEngine().Convert(context.Background(), Request{
				Data:    jatsWithCitations(tt.body),
				Format:  types.FormatJATS,
				Options: types.ConversionOptions{ReorderReferences: true},
			})
			require.True(t, result.Success, result.LogText())
			assert.Equal(t, tt.wantIDs, outputRefIDs(t, result.Output))

			art, err := jats.Load(result.Output)
			require.NoError(t, err)
			assert.Equal(t, 1, jats.CountXlinkDecls(art.Root()))
			for _, ref := range art.References() {
				c := ref.SelectElement("mixed-citation")
				require.NotNil(t, c)
				assert.Equal(t, "journal", c.SelectAttrValue("publication-type", ""))
			}
		})
	}
}

func TestConvert_Malformed(t *testing.T) {
	result := newTestEngine().Convert(context.Background(), Request{
		Name:   "broken.xml",
		Data:   []byte("definitely not xml"),
		Format: types.FormatJATS,
	})

	assert.False(t, result.Success)
	assert.Equal(t, types.StageFailed, result.Stage)
	assert.Equal(t, types.StageParsing, result.FailedStage)
	assert.Equal(t, types.ErrMalformedSource, result.ErrorKind)
	assert.Nil(t, result.Output)
	assert.Nil(t, result.Manifest)
	assert.Nil(t, result.Media)
	assert.True(t, logContains(result, "✗ Conversion failed!"))
	assert.True(t, logContains(result, "FATAL ERROR"))
	assert.True(t, logContains(result, "Error chain:"))
}

func TestConvert_UnsupportedFormat(t *testing.T) {
	result := newTestEngine().Convert(context.Background(), Request{Data: []byte("%PDF-1.5 binary")})
	assert.False(t, result.Success)
	assert.Equal(t, types.ErrUnsupportedFormat, result.ErrorKind)
}

func TestConvert_UnresolvedPolicy(t *testing.T) {
	body := `<p>Known [1] and missing [9].</p>`
	tests := []struct {
		name     string
		policy   types.UnresolvedPolicy
		wantOK   bool
		wantKind types.ErrorKind
		wantLine string
	}{
		{name: "warn", policy: types.UnresolvedWarn, wantOK: true, wantLine: "[Warning] unresolved citation [9]"},
		{name: "fail", policy: types.UnresolvedFail, wantKind: types.ErrUnresolvedCitation, wantLine: "[Error] unresolved citation [9]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := newTestEngine().Convert(context.Background(), Request{
				Data:   jatsWithCitations(body),
				Format: types.FormatJATS,
				Options: types.ConversionOptions{
					ProcessBrackets:  true,
					ReferenceCheck:   true,
					UnresolvedPolicy: tt.policy,
				},
			})
			assert.Equal(t, tt.wantOK, result.Success)
			assert.Equal(t, tt.wantKind, result.ErrorKind)
			assert.True(t, logContains(result, tt.wantLine), result.LogText())
			if !tt.wantOK {
				assert.Equal(t, types.StageNormalizing, result.FailedStage)
				assert.Nil(t, result.Output)
			} else {
				assert.Equal(t, 1, result.Warnings())
			}
		})
	}
}

func TestConvert_LogHeader(t *testing.T) {
	result := newTestEngine().Convert(context.Background(), Request{
		Name:    "paper.xml",
		Data:    jatsWithCitations(`<p>[1]</p>`),
		Format:  types.FormatJATS,
		Options: types.ConversionOptions{ReorderReferences: true, VerboseLogging: true},
	})
	require.True(t, result.Success)

	want := []string{
		"JATS XML Conversion Log",
		"Date: 2026-03-14 09:26:53",
		"Run ID: run-1",
		"Original File: paper.xml",
		"Source Format: JATS XML",
		"",
		"Conversion Settings:",
		"- Reorder References: Yes",
		"- Split References: No",
		"- Process Brackets: No",
		"- Reference Check: No",
		"- Detailed Output: Yes",
	}
	require.GreaterOrEqual(t, len(result.Log), len(want))
	assert.Equal(t, want, result.Log[:len(want)])

	log := result.LogText()
	assert.Contains(t, log, "Enabled: Reorder References")
	assert.Contains(t, log, "Enabled: Verbose/Detailed Output")
	assert.NotContains(t, log, "Enabled: Split References")
	assert.Contains(t, log, "Starting conversion...")
	assert.Contains(t, log, "[Progress] Normalizing 3 reference(s)")
	assert.Contains(t, log, "✓ Conversion completed successfully!")

	start := strings.Index(log, "Starting conversion...")
	done := strings.Index(log, "✓ Conversion completed successfully!")
	assert.Less(t, start, done)
}

func TestConvert_ProgressWriter(t *testing.T) {
	var buf bytes.Buffer
	result := newTestEngine(WithProgress(&buf)).Convert(context.Background(), Request{
		Data:   jatsWithCitations(`<p>x</p>`),
		Format: types.FormatJATS,
	})
	require.True(t, result.Success)
	assert.Equal(t, result.LogText()+"\n", buf.String())
}

func TestConvert_Validation(t *testing.T) {
	invalid := validate.Func(func(context.Context, []byte) (*validate.Report, error) {
		return &validate.Report{Messages: []string{"element foo not allowed"}}, nil
	})
	valid := validate.Func(func(_ context.Context, xml []byte) (*validate.Report, error) {
		if !bytes.Contains(xml, []byte("<!DOCTYPE article")) {
			return &validate.Report{Messages: []string{"no doctype"}}, nil
		}
		return &validate.Report{Valid: true}, nil
	})
	broken := validate.Func(func(context.Context, []byte) (*validate.Report, error) {
		return nil, errors.New("runtime gone")
	})

	tests := []struct {
		name     string
		v        validate.Validator
		strict   bool
		wantOK   bool
		wantLine string
	}{
		{name: "valid", v: valid, wantOK: true, wantLine: "[Info] validation passed"},
		{name: "invalid lenient", v: invalid, wantOK: true, wantLine: "[Warning] validation: element foo not allowed"},
		{name: "invalid strict", v: invalid, strict: true, wantLine: "[Error] validation: element foo not allowed"},
		{name: "unavailable lenient", v: broken, wantOK: true, wantLine: "[Warning] validation skipped: runtime gone"},
		{name: "unavailable strict", v: broken, strict: true, wantLine: "runtime gone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := newTestEngine(WithValidator(tt.v, tt.strict)).Convert(context.Background(), Request{
				Data:   jatsWithCitations(`<p>x</p>`),
				Format: types.FormatJATS,
			})
			assert.Equal(t, tt.wantOK, result.Success)
			assert.True(t, logContains(result, tt.wantLine), result.LogText())
			assert.True(t, logContains(result, "Enabled: Schema Validation"))
			if !tt.wantOK {
				assert.Equal(t, types.StagePackaging, result.FailedStage)
				assert.Equal(t, types.ErrConversionFailed, result.ErrorKind)
			}
		})
	}
}

func TestConvert_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := newTestEngine().Convert(ctx, Request{Data: jatsWithCitations(`<p>x</p>`), Format: types.FormatJATS})
	assert.False(t, result.Success)
	assert.Equal(t, types.ErrConversionFailed, result.ErrorKind)
	assert.Equal(t, types.StageInit, result.FailedStage)
}

func TestConvert_Concurrent(t *testing.T) {
	engine := New()
	data := docxWithImages(t, 3, 1)

	var wg sync.WaitGroup
	results := make([]*types.ConversionResult, 8)
	for i := range results {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = engine.Convert(context.Background(), Request{Data: data})
		}()
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, r := range results {
		require.True(t, r.Success, r.LogText())
		assert.Len(t, r.Media, 1)
		assert.False(t, seen[r.RunID], "run ids must be unique")
		seen[r.RunID] = true
	}
}
