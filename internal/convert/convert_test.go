// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/jats-engine/pkg/types"
)

const minimalDocument = `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>
<w:p><w:r><w:t>Only paragraph.</w:t></w:r></w:p>
</w:body></w:document>`

type zipEntry struct {
	name, data string
}

func zipOf(t *testing.T, entries ...zipEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		require.NoError(t, err)
		_, err = w.Write([]byte(e.data))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func minimalDOCX(t *testing.T) []byte {
	return zipOf(t,
		zipEntry{"[Content_Types].xml", `<?xml version="1.0"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`},
		zipEntry{"word/document.xml", minimalDocument},
	)
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    types.SourceFormat
		wantErr bool
	}{
		{name: "docx package", data: minimalDOCX(t), want: types.FormatDOCX},
		{name: "xml with prolog", data: []byte(`<?xml version="1.0"?><article/>`), want: types.FormatJATS},
		{name: "bare element", data: []byte("\n  <article><body/></article>"), want: types.FormatJATS},
		{name: "bom then element", data: []byte("\xef\xbb\xbf<article/>"), want: types.FormatJATS},
		{name: "zip without document", data: zipOf(t, zipEntry{"readme.txt", "hi"}), wantErr: true},
		{name: "pdf", data: []byte("%PDF-1.7\n1 0 obj\n"), wantErr: true},
		{name: "plain text", data: []byte("just words"), wantErr: true},
		{name: "empty", data: nil, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectFormat(tt.data)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, types.ErrUnsupportedFormat, types.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFor(t *testing.T) {
	c, err := For(types.FormatJATS)
	require.NoError(t, err)
	assert.Equal(t, types.FormatJATS, c.Format())

	c, err = For(types.FormatDOCX)
	require.NoError(t, err)
	assert.Equal(t, types.FormatDOCX, c.Format())

	_, err = For("pdf")
	assert.Equal(t, types.ErrUnsupportedFormat, types.KindOf(err))
}

func TestToArticle(t *testing.T) {
	jatsSource := []byte(`<article article-type="review-article"><body><p>Hello</p></body></article>`)

	tests := []struct {
		name     string
		data     []byte
		format   types.SourceFormat
		opts     types.ConversionOptions
		wantBody string
		wantType string
	}{
		{name: "jats detected", data: jatsSource, wantBody: "Hello", wantType: "research-article"},
		{name: "jats preserve type", data: jatsSource, format: types.FormatJATS,
			opts: types.ConversionOptions{PreserveArticleType: true}, wantBody: "Hello", wantType: "review-article"},
		{name: "docx detected", data: minimalDOCX(t), wantBody: "Only paragraph.", wantType: "research-article"},
		{name: "docx explicit", data: minimalDOCX(t), format: types.FormatDOCX, wantBody: "Only paragraph.", wantType: "research-article"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			article, diags, err := ToArticle(tt.data, tt.format, nil, tt.opts)
			require.NoError(t, err)
			assert.NotEmpty(t, diags)
			require.NotNil(t, article.Body())
			assert.Contains(t, article.String(), tt.wantBody)
			assert.Equal(t, tt.wantType, article.Root().SelectAttrValue("article-type", ""))
		})
	}
}

func TestToArticle_Errors(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		format   types.SourceFormat
		wantKind types.ErrorKind
	}{
		{name: "non-xml as jats", data: []byte("this is not xml"), format: types.FormatJATS, wantKind: types.ErrMalformedSource},
		{name: "xml as docx", data: []byte("<article/>"), format: types.FormatDOCX, wantKind: types.ErrMalformedSource},
		{name: "undetectable", data: []byte("%PDF-1.4"), wantKind: types.ErrUnsupportedFormat},
		{name: "unknown format", data: []byte("<article/>"), format: "rtf", wantKind: types.ErrUnsupportedFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			article, _, err := ToArticle(tt.data, tt.format, nil, types.ConversionOptions{})
			require.Error(t, err)
			assert.Nil(t, article)
			assert.Equal(t, tt.wantKind, types.KindOf(err))
		})
	}
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "DOCX", Describe(types.FormatDOCX))
	assert.Equal(t, "JATS XML", Describe(types.FormatJATS))
	assert.True(t, strings.HasPrefix(Describe("x"), "unknown"))
}
