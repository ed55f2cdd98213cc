// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package assets

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/jats-engine/pkg/types"
)

var (
	pngData  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	jpegData = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00")
)

type entry struct {
	name string
	data []byte
}

func zipEntries(t *testing.T, entries ...entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		require.NoError(t, err)
		_, err = w.Write(e.data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestExtract(t *testing.T) {
	data := zipEntries(t,
		entry{"[Content_Types].xml", []byte("<Types/>")},
		entry{"word/document.xml", []byte("<w:document/>")},
		entry{"word/_rels/document.xml.rels", []byte("<Relationships/>")},
		entry{"word/media/image1.png", pngData},
		entry{"word/media/image2.jpeg", jpegData},
		entry{"word/theme/theme1.xml", []byte("<theme/>")},
	)

	got, err := Extract(data)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "image1.png", got[0].Name)
	assert.Equal(t, "image/png", got[0].Type)
	assert.Equal(t, "word/media/image1.png", got[0].Path)
	assert.Equal(t, "fig-1", got[0].ID)
	assert.Equal(t, types.ManuscriptID, got[0].DocumentID)
	assert.Equal(t, pngData, got[0].Data)

	assert.Equal(t, "image2.jpeg", got[1].Name)
	assert.Equal(t, "image/jpeg", got[1].Type)
	assert.Equal(t, "fig-2", got[1].ID)
}

func TestExtract_Empty(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "nil", data: nil},
		{name: "plain xml", data: []byte(`<article><body/></article>`)},
		{name: "archive without media", data: zipEntries(t, entry{"word/document.xml", []byte("<w:document/>")})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract(tt.data)
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestExtract_ImagesOutsideMediaDir(t *testing.T) {
	data := zipEntries(t,
		entry{"manuscript.xml", []byte("<article/>")},
		entry{"figure.png", pngData},
		entry{"notes.txt", []byte("not media")},
	)
	got, err := Extract(data)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "figure.png", got[0].Name)
}

func TestExtract_DoesNotMutateInput(t *testing.T) {
	data := zipEntries(t, entry{"word/media/image1.png", pngData})
	orig := append([]byte(nil), data...)
	_, err := Extract(data)
	require.NoError(t, err)
	assert.Equal(t, orig, data)
}

func TestIsImage(t *testing.T) {
	assert.True(t, IsImage("image/png"))
	assert.True(t, IsImage("image/jpeg"))
	assert.True(t, IsImage("IMAGE/JPG"))
	assert.False(t, IsImage("image/gif"))
	assert.False(t, IsImage("application/pdf"))
}

func TestWriteAndReadDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), MediaDir)
	list := []types.MediaAsset{
		{Name: "image1.png", Data: pngData},
		{Name: "image2.jpeg", Data: jpegData},
	}
	require.NoError(t, WriteDir(dir, list))

	written, err := os.ReadFile(filepath.Join(dir, "image1.png"))
	require.NoError(t, err)
	assert.Equal(t, pngData, written)

	got, err := ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, got, 2)
	byName := ByName(got)
	assert.Equal(t, "image/png", byName["image1.png"].Type)
	assert.Equal(t, "image/jpeg", byName["image2.jpeg"].Type)
	assert.Equal(t, "media/image1.png", byName["image1.png"].Path)
}

func TestReadDir_Missing(t *testing.T) {
	got, err := ReadDir(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestExtract_OversizedMediaIsRefused(t *testing.T) {
	big := append(append([]byte(nil), pngData...), make([]byte, MaxAssetSize)...)
	data := zipEntries(t,
		entry{"word/document.xml", []byte("<w:document/>")},
		entry{"word/media/image1.png", big},
	)

	list, err := Extract(data)
	require.Error(t, err)
	assert.Nil(t, list)
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Equal(t, types.ErrConversionFailed, types.KindOf(err))
	assert.Contains(t, err.Error(), "word/media/image1.png")
}

func TestExtract_OversizedNonImageOutsideMediaIsSkipped(t *testing.T) {
	data := zipEntries(t,
		entry{"word/document.xml", []byte("<w:document/>")},
		entry{"word/embeddings/oleObject1.bin", make([]byte, MaxAssetSize+1)},
		entry{"word/media/image1.png", pngData},
	)

	list, err := Extract(data)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "image1.png", list[0].Name)
}

func TestReadLimited(t *testing.T) {
	got, err := readLimited(bytes.NewReader(pngData), uint64(len(pngData)))
	require.NoError(t, err)
	assert.Equal(t, pngData, got)

	// A header that understates the size is caught while reading.
	_, err = readLimited(bytes.NewReader(make([]byte, MaxAssetSize+1)), 10)
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = readLimited(bytes.NewReader(nil), MaxAssetSize+1)
	assert.ErrorIs(t, err, ErrTooLarge)
}
