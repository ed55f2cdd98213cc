// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package assets finds embedded media in a source archive. Extraction is a
// pure function of the input bytes; sources that are not archives, or
// archives without media, yield no assets.
package assets

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/pdiddy/jats-engine/pkg/types"
)

// MaxAssetSize caps the bytes read from a single archive entry.
const MaxAssetSize = 20 << 20

// ErrTooLarge is returned for media entries above MaxAssetSize. They are
// refused rather than truncated.
var ErrTooLarge = errors.New("entry exceeds the asset size limit")

// MediaDir is the directory media files are written to next to a
// converted manuscript.
const MediaDir = "media"

// Extract scans a ZIP-based source (a DOCX package or a zipped article
// with its media) for embedded media. Entries inside a "media" directory
// are always taken; other entries are taken when their content sniffs as
// an image. Assets keep archive order; their ID is fig-<n> until the
// orchestrator links them to figures.
func Extract(data []byte) ([]types.MediaAsset, error) {
	if len(data) == 0 {
		return nil, nil
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		// Not an archive: plain XML sources carry no embedded media.
		return nil, nil
	}

	var found []types.MediaAsset
	names := make(map[string]bool)
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		inMedia := isMediaPath(f.Name)
		if !inMedia && isPackagePart(f.Name) {
			continue
		}
		// Oversized entries outside media/ only matter when they are images.
		if !inMedia && f.UncompressedSize64 > MaxAssetSize && !sniffsAsImage(f) {
			continue
		}

		blob, err := readEntry(f)
		if err != nil {
			return nil, types.NewError(types.ErrConversionFailed, types.StageParsing,
				"reading archive entry %s: %w", f.Name, err)
		}
		if len(blob) == 0 {
			continue
		}

		mime := mimetype.Detect(blob)
		if !inMedia && !strings.HasPrefix(mime.String(), "image/") {
			continue
		}

		name := path.Base(f.Name)
		if names[name] {
			name = fmt.Sprintf("%d-%s", len(found)+1, name)
		}
		names[name] = true

		found = append(found, types.MediaAsset{
			ID:         fmt.Sprintf("fig-%d", len(found)+1),
			Name:       name,
			Type:       mediaType(mime),
			Path:       f.Name,
			DocumentID: types.ManuscriptID,
			Data:       blob,
		})
	}
	return found, nil
}

// ByName indexes assets by name, the key graphics refer to.
func ByName(list []types.MediaAsset) map[string]types.MediaAsset {
	m := make(map[string]types.MediaAsset, len(list))
	for _, a := range list {
		m[a.Name] = a
	}
	return m
}

// IsImage reports whether a media type can be attached to a bundle. Only
// PNG and JPEG qualify.
func IsImage(mediaType string) bool {
	switch strings.ToLower(mediaType) {
	case "image/png", "image/jpeg", "image/jpg":
		return true
	}
	return false
}

// WriteDir writes every asset to dir/<name>, creating dir as needed.
func WriteDir(dir string, list []types.MediaAsset) error {
	if len(list) == 0 {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating media dir: %w", err)
	}
	for _, a := range list {
		if err := os.WriteFile(filepath.Join(dir, a.Name), a.Data, 0o644); err != nil {
			return fmt.Errorf("writing asset %s: %w", a.Name, err)
		}
	}
	return nil
}

// ReadDir loads every regular file in dir as an asset, sniffing its type.
// A missing directory yields no assets.
func ReadDir(dir string) ([]types.MediaAsset, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading media dir: %w", err)
	}

	var list []types.MediaAsset
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		p := filepath.Join(dir, e.Name())
		blob, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading asset %s: %w", e.Name(), err)
		}
		list = append(list, types.MediaAsset{
			ID:         fmt.Sprintf("fig-%d", len(list)+1),
			Name:       e.Name(),
			Type:       mediaType(mimetype.Detect(blob)),
			Path:       path.Join(MediaDir, e.Name()),
			DocumentID: types.ManuscriptID,
			Data:       blob,
		})
	}
	return list, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return readLimited(rc, f.UncompressedSize64)
}

// readLimited reads at most MaxAssetSize bytes and fails with ErrTooLarge
// when the declared or actual size is above it.
func readLimited(r io.Reader, declared uint64) ([]byte, error) {
	if declared > MaxAssetSize {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, declared, MaxAssetSize)
	}
	data, err := io.ReadAll(io.LimitReader(r, MaxAssetSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxAssetSize {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, MaxAssetSize)
	}
	return data, nil
}

func sniffsAsImage(f *zip.File) bool {
	rc, err := f.Open()
	if err != nil {
		return false
	}
	defer rc.Close()
	m, err := mimetype.DetectReader(rc)
	return err == nil && strings.HasPrefix(m.String(), "image/")
}

func isMediaPath(name string) bool {
	for _, dir := range strings.Split(path.Dir(name), "/") {
		if strings.EqualFold(dir, "media") {
			return true
		}
	}
	return false
}

// isPackagePart reports whether an entry is OOXML/package plumbing rather
// than content.
func isPackagePart(name string) bool {
	switch {
	case strings.HasPrefix(name, "_rels/"), strings.HasPrefix(name, "docProps/"),
		strings.Contains(name, "/_rels/"), name == "[Content_Types].xml":
		return true
	}
	switch strings.ToLower(path.Ext(name)) {
	case ".xml", ".rels":
		return true
	}
	return false
}

// mediaType drops parameters such as charset from a detected type.
func mediaType(m *mimetype.MIME) string {
	s := m.String()
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = s[:i]
	}
	return s
}
