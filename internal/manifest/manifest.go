// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package manifest describes how a converted manuscript and its media
// relate. Build scans the article for figures; BuildBundle wraps the
// manuscript, the manifest and the media into the versioned resource map
// used by round-trip editors.
package manifest

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"mime"
	"path"
	"strings"

	"github.com/pdiddy/jats-engine/internal/assets"
	"github.com/pdiddy/jats-engine/internal/jats"
	"github.com/pdiddy/jats-engine/pkg/types"
)

// DefaultAssetType is used when an asset's type can be neither looked up
// from extracted media nor guessed from its extension.
const DefaultAssetType = "image/jpg"

// Build scans article XML for fig elements in document order. Each figure
// with at least one graphic yields one asset entry: the figure id, or
// ojs-fig-<position> when it has none, and the xlink:href of its first
// graphic. Figures without graphics are skipped. Media, when given, supply
// asset types by name.
func Build(articleXML []byte, media []types.MediaAsset) (*types.Manifest, error) {
	article, err := jats.Load(articleXML)
	if err != nil {
		return nil, err
	}

	byName := assets.ByName(media)
	m := New()
	for i, fig := range article.Root().FindElements(".//fig") {
		graphic := fig.FindElement(".//graphic")
		if graphic == nil {
			continue
		}
		id := fig.SelectAttrValue("id", "")
		if id == "" {
			id = fmt.Sprintf("ojs-fig-%d", i+1)
		}
		href := graphic.SelectAttrValue("xlink:href", "")
		m.Assets.Items = append(m.Assets.Items, types.ManifestAsset{
			ID:   id,
			Type: assetType(href, byName),
			Path: href,
		})
	}
	return m, nil
}

// New returns a manifest holding only the manuscript document entry.
func New() *types.Manifest {
	return &types.Manifest{
		Documents: types.ManifestDocuments{Items: []types.ManifestDocument{{
			ID:   types.ManuscriptID,
			Type: "article",
			Path: types.ManuscriptFile,
		}}},
	}
}

func assetType(href string, media map[string]types.MediaAsset) string {
	if a, ok := media[path.Base(href)]; ok && a.Type != "" {
		return a.Type
	}
	if t := mime.TypeByExtension(strings.ToLower(path.Ext(href))); t != "" {
		if i := strings.IndexByte(t, ';'); i >= 0 {
			t = t[:i]
		}
		return t
	}
	return DefaultAssetType
}

// Encode serializes a manifest as XML with a prolog.
func Encode(m *types.Manifest) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(m); err != nil {
		return nil, types.NewError(types.ErrConversionFailed, types.StagePackaging, "encoding manifest: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Decode parses manifest XML.
func Decode(data []byte) (*types.Manifest, error) {
	var m types.Manifest
	if err := xml.Unmarshal(data, &m); err != nil {
		return nil, types.NewError(types.ErrMalformedSource, types.StageParsing, "parsing manifest: %w", err)
	}
	return &m, nil
}
