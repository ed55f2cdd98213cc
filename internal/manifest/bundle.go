// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package manifest

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"

	"github.com/pdiddy/jats-engine/internal/assets"
	"github.com/pdiddy/jats-engine/pkg/types"
)

// BundleVersion is the resource map format version.
const BundleVersion = 1

// BuildBundle packages the manuscript, its manifest and the attachable
// media. Media that are not PNG or JPEG are left out and their names
// returned. With a media base URL configured, media become url resources
// pointing at <base>/<name>; otherwise their bytes are inlined as base64.
func BuildBundle(manuscript []byte, m *types.Manifest, media []types.MediaAsset, cfg types.BundleConfig) (*types.Bundle, []string, error) {
	manifestXML, err := Encode(m)
	if err != nil {
		return nil, nil, err
	}

	var stamp int64
	if !cfg.Timestamp.IsZero() {
		stamp = cfg.Timestamp.UnixMilli()
	}

	b := &types.Bundle{
		Version: BundleVersion,
		Resources: map[string]types.Resource{
			types.ManifestFile:   textResource(manifestXML, stamp),
			types.ManuscriptFile: textResource(manuscript, stamp),
		},
	}

	var skipped []string
	for _, a := range media {
		if !assets.IsImage(a.Type) {
			skipped = append(skipped, a.Name)
			continue
		}
		res := types.Resource{Size: a.Size(), CreatedAt: stamp, UpdatedAt: stamp}
		if cfg.MediaBaseURL != "" {
			res.Encoding = types.EncodingURL
			res.Data = strings.TrimRight(cfg.MediaBaseURL, "/") + "/" + url.PathEscape(a.Name)
		} else {
			res.Encoding = types.EncodingBase64
			res.Data = base64.StdEncoding.EncodeToString(a.Data)
		}
		b.Resources[a.Name] = res
	}
	return b, skipped, nil
}

func textResource(data []byte, stamp int64) types.Resource {
	return types.Resource{
		Encoding:  types.EncodingUTF8,
		Data:      string(data),
		Size:      len(data),
		CreatedAt: stamp,
		UpdatedAt: stamp,
	}
}

// WriteBundle writes b as indented JSON.
func WriteBundle(w io.Writer, b *types.Bundle) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(b); err != nil {
		return fmt.Errorf("encoding bundle: %w", err)
	}
	return nil
}

// ReadBundle decodes a bundle written by WriteBundle or by an editor.
func ReadBundle(r io.Reader) (*types.Bundle, error) {
	var b types.Bundle
	if err := json.NewDecoder(r).Decode(&b); err != nil {
		return nil, types.NewError(types.ErrMalformedSource, types.StageParsing, "decoding bundle: %w", err)
	}
	if b.Resources == nil {
		return nil, types.NewError(types.ErrMalformedSource, types.StageParsing, "bundle has no resources")
	}
	return &b, nil
}

// Manuscript returns the manuscript bytes stored in a bundle.
func Manuscript(b *types.Bundle) ([]byte, error) {
	return resourceData(b, types.ManuscriptFile)
}

// Media returns the inline media of a bundle. URL resources are skipped
// since their bytes live elsewhere.
func Media(b *types.Bundle) ([]types.MediaAsset, error) {
	var media []types.MediaAsset
	for name, res := range b.Resources {
		if name == types.ManifestFile || name == types.ManuscriptFile || res.Encoding != types.EncodingBase64 {
			continue
		}
		data, err := resourceData(b, name)
		if err != nil {
			return nil, err
		}
		media = append(media, types.MediaAsset{Name: name, DocumentID: types.ManuscriptID, Data: data})
	}
	sort.Slice(media, func(i, j int) bool { return media[i].Name < media[j].Name })
	return media, nil
}

func resourceData(b *types.Bundle, name string) ([]byte, error) {
	res, ok := b.Resources[name]
	if !ok {
		return nil, types.NewError(types.ErrMalformedSource, types.StageParsing, "bundle has no %s resource", name)
	}
	switch res.Encoding {
	case types.EncodingUTF8, "":
		return []byte(res.Data), nil
	case types.EncodingBase64:
		data, err := base64.StdEncoding.DecodeString(res.Data)
		if err != nil {
			return nil, types.NewError(types.ErrMalformedSource, types.StageParsing, "decoding %s: %w", name, err)
		}
		return data, nil
	}
	return nil, types.NewError(types.ErrUnsupportedFormat, types.StageParsing,
		"resource %s has encoding %q", name, res.Encoding)
}
