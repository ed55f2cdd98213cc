// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "encoding/xml"

const (
	// ManifestFile and ManuscriptFile are the resource names used in bundles.
	ManifestFile   = "manifest.xml"
	ManuscriptFile = "manuscript.xml"

	// ManuscriptID is the document id of the converted manuscript.
	ManuscriptID = "manuscript"
)

// Manifest lists the manuscript and its media assets. It is built once per
// conversion and serialized as:
//
//	<dar>
//	  <documents><document id="manuscript" type="article" path="manuscript.xml"/></documents>
//	  <assets><asset id="fig1" type="image/png" path="image1.png"/></assets>
//	</dar>
type Manifest struct {
	XMLName   xml.Name          `xml:"dar" json:"-" yaml:"-"`
	Documents ManifestDocuments `xml:"documents" json:"documents" yaml:"documents"`
	Assets    ManifestAssets    `xml:"assets" json:"assets" yaml:"assets"`
}

// ManifestDocuments wraps the document list so an empty list still encodes.
type ManifestDocuments struct {
	Items []ManifestDocument `xml:"document" json:"items" yaml:"items"`
}

// ManifestAssets wraps the asset list so an empty list still encodes as <assets></assets>.
type ManifestAssets struct {
	Items []ManifestAsset `xml:"asset" json:"items" yaml:"items"`
}

// ManifestDocument is one document entry.
type ManifestDocument struct {
	ID   string `xml:"id,attr" json:"id" yaml:"id"`
	Type string `xml:"type,attr" json:"type" yaml:"type"`
	Path string `xml:"path,attr" json:"path" yaml:"path"`
}

// ManifestAsset is one asset entry.
type ManifestAsset struct {
	ID   string `xml:"id,attr" json:"id" yaml:"id"`
	Type string `xml:"type,attr" json:"type" yaml:"type"`
	Path string `xml:"path,attr" json:"path" yaml:"path"`
}

// Resource encodings used in bundles.
const (
	EncodingUTF8   = "utf8"
	EncodingURL    = "url"
	EncodingBase64 = "base64"
)

// Bundle is the versioned resource map handed to round-trip editors.
type Bundle struct {
	Version   int                 `json:"version"`
	Resources map[string]Resource `json:"resources"`
}

// Resource is one entry of a Bundle.
type Resource struct {
	Encoding  string `json:"encoding"`
	Data      string `json:"data"`
	Size      int    `json:"size"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}
