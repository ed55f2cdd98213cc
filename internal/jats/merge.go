// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package jats

import (
	"github.com/beevik/etree"

	"github.com/pdiddy/jats-engine/pkg/types"
)

// Merge writes the body and back of an edited article back into the stored
// original. The original front matter, prolog and any other top-level
// elements are kept. A section missing from the edited document leaves the
// original one in place.
func Merge(original, edited []byte) ([]byte, error) {
	orig, err := Load(original)
	if err != nil {
		return nil, err
	}
	edit, err := Load(edited)
	if err != nil {
		return nil, err
	}

	for _, tag := range []string{"body", "back"} {
		replacements := copyAll(edit.Root().SelectElements(tag))
		if len(replacements) == 0 {
			continue
		}
		for _, r := range replacements {
			stripXlinkDecls(r)
		}
		replaceSection(orig.Root(), tag, replacements)
	}

	out, err := orig.Bytes()
	if err != nil {
		return nil, types.WrapError(types.ErrConversionFailed, types.StagePackaging, err)
	}
	return out, nil
}

// replaceSection swaps every <tag> child of root for replacements, inserted
// where the first one was (or at the end when root had none).
func replaceSection(root *etree.Element, tag string, replacements []*etree.Element) {
	existing := root.SelectElements(tag)
	index := len(root.Child)
	if len(existing) > 0 {
		index = existing[0].Index()
	}
	for _, e := range existing {
		root.RemoveChild(e)
	}
	if index > len(root.Child) {
		index = len(root.Child)
	}
	for i, r := range replacements {
		root.InsertChildAt(index+i, r)
	}
}
