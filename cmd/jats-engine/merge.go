// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/jats-engine/internal/jats"
	"github.com/pdiddy/jats-engine/internal/manifest"
)

var mergeCmd = &cobra.Command{
	Use:   "merge ORIGINAL EDITED",
	Short: "Merge an edited article body back into the stored manuscript",
	Long: `Merge replaces the body and back matter of ORIGINAL with those of
EDITED and keeps ORIGINAL's front matter. EDITED is either a JATS file or
an editor bundle (JSON) whose manuscript.xml resource holds the edit.`,
	Args: cobra.ExactArgs(2),
	RunE: runMerge,
}

func runMerge(cmd *cobra.Command, args []string) error {
	original, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading original: %w", err)
	}
	edited, err := readEdited(args[1])
	if err != nil {
		return err
	}

	merged, err := jats.Merge(original, edited)
	if err != nil {
		return err
	}
	outPath, _ := cmd.Flags().GetString("output")
	return writeOutput(outPath, merged)
}

// readEdited returns the edited manuscript, unwrapping editor bundles.
func readEdited(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading edited article: %w", err)
	}
	if !isJSON(data) {
		return data, nil
	}
	b, err := manifest.ReadBundle(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return manifest.Manuscript(b)
}

func isJSON(data []byte) bool {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")))
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func init() {
	mergeCmd.Flags().StringP("output", "o", "", "write the merged article to this file instead of stdout")

	rootCmd.AddCommand(mergeCmd)
}
