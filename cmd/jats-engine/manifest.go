// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pdiddy/jats-engine/internal/assets"
	"github.com/pdiddy/jats-engine/internal/manifest"
)

var manifestCmd = &cobra.Command{
	Use:   "manifest FILE",
	Short: "Print the asset manifest of a JATS article",
	Long: `Manifest reads a JATS article and prints its manifest.xml: one asset per
figure that carries a graphic. Asset types come from the files in
--media-dir when present, else from the file extension.`,
	Args: cobra.ExactArgs(1),
	RunE: runManifest,
}

func runManifest(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading article: %w", err)
	}

	mediaDir, _ := cmd.Flags().GetString("media-dir")
	if mediaDir == "" {
		mediaDir = filepath.Join(filepath.Dir(args[0]), assets.MediaDir)
	}
	media, err := assets.ReadDir(mediaDir)
	if err != nil {
		return err
	}

	m, err := manifest.Build(data, media)
	if err != nil {
		return err
	}
	out, err := manifest.Encode(m)
	if err != nil {
		return err
	}
	outPath, _ := cmd.Flags().GetString("output")
	return writeOutput(outPath, out)
}

func init() {
	manifestCmd.Flags().String("media-dir", "", "directory holding the article's media (default: <dir of FILE>/media)")
	manifestCmd.Flags().StringP("output", "o", "", "write the manifest to this file instead of stdout")

	rootCmd.AddCommand(manifestCmd)
}
