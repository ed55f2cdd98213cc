// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/jats-engine/internal/assets"
	"github.com/pdiddy/jats-engine/internal/manifest"
)

var bundleCmd = &cobra.Command{
	Use:   "bundle FILE",
	Short: "Package a JATS article and its media as an editor bundle",
	Long: `Bundle builds the JSON resource map an editor loads: manifest.xml,
manuscript.xml and every PNG or JPEG image from --media-dir. Images are
inlined as base64 unless --media-base-url is set, in which case they are
referenced as <base>/<name>.`,
	Args: cobra.ExactArgs(1),
	RunE: runBundle,
}

func runBundle(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}

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

	bcfg := cfg.Bundle
	if u, _ := cmd.Flags().GetString("media-base-url"); u != "" {
		bcfg.MediaBaseURL = u
	}
	bcfg.Timestamp = time.Now()

	b, skipped, err := manifest.BuildBundle(data, m, media, bcfg)
	if err != nil {
		return err
	}
	for _, name := range skipped {
		fmt.Fprintf(os.Stderr, "skipped: %s (not a PNG or JPEG image)\n", name)
	}

	var buf bytes.Buffer
	if err := manifest.WriteBundle(&buf, b); err != nil {
		return err
	}
	outPath, _ := cmd.Flags().GetString("output")
	return writeOutput(outPath, buf.Bytes())
}

func init() {
	bundleCmd.Flags().String("media-dir", "", "directory holding the article's media (default: <dir of FILE>/media)")
	bundleCmd.Flags().String("media-base-url", "", "reference media by URL under this base instead of inlining them")
	bundleCmd.Flags().StringP("output", "o", "", "write the bundle to this file instead of stdout")

	rootCmd.AddCommand(bundleCmd)
}
