// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/jats-engine/internal/assets"
)

var assetsCmd = &cobra.Command{
	Use:   "assets FILE",
	Short: "List or extract the media embedded in a DOCX package",
	Long: `Assets lists the media files embedded in a DOCX (or zipped article)
package with their sniffed types and sizes. With --out the files are
written to that directory.`,
	Args: cobra.ExactArgs(1),
	RunE: runAssets,
}

func runAssets(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading source: %w", err)
	}
	list, err := assets.Extract(data)
	if err != nil {
		return err
	}

	if len(list) == 0 {
		fmt.Println("No media found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-8s  %-30s  %-12s  %10s  %s\n", "ID", "Name", "Type", "Bytes", "Image")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 76))
	for _, a := range list {
		image := "no"
		if assets.IsImage(a.Type) {
			image = "yes"
		}
		fmt.Fprintf(os.Stdout, "%-8s  %-30s  %-12s  %10d  %s\n", a.ID, a.Name, a.Type, len(a.Data), image)
	}
	fmt.Fprintf(os.Stdout, "\n%d asset(s)\n", len(list))

	outDir, _ := cmd.Flags().GetString("out")
	if outDir == "" {
		return nil
	}
	if err := assets.WriteDir(outDir, list); err != nil {
		return err
	}
	fmt.Printf("Extracted to %s\n", outDir)
	return nil
}

func init() {
	assetsCmd.Flags().String("out", "", "write the media files to this directory")

	rootCmd.AddCommand(assetsCmd)
}
