// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/jats-engine/internal/convert"
	"github.com/pdiddy/jats-engine/internal/refs"
	"github.com/pdiddy/jats-engine/pkg/types"
)

var refsCmd = &cobra.Command{
	Use:   "refs FILE",
	Short: "Export the reference list as CSL-YAML",
	Long: `Refs converts FILE (DOCX or JATS), runs the selected reference
processing steps and prints the resulting reference list as CSL-YAML,
ready for citeproc tools and reference managers.`,
	Args: cobra.ExactArgs(1),
	RunE: runRefs,
}

func runRefs(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading source: %w", err)
	}
	format, err := sourceFormat(cmd)
	if err != nil {
		return err
	}
	opts := conversionOptions(cmd, types.ConversionOptions{})

	article, _, err := convert.ToArticle(data, format, nil, opts)
	if err != nil {
		return err
	}
	report, err := refs.Normalize(article, opts)
	if err != nil {
		return err
	}
	for _, d := range report.Diagnostics {
		fmt.Fprintln(os.Stderr, d.String())
	}

	var buf bytes.Buffer
	if err := refs.FormatCSL(article, &buf); err != nil {
		return err
	}
	outPath, _ := cmd.Flags().GetString("output")
	return writeOutput(outPath, buf.Bytes())
}

func init() {
	addConversionFlags(refsCmd)
	refsCmd.Flags().String("format", "auto", "source format: auto, docx, or jats")
	refsCmd.Flags().StringP("output", "o", "", "write the CSL-YAML to this file instead of stdout")

	rootCmd.AddCommand(refsCmd)
}
