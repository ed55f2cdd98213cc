// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/jats-engine/internal/container"
	"github.com/pdiddy/jats-engine/internal/history"
	"github.com/pdiddy/jats-engine/internal/pipeline"
	"github.com/pdiddy/jats-engine/internal/validate"
	"github.com/pdiddy/jats-engine/pkg/types"
)

var convertCmd = &cobra.Command{
	Use:   "convert [files...]",
	Short: "Convert DOCX or JATS manuscripts to normalized JATS",
	Long: `Convert runs the full pipeline on each file: structural conversion,
reference processing, asset extraction and packaging. Each file gets an
output directory <output-dir>/<name>/ holding manuscript.xml, manifest.xml,
media/ and conversion_log.txt (and bundle.json with --bundle). A failed
file leaves only error_log.txt.

Existing outputs are skipped unless --force is given.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConvert,
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}

	format, err := sourceFormat(cmd)
	if err != nil {
		return err
	}
	jctx, err := journalContext(cmd, cfg)
	if err != nil {
		return err
	}

	opts := pipeline.BatchOptions{
		OutputDir: cfg.OutputDir,
		Format:    format,
		Options:   conversionOptions(cmd, cfg.Conversion),
		Context:   jctx,
	}
	if dir, _ := cmd.Flags().GetString("output-dir"); dir != "" {
		opts.OutputDir = dir
	}
	opts.Force, _ = cmd.Flags().GetBool("force")
	opts.Workers, _ = cmd.Flags().GetInt("workers")
	opts.Bundle, _ = cmd.Flags().GetBool("bundle")
	opts.BundleConfig = cfg.Bundle
	if u, _ := cmd.Flags().GetString("media-base-url"); u != "" {
		opts.BundleConfig.MediaBaseURL = u
	}

	engineOpts, err := engineOptions(cmd, cfg.Validation)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	result := pipeline.New(engineOpts...).ConvertBatch(ctx, args, opts, os.Stdout)

	noHistory, _ := cmd.Flags().GetBool("no-history")
	if cfg.History.Enabled && !noHistory {
		if err := recordHistory(ctx, cfg.History.Dir, result, opts); err != nil {
			fmt.Fprintf(os.Stderr, "warning: history not recorded: %v\n", err)
		}
	}

	if result.HasFailures() {
		return fmt.Errorf("%d file(s) failed conversion", result.Failed)
	}
	return nil
}

// engineOptions builds the validator and progress options.
func engineOptions(cmd *cobra.Command, vcfg types.ValidationConfig) ([]pipeline.Option, error) {
	var opts []pipeline.Option

	if progress, _ := cmd.Flags().GetBool("progress"); progress {
		opts = append(opts, pipeline.WithProgress(os.Stderr))
	}

	if cmd.Flags().Changed("validate") {
		vcfg.Enabled, _ = cmd.Flags().GetBool("validate")
	}
	if cmd.Flags().Changed("strict-validation") {
		vcfg.Strict, _ = cmd.Flags().GetBool("strict-validation")
	}
	if !vcfg.Enabled {
		return opts, nil
	}

	v, err := newValidator(vcfg.Image)
	if err != nil {
		if vcfg.Strict {
			return nil, err
		}
		fmt.Fprintf(os.Stderr, "warning: validation disabled: %v\n", err)
		return opts, nil
	}
	return append(opts, pipeline.WithValidator(v, vcfg.Strict)), nil
}

func newValidator(image string) (validate.Validator, error) {
	rt, err := container.DetectRuntime()
	if err != nil {
		return nil, err
	}
	return validate.NewContainerValidator(rt, image)
}

func recordHistory(ctx context.Context, dir string, result pipeline.BatchResult, opts pipeline.BatchOptions) error {
	if len(result.Results) == 0 {
		return nil
	}
	store, err := history.Open(dir)
	if err != nil {
		return err
	}
	defer store.Close()

	for i, r := range result.Results {
		src := result.Sources[i]
		if abs, err := filepath.Abs(src); err == nil {
			src = abs
		}
		if err := store.Record(ctx, history.Entry{
			Result:    r,
			Source:    src,
			Format:    opts.Format,
			Options:   opts.Options,
			OutputDir: filepath.Join(opts.OutputDir, pipeline.OutputName(src)),
		}); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	addConversionFlags(convertCmd)
	convertCmd.Flags().String("format", "auto", "source format: auto, docx, or jats")
	convertCmd.Flags().String("output-dir", "", "base directory for outputs (default from config: output)")
	convertCmd.Flags().Bool("force", false, "reconvert files whose output already exists")
	convertCmd.Flags().Int("workers", 1, "number of files converted in parallel")
	convertCmd.Flags().Bool("bundle", false, "also write an editor bundle (bundle.json)")
	convertCmd.Flags().String("media-base-url", "", "reference bundle media by URL under this base instead of inlining them")
	convertCmd.Flags().Bool("validate", false, "validate the output with the JATS validator image")
	convertCmd.Flags().Bool("strict-validation", false, "fail conversions that do not validate")
	convertCmd.Flags().Bool("progress", false, "stream conversion logs to stderr")
	convertCmd.Flags().Bool("no-history", false, "do not record this run in the history database")

	rootCmd.AddCommand(convertCmd)
}
