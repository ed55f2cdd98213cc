// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/jats-engine/internal/validate"
	"github.com/pdiddy/jats-engine/pkg/types"
)

// envKeyReplacer maps nested keys such as validation.image to
// JATS_ENGINE_VALIDATION_IMAGE.
var envKeyReplacer = strings.NewReplacer(".", "_")

func setDefaults(v *viper.Viper) {
	v.SetDefault("output_dir", "output")

	v.SetDefault("conversion.split_references", false)
	v.SetDefault("conversion.reorder_references", false)
	v.SetDefault("conversion.process_brackets", false)
	v.SetDefault("conversion.reference_check", false)
	v.SetDefault("conversion.verbose_logging", false)
	v.SetDefault("conversion.unresolved_policy", string(types.UnresolvedWarn))
	v.SetDefault("conversion.preserve_article_type", false)

	v.SetDefault("validation.enabled", false)
	v.SetDefault("validation.image", validate.DefaultImage)
	v.SetDefault("validation.strict", false)

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.dir", defaultHistoryDir())

	v.SetDefault("bundle.media_base_url", "")
}

func defaultHistoryDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".jats-engine"
	}
	return filepath.Join(home, ".local", "share", "jats-engine")
}

// loadConfig decodes the merged file, env and default settings.
func loadConfig(v *viper.Viper) (types.EngineConfig, error) {
	var cfg types.EngineConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}
	if err := checkPolicy(cfg.Conversion.UnresolvedPolicy); err != nil {
		return cfg, err
	}
	if cfg.Conversion.UnresolvedPolicy == "" {
		cfg.Conversion.UnresolvedPolicy = types.UnresolvedWarn
	}
	if cfg.Validation.Image == "" {
		cfg.Validation.Image = validate.DefaultImage
	}
	if cfg.Context != nil {
		canonicalizeLocales(cfg.Context)
	}
	return cfg, nil
}

// canonicalizeLocales undoes viper's lower-casing of map keys so the
// context.names keys match primary_locale again.
func canonicalizeLocales(ctx *types.JournalContext) {
	ctx.PrimaryLocale = canonicalLocale(ctx.PrimaryLocale)
	if len(ctx.Names) == 0 {
		return
	}
	names := make(map[string]string, len(ctx.Names))
	for k, v := range ctx.Names {
		names[canonicalLocale(k)] = v
	}
	ctx.Names = names
}

// canonicalLocale formats a locale as en_US.
func canonicalLocale(s string) string {
	lang, region, ok := strings.Cut(strings.ReplaceAll(s, "-", "_"), "_")
	if !ok {
		return strings.ToLower(lang)
	}
	return strings.ToLower(lang) + "_" + strings.ToUpper(region)
}

func checkPolicy(p types.UnresolvedPolicy) error {
	switch p {
	case "", types.UnresolvedWarn, types.UnresolvedFail:
		return nil
	}
	return fmt.Errorf("invalid unresolved_policy %q: use warn or fail", p)
}

// loadContext reads a journal context YAML file.
func loadContext(path string) (*types.JournalContext, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading context file: %w", err)
	}
	var ctx types.JournalContext
	if err := yaml.Unmarshal(data, &ctx); err != nil {
		return nil, fmt.Errorf("parsing context file %s: %w", path, err)
	}
	return &ctx, nil
}

// journalContext returns the --context file when given, else the config's
// context section.
func journalContext(cmd *cobra.Command, cfg types.EngineConfig) (*types.JournalContext, error) {
	path, _ := cmd.Flags().GetString("context")
	if path == "" {
		return cfg.Context, nil
	}
	return loadContext(path)
}

// addConversionFlags registers the reference processing switches.
func addConversionFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Bool("split-references", false, "split reference entries that bundle several citations")
	f.Bool("reorder-references", false, "order the reference list by first citation")
	f.Bool("process-brackets", false, "turn bracketed citations such as [1-3] into xref elements")
	f.Bool("reference-check", false, "report citation markers that do not resolve")
	f.Bool("verbose", false, "log every structural decision")
	f.Bool("fail-unresolved", false, "fail the conversion on unresolved citations (implies --reference-check)")
	f.Bool("preserve-article-type", false, "keep the source article-type instead of research-article")
	f.String("context", "", "journal context YAML file")
}

// conversionOptions overlays the flags the user set on the configured
// options.
func conversionOptions(cmd *cobra.Command, base types.ConversionOptions) types.ConversionOptions {
	opts := base
	f := cmd.Flags()
	set := func(name string, dst *bool) {
		if f.Changed(name) {
			*dst, _ = f.GetBool(name)
		}
	}
	set("split-references", &opts.SplitReferences)
	set("reorder-references", &opts.ReorderReferences)
	set("process-brackets", &opts.ProcessBrackets)
	set("reference-check", &opts.ReferenceCheck)
	set("verbose", &opts.VerboseLogging)
	set("preserve-article-type", &opts.PreserveArticleType)

	if fail, _ := f.GetBool("fail-unresolved"); fail {
		opts.ReferenceCheck = true
		opts.UnresolvedPolicy = types.UnresolvedFail
	}
	if opts.UnresolvedPolicy == "" {
		opts.UnresolvedPolicy = types.UnresolvedWarn
	}
	return opts
}

// sourceFormat parses --format; "auto" and "" mean detect.
func sourceFormat(cmd *cobra.Command) (types.SourceFormat, error) {
	name, _ := cmd.Flags().GetString("format")
	if name == "" || strings.EqualFold(name, "auto") {
		return "", nil
	}
	return types.ParseSourceFormat(name)
}
