// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/jats-engine/internal/assets"
	"github.com/pdiddy/jats-engine/internal/manifest"
	"github.com/pdiddy/jats-engine/pkg/types"
)

const (
	// LogFile and ErrorLogFile hold the conversion log next to the outputs.
	LogFile      = "conversion_log.txt"
	ErrorLogFile = "error_log.txt"

	// BundleFile is the editor bundle written when bundling is on.
	BundleFile = "bundle.json"
)

// Status is the outcome of converting one file in a batch.
type Status string

const (
	StatusConverted Status = "converted"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// BatchOptions control file-level conversion.
type BatchOptions struct {
	// OutputDir receives one <name>/ directory per source file.
	OutputDir string

	// Format forces the source format; empty detects per file.
	Format types.SourceFormat

	Options types.ConversionOptions
	Context *types.JournalContext

	// Force reconverts files whose output already exists.
	Force bool

	// Bundle also writes bundle.json using BundleConfig.
	Bundle       bool
	BundleConfig types.BundleConfig

	// Workers bounds concurrent conversions (default 1).
	Workers int
}

// BatchResult holds the outcome of a batch conversion run.
type BatchResult struct {
	Converted int
	Skipped   int
	Failed    int

	// Results holds one entry per converted or failed file, in input
	// order. Skipped files and files refused for an output name
	// collision have none.
	Results []*types.ConversionResult

	// Sources holds the source path of each entry in Results.
	Sources []string
}

// Total returns the number of files processed.
func (r BatchResult) Total() int {
	return r.Converted + r.Skipped + r.Failed
}

// HasFailures reports whether any file failed conversion.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// OutputName derives the per-file output directory name from a source path.
func OutputName(srcPath string) string {
	return strings.TrimSuffix(filepath.Base(srcPath), filepath.Ext(srcPath))
}

// ConvertFile converts one source file into opts.OutputDir/<name>/:
// manuscript.xml, manifest.xml, media/, conversion_log.txt and, when
// bundling, bundle.json. Outputs are assembled in a temporary directory and
// renamed into place, so a failed conversion never leaves a partial
// manuscript behind; it leaves only <name>/error_log.txt. Existing output
// is skipped unless opts.Force is set. One status line is written to w.
func (e *Engine) ConvertFile(ctx context.Context, srcPath string, opts BatchOptions, w io.Writer) (Status, *types.ConversionResult) {
	name := OutputName(srcPath)
	outDir := filepath.Join(opts.OutputDir, name)

	if _, err := os.Stat(filepath.Join(outDir, types.ManuscriptFile)); err == nil && !opts.Force {
		fmt.Fprintf(w, "skipped: %s (already exists)\n", name)
		return StatusSkipped, nil
	}

	data, err := os.ReadFile(srcPath)
	if err != nil {
		fmt.Fprintf(w, "failed:  %s (%v)\n", name, err)
		return StatusFailed, nil
	}

	result := e.Convert(ctx, Request{
		Name:    filepath.Base(srcPath),
		Data:    data,
		Format:  opts.Format,
		Options: opts.Options,
		Context: opts.Context,
	})

	if !result.Success {
		if err := writeErrorLog(outDir, result); err != nil {
			fmt.Fprintf(w, "failed:  %s (%s; %v)\n", name, result.Error, err)
			return StatusFailed, result
		}
		fmt.Fprintf(w, "failed:  %s (%s)\n", name, result.Error)
		return StatusFailed, result
	}

	if err := writeOutputs(outDir, result, opts); err != nil {
		fmt.Fprintf(w, "failed:  %s (%v)\n", name, err)
		return StatusFailed, result
	}

	if n := result.Warnings(); n > 0 {
		fmt.Fprintf(w, "converted: %s (%d warning(s))\n", name, n)
	} else {
		fmt.Fprintf(w, "converted: %s\n", name)
	}
	return StatusConverted, result
}

// ConvertBatch converts every path, printing per-file status to w and a
// summary line at the end. Paths that map to the same output directory
// (a.docx and a.xml) are not converted after the first one; each later
// path fails without touching the first path's output.
func (e *Engine) ConvertBatch(ctx context.Context, paths []string, opts BatchOptions, w io.Writer) BatchResult {
	statuses := make([]Status, len(paths))
	results := make([]*types.ConversionResult, len(paths))

	claimed := make(map[string]string, len(paths))
	for i, p := range paths {
		name := OutputName(p)
		if first, ok := claimed[name]; ok {
			fmt.Fprintf(w, "failed:  %s (%s writes to the same output as %s)\n", name, p, first)
			statuses[i] = StatusFailed
			continue
		}
		claimed[name] = p
	}

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	var mu sync.Mutex
	out := writerFunc(func(p []byte) (int, error) {
		mu.Lock()
		defer mu.Unlock()
		return w.Write(p)
	})

	var g errgroup.Group
	g.SetLimit(workers)
	for i, p := range paths {
		if statuses[i] != "" {
			continue
		}
		i, p := i, p
		g.Go(func() error {
			statuses[i], results[i] = e.ConvertFile(ctx, p, opts, out)
			return nil
		})
	}
	_ = g.Wait()

	var result BatchResult
	for i, s := range statuses {
		switch s {
		case StatusConverted:
			result.Converted++
		case StatusSkipped:
			result.Skipped++
		case StatusFailed:
			result.Failed++
		}
		if results[i] != nil {
			result.Results = append(result.Results, results[i])
			result.Sources = append(result.Sources, paths[i])
		}
	}
	fmt.Fprintf(w, "\nBatch summary: %d converted, %d skipped, %d failed (total: %d)\n",
		result.Converted, result.Skipped, result.Failed, result.Total())
	return result
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

func writeOutputs(outDir string, result *types.ConversionResult, opts BatchOptions) error {
	if err := os.MkdirAll(filepath.Dir(outDir), 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	tmp, err := os.MkdirTemp(filepath.Dir(outDir), "."+filepath.Base(outDir)+"-")
	if err != nil {
		return fmt.Errorf("creating staging dir: %w", err)
	}
	defer os.RemoveAll(tmp)
	if err := os.Chmod(tmp, 0o755); err != nil {
		return fmt.Errorf("creating staging dir: %w", err)
	}

	manifestXML, err := manifest.Encode(result.Manifest)
	if err != nil {
		return err
	}
	files := map[string][]byte{
		types.ManuscriptFile: result.Output,
		types.ManifestFile:   manifestXML,
		LogFile:              []byte(result.LogText() + "\n"),
	}
	if opts.Bundle {
		b, _, err := manifest.BuildBundle(result.Output, result.Manifest, result.Media, opts.BundleConfig)
		if err != nil {
			return err
		}
		f, err := os.Create(filepath.Join(tmp, BundleFile))
		if err != nil {
			return fmt.Errorf("creating bundle: %w", err)
		}
		werr := manifest.WriteBundle(f, b)
		if cerr := f.Close(); werr == nil {
			werr = cerr
		}
		if werr != nil {
			return werr
		}
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(tmp, name), data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
	}
	if err := assets.WriteDir(filepath.Join(tmp, assets.MediaDir), result.Media); err != nil {
		return err
	}

	if err := os.RemoveAll(outDir); err != nil {
		return fmt.Errorf("replacing %s: %w", outDir, err)
	}
	if err := os.Rename(tmp, outDir); err != nil {
		return fmt.Errorf("moving outputs into place: %w", err)
	}
	return nil
}

func writeErrorLog(outDir string, result *types.ConversionResult) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(outDir, ErrorLogFile), []byte(result.LogText()+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing error log: %w", err)
	}
	return nil
}
