// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pdiddy/jats-engine/internal/manifest"
	"github.com/pdiddy/jats-engine/pkg/types"
)

// writeSource writes data to dir/name and returns the path.
func writeSource(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestConvertFile(t *testing.T) {
	tests := []struct {
		name       string
		source     []byte
		preCreate  bool
		force      bool
		wantStatus Status
		wantLog    string
	}{
		{name: "successful conversion", source: jatsWithCitations(`<p>[1]</p>`), wantStatus: StatusConverted, wantLog: "converted:"},
		{name: "skip existing output", source: jatsWithCitations(`<p>[1]</p>`), preCreate: true, wantStatus: StatusSkipped, wantLog: "skipped:"},
		{name: "force reconverts", source: jatsWithCitations(`<p>[1]</p>`), preCreate: true, force: true, wantStatus: StatusConverted, wantLog: "converted:"},
		{name: "conversion failure", source: []byte("<article><body>"), wantStatus: StatusFailed, wantLog: "failed:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := writeSource(t, t.TempDir(), "paper.xml", tt.source)
			out := t.TempDir()
			if tt.preCreate {
				if err := os.MkdirAll(filepath.Join(out, "paper"), 0o755); err != nil {
					t.Fatal(err)
				}
				if err := os.WriteFile(filepath.Join(out, "paper", types.ManuscriptFile), []byte("old"), 0o644); err != nil {
					t.Fatal(err)
				}
			}

			var log bytes.Buffer
			status, _ := newTestEngine().ConvertFile(context.Background(), src,
				BatchOptions{OutputDir: out, Format: types.FormatJATS, Force: tt.force}, &log)

			if status != tt.wantStatus {
				t.Errorf("status = %q, want %q", status, tt.wantStatus)
			}
			if !strings.Contains(log.String(), tt.wantLog) {
				t.Errorf("log output %q does not contain %q", log.String(), tt.wantLog)
			}
		})
	}
}

func TestConvertFile_Outputs(t *testing.T) {
	src := writeSource(t, t.TempDir(), "paper.docx", docxWithImages(t, 5, 2))
	out := t.TempDir()

	var log bytes.Buffer
	status, result := newTestEngine().ConvertFile(context.Background(), src, BatchOptions{
		OutputDir:    out,
		Bundle:       true,
		BundleConfig: types.BundleConfig{MediaBaseURL: "https://files.example/media"},
	}, &log)
	if status != StatusConverted {
		t.Fatalf("status = %q, log:\n%s", status, log.String())
	}
	if result == nil || !result.Success {
		t.Fatal("expected a successful result")
	}

	dir := filepath.Join(out, "paper")
	for _, name := range []string{types.ManuscriptFile, types.ManifestFile, LogFile, BundleFile, "media/image1.png", "media/image2.png"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing output %s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, ErrorLogFile)); !os.IsNotExist(err) {
		t.Errorf("error log should not exist on success")
	}

	f, err := os.Open(filepath.Join(dir, BundleFile))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	b, err := manifest.ReadBundle(f)
	if err != nil {
		t.Fatal(err)
	}
	img := b.Resources["image1.png"]
	if img.Encoding != types.EncodingURL || img.Data != "https://files.example/media/image1.png" {
		t.Errorf("image1.png resource = %+v", img)
	}

	logData, err := os.ReadFile(filepath.Join(dir, LogFile))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(logData), "✓ Conversion completed successfully!") {
		t.Errorf("conversion log missing success marker:\n%s", logData)
	}

	entries, err := os.ReadDir(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("staging directories left behind: %v", entries)
	}
}

func TestConvertFile_FailureLeavesOnlyErrorLog(t *testing.T) {
	src := writeSource(t, t.TempDir(), "broken.xml", []byte("not xml at all"))
	out := t.TempDir()

	var log bytes.Buffer
	status, result := newTestEngine().ConvertFile(context.Background(), src,
		BatchOptions{OutputDir: out, Format: types.FormatJATS}, &log)
	if status != StatusFailed {
		t.Fatalf("status = %q, want failed", status)
	}
	if result.ErrorKind != types.ErrMalformedSource {
		t.Errorf("ErrorKind = %q", result.ErrorKind)
	}

	dir := filepath.Join(out, "broken")
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != ErrorLogFile {
		t.Errorf("output dir should only hold %s, got %v", ErrorLogFile, entries)
	}
	data, err := os.ReadFile(filepath.Join(dir, ErrorLogFile))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "FATAL ERROR") {
		t.Errorf("error log missing FATAL ERROR:\n%s", data)
	}
}

func TestConvertBatch(t *testing.T) {
	srcDir := t.TempDir()
	paths := []string{
		writeSource(t, srcDir, "one.xml", jatsWithCitations(`<p>[1]</p>`)),
		writeSource(t, srcDir, "two.docx", docxWithImages(t, 2, 1)),
		writeSource(t, srcDir, "three.xml", []byte("garbage")),
		filepath.Join(srcDir, "missing.xml"),
	}
	out := t.TempDir()

	for _, workers := range []int{1, 3} {
		var log bytes.Buffer
		result := newTestEngine().ConvertBatch(context.Background(), paths,
			BatchOptions{OutputDir: out, Workers: workers, Force: true}, &log)

		if result.Converted != 2 || result.Failed != 2 || result.Skipped != 0 {
			t.Errorf("workers=%d: result = %+v\n%s", workers, result, log.String())
		}
		if result.Total() != 4 || !result.HasFailures() {
			t.Errorf("workers=%d: Total=%d HasFailures=%v", workers, result.Total(), result.HasFailures())
		}
		if len(result.Results) != 3 {
			t.Errorf("workers=%d: len(Results) = %d, want 3", workers, len(result.Results))
		}
		if len(result.Sources) != len(result.Results) || result.Sources[2] != paths[2] {
			t.Errorf("workers=%d: Sources = %v", workers, result.Sources)
		}
		if !strings.Contains(log.String(), "Batch summary: 2 converted, 0 skipped, 2 failed (total: 4)") {
			t.Errorf("workers=%d: missing summary in %q", workers, log.String())
		}
	}

	var log bytes.Buffer
	result := newTestEngine().ConvertBatch(context.Background(), paths[:2], BatchOptions{OutputDir: out}, &log)
	if result.Skipped != 2 {
		t.Errorf("second run should skip existing outputs, got %+v", result)
	}
}

func TestConvertBatch_OutputNameCollision(t *testing.T) {
	for _, workers := range []int{1, 4} {
		srcDir := t.TempDir()
		paths := []string{
			writeSource(t, srcDir, "a.docx", docxWithImages(t, 1, 1)),
			writeSource(t, srcDir, "a.xml", jatsWithCitations(`<p>[1]</p>`)),
			writeSource(t, srcDir, "b.xml", jatsWithCitations(`<p>[1]</p>`)),
		}
		out := t.TempDir()

		var log bytes.Buffer
		result := newTestEngine().ConvertBatch(context.Background(), paths,
			BatchOptions{OutputDir: out, Workers: workers}, &log)

		if result.Converted != 2 || result.Failed != 1 {
			t.Errorf("workers=%d: result = %+v\n%s", workers, result, log.String())
		}
		if len(result.Sources) != 2 || result.Sources[0] != paths[0] || result.Sources[1] != paths[2] {
			t.Errorf("workers=%d: Sources = %v", workers, result.Sources)
		}
		if !strings.Contains(log.String(), "failed:  a ("+paths[1]+" writes to the same output as "+paths[0]+")") {
			t.Errorf("workers=%d: missing collision line in %q", workers, log.String())
		}
		// a/ holds the docx conversion, including its media.
		if _, err := os.Stat(filepath.Join(out, "a", "media", "image1.png")); err != nil {
			t.Errorf("workers=%d: a/ should hold the docx outputs: %v", workers, err)
		}
		if _, err := os.Stat(filepath.Join(out, "a", ErrorLogFile)); err == nil {
			t.Errorf("workers=%d: collision must not write an error log into a/", workers)
		}
	}
}

func TestOutputName(t *testing.T) {
	tests := map[string]string{
		"/a/b/paper.docx":     "paper",
		"manuscript.v2.xml":   "manuscript.v2",
		"no-extension":        "no-extension",
		"dir/with.dots/x.xml": "x",
	}
	for in, want := range tests {
		if got := OutputName(in); got != want {
			t.Errorf("OutputName(%q) = %q, want %q", in, got, want)
		}
	}
}
