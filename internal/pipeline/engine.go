// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline sequences a conversion: parsing (structural conversion
// with asset extraction alongside), reference normalization and packaging
// (emission, manifest, optional validation). Every call returns a
// well-formed ConversionResult whose Log reads like the plugin's
// conversion log.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/jats-engine/internal/assets"
	"github.com/pdiddy/jats-engine/internal/convert"
	"github.com/pdiddy/jats-engine/internal/jats"
	"github.com/pdiddy/jats-engine/internal/manifest"
	"github.com/pdiddy/jats-engine/internal/refs"
	"github.com/pdiddy/jats-engine/internal/validate"
	"github.com/pdiddy/jats-engine/pkg/types"
)

// Request is one conversion call.
type Request struct {
	// Name labels the source in the log, usually its file name.
	Name string

	Data []byte

	// Format is the declared source format; empty means detect.
	Format types.SourceFormat

	Options types.ConversionOptions

	// Context supplies journal metadata for the front matter. Optional.
	Context *types.JournalContext
}

// Engine runs conversions. It holds no per-conversion state and may be
// used from several goroutines at once.
type Engine struct {
	validator validate.Validator
	strict    bool
	now       func() time.Time
	newID     func() string
	progress  io.Writer
}

// Option configures an Engine.
type Option func(*Engine)

// WithValidator adds an external validation step to packaging. With strict
// set, an invalid article fails the conversion; otherwise problems are
// warnings.
func WithValidator(v validate.Validator, strict bool) Option {
	return func(e *Engine) {
		e.validator = v
		e.strict = strict
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRunID replaces the random run id generator.
func WithRunID(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// WithProgress streams every log line to w as it is produced.
func WithProgress(w io.Writer) Option {
	return func(e *Engine) { e.progress = w }
}

// New returns an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// run is the state of one conversion.
type run struct {
	engine *Engine
	result *types.ConversionResult
}

func (r *run) line(s string) {
	r.result.Log = append(r.result.Log, s)
	if r.engine.progress != nil {
		fmt.Fprintln(r.engine.progress, s)
	}
}

func (r *run) progressf(format string, args ...any) {
	r.line("[Progress] " + fmt.Sprintf(format, args...))
}

func (r *run) diag(ds ...types.Diagnostic) {
	for _, d := range ds {
		r.result.Diagnostics = append(r.result.Diagnostics, d)
		r.line(d.String())
	}
}

func (r *run) enter(stage types.Stage) {
	r.result.Stage = stage
}

// Convert runs one conversion. It never returns nil; failures are reported
// through Success, ErrorKind and the log, and carry no output.
func (e *Engine) Convert(ctx context.Context, req Request) *types.ConversionResult {
	r := &run{
		engine: e,
		result: &types.ConversionResult{
			RunID:     e.newID(),
			Stage:     types.StageInit,
			StartedAt: e.now(),
		},
	}
	r.header(req)

	output, m, media, err := r.execute(ctx, req)
	r.result.Duration = e.now().Sub(r.result.StartedAt)
	if err != nil {
		r.fail(err)
		return r.result
	}

	r.result.Success = true
	r.result.Stage = types.StageDone
	r.result.Output = output
	r.result.Manifest = m
	r.result.Media = media
	r.line("")
	r.line("✓ Conversion completed successfully!")
	if n := r.result.Warnings(); n > 0 {
		r.line(fmt.Sprintf("[Info] finished with %d warning(s)", n))
	}
	return r.result
}

func (r *run) execute(ctx context.Context, req Request) ([]byte, *types.Manifest, []types.MediaAsset, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, nil, types.WrapError(types.ErrConversionFailed, types.StageInit, err)
	}

	article, media, err := r.parse(req)
	if err != nil {
		return nil, nil, nil, err
	}

	if err := r.normalize(ctx, article, req.Options); err != nil {
		return nil, nil, nil, err
	}

	output, m, err := r.pack(ctx, article, media)
	if err != nil {
		return nil, nil, nil, err
	}
	return output, m, media, nil
}

// parse runs the structural converter and the asset extractor side by
// side over the same immutable source bytes.
func (r *run) parse(req Request) (*jats.Article, []types.MediaAsset, error) {
	r.enter(types.StageParsing)

	format := req.Format
	if format == "" {
		detected, err := convert.DetectFormat(req.Data)
		if err != nil {
			return nil, nil, err
		}
		format = detected
		r.progressf("Detected source format: %s", convert.Describe(format))
	}
	r.progressf("Parsing %s source (%d bytes)", convert.Describe(format), len(req.Data))

	var (
		article  *jats.Article
		diags    []types.Diagnostic
		media    []types.MediaAsset
		parseErr error
		mediaErr error
	)
	var g errgroup.Group
	g.Go(func() error {
		article, diags, parseErr = convert.ToArticle(req.Data, format, req.Context, req.Options)
		return parseErr
	})
	g.Go(func() error {
		media, mediaErr = assets.Extract(req.Data)
		return mediaErr
	})
	_ = g.Wait()

	r.diag(diags...)
	if parseErr != nil {
		return nil, nil, types.WrapError(types.ErrConversionFailed, types.StageParsing, parseErr)
	}
	if mediaErr != nil {
		return nil, nil, types.WrapError(types.ErrConversionFailed, types.StageParsing, mediaErr)
	}
	r.progressf("Extracted %d media asset(s)", len(media))
	return article, media, nil
}

func (r *run) normalize(ctx context.Context, article *jats.Article, opts types.ConversionOptions) error {
	r.enter(types.StageNormalizing)
	if err := ctx.Err(); err != nil {
		return types.WrapError(types.ErrConversionFailed, types.StageNormalizing, err)
	}
	r.progressf("Normalizing %d reference(s)", len(article.References()))

	report, err := refs.Normalize(article, opts)
	if report != nil {
		r.diag(report.Diagnostics...)
	}
	if err != nil {
		return types.WrapError(types.ErrConversionFailed, types.StageNormalizing, err)
	}
	return nil
}

func (r *run) pack(ctx context.Context, article *jats.Article, media []types.MediaAsset) ([]byte, *types.Manifest, error) {
	r.enter(types.StagePackaging)
	if err := ctx.Err(); err != nil {
		return nil, nil, types.WrapError(types.ErrConversionFailed, types.StagePackaging, err)
	}
	r.progressf("Writing JATS XML")

	output, err := article.Bytes()
	if err != nil {
		return nil, nil, err
	}

	m, err := manifest.Build(output, media)
	if err != nil {
		return nil, nil, types.WrapError(types.ErrConversionFailed, types.StagePackaging, err)
	}
	linkAssets(m, media)
	r.progressf("Manifest lists %d asset(s)", len(m.Assets.Items))

	if err := r.validate(ctx, output); err != nil {
		return nil, nil, err
	}
	return output, m, nil
}

// linkAssets gives each media asset the id of the figure that shows it.
func linkAssets(m *types.Manifest, media []types.MediaAsset) {
	byPath := make(map[string]string, len(m.Assets.Items))
	for _, a := range m.Assets.Items {
		if _, ok := byPath[path.Base(a.Path)]; !ok {
			byPath[path.Base(a.Path)] = a.ID
		}
	}
	for i := range media {
		if id, ok := byPath[media[i].Name]; ok {
			media[i].ID = id
		}
	}
}

func (r *run) validate(ctx context.Context, output []byte) error {
	v := r.engine.validator
	if v == nil {
		return nil
	}
	r.progressf("Validating against the JATS schema")

	report, err := v.Validate(ctx, output)
	if err != nil {
		if r.engine.strict {
			return types.WrapError(types.ErrConversionFailed, types.StagePackaging, err)
		}
		r.diag(types.Warning(types.StagePackaging, "validation skipped: "+err.Error()))
		return nil
	}
	if report.Valid {
		r.diag(types.Info(types.StagePackaging, "validation passed"))
		return nil
	}

	for _, msg := range report.Messages {
		if r.engine.strict {
			r.diag(types.Error(types.StagePackaging, "validation: "+msg))
		} else {
			r.diag(types.Warning(types.StagePackaging, "validation: "+msg))
		}
	}
	if r.engine.strict {
		return types.NewError(types.ErrConversionFailed, types.StagePackaging,
			"article failed validation with %d problem(s)", len(report.Messages))
	}
	return nil
}

func (r *run) fail(err error) {
	res := r.result
	res.Success = false
	res.FailedStage = res.Stage
	res.Stage = types.StageFailed
	res.ErrorKind = types.KindOf(err)
	res.Error = err.Error()
	res.Output = nil
	res.Manifest = nil
	res.Media = nil

	r.line("")
	r.line("✗ Conversion failed!")
	r.result.Diagnostics = append(r.result.Diagnostics, types.Error(res.FailedStage, err.Error()))
	r.line("[Error] " + err.Error())
	r.line("")
	r.line(fmt.Sprintf("✗ FATAL ERROR: %s (%s during %s)", rootMessage(err), res.ErrorKind, res.FailedStage))
	r.line("")
	r.line("Error chain:")
	for i, msg := range types.ErrorChain(err) {
		r.line(fmt.Sprintf("#%d %s", i, msg))
	}
}

// rootMessage is the innermost error text, the cause a user acts on.
func rootMessage(err error) string {
	chain := types.ErrorChain(err)
	return chain[len(chain)-1]
}

func (r *run) header(req Request) {
	opts := req.Options
	name := req.Name
	if name == "" {
		name = "(unnamed)"
	}
	format := "auto"
	if req.Format != "" {
		format = convert.Describe(req.Format)
	}

	r.line("JATS XML Conversion Log")
	r.line("Date: " + r.result.StartedAt.Format("2006-01-02 15:04:05"))
	r.line("Run ID: " + r.result.RunID)
	r.line("Original File: " + name)
	r.line("Source Format: " + format)
	r.line("")
	r.line("Conversion Settings:")
	r.line("- Reorder References: " + yesNo(opts.ReorderReferences))
	r.line("- Split References: " + yesNo(opts.SplitReferences))
	r.line("- Process Brackets: " + yesNo(opts.ProcessBrackets))
	r.line("- Reference Check: " + yesNo(opts.ReferenceCheck))
	r.line("- Detailed Output: " + yesNo(opts.VerboseLogging))
	if opts.ReferenceCheck {
		policy := opts.UnresolvedPolicy
		if policy == "" {
			policy = types.UnresolvedWarn
		}
		r.line("- Unresolved Citations: " + string(policy))
	}
	r.line("- Preserve Article Type: " + yesNo(opts.PreserveArticleType))
	r.line("")
	r.line(strings.Repeat("-", 80))
	r.line("")

	enabled := []struct {
		on   bool
		name string
	}{
		{opts.ReferenceCheck, "Reference Check"},
		{opts.ReorderReferences, "Reorder References"},
		{opts.SplitReferences, "Split References"},
		{opts.ProcessBrackets, "Process Bracketed Citations"},
		{opts.VerboseLogging, "Verbose/Detailed Output"},
	}
	for _, f := range enabled {
		if f.on {
			r.line("Enabled: " + f.name)
		}
	}
	if r.engine.validator != nil {
		r.line("Enabled: Schema Validation")
	}
	r.line("")
	r.line("Starting conversion...")
	r.line("")
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
