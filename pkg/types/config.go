package types

import "time"

// UnresolvedPolicy decides what happens to citation markers that do not
// resolve to a reference when reference checking is enabled.
type UnresolvedPolicy string

const (
	// UnresolvedWarn records unresolved markers as warnings.
	UnresolvedWarn UnresolvedPolicy = "warn"
	// UnresolvedFail aborts the conversion with ErrUnresolvedCitation.
	UnresolvedFail UnresolvedPolicy = "fail"
)

// ConversionOptions toggles the reference processing steps. All fields
// default to false; the zero value only normalizes publication types and
// reference ids.
type ConversionOptions struct {
	// SplitReferences splits reference entries that bundle several citations.
	SplitReferences bool `json:"split_references" yaml:"split_references" mapstructure:"split_references"`

	// ReorderReferences orders the reference list by first citation in the body.
	ReorderReferences bool `json:"reorder_references" yaml:"reorder_references" mapstructure:"reorder_references"`

	// ProcessBrackets turns bracketed in-text citations into xref elements.
	ProcessBrackets bool `json:"process_brackets" yaml:"process_brackets" mapstructure:"process_brackets"`

	// ReferenceCheck verifies that every citation marker resolves.
	ReferenceCheck bool `json:"reference_check" yaml:"reference_check" mapstructure:"reference_check"`

	// VerboseLogging emits one diagnostic per structural decision.
	VerboseLogging bool `json:"verbose_logging" yaml:"verbose_logging" mapstructure:"verbose_logging"`

	// UnresolvedPolicy applies when ReferenceCheck is set (default "warn").
	UnresolvedPolicy UnresolvedPolicy `json:"unresolved_policy,omitempty" yaml:"unresolved_policy,omitempty" mapstructure:"unresolved_policy"`

	// PreserveArticleType keeps the source article-type instead of forcing
	// "research-article".
	PreserveArticleType bool `json:"preserve_article_type,omitempty" yaml:"preserve_article_type,omitempty" mapstructure:"preserve_article_type"`
}

// FailOnUnresolved reports whether unresolved citations abort the conversion.
func (o ConversionOptions) FailOnUnresolved() bool {
	return o.ReferenceCheck && o.UnresolvedPolicy == UnresolvedFail
}

// ValidationConfig holds settings for the optional external validation step.
type ValidationConfig struct {
	// Enabled turns on validation of the emitted article.
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// Image is the container image that reads JATS on stdin and reports
	// problems on stdout (default "jats-validator:latest").
	Image string `json:"image" yaml:"image" mapstructure:"image"`

	// Strict makes validation failures fatal instead of warnings.
	Strict bool `json:"strict" yaml:"strict" mapstructure:"strict"`
}

// HistoryConfig holds settings for the conversion history database.
type HistoryConfig struct {
	// Enabled records every CLI conversion in the history database.
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// Dir is the directory that holds history.db and exports.
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`
}

// BundleConfig holds settings for editor bundles.
type BundleConfig struct {
	// MediaBaseURL, when set, makes media resources URL references
	// (<base>/<name>) instead of inline base64 data.
	MediaBaseURL string `json:"media_base_url,omitempty" yaml:"media_base_url,omitempty" mapstructure:"media_base_url"`

	// Timestamp is stamped into createdAt/updatedAt. Zero writes 0.
	Timestamp time.Time `json:"-" yaml:"-" mapstructure:"-"`
}

// EngineConfig groups all settings read from jats-engine.yaml.
type EngineConfig struct {
	Conversion ConversionOptions `json:"conversion" yaml:"conversion" mapstructure:"conversion"`
	OutputDir  string            `json:"output_dir" yaml:"output_dir" mapstructure:"output_dir"`
	Context    *JournalContext   `json:"context,omitempty" yaml:"context,omitempty" mapstructure:"context"`
	Validation ValidationConfig  `json:"validation" yaml:"validation" mapstructure:"validation"`
	History    HistoryConfig     `json:"history" yaml:"history" mapstructure:"history"`
	Bundle     BundleConfig      `json:"bundle" yaml:"bundle" mapstructure:"bundle"`
}
