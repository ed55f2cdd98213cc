// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"strings"
	"time"
)

// Stage is a state of the conversion state machine:
// init -> parsing -> normalizing -> packaging -> done, or failed from any stage.
type Stage string

const (
	StageInit        Stage = "init"
	StageParsing     Stage = "parsing"
	StageNormalizing Stage = "normalizing"
	StagePackaging   Stage = "packaging"
	StageDone        Stage = "done"
	StageFailed      Stage = "failed"
)

// Level is the severity of a Diagnostic.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Diagnostic is one human-readable message produced by a stage.
type Diagnostic struct {
	Level   Level  `json:"level" yaml:"level"`
	Stage   Stage  `json:"stage" yaml:"stage"`
	Message string `json:"message" yaml:"message"`
}

// String renders the diagnostic as a log line, e.g. "[Warning] text".
func (d Diagnostic) String() string {
	switch d.Level {
	case LevelWarning:
		return "[Warning] " + d.Message
	case LevelError:
		return "[Error] " + d.Message
	default:
		return "[Info] " + d.Message
	}
}

// Info builds an info diagnostic. Warning and Error do the same for their levels.
func Info(stage Stage, msg string) Diagnostic {
	return Diagnostic{Level: LevelInfo, Stage: stage, Message: msg}
}

func Warning(stage Stage, msg string) Diagnostic {
	return Diagnostic{Level: LevelWarning, Stage: stage, Message: msg}
}

func Error(stage Stage, msg string) Diagnostic {
	return Diagnostic{Level: LevelError, Stage: stage, Message: msg}
}

// ConversionResult is the outcome of one conversion. It is not modified
// after the orchestrator returns it.
type ConversionResult struct {
	// RunID identifies the conversion in logs and in the history database.
	RunID string `json:"run_id" yaml:"run_id"`

	// Success is false when any stage failed. Output, Manifest and Media
	// are only set on success.
	Success bool `json:"success" yaml:"success"`

	// Stage is StageDone on success, StageFailed otherwise.
	Stage Stage `json:"stage" yaml:"stage"`

	// FailedStage is the stage that aborted the pipeline.
	FailedStage Stage `json:"failed_stage,omitempty" yaml:"failed_stage,omitempty"`

	// ErrorKind and Error describe the failure in short form.
	ErrorKind ErrorKind `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	Error     string    `json:"error,omitempty" yaml:"error,omitempty"`

	// Log is the ordered, human-readable conversion log.
	Log []string `json:"log" yaml:"log"`

	// Diagnostics are the structured messages behind the log.
	Diagnostics []Diagnostic `json:"diagnostics" yaml:"diagnostics"`

	Output   []byte       `json:"-" yaml:"-"`
	Manifest *Manifest    `json:"manifest,omitempty" yaml:"manifest,omitempty"`
	Media    []MediaAsset `json:"media,omitempty" yaml:"media,omitempty"`

	StartedAt time.Time     `json:"started_at" yaml:"started_at"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
}

// LogText joins the log lines into the text stored as the log artifact.
func (r *ConversionResult) LogText() string {
	return strings.Join(r.Log, "\n")
}

// Warnings counts warning diagnostics, so callers can tell "succeeded with
// warnings" apart from a clean run.
func (r *ConversionResult) Warnings() int {
	n := 0
	for _, d := range r.Diagnostics {
		if d.Level == LevelWarning {
			n++
		}
	}
	return n
}
