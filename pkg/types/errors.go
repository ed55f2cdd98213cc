// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies conversion failures.
type ErrorKind string

const (
	// ErrMalformedSource means the input cannot be parsed as the claimed format.
	ErrMalformedSource ErrorKind = "MalformedSource"
	// ErrUnsupportedFormat means the format is neither DOCX nor XML-like.
	ErrUnsupportedFormat ErrorKind = "UnsupportedFormat"
	// ErrUnresolvedCitation means a citation marker has no reference target.
	ErrUnresolvedCitation ErrorKind = "UnresolvedCitation"
	// ErrConversionFailed is the catch-all for downstream failures.
	ErrConversionFailed ErrorKind = "ConversionFailed"
)

// Retryable reports whether retrying the same input could succeed. None of
// the kinds are: the caller has to supply corrected input.
func (k ErrorKind) Retryable() bool {
	return false
}

// ConversionError is the error type returned by every engine stage.
type ConversionError struct {
	Kind  ErrorKind
	Stage Stage
	Err   error
}

func (e *ConversionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s during %s", e.Kind, e.Stage)
	}
	return fmt.Sprintf("%s during %s: %v", e.Kind, e.Stage, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// NewError builds a ConversionError from a format string.
func NewError(kind ErrorKind, stage Stage, format string, args ...any) *ConversionError {
	return &ConversionError{Kind: kind, Stage: stage, Err: fmt.Errorf(format, args...)}
}

// WrapError wraps err as a ConversionError unless it already is one.
func WrapError(kind ErrorKind, stage Stage, err error) error {
	if err == nil {
		return nil
	}
	var ce *ConversionError
	if errors.As(err, &ce) {
		return err
	}
	return &ConversionError{Kind: kind, Stage: stage, Err: err}
}

// KindOf returns the ErrorKind carried by err, or ErrConversionFailed when
// err is not a ConversionError. A nil error has no kind.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var ce *ConversionError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ErrConversionFailed
}

// ErrorChain returns the messages of err and every error it wraps, outermost
// first. It stands in for a stack trace in failure logs.
func ErrorChain(err error) []string {
	var chain []string
	for err != nil {
		chain = append(chain, err.Error())
		err = errors.Unwrap(err)
	}
	return chain
}
