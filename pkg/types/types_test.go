// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSourceFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    SourceFormat
		wantErr bool
	}{
		{in: "docx", want: FormatDOCX},
		{in: " Word ", want: FormatDOCX},
		{in: "jats", want: FormatJATS},
		{in: "XML", want: FormatJATS},
		{in: "jats_xml", want: FormatJATS},
		{in: "pdf", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSourceFormat(tt.in)
			if tt.wantErr {
				assert.Equal(t, ErrUnsupportedFormat, KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConversionError(t *testing.T) {
	root := errors.New("no root element found")
	err := fmt.Errorf("loading article: %w", WrapError(ErrMalformedSource, StageParsing, root))

	assert.Equal(t, ErrMalformedSource, KindOf(err))
	assert.ErrorIs(t, err, root)
	assert.Equal(t, []string{
		"loading article: MalformedSource during parsing: no root element found",
		"MalformedSource during parsing: no root element found",
		"no root element found",
	}, ErrorChain(err))

	var ce *ConversionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, StageParsing, ce.Stage)

	// Wrapping again keeps the innermost kind.
	rewrapped := WrapError(ErrConversionFailed, StagePackaging, err)
	assert.Equal(t, ErrMalformedSource, KindOf(rewrapped))

	assert.Nil(t, WrapError(ErrConversionFailed, StageInit, nil))
	assert.Equal(t, ErrorKind(""), KindOf(nil))
	assert.Equal(t, ErrConversionFailed, KindOf(errors.New("disk full")))
	assert.Equal(t, "UnresolvedCitation during normalizing", (&ConversionError{Kind: ErrUnresolvedCitation, Stage: StageNormalizing}).Error())
}

func TestErrorKindRetryable(t *testing.T) {
	for _, k := range []ErrorKind{ErrMalformedSource, ErrUnsupportedFormat, ErrUnresolvedCitation, ErrConversionFailed} {
		assert.False(t, k.Retryable(), k)
	}
}

func TestConversionOptions_FailOnUnresolved(t *testing.T) {
	assert.False(t, ConversionOptions{UnresolvedPolicy: UnresolvedFail}.FailOnUnresolved())
	assert.False(t, ConversionOptions{ReferenceCheck: true, UnresolvedPolicy: UnresolvedWarn}.FailOnUnresolved())
	assert.True(t, ConversionOptions{ReferenceCheck: true, UnresolvedPolicy: UnresolvedFail}.FailOnUnresolved())
}

func TestDiagnosticString(t *testing.T) {
	assert.Equal(t, "[Info] ok", Info(StageDone, "ok").String())
	assert.Equal(t, "[Warning] careful", Warning(StageParsing, "careful").String())
	assert.Equal(t, "[Error] broken", Error(StagePackaging, "broken").String())
}

func TestConversionResult(t *testing.T) {
	r := &ConversionResult{
		Log: []string{"a", "b"},
		Diagnostics: []Diagnostic{
			Info(StageParsing, "x"),
			Warning(StageNormalizing, "y"),
			Warning(StageNormalizing, "z"),
		},
	}
	assert.Equal(t, "a\nb", r.LogText())
	assert.Equal(t, 2, r.Warnings())
}

func TestJournalContext_PrimaryName(t *testing.T) {
	var nilCtx *JournalContext
	assert.Empty(t, nilCtx.PrimaryName())

	ctx := &JournalContext{PrimaryLocale: "en_US", Names: map[string]string{"en_US": "Journal", "fr_CA": "Revue"}}
	assert.Equal(t, "Journal", ctx.PrimaryName())
}
