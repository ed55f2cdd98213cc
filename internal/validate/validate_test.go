// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package validate

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

// fakeRuntime implements container.Runtime with canned behavior.
type fakeRuntime struct {
	imageErr error
	output   string
	runErr   error
	gotImage string
	gotInput string
}

func (f *fakeRuntime) Name() string    { return "fake" }
func (f *fakeRuntime) Available() bool { return true }

func (f *fakeRuntime) ImageExists(image string) error {
	f.gotImage = image
	return f.imageErr
}

func (f *fakeRuntime) Run(_ context.Context, image string, stdin io.Reader, stdout io.Writer) error {
	data, _ := io.ReadAll(stdin)
	f.gotInput = string(data)
	if f.runErr != nil {
		return f.runErr
	}
	_, err := io.WriteString(stdout, f.output)
	return err
}

func TestNewContainerValidator(t *testing.T) {
	rt := &fakeRuntime{}
	if _, err := NewContainerValidator(rt, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rt.gotImage != DefaultImage {
		t.Errorf("checked image %q, want %q", rt.gotImage, DefaultImage)
	}

	rt = &fakeRuntime{imageErr: errors.New("no such image")}
	if _, err := NewContainerValidator(rt, "custom:1"); err == nil {
		t.Fatal("expected error for a missing image")
	} else if !strings.Contains(err.Error(), "no such image") {
		t.Errorf("error %q should wrap the runtime error", err)
	}
}

func TestContainerValidator_Validate(t *testing.T) {
	tests := []struct {
		name      string
		rt        *fakeRuntime
		wantValid bool
		wantMsgs  int
		wantErr   bool
	}{
		{name: "no output", rt: &fakeRuntime{}, wantValid: true},
		{name: "ok line", rt: &fakeRuntime{output: "OK\n"}, wantValid: true},
		{name: "problems", rt: &fakeRuntime{output: "line 3: element x not allowed\n\nline 9: missing attribute\n"}, wantMsgs: 2},
		{name: "runtime failure", rt: &fakeRuntime{runErr: errors.New("exit 125")}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewContainerValidator(tt.rt, "")
			if err != nil {
				t.Fatal(err)
			}
			report, err := v.Validate(context.Background(), []byte("<article/>"))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.rt.gotInput != "<article/>" {
				t.Errorf("validator input = %q", tt.rt.gotInput)
			}
			if report.Valid != tt.wantValid {
				t.Errorf("Valid = %v, want %v", report.Valid, tt.wantValid)
			}
			if len(report.Messages) != tt.wantMsgs {
				t.Errorf("len(Messages) = %d, want %d", len(report.Messages), tt.wantMsgs)
			}
		})
	}
}

func TestFunc(t *testing.T) {
	var v Validator = Func(func(context.Context, []byte) (*Report, error) {
		return &Report{Valid: true}, nil
	})
	r, err := v.Validate(context.Background(), nil)
	if err != nil || !r.Valid {
		t.Errorf("Func adapter returned %+v, %v", r, err)
	}
}
