// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package validate checks emitted articles against the JATS schema through
// an external validator treated as a black box: the article goes in on
// stdin, one problem per line comes out on stdout.
package validate

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/pdiddy/jats-engine/internal/container"
)

// DefaultImage is the validator image used when none is configured.
const DefaultImage = "jats-validator:latest"

// Report is the outcome of one validation.
type Report struct {
	Valid    bool
	Messages []string
}

// Validator checks one article.
type Validator interface {
	Validate(ctx context.Context, articleXML []byte) (*Report, error)
}

// Func adapts a function to the Validator interface.
type Func func(ctx context.Context, articleXML []byte) (*Report, error)

func (f Func) Validate(ctx context.Context, articleXML []byte) (*Report, error) {
	return f(ctx, articleXML)
}

// ContainerValidator runs a validator image through a container runtime.
type ContainerValidator struct {
	runtime container.Runtime
	image   string
}

// NewContainerValidator returns a validator for image, verifying that the
// image exists locally. An empty image selects DefaultImage.
func NewContainerValidator(rt container.Runtime, image string) (*ContainerValidator, error) {
	if image == "" {
		image = DefaultImage
	}
	if err := rt.ImageExists(image); err != nil {
		return nil, fmt.Errorf("validator image not available in %s: %w", rt.Name(), err)
	}
	return &ContainerValidator{runtime: rt, image: image}, nil
}

// Validate pipes the article through the validator image. Empty output or
// a single "valid"/"ok" line means the article passed.
func (v *ContainerValidator) Validate(ctx context.Context, articleXML []byte) (*Report, error) {
	var out bytes.Buffer
	if err := v.runtime.Run(ctx, v.image, bytes.NewReader(articleXML), &out); err != nil {
		return nil, fmt.Errorf("validating with %s: %w", v.image, err)
	}
	return ParseReport(out.Bytes()), nil
}

// ParseReport reads validator output: blank lines are ignored and every
// other line is one problem.
func ParseReport(out []byte) *Report {
	var msgs []string
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		msgs = append(msgs, line)
	}
	if len(msgs) == 1 {
		switch strings.ToLower(msgs[0]) {
		case "ok", "valid":
			return &Report{Valid: true}
		}
	}
	return &Report{Valid: len(msgs) == 0, Messages: msgs}
}
