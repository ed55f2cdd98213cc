// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"
)

const exportLimit = 100000

// ExportYAML writes the matching runs with their logs to <dir>/export.yaml
// and returns the file path.
func (s *Store) ExportYAML(ctx context.Context, opts QueryOptions) (string, error) {
	details, err := s.exportDetails(ctx, opts)
	if err != nil {
		return "", err
	}
	data, err := yaml.Marshal(details)
	if err != nil {
		return "", fmt.Errorf("marshaling YAML: %w", err)
	}
	path := filepath.Join(s.dir, "export.yaml")
	return path, os.WriteFile(path, data, 0o644)
}

// ExportJSON writes the matching runs with their logs to <dir>/export.json
// and returns the file path.
func (s *Store) ExportJSON(ctx context.Context, opts QueryOptions) (string, error) {
	details, err := s.exportDetails(ctx, opts)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(details, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling JSON: %w", err)
	}
	path := filepath.Join(s.dir, "export.json")
	return path, os.WriteFile(path, data, 0o644)
}

func (s *Store) exportDetails(ctx context.Context, opts QueryOptions) ([]Detail, error) {
	opts.Limit = exportLimit
	runs, err := s.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("querying for export: %w", err)
	}

	details := make([]Detail, len(runs))
	for i, r := range runs {
		details[i].Run = r
		if details[i].Log, err = s.logLines(ctx, r.ID); err != nil {
			return nil, err
		}
		if details[i].Diagnostics, err = s.diagnostics(ctx, r.ID); err != nil {
			return nil, err
		}
	}
	return details, nil
}
