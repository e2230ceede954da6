// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bureau-foundation/sentinel/lib/permsync"
)

// Directory discovers workflows from the *.jsonc and *.json manifests
// directly inside Path. It implements permsync.Discovery.
type Directory struct {
	Path string
}

var _ permsync.Discovery = Directory{}

// Workflows reads every manifest in the directory, ordered by file
// name. Files that fail to parse or validate are reported together and
// no workflows are returned.
func (d Directory) Workflows(ctx context.Context) ([]*Workflow, error) {
	paths, err := Files(d.Path)
	if err != nil {
		return nil, err
	}

	var (
		workflows []*Workflow
		errs      []error
		seen      = make(map[string]string)
	)
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		workflow, err := ReadFile(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("manifest: %w", err))
			continue
		}
		if issues := Validate(workflow); len(issues) > 0 {
			errs = append(errs, fmt.Errorf("manifest: %s: %s", path, strings.Join(issues, "; ")))
			continue
		}
		if previous, duplicate := seen[workflow.ID]; duplicate {
			errs = append(errs, fmt.Errorf("manifest: %s: workflow %q already declared in %s", path, workflow.ID, previous))
			continue
		}
		seen[workflow.ID] = path
		workflows = append(workflows, workflow)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return workflows, nil
}

// Files returns the paths of the manifests (*.jsonc and *.json)
// directly inside directory, sorted by name.
func Files(directory string) ([]string, error) {
	entries, err := os.ReadDir(directory)
	if err != nil {
		return nil, fmt.Errorf("manifest: reading directory %s: %w", directory, err)
	}
	var paths []string
	for _, entry := range entries {
		if !entry.IsDir() && isManifest(entry.Name()) {
			paths = append(paths, filepath.Join(directory, entry.Name()))
		}
	}
	return paths, nil
}

// Resources implements permsync.Discovery.
func (d Directory) Resources(ctx context.Context) ([]permsync.Resource, error) {
	workflows, err := d.Workflows(ctx)
	if err != nil {
		return nil, err
	}
	resources := make([]permsync.Resource, 0, len(workflows))
	for _, workflow := range workflows {
		resources = append(resources, permsync.Resource{
			WorkflowID:    workflow.ID,
			AccessControl: workflow.AccessControl,
		})
	}
	return resources, nil
}

func isManifest(name string) bool {
	return slices.Contains([]string{".jsonc", ".json"}, filepath.Ext(name))
}
