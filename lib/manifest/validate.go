// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/bureau-foundation/sentinel/lib/permission"
	"github.com/bureau-foundation/sentinel/lib/sensor"
)

// Validate checks a manifest for structural issues and returns one
// human-readable description per issue. An empty list means the
// manifest is valid.
//
// Role existence is not checked here; that needs the permission store
// and is reported by the synchronizer.
func Validate(workflow *Workflow) []string {
	return ValidateWith(workflow, sensor.DefaultConfig())
}

// ValidateWith is Validate with sensor entries applied to base instead
// of the built-in defaults, so a manifest that relies on configured
// defaults is checked against them.
func ValidateWith(workflow *Workflow, base sensor.Config) []string {
	var issues []string

	if workflow.ID == "" {
		issues = append(issues, "workflow_id is empty")
	} else if strings.HasPrefix(workflow.ID, permission.WorkflowResourcePrefix) {
		issues = append(issues, fmt.Sprintf("workflow_id %q must not carry the %s prefix",
			workflow.ID, permission.WorkflowResourcePrefix))
	}

	for _, role := range slices.Sorted(maps.Keys(workflow.AccessControl)) {
		if role == "" {
			issues = append(issues, "access_control: empty role name")
			continue
		}
		for _, action := range workflow.AccessControl[role] {
			if !permission.IsWorkflowAction(action) {
				issues = append(issues, fmt.Sprintf("access_control[%q]: invalid permission %q (valid: %v)",
					role, action, permission.WorkflowActions))
			}
		}
	}

	taskIDs := make(map[string]int, len(workflow.Sensors))
	for index, spec := range workflow.Sensors {
		prefix := fmt.Sprintf("sensors[%d]", index)
		if spec.TaskID == "" {
			issues = append(issues, prefix+": task_id is empty")
		} else if first, exists := taskIDs[spec.TaskID]; exists {
			issues = append(issues, fmt.Sprintf("%s %q: duplicate task_id (first used at sensors[%d])",
				prefix, spec.TaskID, first))
		} else {
			taskIDs[spec.TaskID] = index
		}
		if spec.Retries < 0 {
			issues = append(issues, fmt.Sprintf("%s %q: retries must not be negative", prefix, spec.TaskID))
		}
		config, err := spec.Config(base)
		if err == nil {
			err = config.Validate()
		}
		if err != nil {
			issues = append(issues, fmt.Sprintf("%s %q: %v", prefix, spec.TaskID, err))
		}
	}

	return issues
}
