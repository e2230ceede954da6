// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/sentinel/lib/permission"
	"github.com/bureau-foundation/sentinel/lib/sensor"
	"github.com/bureau-foundation/sentinel/lib/testutil"
)

const ingestManifest = `{
	// Data engineering owns this workflow.
	"description": "nightly ingest",
	"access_control": {
		"data-eng": ["can_read", "can_edit"],
		"Viewer": ["can_read"],
	},
	"sensors": [
		/* waits for the upstream drop */
		{"task_id": "wait_for_file", "mode": "reschedule", "poke_interval": 30, "timeout": 3600, "retries": 2},
	],
}`

func TestParse(t *testing.T) {
	workflow, err := Parse([]byte(ingestManifest), "ingest")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if workflow.ID != "ingest" {
		t.Errorf("ID = %q, want default ingest", workflow.ID)
	}
	if got := workflow.AccessControl["data-eng"]; len(got) != 2 || got[1] != permission.ActionCanEdit {
		t.Errorf("data-eng actions = %v", got)
	}
	if len(workflow.Sensors) != 1 || workflow.Sensors[0].Retries != 2 {
		t.Fatalf("Sensors = %+v", workflow.Sensors)
	}
	if issues := Validate(workflow); len(issues) != 0 {
		t.Errorf("Validate = %v, want none", issues)
	}
}

func TestParse_AccessControlPresence(t *testing.T) {
	absent, err := Parse([]byte(`{}`), "a")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if absent.AccessControl != nil {
		t.Errorf("absent access_control = %v, want nil", absent.AccessControl)
	}

	empty, err := Parse([]byte(`{"access_control": {}}`), "b")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if empty.AccessControl == nil {
		t.Error("empty access_control decoded as nil, want declared and empty")
	}
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	if _, err := Parse([]byte(`{"acess_control": {}}`), "typo"); err == nil {
		t.Fatal("Parse accepted a misspelled field")
	}
}

func TestSensorSpecConfig(t *testing.T) {
	interval := 2.5
	spec := SensorSpec{TaskID: "wait", Mode: "reschedule", PokeInterval: &interval, ExponentialBackoff: true}
	config, err := spec.Config(sensor.DefaultConfig())
	if err != nil {
		t.Fatalf("Config: %v", err)
	}
	if config.Name != "wait" || config.Mode != sensor.ModeReschedule || !config.ExponentialBackoff {
		t.Errorf("Config = %+v", config)
	}
	if config.PokeInterval != 2500*time.Millisecond {
		t.Errorf("PokeInterval = %v, want 2.5s", config.PokeInterval)
	}
	if config.Timeout != sensor.DefaultConfig().Timeout {
		t.Errorf("Timeout = %v, want default", config.Timeout)
	}

	negative := -1.0
	_, err = SensorSpec{TaskID: "wait", Timeout: &negative}.Config(sensor.DefaultConfig())
	configErr := testutil.RequireErrorAs[*sensor.ConfigurationError](t, err)
	if configErr.Field != "timeout" {
		t.Errorf("Field = %q, want timeout", configErr.Field)
	}
}

func TestValidate(t *testing.T) {
	negative := -5.0
	tests := []struct {
		name           string
		workflow       Workflow
		wantSubstrings []string
	}{
		{
			name:     "valid without access control",
			workflow: Workflow{ID: "plain"},
		},
		{
			name:           "empty id",
			workflow:       Workflow{},
			wantSubstrings: []string{"workflow_id is empty"},
		},
		{
			name:           "prefixed id",
			workflow:       Workflow{ID: "WORKFLOW:x"},
			wantSubstrings: []string{"prefix"},
		},
		{
			name: "invalid action",
			workflow: Workflow{ID: "x", AccessControl: permission.AccessControl{
				"team-a": {"can_eat_pudding"},
			}},
			wantSubstrings: []string{`invalid permission "can_eat_pudding"`},
		},
		{
			name: "sensor problems",
			workflow: Workflow{ID: "x", Sensors: []SensorSpec{
				{TaskID: "a", Mode: "sometimes"},
				{TaskID: "a"},
				{TaskID: "b", PokeInterval: &negative},
				{TaskID: "c", Retries: -1},
			}},
			wantSubstrings: []string{"mode", "duplicate task_id", "poke_interval", "retries"},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			issues := Validate(&test.workflow)
			if len(test.wantSubstrings) == 0 && len(issues) != 0 {
				t.Fatalf("issues = %v, want none", issues)
			}
			joined := strings.Join(issues, "\n")
			for _, want := range test.wantSubstrings {
				if !strings.Contains(joined, want) {
					t.Errorf("issues %q lack %q", joined, want)
				}
			}
		})
	}
}

func TestDirectory_Resources(t *testing.T) {
	directory := t.TempDir()
	write := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(directory, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("ingest.jsonc", ingestManifest)
	write("report.json", `{"workflow_id": "daily_report"}`)
	write("README.md", "not a manifest")

	resources, err := Directory{Path: directory}.Resources(context.Background())
	if err != nil {
		t.Fatalf("Resources: %v", err)
	}
	if len(resources) != 2 {
		t.Fatalf("Resources = %+v, want 2", resources)
	}
	if resources[0].WorkflowID != "ingest" || resources[0].AccessControl == nil {
		t.Errorf("resources[0] = %+v", resources[0])
	}
	if resources[1].WorkflowID != "daily_report" || resources[1].AccessControl != nil {
		t.Errorf("resources[1] = %+v", resources[1])
	}
}

func TestDirectory_ReportsBrokenManifests(t *testing.T) {
	directory := t.TempDir()
	os.WriteFile(filepath.Join(directory, "a.jsonc"), []byte(`{"workflow_id": "same"}`), 0o644)
	os.WriteFile(filepath.Join(directory, "b.jsonc"), []byte(`{"workflow_id": "same"}`), 0o644)
	os.WriteFile(filepath.Join(directory, "c.jsonc"), []byte(`{not json`), 0o644)

	_, err := Directory{Path: directory}.Resources(context.Background())
	if err == nil {
		t.Fatal("Resources succeeded with broken manifests")
	}
	for _, want := range []string{"already declared", "c.jsonc"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q lacks %q", err, want)
		}
	}
}

func TestValidateWith_ConfiguredDefaults(t *testing.T) {
	interval := 120.0
	workflow := &Workflow{ID: "x", Sensors: []SensorSpec{{TaskID: "wait", PokeInterval: &interval}}}
	if issues := Validate(workflow); len(issues) != 0 {
		t.Fatalf("Validate = %v, want none against built-in defaults", issues)
	}

	base := sensor.DefaultConfig()
	base.MaxPokeInterval = time.Minute
	issues := ValidateWith(workflow, base)
	if len(issues) != 1 || !strings.Contains(issues[0], "max_poke_interval") {
		t.Errorf("ValidateWith = %v, want a max_poke_interval issue", issues)
	}
}
