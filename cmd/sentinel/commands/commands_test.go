// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/bureau-foundation/sentinel/cmd/sentinel/cli"
	"github.com/bureau-foundation/sentinel/lib/testutil"
)

const ingestManifest = `{
	// Owned by data engineering.
	"access_control": {"data-eng": ["can_read", "can_edit"]},
	"sensors": [
		{"task_id": "wait_for_file", "mode": "reschedule", "poke_interval": 30, "timeout": 3600, "retries": 1},
	],
}`

// testEnvironment is a config file with its database and manifests
// directory under t.TempDir.
type testEnvironment struct {
	dir        string
	configPath string
}

func newTestEnvironment(t *testing.T) *testEnvironment {
	t.Helper()
	dir := t.TempDir()
	manifests := filepath.Join(dir, "workflows")
	if err := os.Mkdir(manifests, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(manifests, "ingest.jsonc"), []byte(ingestManifest), 0644); err != nil {
		t.Fatal(err)
	}
	configPath := filepath.Join(dir, "sentinel.yaml")
	content := "paths:\n" +
		"  root: " + dir + "\n" +
		"  database: " + filepath.Join(dir, "sentinel.db") + "\n" +
		"  manifests: " + manifests + "\n" +
		"auth:\n" +
		"  custom_roles: [data-eng]\n"
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return &testEnvironment{dir: dir, configPath: configPath}
}

// run executes the command line and returns its stdout.
func (e *testEnvironment) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout bytes.Buffer
	root := Root(&stdout)
	root.HelpOutput = &bytes.Buffer{}
	if len(args) > 0 && args[0] != "version" {
		args = append(args, "--config", e.configPath)
	}
	err := root.Execute(context.Background(), args, nil)
	return stdout.String(), err
}

func (e *testEnvironment) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	output, err := e.run(t, args...)
	if err != nil {
		t.Fatalf("sentinel %s: %v\noutput: %s", strings.Join(args, " "), err, output)
	}
	return output
}

func decodeJSON[T any](t *testing.T, output string) T {
	t.Helper()
	var value T
	if err := json.Unmarshal([]byte(output), &value); err != nil {
		t.Fatalf("decoding %q: %v", output, err)
	}
	return value
}

func TestVersion_JSON(t *testing.T) {
	environment := newTestEnvironment(t)
	output := environment.mustRun(t, "version", "--json")
	info := decodeJSON[map[string]any](t, output)
	if info["version"] == "" || info["platform"] == "" {
		t.Errorf("version output = %v", info)
	}
}

func TestRolesSync_ThenList(t *testing.T) {
	environment := newTestEnvironment(t)
	environment.mustRun(t, "roles", "sync")

	roles := decodeJSON[[]roleEntry](t, environment.mustRun(t, "roles", "list", "--json"))
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, role.Name)
	}
	for _, want := range []string{"Admin", "Op", "User", "Viewer", "Public", "data-eng"} {
		if !slices.Contains(names, want) {
			t.Errorf("roles = %v, missing %s", names, want)
		}
	}

	dataEng := decodeJSON[[]roleEntry](t, environment.mustRun(t, "roles", "list", "--role", "data-eng", "--json"))
	if len(dataEng) != 1 || len(dataEng[0].Permissions) != 2 {
		t.Fatalf("data-eng = %+v, want two workflow permissions", dataEng)
	}
	for _, p := range dataEng[0].Permissions {
		if p.Resource != "WORKFLOW:ingest" {
			t.Errorf("data-eng permission %v, want it on WORKFLOW:ingest", p)
		}
	}

	// A second sync with unchanged declarations succeeds and changes nothing.
	environment.mustRun(t, "roles", "sync")
	again := decodeJSON[[]roleEntry](t, environment.mustRun(t, "roles", "list", "--role", "data-eng", "--json"))
	if len(again[0].Permissions) != 2 {
		t.Errorf("data-eng after resync = %+v", again)
	}
}

func TestRolesList_TextTable(t *testing.T) {
	environment := newTestEnvironment(t)
	environment.mustRun(t, "roles", "sync")
	output := environment.mustRun(t, "roles", "list", "--role", "Public")
	if !strings.HasPrefix(output, "ROLE") || !strings.Contains(output, "Public") {
		t.Errorf("roles list output = %q", output)
	}
}

func TestRolesShow(t *testing.T) {
	environment := newTestEnvironment(t)

	before := decodeJSON[declarationOutput](t, environment.mustRun(t, "roles", "show", "--workflow", "ingest", "--json"))
	if before.Synced || len(before.Granted) != 0 {
		t.Errorf("before sync = %+v, want unsynced with no grants", before)
	}

	environment.mustRun(t, "roles", "sync")
	after := decodeJSON[declarationOutput](t, environment.mustRun(t, "roles", "show", "--workflow", "ingest", "--json"))
	if !after.Synced || after.Resource != "WORKFLOW:ingest" {
		t.Fatalf("after sync = %+v", after)
	}
	if got := after.Declared["data-eng"]; len(got) != 2 {
		t.Errorf("declared data-eng actions = %v, want can_read and can_edit", got)
	}
	if len(after.Granted) != 2 || after.Granted[0].Role != "data-eng" {
		t.Errorf("granted = %+v, want two data-eng bindings", after.Granted)
	}

	table := environment.mustRun(t, "roles", "show", "--workflow", "ingest")
	if !strings.Contains(table, "can_edit") || !strings.Contains(table, "yes") {
		t.Errorf("roles show table = %q", table)
	}

	if _, err := environment.run(t, "roles", "show"); err == nil {
		t.Error("roles show without --workflow succeeded")
	}
}

func TestAccessCheck(t *testing.T) {
	environment := newTestEnvironment(t)
	environment.mustRun(t, "roles", "sync")

	output := environment.mustRun(t, "access", "check", "--role", "data-eng", "--action", "can_edit", "--workflow", "ingest", "--json")
	result := decodeJSON[checkOutput](t, output)
	if result.Decision != "allow" || result.MatchedRole != "data-eng" || result.Resource != "WORKFLOW:ingest" {
		t.Errorf("check = %+v", result)
	}

	output, err := environment.run(t, "access", "check", "--role", "data-eng", "--action", "can_delete", "--workflow", "ingest")
	exitErr := testutil.RequireErrorAs[*cli.ExitError](t, err)
	if exitErr.Code != 1 {
		t.Errorf("exit code = %d, want 1", exitErr.Code)
	}
	if !strings.HasPrefix(output, "DENY") {
		t.Errorf("deny output = %q", output)
	}

	output = environment.mustRun(t, "access", "check", "--role", "Viewer", "--action", "can_read", "--workflow", "ingest")
	if !strings.HasPrefix(output, "ALLOW") || !strings.Contains(output, "all workflows") {
		t.Errorf("viewer output = %q", output)
	}
}

func TestAccessCheck_FlagErrors(t *testing.T) {
	environment := newTestEnvironment(t)
	tests := [][]string{
		{"access", "check", "--role", "Viewer", "--workflow", "ingest"},
		{"access", "check", "--role", "Viewer", "--action", "can_read"},
		{"access", "check", "--role", "Viewer", "--action", "can_read", "--workflow", "a", "--resource", "b"},
		{"access", "check", "--anonymous", "--role", "Viewer", "--action", "can_read", "--workflow", "a"},
	}
	for _, args := range tests {
		if _, err := environment.run(t, args...); err == nil {
			t.Errorf("sentinel %s succeeded, want a flag error", strings.Join(args, " "))
		}
	}
}

func TestAccessIDs(t *testing.T) {
	environment := newTestEnvironment(t)
	environment.mustRun(t, "roles", "sync")

	ids := decodeJSON[[]string](t, environment.mustRun(t, "access", "ids", "--role", "data-eng", "--action", "can_edit", "--json"))
	if !slices.Equal(ids, []string{"ingest"}) {
		t.Errorf("data-eng editable ids = %v, want [ingest]", ids)
	}

	// Public holds nothing.
	ids = decodeJSON[[]string](t, environment.mustRun(t, "access", "ids", "--anonymous", "--json"))
	if len(ids) != 0 {
		t.Errorf("anonymous readable ids = %v, want none", ids)
	}
}

func TestSensorFile_RescheduleThenSucceed(t *testing.T) {
	environment := newTestEnvironment(t)
	target := filepath.Join(environment.dir, "export.csv")
	task := []string{"--workflow", "ingest", "--task", "wait_for_file", "--logical-date", "2026-03-01T00:00:00Z"}

	output := environment.mustRun(t, append([]string{"sensor", "file", "--path", target, "--json"}, task...)...)
	first := decodeJSON[sensorOutput](t, output)
	if first.Outcome != "rescheduled" || first.State != "up_for_reschedule" || first.RescheduleDate == "" {
		t.Fatalf("first run = %+v", first)
	}
	if first.MaxTries != 1 {
		t.Errorf("MaxTries = %d, want the manifest's retries (1)", first.MaxTries)
	}

	history := decodeJSON[reschedulesOutput](t, environment.mustRun(t, append([]string{"reschedules", "--json"}, task...)...))
	if len(history.Records) != 1 || history.Records[0].DurationSecs != 30 {
		t.Fatalf("reschedules = %+v, want one 30s record", history)
	}

	// The next invocation is not due yet.
	if _, err := environment.run(t, append([]string{"sensor", "file", "--path", target}, task...)...); err == nil {
		t.Fatal("second run before the reschedule date succeeded")
	}

	// A test run ignores readiness and records nothing.
	if err := os.WriteFile(target, []byte("id\n"), 0644); err != nil {
		t.Fatal(err)
	}
	output = environment.mustRun(t, append([]string{"sensor", "file", "--path", target, "--test", "--json"}, task...)...)
	if tested := decodeJSON[sensorOutput](t, output); tested.Outcome != "success" {
		t.Errorf("test run = %+v", tested)
	}
	history = decodeJSON[reschedulesOutput](t, environment.mustRun(t, append([]string{"reschedules", "--json"}, task...)...))
	if history.State != "up_for_reschedule" || len(history.Records) != 1 {
		t.Errorf("after test run = %+v, want unchanged", history)
	}
}

func TestTasksClear(t *testing.T) {
	environment := newTestEnvironment(t)
	target := filepath.Join(environment.dir, "ready.csv")
	if err := os.WriteFile(target, nil, 0644); err != nil {
		t.Fatal(err)
	}
	task := []string{"--workflow", "adhoc", "--task", "probe", "--logical-date", "2026-03-01T00:00:00Z"}

	if _, err := environment.run(t, append([]string{"tasks", "clear", "--retries", "2"}, task...)...); err == nil {
		t.Fatal("clearing a never-run instance succeeded")
	}

	environment.mustRun(t, append([]string{"sensor", "file", "--path", target}, task...)...)
	output := environment.mustRun(t, append([]string{"tasks", "clear", "--retries", "2"}, task...)...)
	if !strings.Contains(output, "next run is try 2 of 4") {
		t.Errorf("clear output = %q", output)
	}

	history := decodeJSON[reschedulesOutput](t, environment.mustRun(t, append([]string{"reschedules", "--json"}, task...)...))
	if history.State != "none" || history.TryNumber != 1 {
		t.Errorf("after clear = %+v", history)
	}
}

func TestManifestsValidate(t *testing.T) {
	environment := newTestEnvironment(t)
	environment.mustRun(t, "manifests", "validate")

	broken := filepath.Join(environment.dir, "broken.jsonc")
	content := `{"access_control": {"data-eng": ["can_fly"]}, "sensors": [{"task_id": "x", "timeout": -1}]}`
	if err := os.WriteFile(broken, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	output, err := environment.run(t, "manifests", "validate", "--json", broken)
	testutil.RequireErrorAs[*cli.ExitError](t, err)
	reports := decodeJSON[[]manifestReport](t, output)
	if len(reports) != 1 || reports[0].WorkflowID != "broken" {
		t.Fatalf("reports = %+v", reports)
	}
	joined := strings.Join(reports[0].Issues, "\n")
	for _, want := range []string{"can_fly", "timeout"} {
		if !strings.Contains(joined, want) {
			t.Errorf("issues %q lack %q", joined, want)
		}
	}
}

func TestConfigRequired(t *testing.T) {
	t.Setenv("SENTINEL_CONFIG", "")
	var stdout bytes.Buffer
	err := Root(&stdout).Execute(context.Background(), []string{"roles", "list"}, nil)
	if err == nil || !strings.Contains(err.Error(), "SENTINEL_CONFIG") {
		t.Fatalf("error = %v, want a missing-config error", err)
	}
}
