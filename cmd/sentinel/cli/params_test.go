// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

type testParams struct {
	JSONOutput
	Role     string        `flag:"role,r" desc:"role name" default:"Viewer"`
	Roles    []string      `flag:"roles" desc:"role names"`
	Limit    int           `flag:"limit" desc:"row limit" default:"20"`
	Wait     time.Duration `flag:"wait" desc:"wait" default:"5s"`
	Verbose  bool          `flag:"verbose" desc:"verbose output"`
	Untagged string
}

func TestBindFlags_DefaultsAndParsing(t *testing.T) {
	var params testParams
	flagSet := FlagsFromParams("test", &params)

	if params.Role != "Viewer" || params.Limit != 20 || params.Wait != 5*time.Second {
		t.Fatalf("defaults = %+v", params)
	}

	err := flagSet.Parse([]string{"-r", "Op", "--roles", "a,b", "--json", "--verbose", "--limit", "3"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if params.Role != "Op" {
		t.Errorf("Role = %q, want Op", params.Role)
	}
	if len(params.Roles) != 2 || params.Roles[1] != "b" {
		t.Errorf("Roles = %v, want [a b]", params.Roles)
	}
	if !params.OutputJSON || !params.Verbose || params.Limit != 3 {
		t.Errorf("params = %+v", params)
	}
	if flagSet.Lookup("untagged") != nil {
		t.Error("untagged field was bound")
	}
}

func TestBindFlags_RejectsNonPointer(t *testing.T) {
	if err := BindFlags(testParams{}, pflag.NewFlagSet("x", pflag.ContinueOnError)); err == nil {
		t.Fatal("BindFlags accepted a struct value")
	}
}

func TestBindFlags_UnsupportedType(t *testing.T) {
	var params struct {
		Ratio float32 `flag:"ratio"`
	}
	err := BindFlags(&params, pflag.NewFlagSet("x", pflag.ContinueOnError))
	if err == nil || !strings.Contains(err.Error(), "unsupported type") {
		t.Fatalf("BindFlags error = %v, want unsupported type", err)
	}
}

func TestBindFlags_InvalidDefault(t *testing.T) {
	var params struct {
		Limit int `flag:"limit" default:"many"`
	}
	err := BindFlags(&params, pflag.NewFlagSet("x", pflag.ContinueOnError))
	if err == nil || !strings.Contains(err.Error(), "--limit") {
		t.Fatalf("BindFlags error = %v, want a default error naming --limit", err)
	}
}

func TestEmitJSON(t *testing.T) {
	var output JSONOutput
	var buffer bytes.Buffer

	done, err := output.EmitJSON(&buffer, []string{"x"})
	if done || err != nil || buffer.Len() != 0 {
		t.Fatalf("EmitJSON without --json = (%v, %v), wrote %q", done, err, buffer.String())
	}

	output.OutputJSON = true
	var empty []string
	done, err = output.EmitJSON(&buffer, empty)
	if !done || err != nil {
		t.Fatalf("EmitJSON = (%v, %v)", done, err)
	}
	if strings.TrimSpace(buffer.String()) != "[]" {
		t.Errorf("nil slice encoded as %q, want []", buffer.String())
	}
}
