// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/sentinel/cmd/sentinel/cli"
	"github.com/bureau-foundation/sentinel/lib/config"
	"github.com/bureau-foundation/sentinel/lib/manifest"
	"github.com/bureau-foundation/sentinel/lib/sensor"
	"github.com/bureau-foundation/sentinel/lib/taskrun"
)

func sensorCommand(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "sensor",
		Summary: "Run built-in sensors",
		Subcommands: []*cli.Command{
			sensorFileCommand(stdout),
		},
	}
}

type sensorFileParams struct {
	ConfigParams
	TaskParams
	cli.JSONOutput
	Path     string        `json:"path" flag:"path" desc:"file or glob pattern to wait for (required)"`
	Retries  int           `json:"retries" flag:"retries" desc:"retry budget for a new instance; -1 takes it from the manifest" default:"-1"`
	Test     bool          `json:"test" flag:"test" desc:"run without recording anything"`
	Deadline time.Duration `json:"deadline" flag:"deadline" desc:"abort the invocation after this long (0: no deadline)"`
}

// sensorOutput is "sensor file --json" output.
type sensorOutput struct {
	Outcome        string `json:"outcome,omitempty"`
	State          string `json:"state"`
	TryNumber      int    `json:"try_number"`
	MaxTries       int    `json:"max_tries"`
	Pokes          int    `json:"pokes,omitempty"`
	RescheduleDate string `json:"reschedule_date,omitempty"`
	Error          string `json:"error,omitempty"`
}

func sensorFileCommand(stdout io.Writer) *cli.Command {
	var params sensorFileParams
	return &cli.Command{
		Name:    "file",
		Summary: "Wait for a file to appear",
		Description: `Run one invocation of a sensor that succeeds once --path exists (glob
patterns match any file). Polling settings come from the workflow
manifest's sensor entry for --task, falling back to the configured
sensor defaults.

In reschedule mode the command returns after one poke and records the
next invocation time; run it again at or after that time.`,
		Examples: []cli.Example{
			{
				Description: "Wait for today's export",
				Command:     "sentinel sensor file --workflow ingest --task wait_for_file --logical-date 2026-03-01T00:00:00Z --path /data/export/2026-03-01.csv",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("file", &params)
		},
		Run: func(ctx context.Context, _ []string, logger *slog.Logger) error {
			if params.Path == "" {
				return errors.New("--path is required")
			}
			key, err := params.key()
			if err != nil {
				return err
			}
			cfg, err := params.load()
			if err != nil {
				return err
			}
			sensorConfig, retries, err := sensorFor(ctx, cfg, params.WorkflowID, params.TaskID)
			if err != nil {
				return err
			}
			if params.Retries >= 0 {
				retries = params.Retries
			}
			sensorConfig.Logger = logger

			fileSensor, err := sensor.New(sensorConfig, fileExists(params.Path))
			if err != nil {
				return err
			}
			store, err := openTaskStore(cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			options := taskrun.RunOptions{Retries: retries, TestMode: params.Test}
			if params.Deadline > 0 {
				options.Deadline = sensorConfig.Clock.Now().Add(params.Deadline)
			}
			result, runErr := taskrun.NewRunner(store, sensorConfig.Clock, logger).Run(ctx, key, fileSensor, options)

			output := sensorOutput{
				State:     string(result.TaskInstance.State),
				TryNumber: result.TaskInstance.TryNumber,
				MaxTries:  result.TaskInstance.MaxTries,
			}
			if runErr != nil {
				output.Error = runErr.Error()
			} else {
				output.Outcome = result.Outcome.Kind.String()
				output.Pokes = result.Outcome.Pokes
				if result.Outcome.Kind == sensor.OutcomeRescheduled {
					output.RescheduleDate = formatTime(result.Outcome.RescheduleDate)
				}
			}
			if done, err := params.EmitJSON(stdout, output); done {
				return errors.Join(err, runErr)
			}
			if runErr != nil {
				return runErr
			}

			fmt.Fprintf(stdout, "%s after %d poke(s): state %s, try %d of %d\n",
				output.Outcome, output.Pokes, output.State, output.TryNumber, output.MaxTries+1)
			if output.RescheduleDate != "" {
				fmt.Fprintf(stdout, "next invocation at %s\n", output.RescheduleDate)
			}
			return nil
		},
	}
}

// sensorFor returns the sensor configuration and retry budget declared
// for taskID in workflowID's manifest, or the configured defaults when
// the manifest or the sensor entry does not exist.
func sensorFor(ctx context.Context, cfg *config.Config, workflowID, taskID string) (sensor.Config, int, error) {
	base, err := sensorDefaults(cfg)
	if err != nil {
		return sensor.Config{}, 0, fmt.Errorf("sensor defaults: %w", err)
	}
	base.Name = taskID

	workflows, err := manifest.Directory{Path: cfg.Paths.Manifests}.Workflows(ctx)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return base, 0, nil
		}
		return sensor.Config{}, 0, err
	}
	for _, workflow := range workflows {
		if workflow.ID != workflowID {
			continue
		}
		for _, spec := range workflow.Sensors {
			if spec.TaskID == taskID {
				config, err := spec.Config(base)
				return config, spec.Retries, err
			}
		}
	}
	return base, 0, nil
}

// fileExists pokes until a file matching pattern exists.
func fileExists(pattern string) sensor.Poker {
	return sensor.PokerFunc(func(_ context.Context, pokeContext *sensor.PokeContext) (bool, error) {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return false, fmt.Errorf("file sensor: %w", err)
		}
		for _, match := range matches {
			if _, err := os.Stat(match); err == nil {
				pokeContext.Logger.Info("file found", "path", match, "attempt", pokeContext.Attempt)
				return true, nil
			}
		}
		pokeContext.Logger.Debug("file not found", "pattern", pattern, "attempt", pokeContext.Attempt)
		return false, nil
	})
}

