// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/sentinel/cmd/sentinel/cli"
	"github.com/bureau-foundation/sentinel/lib/clock"
	"github.com/bureau-foundation/sentinel/lib/reschedule"
	"github.com/bureau-foundation/sentinel/lib/taskinstance"
	"github.com/bureau-foundation/sentinel/lib/taskrun"
)

type reschedulesParams struct {
	ConfigParams
	TaskParams
	cli.JSONOutput
	Try int `json:"try" flag:"try" desc:"only records of this try number (0: all tries)"`
}

// rescheduleEntry is one record in "reschedules --json" output.
type rescheduleEntry struct {
	ID             int64  `json:"id"`
	TryNumber      int    `json:"try_number"`
	StartDate      string `json:"start_date"`
	RescheduleDate string `json:"reschedule_date"`
	DurationSecs   int64  `json:"duration_seconds"`
}

// reschedulesOutput is "reschedules --json" output.
type reschedulesOutput struct {
	State     string            `json:"state"`
	TryNumber int               `json:"try_number"`
	Records   []rescheduleEntry `json:"records"`
}

func reschedulesCommand(stdout io.Writer) *cli.Command {
	var params reschedulesParams
	return &cli.Command{
		Name:    "reschedules",
		Summary: "Show a task instance's reschedule history",
		Examples: []cli.Example{
			{
				Description: "Reschedules of the current try",
				Command:     "sentinel reschedules --workflow ingest --task wait_for_file --logical-date 2026-03-01T00:00:00Z --try 2",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("reschedules", &params)
		},
		Run: func(ctx context.Context, _ []string, logger *slog.Logger) error {
			key, err := params.key()
			if err != nil {
				return err
			}
			cfg, err := params.load()
			if err != nil {
				return err
			}
			store, err := openTaskStore(cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			instance, err := store.Get(ctx, key)
			if err != nil {
				return err
			}
			records, err := store.FindFor(ctx, key)
			if err != nil {
				return err
			}
			if params.Try > 0 {
				records = reschedule.ForTry(records, params.Try)
			}

			output := reschedulesOutput{
				State:     string(instance.State),
				TryNumber: instance.TryNumber,
				Records:   make([]rescheduleEntry, 0, len(records)),
			}
			for _, record := range records {
				output.Records = append(output.Records, rescheduleEntry{
					ID:             record.ID,
					TryNumber:      record.TryNumber,
					StartDate:      formatTime(record.StartDate),
					RescheduleDate: formatTime(record.RescheduleDate),
					DurationSecs:   int64(record.Duration().Seconds()),
				})
			}
			if done, err := params.EmitJSON(stdout, output); done {
				return err
			}

			fmt.Fprintf(stdout, "%s: %s, try %d\n", key, output.State, output.TryNumber)
			table := cli.NewTable("ID", "TRY", "START", "RESCHEDULE", "WAIT")
			for _, entry := range output.Records {
				table.Row(strconv.FormatInt(entry.ID, 10), strconv.Itoa(entry.TryNumber),
					entry.StartDate, entry.RescheduleDate, strconv.FormatInt(entry.DurationSecs, 10)+"s")
			}
			return table.Render(stdout)
		},
	}
}

func tasksCommand(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "tasks",
		Summary: "Manage task instances",
		Subcommands: []*cli.Command{
			tasksClearCommand(stdout),
		},
	}
}

type tasksClearParams struct {
	ConfigParams
	TaskParams
	Retries int `json:"retries" flag:"retries" desc:"retry budget granted on top of the tries already used"`
}

func tasksClearCommand(stdout io.Writer) *cli.Command {
	var params tasksClearParams
	return &cli.Command{
		Name:    "clear",
		Summary: "Reset a task instance so it runs again",
		Description: `Reset a task instance to the none state and raise its retry ceiling
by --retries above the tries already used. Reschedule records of
earlier tries are kept; the next run starts a new try with a fresh
timeout window.`,
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("clear", &params)
		},
		Run: func(ctx context.Context, _ []string, logger *slog.Logger) error {
			key, err := params.key()
			if err != nil {
				return err
			}
			if params.Retries < 0 {
				return errors.New("--retries must not be negative")
			}
			cfg, err := params.load()
			if err != nil {
				return err
			}
			store, err := openTaskStore(cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			instance, err := taskrun.NewRunner(store, clock.Real(), logger).Clear(ctx, key, params.Retries)
			if errors.Is(err, taskinstance.ErrNotFound) {
				return fmt.Errorf("%s has never run", key)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "%s cleared: next run is try %d of %d\n",
				key, instance.TryNumber+1, instance.MaxTries+1)
			return nil
		},
	}
}
