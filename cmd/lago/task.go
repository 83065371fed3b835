package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lagobot/lago/frontend/console"
	"github.com/lagobot/lago/planner"
)

func newTaskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "task <objective>",
		Short: "Run one planning loop in the terminal",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load(configPath(cmd))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			d, err := buildDeps(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer d.Close(context.Background())

			out := cmd.OutOrStdout()
			objective := strings.Join(args, " ")
			fmt.Fprintf(out, "*****OBJECTIVE*****\n%s\n\n", objective)

			res, err := d.runner.Run(ctx, planner.Request{
				Objective: objective,
				ChannelID: "console",
				Sink:      console.New(out),
			})
			fmt.Fprintf(out, "run %s: %s after %d iterations, %d tasks left\n",
				res.RunID, res.State, res.Iterations, len(res.Remaining))
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}
