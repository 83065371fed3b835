package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newPollCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Run the Telegram bot with long polling",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load(configPath(cmd))
			if err != nil {
				return err
			}
			if cfg.Telegram.Token == "" {
				return errors.New("telegram.token is required for polling (or LAGO_TELEGRAM_TOKEN)")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			d, err := buildDeps(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer d.Close(context.Background())

			b := newBot(context.WithoutCancel(ctx), d)
			// getUpdates is refused while a webhook is registered.
			if err := b.telegram.SetWebhook(ctx, ""); err != nil {
				return err
			}

			err = b.gw.RunPoller(ctx, b.telegram)
			if errors.Is(err, context.Canceled) {
				err = nil
			}
			sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			return errors.Join(err, b.runs.Shutdown(sctx))
		},
	}
}
