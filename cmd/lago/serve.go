package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lagobot/lago/internal/gateway"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the Telegram and Twilio webhooks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load(configPath(cmd))
			if err != nil {
				return err
			}
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			d, err := buildDeps(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer d.Close(context.Background())

			b := newBot(context.WithoutCancel(ctx), d)
			if b.telegram != nil && cfg.Telegram.WebhookURL != "" {
				if err := b.telegram.SetWebhook(ctx, cfg.Telegram.WebhookURL); err != nil {
					return err
				}
				logger.Info("telegram webhook registered", "url", cfg.Telegram.WebhookURL)
			}

			sopts := []gateway.ServerOption{gateway.WithServerLogger(logger)}
			if cfg.Twilio.PublicURL != "" && cfg.Twilio.AuthToken != "" {
				sopts = append(sopts, gateway.WithTwilioSignature(cfg.Twilio.AuthToken, cfg.Twilio.PublicURL))
			}
			srv := gateway.NewServer(b.gw, sopts...)

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start(cfg.Server.Addr) }()

			select {
			case err = <-errCh:
			case <-ctx.Done():
				logger.Info("shutting down")
			}

			sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			return errors.Join(err, srv.Shutdown(sctx), b.runs.Shutdown(sctx))
		},
	}
	cmd.Flags().String("addr", "", "Listen address (overrides server.addr).")
	return cmd
}
