package main

import (
	"context"

	"github.com/lagobot/lago"
	"github.com/lagobot/lago/frontend/telegram"
	"github.com/lagobot/lago/frontend/twilio"
	"github.com/lagobot/lago/internal/gateway"
)

// bot bundles the gateway with the pieces the commands drive directly.
type bot struct {
	gw       *gateway.Gateway
	runs     *gateway.RunManager
	telegram *telegram.Bot
}

// newBot wires every configured transport into a gateway. Planning runs
// live on base, so they survive the request that started them.
func newBot(base context.Context, d *deps) *bot {
	cfg := d.cfg
	metrics := gateway.NewMetrics()
	runs := gateway.NewRunManager(base, d.runner,
		gateway.RunMaxConcurrent(cfg.Planner.MaxConcurrent),
		gateway.RunLogger(d.logger),
		gateway.RunMetrics(metrics),
	)

	opts := []gateway.Option{
		gateway.WithImageProvider(d.images),
		gateway.WithTranscriber(d.transcriber),
		gateway.WithHistory(d.history, cfg.Bot.HistorySize),
		gateway.WithBotName(cfg.Bot.Name),
		gateway.WithTemperature(cfg.LLM.Temperature),
		gateway.WithLogger(d.logger),
		gateway.WithMetrics(metrics),
	}
	if d.calendar != nil {
		opts = append(opts, gateway.WithCalendar(d.calendar))
	}

	b := &bot{runs: runs}
	if cfg.Telegram.Token != "" {
		topts := []telegram.Option{
			telegram.WithLogger(d.logger),
			telegram.WithPollTimeout(cfg.Telegram.PollTimeout),
		}
		if cfg.Telegram.APIURL != "" {
			topts = append(topts, telegram.WithAPIURL(cfg.Telegram.APIURL))
		}
		tg := telegram.NewBot(cfg.Telegram.Token, topts...)
		b.telegram = tg
		opts = append(opts, gateway.WithTransport(lago.ChannelTelegram, gateway.Transport{
			Sink: tg,
			Download: func(ctx context.Context, f lago.FileInfo) ([]byte, string, error) {
				return tg.DownloadFile(ctx, f.FileID)
			},
		}))
	}

	if tw := cfg.Twilio; tw.AccountSID != "" {
		client := twilio.NewClient(tw.AccountSID, tw.AuthToken, twilio.WithLogger(d.logger))
		download := func(ctx context.Context, f lago.FileInfo) ([]byte, string, error) {
			data, _, err := client.DownloadMedia(ctx, f.FileID)
			return data, f.FileName, err
		}
		for _, kind := range []lago.ChannelKind{lago.ChannelWhatsApp, lago.ChannelMessenger} {
			sink, err := twilio.NewSink(client, kind, tw.WhatsAppNumber, tw.FacebookPageID)
			if err != nil {
				d.logger.Info("twilio channel disabled", "channel", kind.String(), "reason", err)
				opts = append(opts, gateway.WithTransport(kind, gateway.Transport{Download: download}))
				continue
			}
			opts = append(opts, gateway.WithTransport(kind, gateway.Transport{Sink: sink, Download: download}))
		}
	}

	b.gw = gateway.New(d.chat, runs, opts...)
	return b
}
