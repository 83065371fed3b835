// Package gateway routes inbound chat messages: voice transcription, the
// /task, /stop and /status commands, intent classification and the chat,
// image and calendar handlers. Planning runs are handed to a RunManager.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/lagobot/lago"
	"github.com/lagobot/lago/internal/history"
)

// Transport is what the gateway needs from a messaging channel: a sink for
// asynchronous planner output and a way to fetch voice attachments.
type Transport struct {
	Sink     lago.Sink
	Download func(ctx context.Context, f lago.FileInfo) (data []byte, filename string, err error)
}

// Gateway answers inbound messages. It is safe for concurrent use.
type Gateway struct {
	chat        lago.Provider
	intent      lago.Provider
	images      lago.ImageProvider
	transcriber lago.Transcriber
	calendar    Calendar
	history     history.Store
	runs        *RunManager
	transports  map[lago.ChannelKind]Transport

	botName     string
	historySize int
	temperature float64
	logger      *slog.Logger
	metrics     *Metrics
}

type Option func(*Gateway)

// WithIntentProvider sets a separate (usually cheaper) model for intent
// classification. Defaults to the chat provider.
func WithIntentProvider(p lago.Provider) Option {
	return func(g *Gateway) { g.intent = p }
}

func WithImageProvider(p lago.ImageProvider) Option {
	return func(g *Gateway) { g.images = p }
}

func WithTranscriber(t lago.Transcriber) Option {
	return func(g *Gateway) { g.transcriber = t }
}

func WithCalendar(c Calendar) Option {
	return func(g *Gateway) { g.calendar = c }
}

func WithHistory(h history.Store, size int) Option {
	return func(g *Gateway) {
		g.history = h
		g.historySize = size
	}
}

func WithBotName(name string) Option {
	return func(g *Gateway) { g.botName = name }
}

// WithTemperature sets the sampling temperature of chat replies.
func WithTemperature(t float64) Option {
	return func(g *Gateway) { g.temperature = t }
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

func WithMetrics(m *Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

// WithTransport registers the transport serving kind.
func WithTransport(kind lago.ChannelKind, t Transport) Option {
	return func(g *Gateway) { g.transports[kind] = t }
}

func New(chat lago.Provider, runs *RunManager, opts ...Option) *Gateway {
	g := &Gateway{
		chat:        chat,
		runs:        runs,
		transports:  make(map[lago.ChannelKind]Transport),
		botName:     "Lago",
		historySize: 3,
		temperature: 0.8,
	}
	for _, o := range opts {
		o(g)
	}
	if g.intent == nil {
		g.intent = chat
	}
	if g.logger == nil {
		g.logger = lago.NopLogger()
	}
	if g.metrics == nil {
		g.metrics = NewMetrics()
	}
	if g.history == nil {
		g.history = history.NewMemory(g.historySize, 1000)
	}
	return g
}

// Metrics returns the collectors the gateway reports to.
func (g *Gateway) Metrics() *Metrics { return g.metrics }

// Handle produces the synchronous reply to msg. An empty reply means there
// is nothing to send right now.
func (g *Gateway) Handle(ctx context.Context, msg lago.IncomingMessage) lago.Reply {
	start := time.Now()
	defer func() {
		g.metrics.latency.WithLabelValues(msg.Channel.String()).Observe(time.Since(start).Seconds())
	}()

	t := g.transports[msg.Channel]
	text := strings.TrimSpace(msg.Text)
	kind := "text"
	if msg.Voice != nil {
		kind = "voice"
		transcript, err := g.transcribe(ctx, t, msg.Voice)
		if err != nil {
			g.logger.Warn("gateway: voice failed", "chat_id", msg.ChatID, "error", err)
			if errors.Is(err, errVoiceUnsupported) {
				return lago.Reply{Text: voiceUnsupported}
			}
			return lago.Reply{Text: voiceNotUnderstood}
		}
		g.logger.Debug("gateway: voice transcribed", "chat_id", msg.ChatID, "chars", len(transcript))
		text = strings.TrimSpace(transcript)
	}
	g.metrics.messages.WithLabelValues(msg.Channel.String(), kind).Inc()
	if text == "" {
		return lago.Reply{}
	}
	g.logger.Info("gateway: message", "channel", msg.Channel.String(), "chat_id", msg.ChatID, "kind", kind)

	if cmd, arg, ok := parseCommand(text); ok {
		return g.command(msg, t, cmd, arg)
	}

	recent, err := g.history.Recent(ctx, msg.ChatID)
	if err != nil {
		g.logger.Warn("gateway: history read failed", "chat_id", msg.ChatID, "error", err)
	}
	hist := history.Format(recent, g.historySize)

	intent := ClassifyIntent(ctx, g.intent, text, hist)
	g.metrics.intents.WithLabelValues(intent.String()).Inc()
	g.logger.Debug("gateway: intent", "chat_id", msg.ChatID, "intent", intent.String())

	var reply lago.Reply
	switch intent {
	case lago.IntentImage:
		reply = g.handleImage(ctx, text, hist).Reply()
	case lago.IntentCalendar:
		reply = g.handleCalendar(ctx, text, hist).Reply(g.botName)
	default:
		reply = g.handleChat(ctx, text, hist)
	}

	if err := g.history.Add(ctx, msg.ChatID, text); err != nil {
		g.logger.Warn("gateway: history write failed", "chat_id", msg.ChatID, "error", err)
	}
	return reply
}

// parseCommand splits "/cmd rest". Telegram may append "@botname" to the
// command in groups; that suffix is dropped.
func parseCommand(text string) (cmd, arg string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	cmd, arg, _ = strings.Cut(text, " ")
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i]
	}
	switch cmd {
	case "/task", "/stop", "/status":
		return cmd, strings.TrimSpace(arg), true
	}
	return "", "", false
}

func (g *Gateway) command(msg lago.IncomingMessage, t Transport, cmd, arg string) lago.Reply {
	g.metrics.intents.WithLabelValues(strings.TrimPrefix(cmd, "/")).Inc()
	switch cmd {
	case "/stop":
		if g.runs.Stop(msg.ChatID) {
			return lago.Reply{Text: "Stopping the task..."}
		}
		return lago.Reply{Text: "No task is running."}
	case "/status":
		return lago.Reply{Text: g.runs.FormatStatus(msg.ChatID)}
	}

	if arg == "" {
		return lago.Reply{Text: "Usage: /task <objective>"}
	}
	if t.Sink == nil {
		return lago.Reply{Text: "Tasks are not available on this channel."}
	}
	id, err := g.runs.Start(msg.ChatID, arg, t.Sink)
	switch {
	case errors.Is(err, ErrRunActive):
		return lago.Reply{Text: "A task is already running in this chat. Send /stop to cancel it."}
	case errors.Is(err, ErrTooManyRuns):
		return lago.Reply{Text: "Too many tasks are running right now. Please try again later."}
	case err != nil:
		g.logger.Error("gateway: start run failed", "chat_id", msg.ChatID, "error", err)
		return lago.Reply{Text: chatFailed}
	}
	g.logger.Info("gateway: run started", "run", id, "chat_id", msg.ChatID)
	return lago.Reply{Text: "Working on it: " + arg}
}

// Sink returns the sink registered for kind, or nil.
func (g *Gateway) Sink(kind lago.ChannelKind) lago.Sink {
	return g.transports[kind].Sink
}
