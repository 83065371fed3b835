package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lagobot/lago"
	"github.com/lagobot/lago/internal/config"
	"github.com/lagobot/lago/internal/history"
	"github.com/lagobot/lago/observer"
	"github.com/lagobot/lago/planner"
	"github.com/lagobot/lago/provider/openaicompat"
	"github.com/lagobot/lago/provider/zapier"
	"github.com/lagobot/lago/store/postgres"
	"github.com/lagobot/lago/store/sqlite"
)

// deps holds everything built from config that more than one command needs.
type deps struct {
	cfg    config.Config
	logger *slog.Logger

	chat        lago.Provider
	embedding   lago.EmbeddingProvider
	images      lago.ImageProvider
	transcriber lago.Transcriber
	calendar    *zapier.Calendar
	store       lago.VectorStore
	history     history.Store
	runner      observer.Runner

	closers []func(context.Context) error
}

func (d *deps) Close(ctx context.Context) error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		errs = append(errs, d.closers[i](ctx))
	}
	return errors.Join(errs...)
}

// load reads and validates config and builds the logger.
func load(path string) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, nil, err
	}
	logger, err := newLogger(stderr, cfg.Log)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, logger, nil
}

func buildDeps(ctx context.Context, cfg config.Config, logger *slog.Logger) (_ *deps, err error) {
	d := &deps{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = d.Close(context.WithoutCancel(ctx))
		}
	}()

	if cfg.LLM.APIKey == "" {
		return nil, errors.New("llm.api_key is required (or LAGO_LLM_API_KEY)")
	}

	// Observer (opt-in via config)
	var inst *observer.Instruments
	if cfg.Observer.Enabled {
		pricing := make(map[string]observer.ModelPricing, len(cfg.Observer.Pricing))
		for model, p := range cfg.Observer.Pricing {
			pricing[model] = observer.ModelPricing{InputPerMillion: p.Input, OutputPerMillion: p.Output}
		}
		var shutdown func(context.Context) error
		inst, shutdown, err = observer.Init(ctx, "lago", pricing)
		if err != nil {
			return nil, fmt.Errorf("observer init: %w", err)
		}
		d.closers = append(d.closers, shutdown)
		logger.Info("observer: OTEL observability enabled")
	}

	providerLog := openaicompat.WithLogger(logger)
	retry := []lago.RetryOption{
		lago.RetryMaxAttempts(cfg.LLM.MaxRetries),
		lago.RetryBaseDelay(cfg.LLM.RetryBaseDelay),
		lago.RetryLogger(logger),
	}
	var limits []lago.RateLimitOption
	if cfg.LLM.RPM > 0 {
		limits = append(limits, lago.RPM(cfg.LLM.RPM))
	}
	if cfg.LLM.TPM > 0 {
		limits = append(limits, lago.TPM(cfg.LLM.TPM))
	}
	wrapChat := func(p lago.Provider, model string) lago.Provider {
		if inst != nil {
			p = observer.WrapProvider(p, model, inst)
		}
		p = lago.WithRetry(p, retry...)
		if len(limits) > 0 {
			p = lago.WithRateLimit(p, limits...)
		}
		return p
	}

	d.chat = wrapChat(openaicompat.NewProvider(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.BaseURL, providerLog), cfg.LLM.Model)

	planLLM := d.chat
	if cfg.Planner.ModelTier == "completion" {
		planLLM = wrapChat(openaicompat.NewCompletionProvider(cfg.LLM.APIKey, cfg.LLM.CompletionModel, cfg.LLM.BaseURL, providerLog), cfg.LLM.CompletionModel)
	}

	var embedding lago.EmbeddingProvider = openaicompat.NewEmbedding(cfg.Embedding.APIKey, cfg.Embedding.Model, cfg.Embedding.BaseURL, cfg.Embedding.Dimensions, providerLog)
	if inst != nil {
		embedding = observer.WrapEmbedding(embedding, cfg.Embedding.Model, inst)
	}
	d.embedding = lago.WithEmbeddingRetry(embedding, retry...)

	var images lago.ImageProvider = openaicompat.NewImageGenerator(cfg.Image.APIKey, cfg.Image.Model, cfg.Image.BaseURL, cfg.Image.Size, providerLog)
	var transcriber lago.Transcriber = openaicompat.NewTranscriber(cfg.Transcription.APIKey, cfg.Transcription.Model, cfg.Transcription.BaseURL, providerLog)
	if inst != nil {
		images = observer.WrapImage(images, cfg.Image.Model, inst)
		transcriber = observer.WrapTranscriber(transcriber, cfg.Transcription.Model, inst)
	}
	d.images, d.transcriber = images, transcriber

	if cfg.Zapier.APIKey != "" {
		opts := []zapier.Option{zapier.WithLogger(logger)}
		if cfg.Zapier.BaseURL != "" {
			opts = append(opts, zapier.WithBaseURL(cfg.Zapier.BaseURL))
		}
		d.calendar = zapier.NewCalendar(zapier.New(cfg.Zapier.APIKey, opts...), cfg.Zapier.ActionID)
	}

	if err := d.openStore(ctx); err != nil {
		return nil, err
	}
	if err := d.openHistory(ctx); err != nil {
		return nil, err
	}

	mode, _ := planner.ParseParseMode(cfg.Planner.ParseMode)
	popts := []planner.Option{
		planner.WithTopK(cfg.Planner.TopK),
		planner.WithMaxTasks(cfg.Planner.MaxTasks),
		planner.WithMaxIterations(cfg.Planner.MaxIterations),
		planner.WithExecutionParams(cfg.Planner.ExecTemperature, cfg.Planner.ExecMaxTokens),
		planner.WithPlanningParams(cfg.Planner.PlanningTemperature, cfg.Planner.PlanningMaxTokens),
		planner.WithStepRetry(cfg.Planner.StepRetries, cfg.Planner.StepBackoff),
		planner.WithStepTimeout(cfg.Planner.StepTimeout),
		planner.WithParseMode(mode),
		planner.WithFirstTask(cfg.Planner.FirstTask),
		planner.WithNamespacePrefix(cfg.Planner.NamespacePrefix),
		planner.WithLogger(logger),
	}
	if cfg.Planner.DiscardResults {
		popts = append(popts, planner.WithDiscardResults())
	}
	var runner observer.Runner = planner.New(planLLM, d.embedding, d.store, popts...)
	if inst != nil {
		runner = observer.WrapRunner(runner, inst)
	}
	d.runner = runner
	return d, nil
}

func (d *deps) openStore(ctx context.Context) error {
	cfg := d.cfg.Vector
	switch cfg.Driver {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.DSN)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		d.closers = append(d.closers, func(context.Context) error { pool.Close(); return nil })
		d.store = postgres.New(pool, postgres.WithEmbeddingDimension(cfg.Dimensions))
	default:
		s := sqlite.New(cfg.Path, sqlite.WithDimensions(cfg.Dimensions), sqlite.WithLogger(d.logger))
		d.closers = append(d.closers, func(context.Context) error { return s.Close() })
		d.store = s
	}
	if err := d.store.Init(ctx); err != nil {
		return fmt.Errorf("vector store init: %w", err)
	}
	d.logger.Info("vector store ready", "driver", cfg.Driver, "dimensions", cfg.Dimensions)
	return nil
}

func (d *deps) openHistory(ctx context.Context) error {
	bot, rc := d.cfg.Bot, d.cfg.Redis
	if rc.Addr == "" {
		d.history = history.NewMemory(bot.HistorySize, bot.HistoryCapacity)
		return nil
	}
	client, err := history.Dial(ctx, rc.Addr, rc.Password, rc.DB)
	if err != nil {
		return err
	}
	d.closers = append(d.closers, func(context.Context) error { return client.Close() })
	d.history = history.NewRedis(client, bot.HistorySize, rc.TTL)
	d.logger.Info("chat history in redis", "addr", rc.Addr)
	return nil
}
