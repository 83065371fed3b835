// Package config loads lago's settings: defaults, then a TOML file, then
// LAGO_* environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Telegram      TelegramConfig      `toml:"telegram"`
	Twilio        TwilioConfig        `toml:"twilio"`
	LLM           LLMConfig           `toml:"llm"`
	Embedding     EmbeddingConfig     `toml:"embedding"`
	Image         ImageConfig         `toml:"image"`
	Transcription TranscriptionConfig `toml:"transcription"`
	Zapier        ZapierConfig        `toml:"zapier"`
	Vector        VectorConfig        `toml:"vector"`
	Redis         RedisConfig         `toml:"redis"`
	Planner       PlannerConfig       `toml:"planner"`
	Server        ServerConfig        `toml:"server"`
	Observer      ObserverConfig      `toml:"observer"`
	Log           LogConfig           `toml:"log"`
	Bot           BotConfig           `toml:"bot"`
}

type TelegramConfig struct {
	Token       string `toml:"token"`
	APIURL      string `toml:"api_url"`
	WebhookURL  string `toml:"webhook_url"` // registered on `serve` when set
	PollTimeout int    `toml:"poll_timeout"`
}

type TwilioConfig struct {
	AccountSID     string `toml:"account_sid"`
	AuthToken      string `toml:"auth_token"`
	WhatsAppNumber string `toml:"whatsapp_number"`
	FacebookPageID string `toml:"facebook_page_id"`
	// PublicURL is the externally visible URL of POST /api. When set,
	// inbound requests must carry a valid X-Twilio-Signature.
	PublicURL string `toml:"public_url"`
}

type LLMConfig struct {
	BaseURL     string  `toml:"base_url"`
	Model       string  `toml:"model"`
	APIKey      string  `toml:"api_key"`
	Temperature float64 `toml:"temperature"`
	// CompletionModel serves the legacy completion tier.
	CompletionModel string        `toml:"completion_model"`
	MaxRetries      int           `toml:"max_retries"`
	RetryBaseDelay  time.Duration `toml:"retry_base_delay"`
	RPM             int           `toml:"rpm"`
	TPM             int           `toml:"tpm"`
}

type EmbeddingConfig struct {
	BaseURL    string `toml:"base_url"`
	Model      string `toml:"model"`
	Dimensions int    `toml:"dimensions"`
	APIKey     string `toml:"api_key"`
}

type ImageConfig struct {
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
	Size    string `toml:"size"`
	APIKey  string `toml:"api_key"`
}

type TranscriptionConfig struct {
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
	APIKey  string `toml:"api_key"`
}

type ZapierConfig struct {
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"`
	ActionID string `toml:"action_id"`
}

type VectorConfig struct {
	Driver     string `toml:"driver"` // "sqlite" or "postgres"
	Path       string `toml:"path"`
	DSN        string `toml:"dsn"`
	Dimensions int    `toml:"dimensions"`
}

type RedisConfig struct {
	Addr     string        `toml:"addr"` // empty selects the in-memory history
	Password string        `toml:"password"`
	DB       int           `toml:"db"`
	TTL      time.Duration `toml:"ttl"`
}

type PlannerConfig struct {
	ModelTier           string        `toml:"model_tier"` // "chat" or "completion"
	TopK                int           `toml:"top_k"`
	MaxTasks            int           `toml:"max_tasks"`
	MaxIterations       int           `toml:"max_iterations"`
	ExecTemperature     float64       `toml:"exec_temperature"`
	ExecMaxTokens       int           `toml:"exec_max_tokens"`
	PlanningTemperature float64       `toml:"planning_temperature"`
	PlanningMaxTokens   int           `toml:"planning_max_tokens"`
	StepTimeout         time.Duration `toml:"step_timeout"`
	StepRetries         int           `toml:"step_retries"`
	StepBackoff         time.Duration `toml:"step_backoff"`
	ParseMode           string        `toml:"parse_mode"`
	FirstTask           string        `toml:"first_task"`
	NamespacePrefix     string        `toml:"namespace_prefix"`
	DiscardResults      bool          `toml:"discard_results"`
	MaxConcurrent       int           `toml:"max_concurrent"`
}

type ServerConfig struct {
	Addr            string        `toml:"addr"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
}

type ObserverConfig struct {
	Enabled bool                       `toml:"enabled"`
	Pricing map[string]ObserverPricing `toml:"pricing"`
}

type ObserverPricing struct {
	Input  float64 `toml:"input"`
	Output float64 `toml:"output"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "text" or "json"
}

type BotConfig struct {
	Name            string `toml:"name"`
	HistorySize     int    `toml:"history_size"`
	HistoryCapacity int    `toml:"history_capacity"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		LLM: LLMConfig{
			BaseURL:         "https://api.openai.com/v1",
			Model:           "gpt-4o-mini",
			Temperature:     0.8,
			CompletionModel: "gpt-3.5-turbo-instruct",
			MaxRetries:      3,
			RetryBaseDelay:  time.Second,
		},
		Embedding:     EmbeddingConfig{Model: "text-embedding-ada-002", Dimensions: 1536},
		Image:         ImageConfig{Size: "256x256"},
		Transcription: TranscriptionConfig{Model: "whisper-1"},
		Telegram:      TelegramConfig{PollTimeout: 30},
		Vector:        VectorConfig{Driver: "sqlite", Path: "lago.db"},
		Redis:         RedisConfig{TTL: 24 * time.Hour},
		Planner: PlannerConfig{
			ModelTier:           "chat",
			TopK:                5,
			MaxTasks:            6,
			MaxIterations:       20,
			ExecTemperature:     0.7,
			ExecMaxTokens:       2000,
			PlanningTemperature: 0.5,
			PlanningMaxTokens:   100,
			StepTimeout:         60 * time.Second,
			StepRetries:         3,
			StepBackoff:         time.Second,
			ParseMode:           "drop",
			NamespacePrefix:     "run-",
			MaxConcurrent:       3,
		},
		Server: ServerConfig{Addr: ":8000", ShutdownTimeout: 10 * time.Second},
		Log:    LogConfig{Level: "info", Format: "text"},
		Bot:    BotConfig{Name: "Lago", HistorySize: 3, HistoryCapacity: 1000},
	}
}

// Load reads config: defaults -> TOML file -> env vars (env wins). A missing
// file is not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = "lago.toml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	applyFallbacks(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	for name, dst := range map[string]*string{
		"LAGO_TELEGRAM_TOKEN":          &cfg.Telegram.Token,
		"LAGO_TELEGRAM_WEBHOOK_URL":    &cfg.Telegram.WebhookURL,
		"LAGO_TWILIO_ACCOUNT_SID":      &cfg.Twilio.AccountSID,
		"LAGO_TWILIO_AUTH_TOKEN":       &cfg.Twilio.AuthToken,
		"LAGO_TWILIO_WHATSAPP_NUMBER":  &cfg.Twilio.WhatsAppNumber,
		"LAGO_TWILIO_FACEBOOK_PAGE_ID": &cfg.Twilio.FacebookPageID,
		"LAGO_LLM_API_KEY":             &cfg.LLM.APIKey,
		"LAGO_LLM_BASE_URL":            &cfg.LLM.BaseURL,
		"LAGO_LLM_MODEL":               &cfg.LLM.Model,
		"LAGO_EMBEDDING_API_KEY":       &cfg.Embedding.APIKey,
		"LAGO_IMAGE_API_KEY":           &cfg.Image.APIKey,
		"LAGO_TRANSCRIPTION_API_KEY":   &cfg.Transcription.APIKey,
		"LAGO_ZAPIER_API_KEY":          &cfg.Zapier.APIKey,
		"LAGO_VECTOR_DRIVER":           &cfg.Vector.Driver,
		"LAGO_VECTOR_DSN":              &cfg.Vector.DSN,
		"LAGO_REDIS_ADDR":              &cfg.Redis.Addr,
		"LAGO_REDIS_PASSWORD":          &cfg.Redis.Password,
		"LAGO_SERVER_ADDR":             &cfg.Server.Addr,
		"LAGO_LOG_LEVEL":               &cfg.Log.Level,
	} {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("LAGO_OBSERVER_ENABLED"); v == "true" || v == "1" {
		cfg.Observer.Enabled = true
	}
}

// applyFallbacks lets the embedding, image and transcription clients reuse
// the LLM endpoint and key unless they are configured separately.
func applyFallbacks(cfg *Config) {
	for _, ep := range []struct{ baseURL, apiKey *string }{
		{&cfg.Embedding.BaseURL, &cfg.Embedding.APIKey},
		{&cfg.Image.BaseURL, &cfg.Image.APIKey},
		{&cfg.Transcription.BaseURL, &cfg.Transcription.APIKey},
	} {
		if *ep.baseURL == "" {
			*ep.baseURL = cfg.LLM.BaseURL
		}
		if *ep.apiKey == "" {
			*ep.apiKey = cfg.LLM.APIKey
		}
	}
	if cfg.Vector.Dimensions == 0 {
		cfg.Vector.Dimensions = cfg.Embedding.Dimensions
	}
}

// Validate reports settings that cannot work together.
func (c Config) Validate() error {
	switch c.Vector.Driver {
	case "sqlite":
	case "postgres":
		if c.Vector.DSN == "" {
			return fmt.Errorf("config: vector.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("config: unknown vector.driver %q", c.Vector.Driver)
	}
	switch c.Planner.ModelTier {
	case "chat", "completion":
	default:
		return fmt.Errorf("config: unknown planner.model_tier %q", c.Planner.ModelTier)
	}
	switch c.Planner.ParseMode {
	case "drop", "keep", "strict":
	default:
		return fmt.Errorf("config: unknown planner.parse_mode %q", c.Planner.ParseMode)
	}
	if c.Vector.Dimensions != c.Embedding.Dimensions {
		return fmt.Errorf("config: vector.dimensions %d does not match embedding.dimensions %d",
			c.Vector.Dimensions, c.Embedding.Dimensions)
	}
	return nil
}
