package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lagobot/lago"
)

// client holds what every endpoint wrapper shares: credentials, base URL,
// HTTP client and request defaults.
type client struct {
	apiKey  string
	model   string
	baseURL string
	name    string
	http    *http.Client
	opts    []Option
	logger  *slog.Logger
}

func newClient(apiKey, model, baseURL, name string, opts []ProviderOption) client {
	c := client{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		name:    name,
		http:    &http.Client{},
	}
	for _, o := range opts {
		o(&c)
	}
	if c.logger == nil {
		c.logger = lago.NopLogger()
	}
	return c
}

// mergeGenParams returns the client's base options with any per-request
// GenerationParams appended. Per-request params win because options are
// applied in order.
func (c *client) mergeGenParams(params *lago.GenerationParams) []Option {
	if params == nil {
		return c.opts
	}
	opts := make([]Option, len(c.opts), len(c.opts)+2)
	copy(opts, c.opts)
	if params.Temperature != nil {
		opts = append(opts, WithTemperature(*params.Temperature))
	}
	if params.MaxTokens != nil {
		opts = append(opts, WithMaxTokens(*params.MaxTokens))
	}
	return opts
}

// postJSON sends body to path and decodes a 200 response into out.
func (c *client) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &lago.ErrLLM{Provider: c.name, Message: fmt.Sprintf("marshal request: %v", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return &lago.ErrLLM{Provider: c.name, Message: fmt.Sprintf("create request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

// do sends req with auth and decodes a 200 response into out.
func (c *client) do(req *http.Request, out any) error {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	c.logger.Debug("openaicompat: request done",
		"provider", c.name,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"duration", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		return c.httpErr(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &lago.ErrLLM{Provider: c.name, Message: fmt.Sprintf("decode response: %v", err)}
	}
	return nil
}

// httpErr reads the response body and returns an ErrHTTP for retry
// middleware. The error message from the JSON envelope is preferred over
// the raw body when present.
func (c *client) httpErr(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	body := string(raw)
	var env errorEnvelope
	if json.Unmarshal(raw, &env) == nil && env.Error.Message != "" {
		body = env.Error.Message
	}
	return &lago.ErrHTTP{
		Status:     resp.StatusCode,
		Body:       body,
		RetryAfter: lago.ParseRetryAfter(resp.Header.Get("Retry-After")),
	}
}
