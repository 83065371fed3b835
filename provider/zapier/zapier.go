// Package zapier is a client for the Zapier Natural Language Actions API,
// used to create calendar events from free-text instructions.
package zapier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lagobot/lago"
)

const defaultBaseURL = "https://nla.zapier.com/api/v1"

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// Client authenticates with a personal NLA API key.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 60 * time.Second},
		logger:  lago.NopLogger(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Action is an exposed action the user enabled in their Zapier account.
type Action struct {
	ID          string            `json:"id"`
	Description string            `json:"description"`
	Params      map[string]string `json:"params,omitempty"`
}

// Result is the outcome of executing an action.
type Result struct {
	ID         string         `json:"id"`
	ActionUsed string         `json:"action_used"`
	Status     string         `json:"status"`
	Error      string         `json:"error,omitempty"`
	Result     map[string]any `json:"result,omitempty"`
}

// Actions lists the actions exposed to the API key.
func (c *Client) Actions(ctx context.Context) ([]Action, error) {
	var out struct {
		Results []Action `json:"results"`
	}
	if err := c.do(ctx, http.MethodGet, "/exposed/", nil, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// Execute runs actionID with natural-language instructions. A response
// with status "error" is returned as an error.
func (c *Client) Execute(ctx context.Context, actionID, instructions string) (Result, error) {
	var res Result
	path := "/exposed/" + url.PathEscape(actionID) + "/execute/"
	if err := c.do(ctx, http.MethodPost, path, map[string]string{"instructions": instructions}, &res); err != nil {
		return Result{}, err
	}
	if res.Status == "error" {
		return res, fmt.Errorf("zapier: %s: %s", res.ActionUsed, res.Error)
	}
	return res, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("zapier: marshal request: %w", err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("zapier: create request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("zapier: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.logger.Debug("zapier: request done", "method", method, "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 16<<10))
		return &lago.ErrHTTP{Status: resp.StatusCode, Body: string(raw), RetryAfter: lago.ParseRetryAfter(resp.Header.Get("Retry-After"))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("zapier: decode response: %w", err)
	}
	return nil
}
