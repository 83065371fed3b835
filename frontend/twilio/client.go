// Package twilio is the Twilio Programmable Messaging transport used for
// WhatsApp and Facebook Messenger: inbound webhook parsing, TwiML replies
// and outbound delivery through the Messages REST API.
package twilio

import (
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

const defaultAPIURL = "https://api.twilio.com"

// Option configures a Client.
type Option func(*Client)

// WithAPIURL overrides the REST API base URL.
func WithAPIURL(u string) Option {
	return func(c *Client) { c.apiURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// Client calls the Twilio REST API with account credentials.
type Client struct {
	accountSID string
	authToken  string
	apiURL     string
	http       *http.Client
	logger     *slog.Logger
}

func NewClient(accountSID, authToken string, opts ...Option) *Client {
	c := &Client{
		accountSID: accountSID,
		authToken:  authToken,
		apiURL:     defaultAPIURL,
		http:       &http.Client{Timeout: 30 * time.Second},
		logger:     lago.NopLogger(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Message is the subset of the Messages resource the bot reads back.
type Message struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
	To     string `json:"to"`
	From   string `json:"from"`
}

type apiError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

// SendMessage creates an outbound message. mediaURL may be empty.
func (c *Client) SendMessage(ctx context.Context, from, to, body, mediaURL string) (Message, error) {
	form := url.Values{}
	form.Set("From", from)
	form.Set("To", to)
	form.Set("Body", body)
	if mediaURL != "" {
		form.Set("MediaUrl", mediaURL)
	}
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.apiURL, url.PathEscape(c.accountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Message{}, fmt.Errorf("twilio: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return Message{}, fmt.Errorf("twilio: send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return Message{}, readError(resp)
	}
	var m Message
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return Message{}, fmt.Errorf("twilio: decode message: %w", err)
	}
	c.logger.Debug("twilio: message created", "sid", m.SID, "status", m.Status, "to", to, "duration", time.Since(start))
	return m, nil
}

// DownloadMedia fetches an inbound media URL. Twilio media URLs accept the
// account credentials when HTTP auth for media is enabled.
func (c *Client) DownloadMedia(ctx context.Context, mediaURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("twilio: create media request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("twilio: download media: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", readError(resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("twilio: read media: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// readError turns a non-success response into *lago.ErrHTTP, preferring
// the message from Twilio's JSON error body.
func readError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 16<<10))
	body := string(raw)
	var e apiError
	if json.Unmarshal(raw, &e) == nil && e.Message != "" {
		body = fmt.Sprintf("%d: %s", e.Code, e.Message)
	}
	return &lago.ErrHTTP{
		Status:     resp.StatusCode,
		Body:       body,
		RetryAfter: lago.ParseRetryAfter(resp.Header.Get("Retry-After")),
	}
}
