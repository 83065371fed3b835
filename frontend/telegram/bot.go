// Package telegram is the Telegram Bot API transport: long polling,
// webhook update parsing, message delivery and voice file download.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lagobot/lago"
)

const (
	maxMessageLength = 4096
	maxCaptionLength = 1024
	defaultAPIURL    = "https://api.telegram.org"
)

// Option configures a Bot.
type Option func(*Bot)

// WithAPIURL points the bot at a different Bot API server (a local
// telegram-bot-api instance, or a test server).
func WithAPIURL(u string) Option {
	return func(b *Bot) { b.apiURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(b *Bot) { b.http = hc }
}

func WithLogger(l *slog.Logger) Option {
	return func(b *Bot) { b.logger = l }
}

// WithPollTimeout sets the getUpdates long-poll timeout in seconds.
func WithPollTimeout(secs int) Option {
	return func(b *Bot) { b.pollTimeout = secs }
}

// Bot talks to the Telegram Bot API. It is safe for concurrent use.
type Bot struct {
	token       string
	apiURL      string
	http        *http.Client
	logger      *slog.Logger
	pollTimeout int
}

var _ lago.Sink = (*Bot)(nil)

func NewBot(token string, opts ...Option) *Bot {
	b := &Bot{
		token:       token,
		apiURL:      defaultAPIURL,
		http:        &http.Client{Timeout: 90 * time.Second},
		logger:      lago.NopLogger(),
		pollTimeout: 30,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

func (b *Bot) Name() string { return "telegram" }

// Send delivers reply to chatID. A reply with MediaURL goes out as a photo
// with the text as caption; text past the caption limit follows as a
// separate message. Text is converted from Markdown to Telegram HTML and
// resent as plain text if Telegram rejects the markup.
func (b *Bot) Send(ctx context.Context, chatID string, reply lago.Reply) error {
	text := reply.Text
	if reply.MediaURL != "" {
		caption := ""
		if len(text) <= maxCaptionLength {
			caption, text = text, ""
		}
		body := map[string]any{"chat_id": chatID, "photo": reply.MediaURL}
		if caption != "" {
			body["caption"] = caption
		}
		if err := b.call(ctx, "sendPhoto", body, nil); err != nil {
			return err
		}
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}
	for _, chunk := range splitMessage(text) {
		err := b.call(ctx, "sendMessage", map[string]any{
			"chat_id":    chatID,
			"text":       MarkdownToHTML(chunk),
			"parse_mode": "HTML",
		}, nil)
		if err != nil && isParseError(err) {
			b.logger.Debug("telegram: html rejected, sending plain text", "chat_id", chatID, "error", err)
			err = b.call(ctx, "sendMessage", map[string]any{"chat_id": chatID, "text": chunk}, nil)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// SendTyping shows the typing indicator while a reply is being produced.
func (b *Bot) SendTyping(ctx context.Context, chatID string) error {
	return b.call(ctx, "sendChatAction", map[string]any{"chat_id": chatID, "action": "typing"}, nil)
}

// SetWebhook registers url as the update endpoint. An empty url removes
// the webhook so getUpdates polling works again.
func (b *Bot) SetWebhook(ctx context.Context, url string) error {
	if url == "" {
		return b.call(ctx, "deleteWebhook", map[string]any{}, nil)
	}
	return b.call(ctx, "setWebhook", map[string]any{"url": url, "allowed_updates": []string{"message"}}, nil)
}

// Poll long-polls getUpdates and streams incoming messages until ctx is
// cancelled. Transient API failures back off and retry.
func (b *Bot) Poll(ctx context.Context) (<-chan lago.IncomingMessage, error) {
	ch := make(chan lago.IncomingMessage)
	go b.pollLoop(ctx, ch)
	return ch, nil
}

func (b *Bot) pollLoop(ctx context.Context, ch chan<- lago.IncomingMessage) {
	defer close(ch)
	var offset int64
	failures := 0
	for ctx.Err() == nil {
		var updates []Update
		err := b.call(ctx, "getUpdates", map[string]any{
			"offset":          offset,
			"timeout":         b.pollTimeout,
			"allowed_updates": []string{"message"},
		}, &updates)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			delay := lago.RetryDelay(time.Second, min(failures, 5), err)
			failures++
			b.logger.Warn("telegram: poll failed", "error", err, "retry_in", delay)
			if lago.Sleep(ctx, delay) != nil {
				return
			}
			continue
		}
		failures = 0
		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			msg, ok := ToIncoming(u.Message)
			if !ok {
				continue
			}
			select {
			case ch <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}

// ParseUpdate decodes a webhook POST body. ok is false for updates that
// carry no text or voice message.
func ParseUpdate(body []byte) (lago.IncomingMessage, bool, error) {
	var u Update
	if err := json.Unmarshal(body, &u); err != nil {
		return lago.IncomingMessage{}, false, fmt.Errorf("telegram: decode update: %w", err)
	}
	msg, ok := ToIncoming(u.Message)
	return msg, ok, nil
}

// ToIncoming maps a Bot API message onto the gateway's message type. Voice
// notes and audio files both populate Voice.
func ToIncoming(m *Message) (lago.IncomingMessage, bool) {
	if m == nil {
		return lago.IncomingMessage{}, false
	}
	msg := lago.IncomingMessage{
		ID:      strconv.FormatInt(m.MessageID, 10),
		ChatID:  strconv.FormatInt(m.Chat.ID, 10),
		Channel: lago.ChannelTelegram,
		Text:    m.Text,
	}
	if msg.Text == "" {
		msg.Text = m.Caption
	}
	if m.From != nil {
		msg.UserID = strconv.FormatInt(m.From.ID, 10)
	}
	switch {
	case m.Voice != nil:
		msg.Voice = &lago.FileInfo{FileID: m.Voice.FileID, FileName: "voice.ogg", MimeType: m.Voice.MimeType, FileSize: m.Voice.FileSize}
	case m.Audio != nil:
		msg.Voice = &lago.FileInfo{FileID: m.Audio.FileID, FileName: m.Audio.FileName, MimeType: m.Audio.MimeType, FileSize: m.Audio.FileSize}
	}
	if msg.Text == "" && msg.Voice == nil {
		return lago.IncomingMessage{}, false
	}
	return msg, true
}

// DownloadFile resolves fileID with getFile and downloads its contents.
// The returned name is the last segment of the server-side file path.
func (b *Bot) DownloadFile(ctx context.Context, fileID string) ([]byte, string, error) {
	var f File
	if err := b.call(ctx, "getFile", map[string]any{"file_id": fileID}, &f); err != nil {
		return nil, "", err
	}
	if f.FilePath == "" {
		return nil, "", fmt.Errorf("telegram: empty file_path for file_id %s", fileID)
	}
	url := fmt.Sprintf("%s/file/bot%s/%s", b.apiURL, b.token, f.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("telegram: create download request: %w", err)
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("telegram: download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, "", &lago.ErrHTTP{Status: resp.StatusCode, Body: string(body)}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("telegram: read file body: %w", err)
	}
	return data, path.Base(f.FilePath), nil
}

// call posts a JSON body to a Bot API method and decodes the result into
// out when out is non-nil. Failed calls return *lago.ErrHTTP so the retry
// helpers can classify them.
func (b *Bot) call(ctx context.Context, method string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("telegram: marshal %s: %w", method, err)
	}
	url := b.apiURL + "/bot" + b.token + "/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := b.http.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: %s: %w", method, err)
	}
	defer resp.Body.Close()

	var env envelope[json.RawMessage]
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return &lago.ErrHTTP{Status: resp.StatusCode, Body: fmt.Sprintf("decode %s response: %v", method, err)}
	}
	if !env.OK {
		e := &lago.ErrHTTP{Status: env.ErrorCode, Body: env.Description}
		if e.Status == 0 {
			e.Status = resp.StatusCode
		}
		if env.Parameters != nil && env.Parameters.RetryAfter > 0 {
			e.RetryAfter = time.Duration(env.Parameters.RetryAfter) * time.Second
		}
		b.logger.Debug("telegram: api error", "method", method, "status", e.Status, "description", e.Body)
		return e
	}
	b.logger.Debug("telegram: api call ok", "method", method, "duration", time.Since(start))
	if out != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("telegram: decode %s result: %w", method, err)
		}
	}
	return nil
}

func isParseError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "can't parse entities")
}

// splitMessage cuts text into chunks of at most maxMessageLength bytes,
// preferring the last newline of each window and never splitting a rune.
func splitMessage(text string) []string {
	var chunks []string
	for len(text) > maxMessageLength {
		cut := strings.LastIndexByte(text[:maxMessageLength], '\n') + 1
		if cut == 0 {
			cut = maxMessageLength
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
		}
		chunks = append(chunks, text[:cut])
		text = text[cut:]
	}
	return append(chunks, text)
}
