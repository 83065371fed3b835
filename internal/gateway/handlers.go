package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lagobot/lago"
)

// Calendar creates an event from "Add Event ..." instructions and returns
// a confirmation for the user.
type Calendar interface {
	AddEvent(ctx context.Context, instructions string) (string, error)
}

// Fallback replies shown when a handler cannot produce an answer.
const (
	needImageDetails   = "Please provide more details about the image you're looking for."
	imageRejected      = "Your request was rejected as a result of our safety system. Your prompt may contain text that is not allowed by our safety system."
	imagesUnavailable  = "Image generation is not configured."
	calendarFailed     = "I couldn't add that event to your calendar. Please try again with the date and time."
	chatFailed         = "Sorry, I can't answer right now. Please try again in a moment."
	voiceUnsupported   = "Voice messages are not supported here."
	voiceNotUnderstood = "Sorry, I could not understand the voice message."
)

func calendarUnavailable(botName string) string {
	return botName + ": I'm sorry, but I cannot access your calendar without proper configuration. Please configure the Zapier API key to enable calendar integration."
}

// ImageOutcome classifies the result of an image request.
type ImageOutcome int

const (
	ImageGenerated ImageOutcome = iota
	ImageNeedsDetail
	ImageRejected
	ImageUnavailable
	ImagePromptFailed // the chat model could not write an image prompt
)

func (o ImageOutcome) String() string {
	switch o {
	case ImageGenerated:
		return "generated"
	case ImageNeedsDetail:
		return "needs_detail"
	case ImageRejected:
		return "rejected"
	case ImagePromptFailed:
		return "prompt_failed"
	default:
		return "unavailable"
	}
}

// ImageResult is what the image handler produced.
type ImageResult struct {
	Outcome ImageOutcome
	Prompt  string
	URL     string
	Err     error
}

func (r ImageResult) Reply() lago.Reply {
	switch r.Outcome {
	case ImageGenerated:
		return lago.Reply{Text: "image of " + r.Prompt, MediaURL: r.URL}
	case ImageNeedsDetail:
		return lago.Reply{Text: needImageDetails}
	case ImageRejected:
		return lago.Reply{Text: imageRejected}
	case ImagePromptFailed:
		return lago.Reply{Text: chatFailed}
	default:
		return lago.Reply{Text: imagesUnavailable}
	}
}

// CalendarResult is what the calendar handler produced.
type CalendarResult struct {
	Configured   bool
	Instructions string
	Confirmation string
	Err          error
}

func (r CalendarResult) Reply(botName string) lago.Reply {
	switch {
	case !r.Configured:
		return lago.Reply{Text: calendarUnavailable(botName)}
	case r.Err != nil:
		return lago.Reply{Text: calendarFailed}
	default:
		return lago.Reply{Text: r.Confirmation}
	}
}

func (g *Gateway) handleChat(ctx context.Context, text, history string) lago.Reply {
	temp := g.temperature
	resp, err := g.chat.Chat(ctx, lago.ChatRequest{
		Messages: []lago.ChatMessage{
			lago.SystemMessage(chatPrompt(g.botName)),
			lago.UserMessage(withHistory(history, text)),
		},
		GenerationParams: &lago.GenerationParams{Temperature: &temp},
	})
	if err != nil {
		g.logger.Error("gateway: chat failed", "error", err)
		g.metrics.replies.WithLabelValues("chat", "error").Inc()
		return lago.Reply{Text: chatFailed}
	}
	g.metrics.replies.WithLabelValues("chat", "ok").Inc()
	return lago.Reply{Text: strings.TrimSpace(resp.Content)}
}

func (g *Gateway) handleImage(ctx context.Context, text, history string) ImageResult {
	res := g.generateImage(ctx, text, history)
	g.metrics.replies.WithLabelValues("image", res.Outcome.String()).Inc()
	if res.Err != nil {
		g.logger.Warn("gateway: image request failed", "outcome", res.Outcome.String(), "error", res.Err)
	}
	return res
}

func (g *Gateway) generateImage(ctx context.Context, text, history string) ImageResult {
	if g.images == nil {
		return ImageResult{Outcome: ImageUnavailable}
	}
	resp, err := g.chat.Chat(ctx, lago.ChatRequest{
		Messages: []lago.ChatMessage{
			lago.SystemMessage(imagePrompt),
			lago.UserMessage(withHistory(history, text)),
		},
	})
	if err != nil {
		return ImageResult{Outcome: ImagePromptFailed, Err: err}
	}
	prompt := strings.Trim(strings.TrimSpace(resp.Content), `"'`)
	if prompt == "" || strings.EqualFold(prompt, "false") {
		return ImageResult{Outcome: ImageNeedsDetail}
	}
	img, err := g.images.GenerateImage(ctx, prompt)
	if err != nil {
		return ImageResult{Outcome: ImageRejected, Prompt: prompt, Err: err}
	}
	return ImageResult{Outcome: ImageGenerated, Prompt: prompt, URL: img.URL}
}

func (g *Gateway) handleCalendar(ctx context.Context, text, history string) CalendarResult {
	if g.calendar == nil {
		g.metrics.replies.WithLabelValues("calendar", "unconfigured").Inc()
		return CalendarResult{}
	}
	res := CalendarResult{Configured: true}
	resp, err := g.chat.Chat(ctx, lago.ChatRequest{
		Messages: []lago.ChatMessage{
			lago.SystemMessage(calendarPrompt),
			lago.UserMessage(withHistory(history, text)),
		},
	})
	if err != nil {
		res.Err = err
	} else {
		res.Instructions = strings.TrimSpace(resp.Content)
		if !strings.HasPrefix(res.Instructions, "Add Event") {
			res.Err = errors.New("no event details in message")
		} else {
			res.Confirmation, res.Err = g.calendar.AddEvent(ctx, res.Instructions)
		}
	}
	if res.Err != nil {
		g.logger.Warn("gateway: calendar failed", "error", res.Err)
		g.metrics.replies.WithLabelValues("calendar", "error").Inc()
	} else {
		g.metrics.replies.WithLabelValues("calendar", "ok").Inc()
	}
	return res
}

// transcribe downloads a voice attachment and turns it into text.
func (g *Gateway) transcribe(ctx context.Context, t Transport, f *lago.FileInfo) (string, error) {
	if g.transcriber == nil || t.Download == nil {
		return "", errVoiceUnsupported
	}
	data, name, err := t.Download(ctx, *f)
	if err != nil {
		return "", fmt.Errorf("download voice: %w", err)
	}
	if name == "" {
		name = f.FileName
	}
	text, err := g.transcriber.Transcribe(ctx, data, name)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	return text, nil
}

var errVoiceUnsupported = errors.New("voice messages are not supported")
