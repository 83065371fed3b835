package openaicompat

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/lagobot/lago"
)

// DefaultTranscriptionModel is the model sent when none is configured.
const DefaultTranscriptionModel = "whisper-1"

// Transcriber implements lago.Transcriber on /audio/transcriptions.
type Transcriber struct {
	client
}

var _ lago.Transcriber = (*Transcriber)(nil)

func NewTranscriber(apiKey, model, baseURL string, opts ...ProviderOption) *Transcriber {
	if model == "" {
		model = DefaultTranscriptionModel
	}
	return &Transcriber{client: newClient(apiKey, model, baseURL, "openai-transcription", opts)}
}

func (t *Transcriber) Name() string { return t.name }

// Transcribe uploads audio as multipart form data and returns the text.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if len(audio) == 0 {
		return "", &lago.ErrLLM{Provider: t.name, Message: "empty audio"}
	}
	if filename == "" {
		filename = "audio.ogg"
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("model", t.model); err != nil {
		return "", err
	}
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(audio); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/audio/transcriptions", &buf)
	if err != nil {
		return "", &lago.ErrLLM{Provider: t.name, Message: fmt.Sprintf("create request: %v", err)}
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var resp TranscriptionResponse
	if err := t.do(req, &resp); err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}
