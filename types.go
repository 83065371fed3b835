package lago

import "strings"

// --- LLM protocol types ---

type ChatMessage struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// GenerationParams overrides sampling settings for a single request.
// Nil fields fall back to the provider's defaults.
type GenerationParams struct {
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
}

type ChatRequest struct {
	Messages         []ChatMessage     `json:"messages"`
	GenerationParams *GenerationParams `json:"generation_params,omitempty"`
}

type ChatResponse struct {
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ImageResult is the outcome of an image generation call.
type ImageResult struct {
	URL           string
	RevisedPrompt string
}

// --- Channels ---

// ChannelKind is the closed set of messaging channels the bot serves.
type ChannelKind int

const (
	ChannelTelegram ChannelKind = iota
	ChannelWhatsApp
	ChannelMessenger
	ChannelConsole
)

func (c ChannelKind) String() string {
	switch c {
	case ChannelTelegram:
		return "telegram"
	case ChannelWhatsApp:
		return "whatsapp"
	case ChannelMessenger:
		return "messenger"
	case ChannelConsole:
		return "console"
	default:
		return "unknown"
	}
}

// ParseChannelKind maps a channel name to its kind. ok is false for names
// outside the supported set.
func ParseChannelKind(s string) (ChannelKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "telegram":
		return ChannelTelegram, true
	case "whatsapp":
		return ChannelWhatsApp, true
	case "messenger":
		return ChannelMessenger, true
	case "console":
		return ChannelConsole, true
	}
	return 0, false
}

// --- Intent ---

type Intent int

const (
	IntentChat Intent = iota
	IntentImage
	IntentCalendar
)

func (i Intent) String() string {
	switch i {
	case IntentImage:
		return "image"
	case IntentCalendar:
		return "calendar"
	default:
		return "chat"
	}
}

// --- Incoming message from frontend ---

type IncomingMessage struct {
	ID      string
	ChatID  string
	UserID  string
	Channel ChannelKind
	Text    string
	Voice   *FileInfo
}

type FileInfo struct {
	FileID   string // transport file id or a direct media URL
	FileName string
	MimeType string
	FileSize int64
}

// Reply is an outbound message. MediaURL is optional.
type Reply struct {
	Text     string
	MediaURL string
}

// Empty reports whether the reply has nothing to deliver.
func (r Reply) Empty() bool { return r.Text == "" && r.MediaURL == "" }

// --- ChatMessage constructors ---

func UserMessage(text string) ChatMessage {
	return ChatMessage{Role: "user", Content: text}
}

func SystemMessage(text string) ChatMessage {
	return ChatMessage{Role: "system", Content: text}
}

func AssistantMessage(text string) ChatMessage {
	return ChatMessage{Role: "assistant", Content: text}
}
