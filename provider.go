package lago

import "context"

// Provider abstracts the LLM backend.
type Provider interface {
	// Chat sends a request and returns a complete response.
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
	// Name returns the provider name (e.g. "openai", "openai-completion").
	Name() string
}

// EmbeddingProvider abstracts text embedding.
type EmbeddingProvider interface {
	// Embed returns embedding vectors for the given texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions returns the embedding vector size.
	Dimensions() int
	// Name returns the provider name.
	Name() string
}

// ImageProvider generates an image from a text prompt and returns its URL.
type ImageProvider interface {
	GenerateImage(ctx context.Context, prompt string) (ImageResult, error)
	Name() string
}

// Transcriber converts recorded speech into text.
type Transcriber interface {
	// Transcribe returns the text spoken in audio. filename carries the
	// container extension (".ogg", ".mp3") the backend uses to pick a decoder.
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
	Name() string
}
