package openaicompat

import (
	"context"

	"github.com/lagobot/lago"
)

// DefaultImageSize is the size requested when none is configured.
const DefaultImageSize = "256x256"

// ImageGenerator implements lago.ImageProvider on /images/generations.
type ImageGenerator struct {
	client
	size string
}

var _ lago.ImageProvider = (*ImageGenerator)(nil)

// NewImageGenerator creates an image provider. model may be empty for
// servers that pick their own default. An empty size selects
// DefaultImageSize.
func NewImageGenerator(apiKey, model, baseURL, size string, opts ...ProviderOption) *ImageGenerator {
	if size == "" {
		size = DefaultImageSize
	}
	return &ImageGenerator{client: newClient(apiKey, model, baseURL, "openai-image", opts), size: size}
}

func (g *ImageGenerator) Name() string { return g.name }

// GenerateImage requests a single image and returns its URL.
func (g *ImageGenerator) GenerateImage(ctx context.Context, prompt string) (lago.ImageResult, error) {
	var resp ImageResponse
	req := ImageRequest{Model: g.model, Prompt: prompt, N: 1, Size: g.size}
	if err := g.postJSON(ctx, "/images/generations", req, &resp); err != nil {
		return lago.ImageResult{}, err
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return lago.ImageResult{}, &lago.ErrLLM{Provider: g.name, Message: "no image in response"}
	}
	return lago.ImageResult{URL: resp.Data[0].URL, RevisedPrompt: resp.Data[0].RevisedPrompt}, nil
}
