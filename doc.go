// Package lago is a messaging-bot gateway with an autonomous task planner.
//
// The root package defines the contracts shared by every component: LLM
// providers, embedding providers, image and speech providers, vector
// storage, and delivery sinks. Subpackages implement them:
//
//   - provider/openaicompat — chat, legacy completion, embeddings, images and
//     transcription against any OpenAI-compatible API
//   - provider/zapier — calendar actions through Zapier NLA
//   - store/sqlite, store/postgres — namespaced vector indexes
//   - frontend/telegram, frontend/twilio — inbound parsing and delivery sinks
//   - planner — the task-planning loop
//   - observer — OpenTelemetry wrappers for providers
//
// Providers compose through middleware:
//
//	llm := openaicompat.NewProvider(key, "gpt-4", "https://api.openai.com/v1")
//	llm = lago.WithRetry(lago.WithRateLimit(llm, lago.RPM(60)))
//
// # Core Interfaces
//
//   - [Provider] — LLM backend (chat completion)
//   - [EmbeddingProvider] — text-to-vector embedding
//   - [ImageProvider] — prompt-to-image generation
//   - [Transcriber] — speech-to-text
//   - [VectorStore], [VectorIndex] — namespaced nearest-neighbour storage
//   - [Sink] — outbound delivery to a chat channel
package lago
