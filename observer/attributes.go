package observer

import "go.opentelemetry.io/otel/attribute"

// Attribute keys for LLM observability spans and metrics.
var (
	AttrLLMModel     = attribute.Key("llm.model")
	AttrLLMProvider  = attribute.Key("llm.provider")
	AttrMessageCount = attribute.Key("llm.message_count")
	AttrTemperature  = attribute.Key("llm.temperature")
	AttrMaxTokens    = attribute.Key("llm.max_tokens")

	AttrTokensInput  = attribute.Key("llm.tokens.input")
	AttrTokensOutput = attribute.Key("llm.tokens.output")
	AttrCostUSD      = attribute.Key("llm.cost_usd")

	AttrEmbedTextCount  = attribute.Key("llm.embed.text_count")
	AttrEmbedDimensions = attribute.Key("llm.embed.dimensions")

	AttrMediaKind  = attribute.Key("media.kind")
	AttrMediaBytes = attribute.Key("media.bytes")

	AttrRunID         = attribute.Key("planner.run_id")
	AttrRunState      = attribute.Key("planner.state")
	AttrRunIterations = attribute.Key("planner.iterations")
	AttrTaskID        = attribute.Key("planner.task_id")
)
