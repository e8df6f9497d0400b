// Package llm provides an OpenRouter-compatible chat client that returns JSON
// completions.
//
// The extractor's llm backend is the only caller: it sends a release title
// with a structured prompt and decodes the model's JSON answer into episode,
// quality, language and version fields.
//
// # Entry Points
//
// NewClient: construct a client from Config.
// Client.CompleteJSON: send system/user prompts, receive the raw JSON payload.
// Client.HealthCheck: verify API key and model availability (used by preflight).
// DecodeLLMJSON: decode a payload while tolerating code fences and prose.
//
// # Retry Behaviour
//
// Requests are retried on HTTP 408/429/5xx, on empty completions and on
// network timeouts with exponential backoff (base 1s, max 10s, up to 5
// attempts by default). Retry-After is honoured when present. Context
// cancellation aborts retries immediately. Other 4xx responses surface as
// *StatusError so callers can map 404 to a not-found outcome.
package llm
