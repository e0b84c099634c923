// Package llm talks to OpenAI-compatible chat completion endpoints that accept
// image input (Groq, OpenRouter, Gemini's compatibility layer, Ollama).
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.Complete: send system prompts plus a text and image user turn.
// Client.HealthCheck: verify the API key and model are usable.
// DecodeJSON: decode a model reply, tolerating code fences and chatter.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors, network timeouts, and empty
// replies with exponential backoff (base 1s, max 10s, up to 3 attempts by
// default). Retry-After headers are honoured. Context cancellation aborts
// retries immediately.
package llm
