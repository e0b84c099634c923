// Package openai adapts the official OpenAI Go SDK to the vision completion
// and text embedding contracts used by the commentary pipeline.
//
// VisionModel sends gpt-4o-mini style multimodal requests with JSON object
// responses. Embedder turns commentary text into vectors for similarity
// search. Both honour a custom base URL so tests can point them at httptest
// servers.
package openai
