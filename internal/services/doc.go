// Package services defines shared error markers consumed by the commentary
// pipeline and its external integrations.
//
// Wrap tags a failure with one of the exported sentinels so callers can map it
// to an HTTP status (HTTPStatus) or an operator hint without string matching.
// Vendor clients live in subpackages (llm, openai).
package services
