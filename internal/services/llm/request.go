package llm

// Request is a single vision prompt: one or more system instructions followed
// by a user turn carrying text and an optional image.
type Request struct {
	System []string
	Text   string
	// ImageURL is either an https URL or a data: URL with base64 content.
	ImageURL string
	// JSON asks the vendor for a JSON object response when supported.
	JSON bool
}

// Completion is the reply extracted from a chat completion.
type Completion struct {
	Content          string
	Model            string
	FinishReason     string
	PromptTokens     int
	CompletionTokens int
}

// Usage returns the total token count reported by the vendor.
func (c Completion) Usage() int {
	return c.PromptTokens + c.CompletionTokens
}
