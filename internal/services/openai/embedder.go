package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Embedder produces text embeddings through the OpenAI embeddings endpoint.
type Embedder struct {
	client sdk.Client
	model  string
}

// NewEmbedder constructs an Embedder. Only APIKey, BaseURL, Model, and
// TimeoutSeconds are read from cfg.
func NewEmbedder(cfg Config, extra ...option.RequestOption) *Embedder {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = string(sdk.EmbeddingModelTextEmbeddingAda002)
	}
	return &Embedder{
		client: sdk.NewClient(clientOptions(cfg, extra)...),
		model:  model,
	}
}

// Model returns the embedding model name.
func (e *Embedder) Model() string {
	return e.model
}

// Embed returns the embedding vector for text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("openai embed: text required")
	}
	resp, err := e.client.Embeddings.New(ctx, sdk.EmbeddingNewParams{
		Input: sdk.EmbeddingNewParamsInputUnion{OfString: sdk.String(text)},
		Model: sdk.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, errors.New("openai embed: empty embedding")
	}
	values := resp.Data[0].Embedding
	vector := make([]float32, len(values))
	for i, v := range values {
		vector[i] = float32(v)
	}
	return vector, nil
}
