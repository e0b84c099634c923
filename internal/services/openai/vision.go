package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"onthefly/internal/services/llm"
)

// Config captures the settings shared by the vision model and embedder.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Temperature    float64
	MaxTokens      int
	TimeoutSeconds int
	// Store asks OpenAI to retain completions for later inspection.
	Store bool
}

func clientOptions(cfg Config, extra []option.RequestOption) []option.RequestOption {
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		option.WithMaxRetries(2),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		opts = append(opts, option.WithBaseURL(base))
	}
	if cfg.TimeoutSeconds > 0 {
		opts = append(opts, option.WithRequestTimeout(time.Duration(cfg.TimeoutSeconds)*time.Second))
	}
	return append(opts, extra...)
}

// VisionModel implements llm style completions through the OpenAI SDK.
type VisionModel struct {
	client sdk.Client
	cfg    Config
}

// NewVisionModel constructs a VisionModel. Extra request options are appended
// after the config derived ones.
func NewVisionModel(cfg Config, extra ...option.RequestOption) *VisionModel {
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = string(sdk.ChatModelGPT4oMini)
	}
	return &VisionModel{
		client: sdk.NewClient(clientOptions(cfg, extra)...),
		cfg:    cfg,
	}
}

// Model returns the configured model name.
func (m *VisionModel) Model() string {
	return m.cfg.Model
}

// Complete sends the request's system prompts followed by a user turn holding
// the text and image parts.
func (m *VisionModel) Complete(ctx context.Context, req llm.Request) (llm.Completion, error) {
	if len(req.System) == 0 {
		return llm.Completion{}, errors.New("openai complete: system prompt required")
	}

	messages := make([]sdk.ChatCompletionMessageParamUnion, 0, len(req.System)+1)
	for _, prompt := range req.System {
		if prompt = strings.TrimSpace(prompt); prompt != "" {
			messages = append(messages, sdk.SystemMessage(prompt))
		}
	}
	parts := make([]sdk.ChatCompletionContentPartUnionParam, 0, 2)
	if text := strings.TrimSpace(req.Text); text != "" {
		parts = append(parts, sdk.TextContentPart(text))
	}
	if image := strings.TrimSpace(req.ImageURL); image != "" {
		parts = append(parts, sdk.ImageContentPart(sdk.ChatCompletionContentPartImageImageURLParam{URL: image}))
	}
	if len(parts) == 0 {
		return llm.Completion{}, errors.New("openai complete: text or image required")
	}
	messages = append(messages, sdk.UserMessage(parts))

	params := sdk.ChatCompletionNewParams{
		Model:       sdk.ChatModel(m.cfg.Model),
		Messages:    messages,
		Temperature: sdk.Float(m.cfg.Temperature),
	}
	if m.cfg.MaxTokens > 0 {
		params.MaxCompletionTokens = sdk.Int(int64(m.cfg.MaxTokens))
	}
	if m.cfg.Store {
		params.Store = sdk.Bool(true)
	}
	if req.JSON {
		params.ResponseFormat = sdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return llm.Completion{}, fmt.Errorf("openai complete: %w", err)
	}
	completion := llm.Completion{
		Model:            resp.Model,
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
	}
	for _, choice := range resp.Choices {
		if completion.FinishReason == "" {
			completion.FinishReason = string(choice.FinishReason)
		}
		if content := strings.TrimSpace(choice.Message.Content); content != "" {
			completion.Content = content
			break
		}
	}
	if completion.Content == "" {
		return completion, fmt.Errorf("openai complete: empty content (finish_reason=%q)", completion.FinishReason)
	}
	return completion, nil
}

// HealthCheck issues a small JSON request to verify the API key and model.
func (m *VisionModel) HealthCheck(ctx context.Context) error {
	completion, err := m.Complete(ctx, llm.Request{
		System: []string{"You must respond with JSON only."},
		Text:   `Respond with {"ok":true}`,
		JSON:   true,
	})
	if err != nil {
		return fmt.Errorf("openai health: %w", err)
	}
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := llm.DecodeJSON(completion.Content, &parsed); err != nil {
		return fmt.Errorf("openai health: parse payload: %w", err)
	}
	if !parsed.OK {
		return errors.New("openai health: unexpected response")
	}
	return nil
}
