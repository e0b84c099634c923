package commentary

import (
	"context"
	"fmt"
	"log/slog"

	"onthefly/internal/config"
	"onthefly/internal/services/llm"
	"onthefly/internal/services/openai"
)

// GameFromConfig maps the [game] section onto prompt settings.
func GameFromConfig(cfg *config.Config) Game {
	return Game{
		Teams: Teams{
			Home: Team{Name: cfg.Game.HomeName, Abbreviation: cfg.Game.HomeAbbreviation},
			Away: Team{Name: cfg.Game.AwayName, Abbreviation: cfg.Game.AwayAbbreviation},
		},
		Description:    cfg.Game.Description,
		PeriodLabel:    cfg.Game.PeriodLabel,
		ScoreboardHint: cfg.Game.ScoreboardHint,
		DefaultClock:   cfg.Game.DefaultClock,
	}
}

// NewVisionModel builds the vendor client selected by llm.provider. The
// openai provider goes through the official SDK; every other vendor is
// reached through its OpenAI-compatible chat completions endpoint.
func NewVisionModel(cfg *config.Config) (VisionModel, error) {
	if err := cfg.RequireLLM(); err != nil {
		return nil, err
	}
	switch cfg.LLM.Provider {
	case config.ProviderOpenAI:
		return openai.NewVisionModel(openai.Config{
			APIKey:         cfg.LLM.APIKey,
			BaseURL:        cfg.LLM.BaseURL,
			Model:          cfg.LLM.Model,
			Temperature:    cfg.LLM.Temperature,
			MaxTokens:      cfg.LLM.MaxTokens,
			TimeoutSeconds: cfg.LLM.TimeoutSeconds,
			Store:          true,
		}), nil
	case config.ProviderGroq, config.ProviderOpenRouter, config.ProviderOllama, config.ProviderGemini:
		return llm.NewClient(llm.Config{
			APIKey:         cfg.LLM.APIKey,
			BaseURL:        cfg.LLM.BaseURL,
			Model:          cfg.LLM.Model,
			Temperature:    cfg.LLM.Temperature,
			MaxTokens:      cfg.LLM.MaxTokens,
			Referer:        cfg.LLM.Referer,
			Title:          cfg.LLM.Title,
			TimeoutSeconds: cfg.LLM.TimeoutSeconds,
		}), nil
	default:
		return nil, fmt.Errorf("commentary: unsupported provider %q", cfg.LLM.Provider)
	}
}

type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// CheckVisionModel sends the configured provider a minimal JSON request to
// verify the API key and model.
func CheckVisionModel(ctx context.Context, cfg *config.Config) error {
	model, err := NewVisionModel(cfg)
	if err != nil {
		return err
	}
	checker, ok := model.(healthChecker)
	if !ok {
		return fmt.Errorf("commentary: provider %q has no health check", cfg.LLM.Provider)
	}
	return checker.HealthCheck(ctx)
}

// NewEmbedder returns nil when embeddings are disabled.
func NewEmbedder(cfg *config.Config) Embedder {
	if !cfg.Embeddings.Enabled {
		return nil
	}
	return openai.NewEmbedder(openai.Config{
		APIKey:         cfg.Embeddings.APIKey,
		BaseURL:        cfg.Embeddings.BaseURL,
		Model:          cfg.Embeddings.Model,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	})
}

// NewGeneratorFromConfig wires a Generator from configuration.
func NewGeneratorFromConfig(cfg *config.Config, repo Repository, notifier Notifier, logger *slog.Logger) (*Generator, error) {
	model, err := NewVisionModel(cfg)
	if err != nil {
		return nil, err
	}
	opts := []Option{WithNotifier(notifier), WithLogger(logger)}
	if embedder := NewEmbedder(cfg); embedder != nil {
		opts = append(opts, WithEmbedder(embedder))
	}
	return NewGenerator(Config{
		Game:          GameFromConfig(cfg),
		Provider:      cfg.LLM.Provider,
		Model:         cfg.LLM.Model,
		MaxFrameBytes: cfg.Server.MaxFrameBytes,
	}, model, repo, opts...)
}
