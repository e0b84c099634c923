package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// environment lists variables that fill empty file settings. File values
// always win over the environment.
type environment struct {
	OpenAIAPIKey     string `env:"OPENAI_API_KEY"`
	GroqAPIKey       string `env:"GROQ_API_KEY"`
	OpenRouterAPIKey string `env:"OPENROUTER_API_KEY"`
	GeminiAPIKey     string `env:"GEMINI_API_KEY"`
	DatabaseURL      string `env:"DATABASE_URL"`
	APIToken         string `env:"ONTHEFLY_API_TOKEN"`
	NtfyTopic        string `env:"NTFY_TOPIC"`
	OTLPEndpoint     string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	LogLevel         string `env:"ONTHEFLY_LOG_LEVEL"`
}

func (c *Config) applyEnv() error {
	var vars environment
	if err := env.Parse(&vars); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	provider := strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		switch provider {
		case ProviderOpenAI, "":
			c.LLM.APIKey = vars.OpenAIAPIKey
		case ProviderGroq:
			c.LLM.APIKey = vars.GroqAPIKey
		case ProviderOpenRouter:
			c.LLM.APIKey = vars.OpenRouterAPIKey
		case ProviderGemini:
			c.LLM.APIKey = vars.GeminiAPIKey
		}
	}
	if strings.TrimSpace(c.Embeddings.APIKey) == "" {
		c.Embeddings.APIKey = vars.OpenAIAPIKey
	}
	fill(&c.Store.DatabaseURL, vars.DatabaseURL)
	fill(&c.Server.APIToken, vars.APIToken)
	fill(&c.Notifications.NtfyTopic, vars.NtfyTopic)
	fill(&c.Telemetry.OTLPEndpoint, vars.OTLPEndpoint)
	if strings.TrimSpace(vars.LogLevel) != "" {
		c.Logging.Level = vars.LogLevel
	}
	return nil
}

func fill(target *string, value string) {
	if strings.TrimSpace(*target) == "" {
		*target = strings.TrimSpace(value)
	}
}
