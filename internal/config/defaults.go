package config

const (
	defaultConfigPath = "~/.config/onthefly/config.toml"

	defaultDataDir = "~/.local/share/onthefly"
	defaultLogDir  = "~/.local/share/onthefly/logs"

	defaultServerBind          = "127.0.0.1:8080"
	defaultMaxFrameBytes       = 8 << 20
	defaultReadTimeoutSeconds  = 30
	defaultWriteTimeoutSeconds = 120

	defaultGameDescription = "the 2016 NBA Finals Game 7 between the Golden State Warriors and the Cleveland Cavaliers"
	defaultHomeName        = "Golden State Warriors"
	defaultHomeAbbr        = "GS"
	defaultAwayName        = "Cleveland Cavaliers"
	defaultAwayAbbr        = "CLE"
	defaultPeriodLabel     = "4th"
	defaultScoreboardHint  = "The scoreboard is in a box to the right of the ESPN logo. It shows the team abbreviations with their scores, and the game clock next to the quarter indicator."
	defaultClock           = "12:00"

	defaultLLMTimeoutSeconds = 60
	defaultLLMReferer        = "https://github.com/onthefly/onthefly"
	defaultLLMTitle          = "NBA OnTheFly"

	defaultEmbeddingsBaseURL = "https://api.openai.com/v1/"
	defaultEmbeddingsModel   = "text-embedding-ada-002"

	defaultStoreFile = "commentaries.db"

	defaultCaptureIntervalSeconds = 20
	defaultFFmpegBinary           = "ffmpeg"
	defaultFFprobeBinary          = "ffprobe"

	defaultDashboardTitle       = "NBA OnTheFly"
	defaultAnalyticsPollSeconds = 2

	defaultNotifyRequestTimeout = 10

	defaultServiceName = "onthefly"

	defaultLogFormat = "auto"
	defaultLogLevel  = "info"
)

// Provider names accepted by llm.provider.
const (
	ProviderOpenAI     = "openai"
	ProviderGroq       = "groq"
	ProviderOpenRouter = "openrouter"
	ProviderOllama     = "ollama"
	ProviderGemini     = "gemini"
)

// Store drivers accepted by store.driver.
const (
	StoreDriverSQLite   = "sqlite"
	StoreDriverPostgres = "postgres"
)

type providerDefaults struct {
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	keyEnv      string
}

// The openai provider speaks through the official SDK, so its base URL is the
// API root rather than a chat completions endpoint.
var providers = map[string]providerDefaults{
	ProviderOpenAI: {
		baseURL:     "https://api.openai.com/v1/",
		model:       "gpt-4o-mini",
		temperature: 0.5,
		maxTokens:   150,
		keyEnv:      "OPENAI_API_KEY",
	},
	ProviderGroq: {
		baseURL:     "https://api.groq.com/openai/v1/chat/completions",
		model:       "llama-3.2-90b-vision-preview",
		temperature: 0,
		maxTokens:   256,
		keyEnv:      "GROQ_API_KEY",
	},
	ProviderOpenRouter: {
		baseURL:     "https://openrouter.ai/api/v1/chat/completions",
		model:       "google/gemini-2.5-flash",
		temperature: 0.5,
		maxTokens:   256,
		keyEnv:      "OPENROUTER_API_KEY",
	},
	ProviderOllama: {
		baseURL:     "http://localhost:11434/v1/chat/completions",
		model:       "llama3.2-vision:11b",
		temperature: 0.5,
		maxTokens:   256,
	},
	ProviderGemini: {
		baseURL:     "https://generativelanguage.googleapis.com/v1beta/openai/chat/completions",
		model:       "gemini-2.5-flash",
		temperature: 0.5,
		maxTokens:   256,
		keyEnv:      "GEMINI_API_KEY",
	},
}

func providerKeyEnv(provider string) string {
	if def, ok := providers[provider]; ok && def.keyEnv != "" {
		return def.keyEnv
	}
	return "the provider API key env var"
}

// Default returns a Config populated with repository defaults. Provider
// specific fields (base URL, model, max tokens) are left empty and the
// temperature is negative so normalize can fill them for whichever provider is
// selected. The store driver is picked from database_url when unset.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Server: Server{
			Bind:                defaultServerBind,
			MaxFrameBytes:       defaultMaxFrameBytes,
			ReadTimeoutSeconds:  defaultReadTimeoutSeconds,
			WriteTimeoutSeconds: defaultWriteTimeoutSeconds,
		},
		Game: Game{
			Description:      defaultGameDescription,
			HomeName:         defaultHomeName,
			HomeAbbreviation: defaultHomeAbbr,
			AwayName:         defaultAwayName,
			AwayAbbreviation: defaultAwayAbbr,
			PeriodLabel:      defaultPeriodLabel,
			ScoreboardHint:   defaultScoreboardHint,
			DefaultClock:     defaultClock,
		},
		LLM: LLM{
			Provider:       ProviderOpenAI,
			Temperature:    -1,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
		},
		Embeddings: Embeddings{
			Enabled: true,
			BaseURL: defaultEmbeddingsBaseURL,
			Model:   defaultEmbeddingsModel,
		},
		Capture: Capture{
			IntervalSeconds: defaultCaptureIntervalSeconds,
			FFmpegBinary:    defaultFFmpegBinary,
			FFprobeBinary:   defaultFFprobeBinary,
		},
		Dashboard: Dashboard{
			Title:                  defaultDashboardTitle,
			CaptureIntervalSeconds: defaultCaptureIntervalSeconds,
			AnalyticsPollSeconds:   defaultAnalyticsPollSeconds,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			LeadChange:     true,
			Errors:         true,
		},
		Telemetry: Telemetry{
			ServiceName: defaultServiceName,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
