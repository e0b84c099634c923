package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeServer()
	c.normalizeGame()
	c.normalizeLLM()
	c.normalizeEmbeddings()
	if err := c.normalizeStore(); err != nil {
		return err
	}
	if err := c.normalizeCapture(); err != nil {
		return err
	}
	if err := c.normalizeDashboard(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeTelemetry()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeServer() {
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultServerBind
	}
	c.Server.APIToken = strings.TrimSpace(c.Server.APIToken)
	if c.Server.MaxFrameBytes <= 0 {
		c.Server.MaxFrameBytes = defaultMaxFrameBytes
	}
	if c.Server.ReadTimeoutSeconds <= 0 {
		c.Server.ReadTimeoutSeconds = defaultReadTimeoutSeconds
	}
	if c.Server.WriteTimeoutSeconds <= 0 {
		c.Server.WriteTimeoutSeconds = defaultWriteTimeoutSeconds
	}
}

func (c *Config) normalizeGame() {
	trimOr(&c.Game.Description, defaultGameDescription)
	trimOr(&c.Game.HomeName, defaultHomeName)
	trimOr(&c.Game.AwayName, defaultAwayName)
	trimOr(&c.Game.PeriodLabel, defaultPeriodLabel)
	trimOr(&c.Game.ScoreboardHint, defaultScoreboardHint)
	trimOr(&c.Game.DefaultClock, defaultClock)
	c.Game.HomeAbbreviation = strings.ToUpper(strings.TrimSpace(c.Game.HomeAbbreviation))
	if c.Game.HomeAbbreviation == "" {
		c.Game.HomeAbbreviation = defaultHomeAbbr
	}
	c.Game.AwayAbbreviation = strings.ToUpper(strings.TrimSpace(c.Game.AwayAbbreviation))
	if c.Game.AwayAbbreviation == "" {
		c.Game.AwayAbbreviation = defaultAwayAbbr
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	if c.LLM.Provider == "" {
		c.LLM.Provider = ProviderOpenAI
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	def, known := providers[c.LLM.Provider]
	if !known {
		// Validate reports the unknown provider.
		return
	}
	trimOr(&c.LLM.BaseURL, def.baseURL)
	trimOr(&c.LLM.Model, def.model)
	if c.LLM.Temperature < 0 {
		c.LLM.Temperature = def.temperature
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = def.maxTokens
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	trimOr(&c.LLM.Referer, defaultLLMReferer)
	trimOr(&c.LLM.Title, defaultLLMTitle)
}

func (c *Config) normalizeEmbeddings() {
	c.Embeddings.APIKey = strings.TrimSpace(c.Embeddings.APIKey)
	if c.Embeddings.APIKey == "" && c.LLM.Provider == ProviderOpenAI {
		c.Embeddings.APIKey = c.LLM.APIKey
	}
	trimOr(&c.Embeddings.BaseURL, defaultEmbeddingsBaseURL)
	if !strings.HasSuffix(c.Embeddings.BaseURL, "/") {
		c.Embeddings.BaseURL += "/"
	}
	trimOr(&c.Embeddings.Model, defaultEmbeddingsModel)
	if c.Embeddings.APIKey == "" {
		c.Embeddings.Enabled = false
	}
}

func (c *Config) normalizeStore() error {
	c.Store.DatabaseURL = strings.TrimSpace(c.Store.DatabaseURL)
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	switch c.Store.Driver {
	case "":
		if c.Store.DatabaseURL != "" {
			c.Store.Driver = StoreDriverPostgres
		} else {
			c.Store.Driver = StoreDriverSQLite
		}
	case "postgresql", "pg":
		c.Store.Driver = StoreDriverPostgres
	case "sqlite3":
		c.Store.Driver = StoreDriverSQLite
	}
	if c.Store.Driver != StoreDriverSQLite {
		return nil
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		c.Store.Path = filepath.Join(c.Paths.DataDir, defaultStoreFile)
	}
	var err error
	if c.Store.Path, err = expandPath(c.Store.Path); err != nil {
		return fmt.Errorf("store.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeCapture() error {
	c.Capture.Source = strings.TrimSpace(c.Capture.Source)
	if c.Capture.IntervalSeconds <= 0 {
		c.Capture.IntervalSeconds = defaultCaptureIntervalSeconds
	}
	if c.Capture.StartSeconds < 0 {
		c.Capture.StartSeconds = 0
	}
	trimOr(&c.Capture.FFmpegBinary, defaultFFmpegBinary)
	trimOr(&c.Capture.FFprobeBinary, defaultFFprobeBinary)
	if c.Capture.Source != "" && !isURL(c.Capture.Source) {
		var err error
		if c.Capture.Source, err = expandPath(c.Capture.Source); err != nil {
			return fmt.Errorf("capture.source: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeDashboard() error {
	trimOr(&c.Dashboard.Title, defaultDashboardTitle)
	c.Dashboard.VideoURL = strings.TrimSpace(c.Dashboard.VideoURL)
	c.Dashboard.VideoPath = strings.TrimSpace(c.Dashboard.VideoPath)
	if c.Dashboard.VideoPath != "" {
		var err error
		if c.Dashboard.VideoPath, err = expandPath(c.Dashboard.VideoPath); err != nil {
			return fmt.Errorf("dashboard.video_path: %w", err)
		}
		if c.Dashboard.VideoURL == "" {
			c.Dashboard.VideoURL = "/video"
		}
	}
	if c.Dashboard.CaptureIntervalSeconds <= 0 {
		c.Dashboard.CaptureIntervalSeconds = defaultCaptureIntervalSeconds
	}
	if c.Dashboard.AnalyticsPollSeconds <= 0 {
		c.Dashboard.AnalyticsPollSeconds = defaultAnalyticsPollSeconds
	}
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeTelemetry() {
	c.Telemetry.OTLPEndpoint = strings.TrimSpace(c.Telemetry.OTLPEndpoint)
	trimOr(&c.Telemetry.ServiceName, defaultServiceName)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func trimOr(target *string, fallback string) {
	*target = strings.TrimSpace(*target)
	if *target == "" {
		*target = fallback
	}
}

func isURL(value string) bool {
	lower := strings.ToLower(value)
	for _, prefix := range []string{"http://", "https://", "rtmp://", "rtsp://", "udp://", "srt://"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}
