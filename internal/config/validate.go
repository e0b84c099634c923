package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateGame(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateCapture(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateServer() error {
	if _, _, err := net.SplitHostPort(c.Server.Bind); err != nil {
		return fmt.Errorf("server.bind %q: %w", c.Server.Bind, err)
	}
	if c.Server.MaxFrameBytes < 1024 {
		return errors.New("server.max_frame_bytes must be at least 1024")
	}
	return nil
}

func (c *Config) validateGame() error {
	if c.Game.HomeAbbreviation == c.Game.AwayAbbreviation {
		return fmt.Errorf("game.home_abbreviation and game.away_abbreviation must differ (both %q)", c.Game.HomeAbbreviation)
	}
	if !validClock(c.Game.DefaultClock) {
		return fmt.Errorf("game.default_clock %q must look like MM:SS", c.Game.DefaultClock)
	}
	return nil
}

func (c *Config) validateLLM() error {
	if _, ok := providers[c.LLM.Provider]; !ok {
		return fmt.Errorf("llm.provider %q is not supported (want one of openai, groq, openrouter, ollama, gemini)", c.LLM.Provider)
	}
	if c.LLM.Temperature > 2 {
		return errors.New("llm.temperature must be between 0 and 2")
	}
	if c.LLM.MaxTokens > 32768 {
		return errors.New("llm.max_tokens must be at most 32768")
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Driver {
	case StoreDriverSQLite:
		if c.Store.Path == "" {
			return errors.New("store.path must be set for the sqlite driver")
		}
	case StoreDriverPostgres:
		if c.Store.DatabaseURL == "" {
			return errors.New("store.database_url (or DATABASE_URL) must be set for the postgres driver")
		}
	default:
		return fmt.Errorf("store.driver %q is not supported (want sqlite or postgres)", c.Store.Driver)
	}
	return nil
}

func (c *Config) validateCapture() error {
	if c.Capture.Source == "" {
		return nil
	}
	if c.Capture.IntervalSeconds < 1 {
		return errors.New("capture.interval_seconds must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "auto", "console", "json", "tint":
	default:
		return fmt.Errorf("logging.format %q is not supported (want auto, console, json or tint)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not supported", c.Logging.Level)
	}
	return nil
}

// validClock accepts M:SS, MM:SS and SS.t style clocks shown in the final
// minute of a period.
func validClock(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	minutes, seconds, found := strings.Cut(value, ":")
	if !found {
		whole, tenths, dot := strings.Cut(value, ".")
		return dot && allDigits(whole) && len(whole) <= 2 && allDigits(tenths) && len(tenths) == 1
	}
	return allDigits(minutes) && len(minutes) >= 1 && len(minutes) <= 2 &&
		allDigits(seconds) && len(seconds) == 2 && seconds[0] <= '5'
}

func allDigits(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
