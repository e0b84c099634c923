package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"onthefly/internal/commentary"
	"onthefly/internal/config"
	"onthefly/internal/logging"
	"onthefly/internal/notifications"
	"onthefly/internal/store"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// logger returns a stderr logger for one-shot commands. Only warnings and
// errors are shown so command output stays readable.
func (c *commandContext) logger() *slog.Logger {
	cfg := c.configValue()
	format := ""
	if cfg != nil {
		format = cfg.Logging.Format
	}
	logger, err := logging.New(logging.Options{Level: "warn", Format: format})
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

func (c *commandContext) withStore(ctx context.Context, fn func(*config.Config, store.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open commentary store: %w", err)
	}
	defer st.Close()
	return fn(cfg, st)
}

// withGenerator opens the store and wires a generator the same way the
// server does, including lead-change notifications.
func (c *commandContext) withGenerator(ctx context.Context, fn func(*config.Config, *commentary.Generator) error) error {
	return c.withStore(ctx, func(cfg *config.Config, st store.Store) error {
		gen, err := commentary.NewGeneratorFromConfig(cfg, st, notifications.NewService(cfg), c.logger())
		if err != nil {
			return err
		}
		defer gen.Wait()
		return fn(cfg, gen)
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
