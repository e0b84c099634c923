package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"onthefly/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The store is a sqlite file under the temp dir, the LLM provider is openai
// with a dummy key, and embeddings are disabled.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Server.Bind = "127.0.0.1:0"
	cfgVal.LLM.APIKey = "test"
	cfgVal.LLM.Model = "gpt-4o-mini"
	cfgVal.LLM.Temperature = 0.5
	cfgVal.LLM.MaxTokens = 150
	cfgVal.Embeddings.Enabled = false
	cfgVal.Store.Driver = config.StoreDriverSQLite
	cfgVal.Store.Path = filepath.Join(base, "data", "commentaries.db")
	cfgVal.Logging.Format = "json"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithLLM points the vision model at a test server.
func WithLLM(provider, baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LLM.Provider = provider
		b.cfg.LLM.BaseURL = baseURL
	}
}

// WithEmbeddings enables embeddings against a test server.
func WithEmbeddings(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Embeddings.Enabled = true
		b.cfg.Embeddings.APIKey = "test"
		b.cfg.Embeddings.BaseURL = baseURL
	}
}

// WithAPIToken enables bearer auth on the HTTP server.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Server.APIToken = token
	}
}

// WithStubbedBinaries writes shell scripts named after each key and points the
// capture ffmpeg/ffprobe settings at them when the names match.
func WithStubbedBinaries(scripts map[string]string) ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		for name, body := range scripts {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
			switch name {
			case "ffmpeg":
				b.cfg.Capture.FFmpegBinary = target
			case "ffprobe":
				b.cfg.Capture.FFprobeBinary = target
			}
		}
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
