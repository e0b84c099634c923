package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"onthefly/internal/config"
	"onthefly/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	llm        *testsupport.LLMServer
	configPath string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	for _, key := range []string{
		"OPENAI_API_KEY", "GROQ_API_KEY", "OPENROUTER_API_KEY", "GEMINI_API_KEY",
		"DATABASE_URL", "ONTHEFLY_API_TOKEN", "NTFY_TOPIC", "OTEL_EXPORTER_OTLP_ENDPOINT",
		"ONTHEFLY_LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("HOME", t.TempDir())

	llm := testsupport.NewLLMServer(t, `{"commentary":"Kyrie from deep!","homeScore":89,"awayScore":92,"homeWinProbability":35,"gameClock":"0:53"}`)
	opts = append([]testsupport.ConfigOption{testsupport.WithLLM(config.ProviderGroq, llm.ChatURL())}, opts...)
	cfg := testsupport.NewConfig(t, opts...)

	configPath := filepath.Join(testsupport.BaseDir(cfg), "onthefly.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, llm: llm, configPath: configPath}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}
