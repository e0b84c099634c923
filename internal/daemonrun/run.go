// Package daemonrun hosts the foreground server runtime used by
// `onthefly serve`.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"onthefly/internal/commentary"
	"onthefly/internal/config"
	"onthefly/internal/daemon"
	"onthefly/internal/deps"
	"onthefly/internal/logging"
	"onthefly/internal/notifications"
	"onthefly/internal/store"
	"onthefly/internal/telemetry"
)

// Options configures server process runtime behavior.
type Options struct {
	LogLevel string
	Version  string
	// Ready is called with the bound address once the server is listening.
	Ready func(addr string)
}

// Run starts the server and blocks until ctx is cancelled or the process
// receives SIGINT/SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	shutdownTracing, err := telemetry.Setup(signalCtx, cfg.Telemetry, opts.Version)
	if err != nil {
		logging.WarnWithContext(logger, "tracing disabled", "telemetry_setup_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check telemetry.otlp_endpoint"),
		)
	}
	defer func() {
		if shutdownTracing != nil {
			_ = shutdownTracing(context.Background())
		}
	}()

	logDependencySnapshot(logger, cfg)

	st, err := store.Open(signalCtx, cfg)
	if err != nil {
		logger.Error("open commentary store", logging.Error(err))
		return err
	}

	notifier := notifications.NewService(cfg)
	gen, err := commentary.NewGeneratorFromConfig(cfg, st, notifier, logger)
	if err != nil {
		_ = st.Close()
		return fmt.Errorf("create generator: %w", err)
	}

	d, err := daemon.New(cfg, st, gen, logger)
	if err != nil {
		_ = st.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	if opts.Ready != nil {
		opts.Ready(d.Addr())
	}

	<-signalCtx.Done()
	logger.Info("onthefly shutting down")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String(logging.FieldProvider, cfg.LLM.Provider),
		logging.String(logging.FieldModel, cfg.LLM.Model),
		logging.Bool("llm_key_present", strings.TrimSpace(cfg.LLM.APIKey) != ""),
		logging.Bool("embeddings_enabled", cfg.Embeddings.Enabled),
		logging.String("store_driver", cfg.Store.Driver),
		logging.Bool("ntfy_configured", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
		logging.Bool("tracing_enabled", strings.TrimSpace(cfg.Telemetry.OTLPEndpoint) != ""),
	}
	if cfg.Capture.Source != "" {
		attrs = append(attrs, logging.String("capture_source", cfg.Capture.Source))
	}
	binaries := deps.CheckBinaries(deps.Requirements(cfg))
	for _, status := range binaries {
		attrs = append(attrs, logging.Bool(strings.ToLower(status.Name)+"_available", status.Available))
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)

	for _, missing := range deps.Missing(binaries) {
		logging.WarnWithContext(logger, "required binary unavailable", "dependency_missing",
			logging.String("dependency", missing.Name),
			logging.String("command", missing.Command),
			logging.String(logging.FieldErrorHint, "install ffmpeg or set capture."+strings.ToLower(missing.Name)+"_binary"),
		)
	}
}
