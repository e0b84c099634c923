package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"onthefly/internal/analytics"
	"onthefly/internal/capture"
	"onthefly/internal/commentary"
	"onthefly/internal/config"
	"onthefly/internal/deps"
	"onthefly/internal/logging"
	"onthefly/internal/store"
)

// Daemon owns the HTTP server and the optional capture loop, and enforces
// single-instance execution with a lock file.
type Daemon struct {
	cfg       *config.Config
	base      *slog.Logger
	logger    *slog.Logger
	store     store.Store
	generator *commentary.Generator
	analytics *analytics.Service
	embedder  commentary.Embedder
	api       *apiServer

	lockPath string
	lock     *flock.Flock

	mu        sync.Mutex
	loop      *capture.Loop
	startedAt time.Time
	wg        sync.WaitGroup

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool            `json:"running"`
	PID           int             `json:"pid"`
	StartedAt     time.Time       `json:"startedAt,omitzero"`
	UptimeSeconds float64         `json:"uptimeSeconds"`
	Address       string          `json:"address,omitempty"`
	LockFilePath  string          `json:"lockFilePath"`
	StoreDriver   string          `json:"storeDriver"`
	StorePath     string          `json:"storePath,omitempty"`
	Provider      string          `json:"provider"`
	Model         string          `json:"model"`
	Embeddings    bool            `json:"embeddings"`
	Capture       *capture.Status `json:"capture,omitempty"`
	Dependencies  []deps.Status   `json:"dependencies"`
}

// New constructs a daemon around an open store and a configured generator.
func New(cfg *config.Config, st store.Store, gen *commentary.Generator, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil || gen == nil {
		return nil, errors.New("daemon requires config, store, and generator")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:       cfg,
		base:      logger,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     st,
		generator: gen,
		analytics: analytics.NewService(st, commentary.GameFromConfig(cfg).Teams),
		embedder:  commentary.NewEmbedder(cfg),
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}
	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, fmt.Errorf("create api server: %w", err)
	}
	d.api = api
	return d, nil
}

// Start acquires the daemon lock, starts the HTTP server, and launches the
// capture loop when capture.source is set.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := d.cfg.EnsureDirectories(); err != nil {
		return err
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another onthefly instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.api.start(d.ctx); err != nil {
		d.abortStart()
		return fmt.Errorf("start api server: %w", err)
	}

	loop, err := capture.NewLoopFromConfig(d.ctx, d.cfg, d.generator, d.base)
	if err != nil {
		d.api.stop()
		d.abortStart()
		return fmt.Errorf("start capture: %w", err)
	}

	d.mu.Lock()
	d.loop = loop
	d.startedAt = time.Now()
	d.mu.Unlock()

	if loop != nil {
		runCtx := logging.WithSource(d.ctx, "capture")
		d.wg.Go(func() {
			if err := loop.Run(runCtx); err != nil {
				d.logger.Warn("capture loop exited", logging.Error(err))
			}
		})
	}

	d.running.Store(true)
	d.logger.Info("onthefly daemon started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.api.addr()),
		logging.Bool("capture", loop != nil),
	)
	return nil
}

func (d *Daemon) abortStart() {
	_ = d.lock.Unlock()
	d.cancel()
	d.ctx = nil
	d.cancel = nil
}

// Stop shuts down the server and capture loop and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.wg.Wait()
	d.generator.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("onthefly daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Addr returns the address the HTTP server is bound to, or "" before Start.
func (d *Daemon) Addr() string {
	return d.api.addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status(context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Address:      d.api.addr(),
		LockFilePath: d.lockPath,
		StoreDriver:  d.cfg.Store.Driver,
		Provider:     d.cfg.LLM.Provider,
		Model:        d.cfg.LLM.Model,
		Embeddings:   d.embedder != nil,
		Dependencies: deps.CheckBinaries(deps.Requirements(d.cfg)),
	}
	if status.StoreDriver != config.StoreDriverPostgres {
		status.StorePath = d.cfg.Store.Path
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if status.Running && !d.startedAt.IsZero() {
		status.StartedAt = d.startedAt.UTC()
		status.UptimeSeconds = time.Since(d.startedAt).Round(time.Second).Seconds()
	}
	if d.loop != nil {
		snapshot := d.loop.Status()
		status.Capture = &snapshot
	}
	return status
}
