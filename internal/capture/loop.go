package capture

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"onthefly/internal/commentary"
	"onthefly/internal/logging"
)

// FrameGenerator is satisfied by *commentary.Generator.
type FrameGenerator interface {
	GenerateFrame(ctx context.Context, frame commentary.Frame) (*commentary.Commentary, error)
}

// FrameSource is satisfied by Grabber.
type FrameSource interface {
	Grab(ctx context.Context, offset time.Duration) ([]byte, error)
}

// Status is a snapshot of the loop for the status endpoint.
type Status struct {
	Running     bool      `json:"running"`
	Source      string    `json:"source,omitempty"`
	Live        bool      `json:"live"`
	Frames      int       `json:"frames"`
	Failures    int       `json:"failures"`
	OffsetSec   float64   `json:"offsetSeconds"`
	DurationSec float64   `json:"durationSeconds,omitempty"`
	LastError   string    `json:"lastError,omitempty"`
	LastFrameAt time.Time `json:"lastFrameAt,omitzero"`
}

// LoopConfig controls the capture timer.
type LoopConfig struct {
	Source   string
	Live     bool
	Interval time.Duration
	Start    time.Duration
	// Duration bounds file sources; zero means run until a grab finds no frame.
	Duration time.Duration
}

// Loop grabs a frame every interval and hands it to the generator. File
// sources advance the offset by one interval per tick and stop at the end of
// the file; live sources run until the context is cancelled.
type Loop struct {
	cfg       LoopConfig
	source    FrameSource
	generator FrameGenerator
	logger    *slog.Logger

	mu     sync.Mutex
	status Status
}

// NewLoop constructs a Loop.
func NewLoop(cfg LoopConfig, source FrameSource, generator FrameGenerator, logger *slog.Logger) *Loop {
	if cfg.Interval <= 0 {
		cfg.Interval = 20 * time.Second
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Loop{
		cfg:       cfg,
		source:    source,
		generator: generator,
		logger:    logging.NewComponentLogger(logger, "capture").With(logging.String(logging.FieldSource, cfg.Source)),
		status: Status{
			Source:      cfg.Source,
			Live:        cfg.Live,
			OffsetSec:   cfg.Start.Seconds(),
			DurationSec: cfg.Duration.Seconds(),
		},
	}
}

// Status returns a snapshot of the loop state.
func (l *Loop) Status() Status {
	if l == nil {
		return Status{}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

// Run blocks until the source is exhausted or ctx is cancelled. It returns
// nil in both cases.
func (l *Loop) Run(ctx context.Context) error {
	l.setRunning(true)
	defer l.setRunning(false)

	l.logger.Info("capture loop started",
		logging.Duration("interval", l.cfg.Interval),
		logging.Bool("live", l.cfg.Live),
		logging.Duration("start", l.cfg.Start),
	)

	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	offset := l.cfg.Start
	for {
		if !l.cfg.Live && l.cfg.Duration > 0 && offset >= l.cfg.Duration {
			l.logger.Info("capture loop reached end of source", logging.Duration("offset", offset))
			return nil
		}
		if done := l.tick(ctx, offset); done {
			return nil
		}
		if !l.cfg.Live {
			offset += l.cfg.Interval
		}

		select {
		case <-ctx.Done():
			l.logger.Info("capture loop stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// tick grabs and generates one frame. It reports true when the loop should
// stop.
func (l *Loop) tick(ctx context.Context, offset time.Duration) bool {
	data, err := l.source.Grab(ctx, offset)
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		if errors.Is(err, ErrNoFrame) && !l.cfg.Live {
			l.logger.Info("capture loop reached end of source", logging.Duration("offset", offset))
			return true
		}
		l.recordFailure(offset, err)
		logging.WarnWithContext(l.logger, "frame grab failed", "capture_grab_failed",
			logging.Error(err),
			logging.Duration("offset", offset),
			logging.String(logging.FieldErrorHint, "check capture.source and that ffmpeg can read it"),
		)
		return false
	}

	frame, err := commentary.NewFrame(data, 0, 0)
	if err != nil {
		l.recordFailure(offset, err)
		l.logger.Warn("captured frame rejected", logging.Error(err), logging.Duration("offset", offset))
		return false
	}
	row, err := l.generator.GenerateFrame(ctx, frame)
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		l.recordFailure(offset, err)
		return false
	}

	l.mu.Lock()
	l.status.Frames++
	l.status.OffsetSec = offset.Seconds()
	l.status.LastError = ""
	l.status.LastFrameAt = row.Timestamp
	l.mu.Unlock()
	l.logger.Debug("captured frame commented", logging.Int64(logging.FieldCommentaryID, row.ID), logging.Duration("offset", offset))
	return false
}

func (l *Loop) setRunning(running bool) {
	l.mu.Lock()
	l.status.Running = running
	l.mu.Unlock()
}

func (l *Loop) recordFailure(offset time.Duration, err error) {
	l.mu.Lock()
	l.status.Failures++
	l.status.OffsetSec = offset.Seconds()
	l.status.LastError = err.Error()
	l.mu.Unlock()
}
