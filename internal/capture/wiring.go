package capture

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"onthefly/internal/config"
)

// NewLoopFromConfig builds the capture loop from the [capture] section. File
// sources are probed first so the loop knows where the video ends. It returns
// nil when capture.source is empty.
func NewLoopFromConfig(ctx context.Context, cfg *config.Config, generator FrameGenerator, logger *slog.Logger) (*Loop, error) {
	src := cfg.Capture.Source
	if src == "" {
		return nil, nil
	}
	loopCfg := LoopConfig{
		Source:   src,
		Live:     cfg.Capture.Live,
		Interval: time.Duration(cfg.Capture.IntervalSeconds) * time.Second,
		Start:    time.Duration(cfg.Capture.StartSeconds) * time.Second,
	}
	if !loopCfg.Live {
		probe, err := Inspect(ctx, cfg.Capture.FFprobeBinary, src)
		if err != nil {
			return nil, fmt.Errorf("capture: %w", err)
		}
		if !probe.HasVideo() {
			return nil, fmt.Errorf("capture: %s has no video stream", src)
		}
		loopCfg.Duration = probe.Duration()
	}
	grabber := Grabber{FFmpeg: cfg.Capture.FFmpegBinary, Source: src, Live: loopCfg.Live}
	return NewLoop(loopCfg, grabber, generator, logger), nil
}
