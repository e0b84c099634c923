package main

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"onthefly/internal/capture"
	"onthefly/internal/commentary"
	"onthefly/internal/config"
	"onthefly/internal/logging"
)

var errFrameLimit = errors.New("frame limit reached")

func newReplayCommand(ctx *commandContext) *cobra.Command {
	var intervalSeconds int
	var maxFrames int
	var failFast bool

	cmd := &cobra.Command{
		Use:   "replay <video>",
		Short: "Generate commentary for a recorded video, one frame per interval",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if intervalSeconds <= 0 {
				intervalSeconds = cfg.Capture.IntervalSeconds
			}
			interval := time.Duration(intervalSeconds) * time.Second

			probe, err := capture.Inspect(cmd.Context(), cfg.Capture.FFprobeBinary, src)
			if err != nil {
				return err
			}
			if !probe.HasVideo() {
				return fmt.Errorf("%s has no video stream", src)
			}
			width, height := probe.Dimensions()
			total := int(math.Ceil(probe.Duration().Seconds() / interval.Seconds()))
			if maxFrames > 0 && (total <= 0 || maxFrames < total) {
				total = maxFrames
			}
			if total <= 0 {
				total = -1
			}

			logger := ctx.logger()
			return ctx.withGenerator(cmd.Context(), func(cfg *config.Config, gen *commentary.Generator) error {
				bar := progressbar.NewOptions(total,
					progressbar.OptionSetDescription("Replaying"),
					progressbar.OptionSetWriter(cmd.ErrOrStderr()),
					progressbar.OptionShowCount(),
					progressbar.OptionClearOnFinish(),
				)

				var frames, failures int
				var last *commentary.Commentary
				extractErr := capture.Extract(cmd.Context(), cfg.Capture.FFmpegBinary, src, interval,
					func(offset time.Duration, data []byte) error {
						if maxFrames > 0 && frames >= maxFrames {
							return errFrameLimit
						}
						frames++
						defer func() { _ = bar.Add(1) }()

						frame, err := commentary.NewFrame(data, width, height)
						if err == nil {
							var row *commentary.Commentary
							row, err = gen.GenerateFrame(cmd.Context(), frame)
							if err == nil {
								last = row
								return nil
							}
						}
						failures++
						if failFast {
							return fmt.Errorf("frame at %s: %w", formatOffset(offset), err)
						}
						logger.Warn("replay frame failed",
							logging.String("offset", formatOffset(offset)),
							logging.Error(err),
						)
						return nil
					})
				_ = bar.Finish()
				if extractErr != nil && !errors.Is(extractErr, errFrameLimit) {
					return extractErr
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Processed %s frames (%s failed)\n", formatCount(frames), formatCount(failures))
				if last != nil {
					printCommentary(out, *last)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&intervalSeconds, "interval", 0, "Seconds between frames (defaults to capture.interval_seconds)")
	cmd.Flags().IntVar(&maxFrames, "max-frames", 0, "Stop after this many frames (0 processes the whole video)")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "Stop at the first frame that fails to generate")
	return cmd
}
