package capture

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ErrNoFrame is returned when ffmpeg exits without producing an image,
// typically because the offset is past the end of the file.
var ErrNoFrame = errors.New("no frame produced")

const maxFrameBytes = 64 << 20

// Grabber pulls single frames from a source with ffmpeg.
type Grabber struct {
	FFmpeg string
	Source string
	// Live sources are read from their current position; offsets are ignored.
	Live bool
}

func (g Grabber) binary() string {
	if b := strings.TrimSpace(g.FFmpeg); b != "" {
		return b
	}
	return "ffmpeg"
}

// Grab returns one JPEG frame at offset.
func (g Grabber) Grab(ctx context.Context, offset time.Duration) ([]byte, error) {
	if strings.TrimSpace(g.Source) == "" {
		return nil, errors.New("grab frame: empty source")
	}
	args := []string{"-hide_banner", "-loglevel", "error"}
	if !g.Live && offset > 0 {
		args = append(args, "-ss", formatSeconds(offset))
	}
	args = append(args, "-i", g.Source, "-frames:v", "1", "-f", "image2pipe", "-vcodec", "mjpeg", "-")

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, g.binary(), args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("grab frame at %s: %w: %s", offset, err, strings.TrimSpace(stderr.String()))
	}

	scanner := bufio.NewScanner(&stdout)
	scanner.Buffer(make([]byte, 0, 1<<20), maxFrameBytes)
	scanner.Split(SplitJPEG)
	if scanner.Scan() {
		return append([]byte(nil), scanner.Bytes()...), nil
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("grab frame: %w", err)
	}
	return nil, fmt.Errorf("grab frame at %s: %w", offset, ErrNoFrame)
}

// Extract streams one frame every interval of src through fn. Offsets passed
// to fn are relative to the start of the file. Returning an error from fn
// stops extraction.
func Extract(ctx context.Context, ffmpeg, src string, interval time.Duration, fn func(offset time.Duration, frame []byte) error) error {
	if interval <= 0 {
		return errors.New("extract frames: interval must be positive")
	}
	if strings.TrimSpace(ffmpeg) == "" {
		ffmpeg = "ffmpeg"
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fps := "fps=1/" + formatSeconds(interval)
	cmd := exec.CommandContext(ctx, ffmpeg,
		"-hide_banner", "-loglevel", "error",
		"-i", src, "-vf", fps,
		"-f", "image2pipe", "-vcodec", "mjpeg", "-")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("extract frames: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("extract frames: start ffmpeg: %w", err)
	}

	scanErr := scanFrames(stdout, interval, fn)
	if scanErr != nil {
		cancel()
		_, _ = io.Copy(io.Discard, stdout)
	}
	waitErr := cmd.Wait()
	if scanErr != nil {
		return scanErr
	}
	if waitErr != nil {
		return fmt.Errorf("extract frames: %w: %s", waitErr, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func scanFrames(r io.Reader, interval time.Duration, fn func(time.Duration, []byte) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1<<20), maxFrameBytes)
	scanner.Split(SplitJPEG)
	index := 0
	for scanner.Scan() {
		frame := append([]byte(nil), scanner.Bytes()...)
		if err := fn(time.Duration(index)*interval, frame); err != nil {
			return err
		}
		index++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("extract frames: %w", err)
	}
	return nil
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}
