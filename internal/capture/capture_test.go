package capture_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"onthefly/internal/capture"
	"onthefly/internal/commentary"
	"onthefly/internal/testsupport"
)

const probeJSON = `{"streams":[{"index":0,"codec_type":"video","codec_name":"h264","width":1280,"height":720,"duration":"95.5"}],"format":{"filename":"game7.mp4","duration":"95.500000","format_name":"mov,mp4,m4a,3gp,3g2,mj2"}}`

func TestInspectParsesProbe(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries(map[string]string{
		"ffprobe": "cat <<'JSON'\n" + probeJSON + "\nJSON",
	}))

	probe, err := capture.Inspect(context.Background(), cfg.Capture.FFprobeBinary, "game7.mp4")
	if err != nil {
		t.Fatalf("Inspect returned error: %v", err)
	}
	if probe.Duration() != 95500*time.Millisecond {
		t.Fatalf("unexpected duration %v", probe.Duration())
	}
	if w, h := probe.Dimensions(); w != 1280 || h != 720 {
		t.Fatalf("unexpected dimensions %dx%d", w, h)
	}
}

func TestInspectReportsFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries(map[string]string{
		"ffprobe": "echo 'game7.mp4: No such file or directory' >&2\nexit 1",
	}))
	if _, err := capture.Inspect(context.Background(), cfg.Capture.FFprobeBinary, "game7.mp4"); err == nil {
		t.Fatal("expected error from failing ffprobe")
	}
}

func TestGrabberReturnsFirstJPEG(t *testing.T) {
	frame := testsupport.JPEG(t, 8, 8)
	framePath := filepath.Join(t.TempDir(), "frame.jpg")
	testsupport.WriteFile(t, framePath, frame)
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries(map[string]string{
		"ffmpeg": fmt.Sprintf("cat %q %q", framePath, framePath),
	}))

	grabber := capture.Grabber{FFmpeg: cfg.Capture.FFmpegBinary, Source: "game7.mp4"}
	got, err := grabber.Grab(context.Background(), 40*time.Second)
	if err != nil {
		t.Fatalf("Grab returned error: %v", err)
	}
	if len(got) != len(frame) {
		t.Fatalf("expected a single frame of %d bytes, got %d", len(frame), len(got))
	}
}

func TestGrabberNoFrame(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries(map[string]string{
		"ffmpeg": "exit 0",
	}))
	grabber := capture.Grabber{FFmpeg: cfg.Capture.FFmpegBinary, Source: "game7.mp4"}
	if _, err := grabber.Grab(context.Background(), time.Hour); !errors.Is(err, capture.ErrNoFrame) {
		t.Fatalf("expected ErrNoFrame, got %v", err)
	}
}

func TestExtractStreamsFrames(t *testing.T) {
	frame := testsupport.JPEG(t, 8, 8)
	framePath := filepath.Join(t.TempDir(), "frame.jpg")
	testsupport.WriteFile(t, framePath, frame)
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries(map[string]string{
		"ffmpeg": fmt.Sprintf("cat %q %q %q", framePath, framePath, framePath),
	}))

	var offsets []time.Duration
	err := capture.Extract(context.Background(), cfg.Capture.FFmpegBinary, "game7.mp4", 20*time.Second,
		func(offset time.Duration, data []byte) error {
			if len(data) != len(frame) {
				t.Fatalf("unexpected frame size %d", len(data))
			}
			offsets = append(offsets, offset)
			return nil
		})
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	want := []time.Duration{0, 20 * time.Second, 40 * time.Second}
	if fmt.Sprint(offsets) != fmt.Sprint(want) {
		t.Fatalf("expected offsets %v, got %v", want, offsets)
	}

	stop := errors.New("stop")
	calls := 0
	err = capture.Extract(context.Background(), cfg.Capture.FFmpegBinary, "game7.mp4", time.Second,
		func(time.Duration, []byte) error {
			calls++
			return stop
		})
	if !errors.Is(err, stop) || calls != 1 {
		t.Fatalf("expected callback error after one call, got %v (%d calls)", err, calls)
	}
}

type scriptedSource struct {
	mu      sync.Mutex
	frame   []byte
	offsets []time.Duration
	failAt  time.Duration
}

func (s *scriptedSource) Grab(_ context.Context, offset time.Duration) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offsets = append(s.offsets, offset)
	if s.failAt > 0 && offset == s.failAt {
		return nil, errors.New("decode error")
	}
	return s.frame, nil
}

type countingGenerator struct {
	mu    sync.Mutex
	calls int
}

func (g *countingGenerator) GenerateFrame(_ context.Context, frame commentary.Frame) (*commentary.Commentary, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if frame.MIMEType != "image/jpeg" {
		return nil, fmt.Errorf("unexpected mime %s", frame.MIMEType)
	}
	return &commentary.Commentary{ID: int64(g.calls), Timestamp: time.Now()}, nil
}

func TestLoopStopsAtEndOfFile(t *testing.T) {
	source := &scriptedSource{frame: testsupport.JPEG(t, 8, 8), failAt: 20 * time.Millisecond}
	gen := &countingGenerator{}
	loop := capture.NewLoop(capture.LoopConfig{
		Source:   "game7.mp4",
		Interval: 10 * time.Millisecond,
		Duration: 50 * time.Millisecond,
	}, source, gen, nil)

	done := make(chan error, 1)
	go func() { done <- loop.Run(context.Background()) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop at end of file")
	}

	if len(source.offsets) != 5 {
		t.Fatalf("expected 5 grabs (0..40ms), got %v", source.offsets)
	}
	status := loop.Status()
	if status.Running || status.Frames != 4 || status.Failures != 1 {
		t.Fatalf("unexpected status %+v", status)
	}
	if gen.calls != 4 {
		t.Fatalf("expected 4 generated frames, got %d", gen.calls)
	}
}

func TestLoopLiveRunsUntilCancelled(t *testing.T) {
	source := &scriptedSource{frame: testsupport.JPEG(t, 8, 8)}
	gen := &countingGenerator{}
	loop := capture.NewLoop(capture.LoopConfig{
		Source:   "rtmp://example.invalid/live",
		Live:     true,
		Interval: 5 * time.Millisecond,
	}, source, gen, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for loop.Status().Frames < 3 {
		if time.Now().After(deadline) {
			t.Fatal("live loop did not produce frames")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	source.mu.Lock()
	defer source.mu.Unlock()
	for _, offset := range source.offsets {
		if offset != 0 {
			t.Fatalf("live grabs should not seek, got offset %v", offset)
		}
	}
}
