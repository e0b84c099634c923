package main

import (
	"strings"
	"testing"

	"onthefly/internal/capture"
	"onthefly/internal/daemon"
	"onthefly/internal/deps"
)

func TestRenderStatusNotRunning(t *testing.T) {
	lines := renderStatus(&daemon.Status{}, "http://127.0.0.1:8080", false)
	joined := strings.Join(lines, "\n")
	if !strings.Contains(joined, "[WARN] Not running (http://127.0.0.1:8080)") {
		t.Fatalf("unexpected output:\n%s", joined)
	}
}

func TestRenderStatusRunning(t *testing.T) {
	status := &daemon.Status{
		Running:       true,
		PID:           4242,
		Address:       "127.0.0.1:8080",
		UptimeSeconds: 90,
		Provider:      "groq",
		Model:         "llama-vision",
		StoreDriver:   "sqlite",
		Dependencies: []deps.Status{
			{Name: "FFmpeg", Available: true, Path: "/usr/bin/ffmpeg"},
			{Name: "FFprobe", Optional: true, Detail: `binary "ffprobe" not found`},
		},
		Capture: &capture.Status{Running: true, Source: "game7.mp4", Frames: 1200, OffsetSec: 3725, Failures: 1, LastError: "no frame"},
	}
	joined := strings.Join(renderStatus(status, "", false), "\n")
	for _, want := range []string{
		"[OK] Running (pid 4242)",
		"http://127.0.0.1:8080",
		"1m30s",
		"groq / llama-vision",
		"[OK] /usr/bin/ffmpeg",
		`binary "ffprobe" not found (optional)`,
		"game7.mp4 (Running)",
		"1,200",
		"01:02:05",
		"[ERROR] 1 (last: no frame)",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected %q in output:\n%s", want, joined)
		}
	}
	if strings.Contains(joined, "\x1b[") {
		t.Fatal("expected no ANSI codes without colorize")
	}
}

func TestRenderStatusLineColorize(t *testing.T) {
	line := renderStatusLine("Server", statusOK, "Running", true)
	if !strings.HasPrefix(line, ansiGreen) || !strings.HasSuffix(line, ansiReset) {
		t.Fatalf("expected green line, got %q", line)
	}
}
