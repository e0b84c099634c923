package deps

import (
	"os"
	"path/filepath"
	"testing"

	"onthefly/internal/testsupport"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank", Command: "  "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available || results[0].Path != present {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}

	if results[1].Available {
		t.Fatalf("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatalf("expected detail message for missing binary")
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}

	if results[2].Available || results[2].Detail != "command not configured" {
		t.Fatalf("unexpected blank command result %#v", results[2])
	}
}

func TestRequirementsFollowCaptureSource(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries(map[string]string{
		"ffmpeg": "exit 0",
	}))
	cfg.Capture.FFprobeBinary = "clearly-not-present-ffprobe"

	statuses := CheckBinaries(Requirements(cfg))
	if len(statuses) != 2 || !statuses[0].Available || statuses[1].Available {
		t.Fatalf("unexpected statuses %#v", statuses)
	}
	if missing := Missing(statuses); len(missing) != 0 {
		t.Fatalf("expected optional binaries without a capture source, got %#v", missing)
	}

	cfg.Capture.Source = "game7.mp4"
	missing := Missing(CheckBinaries(Requirements(cfg)))
	if len(missing) != 1 || missing[0].Name != "FFprobe" {
		t.Fatalf("expected ffprobe reported missing, got %#v", missing)
	}
}
