package daemonctl_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"testing"
	"time"

	"onthefly/internal/daemon"
	"onthefly/internal/daemonctl"
	"onthefly/internal/testsupport"
)

func TestReadPID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if pid, err := daemonctl.ReadPID(cfg.PIDPath()); err != nil || pid != 0 {
		t.Fatalf("expected 0 for missing pid file, got %d (%v)", pid, err)
	}
	testsupport.WriteFile(t, cfg.PIDPath(), []byte("4242\n"))
	if pid, err := daemonctl.ReadPID(cfg.PIDPath()); err != nil || pid != 4242 {
		t.Fatalf("expected 4242, got %d (%v)", pid, err)
	}
	testsupport.WriteFile(t, cfg.PIDPath(), []byte("nope"))
	if _, err := daemonctl.ReadPID(cfg.PIDPath()); err == nil {
		t.Fatal("expected error for garbage pid file")
	}
}

func TestStopNotRunning(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := daemonctl.Stop(cfg, time.Second); !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}

func TestStopSignalsProcess(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cmd := exec.Command("sleep", "30")
	if err := cmd.Start(); err != nil {
		t.Skipf("sleep unavailable: %v", err)
	}
	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		<-done
	})

	pid := cmd.Process.Pid
	testsupport.WriteFile(t, cfg.PIDPath(), []byte(strconv.Itoa(pid)+"\n"))

	result, err := daemonctl.Stop(cfg, 5*time.Second)
	if err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
	if result.PID != pid || result.ForcedKill {
		t.Fatalf("unexpected result %+v", result)
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}
}

func TestStopRemovesStalePID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cmd := exec.Command("true")
	if err := cmd.Run(); err != nil {
		t.Skipf("true unavailable: %v", err)
	}
	testsupport.WriteFile(t, cfg.PIDPath(), []byte(strconv.Itoa(cmd.Process.Pid)))

	if _, err := daemonctl.Stop(cfg, time.Second); !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
	if _, err := os.Stat(cfg.PIDPath()); !os.IsNotExist(err) {
		t.Fatalf("expected stale pid file removed, got %v", err)
	}
}

func TestFetchStatus(t *testing.T) {
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if r.URL.Path != "/api/status" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(daemon.Status{Running: true, PID: 99, Provider: "openai"})
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithAPIToken("secret"))
	cfg.Server.Bind = strings.TrimPrefix(server.URL, "http://")

	status, err := daemonctl.FetchStatus(context.Background(), cfg)
	if err != nil {
		t.Fatalf("FetchStatus returned error: %v", err)
	}
	if !status.Running || status.PID != 99 {
		t.Fatalf("unexpected status %+v", status)
	}
	if auth != "Bearer secret" {
		t.Fatalf("expected bearer token, got %q", auth)
	}
}

func TestBaseURLRewritesWildcard(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Server.Bind = "0.0.0.0:8080"
	if got := daemonctl.BaseURL(cfg); got != "http://127.0.0.1:8080" {
		t.Fatalf("unexpected base url %q", got)
	}
	cfg.Server.Bind = ":9000"
	if got := daemonctl.BaseURL(cfg); got != "http://127.0.0.1:9000" {
		t.Fatalf("unexpected base url %q", got)
	}
}
