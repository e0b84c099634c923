package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"onthefly/internal/config"
	"onthefly/internal/notifications"
)

type captured struct {
	title    string
	tags     string
	priority string
	body     string
}

func newNtfyServer(t *testing.T, out *[]captured) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		*out = append(*out, captured{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyLeadChange(context.Background(), notifications.LeadChange{Leader: "GS"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
	if err := notifications.NewService(nil).TestNotification(context.Background()); err != nil {
		t.Fatalf("expected nil config to yield noop, got %v", err)
	}
}

func TestNtfyServiceFormatsLeadChange(t *testing.T) {
	var requests []captured
	server := newNtfyServer(t, &requests)

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)

	err := svc.NotifyLeadChange(context.Background(), notifications.LeadChange{
		Leader:       "Cleveland Cavaliers",
		Trailer:      "Golden State Warriors",
		LeaderScore:  92,
		TrailerScore: 89,
		GameClock:    "0:53",
		Commentary:   "Kyrie Irving with the dagger three!",
	})
	if err != nil {
		t.Fatalf("NotifyLeadChange returned error: %v", err)
	}
	if len(requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(requests))
	}
	got := requests[0]
	if got.title != "OnTheFly - Lead Change" {
		t.Fatalf("unexpected title %q", got.title)
	}
	if got.tags != "onthefly,lead,basketball" || got.priority != "high" {
		t.Fatalf("unexpected headers %+v", got)
	}
	want := "🏀 Cleveland Cavaliers lead 92-89 with 0:53 left\nKyrie Irving with the dagger three!"
	if got.body != want {
		t.Fatalf("unexpected body %q", got.body)
	}
}

func TestNtfyServiceRespectsToggles(t *testing.T) {
	var requests []captured
	server := newNtfyServer(t, &requests)

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.LeadChange = false
	cfg.Notifications.Errors = false
	svc := notifications.NewService(&cfg)

	if err := svc.NotifyLeadChange(context.Background(), notifications.LeadChange{Leader: "GS"}); err != nil {
		t.Fatalf("NotifyLeadChange: %v", err)
	}
	if err := svc.NotifyError(context.Background(), errors.New("boom"), "commentary"); err != nil {
		t.Fatalf("NotifyError: %v", err)
	}
	if err := svc.TestNotification(context.Background()); err != nil {
		t.Fatalf("TestNotification: %v", err)
	}
	if len(requests) != 1 || requests[0].title != "OnTheFly - Test" {
		t.Fatalf("expected only the test notification, got %+v", requests)
	}
}

func TestNtfyServiceFormatsErrors(t *testing.T) {
	var requests []captured
	server := newNtfyServer(t, &requests)

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)

	if err := svc.NotifyError(context.Background(), errors.New("llm request: http 500"), "commentary"); err != nil {
		t.Fatalf("NotifyError: %v", err)
	}
	if !strings.Contains(requests[0].body, "Error with commentary: llm request: http 500") {
		t.Fatalf("unexpected body %q", requests[0].body)
	}
}

func TestNtfyServiceReportsHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic not allowed", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	err := notifications.NewService(&cfg).TestNotification(context.Background())
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}
