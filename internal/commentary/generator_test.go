package commentary_test

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"onthefly/internal/commentary"
	"onthefly/internal/notifications"
	"onthefly/internal/services"
	"onthefly/internal/services/llm"
)

type fakeModel struct {
	mu       sync.Mutex
	replies  []string
	err      error
	requests []llm.Request
	advance  func()
}

func (m *fakeModel) Complete(_ context.Context, req llm.Request) (llm.Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.advance != nil {
		m.advance()
	}
	if m.err != nil {
		return llm.Completion{}, m.err
	}
	reply := `{"commentary":"fallback"}`
	if len(m.replies) > 0 {
		reply, m.replies = m.replies[0], m.replies[1:]
	}
	return llm.Completion{Content: reply, Model: "vision-test", PromptTokens: 10, CompletionTokens: 5}, nil
}

type memoryRepo struct {
	mu        sync.Mutex
	rows      []*commentary.Commentary
	insertErr error
}

func (r *memoryRepo) Previous(context.Context) (*commentary.Commentary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.rows) == 0 {
		return nil, nil
	}
	row := *r.rows[len(r.rows)-1]
	return &row, nil
}

func (r *memoryRepo) Insert(_ context.Context, c *commentary.Commentary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	c.ID = int64(len(r.rows) + 1)
	row := *c
	r.rows = append(r.rows, &row)
	return nil
}

type fakeEmbedder struct {
	vector []float32
	err    error
}

func (e fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	return e.vector, e.err
}

type recordingNotifier struct {
	mu      sync.Mutex
	leads   []notifications.LeadChange
	errors  []error
	release chan struct{}
}

func (n *recordingNotifier) NotifyLeadChange(_ context.Context, change notifications.LeadChange) error {
	if n.release != nil {
		<-n.release
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.leads = append(n.leads, change)
	return nil
}

func (n *recordingNotifier) NotifyError(_ context.Context, err error, _ string) error {
	if n.release != nil {
		<-n.release
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, err)
	return nil
}

func frameRequest(t *testing.T) commentary.FrameRequest {
	t.Helper()
	return commentary.FrameRequest{
		ImageData: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpegBytes(t, 16, 9)),
		Width:     1280,
		Height:    720,
	}
}

func newTestGenerator(t *testing.T, model *fakeModel, repo *memoryRepo, opts ...commentary.Option) *commentary.Generator {
	t.Helper()
	gen, err := commentary.NewGenerator(commentary.Config{
		Game:     finalsGame(),
		Provider: "groq",
		Model:    "configured-model",
	}, model, repo, opts...)
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	return gen
}

func TestGenerateStoresRow(t *testing.T) {
	base := time.Date(2016, 6, 19, 23, 0, 0, 0, time.FixedZone("PDT", -7*3600))
	now := base
	model := &fakeModel{
		replies: []string{`{"commentary":"Curry from deep!","homeScore":89,"awayScore":89,"homeWinProbability":48,"gameClock":"1:09"}`},
		advance: func() { now = now.Add(1500 * time.Millisecond) },
	}
	repo := &memoryRepo{}
	gen := newTestGenerator(t, model, repo,
		commentary.WithClock(func() time.Time { return now }),
		commentary.WithIDFunc(func() string { return "row-uuid" }),
		commentary.WithEmbedder(fakeEmbedder{vector: []float32{0.1, 0.2}}),
	)

	row, err := gen.Generate(context.Background(), frameRequest(t))
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if row.ID != 1 || len(repo.rows) != 1 {
		t.Fatalf("expected one inserted row, got id=%d rows=%d", row.ID, len(repo.rows))
	}
	if row.UUID != "row-uuid" || row.Text != "Curry from deep!" {
		t.Fatalf("unexpected row %+v", row)
	}
	if row.LatencyMS != 1500 {
		t.Fatalf("expected 1500ms latency, got %v", row.LatencyMS)
	}
	if row.Timestamp.Location() != time.UTC {
		t.Fatalf("expected UTC timestamp, got %v", row.Timestamp.Location())
	}
	if row.Model != "vision-test" || row.Provider != "groq" {
		t.Fatalf("unexpected provider/model %s/%s", row.Provider, row.Model)
	}
	if len(row.Embedding) != 2 {
		t.Fatalf("expected embedding, got %v", row.Embedding)
	}

	req := model.requests[0]
	if !req.JSON || len(req.System) != 3 {
		t.Fatalf("unexpected request %+v", req)
	}
	if !strings.HasPrefix(req.ImageURL, "data:image/jpeg;base64,") {
		t.Fatalf("expected jpeg data url, got %q", req.ImageURL[:24])
	}
}

func TestGenerateSeedsPromptWithPreviousRow(t *testing.T) {
	model := &fakeModel{replies: []string{
		`{"commentary":"one","homeScore":87,"awayScore":89,"gameClock":"2:10"}`,
		`{"commentary":"two"}`,
	}}
	repo := &memoryRepo{}
	gen := newTestGenerator(t, model, repo)

	if _, err := gen.Generate(context.Background(), frameRequest(t)); err != nil {
		t.Fatalf("first Generate: %v", err)
	}
	second, err := gen.Generate(context.Background(), frameRequest(t))
	if err != nil {
		t.Fatalf("second Generate: %v", err)
	}
	if second.HomeScore != 87 || second.AwayScore != 89 {
		t.Fatalf("expected scores carried from previous row, got %d-%d", second.HomeScore, second.AwayScore)
	}
	if second.GameClock != "" {
		t.Fatalf("expected empty clock, got %q", second.GameClock)
	}
	if !strings.Contains(model.requests[1].System[1], "CLE 89 - 87 GS with 2:10 remaining") {
		t.Fatalf("expected previous score in second prompt, got %q", model.requests[1].System[1])
	}
}

func TestGenerateEmbeddingFailureStillStores(t *testing.T) {
	repo := &memoryRepo{}
	gen := newTestGenerator(t, &fakeModel{}, repo,
		commentary.WithEmbedder(fakeEmbedder{err: errors.New("quota exceeded")}))

	row, err := gen.Generate(context.Background(), frameRequest(t))
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if row.Embedding != nil || len(repo.rows) != 1 {
		t.Fatalf("expected row stored without embedding, got %+v", row)
	}
}

func TestGenerateRejectsMissingImage(t *testing.T) {
	model := &fakeModel{}
	repo := &memoryRepo{}
	gen := newTestGenerator(t, model, repo)

	_, err := gen.Generate(context.Background(), commentary.FrameRequest{})
	if !errors.Is(err, services.ErrValidation) || !errors.Is(err, commentary.ErrNoImageData) {
		t.Fatalf("expected validation error wrapping ErrNoImageData, got %v", err)
	}
	if len(model.requests) != 0 || len(repo.rows) != 0 {
		t.Fatal("expected no model call and no insert")
	}
}

func TestGenerateModelFailureNotifies(t *testing.T) {
	notifier := &recordingNotifier{}
	repo := &memoryRepo{}
	gen := newTestGenerator(t, &fakeModel{err: errors.New("upstream 503")}, repo, commentary.WithNotifier(notifier))

	_, err := gen.Generate(context.Background(), frameRequest(t))
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if len(repo.rows) != 0 {
		t.Fatal("expected nothing stored")
	}
	gen.Wait()
	if len(notifier.errors) != 1 {
		t.Fatalf("expected one error notification, got %d", len(notifier.errors))
	}
}

func TestGenerateInsertFailure(t *testing.T) {
	repo := &memoryRepo{insertErr: errors.New("database is locked")}
	gen := newTestGenerator(t, &fakeModel{}, repo)
	if _, err := gen.Generate(context.Background(), frameRequest(t)); !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestGenerateLeadChange(t *testing.T) {
	model := &fakeModel{replies: []string{
		`{"commentary":"Warriors up","homeScore":89,"awayScore":87}`,
		`{"commentary":"tied","homeScore":89,"awayScore":89}`,
		`{"commentary":"Kyrie!","homeScore":89,"awayScore":92,"gameClock":"0:53"}`,
	}}
	notifier := &recordingNotifier{}
	gen := newTestGenerator(t, model, &memoryRepo{}, commentary.WithNotifier(notifier))

	for i := 0; i < 3; i++ {
		if _, err := gen.Generate(context.Background(), frameRequest(t)); err != nil {
			t.Fatalf("Generate %d: %v", i, err)
		}
	}
	gen.Wait()
	// Passing through a tie is not a flip on its own; the tie row resets the
	// comparison baseline so no notification fires.
	if len(notifier.leads) != 0 {
		t.Fatalf("expected no lead change through a tie, got %+v", notifier.leads)
	}

	model.replies = []string{`{"commentary":"Curry answers","homeScore":94,"awayScore":92,"gameClock":"0:30"}`}
	if _, err := gen.Generate(context.Background(), frameRequest(t)); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	gen.Wait()
	if len(notifier.leads) != 1 {
		t.Fatalf("expected one lead change, got %d", len(notifier.leads))
	}
	change := notifier.leads[0]
	if change.Leader != "Golden State Warriors" || change.LeaderScore != 94 || change.TrailerScore != 92 {
		t.Fatalf("unexpected lead change %+v", change)
	}
	if change.GameClock != "0:30" {
		t.Fatalf("unexpected clock %q", change.GameClock)
	}
}

func TestGenerateReturnsBeforeNotificationCompletes(t *testing.T) {
	model := &fakeModel{replies: []string{
		`{"commentary":"Warriors up","homeScore":89,"awayScore":87}`,
		`{"commentary":"Kyrie!","homeScore":89,"awayScore":92}`,
		`{"commentary":"free throw","homeScore":89,"awayScore":93}`,
	}}
	notifier := &recordingNotifier{release: make(chan struct{})}
	gen := newTestGenerator(t, model, &memoryRepo{}, commentary.WithNotifier(notifier))

	req := frameRequest(t)
	done := make(chan error, 1)
	go func() {
		for i := 0; i < 3; i++ {
			if _, err := gen.Generate(context.Background(), req); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
	case <-time.After(5 * time.Second):
		close(notifier.release)
		t.Fatal("Generate blocked on a pending lead change notification")
	}

	close(notifier.release)
	gen.Wait()
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.leads) != 1 || notifier.leads[0].Leader != "Cleveland Cavaliers" {
		t.Fatalf("unexpected lead changes %+v", notifier.leads)
	}
}

func TestNewGeneratorRequiresDependencies(t *testing.T) {
	if _, err := commentary.NewGenerator(commentary.Config{}, nil, &memoryRepo{}); err == nil {
		t.Fatal("expected error without model")
	}
	if _, err := commentary.NewGenerator(commentary.Config{}, &fakeModel{}, nil); err == nil {
		t.Fatal("expected error without repository")
	}
}

func TestGenerateRecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	gen := newTestGenerator(t, &fakeModel{}, &memoryRepo{},
		commentary.WithTracer(provider.Tracer("test")),
		commentary.WithEmbedder(fakeEmbedder{vector: []float32{1}}),
	)
	if _, err := gen.Generate(context.Background(), frameRequest(t)); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	names := map[string]bool{}
	for _, span := range recorder.Ended() {
		names[span.Name()] = true
	}
	for _, want := range []string{"commentary.generate", "commentary.model", "commentary.embed", "commentary.insert"} {
		if !names[want] {
			t.Fatalf("expected span %s, got %v", want, names)
		}
	}
}
