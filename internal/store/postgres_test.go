package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"onthefly/internal/commentary"
	"onthefly/internal/store"
	"onthefly/internal/testsupport"
)

// TestPostgresIntegration runs the store contract against a pgvector container.
// It is skipped in short mode and when Docker is unavailable.
func TestPostgresIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("testcontainers panicked: %v", r)
			}
		}()
		_, err = testcontainers.NewDockerClientWithOpts(ctx)
		return
	}()
	if err != nil {
		t.Skipf("docker not available: %v", err)
	}

	container, err := postgres.Run(ctx, "pgvector/pgvector:pg16",
		postgres.WithDatabase("onthefly_test"),
		postgres.WithUsername("onthefly"),
		postgres.WithPassword("onthefly"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Skipf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}

	cfg := testsupport.NewConfig(t)
	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = url
	st := testsupport.MustOpenStore(t, cfg)
	if _, ok := st.(*store.PostgresStore); !ok {
		t.Fatalf("expected postgres store, got %T", st)
	}

	base := time.Date(2016, 6, 20, 3, 0, 0, 0, time.UTC)
	rows := []struct {
		text   string
		home   int
		vector []float32
	}{
		{"the block", 89, []float32{1, 0, 0}},
		{"the shot", 89, []float32{0, 1, 0}},
		{"the stop", 89, []float32{0.9, 0.1, 0}},
	}
	for i, r := range rows {
		c := &commentary.Commentary{
			UUID:      testsupport.NextUUID(),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Text:      r.text,
			HomeScore: r.home,
			AwayScore: 89 + i,
			Embedding: r.vector,
		}
		if err := st.Insert(ctx, c); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
		if c.ID == 0 {
			t.Fatal("expected id from RETURNING")
		}
	}

	previous, err := st.Previous(ctx)
	if err != nil || previous == nil || previous.Text != "the stop" {
		t.Fatalf("unexpected previous row %+v (%v)", previous, err)
	}
	if count, err := st.Count(ctx, base.Add(time.Minute)); err != nil || count != 2 {
		t.Fatalf("expected 2 rows since cut, got %d (%v)", count, err)
	}
	since, err := st.Since(ctx, time.Time{}, 0)
	if err != nil || len(since) != 3 || since[0].Text != "the block" {
		t.Fatalf("unexpected chronological rows %+v (%v)", since, err)
	}
	newest, err := st.Since(ctx, time.Time{}, 2)
	if err != nil || len(newest) != 2 || newest[0].Text != "the shot" {
		t.Fatalf("expected the two newest rows oldest first, got %+v (%v)", newest, err)
	}
	buckets, err := st.CountBuckets(ctx, time.Time{}, time.Minute)
	if err != nil || len(buckets) != 3 || !buckets[0].Start.Equal(base) || buckets[2].Count != 1 {
		t.Fatalf("unexpected minute buckets %+v (%v)", buckets, err)
	}

	matches, err := st.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(matches) != 2 || matches[0].Commentary.Text != "the block" || matches[1].Commentary.Text != "the stop" {
		t.Fatalf("unexpected matches %+v", matches)
	}

	removed, err := st.Clear(ctx)
	if err != nil || removed != 3 {
		t.Fatalf("expected 3 removed rows, got %d (%v)", removed, err)
	}
}
