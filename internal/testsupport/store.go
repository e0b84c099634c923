package testsupport

import (
	"context"
	"testing"
	"time"

	"onthefly/internal/commentary"
	"onthefly/internal/config"
	"onthefly/internal/store"
)

// MustOpenStore opens the configured store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) store.Store {
	t.Helper()

	st, err := store.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// InsertCommentary stores a row with the given score at ts.
func InsertCommentary(t testing.TB, st store.Store, ts time.Time, home, away int, text string) commentary.Commentary {
	t.Helper()

	row := &commentary.Commentary{
		UUID:               NextUUID(),
		Timestamp:          ts,
		Text:               text,
		LatencyMS:          1000,
		HomeScore:          home,
		AwayScore:          away,
		HomeWinProbability: 50,
		Provider:           "openai",
		Model:              "gpt-4o-mini",
	}
	if err := st.Insert(context.Background(), row); err != nil {
		t.Fatalf("store.Insert: %v", err)
	}
	return *row
}
