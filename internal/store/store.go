package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"onthefly/internal/commentary"
	"onthefly/internal/config"
)

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Store is the persistence contract shared by both backends. Rows are
// returned as values; Insert sets the ID on the caller's row.
type Store interface {
	Insert(ctx context.Context, c *commentary.Commentary) error
	// Latest returns up to limit rows, newest first.
	Latest(ctx context.Context, limit int) ([]commentary.Commentary, error)
	// Previous returns the newest row, or nil for an empty table.
	Previous(ctx context.Context) (*commentary.Commentary, error)
	// Count returns the number of rows created at or after since. A zero since
	// counts every row.
	Count(ctx context.Context, since time.Time) (int, error)
	// Since returns rows created at or after since in chronological order.
	// A positive limit keeps only the newest limit rows; limit <= 0 returns
	// all of them.
	Since(ctx context.Context, since time.Time, limit int) ([]commentary.Commentary, error)
	// CountBuckets groups rows created at or after since into width-sized
	// buckets aligned to the Unix epoch, oldest first. Empty buckets are
	// omitted.
	CountBuckets(ctx context.Context, since time.Time, width time.Duration) ([]commentary.Bucket, error)
	// Search ranks rows with an embedding by cosine similarity to embedding.
	Search(ctx context.Context, embedding []float32, limit int) ([]Match, error)
	// Clear removes every row and reports how many were deleted.
	Clear(ctx context.Context) (int64, error)
	Close() error
}

// Match is one Search hit.
type Match struct {
	Commentary commentary.Commentary `json:"commentary"`
	Similarity float64               `json:"similarity"`
}

// Open connects to the backend selected by store.driver.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		return OpenPostgres(ctx, cfg.Store.DatabaseURL)
	case config.StoreDriverSQLite, "":
		if err := cfg.EnsureDirectories(); err != nil {
			return nil, fmt.Errorf("ensure directories: %w", err)
		}
		return OpenSQLite(ctx, cfg.Store.Path)
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", cfg.Store.Driver)
	}
}

func bucketSeconds(width time.Duration) int64 {
	return max(int64(width/time.Second), 1)
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	return limit
}
