package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"onthefly/internal/commentary"
)

// SQLiteStore keeps commentary rows in a local SQLite file.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *SQLiteStore) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("store: sqlite path is empty")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &SQLiteStore{db: db, path: path}
	if err := store.initSchema(ensureContext(ctx)); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Insert stores c and assigns its ID.
func (s *SQLiteStore) Insert(ctx context.Context, c *commentary.Commentary) error {
	if c == nil {
		return errors.New("insert commentary: nil row")
	}
	embedding, err := encodeEmbedding(c.Embedding)
	if err != nil {
		return fmt.Errorf("insert commentary: %w", err)
	}
	res, err := s.execWithRetry(ctx,
		`INSERT INTO commentaries (
            uuid, created_at, commentary, latency_ms, home_win_probability,
            home_score, away_score, game_clock, provider, model, embedding
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.UUID,
		formatTime(c.Timestamp),
		c.Text,
		c.LatencyMS,
		c.HomeWinProbability,
		c.HomeScore,
		c.AwayScore,
		nullableString(c.GameClock),
		nullableString(c.Provider),
		nullableString(c.Model),
		embedding,
	)
	if err != nil {
		return fmt.Errorf("insert commentary: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	c.ID = id
	return nil
}

// Latest returns up to limit rows, newest first.
func (s *SQLiteStore) Latest(ctx context.Context, limit int) ([]commentary.Commentary, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+rowColumns+" FROM commentaries ORDER BY created_at DESC, id DESC LIMIT ?",
		normalizeLimit(limit, 10))
	if err != nil {
		return nil, fmt.Errorf("latest commentaries: %w", err)
	}
	defer rows.Close()
	return collectRows(rows)
}

// Previous returns the newest row or nil.
func (s *SQLiteStore) Previous(ctx context.Context) (*commentary.Commentary, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+rowColumns+" FROM commentaries ORDER BY created_at DESC, id DESC LIMIT 1")
	c, err := scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("previous commentary: %w", err)
	}
	return &c, nil
}

// Count returns the number of rows created at or after since.
func (s *SQLiteStore) Count(ctx context.Context, since time.Time) (int, error) {
	var count int
	var err error
	if since.IsZero() {
		err = s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM commentaries").Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx,
			"SELECT COUNT(1) FROM commentaries WHERE created_at >= ?", formatTime(since)).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("count commentaries: %w", err)
	}
	return count, nil
}

// Since returns rows created at or after since, oldest first.
func (s *SQLiteStore) Since(ctx context.Context, since time.Time, limit int) ([]commentary.Commentary, error) {
	var conds []string
	var args []any
	if !since.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, formatTime(since))
	}
	if limit > 0 {
		// Rows in range are a suffix of the table by created_at.
		conds = append(conds, "id IN (SELECT id FROM commentaries ORDER BY created_at DESC, id DESC LIMIT ?)")
		args = append(args, limit)
	}
	query := "SELECT " + rowColumns + " FROM commentaries"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("commentaries since: %w", err)
	}
	defer rows.Close()
	return collectRows(rows)
}

// CountBuckets groups rows by strftime epoch seconds.
func (s *SQLiteStore) CountBuckets(ctx context.Context, since time.Time, width time.Duration) ([]commentary.Bucket, error) {
	seconds := bucketSeconds(width)
	query := "SELECT (CAST(strftime('%s', created_at) AS INTEGER) / ?) * ? AS bucket, COUNT(1) FROM commentaries"
	args := []any{seconds, seconds}
	if !since.IsZero() {
		query += " WHERE created_at >= ?"
		args = append(args, formatTime(since))
	}
	query += " GROUP BY bucket ORDER BY bucket"
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("count commentary buckets: %w", err)
	}
	defer rows.Close()

	var buckets []commentary.Bucket
	for rows.Next() {
		var start int64
		var count int
		if err := rows.Scan(&start, &count); err != nil {
			return nil, fmt.Errorf("scan commentary bucket: %w", err)
		}
		buckets = append(buckets, commentary.Bucket{Start: time.Unix(start, 0).UTC(), Count: count})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count commentary buckets: %w", err)
	}
	return buckets, nil
}

// Search scans every embedded row and ranks by cosine similarity in process.
func (s *SQLiteStore) Search(ctx context.Context, embedding []float32, limit int) ([]Match, error) {
	if len(embedding) == 0 {
		return nil, errors.New("search commentaries: empty query embedding")
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+rowColumns+", embedding FROM commentaries WHERE embedding IS NOT NULL")
	if err != nil {
		return nil, fmt.Errorf("search commentaries: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var raw sql.NullString
		c, err := scanRow(rows, &raw)
		if err != nil {
			return nil, fmt.Errorf("scan commentary: %w", err)
		}
		vector, err := decodeEmbedding(raw.String)
		if err != nil || len(vector) != len(embedding) {
			continue
		}
		matches = append(matches, Match{Commentary: c, Similarity: cosineSimilarity(embedding, vector)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search commentaries: %w", err)
	}
	return topMatches(matches, normalizeLimit(limit, 5)), nil
}

// Clear deletes every row.
func (s *SQLiteStore) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, "DELETE FROM commentaries")
	if err != nil {
		return 0, fmt.Errorf("clear commentaries: %w", err)
	}
	return res.RowsAffected()
}

func collectRows(rows *sql.Rows) ([]commentary.Commentary, error) {
	var out []commentary.Commentary
	for rows.Next() {
		c, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan commentary: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
