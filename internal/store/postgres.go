package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"onthefly/internal/commentary"
)

// PostgresStore keeps commentary rows in PostgreSQL with pgvector embeddings.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const pgRowColumns = "id, uuid, created_at, commentary, latency_ms, home_win_probability, home_score, away_score, COALESCE(game_clock, ''), COALESCE(provider, ''), COALESCE(model, '')"

// OpenPostgres connects to url, verifies the connection and creates the
// vector extension and commentaries table when missing.
func OpenPostgres(ctx context.Context, url string) (*PostgresStore, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("store: database url is empty")
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("initialize postgres schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// Insert stores c and assigns its ID.
func (s *PostgresStore) Insert(ctx context.Context, c *commentary.Commentary) error {
	if c == nil {
		return errors.New("insert commentary: nil row")
	}
	var embedding any
	if len(c.Embedding) > 0 {
		embedding = pgvector.NewVector(c.Embedding)
	}
	created := c.Timestamp
	if created.IsZero() {
		created = time.Now()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO commentaries (
            uuid, created_at, commentary, latency_ms, home_win_probability,
            home_score, away_score, game_clock, provider, model, embedding
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        RETURNING id`,
		c.UUID,
		created.UTC(),
		c.Text,
		c.LatencyMS,
		c.HomeWinProbability,
		c.HomeScore,
		c.AwayScore,
		nullableString(c.GameClock),
		nullableString(c.Provider),
		nullableString(c.Model),
		embedding,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("insert commentary: %w", err)
	}
	return nil
}

// Latest returns up to limit rows, newest first.
func (s *PostgresStore) Latest(ctx context.Context, limit int) ([]commentary.Commentary, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+pgRowColumns+" FROM commentaries ORDER BY created_at DESC, id DESC LIMIT $1",
		normalizeLimit(limit, 10))
	if err != nil {
		return nil, fmt.Errorf("latest commentaries: %w", err)
	}
	return collectPgRows(rows)
}

// Previous returns the newest row or nil.
func (s *PostgresStore) Previous(ctx context.Context) (*commentary.Commentary, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+pgRowColumns+" FROM commentaries ORDER BY created_at DESC, id DESC LIMIT 1")
	c, err := scanPgRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("previous commentary: %w", err)
	}
	return &c, nil
}

// Count returns the number of rows created at or after since.
func (s *PostgresStore) Count(ctx context.Context, since time.Time) (int, error) {
	var count int
	var err error
	if since.IsZero() {
		err = s.pool.QueryRow(ctx, "SELECT COUNT(1) FROM commentaries").Scan(&count)
	} else {
		err = s.pool.QueryRow(ctx, "SELECT COUNT(1) FROM commentaries WHERE created_at >= $1", since.UTC()).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("count commentaries: %w", err)
	}
	return count, nil
}

// Since returns rows created at or after since, oldest first.
func (s *PostgresStore) Since(ctx context.Context, since time.Time, limit int) ([]commentary.Commentary, error) {
	var conds []string
	var args []any
	if !since.IsZero() {
		args = append(args, since.UTC())
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if limit > 0 {
		args = append(args, limit)
		conds = append(conds, fmt.Sprintf("id IN (SELECT id FROM commentaries ORDER BY created_at DESC, id DESC LIMIT $%d)", len(args)))
	}
	query := "SELECT " + pgRowColumns + " FROM commentaries"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("commentaries since: %w", err)
	}
	return collectPgRows(rows)
}

// CountBuckets groups rows by epoch seconds in the database.
func (s *PostgresStore) CountBuckets(ctx context.Context, since time.Time, width time.Duration) ([]commentary.Bucket, error) {
	query := "SELECT (floor(extract(epoch FROM created_at) / $1::bigint) * $1::bigint)::bigint AS bucket, count(*) FROM commentaries"
	args := []any{bucketSeconds(width)}
	if !since.IsZero() {
		args = append(args, since.UTC())
		query += " WHERE created_at >= $2"
	}
	query += " GROUP BY bucket ORDER BY bucket"
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("count commentary buckets: %w", err)
	}
	defer rows.Close()

	var buckets []commentary.Bucket
	for rows.Next() {
		var start, count int64
		if err := rows.Scan(&start, &count); err != nil {
			return nil, fmt.Errorf("scan commentary bucket: %w", err)
		}
		buckets = append(buckets, commentary.Bucket{Start: time.Unix(start, 0).UTC(), Count: int(count)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count commentary buckets: %w", err)
	}
	return buckets, nil
}

// Search orders by pgvector cosine distance.
func (s *PostgresStore) Search(ctx context.Context, embedding []float32, limit int) ([]Match, error) {
	if len(embedding) == 0 {
		return nil, errors.New("search commentaries: empty query embedding")
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgRowColumns+`, 1 - (embedding <=> $1) AS similarity
        FROM commentaries
        WHERE embedding IS NOT NULL AND vector_dims(embedding) = $3
        ORDER BY embedding <=> $1
        LIMIT $2`,
		pgvector.NewVector(embedding), normalizeLimit(limit, 5), len(embedding))
	if err != nil {
		return nil, fmt.Errorf("search commentaries: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var similarity float64
		c, err := scanPgRow(rows, &similarity)
		if err != nil {
			return nil, fmt.Errorf("scan commentary: %w", err)
		}
		matches = append(matches, Match{Commentary: c, Similarity: similarity})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search commentaries: %w", err)
	}
	return matches, nil
}

// Clear deletes every row.
func (s *PostgresStore) Clear(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM commentaries")
	if err != nil {
		return 0, fmt.Errorf("clear commentaries: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanPgRow(scanner rowScanner, extra ...any) (commentary.Commentary, error) {
	var c commentary.Commentary
	dest := []any{
		&c.ID,
		&c.UUID,
		&c.Timestamp,
		&c.Text,
		&c.LatencyMS,
		&c.HomeWinProbability,
		&c.HomeScore,
		&c.AwayScore,
		&c.GameClock,
		&c.Provider,
		&c.Model,
	}
	if err := scanner.Scan(append(dest, extra...)...); err != nil {
		return commentary.Commentary{}, err
	}
	c.Timestamp = c.Timestamp.UTC()
	return c, nil
}

func collectPgRows(rows pgx.Rows) ([]commentary.Commentary, error) {
	defer rows.Close()
	var out []commentary.Commentary
	for rows.Next() {
		c, err := scanPgRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan commentary: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
