package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"math"
	"sort"
	"time"

	"onthefly/internal/commentary"
)

const rowColumns = "id, uuid, created_at, commentary, latency_ms, home_win_probability, home_score, away_score, game_clock, provider, model"

// timeLayout is fixed width so created_at sorts and compares as text.
const timeLayout = "2006-01-02T15:04:05.000000Z"

type rowScanner interface {
	Scan(dest ...any) error
}

// scanRow reads rowColumns followed by any extra destinations.
func scanRow(scanner rowScanner, extra ...any) (commentary.Commentary, error) {
	var (
		c          commentary.Commentary
		createdRaw string
		gameClock  sql.NullString
		provider   sql.NullString
		model      sql.NullString
	)
	dest := []any{
		&c.ID,
		&c.UUID,
		&createdRaw,
		&c.Text,
		&c.LatencyMS,
		&c.HomeWinProbability,
		&c.HomeScore,
		&c.AwayScore,
		&gameClock,
		&provider,
		&model,
	}
	if err := scanner.Scan(append(dest, extra...)...); err != nil {
		return commentary.Commentary{}, err
	}
	c.GameClock = gameClock.String
	c.Provider = provider.String
	c.Model = model.String
	if created, err := parseTimeString(createdRaw); err == nil {
		c.Timestamp = created
	}
	return c, nil
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		value = time.Now()
	}
	return value.UTC().Format(timeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC(), nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func encodeEmbedding(vector []float32) (any, error) {
	if len(vector) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(vector)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func decodeEmbedding(raw string) ([]float32, error) {
	if raw == "" {
		return nil, errors.New("empty embedding")
	}
	var vector []float32
	if err := json.Unmarshal([]byte(raw), &vector); err != nil {
		return nil, err
	}
	return vector, nil
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func topMatches(matches []Match, limit int) []Match {
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}
