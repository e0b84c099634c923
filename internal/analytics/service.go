package analytics

import (
	"context"
	"fmt"
	"math"
	"time"

	"onthefly/internal/commentary"
)

const (
	latestCount   = 10
	domainPadding = 5

	// DefaultSeriesLimit caps the score and probability series to the newest
	// rows in range.
	DefaultSeriesLimit = 500
)

// Source is the read side of the store used by the analytics service.
type Source interface {
	Latest(ctx context.Context, limit int) ([]commentary.Commentary, error)
	Count(ctx context.Context, since time.Time) (int, error)
	Since(ctx context.Context, since time.Time, limit int) ([]commentary.Commentary, error)
	CountBuckets(ctx context.Context, since time.Time, width time.Duration) ([]commentary.Bucket, error)
}

// CommentaryEntry is one item of the latest commentary list.
type CommentaryEntry struct {
	Commentary string    `json:"commentary"`
	Timestamp  time.Time `json:"timestamp"`
}

// LatencyEntry is one server-measured model latency in milliseconds.
type LatencyEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Latency   float64   `json:"latency"`
}

// CountEntry is one commentaries-over-time bucket.
type CountEntry struct {
	Date  time.Time `json:"date"`
	Count int       `json:"count"`
}

// ScoreEntry is one point of the score chart.
type ScoreEntry struct {
	GameTime  string `json:"gameTime"`
	HomeScore int    `json:"homeScore"`
	AwayScore int    `json:"awayScore"`
}

// ProbabilityEntry is one point of the win probability chart.
type ProbabilityEntry struct {
	GameTime           string  `json:"gameTime"`
	HomeWinProbability float64 `json:"homeWinProbability"`
	AwayWinProbability float64 `json:"awayWinProbability"`
}

// Current summarises the newest row in the range.
type Current struct {
	HomeScore          int       `json:"homeScore"`
	AwayScore          int       `json:"awayScore"`
	HomeWinProbability float64   `json:"homeWinProbability"`
	AwayWinProbability float64   `json:"awayWinProbability"`
	GameClock          string    `json:"gameClock"`
	Timestamp          time.Time `json:"timestamp"`
}

// TeamInfo labels one side in the payload.
type TeamInfo struct {
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
}

// TeamsInfo labels both sides.
type TeamsInfo struct {
	Home TeamInfo `json:"home"`
	Away TeamInfo `json:"away"`
}

// Data is the analytics payload served to the dashboard.
type Data struct {
	LatestCommentaries         []CommentaryEntry  `json:"latestCommentaries"`
	TotalCommentaries          int                `json:"totalCommentaries"`
	LatestLatency              []LatencyEntry     `json:"latestLatency"`
	AvgLatencyMs               float64            `json:"avgLatencyMs"`
	CommentariesOverTime       []CountEntry       `json:"commentariesOverTime"`
	ScoresOverTime             []ScoreEntry       `json:"scoresOverTime"`
	HomeWinProbabilityOverTime []ProbabilityEntry `json:"homeWinProbabilityOverTime"`
	ScoreDomain                [2]float64         `json:"scoreDomain"`
	ProbabilityDomain          [2]float64         `json:"probabilityDomain"`
	Current                    *Current           `json:"current,omitempty"`
	Teams                      TeamsInfo          `json:"teams"`
	Range                      string             `json:"range"`
}

// Service builds analytics payloads.
type Service struct {
	source      Source
	teams       TeamsInfo
	now         func() time.Time
	seriesLimit int
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides time.Now (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSeriesLimit overrides DefaultSeriesLimit.
func WithSeriesLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.seriesLimit = limit
		}
	}
}

// NewService constructs a Service reading from source.
func NewService(source Source, teams commentary.Teams, opts ...Option) *Service {
	s := &Service{
		source: source,
		teams: TeamsInfo{
			Home: TeamInfo{Name: teams.Home.Name, Abbreviation: teams.Home.Abbreviation},
			Away: TeamInfo{Name: teams.Away.Name, Abbreviation: teams.Away.Abbreviation},
		},
		now:         time.Now,
		seriesLimit: DefaultSeriesLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Build assembles the payload for r.
func (s *Service) Build(ctx context.Context, r Range) (Data, error) {
	since := r.Since(s.now())
	data := Data{
		LatestCommentaries:         []CommentaryEntry{},
		LatestLatency:              []LatencyEntry{},
		CommentariesOverTime:       []CountEntry{},
		ScoresOverTime:             []ScoreEntry{},
		HomeWinProbabilityOverTime: []ProbabilityEntry{},
		Teams:                      s.teams,
		Range:                      r.Name,
	}

	total, err := s.source.Count(ctx, since)
	if err != nil {
		return Data{}, fmt.Errorf("analytics: %w", err)
	}
	data.TotalCommentaries = total

	latest, err := s.source.Latest(ctx, latestCount)
	if err != nil {
		return Data{}, fmt.Errorf("analytics: %w", err)
	}
	var latencySum float64
	for _, row := range latest {
		if row.Timestamp.Before(since) {
			continue
		}
		data.LatestCommentaries = append(data.LatestCommentaries, CommentaryEntry{Commentary: row.Text, Timestamp: row.Timestamp})
		data.LatestLatency = append(data.LatestLatency, LatencyEntry{Timestamp: row.Timestamp, Latency: row.LatencyMS})
		latencySum += row.LatencyMS
	}
	if n := len(data.LatestLatency); n > 0 {
		data.AvgLatencyMs = latencySum / float64(n)
	}

	buckets, err := s.source.CountBuckets(ctx, since, r.Bucket)
	if err != nil {
		return Data{}, fmt.Errorf("analytics: %w", err)
	}
	for _, b := range buckets {
		data.CommentariesOverTime = append(data.CommentariesOverTime, CountEntry{Date: b.Start, Count: b.Count})
	}

	rows, err := s.source.Since(ctx, since, s.seriesLimit)
	if err != nil {
		return Data{}, fmt.Errorf("analytics: %w", err)
	}
	for _, row := range rows {
		data.ScoresOverTime = append(data.ScoresOverTime, ScoreEntry{
			GameTime:  row.GameClock,
			HomeScore: row.HomeScore,
			AwayScore: row.AwayScore,
		})
		data.HomeWinProbabilityOverTime = append(data.HomeWinProbabilityOverTime, ProbabilityEntry{
			GameTime:           row.GameClock,
			HomeWinProbability: row.HomeWinProbability,
			AwayWinProbability: row.AwayWinProbability(),
		})
	}
	data.ScoreDomain = scoreDomain(data.ScoresOverTime)
	data.ProbabilityDomain = probabilityDomain(data.HomeWinProbabilityOverTime)

	if n := len(rows); n > 0 {
		last := rows[n-1]
		data.Current = &Current{
			HomeScore:          last.HomeScore,
			AwayScore:          last.AwayScore,
			HomeWinProbability: last.HomeWinProbability,
			AwayWinProbability: last.AwayWinProbability(),
			GameClock:          last.GameClock,
			Timestamp:          last.Timestamp,
		}
	}
	return data, nil
}

func scoreDomain(points []ScoreEntry) [2]float64 {
	if len(points) == 0 {
		return [2]float64{}
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range points {
		lo = math.Min(lo, float64(min(p.HomeScore, p.AwayScore)))
		hi = math.Max(hi, float64(max(p.HomeScore, p.AwayScore)))
	}
	return [2]float64{lo - domainPadding, hi + domainPadding}
}

func probabilityDomain(points []ProbabilityEntry) [2]float64 {
	if len(points) == 0 {
		return [2]float64{}
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range points {
		lo = math.Min(lo, math.Min(p.HomeWinProbability, p.AwayWinProbability))
		hi = math.Max(hi, math.Max(p.HomeWinProbability, p.AwayWinProbability))
	}
	return [2]float64{lo - domainPadding, hi + domainPadding}
}
