package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"onthefly/internal/analytics"
	"onthefly/internal/commentary"
	"onthefly/internal/logging"
	"onthefly/internal/services"
)

const (
	defaultListLimit   = 50
	maxListLimit       = 500
	defaultSearchLimit = 5
	maxSearchLimit     = 50
)

// commentaryResponse is the JSON shape of one stored row.
type commentaryResponse struct {
	ID                 int64     `json:"id"`
	UUID               string    `json:"uuid"`
	Timestamp          time.Time `json:"timestamp"`
	Text               string    `json:"text"`
	HomeScore          int       `json:"homeScore"`
	AwayScore          int       `json:"awayScore"`
	HomeWinProbability float64   `json:"homeWinProbability"`
	AwayWinProbability float64   `json:"awayWinProbability"`
	GameClock          string    `json:"gameClock"`
	LatencyMs          float64   `json:"latencyMs"`
	Provider           string    `json:"provider,omitempty"`
	Model              string    `json:"model,omitempty"`
}

// commentaryError is the frame endpoint's failure body. The dashboard renders
// text directly in the chat panel.
type commentaryError struct {
	Text  string `json:"text"`
	Error bool   `json:"error"`
}

type commentaryListResponse struct {
	Commentaries []commentaryResponse `json:"commentaries"`
}

type searchMatch struct {
	Commentary commentaryResponse `json:"commentary"`
	Similarity float64            `json:"similarity"`
}

type searchResponse struct {
	Query   string        `json:"query"`
	Matches []searchMatch `json:"matches"`
}

func toResponse(c *commentary.Commentary) commentaryResponse {
	return commentaryResponse{
		ID:                 c.ID,
		UUID:               c.UUID,
		Timestamp:          c.Timestamp,
		Text:               c.Text,
		HomeScore:          c.HomeScore,
		AwayScore:          c.AwayScore,
		HomeWinProbability: c.HomeWinProbability,
		AwayWinProbability: c.AwayWinProbability(),
		GameClock:          c.GameClock,
		LatencyMs:          c.LatencyMS,
		Provider:           c.Provider,
		Model:              c.Model,
	}
}

// handleCreateCommentary turns one posted frame into a stored row. A missing,
// undecodable or oversized image answers 400, not 500; model and store
// failures answer 500. Both carry the {text, error} body the dashboard shows
// in the chat panel, so the dashboard renders either code the same way.
func (s *apiServer) handleCreateCommentary(w http.ResponseWriter, r *http.Request) {
	if s.generator == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, commentaryError{Text: "Error generating commentary: generator unavailable", Error: true})
		return
	}

	var req commentary.FrameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		message := "invalid request body"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			message = fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)
		}
		s.writeJSON(w, http.StatusBadRequest, commentaryError{Text: "Error generating commentary: " + message, Error: true})
		return
	}

	row, err := s.generator.Generate(r.Context(), req)
	if err != nil {
		status := services.HTTPStatus(err)
		message := err.Error()
		if status == http.StatusBadRequest {
			message = validationMessage(err)
		} else {
			status = http.StatusInternalServerError
		}
		logging.WithContext(r.Context(), s.log()).Debug("frame rejected",
			logging.Int("status", status),
			logging.Error(err),
		)
		s.writeJSON(w, status, commentaryError{Text: "Error generating commentary: " + message, Error: true})
		return
	}
	s.writeJSON(w, http.StatusOK, toResponse(row))
}

// validationMessage reduces a wrapped validation error to the frame problem
// the caller can fix.
func validationMessage(err error) string {
	for _, sentinel := range []error{commentary.ErrNoImageData, commentary.ErrUnsupportedImage, commentary.ErrFrameTooLarge} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "invalid image data"
}

func (s *apiServer) handleListCommentaries(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeJSON(w, http.StatusOK, commentaryListResponse{Commentaries: []commentaryResponse{}})
		return
	}
	limit, err := parseLimit(r.URL.Query().Get("limit"), defaultListLimit, maxListLimit)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rows, err := s.store.Latest(r.Context(), limit)
	if err != nil {
		logging.WithContext(r.Context(), s.log()).Error("list commentaries failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "Error fetching commentaries")
		return
	}
	resp := commentaryListResponse{Commentaries: make([]commentaryResponse, 0, len(rows))}
	for i := range rows {
		resp.Commentaries = append(resp.Commentaries, toResponse(&rows[i]))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	if s.analytics == nil {
		s.writeError(w, http.StatusInternalServerError, "Error fetching analytics data")
		return
	}
	rng, err := analytics.ParseRange(r.URL.Query().Get("range"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	data, err := s.analytics.Build(r.Context(), rng)
	if err != nil {
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.log()), "analytics query failed", "analytics_failed",
			logging.Error(err),
			logging.String("range", rng.Name),
		)
		s.writeError(w, http.StatusInternalServerError, "Error fetching analytics data")
		return
	}
	s.writeJSON(w, http.StatusOK, data)
}

func (s *apiServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		s.writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit, err := parseLimit(r.URL.Query().Get("limit"), defaultSearchLimit, maxSearchLimit)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.embedder == nil || s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "embeddings are disabled")
		return
	}

	logger := logging.WithContext(r.Context(), s.log())
	vector, err := s.embedder.Embed(r.Context(), query)
	if err != nil {
		logger.Warn("search embedding failed", logging.Error(err))
		s.writeError(w, http.StatusBadGateway, "embedding request failed")
		return
	}
	matches, err := s.store.Search(r.Context(), vector, limit)
	if err != nil {
		logger.Error("similarity search failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "Error searching commentaries")
		return
	}
	resp := searchResponse{Query: query, Matches: make([]searchMatch, 0, len(matches))}
	for i := range matches {
		resp.Matches = append(resp.Matches, searchMatch{
			Commentary: toResponse(&matches[i].Commentary),
			Similarity: matches[i].Similarity,
		})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		s.writeJSON(w, http.StatusOK, Status{})
		return
	}
	s.writeJSON(w, http.StatusOK, s.status(r.Context()))
}

func (s *apiServer) handleVideo(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, s.dashboard.VideoPath)
}

func parseLimit(raw string, fallback, ceiling int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	return min(limit, ceiling), nil
}
