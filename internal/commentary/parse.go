package commentary

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"onthefly/internal/services/llm"
)

const (
	// NoCommentary replaces an empty commentary field.
	NoCommentary = "No commentary generated."
	// DefaultWinProbability is used when the model omits a probability.
	DefaultWinProbability = 50.0

	maxClockLength = 10
	maxScore       = 999
)

// rawOutput accepts the current field names and the legacy team-specific ones.
type rawOutput struct {
	Commentary string `json:"commentary"`

	HomeScore    *flexNumber `json:"homeScore"`
	AwayScore    *flexNumber `json:"awayScore"`
	LegacyHome   *flexNumber `json:"warriorsScore"`
	LegacyAway   *flexNumber `json:"cavaliersScore"`
	HomeWinProb  *flexNumber `json:"homeWinProbability"`
	LegacyProb   *flexNumber `json:"warriorsWinProbability"`
	LegacyProbGS *flexNumber `json:"win_probability_gs"`

	GameClock string `json:"gameClock"`
}

// flexNumber decodes JSON numbers and numeric strings ("87", "55%").
type flexNumber float64

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	text := strings.TrimSpace(string(data))
	if text == "null" {
		return nil
	}
	if unquoted, err := strconv.Unquote(text); err == nil {
		text = strings.TrimSuffix(strings.TrimSpace(unquoted), "%")
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return fmt.Errorf("not a number: %s", string(data))
	}
	*n = flexNumber(value)
	return nil
}

func firstNumber(values ...*flexNumber) (float64, bool) {
	for _, v := range values {
		if v != nil && !math.IsNaN(float64(*v)) {
			return float64(*v), true
		}
	}
	return 0, false
}

// ParseModelOutput decodes a model reply and applies the fallbacks: empty
// commentary becomes NoCommentary, missing scores come from previous (else 0),
// a missing probability becomes 50, probabilities are clamped to [0,100], and
// a missing clock stays empty.
func ParseModelOutput(content string, previous *Commentary) (ModelOutput, error) {
	var raw rawOutput
	if err := llm.DecodeJSON(content, &raw); err != nil {
		return ModelOutput{}, fmt.Errorf("parse model output: %w", err)
	}

	out := ModelOutput{Raw: content}

	out.Commentary = strings.TrimSpace(raw.Commentary)
	if out.Commentary == "" {
		out.Commentary = NoCommentary
	}

	prevHome, prevAway := 0, 0
	if previous != nil {
		prevHome, prevAway = previous.HomeScore, previous.AwayScore
	}
	out.HomeScore = scoreOr(prevHome, raw.HomeScore, raw.LegacyHome)
	out.AwayScore = scoreOr(prevAway, raw.AwayScore, raw.LegacyAway)

	out.HomeWinProbability = DefaultWinProbability
	if v, ok := firstNumber(raw.HomeWinProb, raw.LegacyProb, raw.LegacyProbGS); ok && !math.IsInf(v, 0) {
		// Some models answer with a 0-1 fraction.
		if v > 0 && v < 1 {
			v *= 100
		}
		out.HomeWinProbability = clamp(v, 0, 100)
	}

	out.GameClock = normalizeClock(raw.GameClock)
	return out, nil
}

// scoreOr returns the first usable score, or fallback when none is. Negative,
// infinite and implausibly large values count as missing.
func scoreOr(fallback int, values ...*flexNumber) int {
	v, ok := firstNumber(values...)
	if !ok || math.IsInf(v, 0) || v < 0 || v > maxScore {
		return fallback
	}
	return int(math.Round(v))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func normalizeClock(value string) string {
	value = strings.TrimSpace(value)
	if utf8.RuneCountInString(value) <= maxClockLength {
		return value
	}
	return string([]rune(value)[:maxClockLength])
}
