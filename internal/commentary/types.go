package commentary

import (
	"strings"
	"time"
)

// FrameRequest is the payload posted by a frame source.
type FrameRequest struct {
	// ImageData is a data URL (data:image/jpeg;base64,...) or bare base64.
	ImageData string `json:"imageData"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// Frame is a decoded still image.
type Frame struct {
	MIMEType string
	Data     []byte
	Width    int
	Height   int
}

// Team identifies one side of the game.
type Team struct {
	Name         string
	Abbreviation string
}

// Teams pairs the home and away sides.
type Teams struct {
	Home Team
	Away Team
}

// Game describes the broadcast the prompts are written for.
type Game struct {
	Teams          Teams
	Description    string
	PeriodLabel    string
	ScoreboardHint string
	DefaultClock   string
}

// Commentary is one stored row.
type Commentary struct {
	ID                 int64
	UUID               string
	Timestamp          time.Time
	Text               string
	LatencyMS          float64
	HomeScore          int
	AwayScore          int
	HomeWinProbability float64
	GameClock          string
	Provider           string
	Model              string
	Embedding          []float32
}

// AwayWinProbability is the complement of the home probability.
func (c *Commentary) AwayWinProbability() float64 {
	return 100 - c.HomeWinProbability
}

// Leader returns +1 when the home side leads, -1 when the away side leads,
// and 0 for a tie.
func (c *Commentary) Leader() int {
	switch {
	case c.HomeScore > c.AwayScore:
		return 1
	case c.HomeScore < c.AwayScore:
		return -1
	default:
		return 0
	}
}

// Bucket counts rows created in [Start, Start+width).
type Bucket struct {
	Start time.Time
	Count int
}

// ModelOutput is the parsed reply after fallbacks have been applied.
type ModelOutput struct {
	Commentary         string
	HomeScore          int
	AwayScore          int
	HomeWinProbability float64
	GameClock          string
	// Raw holds the unmodified model content.
	Raw string
}

// Prompt carries the messages sent to the vision model.
type Prompt struct {
	System []string
	User   string
}

func (p Prompt) String() string {
	return strings.Join(append(append([]string(nil), p.System...), p.User), "\n\n")
}
