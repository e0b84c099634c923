package commentary

import (
	"fmt"
	"strings"
)

const styleInstruction = "Make the comments as engaging and exciting as possible and don't repeat the same commentary for different moments. Keep them brief and to the point."

// BuildPrompt assembles the system and user messages for one frame. The last
// known score and clock from previous are embedded so the model can fall back
// to them when the scoreboard is hidden; without a previous row the score is
// 0-0 and the clock is game.DefaultClock.
func BuildPrompt(game Game, previous *Commentary) Prompt {
	home, away := game.Teams.Home, game.Teams.Away
	period := strings.TrimSpace(game.PeriodLabel)
	if period == "" {
		period = "4th"
	}

	homeScore, awayScore := 0, 0
	clock := strings.TrimSpace(game.DefaultClock)
	if clock == "" {
		clock = "12:00"
	}
	if previous != nil {
		homeScore, awayScore = previous.HomeScore, previous.AwayScore
		if strings.TrimSpace(previous.GameClock) != "" {
			clock = previous.GameClock
		}
	}

	role := fmt.Sprintf(
		"You are a sports commentator for ESPN. You are commenting on moments from %s. "+
			"You'll be shown a frame from the broadcast and should comment on it based on the score and the time remaining in the %s quarter.",
		game.Description, period)

	scoreboard := fmt.Sprintf(
		"%s The team abbreviations are %s for the %s and %s for the %s, each followed by that team's score. "+
			"If the scoreboard is not visible, assume the last known score: %s %d - %d %s with %s remaining in the %s quarter.",
		strings.TrimSpace(game.ScoreboardHint),
		away.Abbreviation, away.Name, home.Abbreviation, home.Name,
		away.Abbreviation, awayScore, homeScore, home.Abbreviation, clock, period)

	user := fmt.Sprintf(`Write a commentary for this moment based on the score and the time remaining in the %[1]s quarter.

Respond with a JSON object with these fields:
- commentary (string): the commentary text
- homeScore (int): the %[2]s (%[3]s) score
- awayScore (int): the %[4]s (%[5]s) score
- homeWinProbability (number 0-100): the %[2]s win probability given the score and time remaining
- gameClock (string): the time remaining, as shown on the scoreboard`,
		period, home.Name, home.Abbreviation, away.Name, away.Abbreviation)

	return Prompt{
		System: []string{role, scoreboard, styleInstruction},
		User:   user,
	}
}
