package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"onthefly/internal/commentary"
	"onthefly/internal/config"
)

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "generate <image>",
		Short: "Generate and store commentary for a single JPEG or PNG frame",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read frame: %w", err)
			}
			frame, err := commentary.NewFrame(data, 0, 0)
			if err != nil {
				return err
			}
			return ctx.withGenerator(cmd.Context(), func(_ *config.Config, gen *commentary.Generator) error {
				row, err := gen.GenerateFrame(cmd.Context(), frame)
				if err != nil {
					return fmt.Errorf("generate commentary: %w", err)
				}
				if jsonOutput {
					return writeJSON(cmd, commentaryView(*row))
				}
				printCommentary(cmd.OutOrStdout(), *row)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

// commentaryJSON mirrors the HTTP representation of a row.
type commentaryJSON struct {
	ID                 int64     `json:"id"`
	UUID               string    `json:"uuid"`
	Timestamp          time.Time `json:"timestamp"`
	Text               string    `json:"text"`
	HomeScore          int       `json:"homeScore"`
	AwayScore          int       `json:"awayScore"`
	HomeWinProbability float64   `json:"homeWinProbability"`
	AwayWinProbability float64   `json:"awayWinProbability"`
	GameClock          string    `json:"gameClock"`
	LatencyMS          float64   `json:"latencyMs"`
	Provider           string    `json:"provider,omitempty"`
	Model              string    `json:"model,omitempty"`
}

func commentaryView(c commentary.Commentary) commentaryJSON {
	return commentaryJSON{
		ID:                 c.ID,
		UUID:               c.UUID,
		Timestamp:          c.Timestamp.UTC(),
		Text:               c.Text,
		HomeScore:          c.HomeScore,
		AwayScore:          c.AwayScore,
		HomeWinProbability: c.HomeWinProbability,
		AwayWinProbability: c.AwayWinProbability(),
		GameClock:          c.GameClock,
		LatencyMS:          c.LatencyMS,
		Provider:           c.Provider,
		Model:              c.Model,
	}
}

func printCommentary(out io.Writer, c commentary.Commentary) {
	fmt.Fprintln(out, c.Text)
	fmt.Fprintf(out, "Score %s  Clock %s  Home win %s  Latency %s\n",
		formatScore(c), c.GameClock, formatPercent(c.HomeWinProbability), formatLatency(c.LatencyMS))
}
