package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"onthefly/internal/analytics"
	"onthefly/internal/commentary"
	"onthefly/internal/config"
	"onthefly/internal/store"
)

func newAnalyticsCommand(ctx *commandContext) *cobra.Command {
	var rangeFlag string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Summarise stored commentary for a time range",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := analytics.ParseRange(rangeFlag)
			if err != nil {
				return err
			}
			return ctx.withStore(cmd.Context(), func(cfg *config.Config, st store.Store) error {
				service := analytics.NewService(st, commentary.GameFromConfig(cfg).Teams)
				data, err := service.Build(cmd.Context(), r)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, data)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderSummary(analyticsSummary(data)))
				if len(data.LatestCommentaries) > 0 {
					rows := make([][]string, 0, len(data.LatestCommentaries))
					for _, entry := range data.LatestCommentaries {
						rows = append(rows, []string{formatTimestamp(entry.Timestamp), entry.Commentary})
					}
					fmt.Fprintln(out, renderTable([]tableColumn{
						{Header: "Time"},
						{Header: "Latest Commentary", MaxWidth: 70},
					}, rows))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&rangeFlag, "range", "r", "all", "Time range ("+strings.Join(analytics.RangeNames, ", ")+")")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func analyticsSummary(data analytics.Data) [][2]string {
	pairs := [][2]string{
		{"Range", data.Range},
		{"Commentaries", formatCount(data.TotalCommentaries)},
		{"Avg latency", formatLatency(data.AvgLatencyMs)},
	}
	if cur := data.Current; cur != nil {
		home, away := data.Teams.Home.Abbreviation, data.Teams.Away.Abbreviation
		pairs = append(pairs,
			[2]string{"Score", fmt.Sprintf("%s %d - %d %s", home, cur.HomeScore, cur.AwayScore, away)},
			[2]string{"Clock", cur.GameClock},
			[2]string{home + " win", formatPercent(cur.HomeWinProbability)},
			[2]string{away + " win", formatPercent(cur.AwayWinProbability)},
		)
	}
	return pairs
}
