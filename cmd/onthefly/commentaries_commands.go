package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"onthefly/internal/commentary"
	"onthefly/internal/config"
	"onthefly/internal/store"
)

func newCommentariesCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "commentaries",
		Aliases: []string{"c"},
		Short:   "Inspect and maintain stored commentary",
	}
	cmd.AddCommand(newCommentariesListCommand(ctx))
	cmd.AddCommand(newCommentariesSearchCommand(ctx))
	cmd.AddCommand(newCommentariesClearCommand(ctx))
	return cmd
}

func newCommentariesListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the newest commentary rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return errors.New("--limit must be positive")
			}
			return ctx.withStore(cmd.Context(), func(_ *config.Config, st store.Store) error {
				rows, err := st.Latest(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if jsonOutput {
					views := make([]commentaryJSON, 0, len(rows))
					for _, row := range rows {
						views = append(views, commentaryView(row))
					}
					return writeJSON(cmd, views)
				}
				out := cmd.OutOrStdout()
				if len(rows) == 0 {
					fmt.Fprintln(out, "No commentary stored")
					return nil
				}
				fmt.Fprintln(out, renderTable(commentaryColumns(), commentaryRows(rows)))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of rows to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newCommentariesSearchCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find commentary similar to a phrase using embeddings",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(strings.Join(args, " "))
			if query == "" {
				return errors.New("query is required")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			embedder := commentary.NewEmbedder(cfg)
			if embedder == nil {
				return errors.New("embeddings are disabled; set embeddings.enabled and an API key")
			}
			vector, err := embedder.Embed(cmd.Context(), query)
			if err != nil {
				return fmt.Errorf("embed query: %w", err)
			}
			return ctx.withStore(cmd.Context(), func(_ *config.Config, st store.Store) error {
				matches, err := st.Search(cmd.Context(), vector, limit)
				if err != nil {
					return err
				}
				if jsonOutput {
					type match struct {
						Commentary commentaryJSON `json:"commentary"`
						Similarity float64        `json:"similarity"`
					}
					views := make([]match, 0, len(matches))
					for _, m := range matches {
						views = append(views, match{Commentary: commentaryView(m.Commentary), Similarity: m.Similarity})
					}
					return writeJSON(cmd, views)
				}
				out := cmd.OutOrStdout()
				if len(matches) == 0 {
					fmt.Fprintln(out, "No matching commentary")
					return nil
				}
				rows := make([][]string, 0, len(matches))
				for _, m := range matches {
					rows = append(rows, []string{
						fmt.Sprintf("%.3f", m.Similarity),
						formatTimestamp(m.Commentary.Timestamp),
						formatScore(m.Commentary),
						m.Commentary.Text,
					})
				}
				fmt.Fprintln(out, renderTable([]tableColumn{
					{Header: "Similarity", Align: alignRight},
					{Header: "Time"},
					{Header: "Score", Align: alignRight},
					{Header: "Commentary", MaxWidth: 60},
				}, rows))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "Number of matches to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newCommentariesClearCommand(ctx *commandContext) *cobra.Command {
	var confirmed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every stored commentary row",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirmed {
				return errors.New("refusing to clear without --yes")
			}
			return ctx.withStore(cmd.Context(), func(_ *config.Config, st store.Store) error {
				removed, err := st.Clear(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s commentary rows\n", formatCount(int(removed)))
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&confirmed, "yes", "y", false, "Confirm deletion")
	return cmd
}

func commentaryColumns() []tableColumn {
	return []tableColumn{
		{Header: "ID", Align: alignRight},
		{Header: "Time"},
		{Header: "Clock"},
		{Header: "Score", Align: alignRight},
		{Header: "Home Win", Align: alignRight},
		{Header: "Latency", Align: alignRight},
		{Header: "Commentary", MaxWidth: 60},
	}
}

func commentaryRows(rows []commentary.Commentary) [][]string {
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, []string{
			fmt.Sprintf("%d", row.ID),
			formatTimestamp(row.Timestamp),
			row.GameClock,
			formatScore(row),
			formatPercent(row.HomeWinProbability),
			formatLatency(row.LatencyMS),
			row.Text,
		})
	}
	return out
}
