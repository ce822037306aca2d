package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/geo-cli/internal/model"
	"github.com/sells-group/geo-cli/internal/store"
)

var analysesCmd = &cobra.Command{
	Use:   "analyses",
	Short: "Inspect analysis history",
	Long:  "Commands for listing and summarizing visibility analyses.",
}

// -- analyses list --

var analysesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List analyses, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("store"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		user, _ := cmd.Flags().GetString("user")
		limit, _ := cmd.Flags().GetInt("limit")

		analyses, err := st.ListAnalyses(ctx, store.AnalysisFilter{
			Status: model.AnalysisStatus(status),
			UserID: user,
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "analyses list")
		}

		if len(analyses) == 0 {
			fmt.Fprintln(os.Stderr, "No analyses found.")
			return nil
		}

		formatAnalysesList(os.Stdout, analyses)
		return nil
	},
}

// -- analyses stats --

var analysesStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate analysis statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("store"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		user, _ := cmd.Flags().GetString("user")
		analyses, err := st.ListAnalyses(ctx, store.AnalysisFilter{UserID: user, Limit: 10000})
		if err != nil {
			return eris.Wrap(err, "analyses stats")
		}

		formatAnalysisStats(os.Stdout, computeAnalysisStats(analyses))
		return nil
	},
}

func init() {
	analysesListCmd.Flags().String("status", "", "filter by status (pending, crawling, analyzing, scoring, completed, failed)")
	analysesListCmd.Flags().String("user", "", "filter by user ID")
	analysesListCmd.Flags().Int("limit", 50, "max number of analyses to display")

	analysesStatsCmd.Flags().String("user", "", "restrict to one user ID")

	analysesCmd.AddCommand(analysesListCmd)
	analysesCmd.AddCommand(analysesStatsCmd)
	rootCmd.AddCommand(analysesCmd)
}

// analysisStats holds aggregate statistics computed from a set of analyses.
type analysisStats struct {
	Total      int
	Completed  int
	Failed     int
	Running    int
	Pending    int
	AvgScore   float64
	AvgDurSecs float64
}

// computeAnalysisStats computes aggregate statistics from a list of analyses.
func computeAnalysisStats(analyses []model.Analysis) analysisStats {
	var s analysisStats
	s.Total = len(analyses)

	var totalDur time.Duration
	var durCount, scoreSum, scoreCount int

	for _, a := range analyses {
		switch a.Status {
		case model.AnalysisStatusCompleted:
			s.Completed++
			if a.CompletedAt != nil {
				totalDur += a.CompletedAt.Sub(a.CreatedAt)
				durCount++
			}
			if a.Score != nil {
				scoreSum += *a.Score
				scoreCount++
			}
		case model.AnalysisStatusFailed:
			s.Failed++
		case model.AnalysisStatusPending:
			s.Pending++
		default:
			s.Running++
		}
	}

	if durCount > 0 {
		s.AvgDurSecs = totalDur.Seconds() / float64(durCount)
	}
	if scoreCount > 0 {
		s.AvgScore = float64(scoreSum) / float64(scoreCount)
	}
	return s
}

// formatAnalysesList writes a tabular list of analyses to w.
func formatAnalysesList(out io.Writer, analyses []model.Analysis) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSITE\tSTATUS\tPROGRESS\tSCORE\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t----\t------\t--------\t-----\t-------")

	for _, a := range analyses {
		site := a.URL
		if a.BrandName != "" {
			site = a.BrandName
		}
		if len(site) > 30 {
			site = site[:27] + "..."
		}

		score := "-"
		if a.Score != nil {
			score = fmt.Sprintf("%d", *a.Score)
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d%%\t%s\t%s\n",
			truncateID(a.ID),
			site,
			a.Status,
			a.Progress,
			score,
			a.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// formatAnalysisStats writes aggregate stats to w.
func formatAnalysisStats(out io.Writer, s analysisStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total analyses:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Completed:\t%d\n", s.Completed)
	_, _ = fmt.Fprintf(w, "Failed:\t%d\n", s.Failed)
	_, _ = fmt.Fprintf(w, "Running:\t%d\n", s.Running)
	_, _ = fmt.Fprintf(w, "Pending:\t%d\n", s.Pending)
	if s.AvgScore > 0 {
		_, _ = fmt.Fprintf(w, "Avg score:\t%.1f\n", s.AvgScore)
	}
	if s.AvgDurSecs > 0 {
		_, _ = fmt.Fprintf(w, "Avg duration:\t%.1fs\n", s.AvgDurSecs)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
