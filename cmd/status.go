package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"issuewatch/internal/config"
	"issuewatch/internal/db"
)

var historyLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent scan cycle history",
	Long:  `Display the most recent scan cycle and a short history of past cycles from the local cycle log.`,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of past cycles to show")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	history, err := db.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening cycle log: %w", err)
	}
	defer history.Close()

	last, err := history.LastCycle()
	if err != nil {
		return fmt.Errorf("getting last cycle: %w", err)
	}

	fmt.Println("=== Last Cycle ===")
	if last == nil {
		fmt.Println("No cycles recorded yet.")
	} else {
		ago := time.Since(last.RanAt).Round(time.Second)
		fmt.Printf("Time:         %s (%s ago)\n", last.RanAt.Format(time.RFC3339), ago)
		fmt.Printf("Issues found: %d\n", last.IssuesFound)
		fmt.Printf("Alerts sent:  %d\n", last.AlertsSent)
		fmt.Printf("Fetch errors: %d\n", last.FetchErrors)
		if last.DurationMs.Valid {
			fmt.Printf("Duration:     %dms\n", last.DurationMs.Int64)
		}
		if last.ErrorMessage.Valid && last.ErrorMessage.String != "" {
			fmt.Printf("Error:        %s\n", last.ErrorMessage.String)
		}
	}

	fmt.Println()

	records, err := history.RecentCycles(historyLimit)
	if err != nil {
		return fmt.Errorf("getting cycle history: %w", err)
	}

	fmt.Println("=== History ===")
	if len(records) == 0 {
		fmt.Println("No cycles recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tISSUES\tALERTS\tERRORS\tDURATION")

	for _, rec := range records {
		duration := "-"
		if rec.DurationMs.Valid {
			duration = fmt.Sprintf("%dms", rec.DurationMs.Int64)
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\n",
			formatAgo(time.Since(rec.RanAt)), rec.IssuesFound, rec.AlertsSent, rec.FetchErrors, duration)
	}

	w.Flush()

	return nil
}

func formatAgo(d time.Duration) string {
	switch hours := int(d.Hours()); {
	case hours >= 24:
		return fmt.Sprintf("%dd ago", hours/24)
	case hours >= 1:
		return fmt.Sprintf("%dh ago", hours)
	default:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	}
}
