package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"issuewatch/internal/config"
	"issuewatch/internal/db"
	"issuewatch/internal/github"
	"issuewatch/internal/notify"
	"issuewatch/internal/poller"
	"issuewatch/internal/tracker"
)

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single scan cycle and exit",
	Long: `Run one scan cycle against all configured targets and exit. Useful
for cron-driven setups and for checking a new configuration.

The watermark starts at invocation time, so only issues that change while
the cycle runs can show up; pair with an external scheduler that keeps its
own cadence if you use this instead of run.`,
	RunE: runOnce,
}

func init() {
	rootCmd.AddCommand(onceCmd)
}

func runOnce(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	history, err := db.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening cycle log: %w", err)
	}
	defer history.Close()

	webhook := notify.NewWebhook(cfg.WebhookURL, cfg.WebhookUsername)
	fetcher := github.NewClient(cfg.Token, "")
	p := poller.New(cfg.Targets, fetcher, webhook, tracker.New(), history)

	result := p.RunCycle()

	if !GetQuiet() {
		fmt.Printf("Found %d issues (%d alerts sent, %d fetch errors)\n",
			result.IssuesFound, result.AlertsSent, result.FetchErrors)
	}

	return nil
}
