package cmd

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"issuewatch/internal/config"
	"issuewatch/internal/db"
	"issuewatch/internal/github"
	"issuewatch/internal/notify"
	"issuewatch/internal/poller"
	"issuewatch/internal/tracker"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the monitor until killed",
	Long: `Run the monitor: an immediate scan cycle at startup, then a scan on
every poll interval and a heartbeat alert on every heartbeat interval. Also
serves a liveness endpoint on the configured port.

There is no shutdown sequence; stop the process to stop the monitor.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
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

	go serveLiveness(cfg.Port)
	go heartbeatLoop(webhook, time.Duration(cfg.HeartbeatSecs)*time.Second)

	if err := webhook.SendSystem(notify.LevelSuccess, "Monitor started",
		fmt.Sprintf("Watching %d repositories every %ds.", len(cfg.Targets), cfg.PollIntervalSecs)); err != nil {
		log.Printf("startup alert delivery failed: %v", err)
	}

	// First cycle fires immediately, then one per tick.
	runAndReport(p)
	ticker := time.NewTicker(time.Duration(cfg.PollIntervalSecs) * time.Second)
	for range ticker.C {
		runAndReport(p)
	}
	return nil
}

func runAndReport(p *poller.Poller) {
	result := p.RunCycle()
	if !GetQuiet() {
		fmt.Printf("Found %d issues (%d alerts sent, %d fetch errors)\n",
			result.IssuesFound, result.AlertsSent, result.FetchErrors)
	}
}

// heartbeatLoop shares nothing with the poll loop except the webhook, so it
// keeps firing even while a cycle is stuck on a slow fetch.
func heartbeatLoop(webhook *notify.Webhook, interval time.Duration) {
	ticker := time.NewTicker(interval)
	for range ticker.C {
		if err := webhook.SendSystem(notify.LevelInfo, "Heartbeat", "Monitor is still running."); err != nil {
			log.Printf("heartbeat delivery failed: %v", err)
		}
	}
}

// serveLiveness answers uptime probes with a static string.
func serveLiveness(port int) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "issuewatch is alive")
	})
	if err := http.ListenAndServe(fmt.Sprintf(":%d", port), mux); err != nil {
		log.Printf("liveness server stopped: %v", err)
	}
}
