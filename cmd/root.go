package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:   "issuewatch",
	Short: "Watch GitHub repositories for new issues",
	Long: `issuewatch polls a configured set of GitHub repositories for newly
created or newly labeled open issues and forwards an alert per issue to a
chat webhook, along with startup, heartbeat, and error notifications.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default ~/.config/issuewatch/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-error output")
}

func GetConfigPath() string {
	return configPath
}

func GetQuiet() bool {
	return quiet
}
