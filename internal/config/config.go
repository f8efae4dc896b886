package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Target is one monitored repository plus the issue filters applied to it.
// Filters are flattened into the issue query verbatim (e.g. labels, assignee).
type Target struct {
	Owner   string            `toml:"owner"`
	Repo    string            `toml:"repo"`
	Filters map[string]string `toml:"filters"`
}

func (t Target) String() string {
	return t.Owner + "/" + t.Repo
}

type Config struct {
	Targets          []Target `toml:"targets"`
	Token            string   `toml:"token"`
	WebhookURL       string   `toml:"webhook_url"`
	WebhookUsername  string   `toml:"webhook_username"`
	Port             int      `toml:"port"`
	PollIntervalSecs int      `toml:"poll_interval_seconds"`
	HeartbeatSecs    int      `toml:"heartbeat_interval_seconds"`
	DBPath           string   `toml:"db_path"`
	ConfigPath       string   `toml:"-"`
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "issuewatch", "config.toml")
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", "issuewatch", "cycles.db")
}

func Load(configPath string) (*Config, error) {
	cfg := &Config{
		Port:             8080,
		PollIntervalSecs: 60,
		HeartbeatSecs:    3600,
		DBPath:           defaultDBPath(),
	}

	if configPath == "" {
		configPath = defaultConfigPath()
	}
	cfg.ConfigPath = configPath

	if _, err := os.Stat(configPath); err == nil {
		if _, err := toml.DecodeFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if envToken := os.Getenv("GITHUB_TOKEN"); envToken != "" {
		cfg.Token = envToken
	}

	if envWebhook := os.Getenv("ISSUEWATCH_WEBHOOK_URL"); envWebhook != "" {
		cfg.WebhookURL = envWebhook
	}

	if envPort := os.Getenv("PORT"); envPort != "" {
		port, err := strconv.Atoi(envPort)
		if err != nil {
			return nil, fmt.Errorf("parsing PORT: %w", err)
		}
		cfg.Port = port
	}

	if cfg.DBPath == "" {
		cfg.DBPath = defaultDBPath()
	}

	return cfg, nil
}

// Validate checks the fields the monitor cannot start without. Values are
// read once at startup and never change at runtime.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return fmt.Errorf("no targets configured")
	}
	for _, t := range c.Targets {
		if t.Owner == "" || t.Repo == "" {
			return fmt.Errorf("target %q: owner and repo are required", t)
		}
	}
	if c.WebhookURL == "" {
		return fmt.Errorf("webhook_url is not set (config file or ISSUEWATCH_WEBHOOK_URL)")
	}
	if c.PollIntervalSecs <= 0 {
		return fmt.Errorf("poll_interval_seconds must be positive")
	}
	if c.HeartbeatSecs <= 0 {
		return fmt.Errorf("heartbeat_interval_seconds must be positive")
	}
	return nil
}
