// Package notify delivers alerts to a Discord-compatible chat webhook.
// Delivery is best effort: callers log failures and move on, nothing is
// retried.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Embed colors, decimal RGB.
const (
	colorBlue   = 3447003  // info
	colorRed    = 15158332 // error
	colorGreen  = 3066993  // success, brand-new issues
	colorOrange = 15105570 // updated issues
)

// Level is the severity class of a system alert.
type Level int

const (
	LevelInfo Level = iota
	LevelError
	LevelSuccess
)

func (l Level) color() int {
	switch l {
	case LevelError:
		return colorRed
	case LevelSuccess:
		return colorGreen
	default:
		return colorBlue
	}
}

func (l Level) marker() string {
	switch l {
	case LevelError:
		return "🔴"
	case LevelSuccess:
		return "🟢"
	default:
		return "🔵"
	}
}

// IssueAlert is one newly discovered issue, ready to format.
type IssueAlert struct {
	Repo     string
	Title    string
	URL      string
	Labels   []string
	BrandNew bool
	OpenedAt time.Time
}

type Webhook struct {
	url        string
	username   string
	httpClient *http.Client
}

func NewWebhook(url, username string) *Webhook {
	return &Webhook{
		url:        url,
		username:   username,
		httpClient: &http.Client{},
	}
}

type payload struct {
	Username string  `json:"username,omitempty"`
	Embeds   []embed `json:"embeds"`
}

type embed struct {
	Title       string  `json:"title,omitempty"`
	Description string  `json:"description,omitempty"`
	Color       int     `json:"color,omitempty"`
	Footer      *footer `json:"footer,omitempty"`
	Timestamp   string  `json:"timestamp,omitempty"`
	Fields      []field `json:"fields,omitempty"`
}

type footer struct {
	Text string `json:"text"`
}

type field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// SendIssue posts one notification for a new or newly matching issue.
// Brand-new and updated issues get distinct headings and colors so they
// read differently at a glance.
func (w *Webhook) SendIssue(alert IssueAlert) error {
	heading := fmt.Sprintf("🆕 New issue in %s", alert.Repo)
	color := colorGreen
	if !alert.BrandNew {
		heading = fmt.Sprintf("🔄 Updated issue in %s", alert.Repo)
		color = colorOrange
	}

	labels := "none"
	if len(alert.Labels) > 0 {
		labels = strings.Join(alert.Labels, ", ")
	}

	e := embed{
		Title:       heading,
		Description: fmt.Sprintf("[%s](%s)", alert.Title, alert.URL),
		Color:       color,
		Footer:      &footer{Text: "issuewatch"},
		Fields: []field{
			{Name: "Labels", Value: labels, Inline: true},
		},
	}
	if !alert.OpenedAt.IsZero() {
		e.Timestamp = alert.OpenedAt.UTC().Format(time.RFC3339)
	}

	return w.send(payload{Username: w.username, Embeds: []embed{e}})
}

// SendSystem posts a lifecycle notification: startup, heartbeat, or an
// escalated fetch error.
func (w *Webhook) SendSystem(level Level, title, description string) error {
	e := embed{
		Title:       fmt.Sprintf("%s %s", level.marker(), title),
		Description: description,
		Color:       level.color(),
		Footer:      &footer{Text: "issuewatch"},
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
	return w.send(payload{Username: w.username, Embeds: []embed{e}})
}

func (w *Webhook) send(p payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding webhook payload: %w", err)
	}

	resp, err := w.httpClient.Post(w.url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("posting webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook rejected payload: HTTP %d", resp.StatusCode)
	}
	return nil
}
