package poller

import (
	"fmt"
	"log"
	"time"

	"issuewatch/internal/config"
	"issuewatch/internal/db"
	"issuewatch/internal/github"
	"issuewatch/internal/notify"
	"issuewatch/internal/tracker"
)

// Issues whose last update is within this window of creation are brand new.
// Anything older newly matching a filter (e.g. a label added later) is an
// update of an existing issue.
const brandNewWindow = 120 * time.Second

type Reason int

const (
	ReasonBrandNew Reason = iota
	ReasonUpdated
)

func (r Reason) String() string {
	switch r {
	case ReasonBrandNew:
		return "new"
	case ReasonUpdated:
		return "updated"
	default:
		return "unknown"
	}
}

func Classify(issue github.Issue) Reason {
	if issue.UpdatedAt.Sub(issue.CreatedAt) < brandNewWindow {
		return ReasonBrandNew
	}
	return ReasonUpdated
}

type Fetcher interface {
	ListIssuesSince(target config.Target, since time.Time) ([]github.Issue, error)
}

type Notifier interface {
	SendIssue(alert notify.IssueAlert) error
	SendSystem(level notify.Level, title, description string) error
}

type CycleResult struct {
	IssuesFound int
	AlertsSent  int
	FetchErrors int
}

// Poller runs the scan cycle: fetch each target since the watermark, alert
// on unseen issues, advance the watermark. All collaborators are injected
// so instances are independent and testable.
type Poller struct {
	targets  []config.Target
	fetcher  Fetcher
	notifier Notifier
	seen     *tracker.Tracker
	history  *db.Database // optional cycle log, may be nil

	lastChecked time.Time
	now         func() time.Time
}

// New returns a poller whose watermark starts at the current time, so no
// historical backlog is ever surfaced.
func New(targets []config.Target, fetcher Fetcher, notifier Notifier, seen *tracker.Tracker, history *db.Database) *Poller {
	return &Poller{
		targets:     targets,
		fetcher:     fetcher,
		notifier:    notifier,
		seen:        seen,
		history:     history,
		lastChecked: time.Now(),
		now:         time.Now,
	}
}

func (p *Poller) LastChecked() time.Time {
	return p.lastChecked
}

// RunCycle scans all targets once, sequentially, in registry order. Every
// failure is contained to the target or alert that produced it; the cycle
// itself never fails.
func (p *Poller) RunCycle() *CycleResult {
	start := p.now()
	result := &CycleResult{}
	var firstErr string

	log.Printf("cycle: scanning %d targets (since %s)", len(p.targets), p.lastChecked.Format(time.RFC3339))

	for _, target := range p.targets {
		issues, err := p.fetcher.ListIssuesSince(target, p.lastChecked)
		if err != nil {
			result.FetchErrors++
			log.Printf("cycle: fetch failed for %s: %v", target, err)
			if firstErr == "" {
				firstErr = err.Error()
			}
			// A missing target stays broken forever; alerting on it every
			// cycle would just be noise.
			if !github.IsNotFound(err) {
				if sendErr := p.notifier.SendSystem(notify.LevelError, "Issue fetch failed", fmt.Sprintf("%s: %v", target, err)); sendErr != nil {
					log.Printf("cycle: error alert delivery failed: %v", sendErr)
				}
			}
			continue
		}

		newCount := 0
		for _, issue := range issues {
			if issue.IsPullRequest() {
				continue
			}
			if p.seen.HasSeen(issue.ID) {
				continue
			}
			p.seen.MarkSeen(issue.ID)

			alert := notify.IssueAlert{
				Repo:     target.String(),
				Title:    issue.Title,
				URL:      issue.HTMLURL,
				Labels:   issue.LabelNames(),
				BrandNew: Classify(issue) == ReasonBrandNew,
				OpenedAt: issue.CreatedAt,
			}
			if err := p.notifier.SendIssue(alert); err != nil {
				// Best effort: the issue is already marked seen, so this
				// alert is lost rather than retried.
				log.Printf("cycle: alert delivery failed for %s#%d: %v", target, issue.Number, err)
			}
			result.AlertsSent++
			newCount++

			p.seen.MaybeReset()
		}

		result.IssuesFound += len(issues)
		log.Printf("cycle: %s: %d records, %d new issues", target, len(issues), newCount)
	}

	// Advance to the time captured before the fetch phase, not "now", so an
	// issue created while we were fetching is picked up next cycle.
	p.lastChecked = start

	if p.history != nil {
		_ = p.history.LogCycle(result.IssuesFound, result.AlertsSent, result.FetchErrors, firstErr, p.now().Sub(start).Milliseconds())
	}

	return result
}
