package poller

import (
	"errors"
	"testing"
	"time"

	"issuewatch/internal/config"
	"issuewatch/internal/github"
	"issuewatch/internal/notify"
	"issuewatch/internal/tracker"
)

type fetchCall struct {
	target string
	since  time.Time
}

type fakeFetcher struct {
	issues map[string][]github.Issue
	errs   map[string]error
	calls  []fetchCall
}

func (f *fakeFetcher) ListIssuesSince(target config.Target, since time.Time) ([]github.Issue, error) {
	f.calls = append(f.calls, fetchCall{target: target.String(), since: since})
	if err := f.errs[target.String()]; err != nil {
		return nil, err
	}
	return f.issues[target.String()], nil
}

type systemAlert struct {
	level notify.Level
	title string
	desc  string
}

type fakeNotifier struct {
	issues   []notify.IssueAlert
	system   []systemAlert
	issueErr error
}

func (f *fakeNotifier) SendIssue(alert notify.IssueAlert) error {
	f.issues = append(f.issues, alert)
	return f.issueErr
}

func (f *fakeNotifier) SendSystem(level notify.Level, title, description string) error {
	f.system = append(f.system, systemAlert{level: level, title: title, desc: description})
	return nil
}

func issueAt(id int64, title string, created, updated time.Time) github.Issue {
	return github.Issue{
		ID:        id,
		Number:    int(id),
		Title:     title,
		HTMLURL:   "https://github.com/acme/widgets/issues/1",
		CreatedAt: created,
		UpdatedAt: updated,
	}
}

func newTestPoller(targets []config.Target, fetcher *fakeFetcher, notifier *fakeNotifier) *Poller {
	return New(targets, fetcher, notifier, tracker.New(), nil)
}

func TestRunCycle_AlertsNewIssues(t *testing.T) {
	now := time.Now()
	target := config.Target{Owner: "acme", Repo: "widgets"}
	fetcher := &fakeFetcher{
		issues: map[string][]github.Issue{
			"acme/widgets": {
				issueAt(1, "first", now, now),
				issueAt(2, "second", now, now),
				issueAt(3, "third", now, now),
			},
		},
	}
	notifier := &fakeNotifier{}

	p := newTestPoller([]config.Target{target}, fetcher, notifier)
	result := p.RunCycle()

	if result.AlertsSent != 3 {
		t.Errorf("expected 3 alerts, got %d", result.AlertsSent)
	}
	if result.IssuesFound != 3 {
		t.Errorf("expected 3 issues found, got %d", result.IssuesFound)
	}
	if len(notifier.issues) != 3 {
		t.Fatalf("expected 3 issue notifications, got %d", len(notifier.issues))
	}
	for id := int64(1); id <= 3; id++ {
		if !p.seen.HasSeen(id) {
			t.Errorf("expected issue %d to be marked seen", id)
		}
	}
	if len(notifier.system) != 0 {
		t.Errorf("expected no system alerts, got %d", len(notifier.system))
	}
}

func TestRunCycle_NoDuplicateAlerts(t *testing.T) {
	now := time.Now()
	target := config.Target{Owner: "acme", Repo: "widgets"}
	fetcher := &fakeFetcher{
		issues: map[string][]github.Issue{
			"acme/widgets": {
				issueAt(1, "first", now, now),
				issueAt(2, "second", now, now),
				issueAt(3, "third", now, now),
			},
		},
	}
	notifier := &fakeNotifier{}

	p := newTestPoller([]config.Target{target}, fetcher, notifier)
	p.RunCycle()

	// Same three issues come back unchanged next cycle.
	result := p.RunCycle()
	if result.AlertsSent != 0 {
		t.Errorf("expected 0 alerts on repeat cycle, got %d", result.AlertsSent)
	}
	if len(notifier.issues) != 3 {
		t.Errorf("expected notification count to stay at 3, got %d", len(notifier.issues))
	}
}

func TestRunCycle_SkipsPullRequests(t *testing.T) {
	now := time.Now()
	target := config.Target{Owner: "acme", Repo: "widgets"}
	pr := issueAt(9, "a pull request", now, now)
	pr.PullRequest = &github.PullRequestLink{URL: "https://api.github.com/repos/acme/widgets/pulls/9"}

	fetcher := &fakeFetcher{
		issues: map[string][]github.Issue{
			"acme/widgets": {pr, issueAt(10, "a real issue", now, now)},
		},
	}
	notifier := &fakeNotifier{}

	p := newTestPoller([]config.Target{target}, fetcher, notifier)
	result := p.RunCycle()

	if result.AlertsSent != 1 {
		t.Fatalf("expected 1 alert, got %d", result.AlertsSent)
	}
	if notifier.issues[0].Title != "a real issue" {
		t.Errorf("alerted on the wrong record: %q", notifier.issues[0].Title)
	}
	if p.seen.HasSeen(9) {
		t.Error("pull requests must not be marked seen")
	}
}

func TestRunCycle_NotFoundLoggedOnly(t *testing.T) {
	target := config.Target{Owner: "acme", Repo: "gone"}
	fetcher := &fakeFetcher{
		errs: map[string]error{
			"acme/gone": &github.APIError{StatusCode: 404, URL: "https://api.github.com/repos/acme/gone/issues"},
		},
	}
	notifier := &fakeNotifier{}

	p := newTestPoller([]config.Target{target}, fetcher, notifier)
	result := p.RunCycle()

	if result.FetchErrors != 1 {
		t.Errorf("expected 1 fetch error, got %d", result.FetchErrors)
	}
	if len(notifier.system) != 0 {
		t.Errorf("404 must not escalate to chat, got %d system alerts", len(notifier.system))
	}
	if len(notifier.issues) != 0 {
		t.Errorf("expected no issue alerts, got %d", len(notifier.issues))
	}
}

func TestRunCycle_ServerErrorEscalated(t *testing.T) {
	target := config.Target{Owner: "acme", Repo: "widgets"}
	fetcher := &fakeFetcher{
		errs: map[string]error{
			"acme/widgets": &github.APIError{StatusCode: 500, URL: "https://api.github.com/repos/acme/widgets/issues"},
		},
	}
	notifier := &fakeNotifier{}

	p := newTestPoller([]config.Target{target}, fetcher, notifier)
	result := p.RunCycle()

	if result.FetchErrors != 1 {
		t.Errorf("expected 1 fetch error, got %d", result.FetchErrors)
	}
	if len(notifier.system) != 1 {
		t.Fatalf("expected 1 escalated system alert, got %d", len(notifier.system))
	}
	if notifier.system[0].level != notify.LevelError {
		t.Errorf("expected error severity, got %v", notifier.system[0].level)
	}
}

func TestRunCycle_FailingTargetDoesNotStopCycle(t *testing.T) {
	now := time.Now()
	targets := []config.Target{
		{Owner: "acme", Repo: "broken"},
		{Owner: "acme", Repo: "widgets"},
	}
	fetcher := &fakeFetcher{
		errs: map[string]error{
			"acme/broken": errors.New("dial tcp: connection refused"),
		},
		issues: map[string][]github.Issue{
			"acme/widgets": {issueAt(1, "still works", now, now)},
		},
	}
	notifier := &fakeNotifier{}

	p := newTestPoller(targets, fetcher, notifier)
	result := p.RunCycle()

	if result.FetchErrors != 1 {
		t.Errorf("expected 1 fetch error, got %d", result.FetchErrors)
	}
	if result.AlertsSent != 1 {
		t.Errorf("expected the healthy target to still alert, got %d alerts", result.AlertsSent)
	}
	if len(fetcher.calls) != 2 {
		t.Errorf("expected both targets fetched, got %d calls", len(fetcher.calls))
	}
}

func TestRunCycle_DeliveryFailureDoesNotBlock(t *testing.T) {
	now := time.Now()
	target := config.Target{Owner: "acme", Repo: "widgets"}
	fetcher := &fakeFetcher{
		issues: map[string][]github.Issue{
			"acme/widgets": {
				issueAt(1, "first", now, now),
				issueAt(2, "second", now, now),
			},
		},
	}
	notifier := &fakeNotifier{issueErr: errors.New("webhook unreachable")}

	p := newTestPoller([]config.Target{target}, fetcher, notifier)
	result := p.RunCycle()

	if result.AlertsSent != 2 {
		t.Errorf("expected both alerts attempted, got %d", result.AlertsSent)
	}
	// The failed alert is dropped, not retried: both issues stay seen.
	if !p.seen.HasSeen(1) || !p.seen.HasSeen(2) {
		t.Error("expected issues to be marked seen despite delivery failure")
	}
}

func TestRunCycle_WatermarkIsFetchPhaseStart(t *testing.T) {
	target := config.Target{Owner: "acme", Repo: "widgets"}
	fetcher := &fakeFetcher{}
	notifier := &fakeNotifier{}

	p := newTestPoller([]config.Target{target}, fetcher, notifier)

	initial := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	cycleStart := initial.Add(time.Minute)
	p.lastChecked = initial

	// The clock advances between cycle start and cycle end; the watermark
	// must land on the start, not on any later reading.
	readings := []time.Time{cycleStart, cycleStart.Add(5 * time.Second)}
	p.now = func() time.Time {
		next := readings[0]
		if len(readings) > 1 {
			readings = readings[1:]
		}
		return next
	}

	p.RunCycle()

	if !p.LastChecked().Equal(cycleStart) {
		t.Errorf("expected watermark %v, got %v", cycleStart, p.LastChecked())
	}
	if len(fetcher.calls) != 1 || !fetcher.calls[0].since.Equal(initial) {
		t.Errorf("expected fetch to use the previous watermark %v, got %+v", initial, fetcher.calls)
	}

	// Watermark never moves backwards across cycles.
	p.now = func() time.Time { return cycleStart.Add(time.Hour) }
	p.RunCycle()
	if p.LastChecked().Before(cycleStart) {
		t.Errorf("watermark moved backwards: %v", p.LastChecked())
	}
}

func TestRunCycle_TrackerResetAllowsRealert(t *testing.T) {
	now := time.Now()
	target := config.Target{Owner: "acme", Repo: "widgets"}
	fetcher := &fakeFetcher{
		issues: map[string][]github.Issue{
			"acme/widgets": {
				issueAt(1, "first", now, now),
				issueAt(2, "second", now, now),
				issueAt(3, "third", now, now),
			},
		},
	}
	notifier := &fakeNotifier{}

	p := New([]config.Target{target}, fetcher, notifier, tracker.NewWithThreshold(2), nil)
	p.RunCycle()

	// The third insertion pushed the set past the threshold and cleared it,
	// so the same issues alert again next cycle. Accepted tradeoff.
	if p.seen.Len() != 0 {
		t.Fatalf("expected tracker reset, size is %d", p.seen.Len())
	}

	result := p.RunCycle()
	if result.AlertsSent != 3 {
		t.Errorf("expected re-alerts after reset, got %d", result.AlertsSent)
	}
}

func TestClassify(t *testing.T) {
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		updated time.Time
		want    Reason
	}{
		{name: "updated at creation is brand new", updated: created, want: ReasonBrandNew},
		{name: "updated just under the window is brand new", updated: created.Add(119 * time.Second), want: ReasonBrandNew},
		{name: "updated exactly at the window is updated", updated: created.Add(120 * time.Second), want: ReasonUpdated},
		{name: "labeled ten minutes after creation is updated", updated: created.Add(10 * time.Minute), want: ReasonUpdated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issue := issueAt(1, "x", created, tt.updated)
			if got := Classify(issue); got != tt.want {
				t.Errorf("Classify = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReason_String(t *testing.T) {
	if ReasonBrandNew.String() != "new" || ReasonUpdated.String() != "updated" {
		t.Errorf("unexpected reason strings: %q, %q", ReasonBrandNew, ReasonUpdated)
	}
}
