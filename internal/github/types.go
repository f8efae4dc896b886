package github

import "time"

// Issue is the subset of the REST issue object the monitor cares about.
// Pull requests come back from the issues endpoint too; they carry a
// pull_request stub that we use to tell them apart.
type Issue struct {
	ID          int64            `json:"id"`
	Number      int              `json:"number"`
	Title       string           `json:"title"`
	HTMLURL     string           `json:"html_url"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	Labels      []Label          `json:"labels"`
	PullRequest *PullRequestLink `json:"pull_request,omitempty"`
}

func (i *Issue) IsPullRequest() bool {
	return i.PullRequest != nil
}

func (i *Issue) LabelNames() []string {
	names := make([]string, 0, len(i.Labels))
	for _, l := range i.Labels {
		names = append(names, l.Name)
	}
	return names
}

type Label struct {
	Name string `json:"name"`
}

type PullRequestLink struct {
	URL string `json:"url"`
}
