package github

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"issuewatch/internal/config"
)

const defaultBaseURL = "https://api.github.com"

// APIError is a non-2xx response from the issue tracker.
type APIError struct {
	StatusCode int
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github: %s returned HTTP %d", e.URL, e.StatusCode)
}

// IsNotFound reports whether err is a 404 from the tracker, e.g. a target
// that was renamed or deleted.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient returns a client for the issue tracker API. baseURL is empty in
// production; tests point it at a local server.
func NewClient(token, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// ListIssuesSince fetches open issues for the target modified or created
// since the given watermark, with the target's filters flattened into the
// query. The request bypasses intermediate caches so each cycle sees fresh
// data. Results are returned in API order; pull requests are not filtered
// out here.
func (c *Client) ListIssuesSince(target config.Target, since time.Time) ([]Issue, error) {
	q := url.Values{}
	q.Set("state", "open")
	q.Set("since", since.UTC().Format(time.RFC3339))
	for name, value := range target.Filters {
		q.Set(name, value)
	}

	reqURL := fmt.Sprintf("%s/repos/%s/%s/issues?%s", c.baseURL, target.Owner, target.Repo, q.Encode())

	req, err := http.NewRequest(http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building issue request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching issues for %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, URL: reqURL}
	}

	var issues []Issue
	if err := json.NewDecoder(resp.Body).Decode(&issues); err != nil {
		return nil, fmt.Errorf("parsing issue response for %s: %w", target, err)
	}

	return issues, nil
}
