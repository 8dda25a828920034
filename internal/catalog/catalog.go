// Package catalog searches remote indexes for plugin repositories to install.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/samhoang/silk/internal/source"
)

const githubAPIBase = "https://api.github.com"

// DefaultTopic narrows a GitHub search to repositories tagged as skill collections
const DefaultTopic = "claude-skills"

// ErrRateLimited is returned when the index refuses more requests
var ErrRateLimited = errors.New("rate limited")

// Entry is an installable repository found in an index
type Entry struct {
	Ref         source.RepoRef
	Description string
	Stars       int
	Topics      []string
}

// Searcher finds installable repositories
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Entry, error)
}

// GitHub searches repositories through the GitHub REST API
type GitHub struct {
	BaseURL string
	Token   string // optional; raises the rate limit
	Topic   string // empty searches every repository
	Client  *http.Client

	logger *slog.Logger
}

// NewGitHub returns a searcher for api.github.com
func NewGitHub(token string, logger *slog.Logger) *GitHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &GitHub{
		BaseURL: githubAPIBase,
		Token:   token,
		Topic:   DefaultTopic,
		Client:  http.DefaultClient,
		logger:  logger.With("component", "catalog"),
	}
}

// Search returns repositories matching query, most starred first
func (g *GitHub) Search(ctx context.Context, query string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	q := strings.TrimSpace(query)
	if g.Topic != "" {
		q += " topic:" + g.Topic
	}
	u := fmt.Sprintf("%s/search/repositories?q=%s&sort=stars&per_page=%d",
		strings.TrimRight(g.BaseURL, "/"), url.QueryEscape(strings.TrimSpace(q)), limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if g.Token != "" {
		req.Header.Set("Authorization", "Bearer "+g.Token)
	}

	g.logger.Debug("searching", "query", q)
	resp, err := g.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("github search: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0",
		resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("github search: %w (set GITHUB_TOKEN to raise the limit)", ErrRateLimited)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("github search: status %d", resp.StatusCode)
	}

	var result struct {
		Items []struct {
			FullName    string   `json:"full_name"`
			Description string   `json:"description"`
			Stars       int      `json:"stargazers_count"`
			Topics      []string `json:"topics"`
			HTMLURL     string   `json:"html_url"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("github search: decode: %w", err)
	}

	entries := make([]Entry, 0, len(result.Items))
	for _, item := range result.Items {
		ref, err := source.Resolve(item.HTMLURL)
		if err != nil {
			g.logger.Debug("skipping result", "repo", item.FullName, "error", err)
			continue
		}
		entries = append(entries, Entry{
			Ref:         ref,
			Description: item.Description,
			Stars:       item.Stars,
			Topics:      item.Topics,
		})
	}
	return entries, nil
}
