package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samhoang/silk/internal/source"
)

const searchResponse = `{
  "total_count": 3,
  "items": [
    {"full_name": "acme/kit", "description": "Review and debug skills", "stargazers_count": 120,
     "topics": ["claude-skills"], "html_url": "https://github.com/acme/kit"},
    {"full_name": "zed/tools", "description": "", "stargazers_count": 4,
     "topics": [], "html_url": "https://github.com/zed/tools"},
    {"full_name": "bad/name", "html_url": "not a url"}
  ]
}`

func newServer(t *testing.T, handler http.HandlerFunc) *GitHub {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	g := NewGitHub("", nil)
	g.BaseURL = srv.URL
	g.Client = srv.Client()
	return g
}

func TestGitHubSearch(t *testing.T) {
	var gotQuery, gotAuth string
	g := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/repositories", r.URL.Path)
		gotQuery = r.URL.Query().Get("q")
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "5", r.URL.Query().Get("per_page"))
		w.Write([]byte(searchResponse))
	})
	g.Token = "secret"

	entries, err := g.Search(context.Background(), " review ", 5)
	require.NoError(t, err)

	assert.Equal(t, "review topic:claude-skills", gotQuery)
	assert.Equal(t, "Bearer secret", gotAuth)
	require.Len(t, entries, 2, "unparseable results are skipped")
	assert.Equal(t, source.RepoRef{Host: "github.com", Owner: "acme", Repo: "kit"}, entries[0].Ref)
	assert.Equal(t, 120, entries[0].Stars)
	assert.Equal(t, "Review and debug skills", entries[0].Description)
	assert.Equal(t, "zed", entries[1].Ref.Owner)
}

func TestGitHubSearchWithoutTopic(t *testing.T) {
	var gotQuery string
	g := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.Equal(t, "20", r.URL.Query().Get("per_page"))
		w.Write([]byte(`{"items": []}`))
	})
	g.Topic = ""

	entries, err := g.Search(context.Background(), "lint", 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, "lint", gotQuery)
}

func TestGitHubSearchRateLimited(t *testing.T) {
	g := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := g.Search(context.Background(), "x", 10)
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestGitHubSearchErrors(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		g := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		_, err := g.Search(context.Background(), "x", 10)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrRateLimited)
		assert.Contains(t, err.Error(), "500")
	})

	t.Run("decode", func(t *testing.T) {
		g := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("{"))
		})
		_, err := g.Search(context.Background(), "x", 10)
		assert.ErrorContains(t, err, "decode")
	})

	t.Run("canceled", func(t *testing.T) {
		g := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"items": []}`))
		})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := g.Search(ctx, "x", 10)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
