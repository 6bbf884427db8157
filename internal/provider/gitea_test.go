package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/FelixSchausberger/trotd/internal/repo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const giteaFixture = `{
  "ok": true,
  "data": [
    {
      "name": "gitea",
      "full_name": "gitea/gitea",
      "owner": {"login": "gitea"},
      "language": "Go",
      "stars_count": 4200,
      "description": "Git with a cup of tea",
      "html_url": "https://gitea.com/gitea/gitea",
      "topics": ["git", "forge"]
    },
    {
      "full_name": "someone/tea",
      "language": "Rust",
      "stars_count": 30,
      "description": "",
      "html_url": "https://gitea.com/someone/tea"
    },
    {
      "name": "act",
      "owner": {"login": "gitea"},
      "language": "",
      "stars_count": 900,
      "html_url": "https://gitea.com/gitea/act"
    }
  ]
}`

func TestGiteaFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/repos/search", r.URL.Path)
		assert.Equal(t, "stars", r.URL.Query().Get("sort"))
		assert.Equal(t, "token abc", r.Header.Get("Authorization"))
		w.Write([]byte(giteaFixture))
	}))
	defer srv.Close()

	g := &Gitea{client: testClient()}
	entries, err := g.Fetch(context.Background(), repo.Query{BaseURL: srv.URL, Token: "abc"})
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "gitea", entries[0].Provider)
	assert.Equal(t, "gitea/gitea", entries[0].FullName())
	assert.Equal(t, "Go", entries[0].Language)
	assert.Equal(t, 4200, entries[0].StarsTotal)
	assert.True(t, entries[0].Approximate)
	assert.Equal(t, "someone/tea", entries[1].FullName(), "falls back to full_name")
}

func TestGiteaFetchFilters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(giteaFixture))
	}))
	defer srv.Close()

	g := &Gitea{client: testClient()}

	entries, err := g.Fetch(context.Background(), repo.Query{BaseURL: srv.URL, Languages: []string{"go"}})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "gitea", entries[0].Name)
	assert.Equal(t, "act", entries[1].Name)

	entries, err = g.Fetch(context.Background(), repo.Query{BaseURL: srv.URL, ExcludeTopics: []string{"forge"}, MaxResults: 1})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "tea", entries[0].Name)
}

func TestGiteaFetchMissingData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok": false}`))
	}))
	defer srv.Close()

	g := &Gitea{client: testClient()}
	_, err := g.Fetch(context.Background(), repo.Query{BaseURL: srv.URL})
	assert.Equal(t, ErrParseFailure, KindOf(err))
}
