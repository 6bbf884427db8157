package starred

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/FelixSchausberger/trotd/internal/repo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeLister struct {
	set   map[repo.ID]bool
	err   error
	calls int
	token string
}

func (f *fakeLister) FetchStarred(_ context.Context, token string) (map[repo.ID]bool, error) {
	f.calls++
	f.token = token
	return f.set, f.err
}

func gh(owner, name string) repo.ID {
	return repo.ID{Provider: "github", Owner: owner, Name: name}
}

func TestRefreshStoresHints(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	c := New(filepath.Join(t.TempDir(), "starred.json"), WithClock(func() time.Time { return now }))
	lister := &fakeLister{set: map[repo.ID]bool{gh("x", "y"): true, gh("other", "repo"): true}}

	got := c.Refresh(context.Background(), "github", lister, "tok", []repo.ID{gh("x", "y"), gh("p", "q")})
	assert.Equal(t, map[repo.ID]bool{gh("x", "y"): true, gh("p", "q"): false}, got)
	assert.Equal(t, "tok", lister.token)

	v, ok := c.Get(gh("other", "repo"))
	assert.True(t, ok)
	assert.True(t, v)

	v, ok = c.Get(gh("p", "q"))
	assert.True(t, ok)
	assert.False(t, v)

	_, ok = c.Get(gh("never", "seen"))
	assert.False(t, ok)
}

func TestRefreshFailureKeepsCachedHints(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	c := New(filepath.Join(t.TempDir(), "starred.json"),
		WithClock(func() time.Time { return now }),
		WithLogger(zap.New(core)),
	)

	c.Refresh(context.Background(), "github", &fakeLister{set: map[repo.ID]bool{gh("x", "y"): true}}, "tok", nil)

	got := c.Refresh(context.Background(), "github", &fakeLister{err: errors.New("rate limited")}, "tok", []repo.ID{gh("x", "y"), gh("p", "q")})
	assert.Equal(t, map[repo.ID]bool{gh("x", "y"): true}, got)
	assert.Equal(t, 1, logs.FilterMessage("starred refresh failed, using cached status").Len())
}

func TestRefreshDropsUnstarred(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "starred.json"))

	c.Refresh(context.Background(), "github", &fakeLister{set: map[repo.ID]bool{gh("x", "y"): true}}, "tok", nil)
	c.Refresh(context.Background(), "github", &fakeLister{set: map[repo.ID]bool{}}, "tok", nil)

	v, ok := c.Get(gh("x", "y"))
	assert.True(t, ok)
	assert.False(t, v)
}

func TestNeedsRefresh(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	c := New(filepath.Join(t.TempDir(), "starred.json"), WithClock(func() time.Time { return now }))

	assert.True(t, c.NeedsRefresh("github"))

	c.Refresh(context.Background(), "github", &fakeLister{set: map[repo.ID]bool{}}, "tok", nil)
	assert.False(t, c.NeedsRefresh("github"))
	assert.True(t, c.NeedsRefresh("gitlab"))

	now = now.Add(DefaultMaxAge + time.Minute)
	assert.True(t, c.NeedsRefresh("github"))
}

func TestMergeInto(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "starred.json"))
	c.Refresh(context.Background(), "github", &fakeLister{set: map[repo.ID]bool{gh("x", "y"): true}}, "tok", nil)

	in := []repo.Entry{
		{Provider: "github", Owner: "x", Name: "y"},
		{Provider: "github", Owner: "p", Name: "q", Starred: true},
		{Provider: "gitlab", Owner: "x", Name: "y"},
	}
	out := c.MergeInto(in)
	require.Len(t, out, 3)
	assert.True(t, out[0].Starred)
	assert.False(t, out[1].Starred, "no hint means not starred")
	assert.False(t, out[2].Starred, "providers are separate namespaces")
	assert.False(t, in[0].Starred, "input is not mutated")
}

func TestInvalidate(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "starred.json"))
	c.Refresh(context.Background(), "github", &fakeLister{set: map[repo.ID]bool{gh("x", "y"): true}}, "tok", nil)

	require.NoError(t, c.Invalidate())
	_, ok := c.Get(gh("x", "y"))
	assert.False(t, ok)
	assert.True(t, c.NeedsRefresh("github"))
	require.NoError(t, c.Invalidate())
}
