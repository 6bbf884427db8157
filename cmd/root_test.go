package cmd

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/FelixSchausberger/trotd/internal/cache"
	"github.com/FelixSchausberger/trotd/internal/repo"
	"github.com/FelixSchausberger/trotd/internal/seen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAge(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
		err   bool
	}{
		{"7d", 7 * 24 * time.Hour, false},
		{"1d", 24 * time.Hour, false},
		{"24h", 24 * time.Hour, false},
		{"30m", 30 * time.Minute, false},
		{"2h30m", 2*time.Hour + 30*time.Minute, false},
		{"invalid", 0, true},
		{"", 0, true},
		{"d", 0, true},
	}

	for _, tt := range tests {
		got, err := parseAge(tt.input)
		if tt.err {
			assert.Error(t, err, tt.input)
			continue
		}
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, got, tt.input)
	}
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "30d", formatDuration(30*24*time.Hour))
	assert.Equal(t, "5h", formatDuration(5*time.Hour+10*time.Minute))
	assert.Equal(t, "12m", formatDuration(12*time.Minute))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "2.0 KB", formatBytes(2048))
	assert.Equal(t, "1.5 MB", formatBytes(3<<19))
}

func TestPrintStats(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	st := cache.Stats{
		Records:   3,
		Providers: map[string]int{"gitlab": 1, "github": 2},
		Size:      4096,
		LastRun:   now.Add(-2 * time.Hour),
	}
	rec := seen.Record{
		Day:         "2025-03-10",
		Repos:       map[repo.ID]struct{}{{Provider: "github", Owner: "a", Name: "b"}: {}},
		FetchOffset: 3,
	}

	var buf bytes.Buffer
	printStats(&buf, "/tmp/cache.db", st, rec, time.Hour, false, now)
	out := buf.String()

	assert.Contains(t, out, "Cache: /tmp/cache.db")
	assert.Contains(t, out, "Records: 3")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("github")), bytes.Index(buf.Bytes(), []byte("gitlab")))
	assert.Contains(t, out, "Size: 4.0 KB")
	assert.Contains(t, out, "Last run: 2h ago")
	assert.Contains(t, out, "Refresh due: no (cache ttl 1h)")
	assert.Contains(t, out, "Seen today (2025-03-10): 1, offset 3")
}

func TestPrintStatsNeverRun(t *testing.T) {
	var buf bytes.Buffer
	printStats(&buf, "cache.db", cache.Stats{}, seen.Record{Day: "2025-03-10"}, time.Hour, true, time.Now())
	assert.Contains(t, buf.String(), "Last run: never")
	assert.Contains(t, buf.String(), "Refresh due: yes")
}

func TestPrintStatsRefreshFollowsLastRun(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.db")
	db, err := cache.Open(dbPath)
	require.NoError(t, err)
	defer db.Close()

	stats := func() string {
		st, err := db.Stats(dbPath)
		require.NoError(t, err)
		var buf bytes.Buffer
		printStats(&buf, dbPath, st, seen.Record{Day: "2025-03-10"}, time.Hour, db.NeedsRefresh(time.Hour), time.Now())
		return buf.String()
	}

	assert.Contains(t, stats(), "Refresh due: yes")
	require.NoError(t, db.SetLastRun())
	assert.Contains(t, stats(), "Refresh due: no")
}

func TestCloneRejectsInvalidTarget(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"clone", "not-a-repo"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected owner/repo")
}

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"version", "cache", "star", "clone", "open"} {
		c, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, c.Name())
	}
	for _, flag := range []string{"max", "provider", "lang", "min-stars", "exclude-topics", "no-cache", "refresh", "show-all", "json", "starred"} {
		assert.NotNil(t, rootCmd.Flags().Lookup(flag), flag)
	}
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("verbose"))
}
