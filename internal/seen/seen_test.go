package seen

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/FelixSchausberger/trotd/internal/repo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTracker(t *testing.T, c *clock) *Tracker {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "seen.json"), WithClock(c.now))
}

func entry(owner, name string) repo.Entry {
	return repo.Entry{Provider: "github", Owner: owner, Name: name}
}

func TestLoadWithoutFile(t *testing.T) {
	c := &clock{time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)}
	tr := newTracker(t, c)

	rec, err := tr.Load()
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10", rec.Day)
	assert.Zero(t, rec.Len())
	assert.Zero(t, rec.FetchOffset)
}

func TestFilterDropsSeenEntries(t *testing.T) {
	c := &clock{time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)}
	tr := newTracker(t, c)

	require.NoError(t, tr.MarkShown([]repo.Entry{entry("x", "y")}))

	got, err := tr.Filter([]repo.Entry{entry("x", "y"), entry("p", "q")})
	require.NoError(t, err)
	assert.Equal(t, []repo.Entry{entry("p", "q")}, got)
}

func TestIdentityIsExactAndPerProvider(t *testing.T) {
	c := &clock{time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)}
	tr := newTracker(t, c)

	require.NoError(t, tr.MarkShown([]repo.Entry{entry("x", "y")}))

	other := repo.Entry{Provider: "gitlab", Owner: "x", Name: "y"}
	upper := entry("X", "y")
	got, err := tr.Filter([]repo.Entry{other, upper})
	require.NoError(t, err)
	assert.Equal(t, []repo.Entry{other, upper}, got)
}

func TestDayRolloverResets(t *testing.T) {
	c := &clock{time.Date(2025, 3, 10, 23, 59, 0, 0, time.UTC)}
	tr := newTracker(t, c)

	require.NoError(t, tr.MarkShown([]repo.Entry{entry("x", "y")}))
	require.NoError(t, tr.AdvanceOffset(5))

	c.t = time.Date(2025, 3, 11, 0, 1, 0, 0, time.UTC)

	rec, err := tr.Load()
	require.NoError(t, err)
	assert.Equal(t, "2025-03-11", rec.Day)
	assert.False(t, rec.Contains(entry("x", "y").ID()))
	assert.Zero(t, rec.FetchOffset)

	got, err := tr.Filter([]repo.Entry{entry("x", "y")})
	require.NoError(t, err)
	assert.Len(t, got, 1, "yesterday's marks no longer filter")
}

func TestDayUsesUTC(t *testing.T) {
	// 23:30 in UTC-5 is already the next day in UTC.
	loc := time.FixedZone("EST", -5*60*60)
	c := &clock{time.Date(2025, 3, 10, 23, 30, 0, 0, loc)}
	tr := newTracker(t, c)

	rec, err := tr.Load()
	require.NoError(t, err)
	assert.Equal(t, "2025-03-11", rec.Day)
}

func TestMarkShownAccumulates(t *testing.T) {
	c := &clock{time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)}
	tr := newTracker(t, c)

	require.NoError(t, tr.MarkShown([]repo.Entry{entry("a", "1")}))
	require.NoError(t, tr.MarkShown([]repo.Entry{entry("b", "2"), entry("a", "1")}))

	// A second tracker on the same file sees both marks.
	other := New(tr.Path(), WithClock(c.now))
	rec, err := other.Load()
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Len())
}

func TestOffsetSurvivesMarks(t *testing.T) {
	c := &clock{time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)}
	tr := newTracker(t, c)

	require.NoError(t, tr.AdvanceOffset(3))
	require.NoError(t, tr.MarkShown([]repo.Entry{entry("a", "1")}))
	require.NoError(t, tr.AdvanceOffset(2))
	require.NoError(t, tr.AdvanceOffset(0))

	off, err := tr.FetchOffset()
	require.NoError(t, err)
	assert.Equal(t, 5, off)
}

func TestCorruptFileIsReset(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	c := &clock{time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)}
	path := filepath.Join(t.TempDir(), "seen.json")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))

	tr := New(path, WithClock(c.now), WithLogger(zap.New(core)))
	rec, err := tr.Load()
	require.NoError(t, err)
	assert.Zero(t, rec.Len())
	assert.Equal(t, 1, logs.FilterMessage("discarding unreadable seen record").Len())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"date": "2025-03-10"`, "fresh record written in place of the corrupt one")

	rec, err = tr.Load()
	require.NoError(t, err)
	assert.Zero(t, rec.Len())
	assert.Equal(t, 1, logs.FilterMessage("discarding unreadable seen record").Len(), "second load reads the rewritten file")

	require.NoError(t, tr.MarkShown([]repo.Entry{entry("x", "y")}))
	rec, err = tr.Load()
	require.NoError(t, err)
	assert.True(t, rec.Contains(entry("x", "y").ID()))
}

func TestUnreadableFileDegradesFilter(t *testing.T) {
	c := &clock{time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)}
	dir := t.TempDir()
	// A directory where the file should be makes reads fail.
	path := filepath.Join(dir, "seen.json")
	require.NoError(t, os.Mkdir(path, 0o755))

	tr := New(path, WithClock(c.now))
	in := []repo.Entry{entry("x", "y")}
	got, err := tr.Filter(in)
	assert.Error(t, err)
	assert.Equal(t, in, got)
}

func TestClear(t *testing.T) {
	c := &clock{time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)}
	tr := newTracker(t, c)

	require.NoError(t, tr.MarkShown([]repo.Entry{entry("x", "y")}))
	require.NoError(t, tr.Clear())
	require.NoError(t, tr.Clear())

	rec, err := tr.Load()
	require.NoError(t, err)
	assert.Zero(t, rec.Len())
}
