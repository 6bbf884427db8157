// Package seen remembers which repositories were already shown during the
// current UTC day, plus how far into the trending lists the user has paged.
// A record for any other day is discarded on first access.
package seen

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/FelixSchausberger/trotd/internal/repo"
	"github.com/FelixSchausberger/trotd/internal/statefile"
	"go.uber.org/zap"
)

const dayLayout = "2006-01-02"

// Record is the ledger for one day.
type Record struct {
	Day         string
	Repos       map[repo.ID]struct{}
	FetchOffset int
}

func (r Record) Contains(id repo.ID) bool {
	_, ok := r.Repos[id]
	return ok
}

func (r Record) Len() int {
	return len(r.Repos)
}

// fileRecord is the on-disk form.
type fileRecord struct {
	Day         string    `json:"date"`
	Repos       []repo.ID `json:"seen_repos"`
	FetchOffset int       `json:"fetch_offset"`
}

// Tracker persists the ledger in a single JSON file. Every operation reads
// the file first, so separate processes observe each other's marks.
type Tracker struct {
	path   string
	now    func() time.Time
	logger *zap.Logger
	mu     sync.Mutex
}

type Option func(*Tracker)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

func New(path string, opts ...Option) *Tracker {
	t := &Tracker{path: path, now: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tracker) Path() string {
	return t.path
}

func (t *Tracker) today() string {
	return t.now().UTC().Format(dayLayout)
}

// Load returns today's record. A stored record from another day is replaced
// on disk by an empty one.
func (t *Tracker) Load() (Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.load()
}

func (t *Tracker) load() (Record, error) {
	today := t.today()
	empty := Record{Day: today, Repos: map[repo.ID]struct{}{}}

	var fr fileRecord
	ok, err := statefile.Read(t.path, &fr)
	if errors.Is(err, statefile.ErrCorrupt) {
		t.logger.Warn("discarding unreadable seen record", zap.Error(err))
		if err := t.save(empty); err != nil {
			t.logger.Warn("failed to persist seen reset", zap.Error(err))
		}
		return empty, nil
	}
	if err != nil {
		return empty, fmt.Errorf("loading seen record: %w", err)
	}
	if !ok {
		return empty, nil
	}
	if fr.Day != today {
		t.logger.Debug("seen record reset", zap.String("stored_day", fr.Day), zap.String("today", today))
		if err := t.save(empty); err != nil {
			t.logger.Warn("failed to persist seen reset", zap.Error(err))
		}
		return empty, nil
	}

	rec := Record{Day: fr.Day, Repos: make(map[repo.ID]struct{}, len(fr.Repos)), FetchOffset: fr.FetchOffset}
	for _, id := range fr.Repos {
		rec.Repos[id] = struct{}{}
	}
	return rec, nil
}

func (t *Tracker) save(rec Record) error {
	fr := fileRecord{Day: rec.Day, Repos: make([]repo.ID, 0, len(rec.Repos)), FetchOffset: rec.FetchOffset}
	for id := range rec.Repos {
		fr.Repos = append(fr.Repos, id)
	}
	sort.Slice(fr.Repos, func(i, j int) bool { return fr.Repos[i].String() < fr.Repos[j].String() })
	if err := statefile.Write(t.path, fr); err != nil {
		return fmt.Errorf("saving seen record: %w", err)
	}
	return nil
}

// Filter drops entries already shown today, preserving order. On a load
// error the entries are returned unfiltered together with the error.
func (t *Tracker) Filter(entries []repo.Entry) ([]repo.Entry, error) {
	rec, err := t.Load()
	if err != nil {
		return entries, err
	}
	out := make([]repo.Entry, 0, len(entries))
	for _, e := range entries {
		if !rec.Contains(e.ID()) {
			out = append(out, e)
		}
	}
	return out, nil
}

// MarkShown adds the entries to today's record.
func (t *Tracker) MarkShown(entries []repo.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, err := t.load()
	if err != nil {
		return err
	}
	for _, e := range entries {
		rec.Repos[e.ID()] = struct{}{}
	}
	return t.save(rec)
}

// FetchOffset is how many entries of each provider list were already
// consumed today.
func (t *Tracker) FetchOffset() (int, error) {
	rec, err := t.Load()
	if err != nil {
		return 0, err
	}
	return rec.FetchOffset, nil
}

// AdvanceOffset moves today's offset forward by n.
func (t *Tracker) AdvanceOffset(n int) error {
	if n <= 0 {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, err := t.load()
	if err != nil {
		return err
	}
	rec.FetchOffset += n
	return t.save(rec)
}

// Clear forgets everything, including the offset.
func (t *Tracker) Clear() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return statefile.Remove(t.path)
}
