// Package starred keeps best-effort hints about which repositories the user
// has starred. Hints may be stale; they are refreshed when a token is
// available and the last refresh is older than MaxAge.
package starred

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/FelixSchausberger/trotd/internal/repo"
	"github.com/FelixSchausberger/trotd/internal/statefile"
	"go.uber.org/zap"
)

const DefaultMaxAge = time.Hour

type Record struct {
	Repo      repo.ID   `json:"repo"`
	Starred   bool      `json:"starred"`
	CheckedAt time.Time `json:"checked_at"`
}

// Lister returns every repository the token's owner has starred on one
// provider.
type Lister interface {
	FetchStarred(ctx context.Context, token string) (map[repo.ID]bool, error)
}

type fileState struct {
	RefreshedAt map[string]time.Time `json:"refreshed_at"`
	Records     []Record             `json:"records"`
}

type Cache struct {
	path   string
	maxAge time.Duration
	now    func() time.Time
	logger *zap.Logger
	mu     sync.Mutex
}

type Option func(*Cache)

func WithMaxAge(d time.Duration) Option {
	return func(c *Cache) { c.maxAge = d }
}

func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

func New(path string, opts ...Option) *Cache {
	c := &Cache{path: path, maxAge: DefaultMaxAge, now: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// load never fails: an unreadable file behaves like an empty cache.
func (c *Cache) load() fileState {
	var st fileState
	if _, err := statefile.Read(c.path, &st); err != nil {
		c.logger.Warn("ignoring unreadable starred cache", zap.Error(err))
		return fileState{}
	}
	return st
}

func (st fileState) index() map[repo.ID]Record {
	idx := make(map[repo.ID]Record, len(st.Records))
	for _, r := range st.Records {
		idx[r.Repo] = r
	}
	return idx
}

// Get returns the cached hint for id, if any.
func (c *Cache) Get(id repo.ID) (starred bool, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.load().index()[id]
	return r.Starred, ok
}

// NeedsRefresh reports whether the hints for providerID are missing or older
// than MaxAge.
func (c *Cache) NeedsRefresh(providerID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	at, ok := c.load().RefreshedAt[providerID]
	return !ok || c.now().Sub(at) > c.maxAge
}

// Refresh asks lister for the full starred set of providerID and stores the
// outcome. It returns the hint for every id in ids. Errors are logged and the
// existing hints are returned instead.
func (c *Cache) Refresh(ctx context.Context, providerID string, lister Lister, token string, ids []repo.ID) map[repo.ID]bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.load()
	idx := st.index()

	set, err := lister.FetchStarred(ctx, token)
	if err != nil {
		c.logger.Warn("starred refresh failed, using cached status",
			zap.String("provider", providerID),
			zap.Error(err),
		)
		return lookup(idx, ids)
	}

	now := c.now().UTC()
	// The listing is authoritative for the provider: anything not in it is
	// no longer starred.
	for id, r := range idx {
		if id.Provider == providerID && r.Starred && !set[id] {
			idx[id] = Record{Repo: id, Starred: false, CheckedAt: now}
		}
	}
	for id, v := range set {
		idx[id] = Record{Repo: id, Starred: v, CheckedAt: now}
	}
	for _, id := range ids {
		if _, ok := set[id]; !ok && id.Provider == providerID {
			idx[id] = Record{Repo: id, Starred: false, CheckedAt: now}
		}
	}

	if st.RefreshedAt == nil {
		st.RefreshedAt = make(map[string]time.Time)
	}
	st.RefreshedAt[providerID] = now
	st.Records = st.Records[:0]
	for _, r := range idx {
		st.Records = append(st.Records, r)
	}
	sort.Slice(st.Records, func(i, j int) bool {
		return st.Records[i].Repo.String() < st.Records[j].Repo.String()
	})
	if err := statefile.Write(c.path, st); err != nil {
		c.logger.Warn("failed to save starred cache", zap.Error(err))
	}
	c.logger.Debug("starred status refreshed", zap.String("provider", providerID), zap.Int("starred", len(set)))
	return lookup(idx, ids)
}

func lookup(idx map[repo.ID]Record, ids []repo.ID) map[repo.ID]bool {
	out := make(map[repo.ID]bool, len(ids))
	for _, id := range ids {
		if r, ok := idx[id]; ok {
			out[id] = r.Starred
		}
	}
	return out
}

// MergeInto returns copies of entries annotated with the cached hints.
// Entries without a hint are marked not starred.
func (c *Cache) MergeInto(entries []repo.Entry) []repo.Entry {
	c.mu.Lock()
	idx := c.load().index()
	c.mu.Unlock()

	out := make([]repo.Entry, len(entries))
	for i, e := range entries {
		out[i] = e.WithStarred(idx[e.ID()].Starred)
	}
	return out
}

// Invalidate drops every hint, forcing a refresh on the next run.
func (c *Cache) Invalidate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := statefile.Remove(c.path); err != nil {
		return fmt.Errorf("invalidating starred cache: %w", err)
	}
	return nil
}
