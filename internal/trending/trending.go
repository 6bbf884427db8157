// Package trending runs every configured provider concurrently and turns
// their answers, or the cache standing in for them, into one list.
package trending

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/FelixSchausberger/trotd/internal/cache"
	"github.com/FelixSchausberger/trotd/internal/provider"
	"github.com/FelixSchausberger/trotd/internal/repo"
	"github.com/FelixSchausberger/trotd/internal/starred"
	"go.uber.org/zap"
)

const (
	DefaultGlobalTimeout   = 45 * time.Second
	DefaultProviderTimeout = 30 * time.Second
	DefaultSlowWarn        = 10 * time.Second
	DefaultCacheTTL        = time.Hour
)

// CacheStore is the subset of *cache.Cache the engine needs.
type CacheStore interface {
	GetFresh(ctx context.Context, fingerprint string) (*cache.Record, error)
	GetStale(ctx context.Context, fingerprint string) (*cache.Record, error)
	Put(ctx context.Context, rec cache.Record) error
}

// SeenStore is the subset of *seen.Tracker the engine needs.
type SeenStore interface {
	Filter(entries []repo.Entry) ([]repo.Entry, error)
	MarkShown(entries []repo.Entry) error
	FetchOffset() (int, error)
	AdvanceOffset(n int) error
}

// StarredStore is the subset of *starred.Cache the engine needs.
type StarredStore interface {
	NeedsRefresh(providerID string) bool
	Refresh(ctx context.Context, providerID string, lister starred.Lister, token string, ids []repo.ID) map[repo.ID]bool
	MergeInto(entries []repo.Entry) []repo.Entry
}

type Options struct {
	// GlobalTimeout bounds the whole run.
	GlobalTimeout time.Duration
	// ProviderTimeout bounds each provider, retries included.
	ProviderTimeout time.Duration
	// SlowWarn logs a notice for providers still running after this long.
	SlowWarn time.Duration
	CacheTTL time.Duration

	// ShowAll skips the seen filter and the daily offset.
	ShowAll bool
	// MarkSeenOnShowAll records ShowAll output as seen anyway.
	MarkSeenOnShowAll bool
	// NoCache bypasses the cache store for reads and writes.
	NoCache bool
	// CacheFirst serves a fresh cache record without a network call. It
	// only applies while the query starts at the top of the list.
	CacheFirst bool

	Starred      bool
	StarredToken string

	MinStars  int
	ASCIIOnly bool
}

func (o *Options) setDefaults() {
	if o.GlobalTimeout <= 0 {
		o.GlobalTimeout = DefaultGlobalTimeout
	}
	if o.ProviderTimeout <= 0 {
		o.ProviderTimeout = DefaultProviderTimeout
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = DefaultCacheTTL
	}
}

// Engine owns the providers and the state stores of a run. Any store may
// be nil, which disables the matching stage.
type Engine struct {
	providers map[string]provider.Provider
	cache     CacheStore
	seen      SeenStore
	starred   StarredStore
	logger    *zap.Logger
	now       func() time.Time
}

type Option func(*Engine)

func WithCache(c CacheStore) Option {
	return func(e *Engine) { e.cache = c }
}

func WithSeen(s SeenStore) Option {
	return func(e *Engine) { e.seen = s }
}

func WithStarred(s StarredStore) Option {
	return func(e *Engine) { e.starred = s }
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(providers []provider.Provider, opts ...Option) *Engine {
	e := &Engine{
		providers: make(map[string]provider.Provider, len(providers)),
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, p := range providers {
		e.providers[p.ID()] = p
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run queries every provider in queries and merges the outcome. It never
// fails: provider and storage errors end up in the Result.
func (e *Engine) Run(ctx context.Context, queries map[string]repo.Query, opts Options) Result {
	opts.setDefaults()
	ctx, cancel := context.WithTimeout(ctx, opts.GlobalTimeout)
	defer cancel()

	var res Result
	filtering := e.seen != nil && !opts.ShowAll
	if filtering {
		off, err := e.seen.FetchOffset()
		if err != nil {
			e.logger.Warn("seen record unavailable, starting from the top", zap.Error(err))
		}
		res.Offset = off
	}

	ids := make([]string, 0, len(queries))
	for id := range queries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	results := make(chan ProviderResult, len(ids))
	for _, id := range ids {
		q := queries[id]
		q.Offset += res.Offset
		p, ok := e.providers[id]
		if !ok {
			results <- ProviderResult{Provider: id, Outcome: OutcomeEmpty, Err: fmt.Errorf("provider %q is not registered", id)}
			continue
		}
		go func() {
			results <- e.fetchOne(ctx, p, q, opts)
		}()
	}

	byID := make(map[string]ProviderResult, len(ids))
collect:
	for len(byID) < len(ids) {
		select {
		case r := <-results:
			byID[r.Provider] = r
		case <-ctx.Done():
			break collect
		}
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			e.logger.Warn("provider abandoned at global timeout", zap.String("provider", id))
			byID[id] = ProviderResult{
				Provider: id,
				Outcome:  OutcomeEmpty,
				Err:      provider.NewTimeoutError(id, ctx.Err()),
			}
		}
	}

	var merged []repo.Entry
	for _, id := range ids {
		r := byID[id]
		res.Providers = append(res.Providers, r)
		if r.Outcome != OutcomeSuccess {
			res.Degraded = true
		}
		merged = append(merged, r.Entries...)
	}

	merged = filterMinStars(merged, opts.MinStars)
	if opts.ASCIIOnly {
		merged = filterASCII(merged)
	}

	if filtering {
		before := len(merged)
		filtered, err := e.seen.Filter(merged)
		if err != nil {
			e.logger.Warn("seen filter skipped", zap.Error(err))
		}
		if skipped := before - len(filtered); skipped > 0 {
			e.logger.Debug("skipped repositories shown earlier today", zap.Int("count", skipped))
		}
		res.AllFiltered = before > 0 && len(filtered) == 0
		merged = filtered
	}

	if opts.Starred && e.starred != nil {
		merged, res.StarredErr = e.annotateStarred(ctx, merged, opts)
	}

	if e.seen != nil && len(merged) > 0 && (filtering || opts.MarkSeenOnShowAll) {
		if err := e.seen.MarkShown(merged); err != nil {
			e.logger.Warn("failed to record seen repositories", zap.Error(err))
		}
		if filtering {
			if err := e.seen.AdvanceOffset(len(merged)); err != nil {
				e.logger.Warn("failed to advance fetch offset", zap.Error(err))
			}
		}
	}

	if merged == nil {
		merged = []repo.Entry{}
	}
	res.Entries = merged
	return res
}

type fetched struct {
	entries []repo.Entry
	err     error
}

func (e *Engine) fetchOne(ctx context.Context, p provider.Provider, q repo.Query, opts Options) ProviderResult {
	id := p.ID()
	log := e.logger.With(zap.String("provider", id))
	start := time.Now()
	fp := repo.Fingerprint(id, q)
	useCache := e.cache != nil && !opts.NoCache

	// a cached page only answers the same position in the list
	if useCache && opts.CacheFirst && q.Offset == 0 {
		rec, err := e.cache.GetFresh(ctx, fp)
		if err != nil {
			log.Warn("cache unavailable", zap.Error(provider.NewCacheError(err)))
		}
		if rec != nil {
			log.Debug("served from fresh cache", zap.Duration("age", rec.Age(e.now())))
			return ProviderResult{
				Provider:  id,
				Outcome:   OutcomeSuccess,
				Entries:   repo.Clone(rec.Entries),
				FromCache: true,
				Age:       rec.Age(e.now()),
				Elapsed:   time.Since(start),
			}
		}
	}

	if q.Timeout <= 0 || q.Timeout > opts.ProviderTimeout {
		q.Timeout = opts.ProviderTimeout
	}
	pctx, cancel := context.WithTimeout(ctx, opts.ProviderTimeout)
	defer cancel()

	done := make(chan fetched, 1)
	go func() {
		entries, err := p.Fetch(pctx, q)
		done <- fetched{entries: entries, err: err}
	}()

	var slow <-chan time.Time
	if opts.SlowWarn > 0 && opts.SlowWarn < opts.ProviderTimeout {
		t := time.NewTimer(opts.SlowWarn)
		defer t.Stop()
		slow = t.C
	}

	var f fetched
wait:
	for {
		select {
		case f = <-done:
			break wait
		case <-slow:
			log.Warn("provider is slow, still waiting", zap.Duration("elapsed", time.Since(start)))
			slow = nil
		case <-pctx.Done():
			f.err = provider.NewTimeoutError(id, pctx.Err())
			break wait
		}
	}

	if f.err == nil {
		entries := make([]repo.Entry, len(f.entries))
		for i, en := range f.entries {
			en.Provider = id
			en.Approximate = p.Approximate()
			entries[i] = en
		}
		// Only the top of the list is cached: a later page must neither pose
		// as the top for cache-first reads nor replace the fallback with a
		// short or empty tail.
		if useCache && q.Offset == 0 && ctx.Err() == nil {
			rec := cache.Record{Fingerprint: fp, Provider: id, FetchedAt: e.now(), TTL: opts.CacheTTL, Entries: entries}
			if err := e.cache.Put(ctx, rec); err != nil {
				log.Warn("cache write failed", zap.Error(provider.NewCacheError(err)))
			}
		}
		log.Debug("fetched", zap.Int("entries", len(entries)), zap.Duration("elapsed", time.Since(start)))
		return ProviderResult{Provider: id, Outcome: OutcomeSuccess, Entries: entries, Elapsed: time.Since(start)}
	}

	err := f.err
	if errors.Is(pctx.Err(), context.DeadlineExceeded) && provider.KindOf(err) != provider.ErrTimeout {
		err = provider.NewTimeoutError(id, err)
	}
	log.Warn("fetch failed", zap.String("reason", string(provider.KindOf(err))), zap.Error(err))

	if useCache {
		rec, cerr := e.cache.GetStale(ctx, fp)
		if cerr != nil {
			log.Warn("cache unavailable", zap.Error(provider.NewCacheError(cerr)))
		}
		if rec != nil {
			age := rec.Age(e.now())
			log.Info("falling back to cached results", zap.Duration("age", age))
			return ProviderResult{
				Provider: id,
				Outcome:  OutcomeStale,
				Entries:  repo.Clone(rec.Entries),
				Age:      age,
				Err:      err,
				Elapsed:  time.Since(start),
			}
		}
	}
	return ProviderResult{Provider: id, Outcome: OutcomeEmpty, Err: err, Elapsed: time.Since(start)}
}

// annotateStarred refreshes hints for providers that can list stars and
// merges them into entries. A missing token is reported, not fatal.
func (e *Engine) annotateStarred(ctx context.Context, entries []repo.Entry, opts Options) ([]repo.Entry, error) {
	var starredErr error
	byProvider := make(map[string][]repo.ID)
	for _, en := range entries {
		byProvider[en.Provider] = append(byProvider[en.Provider], en.ID())
	}

	for pid, ids := range byProvider {
		lister, ok := e.providers[pid].(provider.StarLister)
		if !ok {
			continue
		}
		if opts.StarredToken == "" {
			starredErr = provider.NewAuthRequiredError(pid, "starred status")
			continue
		}
		if !e.starred.NeedsRefresh(pid) {
			continue
		}
		rctx, cancel := context.WithTimeout(ctx, opts.ProviderTimeout)
		e.starred.Refresh(rctx, pid, lister, opts.StarredToken, ids)
		cancel()
	}
	return e.starred.MergeInto(entries), starredErr
}
