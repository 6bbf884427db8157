package cache

import (
	"time"

	"github.com/FelixSchausberger/trotd/internal/repo"
)

// Record is the cached result of one provider query.
type Record struct {
	Fingerprint string
	Provider    string
	FetchedAt   time.Time
	TTL         time.Duration
	Entries     []repo.Entry
}

// Fresh reports whether the record is still within its TTL at now.
func (r *Record) Fresh(now time.Time) bool {
	return now.Before(r.FetchedAt.Add(r.TTL))
}

// Age is how long ago the record was fetched.
func (r *Record) Age(now time.Time) time.Duration {
	d := now.Sub(r.FetchedAt)
	if d < 0 {
		return 0
	}
	return d
}

type Stats struct {
	Records   int
	Providers map[string]int
	Size      int64
	LastRun   time.Time
}
