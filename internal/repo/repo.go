// Package repo holds the repository listing types shared by providers,
// the cache store and the trending orchestrator.
package repo

import (
	"fmt"
	"time"
)

// ID identifies a repository within a provider namespace. Matching is
// case-sensitive.
type ID struct {
	Provider string `json:"provider"`
	Owner    string `json:"owner"`
	Name     string `json:"name"`
}

func (id ID) String() string {
	return fmt.Sprintf("%s:%s/%s", id.Provider, id.Owner, id.Name)
}

// FullName returns "owner/name".
func (id ID) FullName() string {
	return id.Owner + "/" + id.Name
}

// Entry is a single trending repository as returned by a provider.
type Entry struct {
	Provider    string `json:"provider"`
	Owner       string `json:"owner"`
	Name        string `json:"name"`
	Language    string `json:"language,omitempty"`
	StarsTotal  int    `json:"stars_total"`
	StarsToday  *int   `json:"stars_today,omitempty"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url"`
	Approximate bool   `json:"approximate"`
	Starred     bool   `json:"starred"`
}

func (e Entry) ID() ID {
	return ID{Provider: e.Provider, Owner: e.Owner, Name: e.Name}
}

func (e Entry) FullName() string {
	return e.Owner + "/" + e.Name
}

// WithStarred returns a copy of e with the starred annotation set.
func (e Entry) WithStarred(starred bool) Entry {
	e.Starred = starred
	if e.StarsToday != nil {
		v := *e.StarsToday
		e.StarsToday = &v
	}
	return e
}

// Query is the fully resolved configuration handed to a provider.
type Query struct {
	BaseURL       string
	Languages     []string
	MinStars      int
	ExcludeTopics []string
	MaxResults    int
	// Offset skips that many entries from the head of the provider's list.
	Offset int
	Token  string
	// Timeout is the budget the provider may spend, retries included.
	Timeout time.Duration
}

// Clone returns a deep copy of the entries so callers can hand them out
// without sharing backing arrays.
func Clone(entries []Entry) []Entry {
	if entries == nil {
		return nil
	}
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = e.WithStarred(e.Starred)
	}
	return out
}

// IntPtr is a small helper for optional counters.
func IntPtr(v int) *int {
	return &v
}
