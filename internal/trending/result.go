package trending

import (
	"fmt"
	"time"

	"github.com/FelixSchausberger/trotd/internal/provider"
	"github.com/FelixSchausberger/trotd/internal/repo"
)

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeStale   Outcome = "stale"
	OutcomeEmpty   Outcome = "empty"
)

// ProviderResult is the terminal state of one provider within a run.
type ProviderResult struct {
	Provider string
	Outcome  Outcome
	Entries  []repo.Entry
	// FromCache is set when a fresh cache record was served without a
	// network call.
	FromCache bool
	// Age of the cached payload for Stale and cache-served Success.
	Age time.Duration
	// Err is the failure behind a Stale or Empty outcome.
	Err     error
	Elapsed time.Duration
}

// Reason classifies Err; empty for a clean success.
func (r ProviderResult) Reason() provider.ErrorKind {
	return provider.KindOf(r.Err)
}

// Result is what a run hands to the presentation layer.
type Result struct {
	Entries   []repo.Entry
	Providers []ProviderResult
	// Degraded is set when at least one provider did not succeed.
	Degraded bool
	// AllFiltered is set when providers returned entries but every one of
	// them was already shown today.
	AllFiltered bool
	// StarredErr explains why starred annotation was skipped.
	StarredErr error
	// Offset is the position in each provider list this run started from.
	Offset int
}

// Provider returns the result for id.
func (r Result) Provider(id string) (ProviderResult, bool) {
	for _, p := range r.Providers {
		if p.Provider == id {
			return p, true
		}
	}
	return ProviderResult{}, false
}

// Exhausted reports whether every provider came back empty with no cached
// fallback. Callers decide whether that is an error.
func (r Result) Exhausted() bool {
	if len(r.Providers) == 0 {
		return false
	}
	for _, p := range r.Providers {
		if p.Outcome != OutcomeEmpty {
			return false
		}
	}
	return true
}

// Warnings renders one line per provider that did not cleanly succeed.
func (r Result) Warnings() []string {
	var out []string
	for _, p := range r.Providers {
		switch p.Outcome {
		case OutcomeStale:
			out = append(out, fmt.Sprintf("%s: %s, showing results cached %s ago", p.Provider, p.Reason(), humanAge(p.Age)))
		case OutcomeEmpty:
			out = append(out, fmt.Sprintf("%s: %s, no cached results", p.Provider, p.Reason()))
		}
	}
	if r.StarredErr != nil {
		out = append(out, fmt.Sprintf("starred status unavailable: %s", provider.KindOf(r.StarredErr)))
	}
	return out
}

func humanAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "moments"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
