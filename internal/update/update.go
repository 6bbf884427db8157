// Package update checks GitHub releases for a newer trotd build.
package update

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v67/github"
)

const (
	owner    = "FelixSchausberger"
	repoName = "trotd"
	timeout  = 5 * time.Second
)

// Result holds the outcome of a version check.
type Result struct {
	LatestVersion string
	URL           string
}

// Checker queries the releases API. The zero value talks to api.github.com.
type Checker struct {
	// BaseURL overrides the API root, e.g. for GitHub Enterprise.
	BaseURL string
}

// Check reports whether a release newer than currentVersion exists.
// Returns nil on any error (non-fatal) and for development builds.
func Check(ctx context.Context, currentVersion string) *Result {
	return Checker{}.Check(ctx, currentVersion)
}

func (c Checker) Check(ctx context.Context, currentVersion string) *Result {
	current := strings.TrimPrefix(currentVersion, "v")
	if current == "" || current == "dev" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	gh := github.NewClient(nil)
	if c.BaseURL != "" {
		u, err := url.Parse(strings.TrimRight(c.BaseURL, "/") + "/")
		if err != nil {
			return nil
		}
		gh.BaseURL = u
	}

	release, _, err := gh.Repositories.GetLatestRelease(ctx, owner, repoName)
	if err != nil {
		return nil
	}

	latest := strings.TrimPrefix(release.GetTagName(), "v")
	if latest == "" || !newer(latest, current) {
		return nil
	}
	return &Result{LatestVersion: latest, URL: release.GetHTMLURL()}
}

// newer compares dotted numeric versions. Non-numeric parts compare as
// zero, so "1.2.0-rc1" ranks with "1.2.0".
func newer(latest, current string) bool {
	l, c := parts(latest), parts(current)
	for i := 0; i < len(l) || i < len(c); i++ {
		var a, b int
		if i < len(l) {
			a = l[i]
		}
		if i < len(c) {
			b = c[i]
		}
		if a != b {
			return a > b
		}
	}
	return false
}

func parts(v string) []int {
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		v = v[:i]
	}
	fields := strings.Split(v, ".")
	out := make([]int, len(fields))
	for i, f := range fields {
		out[i], _ = strconv.Atoi(f)
	}
	return out
}
