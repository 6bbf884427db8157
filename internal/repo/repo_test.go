package repo

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintDeterministic(t *testing.T) {
	q := Query{Languages: []string{"rust", "go"}, MinStars: 10, MaxResults: 5}

	assert.Equal(t, Fingerprint("github", q), Fingerprint("github", q))
	assert.True(t, strings.HasPrefix(Fingerprint("github", q), "github-"))
}

func TestFingerprintNormalizesLists(t *testing.T) {
	a := Query{Languages: []string{"Rust", "go"}, ExcludeTopics: []string{"crypto", "nft"}}
	b := Query{Languages: []string{"go", "rust", "go"}, ExcludeTopics: []string{" NFT", "crypto"}}

	assert.Equal(t, Fingerprint("github", a), Fingerprint("github", b))
}

func TestFingerprintIgnoresCredentialsAndBudget(t *testing.T) {
	a := Query{MaxResults: 5}
	b := Query{MaxResults: 5, Token: "secret", Timeout: time.Second, Offset: 10}

	assert.Equal(t, Fingerprint("gitlab", a), Fingerprint("gitlab", b))
}

func TestFingerprintDistinguishesQueries(t *testing.T) {
	tests := []struct {
		name string
		a, b Query
		pa   string
		pb   string
	}{
		{"provider", Query{}, Query{}, "github", "gitlab"},
		{"languages", Query{Languages: []string{"go"}}, Query{Languages: []string{"rust"}}, "github", "github"},
		{"min stars", Query{MinStars: 1}, Query{MinStars: 2}, "github", "github"},
		{"max results", Query{MaxResults: 3}, Query{MaxResults: 4}, "gitea", "gitea"},
		{"base url", Query{BaseURL: "https://gitea.com"}, Query{BaseURL: "https://codeberg.org"}, "gitea", "gitea"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, Fingerprint(tt.pa, tt.a), Fingerprint(tt.pb, tt.b))
		})
	}
}

func TestEntryIdentity(t *testing.T) {
	a := Entry{Provider: "github", Owner: "x", Name: "y"}
	b := Entry{Provider: "gitlab", Owner: "x", Name: "y"}
	c := Entry{Provider: "github", Owner: "X", Name: "y"}

	assert.NotEqual(t, a.ID(), b.ID())
	assert.NotEqual(t, a.ID(), c.ID())
	assert.Equal(t, "x/y", a.ID().FullName())
}

func TestWithStarredCopies(t *testing.T) {
	e := Entry{Owner: "x", Name: "y", StarsToday: IntPtr(3)}
	annotated := e.WithStarred(true)

	require.NotNil(t, annotated.StarsToday)
	assert.True(t, annotated.Starred)
	assert.False(t, e.Starred)

	*annotated.StarsToday = 99
	assert.Equal(t, 3, *e.StarsToday)
}
