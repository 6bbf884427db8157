// Package provider implements the trending-repository sources. Each source is
// one variant of a closed set (GitHub, GitLab, Gitea) selected at
// configuration time.
package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/FelixSchausberger/trotd/internal/repo"
	"go.uber.org/zap"
)

// Provider fetches the trending list of one source. Implementations are
// stateless between calls.
type Provider interface {
	ID() string
	// Approximate is true when the ranking is not the source's own
	// trending signal.
	Approximate() bool
	Fetch(ctx context.Context, q repo.Query) ([]repo.Entry, error)
}

// StarLister is implemented by providers that can list the repositories
// starred by the token's owner.
type StarLister interface {
	FetchStarred(ctx context.Context, token string) (map[repo.ID]bool, error)
}

// Starrer is implemented by providers that can star a repository.
type Starrer interface {
	Star(ctx context.Context, token, owner, name string) error
}

type Kind string

const (
	KindGitHub Kind = "github"
	KindGitLab Kind = "gitlab"
	KindGitea  Kind = "gitea"
)

// AllKinds returns every provider kind in display order.
func AllKinds() []Kind {
	return []Kind{KindGitHub, KindGitLab, KindGitea}
}

// ParseKind accepts a full provider name or its short alias (gh, gl, ge).
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "github", "gh":
		return KindGitHub, nil
	case "gitlab", "gl":
		return KindGitLab, nil
	case "gitea", "ge":
		return KindGitea, nil
	default:
		return "", fmt.Errorf("unknown provider %q (valid: github, gitlab, gitea)", s)
	}
}

type options struct {
	client      *Client
	logger      *zap.Logger
	trendingURL string
	apiURL      string
}

type Option func(*options)

// WithClient sets the HTTP client used for listing requests.
func WithClient(c *Client) Option {
	return func(o *options) { o.client = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithGitHubURLs overrides the trending page and REST API roots.
func WithGitHubURLs(trendingURL, apiURL string) Option {
	return func(o *options) {
		o.trendingURL = trendingURL
		o.apiURL = apiURL
	}
}

// New builds the provider for kind.
func New(kind Kind, opts ...Option) (Provider, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.client == nil {
		o.client = NewClient(DefaultClientConfig(), o.logger)
	}

	switch kind {
	case KindGitHub:
		return newGitHub(o), nil
	case KindGitLab:
		return &GitLab{client: o.client}, nil
	case KindGitea:
		return &Gitea{client: o.client}, nil
	default:
		return nil, fmt.Errorf("unknown provider kind %q", kind)
	}
}
