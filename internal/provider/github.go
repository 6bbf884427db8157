package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/FelixSchausberger/trotd/internal/repo"
	"github.com/google/go-github/v67/github"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

const (
	defaultTrendingURL = "https://github.com/trending"
	maxStarredPages    = 20
)

// GitHub scrapes the official trending page, so its ranking is exact.
type GitHub struct {
	client      *Client
	logger      *zap.Logger
	trendingURL string
	apiURL      string
}

func newGitHub(o options) *GitHub {
	trending := o.trendingURL
	if trending == "" {
		trending = defaultTrendingURL
	}
	return &GitHub{
		client:      o.client,
		logger:      o.logger,
		trendingURL: strings.TrimRight(trending, "/"),
		apiURL:      o.apiURL,
	}
}

func (g *GitHub) ID() string        { return string(KindGitHub) }
func (g *GitHub) Approximate() bool { return false }

func (g *GitHub) Fetch(ctx context.Context, q repo.Query) ([]repo.Entry, error) {
	base := g.trendingURL
	if q.BaseURL != "" {
		base = strings.TrimRight(q.BaseURL, "/")
	}
	u := base
	// The page only narrows by one language; several are filtered locally.
	if len(q.Languages) == 1 {
		u += "/" + url.PathEscape(languageSlug(q.Languages[0]))
	}
	u += "?since=daily"

	body, err := g.client.Get(ctx, g.ID(), u, http.Header{"Accept": {"text/html"}}, q.Timeout)
	if err != nil {
		return nil, err
	}

	cands, err := parseTrendingPage(body)
	if err != nil {
		return nil, NewParseError(g.ID(), err)
	}
	g.logger.Debug("parsed trending page", zap.Int("rows", len(cands)))
	return selectEntries(cands, q), nil
}

// FetchStarred lists every repository starred by the token's owner.
func (g *GitHub) FetchStarred(ctx context.Context, token string) (map[repo.ID]bool, error) {
	if token == "" {
		return nil, NewAuthRequiredError(g.ID(), "starred status")
	}
	gh, err := g.api(token)
	if err != nil {
		return nil, err
	}

	starred := make(map[repo.ID]bool)
	opts := &github.ActivityListStarredOptions{ListOptions: github.ListOptions{PerPage: 100}}
	for page := 0; page < maxStarredPages; page++ {
		stars, resp, err := gh.Activity.ListStarred(ctx, "", opts)
		if err != nil {
			return nil, g.apiError(ctx, err)
		}
		for _, s := range stars {
			r := s.GetRepository()
			starred[repo.ID{Provider: g.ID(), Owner: r.GetOwner().GetLogin(), Name: r.GetName()}] = true
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return starred, nil
}

func (g *GitHub) Star(ctx context.Context, token, owner, name string) error {
	if token == "" {
		return NewAuthRequiredError(g.ID(), "starring")
	}
	gh, err := g.api(token)
	if err != nil {
		return err
	}
	if _, err := gh.Activity.Star(ctx, owner, name); err != nil {
		return g.apiError(ctx, err)
	}
	return nil
}

func (g *GitHub) api(token string) (*github.Client, error) {
	gh := github.NewClient(nil).WithAuthToken(token)
	if g.apiURL != "" {
		u, err := url.Parse(strings.TrimRight(g.apiURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("parsing github api url: %w", err)
		}
		gh.BaseURL = u
	}
	return gh, nil
}

func (g *GitHub) apiError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return NewTimeoutError(g.ID(), ctx.Err())
	}
	var (
		rle *github.RateLimitError
		are *github.AbuseRateLimitError
		ere *github.ErrorResponse
	)
	switch {
	case errors.As(err, &rle):
		return NewRateLimitError(g.ID(), http.StatusForbidden, rle.Message)
	case errors.As(err, &are):
		return NewRateLimitError(g.ID(), http.StatusForbidden, are.Message)
	case errors.As(err, &ere) && ere.Response != nil:
		e := classifyStatus(g.ID(), ere.Response)
		e.Err = err
		return e
	default:
		return NewNetworkError(g.ID(), 0, err)
	}
}

// languageSlug maps a display name to the trending URL segment.
func languageSlug(lang string) string {
	s := strings.ToLower(strings.TrimSpace(lang))
	return strings.ReplaceAll(s, " ", "-")
}

// parseTrendingPage extracts the repository rows from the trending page.
func parseTrendingPage(body []byte) ([]candidate, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}

	var (
		cands []candidate
		blank bool
	)
	walk(doc, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return true
		}
		if hasClass(n, "blankslate") {
			blank = true
		}
		if n.Data == "article" && hasClass(n, "Box-row") {
			if c, ok := parseRow(n); ok {
				cands = append(cands, c)
			}
			return false
		}
		return true
	})

	if len(cands) == 0 && !blank {
		return nil, errors.New("no repository rows found")
	}
	return cands, nil
}

func parseRow(article *html.Node) (candidate, bool) {
	var e repo.Entry
	e.Provider = string(KindGitHub)

	if h2 := find(article, func(n *html.Node) bool { return n.Data == "h2" }); h2 != nil {
		if a := find(h2, func(n *html.Node) bool { return n.Data == "a" }); a != nil {
			e.Owner, e.Name = splitPath(attr(a, "href"))
		}
	}
	if e.Owner == "" || e.Name == "" {
		return candidate{}, false
	}
	e.URL = "https://github.com/" + e.Owner + "/" + e.Name

	if p := find(article, func(n *html.Node) bool { return n.Data == "p" }); p != nil {
		e.Description = strings.Join(strings.Fields(text(p)), " ")
	}
	if lang := find(article, func(n *html.Node) bool { return attr(n, "itemprop") == "programmingLanguage" }); lang != nil {
		e.Language = strings.TrimSpace(text(lang))
	}
	if a := find(article, func(n *html.Node) bool {
		return n.Data == "a" && strings.HasSuffix(attr(n, "href"), "/stargazers")
	}); a != nil {
		e.StarsTotal, _ = parseCount(text(a))
	}
	if span := find(article, func(n *html.Node) bool {
		return n.Data == "span" && strings.Contains(text(n), "stars today") && !hasDescendant(n, isSpan)
	}); span != nil {
		if v, ok := parseCount(strings.TrimSuffix(strings.TrimSpace(text(span)), "stars today")); ok {
			e.StarsToday = repo.IntPtr(v)
		}
	}
	return candidate{entry: e}, true
}

func isSpan(n *html.Node) bool { return n.Data == "span" }

// parseCount reads counters like "12,345" or "1.2k".
func parseCount(s string) (int, bool) {
	s = strings.ToLower(strings.TrimSpace(strings.ReplaceAll(s, ",", "")))
	if s == "" {
		return 0, false
	}
	mult := 1.0
	if strings.HasSuffix(s, "k") {
		mult = 1000
		s = strings.TrimSuffix(s, "k")
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return int(f * mult), true
}

// walk visits n depth-first; returning false skips the node's children.
func walk(n *html.Node, fn func(*html.Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

// find returns the first element in n's subtree (n included) matching pred.
func find(n *html.Node, pred func(*html.Node) bool) *html.Node {
	var found *html.Node
	walk(n, func(c *html.Node) bool {
		if found != nil {
			return false
		}
		if c.Type == html.ElementNode && pred(c) {
			found = c
			return false
		}
		return true
	})
	return found
}

// hasDescendant is like find but excludes n itself.
func hasDescendant(n *html.Node, pred func(*html.Node) bool) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if find(c, pred) != nil {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func text(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		return true
	})
	return b.String()
}
