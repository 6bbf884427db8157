package provider

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/FelixSchausberger/trotd/internal/repo"
	"github.com/tidwall/gjson"
)

const (
	defaultGitLabURL = "https://gitlab.com"
	gitlabWindow     = 7 * 24 * time.Hour
)

// GitLab has no trending endpoint. Recently created projects ordered by
// stars stand in for it, hence Approximate.
type GitLab struct {
	client *Client
	now    func() time.Time
}

func (g *GitLab) ID() string        { return string(KindGitLab) }
func (g *GitLab) Approximate() bool { return true }

func (g *GitLab) Fetch(ctx context.Context, q repo.Query) ([]repo.Entry, error) {
	base := strings.TrimRight(q.BaseURL, "/")
	if base == "" {
		base = defaultGitLabURL
	}
	now := time.Now
	if g.now != nil {
		now = g.now
	}

	params := url.Values{}
	params.Set("order_by", "star_count")
	params.Set("sort", "desc")
	params.Set("visibility", "public")
	params.Set("per_page", "100")
	params.Set("created_after", now().UTC().Add(-gitlabWindow).Format(time.RFC3339))
	// The API narrows by one language server-side; projects carry no
	// language field otherwise.
	lang := ""
	if len(q.Languages) == 1 {
		lang = q.Languages[0]
		params.Set("with_programming_language", lang)
	}

	header := http.Header{"Accept": {"application/json"}}
	if q.Token != "" {
		header.Set("PRIVATE-TOKEN", q.Token)
	}

	body, err := g.client.Get(ctx, g.ID(), base+"/api/v4/projects?"+params.Encode(), header, q.Timeout)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, NewParseError(g.ID(), errors.New("invalid json"))
	}
	res := gjson.ParseBytes(body)
	if !res.IsArray() {
		return nil, NewParseError(g.ID(), errors.New("expected a project array"))
	}

	var cands []candidate
	res.ForEach(func(_, p gjson.Result) bool {
		owner, name := splitPath(p.Get("path_with_namespace").String())
		if owner == "" || name == "" {
			return true
		}
		cands = append(cands, candidate{
			entry: repo.Entry{
				Provider:    g.ID(),
				Owner:       owner,
				Name:        name,
				Language:    lang,
				StarsTotal:  int(p.Get("star_count").Int()),
				Description: strings.TrimSpace(p.Get("description").String()),
				URL:         p.Get("web_url").String(),
				Approximate: true,
			},
			topics: stringArray(p.Get("topics")),
		})
		return true
	})
	return selectEntries(cands, q), nil
}

func stringArray(r gjson.Result) []string {
	arr := r.Array()
	if len(arr) == 0 {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		out = append(out, v.String())
	}
	return out
}
