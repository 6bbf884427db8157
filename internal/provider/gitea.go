package provider

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/FelixSchausberger/trotd/internal/repo"
	"github.com/tidwall/gjson"
)

const defaultGiteaURL = "https://gitea.com"

// Gitea instances expose repository search but no trending view, so the
// most starred repositories are used instead.
type Gitea struct {
	client *Client
}

func (g *Gitea) ID() string        { return string(KindGitea) }
func (g *Gitea) Approximate() bool { return true }

func (g *Gitea) Fetch(ctx context.Context, q repo.Query) ([]repo.Entry, error) {
	base := strings.TrimRight(q.BaseURL, "/")
	if base == "" {
		base = defaultGiteaURL
	}

	params := url.Values{}
	params.Set("sort", "stars")
	params.Set("order", "desc")
	params.Set("limit", "50")
	params.Set("page", "1")

	header := http.Header{"Accept": {"application/json"}}
	if q.Token != "" {
		header.Set("Authorization", "token "+q.Token)
	}

	body, err := g.client.Get(ctx, g.ID(), base+"/api/v1/repos/search?"+params.Encode(), header, q.Timeout)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, NewParseError(g.ID(), errors.New("invalid json"))
	}
	data := gjson.GetBytes(body, "data")
	if !data.IsArray() {
		return nil, NewParseError(g.ID(), errors.New("missing data array"))
	}

	var cands []candidate
	data.ForEach(func(_, r gjson.Result) bool {
		owner := r.Get("owner.login").String()
		name := r.Get("name").String()
		if owner == "" || name == "" {
			owner, name = splitPath(r.Get("full_name").String())
		}
		if owner == "" || name == "" {
			return true
		}
		cands = append(cands, candidate{
			entry: repo.Entry{
				Provider:    g.ID(),
				Owner:       owner,
				Name:        name,
				Language:    r.Get("language").String(),
				StarsTotal:  int(r.Get("stars_count").Int()),
				Description: strings.TrimSpace(r.Get("description").String()),
				URL:         r.Get("html_url").String(),
				Approximate: true,
			},
			topics: stringArray(r.Get("topics")),
		})
		return true
	})
	return selectEntries(cands, q), nil
}
