package provider

import (
	"strings"
	"unicode"

	"github.com/FelixSchausberger/trotd/internal/repo"
)

// candidate is an entry plus the listing metadata that only matters for
// filtering.
type candidate struct {
	entry  repo.Entry
	topics []string
}

// selectEntries applies the query's language, star and topic filters, then
// the offset and result cap, preserving provider order.
func selectEntries(cands []candidate, q repo.Query) []repo.Entry {
	out := make([]repo.Entry, 0, len(cands))
	skipped := 0
	for _, c := range cands {
		if !matchesLanguage(c.entry.Language, q.Languages) {
			continue
		}
		if q.MinStars > 0 && c.entry.StarsTotal < q.MinStars {
			continue
		}
		if excluded(c, q.ExcludeTopics) {
			continue
		}
		if skipped < q.Offset {
			skipped++
			continue
		}
		out = append(out, c.entry)
		if q.MaxResults > 0 && len(out) >= q.MaxResults {
			break
		}
	}
	return out
}

// matchesLanguage is case-insensitive. Entries whose language the source
// does not report are kept.
func matchesLanguage(lang string, langs []string) bool {
	if len(langs) == 0 || lang == "" {
		return true
	}
	for _, l := range langs {
		if strings.EqualFold(strings.TrimSpace(l), lang) {
			return true
		}
	}
	return false
}

// excluded checks topics when the source lists them, otherwise whole words
// of the name and description.
func excluded(c candidate, exclude []string) bool {
	if len(exclude) == 0 {
		return false
	}
	words := c.topics
	if len(words) == 0 {
		words = strings.FieldsFunc(strings.ToLower(c.entry.Name+" "+c.entry.Description), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
		})
	}
	for _, w := range words {
		for _, e := range exclude {
			if strings.EqualFold(w, strings.TrimSpace(e)) {
				return true
			}
		}
	}
	return false
}

// splitPath turns "group/sub/name" into ("group/sub", "name").
func splitPath(full string) (string, string) {
	full = strings.Trim(full, "/")
	i := strings.LastIndex(full, "/")
	if i < 0 {
		return "", full
	}
	return full[:i], full[i+1:]
}
