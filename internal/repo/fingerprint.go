package repo

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint derives the cache key for a provider query. Language and topic
// lists are normalised so that ordering and case do not change the key.
// Token, Timeout and Offset are not part of the key.
func Fingerprint(provider string, q Query) string {
	var b strings.Builder
	b.WriteString("v1\x00")
	b.WriteString(provider)
	b.WriteByte(0)
	b.WriteString(strings.TrimRight(q.BaseURL, "/"))
	b.WriteByte(0)
	b.WriteString(strings.Join(normalize(q.Languages), ","))
	b.WriteByte(0)
	b.WriteString(strings.Join(normalize(q.ExcludeTopics), ","))
	b.WriteByte(0)
	b.WriteString(strconv.Itoa(q.MinStars))
	b.WriteByte(0)
	b.WriteString(strconv.Itoa(q.MaxResults))

	return fmt.Sprintf("%s-%016x", provider, xxhash.Sum64String(b.String()))
}

func normalize(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
