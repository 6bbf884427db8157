package trending

import (
	"unicode/utf8"

	"github.com/FelixSchausberger/trotd/internal/repo"
)

const (
	minNameASCII        = 0.8
	minDescriptionASCII = 0.7
)

func filterMinStars(entries []repo.Entry, min int) []repo.Entry {
	if min <= 0 {
		return entries
	}
	out := entries[:0:0]
	for _, e := range entries {
		if e.StarsTotal >= min {
			out = append(out, e)
		}
	}
	return out
}

// filterASCII drops entries whose name or description is mostly written in
// non-Latin scripts.
func filterASCII(entries []repo.Entry) []repo.Entry {
	out := entries[:0:0]
	for _, e := range entries {
		if mostlyASCII(e) {
			out = append(out, e)
		}
	}
	return out
}

func mostlyASCII(e repo.Entry) bool {
	if asciiRatio(e.Name) < minNameASCII {
		return false
	}
	return e.Description == "" || asciiRatio(e.Description) >= minDescriptionASCII
}

func asciiRatio(s string) float64 {
	total := utf8.RuneCountInString(s)
	if total == 0 {
		return 1
	}
	ascii := 0
	for _, r := range s {
		if r < utf8.RuneSelf {
			ascii++
		}
	}
	return float64(ascii) / float64(total)
}
