// Package render prints the result of a run, either as a short
// message-of-the-day listing or as JSON.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/FelixSchausberger/trotd/internal/repo"
	"github.com/FelixSchausberger/trotd/internal/trending"
)

const descriptionWidth = 100

var badges = map[string]string{
	"github": "GH",
	"gitlab": "GL",
	"gitea":  "GE",
}

// MOTD writes the human-readable listing.
func MOTD(w io.Writer, res trending.Result, now time.Time) error {
	s := newStyles(w)
	var b strings.Builder

	b.WriteString(s.header.Render("Trending repositories"))
	b.WriteString(" ")
	b.WriteString(s.date.Render(now.UTC().Format("Mon, 02 Jan 2006")))
	b.WriteString("\n\n")

	switch {
	case len(res.Entries) > 0:
		for _, e := range res.Entries {
			writeEntry(&b, s, e)
		}
	case res.Exhausted():
		b.WriteString(s.warn.Render("No repositories available: every provider failed and nothing was cached."))
		b.WriteString("\n")
	case res.AllFiltered:
		b.WriteString(s.dim.Render("All fetched repositories were already shown today. Use --show-all to repeat them."))
		b.WriteString("\n")
	default:
		b.WriteString(s.dim.Render("No repositories matched the current filters."))
		b.WriteString("\n")
	}

	if warnings := res.Warnings(); len(warnings) > 0 {
		b.WriteString("\n")
		for _, msg := range warnings {
			b.WriteString(s.warn.Render("! " + msg))
			b.WriteString("\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeEntry(b *strings.Builder, s styles, e repo.Entry) {
	badge := badges[e.Provider]
	if badge == "" {
		badge = strings.ToUpper(e.Provider)
	}
	b.WriteString(" ")
	b.WriteString(s.badge.Render(fmt.Sprintf("%-3s", badge)))
	b.WriteString(" ")
	b.WriteString(s.name.Render(e.FullName()))
	if e.Starred {
		b.WriteString(" ")
		b.WriteString(s.starred.Render("★"))
	}

	stars := "☆ " + FormatCount(e.StarsTotal)
	if e.Approximate {
		stars += "~"
	}
	b.WriteString("  ")
	b.WriteString(s.stars.Render(stars))
	if e.StarsToday != nil {
		b.WriteString(" ")
		b.WriteString(s.today.Render("+" + FormatCount(*e.StarsToday) + " today"))
	}
	if e.Language != "" {
		b.WriteString("  ")
		b.WriteString(s.language.Render(e.Language))
	}
	b.WriteString("\n")

	if e.Description != "" {
		b.WriteString(s.desc.Render(truncate(e.Description, descriptionWidth)))
		b.WriteString("\n")
	}
}

// FormatCount renders n with thousands separators.
func FormatCount(n int) string {
	if n < 0 {
		return "-" + FormatCount(-n)
	}
	s := strconv.Itoa(n)
	if len(s) <= 3 {
		return s
	}
	head := len(s) % 3
	if head == 0 {
		head = 3
	}
	parts := []string{s[:head]}
	for i := head; i < len(s); i += 3 {
		parts = append(parts, s[i:i+3])
	}
	return strings.Join(parts, ",")
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}

type jsonProvider struct {
	Provider   string  `json:"provider"`
	Outcome    string  `json:"outcome"`
	Reason     string  `json:"reason,omitempty"`
	Error      string  `json:"error,omitempty"`
	FromCache  bool    `json:"from_cache,omitempty"`
	AgeSeconds float64 `json:"age_seconds,omitempty"`
	Entries    int     `json:"entries"`
}

type jsonOutput struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Entries     []repo.Entry   `json:"entries"`
	Providers   []jsonProvider `json:"providers"`
	Degraded    bool           `json:"degraded"`
	AllFiltered bool           `json:"all_filtered"`
	Warnings    []string       `json:"warnings,omitempty"`
}

// JSON writes the result as a single indented JSON document.
func JSON(w io.Writer, res trending.Result, now time.Time) error {
	out := jsonOutput{
		GeneratedAt: now.UTC(),
		Entries:     res.Entries,
		Degraded:    res.Degraded,
		AllFiltered: res.AllFiltered,
		Warnings:    res.Warnings(),
	}
	if out.Entries == nil {
		out.Entries = []repo.Entry{}
	}
	for _, p := range res.Providers {
		jp := jsonProvider{
			Provider:   p.Provider,
			Outcome:    string(p.Outcome),
			Reason:     string(p.Reason()),
			FromCache:  p.FromCache,
			AgeSeconds: p.Age.Seconds(),
			Entries:    len(p.Entries),
		}
		if p.Err != nil {
			jp.Error = p.Err.Error()
		}
		out.Providers = append(out.Providers, jp)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encoding json output: %w", err)
	}
	return nil
}
