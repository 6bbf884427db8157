package render

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	// Adaptive colors for dark/light terminals
	colorPrimary = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"}
	colorDim     = lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#626262"}
	colorAccent  = lipgloss.AdaptiveColor{Light: "#F25D94", Dark: "#F25D94"}
	colorGreen   = lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#25D366"}
	colorWarn    = lipgloss.AdaptiveColor{Light: "#C7851A", Dark: "#E8B04B"}
)

// styles are bound to one output so color detection follows the writer,
// not the process stdout.
type styles struct {
	header   lipgloss.Style
	date     lipgloss.Style
	badge    lipgloss.Style
	name     lipgloss.Style
	stars    lipgloss.Style
	today    lipgloss.Style
	language lipgloss.Style
	desc     lipgloss.Style
	starred  lipgloss.Style
	dim      lipgloss.Style
	warn     lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		header:   r.NewStyle().Bold(true).Foreground(colorPrimary),
		date:     r.NewStyle().Foreground(colorDim),
		badge:    r.NewStyle().Bold(true).Foreground(colorAccent),
		name:     r.NewStyle().Bold(true).Foreground(colorPrimary),
		stars:    r.NewStyle().Foreground(colorWarn),
		today:    r.NewStyle().Foreground(colorGreen),
		language: r.NewStyle().Foreground(colorDim).Italic(true),
		desc:     r.NewStyle().PaddingLeft(5),
		starred:  r.NewStyle().Foreground(colorWarn),
		dim:      r.NewStyle().Foreground(colorDim),
		warn:     r.NewStyle().Foreground(colorWarn),
	}
}
