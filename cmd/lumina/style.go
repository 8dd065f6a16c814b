package main

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

const (
	colorAccent = "39"
	colorGray   = "245"
	colorRed    = "196"
	colorYellow = "220"
)

// styles renders terminal output. Every style is a no-op when the writer
// is not a terminal or NO_COLOR is set.
type styles struct {
	Header  lipgloss.Style
	Label   lipgloss.Style
	Dim     lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Score   lipgloss.Style
}

func newStyles(w io.Writer) styles {
	if !isTTY(w) || noColor() {
		plain := lipgloss.NewStyle()
		return styles{plain, plain, plain, plain, plain, plain}
	}
	return styles{
		Header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorAccent)),
		Label:   lipgloss.NewStyle().Foreground(lipgloss.Color(colorGray)),
		Dim:     lipgloss.NewStyle().Faint(true),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color(colorYellow)),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color(colorRed)),
		Score:   lipgloss.NewStyle().Foreground(lipgloss.Color(colorAccent)),
	}
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func noColor() bool {
	_, ok := os.LookupEnv("NO_COLOR")
	return ok
}
