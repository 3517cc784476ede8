package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// RenderMarkdown converts markdown to styled terminal output, wrapped to the
// given width. Falls back to the raw input if rendering fails, so the pager
// never hides the summary behind a renderer problem.
func RenderMarkdown(md string, width int) string {
	if strings.TrimSpace(md) == "" {
		return md
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}
