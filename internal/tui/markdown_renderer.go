package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/hylla/gridsel/internal/domain"
)

// markdownRenderer renders record notes and rebuilds the glamour renderer when the wrap width changes.
type markdownRenderer struct {
	width    int
	renderer *glamour.TermRenderer
}

func (r *markdownRenderer) render(markdown string, width int) string {
	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return ""
	}

	wrapWidth := max(width, 24)
	if r.renderer == nil || r.width != wrapWidth {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(wrapWidth),
		)
		if err != nil {
			return markdown
		}
		r.renderer = renderer
		r.width = wrapWidth
	}

	rendered, err := r.renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimRight(rendered, "\n")
}

// recordMarkdown builds the detail document for one record.
func recordMarkdown(rec domain.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", rec.Title)
	fmt.Fprintf(&b, "- **status:** %s\n", rec.Status)
	fmt.Fprintf(&b, "- **priority:** %s\n", rec.Priority)
	if rec.Locked {
		b.WriteString("- **locked:** yes\n")
	}
	if rec.ArchivedAt != nil {
		fmt.Fprintf(&b, "- **archived:** %s\n", rec.ArchivedAt.Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(&b, "- **updated:** %s\n", rec.UpdatedAt.Format("2006-01-02 15:04"))
	if notes := strings.TrimSpace(rec.Notes); notes != "" {
		b.WriteString("\n---\n\n")
		b.WriteString(notes)
		b.WriteString("\n")
	}
	return b.String()
}
