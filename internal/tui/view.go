package tui

import (
	"fmt"
	"image/color"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/dustin/go-humanize"
	"github.com/hylla/gridsel/internal/domain"
	"github.com/hylla/gridsel/internal/selection"
)

// View renders the grid, its selection affordances and any modal overlay.
func (m Model) View() tea.View {
	if m.err != nil {
		return newView("error: " + m.err.Error() + "\n\npress r to retry • q quit\n")
	}
	if !m.ready {
		return newView("loading...")
	}

	accent := lipgloss.Color("62")
	muted := lipgloss.Color("241")
	dim := lipgloss.Color("239")
	statusStyle := lipgloss.NewStyle().Foreground(dim)

	sections := []string{
		m.renderHeader(muted),
		m.renderAffordanceLine(accent, muted),
		m.renderColumnHeader(muted),
	}
	sections = append(sections, m.renderRows(muted)...)
	content := strings.Join(sections, "\n")

	status := ""
	if strings.TrimSpace(m.status) != "" && m.status != "ready" {
		status = statusStyle.Render(truncate(m.status, max(1, m.width)))
	}

	helpBubble := m.help
	helpBubble.ShowAll = false
	helpBubble.SetWidth(max(0, m.width-2))
	helpLine := lipgloss.NewStyle().
		Foreground(muted).
		BorderTop(true).
		BorderForeground(dim).
		Padding(0, 1).
		Width(max(0, m.width)).
		Render(helpBubble.View(m.keys))

	if m.height > 0 {
		content = fitLines(content, max(0, m.height-footerLines))
	}
	fullContent := content + "\n" + status + "\n" + helpLine

	overlay := m.renderModeOverlay(accent, muted, dim, m.width-8)
	if m.help.ShowAll {
		overlay = m.renderHelpOverlay(accent, muted, dim, m.width-8)
	}
	if overlay != "" {
		overlayHeight := lipgloss.Height(fullContent)
		if m.height > 0 {
			overlayHeight = m.height
		}
		fullContent = overlayOnContent(fullContent, overlay, max(1, m.width), max(1, overlayHeight))
	}
	return newView(fullContent)
}

func newView(content string) tea.View {
	v := tea.NewView(content)
	v.MouseMode = tea.MouseModeCellMotion
	v.AltScreen = true
	return v
}

func (m Model) renderHeader(muted color.Color) string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	infoStyle := lipgloss.NewStyle().Foreground(muted)

	pageCount := max(m.page.PageCount, 1)
	header := titleStyle.Render("gridsel")
	header += infoStyle.Render(fmt.Sprintf("  page %d/%d • %s %s", m.pageNum, pageCount, humanCount(m.page.Total), plural(m.page.Total, "record", "records")))
	if m.query.Search != "" {
		header += infoStyle.Render("  search: " + truncate(m.query.Search, 32))
	}
	if m.query.IncludeArchived {
		header += infoStyle.Render("  showing archived")
	}
	header += infoStyle.Render("  [" + m.modeLabel() + "]")
	return header
}

// renderAffordanceLine draws the counter, the select-across prompt and the clear link as the
// directive state dictates.
func (m Model) renderAffordanceLine(accent, muted color.Color) string {
	counterStyle := lipgloss.NewStyle().Foreground(muted)
	linkStyle := lipgloss.NewStyle().Bold(true).Foreground(accent)

	total := humanCount(m.sel.TotalCount())
	parts := make([]string, 0, 2)
	if m.aff.CounterVisible && m.aff.Counter != "" {
		parts = append(parts, counterStyle.Render(m.aff.Counter))
	}
	if m.aff.PromptVisible {
		selected := m.sel.SelectedCount()
		parts = append(parts, linkStyle.Render(fmt.Sprintf(
			"All %d records on this page are selected. Select all %s records? (%s)",
			selected, total, m.keys.confirmAcross.Help().Key,
		)))
	}
	if m.aff.ClearVisible {
		parts = append(parts, linkStyle.Render(fmt.Sprintf(
			"All %s records selected. Press %s to clear.",
			total, m.keys.clearAcross.Help().Key,
		)))
	}
	return strings.Join(parts, "  ")
}

func (m Model) renderColumnHeader(muted color.Color) string {
	style := lipgloss.NewStyle().Bold(true).Foreground(muted)
	box := checkbox(m.aff.AllChecked, true)
	return style.Render("  " + box + " " + m.formatColumns("title", "status", "priority", "updated"))
}

func (m Model) renderRows(muted color.Color) []string {
	if len(m.page.Records) == 0 {
		return []string{lipgloss.NewStyle().Foreground(muted).Render("  (no records)")}
	}
	cursorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	checkedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Background(lipgloss.Color("237")).Bold(true)
	disabledStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Faint(true)
	archivedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("243"))

	start, end := m.visibleRowBounds()
	lines := make([]string, 0, end-start)
	for idx := start; idx < end; idx++ {
		rec := m.page.Records[idx]
		enabled := m.sel.IsEnabled(rec.ID)
		checked := m.sel.IsChecked(rec.ID)
		prefix := "  "
		if idx == m.cursor {
			prefix = "│ "
		}
		line := prefix + checkbox(checked, enabled) + " " + m.formatColumns(
			rec.Title,
			string(rec.Status),
			string(rec.Priority),
			humanize.Time(rec.UpdatedAt),
		)
		switch {
		case !enabled:
			line = disabledStyle.Render(line)
		case idx == m.cursor:
			line = cursorStyle.Render(line)
		case checked:
			line = checkedStyle.Render(line)
		case rec.Archived():
			line = archivedStyle.Render(line)
		}
		lines = append(lines, line)
	}
	return lines
}

// formatColumns lays out the fixed grid columns. The title column takes the remaining width.
func (m Model) formatColumns(title, status, priority, updated string) string {
	titleWidth := 40
	if m.width > 0 {
		titleWidth = clamp(m.width-42, 12, 80)
	}
	return fmt.Sprintf("%-*s %-8s %-8s %s", titleWidth, truncate(title, titleWidth), truncate(status, 8), truncate(priority, 8), updated)
}

func checkbox(checked, enabled bool) string {
	switch {
	case !enabled:
		return "[-]"
	case checked:
		return "[x]"
	default:
		return "[ ]"
	}
}

func (m Model) modeLabel() string {
	switch m.mode {
	case modeSearch:
		return "search"
	case modeActions, modeActionParam:
		return "actions"
	case modeConfirmAction:
		return "confirm"
	case modeDetail:
		return "detail"
	}
	switch m.sel.Mode() {
	case selection.ModeAcross:
		return "all selected"
	case selection.ModePage:
		return "page selected"
	case selection.ModePartial:
		return "selecting"
	default:
		return "browse"
	}
}

func (m Model) renderModeOverlay(accent, muted, dim color.Color, maxWidth int) string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(accent)
	hintStyle := lipgloss.NewStyle().Foreground(muted)
	boxStyle := func(minW, maxW int) lipgloss.Style {
		style := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1)
		if maxWidth > 0 {
			style = style.Width(clamp(maxWidth, minW, maxW))
		}
		return style
	}

	switch m.mode {
	case modeSearch:
		lines := []string{
			titleStyle.Render("Search"),
			m.searchInput.View(),
			hintStyle.Render("enter apply • esc cancel • empty clears"),
		}
		return boxStyle(36, 72).Render(strings.Join(lines, "\n"))

	case modeActions:
		lines := []string{titleStyle.Render("Actions"), hintStyle.Render(m.targetSummary())}
		for idx, action := range domain.BulkActions() {
			lines = append(lines, menuLine(action.Label(), idx == m.actionIndex, accent))
		}
		lines = append(lines, hintStyle.Render("enter choose • j/k move • esc cancel"))
		return boxStyle(32, 64).Render(strings.Join(lines, "\n"))

	case modeActionParam:
		title := "Priority"
		if m.pending.Action == domain.ActionSetStatus {
			title = "Status"
		}
		lines := []string{titleStyle.Render(title)}
		for idx, option := range m.paramOptions() {
			lines = append(lines, menuLine(option, idx == m.paramIndex, accent))
		}
		lines = append(lines, hintStyle.Render("enter choose • esc back"))
		return boxStyle(28, 48).Render(strings.Join(lines, "\n"))

	case modeConfirmAction:
		confirmStyle := lipgloss.NewStyle().Foreground(muted)
		cancelStyle := lipgloss.NewStyle().Foreground(muted)
		if m.confirmChoice == 0 {
			confirmStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
		} else {
			cancelStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
		}
		lines := []string{
			titleStyle.Render("Confirm Action"),
			m.confirmPrompt(),
			confirmStyle.Render("[confirm]") + "  " + cancelStyle.Render("[cancel]"),
			hintStyle.Render("enter apply • esc cancel • h/l switch • y confirm • n cancel"),
		}
		if m.pending.Action.Destructive() {
			lines = append(lines[:2], append([]string{lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")).Render("this cannot be undone")}, lines[2:]...)...)
		}
		return boxStyle(36, 88).Render(strings.Join(lines, "\n"))

	case modeDetail:
		width := clamp(maxWidth, 40, 96)
		body := m.markdown.render(recordMarkdown(m.detail), width-4)
		lines := []string{titleStyle.Render("Record"), body, hintStyle.Render("esc close")}
		return boxStyle(40, 96).BorderForeground(dim).Render(strings.Join(lines, "\n"))
	}
	return ""
}

func (m Model) targetSummary() string {
	sub := m.sel.Submission()
	if sub.SelectAcross {
		return fmt.Sprintf("all %s records matching %s", humanCount(m.sel.TotalCount()), m.query.String())
	}
	return fmt.Sprintf("%d selected %s", len(sub.IDs), plural(len(sub.IDs), "record", "records"))
}

func menuLine(label string, active bool, accent color.Color) string {
	if active {
		return lipgloss.NewStyle().Bold(true).Foreground(accent).Render("> " + label)
	}
	return "  " + label
}

func (m Model) renderHelpOverlay(accent, muted, dim color.Color, maxWidth int) string {
	width := clamp(maxWidth, 56, 100)
	hb := m.help
	hb.ShowAll = true
	hb.SetWidth(width - 4)

	title := lipgloss.NewStyle().Bold(true).Foreground(accent).Render("gridsel help")
	workflow := []string{
		lipgloss.NewStyle().Bold(true).Foreground(accent).Render("Selecting"),
		"1. space toggles the row under the cursor • X or shift+click toggles a range from the last row",
		"2. a toggles every enabled row on the page • locked rows ([-]) never change",
		"3. with the whole page checked press A to extend the selection to every matching record",
		"4. c or esc clears the selection • . opens bulk actions",
	}
	lines := []string{
		title,
		"",
		hb.View(m.keys),
		"",
		lipgloss.NewStyle().Foreground(muted).Render(strings.Join(workflow, "\n")),
		lipgloss.NewStyle().Foreground(muted).Render("press ? or esc to close"),
	}
	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(dim).
		Padding(0, 1)
	if maxWidth > 0 {
		style = style.Width(width)
	}
	return style.Render(strings.Join(lines, "\n"))
}

func humanCount(n int) string {
	return humanize.Comma(int64(n))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func clamp(v, minV, maxV int) int {
	if maxV < minV {
		return minV
	}
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

// windowBounds returns an inclusive-exclusive list window that keeps selected visible.
func windowBounds(total, selected, windowSize int) (int, int) {
	if total <= 0 || windowSize <= 0 {
		return 0, 0
	}
	if total <= windowSize {
		return 0, total
	}
	selected = clamp(selected, 0, total-1)
	start := max(selected-windowSize/2, 0)
	end := start + windowSize
	if end > total {
		end = total
		start = max(0, end-windowSize)
	}
	return start, end
}

func fitLines(content string, maxLines int) string {
	if maxLines <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	switch {
	case len(lines) > maxLines:
		if maxLines == 1 {
			lines = []string{"…"}
		} else {
			lines = append(lines[:maxLines-1], "…")
		}
	case len(lines) < maxLines:
		lines = append(lines, make([]string, maxLines-len(lines))...)
	}
	return strings.Join(lines, "\n")
}

// overlayOnContent centers overlay over base on a layered canvas.
func overlayOnContent(base, overlay string, width, height int) string {
	if width <= 0 || height <= 0 {
		if strings.TrimSpace(overlay) == "" {
			return base
		}
		return overlay + "\n\n" + base
	}

	base = fitLines(base, height)
	canvas := lipgloss.NewCanvas(width, height)
	baseLayer := lipgloss.NewLayer(base).X(0).Y(0).Z(0)
	centered := lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, overlay)
	overlayLayer := lipgloss.NewLayer(centered).X(0).Y(0).Z(10)

	canvas.Compose(baseLayer)
	canvas.Compose(overlayLayer)
	return canvas.Render()
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= max {
		return s
	}
	if max <= 1 {
		return string(rs[:max])
	}
	return string(rs[:max-1]) + "…"
}
