package tui

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	charmLog "github.com/charmbracelet/log"
	"github.com/hylla/gridsel/internal/app"
	"github.com/hylla/gridsel/internal/domain"
	"github.com/hylla/gridsel/internal/selection"
)

// Service is the slice of the application service the grid needs.
type Service interface {
	ListPage(context.Context, app.PageRequest) (app.Page, error)
	GetRecord(context.Context, string) (domain.Record, error)
	RunBulkAction(context.Context, app.BulkActionInput) (app.BulkActionResult, error)
}

// inputMode represents a selectable mode.
type inputMode int

const (
	modeNone inputMode = iota
	modeSearch
	modeActions
	modeActionParam
	modeConfirmAction
	modeDetail
)

// gridTop is the screen row of the first record line: header, affordance line, column header.
const gridTop = 3

// footerLines covers the status line plus the bordered help bar.
const footerLines = 3

const noSelectionMessage = "Items must be selected in order to perform actions on them. No items have been changed."

var priorityOptions = []domain.Priority{
	domain.PriorityLow,
	domain.PriorityMedium,
	domain.PriorityHigh,
}

var statusOptions = []domain.Status{
	domain.StatusDraft,
	domain.StatusActive,
	domain.StatusClosed,
}

// Model is the Bubble Tea model for one grid. It rebuilds its selection controller on every page load.
type Model struct {
	svc Service

	ready  bool
	width  int
	height int
	err    error

	status string

	help help.Model
	keys keyMap

	logger         *charmLog.Logger
	writeClipboard ClipboardWriter

	pageSize           int
	suppressSinglePage bool
	confirm            ConfirmConfig

	query   domain.Query
	pageNum int
	page    app.Page
	sel     *selection.Controller
	aff     selection.Affordances
	cursor  int

	mode          inputMode
	searchInput   textinput.Model
	actionIndex   int
	paramIndex    int
	pending       pendingAction
	confirmChoice int

	detail   domain.Record
	markdown *markdownRenderer
}

// pageLoadedMsg carries one loaded page. keep lists ids that stay checked after the reload.
type pageLoadedMsg struct {
	page   app.Page
	keep   []string
	across bool
	err    error
}

type recordLoadedMsg struct {
	record domain.Record
	err    error
}

// NewModel constructs the grid model over svc with runtime options applied.
func NewModel(svc Service, opts ...Option) Model {
	h := help.New()
	h.ShowAll = false
	searchInput := textinput.New()
	searchInput.Prompt = "/ "
	searchInput.Placeholder = "search titles"
	searchInput.CharLimit = 120
	m := Model{
		svc:            svc,
		status:         "loading...",
		help:           h,
		keys:           newKeyMap(),
		writeClipboard: systemClipboard,
		pageNum:        1,
		searchInput:    searchInput,
		sel:            selection.New(nil, 0),
		markdown:       &markdownRenderer{},
	}
	m.applyRuntimeConfig(DefaultRuntimeConfig())
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	return m
}

func (m *Model) applyRuntimeConfig(cfg RuntimeConfig) {
	m.pageSize = cfg.PageSize
	if m.pageSize <= 0 {
		m.pageSize = app.DefaultPageSize
	}
	m.suppressSinglePage = cfg.SuppressSinglePagePrompt
	m.query.IncludeArchived = cfg.ShowArchived
	m.confirm = cfg.Confirm
	m.keys.applyConfig(cfg.Keys)
}

// Init loads the first page.
func (m Model) Init() tea.Cmd {
	return m.loadPage(nil, false)
}

// Update routes messages to the active mode.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case pageLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.applyPage(msg.page, msg.keep, msg.across)
		if m.status == "" || strings.HasSuffix(m.status, "...") {
			m.status = "ready"
		}
		return m, nil

	case recordLoadedMsg:
		if msg.err != nil {
			m.status = "load record failed: " + msg.err.Error()
			return m, nil
		}
		m.detail = msg.record
		m.mode = modeDetail
		m.status = "record detail"
		return m, nil

	case bulkActionMsg:
		return m.handleBulkActionResult(msg)

	case tea.KeyPressMsg:
		if m.mode != modeNone {
			return m.handleInputModeKey(msg)
		}
		return m.handleNormalModeKey(msg)

	case tea.MouseWheelMsg:
		return m.handleMouseWheel(msg)

	case tea.MouseClickMsg:
		return m.handleMouseClick(msg)

	default:
		if m.mode == modeSearch {
			var cmd tea.Cmd
			m.searchInput, cmd = m.searchInput.Update(msg)
			return m, cmd
		}
		return m, nil
	}
}

// loadPage fetches the current page. The returned command captures the query at call time.
func (m Model) loadPage(keep []string, across bool) tea.Cmd {
	svc := m.svc
	req := app.PageRequest{Query: m.query, Page: m.pageNum, PageSize: m.pageSize}
	return func() tea.Msg {
		page, err := svc.ListPage(context.Background(), req)
		return pageLoadedMsg{page: page, keep: keep, across: across, err: err}
	}
}

func (m Model) loadRecord(id string) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		rec, err := svc.GetRecord(context.Background(), id)
		return recordLoadedMsg{record: rec, err: err}
	}
}

// applyPage swaps in a new page and a fresh controller seeded from keep.
func (m *Model) applyPage(page app.Page, keep []string, across bool) {
	m.page = page
	m.pageNum = max(page.Page, 1)
	rows := make([]selection.Row, 0, len(page.Records))
	for _, rec := range page.Records {
		rows = append(rows, selection.Row{
			ID:      rec.ID,
			Enabled: !rec.Locked,
			Checked: slices.Contains(keep, rec.ID),
		})
	}
	m.sel = selection.New(rows, page.Total,
		selection.WithAcross(across),
		selection.WithSuppressSinglePagePrompt(m.suppressSinglePage),
		selection.WithLogger(m.logger),
	)
	m.aff = selection.Affordances{}.Apply(m.sel.Snapshot())
	m.cursor = clamp(m.cursor, 0, len(page.Records)-1)
}

func (m *Model) applyDirectives(directives []selection.Directive) {
	m.aff = m.aff.Apply(directives)
}

func (m Model) handleNormalModeKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		if m.help.ShowAll {
			m.status = "help"
		} else {
			m.status = "ready"
		}
		return m, nil
	case msg.String() == "esc":
		if m.help.ShowAll {
			m.help.ShowAll = false
			m.status = "ready"
			return m, nil
		}
		if m.sel.SelectedCount() > 0 {
			return m.clearSelection()
		}
		if m.query.Search != "" {
			m.query.Search = ""
			m.pageNum = 1
			m.status = "search cleared"
			return m, m.loadPage(nil, false)
		}
		return m, nil
	case key.Matches(msg, m.keys.reload):
		m.status = "reloading..."
		return m, m.loadPage(m.sel.SelectedIDs(), m.sel.Mode() == selection.ModeAcross)
	case key.Matches(msg, m.keys.moveDown):
		if m.cursor < len(m.page.Records)-1 {
			m.cursor++
		}
		return m, nil
	case key.Matches(msg, m.keys.moveUp):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case key.Matches(msg, m.keys.toggleRow):
		rec, ok := m.cursorRecord()
		if !ok {
			m.status = "no records"
			return m, nil
		}
		return m.toggleRecord(rec.ID, false)
	case key.Matches(msg, m.keys.rangeToggle):
		rec, ok := m.cursorRecord()
		if !ok {
			m.status = "no records"
			return m, nil
		}
		return m.toggleRecord(rec.ID, true)
	case key.Matches(msg, m.keys.toggleAll):
		return m.toggleAll()
	case key.Matches(msg, m.keys.confirmAcross):
		directives, err := m.sel.ConfirmAcross()
		if err != nil {
			m.status = "select every row on this page first"
			return m, nil
		}
		m.applyDirectives(directives)
		m.status = fmt.Sprintf("all %s records selected", humanCount(m.sel.TotalCount()))
		return m, nil
	case key.Matches(msg, m.keys.clearAcross):
		directives, err := m.sel.ClearAcross()
		if err != nil {
			m.status = "no cross-page selection to clear"
			return m, nil
		}
		m.applyDirectives(directives)
		m.status = "selection cleared"
		return m, nil
	case key.Matches(msg, m.keys.nextPage):
		if !m.page.HasNext() {
			m.status = "last page"
			return m, nil
		}
		m.pageNum++
		m.cursor = 0
		m.status = "loading..."
		return m, m.loadPage(nil, false)
	case key.Matches(msg, m.keys.prevPage):
		if !m.page.HasPrev() {
			m.status = "first page"
			return m, nil
		}
		m.pageNum--
		m.cursor = 0
		m.status = "loading..."
		return m, m.loadPage(nil, false)
	case key.Matches(msg, m.keys.showArchived):
		m.query.IncludeArchived = !m.query.IncludeArchived
		m.pageNum = 1
		m.cursor = 0
		if m.query.IncludeArchived {
			m.status = "showing archived"
		} else {
			m.status = "hiding archived"
		}
		return m, m.loadPage(nil, false)
	case key.Matches(msg, m.keys.search):
		m.mode = modeSearch
		m.searchInput.SetValue(m.query.Search)
		m.status = "search"
		return m, m.searchInput.Focus()
	case key.Matches(msg, m.keys.actions):
		return m.openActionMenu()
	case key.Matches(msg, m.keys.detail):
		rec, ok := m.cursorRecord()
		if !ok {
			m.status = "no records"
			return m, nil
		}
		return m, m.loadRecord(rec.ID)
	case key.Matches(msg, m.keys.copyIDs):
		return m.copySelectedIDs()
	default:
		return m, nil
	}
}

func (m Model) handleInputModeKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case modeSearch:
		switch msg.String() {
		case "esc":
			m.mode = modeNone
			m.searchInput.Blur()
			m.status = "cancelled"
			return m, nil
		case "enter":
			m.mode = modeNone
			m.searchInput.Blur()
			m.query.Search = strings.TrimSpace(m.searchInput.Value())
			m.pageNum = 1
			m.cursor = 0
			m.status = "loading..."
			return m, m.loadPage(nil, false)
		}
		var cmd tea.Cmd
		m.searchInput, cmd = m.searchInput.Update(msg)
		return m, cmd

	case modeActions:
		actions := domain.BulkActions()
		switch msg.String() {
		case "esc":
			m.mode = modeNone
			m.status = "cancelled"
			return m, nil
		case "j", "down":
			if m.actionIndex < len(actions)-1 {
				m.actionIndex++
			}
			return m, nil
		case "k", "up":
			if m.actionIndex > 0 {
				m.actionIndex--
			}
			return m, nil
		case "enter":
			return m.chooseAction(actions[clamp(m.actionIndex, 0, len(actions)-1)])
		}
		return m, nil

	case modeActionParam:
		options := m.paramOptions()
		switch msg.String() {
		case "esc":
			m.mode = modeActions
			return m, nil
		case "j", "down":
			if m.paramIndex < len(options)-1 {
				m.paramIndex++
			}
			return m, nil
		case "k", "up":
			if m.paramIndex > 0 {
				m.paramIndex--
			}
			return m, nil
		case "enter":
			return m.chooseParam(m.paramIndex)
		}
		return m, nil

	case modeConfirmAction:
		switch msg.String() {
		case "esc", "n":
			return m.cancelPending()
		case "h", "left", "l", "right":
			if m.confirmChoice == 0 {
				m.confirmChoice = 1
			} else {
				m.confirmChoice = 0
			}
			return m, nil
		case "y":
			m.confirmChoice = 0
			return m.executePending()
		case "enter":
			if m.confirmChoice == 1 {
				return m.cancelPending()
			}
			return m.executePending()
		}
		return m, nil

	case modeDetail:
		switch msg.String() {
		case "esc", "enter", "i", "q":
			m.mode = modeNone
			m.status = "ready"
		}
		return m, nil
	}
	return m, nil
}

// toggleRecord flips one row. With shift set the rows between the anchor and id take the new state.
func (m Model) toggleRecord(id string, shift bool) (tea.Model, tea.Cmd) {
	if !m.sel.IsEnabled(id) {
		m.status = "record is locked"
		return m, nil
	}
	m.applyDirectives(m.sel.ToggleRow(id, !m.sel.IsChecked(id), shift))
	m.status = m.selectionStatus()
	return m, nil
}

func (m Model) toggleAll() (tea.Model, tea.Cmd) {
	if m.sel.SelectableCount() == 0 {
		m.status = "nothing selectable on this page"
		return m, nil
	}
	m.applyDirectives(m.sel.ToggleAll(!m.aff.AllChecked))
	m.status = m.selectionStatus()
	return m, nil
}

func (m Model) clearSelection() (tea.Model, tea.Cmd) {
	if m.sel.Mode() == selection.ModeAcross {
		directives, err := m.sel.ClearAcross()
		if err == nil {
			m.applyDirectives(directives)
		}
	} else {
		m.applyDirectives(m.sel.ToggleAll(false))
	}
	m.status = "selection cleared"
	return m, nil
}

func (m Model) copySelectedIDs() (tea.Model, tea.Cmd) {
	ids := m.sel.SelectedIDs()
	if len(ids) == 0 {
		m.status = "nothing selected"
		return m, nil
	}
	if err := m.writeClipboard(strings.Join(ids, "\n")); err != nil {
		m.status = "copy failed: " + err.Error()
		return m, nil
	}
	m.status = fmt.Sprintf("copied %d %s", len(ids), plural(len(ids), "id", "ids"))
	return m, nil
}

func (m Model) selectionStatus() string {
	switch m.sel.Mode() {
	case selection.ModeNone:
		return "ready"
	case selection.ModeAcross:
		return fmt.Sprintf("all %s records selected", humanCount(m.sel.TotalCount()))
	default:
		return m.sel.CounterText()
	}
}

func (m Model) cursorRecord() (domain.Record, bool) {
	if len(m.page.Records) == 0 {
		return domain.Record{}, false
	}
	return m.page.Records[clamp(m.cursor, 0, len(m.page.Records)-1)], true
}

func (m Model) handleMouseWheel(msg tea.MouseWheelMsg) (tea.Model, tea.Cmd) {
	if m.help.ShowAll || m.mode != modeNone {
		return m, nil
	}
	switch msg.Button {
	case tea.MouseWheelUp:
		if m.cursor > 0 {
			m.cursor--
		}
	case tea.MouseWheelDown:
		if m.cursor < len(m.page.Records)-1 {
			m.cursor++
		}
	}
	return m, nil
}

// handleMouseClick toggles the clicked row. Clicking the column header toggles the page.
func (m Model) handleMouseClick(msg tea.MouseClickMsg) (tea.Model, tea.Cmd) {
	if m.help.ShowAll || m.mode != modeNone || msg.Button != tea.MouseLeft {
		return m, nil
	}
	if msg.Y == gridTop-1 {
		return m.toggleAll()
	}
	idx, ok := m.rowIndexAtY(msg.Y)
	if !ok {
		return m, nil
	}
	m.cursor = idx
	shift := msg.Mod&tea.ModShift != 0
	return m.toggleRecord(m.page.Records[idx].ID, shift)
}

func (m Model) rowIndexAtY(y int) (int, bool) {
	start, end := m.visibleRowBounds()
	idx := start + (y - gridTop)
	if y < gridTop || idx >= end {
		return 0, false
	}
	return idx, true
}

func (m Model) visibleRowBounds() (int, int) {
	return windowBounds(len(m.page.Records), m.cursor, m.gridHeight())
}

func (m Model) gridHeight() int {
	if m.height <= 0 {
		return len(m.page.Records)
	}
	return max(1, m.height-gridTop-footerLines)
}
