package tui

import (
	"context"
	"errors"
	"fmt"

	tea "charm.land/bubbletea/v2"
	"github.com/hylla/gridsel/internal/app"
	"github.com/hylla/gridsel/internal/domain"
	"github.com/hylla/gridsel/internal/selection"
)

// pendingAction is a bulk action waiting for its parameter or its confirmation.
type pendingAction struct {
	Action     domain.BulkAction
	Priority   domain.Priority
	Status     domain.Status
	Submission selection.Submission
}

type bulkActionMsg struct {
	result app.BulkActionResult
	err    error
}

// openActionMenu validates the selection before offering any action.
func (m Model) openActionMenu() (tea.Model, tea.Cmd) {
	sub := m.sel.Submission()
	if !sub.SelectAcross && len(sub.IDs) == 0 {
		m.status = noSelectionMessage
		return m, nil
	}
	m.mode = modeActions
	m.actionIndex = 0
	m.status = "actions"
	return m, nil
}

func (m Model) chooseAction(action domain.BulkAction) (tea.Model, tea.Cmd) {
	m.pending = pendingAction{
		Action:     action,
		Submission: m.sel.Submission(),
	}
	switch action {
	case domain.ActionSetPriority, domain.ActionSetStatus:
		m.mode = modeActionParam
		m.paramIndex = 0
		return m, nil
	}
	return m.confirmOrExecute()
}

func (m Model) paramOptions() []string {
	switch m.pending.Action {
	case domain.ActionSetPriority:
		out := make([]string, 0, len(priorityOptions))
		for _, p := range priorityOptions {
			out = append(out, string(p))
		}
		return out
	case domain.ActionSetStatus:
		out := make([]string, 0, len(statusOptions))
		for _, s := range statusOptions {
			out = append(out, string(s))
		}
		return out
	default:
		return nil
	}
}

func (m Model) chooseParam(idx int) (tea.Model, tea.Cmd) {
	switch m.pending.Action {
	case domain.ActionSetPriority:
		m.pending.Priority = priorityOptions[clamp(idx, 0, len(priorityOptions)-1)]
	case domain.ActionSetStatus:
		m.pending.Status = statusOptions[clamp(idx, 0, len(statusOptions)-1)]
	}
	return m.confirmOrExecute()
}

func (m Model) needsConfirm(action domain.BulkAction) bool {
	switch action {
	case domain.ActionDelete:
		return m.confirm.Delete
	case domain.ActionArchive, domain.ActionRestore:
		return m.confirm.Archive
	default:
		return m.confirm.Change
	}
}

func (m Model) confirmOrExecute() (tea.Model, tea.Cmd) {
	if m.needsConfirm(m.pending.Action) {
		m.mode = modeConfirmAction
		m.confirmChoice = 0
		m.status = "confirm action"
		return m, nil
	}
	return m.executePending()
}

func (m Model) cancelPending() (tea.Model, tea.Cmd) {
	m.mode = modeNone
	m.pending = pendingAction{}
	m.status = "cancelled"
	return m, nil
}

func (m Model) executePending() (tea.Model, tea.Cmd) {
	pending := m.pending
	m.mode = modeNone
	m.pending = pendingAction{}
	m.status = "applying action..."
	return m, m.runBulkAction(pending)
}

func (m Model) runBulkAction(p pendingAction) tea.Cmd {
	svc := m.svc
	in := app.BulkActionInput{
		Action:       p.Action,
		SelectAcross: p.Submission.SelectAcross,
		IDs:          p.Submission.IDs,
		Query:        m.query,
		Priority:     p.Priority,
		Status:       p.Status,
	}
	return func() tea.Msg {
		result, err := svc.RunBulkAction(context.Background(), in)
		return bulkActionMsg{result: result, err: err}
	}
}

// handleBulkActionResult keeps the selection on failure and starts over on success.
func (m Model) handleBulkActionResult(msg bulkActionMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		if errors.Is(msg.err, app.ErrNoSelection) {
			m.status = noSelectionMessage
		} else {
			m.status = "action failed: " + msg.err.Error()
		}
		if m.logger != nil {
			m.logger.Warn("bulk action failed", "err", msg.err)
		}
		return m, nil
	}
	if m.logger != nil {
		m.logger.Info("bulk action applied",
			"action", msg.result.Action,
			"across", msg.result.SelectAcross,
			"affected", msg.result.Affected,
			"skipped", msg.result.Skipped,
		)
	}
	m.status = msg.result.Message()
	return m, m.loadPage(nil, false)
}

// confirmPrompt describes the pending action target for the confirmation modal.
func (m Model) confirmPrompt() string {
	verb := m.pending.Action.Label()
	switch m.pending.Action {
	case domain.ActionArchive:
		verb = "Archive"
	case domain.ActionRestore:
		verb = "Restore"
	case domain.ActionDelete:
		verb = "Delete"
	case domain.ActionSetPriority:
		verb = "Set priority " + string(m.pending.Priority) + " on"
	case domain.ActionSetStatus:
		verb = "Set status " + string(m.pending.Status) + " on"
	}
	if m.pending.Submission.SelectAcross {
		return fmt.Sprintf("%s all %s records matching %s?", verb, humanCount(m.sel.TotalCount()), m.query.String())
	}
	n := len(m.pending.Submission.IDs)
	return fmt.Sprintf("%s %d %s?", verb, n, plural(n, "record", "records"))
}
