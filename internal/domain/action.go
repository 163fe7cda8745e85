package domain

import (
	"slices"
	"strings"
	"time"
)

// BulkAction names an operation applied to a selection of records.
type BulkAction string

const (
	ActionArchive     BulkAction = "archive"
	ActionRestore     BulkAction = "restore"
	ActionDelete      BulkAction = "delete"
	ActionSetPriority BulkAction = "set_priority"
	ActionSetStatus   BulkAction = "set_status"
)

var validActions = []BulkAction{ActionArchive, ActionRestore, ActionDelete, ActionSetPriority, ActionSetStatus}

// BulkActions returns every supported action in menu order.
func BulkActions() []BulkAction {
	return slices.Clone(validActions)
}

// ParseBulkAction parses an action name.
func ParseBulkAction(raw string) (BulkAction, error) {
	action := BulkAction(strings.ToLower(strings.TrimSpace(raw)))
	if !slices.Contains(validActions, action) {
		return "", ErrInvalidAction
	}
	return action, nil
}

// Label returns the human readable action label.
func (a BulkAction) Label() string {
	switch a {
	case ActionArchive:
		return "Archive selected"
	case ActionRestore:
		return "Restore selected"
	case ActionDelete:
		return "Delete selected"
	case ActionSetPriority:
		return "Change priority"
	case ActionSetStatus:
		return "Change status"
	default:
		return string(a)
	}
}

// PastTense returns the verb used in result messages.
func (a BulkAction) PastTense() string {
	switch a {
	case ActionArchive:
		return "archived"
	case ActionRestore:
		return "restored"
	case ActionDelete:
		return "deleted"
	default:
		return "changed"
	}
}

// Destructive reports whether the action removes data.
func (a BulkAction) Destructive() bool {
	return a == ActionDelete
}

// ActionLogEntry records one executed bulk action.
type ActionLogEntry struct {
	ID           string
	Action       BulkAction
	SelectAcross bool
	Query        string
	Requested    int
	Affected     int
	Skipped      int
	CreatedAt    time.Time
}
