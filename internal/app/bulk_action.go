package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hylla/gridsel/internal/domain"
)

// BulkActionInput holds input values for bulk action operations. With SelectAcross set the
// targets are every record matching Query and IDs is ignored.
type BulkActionInput struct {
	Action       domain.BulkAction
	SelectAcross bool
	IDs          []string
	Query        domain.Query
	Priority     domain.Priority
	Status       domain.Status
}

// BulkActionResult reports the outcome of one bulk action.
type BulkActionResult struct {
	Action       domain.BulkAction
	SelectAcross bool
	Requested    int
	Affected     int
	Skipped      int
	LogID        string
}

// Message renders the user facing summary.
func (r BulkActionResult) Message() string {
	msg := fmt.Sprintf("Successfully %s %d %s", r.Action.PastTense(), r.Affected, plural(r.Affected, "record", "records"))
	if r.Skipped > 0 {
		msg += fmt.Sprintf(", skipped %d", r.Skipped)
	}
	return msg
}

// RunBulkAction applies an action to an explicit id list or to every record matching a query.
// Locked, missing and unchanged records count as skipped. The changes and their action log
// entry commit together; any record failure rolls the whole action back.
func (s *Service) RunBulkAction(ctx context.Context, in BulkActionInput) (BulkActionResult, error) {
	action, err := domain.ParseBulkAction(string(in.Action))
	if err != nil {
		return BulkActionResult{}, err
	}
	in, err = normalizeActionParams(action, in)
	if err != nil {
		return BulkActionResult{}, err
	}
	query, err := in.Query.Normalize()
	if err != nil {
		return BulkActionResult{}, err
	}

	var result BulkActionResult
	err = s.repo.WithinTx(ctx, func(repo Repository) error {
		var ids []string
		if in.SelectAcross {
			across, err := repo.ListRecordIDs(ctx, query)
			if err != nil {
				return fmt.Errorf("resolve across selection: %w", err)
			}
			ids = across
		} else {
			ids = dedupeIDs(in.IDs)
		}
		if len(ids) == 0 {
			return ErrNoSelection
		}

		result = BulkActionResult{Action: action, SelectAcross: in.SelectAcross, Requested: len(ids)}
		for _, id := range ids {
			applied, err := s.applyAction(ctx, repo, action, id, in)
			if err != nil {
				return fmt.Errorf("%s record %q: %w", action, id, err)
			}
			if applied {
				result.Affected++
			} else {
				result.Skipped++
			}
		}

		entry := domain.ActionLogEntry{
			ID:           s.idGen(),
			Action:       action,
			SelectAcross: in.SelectAcross,
			Query:        describeTargets(in.SelectAcross, query, len(ids)),
			Requested:    result.Requested,
			Affected:     result.Affected,
			Skipped:      result.Skipped,
			CreatedAt:    s.clock().UTC(),
		}
		if err := repo.CreateActionLogEntry(ctx, entry); err != nil {
			return fmt.Errorf("write action log: %w", err)
		}
		result.LogID = entry.ID
		return nil
	})
	if err != nil {
		return BulkActionResult{}, err
	}
	return result, nil
}

// applyAction applies one action to one record and reports whether it changed anything.
func (s *Service) applyAction(ctx context.Context, repo Repository, action domain.BulkAction, id string, in BulkActionInput) (bool, error) {
	record, err := repo.GetRecord(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if record.Locked {
		return false, nil
	}

	now := s.clock()
	switch action {
	case domain.ActionDelete:
		return true, repo.DeleteRecord(ctx, id)
	case domain.ActionArchive:
		if record.Archived() {
			return false, nil
		}
		record.Archive(now)
	case domain.ActionRestore:
		if !record.Archived() {
			return false, nil
		}
		record.Restore(now)
	case domain.ActionSetPriority:
		if record.Priority == in.Priority {
			return false, nil
		}
		if err := record.SetPriority(in.Priority, now); err != nil {
			return false, err
		}
	case domain.ActionSetStatus:
		if record.Status == in.Status {
			return false, nil
		}
		if err := record.SetStatus(in.Status, now); err != nil {
			return false, err
		}
	}
	return true, repo.UpdateRecord(ctx, record)
}

// normalizeActionParams checks the parameter an action needs and normalizes it.
func normalizeActionParams(action domain.BulkAction, in BulkActionInput) (BulkActionInput, error) {
	var err error
	switch action {
	case domain.ActionSetPriority:
		if in.Priority == "" {
			return in, fmt.Errorf("priority: %w", ErrMissingParameter)
		}
		in.Priority, err = domain.ParsePriority(string(in.Priority))
	case domain.ActionSetStatus:
		if in.Status == "" {
			return in, fmt.Errorf("status: %w", ErrMissingParameter)
		}
		in.Status, err = domain.ParseStatus(string(in.Status))
	}
	return in, err
}

func describeTargets(across bool, query domain.Query, n int) string {
	if across {
		return "across " + query.String()
	}
	return fmt.Sprintf("ids(%d)", n)
}

func dedupeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
