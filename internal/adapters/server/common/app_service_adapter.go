package common

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hylla/gridsel/internal/app"
	"github.com/hylla/gridsel/internal/domain"
)

// AppServiceAdapter maps transport contracts onto app.Service grid APIs.
type AppServiceAdapter struct {
	service *app.Service
}

// NewAppServiceAdapter builds one common adapter over an app.Service instance.
func NewAppServiceAdapter(service *app.Service) *AppServiceAdapter {
	return &AppServiceAdapter{service: service}
}

// ListRecords lists one page of records.
func (a *AppServiceAdapter) ListRecords(ctx context.Context, in ListRecordsRequest) (RecordPage, error) {
	if a == nil || a.service == nil {
		return RecordPage{}, fmt.Errorf("app service adapter is not configured: %w", ErrInvalidArgument)
	}
	page, err := a.service.ListPage(ctx, app.PageRequest{
		Query:    toDomainQuery(in.Query),
		Page:     in.Page,
		PageSize: in.PageSize,
	})
	if err != nil {
		return RecordPage{}, mapAppError("list records", err)
	}
	out := RecordPage{
		Records:   make([]RecordView, 0, len(page.Records)),
		Page:      page.Page,
		PageSize:  page.PageSize,
		PageCount: page.PageCount,
		Total:     page.Total,
	}
	for _, rec := range page.Records {
		out.Records = append(out.Records, toRecordView(rec))
	}
	return out, nil
}

// RunBulkAction runs one bulk action submission.
func (a *AppServiceAdapter) RunBulkAction(ctx context.Context, in BulkActionRequest) (BulkActionResponse, error) {
	if a == nil || a.service == nil {
		return BulkActionResponse{}, fmt.Errorf("app service adapter is not configured: %w", ErrInvalidArgument)
	}
	if strings.TrimSpace(in.Action) == "" {
		return BulkActionResponse{}, fmt.Errorf("action is required: %w", ErrInvalidArgument)
	}
	result, err := a.service.RunBulkAction(ctx, app.BulkActionInput{
		Action:       domain.BulkAction(in.Action),
		SelectAcross: in.SelectAcross,
		IDs:          in.IDs,
		Query:        toDomainQuery(in.Query),
		Priority:     domain.Priority(in.Priority),
		Status:       domain.Status(in.Status),
	})
	if err != nil {
		return BulkActionResponse{}, mapAppError("run bulk action", err)
	}
	return BulkActionResponse{
		Action:       string(result.Action),
		SelectAcross: result.SelectAcross,
		Requested:    result.Requested,
		Affected:     result.Affected,
		Skipped:      result.Skipped,
		LogID:        result.LogID,
		Message:      result.Message(),
	}, nil
}

// ListActionLog lists recent bulk action log entries.
func (a *AppServiceAdapter) ListActionLog(ctx context.Context, limit int) ([]ActionLogItem, error) {
	if a == nil || a.service == nil {
		return nil, fmt.Errorf("app service adapter is not configured: %w", ErrInvalidArgument)
	}
	entries, err := a.service.ListActionLog(ctx, limit)
	if err != nil {
		return nil, mapAppError("list action log", err)
	}
	out := make([]ActionLogItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, ActionLogItem{
			ID:           e.ID,
			Action:       string(e.Action),
			SelectAcross: e.SelectAcross,
			Query:        e.Query,
			Requested:    e.Requested,
			Affected:     e.Affected,
			Skipped:      e.Skipped,
			CreatedAt:    e.CreatedAt,
		})
	}
	return out, nil
}

// toDomainQuery converts a wire filter into a domain query.
func toDomainQuery(in QueryFilter) domain.Query {
	return domain.Query{
		Search:          in.Search,
		Status:          domain.Status(in.Status),
		IncludeArchived: in.IncludeArchived,
	}
}

// toRecordView converts one domain record to its transport form.
func toRecordView(rec domain.Record) RecordView {
	return RecordView{
		ID:         rec.ID,
		Title:      rec.Title,
		Status:     string(rec.Status),
		Priority:   string(rec.Priority),
		Notes:      rec.Notes,
		Locked:     rec.Locked,
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
		ArchivedAt: rec.ArchivedAt,
	}
}

// mapAppError maps app and domain errors into transport error classes.
func mapAppError(operation string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, app.ErrNotFound):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNotFound, err))
	case errors.Is(err, app.ErrNoSelection):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNoSelection, err))
	case errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidTitle),
		errors.Is(err, domain.ErrInvalidPriority),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidAction),
		errors.Is(err, app.ErrInvalidPage),
		errors.Is(err, app.ErrMissingParameter):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidArgument, err))
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}
