// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidArgument reports malformed transport input.
var ErrInvalidArgument = errors.New("invalid argument")

// ErrNotFound reports missing transport-visible resources.
var ErrNotFound = errors.New("not found")

// ErrNoSelection reports a bulk action request that resolves to no records.
var ErrNoSelection = errors.New("no selection")

// QueryFilter is the wire form of a grid query.
type QueryFilter struct {
	Search          string `json:"q,omitempty"`
	Status          string `json:"status,omitempty"`
	IncludeArchived bool   `json:"include_archived,omitempty"`
}

// ListRecordsRequest captures one page request.
type ListRecordsRequest struct {
	Query    QueryFilter
	Page     int
	PageSize int
}

// RecordView is one record as returned to HTTP and MCP callers.
type RecordView struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Status     string     `json:"status"`
	Priority   string     `json:"priority"`
	Notes      string     `json:"notes,omitempty"`
	Locked     bool       `json:"locked"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ArchivedAt *time.Time `json:"archived_at,omitempty"`
}

// RecordPage is one page of records plus the query's total count.
type RecordPage struct {
	Records   []RecordView `json:"records"`
	Page      int          `json:"page"`
	PageSize  int          `json:"page_size"`
	PageCount int          `json:"page_count"`
	Total     int          `json:"total"`
}

// BulkActionRequest is the bulk action submission. When SelectAcross is true the ids are
// ignored and the action targets every record matching Query.
type BulkActionRequest struct {
	Action       string      `json:"action"`
	SelectAcross bool        `json:"select_across"`
	IDs          []string    `json:"ids,omitempty"`
	Query        QueryFilter `json:"query"`
	Priority     string      `json:"priority,omitempty"`
	Status       string      `json:"status,omitempty"`
}

// BulkActionResponse reports the outcome of one bulk action.
type BulkActionResponse struct {
	Action       string `json:"action"`
	SelectAcross bool   `json:"select_across"`
	Requested    int    `json:"requested"`
	Affected     int    `json:"affected"`
	Skipped      int    `json:"skipped"`
	LogID        string `json:"log_id"`
	Message      string `json:"message"`
}

// ActionLogItem is one action log entry.
type ActionLogItem struct {
	ID           string    `json:"id"`
	Action       string    `json:"action"`
	SelectAcross bool      `json:"select_across"`
	Query        string    `json:"query"`
	Requested    int       `json:"requested"`
	Affected     int       `json:"affected"`
	Skipped      int       `json:"skipped"`
	CreatedAt    time.Time `json:"created_at"`
}

// GridService exposes grid reads and bulk actions to transports.
type GridService interface {
	ListRecords(context.Context, ListRecordsRequest) (RecordPage, error)
	RunBulkAction(context.Context, BulkActionRequest) (BulkActionResponse, error)
	ListActionLog(context.Context, int) ([]ActionLogItem, error)
}
