package domain

import (
	"slices"
	"strings"
	"time"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

var validPriorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// ParsePriority parses and normalizes a priority value.
func ParsePriority(raw string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(raw)))
	if !slices.Contains(validPriorities, p) {
		return "", ErrInvalidPriority
	}
	return p, nil
}

type Status string

const (
	StatusDraft  Status = "draft"
	StatusActive Status = "active"
	StatusClosed Status = "closed"
)

var validStatuses = []Status{StatusDraft, StatusActive, StatusClosed}

// ParseStatus parses and normalizes a status value.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !slices.Contains(validStatuses, s) {
		return "", ErrInvalidStatus
	}
	return s, nil
}

// Record is one row of the admin grid. Locked records render as disabled rows.
type Record struct {
	ID         string
	Title      string
	Status     Status
	Priority   Priority
	Notes      string
	Locked     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
	ArchivedAt *time.Time
}

type RecordInput struct {
	ID       string
	Title    string
	Status   Status
	Priority Priority
	Notes    string
	Locked   bool
}

func NewRecord(in RecordInput, now time.Time) (Record, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Title = strings.TrimSpace(in.Title)
	in.Notes = strings.TrimSpace(in.Notes)

	if in.ID == "" {
		return Record{}, ErrInvalidID
	}
	if in.Title == "" {
		return Record{}, ErrInvalidTitle
	}

	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	if !slices.Contains(validPriorities, in.Priority) {
		return Record{}, ErrInvalidPriority
	}
	if in.Status == "" {
		in.Status = StatusDraft
	}
	if !slices.Contains(validStatuses, in.Status) {
		return Record{}, ErrInvalidStatus
	}

	return Record{
		ID:        in.ID,
		Title:     in.Title,
		Status:    in.Status,
		Priority:  in.Priority,
		Notes:     in.Notes,
		Locked:    in.Locked,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}, nil
}

// Archived reports whether the record is archived.
func (r Record) Archived() bool {
	return r.ArchivedAt != nil
}

func (r *Record) SetPriority(priority Priority, now time.Time) error {
	if !slices.Contains(validPriorities, priority) {
		return ErrInvalidPriority
	}
	r.Priority = priority
	r.UpdatedAt = now.UTC()
	return nil
}

func (r *Record) SetStatus(status Status, now time.Time) error {
	if !slices.Contains(validStatuses, status) {
		return ErrInvalidStatus
	}
	r.Status = status
	r.UpdatedAt = now.UTC()
	return nil
}

func (r *Record) Archive(now time.Time) {
	ts := now.UTC()
	r.ArchivedAt = &ts
	r.UpdatedAt = ts
}

func (r *Record) Restore(now time.Time) {
	r.ArchivedAt = nil
	r.UpdatedAt = now.UTC()
}
