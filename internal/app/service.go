package app

import (
	"context"
	"fmt"
	"time"

	"github.com/hylla/gridsel/internal/domain"
)

// DefaultPageSize and MaxPageSize bound grid page requests.
const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	DefaultPageSize int
}

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// Service represents service data used by this package.
type Service struct {
	repo     Repository
	idGen    IDGenerator
	clock    Clock
	pageSize int
}

// NewService constructs a new value for this package.
func NewService(repo Repository, idGen IDGenerator, clock Clock, cfg ServiceConfig) *Service {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	if cfg.DefaultPageSize <= 0 || cfg.DefaultPageSize > MaxPageSize {
		cfg.DefaultPageSize = DefaultPageSize
	}

	return &Service{
		repo:     repo,
		idGen:    idGen,
		clock:    clock,
		pageSize: cfg.DefaultPageSize,
	}
}

// CreateRecordInput holds input values for create record operations.
type CreateRecordInput struct {
	Title    string
	Status   domain.Status
	Priority domain.Priority
	Notes    string
	Locked   bool
}

// CreateRecord creates record.
func (s *Service) CreateRecord(ctx context.Context, in CreateRecordInput) (domain.Record, error) {
	record, err := domain.NewRecord(domain.RecordInput{
		ID:       s.idGen(),
		Title:    in.Title,
		Status:   in.Status,
		Priority: in.Priority,
		Notes:    in.Notes,
		Locked:   in.Locked,
	}, s.clock())
	if err != nil {
		return domain.Record{}, err
	}
	if err := s.repo.CreateRecord(ctx, record); err != nil {
		return domain.Record{}, err
	}
	return record, nil
}

// GetRecord returns one record.
func (s *Service) GetRecord(ctx context.Context, id string) (domain.Record, error) {
	return s.repo.GetRecord(ctx, id)
}

// PageRequest holds input values for page listing operations. Page is 1-based.
type PageRequest struct {
	Query    domain.Query
	Page     int
	PageSize int
}

// Page is one page of records plus the total count matching the query.
type Page struct {
	Records   []domain.Record
	Query     domain.Query
	Page      int
	PageSize  int
	PageCount int
	Total     int
}

// HasNext reports whether a later page exists.
func (p Page) HasNext() bool {
	return p.Page < p.PageCount
}

// HasPrev reports whether an earlier page exists.
func (p Page) HasPrev() bool {
	return p.Page > 1
}

// ListPage lists one page of records. A page past the end is clamped to the last page.
func (s *Service) ListPage(ctx context.Context, in PageRequest) (Page, error) {
	query, err := in.Query.Normalize()
	if err != nil {
		return Page{}, err
	}
	if in.PageSize < 0 || in.PageSize > MaxPageSize {
		return Page{}, fmt.Errorf("page size %d: %w", in.PageSize, ErrInvalidPage)
	}
	if in.PageSize == 0 {
		in.PageSize = s.pageSize
	}
	if in.Page < 1 {
		in.Page = 1
	}

	total, err := s.repo.CountRecords(ctx, query)
	if err != nil {
		return Page{}, err
	}
	pageCount := max((total+in.PageSize-1)/in.PageSize, 1)
	in.Page = min(in.Page, pageCount)

	records, err := s.repo.ListRecords(ctx, query, in.PageSize, (in.Page-1)*in.PageSize)
	if err != nil {
		return Page{}, err
	}
	return Page{
		Records:   records,
		Query:     query,
		Page:      in.Page,
		PageSize:  in.PageSize,
		PageCount: pageCount,
		Total:     total,
	}, nil
}

// ListActionLog lists recent bulk action log entries, newest first.
func (s *Service) ListActionLog(ctx context.Context, limit int) ([]domain.ActionLogEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repo.ListActionLog(ctx, limit)
}
