package app

import (
	"context"

	"github.com/hylla/gridsel/internal/domain"
)

// Repository represents repository data used by this package.
type Repository interface {
	CreateRecord(context.Context, domain.Record) error
	UpdateRecord(context.Context, domain.Record) error
	GetRecord(context.Context, string) (domain.Record, error)
	DeleteRecord(context.Context, string) error
	ListRecords(context.Context, domain.Query, int, int) ([]domain.Record, error)
	CountRecords(context.Context, domain.Query) (int, error)
	ListRecordIDs(context.Context, domain.Query) ([]string, error)

	CreateActionLogEntry(context.Context, domain.ActionLogEntry) error
	ListActionLog(context.Context, int) ([]domain.ActionLogEntry, error)

	// WithinTx runs fn against a repository bound to one transaction. It commits when fn
	// returns nil and rolls back every write made through the bound repository otherwise.
	WithinTx(context.Context, func(Repository) error) error
}
