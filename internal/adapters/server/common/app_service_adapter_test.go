package common

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hylla/gridsel/internal/adapters/storage/sqlite"
	"github.com/hylla/gridsel/internal/app"
)

// newAdapterFixture builds an adapter over an in-memory repository seeded with n records.
func newAdapterFixture(t *testing.T, n int, locked ...int) (*AppServiceAdapter, *app.Service) {
	t.Helper()
	repo, err := sqlite.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})

	seq := 0
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	svc := app.NewService(repo, func() string {
		seq++
		return fmt.Sprintf("id-%03d", seq)
	}, func() time.Time { return now }, app.ServiceConfig{DefaultPageSize: 5})

	lockedSet := map[int]bool{}
	for _, i := range locked {
		lockedSet[i] = true
	}
	for i := 0; i < n; i++ {
		if _, err := svc.CreateRecord(context.Background(), app.CreateRecordInput{
			Title:  fmt.Sprintf("Record %d", i),
			Locked: lockedSet[i],
		}); err != nil {
			t.Fatalf("CreateRecord() error = %v", err)
		}
	}
	return NewAppServiceAdapter(svc), svc
}

// TestAppServiceAdapterListRecords verifies paging metadata survives the mapping.
func TestAppServiceAdapterListRecords(t *testing.T) {
	adapter, _ := newAdapterFixture(t, 12)
	page, err := adapter.ListRecords(context.Background(), ListRecordsRequest{Page: 3})
	if err != nil {
		t.Fatalf("ListRecords() error = %v", err)
	}
	if page.Total != 12 || page.PageCount != 3 || page.Page != 3 || len(page.Records) != 2 {
		t.Fatalf("unexpected page %#v", page)
	}
	if page.Records[0].Title != "Record 10" || page.Records[0].Status != "draft" {
		t.Fatalf("unexpected first record %#v", page.Records[0])
	}

	_, err = adapter.ListRecords(context.Background(), ListRecordsRequest{Query: QueryFilter{Status: "bogus"}})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

// TestAppServiceAdapterRunBulkActionAcross verifies across submissions ignore ids.
func TestAppServiceAdapterRunBulkActionAcross(t *testing.T) {
	adapter, _ := newAdapterFixture(t, 8, 2)
	resp, err := adapter.RunBulkAction(context.Background(), BulkActionRequest{
		Action:       "set_status",
		SelectAcross: true,
		IDs:          []string{"id-001"},
		Status:       "closed",
	})
	if err != nil {
		t.Fatalf("RunBulkAction() error = %v", err)
	}
	if resp.Requested != 8 || resp.Affected != 7 || resp.Skipped != 1 {
		t.Fatalf("unexpected response %#v", resp)
	}
	if resp.Message != "Successfully changed 7 records, skipped 1" {
		t.Fatalf("unexpected message %q", resp.Message)
	}

	entries, err := adapter.ListActionLog(context.Background(), 5)
	if err != nil {
		t.Fatalf("ListActionLog() error = %v", err)
	}
	if len(entries) != 1 || entries[0].ID != resp.LogID || !entries[0].SelectAcross {
		t.Fatalf("unexpected log entries %#v", entries)
	}
}

// TestAppServiceAdapterErrorMapping verifies app errors become transport error classes.
func TestAppServiceAdapterErrorMapping(t *testing.T) {
	adapter, _ := newAdapterFixture(t, 1)
	ctx := context.Background()

	if _, err := adapter.RunBulkAction(ctx, BulkActionRequest{}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for missing action, got %v", err)
	}
	if _, err := adapter.RunBulkAction(ctx, BulkActionRequest{Action: "nope", IDs: []string{"id-001"}}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for unknown action, got %v", err)
	}
	if _, err := adapter.RunBulkAction(ctx, BulkActionRequest{Action: "archive"}); !errors.Is(err, ErrNoSelection) {
		t.Fatalf("expected ErrNoSelection, got %v", err)
	}
	if _, err := (*AppServiceAdapter)(nil).ListActionLog(ctx, 1); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for nil adapter, got %v", err)
	}
	if err := mapAppError("get", app.ErrNotFound); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
