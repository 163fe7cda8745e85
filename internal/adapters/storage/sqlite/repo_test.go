package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hylla/gridsel/internal/app"
	"github.com/hylla/gridsel/internal/domain"
)

func TestRepository_RecordLifecycle(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "nested", "gridsel.db")
	repo, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})

	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	rec, err := domain.NewRecord(domain.RecordInput{
		ID:       "r1",
		Title:    "Invoice 42",
		Status:   domain.StatusActive,
		Priority: domain.PriorityHigh,
		Notes:    "# Notes",
		Locked:   true,
	}, now)
	if err != nil {
		t.Fatalf("NewRecord() error = %v", err)
	}
	if err := repo.CreateRecord(ctx, rec); err != nil {
		t.Fatalf("CreateRecord() error = %v", err)
	}

	loaded, err := repo.GetRecord(ctx, "r1")
	if err != nil {
		t.Fatalf("GetRecord() error = %v", err)
	}
	if loaded.Title != "Invoice 42" || loaded.Status != domain.StatusActive || loaded.Priority != domain.PriorityHigh {
		t.Fatalf("unexpected record %#v", loaded)
	}
	if !loaded.Locked || loaded.Notes != "# Notes" || !loaded.CreatedAt.Equal(now) {
		t.Fatalf("unexpected record fields %#v", loaded)
	}

	loaded.Archive(now.Add(time.Hour))
	if err := repo.UpdateRecord(ctx, loaded); err != nil {
		t.Fatalf("UpdateRecord() error = %v", err)
	}
	archived, err := repo.GetRecord(ctx, "r1")
	if err != nil {
		t.Fatalf("GetRecord() error = %v", err)
	}
	if archived.ArchivedAt == nil || !archived.ArchivedAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("expected archived_at persisted, got %#v", archived.ArchivedAt)
	}

	if err := repo.DeleteRecord(ctx, "r1"); err != nil {
		t.Fatalf("DeleteRecord() error = %v", err)
	}
	if _, err := repo.GetRecord(ctx, "r1"); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.DeleteRecord(ctx, "r1"); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	if err := repo.UpdateRecord(ctx, loaded); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update, got %v", err)
	}
}

func TestRepository_QueryFiltering(t *testing.T) {
	ctx := context.Background()
	repo, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})

	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 6; i++ {
		status := domain.StatusDraft
		if i%2 == 0 {
			status = domain.StatusActive
		}
		rec, err := domain.NewRecord(domain.RecordInput{
			ID:     fmt.Sprintf("r%d", i),
			Title:  fmt.Sprintf("Report %d", i),
			Status: status,
		}, now.Add(time.Duration(i)*time.Minute))
		if err != nil {
			t.Fatalf("NewRecord() error = %v", err)
		}
		if i == 5 {
			rec.Archive(now)
		}
		if err := repo.CreateRecord(ctx, rec); err != nil {
			t.Fatalf("CreateRecord() error = %v", err)
		}
	}
	odd, _ := domain.NewRecord(domain.RecordInput{ID: "x", Title: "100%_done"}, now.Add(time.Hour))
	if err := repo.CreateRecord(ctx, odd); err != nil {
		t.Fatalf("CreateRecord() error = %v", err)
	}

	total, err := repo.CountRecords(ctx, domain.Query{Search: "REPORT"})
	if err != nil {
		t.Fatalf("CountRecords() error = %v", err)
	}
	if total != 5 {
		t.Fatalf("expected 5 unarchived reports, got %d", total)
	}
	withArchived, err := repo.CountRecords(ctx, domain.Query{Search: "report", IncludeArchived: true})
	if err != nil {
		t.Fatalf("CountRecords() error = %v", err)
	}
	if withArchived != 6 {
		t.Fatalf("expected 6 reports with archived, got %d", withArchived)
	}

	page, err := repo.ListRecords(ctx, domain.Query{Search: "report"}, 2, 2)
	if err != nil {
		t.Fatalf("ListRecords() error = %v", err)
	}
	if len(page) != 2 || page[0].ID != "r2" || page[1].ID != "r3" {
		t.Fatalf("unexpected page %#v", page)
	}

	ids, err := repo.ListRecordIDs(ctx, domain.Query{Status: domain.StatusActive})
	if err != nil {
		t.Fatalf("ListRecordIDs() error = %v", err)
	}
	if fmt.Sprint(ids) != "[r0 r2 r4]" {
		t.Fatalf("unexpected active ids %v", ids)
	}

	escaped, err := repo.CountRecords(ctx, domain.Query{Search: "%_"})
	if err != nil {
		t.Fatalf("CountRecords() error = %v", err)
	}
	if escaped != 1 {
		t.Fatalf("expected LIKE wildcards to be escaped, got %d matches", escaped)
	}
}

func TestRepository_ActionLog(t *testing.T) {
	ctx := context.Background()
	repo, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})

	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	for i, action := range []domain.BulkAction{domain.ActionArchive, domain.ActionDelete, domain.ActionSetStatus} {
		err := repo.CreateActionLogEntry(ctx, domain.ActionLogEntry{
			ID:           fmt.Sprintf("l%d", i),
			Action:       action,
			SelectAcross: i == 1,
			Query:        "all",
			Requested:    3,
			Affected:     2,
			Skipped:      1,
			CreatedAt:    now.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("CreateActionLogEntry() error = %v", err)
		}
	}

	entries, err := repo.ListActionLog(ctx, 2)
	if err != nil {
		t.Fatalf("ListActionLog() error = %v", err)
	}
	if len(entries) != 2 || entries[0].ID != "l2" || entries[1].ID != "l1" {
		t.Fatalf("unexpected entries %#v", entries)
	}
	if !entries[1].SelectAcross || entries[1].Action != domain.ActionDelete || entries[1].Skipped != 1 {
		t.Fatalf("unexpected entry fields %#v", entries[1])
	}
}

func TestRepository_ServiceIntegration(t *testing.T) {
	ctx := context.Background()
	repo, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})

	n := 0
	svc := app.NewService(repo, func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}, nil, app.ServiceConfig{DefaultPageSize: 3})
	for i := 0; i < 7; i++ {
		if _, err := svc.CreateRecord(ctx, app.CreateRecordInput{Title: fmt.Sprintf("Row %d", i), Locked: i == 4}); err != nil {
			t.Fatalf("CreateRecord() error = %v", err)
		}
	}

	result, err := svc.RunBulkAction(ctx, app.BulkActionInput{Action: domain.ActionArchive, SelectAcross: true})
	if err != nil {
		t.Fatalf("RunBulkAction() error = %v", err)
	}
	if result.Affected != 6 || result.Skipped != 1 {
		t.Fatalf("unexpected result %#v", result)
	}
	page, err := svc.ListPage(ctx, app.PageRequest{})
	if err != nil {
		t.Fatalf("ListPage() error = %v", err)
	}
	if page.Total != 1 || page.Records[0].Title != "Row 4" {
		t.Fatalf("expected only the locked record left, got %#v", page)
	}
}

func TestRepository_SearchMatchesDomainFilter(t *testing.T) {
	ctx := context.Background()
	repo, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})

	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	titles := []string{"ÉCOLE report", "école notes", "Straße plan", "STRASSE audit", "ÜBER Invoice", "100%_done", "plain Report"}
	records := make([]domain.Record, 0, len(titles))
	for i, title := range titles {
		rec, err := domain.NewRecord(domain.RecordInput{ID: fmt.Sprintf("u%d", i), Title: title}, now.Add(time.Duration(i)*time.Minute))
		if err != nil {
			t.Fatalf("NewRecord() error = %v", err)
		}
		if err := repo.CreateRecord(ctx, rec); err != nil {
			t.Fatalf("CreateRecord() error = %v", err)
		}
		records = append(records, rec)
	}

	count, err := repo.CountRecords(ctx, domain.Query{Search: "école"})
	if err != nil {
		t.Fatalf("CountRecords() error = %v", err)
	}
	if count != 2 {
		t.Fatalf("expected both école titles to match, got %d", count)
	}

	for _, search := range []string{"école", "ÉCOLE", "straße", "über", "REPORT", "%_", "  plain ", "missing"} {
		q := domain.Query{Search: search}
		want := []string{}
		for _, rec := range records {
			if q.Matches(rec) {
				want = append(want, rec.ID)
			}
		}
		got, err := repo.ListRecordIDs(ctx, q)
		if err != nil {
			t.Fatalf("ListRecordIDs(%q) error = %v", search, err)
		}
		if fmt.Sprint(got) != fmt.Sprint(want) {
			t.Fatalf("search %q: sqlite selected %v, Matches selected %v", search, got, want)
		}
		n, err := repo.CountRecords(ctx, q)
		if err != nil {
			t.Fatalf("CountRecords(%q) error = %v", search, err)
		}
		if n != len(want) {
			t.Fatalf("search %q: expected count %d, got %d", search, len(want), n)
		}
	}

	renamed := records[6]
	renamed.Title = "Ñandú sighting"
	if err := repo.UpdateRecord(ctx, renamed); err != nil {
		t.Fatalf("UpdateRecord() error = %v", err)
	}
	ids, err := repo.ListRecordIDs(ctx, domain.Query{Search: "ñandú"})
	if err != nil {
		t.Fatalf("ListRecordIDs() error = %v", err)
	}
	if fmt.Sprint(ids) != "[u6]" {
		t.Fatalf("expected updated title to be searchable, got %v", ids)
	}
}

func TestRepository_WithinTxRollsBack(t *testing.T) {
	ctx := context.Background()
	repo, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})

	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	rec, _ := domain.NewRecord(domain.RecordInput{ID: "r1", Title: "Invoice"}, now)
	if err := repo.CreateRecord(ctx, rec); err != nil {
		t.Fatalf("CreateRecord() error = %v", err)
	}

	boom := errors.New("boom")
	err = repo.WithinTx(ctx, func(tx app.Repository) error {
		if err := tx.DeleteRecord(ctx, "r1"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	if _, err := repo.GetRecord(ctx, "r1"); err != nil {
		t.Fatalf("expected delete to roll back, got %v", err)
	}

	err = repo.WithinTx(ctx, func(tx app.Repository) error {
		return tx.DeleteRecord(ctx, "r1")
	})
	if err != nil {
		t.Fatalf("WithinTx() error = %v", err)
	}
	if _, err := repo.GetRecord(ctx, "r1"); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected committed delete, got %v", err)
	}
}

// flakyRepo fails the n-th UpdateRecord issued through any transaction it opens.
type flakyRepo struct {
	*Repository
	failAt  int
	updates *int
}

func (f flakyRepo) UpdateRecord(ctx context.Context, rec domain.Record) error {
	*f.updates++
	if *f.updates == f.failAt {
		return errors.New("disk full")
	}
	return f.Repository.UpdateRecord(ctx, rec)
}

func (f flakyRepo) WithinTx(ctx context.Context, fn func(app.Repository) error) error {
	return f.Repository.WithinTx(ctx, func(tx app.Repository) error {
		return fn(flakyRepo{Repository: tx.(*Repository), failAt: f.failAt, updates: f.updates})
	})
}

func TestRepository_BulkActionFailureLeavesNoPartialChange(t *testing.T) {
	ctx := context.Background()
	repo, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})

	updates := 0
	flaky := flakyRepo{Repository: repo, failAt: 2, updates: &updates}
	n := 0
	svc := app.NewService(flaky, func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}, nil, app.ServiceConfig{})
	for _, title := range []string{"a", "b", "c"} {
		if _, err := svc.CreateRecord(ctx, app.CreateRecordInput{Title: title}); err != nil {
			t.Fatalf("CreateRecord() error = %v", err)
		}
	}

	_, err = svc.RunBulkAction(ctx, app.BulkActionInput{Action: domain.ActionArchive, IDs: []string{"id-1", "id-2", "id-3"}})
	if err == nil || !strings.Contains(err.Error(), `archive record "id-2": disk full`) {
		t.Fatalf("expected failure on the second record, got %v", err)
	}
	visible, err := repo.CountRecords(ctx, domain.Query{})
	if err != nil {
		t.Fatalf("CountRecords() error = %v", err)
	}
	if visible != 3 {
		t.Fatalf("expected no record archived after rollback, got %d visible", visible)
	}
	entries, err := repo.ListActionLog(ctx, 10)
	if err != nil {
		t.Fatalf("ListActionLog() error = %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no action log entry, got %#v", entries)
	}
}

func TestOpenBackfillsFoldedTitles(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "legacy.db")
	repo, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	rec, _ := domain.NewRecord(domain.RecordInput{ID: "r1", Title: "ÉCOLE report"}, now)
	if err := repo.CreateRecord(ctx, rec); err != nil {
		t.Fatalf("CreateRecord() error = %v", err)
	}
	if _, err := repo.db.ExecContext(ctx, `UPDATE records SET title_folded = ''`); err != nil {
		t.Fatalf("clear folded titles: %v", err)
	}
	_ = repo.Close()

	reopened, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open() reopen error = %v", err)
	}
	t.Cleanup(func() {
		_ = reopened.Close()
	})
	n, err := reopened.CountRecords(ctx, domain.Query{Search: "école"})
	if err != nil {
		t.Fatalf("CountRecords() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("expected backfilled title to match, got %d", n)
	}
}
