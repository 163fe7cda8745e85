package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hylla/gridsel/internal/app"
	"github.com/hylla/gridsel/internal/domain"
	_ "modernc.org/sqlite"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// conn is the query surface shared by *sql.DB and *sql.Tx.
type conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repository represents repository data used by this package.
type Repository struct {
	db   *sql.DB
	conn conn
	inTx bool
}

// Open opens the database at path, creating its directory and schema.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	repo := &Repository{db: db, conn: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// OpenInMemory opens a private in-memory database.
func OpenInMemory() (*Repository, error) {
	db, err := sql.Open(driverName, ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	// Every pooled connection would otherwise get its own empty database.
	db.SetMaxOpenConns(1)
	repo := &Repository{db: db, conn: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the underlying database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// WithinTx runs fn against a repository bound to one transaction. Nested calls reuse the open transaction.
func (r *Repository) WithinTx(ctx context.Context, fn func(app.Repository) error) (err error) {
	if r.inTx {
		return fn(r)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sqlite tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&Repository{db: r.db, conn: tx, inTx: true}); err != nil {
		return err
	}
	err = tx.Commit()
	return err
}

// migrate handles migrate.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS records (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			title_folded TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'draft',
			priority TEXT NOT NULL DEFAULT 'medium',
			notes TEXT NOT NULL DEFAULT '',
			locked INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			archived_at TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_records_archived_title ON records(archived_at, title);`,
		`CREATE TABLE IF NOT EXISTS action_log (
			id TEXT PRIMARY KEY,
			action TEXT NOT NULL,
			select_across INTEGER NOT NULL DEFAULT 0,
			query TEXT NOT NULL DEFAULT '',
			requested INTEGER NOT NULL DEFAULT 0,
			affected INTEGER NOT NULL DEFAULT 0,
			skipped INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	if _, err := r.db.ExecContext(ctx, `ALTER TABLE records ADD COLUMN title_folded TEXT NOT NULL DEFAULT ''`); err != nil && !isDuplicateColumnErr(err) {
		return fmt.Errorf("migrate sqlite add records.title_folded: %w", err)
	}
	return r.backfillFoldedTitles(ctx)
}

// backfillFoldedTitles fills title_folded for rows written before the column existed.
func (r *Repository) backfillFoldedTitles(ctx context.Context) error {
	rows, err := r.db.QueryContext(ctx, `SELECT id, title FROM records WHERE title_folded = '' AND title <> ''`)
	if err != nil {
		return fmt.Errorf("migrate sqlite scan titles: %w", err)
	}
	pending := map[string]string{}
	for rows.Next() {
		var id, title string
		if err := rows.Scan(&id, &title); err != nil {
			_ = rows.Close()
			return fmt.Errorf("migrate sqlite scan titles: %w", err)
		}
		pending[id] = title
	}
	if err := rows.Close(); err != nil {
		return err
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for id, title := range pending {
		if _, err := r.db.ExecContext(ctx, `UPDATE records SET title_folded = ? WHERE id = ?`, domain.FoldText(title), id); err != nil {
			return fmt.Errorf("migrate sqlite fold title %q: %w", id, err)
		}
	}
	return nil
}

// CreateRecord creates record.
func (r *Repository) CreateRecord(ctx context.Context, rec domain.Record) error {
	_, err := r.conn.ExecContext(ctx, `
		INSERT INTO records(id, title, title_folded, status, priority, notes, locked, created_at, updated_at, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Title, domain.FoldText(rec.Title), string(rec.Status), string(rec.Priority), rec.Notes, boolInt(rec.Locked), ts(rec.CreatedAt), ts(rec.UpdatedAt), nullableTS(rec.ArchivedAt))
	return err
}

// UpdateRecord updates state for the requested operation.
func (r *Repository) UpdateRecord(ctx context.Context, rec domain.Record) error {
	res, err := r.conn.ExecContext(ctx, `
		UPDATE records
		SET title = ?, title_folded = ?, status = ?, priority = ?, notes = ?, locked = ?, updated_at = ?, archived_at = ?
		WHERE id = ?
	`, rec.Title, domain.FoldText(rec.Title), string(rec.Status), string(rec.Priority), rec.Notes, boolInt(rec.Locked), ts(rec.UpdatedAt), nullableTS(rec.ArchivedAt), rec.ID)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// GetRecord returns record.
func (r *Repository) GetRecord(ctx context.Context, id string) (domain.Record, error) {
	row := r.conn.QueryRowContext(ctx, `
		SELECT id, title, status, priority, notes, locked, created_at, updated_at, archived_at
		FROM records
		WHERE id = ?
	`, id)
	return scanRecord(row)
}

// DeleteRecord deletes record.
func (r *Repository) DeleteRecord(ctx context.Context, id string) error {
	res, err := r.conn.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// ListRecords lists one window of records matching q in creation order.
func (r *Repository) ListRecords(ctx context.Context, q domain.Query, limit, offset int) ([]domain.Record, error) {
	where, args := whereClause(q)
	query := `
		SELECT id, title, status, priority, notes, locked, created_at, updated_at, archived_at
		FROM records` + where + `
		ORDER BY created_at ASC, rowid ASC
		LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CountRecords counts records matching q.
func (r *Repository) CountRecords(ctx context.Context, q domain.Query) (int, error) {
	where, args := whereClause(q)
	var n int
	if err := r.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`+where, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// ListRecordIDs lists every id matching q in creation order.
func (r *Repository) ListRecordIDs(ctx context.Context, q domain.Query) ([]string, error) {
	where, args := whereClause(q)
	rows, err := r.conn.QueryContext(ctx, `SELECT id FROM records`+where+` ORDER BY created_at ASC, rowid ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// CreateActionLogEntry creates action log entry.
func (r *Repository) CreateActionLogEntry(ctx context.Context, e domain.ActionLogEntry) error {
	_, err := r.conn.ExecContext(ctx, `
		INSERT INTO action_log(id, action, select_across, query, requested, affected, skipped, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, string(e.Action), boolInt(e.SelectAcross), e.Query, e.Requested, e.Affected, e.Skipped, ts(e.CreatedAt))
	return err
}

// ListActionLog lists the newest log entries first.
func (r *Repository) ListActionLog(ctx context.Context, limit int) ([]domain.ActionLogEntry, error) {
	rows, err := r.conn.QueryContext(ctx, `
		SELECT id, action, select_across, query, requested, affected, skipped, created_at
		FROM action_log
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.ActionLogEntry{}
	for rows.Next() {
		var (
			e          domain.ActionLogEntry
			action     string
			across     int
			createdRaw string
		)
		if err := rows.Scan(&e.ID, &action, &across, &e.Query, &e.Requested, &e.Affected, &e.Skipped, &createdRaw); err != nil {
			return nil, err
		}
		e.Action = domain.BulkAction(action)
		e.SelectAcross = across != 0
		e.CreatedAt = parseTS(createdRaw)
		out = append(out, e)
	}
	return out, rows.Err()
}

// whereClause builds the filter shared by list, count and id queries. It selects exactly the
// records domain.Query.Matches accepts.
func whereClause(q domain.Query) (string, []any) {
	conds := []string{}
	args := []any{}
	if !q.IncludeArchived {
		conds = append(conds, `archived_at IS NULL`)
	}
	if q.Status != "" {
		conds = append(conds, `status = ?`)
		args = append(args, string(q.Status))
	}
	if search := strings.TrimSpace(q.Search); search != "" {
		conds = append(conds, `title_folded LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(domain.FoldText(search))+"%")
	}
	if len(conds) == 0 {
		return "", args
	}
	return ` WHERE ` + strings.Join(conds, ` AND `), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

type scanner interface {
	Scan(dest ...any) error
}

// scanRecord handles scan record.
func scanRecord(s scanner) (domain.Record, error) {
	var (
		rec        domain.Record
		status     string
		priority   string
		locked     int
		createdRaw string
		updatedRaw string
		archived   sql.NullString
	)
	if err := s.Scan(&rec.ID, &rec.Title, &status, &priority, &rec.Notes, &locked, &createdRaw, &updatedRaw, &archived); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Record{}, app.ErrNotFound
		}
		return domain.Record{}, err
	}
	rec.Status = domain.Status(status)
	rec.Priority = domain.Priority(priority)
	rec.Locked = locked != 0
	rec.CreatedAt = parseTS(createdRaw)
	rec.UpdatedAt = parseTS(updatedRaw)
	rec.ArchivedAt = parseNullTS(archived)
	return rec, nil
}

// translateNoRows handles translate no rows.
func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return app.ErrNotFound
	}
	return nil
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

// ts handles ts.
func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// nullableTS handles nullable ts.
func nullableTS(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTS parses input into a normalized form.
func parseTS(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

// parseNullTS parses input into a normalized form.
func parseNullTS(v sql.NullString) *time.Time {
	if !v.Valid || strings.TrimSpace(v.String) == "" {
		return nil
	}
	ts := parseTS(v.String)
	return &ts
}

func isDuplicateColumnErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "duplicate column name")
}
