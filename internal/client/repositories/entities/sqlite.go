package entities

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/tabkeeper/internal/client/models"
	"github.com/dmitrijs2005/tabkeeper/internal/common"
	"github.com/dmitrijs2005/tabkeeper/internal/dbx"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const (
	workspaceColumns  = `id, sort_order, created_at, updated_at, deleted_at, name`
	collectionColumns = `id, sort_order, created_at, updated_at, deleted_at, workspace_id, name`
	tabColumns        = `id, sort_order, created_at, updated_at, deleted_at, collection_id, title, url, favicon_url`

	changedSinceClause = ` WHERE COALESCE(deleted_at, updated_at) > ? ORDER BY sort_order, rowid`
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func nullable(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func scanSyncable(s *models.Syncable, deletedAt sql.NullInt64) {
	if deletedAt.Valid {
		v := deletedAt.Int64
		s.DeletedAt = &v
	}
}

func (r *SQLiteRepository) UpsertWorkspace(ctx context.Context, w *models.Workspace) error {
	query := `INSERT INTO workspaces (` + workspaceColumns + `)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET sort_order = excluded.sort_order,
			updated_at = excluded.updated_at,
			deleted_at = excluded.deleted_at,
			name = excluded.name`
	_, err := r.db.ExecContext(ctx, query,
		w.ID, w.Order, w.CreatedAt, w.UpdatedAt, nullable(w.DeletedAt), w.Name)
	if err != nil {
		return fmt.Errorf("failed to upsert workspace: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UpsertCollection(ctx context.Context, c *models.Collection) error {
	query := `INSERT INTO collections (` + collectionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET sort_order = excluded.sort_order,
			updated_at = excluded.updated_at,
			deleted_at = excluded.deleted_at,
			workspace_id = excluded.workspace_id,
			name = excluded.name`
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.Order, c.CreatedAt, c.UpdatedAt, nullable(c.DeletedAt), c.WorkspaceID, c.Name)
	if err != nil {
		return fmt.Errorf("failed to upsert collection: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UpsertTab(ctx context.Context, t *models.Tab) error {
	query := `INSERT INTO tabs (` + tabColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET sort_order = excluded.sort_order,
			updated_at = excluded.updated_at,
			deleted_at = excluded.deleted_at,
			collection_id = excluded.collection_id,
			title = excluded.title,
			url = excluded.url,
			favicon_url = excluded.favicon_url`
	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.Order, t.CreatedAt, t.UpdatedAt, nullable(t.DeletedAt), t.CollectionID, t.Title, t.URL, t.FaviconURL)
	if err != nil {
		return fmt.Errorf("failed to upsert tab: %w", err)
	}
	return nil
}

func scanWorkspace(row rowScanner) (models.Workspace, error) {
	var w models.Workspace
	var deletedAt sql.NullInt64
	err := row.Scan(&w.ID, &w.Order, &w.CreatedAt, &w.UpdatedAt, &deletedAt, &w.Name)
	scanSyncable(&w.Syncable, deletedAt)
	return w, err
}

func scanCollection(row rowScanner) (models.Collection, error) {
	var c models.Collection
	var deletedAt sql.NullInt64
	err := row.Scan(&c.ID, &c.Order, &c.CreatedAt, &c.UpdatedAt, &deletedAt, &c.WorkspaceID, &c.Name)
	scanSyncable(&c.Syncable, deletedAt)
	return c, err
}

func scanTab(row rowScanner) (models.Tab, error) {
	var t models.Tab
	var deletedAt sql.NullInt64
	err := row.Scan(&t.ID, &t.Order, &t.CreatedAt, &t.UpdatedAt, &deletedAt, &t.CollectionID, &t.Title, &t.URL, &t.FaviconURL)
	scanSyncable(&t.Syncable, deletedAt)
	return t, err
}

func getOne[T any](ctx context.Context, db dbx.DBTX, kind, query, id string, scan func(rowScanner) (T, error)) (*T, error) {
	v, err := scan(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %s: %w", kind, id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", kind, err)
	}
	return &v, nil
}

func list[T any](ctx context.Context, db dbx.DBTX, kind, query string, since int64, scan func(rowScanner) (T, error)) ([]T, error) {
	rows, err := db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to select %s: %w", kind, err)
	}
	defer rows.Close()

	result := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", kind, err)
		}
		result = append(result, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// GetWorkspace returns a workspace by id, tombstones included.
func (r *SQLiteRepository) GetWorkspace(ctx context.Context, id string) (*models.Workspace, error) {
	return getOne(ctx, r.db, "workspace", `SELECT `+workspaceColumns+` FROM workspaces WHERE id = ?`, id, scanWorkspace)
}

// GetCollection returns a collection by id, tombstones included.
func (r *SQLiteRepository) GetCollection(ctx context.Context, id string) (*models.Collection, error) {
	return getOne(ctx, r.db, "collection", `SELECT `+collectionColumns+` FROM collections WHERE id = ?`, id, scanCollection)
}

// GetTab returns a tab by id, tombstones included.
func (r *SQLiteRepository) GetTab(ctx context.Context, id string) (*models.Tab, error) {
	return getOne(ctx, r.db, "tab", `SELECT `+tabColumns+` FROM tabs WHERE id = ?`, id, scanTab)
}

func (r *SQLiteRepository) ListWorkspaces(ctx context.Context, changedSince int64) ([]models.Workspace, error) {
	return list(ctx, r.db, "workspaces", `SELECT `+workspaceColumns+` FROM workspaces`+changedSinceClause, changedSince, scanWorkspace)
}

func (r *SQLiteRepository) ListCollections(ctx context.Context, changedSince int64) ([]models.Collection, error) {
	return list(ctx, r.db, "collections", `SELECT `+collectionColumns+` FROM collections`+changedSinceClause, changedSince, scanCollection)
}

func (r *SQLiteRepository) ListTabs(ctx context.Context, changedSince int64) ([]models.Tab, error) {
	return list(ctx, r.db, "tabs", `SELECT `+tabColumns+` FROM tabs`+changedSinceClause, changedSince, scanTab)
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	for _, table := range []string{"tabs", "collections", "workspaces"} {
		if _, err := r.db.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}
