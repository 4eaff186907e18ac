package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"

	"github.com/dmitrijs2005/tabkeeper/internal/client/models"
	"github.com/dmitrijs2005/tabkeeper/internal/dbx"
	"github.com/dmitrijs2005/tabkeeper/internal/server/store/migrations"
)

const versionTable = "server_goose_db_version"

const (
	kindWorkspace  = "workspace"
	kindCollection = "collection"
	kindTab        = "tab"
)

func runMigrations(ctx context.Context, db *sql.DB) error {
	gs, err := database.NewStore(database.DialectSQLite3, versionTable)
	if err != nil {
		return fmt.Errorf("failed to create migration store: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectCustom, db, migrations.Migrations, goose.WithStore(gs))
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// versionSet holds the ids changed after some version, per record kind.
type versionSet map[string]map[string]struct{}

func (v versionSet) has(kind, id string) bool {
	_, ok := v[kind][id]
	return ok
}

// versionRepository tracks which replica version last changed each record.
// Versions come from one counter per replica and only grow.
type versionRepository struct {
	db dbx.DBTX
}

func newVersionRepository(db dbx.DBTX) *versionRepository {
	return &versionRepository{db: db}
}

func (r *versionRepository) IncrementCurrentVersion(ctx context.Context) (int64, error) {
	query := `UPDATE replica_version SET current_version = current_version + 1
		WHERE id = 1
		RETURNING current_version`

	var version int64
	if err := r.db.QueryRowContext(ctx, query).Scan(&version); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return version, nil
}

func (r *versionRepository) CurrentVersion(ctx context.Context) (int64, error) {
	var version int64
	err := r.db.QueryRowContext(ctx, `SELECT current_version FROM replica_version WHERE id = 1`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return version, nil
}

func (r *versionRepository) Stamp(ctx context.Context, kind string, ids []string, version int64) error {
	query := `INSERT INTO record_versions (kind, id, version) VALUES (?, ?, ?)
		ON CONFLICT(kind, id) DO UPDATE SET version = excluded.version`
	for _, id := range ids {
		if _, err := r.db.ExecContext(ctx, query, kind, id, version); err != nil {
			return fmt.Errorf("failed to stamp %s %s: %w", kind, id, err)
		}
	}
	return nil
}

func (r *versionRepository) SelectUpdated(ctx context.Context, minVersion int64) (versionSet, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT kind, id FROM record_versions WHERE version > ?`, minVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to select record versions: %w", err)
	}
	defer rows.Close()

	out := versionSet{}
	for rows.Next() {
		var kind, id string
		if err := rows.Scan(&kind, &id); err != nil {
			return nil, err
		}
		if out[kind] == nil {
			out[kind] = map[string]struct{}{}
		}
		out[kind][id] = struct{}{}
	}
	return out, rows.Err()
}

// accepted lists the ids of incoming records that the merge takes over
// current: ids current lacks and strictly newer versions.
func accepted[T models.Entity](current, incoming []T) []string {
	seen := make(map[string]int64, len(current))
	for _, e := range current {
		seen[e.GetID()] = models.EffectiveTimestamp(e)
	}

	var ids []string
	for _, in := range incoming {
		ts := models.EffectiveTimestamp(in)
		if prev, ok := seen[in.GetID()]; ok && ts <= prev {
			continue
		}
		seen[in.GetID()] = ts
		ids = append(ids, in.GetID())
	}
	return ids
}

func updatedOnly[T models.Entity](all []T, kind string, updated versionSet) []T {
	out := make([]T, 0, len(updated[kind]))
	for _, e := range all {
		if updated.has(kind, e.GetID()) {
			out = append(out, e)
		}
	}
	return out
}
