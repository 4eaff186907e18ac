// Package storage is the local persistence collaborator of the sync engine:
// it loads and saves the whole replica and tracks the sync bookkeeping
// (checkpoint, dirty flag, time of the last local change).
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/tabkeeper/internal/client/models"
	"github.com/dmitrijs2005/tabkeeper/internal/client/repositories/entities"
	"github.com/dmitrijs2005/tabkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/tabkeeper/internal/dbx"
)

// SyncState is the persisted part of the orchestrator state.
type SyncState struct {
	Dirty             bool
	LastSyncTimestamp int64
	LastLocalChangeAt int64
}

// Store is what the orchestrator and the library service need from local
// persistence.
type Store interface {
	LoadAll(ctx context.Context) (*models.Dataset, error)
	// SaveAll upserts every record of data and stores its checkpoint. Records
	// missing from data are left alone; the replica never shrinks.
	SaveAll(ctx context.Context, data *models.Dataset) error
	// Update loads the replica, passes it to fn and saves fn's result, all in
	// one transaction. Nothing is written if fn fails.
	Update(ctx context.Context, fn func(current *models.Dataset) (*models.Dataset, error)) error
	// UpdateLocal is Update for local edits: the same transaction also sets
	// the dirty flag and moves the last local change time up to changedAt.
	UpdateLocal(ctx context.Context, changedAt int64, fn func(current *models.Dataset) (*models.Dataset, error)) error
	ClearAll(ctx context.Context) error

	// SaveWorkspace, SaveCollection and SaveTab are local edits. Each marks
	// the replica dirty in the transaction that writes the record.
	SaveWorkspace(ctx context.Context, w *models.Workspace) error
	SaveCollection(ctx context.Context, c *models.Collection) error
	SaveTab(ctx context.Context, t *models.Tab) error

	GetWorkspace(ctx context.Context, id string) (*models.Workspace, error)
	GetCollection(ctx context.Context, id string) (*models.Collection, error)
	GetTab(ctx context.Context, id string) (*models.Tab, error)

	LoadState(ctx context.Context) (SyncState, error)
	SaveState(ctx context.Context, st SyncState) error
}

// SQLiteStore implements Store on top of the entity and metadata repositories.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) entities(db dbx.DBTX) entities.Repository {
	return entities.NewSQLiteRepository(db)
}

func (s *SQLiteStore) metadata(db dbx.DBTX) metadata.Repository {
	return metadata.NewSQLiteRepository(db)
}

func (s *SQLiteStore) LoadAll(ctx context.Context) (*models.Dataset, error) {
	return dbx.QueryTx(ctx, s.db, s.loadAll)
}

func (s *SQLiteStore) loadAll(ctx context.Context, db dbx.DBTX) (*models.Dataset, error) {
	repo := s.entities(db)

	workspaces, err := repo.ListWorkspaces(ctx, 0)
	if err != nil {
		return nil, err
	}
	collections, err := repo.ListCollections(ctx, 0)
	if err != nil {
		return nil, err
	}
	tabs, err := repo.ListTabs(ctx, 0)
	if err != nil {
		return nil, err
	}
	checkpoint, err := s.metadata(db).GetInt64(ctx, metadata.KeyLastSyncTimestamp)
	if err != nil {
		return nil, err
	}

	return &models.Dataset{
		Workspaces:        workspaces,
		Collections:       collections,
		Tabs:              tabs,
		LastSyncTimestamp: checkpoint,
	}, nil
}

func (s *SQLiteStore) SaveAll(ctx context.Context, data *models.Dataset) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.saveAll(ctx, tx, data)
	})
}

func (s *SQLiteStore) saveAll(ctx context.Context, db dbx.DBTX, data *models.Dataset) error {
	repo := s.entities(db)
	for i := range data.Workspaces {
		if err := repo.UpsertWorkspace(ctx, &data.Workspaces[i]); err != nil {
			return err
		}
	}
	for i := range data.Collections {
		if err := repo.UpsertCollection(ctx, &data.Collections[i]); err != nil {
			return err
		}
	}
	for i := range data.Tabs {
		if err := repo.UpsertTab(ctx, &data.Tabs[i]); err != nil {
			return err
		}
	}
	return s.metadata(db).SetInt64(ctx, metadata.KeyLastSyncTimestamp, data.LastSyncTimestamp)
}

func (s *SQLiteStore) Update(ctx context.Context, fn func(current *models.Dataset) (*models.Dataset, error)) error {
	return s.UpdateTx(ctx, func(_ context.Context, _ dbx.DBTX, current *models.Dataset) (*models.Dataset, error) {
		return fn(current)
	})
}

func (s *SQLiteStore) UpdateLocal(ctx context.Context, changedAt int64, fn func(current *models.Dataset) (*models.Dataset, error)) error {
	return s.UpdateTx(ctx, func(ctx context.Context, tx dbx.DBTX, current *models.Dataset) (*models.Dataset, error) {
		next, err := fn(current)
		if err != nil {
			return nil, err
		}
		return next, s.markDirty(ctx, tx, changedAt)
	})
}

// UpdateTx is Update for callers that keep their own tables next to the
// replica: fn also gets the open transaction.
func (s *SQLiteStore) UpdateTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX, current *models.Dataset) (*models.Dataset, error)) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		current, err := s.loadAll(ctx, tx)
		if err != nil {
			return err
		}
		next, err := fn(ctx, tx, current)
		if err != nil {
			return err
		}
		return s.saveAll(ctx, tx, next)
	})
}

// ViewTx loads the replica in a transaction and hands it to fn along with
// that transaction, so fn's own queries see the same snapshot.
func (s *SQLiteStore) ViewTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX, current *models.Dataset) error) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		current, err := s.loadAll(ctx, tx)
		if err != nil {
			return err
		}
		return fn(ctx, tx, current)
	})
}

// markDirty sets the dirty flag and keeps the last local change time
// monotonic, inside the caller's transaction.
func (s *SQLiteStore) markDirty(ctx context.Context, db dbx.DBTX, changedAt int64) error {
	repo := s.metadata(db)
	prev, err := repo.GetInt64(ctx, metadata.KeyLastLocalChangeAt)
	if err != nil {
		return err
	}
	if err := repo.SetBool(ctx, metadata.KeyDirty, true); err != nil {
		return fmt.Errorf("save dirty flag: %w", err)
	}
	return repo.SetInt64(ctx, metadata.KeyLastLocalChangeAt, max(prev, changedAt))
}

// ClearAll wipes records and sync bookkeeping, e.g. on sign-out.
func (s *SQLiteStore) ClearAll(ctx context.Context) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.entities(tx).Clear(ctx); err != nil {
			return err
		}
		return s.metadata(tx).Clear(ctx)
	})
}

func (s *SQLiteStore) SaveWorkspace(ctx context.Context, w *models.Workspace) error {
	return s.saveLocal(ctx, models.EffectiveTimestamp(w), func(ctx context.Context, repo entities.Repository) error {
		return repo.UpsertWorkspace(ctx, w)
	})
}

func (s *SQLiteStore) SaveCollection(ctx context.Context, c *models.Collection) error {
	return s.saveLocal(ctx, models.EffectiveTimestamp(c), func(ctx context.Context, repo entities.Repository) error {
		return repo.UpsertCollection(ctx, c)
	})
}

func (s *SQLiteStore) SaveTab(ctx context.Context, t *models.Tab) error {
	return s.saveLocal(ctx, models.EffectiveTimestamp(t), func(ctx context.Context, repo entities.Repository) error {
		return repo.UpsertTab(ctx, t)
	})
}

func (s *SQLiteStore) saveLocal(ctx context.Context, changedAt int64, write func(ctx context.Context, repo entities.Repository) error) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := write(ctx, s.entities(tx)); err != nil {
			return err
		}
		return s.markDirty(ctx, tx, changedAt)
	})
}

func (s *SQLiteStore) GetWorkspace(ctx context.Context, id string) (*models.Workspace, error) {
	return s.entities(s.db).GetWorkspace(ctx, id)
}

func (s *SQLiteStore) GetCollection(ctx context.Context, id string) (*models.Collection, error) {
	return s.entities(s.db).GetCollection(ctx, id)
}

func (s *SQLiteStore) GetTab(ctx context.Context, id string) (*models.Tab, error) {
	return s.entities(s.db).GetTab(ctx, id)
}

func (s *SQLiteStore) LoadState(ctx context.Context) (SyncState, error) {
	repo := s.metadata(s.db)
	var st SyncState
	var err error

	if st.LastSyncTimestamp, err = repo.GetInt64(ctx, metadata.KeyLastSyncTimestamp); err != nil {
		return SyncState{}, err
	}
	if st.LastLocalChangeAt, err = repo.GetInt64(ctx, metadata.KeyLastLocalChangeAt); err != nil {
		return SyncState{}, err
	}
	if st.Dirty, err = repo.GetBool(ctx, metadata.KeyDirty); err != nil {
		return SyncState{}, err
	}
	return st, nil
}

func (s *SQLiteStore) SaveState(ctx context.Context, st SyncState) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.metadata(tx)
		if err := repo.SetBool(ctx, metadata.KeyDirty, st.Dirty); err != nil {
			return fmt.Errorf("save dirty flag: %w", err)
		}
		if err := repo.SetInt64(ctx, metadata.KeyLastLocalChangeAt, st.LastLocalChangeAt); err != nil {
			return fmt.Errorf("save last local change: %w", err)
		}
		return repo.SetInt64(ctx, metadata.KeyLastSyncTimestamp, st.LastSyncTimestamp)
	})
}
