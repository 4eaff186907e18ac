// Package store keeps one SQLite replica per user on the server side and
// applies pushed changes with the same last-writer-wins rules the client uses.
//
// Every push that changes something bumps the replica version and stamps it
// on the records it took over. Pull checkpoints are replica versions, not
// wall-clock times, so a record written offline long ago still reaches
// devices that synced in the meantime.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/dmitrijs2005/tabkeeper/internal/client/merge"
	"github.com/dmitrijs2005/tabkeeper/internal/client/models"
	"github.com/dmitrijs2005/tabkeeper/internal/client/storage"
	"github.com/dmitrijs2005/tabkeeper/internal/common"
	"github.com/dmitrijs2005/tabkeeper/internal/dbx"
	"github.com/dmitrijs2005/tabkeeper/internal/filex"
)

// ValidationError lists every broken parent reference in a rejected push.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("push rejected: %d invalid reference(s)", len(e.Violations))
}

func (e *ValidationError) Unwrap() error { return common.ErrValidation }

func newValidationError(err error) *ValidationError {
	var violations []string
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			violations = append(violations, e.Error())
		}
	} else {
		violations = append(violations, err.Error())
	}
	return &ValidationError{Violations: violations}
}

// Store is the server side of the sync protocol.
type Store struct {
	dir string

	mu       sync.Mutex
	replicas map[string]*replica
}

type replica struct {
	db    *sql.DB
	store *storage.SQLiteStore
}

// New opens replicas under dir. An empty dir keeps every replica in memory.
func New(dir string) (*Store, error) {
	if dir != "" {
		abs, err := filex.EnsureDir(dir)
		if err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dir = abs
	}
	return &Store{dir: dir, replicas: make(map[string]*replica)}, nil
}

func (s *Store) dsn(userID string) string {
	if s.dir == "" {
		return ":memory:"
	}
	sum := sha256.Sum256([]byte(userID))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:16])+".db")
}

func (s *Store) replica(ctx context.Context, userID string) (*replica, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", common.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.replicas[userID]; ok {
		return r, nil
	}

	db, err := storage.InitDatabase(ctx, s.dsn(userID))
	if err != nil {
		return nil, fmt.Errorf("open replica: %w", err)
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open replica: %w", err)
	}
	r := &replica{db: db, store: storage.NewSQLiteStore(db)}
	s.replicas[userID] = r
	return r, nil
}

// Push validates the payload against itself and the stored replica, then
// merges it in per id. Nothing is written when validation fails. Records the
// merge took over get a new replica version; a push that changes nothing
// leaves the version alone.
func (s *Store) Push(ctx context.Context, userID string, payload *models.Dataset) (merge.Stats, error) {
	r, err := s.replica(ctx, userID)
	if err != nil {
		return merge.Stats{}, err
	}

	var stats merge.Stats
	err = r.store.UpdateTx(ctx, func(ctx context.Context, tx dbx.DBTX, current *models.Dataset) (*models.Dataset, error) {
		if err := payload.ValidateReferences(knownIDs(current)); err != nil {
			return nil, newValidationError(err)
		}

		changed := map[string][]string{
			kindWorkspace:  accepted(current.Workspaces, payload.Workspaces),
			kindCollection: accepted(current.Collections, payload.Collections),
			kindTab:        accepted(current.Tabs, payload.Tabs),
		}
		if err := stampChanged(ctx, newVersionRepository(tx), changed); err != nil {
			return nil, err
		}

		var merged *models.Dataset
		merged, stats = merge.Dataset(current, payload)
		return merged, nil
	})
	if err != nil {
		return merge.Stats{}, err
	}
	return stats, nil
}

func stampChanged(ctx context.Context, versions *versionRepository, changed map[string][]string) error {
	total := 0
	for _, ids := range changed {
		total += len(ids)
	}
	if total == 0 {
		return nil
	}

	version, err := versions.IncrementCurrentVersion(ctx)
	if err != nil {
		return err
	}
	for kind, ids := range changed {
		if err := versions.Stamp(ctx, kind, ids, version); err != nil {
			return err
		}
	}
	return nil
}

// Pull returns every record changed after replica version since, with the
// current version as the next checkpoint. A checkpoint this replica never
// handed out (ahead of its version) gets the full replica back.
func (s *Store) Pull(ctx context.Context, userID string, since int64) (*models.Dataset, error) {
	r, err := s.replica(ctx, userID)
	if err != nil {
		return nil, err
	}

	var out *models.Dataset
	err = r.store.ViewTx(ctx, func(ctx context.Context, tx dbx.DBTX, current *models.Dataset) error {
		versions := newVersionRepository(tx)
		latest, err := versions.CurrentVersion(ctx)
		if err != nil {
			return err
		}
		if since > latest {
			since = 0
		}
		updated, err := versions.SelectUpdated(ctx, since)
		if err != nil {
			return err
		}

		out = &models.Dataset{
			Workspaces:        updatedOnly(current.Workspaces, kindWorkspace, updated),
			Collections:       updatedOnly(current.Collections, kindCollection, updated),
			Tabs:              updatedOnly(current.Tabs, kindTab, updated),
			LastSyncTimestamp: latest,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Close releases every open replica.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for id, r := range s.replicas {
		errs = append(errs, r.db.Close())
		delete(s.replicas, id)
	}
	return errors.Join(errs...)
}

func knownIDs(d *models.Dataset) models.KnownIDs {
	known := models.KnownIDs{
		Workspaces:  make(map[string]struct{}, len(d.Workspaces)),
		Collections: make(map[string]struct{}, len(d.Collections)),
	}
	for _, w := range d.Workspaces {
		known.Workspaces[w.ID] = struct{}{}
	}
	for _, c := range d.Collections {
		known.Collections[c.ID] = struct{}{}
	}
	return known
}
