package services

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/tabkeeper/internal/client/models"
	"github.com/dmitrijs2005/tabkeeper/internal/client/storage"
)

// ---- helpers ----

func setupStore(t *testing.T) (*sql.DB, *storage.SQLiteStore) {
	t.Helper()
	db, err := storage.InitDatabase(context.Background(), filepath.Join(t.TempDir(), "replica.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, storage.NewSQLiteStore(db)
}

type countingTracker struct {
	n atomic.Int32
}

func (c *countingTracker) MarkDirty(context.Context) error {
	c.n.Add(1)
	return nil
}

func steppingClock() models.Clock {
	var ms atomic.Int64
	ms.Store(1_000)
	return func() time.Time { return time.UnixMilli(ms.Add(1)) }
}
