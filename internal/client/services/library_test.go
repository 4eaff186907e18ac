package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/tabkeeper/internal/client/models"
	"github.com/dmitrijs2005/tabkeeper/internal/client/storage"
	"github.com/dmitrijs2005/tabkeeper/internal/common"
)

func newLibrary(t *testing.T) (LibraryService, *countingTracker) {
	t.Helper()
	_, store := setupStore(t)
	tracker := &countingTracker{}
	return NewLibraryService(store, tracker, steppingClock()), tracker
}

func TestLibrary_CreateHierarchy(t *testing.T) {
	ctx := context.Background()
	lib, tracker := newLibrary(t)

	ws, err := lib.CreateWorkspace(ctx, "  Work ")
	require.NoError(t, err)
	assert.Equal(t, "Work", ws.Name)

	col, err := lib.CreateCollection(ctx, ws.ID, "Reading")
	require.NoError(t, err)
	tab1, err := lib.AddTab(ctx, col.ID, "Go", "https://go.dev")
	require.NoError(t, err)
	tab2, err := lib.AddTab(ctx, col.ID, "", "https://pkg.go.dev")
	require.NoError(t, err)

	assert.Equal(t, "https://pkg.go.dev", tab2.Title, "empty title falls back to the url")
	assert.Equal(t, 0, tab1.Order)
	assert.Equal(t, 1, tab2.Order)
	assert.EqualValues(t, 4, tracker.n.Load())

	tabs, err := lib.Tabs(ctx, col.ID)
	require.NoError(t, err)
	require.Len(t, tabs, 2)
	assert.Equal(t, tab1.ID, tabs[0].ID)
}

func TestLibrary_ValidationAndMissingParents(t *testing.T) {
	ctx := context.Background()
	lib, tracker := newLibrary(t)

	_, err := lib.CreateWorkspace(ctx, "   ")
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = lib.CreateCollection(ctx, "missing", "C")
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = lib.AddTab(ctx, "missing", "T", "not a url")
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = lib.AddTab(ctx, "missing", "T", "https://example.com")
	assert.ErrorIs(t, err, common.ErrNotFound)

	assert.Zero(t, tracker.n.Load(), "failed mutations must not mark dirty")
}

func TestLibrary_RenameUpdateAndReorder(t *testing.T) {
	ctx := context.Background()
	lib, _ := newLibrary(t)

	ws, err := lib.CreateWorkspace(ctx, "A")
	require.NoError(t, err)
	ws2, err := lib.CreateWorkspace(ctx, "B")
	require.NoError(t, err)
	col, err := lib.CreateCollection(ctx, ws.ID, "C")
	require.NoError(t, err)
	tab, err := lib.AddTab(ctx, col.ID, "T", "https://example.com")
	require.NoError(t, err)

	require.NoError(t, lib.RenameWorkspace(ctx, ws.ID, "A2"))
	require.NoError(t, lib.RenameCollection(ctx, col.ID, "C2"))

	title := "T2"
	require.NoError(t, lib.UpdateTab(ctx, tab.ID, models.TabPatch{Title: &title}))
	bad := "::"
	assert.ErrorIs(t, lib.UpdateTab(ctx, tab.ID, models.TabPatch{URL: &bad}), common.ErrValidation)

	require.NoError(t, lib.Reorder(ctx, KindWorkspace, ws.ID, 5))
	assert.ErrorIs(t, lib.Reorder(ctx, Kind("bogus"), ws.ID, 1), ErrUnknownKind)

	list, err := lib.Workspaces(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, ws2.ID, list[0].ID)
	assert.Equal(t, "A2", list[1].Name)
	assert.Greater(t, list[1].UpdatedAt, ws.UpdatedAt)

	tabs, err := lib.Tabs(ctx, col.ID)
	require.NoError(t, err)
	assert.Equal(t, "T2", tabs[0].Title)
}

func TestLibrary_DeleteWorkspaceCascades(t *testing.T) {
	ctx := context.Background()
	_, store := setupStore(t)
	lib := NewLibraryService(store, &countingTracker{}, steppingClock())

	ws, err := lib.CreateWorkspace(ctx, "W")
	require.NoError(t, err)
	keep, err := lib.CreateWorkspace(ctx, "Keep")
	require.NoError(t, err)
	col, err := lib.CreateCollection(ctx, ws.ID, "C")
	require.NoError(t, err)
	other, err := lib.CreateCollection(ctx, keep.ID, "Other")
	require.NoError(t, err)
	tab, err := lib.AddTab(ctx, col.ID, "T", "https://example.com")
	require.NoError(t, err)

	require.NoError(t, lib.DeleteWorkspace(ctx, ws.ID))

	list, err := lib.Workspaces(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, keep.ID, list[0].ID)

	// Tombstones stay in the replica so the delete can sync.
	gotWs, err := store.GetWorkspace(ctx, ws.ID)
	require.NoError(t, err)
	gotCol, err := store.GetCollection(ctx, col.ID)
	require.NoError(t, err)
	gotTab, err := store.GetTab(ctx, tab.ID)
	require.NoError(t, err)
	require.True(t, gotWs.IsDeleted())
	require.True(t, gotCol.IsDeleted())
	require.True(t, gotTab.IsDeleted())
	assert.Equal(t, *gotWs.DeletedAt, *gotTab.DeletedAt)

	gotOther, err := store.GetCollection(ctx, other.ID)
	require.NoError(t, err)
	assert.False(t, gotOther.IsDeleted())

	assert.ErrorIs(t, lib.DeleteWorkspace(ctx, ws.ID), common.ErrNotFound)
	_, err = lib.CreateCollection(ctx, ws.ID, "late")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestLibrary_DeleteCollectionAndTab(t *testing.T) {
	ctx := context.Background()
	lib, _ := newLibrary(t)

	ws, err := lib.CreateWorkspace(ctx, "W")
	require.NoError(t, err)
	col, err := lib.CreateCollection(ctx, ws.ID, "C")
	require.NoError(t, err)
	col2, err := lib.CreateCollection(ctx, ws.ID, "C2")
	require.NoError(t, err)
	_, err = lib.AddTab(ctx, col.ID, "T", "https://example.com")
	require.NoError(t, err)
	t2, err := lib.AddTab(ctx, col2.ID, "T2", "https://example.org")
	require.NoError(t, err)

	require.NoError(t, lib.DeleteCollection(ctx, col.ID))
	cols, err := lib.Collections(ctx, ws.ID)
	require.NoError(t, err)
	require.Len(t, cols, 1)
	assert.Equal(t, col2.ID, cols[0].ID)

	tabs, err := lib.Tabs(ctx, col.ID)
	require.NoError(t, err)
	assert.Empty(t, tabs)

	require.NoError(t, lib.DeleteTab(ctx, t2.ID))
	tabs, err = lib.Tabs(ctx, col2.ID)
	require.NoError(t, err)
	assert.Empty(t, tabs)
	assert.ErrorIs(t, lib.DeleteTab(ctx, t2.ID), common.ErrNotFound)
}

type failingTracker struct{}

func (failingTracker) MarkDirty(context.Context) error { return errors.New("tracker down") }

func TestLibrary_EditIsDirtyEvenIfTrackerFails(t *testing.T) {
	ctx := context.Background()
	_, store := setupStore(t)
	clock := steppingClock()
	seed := NewLibraryService(store, &countingTracker{}, clock)
	ws, err := seed.CreateWorkspace(ctx, "W")
	require.NoError(t, err)
	require.NoError(t, store.SaveState(ctx, storage.SyncState{}))

	lib := NewLibraryService(store, failingTracker{}, clock)
	require.Error(t, lib.RenameWorkspace(ctx, ws.ID, "Renamed"))

	st, err := store.LoadState(ctx)
	require.NoError(t, err)
	assert.True(t, st.Dirty, "the rename is owed to the server")
	assert.NotZero(t, st.LastLocalChangeAt)

	require.NoError(t, store.SaveState(ctx, storage.SyncState{}))
	require.Error(t, lib.DeleteWorkspace(ctx, ws.ID))

	st, err = store.LoadState(ctx)
	require.NoError(t, err)
	assert.True(t, st.Dirty, "the delete is owed to the server")
}
