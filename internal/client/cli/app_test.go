package cli

import (
	"bufio"
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/tabkeeper/internal/client/client"
	"github.com/dmitrijs2005/tabkeeper/internal/client/config"
	"github.com/dmitrijs2005/tabkeeper/internal/client/connectivity"
	"github.com/dmitrijs2005/tabkeeper/internal/client/merge"
	"github.com/dmitrijs2005/tabkeeper/internal/client/services"
	"github.com/dmitrijs2005/tabkeeper/internal/client/storage"
	"github.com/dmitrijs2005/tabkeeper/internal/client/syncer"
	"github.com/dmitrijs2005/tabkeeper/internal/logging"
)

// ------------ fakes ------------

type fakeClient struct {
	client.Client
	token string
}

func (f *fakeClient) SetAccessToken(token string) { f.token = token }
func (f *fakeClient) Close() error                { return nil }

type fakeSync struct {
	started, stopped int
	result           syncer.Result
	err              error
	state            syncer.State
	dirty            int
}

func (f *fakeSync) Start(context.Context) { f.started++ }
func (f *fakeSync) Stop()                 { f.stopped++ }
func (f *fakeSync) SyncNow(context.Context) (syncer.Result, error) {
	return f.result, f.err
}
func (f *fakeSync) State() syncer.State { return f.state }
func (f *fakeSync) MarkDirty(context.Context) error {
	f.dirty++
	return nil
}

// ------------ helpers ------------

func newTestApp(t *testing.T, input string) (*App, *bytes.Buffer, *fakeSync, *fakeClient) {
	t.Helper()
	ctx := context.Background()

	db, err := storage.InitDatabase(ctx, filepath.Join(t.TempDir(), "replica.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store := storage.NewSQLiteStore(db)

	fc := &fakeClient{}
	fs := &fakeSync{state: syncer.State{Status: syncer.StatusIdle}}
	var out bytes.Buffer

	cfg := &config.Config{}
	cfg.LoadDefaults()

	a := &App{
		config:  cfg,
		log:     logging.NewNop(),
		db:      db,
		monitor: connectivity.New(connectivity.Options{InitialOnline: true}),
		sync:    fs,
		auth:    services.NewAuthService(fc, db, store),
		library: services.NewLibraryService(store, fs, nil),
		reader:  bufio.NewReader(strings.NewReader(input)),
		out:     &out,
	}
	return a, &out, fs, fc
}

// ------------ tests ------------

func TestApp_LoginStartsSync(t *testing.T) {
	ctx := context.Background()
	a, out, fs, fc := newTestApp(t, "my-token\n")
	fs.result = syncer.Result{Pushed: 2, Pulled: 3, Stats: merge.Stats{ServerWins: 1}}

	require.NoError(t, a.Login(ctx))
	assert.True(t, a.isLoggedIn())
	assert.Equal(t, "my-token", fc.token)
	assert.Equal(t, 1, fs.started)
	assert.Contains(t, out.String(), "Synced: 2 sent, 3 received (local wins 0, server wins 1)")
}

func TestApp_LogoutStopsSync(t *testing.T) {
	ctx := context.Background()
	a, out, fs, fc := newTestApp(t, "tok\n")
	require.NoError(t, a.Login(ctx))

	require.NoError(t, a.Logout(ctx, false))
	assert.False(t, a.isLoggedIn())
	assert.Empty(t, fc.token)
	assert.Equal(t, 1, fs.stopped)
	assert.Contains(t, out.String(), "Local data is kept")
}

func TestApp_LibraryCommandsAndList(t *testing.T) {
	ctx := context.Background()
	a, out, fs, _ := newTestApp(t, "")

	require.NoError(t, a.List(ctx))
	assert.Contains(t, out.String(), "No workspaces yet")

	ws, err := a.library.CreateWorkspace(ctx, "Work")
	require.NoError(t, err)
	col, err := a.library.CreateCollection(ctx, ws.ID, "Reading")
	require.NoError(t, err)
	require.NoError(t, a.AddTab(ctx, col.ID, "https://go.dev", "Go"))
	require.NoError(t, a.Rename(ctx, services.KindWorkspace, ws.ID, "Job"))

	out.Reset()
	require.NoError(t, a.List(ctx))
	listing := out.String()
	assert.Contains(t, listing, "Job ["+ws.ID+"]")
	assert.Contains(t, listing, "  Reading ["+col.ID+"]")
	assert.Contains(t, listing, "    - Go <https://go.dev>")

	require.NoError(t, a.Delete(ctx, services.KindCollection, col.ID))
	out.Reset()
	require.NoError(t, a.List(ctx))
	assert.NotContains(t, out.String(), "Reading")

	assert.Equal(t, 5, fs.dirty)
	assert.ErrorIs(t, a.Delete(ctx, services.Kind("x"), "id"), services.ErrUnknownKind)
}

func TestApp_SyncReporting(t *testing.T) {
	ctx := context.Background()
	a, out, fs, _ := newTestApp(t, "")

	require.NoError(t, a.Sync(ctx))
	assert.Contains(t, out.String(), "Not signed in")

	a.signedIn = true
	fs.result = syncer.Result{Skipped: true, Reason: syncer.SkipNotDirty}
	require.NoError(t, a.Sync(ctx))
	assert.Contains(t, out.String(), "Sync skipped: nothing to sync")

	fs.err = &client.SyncError{Kind: client.KindUnauthorized, Op: "push"}
	assert.NoError(t, a.Sync(ctx))

	fs.err = &client.SyncError{Kind: client.KindNetwork, Op: "push"}
	assert.ErrorIs(t, a.Sync(ctx), client.ErrNetwork)
}

func TestApp_StatusAndPrompt(t *testing.T) {
	ctx := context.Background()
	a, out, fs, _ := newTestApp(t, "")

	assert.Equal(t, "(online, signed out)", a.getStatus())

	a.signedIn = true
	fs.state = syncer.State{Status: syncer.StatusError, Dirty: true, RetryDelay: 4e9, LastSyncTimestamp: 99}
	assert.Equal(t, "(online, error, unsynced)", a.getStatus())

	require.NoError(t, a.Status(ctx))
	s := out.String()
	assert.Contains(t, s, "Sync: error")
	assert.Contains(t, s, "Unsynced changes: true")
	assert.Contains(t, s, "Last sync checkpoint: 99")
	assert.Contains(t, s, "Next retry in: 4s")

	a.monitor.SetOffline()
	assert.Equal(t, "(offline, error, unsynced)", a.getStatus())
}

func TestApp_RestoreSession(t *testing.T) {
	ctx := context.Background()

	a, _, _, fc := newTestApp(t, "")
	a.restoreSession(ctx)
	assert.False(t, a.isLoggedIn())

	a.config.AccessToken = "from-config"
	a.restoreSession(ctx)
	assert.True(t, a.isLoggedIn())
	assert.Equal(t, "from-config", fc.token)
}

func TestApp_NoticesGoToOutput(t *testing.T) {
	a, out, _, _ := newTestApp(t, "")
	a.notice(false, connectivity.OfflineNotice)
	a.onUnauthorized(nil)
	assert.Contains(t, out.String(), connectivity.OfflineNotice)
	assert.Contains(t, out.String(), "Run 'login'")
}
