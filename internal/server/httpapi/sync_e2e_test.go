package httpapi_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/tabkeeper/internal/client/client"
	"github.com/dmitrijs2005/tabkeeper/internal/client/models"
	"github.com/dmitrijs2005/tabkeeper/internal/client/services"
	"github.com/dmitrijs2005/tabkeeper/internal/client/storage"
	"github.com/dmitrijs2005/tabkeeper/internal/client/syncer"
	"github.com/dmitrijs2005/tabkeeper/internal/server/auth"
	"github.com/dmitrijs2005/tabkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/tabkeeper/internal/server/store"
)

var secret = []byte("e2e-secret")

// tickingClock advances one millisecond per reading so every write gets a
// distinct timestamp across devices and the server.
func tickingClock() models.Clock {
	var ms atomic.Int64
	ms.Store(1_000)
	return func() time.Time { return time.UnixMilli(ms.Add(1)) }
}

type alwaysOnline struct{}

func (alwaysOnline) Status() bool                       { return true }
func (alwaysOnline) Subscribe(func(online bool)) func() { return func() {} }

type device struct {
	library services.LibraryService
	sync    *syncer.Orchestrator
}

func newDevice(t *testing.T, serverURL, token string, clock models.Clock) *device {
	t.Helper()
	ctx := context.Background()

	db, err := storage.InitDatabase(ctx, filepath.Join(t.TempDir(), "device.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	st := storage.NewSQLiteStore(db)

	api := client.NewHTTPClient(serverURL, 5*time.Second)
	api.SetAccessToken(token)

	orch, err := syncer.New(syncer.Options{Client: api, Store: st, Monitor: alwaysOnline{}, Clock: clock})
	require.NoError(t, err)

	return &device{library: services.NewLibraryService(st, orch, clock), sync: orch}
}

func newSyncServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st, err := store.New("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	h, err := httpapi.NewHTTPHandler(httpapi.Dependencies{
		Store: st,
		Tokens: httpapi.TokenValidatorFunc(func(token string) (string, error) {
			return auth.GetUserIDFromToken(token, secret)
		}),
	})
	require.NoError(t, err)

	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return ts
}

func TestTwoDevicesConverge(t *testing.T) {
	ctx := context.Background()
	clock := tickingClock()
	ts := newSyncServer(t)

	token, err := auth.GenerateToken("alice", secret, time.Hour)
	require.NoError(t, err)
	laptop := newDevice(t, ts.URL, token, clock)
	phone := newDevice(t, ts.URL, token, clock)

	ws, err := laptop.library.CreateWorkspace(ctx, "Research")
	require.NoError(t, err)
	col, err := laptop.library.CreateCollection(ctx, ws.ID, "Papers")
	require.NoError(t, err)
	_, err = laptop.library.AddTab(ctx, col.ID, "Go", "https://go.dev")
	require.NoError(t, err)

	res, err := laptop.sync.SyncNow(ctx)
	require.NoError(t, err)
	assert.False(t, res.Dirty)

	_, err = phone.library.CreateWorkspace(ctx, "Phone notes")
	require.NoError(t, err)
	res, err = phone.sync.SyncNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Pulled, "the laptop's records plus the phone's own echo")

	tabs, err := phone.library.Tabs(ctx, col.ID)
	require.NoError(t, err)
	require.Len(t, tabs, 1)
	assert.Equal(t, "https://go.dev", tabs[0].URL)

	require.NoError(t, phone.library.DeleteCollection(ctx, col.ID))
	_, err = phone.sync.SyncNow(ctx)
	require.NoError(t, err)

	require.NoError(t, laptop.library.RenameWorkspace(ctx, ws.ID, "Research (old)"))
	_, err = laptop.sync.SyncNow(ctx)
	require.NoError(t, err)

	for name, d := range map[string]*device{"laptop": laptop, "phone": phone} {
		workspaces, err := d.library.Workspaces(ctx)
		require.NoError(t, err, name)
		assert.Len(t, workspaces, 2, name)

		cols, err := d.library.Collections(ctx, ws.ID)
		require.NoError(t, err, name)
		assert.Empty(t, cols, "%s: deleted collection stays deleted", name)
	}
}

func TestOfflineEditReachesDeviceThatSyncedMeanwhile(t *testing.T) {
	ctx := context.Background()
	clock := tickingClock()
	ts := newSyncServer(t)

	token, err := auth.GenerateToken("alice", secret, time.Hour)
	require.NoError(t, err)
	laptop := newDevice(t, ts.URL, token, clock)
	phone := newDevice(t, ts.URL, token, clock)

	// Written while the phone is offline, so it is older than anything the
	// laptop syncs below.
	_, err = phone.library.CreateWorkspace(ctx, "Made offline on phone")
	require.NoError(t, err)

	_, err = laptop.library.CreateWorkspace(ctx, "Laptop")
	require.NoError(t, err)
	_, err = laptop.sync.SyncNow(ctx)
	require.NoError(t, err)

	_, err = phone.sync.SyncNow(ctx)
	require.NoError(t, err)

	_, err = laptop.library.CreateWorkspace(ctx, "Laptop 2")
	require.NoError(t, err)
	_, err = laptop.sync.SyncNow(ctx)
	require.NoError(t, err)

	workspaces, err := laptop.library.Workspaces(ctx)
	require.NoError(t, err)
	names := make([]string, 0, len(workspaces))
	for _, w := range workspaces {
		names = append(names, w.Name)
	}
	assert.ElementsMatch(t, []string{"Laptop", "Made offline on phone", "Laptop 2"}, names)
}

func TestInvalidTokenIsTerminal(t *testing.T) {
	ctx := context.Background()
	clock := tickingClock()
	ts := newSyncServer(t)

	d := newDevice(t, ts.URL, "not-a-token", clock)
	_, err := d.library.CreateWorkspace(ctx, "Work")
	require.NoError(t, err)

	_, err = d.sync.SyncNow(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, client.ErrUnauthorized))
	assert.Equal(t, syncer.StatusUnauthorized, d.sync.Status())
	assert.True(t, d.sync.State().Dirty)
}
