package cli

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/tabkeeper/internal/client/client"
	"github.com/dmitrijs2005/tabkeeper/internal/client/config"
	"github.com/dmitrijs2005/tabkeeper/internal/client/connectivity"
	"github.com/dmitrijs2005/tabkeeper/internal/client/services"
	"github.com/dmitrijs2005/tabkeeper/internal/client/storage"
	"github.com/dmitrijs2005/tabkeeper/internal/client/syncer"
	"github.com/dmitrijs2005/tabkeeper/internal/filex"
	"github.com/dmitrijs2005/tabkeeper/internal/logging"
)

// syncEngine is the part of syncer.Orchestrator the App drives.
type syncEngine interface {
	Start(ctx context.Context)
	Stop()
	SyncNow(ctx context.Context) (syncer.Result, error)
	State() syncer.State
}

type App struct {
	config  *config.Config
	log     logging.Logger
	db      *sql.DB
	monitor *connectivity.Monitor
	sync    syncEngine
	auth    services.AuthService
	library services.LibraryService
	reader  *bufio.Reader
	out     io.Writer

	signedIn bool
}

// NewApp opens the local replica and wires the sync engine around it. It
// never needs the server: if the server is down the app starts offline.
func NewApp(ctx context.Context, c *config.Config, log logging.Logger, in io.Reader, out io.Writer) (*App, error) {
	if err := filex.EnsureParentDir(c.DatabasePath); err != nil {
		return nil, err
	}

	db, err := storage.InitDatabase(ctx, c.DatabasePath)
	if err != nil {
		log.Error(ctx, "error initializing database", "error", err)
		return nil, err
	}
	store := storage.NewSQLiteStore(db)

	apiClient := client.NewHTTPClient(c.ServerURL, c.RequestTimeout)

	a := &App{
		config: c,
		log:    log,
		db:     db,
		reader: bufio.NewReader(in),
		out:    out,
	}

	probeCtx, cancel := context.WithTimeout(ctx, c.ProbeTimeout)
	online := apiClient.Ping(probeCtx) == nil
	cancel()

	a.monitor = connectivity.New(connectivity.Options{
		Prober:        connectivity.ProberFunc(apiClient.Ping),
		ProbeInterval: c.OnlineCheckInterval,
		ProbeTimeout:  c.ProbeTimeout,
		InitialOnline: online,
		Logger:        log,
		OnNotice:      a.notice,
	})

	orch, err := syncer.New(syncer.Options{
		Client:         apiClient,
		Store:          store,
		Monitor:        a.monitor,
		Logger:         log,
		MinRetryDelay:  c.RetryMinDelay,
		MaxRetryDelay:  c.RetryMaxDelay,
		SyncInterval:   c.SyncInterval,
		OnUnauthorized: a.onUnauthorized,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := orch.Restore(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("restore sync state: %w", err)
	}

	a.sync = orch
	a.auth = services.NewAuthService(apiClient, db, store)
	a.library = services.NewLibraryService(store, orch, nil)
	return a, nil
}

func (a *App) notice(_ bool, message string) {
	fmt.Fprintln(a.out, "\n"+message)
}

func (a *App) onUnauthorized(error) {
	fmt.Fprintln(a.out, "\nThe server rejected your session. Run 'login' to sign in again; your changes are kept locally.")
}

func (a *App) isLoggedIn() bool {
	return a.signedIn
}

// restoreSession signs in with the configured token, or with the one stored
// by an earlier login.
func (a *App) restoreSession(ctx context.Context) {
	if a.config.AccessToken != "" {
		if err := a.auth.SignIn(ctx, a.config.AccessToken); err != nil {
			a.log.Warn(ctx, "configured access token rejected", "error", err)
			return
		}
		a.signedIn = true
		return
	}
	err := a.auth.RestoreSession(ctx)
	switch {
	case err == nil:
		a.signedIn = true
	case errors.Is(err, services.ErrNotSignedIn):
	default:
		a.log.Warn(ctx, "failed to restore session", "error", err)
	}
}

func (a *App) getStatus() string {
	parts := []string{"offline"}
	if a.monitor.Status() {
		parts[0] = "online"
	}
	st := a.sync.State()
	if st.Status != syncer.StatusIdle {
		parts = append(parts, string(st.Status))
	}
	if st.Dirty {
		parts = append(parts, "unsynced")
	}
	if !a.signedIn {
		parts = append(parts, "signed out")
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Run restores the session, starts the background machinery and blocks in
// the REPL until the user exits or ctx is done.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fmt.Fprintln(a.out, "Welcome to TabKeeper (type 'help' for commands)")
	a.restoreSession(ctx)

	go a.monitor.Run(ctx)
	if a.signedIn {
		a.sync.Start(ctx)
	}
	defer a.sync.Stop()

	runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader), a.out)
}

// Close releases the client and the database.
func (a *App) Close(ctx context.Context) error {
	return errors.Join(a.auth.Close(ctx), a.db.Close())
}
