// Package server assembles the reference sync server: the per-user replica
// store, the token check and the HTTP API.
package server

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/tabkeeper/internal/logging"
	"github.com/dmitrijs2005/tabkeeper/internal/server/auth"
	"github.com/dmitrijs2005/tabkeeper/internal/server/config"
	"github.com/dmitrijs2005/tabkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/tabkeeper/internal/server/store"
)

type App struct {
	config config.AppConfig
	logger logging.Logger
	store  *store.Store
	server *httpapi.Server
}

func NewApp(cfg config.AppConfig, logger logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	st, err := store.New(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("store init error: %w", err)
	}

	secret := []byte(cfg.SigningSecret)
	handler, err := httpapi.NewHTTPHandler(httpapi.Dependencies{
		Store: st,
		Tokens: httpapi.TokenValidatorFunc(func(token string) (string, error) {
			return auth.GetUserIDFromToken(token, secret)
		}),
		Logger:         logger,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		AllowedOrigins: cfg.AllowedOrigins,
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &App{
		config: cfg,
		logger: logger,
		store:  st,
		server: httpapi.NewServer(cfg.HTTPAddress, handler, logger),
	}, nil
}

// Run serves until ctx is canceled, then closes every replica.
func (app *App) Run(ctx context.Context) error {
	app.logger.Info(ctx, "Starting app...", "data_dir", app.config.DataDir)

	runErr := app.server.Run(ctx)
	closeErr := app.store.Close()
	if runErr != nil {
		return runErr
	}
	return closeErr
}

// IssueToken signs an access token for userID with the configured secret.
func IssueToken(cfg config.AppConfig, userID string) (string, error) {
	return auth.GenerateToken(userID, []byte(cfg.SigningSecret), cfg.TokenTTL)
}
