// Package services contains application services for the TabKeeper client.
// This file defines the session service: sign-in with a server-issued access
// token, restoring the session on start, and sign-out with optional wipe of
// the local replica.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/tabkeeper/internal/client/client"
	"github.com/dmitrijs2005/tabkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/tabkeeper/internal/client/storage"
	"github.com/dmitrijs2005/tabkeeper/internal/common"
)

// ErrNotSignedIn is returned by RestoreSession when no token is stored.
var ErrNotSignedIn = errors.New("not signed in")

// AuthService defines session operations for the CLI.
//
// Contract:
//   - SignIn: remember the token locally and attach it to every request.
//   - RestoreSession: reattach a previously stored token.
//   - SignOut: forget the token; with wipe, also drop the local replica.
//   - Ping: check server liveness.
//   - Close: release underlying client resources.
type AuthService interface {
	SignIn(ctx context.Context, token string) error
	RestoreSession(ctx context.Context) error
	SignOut(ctx context.Context, wipe bool) error
	SignedIn(ctx context.Context) (bool, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// authService is the concrete AuthService backed by a remote Client
// and the local SQLite database.
type authService struct {
	client client.Client
	db     *sql.DB
	store  storage.Store
}

// NewAuthService constructs an AuthService bound to the given API client,
// database and replica store.
func NewAuthService(client client.Client, db *sql.DB, store storage.Store) AuthService {
	return &authService{client: client, db: db, store: store}
}

func (a *authService) getMetadataRepo() metadata.Repository {
	return metadata.NewSQLiteRepository(a.db)
}

func (a *authService) SignIn(ctx context.Context, token string) error {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), common.BearerPrefix))
	if token == "" {
		return fmt.Errorf("%w: token must not be empty", common.ErrValidation)
	}
	if err := a.getMetadataRepo().SetString(ctx, metadata.KeyAccessToken, token); err != nil {
		return fmt.Errorf("token saving error: %w", err)
	}
	a.client.SetAccessToken(token)
	return nil
}

func (a *authService) RestoreSession(ctx context.Context) error {
	token, ok, err := a.getMetadataRepo().GetString(ctx, metadata.KeyAccessToken)
	if err != nil {
		return err
	}
	if !ok || token == "" {
		return ErrNotSignedIn
	}
	a.client.SetAccessToken(token)
	return nil
}

func (a *authService) SignedIn(ctx context.Context) (bool, error) {
	token, _, err := a.getMetadataRepo().GetString(ctx, metadata.KeyAccessToken)
	if err != nil {
		return false, err
	}
	return token != "", nil
}

// SignOut forgets the token. With wipe it also clears every local record and
// the sync bookkeeping; otherwise unsynced edits stay and sync after the next
// sign-in.
func (a *authService) SignOut(ctx context.Context, wipe bool) error {
	a.client.SetAccessToken("")
	if wipe {
		return a.store.ClearAll(ctx)
	}
	return a.getMetadataRepo().Delete(ctx, metadata.KeyAccessToken)
}

// Ping proxies a liveness check to the underlying client.
func (a *authService) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}

// Close releases resources held by the underlying client.
func (a *authService) Close(ctx context.Context) error {
	return a.client.Close()
}
