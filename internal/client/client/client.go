package client

import (
	"context"

	"github.com/dmitrijs2005/tabkeeper/internal/client/models"
)

// PullRequest asks for every record changed after LastSyncTimestamp.
type PullRequest struct {
	LastSyncTimestamp int64 `json:"lastSyncTimestamp"`
}

// Client is the transport the sync engine talks to.
//
// Push uploads the full local replica (tombstones included) together with the
// checkpoint it was last synced at; the server upserts by id. Pull returns the
// records changed since a checkpoint plus the new checkpoint to store.
//
// Failures are always *SyncError values (see KindOf).
type Client interface {
	Push(ctx context.Context, payload *models.Dataset) error
	Pull(ctx context.Context, req PullRequest) (*models.Dataset, error)
	Ping(ctx context.Context) error
	SetAccessToken(token string)
	Close() error
}
