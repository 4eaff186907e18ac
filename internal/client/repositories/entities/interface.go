package entities

import (
	"context"

	"github.com/dmitrijs2005/tabkeeper/internal/client/models"
)

// Repository describes storage operations on the three synced kinds.
type Repository interface {
	UpsertWorkspace(ctx context.Context, w *models.Workspace) error
	UpsertCollection(ctx context.Context, c *models.Collection) error
	UpsertTab(ctx context.Context, t *models.Tab) error

	GetWorkspace(ctx context.Context, id string) (*models.Workspace, error)
	GetCollection(ctx context.Context, id string) (*models.Collection, error)
	GetTab(ctx context.Context, id string) (*models.Tab, error)

	ListWorkspaces(ctx context.Context, changedSince int64) ([]models.Workspace, error)
	ListCollections(ctx context.Context, changedSince int64) ([]models.Collection, error)
	ListTabs(ctx context.Context, changedSince int64) ([]models.Tab, error)

	// Clear removes every record of every kind.
	Clear(ctx context.Context) error
}
