package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/dmitrijs2005/tabkeeper/internal/client/merge"
	"github.com/dmitrijs2005/tabkeeper/internal/client/models"
	"github.com/dmitrijs2005/tabkeeper/internal/client/storage"
	"github.com/dmitrijs2005/tabkeeper/internal/common"
)

// DirtyTracker is told about every local mutation (see syncer.Orchestrator).
type DirtyTracker interface {
	MarkDirty(ctx context.Context) error
}

// Kind names one of the three synced record kinds.
type Kind string

const (
	KindWorkspace  Kind = "workspace"
	KindCollection Kind = "collection"
	KindTab        Kind = "tab"
)

var ErrUnknownKind = errors.New("unknown record kind")

// LibraryService holds the local domain operations on workspaces,
// collections and tabs. Deletes are soft and cascade to children.
type LibraryService interface {
	CreateWorkspace(ctx context.Context, name string) (*models.Workspace, error)
	CreateCollection(ctx context.Context, workspaceID, name string) (*models.Collection, error)
	AddTab(ctx context.Context, collectionID, title, rawURL string) (*models.Tab, error)

	RenameWorkspace(ctx context.Context, id, name string) error
	RenameCollection(ctx context.Context, id, name string) error
	UpdateTab(ctx context.Context, id string, patch models.TabPatch) error
	Reorder(ctx context.Context, kind Kind, id string, order int) error

	DeleteWorkspace(ctx context.Context, id string) error
	DeleteCollection(ctx context.Context, id string) error
	DeleteTab(ctx context.Context, id string) error

	Workspaces(ctx context.Context) ([]models.Workspace, error)
	Collections(ctx context.Context, workspaceID string) ([]models.Collection, error)
	Tabs(ctx context.Context, collectionID string) ([]models.Tab, error)
}

type libraryService struct {
	store storage.Store
	dirty DirtyTracker
	clock models.Clock
}

func NewLibraryService(store storage.Store, dirty DirtyTracker, clock models.Clock) LibraryService {
	return &libraryService{store: store, dirty: dirty, clock: clock}
}

func validateName(field, v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", fmt.Errorf("%w: %s must not be empty", common.ErrValidation, field)
	}
	return v, nil
}

func validateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.ParseRequestURI(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: invalid url %q", common.ErrValidation, raw)
	}
	return raw, nil
}

// touched tells the tracker about an edit. The store already persisted the
// dirty flag with the edit itself.
func (s *libraryService) touched(ctx context.Context) error {
	if err := s.dirty.MarkDirty(ctx); err != nil {
		return fmt.Errorf("mark dirty: %w", err)
	}
	return nil
}

func nextOrder[T interface{ GetOrder() int }](siblings []T) int {
	next := 0
	for _, s := range siblings {
		if o := s.GetOrder(); o >= next {
			next = o + 1
		}
	}
	return next
}

func (s *libraryService) CreateWorkspace(ctx context.Context, name string) (*models.Workspace, error) {
	name, err := validateName("workspace name", name)
	if err != nil {
		return nil, err
	}
	siblings, err := s.Workspaces(ctx)
	if err != nil {
		return nil, err
	}

	w := models.NewWorkspace(s.clock, name, nextOrder(siblings))
	if err := s.store.SaveWorkspace(ctx, w); err != nil {
		return nil, fmt.Errorf("saving error: %w", err)
	}
	return w, s.touched(ctx)
}

func (s *libraryService) CreateCollection(ctx context.Context, workspaceID, name string) (*models.Collection, error) {
	name, err := validateName("collection name", name)
	if err != nil {
		return nil, err
	}
	if _, err := s.activeWorkspace(ctx, workspaceID); err != nil {
		return nil, err
	}
	siblings, err := s.Collections(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	c := models.NewCollection(s.clock, workspaceID, name, nextOrder(siblings))
	if err := s.store.SaveCollection(ctx, c); err != nil {
		return nil, fmt.Errorf("saving error: %w", err)
	}
	return c, s.touched(ctx)
}

func (s *libraryService) AddTab(ctx context.Context, collectionID, title, rawURL string) (*models.Tab, error) {
	u, err := validateURL(rawURL)
	if err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = u
	}
	if _, err := s.activeCollection(ctx, collectionID); err != nil {
		return nil, err
	}
	siblings, err := s.Tabs(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	t := models.NewTab(s.clock, collectionID, title, u, nextOrder(siblings))
	if err := s.store.SaveTab(ctx, t); err != nil {
		return nil, fmt.Errorf("saving error: %w", err)
	}
	return t, s.touched(ctx)
}

func (s *libraryService) activeWorkspace(ctx context.Context, id string) (*models.Workspace, error) {
	w, err := s.store.GetWorkspace(ctx, id)
	if err != nil {
		return nil, err
	}
	if w.IsDeleted() {
		return nil, fmt.Errorf("workspace %s: %w", id, common.ErrNotFound)
	}
	return w, nil
}

func (s *libraryService) activeCollection(ctx context.Context, id string) (*models.Collection, error) {
	c, err := s.store.GetCollection(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.IsDeleted() {
		return nil, fmt.Errorf("collection %s: %w", id, common.ErrNotFound)
	}
	return c, nil
}

func (s *libraryService) activeTab(ctx context.Context, id string) (*models.Tab, error) {
	t, err := s.store.GetTab(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.IsDeleted() {
		return nil, fmt.Errorf("tab %s: %w", id, common.ErrNotFound)
	}
	return t, nil
}

func (s *libraryService) RenameWorkspace(ctx context.Context, id, name string) error {
	name, err := validateName("workspace name", name)
	if err != nil {
		return err
	}
	w, err := s.activeWorkspace(ctx, id)
	if err != nil {
		return err
	}
	w.Rename(s.clock.Millis(), name)
	if err := s.store.SaveWorkspace(ctx, w); err != nil {
		return fmt.Errorf("saving error: %w", err)
	}
	return s.touched(ctx)
}

func (s *libraryService) RenameCollection(ctx context.Context, id, name string) error {
	name, err := validateName("collection name", name)
	if err != nil {
		return err
	}
	c, err := s.activeCollection(ctx, id)
	if err != nil {
		return err
	}
	c.Rename(s.clock.Millis(), name)
	if err := s.store.SaveCollection(ctx, c); err != nil {
		return fmt.Errorf("saving error: %w", err)
	}
	return s.touched(ctx)
}

func (s *libraryService) UpdateTab(ctx context.Context, id string, patch models.TabPatch) error {
	if patch.URL != nil {
		u, err := validateURL(*patch.URL)
		if err != nil {
			return err
		}
		patch.URL = &u
	}
	t, err := s.activeTab(ctx, id)
	if err != nil {
		return err
	}
	t.Update(s.clock.Millis(), patch)
	if err := s.store.SaveTab(ctx, t); err != nil {
		return fmt.Errorf("saving error: %w", err)
	}
	return s.touched(ctx)
}

func (s *libraryService) Reorder(ctx context.Context, kind Kind, id string, order int) error {
	now := s.clock.Millis()

	var err error
	switch kind {
	case KindWorkspace:
		var w *models.Workspace
		if w, err = s.activeWorkspace(ctx, id); err == nil {
			w.Reorder(now, order)
			err = s.store.SaveWorkspace(ctx, w)
		}
	case KindCollection:
		var c *models.Collection
		if c, err = s.activeCollection(ctx, id); err == nil {
			c.Reorder(now, order)
			err = s.store.SaveCollection(ctx, c)
		}
	case KindTab:
		var t *models.Tab
		if t, err = s.activeTab(ctx, id); err == nil {
			t.Reorder(now, order)
			err = s.store.SaveTab(ctx, t)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if err != nil {
		return err
	}
	return s.touched(ctx)
}

// cascade tombstones the selected records in one transaction. Children are
// deleted with the same timestamp as their parent.
func (s *libraryService) cascade(ctx context.Context, workspaceIDs, collectionIDs, tabIDs map[string]bool) error {
	now := s.clock.Millis()
	err := s.store.UpdateLocal(ctx, now, func(d *models.Dataset) (*models.Dataset, error) {
		for i := range d.Workspaces {
			if workspaceIDs[d.Workspaces[i].ID] {
				d.Workspaces[i].MarkDeleted(now)
			}
		}
		for i := range d.Collections {
			c := &d.Collections[i]
			if collectionIDs[c.ID] || workspaceIDs[c.WorkspaceID] {
				collectionIDs[c.ID] = true
				c.MarkDeleted(now)
			}
		}
		for i := range d.Tabs {
			t := &d.Tabs[i]
			if tabIDs[t.ID] || collectionIDs[t.CollectionID] {
				t.MarkDeleted(now)
			}
		}
		return d, nil
	})
	if err != nil {
		return fmt.Errorf("delete error: %w", err)
	}
	return s.touched(ctx)
}

func (s *libraryService) DeleteWorkspace(ctx context.Context, id string) error {
	if _, err := s.activeWorkspace(ctx, id); err != nil {
		return err
	}
	return s.cascade(ctx, map[string]bool{id: true}, map[string]bool{}, nil)
}

func (s *libraryService) DeleteCollection(ctx context.Context, id string) error {
	if _, err := s.activeCollection(ctx, id); err != nil {
		return err
	}
	return s.cascade(ctx, nil, map[string]bool{id: true}, nil)
}

func (s *libraryService) DeleteTab(ctx context.Context, id string) error {
	if _, err := s.activeTab(ctx, id); err != nil {
		return err
	}
	return s.cascade(ctx, nil, map[string]bool{}, map[string]bool{id: true})
}

func byOrder[T interface{ GetOrder() int }](items []T) []T {
	sort.SliceStable(items, func(i, j int) bool { return items[i].GetOrder() < items[j].GetOrder() })
	return items
}

func (s *libraryService) Workspaces(ctx context.Context) ([]models.Workspace, error) {
	d, err := s.store.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	return byOrder(merge.ActiveOnly(d.Workspaces)), nil
}

func (s *libraryService) Collections(ctx context.Context, workspaceID string) ([]models.Collection, error) {
	d, err := s.store.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.Collection
	for _, c := range merge.ActiveOnly(d.Collections) {
		if c.WorkspaceID == workspaceID {
			out = append(out, c)
		}
	}
	return byOrder(out), nil
}

func (s *libraryService) Tabs(ctx context.Context, collectionID string) ([]models.Tab, error) {
	d, err := s.store.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.Tab
	for _, t := range merge.ActiveOnly(d.Tabs) {
		if t.CollectionID == collectionID {
			out = append(out, t)
		}
	}
	return byOrder(out), nil
}
