package models

import (
	"errors"
	"fmt"
)

// Dataset is a full replica snapshot: every workspace, collection and tab,
// tombstones included, plus the checkpoint the snapshot was synced up to.
type Dataset struct {
	Workspaces        []Workspace  `json:"workspaces"`
	Collections       []Collection `json:"collections"`
	Tabs              []Tab        `json:"tabs"`
	LastSyncTimestamp int64        `json:"lastSyncTimestamp"`
}

// Len returns the total number of records in the snapshot.
func (d *Dataset) Len() int {
	return len(d.Workspaces) + len(d.Collections) + len(d.Tabs)
}

// ErrBrokenReference is wrapped by every violation returned from ValidateReferences.
var ErrBrokenReference = errors.New("unresolved parent reference")

// KnownIDs is the set of parent ids already stored outside the payload.
type KnownIDs struct {
	Workspaces  map[string]struct{}
	Collections map[string]struct{}
}

// ValidateReferences checks that every collection points at a workspace and
// every tab at a collection, looking in the payload itself and in known.
// Tombstoned parents count as resolvable. All violations are joined into a
// single error; nil means the payload is consistent.
func (d *Dataset) ValidateReferences(known KnownIDs) error {
	workspaces := make(map[string]struct{}, len(d.Workspaces))
	for _, w := range d.Workspaces {
		workspaces[w.ID] = struct{}{}
	}
	collections := make(map[string]struct{}, len(d.Collections))
	for _, c := range d.Collections {
		collections[c.ID] = struct{}{}
	}

	has := func(local, stored map[string]struct{}, id string) bool {
		if _, ok := local[id]; ok {
			return true
		}
		_, ok := stored[id]
		return ok
	}

	var errs []error
	for _, c := range d.Collections {
		if !has(workspaces, known.Workspaces, c.WorkspaceID) {
			errs = append(errs, fmt.Errorf("%w: collection %s -> workspace %q", ErrBrokenReference, c.ID, c.WorkspaceID))
		}
	}
	for _, t := range d.Tabs {
		if !has(collections, known.Collections, t.CollectionID) {
			errs = append(errs, fmt.Errorf("%w: tab %s -> collection %q", ErrBrokenReference, t.ID, t.CollectionID))
		}
	}
	return errors.Join(errs...)
}
