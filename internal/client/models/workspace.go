package models

import "github.com/google/uuid"

// Workspace is the top level container.
type Workspace struct {
	Syncable
	Name string `json:"name"`
}

// NewWorkspace creates a workspace with a fresh id.
func NewWorkspace(clock Clock, name string, order int) *Workspace {
	w := &Workspace{Name: name}
	w.init(uuid.NewString(), clock.Millis())
	w.Order = order
	return w
}

// Rename changes the display name.
func (w *Workspace) Rename(now int64, name string) {
	w.Name = name
	w.Touch(now)
}
