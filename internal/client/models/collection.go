package models

import "github.com/google/uuid"

// Collection groups tabs inside a workspace.
type Collection struct {
	Syncable
	WorkspaceID string `json:"workspaceId"`
	Name        string `json:"name"`
}

// NewCollection creates a collection under workspaceID.
func NewCollection(clock Clock, workspaceID, name string, order int) *Collection {
	c := &Collection{WorkspaceID: workspaceID, Name: name}
	c.init(uuid.NewString(), clock.Millis())
	c.Order = order
	return c
}

// Rename changes the display name.
func (c *Collection) Rename(now int64, name string) {
	c.Name = name
	c.Touch(now)
}
