// Package models defines the client-side data model: workspaces, collections
// and tabs, plus the domain operations that are allowed to mutate them.
//
// Every record carries the same lifecycle fields (see Syncable). Records are
// never removed physically; a delete sets DeletedAt and leaves a tombstone
// that travels through sync like any other change.
package models

import "time"

// Clock returns the current time. Production code uses time.Now; tests inject
// a fixed or stepping clock.
type Clock func() time.Time

// Millis converts the clock reading to epoch milliseconds.
func (c Clock) Millis() int64 {
	if c == nil {
		return time.Now().UnixMilli()
	}
	return c().UnixMilli()
}

// Entity is the minimal contract the merge engine needs.
type Entity interface {
	GetID() string
	GetUpdatedAt() int64
	GetDeletedAt() *int64
}

// Syncable holds the lifecycle fields shared by every synced record.
// Timestamps are epoch milliseconds.
type Syncable struct {
	ID        string `json:"id"`
	Order     int    `json:"order"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
	DeletedAt *int64 `json:"deletedAt,omitempty"`
}

func (s Syncable) GetID() string        { return s.ID }
func (s Syncable) GetUpdatedAt() int64  { return s.UpdatedAt }
func (s Syncable) GetDeletedAt() *int64 { return s.DeletedAt }
func (s Syncable) GetOrder() int        { return s.Order }

// IsDeleted reports whether the record is a tombstone.
func (s Syncable) IsDeleted() bool {
	return s.DeletedAt != nil
}

// EffectiveTimestamp is deletedAt when present, updatedAt otherwise.
func EffectiveTimestamp(e Entity) int64 {
	if d := e.GetDeletedAt(); d != nil {
		return *d
	}
	return e.GetUpdatedAt()
}

func (s *Syncable) init(id string, now int64) {
	s.ID = id
	s.CreatedAt = now
	s.UpdatedAt = now
}

// Touch bumps UpdatedAt. It never moves backwards, so a skewed clock cannot
// make a newer edit look older than the previous one.
func (s *Syncable) Touch(now int64) {
	if now > s.UpdatedAt {
		s.UpdatedAt = now
	}
}

// MarkDeleted turns the record into a tombstone. Deletion counts as the latest
// mutation: DeletedAt equals the bumped UpdatedAt. Deleting a tombstone again
// keeps the original deletion time.
func (s *Syncable) MarkDeleted(now int64) {
	if s.DeletedAt != nil {
		return
	}
	s.Touch(now)
	at := s.UpdatedAt
	s.DeletedAt = &at
}

// Reorder moves the record to a new sibling position.
func (s *Syncable) Reorder(now int64, order int) {
	s.Order = order
	s.Touch(now)
}

// Int64Ptr is a small helper for optional timestamps.
func Int64Ptr(v int64) *int64 {
	return &v
}
