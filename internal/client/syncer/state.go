// Package syncer drives push/pull sync cycles between the local replica and
// the server: when to sync, the ordered steps of one cycle, dirty-flag
// bookkeeping and retry with exponential backoff.
package syncer

import (
	"time"

	"github.com/dmitrijs2005/tabkeeper/internal/client/merge"
)

// Status is the passive indicator shown to the user.
type Status string

const (
	StatusIdle         Status = "idle"
	StatusSyncing      Status = "syncing"
	StatusError        Status = "error"
	StatusUnauthorized Status = "unauthorized"
)

const (
	DefaultMinRetryDelay = time.Second
	DefaultMaxRetryDelay = time.Minute
	DefaultSyncInterval  = time.Minute
)

// SkipReason explains why a trigger did not start a cycle.
type SkipReason string

const (
	SkipNotDirty     SkipReason = "nothing to sync"
	SkipOffline      SkipReason = "offline"
	SkipInProgress   SkipReason = "sync already in progress"
	SkipUnauthorized SkipReason = "waiting for sign-in"
)

// ShouldSync is the gate evaluated before every attempt.
func ShouldSync(dirty, online, syncing bool) bool {
	return dirty && online && !syncing
}

// NextRetryDelay returns the delay after one more consecutive failure:
// minDelay first, then doubling, never above maxDelay.
func NextRetryDelay(current, minDelay, maxDelay time.Duration) time.Duration {
	if current < minDelay {
		return minDelay
	}
	next := current * 2
	if next > maxDelay || next < current {
		return maxDelay
	}
	return next
}

// State is a point-in-time copy of the orchestrator state.
type State struct {
	Dirty             bool
	Syncing           bool
	LastSyncTimestamp int64
	LastLocalChangeAt int64
	RetryDelay        time.Duration
	Status            Status
	LastError         error
}

// Result describes one SyncNow call.
type Result struct {
	Skipped    bool
	Reason     SkipReason
	Pushed     int
	Pulled     int
	Stats      merge.Stats
	Checkpoint int64
	// Dirty is true when local changes arrived during the cycle and a
	// follow-up sync is owed.
	Dirty bool
}
