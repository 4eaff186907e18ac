// Package merge reconciles two replicas of the same record set.
//
// The policy is last-writer-wins over whole records. Each side's version of a
// record is compared by its effective timestamp (deletedAt when the record is
// a tombstone, updatedAt otherwise); the newer one survives. Records known to
// only one side are always kept. Ties keep the local copy so that merging the
// same payload twice is a no-op.
//
// Merge is a pure function: it never fails and never blocks.
package merge

import "github.com/dmitrijs2005/tabkeeper/internal/client/models"

// Stats counts the conflicts resolved in one merge. Ids present on both sides
// with equal effective timestamps, and ids present on one side only, are not
// conflicts and are not counted.
type Stats struct {
	LocalWins  int `json:"localWins"`
	ServerWins int `json:"serverWins"`
}

// Add returns the element-wise sum of two stats.
func (s Stats) Add(o Stats) Stats {
	return Stats{LocalWins: s.LocalWins + o.LocalWins, ServerWins: s.ServerWins + o.ServerWins}
}

// Conflicts is the number of ids resolved one way or the other.
func (s Stats) Conflicts() int {
	return s.LocalWins + s.ServerWins
}

// Merge combines local and incoming into one converged slice.
//
// Output order is deterministic: local records keep their positions (with
// replaced versions substituted in place), followed by records absorbed from
// incoming in the order they arrived. Neither input is modified.
func Merge[T models.Entity](local, incoming []T) ([]T, Stats) {
	var stats Stats

	merged := make([]T, len(local), len(local)+len(incoming))
	copy(merged, local)

	index := make(map[string]int, len(merged))
	for i, e := range merged {
		index[e.GetID()] = i
	}

	for _, in := range incoming {
		i, ok := index[in.GetID()]
		if !ok {
			index[in.GetID()] = len(merged)
			merged = append(merged, in)
			continue
		}

		incomingTS := models.EffectiveTimestamp(in)
		localTS := models.EffectiveTimestamp(merged[i])
		switch {
		case incomingTS > localTS:
			merged[i] = in
			stats.ServerWins++
		case incomingTS < localTS:
			stats.LocalWins++
		}
	}

	return merged, stats
}

// ActiveOnly drops tombstones. Its result is for display only; feeding it back
// into Merge would lose deletions.
func ActiveOnly[T models.Entity](entities []T) []T {
	active := make([]T, 0, len(entities))
	for _, e := range entities {
		if e.GetDeletedAt() == nil {
			active = append(active, e)
		}
	}
	return active
}

// Dataset merges each entity kind independently. Cross-kind references are
// not checked here; that happens at ingress. The local checkpoint is kept.
func Dataset(local, incoming *models.Dataset) (*models.Dataset, Stats) {
	workspaces, ws := Merge(local.Workspaces, incoming.Workspaces)
	collections, cs := Merge(local.Collections, incoming.Collections)
	tabs, ts := Merge(local.Tabs, incoming.Tabs)

	out := &models.Dataset{
		Workspaces:        workspaces,
		Collections:       collections,
		Tabs:              tabs,
		LastSyncTimestamp: local.LastSyncTimestamp,
	}
	return out, ws.Add(cs).Add(ts)
}
