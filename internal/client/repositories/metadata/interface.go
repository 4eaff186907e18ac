// Package metadata stores small key/value facts about the local replica:
// the sync checkpoint, the dirty flag, the time of the last local change and
// the access token.
package metadata

import (
	"context"
)

// Well-known keys.
const (
	KeyLastSyncTimestamp = "last_sync_timestamp"
	KeyDirty             = "dirty"
	KeyLastLocalChangeAt = "last_local_change_at"
	KeyAccessToken       = "access_token"
)

// Repository reads and writes typed values. Missing keys read as the zero
// value; GetString also reports whether the key was present.
type Repository interface {
	GetString(ctx context.Context, key string) (string, bool, error)
	SetString(ctx context.Context, key, value string) error

	GetInt64(ctx context.Context, key string) (int64, error)
	SetInt64(ctx context.Context, key string, v int64) error

	GetBool(ctx context.Context, key string) (bool, error)
	SetBool(ctx context.Context, key string, v bool) error

	Delete(ctx context.Context, keys ...string) error
	Clear(ctx context.Context) error
}
