// Package migrations embeds the goose SQL migrations of the local replica
// schema. The reference server reuses the same schema for its per-user stores.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
