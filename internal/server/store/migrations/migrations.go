// Package migrations embeds the server-only tables that sit next to each
// per-user replica. They are versioned in their own goose table so the shared
// replica schema keeps its numbering.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
