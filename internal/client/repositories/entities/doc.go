// Package entities provides the persistence layer for workspaces,
// collections and tabs.
//
// # Data Model
//
// Each kind lives in its own table keyed by id. Tombstones stay in the table
// with deleted_at set; nothing is ever physically removed except by Clear.
// Writes are upserts, so saving a record that already exists replaces it.
//
// # Change queries
//
// The List* methods take a changedSince checkpoint and return only records
// whose effective timestamp (deleted_at, else updated_at) is strictly greater.
// Passing 0 returns everything. Rows come back ordered by sort_order, then
// insertion order.
//
// # Concurrency
//
// The repository works over dbx.DBTX, so it can be bound to *sql.DB or to a
// *sql.Tx inside dbx.WithTx.
//
// Typical Usage
//
//	repo := entities.NewSQLiteRepository(db)
//	_ = repo.UpsertTab(ctx, &tab)
//	tabs, _ := repo.ListTabs(ctx, 0)
//	changed, _ := repo.ListTabs(ctx, checkpoint)
package entities
