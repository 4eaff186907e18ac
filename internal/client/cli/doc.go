// Package cli provides the interactive TabKeeper command-line client.
//
// It wires configuration, the local replica, the sync engine and an
// interactive REPL that keeps working offline. Typical flow: restore the
// stored session, start the connectivity monitor and background sync, then
// execute user commands against the local replica.
//
// Key features:
//   - Login / Logout (access token, optional wipe of local data)
//   - Workspaces, collections and tabs: add, rename, move, delete
//   - Tree listing of the active library
//   - Manual sync and a passive sync status in the prompt
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
