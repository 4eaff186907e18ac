// Package client contains the transport used by the TabKeeper sync engine.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic API contract (see the Client interface): Push,
//     Pull and Ping against the remote store.
//  2. A concrete HTTP/JSON implementation (see HTTPClient) that injects the
//     bearer access token, bounds each call with a request timeout, and
//     classifies failures into a small taxonomy.
//
// # Error Handling
//
// Every failure is a *SyncError tagged with an ErrorKind:
//
//   - KindUnauthorized: HTTP 401; surfaced for re-login, never retried
//   - KindNetwork: dial/timeout errors and any other non-2xx status
//   - KindParse: response body is not valid JSON for the call
//   - KindUnknown: anything else
//
// Callers can match with errors.Is against ErrUnauthorized, ErrNetwork,
// ErrParse and ErrUnknown, or use KindOf / IsRetryable.
//
// Concurrency & Contexts
//
// HTTPClient is safe for concurrent use. All operations accept
// context.Context and honor cancellation in addition to the request timeout.
package client
