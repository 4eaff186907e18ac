// Package common contains shared constants and sentinel errors used across
// TabKeeper components.
package common

const (
	// AuthorizationHeaderName carries "Bearer <token>" on sync requests.
	AuthorizationHeaderName = "Authorization"

	// BearerPrefix precedes the access token in the Authorization header.
	BearerPrefix = "Bearer "

	// API routes shared by the client transport and the server router.
	RoutePing = "/api/ping"
	RoutePush = "/api/sync/push"
	RoutePull = "/api/sync/pull"
)
