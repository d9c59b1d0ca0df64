// Package api implements the HTTP query surface and WebSocket stream.
//
// This package provides:
//   - Query endpoints for connection state, the journal and the bridge snapshot
//   - A webhook endpoint that feeds pushed foreground-app notifications to the bridge
//   - A WebSocket hub broadcasting state, connection and journal events
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Routes
//
//	GET  /api/v1/health      liveness, bridge status and dependency checks
//	GET  /api/v1/metrics     runtime, hub, journal and host subprocess stats
//	GET  /api/v1/connection  {"connected": bool}
//	GET  /api/v1/logs        {"logs": [...]}, oldest first
//	GET  /api/v1/state       bridge snapshot
//	POST /api/v1/foreground  raw foreground-app notification (webhook source only)
//	GET  /api/v1/ws          WebSocket upgrade
//
// The surface is read-only apart from the webhook and carries no
// authentication. Bind it to a loopback address unless the network is trusted.
package api
