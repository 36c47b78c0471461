// Package server assembles the terminal service: configuration, logging,
// metrics, the session registry with its background jobs, and the gin
// router serving REST, websocket and metrics endpoints.
//
// Routes:
//   - GET    /, /health
//   - GET    /sessions, DELETE /sessions/:id, GET /sessions/:id/stats
//   - GET    /terminal (websocket)
//   - GET    /metrics, /metrics/json
//
// Shutdown order: stop accepting HTTP, close websockets, stop the stats
// reporter and reaper, kill every shell, sync the logger.
package server
