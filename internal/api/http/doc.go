// Package http provides the REST surface of the terminal service.
//
// Endpoints:
//   - GET    /             service banner
//   - GET    /health       status, session counts by state, uptime
//   - GET    /sessions     caller's live sessions
//   - DELETE /sessions/:id close a session; ?keepAlive=true only detaches it
//   - GET    /sessions/:id/stats  throughput, message count, runtime
//   - GET    /metrics/json headline counters
//
// Session routes are scoped to the owner identity set by
// middleware.Identity.
package http
