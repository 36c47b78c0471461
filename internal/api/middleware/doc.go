// Package middleware provides gin middleware shared by the HTTP and
// websocket surfaces.
//
//   - CORS: gin-contrib/cors with the identity header allowed
//   - RateLimit: per-IP token buckets from golang.org/x/time/rate
//   - Identity: owner identity from a header or the identity query parameter
package middleware
