// Package ws is the transport binder between browser websockets and the
// terminal session registry.
//
// Each connection gets a read pump, which validates frames, applies a
// per-connection rate limit and dispatches them, and a write pump, which
// owns every socket write and sends pings. Sessions push frames into a
// bounded per-connection queue; a connection that lets the queue fill is
// closed and its sessions are detached.
//
// Message Types (Client → Server):
//   - create, input, resize, close, reattach, listMine, ping
//
// Message Types (Server → Client):
//   - connected: greeting with connection id and identity
//   - created, reattached, closed, sessionList, pong: replies
//   - output, stats, terminated: pushed by sessions
//   - error: {sessionId?, code, reason}
//
// Example Usage:
//
//	handler := ws.NewHandler(registry, ws.DefaultConfig(), logger, metrics)
//	router.GET("/terminal", middleware.Identity("X-Owner-Identity"), handler.HandleConnection)
package ws
