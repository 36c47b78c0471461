/*
Package monitoring provides Prometheus metrics for the terminal backend.

# Overview

Metrics are registered on a private registry owned by each *Metrics, so
tests and embedded servers never collide on the global default registry.

Tracked series:

- HTTP request count and latency by route template
- Live sessions by state, creations, terminations, spawn failures
- Output frames by flush reason and frame size
- Reattachments and replay size
- WebSocket connections, messages and drops
- Uptime, plus the standard Go and process collectors

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

All recording methods accept a nil receiver.
*/
package monitoring
