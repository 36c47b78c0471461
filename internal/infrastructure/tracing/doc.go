/*
Package tracing provides lightweight request tracing for the HTTP and
websocket surfaces.

Each request gets a span whose trace id comes from the X-Trace-ID header
or a fresh req_<ULID>. Ids are echoed in the response headers and stored in
the request context, so the websocket handler can tag its connection logs
with the trace that opened it. Finished spans are written to the zap
logger.

# Usage

	tracer := tracing.New("webterm", logger)
	router.Use(tracing.HTTPMiddleware(tracer))

	traceID := tracing.GetTraceID(c.Request.Context())
*/
package tracing
