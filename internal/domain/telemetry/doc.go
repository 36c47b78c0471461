// Package telemetry keeps per-session output counters and pushes periodic
// stats snapshots to bound clients. It is observability only and never
// gates session behavior.
package telemetry
