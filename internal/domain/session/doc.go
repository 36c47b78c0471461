// Package session is the terminal session multiplexer: the registry of
// PTY-backed shells, their lifecycle state machine and their bindings to
// client channels.
//
// Components:
//   - Registry: id → Session map, scoped by owner identity
//   - Session: one shell with output history, batcher and counters
//   - History: ring of the most recent output chunks for replay
//   - Reaper: optional cron job that kills long-detached sessions
//
// Lifecycle:
//   - Create spawns a shell and binds it Active to the requesting channel.
//   - Close(keepAlive=true) or a dropped channel moves it to Detached; the
//     shell keeps running and its output keeps filling history.
//   - Reattach binds a channel again and replays the last ReplayChunks
//     chunks. Last attach wins: a previously bound channel stops receiving
//     output without being closed.
//   - Close(keepAlive=false), shell exit or the reaper moves it to
//     Terminated, and the entry is removed at once.
//
// Invariants:
//   - A session has a bound channel if and only if it is Active.
//   - Output reaches the channel in the order the OS produced it.
//   - Session ids are ULIDs and are never reused.
//
// Example Usage:
//
//	registry := session.NewRegistry(cfg, logger).WithMetrics(metrics)
//	sess, err := registry.Create(owner, session.CreateRequest{Cols: 80, Rows: 24}, conn)
//	err = registry.Input(owner, sess.ID, []byte("ls\n"))
//	err = registry.Close(owner, sess.ID, true, nil)
//	sess, err = registry.Reattach(owner, sess.ID, session.ReattachRequest{}, conn)
package session
