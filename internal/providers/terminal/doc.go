// Package terminal supervises shell processes attached to pseudo-terminals.
//
// A Process owns exactly one OS shell started with creack/pty. Output is
// pushed to the OnOutput callback chunk by chunk as the OS produces it; the
// package does not buffer output for callers. Input writes are queued and
// applied in order by a writer goroutine, so Write never blocks on a slow
// shell.
//
// Lifecycle:
//   - Spawn checks the working directory, sanitizes the environment
//     (TERM=xterm-256color, COLORTERM=truecolor, LANG fallback) and starts
//     the shell in its own session.
//   - Kill signals the whole process group with SIGHUP, then SIGKILL after
//     KillGrace.
//   - OnExit fires exactly once after the final OnOutput call. From then on
//     Write and Resize return ErrProcessTerminated.
//
// Example Usage:
//
//	proc, err := terminal.Spawn(terminal.Options{Dir: "/workspace", Cols: 80, Rows: 24},
//		terminal.Events{
//			OnOutput: func(chunk []byte) { fmt.Print(string(chunk)) },
//			OnExit:   func(code int) { log.Printf("shell exited: %d", code) },
//		})
//	proc.Write([]byte("ls -la\n"))
//	proc.Resize(120, 40)
//	proc.Kill()
package terminal
