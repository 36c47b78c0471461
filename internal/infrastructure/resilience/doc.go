/*
Package resilience provides a circuit breaker for graceful degradation.

The terminal service puts one in front of shell spawning: when the host
keeps refusing new processes (out of pids, descriptors or memory), further
create requests fail fast instead of hammering fork.

# States

- Closed: normal operation, requests pass through
- Open: requests fail immediately with ErrCircuitOpen
- Half-Open: a limited number of trial requests decide whether to close

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                       [failure]
	                                           v
	                                          Open

# Usage

	breaker := resilience.New("spawn", resilience.Settings{
		Timeout:   30 * time.Second,
		IsFailure: isResourceLimit,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	err := breaker.Execute(func() error {
		proc, err = spawn()
		return err
	})
*/
package resilience
