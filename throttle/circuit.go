package throttle

import "time"

// state is the circuit breaker's two-value state machine (§3: CircuitState).
// There is no stored "half-open" value; half-open is a derived condition
// (IsOpen returns false once the recovery timeout has elapsed while state is
// still Open) rather than a third stored state, matching §4.1's is_open
// contract exactly.
type state string

const (
	closed state = "closed"
	open   state = "open"
)

// circuitState tracks failures and open/closed transitions for one
// provider. Access is guarded by the owning providerState's mutex.
type circuitState struct {
	st              state
	failures        int
	lastFailureTime time.Time
	openThreshold   int
	recoveryTimeout time.Duration
}

func newCircuitState(openThreshold int, recoveryTimeout time.Duration) circuitState {
	if openThreshold <= 0 {
		openThreshold = 5
	}
	if recoveryTimeout <= 0 {
		recoveryTimeout = 30 * time.Second
	}
	return circuitState{
		st:              closed,
		openThreshold:   openThreshold,
		recoveryTimeout: recoveryTimeout,
	}
}

// isOpen reports whether the circuit currently blocks calls. Once the
// recovery timeout has elapsed since the last recorded failure, the breaker
// reports closed (a half-open probe window) even though st is still Open;
// the next report() call will fully close or reopen it.
func (c *circuitState) isOpen(now time.Time) bool {
	if c.st != open {
		return false
	}
	return now.Sub(c.lastFailureTime) < c.recoveryTimeout
}

// recordSuccess clears the failure count and closes the circuit.
func (c *circuitState) recordSuccess() {
	c.failures = 0
	c.st = closed
}

// recordFailure increments the failure count and opens the circuit once the
// threshold is crossed. Called both for ordinary failures and, implicitly,
// for a failed probe observed after the recovery window (the next failure
// report reopens and resets the timer, per §4.1).
func (c *circuitState) recordFailure(now time.Time) {
	c.failures++
	if c.failures >= c.openThreshold {
		c.st = open
		c.lastFailureTime = now
	}
}
