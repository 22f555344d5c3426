package tools

import (
	"context"
	"time"
)

// retryDelay is the fixed pause between retry attempts (§4.2 step 4).
const retryDelay = 1 * time.Second

// invocationResult carries the outcome of one attempt back from the
// execution goroutine to Invoke.
type invocationResult struct {
	value any
	err   error
}

// Invoker executes a single tool call with a bounded wall-clock timeout and
// a fixed number of retries. It does not know about rate limiting, circuit
// breaking, or authority classification — those are the caller's concern.
type Invoker struct{}

// NewInvoker constructs an Invoker. It carries no state; a single instance
// can be shared by every node execution in every run.
func NewInvoker() *Invoker { return &Invoker{} }

// Invoke launches call on a separate goroutine so its wall time can be
// bounded, waits up to timeout, and retries up to retry additional times
// on any non-success envelope. It returns the last envelope produced
// (success or error) and the number of attempts made.
//
// If the deadline elapses before call returns, the attempt is declared
// timed out and the goroutine is abandoned: its eventual completion (if
// any) is read by a buffered channel and discarded, so it can never mutate
// caller state or block forever.
func (i *Invoker) Invoke(ctx context.Context, call Call, inputs map[string]any, timeout time.Duration, retry int) (Envelope, int) {
	var last Envelope
	attempts := 0
	for {
		attempts++
		last = i.attempt(ctx, call, inputs, timeout)
		if last.IsSuccess() || attempts > retry {
			return last, attempts
		}
		select {
		case <-ctx.Done():
			return last, attempts
		case <-time.After(retryDelay):
		}
	}
}

// attempt runs exactly one bounded invocation of call.
func (i *Invoker) attempt(ctx context.Context, call Call, inputs map[string]any, timeout time.Duration) Envelope {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan invocationResult, 1)
	go func() {
		v, err := call(attemptCtx, inputs)
		done <- invocationResult{value: v, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return Fail(res.err.Error())
		}
		return Normalize(res.value)
	case <-attemptCtx.Done():
		return Failf("tool call timed out after %s", timeout)
	}
}
