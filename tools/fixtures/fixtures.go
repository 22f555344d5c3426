// Package fixtures provides small, deterministic tool.Call implementations
// used by the demo command and by package tests exercising timeout, retry,
// and success/failure paths without any network dependency.
package fixtures

import (
	"context"
	"fmt"
	"time"

	"dagforge.dev/dagforge/tools"
)

// Echo returns its inputs unchanged, wrapped in a success Envelope. Useful
// for round-tripping placeholder resolution and trace plumbing.
func Echo(_ context.Context, inputs map[string]any) (any, error) {
	return inputs, nil
}

// Sleep blocks for the duration named by inputs["seconds"] (default 1s)
// before returning success, letting callers exercise the Invoker's timeout
// path deterministically.
func Sleep(ctx context.Context, inputs map[string]any) (any, error) {
	d := time.Second
	if v, ok := inputs["seconds"].(float64); ok {
		d = time.Duration(v * float64(time.Second))
	}
	select {
	case <-time.After(d):
		return map[string]any{"slept_seconds": d.Seconds()}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// AlwaysFail returns an error every call, letting callers exercise the
// Invoker's retry-exhaustion path deterministically.
func AlwaysFail(_ context.Context, _ map[string]any) (any, error) {
	return nil, fmt.Errorf("fixtures: deliberate failure")
}

// FailNTimes returns a Call that fails its first n invocations and
// succeeds thereafter, for exercising retry-then-succeed.
func FailNTimes(n int, result any) tools.Call {
	attempts := 0
	return func(_ context.Context, _ map[string]any) (any, error) {
		attempts++
		if attempts <= n {
			return nil, fmt.Errorf("fixtures: transient failure (attempt %d)", attempts)
		}
		return result, nil
	}
}

// Reasoning is a stub llm_caller-function implementation for tests and the
// demo command that don't want a real model.Client in the loop: it returns
// a success envelope whose result is the (already placeholder-resolved)
// prompt prefixed with "synthesized: ".
func Reasoning(_ context.Context, inputs map[string]any) (any, error) {
	prompt, _ := inputs["prompt"].(string)
	return map[string]any{"status": "success", "result": "synthesized: " + prompt}, nil
}
