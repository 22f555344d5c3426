// Package run defines the per-invocation context threaded through the Plan
// Compiler and DAG Executor: a run identity, the event sink, and the
// dangerous tool approval callback. Cancellation is carried by the
// context.Context passed alongside it. Nothing here is a process-wide
// singleton — each run constructs its own Context so tests stay
// hermetic, per the design notes on avoiding ambient globals.
package run

import (
	"context"

	"dagforge.dev/dagforge/events"
)

// ApprovalDecider is consulted synchronously by the DAG Executor before
// submitting a dangerous tool, when approval is required. Implementations
// may prompt a human, consult a policy table, or auto-approve in tests.
// Returning false halts the run (approval denial is fatal, per §4.6).
type ApprovalDecider func(ctx context.Context, tool, function string) bool

// AlwaysApprove is an ApprovalDecider that never blocks, suitable for
// environments where require_approval is disabled.
func AlwaysApprove(context.Context, string, string) bool { return true }

// Context carries the identity and collaborators for a single run. It is
// not a context.Context itself (Go's context.Context is still threaded
// separately for cancellation and deadlines) but a small value object
// passed alongside it.
type Context struct {
	RunID        string
	TraceVersion int
	Events       events.Sink
	Approve      ApprovalDecider
}

// New constructs a Context. A nil approve defaults to AlwaysApprove so
// callers that never exercise dangerous tools do not need to supply one.
func New(runID string, sink events.Sink, approve ApprovalDecider) *Context {
	if approve == nil {
		approve = AlwaysApprove
	}
	return &Context{
		RunID:        runID,
		TraceVersion: 1,
		Events:       sink,
		Approve:      approve,
	}
}
