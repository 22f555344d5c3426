// Package events defines the ordered, typed event stream the DAG Executor
// and Plan Compiler emit for a run: status updates, plan creation, per-node
// lifecycle, approval prompts, and the terminal final_answer or error. Every
// event carries the run id and a Unix-millisecond timestamp; ordering is
// guaranteed by the scheduling goroutine that emits them, never by the
// events themselves.
package events

import "time"

// EventType enumerates the well-known event kinds named in the external
// event stream contract.
type EventType string

const (
	Status           EventType = "status"
	PlanCreated      EventType = "plan_created"
	StepStart        EventType = "step_start"
	DebugArgs        EventType = "debug_args"
	ApprovalRequired EventType = "approval_required"
	StepComplete     EventType = "step_complete"
	FinalAnswer      EventType = "final_answer"
	Error            EventType = "error"
)

// Event is the interface every emitted event satisfies.
type Event interface {
	Type() EventType
	RunID() string
	Timestamp() int64
}

type base struct {
	runID     string
	timestamp int64
}

func newBase(runID string) base {
	return base{runID: runID, timestamp: time.Now().UnixMilli()}
}

func (b base) RunID() string    { return b.runID }
func (b base) Timestamp() int64 { return b.timestamp }

// StatusEvent carries a free-text progress message.
type StatusEvent struct {
	base
	Message string
}

func (e *StatusEvent) Type() EventType { return Status }

// NewStatusEvent constructs a StatusEvent.
func NewStatusEvent(runID, message string) *StatusEvent {
	return &StatusEvent{base: newBase(runID), Message: message}
}

// PlanCreatedEvent carries the compiled, validated plan.
type PlanCreatedEvent struct {
	base
	Plan any
}

func (e *PlanCreatedEvent) Type() EventType { return PlanCreated }

// NewPlanCreatedEvent constructs a PlanCreatedEvent.
func NewPlanCreatedEvent(runID string, plan any) *PlanCreatedEvent {
	return &PlanCreatedEvent{base: newBase(runID), Plan: plan}
}

// StepStartEvent fires when a node is submitted to the worker pool.
type StepStartEvent struct {
	base
	StepIndex int
	Tool      string
	Function  string
	Thought   string
}

func (e *StepStartEvent) Type() EventType { return StepStart }

// NewStepStartEvent constructs a StepStartEvent.
func NewStepStartEvent(runID string, stepIndex int, tool, function, thought string) *StepStartEvent {
	return &StepStartEvent{base: newBase(runID), StepIndex: stepIndex, Tool: tool, Function: function, Thought: thought}
}

// DebugArgsEvent carries the fully resolved arguments passed to a node's
// tool call, emitted just before submission.
type DebugArgsEvent struct {
	base
	StepIndex int
	Args      map[string]any
}

func (e *DebugArgsEvent) Type() EventType { return DebugArgs }

// NewDebugArgsEvent constructs a DebugArgsEvent.
func NewDebugArgsEvent(runID string, stepIndex int, args map[string]any) *DebugArgsEvent {
	return &DebugArgsEvent{base: newBase(runID), StepIndex: stepIndex, Args: args}
}

// ApprovalRequiredEvent fires before a dangerous tool is submitted, when
// approval is required by configuration.
type ApprovalRequiredEvent struct {
	base
	Tool     string
	Function string
}

func (e *ApprovalRequiredEvent) Type() EventType { return ApprovalRequired }

// NewApprovalRequiredEvent constructs an ApprovalRequiredEvent.
func NewApprovalRequiredEvent(runID, tool, function string) *ApprovalRequiredEvent {
	return &ApprovalRequiredEvent{base: newBase(runID), Tool: tool, Function: function}
}

// StepCompleteEvent fires once a node's trace entry has been written.
type StepCompleteEvent struct {
	base
	StepIndex int
	Tool      string
	Status    string
	Payload   any
	Duration  time.Duration
}

func (e *StepCompleteEvent) Type() EventType { return StepComplete }

// NewStepCompleteEvent constructs a StepCompleteEvent.
func NewStepCompleteEvent(runID string, stepIndex int, tool, status string, payload any, duration time.Duration) *StepCompleteEvent {
	return &StepCompleteEvent{base: newBase(runID), StepIndex: stepIndex, Tool: tool, Status: status, Payload: payload, Duration: duration}
}

// FinalAnswerEvent carries the synthesized answer and terminates the stream.
type FinalAnswerEvent struct {
	base
	Payload string
}

func (e *FinalAnswerEvent) Type() EventType { return FinalAnswer }

// NewFinalAnswerEvent constructs a FinalAnswerEvent.
func NewFinalAnswerEvent(runID, payload string) *FinalAnswerEvent {
	return &FinalAnswerEvent{base: newBase(runID), Payload: payload}
}

// ErrorEvent carries a fatal run-level failure and terminates the stream.
type ErrorEvent struct {
	base
	Message string
}

func (e *ErrorEvent) Type() EventType { return Error }

// NewErrorEvent constructs an ErrorEvent.
func NewErrorEvent(runID, message string) *ErrorEvent {
	return &ErrorEvent{base: newBase(runID), Message: message}
}
