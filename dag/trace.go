// Package dag implements the DAG Executor: topological scheduling of a
// validated plan.Plan across a bounded worker pool, dependency-failure
// cascading, dangerous-tool approval, and final-answer synthesis.
package dag

import (
	"time"

	"dagforge.dev/dagforge/authority"
)

// Status is a TraceEntry's per-node outcome.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusSkipped Status = "skipped"
)

// TraceEntry is written exactly once per executed node, at its step_index.
// Entries populate in completion order but the trace array itself is always
// indexed by step_index, so readers see a consistent final ordering
// regardless of which node actually finished first.
type TraceEntry struct {
	StepIndex  int
	Tool       string
	Function   string
	Status     Status
	Input      map[string]any
	Result     any
	Error      string
	Duration   time.Duration
	Quality    authority.Quality
	Violations []string
	DependsOn  []int
	Attempts   int
	StartedAt  time.Time
	EndedAt    time.Time
}
