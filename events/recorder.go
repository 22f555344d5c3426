package events

import "sync"

// Recorder is a Sink test double that buffers every emitted event in order,
// for assertions in DAG Executor and Plan Compiler tests that need to
// inspect the full event sequence rather than drain a channel.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder constructs an empty Recorder.
func NewRecorder() *Recorder { return &Recorder{} }

// Emit implements Sink.
func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a snapshot of every event recorded so far, in emission
// order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the EventType sequence of every recorded event, useful for
// compact assertions against an expected ordering.
func (r *Recorder) Types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type()
	}
	return out
}
