package dag

import (
	"context"
	"fmt"
	"time"

	"dagforge.dev/dagforge/authority"
	"dagforge.dev/dagforge/events"
	"dagforge.dev/dagforge/model"
	"dagforge.dev/dagforge/placeholder"
	"dagforge.dev/dagforge/plan"
	"dagforge.dev/dagforge/registry"
	"dagforge.dev/dagforge/run"
	"dagforge.dev/dagforge/telemetry"
	"dagforge.dev/dagforge/throttle"
	"dagforge.dev/dagforge/tools"
)

// reasoningToolName is the single reasoning-tool identifier the Placeholder
// Resolver applies to, matching §4.3's "only llm_caller-tool inputs".
const reasoningToolName = "llm_caller"

// Options configures an Executor. Fields mirror the configuration table of
// §6: DefaultTimeout and MaxRetries backfill unset plan node values;
// MaxWorkers bounds concurrency; RequireApproval gates dangerous tools;
// TraceLimitChars caps the serialized trace handed to final synthesis.
type Options struct {
	DefaultTimeout  time.Duration
	MaxRetries      int
	MaxWorkers      int
	RequireApproval bool
	TraceLimitChars int
}

// Executor schedules a validated plan.Plan's nodes across a bounded worker
// pool, resolves placeholders, enforces dangerous-tool approval, and
// synthesizes a final answer from the completed trace.
type Executor struct {
	Registry  registry.Registry
	Tools     map[string]tools.Call
	Invoker   *tools.Invoker
	Throttler *throttle.Throttler
	Authority *authority.Validator
	Model     model.Client
	Logger    telemetry.Logger
	Opts      Options
}

// NewExecutor constructs an Executor. toolsByFunction maps a descriptor's
// FunctionSymbol to its callable implementation.
func NewExecutor(reg registry.Registry, toolsByFunction map[string]tools.Call, throttler *throttle.Throttler, validator *authority.Validator, modelClient model.Client, logger telemetry.Logger, opts Options) *Executor {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = 4
	}
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = 30 * time.Second
	}
	if opts.TraceLimitChars <= 0 {
		opts.TraceLimitChars = 8000
	}
	return &Executor{
		Registry:  reg,
		Tools:     toolsByFunction,
		Invoker:   tools.NewInvoker(),
		Throttler: throttler,
		Authority: validator,
		Model:     modelClient,
		Logger:    logger,
		Opts:      opts,
	}
}

// node pairs a plan.Node with its normalized, index-based dependency list.
type node struct {
	plan.Node
	depIndices []int
}

type workerResult struct {
	index     int
	envelope  tools.Envelope
	attempts  int
	startedAt time.Time
	endedAt   time.Time
}

// Run executes p to completion, emitting the full event sequence named in
// §6, and returns the final synthesized answer text. A fatal scheduling
// error (deadlock, approval denial, missing descriptor) returns a non-nil
// error and an ErrorEvent has already been emitted; a successful run
// returns the answer and a FinalAnswerEvent has already been emitted.
func (e *Executor) Run(ctx context.Context, rc *run.Context, p *plan.Plan) (string, error) {
	nodes, err := e.prepare(p)
	if err != nil {
		e.emitError(rc, err.Error())
		return "", err
	}
	return e.runNodes(ctx, rc, p, nodes)
}

// runNodes schedules an already-prepared node slice to completion. It is
// split out from Run so a hand-built node slice — one that still carries a
// genuine dependency cycle, which prepare always normalizes away — can
// exercise the deadlock branch directly.
func (e *Executor) runNodes(ctx context.Context, rc *run.Context, p *plan.Plan, nodes []node) (string, error) {
	trace := make([]TraceEntry, len(nodes))
	submitted := make([]bool, len(nodes))
	completed := make([]bool, len(nodes))
	completedCount := 0
	inFlight := 0
	resultCh := make(chan workerResult, len(nodes))
	sem := make(chan struct{}, e.Opts.MaxWorkers)

	for completedCount < len(nodes) {
		for idx := range nodes {
			if submitted[idx] {
				continue
			}
			if !e.depsSatisfied(nodes[idx], completed) {
				continue
			}

			if e.hasFailedDep(nodes[idx], trace) {
				entry := TraceEntry{
					StepIndex: idx,
					Tool:      nodes[idx].Tool,
					Function:  nodes[idx].Function,
					Status:    StatusSkipped,
					Error:     "Upstream dependency failed",
					DependsOn: nodes[idx].DependsOn,
					Quality:   authority.QualityFailed,
				}
				trace[idx] = entry
				submitted[idx] = true
				completed[idx] = true
				completedCount++
				e.emit(rc, events.NewStepCompleteEvent(rc.RunID, idx, entry.Tool, string(entry.Status), entry.Error, 0))
				continue
			}

			desc, ok := e.Registry.Lookup(nodes[idx].Tool)
			if !ok {
				e.emitError(rc, fmt.Sprintf("node %d: tool %q missing from registry at execution time", idx, nodes[idx].Tool))
				return "", fmt.Errorf("dag: missing descriptor for tool %q", nodes[idx].Tool)
			}

			if desc.Dangerous && e.Opts.RequireApproval {
				e.emit(rc, events.NewApprovalRequiredEvent(rc.RunID, desc.Name, desc.FunctionSymbol))
				if !rc.Approve(ctx, desc.Name, desc.FunctionSymbol) {
					e.emitError(rc, fmt.Sprintf("approval denied for dangerous tool %q", desc.Name))
					return "", fmt.Errorf("dag: approval denied for tool %q", desc.Name)
				}
			}

			e.emit(rc, events.NewStepStartEvent(rc.RunID, idx, desc.Name, desc.FunctionSymbol, nodes[idx].Thought))
			resolved := e.resolveInputs(desc, nodes[idx], trace)
			e.emit(rc, events.NewDebugArgsEvent(rc.RunID, idx, resolved))

			submitted[idx] = true
			inFlight++
			e.launch(ctx, sem, resultCh, idx, desc, nodes[idx], resolved)
		}

		if inFlight == 0 && completedCount < len(nodes) {
			e.emitError(rc, "deadlock detected: no nodes ready and no tasks in flight")
			return "", fmt.Errorf("dag: deadlock detected")
		}

		if inFlight > 0 {
			select {
			case res := <-resultCh:
				e.harvest(rc, nodes, trace, res)
				completed[res.index] = true
				completedCount++
				inFlight--
			drain:
				for {
					select {
					case res2 := <-resultCh:
						e.harvest(rc, nodes, trace, res2)
						completed[res2.index] = true
						completedCount++
						inFlight--
					default:
						break drain
					}
				}
			case <-ctx.Done():
				e.emitError(rc, ctx.Err().Error())
				return "", ctx.Err()
			}
		}
	}

	answer, err := e.synthesize(ctx, rc, p, trace)
	if err != nil {
		e.emitError(rc, err.Error())
		return "", err
	}
	e.emit(rc, events.NewFinalAnswerEvent(rc.RunID, answer))
	return answer, nil
}

// launch runs one node's tool invocation on a goroutine bounded by sem.
// Wall-clock start/end are captured inside the goroutine, once the
// semaphore is acquired, so queue-wait time inside a saturated pool never
// inflates the recorded duration.
func (e *Executor) launch(ctx context.Context, sem chan struct{}, resultCh chan workerResult, idx int, desc registry.Descriptor, n node, resolved map[string]any) {
	call, ok := e.Tools[n.Function]
	timeout := e.timeoutFor(n)
	retry := e.retryFor(n)
	go func() {
		sem <- struct{}{}
		defer func() { <-sem }()

		started := time.Now()
		if !ok {
			ended := time.Now()
			resultCh <- workerResult{
				index:     idx,
				envelope:  tools.Failf("no implementation registered for function %q", n.Function),
				attempts:  0,
				startedAt: started,
				endedAt:   ended,
			}
			return
		}

		if e.Throttler != nil && desc.Provider != "" {
			if err := e.Throttler.Acquire(ctx, desc.Provider, 0); err != nil {
				ended := time.Now()
				resultCh <- workerResult{index: idx, envelope: tools.Fail(err.Error()), startedAt: started, endedAt: ended}
				return
			}
		}

		env, attempts := e.Invoker.Invoke(ctx, call, resolved, timeout, retry)
		ended := time.Now()

		if e.Throttler != nil && desc.Provider != "" {
			if env.IsSuccess() {
				e.Throttler.Report(ctx, desc.Provider, throttle.OutcomeSuccess)
			} else {
				e.Throttler.Report(ctx, desc.Provider, throttle.OutcomeFailure)
			}
		}

		resultCh <- workerResult{index: idx, envelope: env, attempts: attempts, startedAt: started, endedAt: ended}
	}()
}

// harvest writes the TraceEntry for a completed node and emits step_complete.
func (e *Executor) harvest(rc *run.Context, nodes []node, trace []TraceEntry, res workerResult) {
	n := nodes[res.index]
	desc, _ := e.Registry.Lookup(n.Tool)
	resolved := e.resolveInputs(desc, n, trace)

	verdict := e.Authority.Validate(desc, promptOf(resolved), res.envelope)

	status := StatusSuccess
	if !res.envelope.IsSuccess() {
		status = StatusError
	}
	duration := res.endedAt.Sub(res.startedAt)

	trace[res.index] = TraceEntry{
		StepIndex:  res.index,
		Tool:       n.Tool,
		Function:   n.Function,
		Status:     status,
		Input:      resolved,
		Result:     res.envelope.Result,
		Error:      res.envelope.Err,
		Duration:   duration,
		Quality:    verdict.Quality,
		Violations: verdict.Violations,
		DependsOn:  n.DependsOn,
		Attempts:   res.attempts,
		StartedAt:  res.startedAt,
		EndedAt:    res.endedAt,
	}

	var payload any = res.envelope.Result
	if status == StatusError {
		payload = res.envelope.Err
	}
	e.emit(rc, events.NewStepCompleteEvent(rc.RunID, res.index, n.Tool, string(status), payload, duration))
}

func promptOf(inputs map[string]any) string {
	if v, ok := inputs["prompt"]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func (e *Executor) resolveInputs(desc registry.Descriptor, n node, trace []TraceEntry) map[string]any {
	if desc.Domain != registry.DomainReasoning {
		return n.Inputs
	}
	resolved := make(map[string]any, len(n.Inputs))
	for k, v := range n.Inputs {
		if k == "prompt" {
			if s, ok := v.(string); ok {
				resolved[k] = placeholder.Resolve(s, traceView(trace))
				continue
			}
		}
		resolved[k] = v
	}
	return resolved
}

// traceView adapts the executor's trace slice to placeholder.Trace.
type traceView []TraceEntry

func (t traceView) Result(i int) (any, bool) {
	if i < 0 || i >= len(t) {
		return nil, false
	}
	if t[i].Tool == "" && t[i].Function == "" {
		return nil, false
	}
	return t[i].Result, true
}

func (e *Executor) depsSatisfied(n node, completed []bool) bool {
	for _, d := range n.depIndices {
		if !completed[d] {
			return false
		}
	}
	return true
}

func (e *Executor) hasFailedDep(n node, trace []TraceEntry) bool {
	for _, d := range n.depIndices {
		if trace[d].Status != StatusSuccess {
			return true
		}
	}
	return false
}

func (e *Executor) timeoutFor(n node) time.Duration {
	if n.Timeout > 0 {
		return time.Duration(n.Timeout * float64(time.Second))
	}
	return e.Opts.DefaultTimeout
}

func (e *Executor) retryFor(n node) int {
	if n.Retry > 0 {
		return n.Retry
	}
	return e.Opts.MaxRetries
}

func (e *Executor) emit(rc *run.Context, evt events.Event) {
	if rc != nil && rc.Events != nil {
		rc.Events.Emit(evt)
	}
}

func (e *Executor) emitError(rc *run.Context, msg string) {
	if rc != nil {
		e.emit(rc, events.NewErrorEvent(rc.RunID, msg))
	}
}
