package dag

import (
	"context"
	"encoding/json"
	"strconv"

	"dagforge.dev/dagforge/model"
	"dagforge.dev/dagforge/plan"
	"dagforge.dev/dagforge/run"
	"dagforge.dev/dagforge/throttle"
)

// synthesisProvider is the Throttler provider key for the final-answer
// reasoning call, distinct from the Plan Compiler's key so the two phases'
// rate budgets are reported and observed separately.
const synthesisProvider = "synthesis_llm"

// synthesisInstruction is the fixed instruction §4.6 mandates for final
// synthesis: the model may only draw on the trace it is given.
const synthesisInstruction = "Answer only using the trace below; state missing data explicitly; do not invent."

// traceStep is the compact, synthesis-facing projection of a TraceEntry —
// everything needed to answer the original request, nothing internal like
// Violations or Quality that would confuse rather than inform the model.
type traceStep struct {
	StepIndex int    `json:"step_index"`
	Tool      string `json:"tool"`
	Function  string `json:"function"`
	Status    Status `json:"status"`
	DurationMS int64  `json:"duration_ms"`
	Input     any    `json:"input,omitempty"`
	Result    any    `json:"result,omitempty"`
}

// synthesize builds the compact trace view named in §4.6, truncates its
// serialization to Opts.TraceLimitChars, and asks the reasoning LLM for a
// final answer grounded only in that trace.
func (e *Executor) synthesize(ctx context.Context, rc *run.Context, p *plan.Plan, trace []TraceEntry) (string, error) {
	steps := make([]traceStep, len(trace))
	for i, t := range trace {
		steps[i] = traceStep{
			StepIndex:  t.StepIndex,
			Tool:       t.Tool,
			Function:   t.Function,
			Status:     t.Status,
			DurationMS: t.Duration.Milliseconds(),
			Input:      t.Input,
			Result:     t.Result,
		}
	}

	serialized, err := json.Marshal(steps)
	if err != nil {
		return "", err
	}
	traceText := truncate(string(serialized), e.Opts.TraceLimitChars)

	prompt := synthesisInstruction + "\n\nTrace:\n" + traceText
	if e.Model == nil {
		return traceText, nil
	}

	req := &model.Request{
		RunID:      rc.RunID,
		ModelClass: model.ModelClassHighReasoning,
		Messages: []model.Message{
			{Role: model.RoleSystem, Text: synthesisInstruction},
			{Role: model.RoleUser, Text: "Final output node: " + strconv.Itoa(p.FinalOutputNode) + "\n\nTrace:\n" + traceText},
		},
		MaxTokens: 2048,
	}

	if e.Throttler != nil {
		if acqErr := e.Throttler.Acquire(ctx, synthesisProvider, estimateTokens(prompt)); acqErr != nil {
			return "", acqErr
		}
	}
	resp, err := e.Model.Complete(ctx, req)
	if e.Throttler != nil {
		switch {
		case err == nil:
			e.Throttler.Report(ctx, synthesisProvider, throttle.OutcomeSuccess)
		case model.IsRateLimited(err):
			e.Throttler.Report(ctx, synthesisProvider, throttle.OutcomeRateLimited)
		default:
			e.Throttler.Report(ctx, synthesisProvider, throttle.OutcomeFailure)
		}
	}
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// estimateTokens mirrors plan.estimateTokens's crude chars/4 heuristic; the
// two packages each keep their own copy rather than share an exported
// helper for a one-line calculation.
func estimateTokens(prompt string) float64 {
	return float64(len(prompt)) / 4
}

func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	return s[:limit]
}
