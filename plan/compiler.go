package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"dagforge.dev/dagforge/events"
	"dagforge.dev/dagforge/model"
	"dagforge.dev/dagforge/registry"
	"dagforge.dev/dagforge/telemetry"
	"dagforge.dev/dagforge/throttle"
)

// maxAttempts bounds the total number of LLM calls §4.5 permits: the
// initial attempt plus repair retries, three calls total.
const maxAttempts = 3

// reasoningProvider is the Throttler provider key for the reasoning LLM,
// matching the provider name the Throttler's rate limits map is keyed by.
const reasoningProvider = "reasoning_llm"

// Compiler translates a user request into a validated Plan by calling a
// reasoning model through the Throttler, then validating its JSON output
// structurally and against the registry.
type Compiler struct {
	Registry  registry.Registry
	Model     model.Client
	Throttler *throttle.Throttler
	Logger    telemetry.Logger
}

// NewCompiler constructs a Compiler. A nil logger defaults to a no-op.
func NewCompiler(reg registry.Registry, client model.Client, t *throttle.Throttler, logger telemetry.Logger) *Compiler {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Compiler{Registry: reg, Model: client, Throttler: t, Logger: logger}
}

// Compile runs the full algorithm of §4.5: builds the registry-grounded
// system prompt, calls the reasoning LLM, parses and validates its output,
// and retries with a repair prompt up to maxAttempts total. sink, if
// non-nil, receives a status event before the first call and a
// plan_created or error event on completion.
func (c *Compiler) Compile(ctx context.Context, runID, request string, sink events.Sink) (*Plan, error) {
	emit(sink, events.NewStatusEvent(runID, "compiling plan"))

	var lastRaw string
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		var prompt string
		if attempt == 1 {
			prompt = systemPrompt(c.Registry) + "\n\nUser request: " + request
		} else {
			prompt = repairPrompt(lastRaw, lastErr)
		}

		raw, err := c.callModel(ctx, runID, prompt)
		if err != nil {
			lastErr = err
			continue
		}
		lastRaw = raw

		candidate := extractJSON(raw)
		p, parseErr := parsePlan(candidate)
		if parseErr != nil {
			lastErr = parseErr
			continue
		}

		compiler := jsonschema.NewCompiler()
		warnings, valErr := validate(ctx, p, c.Registry, compiler)
		if valErr != nil {
			lastErr = valErr
			continue
		}
		for _, w := range warnings {
			c.Logger.Warn(ctx, "plan compiler warning", "run_id", runID, "warning", w)
		}

		emit(sink, events.NewPlanCreatedEvent(runID, p))
		return p, nil
	}

	msg := "plan compilation failed after repair attempts"
	if lastErr != nil {
		msg = lastErr.Error()
	}
	emit(sink, events.NewErrorEvent(runID, msg))
	return nil, fmt.Errorf("plan: %s", msg)
}

func (c *Compiler) callModel(ctx context.Context, runID, prompt string) (string, error) {
	req := &model.Request{
		RunID: runID,
		Messages: []model.Message{
			{Role: model.RoleUser, Text: prompt},
		},
		MaxTokens: 4096,
	}
	if c.Throttler != nil {
		if err := c.Throttler.Acquire(ctx, reasoningProvider, estimateTokens(prompt)); err != nil {
			return "", err
		}
	}
	resp, err := c.Model.Complete(ctx, req)
	if c.Throttler != nil {
		switch {
		case err == nil:
			c.Throttler.Report(ctx, reasoningProvider, throttle.OutcomeSuccess)
		case model.IsRateLimited(err):
			c.Throttler.Report(ctx, reasoningProvider, throttle.OutcomeRateLimited)
		default:
			c.Throttler.Report(ctx, reasoningProvider, throttle.OutcomeFailure)
		}
	}
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// estimateTokens is a crude chars/4 heuristic used only to reserve token
// budget against the Throttler's token bucket; providers report authoritative
// usage after the call via TokenUsage.
func estimateTokens(prompt string) float64 {
	return float64(len(prompt)) / 4
}

// extractJSON strips optional code-fence wrappers and isolates the
// substring from the first '{' to the last '}', per §4.5 step 2.
func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < 0 || end < start {
		return strings.TrimSpace(s)
	}
	return s[start : end+1]
}

func parsePlan(candidate string) (*Plan, error) {
	var p Plan
	if err := json.Unmarshal([]byte(candidate), &p); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return &p, nil
}

func emit(sink events.Sink, e events.Event) {
	if sink != nil {
		sink.Emit(e)
	}
}
