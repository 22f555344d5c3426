// Command dagforge runs a single end-to-end demo request through the Plan
// Compiler and DAG Executor: compile a plan, execute it, stream events to
// stdout, and print the synthesized answer.
//
// # Configuration
//
// Environment variables (see config.FromEnv for the complete table):
//
//	PRIMARY_MODEL          - reasoning-LLM model id (default: provider default)
//	ANTHROPIC_API_KEY      - Anthropic adapter credential, if set
//	OPENAI_API_KEY         - OpenAI adapter credential, used when Anthropic unset
//	MAX_WORKERS            - executor worker pool size (default: 4)
//	REQUIRE_APPROVAL       - gate dangerous tools behind an approval event (default: true)
//	GROQ_RPM / GROQ_TPM     - primary-provider rate-bucket capacities
//	CONFIG_OVERLAY         - optional YAML file merged in before env vars
//
// # Example
//
//	ANTHROPIC_API_KEY=sk-... go run ./cmd/dagforge "stock price of AAPL and MSFT"
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/google/uuid"

	"dagforge.dev/dagforge/authority"
	"dagforge.dev/dagforge/config"
	"dagforge.dev/dagforge/dag"
	"dagforge.dev/dagforge/events"
	"dagforge.dev/dagforge/model"
	"dagforge.dev/dagforge/model/anthropic"
	"dagforge.dev/dagforge/model/openai"
	"dagforge.dev/dagforge/plan"
	"dagforge.dev/dagforge/registry"
	"dagforge.dev/dagforge/run"
	"dagforge.dev/dagforge/telemetry"
	"dagforge.dev/dagforge/throttle"
	"dagforge.dev/dagforge/tools"
	"dagforge.dev/dagforge/tools/fixtures"
)

func main() {
	if err := runDemo(); err != nil {
		log.Fatal(err)
	}
}

func runDemo() error {
	ctx := context.Background()

	request := "summarize the available tools and demonstrate a two-step plan"
	if len(os.Args) > 1 {
		request = strings.Join(os.Args[1:], " ")
	}

	cfg, err := config.FromEnv(os.Getenv("CONFIG_OVERLAY"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := telemetry.NewNoopLogger()
	if os.Getenv("DEBUG_MODE") != "" || cfg.DebugMode {
		logger = telemetry.NewClueLogger()
	}

	reg, err := demoRegistry()
	if err != nil {
		return fmt.Errorf("build registry: %w", err)
	}

	modelClient, _, err := buildModelClient(cfg)
	if err != nil {
		return fmt.Errorf("build model client: %w", err)
	}

	// Keyed by the provider names the plan compiler and the final synthesis
	// step acquire under; each gets the configured primary-provider limits.
	limits := map[string]throttle.Limits{
		"reasoning_llm": {RequestsPerMinute: cfg.GroqRPM, TokensPerMinute: cfg.GroqTPM},
		"synthesis_llm": {RequestsPerMinute: cfg.GroqRPM, TokensPerMinute: cfg.GroqTPM},
	}
	throttler := throttle.New(limits, throttle.Options{
		BackoffMax: cfg.BackoffMaxSeconds,
		Logger:     logger,
	})

	compiler := plan.NewCompiler(reg, modelClient, throttler, logger)

	toolsByFunction := map[string]tools.Call{
		"echo_call":        fixtures.Echo,
		"reasoning_call":   fixtures.Reasoning,
		"always_fail_call": fixtures.AlwaysFail,
	}
	executor := dag.NewExecutor(reg, toolsByFunction, throttler, authority.New(), modelClient, logger, dag.Options{
		DefaultTimeout:  cfg.DefaultTimeout,
		MaxRetries:      cfg.MaxRetries,
		MaxWorkers:      cfg.MaxWorkers,
		RequireApproval: cfg.RequireApproval,
		TraceLimitChars: cfg.TraceLimitChars,
	})

	runID := uuid.NewString()
	sink := events.NewChannelSink(32)
	rc := run.New(runID, sink, run.AlwaysApprove)

	go streamEvents(sink)

	compiled, err := compiler.Compile(ctx, runID, request, sink)
	if err != nil {
		return fmt.Errorf("compile plan: %w", err)
	}

	answer, err := executor.Run(ctx, rc, compiled)
	if err != nil {
		return fmt.Errorf("execute plan: %w", err)
	}

	fmt.Println("\nfinal answer:")
	fmt.Println(answer)
	return nil
}

// streamEvents prints each event as it arrives, until the sink closes its
// channel after a terminal event.
func streamEvents(sink *events.ChannelSink) {
	for e := range sink.Events {
		fmt.Printf("[%s] run=%s\n", e.Type(), e.RunID())
	}
}

// buildModelClient prefers an Anthropic client when ANTHROPIC_API_KEY is
// set, falling back to OpenAI when only OPENAI_API_KEY is present. Neither
// present returns an error: the demo needs a real reasoning model to
// compile and synthesize anything.
func buildModelClient(cfg config.Config) (model.Client, string, error) {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		defaultModel := cfg.PrimaryModel
		if defaultModel == "" {
			defaultModel = "claude-sonnet-4-5"
		}
		c, err := anthropic.NewFromAPIKey(key, defaultModel)
		if err != nil {
			return nil, "", err
		}
		return c, "anthropic", nil
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		defaultModel := cfg.PrimaryModel
		if defaultModel == "" {
			defaultModel = "gpt-4o"
		}
		c, err := openai.NewFromAPIKey(key, defaultModel)
		if err != nil {
			return nil, "", err
		}
		return c, "openai", nil
	}
	return nil, "", fmt.Errorf("set ANTHROPIC_API_KEY or OPENAI_API_KEY")
}

// demoRegistry builds a tiny, hardcoded catalog: one data tool, one
// reasoning tool, and one deliberately dangerous tool, enough to exercise
// the compiler's cost accounting and the executor's approval gate without
// an external registry document.
func demoRegistry() (registry.Registry, error) {
	return registry.NewStatic([]registry.Descriptor{
		{
			Name:           "echo",
			FunctionSymbol: "echo_call",
			ModuleSymbol:   "fixtures",
			Description:    "Echoes its inputs back unchanged.",
			Domain:         registry.DomainData,
			OutputType:     "object",
			Parameters: registry.ParameterSchema{
				Properties: map[string]any{
					"message": map[string]any{"type": "string"},
				},
			},
		},
		{
			Name:           "llm_caller",
			FunctionSymbol: "reasoning_call",
			ModuleSymbol:   "fixtures",
			Description:    "Synthesizes text from a prompt; never a source of facts or numbers.",
			Domain:         registry.DomainReasoning,
			OutputType:     "string",
			Prohibited: []registry.ProhibitedOutput{
				registry.ProhibitedNumericData,
				registry.ProhibitedFactualClaim,
				registry.ProhibitedRealTimeData,
			},
			Parameters: registry.ParameterSchema{
				Properties: map[string]any{
					"prompt": map[string]any{"type": "string"},
				},
				Required: []string{"prompt"},
			},
		},
		{
			Name:           "system_wipe",
			FunctionSymbol: "always_fail_call",
			ModuleSymbol:   "fixtures",
			Description:    "Deliberately dangerous demo tool, always denied unless approved.",
			Dangerous:      true,
			Domain:         registry.DomainSystem,
			OutputType:     "object",
			Parameters:     registry.ParameterSchema{Properties: map[string]any{}},
		},
	})
}
