// Package authority classifies a tool result against the tool's declared
// output domain, flagging fabricated numerics or facts in reasoning
// outputs. It is observability and a constraint for downstream synthesis,
// never a correctness gate: violations are attached to the trace and
// logged, they never fail the node.
package authority

import (
	"fmt"

	"dagforge.dev/dagforge/registry"
	"dagforge.dev/dagforge/tools"
)

// Quality is the per-node annotation derived from violation counts.
type Quality string

const (
	QualityCorrect  Quality = "correct"
	QualityDegraded Quality = "degraded"
	QualityViolated Quality = "violated"
	QualityFailed   Quality = "failed"
)

// Verdict is the result of validating one tool envelope.
type Verdict struct {
	Quality    Quality
	Violations []string
}

// Validator scans reasoning-domain tool output for prohibited content
// classes declared on the tool's descriptor.
type Validator struct{}

// New constructs a Validator. It carries no state; a single instance can be
// shared across every node in every run.
func New() *Validator { return &Validator{} }

// Validate classifies env against descriptor's declared prohibited output
// classes. prompt is the (already placeholder-resolved) prompt that
// produced env, used only to detect legitimate prior-step synthesis and
// suppress the factual_claims check in that case.
func (v *Validator) Validate(d registry.Descriptor, prompt string, env tools.Envelope) Verdict {
	if !env.IsSuccess() {
		return Verdict{Quality: QualityFailed}
	}
	if d.Domain != registry.DomainReasoning {
		return Verdict{Quality: QualityCorrect}
	}
	text, ok := env.Result.(string)
	if !ok {
		text = renderResult(env.Result)
	}

	var violations []string
	suppressFactual := synthesisReference.MatchString(prompt)

	for _, set := range catalog {
		class := registry.ProhibitedOutput(set.class)
		if !d.Prohibits(class) {
			continue
		}
		if class == registry.ProhibitedFactualClaim && suppressFactual {
			continue
		}
		for _, re := range set.patterns {
			if re.MatchString(text) {
				violations = append(violations, set.class)
				break
			}
		}
	}

	return Verdict{Quality: qualityFor(len(violations)), Violations: violations}
}

func qualityFor(n int) Quality {
	switch {
	case n == 0:
		return QualityCorrect
	case n == 1:
		return QualityDegraded
	default:
		return QualityViolated
	}
}

// renderResult best-effort stringifies a non-string envelope result so the
// pattern catalog still has text to scan against.
func renderResult(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}
