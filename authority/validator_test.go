package authority

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"dagforge.dev/dagforge/registry"
	"dagforge.dev/dagforge/tools"
)

func reasoningDescriptor(prohibited ...registry.ProhibitedOutput) registry.Descriptor {
	return registry.Descriptor{
		Name:           "llm_caller",
		FunctionSymbol: "reasoning_call",
		Domain:         registry.DomainReasoning,
		Prohibited:     prohibited,
	}
}

func TestValidateFailedEnvelopeIsFailedQuality(t *testing.T) {
	v := New()
	d := reasoningDescriptor(registry.ProhibitedNumericData)
	verdict := v.Validate(d, "", tools.Fail("boom"))
	assert.Equal(t, QualityFailed, verdict.Quality)
	assert.Empty(t, verdict.Violations)
}

func TestValidateNonReasoningDomainAlwaysCorrect(t *testing.T) {
	v := New()
	d := registry.Descriptor{Name: "finance_fetcher", Domain: registry.DomainData}
	verdict := v.Validate(d, "", tools.Ok("AAPL is at $207.40"))
	assert.Equal(t, QualityCorrect, verdict.Quality)
}

func TestValidateFlagsNumericData(t *testing.T) {
	v := New()
	d := reasoningDescriptor(registry.ProhibitedNumericData)
	verdict := v.Validate(d, "summarize the findings", tools.Ok("the stock rose by 4% today"))
	assert.Equal(t, QualityDegraded, verdict.Quality)
	assert.Contains(t, verdict.Violations, "numeric_data")
}

func TestValidateFlagsRealTimeData(t *testing.T) {
	v := New()
	d := reasoningDescriptor(registry.ProhibitedRealTimeData)
	verdict := v.Validate(d, "summarize", tools.Ok("the current price is trending upward"))
	assert.Equal(t, QualityDegraded, verdict.Quality)
	assert.Contains(t, verdict.Violations, "real_time_data")
}

func TestValidateDoesNotFlagUndeclaredClasses(t *testing.T) {
	v := New()
	d := reasoningDescriptor(registry.ProhibitedRealTimeData) // numeric_data not declared
	verdict := v.Validate(d, "summarize", tools.Ok("the stock rose by 4% today"))
	assert.Equal(t, QualityCorrect, verdict.Quality)
}

func TestValidateSuppressesFactualClaimsWhenReferencingPriorStep(t *testing.T) {
	v := New()
	d := reasoningDescriptor(registry.ProhibitedFactualClaim)
	verdict := v.Validate(d, "based on step 0's result, summarize", tools.Ok("according to the report, sales are strong"))
	assert.Equal(t, QualityCorrect, verdict.Quality)
}

func TestValidateFlagsFactualClaimsWithoutPriorStepReference(t *testing.T) {
	v := New()
	d := reasoningDescriptor(registry.ProhibitedFactualClaim)
	verdict := v.Validate(d, "what do you think", tools.Ok("according to the report, sales are strong"))
	assert.Equal(t, QualityDegraded, verdict.Quality)
}

func TestValidateMultipleViolationsAreViolated(t *testing.T) {
	v := New()
	d := reasoningDescriptor(registry.ProhibitedNumericData, registry.ProhibitedRealTimeData)
	verdict := v.Validate(d, "summarize", tools.Ok("the current price rose by 4% today"))
	assert.Equal(t, QualityViolated, verdict.Quality)
	assert.Len(t, verdict.Violations, 2)
}

func TestValidateNonStringResultIsRendered(t *testing.T) {
	v := New()
	d := reasoningDescriptor(registry.ProhibitedNumericData)
	verdict := v.Validate(d, "summarize", tools.Ok(map[string]any{"note": "up 5% today"}))
	assert.Equal(t, QualityDegraded, verdict.Quality)
}
