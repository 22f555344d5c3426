package plan

import (
	"context"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"dagforge.dev/dagforge/registry"
)

// maxReasoningNodes is the hard cap on reasoning-domain nodes in one plan,
// per §4.5's cost-accounting and constraint rules.
const maxReasoningNodes = 3

// validationError is returned by validate and carries the message fed back
// into the next repair prompt verbatim.
type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }

func fail(format string, args ...any) error {
	return &validationError{msg: fmt.Sprintf(format, args...)}
}

// validate runs the structural validation of §4.5 step 4 in the documented
// order (first failure wins), then the constraint validation of step 5.
// Capability-gap warnings (step 6) are collected separately and never cause
// rejection.
func validate(ctx context.Context, p *Plan, reg registry.Registry, compiler *jsonschema.Compiler) ([]string, error) {
	if p.Status != "success" {
		return nil, fail("plan status must be %q", "success")
	}
	if len(p.Nodes) == 0 {
		return nil, fail("plan must contain at least one node")
	}

	seen := make(map[int]bool, len(p.Nodes))
	for _, n := range p.Nodes {
		if seen[n.ID] {
			return nil, fail("duplicate node id %d", n.ID)
		}
		seen[n.ID] = true
	}

	reasoningCount := 0
	var warnings []string

	for _, n := range p.Nodes {
		desc, ok := reg.Lookup(n.Tool)
		if !ok {
			return nil, fail("node %d references unknown tool %q", n.ID, n.Tool)
		}
		if desc.FunctionSymbol != n.Function {
			return nil, fail("node %d function %q does not match tool %q's declared function %q", n.ID, n.Function, n.Tool, desc.FunctionSymbol)
		}
		for key := range n.Inputs {
			if !desc.AllowsProperty(key) {
				return nil, fail("node %d input key %q is not an allowed property of tool %q", n.ID, key, n.Tool)
			}
		}
		if missing := desc.HasRequired(n.Inputs); len(missing) > 0 {
			return nil, fail("node %d is missing required input(s) %s for tool %q", n.ID, strings.Join(missing, ", "), n.Tool)
		}
		if err := validateSchema(ctx, compiler, desc, n); err != nil {
			return nil, fail("node %d inputs failed schema validation: %v", n.ID, err)
		}
		for _, dep := range n.DependsOn {
			if !seen[dep] {
				return nil, fail("node %d depends_on unknown id %d", n.ID, dep)
			}
			if dep >= n.ID {
				return nil, fail("node %d depends_on %d, which is not strictly earlier", n.ID, dep)
			}
		}
		if n.Retry < 0 {
			return nil, fail("node %d retry must be >= 0", n.ID)
		}
		if n.OnFail != OnFailHalt && n.OnFail != OnFailContinue {
			return nil, fail("node %d on_fail %q is not one of halt|continue", n.ID, n.OnFail)
		}
		if n.Timeout <= 0 {
			return nil, fail("node %d timeout must be > 0", n.ID)
		}

		if desc.Domain == registry.DomainReasoning {
			reasoningCount++
		}
		warnings = append(warnings, capabilityWarnings(reg, desc, n)...)
	}

	if !seen[p.FinalOutputNode] {
		return nil, fail("final_output_node %d is not present in nodes", p.FinalOutputNode)
	}

	if reasoningCount > maxReasoningNodes {
		return nil, fail("plan has %d reasoning-tool nodes, exceeding the cap of %d", reasoningCount, maxReasoningNodes)
	}

	return warnings, nil
}

// validateSchema validates a node's inputs against its tool descriptor's
// declared parameter schema using the same JSON-Schema engine the registry
// loader uses for its self-check, giving precise error messages that feed
// the repair prompt rather than a generic "invalid input" message.
func validateSchema(_ context.Context, compiler *jsonschema.Compiler, desc registry.Descriptor, n Node) error {
	if compiler == nil {
		return nil
	}
	schemaDoc := map[string]any{
		"type":       "object",
		"properties": desc.Parameters.Properties,
		"required":   toAnySlice(desc.Parameters.Required),
	}
	resourceName := fmt.Sprintf("node-%d-%s-inputs.json", n.ID, desc.Name)
	if err := compiler.AddResource(resourceName, schemaDoc); err != nil {
		return err
	}
	schema, err := compiler.Compile(resourceName)
	if err != nil {
		return err
	}
	return schema.Validate(map[string]any(n.Inputs))
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// capabilityWarnings implements §4.5 step 6: reasoning nodes asking for
// computation without referencing prior steps suggest a computation tool;
// requests for capabilities absent from the registry are logged.
func capabilityWarnings(reg registry.Registry, desc registry.Descriptor, n Node) []string {
	var warnings []string
	if desc.Domain == registry.DomainReasoning {
		prompt := promptOf(n.Inputs)
		if looksLikeComputation(prompt) && !referencesPriorStep(prompt) {
			warnings = append(warnings, fmt.Sprintf("node %d: reasoning tool asked to compute without referencing prior steps; consider a computation tool", n.ID))
		}
		for _, cap := range []string{"image", "email"} {
			if strings.Contains(strings.ToLower(prompt), cap) && !registryHasCapability(reg, cap) {
				warnings = append(warnings, fmt.Sprintf("node %d: prompt references %q, a capability absent from the registry", n.ID, cap))
			}
		}
	}
	return warnings
}

func promptOf(inputs map[string]any) string {
	if v, ok := inputs["prompt"]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func looksLikeComputation(prompt string) bool {
	lower := strings.ToLower(prompt)
	for _, kw := range []string{"calculate", "compute", "sum of", "average of", "multiply", "divide"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func referencesPriorStep(prompt string) bool {
	lower := strings.ToLower(prompt)
	return strings.Contains(lower, "step ") || strings.Contains(lower, "from step") || strings.Contains(lower, "based on")
}

func registryHasCapability(reg registry.Registry, capability string) bool {
	for _, d := range reg.Tools() {
		if strings.Contains(strings.ToLower(d.Name), capability) || strings.Contains(strings.ToLower(d.Description), capability) {
			return true
		}
	}
	return false
}
