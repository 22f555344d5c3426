package plan

import (
	"encoding/json"
	"fmt"
	"strings"

	"dagforge.dev/dagforge/registry"
)

// toolView is the minimal registry projection embedded in the system
// prompt: name, function, description, domain, and parameter schema — enough for
// the model to choose and call tools correctly without leaking internal
// fields like Dangerous or Provider.
type toolView struct {
	Name        string                 `json:"name"`
	Function    string                 `json:"function"`
	Description string                 `json:"description"`
	Domain      registry.Domain        `json:"domain"`
	Parameters  registry.ParameterSchema `json:"parameters"`
}

func registryView(reg registry.Registry) []toolView {
	descs := reg.Tools()
	views := make([]toolView, 0, len(descs))
	for _, d := range descs {
		views = append(views, toolView{
			Name:        d.Name,
			Function:    d.FunctionSymbol,
			Description: d.Description,
			Domain:      d.Domain,
			Parameters:  d.Parameters,
		})
	}
	return views
}

// systemPrompt builds the strict, JSON-only planning prompt mandated by
// §4.5 step 1: registry view, cost accounting, the reasoning-node cap,
// domain awareness, and sub-agent delegation preference.
func systemPrompt(reg registry.Registry) string {
	views := registryView(reg)
	catalog, _ := json.MarshalIndent(views, "", "  ")

	var b strings.Builder
	b.WriteString("You are a planning engine. Translate the user request into a JSON plan of tool invocations.\n\n")
	b.WriteString("Available tools:\n")
	b.Write(catalog)
	b.WriteString("\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Respond with JSON only, no prose, no markdown fences.\n")
	b.WriteString("- Cost accounting: a data-domain node costs 1, computation costs 2, reasoning costs 5. Prefer the cheapest plan that answers the request.\n")
	b.WriteString(fmt.Sprintf("- Use at most %d reasoning-domain nodes in the entire plan.\n", maxReasoningNodes))
	b.WriteString("- Never ask a reasoning tool for real-time facts (prices, weather, news); only synthesize from data already produced by earlier steps.\n")
	b.WriteString("- Prefer a sub-agent delegation tool, if one is available, when sub-tasks are independent of each other.\n\n")
	b.WriteString("Output exactly this shape:\n")
	b.WriteString(`{"status": "success", "nodes": [{"id": 0, "thought": "...", "tool": "...", "function": "...", "inputs": {}, "depends_on": [], "retry": 2, "on_fail": "halt", "timeout": 45}], "final_output_node": 0}`)
	b.WriteString("\n\nIf the request cannot be planned, output: {\"status\": \"error\", \"error\": \"...\"}")
	return b.String()
}

// repairPrompt embeds the last raw output and the specific validation or
// parse error, asking for corrected JSON only, per §4.5 step 3.
func repairPrompt(lastRaw string, lastErr error) string {
	msg := ""
	if lastErr != nil {
		msg = lastErr.Error()
	}
	var b strings.Builder
	b.WriteString("The previous plan output was invalid. Return ONLY the corrected JSON, no prose, no markdown fences.\n\n")
	b.WriteString("Previous output:\n")
	b.WriteString(lastRaw)
	b.WriteString("\n\nError:\n")
	b.WriteString(msg)
	return b.String()
}
