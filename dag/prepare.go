package dag

import (
	"context"

	"dagforge.dev/dagforge/plan"
)

// prepare builds the id→index map and normalizes each node's depends_on
// from ids to slice indices, per §4.6's preparation step. A dependency that
// would create a cycle or reference a later node is dropped with a logged
// warning rather than failing the run outright — the Plan Compiler's own
// validation already rejects such plans, so reaching this code with one
// normally only happens for hand-built plans that bypass the validator,
// such as those in prepare_test.go.
func (e *Executor) prepare(p *plan.Plan) ([]node, error) {
	idToIndex := make(map[int]int, len(p.Nodes))
	for i, n := range p.Nodes {
		idToIndex[n.ID] = i
	}

	out := make([]node, len(p.Nodes))
	for i, n := range p.Nodes {
		var depIndices []int
		for _, depID := range n.DependsOn {
			depIdx, ok := idToIndex[depID]
			if !ok {
				e.Logger.Warn(context.Background(), "dag: dropping unknown dependency", "node_id", n.ID, "depends_on", depID)
				continue
			}
			if depIdx >= i {
				e.Logger.Warn(context.Background(), "dag: dropping forward/self dependency", "node_id", n.ID, "depends_on", depID)
				continue
			}
			depIndices = append(depIndices, depIdx)
		}
		out[i] = node{Node: n, depIndices: depIndices}
	}
	return out, nil
}
