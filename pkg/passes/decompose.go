package passes

import (
	"fmt"

	"github.com/sionflow/sionflowc/pkg/ir"
	"github.com/sionflow/sionflowc/pkg/ir/rules"
)

// Decompose replaces each node whose kind matches a LoweringRule with
// the rule's step subgraph (§4.4). Runs once over the initial node
// count: newly introduced atomic steps are not themselves decomposed.
func Decompose(ctx *Context) bool {
	g := ctx.IR
	initialCount := len(g.Nodes)
	ok := true

	for i := 0; i < initialCount; i++ {
		node := &g.Nodes[i]
		if node.IsRemoved() {
			continue
		}
		for _, rule := range rules.LoweringRules {
			if rule.TargetType == node.Kind {
				if !applyLoweringRule(ctx, int32(i), rule) {
					ok = false
				}
				break
			}
		}
	}
	return ok
}

func applyLoweringRule(ctx *Context, nodeIdx int32, rule rules.LoweringRule) bool {
	g := ctx.IR
	original := g.Nodes[nodeIdx]

	stepIdx := make(map[string]int32, len(rule.Steps))
	for _, step := range rule.Steps {
		id := fmt.Sprintf("%s.%s", original.ID, step.ID)
		idx := g.Add(id, step.Kind, original.Loc)
		stepIdx[step.ID] = idx
	}

	originalPorts := original.Kind.Meta().Ports

	for _, step := range rule.Steps {
		dst := stepIdx[step.ID]
		for port, ref := range step.InputMap {
			if ref == "" {
				continue
			}
			if srcIdx, isStep := stepIdx[ref]; isStep {
				g.Connect(srcIdx, 0, dst, int32(port))
				continue
			}
			// ref names one of the original op's own ports: connect the
			// original's producer at that port to the step node instead.
			originalPort := indexOfPort(originalPorts, ref)
			if originalPort < 0 {
				ctx.Diag.Errorf(original.Loc.File, original.Loc.Line, original.Loc.Column, original.Kind.String(),
					"lowering rule for '%s' references unknown port '%s'", original.Kind, ref)
				return false
			}
			srcNode, srcPort := g.GetSource(nodeIdx, int32(originalPort))
			if srcNode != ir.NoNode {
				g.Connect(srcNode, srcPort, dst, int32(port))
			}
		}
	}

	outputIdx, ok := stepIdx[rule.OutputNodeID]
	if !ok {
		ctx.Diag.Errorf(original.Loc.File, original.Loc.Line, original.Loc.Column, original.Kind.String(),
			"lowering rule for '%s' names unknown output step '%s'", original.Kind, rule.OutputNodeID)
		return false
	}
	g.Replace(nodeIdx, outputIdx)
	return true
}

func indexOfPort(ports [4]string, name string) int {
	for i, p := range ports {
		if p == name {
			return i
		}
	}
	return -1
}
