package passes

import "github.com/sionflow/sionflowc/pkg/ir"

// DomainSplit partitions nodes into execution domains rooted at
// compatible-shape representatives (§4.10). Grounded on
// sf_pass_domain_split.c's reset-then-propagate-backward shape, with
// the normative (spec.md, §9 "latest form") stop conditions the draft
// C file doesn't implement: propagation halts at REDUCTION-strategy
// nodes (which root their own domain from their own input) and at
// ancestors whose shape is not broadcast-compatible with the
// representative's, rather than walking every ancestor unconditionally.
func DomainSplit(ctx *Context) bool {
	g := ctx.IR
	for i := range g.Nodes {
		g.Nodes[i].DomainNodeIdx = ir.NoNode
	}

	var representatives []int32
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if n.IsRemoved() || n.Kind != ir.NodeOutput {
			continue
		}
		repIdx := int32(i)
		for _, r := range representatives {
			if g.Nodes[r].OutInfo.Equal(n.OutInfo) {
				repIdx = r
				break
			}
		}
		if repIdx == int32(i) {
			representatives = append(representatives, repIdx)
		}
		markDomain(g, int32(i), repIdx, make(map[int32]bool))
	}
	return true
}

func markDomain(g *ir.Graph, nodeIdx, domainIdx int32, visiting map[int32]bool) {
	n := &g.Nodes[nodeIdx]

	if n.DomainNodeIdx != ir.NoNode {
		if n.DomainNodeIdx != domainIdx {
			existing := g.Nodes[n.DomainNodeIdx].OutInfo
			if !existing.Equal(g.Nodes[domainIdx].OutInfo) {
				n.DomainNodeIdx = ir.NoNode // shared across incompatible domains
			}
		}
		return
	}

	n.DomainNodeIdx = domainIdx
	if visiting[nodeIdx] {
		return
	}
	visiting[nodeIdx] = true

	if n.Kind.Meta().Strategy == ir.StrategyReduction {
		// A reduction roots its own domain from its own input instead of
		// propagating the caller's representative further back.
		srcIdx, _ := g.GetSource(nodeIdx, 0)
		if srcIdx != ir.NoNode && !g.Nodes[srcIdx].IsRemoved() {
			n.DomainNodeIdx = srcIdx
			markDomain(g, srcIdx, srcIdx, visiting)
		}
		return
	}

	arity := int(n.Kind.Meta().Arity)
	for port := 0; port < arity && port < 4; port++ {
		srcIdx, _ := g.GetSource(nodeIdx, int32(port))
		if srcIdx == ir.NoNode || g.Nodes[srcIdx].IsRemoved() {
			continue
		}
		if !g.Nodes[srcIdx].OutInfo.IsScalar() {
			if _, compat := ir.BroadcastShapes(g.Nodes[srcIdx].OutInfo, g.Nodes[domainIdx].OutInfo); !compat {
				continue
			}
		}
		markDomain(g, srcIdx, domainIdx, visiting)
	}
}
