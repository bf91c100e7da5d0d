package passes

import "github.com/sionflow/sionflowc/pkg/ir"

type sortColor uint8

const (
	colorWhite sortColor = iota
	colorGrey
	colorBlack
)

// Sort produces a post-order topological order over every
// non-tombstoned node, detecting cycles via tri-colour marking (§4.7).
// A grey-revisit is fatal ("cycle detected"). ctx.Sorted holds every
// node that will carry analysis (Analyze/Validate); the compute-only
// filtering TaskPlan needs is applied by CodegenOrder.
func Sort(ctx *Context) bool {
	g := ctx.IR
	colors := make([]sortColor, len(g.Nodes))
	order := make([]int32, 0, len(g.Nodes))

	var visit func(idx int32) bool
	visit = func(idx int32) bool {
		if g.Nodes[idx].IsRemoved() {
			return true
		}
		switch colors[idx] {
		case colorBlack:
			return true
		case colorGrey:
			n := g.Nodes[idx]
			ctx.Diag.Errorf(n.Loc.File, n.Loc.Line, n.Loc.Column, n.Kind.String(), "cycle detected at node '%s'", n.ID)
			return false
		}
		colors[idx] = colorGrey
		arity := int(g.Nodes[idx].Kind.Meta().Arity)
		for port := 0; port < arity && port < 4; port++ {
			srcNode, _ := g.GetSource(idx, int32(port))
			if srcNode == ir.NoNode {
				continue
			}
			if !visit(srcNode) {
				return false
			}
		}
		colors[idx] = colorBlack
		order = append(order, idx)
		return true
	}

	for i := range g.Nodes {
		if g.Nodes[i].IsRemoved() || colors[i] != colorWhite {
			continue
		}
		if !visit(int32(i)) {
			return false
		}
	}

	ctx.Sorted = order
	return true
}

// CodegenOrder filters ctx.Sorted down to the nodes that will carry
// an instruction: ATOMIC/REDUCTION/ACCEL categories, plus MEMORY
// nodes other than the zero-copy bridges (§4.7).
func CodegenOrder(ctx *Context) []int32 {
	out := make([]int32, 0, len(ctx.Sorted))
	for _, idx := range ctx.Sorted {
		k := ctx.IR.Nodes[idx].Kind
		meta := k.Meta()
		switch meta.Category {
		case ir.CatAtomic, ir.CatReduction, ir.CatAccel:
			out = append(out, idx)
		case ir.CatMemory:
			if !isBridge(k) {
				out = append(out, idx)
			}
		}
	}
	return out
}
