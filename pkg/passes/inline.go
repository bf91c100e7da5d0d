package passes

import (
	"fmt"

	"github.com/sionflow/sionflowc/pkg/ast"
	"github.com/sionflow/sionflowc/pkg/ir"
)

// maxInlineDepth caps recursive CALL resolution so a cyclic import
// chain cannot runaway-allocate nodes (§4.3).
const maxInlineDepth = 32

// Inline repeatedly grafts each CALL node's referenced subgraph into
// the host graph until no CALL remains (§4.3).
func Inline(ctx *Context) bool {
	// callDepth records, for every node a CALL expansion grafted in, how
	// many nested expansions produced it; host nodes are at depth 0.
	callDepth := map[int32]int{}
	for {
		callIdx := findNextCall(ctx.IR)
		if callIdx == ir.NoNode {
			return true
		}
		depth := callDepth[callIdx]
		if depth >= maxInlineDepth {
			ctx.Diag.Errorf(ctx.BasePath, 0, 0, "", "inline depth cap (%d) exceeded; cyclic imports?", maxInlineDepth)
			return false
		}
		firstNew := int32(len(ctx.IR.Nodes))
		if !inlineOne(ctx, callIdx) {
			return false
		}
		for i := firstNew; i < int32(len(ctx.IR.Nodes)); i++ {
			callDepth[i] = depth + 1
		}
	}
}

func findNextCall(g *ir.Graph) int32 {
	for i := range g.Nodes {
		if g.Nodes[i].Kind == ir.NodeCall && !g.Nodes[i].IsRemoved() {
			return int32(i)
		}
	}
	return ir.NoNode
}

func inlineOne(ctx *Context, callIdx int32) bool {
	g := ctx.IR
	call := g.Nodes[callIdx]
	if call.SubGraphPath == "" {
		ctx.Diag.Errorf(call.Loc.File, call.Loc.Line, call.Loc.Column, "call", "CALL node '%s' has no resolved subgraph path", call.ID)
		return false
	}

	sub, err := ast.Load(call.SubGraphPath)
	if err != nil {
		ctx.Diag.Errorf(call.Loc.File, call.Loc.Line, call.Loc.Column, "call", "failed to load subgraph '%s': %v", call.SubGraphPath, err)
		return false
	}

	subGraph := ir.NewGraph()
	subCtx := &Context{IR: subGraph, Arena: ctx.Arena, BasePath: sub.BasePath, Diag: ctx.Diag, Log: ctx.Log}
	if !Lower(subCtx, sub) {
		return false
	}

	prefix := fmt.Sprintf("%s::", call.ID)
	mapping := g.Graft(subGraph, prefix)

	// For every boundary INPUT in the grafted subgraph, replace it with
	// whatever producer fed the CALL node at the same port position,
	// then drop the grafted INPUT.
	inputOrdinal := 0
	for i, n := range subGraph.Nodes {
		if n.IsRemoved() || n.Kind != ir.NodeInput {
			continue
		}
		graftedIdx := mapping[i]
		if graftedIdx == ir.NoNode {
			continue
		}
		if inputOrdinal < len(call.Inputs) && call.Inputs[inputOrdinal].SrcNode != ir.NoNode {
			g.Replace(graftedIdx, call.Inputs[inputOrdinal].SrcNode)
		} else {
			g.Remove(graftedIdx)
		}
		inputOrdinal++
	}

	// For the subgraph's OUTPUT, splice its internal producer into the
	// CALL node's former position, then drop the grafted OUTPUT.
	for i, n := range subGraph.Nodes {
		if n.IsRemoved() || n.Kind != ir.NodeOutput {
			continue
		}
		graftedIdx := mapping[i]
		if graftedIdx == ir.NoNode {
			continue
		}
		producer, _ := g.GetSource(graftedIdx, 0)
		if producer == ir.NoNode {
			continue
		}
		g.Replace(callIdx, producer)
		g.Remove(graftedIdx)
	}

	g.Remove(callIdx)
	return true
}
