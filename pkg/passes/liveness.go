package passes

import "github.com/sionflow/sionflowc/pkg/ir"

const maxBridgeTraceDepth = 32

// isRegisterBridge reports whether a node kind passes its input's
// register through unchanged rather than computing into a new one.
// INPUT is deliberately excluded: it has no upstream producer of its
// own, so it anchors a register rather than aliasing one.
func isRegisterBridge(k ir.Kind) bool {
	switch k {
	case ir.NodeOutput, ir.NodeReshape, ir.NodeSlice:
		return true
	}
	return false
}

// Liveness assigns a register index to every node's output (§4.11).
// Grounded on sf_pass_liveness.c's two-phase structure: phase one hands
// a fresh, unique register to every compute, constant, and input node;
// phase two resolves bridges (OUTPUT/RESHAPE/SLICE) by recursively
// tracing back to the register of their underlying source via
// trace_register_source, depth-capped to guard against malformed
// cycles slipping past Sort.
func Liveness(ctx *Context) bool {
	g := ctx.IR
	var next uint16 = 0

	for _, idx := range ctx.Sorted {
		n := &g.Nodes[idx]
		if n.Kind == ir.NodeUnknown || isRegisterBridge(n.Kind) {
			continue
		}
		n.OutRegIdx = next
		next++
	}

	for _, idx := range ctx.Sorted {
		n := &g.Nodes[idx]
		if !isRegisterBridge(n.Kind) {
			continue
		}
		n.OutRegIdx = traceRegisterSource(g, idx, 0)
	}

	return true
}

// traceRegisterSource follows a bridge node's primary input back to
// the register of the first non-bridge producer it aliases.
func traceRegisterSource(g *ir.Graph, idx int32, depth int) uint16 {
	if depth >= maxBridgeTraceDepth {
		return 0
	}
	n := &g.Nodes[idx]
	if !isRegisterBridge(n.Kind) {
		return n.OutRegIdx
	}
	srcIdx, _ := g.GetSource(idx, 0)
	if srcIdx == ir.NoNode {
		return 0
	}
	if isRegisterBridge(g.Nodes[srcIdx].Kind) {
		return traceRegisterSource(g, srcIdx, depth+1)
	}
	return g.Nodes[srcIdx].OutRegIdx
}
