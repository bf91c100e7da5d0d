package passes

import "github.com/sionflow/sionflowc/pkg/ir"

// isBridge reports whether a node kind is a zero-copy identity bridge:
// it never emits its own instruction, only aliases a register.
func isBridge(k ir.Kind) bool {
	return k == ir.NodeReshape || k == ir.NodeSlice
}

// Simplify rewrites every edge so it points past RESHAPE/SLICE bridge
// chains directly at the nearest non-bridge producer (§4.6). Bridge
// nodes are left in the graph (Liveness still needs their shape
// metadata for register aliasing) but are no longer referenced by any
// compute node's input.
func Simplify(ctx *Context) bool {
	g := ctx.IR
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if n.IsRemoved() || isBridge(n.Kind) {
			continue
		}
		arity := int(n.Kind.Meta().Arity)
		for port := 0; port < arity && port < 4; port++ {
			srcNode, srcPort := g.GetSource(int32(i), int32(port))
			if srcNode == ir.NoNode {
				continue
			}
			resolved, resolvedPort := traceBridge(g, srcNode, srcPort, 0)
			if resolved != srcNode {
				g.Connect(resolved, resolvedPort, int32(i), int32(port))
			}
		}
	}
	return true
}

// traceBridge walks backward through identity bridges to the nearest
// non-bridge producer, depth-capped like Liveness's register tracing.
func traceBridge(g *ir.Graph, node, port int32, depth int) (int32, int32) {
	if depth > maxBridgeDepth || !isBridge(g.Nodes[node].Kind) {
		return node, port
	}
	srcNode, srcPort := g.GetSource(node, 0)
	if srcNode == ir.NoNode {
		return node, port
	}
	return traceBridge(g, srcNode, srcPort, depth+1)
}

const maxBridgeDepth = 32
