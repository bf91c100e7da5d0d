package ir

import "fmt"

// Graph is the mutable IR for one compiled kernel. It owns the node
// slice and the edge list backing every producer's user list.
//
// Single-threaded by design (no runtime concurrency in the compiler
// itself, §5): every mutation goes through the builder methods below so
// the inputs-table / user-list invariant never drifts.
type Graph struct {
	Nodes []Node
	edges []userEdge

	byID map[string]int32
}

// NewGraph returns an empty graph ready for Add.
func NewGraph() *Graph {
	return &Graph{byID: make(map[string]int32)}
}

// Add appends a new node and returns its index. Duplicate IDs are not
// rejected, here or by pkg/ast: the most recent Add of an ID is the one
// FindByID returns.
func (g *Graph) Add(id string, kind Kind, loc SourceLoc) int32 {
	idx := int32(len(g.Nodes))
	g.Nodes = append(g.Nodes, Node{
		ID:            id,
		Kind:          kind,
		Loc:           loc,
		Users:         -1,
		DomainNodeIdx: NoNode,
	})
	for i := range g.Nodes[idx].Inputs {
		g.Nodes[idx].Inputs[i] = Input{SrcNode: NoNode, SrcPort: NoNode}
	}
	if id != "" {
		g.byID[id] = idx
	}
	return idx
}

// FindByID returns the node index registered under id, or NoNode.
func (g *Graph) FindByID(id string) int32 {
	if idx, ok := g.byID[id]; ok {
		return idx
	}
	return NoNode
}

// Connect wires srcNode's output port srcPort into dstNode's input port
// dstPort, replacing whatever dstNode's port was previously connected
// to. It pushes a new user-list edge onto srcNode and, if dstPort held
// a prior connection, that producer's user-list is left with a stale
// edge entry — dead entries are skipped by consumers via Inputs
// cross-checks, matching the tombstone-don't-compact discipline used
// for node removal.
func (g *Graph) Connect(srcNode, srcPort, dstNode, dstPort int32) {
	g.Nodes[dstNode].Inputs[dstPort] = Input{SrcNode: srcNode, SrcPort: srcPort}

	edgeIdx := int32(len(g.edges))
	g.edges = append(g.edges, userEdge{
		DstNode: dstNode,
		DstPort: dstPort,
		Next:    g.Nodes[srcNode].Users,
	})
	g.Nodes[srcNode].Users = edgeIdx
}

// Disconnect clears dstNode's dstPort input. The producer's user-list
// entry for this edge becomes stale; walkers must verify against the
// live Inputs table (see WalkUsers).
func (g *Graph) Disconnect(dstNode, dstPort int32) {
	g.Nodes[dstNode].Inputs[dstPort] = Input{SrcNode: NoNode, SrcPort: NoNode}
}

// GetSource returns the producer (node, port) feeding dstNode's
// dstPort, or (NoNode, NoNode) if unconnected.
func (g *Graph) GetSource(dstNode, dstPort int32) (int32, int32) {
	in := g.Nodes[dstNode].Inputs[dstPort]
	return in.SrcNode, in.SrcPort
}

// WalkUsers invokes fn for every (dstNode, dstPort) currently wired to
// srcNode's output, in O(users) time. Stale edges (left behind by a
// Disconnect or a superseding Connect) are filtered by re-checking the
// live Inputs table before calling fn. Ops are single-output, so a
// producer's output port is always 0.
func (g *Graph) WalkUsers(srcNode int32, fn func(dstNode, dstPort int32)) {
	for e := g.Nodes[srcNode].Users; e != -1; e = g.edges[e].Next {
		edge := g.edges[e]
		in := g.Nodes[edge.DstNode].Inputs[edge.DstPort]
		if in.SrcNode != srcNode {
			continue
		}
		fn(edge.DstNode, edge.DstPort)
	}
}

// Replace repoints every consumer of oldNode's output to newNode's
// output, then tombstones oldNode. Used by Decompose/Fuse/Inline
// rewrites that swap one node in for another without touching the
// nodes around it.
func (g *Graph) Replace(oldNode, newNode int32) {
	g.WalkUsers(oldNode, func(dstNode, dstPort int32) {
		g.Connect(newNode, 0, dstNode, dstPort)
	})
	g.Remove(oldNode)
}

// Remove tombstones a node: its Kind becomes NodeUnknown and its slot
// is left in place so every earlier-recorded node index stays valid.
// Callers must have already redirected or accepted the loss of any
// consumers before calling Remove.
func (g *Graph) Remove(nodeIdx int32) {
	n := &g.Nodes[nodeIdx]
	if n.ID != "" {
		delete(g.byID, n.ID)
	}
	n.Kind = NodeUnknown
	n.Users = -1
	for i := range n.Inputs {
		n.Inputs[i] = Input{SrcNode: NoNode, SrcPort: NoNode}
	}
}

// Graft copies every live node of src into g, renaming IDs with prefix
// (prefix + original ID), remapping internal connectivity to the new
// indices, and returns the mapping from src index to g index. Used by
// Inline to splice a called subgraph's body into the caller.
func (g *Graph) Graft(src *Graph, prefix string) []int32 {
	mapping := make([]int32, len(src.Nodes))
	for i := range mapping {
		mapping[i] = NoNode
	}
	for i, n := range src.Nodes {
		if n.IsRemoved() {
			continue
		}
		id := n.ID
		if id != "" {
			id = prefix + id
		}
		newIdx := g.Add(id, n.Kind, n.Loc)
		dst := &g.Nodes[newIdx]
		dst.ConstInfo = n.ConstInfo
		dst.ConstData = n.ConstData
		dst.SubGraphPath = n.SubGraphPath
		mapping[i] = newIdx
	}
	for i, n := range src.Nodes {
		if n.IsRemoved() || mapping[i] == NoNode {
			continue
		}
		for port, in := range n.Inputs {
			if in.SrcNode == NoNode {
				continue
			}
			if int(in.SrcNode) >= len(mapping) || mapping[in.SrcNode] == NoNode {
				continue
			}
			g.Connect(mapping[in.SrcNode], in.SrcPort, mapping[i], int32(port))
		}
	}
	return mapping
}

// LiveCount returns the number of non-tombstoned nodes.
func (g *Graph) LiveCount() int {
	count := 0
	for i := range g.Nodes {
		if !g.Nodes[i].IsRemoved() {
			count++
		}
	}
	return count
}

// String renders a compact "[index] id:Kind" summary of the live nodes,
// one per line, for debugging.
func (g *Graph) String() string {
	s := ""
	for i, n := range g.Nodes {
		if n.IsRemoved() {
			continue
		}
		s += fmt.Sprintf("[%d] %s:%s\n", i, n.ID, n.Kind)
	}
	return s
}
