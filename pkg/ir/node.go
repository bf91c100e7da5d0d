package ir

// SourceLoc is the manifest-file position a node or link was parsed
// from, preserved end to end so diagnostics can point back at the
// author's JSON.
type SourceLoc struct {
	File   string
	Line   int
	Column int
}

// ResourceFlag marks runtime-visible traits of a node's output register
// that Liveness and TaskPlan consult.
type ResourceFlag uint8

const (
	ResourceNone ResourceFlag = 0
	// ResourceAliased marks a register produced by a bridge op (Reshape,
	// Slice) that shares storage with its source rather than owning a
	// unique register.
	ResourceAliased ResourceFlag = 1 << iota
	// ResourceReadonly marks a resource the runtime must never write
	// back to (manifest "readonly" attribute).
	ResourceReadonly
	// ResourcePersistent marks a resource whose storage must survive
	// beyond one dispatch (manifest "persistent" attribute).
	ResourcePersistent
	// ResourceTransient marks a resource explicitly scoped to a single
	// dispatch, the converse of ResourcePersistent.
	ResourceTransient
	// ResourceScreenSize marks a resource sized to the window's
	// dimensions rather than a fixed shape (manifest "screen_size").
	ResourceScreenSize
	// ResourceOutput marks a resource the manifest's "output" attribute
	// exposes as a render/compute target, independent of node kind.
	ResourceOutput
)

// Input is one entry of a node's fixed-size inputs table: the producer
// node/port this input port is wired to. A SrcNode of NoNode means the
// input port is unconnected.
type Input struct {
	SrcNode int32
	SrcPort int32
}

// NoNode is the sentinel index meaning "no node" (unconnected input,
// absent domain node, etc).
const NoNode int32 = -1

// userEdge is one link in the singly-linked user list hung off a
// producer's output: "port SrcPort of this node feeds DstNode's
// DstPort". Walking Next from a node's Users field visits every
// consumer of that node's output in O(1) per hop.
type userEdge struct {
	DstNode int32
	DstPort int32
	Next    int32 // index into Graph.edges, or -1
}

// Node is one IR graph vertex. Connectivity is dual-indexed per the
// normative design (§3, §9): the Inputs table gives O(1) producer
// lookup from a consumer, and Users gives O(1) consumer traversal from
// a producer, without rescanning the whole node slice either way.
type Node struct {
	ID   string
	Kind Kind

	// Const data, valid only when Kind == NodeConst.
	ConstInfo TypeInfo
	ConstData []byte

	// Subgraph path, valid only when Kind == NodeCall.
	SubGraphPath string

	Loc SourceLoc

	// Inputs is indexed by local port index (0..Kind.Meta().Arity-1).
	Inputs [4]Input

	// Users is the head of this node's singly-linked consumer list
	// (index into Graph.edges, or -1 if no consumer).
	Users int32

	// Compiler-generated, filled in by Analyze/Liveness/TaskPlan.
	OutRegIdx     uint16
	DomainNodeIdx int32
	OutInfo       TypeInfo
	IsSpatial     bool
	ResourceFlags ResourceFlag
}

// IsRemoved reports whether this slot has been tombstoned by Remove.
// Index stability means a removed node's slot is retyped, never
// deleted from the slice.
func (n *Node) IsRemoved() bool { return n.Kind == NodeUnknown }
