// Package rules holds the static, read-only rewrite-rule tables the
// Fuse, Decompose, and Lower passes consult: fusion patterns, lowering
// decompositions, and op-name aliases. Modeled on
// sf_compiler.h's sf_fusion_rule / sf_lowering_rule / sf_compiler_alias
// (§3, §9); none of these tables are mutated after init.
package rules

import "github.com/sionflow/sionflowc/pkg/ir"

// FusionMatch is one operand pattern a FusionRule requires: the target
// node's port must be fed by a node of MatchType, used by no more than
// MaxUseCount consumers (so fusing doesn't duplicate shared work), and
// its own inputs are remapped onto RemapToPort of the fused node.
type FusionMatch struct {
	PortName    string
	MatchType   ir.Kind
	MaxUseCount int
	RemapToPort string
}

// FusionRule rewrites TargetType, when its operands satisfy every entry
// of Matches, into a single ReplaceWith node. Example: Add(Mul(a,b), c) ->
// FMA(a,b,c).
type FusionRule struct {
	TargetType  ir.Kind
	ReplaceWith ir.Kind
	Matches     []FusionMatch
}

// FusionRules is the static fusion-rule table. Fuse tries the rules in
// table order at each node; the first rule that applies wins.
var FusionRules = []FusionRule{
	{
		// Add(Mul(a,b), c) -> FMA(a,b,c), and its commuted form
		// Add(c, Mul(a,b)) -> FMA(a,b,c).
		TargetType:  ir.NodeAdd,
		ReplaceWith: ir.NodeFMA,
		Matches: []FusionMatch{
			{PortName: "a", MatchType: ir.NodeMul, MaxUseCount: 1, RemapToPort: "a"},
		},
	},
	{
		TargetType:  ir.NodeAdd,
		ReplaceWith: ir.NodeFMA,
		Matches: []FusionMatch{
			{PortName: "b", MatchType: ir.NodeMul, MaxUseCount: 1, RemapToPort: "a"},
		},
	},
}

// LoweringStep is one node created by a LoweringRule's decomposition.
// InputMap names, per local input port, either another step's ID or
// one of the original node's own port names — Decompose resolves
// whichever applies when grafting the replacement subgraph.
type LoweringStep struct {
	ID       string
	Kind     ir.Kind
	InputMap [4]string
}

// LoweringRule decomposes one TargetType node into a small subgraph of
// Steps, with the final output taken from the step named OutputNodeID.
// Grounded on sf_compiler.h's sf_lowering_rule / sf_lowering_step.
type LoweringRule struct {
	TargetType   ir.Kind
	Steps        []LoweringStep
	OutputNodeID string
}

// LoweringRules is the static lowering-rule table, consulted by
// Decompose, which runs after Lower and Inline in §2's pipeline order.
var LoweringRules = []LoweringRule{
	{
		// Lerp(a, b, t) -> Add(a, Mul(Sub(b, a), t)).
		TargetType: ir.NodeLerp,
		Steps: []LoweringStep{
			{ID: "delta", Kind: ir.NodeSub, InputMap: [4]string{"b", "a"}},
			{ID: "scaled", Kind: ir.NodeMul, InputMap: [4]string{"delta", "t"}},
			{ID: "result", Kind: ir.NodeAdd, InputMap: [4]string{"a", "scaled"}},
		},
		OutputNodeID: "result",
	},
}

// Alias maps a manifest-facing op-name spelling onto its canonical
// ir.Kind, letting the surface language evolve independently of the
// opcode table (e.g. a terse "idx.x" spelling for IndexX).
type Alias struct {
	From string
	To   ir.Kind
}

// Aliases is the static alias table consulted when pkg/passes' Lower
// resolves a manifest node's "type" string to an ir.Kind.
var Aliases = []Alias{
	{From: "idx.x", To: ir.NodeIndexX},
	{From: "idx.y", To: ir.NodeIndexY},
	{From: "idx.z", To: ir.NodeIndexZ},
	{From: "matmul", To: ir.NodeMatmul},
	{From: "transpose", To: ir.NodeTranspose},
}

// Resolve looks up name in Aliases, returning (kind, true) on a hit.
func Resolve(name string) (ir.Kind, bool) {
	for _, a := range Aliases {
		if a.From == name {
			return a.To, true
		}
	}
	return ir.NodeUnknown, false
}
