package passes

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sionflow/sionflowc/pkg/ir"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func runMiddleEnd(t *testing.T, g *ir.Graph) *Context {
	t.Helper()
	ctx := NewContext(g, ".", discardLogger())
	require.True(t, Decompose(ctx))
	require.True(t, Fuse(ctx))
	require.True(t, Simplify(ctx))
	require.True(t, Sort(ctx))
	require.True(t, Analyze(ctx))
	require.True(t, Validate(ctx))
	require.True(t, DomainSplit(ctx))
	require.True(t, Liveness(ctx))
	require.True(t, TaskPlan(ctx))
	return ctx
}

func vecF32(n int32) ir.TypeInfo {
	t := ir.TypeInfo{Dtype: ir.DtypeF32, NDim: 1}
	t.Shape[0] = n
	t.RecomputeStrides()
	return t
}

// TestScalarAdd mirrors spec.md §8's "Scalar add" end-to-end scenario:
// a,b: INPUT[4] f32; c: ADD(a,b); o: OUTPUT(c). Expect one instruction,
// one task over a [4]-element domain, and o's symbol resolved to c's
// register.
func TestScalarAdd(t *testing.T) {
	g := ir.NewGraph()
	a := g.Add("a", ir.NodeInput, ir.SourceLoc{})
	b := g.Add("b", ir.NodeInput, ir.SourceLoc{})
	c := g.Add("c", ir.NodeAdd, ir.SourceLoc{})
	o := g.Add("o", ir.NodeOutput, ir.SourceLoc{})
	g.Nodes[a].ConstInfo = vecF32(4)
	g.Nodes[b].ConstInfo = vecF32(4)
	g.Connect(a, 0, c, 0)
	g.Connect(b, 0, c, 1)
	g.Connect(c, 0, o, 0)

	ctx := runMiddleEnd(t, g)
	prog := Emit(ctx)

	require.Len(t, prog.Instructions, 1)
	require.Equal(t, ir.NodeAdd, prog.Instructions[0].Opcode)
	require.Len(t, prog.Tasks, 1)
	require.Equal(t, int64(1), prog.Tasks[0].TotalTiles)
	require.Equal(t, int32(4), prog.Tasks[0].GridTile[0])

	foundOutputRegMatchesC := false
	cReg := g.Nodes[c].OutRegIdx
	for _, s := range prog.Symbols {
		if s.Name == "o" && s.Register == cReg {
			foundOutputRegMatchesC = true
		}
	}
	require.True(t, foundOutputRegMatchesC, "output symbol must resolve to its producer's register")
}

// TestFMAFusion mirrors §8's "FMA fusion" scenario: m = MUL(a,b),
// n = ADD(m,c) with m used exactly once collapses to a single FMA
// instruction referencing a, b, c directly.
func TestFMAFusion(t *testing.T) {
	g := ir.NewGraph()
	a := g.Add("a", ir.NodeInput, ir.SourceLoc{})
	b := g.Add("b", ir.NodeInput, ir.SourceLoc{})
	c := g.Add("c", ir.NodeInput, ir.SourceLoc{})
	m := g.Add("m", ir.NodeMul, ir.SourceLoc{})
	n := g.Add("n", ir.NodeAdd, ir.SourceLoc{})
	o := g.Add("o", ir.NodeOutput, ir.SourceLoc{})
	for _, idx := range []int32{a, b, c} {
		g.Nodes[idx].ConstInfo = vecF32(4)
	}
	g.Connect(a, 0, m, 0)
	g.Connect(b, 0, m, 1)
	g.Connect(m, 0, n, 0)
	g.Connect(c, 0, n, 1)
	g.Connect(n, 0, o, 0)

	beforeLive := g.LiveCount()
	ctx := NewContext(g, ".", discardLogger())
	require.True(t, Decompose(ctx))
	require.True(t, Fuse(ctx))
	require.Equal(t, beforeLive-1, g.LiveCount(), "fusing MUL+ADD into FMA removes exactly one live node")

	require.True(t, Simplify(ctx))
	require.True(t, Sort(ctx))
	require.True(t, Analyze(ctx))
	require.True(t, Validate(ctx))
	require.True(t, DomainSplit(ctx))
	require.True(t, Liveness(ctx))
	require.True(t, TaskPlan(ctx))
	prog := Emit(ctx)

	require.Len(t, prog.Instructions, 1)
	require.Equal(t, ir.NodeFMA, prog.Instructions[0].Opcode)
	operandRegs := map[uint16]bool{
		g.Nodes[a].OutRegIdx: true,
		g.Nodes[b].OutRegIdx: true,
		g.Nodes[c].OutRegIdx: true,
	}
	for _, opReg := range prog.Instructions[0].Operands[:3] {
		require.True(t, operandRegs[opReg], "FMA operand %d must reference a, b, or c's register", opReg)
	}
}

// TestReshapeAliasing mirrors §8's "Reshape aliasing" scenario:
// INPUT[2,6] -> RESHAPE[3,4] -> consumer. After Simplify+Liveness the
// consumer reads INPUT's register directly and no instruction is
// emitted for RESHAPE.
func TestReshapeAliasing(t *testing.T) {
	g := ir.NewGraph()
	in := g.Add("in", ir.NodeInput, ir.SourceLoc{})
	shapeConst := g.Add("shape", ir.NodeConst, ir.SourceLoc{})
	reshape := g.Add("reshaped", ir.NodeReshape, ir.SourceLoc{})
	neg := g.Add("neg", ir.NodeNeg, ir.SourceLoc{})
	o := g.Add("o", ir.NodeOutput, ir.SourceLoc{})

	g.Nodes[in].ConstInfo = ir.TypeInfo{Dtype: ir.DtypeF32, NDim: 2, Shape: [ir.MaxDims]int32{2, 6}}
	g.Nodes[in].ConstInfo.RecomputeStrides()
	g.Nodes[shapeConst].ConstInfo = ir.TypeInfo{Dtype: ir.DtypeI32, NDim: 1, Shape: [ir.MaxDims]int32{2}}
	g.Nodes[shapeConst].ConstData = int32PairBytes(3, 4)

	g.Connect(in, 0, reshape, 0)
	g.Connect(shapeConst, 0, reshape, 1)
	g.Connect(reshape, 0, neg, 0)
	g.Connect(neg, 0, o, 0)

	ctx := runMiddleEnd(t, g)

	require.Equal(t, g.Nodes[in].OutRegIdx, g.Nodes[reshape].OutRegIdx,
		"reshape must alias its source's register")

	prog := Emit(ctx)
	for _, inst := range prog.Instructions {
		require.NotEqual(t, ir.NodeReshape, inst.Opcode, "reshape must not emit an instruction")
	}
}

func int32PairBytes(a, b int32) []byte {
	enc := func(v int32) []byte {
		u := uint32(v)
		return []byte{byte(u), byte(u >> 8), byte(u >> 16), byte(u >> 24)}
	}
	out := enc(a)
	out = append(out, enc(b)...)
	return out
}
