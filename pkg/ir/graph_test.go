package ir

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConnectAndGetSource(t *testing.T) {
	g := NewGraph()
	a := g.Add("a", NodeInput, SourceLoc{})
	add := g.Add("add", NodeAdd, SourceLoc{})
	g.Connect(a, 0, add, 0)

	src, port := g.GetSource(add, 0)
	require.Equal(t, a, src)
	require.Equal(t, int32(0), port)
}

func TestWalkUsersSkipsStaleEdges(t *testing.T) {
	g := NewGraph()
	a := g.Add("a", NodeInput, SourceLoc{})
	b := g.Add("b", NodeInput, SourceLoc{})
	consumer := g.Add("c", NodeOutput, SourceLoc{})

	g.Connect(a, 0, consumer, 0)
	g.Connect(b, 0, consumer, 0) // supersedes a's edge, leaving a stale entry

	var seenFromA, seenFromB int
	g.WalkUsers(a, func(dst, port int32) { seenFromA++ })
	g.WalkUsers(b, func(dst, port int32) { seenFromB++ })

	require.Equal(t, 0, seenFromA, "a's edge into consumer is stale and must be filtered")
	require.Equal(t, 1, seenFromB)
}

func TestReplaceRepointsUsersAndTombstones(t *testing.T) {
	g := NewGraph()
	a := g.Add("a", NodeInput, SourceLoc{})
	b := g.Add("b", NodeInput, SourceLoc{})
	mul := g.Add("mul", NodeMul, SourceLoc{})
	out := g.Add("out", NodeOutput, SourceLoc{})
	g.Connect(a, 0, mul, 0)
	g.Connect(b, 0, mul, 1)
	g.Connect(mul, 0, out, 0)

	fma := g.Add("fma", NodeFMA, SourceLoc{})
	g.Replace(mul, fma)

	src, _ := g.GetSource(out, 0)
	require.Equal(t, fma, src)
	require.True(t, g.Nodes[mul].IsRemoved())
}

func TestRemoveClearsByIDLookup(t *testing.T) {
	g := NewGraph()
	a := g.Add("a", NodeInput, SourceLoc{})
	g.Remove(a)
	require.Equal(t, NoNode, g.FindByID("a"))
	require.True(t, g.Nodes[a].IsRemoved())
}

func TestGraftRemapsConnectivityWithPrefix(t *testing.T) {
	sub := NewGraph()
	in := sub.Add("in", NodeInput, SourceLoc{})
	neg := sub.Add("neg", NodeNeg, SourceLoc{})
	sub.Connect(in, 0, neg, 0)

	g := NewGraph()
	mapping := g.Graft(sub, "call1::")

	require.NotEqual(t, NoNode, mapping[in])
	require.NotEqual(t, NoNode, mapping[neg])
	require.Equal(t, "call1::in", g.Nodes[mapping[in]].ID)

	src, _ := g.GetSource(mapping[neg], 0)
	require.Equal(t, mapping[in], src)
}

func TestLiveCountExcludesTombstones(t *testing.T) {
	g := NewGraph()
	a := g.Add("a", NodeInput, SourceLoc{})
	_ = g.Add("b", NodeInput, SourceLoc{})
	g.Remove(a)
	require.Equal(t, 1, g.LiveCount())
}
