package ir

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func shape(dims ...int32) TypeInfo {
	t := TypeInfo{Dtype: DtypeF32, NDim: len(dims)}
	copy(t.Shape[:], dims)
	t.RecomputeStrides()
	return t
}

func TestBroadcastShapesRightAligned(t *testing.T) {
	a := shape(3, 1, 4)
	b := shape(1, 5, 4)
	out, ok := BroadcastShapes(a, b)
	require.True(t, ok)
	require.Equal(t, []int32{3, 5, 4}, out.Shape[:out.NDim])
}

func TestBroadcastShapesIncompatible(t *testing.T) {
	a := shape(3, 4)
	b := shape(5, 4)
	_, ok := BroadcastShapes(a, b)
	require.False(t, ok)
}

func TestBroadcastShapesPadsShorterRank(t *testing.T) {
	a := shape(4)
	b := shape(3, 4)
	out, ok := BroadcastShapes(a, b)
	require.True(t, ok)
	require.Equal(t, 2, out.NDim)
	require.Equal(t, []int32{3, 4}, out.Shape[:out.NDim])
}

func TestTypeInfoEqualIgnoresDtype(t *testing.T) {
	a := shape(2, 3)
	b := shape(2, 3)
	b.Dtype = DtypeI32
	require.True(t, a.Equal(b))
}

func TestIsScalar(t *testing.T) {
	require.True(t, TypeInfo{NDim: 0}.IsScalar())
	require.True(t, shape(1).IsScalar())
	require.False(t, shape(2).IsScalar())
}

func TestBroadcastStridesZeroesBroadcastAxes(t *testing.T) {
	operand := shape(1, 4)
	domain := shape(3, 4)
	strides := BroadcastStrides(operand, domain)
	require.Equal(t, int32(0), strides[0])
	require.Equal(t, operand.Strides[1], strides[1])
}

func TestElementCountScalarIsOne(t *testing.T) {
	var t0 TypeInfo
	require.Equal(t, int64(1), t0.ElementCount())
	s := shape(2, 3)
	require.Equal(t, int64(6), s.ElementCount())
}
