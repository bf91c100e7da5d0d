// Package ir defines the graph intermediate representation the sionflow
// compiler pipeline operates on: tensor types, node connectivity, and the
// static operation metadata and rewrite-rule tables every pass consults.
package ir

import "fmt"

// MaxDims bounds the rank of any tensor the compiler reasons about.
const MaxDims = 4

// Dtype is the element type of a tensor.
type Dtype uint8

const (
	DtypeUnknown Dtype = iota
	DtypeU8
	DtypeI32
	DtypeF32
)

func (d Dtype) String() string {
	switch d {
	case DtypeU8:
		return "u8"
	case DtypeI32:
		return "i32"
	case DtypeF32:
		return "f32"
	default:
		return "unknown"
	}
}

// Mask returns the single bit this dtype occupies in an input_mask.
func (d Dtype) Mask() uint32 {
	return 1 << uint32(d)
}

// ByteSize returns the per-element size used for stride baking (§4.12).
// Falls back to 4 for an unresolved dtype.
func (d Dtype) ByteSize() int {
	switch d {
	case DtypeU8:
		return 1
	case DtypeI32, DtypeF32:
		return 4
	default:
		return 4
	}
}

// TypeInfo describes a tensor's dtype, rank and shape/strides.
//
// ndim == 0 means scalar. Strides are element (not byte) strides, derived
// from shape in row-major contiguous order unless explicitly overwritten
// for a broadcast binding.
type TypeInfo struct {
	Dtype   Dtype
	NDim    int
	Shape   [MaxDims]int32
	Strides [MaxDims]int32
}

// ElementCount returns the product of the first NDim shape entries. A
// scalar (NDim == 0) has one element.
func (t *TypeInfo) ElementCount() int64 {
	if t.NDim == 0 {
		return 1
	}
	count := int64(1)
	for i := 0; i < t.NDim; i++ {
		count *= int64(t.Shape[i])
	}
	return count
}

// RecomputeStrides fills Strides with row-major contiguous element strides
// for the current Shape/NDim.
func (t *TypeInfo) RecomputeStrides() {
	for i := range t.Strides {
		t.Strides[i] = 0
	}
	if t.NDim == 0 {
		return
	}
	stride := int32(1)
	for i := t.NDim - 1; i >= 0; i-- {
		t.Strides[i] = stride
		stride *= t.Shape[i]
	}
}

// Equal reports whether two TypeInfos have the same rank and shape
// (dtype and strides are ignored, matching the domain-split/validate
// passes' notion of "shapes_equal").
func (t TypeInfo) Equal(o TypeInfo) bool {
	if t.NDim != o.NDim {
		return false
	}
	for i := 0; i < t.NDim; i++ {
		if t.Shape[i] != o.Shape[i] {
			return false
		}
	}
	return true
}

// IsScalar reports whether this tensor is a 0-D scalar or a 1-element
// vector, the two forms Validate treats as broadcast-compatible with
// anything.
func (t TypeInfo) IsScalar() bool {
	return t.NDim == 0 || (t.NDim == 1 && t.Shape[0] == 1)
}

// Format renders a shape like "[3,4]" for diagnostics.
func (t TypeInfo) Format() string {
	s := "["
	for i := 0; i < t.NDim; i++ {
		if i > 0 {
			s += ","
		}
		s += fmt.Sprintf("%d", t.Shape[i])
	}
	return s + "]"
}

// BroadcastShapes computes the NumPy-style right-aligned broadcast of two
// shapes. Dimensions are compatible when equal or when either side is 1.
// Shorter shapes are conceptually left-padded with 1s.
func BroadcastShapes(a, b TypeInfo) (TypeInfo, bool) {
	ndim := a.NDim
	if b.NDim > ndim {
		ndim = b.NDim
	}
	var out TypeInfo
	out.NDim = ndim
	for i := 0; i < ndim; i++ {
		da := dimAt(a, ndim, i)
		db := dimAt(b, ndim, i)
		switch {
		case da == db:
			out.Shape[i] = da
		case da == 1:
			out.Shape[i] = db
		case db == 1:
			out.Shape[i] = da
		default:
			return TypeInfo{}, false
		}
	}
	out.RecomputeStrides()
	return out, true
}

// dimAt returns shape[i] under a right-aligned broadcast of rank ndim,
// treating missing leading dimensions as 1.
func dimAt(t TypeInfo, ndim, i int) int32 {
	pad := ndim - t.NDim
	if i < pad {
		return 1
	}
	return t.Shape[i-pad]
}

// BroadcastStrides bakes per-axis strides of operand shape `operand`
// against a task's domain shape `domain`, per §4.12: a broadcast axis
// (operand dimension 1 where the domain dimension is larger) gets a zero
// stride; axes beyond the operand's own rank also get zero; everything
// else uses the operand's own contiguous element stride, right-aligned
// against the domain's rank. The result is in element strides; multiply
// by dtype byte size to get the final stored stride.
func BroadcastStrides(operand, domain TypeInfo) [MaxDims]int32 {
	var strides [MaxDims]int32
	pad := domain.NDim - operand.NDim
	for axis := 0; axis < domain.NDim && axis < MaxDims; axis++ {
		opAxis := axis - pad
		if opAxis < 0 {
			strides[axis] = 0
			continue
		}
		if operand.Shape[opAxis] == 1 {
			strides[axis] = 0
			continue
		}
		strides[axis] = operand.Strides[opAxis]
	}
	return strides
}
