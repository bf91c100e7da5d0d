package passes

import "github.com/sionflow/sionflowc/pkg/ir"

// Analyze resolves dtype, shape, and strides for every node in
// ctx.Sorted, marks spatial nodes, and inflates generators to match
// their domain's shape (§4.8). Grounded on sf_pass_analyze.c's two-pass
// structure: a pre-pass seeds INPUT/OUTPUT/CONST output info from their
// declared const_info, then the main pass resolves every shape/dtype
// rule in topological order so each node's inputs are already
// resolved.
func Analyze(ctx *Context) bool {
	g := ctx.IR
	ok := true

	for _, idx := range ctx.Sorted {
		n := &g.Nodes[idx]
		switch n.Kind {
		case ir.NodeInput, ir.NodeOutput:
			n.OutInfo = n.ConstInfo
		case ir.NodeConst:
			n.OutInfo = n.ConstInfo
		}
	}

	for _, idx := range ctx.Sorted {
		n := &g.Nodes[idx]
		if n.Kind == ir.NodeUnknown {
			continue
		}
		meta := n.Kind.Meta()

		var inputs [4]*ir.Node
		for k := 0; k < int(meta.Arity) && k < 4; k++ {
			srcIdx, _ := g.GetSource(idx, int32(k))
			if srcIdx != ir.NoNode {
				inputs[k] = &g.Nodes[srcIdx]
			}
		}

		if !resolveShape(ctx, idx, n, meta, inputs) {
			ok = false
			continue
		}
		resolveDtype(n, meta, inputs)
		n.OutInfo.RecomputeStrides()

		domIdx := n.DomainNodeIdx
		if domIdx == ir.NoNode {
			domIdx = idx
		}
		domCount := g.Nodes[domIdx].OutInfo.ElementCount()

		isGenerator := meta.HasFlag(ir.FlagGenerator)
		hasSpatialInput := false
		for _, in := range inputs {
			if in != nil && in.IsSpatial {
				hasSpatialInput = true
			}
		}
		n.IsSpatial = domCount > 1 || isGenerator || hasSpatialInput

		if isGenerator && domCount > 1 && !meta.HasFlag(ir.FlagForceDom) {
			domInfo := g.Nodes[domIdx].OutInfo
			n.OutInfo.NDim = domInfo.NDim
			n.OutInfo.Shape = domInfo.Shape
			n.OutInfo.RecomputeStrides()
		}
	}

	return ok
}

func resolveShape(ctx *Context, idx int32, n *ir.Node, meta *ir.OpMetadata, in [4]*ir.Node) bool {
	out := &n.OutInfo
	switch meta.ShapeRule {
	case ir.ShapeSpecial:
		switch n.Kind {
		case ir.NodeInput:
			if n.OutInfo.NDim == 0 && n.OutInfo.Dtype == ir.DtypeUnknown {
				out.Dtype = ir.DtypeF32
			}
		case ir.NodeOutput:
			if in[0] != nil {
				*out = in[0].OutInfo
				if n.DomainNodeIdx == ir.NoNode {
					domIdx := in[0].DomainNodeIdx
					if domIdx == ir.NoNode {
						for i := range ctx.IR.Nodes {
							if &ctx.IR.Nodes[i] == in[0] {
								domIdx = int32(i)
								break
							}
						}
					}
					n.DomainNodeIdx = domIdx
				}
			}
		}
	case ir.ShapeSameAsS1:
		if in[0] == nil {
			ctx.Diag.Errorf(n.Loc.File, n.Loc.Line, n.Loc.Column, meta.Name, "missing input 1 for %s", meta.Name)
			return false
		}
		out.NDim = in[0].OutInfo.NDim
		out.Shape = in[0].OutInfo.Shape
	case ir.ShapeSameAsS2:
		if in[1] == nil {
			ctx.Diag.Errorf(n.Loc.File, n.Loc.Line, n.Loc.Column, meta.Name, "missing input 2 for %s", meta.Name)
			return false
		}
		out.NDim = in[1].OutInfo.NDim
		out.Shape = in[1].OutInfo.Shape
	case ir.ShapeBroadcast:
		if in[0] == nil || in[1] == nil {
			ctx.Diag.Errorf(n.Loc.File, n.Loc.Line, n.Loc.Column, meta.Name, "missing inputs for broadcast in %s", meta.Name)
			return false
		}
		result, ok := ir.BroadcastShapes(in[0].OutInfo, in[1].OutInfo)
		if !ok {
			ctx.Diag.Errorf(n.Loc.File, n.Loc.Line, n.Loc.Column, meta.Name, "incompatible shapes for broadcast: %s vs %s", in[0].OutInfo.Format(), in[1].OutInfo.Format())
			return false
		}
		if in[2] != nil {
			result, ok = ir.BroadcastShapes(result, in[2].OutInfo)
			if !ok {
				ctx.Diag.Errorf(n.Loc.File, n.Loc.Line, n.Loc.Column, meta.Name, "incompatible shapes for broadcast with operand 3")
				return false
			}
		}
		*out = result
	case ir.ShapeMatmul:
		if in[0] == nil || in[1] == nil {
			ctx.Diag.Errorf(n.Loc.File, n.Loc.Line, n.Loc.Column, meta.Name, "missing inputs for matmul")
			return false
		}
		a, b := in[0].OutInfo, in[1].OutInfo
		out.NDim = 2
		out.Shape[0] = a.Shape[a.NDim-2]
		out.Shape[1] = b.Shape[b.NDim-1]
	case ir.ShapeTranspose:
		if in[0] == nil {
			ctx.Diag.Errorf(n.Loc.File, n.Loc.Line, n.Loc.Column, meta.Name, "missing input for transpose")
			return false
		}
		*out = in[0].OutInfo
		if out.NDim >= 2 {
			out.Shape[out.NDim-2], out.Shape[out.NDim-1] = out.Shape[out.NDim-1], out.Shape[out.NDim-2]
		}
	case ir.ShapeDot:
		if in[0] == nil {
			ctx.Diag.Errorf(n.Loc.File, n.Loc.Line, n.Loc.Column, meta.Name, "missing input for dot/reduction")
			return false
		}
		a := in[0].OutInfo
		out.NDim = 0
		if a.NDim > 0 {
			out.NDim = a.NDim - 1
		}
		for k := 0; k < out.NDim; k++ {
			out.Shape[k] = a.Shape[k]
		}
	case ir.ShapeJoin:
		if in[0] == nil || in[1] == nil {
			ctx.Diag.Errorf(n.Loc.File, n.Loc.Line, n.Loc.Column, meta.Name, "missing inputs for join")
			return false
		}
		*out = in[0].OutInfo
		comps := 2
		if in[2] != nil {
			comps++
		}
		if in[3] != nil {
			comps++
		}
		out.Shape[out.NDim] = int32(comps)
		out.NDim++
	case ir.ShapeGather:
		if in[1] == nil {
			ctx.Diag.Errorf(n.Loc.File, n.Loc.Line, n.Loc.Column, meta.Name, "missing index input for gather")
			return false
		}
		out.NDim = in[1].OutInfo.NDim
		out.Shape = in[1].OutInfo.Shape
	case ir.ShapeReshape:
		if in[1] == nil || in[1].ConstData == nil {
			ctx.Diag.Errorf(n.Loc.File, n.Loc.Line, n.Loc.Column, meta.Name, "reshape needs a constant shape input")
			return false
		}
		decodeShapeFromConst(out, in[1])
	case ir.ShapeSlice:
		if in[1] == nil || in[1].ConstData == nil {
			ctx.Diag.Errorf(n.Loc.File, n.Loc.Line, n.Loc.Column, meta.Name, "slice needs a constant range input")
			return false
		}
		vals := decodeConstInts(in[1])
		out.NDim = 1
		if len(vals) > 1 {
			out.Shape[0] = vals[1]
		}
	case ir.ShapeScalar:
		out.NDim = 0
		out.Shape[0] = 1
	}
	return true
}

func resolveDtype(n *ir.Node, meta *ir.OpMetadata, in [4]*ir.Node) {
	dtype := ir.DtypeUnknown
	switch meta.DtypeRule {
	case ir.DtypeRuleForceF32:
		dtype = ir.DtypeF32
	case ir.DtypeRuleForceU8:
		dtype = ir.DtypeU8
	case ir.DtypeRuleForceI32:
		dtype = ir.DtypeI32
	case ir.DtypeRuleSameAsInput:
		if in[0] != nil {
			dtype = in[0].OutInfo.Dtype
		}
	case ir.DtypeRuleSameAsInput2:
		if in[1] != nil {
			dtype = in[1].OutInfo.Dtype
		}
	}
	if dtype == ir.DtypeUnknown {
		if n.OutInfo.Dtype != ir.DtypeUnknown {
			dtype = n.OutInfo.Dtype
		} else {
			dtype = ir.DtypeF32
		}
	}
	n.OutInfo.Dtype = dtype
}

func decodeShapeFromConst(out *ir.TypeInfo, constNode *ir.Node) {
	vals := decodeConstInts(constNode)
	out.NDim = len(vals)
	if out.NDim > ir.MaxDims {
		out.NDim = ir.MaxDims
	}
	for i := 0; i < out.NDim; i++ {
		out.Shape[i] = vals[i]
	}
}

func decodeConstInts(n *ir.Node) []int32 {
	count := int(n.ConstInfo.ElementCount())
	out := make([]int32, 0, count)
	switch n.ConstInfo.Dtype {
	case ir.DtypeF32:
		for i := 0; i < count; i++ {
			bits := uint32(n.ConstData[i*4]) | uint32(n.ConstData[i*4+1])<<8 | uint32(n.ConstData[i*4+2])<<16 | uint32(n.ConstData[i*4+3])<<24
			out = append(out, int32(float32FromBits(bits)))
		}
	default:
		for i := 0; i < count && i*4+4 <= len(n.ConstData); i++ {
			v := int32(n.ConstData[i*4]) | int32(n.ConstData[i*4+1])<<8 | int32(n.ConstData[i*4+2])<<16 | int32(n.ConstData[i*4+3])<<24
			out = append(out, v)
		}
	}
	return out
}
