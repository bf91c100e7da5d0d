package passes

import "github.com/sionflow/sionflowc/pkg/ir"

// Validate re-checks arity, dtype mask, per-shape-rule constraints, and
// declarative assertions against the shapes Analyze resolved (§4.9).
// Grounded on sf_pass_validate.c's generic-arity-and-mask pass followed
// by a shape-rule-specific switch; this rewrite additionally evaluates
// each OpMetadata.Assertions entry, the declarative form spec.md names
// (MATCH_DIM, BROADCAST_COMPATIBLE) that the original's switch
// hard-codes per shape rule instead.
func Validate(ctx *Context) bool {
	g := ctx.IR
	ok := true

	for _, idx := range ctx.Sorted {
		n := &g.Nodes[idx]
		if n.Kind == ir.NodeUnknown {
			continue
		}
		meta := n.Kind.Meta()

		var inputs [4]*ir.Node
		for k := 0; k < int(meta.Arity) && k < 4; k++ {
			srcIdx, _ := g.GetSource(idx, int32(k))
			if srcIdx == ir.NoNode {
				ctx.Diag.Errorf(n.Loc.File, n.Loc.Line, n.Loc.Column, meta.Name,
					"missing required input port '%s' for node '%s' (%s)", meta.Ports[k], n.ID, meta.Name)
				ok = false
				continue
			}
			inputs[k] = &g.Nodes[srcIdx]
			bit := inputs[k].OutInfo.Dtype.Mask()
			if meta.InputMask != 0 && meta.InputMask&bit == 0 {
				ctx.Diag.Errorf(n.Loc.File, n.Loc.Line, n.Loc.Column, meta.Name,
					"type mismatch: input '%s' of node '%s' has invalid dtype %s for op '%s'", meta.Ports[k], n.ID, inputs[k].OutInfo.Dtype, meta.Name)
				ok = false
			}
		}

		if !validateShapeRule(ctx, n, meta, inputs) {
			ok = false
		}
		if !validateAssertions(ctx, n, meta, inputs) {
			ok = false
		}
	}

	return ok
}

func validateShapeRule(ctx *Context, n *ir.Node, meta *ir.OpMetadata, in [4]*ir.Node) bool {
	ok := true
	switch meta.ShapeRule {
	case ir.ShapeBroadcast:
		if in[0] != nil && in[1] != nil {
			a, b := in[0].OutInfo, in[1].OutInfo
			if _, compat := ir.BroadcastShapes(a, b); !compat {
				ctx.Diag.Errorf(n.Loc.File, n.Loc.Line, n.Loc.Column, meta.Name,
					"shape mismatch: cannot broadcast inputs of node '%s' (%s vs %s)", n.ID, a.Format(), b.Format())
				ok = false
			}
		}
	case ir.ShapeSameAsS1:
		if in[0] != nil && !n.OutInfo.Equal(in[0].OutInfo) {
			ctx.Diag.Errorf(n.Loc.File, n.Loc.Line, n.Loc.Column, meta.Name,
				"shape error: output of '%s' must match input 1 (%s vs %s)", n.ID, n.OutInfo.Format(), in[0].OutInfo.Format())
			ok = false
		}
	case ir.ShapeMatmul:
		if in[0] != nil && in[1] != nil {
			a, b := in[0].OutInfo, in[1].OutInfo
			if a.NDim < 2 || b.NDim < 2 {
				ctx.Diag.Errorf(n.Loc.File, n.Loc.Line, n.Loc.Column, meta.Name,
					"matmul error: inputs must be at least 2D in '%s' (got %dD and %dD)", n.ID, a.NDim, b.NDim)
				ok = false
			} else if a.Shape[1] != b.Shape[0] {
				ctx.Diag.Errorf(n.Loc.File, n.Loc.Line, n.Loc.Column, meta.Name,
					"matmul error: inner dimensions mismatch [%d] vs [%d] in '%s'", a.Shape[1], b.Shape[0], n.ID)
				ok = false
			}
		}
	case ir.ShapeDot:
		if in[0] != nil && in[1] != nil {
			a, b := in[0].OutInfo, in[1].OutInfo
			if a.NDim > 0 && b.NDim > 0 && a.Shape[a.NDim-1] != b.Shape[b.NDim-1] {
				ctx.Diag.Errorf(n.Loc.File, n.Loc.Line, n.Loc.Column, meta.Name,
					"dot error: last dimensions mismatch in '%s' (%d vs %d)", n.ID, a.Shape[a.NDim-1], b.Shape[b.NDim-1])
				ok = false
			}
		}
	}
	return ok
}

func validateAssertions(ctx *Context, n *ir.Node, meta *ir.OpMetadata, in [4]*ir.Node) bool {
	ok := true
	for _, a := range meta.Assertions {
		pa, pb := in[a.A], in[a.B]
		if pa == nil || pb == nil {
			continue
		}
		switch a.Kind {
		case ir.AssertMatchDim:
			if pa.OutInfo.Shape[a.DimA] != pb.OutInfo.Shape[a.DimB] {
				ctx.Diag.Errorf(n.Loc.File, n.Loc.Line, n.Loc.Column, meta.Name,
					"assertion failed: MATCH_DIM(%d,%d,%d,%d) for node '%s'", a.A, a.DimA, a.B, a.DimB, n.ID)
				ok = false
			}
		case ir.AssertBroadcastCompatible:
			if _, compat := ir.BroadcastShapes(pa.OutInfo, pb.OutInfo); !compat {
				ctx.Diag.Errorf(n.Loc.File, n.Loc.Line, n.Loc.Column, meta.Name,
					"assertion failed: BROADCAST_COMPATIBLE for node '%s'", n.ID)
				ok = false
			}
		}
	}
	return ok
}
