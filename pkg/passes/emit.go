package passes

import (
	"github.com/sionflow/sionflowc/pkg/ir"
	"github.com/sionflow/sionflowc/pkg/program"
)

const syncScratchReserve = 1024

// Emit lowers the final IR and the plan TaskPlan produced into a
// program.Program (§4.13). Grounded on sf_codegen_emit.c's "walk
// sorted/codegen order once, emitting symbols/tensors/instructions in
// lockstep" structure, restated here over the explicit register table
// Liveness built instead of the original's per-node scratch fields.
func Emit(ctx *Context) *program.Program {
	g := ctx.IR
	p := &program.Program{}

	maxReg := uint16(0)
	for i := range g.Nodes {
		if g.Nodes[i].OutRegIdx > maxReg {
			maxReg = g.Nodes[i].OutRegIdx
		}
	}
	tensorCount := int(maxReg) + 1
	p.Tensors = make([]program.TensorDescriptor, tensorCount)
	p.ConstOffsets = make([]int32, tensorCount)
	p.ConstData = make([][]byte, tensorCount)
	for i := range p.ConstOffsets {
		p.ConstOffsets[i] = -1
	}
	scalarConst := make([][]byte, tensorCount)
	hasScalarConst := make([]bool, tensorCount)

	for i := range g.Nodes {
		n := &g.Nodes[i]
		if n.IsRemoved() {
			continue
		}
		reg := n.OutRegIdx
		td := &p.Tensors[reg]
		td.Dtype = n.OutInfo.Dtype
		td.NDim = int32(n.OutInfo.NDim)
		td.Shape = n.OutInfo.Shape

		if n.Kind == ir.NodeInput || n.Kind == ir.NodeOutput {
			td.Flags |= program.TensorAlias
		}
		if n.Kind == ir.NodeConst {
			td.Flags |= program.TensorConstant
			td.IsConstant = true
			td.DataSize = uint32(len(n.ConstData))
			if n.OutInfo.IsScalar() {
				scalarConst[reg] = n.ConstData
				hasScalarConst[reg] = true
			} else {
				p.ConstData[reg] = n.ConstData
			}
		}
		if n.Kind.Meta().Strategy == ir.StrategyReduction {
			td.Flags |= program.TensorReduction
		}

		if n.ID != "" {
			sym := program.Symbol{Name: n.ID, Register: reg}
			switch n.Kind {
			case ir.NodeInput:
				sym.Flags |= program.SymbolInput
			case ir.NodeOutput:
				sym.Flags |= program.SymbolOutput
				if srcIdx, _ := g.GetSource(int32(i), 0); srcIdx != ir.NoNode {
					sym.Register = g.Nodes[srcIdx].OutRegIdx
				}
			}
			sym.Flags |= resourceSymbolFlags(n.ResourceFlags)
			p.Symbols = append(p.Symbols, sym)
		}
	}
	for reg := range scalarConst {
		if hasScalarConst[reg] {
			p.ConstOffsets[reg] = int32(len(p.PushConstants))
			p.PushConstants = append(p.PushConstants, scalarConst[reg]...)
		}
	}

	order := CodegenOrder(ctx)
	for _, idx := range order {
		n := &g.Nodes[idx]
		meta := n.Kind.Meta()
		var inst program.Instruction
		inst.Opcode = n.Kind
		inst.OutReg = n.OutRegIdx
		inst.Loc = n.Loc
		for port := 0; port < int(meta.Arity) && port < 4; port++ {
			srcIdx, _ := g.GetSource(idx, int32(port))
			if srcIdx != ir.NoNode {
				inst.Operands[port] = g.Nodes[srcIdx].OutRegIdx
			}
		}
		p.Instructions = append(p.Instructions, inst)
	}

	usesTwoPassSync := false
	for _, t := range ctx.Tasks {
		pt := program.Task{
			StartInst:     uint32(t.StartInst),
			InstCount:     uint32(t.InstCount),
			Strategy:      t.Strategy,
			DomainReg:     t.DomainReg,
			BindingOffset: uint32(t.BindingOffset),
			BindingCount:  uint32(t.BindingCount),
			GridDims:      t.Grid.Dims,
			GridTile:      t.Grid.TileShape,
			TotalTiles:    t.Grid.TotalTiles,
			Barrier:       t.Flags&TaskFlagBarrier != 0,
		}
		p.Tasks = append(p.Tasks, pt)
		if t.Strategy == ir.StrategyTwoPassSync {
			usesTwoPassSync = true
		}
	}
	for _, b := range ctx.Bindings {
		p.Bindings = append(p.Bindings, program.Binding{
			RegIdx:  b.RegIdx,
			Flags:   program.BindingFlag(b.Flags),
			Strides: b.Strides,
		})
	}

	p.Header = program.Header{
		InstructionCount:  uint32(len(p.Instructions)),
		TaskCount:         uint32(len(p.Tasks)),
		BindingCount:      uint32(len(p.Bindings)),
		SymbolCount:       uint32(len(p.Symbols)),
		TensorCount:       uint32(tensorCount),
		PushConstantsSize: uint32(len(p.PushConstants)),
		ReductionScratchSize: uint32(tensorCount) * 4,
	}
	if usesTwoPassSync {
		p.Header.SyncScratchSize = syncScratchReserve
	}

	return p
}

// resourceSymbolFlags propagates the resource_flags subset onto a
// symbol's flags (§4.13: "Flags propagate INPUT/OUTPUT and the
// resource_flags subset").
func resourceSymbolFlags(rf ir.ResourceFlag) program.SymbolFlag {
	var out program.SymbolFlag
	if rf&ir.ResourceAliased != 0 {
		out |= program.SymbolAliased
	}
	if rf&ir.ResourceReadonly != 0 {
		out |= program.SymbolReadonly
	}
	if rf&ir.ResourcePersistent != 0 {
		out |= program.SymbolPersistent
	}
	if rf&ir.ResourceTransient != 0 {
		out |= program.SymbolTransient
	}
	if rf&ir.ResourceScreenSize != 0 {
		out |= program.SymbolScreenSize
	}
	if rf&ir.ResourceOutput != 0 {
		out |= program.SymbolResourceOutput
	}
	return out
}
