package passes

import "github.com/sionflow/sionflowc/pkg/ir"

// TaskPlan groups CodegenOrder's instructions into Tasks sharing a
// domain and dispatch strategy, and records each instruction's
// register bindings with baked broadcast strides (§4.11-4.12).
// Grounded on sf_pass_task_plan.c: a new task starts on the first
// instruction, whenever the domain or strategy changes from the
// previous instruction, or whenever the previous instruction's
// strategy was TWO_PASS_SYNC (which must never share a task with what
// follows it). Within a task, a RAW hazard against an instruction
// earlier in the *same* task (tracked via a modified-registers set)
// forces TaskFlagBarrier.
func TaskPlan(ctx *Context) bool {
	g := ctx.IR
	order := CodegenOrder(ctx)

	var curTask *Task
	modified := map[uint16]bool{}
	// bindingOf maps a register already bound in the current task to its
	// absolute index into ctx.Bindings, so a register touched by more
	// than one instruction upgrades a single record instead of
	// duplicating it (§4.12 "add or upgrade a binding record").
	bindingOf := map[uint16]int{}

	flushTask := func() {
		if curTask != nil {
			ctx.Tasks = append(ctx.Tasks, *curTask)
		}
		curTask = nil
		modified = map[uint16]bool{}
		bindingOf = map[uint16]int{}
	}

	bind := func(reg uint16, flags BindingFlag, strides [ir.MaxDims]int32) {
		if i, ok := bindingOf[reg]; ok {
			ctx.Bindings[i].Flags |= flags
			return
		}
		ctx.Bindings = append(ctx.Bindings, Binding{RegIdx: reg, Flags: flags, Strides: strides})
		bindingOf[reg] = len(ctx.Bindings) - 1
		curTask.BindingCount++
	}

	var prevDomainReg uint16
	var prevStrategy ir.Strategy
	havePrev := false
	prevWasTwoPassSync := false

	for instIdx, idx := range order {
		n := &g.Nodes[idx]
		meta := n.Kind.Meta()

		domIdx := n.DomainNodeIdx
		if domIdx == ir.NoNode {
			domIdx = idx
		}
		domReg := g.Nodes[domIdx].OutRegIdx

		startNew := !havePrev || domReg != prevDomainReg || meta.Strategy != prevStrategy || prevWasTwoPassSync
		if startNew {
			flushTask()
			curTask = &Task{
				StartInst: instIdx,
				Strategy:  meta.Strategy,
				DomainReg: domReg,
				Grid:      CalculateGrid(g.Nodes[domIdx].OutInfo),
			}
			curTask.BindingOffset = len(ctx.Bindings)
		}

		curTask.InstCount++

		hazard := false
		arity := int(meta.Arity)
		for port := 0; port < arity && port < 4; port++ {
			srcIdx, _ := g.GetSource(idx, int32(port))
			if srcIdx == ir.NoNode {
				continue
			}
			reg := g.Nodes[srcIdx].OutRegIdx
			if modified[reg] {
				hazard = true
			}
			strides := ir.BroadcastStrides(g.Nodes[srcIdx].OutInfo, g.Nodes[domIdx].OutInfo)
			byteSize := int32(g.Nodes[srcIdx].OutInfo.Dtype.ByteSize())
			for d := range strides {
				strides[d] *= byteSize
			}
			bind(reg, BindingRead, strides)
		}

		writeFlags := BindingWrite
		if meta.Strategy == ir.StrategyReduction {
			writeFlags |= BindingReduction
		}
		bind(n.OutRegIdx, writeFlags, [ir.MaxDims]int32{})

		if hazard {
			curTask.Flags |= TaskFlagBarrier
			modified = map[uint16]bool{}
		}
		modified[n.OutRegIdx] = true

		prevDomainReg = domReg
		prevStrategy = meta.Strategy
		prevWasTwoPassSync = meta.Strategy == ir.StrategyTwoPassSync
		havePrev = true
	}
	flushTask()

	return true
}
