package passes

import "github.com/sionflow/sionflowc/pkg/ir"

// TaskFlag marks runtime-visible execution requirements on a task.
type TaskFlag uint8

const (
	TaskFlagNone TaskFlag = 0
	// TaskFlagBarrier tells the runtime that within-task writes must
	// become visible before later reads in the same task (§5).
	TaskFlagBarrier TaskFlag = 1 << iota
)

// Grid is a task's iteration shape: for rank <= 1 domains a single
// dimension covering every element; for rank > 1 domains, one "row"
// per combination of all but the innermost axis (§4.11).
type Grid struct {
	Dims      [ir.MaxDims]int32
	TileShape [ir.MaxDims]int32
	TotalTiles int64
}

// CalculateGrid derives a Grid from a task's domain shape, per
// sf_pass_task_plan.c's calculate_grid: rank <=1 gets one tile holding
// every element; rank >1 iterates every outer-axis combination as a
// separate tile of the innermost axis's width.
func CalculateGrid(domain ir.TypeInfo) Grid {
	var g Grid
	if domain.NDim <= 1 {
		g.Dims[0] = 1
		g.TileShape[0] = int32(domain.ElementCount())
		g.TotalTiles = 1
		return g
	}
	g.TotalTiles = 1
	for d := 0; d < domain.NDim-1; d++ {
		g.Dims[d] = domain.Shape[d]
		g.TileShape[d] = 1
		g.TotalTiles *= int64(domain.Shape[d])
	}
	g.Dims[domain.NDim-1] = 1
	g.TileShape[domain.NDim-1] = domain.Shape[domain.NDim-1]
	return g
}

// Task is a contiguous run of instructions sharing a domain and
// dispatch strategy, executed as one schedulable unit (§4.11).
type Task struct {
	StartInst     int
	InstCount     int
	Strategy      ir.Strategy
	DomainReg     uint16
	BindingOffset int
	BindingCount  int
	Grid          Grid
	Flags         TaskFlag
}

// BindingFlag marks how a task's instructions use a bound register.
type BindingFlag uint8

const (
	BindingWrite BindingFlag = 1 << iota
	BindingRead
	BindingReduction
)

// Binding is one (register, access-flags) pair a task declares to its
// runtime, with the broadcast strides baked against the task's domain
// (§4.12).
type Binding struct {
	RegIdx  uint16
	Flags   BindingFlag
	Strides [ir.MaxDims]int32
}
