// Package passes implements the compiler's 12-stage middle end: Lower,
// Inline, Decompose, Fuse, Simplify, Sort, Analyze, Validate,
// DomainSplit, Liveness, TaskPlan, Emit. Each stage is one file and
// operates on a shared Context, mirroring the original's sf_pass_ctx
// threaded through sf_pass_sort / sf_pass_liveness / sf_pass_task_plan.
package passes

import (
	"log/slog"

	"github.com/sionflow/sionflowc/pkg/arena"
	"github.com/sionflow/sionflowc/pkg/diag"
	"github.com/sionflow/sionflowc/pkg/ir"
)

// Context carries the mutable state one compilation threads through
// every pass: the graph itself, the arena backing any pass-allocated
// storage, the base path subgraph/asset references resolve against,
// and the outputs later passes hand to earlier ones don't already own
// (sorted order, tasks, bindings).
type Context struct {
	IR       *ir.Graph
	Arena    *arena.Arena
	BasePath string
	Diag     *diag.Bag
	Log      *slog.Logger

	// Populated by Sort.
	Sorted []int32

	// Populated by TaskPlan, consumed by Emit.
	Tasks    []Task
	Bindings []Binding
}

// NewContext returns a Context ready for Lower.
func NewContext(g *ir.Graph, basePath string, log *slog.Logger) *Context {
	if log == nil {
		log = slog.Default()
	}
	return &Context{
		IR:       g,
		Arena:    arena.New(),
		BasePath: basePath,
		Diag:     diag.NewBag(),
		Log:      log,
	}
}

// Pass is one pipeline stage. It returns false when the stage
// encountered a fatal problem; per §2's "first fatal pass aborts"
// policy the driver stops calling further passes as soon as one
// returns false, while still surfacing every diagnostic the pass
// accumulated in ctx.Diag.
type Pass func(ctx *Context) bool
