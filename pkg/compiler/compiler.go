// Package compiler drives the 12-pass pipeline over one or more
// parsed manifests and packages the result into a cartridge.
package compiler

import (
	"bytes"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sionflow/sionflowc/internal/config"
	"github.com/sionflow/sionflowc/pkg/ast"
	"github.com/sionflow/sionflowc/pkg/cartridge"
	"github.com/sionflow/sionflowc/pkg/ir"
	"github.com/sionflow/sionflowc/pkg/passes"
	"github.com/sionflow/sionflowc/pkg/program"
)

// Compiler translates a manifest (or, for a ".mfapp" entry point, a set
// of named kernel manifests) into one cartridge. Threads, if nonzero,
// overrides the root manifest's runtime.threads, which sets the
// cartridge header's thread count (§2.3, §6.3 --threads).
type Compiler struct {
	SourceFile string
	Threads    int
	Log        *slog.Logger
}

// Stats summarizes one completed compilation, aggregated across every
// kernel compiled.
type Stats struct {
	RunID            uuid.UUID
	KernelCount      int
	NodeCount        int
	InstructionCount int
	TaskCount        int
	SymbolCount      int
	Duration         time.Duration
}

// Result is everything a caller needs after a successful Compile: the
// binary cartridge payload and the stats describing how it was built.
type Result struct {
	Cartridge []byte
	Stats     Stats
}

// kernelJob names one manifest to compile into one PROGRAM section.
type kernelJob struct {
	sectionName string
	path        string
}

// Compile runs Lower through Emit over every kernel named by
// c.SourceFile and serializes the results into a single cartridge.
// A ".mfapp" input is the multi-kernel manifest loader (§6.3,
// SPEC_FULL.md §4): it compiles each `pipeline.kernels[]` entry (or a
// single `runtime.entry` kernel) into its own named PROGRAM section.
// Any other extension compiles exactly one PROGRAM section named
// "main". Each run is tagged with a fresh uuid.New() compile-run ID,
// threaded through every log line and into Stats.RunID; the cartridge's
// build-id section holds a separate uuid that cartridge.Write generates.
func (c *Compiler) Compile() (*Result, error) {
	log := c.Log
	if log == nil {
		log = slog.Default()
	}
	runID := uuid.New()
	log = log.With("run_id", runID.String(), "source", c.SourceFile)
	start := time.Now()

	root, err := ast.Load(c.SourceFile)
	if err != nil {
		return nil, fmt.Errorf("load manifest: %w", err)
	}
	root.Runtime.Threads = config.Config{Threads: c.Threads}.ResolveThreadsOver(root.Runtime.Threads)

	jobs, err := kernelJobs(c.SourceFile, root)
	if err != nil {
		return nil, err
	}

	hdr := cartridgeHeaderFrom(root)
	var sections []cartridge.Section
	stats := Stats{RunID: runID, KernelCount: len(jobs)}

	for _, job := range jobs {
		manifest, err := ast.Load(job.path)
		if err != nil {
			return nil, fmt.Errorf("load kernel %q: %w", job.sectionName, err)
		}
		prog, nodeCount, err := compileKernel(manifest, log.With("kernel", job.sectionName))
		if err != nil {
			return nil, fmt.Errorf("compile kernel %q: %w", job.sectionName, err)
		}
		payload, err := prog.Encode()
		if err != nil {
			return nil, fmt.Errorf("encode kernel %q: %w", job.sectionName, err)
		}
		sections = append(sections, cartridge.Section{
			Name: job.sectionName, Type: cartridge.SectionProgram, Payload: payload,
		})
		stats.NodeCount += nodeCount
		stats.InstructionCount += len(prog.Instructions)
		stats.TaskCount += len(prog.Tasks)
		stats.SymbolCount += len(prog.Symbols)
	}

	var buf bytes.Buffer
	if err := cartridge.Write(&buf, hdr, sections); err != nil {
		return nil, fmt.Errorf("encode cartridge: %w", err)
	}
	stats.Duration = time.Since(start)

	log.Info("compile complete",
		"kernels", stats.KernelCount,
		"nodes", stats.NodeCount,
		"instructions", stats.InstructionCount,
		"tasks", stats.TaskCount,
		"duration", stats.Duration)

	return &Result{Cartridge: buf.Bytes(), Stats: stats}, nil
}

// kernelJobs resolves the manifest's pipeline into the kernels to
// compile. A .mfapp entry point with pipeline.kernels[] compiles one
// section per named kernel; a .mfapp with only runtime.entry compiles
// that single kernel as "main"; anything else compiles the root
// manifest itself as "main" (§6.3, SPEC_FULL.md §4).
func kernelJobs(sourceFile string, root *ast.Manifest) ([]kernelJob, error) {
	if !strings.EqualFold(filepath.Ext(sourceFile), ".mfapp") {
		return []kernelJob{{sectionName: "main", path: sourceFile}}, nil
	}
	if len(root.Kernels) > 0 {
		jobs := make([]kernelJob, 0, len(root.Kernels))
		for _, k := range root.Kernels {
			if k.Name == "" || k.Path == "" {
				return nil, fmt.Errorf("%s: pipeline.kernels entry missing name or path", sourceFile)
			}
			path := k.Path
			if !filepath.IsAbs(path) {
				path = filepath.Join(root.BasePath, path)
			}
			jobs = append(jobs, kernelJob{sectionName: k.Name, path: path})
		}
		return jobs, nil
	}
	if root.Runtime.Entry != "" {
		path := root.Runtime.Entry
		if !filepath.IsAbs(path) {
			path = filepath.Join(root.BasePath, path)
		}
		return []kernelJob{{sectionName: "main", path: path}}, nil
	}
	return nil, fmt.Errorf("%s: .mfapp manifest has neither pipeline.kernels nor runtime.entry", sourceFile)
}

// compileKernel runs the full pass pipeline over one manifest and
// returns its emitted program plus the final node count.
func compileKernel(manifest *ast.Manifest, log *slog.Logger) (*program.Program, int, error) {
	g := ir.NewGraph()
	ctx := passes.NewContext(g, manifest.BasePath, log)

	type stage struct {
		name string
		run  func() bool
	}
	stages := []stage{
		{"lower", func() bool { return passes.Lower(ctx, manifest) }},
		{"inline", func() bool { return passes.Inline(ctx) }},
		{"decompose", func() bool { return passes.Decompose(ctx) }},
		{"fuse", func() bool { return passes.Fuse(ctx) }},
		{"simplify", func() bool { return passes.Simplify(ctx) }},
		{"sort", func() bool { return passes.Sort(ctx) }},
		{"analyze", func() bool { return passes.Analyze(ctx) }},
		{"validate", func() bool { return passes.Validate(ctx) }},
		{"domain_split", func() bool { return passes.DomainSplit(ctx) }},
		{"liveness", func() bool { return passes.Liveness(ctx) }},
		{"task_plan", func() bool { return passes.TaskPlan(ctx) }},
	}

	for _, s := range stages {
		log.Debug("pass start", "pass", s.name)
		if !s.run() {
			log.Error("pass failed", "pass", s.name, "diagnostics", ctx.Diag.Len())
			return nil, 0, fmt.Errorf("pass %q failed: %w", s.name, ctx.Diag.Err())
		}
		log.Debug("pass done", "pass", s.name)
	}
	if ctx.Diag.HasErrors() {
		return nil, 0, fmt.Errorf("compilation failed: %w", ctx.Diag.Err())
	}

	return passes.Emit(ctx), len(g.Nodes), nil
}

func cartridgeHeaderFrom(m *ast.Manifest) cartridge.Header {
	return cartridge.Header{
		Title:       m.Window.Title,
		Width:       int32(m.Window.Width),
		Height:      int32(m.Window.Height),
		ThreadCount: int32(m.Runtime.Threads),
		VSync:       m.Window.VSync,
		Fullscreen:  m.Window.Fullscreen,
		Resizable:   m.Window.Resizable,
	}
}
