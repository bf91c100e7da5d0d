package ast

import (
	"fmt"
	"os"
	"path/filepath"
)

// WindowSettings mirrors the manifest's "window" block (§6.1),
// defaulted when absent.
type WindowSettings struct {
	Title      string
	Width      int
	Height     int
	VSync      bool
	Fullscreen bool
	Resizable  bool
}

// DefaultWindowSettings matches the original's documented fallbacks for
// an absent "window" block.
func DefaultWindowSettings() WindowSettings {
	return WindowSettings{Title: "sionflow", Width: 1280, Height: 720, VSync: true, Resizable: true}
}

// RuntimeSettings mirrors the manifest's "runtime" block: thread count
// (internal/config applies the runtime.NumCPU() default when Threads
// is zero) and, for a single-kernel manifest, the entry kernel path.
type RuntimeSettings struct {
	Threads int
	Entry   string
}

// NodeDecl is one manifest "nodes[]" entry: a surface type string plus
// a free-form attribute bag, not yet resolved to an ir.Kind (Lower does
// that, consulting rules.Aliases).
type NodeDecl struct {
	ID     string
	Type   string
	Domain string
	Attrs  *Value
	Loc    SourceLoc
}

// LinkDecl is one manifest "links[]" entry. Ports default to "out"/"in"
// per §6.1 when unspecified.
type LinkDecl struct {
	Src     string
	SrcPort string
	Dst     string
	DstPort string
	Loc     SourceLoc
}

// KernelDecl is one "pipeline.kernels[]" entry of a multi-kernel
// .mfapp manifest (original_source's sf_compiler_manifest.c): each
// compiles into its own named PROGRAM cartridge section.
type KernelDecl struct {
	Name string
	Path string
}

// AssetDecl is one "assets[]" entry: an embedded data blob lowered to a
// CONST node by Lower (SPEC_FULL.md §4).
type AssetDecl struct {
	Name string
	Path string
	Type string
}

// Manifest is the fully parsed, still node-kind-unresolved manifest
// for one compiled graph.
type Manifest struct {
	BasePath string
	Window   WindowSettings
	Runtime  RuntimeSettings
	Imports  []string
	Nodes    []NodeDecl
	Links    []LinkDecl
	Kernels  []KernelDecl
	Assets   []AssetDecl
}

// Load reads and parses the manifest at path (single-graph .json form).
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	root, err := Parse(path, data)
	if err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return decode(filepath.Dir(path), root)
}

func decode(basePath string, root *Value) (*Manifest, error) {
	if root.Kind != KindObject {
		return nil, fmt.Errorf("%s: manifest root must be an object", root.Loc)
	}
	m := &Manifest{BasePath: basePath, Window: DefaultWindowSettings()}

	if w := root.Field("window"); w != nil {
		m.Window.Title = w.Field("title").StringOr(m.Window.Title)
		m.Window.Width = w.Field("width").IntOr(m.Window.Width)
		m.Window.Height = w.Field("height").IntOr(m.Window.Height)
		m.Window.VSync = w.Field("vsync").BoolOr(m.Window.VSync)
		m.Window.Fullscreen = w.Field("fullscreen").BoolOr(m.Window.Fullscreen)
		m.Window.Resizable = w.Field("resizable").BoolOr(m.Window.Resizable)
	}

	if r := root.Field("runtime"); r != nil {
		m.Runtime.Threads = r.Field("threads").IntOr(0)
		m.Runtime.Entry = r.Field("entry").StringOr("")
	}

	for _, e := range root.Field("imports").Elements() {
		if e.Kind == KindString {
			m.Imports = append(m.Imports, e.Str)
		}
	}

	for _, e := range root.Field("nodes").Elements() {
		if e.Kind != KindObject {
			return nil, fmt.Errorf("%s: node entry must be an object", e.Loc)
		}
		m.Nodes = append(m.Nodes, NodeDecl{
			ID:     e.Field("id").StringOr(""),
			Type:   e.Field("type").StringOr(""),
			Domain: e.Field("domain").StringOr(""),
			Attrs:  e,
			Loc:    e.Loc,
		})
	}

	for _, e := range root.Field("links").Elements() {
		if e.Kind != KindObject {
			return nil, fmt.Errorf("%s: link entry must be an object", e.Loc)
		}
		m.Links = append(m.Links, LinkDecl{
			Src:     e.Field("src").StringOr(""),
			SrcPort: e.Field("src_port").StringOr("out"),
			Dst:     e.Field("dst").StringOr(""),
			DstPort: e.Field("dst_port").StringOr("in"),
			Loc:     e.Loc,
		})
	}

	if pipeline := root.Field("pipeline"); pipeline != nil {
		for _, e := range pipeline.Field("kernels").Elements() {
			m.Kernels = append(m.Kernels, KernelDecl{
				Name: e.Field("name").StringOr(""),
				Path: e.Field("path").StringOr(""),
			})
		}
	}

	for _, e := range root.Field("assets").Elements() {
		m.Assets = append(m.Assets, AssetDecl{
			Name: e.Field("name").StringOr(""),
			Path: e.Field("path").StringOr(""),
			Type: e.Field("type").StringOr("raw"),
		})
	}

	return m, nil
}

// LoadSubgraph parses the subgraph file named by path (resolved
// relative to basePath, mirroring CALL's path resolution, §4.2).
// Inline does not use it: it calls Load on the path Lower already
// resolved.
func LoadSubgraph(basePath, path string) (*Manifest, error) {
	full := path
	if !filepath.IsAbs(path) {
		full = filepath.Join(basePath, path)
	}
	return Load(full)
}
