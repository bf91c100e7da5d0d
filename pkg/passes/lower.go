package passes

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/sionflow/sionflowc/pkg/ast"
	"github.com/sionflow/sionflowc/pkg/diag"
	"github.com/sionflow/sionflowc/pkg/ir"
	"github.com/sionflow/sionflowc/pkg/ir/rules"
)

// kindByName resolves the built-in metadata names (the node kinds that
// already exist in ir.OpMetadataTable) to their ir.Kind, independent of
// the rules.Aliases surface-spelling table.
var kindByName = func() map[string]ir.Kind {
	m := make(map[string]ir.Kind, len(ir.OpMetadataTable))
	for k := ir.Kind(0); int(k) < len(ir.OpMetadataTable); k++ {
		name := ir.OpMetadataTable[k].Name
		if name != "" {
			m[strings.ToLower(name)] = k
		}
	}
	return m
}()

// Lower builds the initial IR from a parsed manifest (§4.2). CALL
// nodes are left with SubGraphPath set for Inline to resolve; resolving
// subgraphs here would make Lower itself recursive, which §4.2
// explicitly assigns to Inline instead.
func Lower(ctx *Context, m *ast.Manifest) bool {
	ok := true
	g := ctx.IR

	// Pass 1: create every node with a resolved kind, deferring domain
	// attribute resolution (needs a full id->index map, built below).
	domainAttr := make(map[int32]string)

	for _, decl := range m.Nodes {
		loc := ir.SourceLoc{File: decl.Loc.File, Line: decl.Loc.Line, Column: decl.Loc.Column}
		kind, resolvedCall := resolveKind(decl.Type, m)

		if kind == ir.NodeUnknown && !resolvedCall {
			ctx.Diag.Errorf(loc.File, loc.Line, loc.Column, decl.Type,
				"Unknown type '%s' not in ISA and not in imports", decl.Type)
			ok = false
			continue
		}

		idx := g.Add(decl.ID, kind, loc)
		n := &g.Nodes[idx]
		n.DomainNodeIdx = ir.NoNode

		if resolvedCall {
			n.SubGraphPath = resolveCallPath(m.BasePath, decl.Type, m.Imports)
		}

		if decl.Domain != "" {
			domainAttr[idx] = decl.Domain
		}

		if !applyAttrs(ctx, n, decl, loc) {
			ok = false
		}

		if kind == ir.NodeInput && n.ConstInfo.NDim == 0 && n.ConstInfo.Dtype == ir.DtypeUnknown {
			ctx.Diag.Errorf(loc.File, loc.Line, loc.Column, decl.Type, "missing required shape for INPUT '%s'", decl.ID)
			ok = false
		}
	}

	// Pass 2: resolve domain attribute references now that every node
	// has an index.
	for idx, domainID := range domainAttr {
		domIdx := g.FindByID(domainID)
		if domIdx == ir.NoNode {
			loc := g.Nodes[idx].Loc
			ctx.Diag.Errorf(loc.File, loc.Line, loc.Column, "", "domain attribute references unknown node id '%s'", domainID)
			ok = false
			continue
		}
		g.Nodes[idx].DomainNodeIdx = domIdx
	}

	// Pass 3: wire links.
	for _, link := range m.Links {
		srcIdx := g.FindByID(link.Src)
		dstIdx := g.FindByID(link.Dst)
		if srcIdx == ir.NoNode || dstIdx == ir.NoNode {
			ctx.Diag.Errorf(link.Loc.File, link.Loc.Line, link.Loc.Column, "", "dangling link endpoint %q -> %q", link.Src, link.Dst)
			ok = false
			continue
		}
		dstPort := portIndex(g.Nodes[dstIdx].Kind, link.DstPort)
		if dstPort < 0 {
			ctx.Diag.Errorf(link.Loc.File, link.Loc.Line, link.Loc.Column, "", "unknown input port %q on node %q", link.DstPort, link.Dst)
			ok = false
			continue
		}
		g.Connect(srcIdx, 0, dstIdx, int32(dstPort))
	}

	for _, asset := range m.Assets {
		if !lowerAsset(ctx, m.BasePath, asset) {
			ok = false
		}
	}

	return ok
}

// lowerAsset implements SPEC_FULL.md §4's asset-to-CONST supplement:
// an embedded data blob becomes a CONST node whose const_data is the
// referenced file's raw bytes, resolved relative to base_path like
// CALL's path attribute (§4.2).
func lowerAsset(ctx *Context, basePath string, a ast.AssetDecl) bool {
	p := a.Path
	if !filepath.IsAbs(p) {
		p = filepath.Join(basePath, p)
	}
	data, err := readFile(p)
	if err != nil {
		ctx.Diag.Errorf(p, 0, 0, "", "failed to read asset '%s': %v", a.Name, err)
		return false
	}
	idx := ctx.IR.Add(a.Name, ir.NodeConst, ir.SourceLoc{File: p})
	n := &ctx.IR.Nodes[idx]
	n.ConstInfo = ir.TypeInfo{Dtype: ir.DtypeU8, NDim: 1, Shape: [ir.MaxDims]int32{int32(len(data))}}
	n.ConstInfo.RecomputeStrides()
	n.ConstData = data
	return true
}

// resolveKind implements §4.2 step 2: alias table, then built-in
// metadata name, then import-basename match (yielding CALL).
func resolveKind(typeName string, m *ast.Manifest) (kind ir.Kind, isCall bool) {
	if k, found := rules.Resolve(typeName); found {
		return k, false
	}
	if k, found := kindByName[strings.ToLower(typeName)]; found {
		return k, false
	}
	for _, imp := range m.Imports {
		base := filepath.Base(imp)
		base = strings.TrimSuffix(base, filepath.Ext(base))
		if base == typeName {
			return ir.NodeCall, true
		}
	}
	return ir.NodeUnknown, false
}

func resolveCallPath(basePath, typeName string, imports []string) string {
	for _, imp := range imports {
		base := filepath.Base(imp)
		base = strings.TrimSuffix(base, filepath.Ext(base))
		if base == typeName {
			if filepath.IsAbs(imp) {
				return imp
			}
			return filepath.Join(basePath, imp)
		}
	}
	return ""
}

func portIndex(kind ir.Kind, portName string) int {
	ports := kind.Meta().Ports
	for i, p := range ports {
		if p == portName {
			return i
		}
	}
	// A port used before an op has named ports (no arity) defaults to 0.
	if portName == "" || portName == "in" {
		return 0
	}
	return -1
}

// applyAttrs walks decl's attribute bag via the dispatch table named
// in §4.2 step 3.
func applyAttrs(ctx *Context, n *ir.Node, decl ast.NodeDecl, loc ir.SourceLoc) bool {
	ok := true
	attrs := decl.Attrs
	if attrs == nil {
		return true
	}
	for _, key := range attrs.ObjectKeys {
		val := attrs.Object[key]
		switch key {
		case "id", "type", "domain":
			// handled elsewhere
		case "shape":
			n.ConstInfo.NDim = 0
			for _, e := range val.Elements() {
				n.ConstInfo.Shape[n.ConstInfo.NDim] = int32(e.IntOr(0))
				n.ConstInfo.NDim++
			}
			n.ConstInfo.RecomputeStrides()
		case "dtype":
			n.ConstInfo.Dtype = parseDtype(val.StringOr(""))
		case "readonly":
			if val.BoolOr(false) {
				n.ResourceFlags |= ir.ResourceReadonly
			}
		case "persistent":
			if val.BoolOr(false) {
				n.ResourceFlags |= ir.ResourcePersistent
			} else {
				n.ResourceFlags |= ir.ResourceTransient
			}
		case "screen_size":
			if val.BoolOr(false) {
				n.ResourceFlags |= ir.ResourceScreenSize
			}
		case "output":
			if val.BoolOr(false) {
				n.ResourceFlags |= ir.ResourceOutput
			}
		case "meta":
			// carried for cartridge/runtime metadata only; no IR effect.
		case "path":
			if n.Kind == ir.NodeCall {
				p := val.StringOr("")
				if !filepathIsAbs(p) {
					p = filepathJoin(ctx.BasePath, p)
				}
				n.SubGraphPath = p
			}
		case "axis":
			if n.Kind == ir.NodeIndexX || n.Kind == ir.NodeIndexY || n.Kind == ir.NodeIndexZ {
				switch val.IntOr(0) {
				case 0:
					n.Kind = ir.NodeIndexX
				case 1:
					n.Kind = ir.NodeIndexY
				case 2:
					n.Kind = ir.NodeIndexZ
				}
			}
		case "value":
			if n.Kind == ir.NodeConst {
				n.ConstData = parseConstData(val, n.ConstInfo)
			}
		default:
			ctx.Diag.Add(diag.Diagnostic{
				Kind: diag.Warning, File: loc.File, Line: loc.Line, Column: loc.Column,
				Message: fmt.Sprintf("unknown attribute '%s' on node '%s'", key, decl.ID),
			})
		}
	}
	return ok
}

func parseDtype(s string) ir.Dtype {
	switch s {
	case "f32":
		return ir.DtypeF32
	case "u8":
		return ir.DtypeU8
	case "i32":
		return ir.DtypeI32
	default:
		return ir.DtypeUnknown
	}
}

// parseConstData encodes a literal JSON array/scalar into the raw byte
// buffer a CONST node carries, per its resolved dtype (§4.2 step 3).
func parseConstData(val *ast.Value, info ir.TypeInfo) []byte {
	count := int(info.ElementCount())
	elems := val.Elements()
	if elems == nil && val != nil {
		elems = []*ast.Value{val}
	}
	buf := make([]byte, 0, count*info.Dtype.ByteSize())
	for i := 0; i < count; i++ {
		var v float64
		if i < len(elems) {
			v = elems[i].Number
		}
		buf = appendScalar(buf, info.Dtype, v)
	}
	return buf
}

func appendScalar(buf []byte, dtype ir.Dtype, v float64) []byte {
	switch dtype {
	case ir.DtypeU8:
		return append(buf, byte(v))
	case ir.DtypeI32:
		i := int32(v)
		return append(buf, byte(i), byte(i>>8), byte(i>>16), byte(i>>24))
	default: // f32
		bits := float32ToBits(float32(v))
		return append(buf, byte(bits), byte(bits>>8), byte(bits>>16), byte(bits>>24))
	}
}

func filepathIsAbs(p string) bool { return filepath.IsAbs(p) }
func filepathJoin(base, p string) string {
	if base == "" {
		return p
	}
	return filepath.Join(base, p)
}

func float32ToBits(f float32) uint32 {
	return math.Float32bits(f)
}
