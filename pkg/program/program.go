// Package program holds the in-memory Program a compilation's Emit
// pass produces and its little-endian binary encoding for the
// PROGRAM section of a cartridge (§4.13, §6.2).
package program

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/sionflow/sionflowc/pkg/ir"
)

// SymbolFlag marks a symbol's role; propagated from its node's kind
// and the resource_flags subset (§4.13).
type SymbolFlag uint8

const SymbolNone SymbolFlag = 0

const (
	SymbolInput SymbolFlag = 1 << iota
	SymbolOutput
	SymbolAliased
	SymbolReadonly
	SymbolPersistent
	SymbolTransient
	SymbolScreenSize
	SymbolResourceOutput
)

// Symbol names a register by the node id that produced it.
type Symbol struct {
	Name     string
	Register uint16
	Flags    SymbolFlag
}

// TensorFlag marks properties of a register's backing storage.
type TensorFlag uint8

const (
	TensorNone TensorFlag = 0
	// TensorAlias marks registers an INPUT or OUTPUT node maps to; for an
	// OUTPUT that is its producer's register.
	TensorAlias TensorFlag = 1 << iota
	TensorConstant
	TensorReduction
)

// TensorDescriptor describes one register's storage (§6.2).
type TensorDescriptor struct {
	Dtype      ir.Dtype
	NDim       int32
	Shape      [ir.MaxDims]int32
	Flags      TensorFlag
	IsConstant bool
	DataSize   uint32
}

// Instruction is one emitted opcode with up to four operand
// registers and the source location it was lowered from (§4.13).
type Instruction struct {
	Opcode   ir.Kind
	Operands [4]uint16
	OutReg   uint16
	Loc      ir.SourceLoc
}

// Task, Binding mirror the planning-pass types; Program copies them
// verbatim from the pass Context (§4.12 "copied verbatim").
type Task struct {
	StartInst     uint32
	InstCount     uint32
	Strategy      ir.Strategy
	DomainReg     uint16
	BindingOffset uint32
	BindingCount  uint32
	GridDims      [ir.MaxDims]int32
	GridTile      [ir.MaxDims]int32
	TotalTiles    int64
	Barrier       bool
}

type BindingFlag uint8

const (
	BindingWrite BindingFlag = 1 << iota
	BindingRead
	BindingReduction
)

type Binding struct {
	RegIdx  uint16
	Flags   BindingFlag
	Strides [ir.MaxDims]int32
}

// Header carries the finalized section counts a runtime needs before
// it can interpret the rest of the PROGRAM payload (§4.13).
type Header struct {
	InstructionCount  uint32
	TaskCount         uint32
	BindingCount      uint32
	SymbolCount       uint32
	TensorCount       uint32
	PushConstantsSize uint32
	SyncScratchSize   uint32
	ReductionScratchSize uint32
}

// Program is the complete output of one compilation, ready to be
// written into a cartridge's PROGRAM section.
type Program struct {
	Header       Header
	Instructions []Instruction
	Symbols      []Symbol
	Tasks        []Task
	Bindings     []Binding
	Tensors      []TensorDescriptor
	// PushConstants holds the concatenated bytes of every scalar CONST,
	// in register order; ConstOffsets maps a register to its byte
	// offset into PushConstants, or -1 if the register isn't a scalar
	// constant.
	PushConstants []byte
	ConstOffsets  []int32
	// ConstData holds the arena-owned bytes of every non-scalar
	// constant, indexed the same way as Tensors.
	ConstData [][]byte
}

// Encode writes the program's little-endian binary form in the field
// order Header through ConstData, skipping ConstOffsets (§6.2: "all
// multi-byte fields are little-endian; the file layout is fixed so a
// runtime can mmap it and read without further parsing").
func (p *Program) Encode() ([]byte, error) {
	var buf bytes.Buffer
	w := func(v any) error { return binary.Write(&buf, binary.LittleEndian, v) }

	if err := w(p.Header); err != nil {
		return nil, fmt.Errorf("encode header: %w", err)
	}
	for i, inst := range p.Instructions {
		if err := w(uint16(inst.Opcode)); err != nil {
			return nil, fmt.Errorf("encode instruction %d opcode: %w", i, err)
		}
		if err := w(inst.Operands); err != nil {
			return nil, fmt.Errorf("encode instruction %d operands: %w", i, err)
		}
		if err := w(inst.OutReg); err != nil {
			return nil, fmt.Errorf("encode instruction %d out reg: %w", i, err)
		}
		if err := w(int32(inst.Loc.Line)); err != nil {
			return nil, fmt.Errorf("encode instruction %d loc: %w", i, err)
		}
		if err := w(int32(inst.Loc.Column)); err != nil {
			return nil, fmt.Errorf("encode instruction %d loc: %w", i, err)
		}
	}
	for i, sym := range p.Symbols {
		if err := writeString(&buf, sym.Name); err != nil {
			return nil, fmt.Errorf("encode symbol %d name: %w", i, err)
		}
		if err := w(sym.Register); err != nil {
			return nil, fmt.Errorf("encode symbol %d register: %w", i, err)
		}
		if err := w(uint8(sym.Flags)); err != nil {
			return nil, fmt.Errorf("encode symbol %d flags: %w", i, err)
		}
	}
	for i, t := range p.Tasks {
		fields := []any{t.StartInst, t.InstCount, uint8(t.Strategy), t.DomainReg,
			t.BindingOffset, t.BindingCount, t.GridDims, t.GridTile, t.TotalTiles, t.Barrier}
		for _, f := range fields {
			if err := w(f); err != nil {
				return nil, fmt.Errorf("encode task %d: %w", i, err)
			}
		}
	}
	for i, b := range p.Bindings {
		fields := []any{b.RegIdx, uint8(b.Flags), b.Strides}
		for _, f := range fields {
			if err := w(f); err != nil {
				return nil, fmt.Errorf("encode binding %d: %w", i, err)
			}
		}
	}
	for i, td := range p.Tensors {
		fields := []any{uint8(td.Dtype), td.NDim, td.Shape, uint8(td.Flags), td.IsConstant, td.DataSize}
		for _, f := range fields {
			if err := w(f); err != nil {
				return nil, fmt.Errorf("encode tensor descriptor %d: %w", i, err)
			}
		}
	}
	buf.Write(p.PushConstants)
	for _, d := range p.ConstData {
		buf.Write(d)
	}

	return buf.Bytes(), nil
}

func writeString(buf *bytes.Buffer, s string) error {
	if err := binary.Write(buf, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := buf.WriteString(s)
	return err
}
