package program

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sionflow/sionflowc/pkg/ir"
)

func TestEncodeHeaderIsLittleEndianAndFirst(t *testing.T) {
	p := &Program{
		Header: Header{
			InstructionCount: 1,
			TaskCount:        1,
			BindingCount:     1,
			SymbolCount:      1,
			TensorCount:      1,
		},
		Instructions: []Instruction{{Opcode: ir.NodeAdd, Operands: [4]uint16{1, 2, 0, 0}, OutReg: 3, Loc: ir.SourceLoc{Line: 7, Column: 2}}},
		Symbols:      []Symbol{{Name: "o", Register: 3, Flags: SymbolOutput}},
		Tasks:        []Task{{StartInst: 0, InstCount: 1, DomainReg: 3, TotalTiles: 4}},
		Bindings:     []Binding{{RegIdx: 3, Flags: BindingWrite}},
		Tensors:      []TensorDescriptor{{Dtype: ir.DtypeF32, NDim: 1, Shape: [ir.MaxDims]int32{4}}},
	}

	out, err := p.Encode()
	require.NoError(t, err)

	var gotHeader Header
	r := bytes.NewReader(out)
	require.NoError(t, binary.Read(r, binary.LittleEndian, &gotHeader))
	require.Equal(t, p.Header, gotHeader)

	var opcode uint16
	require.NoError(t, binary.Read(r, binary.LittleEndian, &opcode))
	require.Equal(t, uint16(ir.NodeAdd), opcode)

	var operands [4]uint16
	require.NoError(t, binary.Read(r, binary.LittleEndian, &operands))
	require.Equal(t, [4]uint16{1, 2, 0, 0}, operands)

	var outReg uint16
	require.NoError(t, binary.Read(r, binary.LittleEndian, &outReg))
	require.Equal(t, uint16(3), outReg)
}

func TestEncodeLengthMatchesFixedLayout(t *testing.T) {
	p := &Program{
		Symbols:       []Symbol{{Name: "abc", Register: 1}},
		PushConstants: []byte{1, 2, 3, 4},
		ConstData:     [][]byte{{9, 9}},
	}
	out, err := p.Encode()
	require.NoError(t, err)

	const headerSize = 32 // 8 uint32 fields
	symbolSize := 4 + len("abc") + 2 + 1
	want := headerSize + symbolSize + len(p.PushConstants) + len(p.ConstData[0])
	require.Equal(t, want, len(out))
}

func TestEncodeEmptyProgram(t *testing.T) {
	p := &Program{}
	out, err := p.Encode()
	require.NoError(t, err)
	require.Len(t, out, 32)
}
