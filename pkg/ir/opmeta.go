package ir

// OpCategory groups opcodes by the kind of work they perform, driving
// task-planning and fusion eligibility decisions.
type OpCategory uint8

const (
	CatSpecial OpCategory = iota
	CatAtomic
	CatReduction
	CatMemory
	CatAccel
)

// Strategy is the dispatch strategy a task inherits from its dominant
// node; it is one of the task-break triggers in TaskPlan.
type Strategy uint8

const (
	StrategyDefault Strategy = iota
	StrategyReduction
	StrategyTwoPassSync
)

// ShapeRule selects how a node's output TypeInfo is derived from its
// inputs during Analyze.
type ShapeRule uint8

const (
	ShapeSpecial ShapeRule = iota
	ShapeSameAsS1
	ShapeSameAsS2
	ShapeBroadcast
	ShapeMatmul
	ShapeTranspose
	ShapeDot
	ShapeJoin
	ShapeGather
	ShapeReshape
	ShapeSlice
	ShapeScalar
)

// DtypeRule selects how a node's output dtype is derived during Analyze.
type DtypeRule uint8

const (
	DtypeRuleSameAsInput DtypeRule = iota
	DtypeRuleSameAsInput2
	DtypeRuleForceF32
	DtypeRuleForceU8
	DtypeRuleForceI32
)

// OpFlag bits modify generic pass behavior for a node kind.
type OpFlag uint8

const (
	// FlagGenerator marks an op that produces a value per domain element
	// with no tensor input of its own (e.g. an index generator); Analyze
	// inflates it to the shape of its domain node when that domain has
	// more than one element.
	FlagGenerator OpFlag = 1 << iota
	// FlagForceDom marks an op that must be excluded from generator
	// inflation even though it has no ordinary inputs.
	FlagForceDom
)

// Assertion is a declarative shape/dtype check Validate runs against a
// node's resolved inputs, beyond the blanket per-shape-rule checks.
type Assertion struct {
	Kind AssertionKind
	// A, B name input ports (by index into Ports); DimA/DimB name the
	// shape axis within that port's tensor that Kind compares.
	A, B       int
	DimA, DimB int
}

// AssertionKind enumerates the declarative assertion forms §3 names.
type AssertionKind uint8

const (
	// AssertMatchDim requires Shape[A][DimA] == Shape[B][DimB].
	AssertMatchDim AssertionKind = iota
	// AssertBroadcastCompatible requires inputs A and B to be pairwise
	// broadcastable under NumPy right-aligned rules.
	AssertBroadcastCompatible
)

// OpMetadata is the static, read-only description of one node kind,
// consulted by Analyze, Validate, Fuse, and TaskPlan. The table is never
// mutated at runtime.
type OpMetadata struct {
	Name       string
	Category   OpCategory
	Strategy   Strategy
	InputMask  uint32
	DtypeRule  DtypeRule
	ShapeRule  ShapeRule
	Ports      [4]string
	Arity      uint8
	MinRank    int
	MaxRank    int
	Assertions []Assertion
	Flags      OpFlag
}

// HasFlag reports whether the metadata carries the given OpFlag.
func (m OpMetadata) HasFlag(f OpFlag) bool { return m.Flags&f != 0 }

// Kind identifies a node's operation; the zero value is NodeUnknown,
// used as the tombstone kind for removed nodes (§3: removal never
// shrinks the node slice, it retypes the slot).
type Kind uint16

const (
	NodeUnknown Kind = iota

	// Special / structural.
	NodeInput
	NodeOutput
	NodeConst
	NodeCall

	// Atomic elementwise, broadcasting.
	NodeAdd
	NodeSub
	NodeMul
	NodeDiv
	NodeFMA

	// Atomic elementwise, unary.
	NodeNeg
	NodeAbs
	NodeSqrt
	NodeExp
	NodeRelu
	NodeLerp

	// Casts.
	NodeCastF32
	NodeCastU8
	NodeCastI32

	// Reductions.
	NodeSum
	NodeMax
	NodeMin
	NodeMean
	NodeSoftmax

	// Accel / algebra.
	NodeMatmul
	NodeTranspose
	NodeDot
	NodeJoin
	NodeGather

	// Memory bridges (identity at runtime, register-aliasing only).
	NodeReshape
	NodeSlice

	// Generators.
	NodeIndexX
	NodeIndexY
	NodeIndexZ

	nodeKindCount
)

// OpMetadataTable is the SF_OP_METADATA analog: a dense, index-by-Kind
// array of immutable operation descriptions (§3, §9). Declarative
// assertions mirror the original's MATCH_DIM / BROADCAST_COMPATIBLE
// forms; dispatch strategy and category drive Fuse/TaskPlan.
var OpMetadataTable = [nodeKindCount]OpMetadata{
	NodeUnknown: {Name: "Unknown", Category: CatSpecial, ShapeRule: ShapeSpecial},

	NodeInput:  {Name: "Input", Category: CatSpecial, ShapeRule: ShapeSpecial, DtypeRule: DtypeRuleSameAsInput},
	NodeOutput: {Name: "Output", Category: CatSpecial, ShapeRule: ShapeSameAsS1, Ports: [4]string{"value"}, Arity: 1, DtypeRule: DtypeRuleSameAsInput},
	NodeConst:  {Name: "Const", Category: CatSpecial, ShapeRule: ShapeSpecial, DtypeRule: DtypeRuleSameAsInput},
	NodeCall:   {Name: "Call", Category: CatSpecial, ShapeRule: ShapeSpecial},

	NodeAdd: {
		Name: "Add", Category: CatAtomic, Strategy: StrategyDefault,
		InputMask: DtypeF32.Mask() | DtypeI32.Mask(), DtypeRule: DtypeRuleSameAsInput,
		ShapeRule: ShapeBroadcast, Ports: [4]string{"a", "b"}, Arity: 2,
		Assertions: []Assertion{{Kind: AssertBroadcastCompatible, A: 0, B: 1}},
	},
	NodeSub: {
		Name: "Sub", Category: CatAtomic, Strategy: StrategyDefault,
		InputMask: DtypeF32.Mask() | DtypeI32.Mask(), DtypeRule: DtypeRuleSameAsInput,
		ShapeRule: ShapeBroadcast, Ports: [4]string{"a", "b"}, Arity: 2,
		Assertions: []Assertion{{Kind: AssertBroadcastCompatible, A: 0, B: 1}},
	},
	NodeMul: {
		Name: "Mul", Category: CatAtomic, Strategy: StrategyDefault,
		InputMask: DtypeF32.Mask() | DtypeI32.Mask(), DtypeRule: DtypeRuleSameAsInput,
		ShapeRule: ShapeBroadcast, Ports: [4]string{"a", "b"}, Arity: 2,
		Assertions: []Assertion{{Kind: AssertBroadcastCompatible, A: 0, B: 1}},
	},
	NodeDiv: {
		Name: "Div", Category: CatAtomic, Strategy: StrategyDefault,
		InputMask: DtypeF32.Mask(), DtypeRule: DtypeRuleSameAsInput,
		ShapeRule: ShapeBroadcast, Ports: [4]string{"a", "b"}, Arity: 2,
		Assertions: []Assertion{{Kind: AssertBroadcastCompatible, A: 0, B: 1}},
	},
	NodeFMA: {
		Name: "FMA", Category: CatAtomic, Strategy: StrategyDefault,
		InputMask: DtypeF32.Mask(), DtypeRule: DtypeRuleSameAsInput,
		ShapeRule: ShapeBroadcast, Ports: [4]string{"a", "b", "c"}, Arity: 3,
		Assertions: []Assertion{{Kind: AssertBroadcastCompatible, A: 0, B: 1}, {Kind: AssertBroadcastCompatible, A: 0, B: 2}},
	},

	NodeNeg:  {Name: "Neg", Category: CatAtomic, InputMask: DtypeF32.Mask() | DtypeI32.Mask(), DtypeRule: DtypeRuleSameAsInput, ShapeRule: ShapeSameAsS1, Ports: [4]string{"a"}, Arity: 1},
	NodeAbs:  {Name: "Abs", Category: CatAtomic, InputMask: DtypeF32.Mask() | DtypeI32.Mask(), DtypeRule: DtypeRuleSameAsInput, ShapeRule: ShapeSameAsS1, Ports: [4]string{"a"}, Arity: 1},
	NodeSqrt: {Name: "Sqrt", Category: CatAtomic, InputMask: DtypeF32.Mask(), DtypeRule: DtypeRuleSameAsInput, ShapeRule: ShapeSameAsS1, Ports: [4]string{"a"}, Arity: 1},
	NodeExp:  {Name: "Exp", Category: CatAtomic, InputMask: DtypeF32.Mask(), DtypeRule: DtypeRuleSameAsInput, ShapeRule: ShapeSameAsS1, Ports: [4]string{"a"}, Arity: 1},
	NodeRelu: {Name: "Relu", Category: CatAtomic, InputMask: DtypeF32.Mask(), DtypeRule: DtypeRuleSameAsInput, ShapeRule: ShapeSameAsS1, Ports: [4]string{"a"}, Arity: 1},
	NodeLerp: {
		Name: "Lerp", Category: CatAtomic, InputMask: DtypeF32.Mask(), DtypeRule: DtypeRuleSameAsInput,
		ShapeRule: ShapeBroadcast, Ports: [4]string{"a", "b", "t"}, Arity: 3,
		Assertions: []Assertion{{Kind: AssertBroadcastCompatible, A: 0, B: 1}},
	},

	NodeCastF32: {Name: "CastF32", Category: CatAtomic, InputMask: DtypeF32.Mask() | DtypeI32.Mask() | DtypeU8.Mask(), DtypeRule: DtypeRuleForceF32, ShapeRule: ShapeSameAsS1, Ports: [4]string{"a"}, Arity: 1},
	NodeCastU8:  {Name: "CastU8", Category: CatAtomic, InputMask: DtypeF32.Mask() | DtypeI32.Mask() | DtypeU8.Mask(), DtypeRule: DtypeRuleForceU8, ShapeRule: ShapeSameAsS1, Ports: [4]string{"a"}, Arity: 1},
	NodeCastI32: {Name: "CastI32", Category: CatAtomic, InputMask: DtypeF32.Mask() | DtypeI32.Mask() | DtypeU8.Mask(), DtypeRule: DtypeRuleForceI32, ShapeRule: ShapeSameAsS1, Ports: [4]string{"a"}, Arity: 1},

	NodeSum:  {Name: "Sum", Category: CatReduction, Strategy: StrategyReduction, InputMask: DtypeF32.Mask() | DtypeI32.Mask(), DtypeRule: DtypeRuleSameAsInput, ShapeRule: ShapeDot, Ports: [4]string{"a"}, Arity: 1},
	NodeMax:  {Name: "Max", Category: CatReduction, Strategy: StrategyReduction, InputMask: DtypeF32.Mask() | DtypeI32.Mask(), DtypeRule: DtypeRuleSameAsInput, ShapeRule: ShapeDot, Ports: [4]string{"a"}, Arity: 1},
	NodeMin:  {Name: "Min", Category: CatReduction, Strategy: StrategyReduction, InputMask: DtypeF32.Mask() | DtypeI32.Mask(), DtypeRule: DtypeRuleSameAsInput, ShapeRule: ShapeDot, Ports: [4]string{"a"}, Arity: 1},
	NodeMean: {Name: "Mean", Category: CatReduction, Strategy: StrategyReduction, InputMask: DtypeF32.Mask(), DtypeRule: DtypeRuleSameAsInput, ShapeRule: ShapeDot, Ports: [4]string{"a"}, Arity: 1},
	NodeSoftmax: {
		Name: "Softmax", Category: CatReduction, Strategy: StrategyTwoPassSync,
		InputMask: DtypeF32.Mask(), DtypeRule: DtypeRuleSameAsInput, ShapeRule: ShapeSameAsS1,
		Ports: [4]string{"a"}, Arity: 1,
	},

	NodeMatmul: {
		Name: "Matmul", Category: CatAccel, InputMask: DtypeF32.Mask(), DtypeRule: DtypeRuleSameAsInput,
		ShapeRule: ShapeMatmul, Ports: [4]string{"a", "b"}, Arity: 2, MinRank: 2, MaxRank: 2,
		Assertions: []Assertion{{Kind: AssertMatchDim, A: 0, DimA: 1, B: 1, DimB: 0}},
	},
	NodeTranspose: {Name: "Transpose", Category: CatAccel, InputMask: DtypeF32.Mask() | DtypeI32.Mask(), DtypeRule: DtypeRuleSameAsInput, ShapeRule: ShapeTranspose, Ports: [4]string{"a"}, Arity: 1, MinRank: 2, MaxRank: 2},
	NodeDot:       {Name: "Dot", Category: CatAccel, InputMask: DtypeF32.Mask(), DtypeRule: DtypeRuleSameAsInput, ShapeRule: ShapeDot, Ports: [4]string{"a", "b"}, Arity: 2},
	NodeJoin:      {Name: "Join", Category: CatMemory, InputMask: DtypeF32.Mask() | DtypeI32.Mask() | DtypeU8.Mask(), DtypeRule: DtypeRuleSameAsInput, ShapeRule: ShapeJoin, Ports: [4]string{"a", "b"}, Arity: 2},
	NodeGather:    {Name: "Gather", Category: CatMemory, InputMask: DtypeF32.Mask() | DtypeI32.Mask() | DtypeU8.Mask(), DtypeRule: DtypeRuleSameAsInput, ShapeRule: ShapeGather, Ports: [4]string{"table", "index"}, Arity: 2},

	NodeReshape: {Name: "Reshape", Category: CatMemory, InputMask: DtypeF32.Mask() | DtypeI32.Mask() | DtypeU8.Mask(), DtypeRule: DtypeRuleSameAsInput, ShapeRule: ShapeReshape, Ports: [4]string{"a", "shape"}, Arity: 2},
	NodeSlice:   {Name: "Slice", Category: CatMemory, InputMask: DtypeF32.Mask() | DtypeI32.Mask() | DtypeU8.Mask(), DtypeRule: DtypeRuleSameAsInput, ShapeRule: ShapeSlice, Ports: [4]string{"a", "range"}, Arity: 2},

	// Index generators are inflated to their domain's shape like any
	// other GENERATOR (glossary: "an op that produces a per-element
	// value (e.g. an index); its output shape is inflated to its
	// domain's") — FORCE_DOM is for a generator that must keep its own
	// scalar shape instead, which no opcode here needs.
	NodeIndexX: {Name: "IndexX", Category: CatSpecial, DtypeRule: DtypeRuleForceI32, ShapeRule: ShapeScalar, Flags: FlagGenerator},
	NodeIndexY: {Name: "IndexY", Category: CatSpecial, DtypeRule: DtypeRuleForceI32, ShapeRule: ShapeScalar, Flags: FlagGenerator},
	NodeIndexZ: {Name: "IndexZ", Category: CatSpecial, DtypeRule: DtypeRuleForceI32, ShapeRule: ShapeScalar, Flags: FlagGenerator},
}

// Meta returns the static metadata for a node kind.
func (k Kind) Meta() *OpMetadata { return &OpMetadataTable[k] }

// String returns the op's human name, used in diagnostics.
func (k Kind) String() string {
	if int(k) >= len(OpMetadataTable) {
		return "invalid"
	}
	return OpMetadataTable[k].Name
}
