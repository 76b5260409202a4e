package vm

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Instruction model
// ---------------------------------------------------------------------------

// Instruction is a single decoded operation: an opcode name plus an optional
// integer operand. Instructions are produced by an external compiler and are
// immutable once built.
type Instruction struct {
	Op     string
	Arg    int
	HasArg bool
}

// Inst builds an instruction with no operand.
func Inst(op string) Instruction {
	return Instruction{Op: op}
}

// InstArg builds an instruction with an integer operand.
func InstArg(op string, arg int) Instruction {
	return Instruction{Op: op, Arg: arg, HasArg: true}
}

// String implements the Stringer interface.
func (i Instruction) String() string {
	if i.HasArg {
		return fmt.Sprintf("%s %d", i.Op, i.Arg)
	}
	return i.Op
}

// ---------------------------------------------------------------------------
// Opcode names
// ---------------------------------------------------------------------------

// Stack operations
const (
	OpNop    = "NOP"
	OpPopTop = "POP_TOP"
	OpDupTop = "DUP_TOP"
	OpRotTwo = "ROT_TWO"
)

// Loads and stores
const (
	OpLoadConst   = "LOAD_CONST"   // push constant (operand: constant index)
	OpLoadFast    = "LOAD_FAST"    // push local (operand: local slot)
	OpStoreFast   = "STORE_FAST"   // pop into local (operand: local slot)
	OpLoadGlobal  = "LOAD_GLOBAL"  // push global (operand: constant index of name)
	OpStoreGlobal = "STORE_GLOBAL" // pop into global (operand: constant index of name)
)

// Operators
const (
	OpBinaryAdd        = "BINARY_ADD"
	OpBinarySubtract   = "BINARY_SUBTRACT"
	OpBinaryMultiply   = "BINARY_MULTIPLY"
	OpBinaryTrueDivide = "BINARY_TRUE_DIVIDE"
	OpBinaryModulo     = "BINARY_MODULO"
	OpUnaryNegative    = "UNARY_NEGATIVE"
	OpUnaryNot         = "UNARY_NOT"
	OpCompareOp        = "COMPARE_OP" // operand: comparison code (Cmp*)
)

// Control flow
const (
	OpJumpAbsolute   = "JUMP_ABSOLUTE"     // operand: target instruction index
	OpJumpForward    = "JUMP_FORWARD"      // operand: relative instruction delta
	OpPopJumpIfTrue  = "POP_JUMP_IF_TRUE"  // operand: target instruction index
	OpPopJumpIfFalse = "POP_JUMP_IF_FALSE" // operand: target instruction index
)

// Calls and returns
const (
	OpCallFunction = "CALL_FUNCTION" // operand: positional argument count
	OpReturnValue  = "RETURN_VALUE"
)

// Object creation
const (
	OpBuildList = "BUILD_LIST" // operand: element count
)

// Comparison codes for COMPARE_OP.
const (
	CmpEq = iota
	CmpNe
	CmpLt
	CmpLe
	CmpGt
	CmpGe
)

// ---------------------------------------------------------------------------
// Assembler: helper for constructing instruction streams
// ---------------------------------------------------------------------------

// Assembler helps construct instruction sequences, mainly for tests and
// tooling. Jump targets are instruction indices; labels support forward
// references.
type Assembler struct {
	instructions []Instruction
}

// NewAssembler creates an empty assembler.
func NewAssembler() *Assembler {
	return &Assembler{
		instructions: make([]Instruction, 0, 16),
	}
}

// Instructions returns the assembled instruction stream.
func (a *Assembler) Instructions() []Instruction {
	return a.instructions
}

// Len returns the number of instructions emitted so far.
func (a *Assembler) Len() int {
	return len(a.instructions)
}

// Emit appends an instruction with no operand.
func (a *Assembler) Emit(op string) {
	a.instructions = append(a.instructions, Inst(op))
}

// EmitArg appends an instruction with an operand.
func (a *Assembler) EmitArg(op string, arg int) {
	a.instructions = append(a.instructions, InstArg(op, arg))
}

// Label represents a jump target, possibly not yet resolved.
type Label struct {
	resolved bool
	position int
	refs     []int
}

// NewLabel creates an unresolved label.
func (a *Assembler) NewLabel() *Label {
	return &Label{refs: make([]int, 0, 2)}
}

// Mark resolves a label to the current instruction index and patches all
// forward references.
func (a *Assembler) Mark(label *Label) {
	if label.resolved {
		panic("label already resolved")
	}
	label.resolved = true
	label.position = len(a.instructions)
	for _, ref := range label.refs {
		a.instructions[ref].Arg = label.position
	}
	label.refs = nil
}

// EmitJump appends a jump instruction targeting a label. Absolute-target
// jumps only; JUMP_FORWARD deltas are emitted with EmitArg directly.
func (a *Assembler) EmitJump(op string, label *Label) {
	if label.resolved {
		a.instructions = append(a.instructions, InstArg(op, label.position))
		return
	}
	label.refs = append(label.refs, len(a.instructions))
	a.instructions = append(a.instructions, InstArg(op, 0))
}

// ---------------------------------------------------------------------------
// Disassembly
// ---------------------------------------------------------------------------

// Disassemble returns a listing of an instruction stream, one instruction
// per line with its index.
func Disassemble(instructions []Instruction) string {
	var sb strings.Builder
	for idx, inst := range instructions {
		if idx > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%04d  %s", idx, inst)
	}
	return sb.String()
}

// DisassembleFunction returns a header plus the listing of a function's
// instruction stream.
func DisassembleFunction(fn *Function) string {
	return fmt.Sprintf("%s (%d params, %d locals)\n%s",
		fn.Name, len(fn.Params), fn.NumLocals, Disassemble(fn.Instructions))
}
