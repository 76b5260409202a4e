package vm

import (
	"strings"
	"testing"
)

// runProgram executes a call-free instruction stream and returns the frame.
func runProgram(t *testing.T, fn *Function) *Context {
	t.Helper()
	e := newTestEngine()
	ctx := NewContext(fn)
	if next := e.RunContext(ctx); next != nil {
		t.Fatalf("unexpected context switch to %v", next)
	}
	return ctx
}

// evalBinary runs "a op b; RETURN" and returns outcome and fault.
func evalBinary(t *testing.T, op string, a, b Value) (Value, error) {
	t.Helper()
	asm := NewAssembler()
	asm.EmitArg(OpLoadConst, 0)
	asm.EmitArg(OpLoadConst, 1)
	asm.Emit(op)
	asm.Emit(OpReturnValue)
	ctx := runProgram(t, &Function{
		Name:         "eval",
		Instructions: asm.Instructions(),
		Constants:    []Value{a, b},
	})
	if ctx.State() == CtxErrored {
		return nil, ctx.Fault()
	}
	return ctx.Result(), nil
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		name string
		op   string
		a, b Value
		want Value
	}{
		{"int add", OpBinaryAdd, int64(2), int64(3), int64(5)},
		{"int sub", OpBinarySubtract, int64(10), int64(4), int64(6)},
		{"int mul", OpBinaryMultiply, int64(6), int64(7), int64(42)},
		{"int div exact", OpBinaryTrueDivide, int64(10), int64(2), int64(5)},
		{"int div inexact", OpBinaryTrueDivide, int64(7), int64(2), float64(3.5)},
		{"int mod", OpBinaryModulo, int64(7), int64(3), int64(1)},
		{"float add", OpBinaryAdd, float64(1.5), float64(2.5), float64(4)},
		{"mixed promotes", OpBinaryMultiply, int64(2), float64(1.5), float64(3)},
		{"string concat", OpBinaryAdd, "foo", "bar", "foobar"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := evalBinary(t, tt.op, tt.a, tt.b)
			if err != nil {
				t.Fatalf("fault: %v", err)
			}
			if got != tt.want {
				t.Errorf("%v %s %v = %v, want %v", tt.a, tt.op, tt.b, got, tt.want)
			}
		})
	}
}

func TestArithmeticFaults(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		a, b    Value
		wantMsg string
	}{
		{"div by zero", OpBinaryTrueDivide, int64(1), int64(0), "division by zero"},
		{"mod by zero", OpBinaryModulo, int64(1), int64(0), "modulo by zero"},
		{"float mod", OpBinaryModulo, float64(1), float64(2), "modulo not defined"},
		{"type mismatch", OpBinaryAdd, int64(1), "x", "unsupported operand types"},
		{"string sub", OpBinarySubtract, "a", "b", "unsupported operand types"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := evalBinary(t, tt.op, tt.a, tt.b)
			if err == nil {
				t.Fatal("expected a fault")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("fault = %q, want substring %q", err, tt.wantMsg)
			}
		})
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		code int
		a, b Value
		want bool
	}{
		{"int eq", CmpEq, int64(3), int64(3), true},
		{"int ne", CmpNe, int64(3), int64(4), true},
		{"int lt", CmpLt, int64(3), int64(4), true},
		{"int ge", CmpGe, int64(4), int64(4), true},
		{"cross numeric eq", CmpEq, int64(3), float64(3), true},
		{"string lt", CmpLt, "abc", "abd", true},
		{"string eq", CmpEq, "x", "x", true},
		{"nil eq", CmpEq, nil, nil, true},
		{"nil vs int", CmpEq, nil, int64(0), false},
		{"bool eq", CmpEq, true, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAssembler()
			a.EmitArg(OpLoadConst, 0)
			a.EmitArg(OpLoadConst, 1)
			a.EmitArg(OpCompareOp, tt.code)
			a.Emit(OpReturnValue)
			ctx := runProgram(t, &Function{
				Name:         "cmp",
				Instructions: a.Instructions(),
				Constants:    []Value{tt.a, tt.b},
			})
			if ctx.State() != CtxFinished {
				t.Fatalf("fault: %v", ctx.Fault())
			}
			if ctx.Result() != tt.want {
				t.Errorf("compare(%d, %v, %v) = %v, want %v",
					tt.code, tt.a, tt.b, ctx.Result(), tt.want)
			}
		})
	}
}

func TestCompareFunctionValuesNeverEqual(t *testing.T) {
	// Callable values land on the stack via LOAD_CONST and LOAD_GLOBAL;
	// comparing them must yield false, not panic on the func type.
	raw := func(args []Value) (Value, error) { return nil, nil }
	native := NativeFunc(raw)

	tests := []struct {
		name string
		a, b Value
	}{
		{"raw vs raw", raw, raw},
		{"native vs native", native, native},
		{"raw vs native", raw, native},
		{"int vs raw", int64(1), raw},
		{"string vs native", "f", native},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAssembler()
			a.EmitArg(OpLoadConst, 0)
			a.EmitArg(OpLoadConst, 1)
			a.EmitArg(OpCompareOp, CmpEq)
			a.Emit(OpReturnValue)
			ctx := runProgram(t, &Function{
				Name:         "cmpfn",
				Instructions: a.Instructions(),
				Constants:    []Value{tt.a, tt.b},
			})
			if ctx.State() != CtxFinished {
				t.Fatalf("fault: %v", ctx.Fault())
			}
			if ctx.Result() != false {
				t.Errorf("equality = %v, want false", ctx.Result())
			}
		})
	}
}

func TestCompareUnorderable(t *testing.T) {
	a := NewAssembler()
	a.EmitArg(OpLoadConst, 0)
	a.EmitArg(OpLoadConst, 1)
	a.EmitArg(OpCompareOp, CmpLt)
	a.Emit(OpReturnValue)
	ctx := runProgram(t, &Function{
		Name:         "cmp",
		Instructions: a.Instructions(),
		Constants:    []Value{int64(1), "x"},
	})
	if ctx.State() != CtxErrored {
		t.Fatal("expected a fault comparing int < string")
	}
}

func TestUnaryOps(t *testing.T) {
	a := NewAssembler()
	a.EmitArg(OpLoadConst, 0)
	a.Emit(OpUnaryNegative)
	a.Emit(OpReturnValue)
	ctx := runProgram(t, &Function{
		Name:         "neg",
		Instructions: a.Instructions(),
		Constants:    []Value{int64(5)},
	})
	if ctx.Result() != int64(-5) {
		t.Errorf("-5 = %v, want -5", ctx.Result())
	}

	a = NewAssembler()
	a.EmitArg(OpLoadConst, 0)
	a.Emit(OpUnaryNot)
	a.Emit(OpReturnValue)
	ctx = runProgram(t, &Function{
		Name:         "not",
		Instructions: a.Instructions(),
		Constants:    []Value{""},
	})
	if ctx.Result() != true {
		t.Errorf("not \"\" = %v, want true", ctx.Result())
	}
}

func TestLocalsLoadStore(t *testing.T) {
	a := NewAssembler()
	a.EmitArg(OpLoadConst, 0)
	a.EmitArg(OpStoreFast, 0)
	a.EmitArg(OpLoadFast, 0)
	a.EmitArg(OpLoadFast, 0)
	a.Emit(OpBinaryAdd)
	a.Emit(OpReturnValue)
	ctx := runProgram(t, &Function{
		Name:         "locals",
		NumLocals:    1,
		Instructions: a.Instructions(),
		Constants:    []Value{int64(21)},
	})
	if ctx.Result() != int64(42) {
		t.Errorf("result = %v, want 42", ctx.Result())
	}
}

func TestGlobalsLoadStore(t *testing.T) {
	globals := map[string]Value{"x": int64(5)}

	a := NewAssembler()
	a.EmitArg(OpLoadGlobal, 0) // x
	a.EmitArg(OpLoadConst, 1)  // 2
	a.Emit(OpBinaryMultiply)
	a.EmitArg(OpStoreGlobal, 2) // y
	a.EmitArg(OpLoadGlobal, 2)
	a.Emit(OpReturnValue)
	ctx := runProgram(t, &Function{
		Name:         "globals",
		Instructions: a.Instructions(),
		Constants:    []Value{"x", int64(2), "y"},
		Globals:      globals,
	})
	if ctx.Result() != int64(10) {
		t.Errorf("result = %v, want 10", ctx.Result())
	}
	if globals["y"] != int64(10) {
		t.Errorf("global y = %v, want 10", globals["y"])
	}
}

func TestUndefinedGlobalFaults(t *testing.T) {
	a := NewAssembler()
	a.EmitArg(OpLoadGlobal, 0)
	a.Emit(OpReturnValue)
	ctx := runProgram(t, &Function{
		Name:         "missing",
		Instructions: a.Instructions(),
		Constants:    []Value{"nope"},
		Globals:      map[string]Value{},
	})
	if ctx.State() != CtxErrored {
		t.Fatal("expected a fault on undefined global")
	}
	if !strings.Contains(ctx.Fault().Error(), `undefined global "nope"`) {
		t.Errorf("fault = %v", ctx.Fault())
	}
}

func TestConstantIndexOutOfBounds(t *testing.T) {
	a := NewAssembler()
	a.EmitArg(OpLoadConst, 5)
	a.Emit(OpReturnValue)
	ctx := runProgram(t, &Function{
		Name:         "oob",
		Instructions: a.Instructions(),
		Constants:    []Value{int64(1)},
	})
	if ctx.State() != CtxErrored {
		t.Fatal("expected a fault on out-of-bounds constant index")
	}
}

func TestJumpLoop(t *testing.T) {
	// sum = 0; i = 0; while i < 10 { sum = sum + i; i = i + 1 }; return sum
	a := NewAssembler()
	a.EmitArg(OpLoadConst, 0) // 0
	a.EmitArg(OpStoreFast, 0) // sum
	a.EmitArg(OpLoadConst, 0)
	a.EmitArg(OpStoreFast, 1) // i

	top := a.NewLabel()
	exit := a.NewLabel()
	a.Mark(top)
	a.EmitArg(OpLoadFast, 1)
	a.EmitArg(OpLoadConst, 1) // 10
	a.EmitArg(OpCompareOp, CmpLt)
	a.EmitJump(OpPopJumpIfFalse, exit)

	a.EmitArg(OpLoadFast, 0)
	a.EmitArg(OpLoadFast, 1)
	a.Emit(OpBinaryAdd)
	a.EmitArg(OpStoreFast, 0)
	a.EmitArg(OpLoadFast, 1)
	a.EmitArg(OpLoadConst, 2) // 1
	a.Emit(OpBinaryAdd)
	a.EmitArg(OpStoreFast, 1)
	a.EmitJump(OpJumpAbsolute, top)

	a.Mark(exit)
	a.EmitArg(OpLoadFast, 0)
	a.Emit(OpReturnValue)

	ctx := runProgram(t, &Function{
		Name:         "sumloop",
		NumLocals:    2,
		Instructions: a.Instructions(),
		Constants:    []Value{int64(0), int64(10), int64(1)},
	})
	if ctx.State() != CtxFinished {
		t.Fatalf("fault: %v", ctx.Fault())
	}
	if ctx.Result() != int64(45) {
		t.Errorf("sum = %v, want 45", ctx.Result())
	}
}

func TestJumpForward(t *testing.T) {
	// JUMP_FORWARD 2 skips the two instructions loading and returning 1.
	a := NewAssembler()
	a.EmitArg(OpJumpForward, 2)
	a.EmitArg(OpLoadConst, 0)
	a.Emit(OpReturnValue)
	a.EmitArg(OpLoadConst, 1)
	a.Emit(OpReturnValue)
	ctx := runProgram(t, &Function{
		Name:         "skip",
		Instructions: a.Instructions(),
		Constants:    []Value{int64(1), int64(2)},
	})
	if ctx.Result() != int64(2) {
		t.Errorf("result = %v, want 2", ctx.Result())
	}
}

func TestPopJumpIfTrue(t *testing.T) {
	a := NewAssembler()
	taken := a.NewLabel()
	a.EmitArg(OpLoadConst, 0) // true
	a.EmitJump(OpPopJumpIfTrue, taken)
	a.EmitArg(OpLoadConst, 1)
	a.Emit(OpReturnValue)
	a.Mark(taken)
	a.EmitArg(OpLoadConst, 2)
	a.Emit(OpReturnValue)
	ctx := runProgram(t, &Function{
		Name:         "branch",
		Instructions: a.Instructions(),
		Constants:    []Value{true, "not taken", "taken"},
	})
	if ctx.Result() != "taken" {
		t.Errorf("result = %v, want taken", ctx.Result())
	}
}

func TestStackShuffles(t *testing.T) {
	a := NewAssembler()
	a.EmitArg(OpLoadConst, 0) // 1
	a.EmitArg(OpLoadConst, 1) // 2
	a.Emit(OpRotTwo)          // [2 1]
	a.Emit(OpBinarySubtract)  // 2 - 1
	a.Emit(OpReturnValue)
	ctx := runProgram(t, &Function{
		Name:         "rot",
		Instructions: a.Instructions(),
		Constants:    []Value{int64(1), int64(2)},
	})
	if ctx.Result() != int64(1) {
		t.Errorf("result = %v, want 1", ctx.Result())
	}

	a = NewAssembler()
	a.EmitArg(OpLoadConst, 0) // 3
	a.Emit(OpDupTop)
	a.Emit(OpBinaryMultiply) // 3 * 3
	a.Emit(OpReturnValue)
	ctx = runProgram(t, &Function{
		Name:         "dup",
		Instructions: a.Instructions(),
		Constants:    []Value{int64(3)},
	})
	if ctx.Result() != int64(9) {
		t.Errorf("result = %v, want 9", ctx.Result())
	}
}

func TestBuildList(t *testing.T) {
	a := NewAssembler()
	a.EmitArg(OpLoadConst, 0)
	a.EmitArg(OpLoadConst, 1)
	a.EmitArg(OpLoadConst, 2)
	a.EmitArg(OpBuildList, 3)
	a.Emit(OpReturnValue)
	ctx := runProgram(t, &Function{
		Name:         "list",
		Instructions: a.Instructions(),
		Constants:    []Value{int64(1), int64(2), int64(3)},
	})
	got, ok := ctx.Result().([]Value)
	if !ok || len(got) != 3 || got[0] != int64(1) || got[2] != int64(3) {
		t.Errorf("result = %v, want [1 2 3]", ctx.Result())
	}
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		v    Value
		want bool
	}{
		{nil, false},
		{false, false},
		{true, true},
		{int64(0), false},
		{int64(-1), true},
		{float64(0), false},
		{float64(0.5), true},
		{"", false},
		{"x", true},
		{[]Value{}, false},
		{[]Value{int64(1)}, true},
	}
	for _, tt := range tests {
		if got := Truthy(tt.v); got != tt.want {
			t.Errorf("Truthy(%v) = %v, want %v", tt.v, got, tt.want)
		}
	}
}
