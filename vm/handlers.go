package vm

import "fmt"

// ---------------------------------------------------------------------------
// Opcode handler table
// ---------------------------------------------------------------------------

// Handler executes one instruction against a context. It may mutate the
// operand stack, redirect the pointer, or finish the frame. A returned error
// is delivered to the frame through the fault channel.
type Handler func(ctx *Context, inst Instruction) error

// HandlerTable maps opcode names to handlers. CALL_FUNCTION is special-cased
// by the engine and never looked up here.
type HandlerTable map[string]Handler

// DefaultHandlers returns the standard opcode handler table.
func DefaultHandlers() HandlerTable {
	return HandlerTable{
		OpNop: func(ctx *Context, inst Instruction) error {
			return nil
		},
		OpPopTop: func(ctx *Context, inst Instruction) error {
			ctx.Pop()
			return nil
		},
		OpDupTop: func(ctx *Context, inst Instruction) error {
			ctx.Push(ctx.Peek())
			return nil
		},
		OpRotTwo: func(ctx *Context, inst Instruction) error {
			b := ctx.Pop()
			a := ctx.Pop()
			ctx.Push(b)
			ctx.Push(a)
			return nil
		},

		OpLoadConst: func(ctx *Context, inst Instruction) error {
			if inst.Arg < 0 || inst.Arg >= len(ctx.fn.Constants) {
				return fmt.Errorf("vm: constant index %d out of bounds (have %d)",
					inst.Arg, len(ctx.fn.Constants))
			}
			ctx.Push(ctx.fn.Constants[inst.Arg])
			return nil
		},
		OpLoadFast: func(ctx *Context, inst Instruction) error {
			ctx.Push(ctx.Local(inst.Arg))
			return nil
		},
		OpStoreFast: func(ctx *Context, inst Instruction) error {
			ctx.SetLocal(inst.Arg, ctx.Pop())
			return nil
		},
		OpLoadGlobal: func(ctx *Context, inst Instruction) error {
			name, err := constantName(ctx, inst.Arg)
			if err != nil {
				return err
			}
			v, ok := ctx.fn.Globals[name]
			if !ok {
				return fmt.Errorf("vm: undefined global %q", name)
			}
			ctx.Push(v)
			return nil
		},
		OpStoreGlobal: func(ctx *Context, inst Instruction) error {
			name, err := constantName(ctx, inst.Arg)
			if err != nil {
				return err
			}
			ctx.fn.Globals[name] = ctx.Pop()
			return nil
		},

		OpBinaryAdd:        binaryOp("+"),
		OpBinarySubtract:   binaryOp("-"),
		OpBinaryMultiply:   binaryOp("*"),
		OpBinaryTrueDivide: binaryOp("/"),
		OpBinaryModulo:     binaryOp("%"),

		OpUnaryNegative: func(ctx *Context, inst Instruction) error {
			switch x := ctx.Pop().(type) {
			case int64:
				ctx.Push(-x)
			case float64:
				ctx.Push(-x)
			default:
				return fmt.Errorf("vm: bad operand type for unary -: %s", TypeName(x))
			}
			return nil
		},
		OpUnaryNot: func(ctx *Context, inst Instruction) error {
			ctx.Push(!Truthy(ctx.Pop()))
			return nil
		},
		OpCompareOp: func(ctx *Context, inst Instruction) error {
			b := ctx.Pop()
			a := ctx.Pop()
			result, err := compareValues(inst.Arg, a, b)
			if err != nil {
				return err
			}
			ctx.Push(result)
			return nil
		},

		OpJumpAbsolute: func(ctx *Context, inst Instruction) error {
			ctx.SetPointer(inst.Arg)
			return nil
		},
		OpJumpForward: func(ctx *Context, inst Instruction) error {
			ctx.SetPointer(ctx.Pointer() + inst.Arg)
			return nil
		},
		OpPopJumpIfTrue: func(ctx *Context, inst Instruction) error {
			if Truthy(ctx.Pop()) {
				ctx.SetPointer(inst.Arg)
			}
			return nil
		},
		OpPopJumpIfFalse: func(ctx *Context, inst Instruction) error {
			if !Truthy(ctx.Pop()) {
				ctx.SetPointer(inst.Arg)
			}
			return nil
		},

		OpBuildList: func(ctx *Context, inst Instruction) error {
			ctx.Push(ctx.PopN(inst.Arg))
			return nil
		},

		OpReturnValue: func(ctx *Context, inst Instruction) error {
			ctx.Finish(ctx.Pop())
			return nil
		},
	}
}

// constantName resolves a constant-pool entry that must be a name string.
func constantName(ctx *Context, idx int) (string, error) {
	if idx < 0 || idx >= len(ctx.fn.Constants) {
		return "", fmt.Errorf("vm: constant index %d out of bounds (have %d)",
			idx, len(ctx.fn.Constants))
	}
	name, ok := ctx.fn.Constants[idx].(string)
	if !ok {
		return "", fmt.Errorf("vm: constant %d is not a name: %s",
			idx, TypeName(ctx.fn.Constants[idx]))
	}
	return name, nil
}

// binaryOp builds a handler popping two operands and pushing the result.
func binaryOp(op string) Handler {
	return func(ctx *Context, inst Instruction) error {
		b := ctx.Pop()
		a := ctx.Pop()
		result, err := applyBinary(op, a, b)
		if err != nil {
			return err
		}
		ctx.Push(result)
		return nil
	}
}

func applyBinary(op string, a, b Value) (Value, error) {
	// int64 pair stays integral except for true division by a non-divisor;
	// mixed int/float promotes to float.
	if x, ok := a.(int64); ok {
		if y, ok := b.(int64); ok {
			return applyIntBinary(op, x, y)
		}
		if y, ok := b.(float64); ok {
			return applyFloatBinary(op, float64(x), y)
		}
	}
	if x, ok := a.(float64); ok {
		if y, ok := b.(float64); ok {
			return applyFloatBinary(op, x, y)
		}
		if y, ok := b.(int64); ok {
			return applyFloatBinary(op, x, float64(y))
		}
	}
	if x, ok := a.(string); ok {
		if y, ok := b.(string); ok && op == "+" {
			return x + y, nil
		}
	}
	return nil, fmt.Errorf("vm: unsupported operand types for %s: %s and %s",
		op, TypeName(a), TypeName(b))
}

func applyIntBinary(op string, a, b int64) (Value, error) {
	switch op {
	case "+":
		return a + b, nil
	case "-":
		return a - b, nil
	case "*":
		return a * b, nil
	case "/":
		if b == 0 {
			return nil, fmt.Errorf("vm: division by zero")
		}
		if a%b == 0 {
			return a / b, nil
		}
		return float64(a) / float64(b), nil
	case "%":
		if b == 0 {
			return nil, fmt.Errorf("vm: modulo by zero")
		}
		return a % b, nil
	}
	return nil, fmt.Errorf("vm: unknown binary operator %q", op)
}

func applyFloatBinary(op string, a, b float64) (Value, error) {
	switch op {
	case "+":
		return a + b, nil
	case "-":
		return a - b, nil
	case "*":
		return a * b, nil
	case "/":
		if b == 0 {
			return nil, fmt.Errorf("vm: division by zero")
		}
		return a / b, nil
	case "%":
		return nil, fmt.Errorf("vm: modulo not defined for floats")
	}
	return nil, fmt.Errorf("vm: unknown binary operator %q", op)
}

func compareValues(code int, a, b Value) (Value, error) {
	switch code {
	case CmpEq:
		return valuesEqual(a, b), nil
	case CmpNe:
		return !valuesEqual(a, b), nil
	}

	// Ordering comparisons need numbers or strings of matching kinds.
	if x, xok := numeric(a); xok {
		if y, yok := numeric(b); yok {
			return orderResult(code, compareFloat(x, y)), nil
		}
	}
	if x, ok := a.(string); ok {
		if y, ok := b.(string); ok {
			return orderResult(code, compareString(x, y)), nil
		}
	}
	return nil, fmt.Errorf("vm: unorderable types: %s and %s", TypeName(a), TypeName(b))
}

func valuesEqual(a, b Value) bool {
	if x, xok := numeric(a); xok {
		if y, yok := numeric(b); yok {
			return x == y
		}
		return false
	}
	switch x := a.(type) {
	case nil:
		return b == nil
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case string:
		y, ok := b.(string)
		return ok && x == y
	case []Value:
		y, ok := b.([]Value)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !valuesEqual(x[i], y[i]) {
				return false
			}
		}
		return true
	case NativeFunc, func(args []Value) (Value, error):
		// Function values are never equal to anything.
		return false
	default:
		switch b.(type) {
		case NativeFunc, func(args []Value) (Value, error):
			return false
		}
		return a == b
	}
}

func numeric(v Value) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	default:
		return 0, false
	}
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func orderResult(code, cmp int) bool {
	switch code {
	case CmpLt:
		return cmp < 0
	case CmpLe:
		return cmp <= 0
	case CmpGt:
		return cmp > 0
	case CmpGe:
		return cmp >= 0
	default:
		return false
	}
}
