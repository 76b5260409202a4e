package vm

import (
	"fmt"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Value representation
// ---------------------------------------------------------------------------

// Value is anything the operand stack can hold. The interpreter core deals
// with nil, bool, int64, float64, string, []Value, *Function, NativeFunc and
// *Class; opcode handlers and native callables may traffic in anything.
type Value = any

// NativeFunc is a host-provided callable. It runs synchronously inside one
// dispatch step and must not recurse into the context-scheduling protocol.
type NativeFunc func(args []Value) (Value, error)

// Function is an interpreted callable: a named, immutable instruction stream
// with its constant pool and module globals.
type Function struct {
	Name         string
	Params       []string
	NumLocals    int // params plus local slots
	Instructions []Instruction
	Constants    []Value
	Globals      map[string]Value // shared module globals, set at link time
}

// Arity returns the number of declared parameters.
func (f *Function) Arity() int {
	return len(f.Params)
}

// Class is a bare type marker. Calling it dispatches to its canonical
// construction entry point, the way calling a function does.
type Class struct {
	Name string
	New  Value // *Function or NativeFunc
}

// ---------------------------------------------------------------------------
// Callee resolution
// ---------------------------------------------------------------------------

// callable is the closed tagged variant a call site resolves its callee to.
type callable struct {
	native NativeFunc
	fn     *Function
}

func (c callable) isNative() bool { return c.native != nil }

// resolveCallee normalizes a callee value and classifies it. A *Class is
// substituted by its construction entry point before the invokability check.
// Values that are neither native nor interpreted callables yield a
// *NotCallableError.
func resolveCallee(v Value) (callable, error) {
	if cls, ok := v.(*Class); ok {
		v = cls.New
	}
	switch fn := v.(type) {
	case NativeFunc:
		return callable{native: fn}, nil
	case func(args []Value) (Value, error):
		return callable{native: NativeFunc(fn)}, nil
	case *Function:
		return callable{fn: fn}, nil
	default:
		return callable{}, &NotCallableError{Value: v}
	}
}

// ---------------------------------------------------------------------------
// Value helpers
// ---------------------------------------------------------------------------

// Truthy reports the truth value of v: nil, false, zero numbers, empty
// strings and empty lists are false, everything else is true.
func Truthy(v Value) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case int64:
		return x != 0
	case float64:
		return x != 0
	case string:
		return x != ""
	case []Value:
		return len(x) > 0
	default:
		return true
	}
}

// TypeName returns a short name for a value's type, used in fault messages.
func TypeName(v Value) string {
	switch x := v.(type) {
	case nil:
		return "nil"
	case bool:
		return "bool"
	case int64:
		return "int"
	case float64:
		return "float"
	case string:
		return "string"
	case []Value:
		return "list"
	case *Function:
		return "function"
	case NativeFunc, func(args []Value) (Value, error):
		return "native"
	case *Class:
		return "class " + x.Name
	default:
		return fmt.Sprintf("%T", v)
	}
}

// FormatValue renders a value for diagnostics and CLI output.
func FormatValue(v Value) string {
	switch x := v.(type) {
	case nil:
		return "nil"
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case string:
		return strconv.Quote(x)
	case []Value:
		parts := make([]string, len(x))
		for i, elem := range x {
			parts[i] = FormatValue(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *Function:
		return "<function " + x.Name + ">"
	case NativeFunc, func(args []Value) (Value, error):
		return "<native>"
	case *Class:
		return "<class " + x.Name + ">"
	default:
		return fmt.Sprintf("%v", v)
	}
}
