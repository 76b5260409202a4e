package vm

import (
	"fmt"
	"io"
	"math"
	"os"
)

// ---------------------------------------------------------------------------
// Builtin native callables
// ---------------------------------------------------------------------------

// BuiltinsOut is where the print builtin writes. Tests redirect it.
var BuiltinsOut io.Writer = os.Stdout

// InstallBuiltins registers the standard native callables into a globals
// map. They all run through the native-call bridge, inside one dispatch
// step, and report misuse as errors rather than panicking.
func InstallBuiltins(globals map[string]Value) {
	globals["print"] = NativeFunc(builtinPrint)
	globals["len"] = NativeFunc(builtinLen)
	globals["str"] = NativeFunc(builtinStr)
	globals["abs"] = NativeFunc(builtinAbs)
}

func builtinPrint(args []Value) (Value, error) {
	for i, arg := range args {
		if i > 0 {
			fmt.Fprint(BuiltinsOut, " ")
		}
		if s, ok := arg.(string); ok {
			fmt.Fprint(BuiltinsOut, s)
		} else {
			fmt.Fprint(BuiltinsOut, FormatValue(arg))
		}
	}
	fmt.Fprintln(BuiltinsOut)
	return nil, nil
}

func builtinLen(args []Value) (Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("len expects 1 argument, got %d", len(args))
	}
	switch x := args[0].(type) {
	case string:
		return int64(len(x)), nil
	case []Value:
		return int64(len(x)), nil
	default:
		return nil, fmt.Errorf("object of type %s has no len", TypeName(x))
	}
}

func builtinStr(args []Value) (Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("str expects 1 argument, got %d", len(args))
	}
	if s, ok := args[0].(string); ok {
		return s, nil
	}
	return FormatValue(args[0]), nil
}

func builtinAbs(args []Value) (Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("abs expects 1 argument, got %d", len(args))
	}
	switch x := args[0].(type) {
	case int64:
		if x < 0 {
			return -x, nil
		}
		return x, nil
	case float64:
		return math.Abs(x), nil
	default:
		return nil, fmt.Errorf("bad operand type for abs: %s", TypeName(x))
	}
}
