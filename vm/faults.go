package vm

import "fmt"

// ---------------------------------------------------------------------------
// Fault taxonomy
// ---------------------------------------------------------------------------
// Faults never unwind past a frame boundary implicitly: each frame's
// exception callbacks are the single explicit handoff point to its caller.
// A root frame that errors with no caller keeps the fault attached for
// external inspection.

// NotCallableError is raised when the value at a call site cannot be
// invoked, neither natively nor as an interpreted function.
type NotCallableError struct {
	Value Value
}

func (e *NotCallableError) Error() string {
	return fmt.Sprintf("vm: '%s' object is not callable", TypeName(e.Value))
}

// UnsupportedOpcodeError is raised when an instruction stream references an
// opcode absent from the handler table. Fatal to the frame.
type UnsupportedOpcodeError struct {
	Op string
}

func (e *UnsupportedOpcodeError) Error() string {
	return fmt.Sprintf("vm: unsupported opcode %q", e.Op)
}

// NativeInvocationError wraps a fault raised by a native callable during the
// bridge's synchronous call, attributed to the calling frame.
type NativeInvocationError struct {
	Callee string
	Err    error
}

func (e *NativeInvocationError) Error() string {
	return fmt.Sprintf("vm: native call %s failed: %v", e.Callee, e.Err)
}

func (e *NativeInvocationError) Unwrap() error { return e.Err }

// PropagatedFault wraps a fault originating in a callee frame as it is
// delivered to the caller frame via its exception callback.
type PropagatedFault struct {
	From string // name of the errored callee's function
	Err  error
}

func (e *PropagatedFault) Error() string {
	return fmt.Sprintf("vm: fault propagated from %s: %v", e.From, e.Err)
}

func (e *PropagatedFault) Unwrap() error { return e.Err }

// ---------------------------------------------------------------------------
// Fault channel
// ---------------------------------------------------------------------------

// Raise delivers a fault to a context: the frame transitions to ERRORED with
// the fault attached, its registered exception callbacks fire in order, and
// its operand stack and pointer freeze at the point of failure. A frame with
// no exception callbacks simply keeps the fault for external inspection.
func Raise(ctx *Context, fault error) {
	ctx.fail(fault)
}
