package vm

import "fmt"

// ---------------------------------------------------------------------------
// Native-call bridge
// ---------------------------------------------------------------------------

// runNatively invokes a host-provided callable inline, fully inside one
// dispatch step: pop the declared argument count off the operand stack in
// call order, pop the callee, call it. No new frame is created and control
// never returns to the driver. Faults, including panics escaping the native
// callable, are converted into a *NativeInvocationError for the engine to
// deliver through the frame's error channel; whether the frame transitions
// to ERRORED is the caller's decision, not the bridge's.
func (e *Engine) runNatively(ctx *Context, inst Instruction, fn NativeFunc) (result Value, err error) {
	args := ctx.PopN(inst.Arg)
	calleeVal := ctx.Pop()

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &NativeInvocationError{
				Callee: FormatValue(calleeVal),
				Err:    fmt.Errorf("panic: %v", r),
			}
		}
	}()

	result, err = fn(args)
	if err != nil {
		return nil, &NativeInvocationError{Callee: FormatValue(calleeVal), Err: err}
	}
	return result, nil
}
