package vm

// ---------------------------------------------------------------------------
// Engine: the instruction dispatch loop
// ---------------------------------------------------------------------------

// Engine executes the instruction stream of one context at a time. It pulls
// instructions from the current context, special-cases CALL_FUNCTION to
// perform a context switch, and delegates everything else to the handler
// table. The engine never blocks and never recurses: a call to an
// interpreted function hands the new callee context back to the driver.
type Engine struct {
	handlers HandlerTable

	// Profiler, when set, records interpreted-function invocations.
	Profiler *Profiler

	// Diagnostics only: the context and instruction most recently
	// dispatched. Dispatch itself threads the context explicitly.
	CurrentContext     *Context
	CurrentInstruction Instruction
}

// NewEngine creates an engine with the given opcode handler table.
func NewEngine(handlers HandlerTable) *Engine {
	return &Engine{handlers: handlers}
}

// RunContext drives a context until it reaches a terminal state or suspends
// at a context switch. It returns the newly spawned callee context when the
// current frame issued an interpreted call, or nil when the frame reached
// FINISHED or ERRORED (the interested parties were already notified via
// callbacks at the moment of transition). Invoking RunContext on a frame
// already in a terminal state is a no-op returning nil.
func (e *Engine) RunContext(ctx *Context) *Context {
	if ctx.state.Terminal() || ctx.state == CtxSuspended {
		// Terminal frames are never re-executed; a suspended frame only
		// becomes runnable again through its callee's delivery callback.
		return nil
	}
	if ctx.state == CtxPending {
		ctx.bindArgs()
		ctx.transition(CtxRunning)
	}
	e.CurrentContext = ctx

	for {
		if ctx.state.Terminal() {
			return nil
		}

		if ctx.pointer >= len(ctx.fn.Instructions) {
			// Ran off the end without RETURN_VALUE: implicit nil return.
			ctx.Finish(nil)
			continue
		}

		inst := ctx.fn.Instructions[ctx.pointer]
		// Advance past the instruction before executing it, so a frame
		// suspended at a call resumes at the right place and branch
		// handlers can redirect the pointer absolutely.
		ctx.pointer++
		e.CurrentInstruction = inst

		if inst.Op == OpCallFunction {
			if next := e.dispatchCall(ctx, inst); next != nil {
				return next
			}
			continue
		}

		handler, ok := e.handlers[inst.Op]
		if !ok {
			Raise(ctx, &UnsupportedOpcodeError{Op: inst.Op})
			continue
		}
		if err := handler(ctx, inst); err != nil {
			Raise(ctx, err)
		}
	}
}

// dispatchCall handles the CALL_FUNCTION opcode. It returns a new callee
// context when a context switch is required, or nil when the call completed
// inline (native call) or faulted.
func (e *Engine) dispatchCall(ctx *Context, inst Instruction) *Context {
	argc := inst.Arg

	// The callee sits below its arguments on the operand stack.
	calleeVal := ctx.PeekAt(argc)
	call, err := resolveCallee(calleeVal)
	if err != nil {
		Raise(ctx, err)
		return nil
	}

	if call.isNative() {
		// Synchronous path: no context switch, no new frame.
		result, err := e.runNatively(ctx, inst, call.native)
		if err != nil {
			Raise(ctx, err)
			return nil
		}
		ctx.Push(result)
		return nil
	}

	// Context switch: pop arguments in call order, then the callee value.
	args := ctx.PopN(argc)
	ctx.Pop()

	callee := NewContext(call.fn)
	callee.FillArgs(args)
	callee.caller = ctx
	ctx.callee = callee

	// Delivery callbacks: the caller resumes with the callee's result
	// pushed, or has the callee's fault propagated onto it.
	callee.AddResultCallback(func(result Value) {
		ctx.Push(result)
		ctx.resume()
	})
	callee.AddExceptionCallback(func(fault error) {
		ctx.resume()
		Raise(ctx, &PropagatedFault{From: call.fn.Name, Err: fault})
	})

	e.Profiler.RecordInvocation(call.fn)

	ctx.transition(CtxSuspended)
	return callee
}
