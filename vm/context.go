package vm

import "fmt"

// ---------------------------------------------------------------------------
// Context lifecycle states
// ---------------------------------------------------------------------------

// CtxState is the lifecycle state of an execution context.
type CtxState int

const (
	CtxPending   CtxState = iota // created, not yet first run
	CtxRunning                   // currently being dispatched
	CtxSuspended                 // paused at a call, waiting for its callee
	CtxErrored                   // terminal: an unhandled fault occurred
	CtxFinished                  // terminal: a return value was produced
)

// Terminal reports whether the state is FINISHED or ERRORED.
func (s CtxState) Terminal() bool {
	return s == CtxErrored || s == CtxFinished
}

// String implements the Stringer interface.
func (s CtxState) String() string {
	switch s {
	case CtxPending:
		return "PENDING"
	case CtxRunning:
		return "RUNNING"
	case CtxSuspended:
		return "SUSPENDED"
	case CtxErrored:
		return "ERRORED"
	case CtxFinished:
		return "FINISHED"
	default:
		return fmt.Sprintf("CtxState(%d)", int(s))
	}
}

// legal state machine edges; everything else is an interpreter bug.
var legalTransitions = map[CtxState][]CtxState{
	CtxPending:   {CtxRunning},
	CtxRunning:   {CtxSuspended, CtxFinished, CtxErrored},
	CtxSuspended: {CtxRunning},
}

// ---------------------------------------------------------------------------
// Context: heap-resident execution frame
// ---------------------------------------------------------------------------

// ResultCallback is invoked exactly once when a context finishes.
type ResultCallback func(result Value)

// ExceptionCallback is invoked exactly once when a context errors.
type ExceptionCallback func(fault error)

// Context is one function activation's execution state. Unlike a native call
// frame it lives on the heap: invoking one function from another suspends the
// caller, materializes a new context for the callee and links the two, so
// arbitrarily deep interpreted call chains never grow the host stack.
type Context struct {
	fn      *Function
	pointer int // index of the next instruction to execute
	stack   []Value
	state   CtxState

	// Call chain links, a chain rather than a graph: at most one caller,
	// at most one active callee.
	caller *Context
	callee *Context

	locals      []Value
	pendingArgs []Value
	argsBound   bool

	result Value
	fault  error

	onResult    []ResultCallback
	onException []ExceptionCallback
	notified    bool
}

// NewContext creates a PENDING context for a function's instruction stream.
func NewContext(fn *Function) *Context {
	return &Context{
		fn:     fn,
		stack:  make([]Value, 0, 8),
		locals: make([]Value, fn.NumLocals),
		state:  CtxPending,
	}
}

// Fn returns the function this context executes.
func (c *Context) Fn() *Function { return c.fn }

// State returns the context's lifecycle state.
func (c *Context) State() CtxState { return c.state }

// Caller returns the context that invoked this one, or nil for a root.
func (c *Context) Caller() *Context { return c.caller }

// Callee returns the context most recently spawned by this one, or nil.
func (c *Context) Callee() *Context { return c.callee }

// Pointer returns the index of the next instruction to execute.
func (c *Context) Pointer() int { return c.pointer }

// SetPointer redirects the instruction pointer (used by branch handlers).
func (c *Context) SetPointer(p int) { c.pointer = p }

// Result returns the value produced by a FINISHED context.
func (c *Context) Result() Value { return c.result }

// Fault returns the fault attached to an ERRORED context.
func (c *Context) Fault() error { return c.fault }

// transition moves the context along a legal state machine edge. Illegal
// edges are interpreter bugs and panic.
func (c *Context) transition(to CtxState) {
	for _, next := range legalTransitions[c.state] {
		if next == to {
			c.state = to
			return
		}
	}
	panic(fmt.Sprintf("vm: illegal context transition %s -> %s", c.state, to))
}

// ---------------------------------------------------------------------------
// Operand stack
// ---------------------------------------------------------------------------

// Push pushes a value onto the operand stack.
func (c *Context) Push(v Value) {
	c.stack = append(c.stack, v)
}

// Pop removes and returns the top of the operand stack.
func (c *Context) Pop() Value {
	if len(c.stack) == 0 {
		panic("vm: operand stack underflow")
	}
	v := c.stack[len(c.stack)-1]
	c.stack = c.stack[:len(c.stack)-1]
	return v
}

// Peek returns the top of the operand stack without removing it.
func (c *Context) Peek() Value {
	if len(c.stack) == 0 {
		panic("vm: operand stack underflow")
	}
	return c.stack[len(c.stack)-1]
}

// PeekAt returns the value depth entries below the top of the stack.
// PeekAt(0) is the top.
func (c *Context) PeekAt(depth int) Value {
	if len(c.stack) <= depth {
		panic("vm: operand stack underflow")
	}
	return c.stack[len(c.stack)-1-depth]
}

// PopN removes the top n values and returns them in push order.
func (c *Context) PopN(n int) []Value {
	if len(c.stack) < n {
		panic("vm: operand stack underflow")
	}
	result := make([]Value, n)
	copy(result, c.stack[len(c.stack)-n:])
	c.stack = c.stack[:len(c.stack)-n]
	return result
}

// StackDepth returns the number of values on the operand stack.
func (c *Context) StackDepth() int {
	return len(c.stack)
}

// ---------------------------------------------------------------------------
// Argument transfer
// ---------------------------------------------------------------------------

// FillArgs buffers call arguments for transfer into the context before its
// first run.
func (c *Context) FillArgs(args []Value) {
	c.pendingArgs = args
}

// bindArgs copies the pending arguments into the local slots, arguments
// first, remaining locals nil. Happens once, on first dispatch.
func (c *Context) bindArgs() {
	if c.argsBound {
		return
	}
	copy(c.locals, c.pendingArgs)
	c.pendingArgs = nil
	c.argsBound = true
}

// Local returns the value in a local slot.
func (c *Context) Local(slot int) Value {
	if slot < 0 || slot >= len(c.locals) {
		panic(fmt.Sprintf("vm: local slot %d out of range (have %d)", slot, len(c.locals)))
	}
	return c.locals[slot]
}

// SetLocal stores a value into a local slot.
func (c *Context) SetLocal(slot int, v Value) {
	if slot < 0 || slot >= len(c.locals) {
		panic(fmt.Sprintf("vm: local slot %d out of range (have %d)", slot, len(c.locals)))
	}
	c.locals[slot] = v
}

// ---------------------------------------------------------------------------
// Terminal transitions and callbacks
// ---------------------------------------------------------------------------

// AddResultCallback registers a callback fired when the context finishes.
// Callbacks fire at most once, in registration order.
func (c *Context) AddResultCallback(cb ResultCallback) {
	c.onResult = append(c.onResult, cb)
}

// AddExceptionCallback registers a callback fired when the context errors.
// Callbacks fire at most once, in registration order.
func (c *Context) AddExceptionCallback(cb ExceptionCallback) {
	c.onException = append(c.onException, cb)
}

// Finish transitions the context RUNNING -> FINISHED with a return value and
// notifies result callbacks. Exposed for opcode handlers (RETURN_VALUE).
func (c *Context) Finish(result Value) {
	c.result = result
	c.transition(CtxFinished)
	if c.notified {
		return
	}
	c.notified = true
	for _, cb := range c.onResult {
		cb(result)
	}
}

// fail transitions the context to ERRORED with the fault attached and
// notifies exception callbacks. The operand stack and pointer are left
// frozen at the point of failure for diagnostics.
func (c *Context) fail(fault error) {
	c.fault = fault
	c.transition(CtxErrored)
	if c.notified {
		return
	}
	c.notified = true
	for _, cb := range c.onException {
		cb(fault)
	}
}

// resume flips a SUSPENDED context back to RUNNING. Called by the result
// callback its callee delivery registered.
func (c *Context) resume() {
	c.transition(CtxRunning)
}
