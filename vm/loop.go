package vm

import (
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
)

var loopLog = commonlog.GetLogger("vireo.loop")

// ---------------------------------------------------------------------------
// TaskLoop: the cooperative driver
// ---------------------------------------------------------------------------

// TaskOutcome describes how a task ended.
type TaskOutcome string

const (
	TaskFinished  TaskOutcome = "finished"
	TaskErrored   TaskOutcome = "errored"
	TaskCancelled TaskOutcome = "cancelled"
)

// Task is one root call chain scheduled on the loop.
type Task struct {
	ID        string
	Root      *Context
	Entry     string
	Steps     int // dispatch calls consumed by the chain
	StartedAt time.Time
	Duration  time.Duration
	Outcome   TaskOutcome

	// HotFunctions lists functions that crossed the profiler's hot
	// threshold while this task was being dispatched.
	HotFunctions []string

	done bool
}

// workItem pairs a runnable context with the task its chain belongs to.
type workItem struct {
	task *Task
	ctx  *Context
}

// TaskLoop repeatedly feeds runnable contexts into the dispatch engine. It
// owns the ready queue: callee contexts returned by the engine are queued,
// and a caller whose delivery callback flipped it back to RUNNING is
// requeued. Scheduling is strictly single-threaded and cooperative; fairness
// across independent root chains comes from the FIFO queue.
type TaskLoop struct {
	engine  *Engine
	ready   []workItem
	current *Task // task whose frame is being dispatched

	// MaxSteps, when positive, cancels a task whose chain consumes more
	// dispatch calls than this. Cancellation is simply ceasing to
	// schedule the chain's frames.
	MaxSteps int

	// OnTaskDone, when set, is called once per task after its root
	// reaches a terminal state or the task is cancelled.
	OnTaskDone func(*Task)
}

// NewTaskLoop creates a loop around a dispatch engine. If the engine carries
// a profiler without an OnHot hook, the loop installs one that logs the hot
// function and records it on the task being dispatched.
func NewTaskLoop(engine *Engine) *TaskLoop {
	l := &TaskLoop{engine: engine}
	if engine.Profiler != nil && engine.Profiler.OnHot == nil {
		engine.Profiler.OnHot = l.recordHot
	}
	return l
}

func (l *TaskLoop) recordHot(fn *Function, profile *FunctionProfile) {
	loopLog.Infof("function %s is hot (%d invocations)",
		fn.Name, profile.InvocationCount)
	if l.current != nil {
		l.current.HotFunctions = append(l.current.HotFunctions, fn.Name)
	}
}

// Engine returns the loop's dispatch engine.
func (l *TaskLoop) Engine() *Engine { return l.engine }

// Submit queues a root context as a new task.
func (l *TaskLoop) Submit(root *Context) *Task {
	task := &Task{
		ID:        uuid.NewString(),
		Root:      root,
		Entry:     root.fn.Name,
		StartedAt: time.Now(),
	}
	l.enqueue(workItem{task: task, ctx: root})
	loopLog.Debugf("task %s submitted (entry %s)", task.ID, task.Entry)
	return task
}

// Run drives the ready queue until it drains. Tasks complete as their root
// contexts reach terminal states.
func (l *TaskLoop) Run() {
	for len(l.ready) > 0 {
		item := l.ready[0]
		l.ready = l.ready[1:]

		ctx := item.ctx
		switch ctx.State() {
		case CtxPending, CtxRunning:
			// runnable
		default:
			// Terminal or suspended frames are not dispatched; suspended
			// frames re-enter via their callee's delivery callback.
			continue
		}

		if item.task.done {
			continue
		}
		if l.MaxSteps > 0 && item.task.Steps >= l.MaxSteps {
			l.cancel(item.task)
			continue
		}
		item.task.Steps++

		l.current = item.task
		next := l.engine.RunContext(ctx)
		l.current = nil
		if next != nil {
			// Context switch: the caller suspended, schedule the callee.
			loopLog.Debugf("task %s: %s suspended, scheduling %s",
				item.task.ID, ctx.fn.Name, next.fn.Name)
			l.enqueue(workItem{task: item.task, ctx: next})
			continue
		}

		// The frame reached a terminal state. Its delivery callbacks have
		// already run, possibly resuming the caller or erroring the whole
		// chain up to the root.
		if item.task.Root.State().Terminal() {
			l.complete(item.task)
			continue
		}
		if caller := ctx.Caller(); caller != nil && caller.State() == CtxRunning {
			l.enqueue(workItem{task: item.task, ctx: caller})
		}
	}
}

// RunUntilComplete submits a root context, drives the loop until the queue
// drains, and returns the root's result or fault.
func (l *TaskLoop) RunUntilComplete(root *Context) (Value, error) {
	task := l.Submit(root)
	l.Run()
	switch root.State() {
	case CtxFinished:
		return root.Result(), nil
	case CtxErrored:
		return nil, root.Fault()
	default:
		loopLog.Errorf("task %s stalled in state %s", task.ID, root.State())
		return nil, root.Fault()
	}
}

func (l *TaskLoop) enqueue(item workItem) {
	l.ready = append(l.ready, item)
}

func (l *TaskLoop) complete(task *Task) {
	if task.done {
		return
	}
	task.done = true
	task.Duration = time.Since(task.StartedAt)
	if task.Root.State() == CtxFinished {
		task.Outcome = TaskFinished
		loopLog.Infof("task %s finished in %d steps (%s)",
			task.ID, task.Steps, task.Duration)
	} else {
		task.Outcome = TaskErrored
		loopLog.Errorf("task %s errored after %d steps: %v",
			task.ID, task.Steps, task.Root.Fault())
	}
	if l.OnTaskDone != nil {
		l.OnTaskDone(task)
	}
}

func (l *TaskLoop) cancel(task *Task) {
	if task.done {
		return
	}
	task.done = true
	task.Duration = time.Since(task.StartedAt)
	task.Outcome = TaskCancelled
	loopLog.Errorf("task %s cancelled after %d steps (limit %d)",
		task.ID, task.Steps, l.MaxSteps)
	if l.OnTaskDone != nil {
		l.OnTaskDone(task)
	}
}
