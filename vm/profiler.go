package vm

import (
	"sync"
	"sync/atomic"
)

// ---------------------------------------------------------------------------
// Profiler: invocation counting for interpreted functions
// ---------------------------------------------------------------------------

// FunctionProfile holds profiling data for a single function.
type FunctionProfile struct {
	InvocationCount uint64 // atomic
	IsHot           bool
}

// Profiler tracks interpreted-function invocation counts so embedders can
// identify hot functions. A nil *Profiler is valid and records nothing.
type Profiler struct {
	profiles sync.Map // *Function -> *FunctionProfile

	// HotThreshold is the invocation count at which a function is marked
	// hot and OnHot fires.
	HotThreshold uint64

	// OnHot, when set, is called once per function as it crosses the
	// threshold.
	OnHot func(fn *Function, profile *FunctionProfile)

	hotCount uint64
}

// NewProfiler creates a profiler with the default threshold.
func NewProfiler() *Profiler {
	return &Profiler{HotThreshold: 100}
}

// RecordInvocation increments the invocation count for a function and
// returns true if this invocation made it hot.
func (p *Profiler) RecordInvocation(fn *Function) bool {
	if p == nil || fn == nil {
		return false
	}
	val, _ := p.profiles.LoadOrStore(fn, &FunctionProfile{})
	profile := val.(*FunctionProfile)

	count := atomic.AddUint64(&profile.InvocationCount, 1)
	if count == p.HotThreshold && !profile.IsHot {
		profile.IsHot = true
		atomic.AddUint64(&p.hotCount, 1)
		if p.OnHot != nil {
			p.OnHot(fn, profile)
		}
		return true
	}
	return false
}

// Count returns the recorded invocation count for a function.
func (p *Profiler) Count(fn *Function) uint64 {
	if p == nil {
		return 0
	}
	val, ok := p.profiles.Load(fn)
	if !ok {
		return 0
	}
	return atomic.LoadUint64(&val.(*FunctionProfile).InvocationCount)
}

// HotCount returns how many functions have crossed the threshold.
func (p *Profiler) HotCount() uint64 {
	if p == nil {
		return 0
	}
	return atomic.LoadUint64(&p.hotCount)
}
