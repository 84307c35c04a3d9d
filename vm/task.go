package vm

import (
	"fmt"

	"github.com/VincentPT/ffscript/memory"
	"github.com/VincentPT/ffscript/registry"
)

// DefaultStackSize is the activation memory given to a task when the caller
// does not specify one.
const DefaultStackSize = 1 << 20

// Task is an isolated execution context over a program: it owns its
// activation memory and instruction cursor and runs synchronously on the
// calling goroutine. Multiple tasks may execute the same program
// concurrently; they share nothing but the immutable program and whatever
// the host mutates through native calls.
//
// A task is single threaded but may be reused sequentially: every run resets
// the scope and call stacks.
type Task struct {
	program    *Program
	ctx        *Context
	resultSize int
}

// NewTask creates a task over program with stackSize bytes of activation
// memory. A non-positive stackSize selects DefaultStackSize.
func NewTask(program *Program, stackSize int) *Task {
	if stackSize <= 0 {
		stackSize = DefaultStackSize
	}
	return &Task{
		program: program,
		ctx:     NewContext(program, stackSize),
	}
}

// ID returns the task's unique identity.
func (t *Task) ID() string {
	return t.ctx.ID()
}

// Memory exposes the task's activation memory, mainly for host adapters and
// tests.
func (t *Task) Memory() *memory.Memory {
	return t.ctx.Memory()
}

// EnableProfiling starts collecting instruction counts for
// PerformanceReport.
func (t *Task) EnableProfiling() {
	if t.ctx.profile == nil {
		t.ctx.profile = newProfileState()
	}
}

// RunFunction executes the registered function with the packed parameters
// and drives the execution loop until it returns. The parameter image must
// match the function's compiled signature; no runtime type check is
// performed. On error the result is undefined. An error raised once the
// function has started executing is also available through Err; an unknown
// id, a parameter image that does not fit activation memory, or an unbound
// entry is only returned, not recorded for Err.
func (t *Task) RunFunction(id registry.FunctionID, params *ParamBuffer) error {
	fn, err := t.program.Functions().Lookup(id)
	if err != nil {
		return err
	}

	t.ctx.reset()
	t.resultSize = fn.ResultSize
	paramBytes := params.Bytes()

	// The synthetic caller frame: the task result slot, then the packed
	// parameters.
	if err := t.ctx.mem.Allocate(fn.ResultSize+len(paramBytes), 0); err != nil {
		return err
	}
	if err := t.ctx.mem.Write(fn.ResultSize, paramBytes); err != nil {
		return err
	}

	switch fn.Kind {
	case registry.NativeFunctionKind:
		call := CallNative{
			FunctionName:     fn.Name,
			ResultOffset:     0,
			ResultSize:       fn.ResultSize,
			BeginParamOffset: fn.ResultSize,
			ParamSize:        len(paramBytes),
			Target:           fn.Native,
		}
		call.Execute(t.ctx)

	case registry.ScriptFunctionKind:
		if fn.Entry < 0 {
			return fmt.Errorf("%w: %s", ErrUnboundEntry, fn.Name)
		}
		launch := CallScript3{CallScript2{
			FunctionName:     fn.Name,
			ResultOffset:     0,
			BeginParamOffset: fn.ResultSize,
			ParamSize:        len(paramBytes),
			Entry:            fn.Entry,
		}}
		t.ctx.cursor = -1
		launch.Execute(t.ctx)

	default:
		return fmt.Errorf("%w: %s has unknown kind %d", registry.ErrUnknownFunction, fn.Name, fn.Kind)
	}

	if err := t.ctx.Err(); err != nil {
		return fmt.Errorf("task %s: %s: %w", t.ID(), fn.Name, err)
	}
	return nil
}

// CallFunctionValue invokes a first-class function value produced by the
// last run, for example a lambda the script returned. The value's capture
// buffer must still be live in this task. The returned slice aliases
// activation memory above the current top and stays valid until the next
// run.
func (t *Task) CallFunctionValue(info RuntimeFunctionInfo, params *ParamBuffer, resultSize int) ([]byte, error) {
	resultOffset := t.ctx.mem.Top()
	if err := t.ctx.mem.Allocate(resultSize, 0); err != nil {
		return nil, err
	}
	err := t.ctx.InvokeRuntimeFunction(info, memory.TaskAddress(resultOffset), params.Bytes())
	t.ctx.mem.Unallocate(resultSize, 0)
	if err != nil {
		return nil, err
	}
	return t.ctx.mem.Bytes(resultOffset, resultSize)
}

// Result returns the bytes of the result buffer written by the last run. The
// slice stays valid until the next run; its content is undefined when the
// last run failed.
func (t *Task) Result() []byte {
	b, err := t.ctx.mem.Bytes(0, t.resultSize)
	if err != nil {
		return nil
	}
	return b
}

// Err returns the error recorded by the last run, if any.
func (t *Task) Err() error {
	return t.ctx.Err()
}

// DebugRecords drains the diagnostic records accumulated by the task's
// context.
func (t *Task) DebugRecords() []string {
	return t.ctx.DrainDebugRecords()
}

// PerformanceReport renders the profile collected since EnableProfiling.
func (t *Task) PerformanceReport() string {
	if t.ctx.profile == nil {
		return ""
	}
	return t.ctx.profile.render(t.ID(), t.ctx.mem)
}
