// Package vm implements the execution engine of the scripting language: the
// per-task context with its activation memory, scope and call stacks, the
// instruction set the compiler emits, the program image, and the task facade
// host code runs functions through.
package vm

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/VincentPT/ffscript/memory"
)

// Instruction is one executable unit of a compiled program. Execute mutates
// the given context; errors are reported through the context error flag so
// the execution loop can unwind through destructors. Describe appends the
// human-readable command text used by debug front ends.
type Instruction interface {
	Execute(ctx *Context)
	Describe(lines *[]string)
}

// scopeFrame tracks one entered scope: the sizes of its data and code
// regions and the constructor bookkeeping.
type scopeFrame struct {
	dataSize  int
	codeSize  int
	allocated bool
	runtime   *ScopeRuntimeData
}

// callFrame tracks one script function invocation.
type callFrame struct {
	returnCursor int
	prevBase     int
}

// Context carries the complete mutable state of one running task: the
// activation memory, the scope and call stacks, the instruction cursor, and
// the error flag. A context is single threaded; concurrency is achieved by
// running multiple contexts over the same program.
type Context struct {
	id      string
	mem     *memory.Memory
	program *Program

	cursor int
	base   int

	scopes []scopeFrame
	frames []callFrame

	err error

	profile  *profileState
	debugLog []string
}

// NewContext creates an execution context over the program with an
// activation memory of stackSize bytes.
func NewContext(program *Program, stackSize int) *Context {
	return &Context{
		id:      uuid.NewString(),
		mem:     memory.New(stackSize, program.StaticData()),
		program: program,
		scopes:  make([]scopeFrame, 0, 8),
		frames:  make([]callFrame, 0, 8),
	}
}

// ID returns the unique identity of this context, used in debug records.
func (c *Context) ID() string {
	return c.id
}

// Memory returns the activation memory owned by this context.
func (c *Context) Memory() *memory.Memory {
	return c.mem
}

// Program returns the program this context executes.
func (c *Context) Program() *Program {
	return c.program
}

// CurrentOffset returns the frame base of the currently executing function.
// Instruction offsets are relative to this base.
func (c *Context) CurrentOffset() int {
	return c.base
}

// CurrentScopeSize returns the number of bytes allocated by the current
// function's scopes so far.
func (c *Context) CurrentScopeSize() int {
	return c.mem.Top() - c.base
}

// AbsoluteAddress returns the address of a frame-relative offset. The
// address stays valid while the owning frame is live.
func (c *Context) AbsoluteAddress(offset int) memory.Address {
	return memory.TaskAddress(c.base + offset)
}

// Failed reports whether the error flag is set.
func (c *Context) Failed() bool {
	return c.err != nil
}

// Err returns the first recorded error.
func (c *Context) Err() error {
	return c.err
}

// fail sets the error flag. Only the first error is kept; later failures
// during unwinding are side effects of the first.
func (c *Context) fail(err error) {
	if c.err != nil || err == nil {
		return
	}
	c.err = err
	c.appendDebugRecord(fmt.Sprintf("context %s: error at cursor %d: %v", c.id, c.cursor-1, err))
}

func (c *Context) appendDebugRecord(record string) {
	c.debugLog = append(c.debugLog, record)
}

// DrainDebugRecords returns and clears the accumulated debug log.
func (c *Context) DrainDebugRecords() []string {
	out := c.debugLog
	c.debugLog = nil
	return out
}

// reset prepares the context for the next run of the owning task.
func (c *Context) reset() {
	c.mem.Reset()
	c.scopes = c.scopes[:0]
	c.frames = c.frames[:0]
	c.cursor = 0
	c.base = 0
	c.err = nil
}

// bytes resolves a byte range in activation memory, setting the error flag
// on failure.
func (c *Context) bytes(offset, size int) ([]byte, bool) {
	b, err := c.mem.Bytes(offset, size)
	if err != nil {
		c.fail(err)
		return nil, false
	}
	return b, true
}

// write copies src to offset, setting the error flag on failure.
func (c *Context) write(offset int, src []byte) bool {
	if err := c.mem.Write(offset, src); err != nil {
		c.fail(err)
		return false
	}
	return true
}

// lea stores an address at offset, setting the error flag on failure.
func (c *Context) lea(offset int, addr memory.Address) bool {
	if err := c.mem.Lea(offset, addr); err != nil {
		c.fail(err)
		return false
	}
	return true
}

// resolve maps an address to bytes, setting the error flag on failure.
func (c *Context) resolve(addr memory.Address, size int) ([]byte, bool) {
	b, err := c.mem.Resolve(addr, size)
	if err != nil {
		c.fail(err)
		return nil, false
	}
	return b, true
}

// pushScope enters a scope with bookkeeping for constructorCount
// constructors. The matching allocation happens in allocateScope.
func (c *Context) pushScope(constructorCount int) {
	c.scopes = append(c.scopes, scopeFrame{runtime: newScopeRuntimeData(constructorCount)})
}

// allocateScope extends the newest scope by its data and code regions.
func (c *Context) allocateScope(dataSize, codeSize int) {
	if len(c.scopes) == 0 {
		c.fail(fmt.Errorf("%w: allocate without a scope", ErrStackCorrupted))
		return
	}
	if err := c.mem.Allocate(dataSize, codeSize); err != nil {
		c.fail(err)
		return
	}
	frame := &c.scopes[len(c.scopes)-1]
	frame.dataSize = dataSize
	frame.codeSize = codeSize
	frame.allocated = true
}

// unallocateScope releases the newest scope's regions. Releasing twice, or
// releasing a scope whose allocation failed, is a no-op so that error
// unwinding stays balanced.
func (c *Context) unallocateScope() {
	if len(c.scopes) == 0 {
		c.fail(fmt.Errorf("%w: unallocate without a scope", ErrStackCorrupted))
		return
	}
	frame := &c.scopes[len(c.scopes)-1]
	if !frame.allocated {
		return
	}
	c.mem.Unallocate(frame.dataSize, frame.codeSize)
	frame.allocated = false
}

// popScope removes the newest scope frame, releasing its regions if an exit
// instruction has not already done so.
func (c *Context) popScope() {
	if len(c.scopes) == 0 {
		c.fail(fmt.Errorf("%w: pop without a scope", ErrStackCorrupted))
		return
	}
	c.unallocateScope()
	c.scopes = c.scopes[:len(c.scopes)-1]
}

// scopeRuntime returns the bookkeeping of the innermost scope.
func (c *Context) scopeRuntime() *ScopeRuntimeData {
	if len(c.scopes) == 0 {
		return nil
	}
	return c.scopes[len(c.scopes)-1].runtime
}

// ScopeDepth returns the number of live scopes.
func (c *Context) ScopeDepth() int {
	return len(c.scopes)
}

// pushFrame starts a script function invocation: the return site is the
// current cursor and the callee's frame base is the current allocation top.
func (c *Context) pushFrame() {
	c.frames = append(c.frames, callFrame{returnCursor: c.cursor, prevBase: c.base})
	c.base = c.mem.Top()
}

// popFrame ends the current invocation, restoring the caller's frame base
// and resuming at the stored return site.
func (c *Context) popFrame() {
	if len(c.frames) == 0 {
		c.fail(fmt.Errorf("%w: return without a call frame", ErrStackCorrupted))
		return
	}
	frame := c.frames[len(c.frames)-1]
	c.frames = c.frames[:len(c.frames)-1]
	c.base = frame.prevBase
	c.cursor = frame.returnCursor
}

// CallDepth returns the number of live call frames.
func (c *Context) CallDepth() int {
	return len(c.frames)
}

// jump moves the instruction cursor.
func (c *Context) jump(target int) {
	c.cursor = target
}

// runsDuringUnwind reports whether an instruction still executes while the
// error flag is set. Scope entries and exits keep executing so that every
// entered scope is exited and destructors for completed constructors run;
// everything else is skipped until the function unwinds.
func runsDuringUnwind(inst Instruction) bool {
	switch inst.(type) {
	case *EnterScope, *ExitScope, *ExitFunctionAtEnd:
		return true
	default:
		return false
	}
}

// runToDepth drives the execution loop until the call stack shrinks back to
// depth frames. It is the single interpretation loop: the task facade enters
// it at depth zero, and reentrant host-to-script calls enter it nested with
// the depth observed before the callee frame was pushed.
func (c *Context) runToDepth(depth int) {
	for len(c.frames) > depth {
		if c.cursor < 0 || c.cursor >= c.program.Len() {
			c.fail(fmt.Errorf("%w: cursor %d, program size %d",
				ErrCursorOutOfRange, c.cursor, c.program.Len()))
			return
		}
		inst := c.program.InstructionAt(c.cursor)
		if c.profile != nil {
			c.profile.observe(c.cursor)
		}
		c.cursor++
		if c.err != nil && !runsDuringUnwind(inst) {
			continue
		}
		inst.Execute(c)
	}
}
