package vm

import "fmt"

// EnterScope opens a lexical scope: it pushes a scope frame, allocates the
// scope's data and code regions, and runs the compiler-emitted auto-run list
// (the constructors of the scope's locals, in declaration order).
//
// During error unwinding the scope frame is still pushed, with nothing
// allocated and no constructors run, so that the matching ExitScope keeps
// the scope stack balanced.
type EnterScope struct {
	DataSize         int
	CodeSize         int
	ConstructorCount int
	AutoRun          []Instruction
}

func (c *EnterScope) Execute(ctx *Context) {
	ctx.pushScope(c.ConstructorCount)
	if ctx.Failed() {
		return
	}
	ctx.allocateScope(c.DataSize, c.CodeSize)
	if ctx.Failed() {
		return
	}
	for _, cmd := range c.AutoRun {
		if ctx.Failed() {
			// A failed constructor stops the list; destructors run only
			// for the constructors that completed before it.
			return
		}
		cmd.Execute(ctx)
	}
}

func (c *EnterScope) Describe(lines *[]string) {
	*lines = append(*lines, fmt.Sprintf("allocate(%d) - enter scope", c.DataSize+c.CodeSize))
}

// ExitScope closes a lexical scope: it runs the exit auto-run list (the
// destructors, in reverse declaration order), releases the scope's regions,
// and pops the scope frame when RestoreCall is set. A function body's exit
// leaves RestoreCall clear, and the function epilogue (ExitFunctionAtEnd)
// pops that frame instead. ElideIndex, when non-negative, suppresses the destructor of the
// local whose storage is being handed to the caller.
//
// The auto-run list executes even while the error flag is set; each entry is
// guarded by the completed-constructor bitset, so only fully constructed
// values are destroyed.
type ExitScope struct {
	DataSize    int
	CodeSize    int
	RestoreCall bool
	ElideIndex  int
	AutoRun     []Instruction
}

func (c *ExitScope) Execute(ctx *Context) {
	if c.ElideIndex >= 0 {
		if rt := ctx.scopeRuntime(); rt != nil {
			rt.MarkConstructorNotExecuted(c.ElideIndex)
		}
	}
	for _, cmd := range c.AutoRun {
		cmd.Execute(ctx)
	}
	ctx.unallocateScope()
	if c.RestoreCall {
		ctx.popScope()
	}
}

func (c *ExitScope) Describe(lines *[]string) {
	if c.ElideIndex >= 0 {
		*lines = append(*lines, fmt.Sprintf("ignore_dtor(%d)", c.ElideIndex))
	}
	*lines = append(*lines, fmt.Sprintf("unallocate(%d) - exit scope", c.DataSize+c.CodeSize))
}

// ConstructorCall wraps one entry of an enter auto-run list. It runs the
// underlying constructor and records its completion in the scope bookkeeping
// so the matching destructor becomes eligible.
type ConstructorCall struct {
	Index   int
	Command Instruction
}

func (c *ConstructorCall) Execute(ctx *Context) {
	c.Command.Execute(ctx)
	if !ctx.Failed() {
		if rt := ctx.scopeRuntime(); rt != nil {
			rt.MarkConstructorExecuted(c.Index)
		}
	}
}

func (c *ConstructorCall) Describe(lines *[]string) {
	c.Command.Describe(lines)
}

// DestructorCall wraps one entry of an exit auto-run list. The underlying
// destructor runs only if the constructor at the same index completed and
// was not elided.
type DestructorCall struct {
	Index   int
	Command Instruction
}

func (c *DestructorCall) Execute(ctx *Context) {
	rt := ctx.scopeRuntime()
	if rt == nil || !rt.IsConstructorExecuted(c.Index) {
		return
	}
	c.Command.Execute(ctx)
}

func (c *DestructorCall) Describe(lines *[]string) {
	c.Command.Describe(lines)
}
