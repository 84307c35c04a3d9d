package vm

import (
	"fmt"

	"github.com/VincentPT/ffscript/registry"
)

// Program is the immutable result of compilation: the ordered instruction
// image, the function and type tables, and the optional static data region
// shared by every task. A sealed program is read-only and may be executed by
// any number of tasks concurrently.
type Program struct {
	code       []Instruction
	functions  *registry.FunctionTable
	types      *registry.TypeTable
	staticData []byte
}

// Functions returns the program's function table.
func (p *Program) Functions() *registry.FunctionTable {
	return p.functions
}

// Types returns the program's type table.
func (p *Program) Types() *registry.TypeTable {
	return p.types
}

// Len returns the number of instructions in the code image.
func (p *Program) Len() int {
	return len(p.code)
}

// InstructionAt returns the instruction at the given cursor.
func (p *Program) InstructionAt(cursor int) Instruction {
	return p.code[cursor]
}

// StaticData returns the shared global data region, or nil when the program
// declares none. Concurrent tasks writing here must be serialized by the
// host.
func (p *Program) StaticData() []byte {
	return p.staticData
}

// Disassemble renders the command text of the whole code image, one slice
// entry per line.
func (p *Program) Disassemble() []string {
	lines := make([]string, 0, len(p.code))
	for _, inst := range p.code {
		inst.Describe(&lines)
	}
	return lines
}

// ProgramBuilder assembles a program from instructions. It is the in-process
// stand-in for the compiler back end: it binds function entries, checks
// operand shapes as instructions are emitted, and validates cross references
// when the program is sealed. All errors are sticky; Seal reports the first.
type ProgramBuilder struct {
	types     *registry.TypeTable
	functions *registry.FunctionTable

	code       []Instruction
	staticSize int
	err        error
}

// NewProgramBuilder creates a builder assembling against the given tables.
func NewProgramBuilder(types *registry.TypeTable, functions *registry.FunctionTable) *ProgramBuilder {
	return &ProgramBuilder{types: types, functions: functions}
}

// SetStaticSize declares the size of the program's shared global data
// region.
func (b *ProgramBuilder) SetStaticSize(size int) {
	if b.err == nil && size < 0 {
		b.err = fmt.Errorf("negative static size %d", size)
		return
	}
	b.staticSize = size
}

// Next returns the cursor the next emitted instruction will occupy.
func (b *ProgramBuilder) Next() int {
	return len(b.code)
}

// BeginFunction binds the entry cursor of a declared script function to the
// next emitted instruction.
func (b *ProgramBuilder) BeginFunction(id registry.FunctionID) {
	if b.err != nil {
		return
	}
	if err := b.functions.BindEntry(id, len(b.code)); err != nil {
		b.err = err
	}
}

// Emit appends an instruction and returns its cursor.
func (b *ProgramBuilder) Emit(inst Instruction) int {
	cursor := len(b.code)
	if b.err == nil {
		if err := b.check(inst); err != nil {
			b.err = fmt.Errorf("instruction %d: %w", cursor, err)
		}
	}
	b.code = append(b.code, inst)
	return cursor
}

// check rejects malformed operand shapes at assembly time, so the engine
// never encounters them.
func (b *ProgramBuilder) check(inst Instruction) error {
	switch c := inst.(type) {
	case nil:
		return fmt.Errorf("nil instruction")
	case *EnterScope:
		if c.DataSize < 0 || c.CodeSize < 0 {
			return fmt.Errorf("negative scope region size")
		}
		if c.ConstructorCount < 0 {
			return fmt.Errorf("negative constructor count")
		}
		for _, sub := range c.AutoRun {
			if ctor, ok := sub.(*ConstructorCall); ok && ctor.Index >= c.ConstructorCount {
				return fmt.Errorf("constructor index %d outside count %d", ctor.Index, c.ConstructorCount)
			}
			if err := b.check(sub); err != nil {
				return err
			}
		}
	case *ExitScope:
		if c.DataSize < 0 || c.CodeSize < 0 {
			return fmt.Errorf("negative scope region size")
		}
		for _, sub := range c.AutoRun {
			if err := b.check(sub); err != nil {
				return err
			}
		}
	case *WriteConstant:
		if len(c.Data) == 0 {
			return fmt.Errorf("empty immediate write")
		}
	case *WriteFromOffset:
		if c.Size < 0 {
			return fmt.Errorf("negative write size")
		}
	case *CopyToRef:
		if c.Size < 0 {
			return fmt.Errorf("negative write size")
		}
	case *CallNative:
		if c.Target == nil {
			return fmt.Errorf("native call %q without a callable", c.FunctionName)
		}
	case *CallNativeWithAssist:
		if c.Target == nil {
			return fmt.Errorf("native call %q without a callable", c.FunctionName)
		}
	case *CallDynamic:
		if c.Target == nil {
			return fmt.Errorf("dynamic call %q without a callable", c.FunctionName)
		}
	case *LoadMember, *LoadMemberRef:
		// Accessor chains are validated structurally at fold time.
	case *ConstructorCall:
		if c.Command == nil {
			return fmt.Errorf("constructor entry without a command")
		}
		return b.check(c.Command)
	case *DestructorCall:
		if c.Command == nil {
			return fmt.Errorf("destructor entry without a command")
		}
		return b.check(c.Command)
	case *Break:
		for _, sub := range c.Commands {
			if err := b.check(sub); err != nil {
				return err
			}
		}
	case *Continue:
		for _, sub := range c.Commands {
			if err := b.check(sub); err != nil {
				return err
			}
		}
	case *ExitFunctionAtReturn:
		for _, sub := range c.Commands {
			if err := b.check(sub); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkTarget validates a jump target against the sealed code image.
func (b *ProgramBuilder) checkTarget(cursor, target int) error {
	if target < 0 || target >= len(b.code) {
		return fmt.Errorf("instruction %d: jump target %d outside program of %d instructions",
			cursor, target, len(b.code))
	}
	return nil
}

// Seal validates cross references and freezes the program. The builder must
// not be reused afterwards.
func (b *ProgramBuilder) Seal() (*Program, error) {
	if b.err != nil {
		return nil, b.err
	}
	for cursor, inst := range b.code {
		var err error
		switch c := inst.(type) {
		case *Jump:
			err = b.checkTarget(cursor, c.Target)
		case *JumpIf:
			err = b.checkTarget(cursor, c.Target)
		case *JumpIfElse:
			if err = b.checkTarget(cursor, c.TargetTrue); err == nil {
				err = b.checkTarget(cursor, c.TargetFalse)
			}
		case *Break:
			err = b.checkTarget(cursor, c.Target)
		case *Continue:
			err = b.checkTarget(cursor, c.Target)
		case *CallScript:
			err = b.checkTarget(cursor, c.Entry)
		case *CallScript2:
			err = b.checkTarget(cursor, c.Entry)
		case *CallScript3:
			err = b.checkTarget(cursor, c.Entry)
		case *CreateLambda:
			err = b.checkTarget(cursor, c.Entry)
		}
		if err != nil {
			return nil, err
		}
	}

	var static []byte
	if b.staticSize > 0 {
		static = make([]byte, b.staticSize)
	}
	return &Program{
		code:       b.code,
		functions:  b.functions,
		types:      b.types,
		staticData: static,
	}, nil
}
