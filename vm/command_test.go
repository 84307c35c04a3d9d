package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VincentPT/ffscript/memory"
	"github.com/VincentPT/ffscript/registry"
)

// buildStraightProgram assembles a void function running the given body
// instructions inside one scope, and returns the sealed program with the
// function id.
func buildStraightProgram(t *testing.T, f *engineFixture, dataSize, codeSize int, body ...Instruction) (*Program, registry.FunctionID) {
	t.Helper()
	fnID, err := f.functions.DeclareScriptFunction("test", nil, f.voidID)
	require.NoError(t, err)

	b := NewProgramBuilder(f.types, f.functions)
	b.BeginFunction(fnID)
	b.Emit(&EnterScope{DataSize: dataSize, CodeSize: codeSize})
	for _, inst := range body {
		b.Emit(inst)
	}
	b.Emit(&ExitScope{DataSize: dataSize, CodeSize: codeSize, ElideIndex: -1})
	b.Emit(&ExitFunctionAtEnd{})
	return f.seal(t, b), fnID
}

// TestDataMovement covers immediate writes, offset-to-offset copies, and
// writing through a stored address.
func TestDataMovement(t *testing.T) {
	f := newEngineFixture(t)

	var observed int32
	probe := f.registerNative(t, "Probe", []registry.TypeID{f.refIntID}, f.voidID,
		func(result, params []byte, mem *memory.Memory) error {
			target, err := mem.Resolve(memory.ReadAddress(params), 4)
			if err != nil {
				return err
			}
			observed = memory.ReadInt32(target)
			return nil
		})

	// Frame: [0,8) return address, [8,12) a, [12,16) b, [16,24) ref slot,
	// scratch at 24.
	program, fnID := buildStraightProgram(t, f, 24, 8,
		&WriteConstant{Data: memory.Int32Image(41), TargetOffset: 8},
		&WriteFromOffset{SourceOffset: 8, Size: 4, TargetOffset: 12},
		&LeaOffsetToOffset{SourceOffset: 12, TargetOffset: 16},
		// *(&b) = 42 through the stored address.
		&WriteConstant{Data: memory.Int32Image(42), TargetOffset: 8},
		&CopyToRef{SourceOffset: 8, Size: 4, TargetRefOffset: 16},
		refCall(probe, 24, 12),
	)

	task := NewTask(program, 1024)
	require.NoError(t, task.RunFunction(fnID, nil))
	assert.Equal(t, int32(42), observed)
}

// TestAddressOfRoundTrip is the address-of / dereference round trip: copying
// a slot through its own stored address leaves it unchanged.
func TestAddressOfRoundTrip(t *testing.T) {
	f := newEngineFixture(t)

	var observed int32
	probe := f.registerNative(t, "Probe", []registry.TypeID{f.refIntID}, f.voidID,
		func(result, params []byte, mem *memory.Memory) error {
			target, err := mem.Resolve(memory.ReadAddress(params), 4)
			if err != nil {
				return err
			}
			observed = memory.ReadInt32(target)
			return nil
		})

	program, fnID := buildStraightProgram(t, f, 24, 8,
		&WriteConstant{Data: memory.Int32Image(1234), TargetOffset: 8},
		&LeaOffsetToOffset{SourceOffset: 8, TargetOffset: 16},
		&CopyToRef{SourceOffset: 8, Size: 4, TargetRefOffset: 16},
		refCall(probe, 24, 8),
	)

	task := NewTask(program, 1024)
	require.NoError(t, task.RunFunction(fnID, nil))
	assert.Equal(t, int32(1234), observed)
}

// TestMemberAccessorChain walks a struct member through a pointer: the chain
// context-base, offset, deref, offset yields the member's address.
func TestMemberAccessorChain(t *testing.T) {
	f := newEngineFixture(t)

	// Frame: [0,8) return address, [8,16) pointer to the struct, [16,24)
	// struct { int32 a; int32 b; }, [24,28) loaded copy of b, [28,36)
	// loaded address of b.
	program, fnID := buildStraightProgram(t, f, 36, 0,
		&WriteConstant{Data: memory.Int32Image(7), TargetOffset: 16},
		&WriteConstant{Data: memory.Int32Image(9), TargetOffset: 20},
		&LeaOffsetToOffset{SourceOffset: 16, TargetOffset: 8},
		&LoadMember{
			Accessors: []MemberAccessor{
				ContextBaseAccessor(),
				OffsetAccessor(8),
				DerefAccessor(),
				OffsetAccessor(4),
			},
			Size:         4,
			TargetOffset: 24,
		},
		&LoadMemberRef{
			Accessors: []MemberAccessor{
				ContextBaseAccessor(),
				OffsetAccessor(8),
				DerefAccessor(),
				OffsetAccessor(4),
			},
			TargetOffset: 28,
		},
		// Write 11 through the loaded address; the struct member changes.
		&WriteConstant{Data: memory.Int32Image(11), TargetOffset: 24},
		&CopyToRef{SourceOffset: 24, Size: 4, TargetRefOffset: 28},
	)

	task := NewTask(program, 1024)
	require.NoError(t, task.RunFunction(fnID, nil))

	// The function frame base sits after the synthetic caller region, which
	// holds no result and no parameters here.
	frame, err := task.Memory().Bytes(0, 36)
	require.NoError(t, err)
	assert.Equal(t, int32(11), memory.ReadInt32(frame[20:]))
}

// TestGlobalAccessorReachesStaticRegion reads and writes program globals
// through the static address space.
func TestGlobalAccessorReachesStaticRegion(t *testing.T) {
	f := newEngineFixture(t)
	fnID, err := f.functions.DeclareScriptFunction("test", nil, f.voidID)
	require.NoError(t, err)

	// Frame: [0,8) return address, [8,12) local copy, [16,24) address slot.
	b := NewProgramBuilder(f.types, f.functions)
	b.SetStaticSize(16)
	b.BeginFunction(fnID)
	b.Emit(&EnterScope{DataSize: 24, CodeSize: 0})
	b.Emit(&LoadMember{
		Accessors:    []MemberAccessor{GlobalAccessor(memory.StaticAddress(4))},
		Size:         4,
		TargetOffset: 8,
	})
	b.Emit(&LeaAddressToOffset{Source: memory.StaticAddress(8), TargetOffset: 16})
	b.Emit(&CopyToRef{SourceOffset: 8, Size: 4, TargetRefOffset: 16})
	b.Emit(&ExitScope{DataSize: 24, CodeSize: 0, ElideIndex: -1})
	b.Emit(&ExitFunctionAtEnd{})
	program := f.seal(t, b)

	memory.PutInt32(program.StaticData()[4:], 31)

	task := NewTask(program, 1024)
	require.NoError(t, task.RunFunction(fnID, nil))

	frame, err := task.Memory().Bytes(0, 24)
	require.NoError(t, err)
	assert.Equal(t, int32(31), memory.ReadInt32(frame[8:]), "global read into the frame")
	assert.Equal(t, int32(31), memory.ReadInt32(program.StaticData()[8:]), "frame written back to a global")
}

// TestDisassemblyGrammar checks the command text of representative
// instructions against the debugger text protocol.
func TestDisassemblyGrammar(t *testing.T) {
	f := newEngineFixture(t)
	probe := f.registerNative(t, "Probe", []registry.TypeID{f.refIntID}, f.voidID,
		func(result, params []byte, mem *memory.Memory) error { return nil })

	fnID, err := f.functions.DeclareScriptFunction("test", nil, f.voidID)
	require.NoError(t, err)

	b := NewProgramBuilder(f.types, f.functions)
	b.BeginFunction(fnID)
	b.Emit(&EnterScope{DataSize: 12, CodeSize: 8})
	b.Emit(&WriteConstant{Data: memory.Int32Image(1), TargetOffset: 8})
	b.Emit(&WriteFromOffset{SourceOffset: 8, Size: 4, TargetOffset: 12})
	b.Emit(&LeaOffsetToOffset{SourceOffset: 8, TargetOffset: 12})
	b.Emit(refCall(probe, 12, 8))
	b.Emit(&Jump{Target: 0})
	b.Emit(&JumpIf{ConditionOffset: 8, Target: 0})
	b.Emit(&JumpIfElse{ConditionOffset: 8, TargetTrue: 0, TargetFalse: 1})
	b.Emit(&ExitFunctionAtReturn{ElideIndex: 0})
	b.Emit(&ExitScope{DataSize: 12, CodeSize: 8, ElideIndex: -1})
	b.Emit(&ExitFunctionAtEnd{})
	program := f.seal(t, b)

	lines := program.Disassemble()
	assert.Equal(t, []string{
		"allocate(20) - enter scope",
		"write(0x1, 4, [8])",
		"write([8], 4, [12])",
		"lea([8], [12])",
		"invoke(Probe, [12], 8, [12])",
		"jmp(0)",
		"jmp([8], 0)",
		"jmp([8], 0, 1)",
		"ignore_dtor(0)",
		"unallocate(20) - exit scope",
		"return()",
	}, lines)
}

// TestScopeBalance verifies that a nested run leaves the scope and call
// stacks empty, the trace-level pairing invariant.
func TestScopeBalance(t *testing.T) {
	f := newEngineFixture(t)
	program, fnID := buildIfElseProgram(t, f)

	task := NewTask(program, 1024)
	for _, p := range []int32{0, 1, 2, 3} {
		require.NoError(t, task.RunFunction(fnID, NewParamBuffer().PushInt32(p)))
		assert.Equal(t, 0, task.ctx.ScopeDepth())
		assert.Equal(t, 0, task.ctx.CallDepth())
		assert.Equal(t, 8, task.Memory().Top(), "only the synthetic caller region stays allocated")
	}
}
