package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/VincentPT/ffscript/memory"
	"github.com/VincentPT/ffscript/registry"
)

// engineFixture registers the basic types and counting lifecycle functions
// the execution tests assemble programs against.
type engineFixture struct {
	types     *registry.TypeTable
	functions *registry.FunctionTable

	intID, refIntID   registry.TypeID
	longID, refLongID registry.TypeID
	boolID, refBoolID registry.TypeID
	voidID            registry.TypeID

	ctorCount int
	dtorCount int
	copyCount int
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	f := &engineFixture{types: registry.NewTypeTable()}

	mustType := func(name string, size int) registry.TypeID {
		id, err := f.types.RegisterType(name, size, size)
		require.NoError(t, err)
		return id
	}
	f.intID = mustType("int", 4)
	f.refIntID = mustType("ref int", memory.AddressSize)
	f.longID = mustType("long", 8)
	f.refLongID = mustType("ref long", memory.AddressSize)
	f.boolID = mustType("bool", 1)
	f.refBoolID = mustType("ref bool", memory.AddressSize)
	id, err := f.types.RegisterType("void", 0, 1)
	require.NoError(t, err)
	f.voidID = id

	f.functions = registry.NewFunctionTable(f.types)
	return f
}

// registerNative registers a host callable and returns its table entry.
func (f *engineFixture) registerNative(t *testing.T, name string, params []registry.TypeID, ret registry.TypeID, fn registry.NativeFunc) *registry.Function {
	t.Helper()
	id, err := f.functions.RegisterFunction(name, params, ret, fn)
	require.NoError(t, err)
	entry, err := f.functions.Lookup(id)
	require.NoError(t, err)
	return entry
}

// registerIntConstructor registers a counting constructor writing value into
// its target.
func (f *engineFixture) registerIntConstructor(t *testing.T, name string, value int32) *registry.Function {
	t.Helper()
	fn := f.registerNative(t, name, []registry.TypeID{f.refIntID}, f.voidID,
		func(result, params []byte, mem *memory.Memory) error {
			target, err := mem.Resolve(memory.ReadAddress(params), 4)
			if err != nil {
				return err
			}
			memory.PutInt32(target, value)
			f.ctorCount++
			return nil
		})
	ctorID, _ := f.functions.Find(name)
	require.NoError(t, f.types.RegisterConstructor(f.intID, ctorID))
	return fn
}

// registerIntDestructor registers a counting destructor.
func (f *engineFixture) registerIntDestructor(t *testing.T, name string) *registry.Function {
	t.Helper()
	fn := f.registerNative(t, name, []registry.TypeID{f.refIntID}, f.voidID,
		func(result, params []byte, mem *memory.Memory) error {
			f.dtorCount++
			return nil
		})
	dtorID, _ := f.functions.Find(name)
	require.NoError(t, f.types.RegisterDestructor(f.intID, dtorID))
	return fn
}

// registerIntCopyConstructor registers a counting copy constructor assigning
// the source to the target.
func (f *engineFixture) registerIntCopyConstructor(t *testing.T, name string) *registry.Function {
	t.Helper()
	return f.registerNative(t, name, []registry.TypeID{f.refIntID, f.refIntID}, f.voidID,
		func(result, params []byte, mem *memory.Memory) error {
			target, err := mem.Resolve(memory.ReadAddress(params), 4)
			if err != nil {
				return err
			}
			source, err := mem.Resolve(memory.ReadAddress(params[memory.AddressSize:]), 4)
			if err != nil {
				return err
			}
			copy(target, source)
			f.copyCount++
			return nil
		})
}

// refCall builds a native call whose parameters are the addresses of the
// given frame slots, materialized into the scratch area the way the compiler
// lays out constructor and operator invocations.
func refCall(fn *registry.Function, scratch int, sourceOffsets ...int) *CallNativeWithAssist {
	pairs := make([]AssistPair, len(sourceOffsets))
	for i, src := range sourceOffsets {
		pairs[i] = AssistPair{SourceOffset: src, PointerOffset: scratch + i*memory.AddressSize}
	}
	return &CallNativeWithAssist{
		CallNative: CallNative{
			FunctionName:     fn.Name,
			ResultOffset:     scratch,
			ResultSize:       0,
			BeginParamOffset: scratch,
			ParamSize:        len(sourceOffsets) * memory.AddressSize,
			Target:           fn.Native,
		},
		Pairs: pairs,
	}
}

func (f *engineFixture) resetCounters() {
	f.ctorCount = 0
	f.dtorCount = 0
	f.copyCount = 0
}

func (f *engineFixture) seal(t *testing.T, b *ProgramBuilder) *Program {
	t.Helper()
	program, err := b.Seal()
	require.NoError(t, err)
	return program
}
