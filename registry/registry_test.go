package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VincentPT/ffscript/memory"
)

func newTables(t *testing.T) (*TypeTable, *FunctionTable, TypeID, TypeID, TypeID) {
	t.Helper()
	types := NewTypeTable()
	intID, err := types.RegisterType("int", 4, 4)
	require.NoError(t, err)
	refIntID, err := types.RegisterType("ref int", memory.AddressSize, memory.AddressSize)
	require.NoError(t, err)
	voidID, err := types.RegisterType("void", 0, 1)
	require.NoError(t, err)
	return types, NewFunctionTable(types), intID, refIntID, voidID
}

func TestRegisterTypeRejectsDuplicates(t *testing.T) {
	types, _, _, _, _ := newTables(t)
	_, err := types.RegisterType("INT", 4, 4)
	assert.Error(t, err, "type names are case insensitive")
}

func TestTypeLookup(t *testing.T) {
	types, _, intID, _, _ := newTables(t)

	typ, err := types.Lookup(intID)
	require.NoError(t, err)
	assert.Equal(t, "int", typ.Name)
	assert.Equal(t, 4, typ.Size)

	id, ok := types.Find("Int")
	assert.True(t, ok)
	assert.Equal(t, intID, id)

	_, err = types.Lookup(TypeID(99))
	assert.Error(t, err)
}

func TestConstructorDestructorLists(t *testing.T) {
	types, functions, intID, refIntID, voidID := newTables(t)

	noop := NativeFunc(func(result, params []byte, mem *memory.Memory) error { return nil })
	ctorID, err := functions.RegisterFunction("DefaultInteger", []TypeID{refIntID}, voidID, noop)
	require.NoError(t, err)
	dtorID, err := functions.RegisterFunction("UninitInteger", []TypeID{refIntID}, voidID, noop)
	require.NoError(t, err)

	require.NoError(t, types.RegisterConstructor(intID, ctorID))
	require.NoError(t, types.RegisterDestructor(intID, dtorID))

	assert.Equal(t, []FunctionID{ctorID}, types.Constructors(intID))
	assert.Equal(t, []FunctionID{dtorID}, types.Destructors(intID))

	assert.Error(t, types.RegisterConstructor(TypeID(42), ctorID))
}

func TestFunctionSignatureSizes(t *testing.T) {
	_, functions, intID, refIntID, _ := newTables(t)

	noop := NativeFunc(func(result, params []byte, mem *memory.Memory) error { return nil })
	id, err := functions.RegisterFunction("mix", []TypeID{intID, refIntID}, intID, noop)
	require.NoError(t, err)

	fn, err := functions.Lookup(id)
	require.NoError(t, err)
	assert.Equal(t, 4+memory.AddressSize, fn.ParamSize)
	assert.Equal(t, 4, fn.ResultSize)
	assert.Equal(t, NativeFunctionKind, fn.Kind)
}

func TestScriptFunctionEntryBinding(t *testing.T) {
	_, functions, intID, _, _ := newTables(t)

	id, err := functions.DeclareScriptFunction("test", []TypeID{intID}, intID)
	require.NoError(t, err)

	fn, err := functions.Lookup(id)
	require.NoError(t, err)
	assert.Equal(t, -1, fn.Entry, "entry is unbound until the producer binds it")

	require.NoError(t, functions.BindEntry(id, 7))
	assert.Equal(t, 7, fn.Entry)

	assert.Error(t, functions.BindEntry(id, -2))
}

func TestBindEntryRejectsNativeFunctions(t *testing.T) {
	_, functions, intID, _, _ := newTables(t)
	noop := NativeFunc(func(result, params []byte, mem *memory.Memory) error { return nil })
	id, err := functions.RegisterFunction("native", nil, intID, noop)
	require.NoError(t, err)
	assert.Error(t, functions.BindEntry(id, 0))
}

func TestUnknownFunctionLookup(t *testing.T) {
	_, functions, _, _, _ := newTables(t)
	_, err := functions.Lookup(FunctionID(3))
	assert.ErrorIs(t, err, ErrUnknownFunction)

	_, ok := functions.Find("missing")
	assert.False(t, ok)
}

func TestFindReturnsFirstRegistration(t *testing.T) {
	_, functions, intID, _, _ := newTables(t)
	noop := NativeFunc(func(result, params []byte, mem *memory.Memory) error { return nil })
	first, err := functions.RegisterFunction("dup", nil, intID, noop)
	require.NoError(t, err)
	_, err = functions.RegisterFunction("dup", nil, intID, noop)
	require.NoError(t, err)

	id, ok := functions.Find("dup")
	assert.True(t, ok)
	assert.Equal(t, first, id)
}
