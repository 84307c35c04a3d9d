// Package registry holds the flat symbol tables a compiled program is built
// from: script types with their constructor/destructor lists, and the
// function table mapping numeric ids to script entry points or host
// callables. The engine references entries by id only.
package registry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/VincentPT/ffscript/memory"
)

// ErrUnknownFunction is reported when a function id or name is not
// registered.
var ErrUnknownFunction = errors.New("unknown function")

// FunctionID identifies a registered function.
type FunctionID int

// InvalidFunctionID is returned by failed lookups.
const InvalidFunctionID FunctionID = -1

// FunctionKind distinguishes host callables from script functions.
type FunctionKind int

const (
	// NativeFunctionKind marks a function implemented by the host.
	NativeFunctionKind FunctionKind = iota
	// ScriptFunctionKind marks a function whose body is an instruction
	// sequence inside the program image.
	ScriptFunctionKind
)

// NativeFunction is the uniform call protocol every host callable implements.
// The engine resolves the result slot and the parameter block to byte slices
// aliasing the calling task's activation memory; they are valid only for the
// duration of the call. Reference parameters arrive as addresses stored
// inside params; mem resolves them.
//
// A returned error sets the calling task's error flag and unwinds the script
// through its destructors.
type NativeFunction interface {
	Call(result, params []byte, mem *memory.Memory) error
}

// NativeFunc adapts an ordinary function to the NativeFunction protocol.
type NativeFunc func(result, params []byte, mem *memory.Memory) error

// Call implements NativeFunction.
func (f NativeFunc) Call(result, params []byte, mem *memory.Memory) error {
	return f(result, params, mem)
}

// Function is one entry of the function table.
type Function struct {
	ID   FunctionID
	Name string
	Kind FunctionKind

	ParamTypes []TypeID
	ReturnType TypeID

	// ParamSize and ResultSize are the packed byte sizes derived from the
	// signature at registration time.
	ParamSize  int
	ResultSize int

	// Native is set for NativeFunctionKind entries.
	Native NativeFunction

	// Entry is the code cursor of the first instruction for
	// ScriptFunctionKind entries. It is -1 until the producer binds it.
	Entry int
}

// FunctionTable holds every registered function, native and script.
type FunctionTable struct {
	types  *TypeTable
	funcs  []*Function
	byName map[string]FunctionID
}

// NewFunctionTable creates an empty function table resolving signatures
// against the given type table.
func NewFunctionTable(types *TypeTable) *FunctionTable {
	return &FunctionTable{
		types:  types,
		byName: make(map[string]FunctionID),
	}
}

// Types returns the type table signatures are resolved against.
func (ft *FunctionTable) Types() *TypeTable {
	return ft.types
}

func (ft *FunctionTable) register(name string, kind FunctionKind, paramTypes []TypeID, returnType TypeID, native NativeFunction) (FunctionID, error) {
	paramSize := 0
	for _, pt := range paramTypes {
		size, err := ft.types.SizeOf(pt)
		if err != nil {
			return InvalidFunctionID, fmt.Errorf("register %q: %w", name, err)
		}
		paramSize += size
	}
	resultSize, err := ft.types.SizeOf(returnType)
	if err != nil {
		return InvalidFunctionID, fmt.Errorf("register %q: %w", name, err)
	}

	id := FunctionID(len(ft.funcs))
	fn := &Function{
		ID:         id,
		Name:       name,
		Kind:       kind,
		ParamTypes: append([]TypeID(nil), paramTypes...),
		ReturnType: returnType,
		ParamSize:  paramSize,
		ResultSize: resultSize,
		Native:     native,
		Entry:      -1,
	}
	ft.funcs = append(ft.funcs, fn)
	if _, taken := ft.byName[strings.ToLower(name)]; !taken {
		ft.byName[strings.ToLower(name)] = id
	}
	return id, nil
}

// RegisterFunction registers a host callable under name and returns its id.
func (ft *FunctionTable) RegisterFunction(name string, paramTypes []TypeID, returnType TypeID, callable NativeFunction) (FunctionID, error) {
	if callable == nil {
		return InvalidFunctionID, fmt.Errorf("register %q: nil callable", name)
	}
	return ft.register(name, NativeFunctionKind, paramTypes, returnType, callable)
}

// DeclareScriptFunction registers a script function signature. Its entry
// cursor is bound later by the producer via BindEntry.
func (ft *FunctionTable) DeclareScriptFunction(name string, paramTypes []TypeID, returnType TypeID) (FunctionID, error) {
	return ft.register(name, ScriptFunctionKind, paramTypes, returnType, nil)
}

// BindEntry records the code cursor of a script function's first
// instruction.
func (ft *FunctionTable) BindEntry(id FunctionID, entry int) error {
	fn, err := ft.Lookup(id)
	if err != nil {
		return err
	}
	if fn.Kind != ScriptFunctionKind {
		return fmt.Errorf("function %q is not a script function", fn.Name)
	}
	if entry < 0 {
		return fmt.Errorf("function %q: negative entry %d", fn.Name, entry)
	}
	fn.Entry = entry
	return nil
}

// Lookup returns the function registered under id.
func (ft *FunctionTable) Lookup(id FunctionID) (*Function, error) {
	if id < 0 || int(id) >= len(ft.funcs) {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownFunction, id)
	}
	return ft.funcs[id], nil
}

// Find returns the id of the first function registered under name.
func (ft *FunctionTable) Find(name string) (FunctionID, bool) {
	id, ok := ft.byName[strings.ToLower(name)]
	return id, ok
}

// Len returns the number of registered functions.
func (ft *FunctionTable) Len() int {
	return len(ft.funcs)
}
