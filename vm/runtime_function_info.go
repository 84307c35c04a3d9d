package vm

import (
	"encoding/binary"

	"github.com/VincentPT/ffscript/memory"
	"github.com/VincentPT/ffscript/registry"
)

// RuntimeFunctionKind tags the call flavour a runtime function value routes
// to.
type RuntimeFunctionKind int32

const (
	// NativeRuntimeFunction routes to a host callable; Entry is a function
	// table id.
	NativeRuntimeFunction RuntimeFunctionKind = iota
	// ScriptRuntimeFunction routes to script code; Entry is a code cursor.
	ScriptRuntimeFunction
	// LambdaRuntimeFunction routes to script code with a captured
	// environment.
	LambdaRuntimeFunction
)

// RuntimeFunctionInfoSize is the number of activation-memory bytes a runtime
// function value occupies.
const RuntimeFunctionInfoSize = 24

// RuntimeFunctionInfo is the first-class callable value scripts store in
// activation memory. The forwarder instruction reads one and dispatches on
// its kind. Captured lambda data lives in a task-owned capture buffer
// referenced by id; the engine-provided destructor releases it.
type RuntimeFunctionInfo struct {
	Kind                RuntimeFunctionKind
	Entry               int32
	CaptureID           int32
	CaptureSize         int32
	CaptureTargetOffset int32
}

// EncodeRuntimeFunctionInfo writes info into dst, which must hold at least
// RuntimeFunctionInfoSize bytes.
func EncodeRuntimeFunctionInfo(dst []byte, info RuntimeFunctionInfo) {
	binary.NativeEndian.PutUint32(dst[0:], uint32(info.Kind))
	binary.NativeEndian.PutUint32(dst[4:], uint32(info.Entry))
	binary.NativeEndian.PutUint32(dst[8:], uint32(info.CaptureID))
	binary.NativeEndian.PutUint32(dst[12:], uint32(info.CaptureSize))
	binary.NativeEndian.PutUint32(dst[16:], uint32(info.CaptureTargetOffset))
	binary.NativeEndian.PutUint32(dst[20:], 0)
}

// DecodeRuntimeFunctionInfo reads a runtime function value from src.
func DecodeRuntimeFunctionInfo(src []byte) RuntimeFunctionInfo {
	return RuntimeFunctionInfo{
		Kind:                RuntimeFunctionKind(binary.NativeEndian.Uint32(src[0:])),
		Entry:               int32(binary.NativeEndian.Uint32(src[4:])),
		CaptureID:           int32(binary.NativeEndian.Uint32(src[8:])),
		CaptureSize:         int32(binary.NativeEndian.Uint32(src[12:])),
		CaptureTargetOffset: int32(binary.NativeEndian.Uint32(src[16:])),
	}
}

// ReleaseRuntimeFunctionInfo returns the engine-provided destructor for the
// runtime function type. It takes a reference to the value and releases the
// capture buffer backing a lambda's environment. Register it as the
// destructor of the type returned by RegisterRuntimeFunctionType.
func ReleaseRuntimeFunctionInfo() registry.NativeFunction {
	return registry.NativeFunc(func(result, params []byte, mem *memory.Memory) error {
		addr := memory.ReadAddress(params)
		b, err := mem.Resolve(addr, RuntimeFunctionInfoSize)
		if err != nil {
			return err
		}
		info := DecodeRuntimeFunctionInfo(b)
		if info.CaptureID != 0 {
			mem.FreeCapture(info.CaptureID)
		}
		return nil
	})
}

// RegisterRuntimeFunctionType registers the first-class function type and
// its capture-releasing destructor, returning the type id. Programs that
// create lambdas call this once while the tables are being populated.
func RegisterRuntimeFunctionType(types *registry.TypeTable, functions *registry.FunctionTable) (registry.TypeID, error) {
	typeID, err := types.RegisterType("function", RuntimeFunctionInfoSize, memory.AddressSize)
	if err != nil {
		return registry.InvalidTypeID, err
	}
	refID, err := types.RegisterType("ref function", memory.AddressSize, memory.AddressSize)
	if err != nil {
		return registry.InvalidTypeID, err
	}
	voidID, ok := types.Find("void")
	if !ok {
		if voidID, err = types.RegisterType("void", 0, 1); err != nil {
			return registry.InvalidTypeID, err
		}
	}
	dtorID, err := functions.RegisterFunction("_release_function", []registry.TypeID{refID}, voidID, ReleaseRuntimeFunctionInfo())
	if err != nil {
		return registry.InvalidTypeID, err
	}
	if err := types.RegisterDestructor(typeID, dtorID); err != nil {
		return registry.InvalidTypeID, err
	}
	return typeID, nil
}
