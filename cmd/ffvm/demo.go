package main

import (
	"sync/atomic"

	"github.com/VincentPT/ffscript/memory"
	"github.com/VincentPT/ffscript/registry"
	"github.com/VincentPT/ffscript/vm"
)

// lifecycleCounters observe the registered constructor and destructor. The
// demo runs tasks in parallel, so the counters are atomic; the engine itself
// never synchronizes native calls.
type lifecycleCounters struct {
	constructed atomic.Int64
	destroyed   atomic.Int64
}

// buildDemoProgram registers an int type with a counting constructor and
// destructor, then assembles the instruction stream a compiler front end
// would emit for
//
//	int accumulate(int n) { int ret = n; return ret; }
func buildDemoProgram() (*vm.Program, registry.FunctionID, *lifecycleCounters, error) {
	counters := &lifecycleCounters{}

	types := registry.NewTypeTable()
	intID, err := types.RegisterType("int", 4, 4)
	if err != nil {
		return nil, 0, nil, err
	}
	refIntID, err := types.RegisterType("ref int", memory.AddressSize, memory.AddressSize)
	if err != nil {
		return nil, 0, nil, err
	}
	voidID, err := types.RegisterType("void", 0, 1)
	if err != nil {
		return nil, 0, nil, err
	}

	functions := registry.NewFunctionTable(types)

	ctor := registry.NativeFunc(func(result, params []byte, mem *memory.Memory) error {
		target, err := mem.Resolve(memory.ReadAddress(params), 4)
		if err != nil {
			return err
		}
		memory.PutInt32(target, 0)
		counters.constructed.Add(1)
		return nil
	})
	ctorID, err := functions.RegisterFunction("DefaultInteger", []registry.TypeID{refIntID}, voidID, ctor)
	if err != nil {
		return nil, 0, nil, err
	}
	if err := types.RegisterConstructor(intID, ctorID); err != nil {
		return nil, 0, nil, err
	}

	dtor := registry.NativeFunc(func(result, params []byte, mem *memory.Memory) error {
		counters.destroyed.Add(1)
		return nil
	})
	dtorID, err := functions.RegisterFunction("ReleaseInteger", []registry.TypeID{refIntID}, voidID, dtor)
	if err != nil {
		return nil, 0, nil, err
	}
	if err := types.RegisterDestructor(intID, dtorID); err != nil {
		return nil, 0, nil, err
	}

	ctorFn, _ := functions.Lookup(ctorID)
	dtorFn, _ := functions.Lookup(dtorID)

	fnID, err := functions.DeclareScriptFunction("accumulate", []registry.TypeID{intID}, intID)
	if err != nil {
		return nil, 0, nil, err
	}

	// Frame layout: [0,8) return address, [8,12) n, [12,16) ret, then an
	// 8-byte code region at 16 holding the constructor's reference
	// parameter.
	const (
		paramN    = 8
		localRet  = 12
		scratch   = 16
		dataSize  = 16
		codeSize  = 8
		ctorCount = 1
	)

	b := vm.NewProgramBuilder(types, functions)
	b.BeginFunction(fnID)
	b.Emit(&vm.EnterScope{
		DataSize:         dataSize,
		CodeSize:         codeSize,
		ConstructorCount: ctorCount,
		AutoRun: []vm.Instruction{
			&vm.ConstructorCall{Index: 0, Command: &vm.CallNativeWithAssist{
				CallNative: vm.CallNative{
					FunctionName:     ctorFn.Name,
					ResultOffset:     scratch,
					ResultSize:       0,
					BeginParamOffset: scratch,
					ParamSize:        memory.AddressSize,
					Target:           ctorFn.Native,
				},
				Pairs: []vm.AssistPair{{SourceOffset: localRet, PointerOffset: scratch}},
			}},
		},
	})
	b.Emit(&vm.WriteFromOffset{SourceOffset: paramN, Size: 4, TargetOffset: localRet})
	b.Emit(&vm.CopyToRef{SourceOffset: localRet, Size: 4, TargetRefOffset: 0})
	b.Emit(&vm.ExitFunctionAtReturn{ElideIndex: 0})
	b.Emit(&vm.ExitScope{
		DataSize:   dataSize,
		CodeSize:   codeSize,
		ElideIndex: -1,
		AutoRun: []vm.Instruction{
			&vm.DestructorCall{Index: 0, Command: &vm.CallNativeWithAssist{
				CallNative: vm.CallNative{
					FunctionName:     dtorFn.Name,
					ResultOffset:     scratch,
					ResultSize:       0,
					BeginParamOffset: scratch,
					ParamSize:        memory.AddressSize,
					Target:           dtorFn.Native,
				},
				Pairs: []vm.AssistPair{{SourceOffset: localRet, PointerOffset: scratch}},
			}},
		},
	})
	b.Emit(&vm.ExitFunctionAtEnd{})

	program, err := b.Seal()
	if err != nil {
		return nil, 0, nil, err
	}
	return program, fnID, counters, nil
}
