package vm

import (
	"fmt"

	"github.com/VincentPT/ffscript/memory"
	"github.com/VincentPT/ffscript/registry"
)

// A script function frame starts with the return-address slot, followed by
// the parameters copied from the caller, followed by the callee's locals.
const (
	functionResultSlotOffset = 0
	functionParamOffset      = memory.AddressSize
)

// CallNative invokes a host callable following the uniform protocol: result
// slot first, then the parameter block, both resolved to absolute positions
// in the calling task's activation memory. The task is never suspended.
type CallNative struct {
	FunctionName     string
	ResultOffset     int
	ResultSize       int
	BeginParamOffset int
	ParamSize        int
	Target           registry.NativeFunction
}

func (c *CallNative) Execute(ctx *Context) {
	base := ctx.CurrentOffset()
	result, ok := ctx.bytes(base+c.ResultOffset, c.ResultSize)
	if !ok {
		return
	}
	params, ok := ctx.bytes(base+c.BeginParamOffset, c.ParamSize)
	if !ok {
		return
	}
	var err error
	if reentrant, ok := c.Target.(ReentrantNativeFunction); ok {
		err = reentrant.CallWithContext(ctx, result, params)
	} else {
		err = c.Target.Call(result, params, ctx.mem)
	}
	if err != nil {
		ctx.fail(fmt.Errorf("%w: %s: %v", ErrHost, c.FunctionName, err))
	}
}

func (c *CallNative) Describe(lines *[]string) {
	*lines = append(*lines, fmt.Sprintf("invoke(%s, [%d], %d, [%d])",
		c.FunctionName, c.BeginParamOffset, c.ParamSize, c.ResultOffset))
}

// AssistPair directs the engine to materialize the absolute address of a
// frame slot into a pointer slot before a native call, so host reference
// parameters see a stable address for the duration of the call.
type AssistPair struct {
	SourceOffset  int
	PointerOffset int
}

// CallNativeWithAssist is CallNative preceded by address materialization for
// reference parameters.
type CallNativeWithAssist struct {
	CallNative
	Pairs []AssistPair
}

func (c *CallNativeWithAssist) Execute(ctx *Context) {
	base := ctx.CurrentOffset()
	for _, pair := range c.Pairs {
		if !ctx.lea(base+pair.PointerOffset, memory.TaskAddress(base+pair.SourceOffset)) {
			return
		}
	}
	c.CallNative.Execute(ctx)
}

func (c *CallNativeWithAssist) Describe(lines *[]string) {
	c.CallNative.Describe(lines)
}

// CallScript invokes a script function with the result-at-top protocol: the
// callee's frame starts with its result slot, parameters follow, and the
// caller consumes the result afterwards through RetrieveFunctionResult.
type CallScript struct {
	FunctionName     string
	ResultSize       int
	BeginParamOffset int
	ParamSize        int
	Entry            int
}

func (c *CallScript) Execute(ctx *Context) {
	base := ctx.CurrentOffset()
	params, ok := ctx.bytes(base+c.BeginParamOffset, c.ParamSize)
	if !ok {
		return
	}
	ctx.pushFrame()
	calleeBase := ctx.CurrentOffset()
	ctx.write(calleeBase+c.ResultSize, params)
	ctx.jump(c.Entry)
}

func (c *CallScript) Describe(lines *[]string) {
	*lines = append(*lines, fmt.Sprintf("invoke(%s, [%d], %d, [0])",
		c.FunctionName, c.BeginParamOffset, c.ParamSize))
}

// CallScript2 invokes a script function with the result-by-address protocol:
// the caller's result slot address is written into the callee's reserved
// return-address slot, and the callee stores its result through it.
type CallScript2 struct {
	FunctionName     string
	ResultOffset     int
	BeginParamOffset int
	ParamSize        int
	Entry            int
}

func (c *CallScript2) Execute(ctx *Context) {
	base := ctx.CurrentOffset()
	resultAddr := memory.TaskAddress(base + c.ResultOffset)
	params, ok := ctx.bytes(base+c.BeginParamOffset, c.ParamSize)
	if !ok {
		return
	}
	ctx.pushFrame()
	calleeBase := ctx.CurrentOffset()
	ctx.lea(calleeBase+functionResultSlotOffset, resultAddr)
	ctx.write(calleeBase+functionParamOffset, params)
	ctx.jump(c.Entry)
}

func (c *CallScript2) Describe(lines *[]string) {
	*lines = append(*lines, fmt.Sprintf("invoke(%s, [%d], %d, [%d])",
		c.FunctionName, c.BeginParamOffset, c.ParamSize, c.ResultOffset))
}

// CallScript3 is CallScript2 followed by an immediate nested interpretation
// of the callee. It is used when a native frame reenters script code: the
// nested loop returns to the host once the callee's frame is popped.
type CallScript3 struct {
	CallScript2
}

func (c *CallScript3) Execute(ctx *Context) {
	depth := ctx.CallDepth()
	c.CallScript2.Execute(ctx)
	if ctx.CallDepth() == depth {
		// The callee frame was never pushed; nothing to interpret.
		return
	}
	ctx.runToDepth(depth)
}

// CallLambda is CallScript3 with a captured environment: after the
// parameters, the capture bytes are copied into the callee frame at the
// compiler-assigned offset.
type CallLambda struct {
	CallScript2
	CaptureData         []byte
	CaptureTargetOffset int
}

func (c *CallLambda) Execute(ctx *Context) {
	depth := ctx.CallDepth()
	c.CallScript2.Execute(ctx)
	if ctx.CallDepth() == depth {
		return
	}
	calleeBase := ctx.CurrentOffset()
	captureOffset := c.CaptureTargetOffset
	if captureOffset <= 0 {
		captureOffset = functionParamOffset + c.ParamSize
	}
	ctx.write(calleeBase+captureOffset, c.CaptureData)
	ctx.runToDepth(depth)
}

func (c *CallLambda) Describe(lines *[]string) {
	*lines = append(*lines, fmt.Sprintf("invoke(%s, [%d], %d, [%d])",
		c.FunctionName, c.BeginParamOffset, c.ParamSize, c.ResultOffset))
}

// Forwarder calls through a first-class function value: it reads a runtime
// function value from a frame slot and dispatches on its kind to native,
// script, or lambda handling.
type Forwarder struct {
	InfoOffset       int
	ResultOffset     int
	ResultSize       int
	BeginParamOffset int
	ParamSize        int
}

func (c *Forwarder) Execute(ctx *Context) {
	base := ctx.CurrentOffset()
	infoBytes, ok := ctx.bytes(base+c.InfoOffset, RuntimeFunctionInfoSize)
	if !ok {
		return
	}
	info := DecodeRuntimeFunctionInfo(infoBytes)

	switch info.Kind {
	case NativeRuntimeFunction:
		fn, err := ctx.program.Functions().Lookup(registry.FunctionID(info.Entry))
		if err != nil {
			ctx.fail(err)
			return
		}
		if fn.Native == nil {
			ctx.fail(fmt.Errorf("%w: %s has no callable", registry.ErrUnknownFunction, fn.Name))
			return
		}
		call := CallNative{
			FunctionName:     fn.Name,
			ResultOffset:     c.ResultOffset,
			ResultSize:       c.ResultSize,
			BeginParamOffset: c.BeginParamOffset,
			ParamSize:        c.ParamSize,
			Target:           fn.Native,
		}
		call.Execute(ctx)

	case ScriptRuntimeFunction:
		call := CallScript3{CallScript2{
			FunctionName:     "function",
			ResultOffset:     c.ResultOffset,
			BeginParamOffset: c.BeginParamOffset,
			ParamSize:        c.ParamSize,
			Entry:            int(info.Entry),
		}}
		call.Execute(ctx)

	case LambdaRuntimeFunction:
		capture, err := ctx.mem.Capture(info.CaptureID)
		if err != nil {
			ctx.fail(err)
			return
		}
		call := CallLambda{
			CallScript2: CallScript2{
				FunctionName:     "lambda",
				ResultOffset:     c.ResultOffset,
				BeginParamOffset: c.BeginParamOffset,
				ParamSize:        c.ParamSize,
				Entry:            int(info.Entry),
			},
			CaptureData:         capture,
			CaptureTargetOffset: int(info.CaptureTargetOffset),
		}
		call.Execute(ctx)

	default:
		ctx.fail(fmt.Errorf("runtime function value with unknown kind %d", info.Kind))
	}
}

func (c *Forwarder) Describe(lines *[]string) {
	*lines = append(*lines, fmt.Sprintf("call([%d], [%d], %d, [%d])",
		c.InfoOffset, c.BeginParamOffset, c.ParamSize, c.ResultOffset))
}

// CreateLambda captures a byte range of the current frame into a fresh
// capture buffer and writes a runtime function value into the result slot.
// The capture buffer is released by the destructor of the runtime function
// type when the owning slot is destroyed.
type CreateLambda struct {
	ResultOffset        int
	SourceDataOffset    int
	DataSize            int
	Entry               int
	CaptureTargetOffset int
}

func (c *CreateLambda) Execute(ctx *Context) {
	base := ctx.CurrentOffset()
	dst, ok := ctx.bytes(base+c.ResultOffset, RuntimeFunctionInfoSize)
	if !ok {
		return
	}
	info := RuntimeFunctionInfo{
		Kind:                ScriptRuntimeFunction,
		Entry:               int32(c.Entry),
		CaptureTargetOffset: int32(c.CaptureTargetOffset),
	}
	if c.DataSize > 0 {
		data, ok := ctx.bytes(base+c.SourceDataOffset, c.DataSize)
		if !ok {
			return
		}
		info.Kind = LambdaRuntimeFunction
		info.CaptureID = ctx.mem.AllocateCapture(data)
		info.CaptureSize = int32(c.DataSize)
	}
	EncodeRuntimeFunctionInfo(dst, info)
}

func (c *CreateLambda) Describe(lines *[]string) {
	*lines = append(*lines, fmt.Sprintf("lambda(%d, [%d], %d, [%d])",
		c.Entry, c.SourceDataOffset, c.DataSize, c.ResultOffset))
}
