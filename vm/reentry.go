package vm

import (
	"fmt"

	"github.com/VincentPT/ffscript/memory"
	"github.com/VincentPT/ffscript/registry"
)

// ReentrantNativeFunction is implemented by host callables that call back
// into script code. They receive the calling context in addition to the
// uniform result/parameter slots; the reentrant interpretation runs nested
// on the same goroutine and returns when the callee's frame is popped.
type ReentrantNativeFunction interface {
	registry.NativeFunction
	CallWithContext(ctx *Context, result, params []byte) error
}

// ReentrantNativeFunc adapts an ordinary function to
// ReentrantNativeFunction.
type ReentrantNativeFunc func(ctx *Context, result, params []byte) error

// CallWithContext implements ReentrantNativeFunction.
func (f ReentrantNativeFunc) CallWithContext(ctx *Context, result, params []byte) error {
	return f(ctx, result, params)
}

// Call implements the plain protocol; a reentrant callable cannot run
// without a context.
func (f ReentrantNativeFunc) Call(result, params []byte, mem *memory.Memory) error {
	return fmt.Errorf("%w: reentrant callable invoked without a context", ErrHost)
}

// InvokeRuntimeFunction calls a first-class function value from a native
// frame: the result is stored through resultAddr and params is the packed
// argument image. Script and lambda targets run in a nested interpretation
// bounded by the caller's frame depth. The recorded context error, if any,
// is returned.
func (c *Context) InvokeRuntimeFunction(info RuntimeFunctionInfo, resultAddr memory.Address, params []byte) error {
	switch info.Kind {
	case NativeRuntimeFunction:
		fn, err := c.program.Functions().Lookup(registry.FunctionID(info.Entry))
		if err != nil {
			c.fail(err)
			return c.err
		}
		result, ok := c.resolve(resultAddr, fn.ResultSize)
		if !ok {
			return c.err
		}
		if err := fn.Native.Call(result, params, c.mem); err != nil {
			c.fail(fmt.Errorf("%w: %s: %v", ErrHost, fn.Name, err))
		}

	case ScriptRuntimeFunction, LambdaRuntimeFunction:
		depth := c.CallDepth()
		c.pushFrame()
		base := c.CurrentOffset()
		c.lea(base+functionResultSlotOffset, resultAddr)
		c.write(base+functionParamOffset, params)
		if info.Kind == LambdaRuntimeFunction {
			capture, err := c.mem.Capture(info.CaptureID)
			if err != nil {
				c.fail(err)
			} else {
				captureOffset := int(info.CaptureTargetOffset)
				if captureOffset <= 0 {
					captureOffset = functionParamOffset + len(params)
				}
				c.write(base+captureOffset, capture)
			}
		}
		c.jump(int(info.Entry))
		c.runToDepth(depth)

	default:
		c.fail(fmt.Errorf("runtime function value with unknown kind %d", info.Kind))
	}
	return c.err
}
