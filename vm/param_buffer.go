package vm

import (
	"encoding/binary"
	"math"

	"github.com/VincentPT/ffscript/memory"
)

// ParamBuffer collects the arguments for a task run as one packed byte
// image. The bytes are copied into the callee's parameter region at launch;
// the buffer can be reused afterwards. The task trusts the buffer to match
// the target function's signature, exactly as compiled call sites do.
type ParamBuffer struct {
	data []byte
}

// NewParamBuffer creates an empty parameter buffer.
func NewParamBuffer() *ParamBuffer {
	return &ParamBuffer{}
}

// PushBytes appends a raw byte image.
func (p *ParamBuffer) PushBytes(b []byte) *ParamBuffer {
	p.data = append(p.data, b...)
	return p
}

// PushInt32 appends a 32-bit integer.
func (p *ParamBuffer) PushInt32(v int32) *ParamBuffer {
	p.data = binary.NativeEndian.AppendUint32(p.data, uint32(v))
	return p
}

// PushInt64 appends a 64-bit integer.
func (p *ParamBuffer) PushInt64(v int64) *ParamBuffer {
	p.data = binary.NativeEndian.AppendUint64(p.data, uint64(v))
	return p
}

// PushFloat64 appends a 64-bit float.
func (p *ParamBuffer) PushFloat64(v float64) *ParamBuffer {
	p.data = binary.NativeEndian.AppendUint64(p.data, math.Float64bits(v))
	return p
}

// PushBool appends a one-byte boolean.
func (p *ParamBuffer) PushBool(v bool) *ParamBuffer {
	var b byte
	if v {
		b = 1
	}
	p.data = append(p.data, b)
	return p
}

// PushAddress appends a pointer-sized address.
func (p *ParamBuffer) PushAddress(a memory.Address) *ParamBuffer {
	p.data = binary.NativeEndian.AppendUint64(p.data, uint64(a))
	return p
}

// Size returns the packed size in bytes.
func (p *ParamBuffer) Size() int {
	return len(p.data)
}

// Bytes returns the packed image.
func (p *ParamBuffer) Bytes() []byte {
	if p == nil {
		return nil
	}
	return p.data
}
