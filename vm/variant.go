package vm

import (
	"encoding/binary"
	"fmt"

	"github.com/VincentPT/ffscript/memory"
	"github.com/VincentPT/ffscript/registry"
)

// Binary layout of a packed variant array in activation memory: an address
// slot pointing at the array, a 32-bit element count, then one fixed-size
// record per element.
const (
	variantArrayHeaderSize = 4
	variantElemSize        = 16
)

// DynamicParam describes one argument of a dynamic call: where it lives in
// the caller's frame and how the host should interpret it.
type DynamicParam struct {
	SourceOffset int
	Type         registry.TypeID
	Size         int
}

// CallDynamic invokes a host callable that takes a variable argument list.
// Before the call the engine packs the argument descriptors into a variant
// array in the scratch area after the parameter slot, and passes the array's
// address as the single parameter.
type CallDynamic struct {
	CallNative
	Params []DynamicParam
}

func (c *CallDynamic) Execute(ctx *Context) {
	base := ctx.CurrentOffset()

	need := memory.AddressSize + variantArrayHeaderSize + len(c.Params)*variantElemSize
	if !ctx.mem.PrepareWrite(base+c.BeginParamOffset, need) {
		ctx.fail(fmt.Errorf("%w: variant array of %d bytes does not fit",
			memory.ErrOutOfMemory, need))
		return
	}

	arrayOffset := base + c.BeginParamOffset + memory.AddressSize
	header, ok := ctx.bytes(arrayOffset, variantArrayHeaderSize)
	if !ok {
		return
	}
	binary.NativeEndian.PutUint32(header, uint32(len(c.Params)))

	for i, p := range c.Params {
		elem, ok := ctx.bytes(arrayOffset+variantArrayHeaderSize+i*variantElemSize, variantElemSize)
		if !ok {
			return
		}
		binary.NativeEndian.PutUint32(elem[0:], uint32(p.Type))
		binary.NativeEndian.PutUint32(elem[4:], uint32(p.Size))
		memory.PutAddress(elem[8:], memory.TaskAddress(base+p.SourceOffset))
	}

	if !ctx.lea(base+c.BeginParamOffset, memory.TaskAddress(arrayOffset)) {
		return
	}
	c.CallNative.Execute(ctx)
}

func (c *CallDynamic) Describe(lines *[]string) {
	c.CallNative.Describe(lines)
}

// Variant is the host-side view of one packed dynamic argument.
type Variant struct {
	Type registry.TypeID
	Size int
	Data []byte
}

// DecodeVariantArray unpacks the variant array a dynamic call passed to a
// host callable. params is the callable's parameter block; its single entry
// is the address of the array.
func DecodeVariantArray(params []byte, mem *memory.Memory) ([]Variant, error) {
	if len(params) < memory.AddressSize {
		return nil, fmt.Errorf("%w: parameter block too small for a variant array",
			memory.ErrInvalidAddress)
	}
	addr := memory.ReadAddress(params)
	header, err := mem.Resolve(addr, variantArrayHeaderSize)
	if err != nil {
		return nil, err
	}
	count := int(binary.NativeEndian.Uint32(header))
	body, err := mem.Resolve(addr.Add(variantArrayHeaderSize), count*variantElemSize)
	if err != nil {
		return nil, err
	}

	out := make([]Variant, 0, count)
	for i := 0; i < count; i++ {
		elem := body[i*variantElemSize:]
		v := Variant{
			Type: registry.TypeID(binary.NativeEndian.Uint32(elem[0:])),
			Size: int(binary.NativeEndian.Uint32(elem[4:])),
		}
		data, err := mem.Resolve(memory.ReadAddress(elem[8:]), v.Size)
		if err != nil {
			return nil, err
		}
		v.Data = data
		out = append(out, v)
	}
	return out, nil
}
