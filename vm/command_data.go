package vm

import (
	"fmt"

	"github.com/VincentPT/ffscript/memory"
)

// immediateHex renders up to the first eight bytes of an immediate operand
// as the lowercase hex literal used throughout the disassembly.
func immediateHex(data []byte) string {
	var v uint64
	n := len(data)
	if n > 8 {
		n = 8
	}
	for i := n - 1; i >= 0; i-- {
		v = v<<8 | uint64(data[i])
	}
	return fmt.Sprintf("0x%x", v)
}

// WriteConstant copies an immediate byte image into a frame slot.
type WriteConstant struct {
	Data         []byte
	TargetOffset int
}

func (c *WriteConstant) Execute(ctx *Context) {
	ctx.write(ctx.CurrentOffset()+c.TargetOffset, c.Data)
}

func (c *WriteConstant) Describe(lines *[]string) {
	*lines = append(*lines, fmt.Sprintf("write(%s, %d, [%d])", immediateHex(c.Data), len(c.Data), c.TargetOffset))
}

// WriteFromOffset copies bytes between two frame slots.
type WriteFromOffset struct {
	SourceOffset int
	Size         int
	TargetOffset int
}

func (c *WriteFromOffset) Execute(ctx *Context) {
	base := ctx.CurrentOffset()
	src, ok := ctx.bytes(base+c.SourceOffset, c.Size)
	if !ok {
		return
	}
	ctx.write(base+c.TargetOffset, src)
}

func (c *WriteFromOffset) Describe(lines *[]string) {
	*lines = append(*lines, fmt.Sprintf("write([%d], %d, [%d])", c.SourceOffset, c.Size, c.TargetOffset))
}

// CopyToRef writes a frame slot through the address stored in another slot:
// the target slot holds an address, and the source bytes are copied to
// whatever it points at.
type CopyToRef struct {
	SourceOffset    int
	Size            int
	TargetRefOffset int
}

func (c *CopyToRef) Execute(ctx *Context) {
	base := ctx.CurrentOffset()
	src, ok := ctx.bytes(base+c.SourceOffset, c.Size)
	if !ok {
		return
	}
	addr, err := ctx.mem.AddressAt(base + c.TargetRefOffset)
	if err != nil {
		ctx.fail(err)
		return
	}
	dst, ok := ctx.resolve(addr, c.Size)
	if !ok {
		return
	}
	copy(dst, src)
}

func (c *CopyToRef) Describe(lines *[]string) {
	*lines = append(*lines, fmt.Sprintf("write([%d], %d, |[%d]|)", c.SourceOffset, c.Size, c.TargetRefOffset))
}

// LeaOffsetToOffset stores the address of one frame slot into another.
type LeaOffsetToOffset struct {
	SourceOffset int
	TargetOffset int
}

func (c *LeaOffsetToOffset) Execute(ctx *Context) {
	base := ctx.CurrentOffset()
	ctx.lea(base+c.TargetOffset, memory.TaskAddress(base+c.SourceOffset))
}

func (c *LeaOffsetToOffset) Describe(lines *[]string) {
	*lines = append(*lines, fmt.Sprintf("lea([%d], [%d])", c.SourceOffset, c.TargetOffset))
}

// LeaAddressToOffset stores a fixed address into a frame slot.
type LeaAddressToOffset struct {
	Source       memory.Address
	TargetOffset int
}

func (c *LeaAddressToOffset) Execute(ctx *Context) {
	ctx.lea(ctx.CurrentOffset()+c.TargetOffset, c.Source)
}

func (c *LeaAddressToOffset) Describe(lines *[]string) {
	*lines = append(*lines, fmt.Sprintf("lea(0x%x, [%d])", uint64(c.Source), c.TargetOffset))
}

// LeaOffsetToAddress stores the address of a frame slot at a fixed address.
type LeaOffsetToAddress struct {
	SourceOffset int
	Target       memory.Address
}

func (c *LeaOffsetToAddress) Execute(ctx *Context) {
	base := ctx.CurrentOffset()
	dst, ok := ctx.resolve(c.Target, memory.AddressSize)
	if !ok {
		return
	}
	memory.PutAddress(dst, memory.TaskAddress(base+c.SourceOffset))
}

func (c *LeaOffsetToAddress) Describe(lines *[]string) {
	*lines = append(*lines, fmt.Sprintf("lea([%d], 0x%x)", c.SourceOffset, uint64(c.Target)))
}

// LeaAddressToAddress stores one fixed address at another.
type LeaAddressToAddress struct {
	Source memory.Address
	Target memory.Address
}

func (c *LeaAddressToAddress) Execute(ctx *Context) {
	dst, ok := ctx.resolve(c.Target, memory.AddressSize)
	if !ok {
		return
	}
	memory.PutAddress(dst, c.Source)
}

func (c *LeaAddressToAddress) Describe(lines *[]string) {
	*lines = append(*lines, fmt.Sprintf("lea(0x%x, 0x%x)", uint64(c.Source), uint64(c.Target)))
}

// LoadMember evaluates an accessor chain and copies the pointed-to bytes
// into a frame slot.
type LoadMember struct {
	Accessors    []MemberAccessor
	Size         int
	TargetOffset int
}

func (c *LoadMember) Execute(ctx *Context) {
	addr, err := foldAccessors(ctx, c.Accessors)
	if err != nil {
		ctx.fail(err)
		return
	}
	src, ok := ctx.resolve(addr, c.Size)
	if !ok {
		return
	}
	ctx.write(ctx.CurrentOffset()+c.TargetOffset, src)
}

func (c *LoadMember) Describe(lines *[]string) {
	describeAccessors(c.Accessors, lines)
	*lines = append(*lines, fmt.Sprintf("write(REGISTER, [%d])", c.TargetOffset))
}

// LoadMemberRef evaluates an accessor chain and stores the resulting address
// into a frame slot.
type LoadMemberRef struct {
	Accessors    []MemberAccessor
	TargetOffset int
}

func (c *LoadMemberRef) Execute(ctx *Context) {
	addr, err := foldAccessors(ctx, c.Accessors)
	if err != nil {
		ctx.fail(err)
		return
	}
	ctx.lea(ctx.CurrentOffset()+c.TargetOffset, addr)
}

func (c *LoadMemberRef) Describe(lines *[]string) {
	describeAccessors(c.Accessors, lines)
	*lines = append(*lines, fmt.Sprintf("lea(REGISTER, [%d])", c.TargetOffset))
}

// RetrieveFunctionResult copies the result of the most recent result-at-top
// script call into a frame slot. The callee left its result at the current
// allocation top, where its frame began.
type RetrieveFunctionResult struct {
	Size         int
	TargetOffset int
}

func (c *RetrieveFunctionResult) Execute(ctx *Context) {
	resultOffset := ctx.CurrentOffset() + ctx.CurrentScopeSize()
	src, ok := ctx.bytes(resultOffset, c.Size)
	if !ok {
		return
	}
	ctx.write(ctx.CurrentOffset()+c.TargetOffset, src)
}

func (c *RetrieveFunctionResult) Describe(lines *[]string) {
	*lines = append(*lines, fmt.Sprintf("write([function_result], %d, [%d])", c.Size, c.TargetOffset))
}
