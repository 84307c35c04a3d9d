// Package memory implements the per-task activation memory of the script
// engine: a fixed-size byte buffer addressed by signed offsets, a two-region
// scope allocator driven by the enter/exit scope instructions, and the heap
// buffers backing lambda captures.
package memory

import "fmt"

// Memory is the activation memory owned by a single task. It is not safe for
// concurrent use; tasks never share activation memory.
type Memory struct {
	buf    []byte
	top    int
	static []byte

	captures    map[int32][]byte
	nextCapture int32

	allocs int
	frees  int
}

// New creates an activation memory of size bytes. The static slice, when not
// nil, is the program's shared global data region; it is referenced, not
// copied.
func New(size int, static []byte) *Memory {
	return &Memory{
		buf:      make([]byte, size),
		static:   static,
		captures: make(map[int32][]byte),
	}
}

// Size returns the capacity of the activation buffer.
func (m *Memory) Size() int {
	return len(m.buf)
}

// Top returns the current allocation top. The next scope or call frame starts
// here.
func (m *Memory) Top() int {
	return m.top
}

// Reset drops every allocation and capture buffer, preparing the memory for
// the next run of the owning task.
func (m *Memory) Reset() {
	m.top = 0
	m.captures = make(map[int32][]byte)
	m.allocs = 0
	m.frees = 0
}

// Allocate extends the current scope by a data region followed by a code
// region. It fails with ErrOutOfMemory when the regions do not fit; the top
// is left unchanged in that case.
func (m *Memory) Allocate(dataBytes, codeBytes int) error {
	if dataBytes < 0 || codeBytes < 0 {
		return fmt.Errorf("%w: negative region size", ErrInvalidAddress)
	}
	if m.top+dataBytes+codeBytes > len(m.buf) {
		return fmt.Errorf("%w: need %d bytes, %d available",
			ErrOutOfMemory, dataBytes+codeBytes, len(m.buf)-m.top)
	}
	m.top += dataBytes + codeBytes
	m.allocs++
	return nil
}

// Unallocate restores the top prior to the paired Allocate call.
func (m *Memory) Unallocate(dataBytes, codeBytes int) {
	m.top -= dataBytes + codeBytes
	if m.top < 0 {
		m.top = 0
	}
	m.frees++
}

// AllocationStats returns how many scope regions were allocated and released
// since the last Reset.
func (m *Memory) AllocationStats() (allocs, frees int) {
	return m.allocs, m.frees
}

// PrepareWrite reports whether size bytes starting at offset lie inside the
// activation buffer.
func (m *Memory) PrepareWrite(offset, size int) bool {
	return offset >= 0 && size >= 0 && offset+size <= len(m.buf)
}

// Bytes returns the activation bytes [offset, offset+size) without copying.
// The slice aliases the buffer and stays valid for the lifetime of the task.
func (m *Memory) Bytes(offset, size int) ([]byte, error) {
	if !m.PrepareWrite(offset, size) {
		return nil, fmt.Errorf("%w: [%d,%d) outside activation memory of %d bytes",
			ErrInvalidAddress, offset, offset+size, len(m.buf))
	}
	return m.buf[offset : offset+size : offset+size], nil
}

// Write copies src into the activation buffer at offset.
func (m *Memory) Write(offset int, src []byte) error {
	dst, err := m.Bytes(offset, len(src))
	if err != nil {
		return err
	}
	copy(dst, src)
	return nil
}

// Lea stores an address as a pointer-sized value at offset.
func (m *Memory) Lea(offset int, addr Address) error {
	dst, err := m.Bytes(offset, AddressSize)
	if err != nil {
		return err
	}
	PutAddress(dst, addr)
	return nil
}

// AddressAt reads the address stored at offset.
func (m *Memory) AddressAt(offset int) (Address, error) {
	src, err := m.Bytes(offset, AddressSize)
	if err != nil {
		return Null, err
	}
	return ReadAddress(src), nil
}

// Resolve maps an address to the size bytes it names. Task addresses resolve
// into the activation buffer, static addresses into the program's static
// region. The returned slice aliases the underlying region.
func (m *Memory) Resolve(addr Address, size int) ([]byte, error) {
	switch {
	case addr.IsNull():
		return nil, ErrNullDereference
	case addr > 0:
		return m.Bytes(int(addr)-1, size)
	default:
		offset := int(-addr) - 1
		if size < 0 || offset+size > len(m.static) {
			return nil, fmt.Errorf("%w: [%d,%d) outside static region of %d bytes",
				ErrInvalidAddress, offset, offset+size, len(m.static))
		}
		return m.static[offset : offset+size : offset+size], nil
	}
}

// AllocateCapture copies data into a fresh heap buffer and returns its id.
// Capture buffers back lambda environments; they live until FreeCapture or
// the next Reset.
func (m *Memory) AllocateCapture(data []byte) int32 {
	m.nextCapture++
	buf := make([]byte, len(data))
	copy(buf, data)
	m.captures[m.nextCapture] = buf
	return m.nextCapture
}

// Capture returns the capture buffer registered under id.
func (m *Memory) Capture(id int32) ([]byte, error) {
	buf, ok := m.captures[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownCapture, id)
	}
	return buf, nil
}

// FreeCapture releases the capture buffer registered under id. Releasing an
// unknown id is a no-op: a runtime function value may be copied between
// slots, and only the first destructor finds the buffer live.
func (m *Memory) FreeCapture(id int32) {
	delete(m.captures, id)
}

// LiveCaptures returns the number of capture buffers not yet released.
func (m *Memory) LiveCaptures() int {
	return len(m.captures)
}
