package memory

import "encoding/binary"

// Address identifies one byte reachable by a running task. The engine never
// hands out host pointers; an address is a tagged 64-bit scalar instead:
//
//	zero      the null address
//	positive  offset+1 into the task's activation memory
//	negative  -(offset+1) into the program's static data region
//
// Instructions store addresses in activation memory as native-endian 64-bit
// words, so an address survives write/copy instructions like any other value.
type Address int64

// Null is the address no slot points to.
const Null Address = 0

// AddressSize is the number of bytes an address occupies in activation memory.
const AddressSize = 8

// TaskAddress returns the address of the given offset in activation memory.
func TaskAddress(offset int) Address {
	return Address(offset) + 1
}

// StaticAddress returns the address of the given offset in the static region.
func StaticAddress(offset int) Address {
	return -Address(offset) - 1
}

// IsNull reports whether a is the null address.
func (a Address) IsNull() bool {
	return a == Null
}

// Add displaces the address by delta bytes within its region.
func (a Address) Add(delta int) Address {
	switch {
	case a > 0:
		return a + Address(delta)
	case a < 0:
		return a - Address(delta)
	default:
		return Null
	}
}

// ReadAddress decodes an address stored at the beginning of b.
func ReadAddress(b []byte) Address {
	return Address(binary.NativeEndian.Uint64(b))
}

// PutAddress encodes an address at the beginning of b.
func PutAddress(b []byte, a Address) {
	binary.NativeEndian.PutUint64(b, uint64(a))
}
