package memory

import "encoding/binary"

// Scalar helpers for hosts and tests that exchange fixed-width values with
// activation memory. The engine itself moves opaque bytes; these helpers fix
// the native-endian encoding both sides agree on.

// ReadInt32 decodes a 32-bit integer from the beginning of b.
func ReadInt32(b []byte) int32 {
	return int32(binary.NativeEndian.Uint32(b))
}

// PutInt32 encodes a 32-bit integer at the beginning of b.
func PutInt32(b []byte, v int32) {
	binary.NativeEndian.PutUint32(b, uint32(v))
}

// ReadInt64 decodes a 64-bit integer from the beginning of b.
func ReadInt64(b []byte) int64 {
	return int64(binary.NativeEndian.Uint64(b))
}

// PutInt64 encodes a 64-bit integer at the beginning of b.
func PutInt64(b []byte, v int64) {
	binary.NativeEndian.PutUint64(b, uint64(v))
}

// Int32Image returns the byte image of a 32-bit integer.
func Int32Image(v int32) []byte {
	b := make([]byte, 4)
	PutInt32(b, v)
	return b
}

// Int64Image returns the byte image of a 64-bit integer.
func Int64Image(v int64) []byte {
	b := make([]byte, 8)
	PutInt64(b, v)
	return b
}
