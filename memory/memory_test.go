package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateAndUnallocate(t *testing.T) {
	m := New(64, nil)
	require.NoError(t, m.Allocate(16, 8))
	assert.Equal(t, 24, m.Top())
	require.NoError(t, m.Allocate(32, 8))
	assert.Equal(t, 64, m.Top())

	err := m.Allocate(1, 0)
	assert.ErrorIs(t, err, ErrOutOfMemory)
	assert.Equal(t, 64, m.Top(), "a failed allocation must not move the top")

	m.Unallocate(32, 8)
	m.Unallocate(16, 8)
	assert.Equal(t, 0, m.Top())

	allocs, frees := m.AllocationStats()
	assert.Equal(t, 2, allocs)
	assert.Equal(t, 2, frees)
}

func TestWriteBounds(t *testing.T) {
	m := New(16, nil)
	require.NoError(t, m.Write(8, []byte{1, 2, 3, 4}))

	err := m.Write(14, []byte{1, 2, 3, 4})
	assert.ErrorIs(t, err, ErrInvalidAddress)

	err = m.Write(-1, []byte{1})
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestAddressSpaces(t *testing.T) {
	static := make([]byte, 8)
	PutInt32(static[4:], 77)
	m := New(32, static)

	// Task space round trip.
	require.NoError(t, m.Lea(0, TaskAddress(16)))
	addr, err := m.AddressAt(0)
	require.NoError(t, err)
	require.NoError(t, m.Write(16, Int32Image(42)))
	b, err := m.Resolve(addr, 4)
	require.NoError(t, err)
	assert.Equal(t, int32(42), ReadInt32(b))

	// Static space.
	b, err = m.Resolve(StaticAddress(4), 4)
	require.NoError(t, err)
	assert.Equal(t, int32(77), ReadInt32(b))

	// Displacement stays within the region.
	assert.Equal(t, StaticAddress(6), StaticAddress(4).Add(2))
	assert.Equal(t, TaskAddress(18), TaskAddress(16).Add(2))

	// Null and out-of-range addresses fail.
	_, err = m.Resolve(Null, 4)
	assert.ErrorIs(t, err, ErrNullDereference)
	_, err = m.Resolve(TaskAddress(30), 4)
	assert.ErrorIs(t, err, ErrInvalidAddress)
	_, err = m.Resolve(StaticAddress(6), 4)
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestCaptureBuffers(t *testing.T) {
	m := New(16, nil)
	id := m.AllocateCapture([]byte{1, 2, 3})
	other := m.AllocateCapture([]byte{4})
	assert.NotEqual(t, id, other)
	assert.Equal(t, 2, m.LiveCaptures())

	buf, err := m.Capture(id)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, buf)

	m.FreeCapture(id)
	assert.Equal(t, 1, m.LiveCaptures())
	_, err = m.Capture(id)
	assert.ErrorIs(t, err, ErrUnknownCapture)

	// Double release is a no-op.
	m.FreeCapture(id)
	assert.Equal(t, 1, m.LiveCaptures())

	m.Reset()
	assert.Equal(t, 0, m.LiveCaptures())
	assert.Equal(t, 0, m.Top())
}

func TestResolveAliasesBuffer(t *testing.T) {
	m := New(16, nil)
	b, err := m.Resolve(TaskAddress(4), 4)
	require.NoError(t, err)
	PutInt32(b, 9)

	direct, err := m.Bytes(4, 4)
	require.NoError(t, err)
	assert.Equal(t, int32(9), ReadInt32(direct), "resolved slices alias the buffer")
}
