package stack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppMemory_RegistersLastWriteWins(t *testing.T) {
	m := NewAppMemory(0, 2)
	m.SetReg(R(3), 7)
	m.SetReg(R(3), 11)
	assert.Equal(t, int64(11), m.GetReg(R(3)))
	// Other groups are independent.
	assert.Equal(t, int64(0), m.GetReg(M(3)))
}

func TestAppMemory_RegisterOutOfRangePanics(t *testing.T) {
	m := NewAppMemory(0, 2)
	assert.Panics(t, func() { m.GetReg(Register{Group: RegR, Index: RegsPerGroup}) })
}

func TestAppMemory_ArraySlotsStartUnset(t *testing.T) {
	m := NewAppMemory(0, 2)
	m.InitArray(0, 3)
	require.Equal(t, 3, m.ArrayLen(0))
	for i := 0; i < 3; i++ {
		_, ok := m.GetArrayValue(0, i)
		assert.False(t, ok)
	}
}

func TestAppMemory_SetArrayValueCopiesAndUnsets(t *testing.T) {
	m := NewAppMemory(0, 2)
	m.InitArray(0, 2)

	v := int64(42)
	m.SetArrayValue(0, 1, &v)
	v = 99 // caller mutation MUST not reach the stored slot
	got, ok := m.GetArrayValue(0, 1)
	require.True(t, ok)
	assert.Equal(t, int64(42), got)

	m.SetArrayValue(0, 1, nil)
	_, ok = m.GetArrayValue(0, 1)
	assert.False(t, ok)
}

func TestAppMemory_UndeclaredArrayPanics(t *testing.T) {
	m := NewAppMemory(0, 2)
	assert.Panics(t, func() { m.GetArrayValue(5, 0) })
	m.InitArray(5, 1)
	assert.Panics(t, func() { m.GetArrayValue(5, 1) })
	assert.Panics(t, func() { m.GetArraySlice(5, 0, 2) })
}

func TestAppMemory_RedeclareReplacesArray(t *testing.T) {
	m := NewAppMemory(0, 2)
	m.InitArray(0, 2)
	v := int64(1)
	m.SetArrayValue(0, 0, &v)
	m.InitArray(0, 4)
	assert.Equal(t, 4, m.ArrayLen(0))
	_, ok := m.GetArrayValue(0, 0)
	assert.False(t, ok)
}

func TestAppMemory_QubitMapping(t *testing.T) {
	m := NewAppMemory(0, 3)
	m.MapVirt(1, 4)

	phys, ok := m.PhysIDFor(1)
	require.True(t, ok)
	assert.Equal(t, 4, phys)
	virt, ok := m.VirtIDFor(4)
	require.True(t, ok)
	assert.Equal(t, 1, virt)
	_, ok = m.PhysIDFor(0)
	assert.False(t, ok)

	// Double-mapping a virtual id is a fault.
	assert.Panics(t, func() { m.MapVirt(1, 2) })

	m.UnmapVirt(1)
	_, ok = m.PhysIDFor(1)
	assert.False(t, ok)
	assert.Equal(t, []int{-1, -1, -1}, m.QubitMapping())
}

func TestAppMemory_SnapshotIsDetachedCopy(t *testing.T) {
	m := NewAppMemory(7, 2)
	m.SetReg(M(0), 1)
	m.InitArray(0, 2)
	v := int64(5)
	m.SetArrayValue(0, 0, &v)
	m.MapVirt(0, 3)

	snap := m.Snapshot()
	assert.Equal(t, 7, snap.AppID)
	assert.Equal(t, int64(1), snap.Register(M(0)))
	assert.Equal(t, []int{3, -1}, snap.Qubits)
	got := snap.ArraySlice(0, 0, 1)
	require.NotNil(t, got[0])
	assert.Equal(t, int64(5), *got[0])

	// Later writes MUST not leak into the snapshot.
	m.SetReg(M(0), 9)
	m.UnmapVirt(0)
	assert.Equal(t, int64(1), snap.Register(M(0)))
	assert.Equal(t, []int{3, -1}, snap.Qubits)
}
