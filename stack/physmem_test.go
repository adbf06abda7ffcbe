package stack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhysicalQuantumMemory_AllocateLowestFreeFirst(t *testing.T) {
	p := NewPhysicalQuantumMemory(3, []int{0})

	for want := 0; want < 3; want++ {
		pos, err := p.Allocate(0)
		require.NoError(t, err)
		assert.Equal(t, want, pos)
	}
	_, err := p.Allocate(0)
	assert.ErrorIs(t, err, ErrAllocExhausted)

	// Freeing reopens the position for the next allocation.
	p.Free(1)
	pos, err := p.Allocate(1)
	require.NoError(t, err)
	assert.Equal(t, 1, pos)
}

func TestPhysicalQuantumMemory_CommAndStorageAreDisjoint(t *testing.T) {
	// GIVEN an NV-like layout: position 0 comm, the rest storage
	p := NewPhysicalQuantumMemory(3, []int{0})
	assert.True(t, p.IsComm(0))
	assert.False(t, p.IsComm(1))

	// WHEN comm and storage positions are claimed
	comm, err := p.AllocateComm(0)
	require.NoError(t, err)
	assert.Equal(t, 0, comm)
	_, err = p.AllocateComm(0)
	assert.ErrorIs(t, err, ErrAllocExhausted)

	s1, err := p.AllocateStorage(0)
	require.NoError(t, err)
	s2, err := p.AllocateStorage(0)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, []int{s1, s2})

	// THEN storage exhaustion MUST not touch the comm position
	_, err = p.AllocateStorage(0)
	assert.ErrorIs(t, err, ErrAllocExhausted)
}

func TestPhysicalQuantumMemory_OwnershipTracking(t *testing.T) {
	p := NewPhysicalQuantumMemory(4, []int{0, 1})
	mustAlloc := func(appID int) int {
		pos, err := p.Allocate(appID)
		require.NoError(t, err)
		return pos
	}
	a := mustAlloc(0)
	b := mustAlloc(1)
	c := mustAlloc(0)

	owner, ok := p.Owner(b)
	require.True(t, ok)
	assert.Equal(t, 1, owner)
	assert.Equal(t, []int{a, c}, p.PositionsOf(0))
	assert.True(t, p.IsAllocated(a))

	p.Free(a)
	assert.False(t, p.IsAllocated(a))
	assert.Equal(t, []int{c}, p.PositionsOf(0))
	_, ok = p.Owner(a)
	assert.False(t, ok)
}

func TestPhysicalQuantumMemory_FreeUnallocatedPanics(t *testing.T) {
	p := NewPhysicalQuantumMemory(2, []int{0})
	assert.Panics(t, func() { p.Free(0) })
}
