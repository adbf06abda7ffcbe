package stack

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/QuTech-Delft/squidasm-sub000/qdevice"
	"github.com/QuTech-Delft/squidasm-sub000/sim"
)

func newTestNVQnos(t *testing.T) *Qnos {
	t.Helper()
	ctx := sim.NewContext(sim.NewSimulationKey(42))
	ctx.RegisterNode(0, "alice")
	dev := qdevice.New(ctx, 0, qdevice.NVConfig(3))
	return NewQnos(ctx, 0, dev)
}

func TestElectronStateTransitions(t *testing.T) {
	q := newTestNVQnos(t)
	q.RegisterApp(7, 3)

	// GIVEN a fresh device the electron position is unclaimed
	state, owner := electronStateOf(q)
	assert.Equal(t, electronFree, state)
	assert.Equal(t, -1, owner)

	// WHEN an app claims the comm position it is idle until a qubit lands
	pos, err := q.PhysMem().AllocateComm(7)
	assert.NoError(t, err)
	assert.Equal(t, electronPos, pos)

	state, owner = electronStateOf(q)
	assert.Equal(t, electronIdle, state)
	assert.Equal(t, 7, owner)

	// WHEN the device holds a qubit there the electron is occupied
	q.Device().PutQubit(electronPos, qdevice.NewQubit())
	state, owner = electronStateOf(q)
	assert.Equal(t, electronHolding, state)
	assert.Equal(t, 7, owner)

	// THEN taking the qubit and releasing the claim returns it to free
	q.Device().TakeQubit(electronPos)
	q.PhysMem().Free(electronPos)
	state, owner = electronStateOf(q)
	assert.Equal(t, electronFree, state)
	assert.Equal(t, -1, owner)
}

func TestElectronStateString(t *testing.T) {
	assert.Equal(t, "free", electronFree.String())
	assert.Equal(t, "idle", electronIdle.String())
	assert.Equal(t, "holding", electronHolding.String())
}
