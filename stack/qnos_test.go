package stack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/QuTech-Delft/squidasm-sub000/qdevice"
	"github.com/QuTech-Delft/squidasm-sub000/sim"
)

func newTestQnos(t *testing.T, numQubits int) *Qnos {
	t.Helper()
	ctx := sim.NewContext(sim.NewSimulationKey(42))
	ctx.RegisterNode(0, "alice")
	dev := qdevice.New(ctx, 0, qdevice.GenericConfig(numQubits))
	return NewQnos(ctx, 0, dev)
}

func TestNewQnos_SignalCarriesNodeName(t *testing.T) {
	q := newTestQnos(t, 2)
	assert.Equal(t, "alice_mem_freed", q.MemFreed().Name())
	assert.Equal(t, 0, q.NodeID())
	assert.Equal(t, 2, q.PhysMem().Total())
}

func TestQnos_RegisterAppTwicePanics(t *testing.T) {
	q := newTestQnos(t, 2)
	q.RegisterApp(0, 2)
	assert.True(t, q.HasApp(0))
	assert.Panics(t, func() { q.RegisterApp(0, 2) })
	assert.Panics(t, func() { q.AppMemory(1) })
}

func TestQnos_OpenSocketTwicePanics(t *testing.T) {
	q := newTestQnos(t, 2)
	q.OpenSocket(&EprSocket{AppID: 0, SocketID: 0, RemoteNodeID: 1})
	_, ok := q.Socket(0, 0)
	assert.True(t, ok)
	assert.Panics(t, func() {
		q.OpenSocket(&EprSocket{AppID: 0, SocketID: 0, RemoteNodeID: 1})
	})
}

func TestQnos_MapVirtRejectsCrossAppAliasing(t *testing.T) {
	q := newTestQnos(t, 2)
	q.RegisterApp(0, 2)
	q.RegisterApp(1, 2)
	q.MapVirt(0, 0, 1)
	require.Panics(t, func() { q.MapVirt(1, 0, 1) })
	// Another position is fine.
	q.MapVirt(1, 0, 0)
}
