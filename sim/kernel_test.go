package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext_Schedule_RunsEventsInTimeOrder(t *testing.T) {
	// GIVEN events scheduled out of order
	ctx := NewContext(SimulationKey(1))
	var order []int64
	ctx.Schedule(30, func() { order = append(order, 30) })
	ctx.Schedule(10, func() { order = append(order, 10) })
	ctx.Schedule(20, func() { order = append(order, 20) })

	// WHEN the simulation runs
	require.NoError(t, ctx.Run())

	// THEN events MUST execute in timestamp order
	assert.Equal(t, []int64{10, 20, 30}, order)
}

func TestContext_Schedule_SameTimeKeepsInsertionOrder(t *testing.T) {
	// GIVEN several events at the same timestamp
	ctx := NewContext(SimulationKey(1))
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		ctx.Schedule(100, func() { order = append(order, i) })
	}

	// WHEN the simulation runs
	require.NoError(t, ctx.Run())

	// THEN ties MUST break by insertion sequence
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestContext_Run_ClockFollowsEvents(t *testing.T) {
	ctx := NewContext(SimulationKey(1))
	var at int64
	ctx.Schedule(500, func() { at = ctx.Now() })
	require.NoError(t, ctx.Run())
	assert.Equal(t, int64(500), at)
	assert.Equal(t, int64(500), ctx.Now())
}

func TestTask_Sleep_AdvancesOnlySimulatedTime(t *testing.T) {
	// GIVEN a task that sleeps twice
	ctx := NewContext(SimulationKey(1))
	var wakes []int64
	ctx.Spawn("sleeper", func(task *Task) {
		task.Sleep(100)
		wakes = append(wakes, ctx.Now())
		task.Sleep(250)
		wakes = append(wakes, ctx.Now())
	})

	// WHEN the simulation runs
	require.NoError(t, ctx.Run())

	// THEN the task MUST wake at the cumulative sleep times
	assert.Equal(t, []int64{100, 350}, wakes)
}

func TestTask_Panic_FailsTheRun(t *testing.T) {
	// GIVEN a task that hits a programming-error-class fault
	ctx := NewContext(SimulationKey(1))
	ctx.Spawn("broken", func(task *Task) {
		panic("array @7 was never declared")
	})

	// WHEN the simulation runs
	err := ctx.Run()

	// THEN the run MUST fail with the panic surfaced as an error
	require.Error(t, err)
	assert.Contains(t, err.Error(), "never declared")
}

func TestPort_SendRecv_DeliversAfterLatency(t *testing.T) {
	// GIVEN a port pair with a 700ns one-way latency
	ctx := NewContext(SimulationKey(1))
	a, b := NewPortPair(ctx, "ab", 700)

	var recvAt int64
	var got any
	ctx.Spawn("receiver", func(task *Task) {
		got = b.Recv(task)
		recvAt = ctx.Now()
	})
	ctx.Spawn("sender", func(task *Task) {
		task.Sleep(100)
		a.Send("ping")
	})

	// WHEN the simulation runs
	require.NoError(t, ctx.Run())

	// THEN the message MUST arrive latency after the send
	assert.Equal(t, "ping", got)
	assert.Equal(t, int64(800), recvAt)
}

func TestPort_Recv_PreservesFIFOOrder(t *testing.T) {
	ctx := NewContext(SimulationKey(1))
	a, b := NewPortPair(ctx, "ab", 10)

	var got []any
	ctx.Spawn("receiver", func(task *Task) {
		for i := 0; i < 3; i++ {
			got = append(got, b.Recv(task))
		}
	})
	ctx.Spawn("sender", func(task *Task) {
		a.Send(1)
		a.Send(2)
		a.Send(3)
	})

	require.NoError(t, ctx.Run())
	assert.Equal(t, []any{1, 2, 3}, got)
}

func TestPort_TryRecv_DoesNotBlock(t *testing.T) {
	ctx := NewContext(SimulationKey(1))
	a, b := NewPortPair(ctx, "ab", 0)

	var first, second bool
	ctx.Spawn("poller", func(task *Task) {
		_, first = b.TryRecv()
		task.Sleep(50)
		_, second = b.TryRecv()
	})
	ctx.Spawn("sender", func(task *Task) {
		task.Sleep(10)
		a.Send("late")
	})

	require.NoError(t, ctx.Run())
	assert.False(t, first)
	assert.True(t, second)
}

func TestSignal_Fire_WakesAllWaiters(t *testing.T) {
	// GIVEN two tasks parked on the same signal
	ctx := NewContext(SimulationKey(1))
	sig := NewSignal(ctx, "freed")

	var wokeAt []int64
	for i := 0; i < 2; i++ {
		ctx.Spawn("waiter", func(task *Task) {
			sig.Wait(task)
			wokeAt = append(wokeAt, ctx.Now())
		})
	}
	ctx.Spawn("firer", func(task *Task) {
		task.Sleep(300)
		sig.Fire()
	})

	// WHEN the simulation runs
	require.NoError(t, ctx.Run())

	// THEN both waiters MUST wake at the fire time
	assert.Equal(t, []int64{300, 300}, wokeAt)
}

func TestSignal_Fire_WithNoWaitersIsLost(t *testing.T) {
	// GIVEN a fire before anyone waits
	ctx := NewContext(SimulationKey(1))
	sig := NewSignal(ctx, "freed")

	woke := false
	ctx.Spawn("firer", func(task *Task) {
		sig.Fire()
	})
	ctx.Spawn("late_waiter", func(task *Task) {
		task.Sleep(10)
		sig.Wait(task)
		woke = true
	})

	// WHEN the simulation runs out of events
	require.NoError(t, ctx.Run())

	// THEN the late waiter MUST still be parked; fires are not queued
	assert.False(t, woke)
}

func TestContext_RegisterNode_ResolvesBothWays(t *testing.T) {
	ctx := NewContext(SimulationKey(1))
	ctx.RegisterNode(0, "alice")
	ctx.RegisterNode(1, "bob")

	name, ok := ctx.NodeName(1)
	require.True(t, ok)
	assert.Equal(t, "bob", name)

	id, ok := ctx.NodeID("alice")
	require.True(t, ok)
	assert.Equal(t, 0, id)

	_, ok = ctx.NodeName(7)
	assert.False(t, ok)
}
