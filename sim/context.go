package sim

import (
	"container/heap"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Context owns the simulated clock, the event loop and everything global to a
// single simulation run: the node-id↔name registry and the partitioned RNG.
// It is constructed once per run, passed by reference to every component
// constructor, and discarded when the run ends.
type Context struct {
	clock int64
	seq   int64
	queue eventQueue
	rng   *PartitionedRNG

	tasks []*Task
	err   error

	nodeNames map[int]string
	nodeIDs   map[string]int
}

// NewContext creates a fresh simulation context seeded with the given key.
func NewContext(key SimulationKey) *Context {
	return &Context{
		queue:     make(eventQueue, 0),
		rng:       NewPartitionedRNG(key),
		nodeNames: make(map[int]string),
		nodeIDs:   make(map[string]int),
	}
}

// Now returns the current simulated time in nanoseconds.
func (c *Context) Now() int64 {
	return c.clock
}

// RNG returns the run's partitioned RNG.
func (c *Context) RNG() *PartitionedRNG {
	return c.rng
}

// RegisterNode records a node id / name pair in the run's registry.
// Registering the same id twice is a configuration bug.
func (c *Context) RegisterNode(id int, name string) {
	if other, ok := c.nodeNames[id]; ok {
		panic(fmt.Sprintf("sim: node id %d already registered as %q", id, other))
	}
	c.nodeNames[id] = name
	c.nodeIDs[name] = id
}

// NodeName resolves a node id to its name.
func (c *Context) NodeName(id int) (string, bool) {
	name, ok := c.nodeNames[id]
	return name, ok
}

// NodeID resolves a node name to its id.
func (c *Context) NodeID(name string) (int, bool) {
	id, ok := c.nodeIDs[name]
	return id, ok
}

// Schedule enqueues fn to run at absolute simulated time t.
// Scheduling in the past is a programming error.
func (c *Context) Schedule(t int64, fn func()) {
	if t < c.clock {
		panic(fmt.Sprintf("sim: scheduling event at %d before current time %d", t, c.clock))
	}
	c.seq++
	heap.Push(&c.queue, &event{time: t, seq: c.seq, fn: fn})
}

// ScheduleAfter enqueues fn to run delay nanoseconds from now.
func (c *Context) ScheduleAfter(delay int64, fn func()) {
	c.Schedule(c.clock+delay, fn)
}

// Run drives the event loop until no events remain or a task fails:
// pop the next event, advance the clock, execute.
func (c *Context) Run() error {
	for len(c.queue) > 0 {
		ev := heap.Pop(&c.queue).(*event)
		c.clock = ev.time
		ev.fn()
		if c.err != nil {
			logrus.Errorf("sim: run aborted at %d ns: %v", c.clock, c.err)
			break
		}
	}
	c.killAll()
	return c.err
}

// fail records the first fatal task error; the event loop stops on it.
func (c *Context) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}
