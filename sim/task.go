package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// taskKilled is the sentinel panic value used to unwind a parked task when the
// run tears down. It must never escape the task wrapper.
type taskKilled struct{}

// Task is a cooperative coroutine scheduled by the Context event loop.
//
// A Task's body runs on its own goroutine, but exactly one task goroutine is
// ever runnable: the body executes between park points, and every park point
// hands control back to the event loop. Tasks therefore never need locks to
// touch shared simulation state.
type Task struct {
	ctx    *Context
	name   string
	resume chan struct{}
	yield  chan struct{}
	done   bool
	killed bool
}

// Spawn creates a task running fn and schedules its first activation at the
// current simulated time.
func (c *Context) Spawn(name string, fn func(*Task)) *Task {
	t := &Task{
		ctx:    c,
		name:   name,
		resume: make(chan struct{}),
		yield:  make(chan struct{}),
	}
	c.tasks = append(c.tasks, t)
	go t.main(fn)
	c.ScheduleAfter(0, t.step)
	return t
}

// Name returns the task's name, used for logging.
func (t *Task) Name() string { return t.name }

// Context returns the simulation context the task belongs to.
func (t *Task) Context() *Context { return t.ctx }

// Now returns the current simulated time.
func (t *Task) Now() int64 { return t.ctx.clock }

func (t *Task) main(fn func(*Task)) {
	<-t.resume
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(taskKilled); !ok {
				t.ctx.fail(fmt.Errorf("task %s: %v", t.name, r))
				logrus.Errorf("task %s panicked: %v", t.name, r)
			}
		}
		t.done = true
		t.yield <- struct{}{}
	}()
	fn(t)
}

// step resumes the task's goroutine and blocks until it parks again or
// finishes. Only the event loop calls step.
func (t *Task) step() {
	if t.done {
		return
	}
	t.resume <- struct{}{}
	<-t.yield
}

// park suspends the task until something schedules a step for it.
func (t *Task) park() {
	t.yield <- struct{}{}
	<-t.resume
	if t.killed {
		panic(taskKilled{})
	}
}

// Sleep suspends the task for delay nanoseconds of simulated time.
func (t *Task) Sleep(delay int64) {
	t.ctx.ScheduleAfter(delay, t.step)
	t.park()
}

// killAll unwinds every task goroutine that is still parked when the run
// ends, so repeated runs in one process do not accumulate goroutines.
func (c *Context) killAll() {
	for _, t := range c.tasks {
		if !t.done {
			t.killed = true
			t.step()
		}
	}
}
