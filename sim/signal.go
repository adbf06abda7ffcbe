package sim

// Signal is a named broadcast notification between tasks. Waiting tasks are
// woken by the next Fire; a Fire with no waiters is lost (signals carry no
// payload and are not queued). This matches the "memory freed" and
// "pair ready" wake-ups in the node stack: waiters re-check their condition
// after every wake.
type Signal struct {
	ctx     *Context
	name    string
	waiters []*Task
}

// NewSignal creates a named signal bound to the context.
func NewSignal(ctx *Context, name string) *Signal {
	return &Signal{ctx: ctx, name: name}
}

// Name returns the signal's name, used for logging.
func (s *Signal) Name() string { return s.name }

// Wait suspends the task until the next Fire.
func (s *Signal) Wait(t *Task) {
	s.waiters = append(s.waiters, t)
	t.park()
}

// Fire wakes every task currently waiting on the signal, at the current
// simulated time.
func (s *Signal) Fire() {
	waiters := s.waiters
	s.waiters = nil
	for _, w := range waiters {
		s.ctx.ScheduleAfter(0, w.step)
	}
}
