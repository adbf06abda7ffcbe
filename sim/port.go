package sim

// Port is one endpoint of a point-to-point, FIFO, simulated-latency channel.
//
// Messages sent from A to B arrive at B in send order, each delayed by the
// channel's one-way latency. There is no reordering and no loss: this models
// the control plane, not a lossy physical link.
type Port struct {
	ctx     *Context
	name    string
	latency int64

	peer   *Port
	buffer []any
	waiter *Task
}

// NewPortPair creates two connected ports with the given one-way latency in
// nanoseconds. Messages written on one endpoint arrive on the other.
func NewPortPair(ctx *Context, name string, latency int64) (*Port, *Port) {
	a := &Port{ctx: ctx, name: name + ".a", latency: latency}
	b := &Port{ctx: ctx, name: name + ".b", latency: latency}
	a.peer = b
	b.peer = a
	return a, b
}

// Name returns the endpoint name, used for logging.
func (p *Port) Name() string { return p.name }

// Send transmits msg to the peer endpoint. It never blocks; the message is
// delivered after the channel latency.
func (p *Port) Send(msg any) {
	peer := p.peer
	p.ctx.ScheduleAfter(p.latency, func() {
		peer.buffer = append(peer.buffer, msg)
		if peer.waiter != nil {
			w := peer.waiter
			peer.waiter = nil
			p.ctx.ScheduleAfter(0, w.step)
		}
	})
}

// Recv blocks the calling task until a message is available, then pops the
// oldest one. Only one task may wait on an endpoint at a time.
func (p *Port) Recv(t *Task) any {
	for len(p.buffer) == 0 {
		if p.waiter != nil {
			panic("sim: two tasks waiting on port " + p.name)
		}
		p.waiter = t
		t.park()
	}
	msg := p.buffer[0]
	p.buffer = p.buffer[1:]
	return msg
}

// TryRecv pops the oldest buffered message without blocking.
func (p *Port) TryRecv() (any, bool) {
	if len(p.buffer) == 0 {
		return nil, false
	}
	msg := p.buffer[0]
	p.buffer = p.buffer[1:]
	return msg, true
}

// Flush discards all buffered messages. The processor uses this after a
// wait-for-array completes, so stale "array updated" notices from the
// netstack do not satisfy a later wait.
func (p *Port) Flush() {
	p.buffer = nil
}

// Pending reports the number of buffered messages.
func (p *Port) Pending() int {
	return len(p.buffer)
}
