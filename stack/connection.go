package stack

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/QuTech-Delft/squidasm-sub000/qdevice"
	"github.com/QuTech-Delft/squidasm-sub000/sim"
)

// ErrSubroutineAborted is returned by Flush when the link layer aborted an
// entanglement request the subroutine was waiting on. The application's
// qubits have been cleared; the program may rebuild and retry.
var ErrSubroutineAborted = errors.New("subroutine aborted by link layer")

// Connection is a program's builder for subroutines: qubit and gate calls
// append instructions, Flush ships them to the node and resolves the
// outcome futures from the returned memory snapshot.
type Connection struct {
	host  *Host
	appID int

	instrs    []Instr
	nextArray int32
	nextVirt  int
	freeVirts []int
	pending   []*Future

	lastSnapshot *MemorySnapshot
}

func newConnection(h *Host, appID int) *Connection {
	return &Connection{host: h, appID: appID}
}

// AppID returns the application this connection builds subroutines for.
func (c *Connection) AppID() int { return c.appID }

// Snapshot returns the memory snapshot of the last successful flush.
func (c *Connection) Snapshot() *MemorySnapshot { return c.lastSnapshot }

// Future is a value that exists only after the subroutine producing it has
// been flushed.
type Future struct {
	addr  int32
	index int
	val   *int64
}

// Resolved reports whether the value arrived.
func (f *Future) Resolved() bool { return f.val != nil }

// Value returns the resolved value; reading before a successful flush is a
// programming error.
func (f *Future) Value() int64 {
	if f.val == nil {
		panic("future read before its subroutine was flushed")
	}
	return *f.val
}

func (f *Future) resolve(snap *MemorySnapshot) {
	v := snap.ArraySlice(f.addr, f.index, f.index+1)[0]
	f.val = v
}

// QubitRef is a program's handle on one virtual qubit.
type QubitRef struct {
	conn   *Connection
	virt   int
	active bool
}

// VirtID returns the virtual qubit id behind the handle.
func (q *QubitRef) VirtID() int { return q.virt }

// NewQubit allocates and initializes a fresh qubit in |0>.
func (c *Connection) NewQubit() *QubitRef {
	virt := c.allocVirt()
	c.setReg(Q(0), int32(virt))
	c.emit(Instr{Op: OpQAlloc, Reg: Q(0)})
	c.emit(Instr{Op: OpInit, Reg: Q(0)})
	return &QubitRef{conn: c, virt: virt, active: true}
}

func (q *QubitRef) X() { q.gate(OpX) }
func (q *QubitRef) Y() { q.gate(OpY) }
func (q *QubitRef) Z() { q.gate(OpZ) }
func (q *QubitRef) H() { q.gate(OpH) }

// RotX rotates by num * pi / 2^denom around the X axis.
func (q *QubitRef) RotX(num, denom int32) { q.rot(OpRotX, num, denom) }
func (q *QubitRef) RotY(num, denom int32) { q.rot(OpRotY, num, denom) }
func (q *QubitRef) RotZ(num, denom int32) { q.rot(OpRotZ, num, denom) }

// Cnot applies a controlled-NOT with q as control.
func (q *QubitRef) Cnot(target *QubitRef) { q.twoGate(OpCnot, target, 0, 0) }

// Cphase applies a controlled-Z with q as control.
func (q *QubitRef) Cphase(target *QubitRef) { q.twoGate(OpCphase, target, 0, 0) }

// CRotX applies a controlled direction rotation around X with q as control.
func (q *QubitRef) CRotX(target *QubitRef, num, denom int32) { q.twoGate(OpCRotX, target, num, denom) }
func (q *QubitRef) CRotY(target *QubitRef, num, denom int32) { q.twoGate(OpCRotY, target, num, denom) }

// Measure reads the qubit out in the computational basis. The qubit stays
// allocated; Free it when done.
func (q *QubitRef) Measure() *Future {
	q.check()
	addr := q.conn.newArray(1)
	q.conn.setReg(Q(0), int32(q.virt))
	q.conn.emit(Instr{Op: OpMeas, Reg0: Q(0), Reg1: M(0)})
	q.conn.emit(Instr{Op: OpStore, Reg: M(0), Entry: ArrayEntry{Addr: addr, Index: Imm(0)}})
	return q.conn.future(addr, 0)
}

// Free releases the qubit. The handle is dead afterwards.
func (q *QubitRef) Free() {
	q.check()
	q.conn.setReg(Q(0), int32(q.virt))
	q.conn.emit(Instr{Op: OpQFree, Reg: Q(0)})
	q.active = false
	q.conn.freeVirts = append(q.conn.freeVirts, q.virt)
}

func (q *QubitRef) gate(op Op) {
	q.rot(op, 0, 0)
}

func (q *QubitRef) rot(op Op, num, denom int32) {
	q.check()
	q.conn.setReg(Q(0), int32(q.virt))
	q.conn.emit(Instr{Op: op, Reg: Q(0), AngleNum: num, AngleDenom: denom})
}

func (q *QubitRef) twoGate(op Op, target *QubitRef, num, denom int32) {
	q.check()
	target.check()
	q.conn.setReg(Q(0), int32(q.virt))
	q.conn.setReg(Q(1), int32(target.virt))
	q.conn.emit(Instr{Op: op, Reg0: Q(0), Reg1: Q(1), AngleNum: num, AngleDenom: denom})
}

func (q *QubitRef) check() {
	if !q.active {
		panic(fmt.Sprintf("use of freed qubit %d", q.virt))
	}
}

// EPRSocket is a program's handle for entanglement with one peer.
type EPRSocket struct {
	conn         *Connection
	socketID     int
	remoteNodeID int
}

// CreateKeep requests number entangled pairs kept in memory and returns a
// handle per local half. The handles are live after the flush completes.
func (s *EPRSocket) CreateKeep(number int) []*QubitRef {
	c := s.conn
	resAddr := c.newArray(number * pairResultStride)
	qAddr, refs := c.qubitArray(number, true)
	argsAddr := c.newArray(3)
	c.storeImm(argsAddr, 0, 0) // create and keep
	c.storeImm(argsAddr, 1, int32(number))
	s.emitCreate(qAddr, argsAddr, resAddr)
	c.waitAll(resAddr, number*pairResultStride)
	return refs
}

// CreateMeasure requests number pairs measured on arrival in the given
// basis; the returned futures resolve to the local outcomes.
func (s *EPRSocket) CreateMeasure(number int, basis qdevice.Basis) []*Future {
	c := s.conn
	resAddr := c.newArray(number * pairResultStride)
	qAddr, _ := c.qubitArray(number, false)
	argsAddr := c.newArray(3)
	c.storeImm(argsAddr, 0, 1) // measure directly
	c.storeImm(argsAddr, 1, int32(number))
	c.storeImm(argsAddr, 2, int32(basis))
	s.emitCreate(qAddr, argsAddr, resAddr)
	c.waitAll(resAddr, number*pairResultStride)
	return c.outcomeFutures(resAddr, number)
}

// RecvKeep accepts number kept pairs initiated by the peer.
func (s *EPRSocket) RecvKeep(number int) []*QubitRef {
	c := s.conn
	resAddr := c.newArray(number * pairResultStride)
	qAddr, refs := c.qubitArray(number, true)
	s.emitRecv(qAddr, resAddr)
	c.waitAll(resAddr, number*pairResultStride)
	return refs
}

// RecvMeasure accepts number measure-directly pairs initiated by the peer.
func (s *EPRSocket) RecvMeasure(number int) []*Future {
	c := s.conn
	resAddr := c.newArray(number * pairResultStride)
	qAddr, _ := c.qubitArray(number, false)
	s.emitRecv(qAddr, resAddr)
	c.waitAll(resAddr, number*pairResultStride)
	return c.outcomeFutures(resAddr, number)
}

func (s *EPRSocket) emitCreate(qAddr, argsAddr, resAddr int32) {
	c := s.conn
	c.setReg(R(1), int32(s.remoteNodeID))
	c.setReg(R(2), int32(s.socketID))
	c.setReg(R(3), qAddr)
	c.setReg(R(4), argsAddr)
	c.setReg(R(5), resAddr)
	c.emit(Instr{Op: OpCreateEPR,
		RegRemote: R(1), RegSocket: R(2), RegQubits: R(3), RegArgs: R(4), RegResults: R(5)})
}

func (s *EPRSocket) emitRecv(qAddr, resAddr int32) {
	c := s.conn
	c.setReg(R(1), int32(s.remoteNodeID))
	c.setReg(R(2), int32(s.socketID))
	c.setReg(R(3), qAddr)
	c.setReg(R(5), resAddr)
	c.emit(Instr{Op: OpRecvEPR,
		RegRemote: R(1), RegSocket: R(2), RegQubits: R(3), RegResults: R(5)})
}

// qubitArray declares the virtual-id array for an EPR request. In keep mode
// it is filled with fresh virtual ids and handles are returned; in measure
// mode it stays unset.
func (c *Connection) qubitArray(number int, keep bool) (int32, []*QubitRef) {
	addr := c.newArray(number)
	if !keep {
		return addr, nil
	}
	refs := make([]*QubitRef, number)
	for i := range refs {
		virt := c.allocVirt()
		c.storeImm(addr, i, int32(virt))
		refs[i] = &QubitRef{conn: c, virt: virt, active: true}
	}
	return addr, refs
}

func (c *Connection) outcomeFutures(resAddr int32, number int) []*Future {
	futures := make([]*Future, number)
	for i := range futures {
		futures[i] = c.future(resAddr, i*pairResultStride+resOutcome)
	}
	return futures
}

// Flush ships the accumulated instructions as one subroutine and blocks
// until the node replies with a snapshot or an abort.
func (c *Connection) Flush(t *sim.Task) error {
	sub, futures := c.take()
	return c.submit(t, sub, futures)
}

// FlushWithRetry retries an aborted subroutine up to attempts times. Each
// retry re-runs the whole subroutine from scratch; the node cleared the
// app's qubits when it aborted.
func (c *Connection) FlushWithRetry(t *sim.Task, attempts int) error {
	sub, futures := c.take()
	for i := 0; i < attempts; i++ {
		err := c.submit(t, sub, futures)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrSubroutineAborted) {
			return err
		}
		logrus.Debugf("app %d: subroutine aborted, retry %d/%d", c.appID, i+1, attempts)
	}
	return ErrSubroutineAborted
}

func (c *Connection) take() (*Subroutine, []*Future) {
	sub := &Subroutine{AppID: c.appID, Instrs: c.instrs}
	futures := c.pending
	c.instrs = nil
	c.pending = nil
	return sub, futures
}

func (c *Connection) submit(t *sim.Task, sub *Subroutine, futures []*Future) error {
	data, err := sub.Serialize()
	if err != nil {
		return fmt.Errorf("flushing subroutine: %w", err)
	}
	c.host.send(MsgSubroutine, SubroutineMessage{Subroutine: data})
	typ, body := c.host.recvAny(t)
	switch typ {
	case MsgMemorySnapshotReply:
		var snap MemorySnapshot
		if err := DecodeBody(typ, body, &snap); err != nil {
			return fmt.Errorf("flushing subroutine: %w", err)
		}
		c.lastSnapshot = &snap
		for _, f := range futures {
			f.resolve(&snap)
		}
		return nil
	case MsgAbortedReply:
		return ErrSubroutineAborted
	default:
		panic(fmt.Sprintf("app %d: unexpected flush reply %s", c.appID, typ))
	}
}

func (c *Connection) emit(in Instr) {
	c.instrs = append(c.instrs, in)
}

func (c *Connection) setReg(r Register, v int32) {
	c.emit(Instr{Op: OpSet, Reg: r, Imm: v})
}

// newArray declares a fresh array and returns its address.
func (c *Connection) newArray(length int) int32 {
	addr := c.nextArray
	c.nextArray++
	c.setReg(R(0), int32(length))
	c.emit(Instr{Op: OpArray, Reg: R(0), Addr: addr})
	return addr
}

func (c *Connection) storeImm(addr int32, index int, value int32) {
	c.setReg(R(0), value)
	c.emit(Instr{Op: OpStore, Reg: R(0), Entry: ArrayEntry{Addr: addr, Index: Imm(int32(index))}})
}

func (c *Connection) waitAll(addr int32, length int) {
	c.emit(Instr{Op: OpWaitAll,
		Slice: ArraySlice{Addr: addr, Start: Imm(0), Stop: Imm(int32(length))}})
}

func (c *Connection) allocVirt() int {
	if n := len(c.freeVirts); n > 0 {
		v := c.freeVirts[n-1]
		c.freeVirts = c.freeVirts[:n-1]
		return v
	}
	v := c.nextVirt
	c.nextVirt++
	return v
}

func (c *Connection) future(addr int32, index int) *Future {
	f := &Future{addr: addr, index: index}
	c.pending = append(c.pending, f)
	return f
}
