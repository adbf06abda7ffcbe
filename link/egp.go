// Package link implements the magic entanglement-generation capability that
// manufactures simulated EPR pairs between two nodes' quantum devices.
//
// The node stack talks to it through one EGP (entanglement generation
// protocol) endpoint per (node, remote node) direction; the endpoints of one
// link share a MagicLink that matches up create and receive submissions and
// delivers one pair per link cycle.
package link

import (
	"github.com/QuTech-Delft/squidasm-sub000/qdevice"
	"github.com/QuTech-Delft/squidasm-sub000/sim"
)

// ErrorCode classifies link-layer failure responses.
type ErrorCode int

const (
	// ErrAborted: the request was aborted (explicitly, or because the
	// requested minimum fidelity is unattainable on this link). The
	// receiving netstack stops its per-pair loop gracefully.
	ErrAborted ErrorCode = iota
	// ErrInternal: anything else. Fatal to the surrounding request.
	ErrInternal
)

func (c ErrorCode) String() string {
	switch c {
	case ErrAborted:
		return "aborted"
	case ErrInternal:
		return "internal"
	}
	return "error?"
}

// ReqCreateAndKeep asks for entangled pairs that are kept in memory.
type ReqCreateAndKeep struct {
	RemoteNodeID int
	Number       int
	MinFidelity  float64
}

// ReqMeasureDirectly asks for pairs that are measured the moment they exist;
// only the classical outcome survives.
type ReqMeasureDirectly struct {
	RemoteNodeID int
	Number       int
	MinFidelity  float64
	Basis        qdevice.Basis
}

// ReqCreateBase is the common surface of the two create request kinds. The
// initiator netstack sends the concrete request to its peer so both sides
// agree on mode and pair count before generation starts.
type ReqCreateBase interface {
	Remote() int
	PairCount() int
	MinimumFidelity() float64
}

func (r ReqCreateAndKeep) Remote() int              { return r.RemoteNodeID }
func (r ReqCreateAndKeep) PairCount() int           { return r.Number }
func (r ReqCreateAndKeep) MinimumFidelity() float64 { return r.MinFidelity }

func (r ReqMeasureDirectly) Remote() int              { return r.RemoteNodeID }
func (r ReqMeasureDirectly) PairCount() int           { return r.Number }
func (r ReqMeasureDirectly) MinimumFidelity() float64 { return r.MinFidelity }

// Result is the per-pair link-layer response. Err is nil on success. For
// measure-directly pairs, Measured is true and Outcome/Basis are set.
type Result struct {
	Bell        qdevice.BellIndex
	GenDuration int64 // ns from submission to delivery
	Measured    bool
	Outcome     int
	Basis       qdevice.Basis
	Err         *ResError
}

// ResError is a link-layer failure response.
type ResError struct {
	Code ErrorCode
}

// EGP is one node's endpoint of a link. The netstack submits single-pair
// requests and awaits results; pair delivery is signaled through the kernel
// so a waiting netstack task is resumed exactly when its pair is ready.
type EGP struct {
	nodeID   int
	remoteID int
	dev      *qdevice.Device
	link     *MagicLink

	ready   *sim.Signal
	results []Result
	aborted bool
}

// NodeID returns the local node this endpoint belongs to.
func (e *EGP) NodeID() int { return e.nodeID }

// RemoteID returns the node on the other end of the link.
func (e *EGP) RemoteID() int { return e.remoteID }

// PutCreate submits a single-pair create. The entangled qubit (keep mode)
// lands at device position pos.
func (e *EGP) PutCreate(req ReqCreateBase, pos int) {
	e.link.submit(e, submission{create: true, req: req, pos: pos, start: e.link.ctx.Now()})
}

// PutReceive submits the matching single-pair receive for a peer's create.
func (e *EGP) PutReceive(pos int) {
	e.link.submit(e, submission{create: false, pos: pos, start: e.link.ctx.Now()})
}

// AwaitResult blocks the task until the next per-pair result arrives.
func (e *EGP) AwaitResult(t *sim.Task) Result {
	for len(e.results) == 0 {
		e.ready.Wait(t)
	}
	res := e.results[0]
	e.results = e.results[1:]
	return res
}

// Abort cancels everything pending on this endpoint. Both sides of any
// matched or waiting pair receive an ErrAborted result, and later
// submissions fail immediately.
func (e *EGP) Abort() {
	e.aborted = true
	e.link.abort(e)
}

// Aborted reports whether Abort was called on this endpoint.
func (e *EGP) Aborted() bool { return e.aborted }

func (e *EGP) deliver(res Result) {
	e.results = append(e.results, res)
	e.ready.Fire()
}
