package stack

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/QuTech-Delft/squidasm-sub000/link"
	"github.com/QuTech-Delft/squidasm-sub000/qdevice"
	"github.com/QuTech-Delft/squidasm-sub000/sim"
)

// EprSocket pre-declares who an application may entangle with. Create and
// receive requests name a socket; requests on a socket that was never opened
// are programming-error-class faults.
type EprSocket struct {
	AppID        int
	SocketID     int
	RemoteNodeID int
	MinFidelity  float64
}

// NetstackCreateRequest is the processor's create_epr hand-off: the app and
// socket involved plus the addresses of the three arrays driving the
// request.
type NetstackCreateRequest struct {
	AppID        int
	RemoteNodeID int
	SocketID     int
	ArgsAddr     int32
	QubitsAddr   int32
	ResultsAddr  int32
}

// NetstackReceiveRequest is the recv_epr hand-off.
type NetstackReceiveRequest struct {
	AppID        int
	RemoteNodeID int
	SocketID     int
	QubitsAddr   int32
	ResultsAddr  int32
}

// noticeArrayWritten tells the processor a results array gained values, so
// a wait_all can re-check its slice.
type noticeArrayWritten struct {
	AppID int
	Addr  int32
}

// noticeAborted tells the processor the link layer aborted a request of the
// app, so a wait_all on its results will never complete.
type noticeAborted struct {
	AppID int
}

// createDescriptor announces a create request to the peer netstack so both
// sides agree on mode and pair count before generation starts.
type createDescriptor struct {
	SocketID int
	Keep     bool
	Number   int
}

type descriptorAck struct{}

// Create-argument array layout.
const (
	argType   = 0 // 0 = create and keep, 1 = measure directly
	argNumber = 1
	argBasis  = 2 // measure directly only
)

// Each pair gets a fixed-width row in the results array. Slots the mode
// does not use are written as -1 so a wait on the row completes.
const pairResultStride = 10

const (
	resOutcome  = 2 // measure directly
	resBasis    = 3 // measure directly
	resGoodness = 7 // create and keep: generation duration in ns
	resBell     = 9
)

// Netstack executes entanglement requests handed off by the processor. It
// runs as one kernel task per node: it pulls a request, agrees on it with
// the peer netstack, then generates the pairs one at a time through the
// link, writing a result row into app memory per pair.
type Netstack struct {
	ctx  *sim.Context
	qnos *Qnos
	fl   flavor

	procPort   *sim.Port // requests in from processor
	noticePort *sim.Port // notices out to processor

	egps      map[int]*link.EGP
	peerPorts map[int]*sim.Port

	name string
}

// NewNetstack wires a netstack over shared node state. Links are attached
// afterwards with AddLink.
func NewNetstack(ctx *sim.Context, qnos *Qnos, fl flavor, procPort, noticePort *sim.Port) *Netstack {
	name, _ := ctx.NodeName(qnos.NodeID())
	return &Netstack{
		ctx:        ctx,
		qnos:       qnos,
		fl:         fl,
		procPort:   procPort,
		noticePort: noticePort,
		egps:       make(map[int]*link.EGP),
		peerPorts:  make(map[int]*sim.Port),
		name:       name,
	}
}

// AddLink attaches the EGP endpoint and peer-netstack port for one remote
// node.
func (ns *Netstack) AddLink(remoteID int, egp *link.EGP, peerPort *sim.Port) {
	if _, ok := ns.egps[remoteID]; ok {
		panic(fmt.Sprintf("netstack %s: link to node %d already attached", ns.name, remoteID))
	}
	ns.egps[remoteID] = egp
	ns.peerPorts[remoteID] = peerPort
}

// Run is the netstack task body.
func (ns *Netstack) Run(t *sim.Task) {
	for {
		msg := ns.procPort.Recv(t)
		switch req := msg.(type) {
		case *NetstackCreateRequest:
			ns.handleCreate(t, req)
		case *NetstackReceiveRequest:
			ns.handleReceive(t, req)
		default:
			panic(fmt.Sprintf("netstack %s: unexpected message %T", ns.name, msg))
		}
	}
}

func (ns *Netstack) handleCreate(t *sim.Task, req *NetstackCreateRequest) {
	sock := ns.socket(req.AppID, req.SocketID, req.RemoteNodeID)
	egp, peer := ns.link(req.RemoteNodeID)
	mem := ns.qnos.AppMemory(req.AppID)

	keep := ns.arg(mem, req.ArgsAddr, argType) == 0
	number := int(ns.arg(mem, req.ArgsAddr, argNumber))

	logrus.Debugf("netstack %s: create request: app %d socket %d -> node %d, keep=%v, %d pairs",
		ns.name, req.AppID, req.SocketID, req.RemoteNodeID, keep, number)

	// Let the peer know what is coming and wait until its netstack has the
	// matching receive in hand.
	peer.Send(createDescriptor{SocketID: req.SocketID, Keep: keep, Number: number})
	if _, ok := peer.Recv(t).(descriptorAck); !ok {
		panic(fmt.Sprintf("netstack %s: peer did not acknowledge create descriptor", ns.name))
	}

	if keep {
		kreq := link.ReqCreateAndKeep{
			RemoteNodeID: req.RemoteNodeID,
			Number:       1,
			MinFidelity:  sock.MinFidelity,
		}
		ns.pairLoop(t, req.AppID, number, req.QubitsAddr, req.ResultsAddr, func() int {
			pos := ns.allocCommBlocking(t, req.AppID)
			egp.PutCreate(kreq, pos)
			return pos
		}, egp)
		return
	}

	basis := qdevice.BasisZ
	if b, ok := mem.GetArrayValue(req.ArgsAddr, argBasis); ok {
		basis = qdevice.Basis(b)
	}
	mreq := link.ReqMeasureDirectly{
		RemoteNodeID: req.RemoteNodeID,
		Number:       1,
		MinFidelity:  sock.MinFidelity,
		Basis:        basis,
	}
	ns.pairLoop(t, req.AppID, number, -1, req.ResultsAddr, func() int {
		egp.PutCreate(mreq, -1)
		return -1
	}, egp)
}

func (ns *Netstack) handleReceive(t *sim.Task, req *NetstackReceiveRequest) {
	ns.socket(req.AppID, req.SocketID, req.RemoteNodeID)
	egp, peer := ns.link(req.RemoteNodeID)

	msg := peer.Recv(t)
	desc, ok := msg.(createDescriptor)
	if !ok {
		panic(fmt.Sprintf("netstack %s: expected create descriptor, got %T", ns.name, msg))
	}
	if desc.SocketID != req.SocketID {
		panic(fmt.Sprintf("netstack %s: descriptor for socket %d does not match receive on socket %d",
			ns.name, desc.SocketID, req.SocketID))
	}
	peer.Send(descriptorAck{})

	logrus.Debugf("netstack %s: receive request: app %d socket %d <- node %d, keep=%v, %d pairs",
		ns.name, req.AppID, req.SocketID, req.RemoteNodeID, desc.Keep, desc.Number)

	qubitsAddr := req.QubitsAddr
	if !desc.Keep {
		qubitsAddr = -1
	}
	ns.pairLoop(t, req.AppID, desc.Number, qubitsAddr, req.ResultsAddr, func() int {
		pos := -1
		if desc.Keep {
			pos = ns.allocCommBlocking(t, req.AppID)
		}
		egp.PutReceive(pos)
		return pos
	}, egp)
}

// pairLoop drives pair generation one pair at a time: submit, await the
// link's result, store the qubit (keep mode) and write the pair's result
// row. An aborted pair frees what it held and ends the loop early; rows for
// the remaining pairs stay unset.
func (ns *Netstack) pairLoop(t *sim.Task, appID, number int, qubitsAddr, resultsAddr int32,
	submit func() int, egp *link.EGP) {
	mem := ns.qnos.AppMemory(appID)
	for i := 0; i < number; i++ {
		pos := submit()
		res := egp.AwaitResult(t)
		if res.Err != nil {
			if pos >= 0 {
				// The pair never arrived; give the position back.
				ns.qnos.PhysMem().Free(pos)
				ns.qnos.MemFreed().Fire()
			}
			ns.abortRequest(appID, res.Err)
			return
		}
		if res.Measured {
			ns.writeMeasureRow(mem, resultsAddr, i, res)
		} else {
			// The pair landed on a communication position; relocate it
			// if the flavor needs that position back, then bind it to
			// the virtual id the app put in the qubit array.
			finalPos := ns.moveToStorageBlocking(t, appID, pos)
			virt, ok := mem.GetArrayValue(qubitsAddr, i)
			if !ok {
				panic(fmt.Sprintf("netstack %s: qubit array @%d slot %d unset", ns.name, qubitsAddr, i))
			}
			ns.qnos.MapVirt(appID, int(virt), finalPos)
			ns.writeKeepRow(mem, resultsAddr, i, res)
		}
		ns.noticePort.Send(noticeArrayWritten{AppID: appID, Addr: resultsAddr})
	}
}

func (ns *Netstack) abortRequest(appID int, resErr *link.ResError) {
	if resErr.Code != link.ErrAborted {
		panic(fmt.Sprintf("netstack %s: link error for app %d: %s", ns.name, appID, resErr.Code))
	}
	logrus.Debugf("netstack %s: request of app %d aborted by link", ns.name, appID)
	ns.noticePort.Send(noticeAborted{AppID: appID})
}

// writeKeepRow fills one create-and-keep result row; only the goodness and
// Bell-state slots carry values.
func (ns *Netstack) writeKeepRow(mem *AppMemory, addr int32, pair int, res link.Result) {
	row := ns.blankRow()
	row[resGoodness] = res.GenDuration
	row[resBell] = int64(res.Bell)
	ns.writeRow(mem, addr, pair, row)
}

// writeMeasureRow fills one measure-directly result row.
func (ns *Netstack) writeMeasureRow(mem *AppMemory, addr int32, pair int, res link.Result) {
	row := ns.blankRow()
	row[resOutcome] = int64(res.Outcome)
	row[resBasis] = int64(res.Basis)
	row[resBell] = int64(res.Bell)
	ns.writeRow(mem, addr, pair, row)
}

func (ns *Netstack) blankRow() []int64 {
	row := make([]int64, pairResultStride)
	for i := range row {
		row[i] = -1
	}
	return row
}

func (ns *Netstack) writeRow(mem *AppMemory, addr int32, pair int, row []int64) {
	base := pair * pairResultStride
	for i, v := range row {
		v := v
		mem.SetArrayValue(addr, base+i, &v)
	}
}

// allocCommBlocking claims a communication position, suspending on the
// memory-freed signal until one is available.
func (ns *Netstack) allocCommBlocking(t *sim.Task, appID int) int {
	for {
		pos, err := ns.qnos.PhysMem().AllocateComm(appID)
		if err == nil {
			return pos
		}
		logrus.Debugf("netstack %s: no free communication position for app %d, waiting", ns.name, appID)
		ns.qnos.MemFreed().Wait(t)
	}
}

// moveToStorageBlocking relocates a delivered pair off its communication
// position, retrying on the memory-freed signal when storage is full.
func (ns *Netstack) moveToStorageBlocking(t *sim.Task, appID, pos int) int {
	for {
		finalPos, err := ns.fl.MoveCommToStorage(t, appID, pos)
		if err == nil {
			return finalPos
		}
		logrus.Debugf("netstack %s: no storage position for app %d, waiting", ns.name, appID)
		ns.qnos.MemFreed().Wait(t)
	}
}

func (ns *Netstack) socket(appID, socketID, remoteID int) *EprSocket {
	sock, ok := ns.qnos.Socket(appID, socketID)
	if !ok {
		panic(fmt.Sprintf("netstack %s: app %d has no open EPR socket %d", ns.name, appID, socketID))
	}
	if sock.RemoteNodeID != remoteID {
		panic(fmt.Sprintf("netstack %s: EPR socket %d of app %d is bound to node %d, not %d",
			ns.name, socketID, appID, sock.RemoteNodeID, remoteID))
	}
	return sock
}

func (ns *Netstack) link(remoteID int) (*link.EGP, *sim.Port) {
	if _, ok := ns.egps[remoteID]; !ok {
		panic(fmt.Sprintf("netstack %s: no link to node %d", ns.name, remoteID))
	}
	return ns.egps[remoteID], ns.peerPorts[remoteID]
}

func (ns *Netstack) arg(mem *AppMemory, addr int32, index int) int64 {
	v, ok := mem.GetArrayValue(addr, index)
	if !ok {
		panic(fmt.Sprintf("netstack %s: create argument %d at @%d unset", ns.name, index, addr))
	}
	return v
}
