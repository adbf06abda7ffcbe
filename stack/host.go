package stack

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/QuTech-Delft/squidasm-sub000/sim"
)

// RunResult is the outcome of one program run. Err is set when the program
// gave up (for example after exhausting retries on aborted entanglement).
type RunResult struct {
	ID     uuid.UUID
	Values map[string]any
	Err    error
}

// Host drives programs on one node. It runs as a kernel task: for each run
// it registers an application with the handler, opens the program's
// sockets, executes the program body and stops the application again.
type Host struct {
	ctx    *sim.Context
	nodeID int
	name   string

	qnosPort   *sim.Port // encoded control messages with the handler
	csockPorts map[string]*sim.Port

	program Program
	times   int
	results []RunResult
}

// NewHost creates a host over its control channel to the handler.
func NewHost(ctx *sim.Context, nodeID int, qnosPort *sim.Port) *Host {
	name, _ := ctx.NodeName(nodeID)
	return &Host{
		ctx:        ctx,
		nodeID:     nodeID,
		name:       name,
		qnosPort:   qnosPort,
		csockPorts: make(map[string]*sim.Port),
	}
}

// AddPeerPort attaches the classical channel to a peer node's host.
func (h *Host) AddPeerPort(peer string, port *sim.Port) {
	if _, ok := h.csockPorts[peer]; ok {
		panic(fmt.Sprintf("host %s: peer port to %s already attached", h.name, peer))
	}
	h.csockPorts[peer] = port
}

// EnqueueProgram sets the program to run and how many times.
func (h *Host) EnqueueProgram(p Program, times int) {
	h.program = p
	h.times = times
}

// Results returns one entry per completed run, in run order.
func (h *Host) Results() []RunResult {
	return h.results
}

// Run is the host task body.
func (h *Host) Run(t *sim.Task) {
	if h.program == nil {
		return
	}
	meta := h.program.Meta()
	for run := 0; run < h.times; run++ {
		logrus.Debugf("host %s: starting run %d of %q", h.name, run, meta.Name)
		pctx := h.startApp(t, meta)
		values, err := h.program.Run(t, pctx)
		h.stopApp(pctx)
		if err != nil {
			logrus.Warnf("host %s: run %d of %q failed: %v", h.name, run, meta.Name, err)
		}
		h.results = append(h.results, RunResult{ID: uuid.New(), Values: values, Err: err})
	}
	logrus.Infof("host %s: finished %d runs of %q", h.name, h.times, meta.Name)
}

// startApp registers the application and opens every socket the program
// declared.
func (h *Host) startApp(t *sim.Task, meta ProgramMeta) *ProgramContext {
	h.send(MsgInitNewApp, InitNewAppMessage{MaxQubits: meta.MaxQubits})
	var idReply AppIDReply
	h.recv(t, MsgAppIDReply, &idReply)
	appID := idReply.AppID

	conn := newConnection(h, appID)
	pctx := &ProgramContext{
		AppID:      appID,
		Conn:       conn,
		CSockets:   make(map[string]*ClassicalSocket),
		EprSockets: make(map[string]*EPRSocket),
	}

	for socketID, spec := range meta.EprSockets {
		remoteID, ok := h.ctx.NodeID(spec.Peer)
		if !ok {
			panic(fmt.Sprintf("host %s: unknown peer node %q", h.name, spec.Peer))
		}
		h.send(MsgOpenEprSocket, OpenEPRSocketMessage{
			AppID:        appID,
			SocketID:     socketID,
			RemoteNodeID: remoteID,
			MinFidelity:  spec.MinFidelity,
		})
		pctx.EprSockets[spec.Peer] = &EPRSocket{
			conn:         conn,
			socketID:     socketID,
			remoteNodeID: remoteID,
		}
	}

	for _, peer := range meta.CSockets {
		port, ok := h.csockPorts[peer]
		if !ok {
			panic(fmt.Sprintf("host %s: no classical channel to peer %q", h.name, peer))
		}
		pctx.CSockets[peer] = &ClassicalSocket{port: port, local: h.name, remote: peer}
	}
	return pctx
}

func (h *Host) stopApp(pctx *ProgramContext) {
	h.send(MsgStopApp, StopAppMessage{AppID: pctx.AppID})
}

func (h *Host) send(typ MsgType, msg any) {
	raw, err := EncodeMessage(typ, msg)
	if err != nil {
		panic(fmt.Sprintf("host %s: %v", h.name, err))
	}
	h.qnosPort.Send(raw)
}

// recv reads the next handler reply, asserting its type.
func (h *Host) recv(t *sim.Task, want MsgType, out any) {
	typ, body := h.recvAny(t)
	if typ != want {
		panic(fmt.Sprintf("host %s: expected %s reply, got %s", h.name, want, typ))
	}
	if err := DecodeBody(typ, body, out); err != nil {
		panic(fmt.Sprintf("host %s: %v", h.name, err))
	}
}

func (h *Host) recvAny(t *sim.Task) (MsgType, []byte) {
	raw, ok := h.qnosPort.Recv(t).([]byte)
	if !ok {
		panic(fmt.Sprintf("host %s: unexpected message on control port", h.name))
	}
	typ, body, err := DecodeMessage(raw)
	if err != nil {
		panic(fmt.Sprintf("host %s: %v", h.name, err))
	}
	return typ, body
}
