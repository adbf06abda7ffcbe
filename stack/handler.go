package stack

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/QuTech-Delft/squidasm-sub000/sim"
)

// RunningApp is the handler's bookkeeping for one registered application.
type RunningApp struct {
	ID        int
	MaxQubits int
	// Pending subroutines, oldest first.
	queue []*Subroutine
}

// Handler owns the application lifecycle of a node: it registers apps,
// opens their EPR sockets, and feeds their subroutines to the processor one
// at a time. It runs as one kernel task speaking encoded control messages
// with the host on one port and subroutines with the processor on another.
type Handler struct {
	ctx  *sim.Context
	qnos *Qnos

	hostPort *sim.Port // encoded control messages, both directions
	procPort *sim.Port // *Subroutine out, execResult in

	appCounter int
	apps       map[int]*RunningApp
	// appOrder keeps draining deterministic across apps.
	appOrder []int

	// clearOnStop: free an app's qubits when it stops.
	clearOnStop bool

	name string
}

// NewHandler wires a handler over shared node state.
func NewHandler(ctx *sim.Context, qnos *Qnos, hostPort, procPort *sim.Port, clearOnStop bool) *Handler {
	name, _ := ctx.NodeName(qnos.NodeID())
	return &Handler{
		ctx:         ctx,
		qnos:        qnos,
		hostPort:    hostPort,
		procPort:    procPort,
		apps:        make(map[int]*RunningApp),
		clearOnStop: clearOnStop,
		name:        name,
	}
}

// Run is the handler task body.
func (h *Handler) Run(t *sim.Task) {
	for {
		raw, ok := h.hostPort.Recv(t).([]byte)
		if !ok {
			panic(fmt.Sprintf("handler %s: unexpected message on host port", h.name))
		}
		typ, body, err := DecodeMessage(raw)
		if err != nil {
			panic(fmt.Sprintf("handler %s: %v", h.name, err))
		}
		switch typ {
		case MsgInitNewApp:
			h.initNewApp(typ, body)
		case MsgOpenEprSocket:
			h.openEprSocket(typ, body)
		case MsgSubroutine:
			h.addSubroutine(typ, body)
		case MsgStopApp:
			h.stopApp(typ, body)
		default:
			panic(fmt.Sprintf("handler %s: unexpected control message %s", h.name, typ))
		}
		h.drain(t)
	}
}

func (h *Handler) initNewApp(typ MsgType, body []byte) {
	var msg InitNewAppMessage
	h.decode(typ, body, &msg)
	id := h.appCounter
	h.appCounter++
	// The virtual id space covers the whole device, not just the app's
	// declared budget; MaxQubits is a hint, not a hard bound.
	h.qnos.RegisterApp(id, h.qnos.PhysMem().Total())
	h.apps[id] = &RunningApp{ID: id, MaxQubits: msg.MaxQubits}
	h.appOrder = append(h.appOrder, id)
	logrus.Debugf("handler %s: registered app %d (max %d qubits)", h.name, id, msg.MaxQubits)
	h.reply(MsgAppIDReply, AppIDReply{AppID: id})
}

func (h *Handler) openEprSocket(typ MsgType, body []byte) {
	var msg OpenEPRSocketMessage
	h.decode(typ, body, &msg)
	h.app(msg.AppID)
	h.qnos.OpenSocket(&EprSocket{
		AppID:        msg.AppID,
		SocketID:     msg.SocketID,
		RemoteNodeID: msg.RemoteNodeID,
		MinFidelity:  msg.MinFidelity,
	})
	logrus.Debugf("handler %s: app %d opened EPR socket %d to node %d",
		h.name, msg.AppID, msg.SocketID, msg.RemoteNodeID)
}

func (h *Handler) addSubroutine(typ MsgType, body []byte) {
	var msg SubroutineMessage
	h.decode(typ, body, &msg)
	sub, err := DeserializeSubroutine(msg.Subroutine)
	if err != nil {
		panic(fmt.Sprintf("handler %s: %v", h.name, err))
	}
	app := h.app(sub.AppID)
	app.queue = append(app.queue, sub)
}

func (h *Handler) stopApp(typ MsgType, body []byte) {
	var msg StopAppMessage
	h.decode(typ, body, &msg)
	app := h.app(msg.AppID)
	if len(app.queue) > 0 {
		panic(fmt.Sprintf("handler %s: stop of app %d with %d subroutines pending",
			h.name, msg.AppID, len(app.queue)))
	}
	if h.clearOnStop {
		h.qnos.FreePositions(msg.AppID)
	}
	delete(h.apps, msg.AppID)
	for i, id := range h.appOrder {
		if id == msg.AppID {
			h.appOrder = append(h.appOrder[:i], h.appOrder[i+1:]...)
			break
		}
	}
	logrus.Debugf("handler %s: app %d stopped", h.name, msg.AppID)
}

// drain runs every pending subroutine, app by app in registration order,
// replying to the host after each one.
func (h *Handler) drain(t *sim.Task) {
	for {
		sub := h.nextSubroutine()
		if sub == nil {
			return
		}
		h.procPort.Send(sub)
		msg := h.procPort.Recv(t)
		res, ok := msg.(execResult)
		if !ok {
			panic(fmt.Sprintf("handler %s: unexpected message from processor %T", h.name, msg))
		}
		if res.Aborted {
			// The subroutine could not finish; clear the app's qubits so
			// a retry starts from a clean slate.
			h.qnos.FreePositions(res.AppID)
			h.reply(MsgAbortedReply, AbortedReply{AppID: res.AppID})
			continue
		}
		h.reply(MsgMemorySnapshotReply, h.qnos.AppMemory(res.AppID).Snapshot())
	}
}

func (h *Handler) nextSubroutine() *Subroutine {
	for _, id := range h.appOrder {
		app := h.apps[id]
		if len(app.queue) == 0 {
			continue
		}
		sub := app.queue[0]
		app.queue = app.queue[1:]
		return sub
	}
	return nil
}

func (h *Handler) app(appID int) *RunningApp {
	app, ok := h.apps[appID]
	if !ok {
		panic(fmt.Sprintf("handler %s: app %d is not registered", h.name, appID))
	}
	return app
}

func (h *Handler) decode(typ MsgType, body []byte, out any) {
	if err := DecodeBody(typ, body, out); err != nil {
		panic(fmt.Sprintf("handler %s: %v", h.name, err))
	}
}

func (h *Handler) reply(typ MsgType, msg any) {
	raw, err := EncodeMessage(typ, msg)
	if err != nil {
		panic(fmt.Sprintf("handler %s: %v", h.name, err))
	}
	h.hostPort.Send(raw)
}
