package stack

import (
	"fmt"

	"github.com/QuTech-Delft/squidasm-sub000/qdevice"
	"github.com/QuTech-Delft/squidasm-sub000/sim"
)

// Qnos is the state shared by a node's processor, netstack and handler: the
// application memories, the physical qubit pool, the quantum device and the
// signal fired whenever physical positions are freed.
type Qnos struct {
	nodeID   int
	device   *qdevice.Device
	physMem  *PhysicalQuantumMemory
	appMems  map[int]*AppMemory
	memFreed *sim.Signal
	sockets  map[socketKey]*EprSocket
}

type socketKey struct {
	appID    int
	socketID int
}

// NewQnos wires shared node state around a device.
func NewQnos(ctx *sim.Context, nodeID int, dev *qdevice.Device) *Qnos {
	name, _ := ctx.NodeName(nodeID)
	return &Qnos{
		nodeID:   nodeID,
		device:   dev,
		physMem:  NewPhysicalQuantumMemory(dev.NumPositions(), dev.CommPositions()),
		appMems:  make(map[int]*AppMemory),
		memFreed: sim.NewSignal(ctx, name+"_mem_freed"),
		sockets:  make(map[socketKey]*EprSocket),
	}
}

// NodeID returns the owning node's id.
func (q *Qnos) NodeID() int { return q.nodeID }

// Device returns the node's quantum device.
func (q *Qnos) Device() *qdevice.Device { return q.device }

// PhysMem returns the physical qubit pool.
func (q *Qnos) PhysMem() *PhysicalQuantumMemory { return q.physMem }

// MemFreed is fired whenever physical positions become free; tasks blocked
// on allocation wait on it and retry.
func (q *Qnos) MemFreed() *sim.Signal { return q.memFreed }

// RegisterApp creates and stores memory for a new application.
func (q *Qnos) RegisterApp(appID, maxQubits int) *AppMemory {
	if _, ok := q.appMems[appID]; ok {
		panic(fmt.Sprintf("app %d already registered", appID))
	}
	mem := NewAppMemory(appID, maxQubits)
	q.appMems[appID] = mem
	return mem
}

// AppMemory returns the memory of a registered application.
func (q *Qnos) AppMemory(appID int) *AppMemory {
	mem, ok := q.appMems[appID]
	if !ok {
		panic(fmt.Sprintf("app %d not registered", appID))
	}
	return mem
}

// HasApp reports whether an application is registered.
func (q *Qnos) HasApp(appID int) bool {
	_, ok := q.appMems[appID]
	return ok
}

// OpenSocket declares an EPR socket. Re-opening the same (app, socket) pair
// is a programming-error-class fault.
func (q *Qnos) OpenSocket(s *EprSocket) {
	key := socketKey{appID: s.AppID, socketID: s.SocketID}
	if _, ok := q.sockets[key]; ok {
		panic(fmt.Sprintf("epr socket %d of app %d already open", s.SocketID, s.AppID))
	}
	q.sockets[key] = s
}

// Socket looks up an open EPR socket.
func (q *Qnos) Socket(appID, socketID int) (*EprSocket, bool) {
	s, ok := q.sockets[socketKey{appID: appID, socketID: socketID}]
	return s, ok
}

// MapVirt binds a virtual qubit of an app to a physical position, after
// checking no other app has that position mapped.
func (q *Qnos) MapVirt(appID, virtID, physID int) {
	for id, mem := range q.appMems {
		if id == appID {
			continue
		}
		if _, ok := mem.VirtIDFor(physID); ok {
			panic(fmt.Sprintf("physical position %d already mapped by app %d", physID, id))
		}
	}
	q.AppMemory(appID).MapVirt(virtID, physID)
}

// FreePositions releases every physical position held by an app, takes the
// qubits out of the device and fires the memory-freed signal. Used when an
// application stops.
func (q *Qnos) FreePositions(appID int) {
	positions := q.physMem.PositionsOf(appID)
	mem := q.AppMemory(appID)
	for _, pos := range positions {
		if v, ok := mem.VirtIDFor(pos); ok {
			mem.UnmapVirt(v)
		}
		if q.device.Occupied(pos) {
			q.device.TakeQubit(pos)
		}
		q.physMem.Free(pos)
	}
	if len(positions) > 0 {
		q.memFreed.Fire()
	}
}
