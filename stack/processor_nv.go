package stack

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/QuTech-Delft/squidasm-sub000/qdevice"
	"github.com/QuTech-Delft/squidasm-sub000/sim"
)

// nvFlavor maps instructions onto a defect-center device: rotations are the
// only single-qubit gates, two-qubit gates need the electron as control, and
// measurement only happens at the electron, so carbon measurements first
// transfer the state there.
type nvFlavor struct {
	qnos *Qnos
}

// NewNVFlavor builds the flavor for a device with NVConfig.
func NewNVFlavor(qnos *Qnos) flavor {
	return &nvFlavor{qnos: qnos}
}

func (f *nvFlavor) Name() string { return "nv" }

func (f *nvFlavor) Init(t *sim.Task, pos int) {
	f.qnos.Device().Init(t, pos)
}

func (f *nvFlavor) SingleGate(t *sim.Task, op Op, pos int, angle float64) {
	var kind qdevice.GateKind
	switch op {
	case OpRotX:
		kind = qdevice.GateRotX
	case OpRotY:
		kind = qdevice.GateRotY
	case OpRotZ:
		kind = qdevice.GateRotZ
	default:
		panic(fmt.Sprintf("nv flavor: %s is not in the native gate set", op))
	}
	f.qnos.Device().ApplyGate(t, kind, []int{pos}, angle)
}

func (f *nvFlavor) TwoGate(t *sim.Task, op Op, pos0, pos1 int, angle float64) {
	if pos0 != electronPos {
		panic(fmt.Sprintf("nv flavor: two-qubit gates are controlled by the electron, got control %d", pos0))
	}
	var kind qdevice.GateKind
	switch op {
	case OpCRotX:
		kind = qdevice.GateCRotX
	case OpCRotY:
		kind = qdevice.GateCRotY
	default:
		panic(fmt.Sprintf("nv flavor: %s is not in the native gate set", op))
	}
	f.qnos.Device().ApplyGate(t, kind, []int{pos0, pos1}, angle)
}

func (f *nvFlavor) Measure(t *sim.Task, appID, pos int) (int, int) {
	dev := f.qnos.Device()
	if pos == electronPos {
		return dev.Measure(t, pos), pos
	}

	// A carbon cannot be read out directly. Clear the electron if it holds
	// a state, pull the carbon's state onto it and measure there.
	f.vacateElectron(t)
	pm := f.qnos.PhysMem()
	if state, _ := electronStateOf(f.qnos); state == electronFree {
		ep, err := pm.AllocateComm(appID)
		if err != nil || ep != electronPos {
			panic(fmt.Sprintf("nv flavor: cannot claim electron for measurement: %v", err))
		}
	}
	moveCarbonToElectronForMeasure(t, dev, pos)
	outcome := dev.Measure(t, electronPos)

	// The state moved; drop the leftover carbon qubit and free its slot.
	if dev.Occupied(pos) {
		dev.TakeQubit(pos)
	}
	pm.Free(pos)
	f.qnos.MemFreed().Fire()
	return outcome, electronPos
}

func (f *nvFlavor) MoveCommToStorage(t *sim.Task, appID, commPos int) (int, error) {
	if commPos != electronPos {
		panic(fmt.Sprintf("nv flavor: %d is not the communication position", commPos))
	}
	pm := f.qnos.PhysMem()
	carbon, err := pm.AllocateStorage(appID)
	if err != nil {
		return 0, err
	}
	moveElectronToCarbon(t, f.qnos.Device(), carbon)
	f.qnos.Device().TakeQubit(electronPos)
	pm.Free(electronPos)
	f.qnos.MemFreed().Fire()
	logrus.Debugf("nv flavor: moved electron state of app %d to carbon %d", appID, carbon)
	return carbon, nil
}

// vacateElectron moves the electron's state out of the way, into a storage
// position allocated to whichever app owns it, and remaps that app's
// virtual qubit. Free and idle electrons need no work.
func (f *nvFlavor) vacateElectron(t *sim.Task) {
	state, owner := electronStateOf(f.qnos)
	if state != electronHolding {
		return
	}
	logrus.Debugf("nv flavor: electron is %s (app %d), vacating", state, owner)
	pm := f.qnos.PhysMem()
	carbon, err := pm.AllocateStorage(owner)
	if err != nil {
		panic(fmt.Sprintf("nv flavor: no storage position to vacate electron into: %v", err))
	}
	moveElectronToCarbon(t, f.qnos.Device(), carbon)
	f.qnos.Device().TakeQubit(electronPos)
	pm.Free(electronPos)

	mem := f.qnos.AppMemory(owner)
	if v, ok := mem.VirtIDFor(electronPos); ok {
		mem.UnmapVirt(v)
		f.qnos.MapVirt(owner, v, carbon)
	}
	f.qnos.MemFreed().Fire()
}
