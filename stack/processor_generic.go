package stack

import (
	"fmt"

	"github.com/QuTech-Delft/squidasm-sub000/qdevice"
	"github.com/QuTech-Delft/squidasm-sub000/sim"
)

// genericFlavor maps instructions one-to-one onto an abstract device: every
// gate runs on any position and nothing ever needs relocating.
type genericFlavor struct {
	qnos *Qnos
}

// NewGenericFlavor builds the flavor for a device with GenericConfig.
func NewGenericFlavor(qnos *Qnos) flavor {
	return &genericFlavor{qnos: qnos}
}

func (f *genericFlavor) Name() string { return "generic" }

func (f *genericFlavor) Init(t *sim.Task, pos int) {
	f.qnos.Device().Init(t, pos)
}

func (f *genericFlavor) SingleGate(t *sim.Task, op Op, pos int, angle float64) {
	var kind qdevice.GateKind
	switch op {
	case OpX:
		kind = qdevice.GateX
	case OpY:
		kind = qdevice.GateY
	case OpZ:
		kind = qdevice.GateZ
	case OpH:
		kind = qdevice.GateH
	case OpRotX:
		kind = qdevice.GateRotX
	case OpRotY:
		kind = qdevice.GateRotY
	case OpRotZ:
		kind = qdevice.GateRotZ
	default:
		panic(fmt.Sprintf("generic flavor: %s is not a single-qubit gate", op))
	}
	f.qnos.Device().ApplyGate(t, kind, []int{pos}, angle)
}

func (f *genericFlavor) TwoGate(t *sim.Task, op Op, pos0, pos1 int, angle float64) {
	var kind qdevice.GateKind
	switch op {
	case OpCnot:
		kind = qdevice.GateCNOT
	case OpCphase:
		kind = qdevice.GateCZ
	default:
		panic(fmt.Sprintf("generic flavor: unsupported two-qubit gate %s", op))
	}
	f.qnos.Device().ApplyGate(t, kind, []int{pos0, pos1}, angle)
}

func (f *genericFlavor) Measure(t *sim.Task, appID, pos int) (int, int) {
	return f.qnos.Device().Measure(t, pos), pos
}

func (f *genericFlavor) MoveCommToStorage(t *sim.Task, appID, commPos int) (int, error) {
	// Every position is communication-capable; the qubit stays put.
	return commPos, nil
}
