package stack

import (
	"math"

	"github.com/QuTech-Delft/squidasm-sub000/qdevice"
	"github.com/QuTech-Delft/squidasm-sub000/sim"
)

// electronPos is the communication position of a defect-center device.
const electronPos = 0

// electronState classifies the electron position before a relocation step,
// so the decision of what to move where is explicit rather than scattered
// over allocation and occupancy checks.
type electronState int

const (
	// electronFree: the position is unallocated and holds no qubit.
	electronFree electronState = iota
	// electronIdle: allocated to an app but holding no qubit.
	electronIdle
	// electronHolding: allocated and holding a state that must be moved to
	// a carbon before the electron can be reused.
	electronHolding
)

func (s electronState) String() string {
	switch s {
	case electronFree:
		return "free"
	case electronIdle:
		return "idle"
	case electronHolding:
		return "holding"
	}
	return "electron?"
}

// electronStateOf reads the electron's current state and, when it is
// allocated, the owning app.
func electronStateOf(q *Qnos) (electronState, int) {
	if !q.PhysMem().IsAllocated(electronPos) {
		return electronFree, -1
	}
	owner, _ := q.PhysMem().Owner(electronPos)
	if !q.Device().Occupied(electronPos) {
		return electronIdle, owner
	}
	return electronHolding, owner
}

// moveElectronToCarbon transfers the electron's state into a freshly
// initialized carbon using only the native gate set. The electron is left
// disentangled and can be reused; the caller discards its qubit.
func moveElectronToCarbon(t *sim.Task, dev *qdevice.Device, carbon int) {
	dev.Init(t, carbon)
	dev.ApplyGate(t, qdevice.GateRotY, []int{electronPos}, math.Pi/2)
	dev.ApplyGate(t, qdevice.GateCRotY, []int{electronPos, carbon}, -math.Pi/2)
	dev.ApplyGate(t, qdevice.GateRotX, []int{electronPos}, -math.Pi/2)
	dev.ApplyGate(t, qdevice.GateCRotX, []int{electronPos, carbon}, math.Pi/2)
}

// moveCarbonToElectronForMeasure transfers a carbon's state onto the
// electron so it can be measured there. The trailing rotation undoes the
// basis change the transfer introduces.
func moveCarbonToElectronForMeasure(t *sim.Task, dev *qdevice.Device, carbon int) {
	dev.Init(t, electronPos)
	dev.ApplyGate(t, qdevice.GateRotY, []int{electronPos}, math.Pi/2)
	dev.ApplyGate(t, qdevice.GateCRotY, []int{electronPos, carbon}, -math.Pi/2)
	dev.ApplyGate(t, qdevice.GateRotX, []int{electronPos}, -math.Pi/2)
	dev.ApplyGate(t, qdevice.GateCRotX, []int{electronPos, carbon}, math.Pi/2)
	dev.ApplyGate(t, qdevice.GateRotY, []int{electronPos}, -math.Pi/2)
}
