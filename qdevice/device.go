package qdevice

import (
	"fmt"
	"math/rand"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/QuTech-Delft/squidasm-sub000/sim"
)

// GateKind enumerates the gate operations a device can be asked to perform.
type GateKind int

const (
	GateX GateKind = iota
	GateY
	GateZ
	GateH
	GateRotX
	GateRotY
	GateRotZ
	GateCNOT
	GateCZ
	GateCRotX
	GateCRotY
)

func (k GateKind) String() string {
	switch k {
	case GateX:
		return "X"
	case GateY:
		return "Y"
	case GateZ:
		return "Z"
	case GateH:
		return "H"
	case GateRotX:
		return "ROT_X"
	case GateRotY:
		return "ROT_Y"
	case GateRotZ:
		return "ROT_Z"
	case GateCNOT:
		return "CNOT"
	case GateCZ:
		return "CZ"
	case GateCRotX:
		return "CROT_X"
	case GateCRotY:
		return "CROT_Y"
	}
	return fmt.Sprintf("GateKind(%d)", int(k))
}

// twoQubit reports whether the gate acts on two positions.
func (k GateKind) twoQubit() bool {
	switch k {
	case GateCNOT, GateCZ, GateCRotX, GateCRotY:
		return true
	}
	return false
}

// Config describes a device flavor: position count, which positions can take
// part in entanglement generation, and per-operation durations in ns.
type Config struct {
	NumPositions  int
	CommPositions []int

	InitDuration    int64
	SingleDuration  int64
	TwoDuration     int64
	MeasureDuration int64
}

// GenericConfig models an abstract device where every position is
// communication-capable and any gate can run on any position.
func GenericConfig(numPositions int) Config {
	comm := make([]int, numPositions)
	for i := range comm {
		comm[i] = i
	}
	return Config{
		NumPositions:    numPositions,
		CommPositions:   comm,
		InitDuration:    1_000,
		SingleDuration:  1_000,
		TwoDuration:     100_000,
		MeasureDuration: 10_000,
	}
}

// NVConfig models a defect-center device: position 0 is the electron (the
// only communication position), the rest are carbon storage positions.
func NVConfig(numPositions int) Config {
	return Config{
		NumPositions:    numPositions,
		CommPositions:   []int{0},
		InitDuration:    2_000,
		SingleDuration:  1_000,
		TwoDuration:     500_000,
		MeasureDuration: 20_000,
	}
}

// Device is a node's quantum memory: a fixed array of positions each holding
// at most one qubit. Every operation occupies the device for its declared
// duration; the calling task is suspended for that long.
type Device struct {
	cfg       Config
	positions []*Qubit
	rng       *rand.Rand
	name      string
}

// New creates a device for the given node. Measurement randomness is drawn
// from the node's device RNG subsystem.
func New(ctx *sim.Context, nodeID int, cfg Config) *Device {
	name, _ := ctx.NodeName(nodeID)
	return &Device{
		cfg:       cfg,
		positions: make([]*Qubit, cfg.NumPositions),
		rng:       ctx.RNG().ForSubsystem(sim.SubsystemDevice(nodeID)),
		name:      name,
	}
}

// NumPositions returns the device's position count.
func (d *Device) NumPositions() int { return d.cfg.NumPositions }

// CommPositions returns the communication-capable position indices.
func (d *Device) CommPositions() []int { return d.cfg.CommPositions }

// RNG exposes the device's measurement RNG; the link layer uses the same
// stream when it measures qubits on this device directly.
func (d *Device) RNG() *rand.Rand { return d.rng }

// PutQubit places a qubit at a position. The link layer uses this to deliver
// one half of a manufactured pair.
func (d *Device) PutQubit(pos int, q *Qubit) {
	d.checkPos(pos)
	if d.positions[pos] != nil {
		panic(fmt.Sprintf("qdevice %s: position %d already occupied", d.name, pos))
	}
	d.positions[pos] = q
}

// TakeQubit removes and returns the qubit at a position, or nil.
func (d *Device) TakeQubit(pos int) *Qubit {
	d.checkPos(pos)
	q := d.positions[pos]
	d.positions[pos] = nil
	return q
}

// Occupied reports whether a position currently holds a qubit.
func (d *Device) Occupied(pos int) bool {
	d.checkPos(pos)
	return d.positions[pos] != nil
}

// Init resets a position to |0>, creating a fresh qubit there if the
// position is empty.
func (d *Device) Init(t *sim.Task, pos int) {
	d.checkPos(pos)
	t.Sleep(d.cfg.InitDuration)
	if d.positions[pos] == nil {
		d.positions[pos] = NewQubit()
		return
	}
	Reset(d.positions[pos], d.rng)
}

// ApplyGate performs a gate on the given positions. For rotation kinds the
// angle is honored; fixed gates ignore it. Operating on an empty position is
// an interpreter bug.
func (d *Device) ApplyGate(t *sim.Task, kind GateKind, positions []int, angle float64) {
	if kind.twoQubit() {
		if len(positions) != 2 {
			panic(fmt.Sprintf("qdevice %s: gate %s needs 2 positions, got %d", d.name, kind, len(positions)))
		}
		t.Sleep(d.cfg.TwoDuration)
		ApplyTwo(d.twoQubitMatrix(kind, angle), d.qubit(positions[0]), d.qubit(positions[1]))
		return
	}
	if len(positions) != 1 {
		panic(fmt.Sprintf("qdevice %s: gate %s needs 1 position, got %d", d.name, kind, len(positions)))
	}
	t.Sleep(d.cfg.SingleDuration)
	ApplyOne(d.singleQubitMatrix(kind, angle), d.qubit(positions[0]))
}

// Measure measures a position in the computational basis and returns the
// outcome bit. The qubit stays in place, collapsed.
func (d *Device) Measure(t *sim.Task, pos int) int {
	t.Sleep(d.cfg.MeasureDuration)
	outcome := MeasureZ(d.qubit(pos), d.rng)
	logrus.Debugf("qdevice %s: measured position %d -> %d", d.name, pos, outcome)
	return outcome
}

func (d *Device) singleQubitMatrix(kind GateKind, angle float64) *mat.CDense {
	switch kind {
	case GateX:
		return gateX
	case GateY:
		return gateY
	case GateZ:
		return gateZ
	case GateH:
		return gateH
	case GateRotX:
		return rotX(angle)
	case GateRotY:
		return rotY(angle)
	case GateRotZ:
		return rotZ(angle)
	}
	panic(fmt.Sprintf("qdevice %s: %s is not a single-qubit gate", d.name, kind))
}

func (d *Device) twoQubitMatrix(kind GateKind, angle float64) *mat.CDense {
	switch kind {
	case GateCNOT:
		return gateCNOT
	case GateCZ:
		return gateCZ
	case GateCRotX:
		return cRotX(angle)
	case GateCRotY:
		return cRotY(angle)
	}
	panic(fmt.Sprintf("qdevice %s: %s is not a two-qubit gate", d.name, kind))
}

func (d *Device) qubit(pos int) *Qubit {
	d.checkPos(pos)
	q := d.positions[pos]
	if q == nil {
		panic(fmt.Sprintf("qdevice %s: no qubit at position %d", d.name, pos))
	}
	return q
}

func (d *Device) checkPos(pos int) {
	if pos < 0 || pos >= d.cfg.NumPositions {
		panic(fmt.Sprintf("qdevice %s: position %d out of range [0,%d)", d.name, pos, d.cfg.NumPositions))
	}
}

// DumpLocalState logs the occupancy and single-qubit |0> probability of every
// position. Used by the breakpoint instruction's local dump action.
func (d *Device) DumpLocalState() {
	for i, q := range d.positions {
		if q == nil {
			continue
		}
		logrus.Infof("qdevice %s: position %d: P(|0>) = %.4f", d.name, i, ProbZero(q))
	}
}
