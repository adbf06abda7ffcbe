package qdevice

import (
	"math"
	"math/rand"
)

// Basis selects the measurement basis for direct-measurement entanglement
// generation.
type Basis int

const (
	BasisZ Basis = iota
	BasisX
	BasisY
)

func (b Basis) String() string {
	switch b {
	case BasisZ:
		return "Z"
	case BasisX:
		return "X"
	case BasisY:
		return "Y"
	}
	return "basis?"
}

// MeasureInBasis rotates q into the computational basis for b, then measures.
func MeasureInBasis(q *Qubit, b Basis, rng *rand.Rand) int {
	switch b {
	case BasisZ:
	case BasisX:
		ApplyOne(gateH, q)
	case BasisY:
		ApplyOne(rotX(math.Pi/2), q)
	}
	return MeasureZ(q, rng)
}
