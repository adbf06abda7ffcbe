package qdevice

// BellIndex identifies which of the four Bell states a generated pair is in.
type BellIndex int

const (
	PhiPlus  BellIndex = 0 // (|00> + |11>)/sqrt(2)
	PsiPlus  BellIndex = 1 // (|01> + |10>)/sqrt(2)
	PsiMinus BellIndex = 2 // (|01> - |10>)/sqrt(2)
	PhiMinus BellIndex = 3 // (|00> - |11>)/sqrt(2)
)

func (b BellIndex) String() string {
	switch b {
	case PhiPlus:
		return "PHI+"
	case PsiPlus:
		return "PSI+"
	case PsiMinus:
		return "PSI-"
	case PhiMinus:
		return "PHI-"
	}
	return "BELL?"
}

// NewBellPair manufactures two fresh qubits sharing the requested Bell state.
// The link layer calls this; nothing on a node creates entanglement directly.
func NewBellPair(index BellIndex) (*Qubit, *Qubit) {
	a := NewQubit()
	b := NewQubit()
	ApplyOne(gateH, a)
	ApplyTwo(gateCNOT, a, b)
	switch index {
	case PhiPlus:
	case PsiPlus:
		ApplyOne(gateX, b)
	case PsiMinus:
		ApplyOne(gateX, b)
		ApplyOne(gateZ, b)
	case PhiMinus:
		ApplyOne(gateZ, b)
	}
	return a, b
}
