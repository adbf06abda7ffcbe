package qdevice

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Qubit is a handle to one qubit inside a (possibly shared) joint state.
// Qubits from different nodes end up in the same joint state once an
// entangling operation touches both, which is exactly what the magic link
// layer does: entanglement is a property of the state, not of any node.
type Qubit struct {
	st  *jointState
	pos int
}

// jointState holds the amplitudes of k qubits; amplitude index i assigns
// qubit at position p the bit (i >> p) & 1.
type jointState struct {
	amps   []complex128
	qubits []*Qubit
}

// NewQubit creates a fresh qubit in state |0>.
func NewQubit() *Qubit {
	q := &Qubit{pos: 0}
	q.st = &jointState{
		amps:   []complex128{1, 0},
		qubits: []*Qubit{q},
	}
	return q
}

// merge tensors two joint states into one. No-op when they already share a
// state.
func merge(a, b *jointState) *jointState {
	if a == b {
		return a
	}
	na, nb := len(a.qubits), len(b.qubits)
	amps := make([]complex128, 1<<(na+nb))
	for ib, ab := range b.amps {
		if ab == 0 {
			continue
		}
		for ia, aa := range a.amps {
			amps[ib<<na|ia] = aa * ab
		}
	}
	st := &jointState{amps: amps, qubits: make([]*Qubit, 0, na+nb)}
	for _, q := range a.qubits {
		q.st = st
		st.qubits = append(st.qubits, q)
	}
	for _, q := range b.qubits {
		q.st = st
		q.pos += na
		st.qubits = append(st.qubits, q)
	}
	return st
}

// ApplyOne applies a 2x2 gate to q.
func ApplyOne(g *mat.CDense, q *Qubit) {
	st := q.st
	bit := 1 << q.pos
	for i := range st.amps {
		if i&bit != 0 {
			continue
		}
		a0, a1 := st.amps[i], st.amps[i|bit]
		st.amps[i] = g.At(0, 0)*a0 + g.At(0, 1)*a1
		st.amps[i|bit] = g.At(1, 0)*a0 + g.At(1, 1)*a1
	}
}

// ApplyTwo applies a 4x4 gate to (q0, q1), merging their joint states first
// if needed. The gate basis is |q0 q1| with index 2*b0 + b1.
func ApplyTwo(g *mat.CDense, q0, q1 *Qubit) {
	if q0 == q1 {
		panic("qdevice: two-qubit gate on a single qubit")
	}
	st := merge(q0.st, q1.st)
	b0 := 1 << q0.pos
	b1 := 1 << q1.pos
	for i := range st.amps {
		if i&b0 != 0 || i&b1 != 0 {
			continue
		}
		var in [4]complex128
		in[0] = st.amps[i]
		in[1] = st.amps[i|b1]
		in[2] = st.amps[i|b0]
		in[3] = st.amps[i|b0|b1]
		for r := 0; r < 4; r++ {
			var v complex128
			for c := 0; c < 4; c++ {
				v += g.At(r, c) * in[c]
			}
			switch r {
			case 0:
				st.amps[i] = v
			case 1:
				st.amps[i|b1] = v
			case 2:
				st.amps[i|b0] = v
			case 3:
				st.amps[i|b0|b1] = v
			}
		}
	}
}

// MeasureZ measures q in the computational basis, collapsing the joint state.
// The outcome draw comes from rng so runs are reproducible.
func MeasureZ(q *Qubit, rng *rand.Rand) int {
	st := q.st
	bit := 1 << q.pos
	var p0 float64
	for i, a := range st.amps {
		if i&bit == 0 {
			p0 += real(a)*real(a) + imag(a)*imag(a)
		}
	}
	outcome := 0
	if rng.Float64() >= p0 {
		outcome = 1
	}
	collapse(st, bit, outcome)
	return outcome
}

// collapse projects the state onto the subspace where the qubit at bit has
// the given value and renormalizes.
func collapse(st *jointState, bit int, value int) {
	var norm float64
	for i, a := range st.amps {
		keep := (i&bit != 0) == (value == 1)
		if !keep {
			st.amps[i] = 0
			continue
		}
		norm += real(a)*real(a) + imag(a)*imag(a)
	}
	scale := complex(1/math.Sqrt(norm), 0)
	for i := range st.amps {
		st.amps[i] *= scale
	}
}

// Reset projects q to |0>: a measurement followed by a bit flip when the
// outcome was 1. This is how a device initializes a position that may still
// be entangled with others.
func Reset(q *Qubit, rng *rand.Rand) {
	if MeasureZ(q, rng) == 1 {
		ApplyOne(gateX, q)
	}
}

// ProbZero returns the probability of measuring q as 0, without collapsing.
// Used by local state dumps.
func ProbZero(q *Qubit) float64 {
	st := q.st
	bit := 1 << q.pos
	var p0 float64
	for i, a := range st.amps {
		if i&bit == 0 {
			p0 += real(a)*real(a) + imag(a)*imag(a)
		}
	}
	return p0
}
