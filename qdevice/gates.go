package qdevice

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// Fixed single- and two-qubit gate matrices. Two-qubit matrices are in the
// basis |q0 q1> with amplitude index 2*b0 + b1 (q0 is the first argument,
// the control for controlled gates).

var (
	gateX = mat.NewCDense(2, 2, []complex128{
		0, 1,
		1, 0,
	})
	gateY = mat.NewCDense(2, 2, []complex128{
		0, -1i,
		1i, 0,
	})
	gateZ = mat.NewCDense(2, 2, []complex128{
		1, 0,
		0, -1,
	})
	gateH = mat.NewCDense(2, 2, []complex128{
		complex(1/math.Sqrt2, 0), complex(1/math.Sqrt2, 0),
		complex(1/math.Sqrt2, 0), complex(-1/math.Sqrt2, 0),
	})
	gateCNOT = mat.NewCDense(4, 4, []complex128{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 0, 1,
		0, 0, 1, 0,
	})
	gateCZ = mat.NewCDense(4, 4, []complex128{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, -1,
	})
)

// rotX returns the single-qubit rotation exp(-i X angle/2).
func rotX(angle float64) *mat.CDense {
	c := complex(math.Cos(angle/2), 0)
	s := complex(0, -math.Sin(angle/2))
	return mat.NewCDense(2, 2, []complex128{
		c, s,
		s, c,
	})
}

// rotY returns the single-qubit rotation exp(-i Y angle/2).
func rotY(angle float64) *mat.CDense {
	c := complex(math.Cos(angle/2), 0)
	s := complex(math.Sin(angle/2), 0)
	return mat.NewCDense(2, 2, []complex128{
		c, -s,
		s, c,
	})
}

// rotZ returns the single-qubit rotation exp(-i Z angle/2).
func rotZ(angle float64) *mat.CDense {
	return mat.NewCDense(2, 2, []complex128{
		cmplx.Exp(complex(0, -angle/2)), 0,
		0, cmplx.Exp(complex(0, angle/2)),
	})
}

// controlledDir builds the NV-native controlled-direction rotation: the
// target is rotated by +angle when the control is |0> and by -angle when the
// control is |1>.
func controlledDir(axis func(float64) *mat.CDense, angle float64) *mat.CDense {
	plus := axis(angle)
	minus := axis(-angle)
	g := mat.NewCDense(4, 4, nil)
	for r := 0; r < 2; r++ {
		for c := 0; c < 2; c++ {
			g.Set(r, c, plus.At(r, c))
			g.Set(2+r, 2+c, minus.At(r, c))
		}
	}
	return g
}

func cRotX(angle float64) *mat.CDense { return controlledDir(rotX, angle) }
func cRotY(angle float64) *mat.CDense { return controlledDir(rotY, angle) }
