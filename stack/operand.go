package stack

import "fmt"

// RegGroup names one of the four register groups of an application's
// register file.
type RegGroup uint8

const (
	RegR RegGroup = iota // general purpose
	RegC                 // constants
	RegQ                 // virtual qubit ids
	RegM                 // measurement outcomes
)

// RegsPerGroup is the fixed size of every register group.
const RegsPerGroup = 16

func (g RegGroup) String() string {
	switch g {
	case RegR:
		return "R"
	case RegC:
		return "C"
	case RegQ:
		return "Q"
	case RegM:
		return "M"
	}
	return "?"
}

// Register identifies one slot in the register file.
type Register struct {
	Group RegGroup
	Index uint8
}

func (r Register) String() string {
	return fmt.Sprintf("%s%d", r.Group, r.Index)
}

// R, C, Q and M are shorthand constructors for register operands.
func R(i uint8) Register { return Register{Group: RegR, Index: i} }
func C(i uint8) Register { return Register{Group: RegC, Index: i} }
func Q(i uint8) Register { return Register{Group: RegQ, Index: i} }
func M(i uint8) Register { return Register{Group: RegM, Index: i} }

// Operand is an immediate value or a register holding one. Array entry
// indices and slice bounds accept either form.
type Operand struct {
	IsReg bool
	Reg   Register
	Imm   int32
}

// Imm wraps an immediate operand.
func Imm(v int32) Operand { return Operand{Imm: v} }

// FromReg wraps a register operand.
func FromReg(r Register) Operand { return Operand{IsReg: true, Reg: r} }

func (o Operand) String() string {
	if o.IsReg {
		return o.Reg.String()
	}
	return fmt.Sprintf("%d", o.Imm)
}

// ArrayEntry addresses one slot of an array.
type ArrayEntry struct {
	Addr  int32
	Index Operand
}

func (e ArrayEntry) String() string {
	return fmt.Sprintf("@%d[%s]", e.Addr, e.Index)
}

// ArraySlice addresses the half-open range [Start, Stop) of an array.
type ArraySlice struct {
	Addr  int32
	Start Operand
	Stop  Operand
}

func (s ArraySlice) String() string {
	return fmt.Sprintf("@%d[%s:%s]", s.Addr, s.Start, s.Stop)
}
