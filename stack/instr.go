package stack

import "fmt"

// Op is the closed set of interpreter instruction kinds. Dispatch is a
// switch over this tag; there is deliberately no open instruction interface.
type Op uint8

const (
	// Classical register/array instructions.
	OpSet Op = iota
	OpStore
	OpLoad
	OpLea
	OpUndef
	OpArray

	// Branches. A taken branch rewrites the program counter; everything
	// else auto-increments.
	OpJmp
	OpBez
	OpBnz
	OpBeq
	OpBne
	OpBlt
	OpBge

	// Classical arithmetic, with and without modulus.
	OpAdd
	OpSub
	OpAddm
	OpSubm

	// Qubit lifecycle.
	OpQAlloc
	OpQFree
	OpInit

	// Single-qubit fixed gates.
	OpX
	OpY
	OpZ
	OpH

	// Single-qubit rotations; angle is AngleNum * pi / 2^AngleDenom.
	OpRotX
	OpRotY
	OpRotZ

	// Two-qubit gates.
	OpCnot
	OpCphase
	OpCRotX
	OpCRotY

	// Measurement.
	OpMeas

	// Entanglement generation.
	OpCreateEPR
	OpRecvEPR
	OpWaitAll

	// Return markers; no-ops in the interpreter, kept so compiled
	// subroutines round-trip.
	OpRetReg
	OpRetArr

	OpBreakpoint
)

var opNames = map[Op]string{
	OpSet: "set", OpStore: "store", OpLoad: "load", OpLea: "lea",
	OpUndef: "undef", OpArray: "array",
	OpJmp: "jmp", OpBez: "bez", OpBnz: "bnz", OpBeq: "beq", OpBne: "bne",
	OpBlt: "blt", OpBge: "bge",
	OpAdd: "add", OpSub: "sub", OpAddm: "addm", OpSubm: "subm",
	OpQAlloc: "qalloc", OpQFree: "qfree", OpInit: "init",
	OpX: "x", OpY: "y", OpZ: "z", OpH: "h",
	OpRotX: "rot_x", OpRotY: "rot_y", OpRotZ: "rot_z",
	OpCnot: "cnot", OpCphase: "cphase", OpCRotX: "crot_x", OpCRotY: "crot_y",
	OpMeas: "meas",
	OpCreateEPR: "create_epr", OpRecvEPR: "recv_epr", OpWaitAll: "wait_all",
	OpRetReg: "ret_reg", OpRetArr: "ret_arr",
	OpBreakpoint: "breakpoint",
}

func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return fmt.Sprintf("Op(%d)", uint8(o))
}

// BreakpointAction selects what a breakpoint instruction does.
type BreakpointAction int32

const (
	BreakpointNop        BreakpointAction = 0
	BreakpointDumpLocal  BreakpointAction = 1
	BreakpointDumpGlobal BreakpointAction = 2 // unsupported, see processor
)

// Instr is one interpreter instruction. Which fields are meaningful depends
// on Op; unused fields stay zero and are omitted from the serialized form.
type Instr struct {
	Op Op `cbor:"op"`

	// Primary register operand: set/load/store/lea/undef value register,
	// qalloc/qfree/init/single-gate virtual-qubit register, meas qubit
	// register, unary branch register, array size register.
	Reg Register `cbor:"reg,omitempty"`

	// Secondary registers: two-qubit gate pair, binary branch pair, meas
	// outcome register (Reg1).
	Reg0 Register `cbor:"reg0,omitempty"`
	Reg1 Register `cbor:"reg1,omitempty"`

	// Classical arithmetic operands.
	RegIn0 Register `cbor:"in0,omitempty"`
	RegIn1 Register `cbor:"in1,omitempty"`
	RegOut Register `cbor:"out,omitempty"`
	RegMod Register `cbor:"mod,omitempty"`

	Imm  int32 `cbor:"imm,omitempty"`
	Addr int32 `cbor:"addr,omitempty"`
	Line int32 `cbor:"line,omitempty"` // branch target

	Entry ArrayEntry `cbor:"entry,omitempty"`
	Slice ArraySlice `cbor:"slice,omitempty"`

	AngleNum   int32 `cbor:"anum,omitempty"`
	AngleDenom int32 `cbor:"adenom,omitempty"`

	// EPR instruction operands: registers holding the remote node id, EPR
	// socket id and the three array addresses.
	RegRemote  Register `cbor:"remote,omitempty"`
	RegSocket  Register `cbor:"socket,omitempty"`
	RegQubits  Register `cbor:"qubits,omitempty"`
	RegArgs    Register `cbor:"args,omitempty"`
	RegResults Register `cbor:"results,omitempty"`

	BpAction BreakpointAction `cbor:"bp,omitempty"`
}

func (in Instr) String() string {
	return fmt.Sprintf("%s reg=%s reg0=%s reg1=%s imm=%d addr=%d line=%d",
		in.Op, in.Reg, in.Reg0, in.Reg1, in.Imm, in.Addr, in.Line)
}
