package stack

import (
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/QuTech-Delft/squidasm-sub000/sim"
)

// flavor is the device-specific half of the processor: how qubit
// instructions map onto what this device can physically do. The netstack
// shares the flavor so multi-pair generation can relocate communication
// qubits the same way the interpreter would.
type flavor interface {
	Name() string
	Init(t *sim.Task, pos int)
	// SingleGate applies a fixed gate or rotation to one position; angle
	// is ignored for fixed gates.
	SingleGate(t *sim.Task, op Op, pos int, angle float64)
	TwoGate(t *sim.Task, op Op, pos0, pos1 int, angle float64)
	// Measure returns the outcome and the position the measured qubit
	// ended up at; flavors that relocate before measuring return a
	// different position than they were given.
	Measure(t *sim.Task, appID, pos int) (outcome, newPos int)
	// MoveCommToStorage vacates a communication position after a pair is
	// delivered there, so the next pair can be generated. Returns the
	// position now holding the qubit.
	MoveCommToStorage(t *sim.Task, appID, commPos int) (int, error)
}

// execResult is the processor's reply to the handler after running one
// subroutine.
type execResult struct {
	AppID   int
	Aborted bool
}

// Processor interprets subroutines against an application's memory and the
// node's quantum device. It runs as one kernel task: it receives a
// subroutine from the handler, executes it to completion (suspending at
// device operations and array waits), then replies and waits for the next.
type Processor struct {
	ctx  *sim.Context
	qnos *Qnos
	fl   flavor

	handlerPort  *sim.Port // subroutines in, exec results out
	netstackPort *sim.Port // entanglement requests out
	noticePort   *sim.Port // netstack notices in

	name string
}

// NewProcessor wires a processor over shared node state.
func NewProcessor(ctx *sim.Context, qnos *Qnos, fl flavor,
	handlerPort, netstackPort, noticePort *sim.Port) *Processor {
	name, _ := ctx.NodeName(qnos.NodeID())
	return &Processor{
		ctx:          ctx,
		qnos:         qnos,
		fl:           fl,
		handlerPort:  handlerPort,
		netstackPort: netstackPort,
		noticePort:   noticePort,
		name:         name,
	}
}

// Flavor exposes the device flavor to the netstack.
func (p *Processor) Flavor() flavor { return p.fl }

// Run is the processor task body.
func (p *Processor) Run(t *sim.Task) {
	for {
		msg := p.handlerPort.Recv(t)
		sub, ok := msg.(*Subroutine)
		if !ok {
			panic(fmt.Sprintf("processor %s: unexpected message %T", p.name, msg))
		}
		logrus.Debugf("processor %s: executing subroutine of app %d (%d instructions)",
			p.name, sub.AppID, len(sub.Instrs))
		err := p.execute(t, sub)
		res := execResult{AppID: sub.AppID}
		if errors.Is(err, ErrSubroutineAborted) {
			res.Aborted = true
		}
		p.handlerPort.Send(res)
	}
}

func (p *Processor) execute(t *sim.Task, sub *Subroutine) error {
	mem := p.qnos.AppMemory(sub.AppID)
	mem.SetProgCounter(0)
	for mem.ProgCounter() < len(sub.Instrs) {
		in := sub.Instrs[mem.ProgCounter()]
		logrus.Tracef("processor %s: app %d pc %d: %s", p.name, sub.AppID, mem.ProgCounter(), in)
		jumped, err := p.step(t, mem, in)
		if err != nil {
			return err
		}
		if !jumped {
			mem.IncProgCounter()
		}
	}
	return nil
}

// step executes one instruction and reports whether it rewrote the program
// counter itself.
func (p *Processor) step(t *sim.Task, mem *AppMemory, in Instr) (bool, error) {
	switch in.Op {

	case OpSet:
		mem.SetReg(in.Reg, int64(in.Imm))

	case OpStore:
		v := mem.GetReg(in.Reg)
		mem.SetArrayValue(in.Entry.Addr, p.operand(mem, in.Entry.Index), &v)

	case OpLoad:
		v, ok := mem.GetArrayValue(in.Entry.Addr, p.operand(mem, in.Entry.Index))
		if !ok {
			panic(fmt.Sprintf("processor %s: load of unset slot %s", p.name, in.Entry))
		}
		mem.SetReg(in.Reg, v)

	case OpLea:
		mem.SetReg(in.Reg, int64(in.Addr))

	case OpUndef:
		mem.SetArrayValue(in.Entry.Addr, p.operand(mem, in.Entry.Index), nil)

	case OpArray:
		mem.InitArray(in.Addr, int(mem.GetReg(in.Reg)))

	case OpJmp:
		mem.SetProgCounter(int(in.Line))
		return true, nil

	case OpBez, OpBnz:
		v := mem.GetReg(in.Reg)
		if (in.Op == OpBez) == (v == 0) {
			mem.SetProgCounter(int(in.Line))
			return true, nil
		}

	case OpBeq, OpBne, OpBlt, OpBge:
		a, b := mem.GetReg(in.Reg0), mem.GetReg(in.Reg1)
		taken := false
		switch in.Op {
		case OpBeq:
			taken = a == b
		case OpBne:
			taken = a != b
		case OpBlt:
			taken = a < b
		case OpBge:
			taken = a >= b
		}
		if taken {
			mem.SetProgCounter(int(in.Line))
			return true, nil
		}

	case OpAdd, OpSub:
		a, b := mem.GetReg(in.RegIn0), mem.GetReg(in.RegIn1)
		if in.Op == OpSub {
			b = -b
		}
		mem.SetReg(in.RegOut, a+b)

	case OpAddm, OpSubm:
		a, b := mem.GetReg(in.RegIn0), mem.GetReg(in.RegIn1)
		m := mem.GetReg(in.RegMod)
		if m < 1 {
			panic(fmt.Sprintf("processor %s: modulus %d < 1", p.name, m))
		}
		if in.Op == OpSubm {
			b = -b
		}
		mem.SetReg(in.RegOut, ((a+b)%m+m)%m)

	case OpQAlloc:
		virt := int(mem.GetReg(in.Reg))
		pos, err := p.qnos.PhysMem().Allocate(mem.AppID())
		if err != nil {
			panic(fmt.Sprintf("processor %s: qalloc for app %d: %v", p.name, mem.AppID(), err))
		}
		p.qnos.MapVirt(mem.AppID(), virt, pos)

	case OpQFree:
		virt := int(mem.GetReg(in.Reg))
		pos := p.phys(mem, virt)
		mem.UnmapVirt(virt)
		if p.qnos.Device().Occupied(pos) {
			p.qnos.Device().TakeQubit(pos)
		}
		p.qnos.PhysMem().Free(pos)
		p.qnos.MemFreed().Fire()

	case OpInit:
		p.fl.Init(t, p.phys(mem, int(mem.GetReg(in.Reg))))

	case OpX, OpY, OpZ, OpH, OpRotX, OpRotY, OpRotZ:
		pos := p.phys(mem, int(mem.GetReg(in.Reg)))
		p.fl.SingleGate(t, in.Op, pos, angleOf(in))

	case OpCnot, OpCphase, OpCRotX, OpCRotY:
		pos0 := p.phys(mem, int(mem.GetReg(in.Reg0)))
		pos1 := p.phys(mem, int(mem.GetReg(in.Reg1)))
		p.fl.TwoGate(t, in.Op, pos0, pos1, angleOf(in))

	case OpMeas:
		virt := int(mem.GetReg(in.Reg0))
		pos := p.phys(mem, virt)
		outcome, newPos := p.fl.Measure(t, mem.AppID(), pos)
		if newPos != pos {
			mem.UnmapVirt(virt)
			p.qnos.MapVirt(mem.AppID(), virt, newPos)
		}
		mem.SetReg(in.Reg1, int64(outcome))

	case OpCreateEPR:
		p.netstackPort.Send(&NetstackCreateRequest{
			AppID:        mem.AppID(),
			RemoteNodeID: int(mem.GetReg(in.RegRemote)),
			SocketID:     int(mem.GetReg(in.RegSocket)),
			QubitsAddr:   int32(mem.GetReg(in.RegQubits)),
			ArgsAddr:     int32(mem.GetReg(in.RegArgs)),
			ResultsAddr:  int32(mem.GetReg(in.RegResults)),
		})

	case OpRecvEPR:
		p.netstackPort.Send(&NetstackReceiveRequest{
			AppID:        mem.AppID(),
			RemoteNodeID: int(mem.GetReg(in.RegRemote)),
			SocketID:     int(mem.GetReg(in.RegSocket)),
			QubitsAddr:   int32(mem.GetReg(in.RegQubits)),
			ResultsAddr:  int32(mem.GetReg(in.RegResults)),
		})

	case OpWaitAll:
		if err := p.waitAll(t, mem, in.Slice); err != nil {
			return false, err
		}

	case OpRetReg, OpRetArr:
		// Results travel back in the memory snapshot.

	case OpBreakpoint:
		switch in.BpAction {
		case BreakpointNop:
		case BreakpointDumpLocal:
			p.qnos.Device().DumpLocalState()
		case BreakpointDumpGlobal:
			panic(fmt.Sprintf("processor %s: global state dump is not supported", p.name))
		default:
			panic(fmt.Sprintf("processor %s: unknown breakpoint action %d", p.name, in.BpAction))
		}

	default:
		panic(fmt.Sprintf("processor %s: unknown instruction %s", p.name, in.Op))
	}
	return false, nil
}

// waitAll blocks until every slot of the slice is set, waking on netstack
// write notices. A netstack abort notice for this app ends the subroutine.
func (p *Processor) waitAll(t *sim.Task, mem *AppMemory, s ArraySlice) error {
	start := p.operand(mem, s.Start)
	stop := p.operand(mem, s.Stop)
	for {
		if p.sliceSet(mem, s.Addr, start, stop) {
			// Drop notices for slots this wait already observed.
			p.noticePort.Flush()
			return nil
		}
		msg := p.noticePort.Recv(t)
		switch n := msg.(type) {
		case noticeArrayWritten:
			// Re-check the slice.
			_ = n
		case noticeAborted:
			if n.AppID == mem.AppID() {
				p.noticePort.Flush()
				return ErrSubroutineAborted
			}
		default:
			panic(fmt.Sprintf("processor %s: unexpected notice %T", p.name, msg))
		}
	}
}

func (p *Processor) sliceSet(mem *AppMemory, addr int32, start, stop int) bool {
	for _, v := range mem.GetArraySlice(addr, start, stop) {
		if v == nil {
			return false
		}
	}
	return true
}

func (p *Processor) phys(mem *AppMemory, virt int) int {
	pos, ok := mem.PhysIDFor(virt)
	if !ok {
		panic(fmt.Sprintf("processor %s: app %d: virtual qubit %d not mapped", p.name, mem.AppID(), virt))
	}
	return pos
}

func (p *Processor) operand(mem *AppMemory, o Operand) int {
	if o.IsReg {
		return int(mem.GetReg(o.Reg))
	}
	return int(o.Imm)
}

// angleOf decodes a rotation angle: num * pi / 2^denom.
func angleOf(in Instr) float64 {
	if in.AngleDenom < 0 {
		panic(fmt.Sprintf("negative angle denominator %d", in.AngleDenom))
	}
	return float64(in.AngleNum) * math.Pi / float64(int64(1)<<in.AngleDenom)
}
