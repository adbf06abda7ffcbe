package link

import (
	"fmt"
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/QuTech-Delft/squidasm-sub000/qdevice"
	"github.com/QuTech-Delft/squidasm-sub000/sim"
)

// LinkConfig parameterizes a magic link.
type LinkConfig struct {
	// CycleTime is the time (ns) from both sides having submitted a pair
	// request to the pair being delivered.
	CycleTime int64 `yaml:"cycle_time"`
	// Fidelity is the best fidelity the link can attain. A create request
	// asking for more is answered with ErrAborted on both sides.
	Fidelity float64 `yaml:"fidelity"`
	// RandomBellStates: if true the delivered Bell state is sampled
	// uniformly; if false every pair is PHI+ (a perfect deterministic link,
	// which is what correlation tests rely on).
	RandomBellStates bool `yaml:"random_bell_states"`
}

// DefaultLinkConfig is a perfect link: PHI+ every cycle, fidelity 1.
func DefaultLinkConfig() LinkConfig {
	return LinkConfig{CycleTime: 10_000, Fidelity: 1.0}
}

type submission struct {
	create bool
	req    ReqCreateBase // nil on the receive side
	pos    int
	start  int64
}

// MagicLink manufactures entangled pairs between exactly two nodes. It is
// "magic" in the sense that it conjures the joint state directly instead of
// simulating photons: the rest of the stack cannot tell the difference.
//
// Generation is strictly one pair at a time: a pair is made only when both
// endpoints have a submission queued, and the next pair does not start until
// the current one is delivered. This gives the per-pair ordering the
// netstack's result bookkeeping depends on.
type MagicLink struct {
	ctx  *sim.Context
	cfg  LinkConfig
	rng  *rand.Rand
	a, b *EGP
	busy bool

	pending map[*EGP][]submission
}

// NewMagicLink creates a link between two nodes' devices and returns it with
// its two EGP endpoints (first endpoint belongs to nodeA).
func NewMagicLink(ctx *sim.Context, nodeA, nodeB int, devA, devB *qdevice.Device, cfg LinkConfig) (*MagicLink, *EGP, *EGP) {
	ml := &MagicLink{
		ctx:     ctx,
		cfg:     cfg,
		rng:     ctx.RNG().ForSubsystem(sim.SubsystemLink(nodeA, nodeB)),
		pending: make(map[*EGP][]submission),
	}
	ml.a = &EGP{nodeID: nodeA, remoteID: nodeB, dev: devA, link: ml,
		ready: sim.NewSignal(ctx, fmt.Sprintf("egp_ready_%d", nodeA))}
	ml.b = &EGP{nodeID: nodeB, remoteID: nodeA, dev: devB, link: ml,
		ready: sim.NewSignal(ctx, fmt.Sprintf("egp_ready_%d", nodeB))}
	return ml, ml.a, ml.b
}

func (ml *MagicLink) other(e *EGP) *EGP {
	if e == ml.a {
		return ml.b
	}
	return ml.a
}

func (ml *MagicLink) submit(e *EGP, sub submission) {
	if e.aborted {
		e.deliver(Result{Err: &ResError{Code: ErrAborted}})
		return
	}
	ml.pending[e] = append(ml.pending[e], sub)
	ml.tryMatch()
}

func (ml *MagicLink) abort(e *EGP) {
	// Fail everything queued on either side; an entanglement attempt needs
	// both parties, so an abort on one side ends the attempt for both.
	for _, ep := range []*EGP{ml.a, ml.b} {
		n := len(ml.pending[ep])
		ml.pending[ep] = nil
		for i := 0; i < n; i++ {
			ep.deliver(Result{Err: &ResError{Code: ErrAborted}})
		}
	}
	_ = e
}

// tryMatch starts a generation cycle when both sides have a submission and
// no pair is currently in flight.
func (ml *MagicLink) tryMatch() {
	if ml.busy || len(ml.pending[ml.a]) == 0 || len(ml.pending[ml.b]) == 0 {
		return
	}
	subA := ml.pending[ml.a][0]
	subB := ml.pending[ml.b][0]
	ml.pending[ml.a] = ml.pending[ml.a][1:]
	ml.pending[ml.b] = ml.pending[ml.b][1:]

	req := subA.req
	if req == nil {
		req = subB.req
	}
	if req == nil {
		panic("link: matched two receive submissions")
	}

	if req.MinimumFidelity() > ml.cfg.Fidelity {
		logrus.Debugf("link: requested fidelity %.3f above attainable %.3f, aborting",
			req.MinimumFidelity(), ml.cfg.Fidelity)
		ml.a.deliver(Result{Err: &ResError{Code: ErrAborted}})
		ml.b.deliver(Result{Err: &ResError{Code: ErrAborted}})
		return
	}

	ml.busy = true
	ml.ctx.ScheduleAfter(ml.cfg.CycleTime, func() {
		ml.generate(subA, subB, req)
		ml.busy = false
		ml.tryMatch()
	})
}

// generate manufactures one pair, delivers or measures the halves, and
// responds to both endpoints.
func (ml *MagicLink) generate(subA, subB submission, req ReqCreateBase) {
	bell := qdevice.PhiPlus
	if ml.cfg.RandomBellStates {
		bell = qdevice.BellIndex(ml.rng.Intn(4))
	}
	qa, qb := qdevice.NewBellPair(bell)
	now := ml.ctx.Now()

	logrus.Debugf("link %d<->%d: produced pair in state %s", ml.a.nodeID, ml.b.nodeID, bell)

	switch r := req.(type) {
	case ReqCreateAndKeep:
		ml.a.dev.PutQubit(subA.pos, qa)
		ml.b.dev.PutQubit(subB.pos, qb)
		ml.a.deliver(Result{Bell: bell, GenDuration: now - subA.start})
		ml.b.deliver(Result{Bell: bell, GenDuration: now - subB.start})
	case ReqMeasureDirectly:
		// Measure both halves immediately; only classical outcomes survive.
		// Measuring one half first fixes the other's distribution through
		// the shared state, which is the whole point.
		outA := qdevice.MeasureInBasis(qa, r.Basis, ml.a.dev.RNG())
		outB := qdevice.MeasureInBasis(qb, r.Basis, ml.b.dev.RNG())
		ml.a.deliver(Result{Bell: bell, GenDuration: now - subA.start,
			Measured: true, Outcome: outA, Basis: r.Basis})
		ml.b.deliver(Result{Bell: bell, GenDuration: now - subB.start,
			Measured: true, Outcome: outB, Basis: r.Basis})
	default:
		panic(fmt.Sprintf("link: unsupported request type %T", req))
	}
}
