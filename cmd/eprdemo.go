package cmd

import (
	"github.com/QuTech-Delft/squidasm-sub000/sim"
	"github.com/QuTech-Delft/squidasm-sub000/stack"
)

// The built-in demo: the first node creates an EPR pair with the second,
// both measure their half in the computational basis and swap outcomes over
// the classical channel. On a perfect PHI+ link the outcomes always agree.

type eprDemoClient struct {
	peer string
}

func (p *eprDemoClient) Meta() stack.ProgramMeta {
	return stack.ProgramMeta{
		Name:       "epr_demo_client",
		CSockets:   []string{p.peer},
		EprSockets: []stack.EprSocketSpec{{Peer: p.peer}},
		MaxQubits:  2,
	}
}

func (p *eprDemoClient) Run(t *sim.Task, ctx *stack.ProgramContext) (map[string]any, error) {
	conn := ctx.Conn
	qubits := ctx.EprSockets[p.peer].CreateKeep(1)
	m := qubits[0].Measure()
	qubits[0].Free()
	if err := conn.FlushWithRetry(t, 3); err != nil {
		return nil, err
	}

	csock := ctx.CSockets[p.peer]
	csock.SendInt(int(m.Value()))
	remote, err := csock.RecvInt(t)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"outcome":        m.Value(),
		"remote_outcome": remote,
	}, nil
}

type eprDemoServer struct {
	peer string
}

func (p *eprDemoServer) Meta() stack.ProgramMeta {
	return stack.ProgramMeta{
		Name:       "epr_demo_server",
		CSockets:   []string{p.peer},
		EprSockets: []stack.EprSocketSpec{{Peer: p.peer}},
		MaxQubits:  2,
	}
}

func (p *eprDemoServer) Run(t *sim.Task, ctx *stack.ProgramContext) (map[string]any, error) {
	conn := ctx.Conn
	qubits := ctx.EprSockets[p.peer].RecvKeep(1)
	m := qubits[0].Measure()
	qubits[0].Free()
	if err := conn.FlushWithRetry(t, 3); err != nil {
		return nil, err
	}

	csock := ctx.CSockets[p.peer]
	remote, err := csock.RecvInt(t)
	if err != nil {
		return nil, err
	}
	csock.SendInt(int(m.Value()))
	return map[string]any{
		"outcome":        m.Value(),
		"remote_outcome": remote,
	}, nil
}
