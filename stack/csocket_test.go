package stack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/QuTech-Delft/squidasm-sub000/sim"
)

type pingReport struct {
	Count int
	Note  string
}

func TestClassicalSocket_DeliveryTakesChannelLatency(t *testing.T) {
	cfg := twoNodeConfig(2)
	cfg.ClassicalLatency = 25_000
	net := newTestNetwork(t, 42, cfg)

	var sentAt, recvAt int64
	var gotMsg string
	var gotInt int
	var gotReport pingReport

	net.Stack("alice").Host().EnqueueProgram(funcProgram{
		meta: ProgramMeta{Name: "pinger", CSockets: []string{"bob"}},
		run: func(t *sim.Task, pctx *ProgramContext) (map[string]any, error) {
			cs := pctx.CSockets["bob"]
			sentAt = t.Now()
			cs.Send("ping")
			cs.SendInt(17)
			if err := cs.SendStructured(pingReport{Count: 2, Note: "done"}); err != nil {
				return nil, err
			}
			return nil, nil
		},
	}, 1)
	net.Stack("bob").Host().EnqueueProgram(funcProgram{
		meta: ProgramMeta{Name: "ponger", CSockets: []string{"alice"}},
		run: func(t *sim.Task, pctx *ProgramContext) (map[string]any, error) {
			cs := pctx.CSockets["alice"]
			gotMsg = cs.Recv(t)
			recvAt = t.Now()
			v, err := cs.RecvInt(t)
			if err != nil {
				return nil, err
			}
			gotInt = v
			if err := cs.RecvStructured(t, &gotReport); err != nil {
				return nil, err
			}
			return nil, nil
		},
	}, 1)
	require.NoError(t, net.Run())
	mustOneResult(t, net, "alice")
	mustOneResult(t, net, "bob")

	assert.Equal(t, cfg.ClassicalLatency, recvAt-sentAt)
	assert.Equal(t, "ping", gotMsg)
	assert.Equal(t, 17, gotInt)
	assert.Equal(t, pingReport{Count: 2, Note: "done"}, gotReport)
}

func TestClassicalSocket_OutcomeExchange(t *testing.T) {
	// The canonical pattern: measure a shared pair, then tell the peer.
	net := newTestNetwork(t, 42, twoNodeConfig(2))

	exchange := func(create bool, peer string) funcProgram {
		return funcProgram{
			meta: ProgramMeta{Name: "exchange", CSockets: []string{peer},
				EprSockets: []EprSocketSpec{{Peer: peer}}, MaxQubits: 1},
			run: func(t *sim.Task, pctx *ProgramContext) (map[string]any, error) {
				epr := pctx.EprSockets[peer]
				var refs []*QubitRef
				if create {
					refs = epr.CreateKeep(1)
				} else {
					refs = epr.RecvKeep(1)
				}
				m := refs[0].Measure()
				refs[0].Free()
				if err := pctx.Conn.Flush(t); err != nil {
					return nil, err
				}
				cs := pctx.CSockets[peer]
				cs.SendInt(int(m.Value()))
				remote, err := cs.RecvInt(t)
				if err != nil {
					return nil, err
				}
				return map[string]any{"local": m.Value(), "remote": int64(remote)}, nil
			},
		}
	}
	net.Stack("alice").Host().EnqueueProgram(exchange(true, "bob"), 1)
	net.Stack("bob").Host().EnqueueProgram(exchange(false, "alice"), 1)
	require.NoError(t, net.Run())

	alice := mustOneResult(t, net, "alice")
	bob := mustOneResult(t, net, "bob")
	assert.Equal(t, alice.Values["local"], bob.Values["remote"])
	assert.Equal(t, bob.Values["local"], alice.Values["remote"])
	assert.Equal(t, alice.Values["local"], bob.Values["local"])
}
