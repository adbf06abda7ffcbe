package stack

import "github.com/QuTech-Delft/squidasm-sub000/sim"

// EprSocketSpec declares one EPR socket a program needs: the peer node by
// name and the minimum fidelity the program will accept for its pairs.
type EprSocketSpec struct {
	Peer        string
	MinFidelity float64
}

// ProgramMeta declares what a program needs before it runs: classical
// sockets and EPR sockets by peer, and an upper bound on concurrently held
// qubits.
type ProgramMeta struct {
	Name       string
	CSockets   []string
	EprSockets []EprSocketSpec
	MaxQubits  int
}

// ProgramContext is what a program gets to work with for one run: its
// connection to the node's quantum side and its sockets, keyed by peer name.
type ProgramContext struct {
	AppID      int
	Conn       *Connection
	CSockets   map[string]*ClassicalSocket
	EprSockets map[string]*EPRSocket
}

// Program is an application as the host runs it. Run executes inside the
// host's kernel task; blocking calls take the task so the kernel can
// suspend it.
type Program interface {
	Meta() ProgramMeta
	Run(t *sim.Task, ctx *ProgramContext) (map[string]any, error)
}
