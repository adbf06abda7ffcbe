package stack

import (
	"fmt"

	"github.com/QuTech-Delft/squidasm-sub000/link"
	"github.com/QuTech-Delft/squidasm-sub000/qdevice"
	"github.com/QuTech-Delft/squidasm-sub000/sim"
)

// DeviceFlavor selects how qubit instructions map onto the node's device.
type DeviceFlavor string

const (
	FlavorGeneric DeviceFlavor = "generic"
	FlavorNV      DeviceFlavor = "nv"
)

// NodeConfig describes one node of a network.
type NodeConfig struct {
	Name      string       `yaml:"name"`
	Flavor    DeviceFlavor `yaml:"flavor"`
	NumQubits int          `yaml:"num_qubits"`
}

// NetworkConfig describes a two-node network.
type NetworkConfig struct {
	Nodes []NodeConfig    `yaml:"nodes"`
	Link  link.LinkConfig `yaml:"link"`
	// ClassicalLatency is the one-way delay (ns) of the classical channels
	// between the nodes, both host-to-host and netstack-to-netstack.
	ClassicalLatency int64 `yaml:"classical_latency"`
}

// NodeStack is one node's full software stack wired over shared state: the
// host driving programs, the handler owning app lifecycles, the processor
// interpreting subroutines and the netstack executing entanglement
// requests, each as its own kernel task.
type NodeStack struct {
	ctx  *sim.Context
	id   int
	name string

	qnos      *Qnos
	device    *qdevice.Device
	host      *Host
	handler   *Handler
	processor *Processor
	netstack  *Netstack
}

// NewNodeStack builds and wires one node. Links are attached by the network
// builder.
func NewNodeStack(ctx *sim.Context, id int, cfg NodeConfig) *NodeStack {
	ctx.RegisterNode(id, cfg.Name)

	var devCfg qdevice.Config
	var mkFlavor func(*Qnos) flavor
	switch cfg.Flavor {
	case FlavorGeneric, "":
		devCfg = qdevice.GenericConfig(cfg.NumQubits)
		mkFlavor = NewGenericFlavor
	case FlavorNV:
		devCfg = qdevice.NVConfig(cfg.NumQubits)
		mkFlavor = NewNVFlavor
	default:
		panic(fmt.Sprintf("unknown device flavor %q", cfg.Flavor))
	}

	dev := qdevice.New(ctx, id, devCfg)
	qnos := NewQnos(ctx, id, dev)
	fl := mkFlavor(qnos)

	hostSide, handlerSide := sim.NewPortPair(ctx, cfg.Name+"_host_qnos", 0)
	handlerProc, procHandler := sim.NewPortPair(ctx, cfg.Name+"_handler_proc", 0)
	procNet, netProc := sim.NewPortPair(ctx, cfg.Name+"_proc_netstack", 0)
	netNotice, procNotice := sim.NewPortPair(ctx, cfg.Name+"_netstack_notice", 0)

	return &NodeStack{
		ctx:       ctx,
		id:        id,
		name:      cfg.Name,
		qnos:      qnos,
		device:    dev,
		host:      NewHost(ctx, id, hostSide),
		handler:   NewHandler(ctx, qnos, handlerSide, handlerProc, true),
		processor: NewProcessor(ctx, qnos, fl, procHandler, procNet, procNotice),
		netstack:  NewNetstack(ctx, qnos, fl, netProc, netNotice),
	}
}

// Name returns the node's name.
func (n *NodeStack) Name() string { return n.name }

// ID returns the node's id.
func (n *NodeStack) ID() int { return n.id }

// Host returns the node's program driver.
func (n *NodeStack) Host() *Host { return n.host }

// Qnos returns the node's shared state, mostly for tests.
func (n *NodeStack) Qnos() *Qnos { return n.qnos }

// Device returns the node's quantum device.
func (n *NodeStack) Device() *qdevice.Device { return n.device }

// Start spawns the node's four kernel tasks.
func (n *NodeStack) Start() {
	n.ctx.Spawn(n.name+"_host", n.host.Run)
	n.ctx.Spawn(n.name+"_handler", n.handler.Run)
	n.ctx.Spawn(n.name+"_processor", n.processor.Run)
	n.ctx.Spawn(n.name+"_netstack", n.netstack.Run)
}

// StackNetwork is a two-node network: both stacks, the magic link between
// their devices and the classical channels between their hosts and
// netstacks.
type StackNetwork struct {
	ctx *sim.Context
	// ordered: task spawn order is part of the deterministic schedule.
	stacks []*NodeStack
}

// NewStackNetwork builds a network from its config. Exactly two nodes are
// supported; they get ids 0 and 1 in config order.
func NewStackNetwork(ctx *sim.Context, cfg NetworkConfig) *StackNetwork {
	if len(cfg.Nodes) != 2 {
		panic(fmt.Sprintf("a network has exactly 2 nodes, got %d", len(cfg.Nodes)))
	}
	a := NewNodeStack(ctx, 0, cfg.Nodes[0])
	b := NewNodeStack(ctx, 1, cfg.Nodes[1])

	_, egpA, egpB := link.NewMagicLink(ctx, a.id, b.id, a.device, b.device, cfg.Link)
	netA, netB := sim.NewPortPair(ctx, "netstack_"+a.name+"_"+b.name, cfg.ClassicalLatency)
	a.netstack.AddLink(b.id, egpA, netA)
	b.netstack.AddLink(a.id, egpB, netB)

	hostA, hostB := sim.NewPortPair(ctx, "csocket_"+a.name+"_"+b.name, cfg.ClassicalLatency)
	a.host.AddPeerPort(b.name, hostA)
	b.host.AddPeerPort(a.name, hostB)

	return &StackNetwork{ctx: ctx, stacks: []*NodeStack{a, b}}
}

// Stack returns a node's stack by name.
func (n *StackNetwork) Stack(name string) *NodeStack {
	for _, s := range n.stacks {
		if s.name == name {
			return s
		}
	}
	panic(fmt.Sprintf("no node named %q", name))
}

// Run starts every node's tasks and runs the simulation until no events
// remain.
func (n *StackNetwork) Run() error {
	for _, s := range n.stacks {
		s.Start()
	}
	return n.ctx.Run()
}
