// Package stack implements the software stack of one simulated quantum
// network node and the wiring that joins two nodes into a network.
//
// # Reading Guide
//
// Bottom-up, the interpreter's data model first:
//   - operand.go, instr.go, subroutine.go: registers, instructions, and the
//     serialized subroutines hosts send to their node
//   - appmemory.go, physmem.go: per-application classical memory and the
//     node-wide physical qubit pool
//   - qnos.go: the shared state every node component touches
//
// Then the four node components, each one kernel task:
//   - handler.go: application lifecycle and subroutine dispatch
//   - processor.go (+ processor_generic.go, processor_nv.go, relocation.go):
//     the instruction interpreter and its two device flavors
//   - netstack.go: entanglement requests, driven pair by pair through a
//     link.EGP endpoint
//   - host.go, program.go, connection.go, csocket.go: the program driver and
//     the builder API programs use to emit subroutines
//
// stack.go assembles a NodeStack from these parts and a StackNetwork from
// two NodeStacks plus a link.MagicLink.
//
// # Architecture
//
// A program runs on the host and acts in rounds: build a subroutine through
// its Connection, Flush it to the handler, get back a memory snapshot (or an
// abort), read out its futures. The handler feeds subroutines to the
// processor one at a time; the processor hands entanglement instructions to
// the netstack and polls result arrays while the netstack fills them. All
// cross-component traffic goes over kernel ports, so every interleaving is
// reproducible for a given seed.
package stack
