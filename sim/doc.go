// Package sim provides the discrete-event kernel that drives a simulated
// quantum network node stack.
//
// # Reading Guide
//
// Start with these three files to understand the kernel:
//   - event.go: the event heap, ordered by (timestamp, insertion sequence)
//   - task.go: cooperative tasks; exactly one task runs at any instant
//   - context.go: the Context (simulated clock, event loop, node registry, RNG)
//
// # Architecture
//
// Every active component of a node (host, handler, processor, netstack, link
// layer) is a Task: a goroutine that runs until it reaches a suspension point
// and then hands control back to the event loop. The only suspension points
// are:
//   - receiving on a Port (port.go): point-to-point FIFO channels with a
//     configurable one-way latency
//   - waiting for a Signal (signal.go): a named notification from another task
//   - sleeping for a stretch of simulated time
//
// The event loop resumes tasks strictly in (timestamp, sequence) order, so a
// run is deterministic for a given configuration and seed. A panic inside a
// task aborts the run and is returned from Context.Run as an error; panics are
// reserved for programming-error-class faults.
package sim
