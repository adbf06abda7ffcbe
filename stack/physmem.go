package stack

import (
	"errors"
	"fmt"
)

// ErrAllocExhausted is returned when no physical qubit position of the
// requested kind is free. Callers that can wait do so on the node's
// memory-freed signal and retry.
var ErrAllocExhausted = errors.New("no free qubit position")

// PhysicalQuantumMemory tracks which physical qubit positions of the node's
// device are in use and by which application. Positions in the comm set can
// participate in entanglement generation; the rest are storage only.
type PhysicalQuantumMemory struct {
	total int
	comm  map[int]bool
	// owner[pos] is the app id holding pos, or absent if free.
	owner map[int]int
}

// NewPhysicalQuantumMemory creates a pool over total positions where the
// positions listed in comm are communication-capable.
func NewPhysicalQuantumMemory(total int, comm []int) *PhysicalQuantumMemory {
	cm := make(map[int]bool, len(comm))
	for _, p := range comm {
		if p < 0 || p >= total {
			panic(fmt.Sprintf("comm position %d out of range [0,%d)", p, total))
		}
		cm[p] = true
	}
	return &PhysicalQuantumMemory{
		total: total,
		comm:  cm,
		owner: make(map[int]int),
	}
}

// Allocate claims the lowest free position of any kind for appID.
func (p *PhysicalQuantumMemory) Allocate(appID int) (int, error) {
	for pos := 0; pos < p.total; pos++ {
		if _, used := p.owner[pos]; !used {
			p.owner[pos] = appID
			return pos, nil
		}
	}
	return 0, ErrAllocExhausted
}

// AllocateComm claims the lowest free communication-capable position.
func (p *PhysicalQuantumMemory) AllocateComm(appID int) (int, error) {
	for pos := 0; pos < p.total; pos++ {
		if !p.comm[pos] {
			continue
		}
		if _, used := p.owner[pos]; !used {
			p.owner[pos] = appID
			return pos, nil
		}
	}
	return 0, ErrAllocExhausted
}

// AllocateStorage claims the lowest free position that is not
// communication-capable. Used when vacating a communication position.
func (p *PhysicalQuantumMemory) AllocateStorage(appID int) (int, error) {
	for pos := 0; pos < p.total; pos++ {
		if p.comm[pos] {
			continue
		}
		if _, used := p.owner[pos]; !used {
			p.owner[pos] = appID
			return pos, nil
		}
	}
	return 0, ErrAllocExhausted
}

// Free releases a position. Freeing a position that is not allocated is a
// programming-error-class fault.
func (p *PhysicalQuantumMemory) Free(pos int) {
	if _, used := p.owner[pos]; !used {
		panic(fmt.Sprintf("free of unallocated position %d", pos))
	}
	delete(p.owner, pos)
}

// IsAllocated reports whether pos is in use.
func (p *PhysicalQuantumMemory) IsAllocated(pos int) bool {
	_, used := p.owner[pos]
	return used
}

// Owner returns the app id holding pos, or ok=false if free.
func (p *PhysicalQuantumMemory) Owner(pos int) (int, bool) {
	id, used := p.owner[pos]
	return id, used
}

// PositionsOf lists every position held by appID, in ascending order.
func (p *PhysicalQuantumMemory) PositionsOf(appID int) []int {
	var out []int
	for pos := 0; pos < p.total; pos++ {
		if id, used := p.owner[pos]; used && id == appID {
			out = append(out, pos)
		}
	}
	return out
}

// IsComm reports whether pos can participate in entanglement generation.
func (p *PhysicalQuantumMemory) IsComm(pos int) bool { return p.comm[pos] }

// Total returns the number of positions in the pool.
func (p *PhysicalQuantumMemory) Total() int { return p.total }
