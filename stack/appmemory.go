package stack

import "fmt"

// AppMemory is the classical memory of one application: a fixed register
// file, dynamically allocated integer arrays, the virtual→physical qubit map
// and the program counter. Pure data plus accessors; all behavior lives in
// the processor and netstack.
type AppMemory struct {
	appID     int
	registers map[RegGroup][]int64
	arrays    map[int32][]*int64
	// virtQubits[v] is the physical id mapped to virtual id v, or -1.
	virtQubits  []int
	progCounter int
}

// NewAppMemory creates memory for an application that may use up to
// maxQubits virtual qubit ids.
func NewAppMemory(appID int, maxQubits int) *AppMemory {
	regs := map[RegGroup][]int64{
		RegR: make([]int64, RegsPerGroup),
		RegC: make([]int64, RegsPerGroup),
		RegQ: make([]int64, RegsPerGroup),
		RegM: make([]int64, RegsPerGroup),
	}
	virt := make([]int, maxQubits)
	for i := range virt {
		virt[i] = -1
	}
	return &AppMemory{
		appID:      appID,
		registers:  regs,
		arrays:     make(map[int32][]*int64),
		virtQubits: virt,
	}
}

// AppID returns the owning application's id.
func (m *AppMemory) AppID() int { return m.appID }

// ProgCounter returns the current program counter.
func (m *AppMemory) ProgCounter() int { return m.progCounter }

// SetProgCounter rewrites the program counter (branches).
func (m *AppMemory) SetProgCounter(v int) { m.progCounter = v }

// IncProgCounter advances the program counter by one.
func (m *AppMemory) IncProgCounter() { m.progCounter++ }

// SetReg writes a register.
func (m *AppMemory) SetReg(r Register, value int64) {
	m.regGroup(r)[r.Index] = value
}

// GetReg reads a register.
func (m *AppMemory) GetReg(r Register) int64 {
	return m.regGroup(r)[r.Index]
}

func (m *AppMemory) regGroup(r Register) []int64 {
	group, ok := m.registers[r.Group]
	if !ok || int(r.Index) >= RegsPerGroup {
		panic(fmt.Sprintf("app %d: no such register %s", m.appID, r))
	}
	return group
}

// InitArray creates an all-undefined array of the given length at addr.
// Re-declaring an address replaces the old array.
func (m *AppMemory) InitArray(addr int32, length int) {
	m.arrays[addr] = make([]*int64, length)
}

// array returns the array at addr; using an address that was never declared
// is a programming-error-class fault.
func (m *AppMemory) array(addr int32) []*int64 {
	arr, ok := m.arrays[addr]
	if !ok {
		panic(fmt.Sprintf("app %d: array @%d was never declared", m.appID, addr))
	}
	return arr
}

// ArrayLen returns the declared length of the array at addr.
func (m *AppMemory) ArrayLen(addr int32) int {
	return len(m.array(addr))
}

// SetArrayValue writes one slot. Pass nil to unset it.
func (m *AppMemory) SetArrayValue(addr int32, index int, value *int64) {
	arr := m.array(addr)
	m.checkIndex(addr, arr, index)
	if value == nil {
		arr[index] = nil
		return
	}
	v := *value
	arr[index] = &v
}

// GetArrayValue reads one slot; ok is false for an unset slot. Unset slots
// are not an error: the wait-for-array mechanism polls them.
func (m *AppMemory) GetArrayValue(addr int32, index int) (int64, bool) {
	arr := m.array(addr)
	m.checkIndex(addr, arr, index)
	if arr[index] == nil {
		return 0, false
	}
	return *arr[index], true
}

// GetArraySlice copies out [start, stop); unset slots are nil.
func (m *AppMemory) GetArraySlice(addr int32, start, stop int) []*int64 {
	arr := m.array(addr)
	if start < 0 || stop > len(arr) || start > stop {
		panic(fmt.Sprintf("app %d: slice @%d[%d:%d] out of bounds (len %d)",
			m.appID, addr, start, stop, len(arr)))
	}
	out := make([]*int64, stop-start)
	copy(out, arr[start:stop])
	return out
}

func (m *AppMemory) checkIndex(addr int32, arr []*int64, index int) {
	if index < 0 || index >= len(arr) {
		panic(fmt.Sprintf("app %d: index %d out of bounds for array @%d (len %d)",
			m.appID, index, addr, len(arr)))
	}
}

// MapVirt binds a virtual qubit id to a physical one. Mapping an id that is
// already mapped is a programming-error-class fault.
func (m *AppMemory) MapVirt(virtID, physID int) {
	m.checkVirt(virtID)
	if m.virtQubits[virtID] != -1 {
		panic(fmt.Sprintf("app %d: virtual qubit %d already mapped to physical %d",
			m.appID, virtID, m.virtQubits[virtID]))
	}
	m.virtQubits[virtID] = physID
}

// UnmapVirt releases a virtual qubit id's binding.
func (m *AppMemory) UnmapVirt(virtID int) {
	m.checkVirt(virtID)
	m.virtQubits[virtID] = -1
}

// PhysIDFor returns the physical id bound to a virtual id, or ok=false.
func (m *AppMemory) PhysIDFor(virtID int) (int, bool) {
	m.checkVirt(virtID)
	if m.virtQubits[virtID] == -1 {
		return 0, false
	}
	return m.virtQubits[virtID], true
}

// VirtIDFor scans for the virtual id bound to a physical id, or ok=false.
func (m *AppMemory) VirtIDFor(physID int) (int, bool) {
	for v, p := range m.virtQubits {
		if p == physID {
			return v, true
		}
	}
	return 0, false
}

// QubitMapping returns a copy of the virtual→physical map (-1 = unmapped).
func (m *AppMemory) QubitMapping() []int {
	out := make([]int, len(m.virtQubits))
	copy(out, m.virtQubits)
	return out
}

func (m *AppMemory) checkVirt(virtID int) {
	if virtID < 0 || virtID >= len(m.virtQubits) {
		panic(fmt.Sprintf("app %d: virtual qubit id %d out of range [0,%d)",
			m.appID, virtID, len(m.virtQubits)))
	}
}

// Snapshot copies the memory into its serializable form, sent back to the
// host after each subroutine completes.
func (m *AppMemory) Snapshot() *MemorySnapshot {
	regs := make(map[string][]int64, len(m.registers))
	for g, vals := range m.registers {
		c := make([]int64, len(vals))
		copy(c, vals)
		regs[g.String()] = c
	}
	arrays := make(map[int32][]*int64, len(m.arrays))
	for addr := range m.arrays {
		arrays[addr] = m.GetArraySlice(addr, 0, len(m.arrays[addr]))
	}
	return &MemorySnapshot{
		AppID:     m.appID,
		Registers: regs,
		Arrays:    arrays,
		Qubits:    m.QubitMapping(),
	}
}
