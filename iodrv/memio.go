package iodrv

// MemIO is a map-backed IO for unit tests. Reads of untouched registers
// return zero, matching the reset value of the hardware registers this tool
// programs. Writes are recorded in order.
type MemIO struct {
	Regs   map[uint64]uint64
	Writes []WriteOp
}

// WriteOp is one recorded register write.
type WriteOp struct {
	Reg   uint64
	Value uint64
}

// NewMemIO creates an empty MemIO.
func NewMemIO() *MemIO {
	return &MemIO{Regs: make(map[uint64]uint64)}
}

// Read returns the last value written to reg, or zero.
func (m *MemIO) Read(reg uint64) uint64 {
	return m.Regs[reg]
}

// Write stores value at reg and records the operation.
func (m *MemIO) Write(reg uint64, value uint64) {
	m.Regs[reg] = value
	m.Writes = append(m.Writes, WriteOp{reg, value})
}
