// Package iodrv gives access to the memory-mapped register space a CMN mesh
// exposes through the cmn-analyzer kernel module device node.
package iodrv

// IO reads and writes 64-bit mesh registers at byte offsets from the base of
// the mapped register space.
type IO interface {
	Read(reg uint64) uint64
	Write(reg uint64, value uint64)
}

// Register is a 64-bit register value with bitfield accessors. Bit ranges
// are inclusive on both ends.
type Register uint64

// Bits returns bits [lo, hi] of the register.
func (r Register) Bits(lo, hi uint) uint64 {
	if lo > hi || hi > 63 {
		panic("iodrv: bit range out of bounds")
	}
	value := uint64(r) >> lo
	if width := hi - lo + 1; width < 64 {
		value &= (1 << width) - 1
	}
	return value
}

// Bit returns bit i of the register.
func (r Register) Bit(i uint) uint64 {
	return r.Bits(i, i)
}

// SetBits replaces bits [lo, hi] of the register with value.
func (r *Register) SetBits(lo, hi uint, value uint64) {
	if lo > hi || hi > 63 {
		panic("iodrv: bit range out of bounds")
	}
	width := hi - lo + 1
	if width < 64 && value >= 1<<width {
		panic("iodrv: value out of bit range")
	}
	if width == 64 {
		*r = Register(value)
		return
	}
	mask := ((uint64(1) << width) - 1) << lo
	*r = Register(uint64(*r)&^mask | value<<lo)
}

// SetBit sets bit i of the register to value (0 or 1).
func (r *Register) SetBit(i uint, value uint64) {
	r.SetBits(i, i, value)
}

// Value returns the raw register value.
func (r Register) Value() uint64 { return uint64(r) }
