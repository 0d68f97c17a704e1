package flit

// Packet is one captured trace FIFO entry: 192 bits of flit data stored as
// three little-endian 64-bit words, word 0 holding bits 0-63.
type Packet [3]uint64

// PacketBytes is the encoded size of a Packet in the trace log.
const PacketBytes = 24

// Bits extracts bits [lo, hi] of the packet, both bounds inclusive. The
// range must be at most 64 bits wide and lie within the 192-bit packet.
func (p Packet) Bits(lo, hi uint) uint64 {
	if lo > hi || hi > 191 || hi-lo > 63 {
		panic("flit: bit range out of bounds")
	}
	loWord, loBit := lo/64, lo%64
	hiWord := hi / 64

	result := p[loWord] >> loBit
	if hiWord != loWord {
		result |= p[hiWord] << (64 - loBit)
	}
	width := hi - lo + 1
	if width < 64 {
		result &= (1 << width) - 1
	}
	return result
}
