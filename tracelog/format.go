// Package tracelog persists captured trace packets to a binary log file and
// exports them as per-watchpoint CSV files or SQLite tables.
package tracelog

import (
	"github.com/cyb70289/cmn-analyzer/flit"
)

// File layout, all integers little-endian:
//
//	magic   [8]byte "CMNTRACE"
//	version uint16
//	nslots  uint16
//	per slot: label (uint16 length + bytes), channel uint8, group uint8
//	records, in capture order:
//	  slot uint8, seq uint64, packet [24]byte
var logMagic = [8]byte{'C', 'M', 'N', 'T', 'R', 'A', 'C', 'E'}

const logVersion = 1

// SlotInfo describes the watchpoint a record was captured by, carrying what
// the decoder needs: the channel/group the watchpoint was configured with.
type SlotInfo struct {
	Label   string
	Channel flit.Channel
	Group   int
}

// Record is one captured packet tagged with its slot and a monotonic
// capture sequence number.
type Record struct {
	Slot uint8
	Seq  uint64
	Data flit.Packet
}

// RecordBytes is the encoded size of one record.
const RecordBytes = 1 + 8 + flit.PacketBytes
