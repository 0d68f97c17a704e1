// Package flit defines the CHI flit field schemas and opcode tables used to
// program watchpoint match registers and to decode captured trace packets.
package flit

import "strings"

// Channel identifies one of the four CHI sub-networks of the mesh.
type Channel uint8

const (
	ChnREQ Channel = iota
	ChnRSP
	ChnSNP
	ChnDAT
)

var channelNames = [...]string{"req", "rsp", "snp", "dat"}

func (c Channel) String() string {
	if int(c) >= len(channelNames) {
		return "unknown"
	}
	return channelNames[c]
}

// Sel returns the wp_chn_sel encoding of the channel.
func (c Channel) Sel() uint64 {
	return uint64(c)
}

// ParseChannel resolves a channel name. Both the short mnemonic and the full
// protocol name are accepted, case-insensitively.
func ParseChannel(s string) (Channel, bool) {
	switch strings.ToLower(s) {
	case "req", "request":
		return ChnREQ, true
	case "rsp", "resp", "response":
		return ChnRSP, true
	case "snp", "snoop":
		return ChnSNP, true
	case "dat", "data":
		return ChnDAT, true
	}
	return 0, false
}

// Direction tells whether a watchpoint observes flits uploaded from a device
// into the crosspoint or downloaded from the crosspoint to a device.
type Direction uint8

const (
	DirUp Direction = iota
	DirDown
)

func (d Direction) String() string {
	if d == DirUp {
		return "up"
	}
	return "down"
}
