package pmu

import (
	"github.com/cyb70289/cmn-analyzer/iodrv"
)

// Mode selects what the session does with matched flits.
type Mode int

const (
	// ModeStat counts matches with the DTM/DTC counter pair.
	ModeStat Mode = iota
	// ModeTrace captures matched flits through the trace FIFO.
	ModeTrace
)

func (m Mode) String() string {
	if m == ModeStat {
		return "stat"
	}
	return "trace"
}

// RegisterImage is the complete watchpoint register content derived from
// one event: the por_dtm_wp_config value and the wp_val/wp_mask pair. In
// wp_mask a 1 bit means the comparator ignores that bit.
type RegisterImage struct {
	Config iodrv.Register
	Value  uint64
	Mask   uint64

	// TagEnable marks the TraceTag trigger: arming sets the DTM's
	// trace_tag_enable control bit so matches of this watchpoint start
	// tagging downstream flits.
	TagEnable bool
}

// EncodeAll derives the register image of every event, in slot order. With
// tracetag enabled the first event is the trigger: it alone keeps its match
// constraints and gets tag generation; every other event is encoded as a
// full wildcard with an all-zero value/mask pair, so it captures by the
// propagated tag instead of matching on its own.
func EncodeAll(events []*Event, mode Mode, tracetag bool) []RegisterImage {
	images := make([]RegisterImage, len(events))
	for i, ev := range events {
		images[i] = encode(ev, mode, tracetag && i != 0)
		if tracetag && i == 0 {
			images[i].TagEnable = true
		}
	}
	return images
}

func encode(ev *Event, mode Mode, tagWildcard bool) RegisterImage {
	var img RegisterImage

	if !tagWildcard {
		var matched uint64
		for _, m := range ev.Matches {
			img.Value |= m.Value << m.Field.Lo
			matched |= m.Field.Mask()
		}
		if ev.HasOpcode {
			img.Value |= ev.Opcode << ev.opField.Lo
			matched |= ev.opField.Mask()
		}
		img.Mask = ^matched
	}

	// por_dtm_wp_config
	img.Config.SetBit(0, uint64(ev.Port&1))            // wp_dev_sel
	img.Config.SetBits(1, 3, ev.Channel.Sel())         // wp_chn_sel
	img.Config.SetBits(4, 5, uint64(ev.Group))         // wp_grp
	img.Config.SetBits(17, 18, uint64(ev.Port>>1))     // wp_dev_sel2
	if mode == ModeTrace {
		img.Config.SetBit(10, 1)        // wp_pkt_gen
		img.Config.SetBits(11, 13, 0b100) // wp_pkt_type: control flit
		img.Config.SetBit(14, 1)        // wp_cc_en
	}
	return img
}
