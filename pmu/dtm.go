package pmu

import (
	"fmt"
	"time"

	"github.com/cyb70289/cmn-analyzer/flit"
	"github.com/cyb70289/cmn-analyzer/mesh"
)

// DTM register offsets. Watchpoint slot n adds n*24 to the wp registers and
// n*24 to the FIFO entry base.
const (
	regDTMControl    = 0x2100 // por_dtm_control
	regDTMFIFOReady  = 0x2118 // por_dtm_fifo_entry_ready, write-1-to-clear
	regDTMFIFOEntry  = 0x2120 // por_dtm_fifo_entry0_0
	regDTMWPConfig   = 0x21A0 // por_dtm_wp0_config
	regDTMWPValue    = 0x21A8 // por_dtm_wp0_val
	regDTMWPMask     = 0x21B0 // por_dtm_wp0_mask
	regDTMPMUConfig  = 0x2210 // por_dtm_pmu_config
	regDTMCounterSR  = 0x2240 // por_dtm_pmevcntsr
	wpStride         = 24
	fifoEntryStride  = 24
	snapshotWaitStep = time.Millisecond
	snapshotWaitMax  = 100 * time.Millisecond
)

// dtm drives the debug/trace monitor of one crosspoint. Slots 0 and 1
// watch uploads, 2 and 3 downloads.
type dtm struct {
	xp      *mesh.XP
	dtc     *dtc
	inUse   [4]bool
	tracing bool
}

func newDTM(xp *mesh.XP, dtc *dtc, multiDTM bool) (*dtm, error) {
	if multiDTM && len(xp.Ports) > 2 {
		return nil, fmt.Errorf("xp %d: multiple DTM unsupported", xp.NodeID)
	}
	return &dtm{xp: xp, dtc: dtc}, nil
}

// allocSlot claims a free watchpoint slot for the given direction.
func (d *dtm) allocSlot(dir flit.Direction) (int, error) {
	slot := 0
	if dir == flit.DirDown {
		slot = 2
	}
	if d.inUse[slot] {
		slot++
	}
	if d.inUse[slot] {
		return 0, fmt.Errorf("xp %d: no free %s watchpoint", d.xp.NodeID, dir)
	}
	d.inUse[slot] = true
	return slot, nil
}

// writeVerify writes a register and confirms the value sticks.
func (d *dtm) writeVerify(off uint64, value uint64) error {
	d.xp.WriteOff(off, value)
	if got := d.xp.ReadOff(off).Value(); got != value {
		return &ProgramError{Reg: off, Wrote: value, Read: got}
	}
	return nil
}

// program writes one watchpoint's value, mask, and config registers.
func (d *dtm) program(slot int, img RegisterImage, mode Mode) error {
	base := uint64(slot) * wpStride
	if err := d.writeVerify(regDTMWPValue+base, img.Value); err != nil {
		return err
	}
	if err := d.writeVerify(regDTMWPMask+base, img.Mask); err != nil {
		return err
	}
	if err := d.writeVerify(regDTMWPConfig+base, img.Config.Value()); err != nil {
		return err
	}
	if mode == ModeTrace {
		// route trace packets to the FIFO instead of the ATB bus
		control := d.xp.ReadOff(regDTMControl)
		control.SetBit(3, 1) // trace_no_atb
		if err := d.writeVerify(regDTMControl, control.Value()); err != nil {
			return err
		}
		d.tracing = true
	}
	if img.TagEnable {
		control := d.xp.ReadOff(regDTMControl)
		control.SetBit(1, 1) // trace_tag_enable
		if err := d.writeVerify(regDTMControl, control.Value()); err != nil {
			return err
		}
	}
	return nil
}

// configureCounter pairs the slot's 16-bit DTM counter with a 32-bit DTC
// counter and makes both clear on snapshot. Returns the DTC counter index.
func (d *dtm) configureCounter(slot int) (int, error) {
	dtcIdx, err := d.dtc.nextCounter()
	if err != nil {
		return 0, err
	}
	cfg := d.xp.ReadOff(regDTMPMUConfig)
	// watchpoint as counter input
	cfg.SetBits(uint(32+slot*8), uint(39+slot*8), uint64(slot))
	// pair with the DTC counter to form a 48-bit count
	paired := cfg.Bits(4, 7)
	cfg.SetBits(4, 7, paired|1<<uint(slot))
	cfg.SetBits(uint(16+slot*4), uint(18+slot*4), uint64(dtcIdx))
	cfg.SetBit(8, 1) // cntr_rst: clear on snapshot
	if err := d.writeVerify(regDTMPMUConfig, cfg.Value()); err != nil {
		return 0, err
	}
	return dtcIdx, nil
}

// enable turns the DTM on. With counters in use the PMU is enabled first;
// dtm_enable must be set last since DTM registers freeze once it is on.
func (d *dtm) enable(mode Mode) {
	if mode == ModeStat {
		cfg := d.xp.ReadOff(regDTMPMUConfig)
		if cfg.Bit(0) == 0 {
			cfg.SetBit(0, 1) // pmu_en
			d.xp.WriteOff(regDTMPMUConfig, cfg.Value())
		}
	}
	control := d.xp.ReadOff(regDTMControl)
	if control.Bit(0) == 0 {
		control.SetBit(0, 1) // dtm_enable
		d.xp.WriteOff(regDTMControl, control.Value())
	}
}

// readCounter snapshots one 48-bit count: the 16-bit DTM shadow counter
// combined with the paired 32-bit DTC shadow counter.
func (d *dtm) readCounter(slot, dtcIdx int) (uint64, error) {
	deadline := time.Now().Add(snapshotWaitMax)
	for {
		ssStatus := d.dtc.node.ReadOff(regDTCPMSSR).Bits(0, 8)
		if ssStatus&(1<<uint(dtcIdx)) != 0 {
			break
		}
		if time.Now().After(deadline) {
			return 0, fmt.Errorf("timeout waiting for DTC snapshot")
		}
		time.Sleep(snapshotWaitStep)
	}
	dtmCount := d.xp.ReadOff(regDTMCounterSR).
		Bits(uint(slot*16), uint(slot*16+15))
	// counter pairs share one shadow register: 0,1 -> +0x00, 2,3 -> +0x10 ...
	shadow := d.dtc.node.ReadOff(regDTCCounterSR + uint64(dtcIdx/2)*16)
	lo := uint(dtcIdx % 2 * 32)
	dtcCount := shadow.Bits(lo, lo+31)
	return dtcCount<<16 | dtmCount, nil
}

// drain pops the slot's single-entry trace FIFO if a packet is pending.
// The FIFO holds one flit; a flit arriving before the previous one is
// drained is lost by the hardware, which shows up only as a gap in the
// capture, never as an error.
func (d *dtm) drain(slot int) (flit.Packet, bool) {
	ready := d.xp.ReadOff(regDTMFIFOReady)
	if ready.Bit(uint(slot)) == 0 {
		return flit.Packet{}, false
	}
	base := regDTMFIFOEntry + uint64(slot)*fifoEntryStride
	var p flit.Packet
	for w := 0; w < 3; w++ {
		p[w] = d.xp.ReadOff(base + uint64(w)*8).Value()
	}
	d.xp.WriteOff(regDTMFIFOReady, 1<<uint(slot))
	return p, true
}
