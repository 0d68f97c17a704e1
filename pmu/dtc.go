package pmu

import (
	"fmt"

	"github.com/cyb70289/cmn-analyzer/mesh"
)

// DTC register offsets.
const (
	regDTCCtl          = 0x0A00 // por_dt_dtc_ctl
	regDTCTraceControl = 0x0A30 // por_dt_trace_control
	regDTCPMCR         = 0x2100 // por_dt_pmcr
	regDTCPMSSR        = 0x2128 // por_dt_pmssr
	regDTCPMSRR        = 0x2130 // por_dt_pmsrr
	regDTCCounterSR    = 0x2050 // por_dt_pmevcntsrAB, first of four pairs
)

// dtc drives one debug/trace controller and hands out its event counters.
type dtc struct {
	node     *mesh.DTC
	counters int
}

// nextCounter allocates the next free 32-bit DTC counter.
func (c *dtc) nextCounter() (int, error) {
	if c.counters >= 8 {
		return 0, fmt.Errorf("no DTC counter available on domain %d",
			c.node.Domain)
	}
	idx := c.counters
	c.counters++
	return idx, nil
}

// configureStat makes counters clear on snapshot.
func (c *dtc) configureStat() {
	pmcr := c.node.ReadOff(regDTCPMCR)
	pmcr.SetBit(5, 1) // cntr_rst
	c.node.WriteOff(regDTCPMCR, pmcr.Value())
}

// configureTrace enables the cycle count in trace packets.
func (c *dtc) configureTrace() {
	tc := c.node.ReadOff(regDTCTraceControl)
	tc.SetBit(8, 1) // cc_enable
	c.node.WriteOff(regDTCTraceControl, tc.Value())
}

// enable0 turns on the controller. Only valid on domain 0, which gates the
// whole debug/trace network.
func (c *dtc) enable0(mode Mode) {
	if mode == ModeStat {
		pmcr := c.node.ReadOff(regDTCPMCR)
		if pmcr.Bit(0) == 0 {
			pmcr.SetBit(0, 1) // pmu_en
			c.node.WriteOff(regDTCPMCR, pmcr.Value())
		}
	}
	ctl := c.node.ReadOff(regDTCCtl)
	if ctl.Bit(0) == 0 {
		ctl.SetBit(0, 1) // dt_en
		c.node.WriteOff(regDTCCtl, ctl.Value())
	}
}

// requestSnapshot latches every paired counter into its shadow register.
func (c *dtc) requestSnapshot() {
	c.node.WriteOff(regDTCPMSRR, 1) // ss_req
}
