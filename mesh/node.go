// Package mesh discovers the node topology of a CMN mesh by walking the
// configuration node tree in the mapped register space, and provides typed
// access to the crosspoint (XP) and debug/trace controller (DTC) nodes the
// profiling code programs.
package mesh

import (
	"fmt"

	"github.com/cyb70289/cmn-analyzer/iodrv"
)

// Node type values from por_xxx_node_info.
const (
	nodeTypeCFG = 0x0002
	nodeTypeDTC = 0x0003
	nodeTypeXP  = 0x0006
)

var nodeTypeNames = map[uint64]string{
	0x0001: "DVM",
	0x0002: "CFG",
	0x0003: "DTC",
	0x0004: "HN-I",
	0x0005: "HN-F",
	0x0006: "XP",
	0x0007: "SBSX",
	0x0008: "HN-F_MPAM_S",
	0x0009: "HN-F_MPAM_NS",
	0x000A: "RN-I",
	0x000D: "RN-D",
	0x000F: "RN-SAM",
	0x0011: "HN-P",
	0x0103: "CCG_RA",
	0x0104: "CCG_HA",
	0x0105: "CCLA",
	0x0106: "CCLA_RNI",
	0x1000: "APB",
}

// Connected device types from por_mxp_device_port_connect_info_p0-5.
var deviceTypeNames = map[uint64]string{
	0b00001: "RN-I",
	0b00010: "RN-D",
	0b00100: "RN-F_CHIB",
	0b00101: "RN-F_CHIB_ESAM",
	0b00110: "RN-F_CHIA",
	0b00111: "RN-F_CHIA_ESAM",
	0b01000: "HN-T",
	0b01001: "HN-I",
	0b01010: "HN-D",
	0b01011: "HN-P",
	0b01100: "SN-F_CHIC",
	0b01101: "SBSX",
	0b01110: "HN-F",
	0b01111: "SN-F_CHIE",
	0b10000: "SN-F_CHID",
	0b10001: "CXHA",
	0b10010: "CXRA",
	0b10011: "CXRH",
	0b10100: "RN-F_CHID",
	0b10101: "RN-F_CHID_ESAM",
	0b10110: "RN-F_CHIC",
	0b10111: "RN-F_CHIC_ESAM",
	0b11000: "RN-F_CHIE",
	0b11001: "RN-F_CHIE_ESAM",
	0b11100: "MTSX",
	0b11101: "HN-V",
	0b11110: "CCG",
}

// node is the register-space view shared by every mesh node.
type node struct {
	io        iodrv.IO
	regBase   uint64
	NodeID    int
	LogicalID int

	childCount     int
	childPtrOffset uint64
}

func newNode(io iodrv.IO, regBase uint64, info iodrv.Register) node {
	childInfo := iodrv.Register(io.Read(regBase + 0x80))
	return node{
		io:             io,
		regBase:        regBase,
		NodeID:         int(info.Bits(16, 31)),
		LogicalID:      int(info.Bits(32, 47)),
		childCount:     int(childInfo.Bits(0, 15)),
		childPtrOffset: childInfo.Bits(16, 31),
	}
}

// ReadOff reads the register at offset off from the node base.
func (n *node) ReadOff(off uint64) iodrv.Register {
	return iodrv.Register(n.io.Read(n.regBase + off))
}

// WriteOff writes the register at offset off from the node base.
func (n *node) WriteOff(off uint64, value uint64) {
	n.io.Write(n.regBase+off, value)
}

// Port describes one XP port with a connected device.
type Port struct {
	DevType  string
	DevCount int
}

// XP is one mesh crosspoint, hosting the DTM block the watchpoints and
// trace FIFO live in.
type XP struct {
	node
	X, Y      int
	Ports     []Port
	DTCDomain int

	dtcs []*DTC
}

func newXP(io iodrv.IO, regBase uint64, info iodrv.Register) (*XP, error) {
	xp := &XP{node: newNode(io, regBase, info)}
	if xp.NodeID&7 != 0 {
		return nil, fmt.Errorf("xp node id %d has nonzero port/device bits",
			xp.NodeID)
	}
	portCount := int(info.Bits(48, 51))
	for i := 0; i < portCount; i++ {
		connInfo := xp.ReadOff(8 + uint64(i)*8)
		portInfo := xp.ReadOff(0x900 + uint64(i)*16)
		devType, ok := deviceTypeNames[connInfo.Bits(0, 4)]
		if !ok {
			devType = "Reserved"
		}
		xp.Ports = append(xp.Ports, Port{
			DevType:  devType,
			DevCount: int(portInfo.Bits(0, 2)),
		})
	}
	// por_dtm_unit_info
	xp.DTCDomain = int(xp.ReadOff(0x960).Bits(0, 1))
	if err := xp.probeChildren(); err != nil {
		return nil, err
	}
	return xp, nil
}

// probeChildren scans the XP's child nodes for DTCs; other device node types
// only matter for the info dump and are identified by port probing above.
func (xp *XP) probeChildren() error {
	for i := 0; i < xp.childCount; i++ {
		childPtr := xp.ReadOff(xp.childPtrOffset + uint64(i)*8)
		if childPtr.Bit(31) != 0 {
			continue // external node
		}
		childBase := childPtr.Bits(0, 29)
		childInfo := iodrv.Register(xp.io.Read(childBase))
		if childInfo.Bits(0, 15) == nodeTypeDTC {
			xp.dtcs = append(xp.dtcs, newDTC(xp.io, childBase, childInfo))
		}
	}
	return nil
}

// Reset restores every DTM register of this XP to its disabled default and
// clears the trace FIFO ready flags.
func (xp *XP) Reset() {
	zeroRegs := []uint64{
		0x2100,                         // por_dtm_control (stop dt first)
		0x2210,                         // por_dtm_pmu_config
		0x2000,                         // por_mxp_pmu_event_sel
		0x21A0, 0x21B8, 0x21D0, 0x21E8, // por_dtm_wp0-3_config
		0x21A8, 0x21C0, 0x21D8, 0x21F0, // por_dtm_wp0-3_val
		0x21B0, 0x21C8, 0x21E0, 0x21F8, // por_dtm_wp0-3_mask
		0x2220, // por_dtm_pmevcnt
		0x2240, // por_dtm_pmevcntsr
	}
	for _, reg := range zeroRegs {
		xp.WriteOff(reg, 0)
	}
	// por_dtm_fifo_entry_ready is write-1-to-clear
	xp.WriteOff(0x2118, 0b1111)
}

// DTC is one debug/trace controller node.
type DTC struct {
	node
	Domain int
}

func newDTC(io iodrv.IO, regBase uint64, info iodrv.Register) *DTC {
	return &DTC{
		node:   newNode(io, regBase, info),
		Domain: int(info.Bits(32, 33)),
	}
}

// Reset restores the DTC control, trace, and counter registers to defaults
// and clears counter overflow status.
func (d *DTC) Reset() {
	zeroRegs := []uint64{
		0x0A00,                         // por_dt_dtc_ctl (stop dt)
		0x2100,                         // por_dt_pmcr (stop pmu)
		0x0A30,                         // por_dt_trace_control
		0x2000, 0x2010, 0x2020, 0x2030, // por_dt_pmevcntAB-GH
		0x2040,                         // por_dt_pmccntr
		0x2050, 0x2060, 0x2070, 0x2080, // por_dt_pmevcntsrAB-GH
		0x2090, // por_dt_pmccntrsr
	}
	for _, reg := range zeroRegs {
		d.WriteOff(reg, 0)
	}
	// por_dt_pmovsr_clr
	d.WriteOff(0x2210, 0b1_1111_1111)
}
