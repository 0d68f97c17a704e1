package mesh

import (
	"fmt"
	"log"
	"math/bits"
	"sort"

	"github.com/cyb70289/cmn-analyzer/iodrv"
)

// Mesh is the discovered topology of one CMN instance.
type Mesh struct {
	io iodrv.IO

	// XDim and YDim are the mesh dimensions.
	XDim, YDim int

	// XPs maps crosspoint node id to the crosspoint.
	XPs map[int]*XP

	// DTCs holds every debug/trace controller, indexed by DTC domain.
	DTCs []*DTC

	multiDTM bool
}

// Discover walks the configuration node tree at the base of the register
// space and probes every crosspoint and DTC.
func Discover(io iodrv.IO) (*Mesh, error) {
	rootInfo := iodrv.Register(io.Read(0))
	if rootInfo.Bits(0, 15) != nodeTypeCFG {
		return nil, fmt.Errorf(
			"mesh: no CFG node at register base (node_info=0x%016x)",
			rootInfo.Value())
	}

	m := &Mesh{io: io, XPs: make(map[int]*XP)}
	root := newNode(io, 0, rootInfo)
	// por_cfgm_periph_id or multi-DTM flag lives in the CFG node
	m.multiDTM = iodrv.Register(io.Read(0x900)).Bit(63) != 0
	if m.multiDTM {
		log.Print("mesh: multiple DTM detected, unsupported")
	}

	var xps []*XP
	for i := 0; i < root.childCount; i++ {
		childPtr := iodrv.Register(io.Read(root.childPtrOffset + uint64(i)*8))
		if childPtr.Bit(31) != 0 {
			log.Print("mesh: ignoring external node from root")
			continue
		}
		xpBase := childPtr.Bits(0, 29)
		xpInfo := iodrv.Register(io.Read(xpBase))
		if t := xpInfo.Bits(0, 15); t != nodeTypeXP {
			return nil, fmt.Errorf(
				"mesh: CFG child %d is not an XP (type=0x%04x)", i, t)
		}
		xp, err := newXP(io, xpBase, xpInfo)
		if err != nil {
			return nil, err
		}
		xps = append(xps, xp)
	}
	if len(xps) == 0 {
		return nil, fmt.Errorf("mesh: no crosspoint found")
	}

	if err := m.placeXPs(xps); err != nil {
		return nil, err
	}
	if err := m.collectDTCs(xps); err != nil {
		return nil, err
	}
	return m, nil
}

// placeXPs derives the mesh dimensions and each crosspoint's coordinates
// from node ids, the same way the linux arm-cmn driver does: the XP with
// node id 8 carries the x dimension in its logical id.
func (m *Mesh) placeXPs(xps []*XP) error {
	xdim := 1
	for _, xp := range xps {
		if xp.NodeID == 8 {
			xdim = xp.LogicalID
			break
		}
	}
	if xdim < 1 || xdim > 16 || len(xps)%xdim != 0 {
		return fmt.Errorf("mesh: bad x dimension %d for %d crosspoints",
			xdim, len(xps))
	}
	ydim := len(xps) / xdim
	if ydim > 16 {
		return fmt.Errorf("mesh: bad y dimension %d", ydim)
	}
	m.XDim, m.YDim = xdim, ydim

	xshift := bits.Len(uint(max(xdim, ydim) - 1))
	if xshift < 2 {
		xshift = 2
	}
	for _, xp := range xps {
		xyID := xp.NodeID >> 3
		xp.X = xyID >> xshift
		xp.Y = xyID & ((1 << xshift) - 1)
		m.XPs[xp.NodeID] = xp
	}
	return nil
}

// collectDTCs gathers the DTC nodes found under crosspoints and orders them
// by domain, so DTCs[d] serves the XPs whose DTCDomain is d.
func (m *Mesh) collectDTCs(xps []*XP) error {
	maxDomain := -1
	for _, xp := range xps {
		if xp.DTCDomain > maxDomain {
			maxDomain = xp.DTCDomain
		}
		m.DTCs = append(m.DTCs, xp.dtcs...)
	}
	if len(m.DTCs) != maxDomain+1 {
		return fmt.Errorf("mesh: found %d DTCs for %d domains",
			len(m.DTCs), maxDomain+1)
	}
	sort.Slice(m.DTCs, func(i, j int) bool {
		return m.DTCs[i].Domain < m.DTCs[j].Domain
	})
	for d, dtc := range m.DTCs {
		if dtc.Domain != d {
			return fmt.Errorf("mesh: missing DTC for domain %d", d)
		}
	}
	return nil
}

// MultiDTM reports whether the mesh has multiple DTMs per crosspoint.
func (m *Mesh) MultiDTM() bool { return m.multiDTM }

// XP returns the crosspoint with the given node id.
func (m *Mesh) XP(nodeID int) (*XP, error) {
	xp, ok := m.XPs[nodeID]
	if !ok {
		return nil, fmt.Errorf("mesh: no crosspoint with node id %d", nodeID)
	}
	return xp, nil
}

// Reset restores every DTC and DTM in the mesh to its default state. DTCs
// are reset first so tracing stops before the DTMs are cleared.
func (m *Mesh) Reset() {
	for _, dtc := range m.DTCs {
		dtc.Reset()
	}
	for _, xp := range m.XPs {
		xp.Reset()
	}
}
