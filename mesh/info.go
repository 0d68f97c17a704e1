package mesh

import (
	"sort"
	"time"
)

// Info is the JSON-serializable topology summary of a mesh.
type Info struct {
	Dim DimInfo  `json:"dim"`
	XPs []XPInfo `json:"xp"`
}

// DimInfo holds the mesh dimensions.
type DimInfo struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// XPInfo describes one crosspoint.
type XPInfo struct {
	X      int        `json:"x"`
	Y      int        `json:"y"`
	NodeID int        `json:"node_id"`
	Ports  []PortInfo `json:"ports"`
}

// PortInfo describes one crosspoint port and its connected devices.
type PortInfo struct {
	Type    string `json:"type"`
	Devices int    `json:"devices"`
}

// Info builds the topology summary, crosspoints ordered by node id.
func (m *Mesh) Info() Info {
	info := Info{Dim: DimInfo{X: m.XDim, Y: m.YDim}}
	ids := make([]int, 0, len(m.XPs))
	for id := range m.XPs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		xp := m.XPs[id]
		xpInfo := XPInfo{X: xp.X, Y: xp.Y, NodeID: xp.NodeID}
		for _, port := range xp.Ports {
			xpInfo.Ports = append(xpInfo.Ports, PortInfo{
				Type:    port.DevType,
				Devices: port.DevCount,
			})
		}
		info.XPs = append(info.XPs, xpInfo)
	}
	return info
}

// MeasureFrequency estimates the mesh clock by running the DTC0 cycle
// counter for the given duration. It temporarily enables the DTC and PMU
// and restores both afterwards.
func (m *Mesh) MeasureFrequency(d time.Duration) float64 {
	dtc0 := m.DTCs[0]
	dtc0.WriteOff(0x0A00, 1) // por_dt_dtc_ctl.dt_en
	dtc0.WriteOff(0x2100, 1) // por_dt_pmcr.pmu_en
	defer func() {
		dtc0.WriteOff(0x0A00, 0)
		dtc0.WriteOff(0x2100, 0)
	}()

	start := dtc0.ReadOff(0x2040).Bits(0, 39) // por_dt_pmccntr
	time.Sleep(d)
	end := dtc0.ReadOff(0x2040).Bits(0, 39)

	cycles := int64(end) - int64(start)
	if cycles < 0 {
		cycles += 1 << 40
	}
	return float64(cycles) / d.Seconds()
}
