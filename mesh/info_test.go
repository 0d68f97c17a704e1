package mesh_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/cyb70289/cmn-analyzer/iodrv"
	"github.com/cyb70289/cmn-analyzer/iodrv/mockiodrv"
	"github.com/cyb70289/cmn-analyzer/mesh"
)

func TestDiscoverChecksRootNodeType(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockIO := mockiodrv.NewMockIO(ctrl)
	// discovery must stop at the very first register when the root is
	// not a CFG node
	mockIO.EXPECT().Read(uint64(0)).Return(uint64(0x0006))

	_, err := mesh.Discover(mockIO)
	assert.ErrorContains(t, err, "no CFG node")
}

// freqIO feeds the DTC cycle counter a wrapping pair of reads.
type freqIO struct {
	*iodrv.MemIO
	reads int
}

func (f *freqIO) Read(reg uint64) uint64 {
	if reg == 0x50000+0x2040 { // por_dt_pmccntr
		f.reads++
		if f.reads == 1 {
			return 1<<40 - 50
		}
		return 50
	}
	return f.MemIO.Read(reg)
}

func TestMeasureFrequencyWraparound(t *testing.T) {
	memIO := iodrv.NewMemIO()
	buildMeshImage(memIO)
	fio := &freqIO{MemIO: memIO}

	m, err := mesh.Discover(fio)
	require.NoError(t, err)

	freq := m.MeasureFrequency(10 * time.Millisecond)

	// 100 cycles in 10 ms, counted across the 40-bit wraparound
	assert.InDelta(t, 10000, freq, 1)

	// the probe restores the DTC to its disabled state
	assert.Equal(t, uint64(0), memIO.Regs[0x50000+0x0A00])
	assert.Equal(t, uint64(0), memIO.Regs[0x50000+0x2100])
}
