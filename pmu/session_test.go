package pmu_test

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyb70289/cmn-analyzer/flit"
	"github.com/cyb70289/cmn-analyzer/iodrv"
	"github.com/cyb70289/cmn-analyzer/mesh"
	"github.com/cyb70289/cmn-analyzer/pmu"
	"github.com/cyb70289/cmn-analyzer/tracelog"
)

const (
	xp0Base = 0x10000
	xp8Base = 0x20000
	dtcBase = 0x50000
)

// buildMeshImage lays down the register image of a 2x2 mesh with one DTC
// under the crosspoint at node id 0.
func buildMeshImage(io *iodrv.MemIO) {
	io.Regs[0] = 0x0002 // CFG root
	io.Regs[0x80] = 4 | 0x100<<16

	xpBases := []uint64{xp0Base, xp8Base, 0x30000, 0x40000}
	xpNodeIDs := []uint64{0, 8, 32, 40}
	xpLogicalIDs := []uint64{0, 2, 2, 3}
	for i, base := range xpBases {
		io.Regs[0x100+uint64(i)*8] = base
		io.Regs[base] = 0x0006 | xpNodeIDs[i]<<16 |
			xpLogicalIDs[i]<<32 | 2<<48
		io.Regs[base+8] = 0b00110  // port 0: RN-F_CHIA
		io.Regs[base+16] = 0b01110 // port 1: HN-F
		io.Regs[base+0x900] = 1
		io.Regs[base+0x910] = 1
	}

	io.Regs[xp0Base+0x80] = 1 | 0x100<<16
	io.Regs[xp0Base+0x100] = dtcBase
	io.Regs[dtcBase] = 0x0003 // DTC, domain 0
}

func testOpener(memIO *iodrv.MemIO) pmu.MeshOpener {
	return func(meshID int) (*mesh.Mesh, io.Closer, error) {
		m, err := mesh.Discover(memIO)
		return m, nil, err
	}
}

func newStatSession(t *testing.T, memIO *iodrv.MemIO,
	opts pmu.Options) *pmu.Session {
	t.Helper()
	events, err := pmu.ParseEvents(
		[]string{"cmn0/xp=8,port=1,up,group=0,channel=req/"})
	require.NoError(t, err)
	s, err := pmu.NewSession(events, pmu.ModeStat, opts, testOpener(memIO))
	require.NoError(t, err)
	return s
}

func TestNewSessionOptionBounds(t *testing.T) {
	memIO := iodrv.NewMemIO()
	buildMeshImage(memIO)
	events, err := pmu.ParseEvents(
		[]string{"cmn0/xp=8,port=1,up,group=0,channel=req/"})
	require.NoError(t, err)

	_, err = pmu.NewSession(events, pmu.ModeStat,
		pmu.Options{Interval: 50 * time.Millisecond}, testOpener(memIO))
	assert.ErrorContains(t, err, "interval")

	_, err = pmu.NewSession(events, pmu.ModeStat,
		pmu.Options{
			Interval: time.Second,
			Timeout:  500 * time.Millisecond,
		}, testOpener(memIO))
	assert.ErrorContains(t, err, "timeout")
}

func TestNewSessionRejectsEmptyEvents(t *testing.T) {
	memIO := iodrv.NewMemIO()
	buildMeshImage(memIO)

	_, err := pmu.NewSession(nil, pmu.ModeStat,
		pmu.Options{TraceTag: true, Timeout: -1}, testOpener(memIO))
	assert.ErrorContains(t, err, "no events")
}

// The monitoring server reads session status from its own goroutine while
// Run drives the lifecycle; those reads must be safe under the race
// detector.
func TestSessionStatusReadsDuringRun(t *testing.T) {
	memIO := iodrv.NewMemIO()
	buildMeshImage(memIO)
	s := newStatSession(t, memIO, pmu.Options{
		Interval: 100 * time.Millisecond,
		Timeout:  100 * time.Millisecond,
	})

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			s.Elapsed()
			s.State()
			s.Progress()
		}
	}()

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("session did not stop on timeout")
	}
	close(stop)
	wg.Wait()
	assert.Equal(t, pmu.StateReset, s.State())
}

func TestSessionArmProgramsWatchpoint(t *testing.T) {
	memIO := iodrv.NewMemIO()
	buildMeshImage(memIO)
	s := newStatSession(t, memIO, pmu.Options{Timeout: -1})

	require.NoError(t, s.Arm())
	defer s.Reset()

	assert.Equal(t, pmu.StateArmed, s.State())

	// wildcard image on upload slot 0 of the xp=8 DTM
	assert.Equal(t, uint64(0), memIO.Regs[xp8Base+0x21A8], "wp0_val")
	assert.Equal(t, ^uint64(0), memIO.Regs[xp8Base+0x21B0], "wp0_mask")
	config := iodrv.Register(memIO.Regs[xp8Base+0x21A0])
	assert.Equal(t, uint64(1), config.Bit(0), "wp_dev_sel")
	assert.Equal(t, flit.ChnREQ.Sel(), config.Bits(1, 3), "wp_chn_sel")

	// slot 0 paired with DTC counter 0, counters clear on snapshot
	pmuConfig := iodrv.Register(memIO.Regs[xp8Base+0x2210])
	assert.Equal(t, uint64(1), pmuConfig.Bits(4, 7), "paired counters")
	assert.Equal(t, uint64(1), pmuConfig.Bit(8), "cntr_rst")
	dtcPMCR := iodrv.Register(memIO.Regs[dtcBase+0x2100])
	assert.Equal(t, uint64(1), dtcPMCR.Bit(5), "dtc cntr_rst")
}

func TestSessionRunStatStopsOnZeroTimeout(t *testing.T) {
	memIO := iodrv.NewMemIO()
	buildMeshImage(memIO)
	s := newStatSession(t, memIO, pmu.Options{Timeout: 0})

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("session did not stop on zero timeout")
	}
	assert.Equal(t, pmu.StateReset, s.State())
	// the final reset cleared the programmed watchpoint
	assert.Equal(t, uint64(0), memIO.Regs[xp8Base+0x21A0])
}

func TestSessionResetRunsOnce(t *testing.T) {
	memIO := iodrv.NewMemIO()
	buildMeshImage(memIO)
	s := newStatSession(t, memIO, pmu.Options{Timeout: 0})

	countFIFOClears := func() int {
		n := 0
		for _, w := range memIO.Writes {
			if w.Reg == xp0Base+0x2118 && w.Value == 0b1111 {
				n++
			}
		}
		return n
	}

	// one mesh reset when the session opens
	require.Equal(t, 1, countFIFOClears())

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, 2, countFIFOClears())

	// further resets are no-ops
	s.Reset()
	s.Reset()
	assert.Equal(t, 2, countFIFOClears())
}

func TestSessionStatCounts(t *testing.T) {
	memIO := iodrv.NewMemIO()
	buildMeshImage(memIO)
	s := newStatSession(t, memIO, pmu.Options{
		Interval: 100 * time.Millisecond,
		Timeout:  100 * time.Millisecond,
	})

	// latch a snapshot result: DTC count 2, DTM count 100
	memIO.Regs[dtcBase+0x2128] = 0x1FF // pmssr: snapshot done
	memIO.Regs[dtcBase+0x2050] = 2     // pmevcntsrAB
	memIO.Regs[xp8Base+0x2240] = 100   // pmevcntsr

	require.NoError(t, s.Run(context.Background()))

	progress := s.Progress()
	require.Len(t, progress, 1)
	assert.Equal(t, "cmn0-xp8-port1-up-grp0-req-all", progress[0].Label)
	assert.Equal(t, uint64(2<<16|100), progress[0].Total)
}

func TestSessionRunStopsOnContextCancel(t *testing.T) {
	memIO := iodrv.NewMemIO()
	buildMeshImage(memIO)
	s := newStatSession(t, memIO, pmu.Options{Timeout: -1})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("session did not stop on cancel")
	}
	assert.Equal(t, pmu.StateReset, s.State())
}

func TestSessionTraceCapturesToLog(t *testing.T) {
	memIO := iodrv.NewMemIO()
	buildMeshImage(memIO)
	events, err := pmu.ParseEvents(
		[]string{"cmn0/xp=8,port=1,up,group=0,channel=req/"})
	require.NoError(t, err)

	output := filepath.Join(t.TempDir(), "trace.data")
	s, err := pmu.NewSession(events, pmu.ModeTrace, pmu.Options{
		Timeout:  -1,
		MaxBytes: 0, // stop once anything is captured
		Output:   output,
	}, testOpener(memIO))
	require.NoError(t, err)

	// a pending packet in upload slot 0 of the xp=8 trace FIFO
	packet := flit.Packet{0x1111, 0x2222, 0x3333}
	memIO.Regs[xp8Base+0x2118] = 0b0001
	memIO.Regs[xp8Base+0x2120] = packet[0]
	memIO.Regs[xp8Base+0x2128] = packet[1]
	memIO.Regs[xp8Base+0x2130] = packet[2]

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, pmu.StateReset, s.State())

	reader, err := tracelog.OpenReader(output)
	require.NoError(t, err)
	defer reader.Close()

	require.Len(t, reader.Slots, 1)
	assert.Equal(t, "cmn0-xp8-port1-up-grp0-req-all", reader.Slots[0].Label)
	assert.Equal(t, flit.ChnREQ, reader.Slots[0].Channel)

	// the fake FIFO never clears, so the shutdown drain pass captures a
	// second copy of the same packet
	first, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, uint8(0), first.Slot)
	assert.Equal(t, uint64(0), first.Seq)
	assert.Equal(t, packet, first.Data)

	second, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), second.Seq)

	_, err = reader.Next()
	assert.ErrorIs(t, err, io.EOF)
}
