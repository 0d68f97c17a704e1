package pmu

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/tebeka/atexit"

	"github.com/cyb70289/cmn-analyzer/iodrv"
	"github.com/cyb70289/cmn-analyzer/mesh"
	"github.com/cyb70289/cmn-analyzer/tracelog"
)

// State is the collector lifecycle. Once a session reaches StateArmed the
// hardware is guaranteed to be reset exactly once before process exit.
type State int

const (
	StateIdle State = iota
	StateArmed
	StateRunning
	StateDraining
	StateReset
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	default:
		return "reset"
	}
}

// Options bound and shape a collector session.
type Options struct {
	// Interval is the report cadence. Zero selects one second.
	Interval time.Duration
	// Timeout stops the session after the given run time. Zero stops
	// immediately; negative runs until interrupted.
	Timeout time.Duration
	// MaxBytes stops a trace session once at least this many bytes of
	// records were captured (so zero stops after the first record).
	// Negative means no size bound.
	MaxBytes int64
	// TraceTag makes the first event the tag trigger and captures every
	// other event by the propagated tag.
	TraceTag bool
	// Output is the trace log path.
	Output string
}

// MeshOpener maps a mesh id to its discovered topology. The returned closer
// releases the underlying register mapping.
type MeshOpener func(meshID int) (*mesh.Mesh, io.Closer, error)

// OpenHardware is the MeshOpener backed by the kernel module device node.
func OpenHardware(meshID int) (*mesh.Mesh, io.Closer, error) {
	dev, err := iodrv.Open(meshID, false)
	if err != nil {
		return nil, nil, err
	}
	m, err := mesh.Discover(dev)
	if err != nil {
		dev.Close()
		return nil, nil, err
	}
	log.Printf("cmn%d probed: %dx%d mesh, %d DTCs",
		meshID, m.XDim, m.YDim, len(m.DTCs))
	return m, dev, nil
}

type dtmKey struct{ meshID, xpID int }
type dtcKey struct{ meshID, domain int }

// slotRef binds one event to the hardware that serves it.
type slotRef struct {
	ev         *Event
	img        RegisterImage
	dtm        *dtm
	wp         int // watchpoint index within the DTM
	dtcCounter int // stat mode only
}

// Session owns the programmed watchpoints of one run. The process must be
// the only user of the meshes it touches: a concurrent profiler on the same
// registers corrupts both results, and nothing here can detect that.
type Session struct {
	mode   Mode
	opts   Options
	events []*Event
	images []RegisterImage

	meshes  map[int]*mesh.Mesh
	closers []io.Closer
	dtms    map[dtmKey]*dtm
	dtcs    map[dtcKey]*dtc
	slots   []*slotRef

	state     State
	startTime time.Time
	resetOnce sync.Once

	mu       sync.Mutex
	totals   []uint64
	captured int64
	seq      uint64
	records  []tracelog.Record
}

// NewSession validates options, encodes every event, and opens the meshes
// they refer to. No watchpoint is programmed yet.
func NewSession(events []*Event, mode Mode, opts Options,
	open MeshOpener) (*Session, error) {
	if len(events) == 0 {
		return nil, fmt.Errorf("no events given")
	}
	if opts.Interval == 0 {
		opts.Interval = time.Second
	}
	if opts.Interval < 100*time.Millisecond ||
		opts.Interval > 100*time.Second {
		return nil, fmt.Errorf("interval must be within 100 ms to 100 s")
	}
	if opts.Timeout > 0 && opts.Timeout < opts.Interval {
		return nil, fmt.Errorf("timeout is less than the report interval")
	}
	if opts.TraceTag {
		for _, ev := range events[1:] {
			if len(ev.Matches) > 0 || ev.HasOpcode {
				log.Printf("tracetag: matches of %q are ignored", ev.Label)
			}
		}
	}

	s := &Session{
		mode:   mode,
		opts:   opts,
		events: events,
		images: EncodeAll(events, mode, opts.TraceTag),
		meshes: make(map[int]*mesh.Mesh),
		dtms:   make(map[dtmKey]*dtm),
		dtcs:   make(map[dtcKey]*dtc),
		totals: make([]uint64, len(events)),
	}
	for i, ev := range events {
		m, err := s.openMesh(ev.MeshID, open)
		if err != nil {
			s.closeMeshes()
			return nil, err
		}
		d, err := s.dtmFor(m, ev)
		if err != nil {
			s.closeMeshes()
			return nil, err
		}
		s.slots = append(s.slots, &slotRef{ev: ev, img: s.images[i], dtm: d})
	}
	// clear any state a crashed run may have left behind
	for _, m := range s.meshes {
		m.Reset()
	}
	atexit.Register(s.Reset)
	return s, nil
}

func (s *Session) openMesh(meshID int, open MeshOpener) (*mesh.Mesh, error) {
	if m, ok := s.meshes[meshID]; ok {
		return m, nil
	}
	m, closer, err := open(meshID)
	if err != nil {
		return nil, err
	}
	s.meshes[meshID] = m
	if closer != nil {
		s.closers = append(s.closers, closer)
	}
	return m, nil
}

func (s *Session) dtmFor(m *mesh.Mesh, ev *Event) (*dtm, error) {
	key := dtmKey{ev.MeshID, ev.XPID}
	if d, ok := s.dtms[key]; ok {
		return d, nil
	}
	xp, err := m.XP(ev.XPID)
	if err != nil {
		return nil, err
	}
	ckey := dtcKey{ev.MeshID, xp.DTCDomain}
	c, ok := s.dtcs[ckey]
	if !ok {
		if xp.DTCDomain >= len(m.DTCs) {
			return nil, fmt.Errorf("xp %d: no DTC for domain %d",
				ev.XPID, xp.DTCDomain)
		}
		c = &dtc{node: m.DTCs[xp.DTCDomain]}
		s.dtcs[ckey] = c
	}
	d, err := newDTM(xp, c, m.MultiDTM())
	if err != nil {
		return nil, err
	}
	s.dtms[key] = d
	return d, nil
}

// Arm programs every watchpoint and counter. Any failed register write
// resets whatever was already programmed and aborts.
func (s *Session) Arm() error {
	for _, slot := range s.slots {
		wp, err := slot.dtm.allocSlot(slot.ev.Dir)
		if err != nil {
			s.Reset()
			return err
		}
		slot.wp = wp
		if err := slot.dtm.program(wp, slot.img, s.mode); err != nil {
			s.Reset()
			return fmt.Errorf("arm %q: %w", slot.ev.Label, err)
		}
		if s.mode == ModeStat {
			slot.dtcCounter, err = slot.dtm.configureCounter(wp)
			if err != nil {
				s.Reset()
				return fmt.Errorf("arm %q: %w", slot.ev.Label, err)
			}
		}
	}
	for _, c := range s.dtcs {
		if s.mode == ModeStat {
			c.configureStat()
		} else {
			c.configureTrace()
		}
	}
	s.setState(StateArmed)
	return nil
}

// start enables DTMs first, then the domain-0 DTCs that gate the network.
func (s *Session) start() {
	for _, d := range s.dtms {
		d.enable(s.mode)
	}
	for _, c := range s.dtcs {
		if c.node.Domain == 0 {
			c.enable0(s.mode)
		}
	}
	s.mu.Lock()
	s.startTime = time.Now()
	s.mu.Unlock()
	s.setState(StateRunning)
}

// Run arms the session if needed, runs the sampling loop until a stop
// condition fires, drains, and resets. Every exit path, including ctx
// cancellation and errors, goes through Reset.
func (s *Session) Run(ctx context.Context) error {
	defer s.Reset()
	if s.state == StateIdle {
		if err := s.Arm(); err != nil {
			return err
		}
	}
	s.start()

	var err error
	if s.mode == ModeStat {
		err = s.runStat(ctx)
	} else {
		err = s.runTrace(ctx)
		if err == nil {
			err = s.saveTrace()
		}
	}
	return err
}

// timedOut reports whether the run time bound is reached.
func (s *Session) timedOut() bool {
	return s.opts.Timeout >= 0 && s.Elapsed() >= s.opts.Timeout
}

// Reset restores every touched mesh register to its default value and
// releases the register mappings. It runs exactly once, no matter how many
// exit paths reach it.
func (s *Session) Reset() {
	s.resetOnce.Do(func() {
		for _, m := range s.meshes {
			m.Reset()
		}
		s.closeMeshes()
		s.setState(StateReset)
	})
}

func (s *Session) closeMeshes() {
	for _, c := range s.closers {
		c.Close()
	}
	s.closers = nil
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Mode returns the session mode.
func (s *Session) Mode() Mode { return s.mode }

// Elapsed returns the time since counting/tracing was enabled.
func (s *Session) Elapsed() time.Duration {
	s.mu.Lock()
	start := s.startTime
	s.mu.Unlock()
	if start.IsZero() {
		return 0
	}
	return time.Since(start)
}

// SlotProgress is the running total of one watchpoint slot.
type SlotProgress struct {
	Label string `json:"label"`
	Total uint64 `json:"total"`
}

// Progress returns the per-slot running totals.
func (s *Session) Progress() []SlotProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	progress := make([]SlotProgress, len(s.slots))
	for i, slot := range s.slots {
		progress[i] = SlotProgress{Label: slot.ev.Label, Total: s.totals[i]}
	}
	return progress
}

// saveTrace persists the captured records.
func (s *Session) saveTrace() error {
	slots := make([]tracelog.SlotInfo, len(s.slots))
	for i, slot := range s.slots {
		slots[i] = tracelog.SlotInfo{
			Label:   slot.ev.Label,
			Channel: slot.ev.Channel,
			Group:   slot.ev.Group,
		}
	}
	w, err := tracelog.NewWriter(s.opts.Output, slots)
	if err != nil {
		return err
	}
	for _, rec := range s.records {
		if err := w.Append(rec); err != nil {
			w.Close()
			return err
		}
	}
	if err := w.Close(); err != nil {
		return err
	}
	fmt.Printf("saved %d records to %s\n", len(s.records), s.opts.Output)
	return nil
}
