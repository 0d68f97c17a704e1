package pmu

import (
	"context"
	"time"

	"github.com/cyb70289/cmn-analyzer/tracelog"
)

// runTrace busy-polls the trace FIFOs and reports drained counts once per
// interval. Draining is not gated on the report tick: the FIFO holds a
// single flit, so every iteration of the inner loop drains all slots. A
// flit arriving while its predecessor still sits in the FIFO is dropped by
// the hardware; that loss is visible only as a sequence gap in the capture
// and never stops the session.
func (s *Session) runTrace(ctx context.Context) error {
	lastTotals := make([]uint64, len(s.slots))
	for {
		tick := time.Now().Add(s.opts.Interval)
		for time.Now().Before(tick) {
			select {
			case <-ctx.Done():
				s.finishTrace()
				return nil
			default:
			}
			s.drainAll()
			if s.timedOut() || s.sizeBoundReached() {
				s.finishTrace()
				return nil
			}
		}
		printRule()
		s.mu.Lock()
		for i, slot := range s.slots {
			count := s.totals[i] - lastTotals[i]
			lastTotals[i] = s.totals[i]
			printSlotCount(slot.ev.Label, count)
		}
		s.mu.Unlock()
	}
}

// drainAll pops at most one pending packet per slot.
func (s *Session) drainAll() {
	for i, slot := range s.slots {
		pkt, ok := slot.dtm.drain(slot.wp)
		if !ok {
			continue
		}
		s.mu.Lock()
		s.records = append(s.records, tracelog.Record{
			Slot: uint8(i),
			Seq:  s.seq,
			Data: pkt,
		})
		s.seq++
		s.totals[i]++
		s.captured += tracelog.RecordBytes
		s.mu.Unlock()
	}
}

func (s *Session) sizeBoundReached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts.MaxBytes >= 0 && s.captured > 0 &&
		s.captured >= s.opts.MaxBytes
}

// finishTrace makes one last drain pass so a packet that arrived during
// shutdown is not left in the FIFO.
func (s *Session) finishTrace() {
	s.setState(StateDraining)
	s.drainAll()
}
