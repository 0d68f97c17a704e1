package pmu

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// reportPrinter renders counts with digit grouping for the console only;
// stored and exported values stay raw integers.
var reportPrinter = message.NewPrinter(language.English)

const reportRule = 80

func printRule() {
	fmt.Println(strings.Repeat("-", reportRule))
}

func printSlotCount(label string, count uint64) {
	if len(label) > 64 {
		label = label[:64]
	}
	reportPrinter.Printf("%-65s%15d\n", label, count)
}

// runStat reads and reports the per-slot counters once per interval until
// the timeout elapses or the context is canceled.
func (s *Session) runStat(ctx context.Context) error {
	next := time.Now()
	for {
		if s.timedOut() {
			return nil
		}
		next = next.Add(s.opts.Interval)
		sleep := time.Until(next)
		if sleep < 0 {
			log.Print("run time exceeds stat interval")
			next = time.Now()
			sleep = 0
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(sleep):
		}
		if err := s.snapshot(); err != nil {
			return err
		}
	}
}

// snapshot latches every counter and reports the counts of the last
// interval. Counters clear on snapshot, so each read is a delta.
func (s *Session) snapshot() error {
	for _, c := range s.dtcs {
		if c.node.Domain == 0 {
			c.requestSnapshot()
		}
	}
	printRule()
	for i, slot := range s.slots {
		count, err := slot.dtm.readCounter(slot.wp, slot.dtcCounter)
		if err != nil {
			return fmt.Errorf("read counter of %q: %w", slot.ev.Label, err)
		}
		s.mu.Lock()
		s.totals[i] += count
		s.mu.Unlock()
		printSlotCount(slot.ev.Label, count)
	}
	return nil
}
