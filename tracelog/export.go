package tracelog

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/cyb70289/cmn-analyzer/flit"
)

// Sample selects which records to export when a slot holds more than the
// requested maximum.
type Sample string

const (
	SampleHeader Sample = "header" // starting records
	SampleTail   Sample = "tail"   // ending records
	SampleEvenly Sample = "evenly" // records at even strides
	SampleRandom Sample = "random" // random records, kept in order
)

// ParseSample validates a sampling method name.
func ParseSample(s string) (Sample, error) {
	switch Sample(s) {
	case SampleHeader, SampleTail, SampleEvenly, SampleRandom:
		return Sample(s), nil
	}
	return "", fmt.Errorf("unknown sampling method %q", s)
}

// ExportOptions control the CSV export.
type ExportOptions struct {
	OutDir     string
	MaxRecords int // per slot, 0 = unlimited
	Sample     Sample
	Verbose    bool // echo the first exported rows to stdout
}

const verboseEchoRows = 25

// ExportCSV decodes a trace log into one CSV file per slot label. The file
// starts with a header row of field names; one row per record follows in
// capture order. Two streaming passes are used so the log never has to fit
// in memory: the first counts records per slot, the second writes the
// selected ones.
func ExportCSV(logPath string, opts ExportOptions) error {
	reader, err := OpenReader(logPath)
	if err != nil {
		return err
	}
	defer reader.Close()

	counts := make([]int, len(reader.Slots))
	for {
		rec, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		counts[rec.Slot]++
	}

	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return err
	}
	exp := &csvExport{opts: opts}
	for slot, info := range reader.Slots {
		if err := exp.openSlot(slot, info, counts[slot]); err != nil {
			return err
		}
	}
	defer exp.closeAll()

	if err := reader.Rewind(); err != nil {
		return err
	}
	for {
		rec, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if err := exp.write(rec, reader.Slots[rec.Slot]); err != nil {
			return err
		}
	}
	return exp.finish()
}

type slotExport struct {
	file     *os.File
	w        *csv.Writer
	path     string
	selected map[int]bool // nil selects everything
	index    int
	written  int
}

type csvExport struct {
	opts  ExportOptions
	slots []*slotExport
}

func (e *csvExport) openSlot(slot int, info SlotInfo, count int) error {
	name := fmt.Sprintf("%s-%s.csv", info.Label, e.opts.Sample)
	path := filepath.Join(e.opts.OutDir, name)
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	se := &slotExport{
		file:     file,
		w:        csv.NewWriter(file),
		path:     path,
		selected: selectIndices(count, e.opts.MaxRecords, e.opts.Sample),
	}
	header := []string{}
	for _, f := range flit.TraceSchema(info.Channel) {
		header = append(header, f.Name)
	}
	header = append(header, "cycle")
	if err := se.w.Write(header); err != nil {
		file.Close()
		return err
	}
	e.slots = append(e.slots, se)
	return nil
}

// selectIndices returns the record indices to export, or nil for all.
func selectIndices(count, maxRecords int, sample Sample) map[int]bool {
	if maxRecords <= 0 || count <= maxRecords {
		return nil
	}
	selected := make(map[int]bool, maxRecords)
	switch sample {
	case SampleTail:
		for i := count - maxRecords; i < count; i++ {
			selected[i] = true
		}
	case SampleEvenly:
		step := count / maxRecords
		for i := 0; i < maxRecords; i++ {
			selected[i*step] = true
		}
	case SampleRandom:
		perm := rand.Perm(count)[:maxRecords]
		sort.Ints(perm)
		for _, i := range perm {
			selected[i] = true
		}
	default: // SampleHeader
		for i := 0; i < maxRecords; i++ {
			selected[i] = true
		}
	}
	return selected
}

func (e *csvExport) write(rec Record, info SlotInfo) error {
	se := e.slots[rec.Slot]
	idx := se.index
	se.index++
	if se.selected != nil && !se.selected[idx] {
		return nil
	}
	decoded := flit.Decode(info.Channel, rec.Data)
	row := make([]string, 0, len(decoded.Fields)+1)
	for _, f := range decoded.Fields {
		switch f.Name {
		case "opcode":
			row = append(row, flit.OpcodeName(info.Channel, f.Value))
		case "addr":
			row = append(row, strconv.FormatUint(f.Value, 16))
		default:
			row = append(row, strconv.FormatUint(f.Value, 10))
		}
	}
	row = append(row, strconv.FormatUint(decoded.Cycle, 10))
	se.written++
	return se.w.Write(row)
}

func (e *csvExport) finish() error {
	for _, se := range e.slots {
		se.w.Flush()
		if err := se.w.Error(); err != nil {
			return err
		}
		fmt.Printf("wrote %d records to %s\n", se.written, se.path)
	}
	if e.opts.Verbose {
		for _, se := range e.slots {
			if err := echoHead(se.path); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *csvExport) closeAll() {
	for _, se := range e.slots {
		se.file.Close()
	}
}

// echoHead prints the first rows of an exported file for quick review.
func echoHead(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	r := csv.NewReader(file)
	for i := 0; i < verboseEchoRows; i++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		fmt.Println(row)
	}
	return nil
}
