package tracelog

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
)

// Writer appends captured records to a trace log file. The header is
// written at creation; records follow in capture order.
type Writer struct {
	file *os.File
	w    *bufio.Writer
}

// NewWriter creates (or truncates) the log file and writes the header.
func NewWriter(path string, slots []SlotInfo) (*Writer, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create trace log: %w", err)
	}
	w := &Writer{file: file, w: bufio.NewWriter(file)}
	if err := w.writeHeader(slots); err != nil {
		file.Close()
		return nil, err
	}
	return w, nil
}

func (w *Writer) writeHeader(slots []SlotInfo) error {
	if _, err := w.w.Write(logMagic[:]); err != nil {
		return err
	}
	if err := binary.Write(w.w, binary.LittleEndian,
		uint16(logVersion)); err != nil {
		return err
	}
	if err := binary.Write(w.w, binary.LittleEndian,
		uint16(len(slots))); err != nil {
		return err
	}
	for _, s := range slots {
		if err := binary.Write(w.w, binary.LittleEndian,
			uint16(len(s.Label))); err != nil {
			return err
		}
		if _, err := w.w.WriteString(s.Label); err != nil {
			return err
		}
		if err := w.w.WriteByte(byte(s.Channel)); err != nil {
			return err
		}
		if err := w.w.WriteByte(byte(s.Group)); err != nil {
			return err
		}
	}
	return nil
}

// Append writes one record.
func (w *Writer) Append(r Record) error {
	if err := w.w.WriteByte(r.Slot); err != nil {
		return err
	}
	if err := binary.Write(w.w, binary.LittleEndian, r.Seq); err != nil {
		return err
	}
	return binary.Write(w.w, binary.LittleEndian, r.Data)
}

// Close flushes and closes the file.
func (w *Writer) Close() error {
	if err := w.w.Flush(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}
