package tracelog

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/cyb70289/cmn-analyzer/flit"
)

// Reader streams records back from a trace log file in capture order.
// Reading does not mutate the file and can be restarted with Rewind.
type Reader struct {
	file *os.File
	r    *bufio.Reader

	// Slots holds the per-slot header, indexed by slot number.
	Slots []SlotInfo

	headerLen int64
}

// OpenReader opens a trace log and reads its header.
func OpenReader(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace log: %w", err)
	}
	r := &Reader{file: file, r: bufio.NewReader(file)}
	if err := r.readHeader(); err != nil {
		file.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

func (r *Reader) readHeader() error {
	var magic [8]byte
	if _, err := io.ReadFull(r.r, magic[:]); err != nil {
		return fmt.Errorf("short header: %w", err)
	}
	if !bytes.Equal(magic[:], logMagic[:]) {
		return fmt.Errorf("not a trace log (magic %q)", magic)
	}
	var version, nslots uint16
	if err := binary.Read(r.r, binary.LittleEndian, &version); err != nil {
		return err
	}
	if version != logVersion {
		return fmt.Errorf("unsupported trace log version %d", version)
	}
	if err := binary.Read(r.r, binary.LittleEndian, &nslots); err != nil {
		return err
	}
	r.headerLen = 8 + 2 + 2
	for i := 0; i < int(nslots); i++ {
		var labelLen uint16
		if err := binary.Read(r.r, binary.LittleEndian, &labelLen); err != nil {
			return err
		}
		label := make([]byte, labelLen)
		if _, err := io.ReadFull(r.r, label); err != nil {
			return err
		}
		chnGrp := make([]byte, 2)
		if _, err := io.ReadFull(r.r, chnGrp); err != nil {
			return err
		}
		r.Slots = append(r.Slots, SlotInfo{
			Label:   string(label),
			Channel: flit.Channel(chnGrp[0]),
			Group:   int(chnGrp[1]),
		})
		r.headerLen += 2 + int64(labelLen) + 2
	}
	return nil
}

// Next returns the next record, or io.EOF after the last one.
func (r *Reader) Next() (Record, error) {
	var rec Record
	slot, err := r.r.ReadByte()
	if err != nil {
		if err == io.EOF {
			return rec, io.EOF
		}
		return rec, fmt.Errorf("read record: %w", err)
	}
	rec.Slot = slot
	if int(slot) >= len(r.Slots) {
		return rec, fmt.Errorf("record for unknown slot %d", slot)
	}
	if err := binary.Read(r.r, binary.LittleEndian, &rec.Seq); err != nil {
		return rec, fmt.Errorf("truncated record: %w", err)
	}
	if err := binary.Read(r.r, binary.LittleEndian, &rec.Data); err != nil {
		return rec, fmt.Errorf("truncated record: %w", err)
	}
	return rec, nil
}

// Rewind repositions the reader at the first record.
func (r *Reader) Rewind() error {
	if _, err := r.file.Seek(r.headerLen, io.SeekStart); err != nil {
		return err
	}
	r.r.Reset(r.file)
	return nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}
