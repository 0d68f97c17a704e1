package tracelog

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/fatih/structs"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	// SQLite driver for the record database.
	_ "github.com/mattn/go-sqlite3"

	"github.com/cyb70289/cmn-analyzer/flit"
)

// SQLiteRecorder writes decoded records into a SQLite database, one table
// per slot, batching inserts.
type SQLiteRecorder struct {
	db        *sql.DB
	path      string
	tables    map[string][]any
	batchSize int
	pending   int
}

// NewSQLiteRecorder creates the database file. An empty path picks a unique
// name. The recorder flushes at process exit.
func NewSQLiteRecorder(path string) (*SQLiteRecorder, error) {
	if path == "" {
		path = "cmn_trace_" + xid.New().String()
	}
	filename := path + ".sqlite3"
	if _, err := os.Stat(filename); err == nil {
		return nil, fmt.Errorf("file %s already exists", filename)
	}
	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(os.Stderr, "Database created for records: %s\n", filename)

	r := &SQLiteRecorder{
		db:        db,
		path:      filename,
		tables:    make(map[string][]any),
		batchSize: 100000,
	}
	atexit.Register(func() { r.Flush() })
	return r, nil
}

// CreateTable creates a table whose columns are the fields of sampleEntry.
func (r *SQLiteRecorder) CreateTable(tableName string, sampleEntry any) error {
	fields := strings.Join(structs.Names(sampleEntry), ", \n\t")
	createSQL := `CREATE TABLE ` + tableName + ` (` + "\n\t" + fields + "\n);"
	if _, err := r.db.Exec(createSQL); err != nil {
		return err
	}
	r.tables[tableName] = []any{}
	return nil
}

// Insert buffers one entry for the table.
func (r *SQLiteRecorder) Insert(tableName string, entry any) error {
	buffered, ok := r.tables[tableName]
	if !ok {
		return fmt.Errorf("table %s does not exist", tableName)
	}
	r.tables[tableName] = append(buffered, entry)
	r.pending++
	if r.pending >= r.batchSize {
		return r.Flush()
	}
	return nil
}

// Flush writes all buffered entries in one transaction.
func (r *SQLiteRecorder) Flush() error {
	if r.pending == 0 {
		return nil
	}
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	for tableName, entries := range r.tables {
		if len(entries) == 0 {
			continue
		}
		n := reflect.TypeOf(entries[0]).NumField()
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
		stmt, err := tx.Prepare(
			`INSERT INTO ` + tableName + ` VALUES (` + placeholders + `)`)
		if err != nil {
			tx.Rollback()
			return err
		}
		for _, entry := range entries {
			if _, err := stmt.Exec(structs.Values(entry)...); err != nil {
				stmt.Close()
				tx.Rollback()
				return err
			}
		}
		stmt.Close()
		r.tables[tableName] = nil
	}
	r.pending = 0
	return tx.Commit()
}

// Close flushes and closes the database.
func (r *SQLiteRecorder) Close() error {
	if err := r.Flush(); err != nil {
		r.db.Close()
		return err
	}
	return r.db.Close()
}

// Per-channel row types. Opcode is stored as its mnemonic and addresses as
// hex strings, matching the CSV export.
type reqRow struct {
	Seq    uint64
	SrcID  uint64
	TgtID  uint64
	TxnID  uint64
	Opcode string
	LPID   uint64
	MPAM   uint64
	Addr   string
	Cycle  uint64
}

type rspRow struct {
	Seq    uint64
	SrcID  uint64
	TgtID  uint64
	TxnID  uint64
	Opcode string
	DBID   uint64
	CBusy  uint64
	Cycle  uint64
}

type snpRow struct {
	Seq    uint64
	SrcID  uint64
	FwdNID uint64
	TxnID  uint64
	Opcode string
	MPAM   uint64
	Addr   string
	Cycle  uint64
}

type datRow struct {
	Seq     uint64
	SrcID   uint64
	TgtID   uint64
	TxnID   uint64
	Opcode  string
	HomeNID uint64
	DBID    uint64
	Resp    uint64
	DataSrc uint64
	CBusy   uint64
	Cycle   uint64
}

func rowFor(chn flit.Channel, rec Record) any {
	d := flit.Decode(chn, rec.Data)
	get := func(name string) uint64 {
		v, _ := d.Value(name)
		return v
	}
	opcode := flit.OpcodeName(chn, get("opcode"))
	switch chn {
	case flit.ChnREQ:
		return reqRow{rec.Seq, get("srcid"), get("tgtid"), get("txnid"),
			opcode, get("lpid"), get("mpam"),
			fmt.Sprintf("%x", get("addr")), d.Cycle}
	case flit.ChnRSP:
		return rspRow{rec.Seq, get("srcid"), get("tgtid"), get("txnid"),
			opcode, get("dbid"), get("cbusy"), d.Cycle}
	case flit.ChnSNP:
		return snpRow{rec.Seq, get("srcid"), get("fwdnid"), get("txnid"),
			opcode, get("mpam"), fmt.Sprintf("%x", get("addr")), d.Cycle}
	default:
		return datRow{rec.Seq, get("srcid"), get("tgtid"), get("txnid"),
			opcode, get("homenid"), get("dbid"), get("resp"),
			get("datasrc"), get("cbusy"), d.Cycle}
	}
}

func sampleRowFor(chn flit.Channel) any {
	switch chn {
	case flit.ChnREQ:
		return reqRow{}
	case flit.ChnRSP:
		return rspRow{}
	case flit.ChnSNP:
		return snpRow{}
	default:
		return datRow{}
	}
}

// tableNameFor turns a slot label into a valid SQLite table name.
func tableNameFor(label string) string {
	return strings.NewReplacer("-", "_", ".", "_", "|", "_").Replace(label)
}

// ExportSQLite decodes a trace log into a SQLite database, one table per
// slot label.
func ExportSQLite(logPath, dbPath string) error {
	reader, err := OpenReader(logPath)
	if err != nil {
		return err
	}
	defer reader.Close()

	recorder, err := NewSQLiteRecorder(dbPath)
	if err != nil {
		return err
	}
	defer recorder.Close()

	for _, info := range reader.Slots {
		err := recorder.CreateTable(
			tableNameFor(info.Label), sampleRowFor(info.Channel))
		if err != nil {
			return err
		}
	}
	for {
		rec, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		info := reader.Slots[rec.Slot]
		err = recorder.Insert(tableNameFor(info.Label),
			rowFor(info.Channel, rec))
		if err != nil {
			return err
		}
	}
	return recorder.Flush()
}
