package tracelog_test

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyb70289/cmn-analyzer/tracelog"
)

func TestSQLiteRecorderRefusesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records")

	r, err := tracelog.NewSQLiteRecorder(path)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	_, err = tracelog.NewSQLiteRecorder(path)
	assert.ErrorContains(t, err, "already exists")
}

func TestExportSQLite(t *testing.T) {
	records := []tracelog.Record{
		{Slot: 0, Seq: 0, Data: reqPacket(1, 0x07)},
		{Slot: 0, Seq: 1, Data: reqPacket(2, 0x07)},
		{Slot: 1, Seq: 2, Data: reqPacket(3, 0x4)},
	}
	logPath := writeTestLog(t, records)
	dbPath := filepath.Join(t.TempDir(), "records")

	require.NoError(t, tracelog.ExportSQLite(logPath, dbPath))

	db, err := sql.Open("sqlite3", dbPath+".sqlite3")
	require.NoError(t, err)
	defer db.Close()

	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM " +
		"cmn0_xp8_port1_up_grp0_req_all").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	var txnid uint64
	var opcode string
	err = db.QueryRow("SELECT TxnID, Opcode FROM " +
		"cmn0_xp8_port1_up_grp0_req_all WHERE Seq = 1").
		Scan(&txnid, &opcode)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), txnid)
	assert.Equal(t, "ReadUnique", opcode)

	err = db.QueryRow("SELECT COUNT(*) FROM " +
		"cmn0_xp8_port1_down_grp0_dat_all").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
