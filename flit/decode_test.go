package flit_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyb70289/cmn-analyzer/flit"
)

func setBits(p *flit.Packet, lo, hi uint, value uint64) {
	for bit := lo; bit <= hi; bit++ {
		if value&1 != 0 {
			p[bit/64] |= 1 << (bit % 64)
		}
		value >>= 1
	}
}

func TestDecodeREQ(t *testing.T) {
	var p flit.Packet
	setBits(&p, 4, 14, 100)           // tgtid
	setBits(&p, 15, 25, 8)            // srcid
	setBits(&p, 26, 37, 0x5A)         // txnid
	setBits(&p, 62, 68, 0x07)         // opcode ReadUnique
	setBits(&p, 110, 161, 0x80001040) // addr
	setBits(&p, 176, 191, 0x1234)     // cycle count

	d := flit.Decode(flit.ChnREQ, p)

	assert.Equal(t, flit.ChnREQ, d.Channel)
	assert.Equal(t, uint64(0x1234), d.Cycle)

	tgtid, ok := d.Value("tgtid")
	require.True(t, ok)
	assert.Equal(t, uint64(100), tgtid)

	srcid, _ := d.Value("srcid")
	assert.Equal(t, uint64(8), srcid)

	txnid, _ := d.Value("txnid")
	assert.Equal(t, uint64(0x5A), txnid)

	opcode, _ := d.Value("opcode")
	assert.Equal(t, uint64(0x07), opcode)

	addr, _ := d.Value("addr")
	assert.Equal(t, uint64(0x80001040), addr)
}

func TestDecodeDAT(t *testing.T) {
	var p flit.Packet
	setBits(&p, 49, 52, 0x4)  // opcode CompData
	setBits(&p, 65, 76, 0xAB) // dbid
	setBits(&p, 55, 57, 0x3)  // resp

	d := flit.Decode(flit.ChnDAT, p)

	opcode, _ := d.Value("opcode")
	assert.Equal(t, uint64(0x4), opcode)
	assert.Equal(t, "CompData", flit.OpcodeName(flit.ChnDAT, opcode))

	dbid, _ := d.Value("dbid")
	assert.Equal(t, uint64(0xAB), dbid)

	resp, _ := d.Value("resp")
	assert.Equal(t, uint64(0x3), resp)
}

func TestDecodeFieldsFollowSchemaOrder(t *testing.T) {
	var p flit.Packet
	d := flit.Decode(flit.ChnSNP, p)

	schema := flit.TraceSchema(flit.ChnSNP)
	require.Len(t, d.Fields, len(schema))
	for i, f := range schema {
		assert.Equal(t, f.Name, d.Fields[i].Name)
	}
}

func TestDecodeUnknownField(t *testing.T) {
	var p flit.Packet
	d := flit.Decode(flit.ChnRSP, p)

	_, ok := d.Value("addr")
	assert.False(t, ok)
}
