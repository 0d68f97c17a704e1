package flit_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyb70289/cmn-analyzer/flit"
)

func TestResolveOpcodeMnemonic(t *testing.T) {
	value, ok := flit.ResolveOpcode(flit.ChnREQ, "ReadUnique")
	require.True(t, ok)
	assert.Equal(t, uint64(0x07), value)

	// case-insensitive
	value, ok = flit.ResolveOpcode(flit.ChnREQ, "readunique")
	require.True(t, ok)
	assert.Equal(t, uint64(0x07), value)

	value, ok = flit.ResolveOpcode(flit.ChnDAT, "compdata")
	require.True(t, ok)
	assert.Equal(t, uint64(0x4), value)
}

func TestResolveOpcodeNumeric(t *testing.T) {
	value, ok := flit.ResolveOpcode(flit.ChnREQ, "7")
	require.True(t, ok)
	assert.Equal(t, uint64(0x07), value)

	value, ok = flit.ResolveOpcode(flit.ChnREQ, "0x07")
	require.True(t, ok)
	assert.Equal(t, uint64(0x07), value)

	// numeric literals must still exist in the channel table
	_, ok = flit.ResolveOpcode(flit.ChnREQ, "0x7f")
	assert.False(t, ok)
}

func TestResolveOpcodeWrongChannel(t *testing.T) {
	_, ok := flit.ResolveOpcode(flit.ChnRSP, "ReadUnique")
	assert.False(t, ok)
}

func TestOpcodeName(t *testing.T) {
	assert.Equal(t, "ReadUnique", flit.OpcodeName(flit.ChnREQ, 0x07))
	assert.Equal(t, "CompData", flit.OpcodeName(flit.ChnDAT, 0x4))
	assert.Equal(t, "0x3f", flit.OpcodeName(flit.ChnDAT, 0x3f))
}
