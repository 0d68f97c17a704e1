package pmu_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyb70289/cmn-analyzer/pmu"
)

func mustParse(t *testing.T, spec string) *pmu.Event {
	t.Helper()
	ev, err := pmu.ParseEvent(spec)
	require.NoError(t, err)
	return ev
}

func TestEncodeMatchImage(t *testing.T) {
	ev := mustParse(t,
		"cmn0/xp=8,port=1,down,group=0,channel=req,opcode=ReadUnique,srcid=8/")

	images := pmu.EncodeAll([]*pmu.Event{ev}, pmu.ModeStat, false)
	require.Len(t, images, 1)
	img := images[0]

	// srcid at bits 11..21, opcode at bits 34..40 of the REQ id group
	wantValue := uint64(8)<<11 | uint64(0x07)<<34
	wantMatched := uint64(0x7FF)<<11 | uint64(0x7F)<<34
	assert.Equal(t, wantValue, img.Value)
	assert.Equal(t, ^wantMatched, img.Mask)
	assert.False(t, img.TagEnable)
}

func TestEncodeWildcardMatchesEverything(t *testing.T) {
	ev := mustParse(t, "cmn0/xp=8,port=1,up,group=0,channel=req/")

	img := pmu.EncodeAll([]*pmu.Event{ev}, pmu.ModeStat, false)[0]

	assert.Equal(t, uint64(0), img.Value)
	// every bit ignored
	assert.Equal(t, ^uint64(0), img.Mask)
}

func TestEncodeConfig(t *testing.T) {
	ev := mustParse(t, "cmn0/xp=8,port=3,up,group=2,channel=dat/")

	img := pmu.EncodeAll([]*pmu.Event{ev}, pmu.ModeStat, false)[0]

	assert.Equal(t, uint64(1), img.Config.Bit(0), "wp_dev_sel")
	assert.Equal(t, uint64(3), img.Config.Bits(1, 3), "wp_chn_sel")
	assert.Equal(t, uint64(2), img.Config.Bits(4, 5), "wp_grp")
	assert.Equal(t, uint64(1), img.Config.Bits(17, 18), "wp_dev_sel2")
	// stat mode generates no trace packets
	assert.Equal(t, uint64(0), img.Config.Bit(10), "wp_pkt_gen")
}

func TestEncodeTraceConfig(t *testing.T) {
	ev := mustParse(t, "cmn0/xp=8,port=0,up,group=0,channel=req/")

	img := pmu.EncodeAll([]*pmu.Event{ev}, pmu.ModeTrace, false)[0]

	assert.Equal(t, uint64(1), img.Config.Bit(10), "wp_pkt_gen")
	assert.Equal(t, uint64(0b100), img.Config.Bits(11, 13), "wp_pkt_type")
	assert.Equal(t, uint64(1), img.Config.Bit(14), "wp_cc_en")
}

func TestEncodeTraceTag(t *testing.T) {
	trigger := mustParse(t,
		"cmn0/xp=8,port=1,up,group=0,channel=req,opcode=ReadUnique/")
	follower := mustParse(t,
		"cmn0/xp=0,port=0,down,group=0,channel=dat,opcode=CompData/")

	images := pmu.EncodeAll(
		[]*pmu.Event{trigger, follower}, pmu.ModeTrace, true)
	require.Len(t, images, 2)

	// the trigger keeps its match constraints and starts tagging
	assert.True(t, images[0].TagEnable)
	assert.NotZero(t, images[0].Value)
	assert.NotEqual(t, uint64(0), ^images[0].Mask)

	// followers capture by the propagated tag, not by matching
	assert.False(t, images[1].TagEnable)
	assert.Equal(t, uint64(0), images[1].Value)
	assert.Equal(t, uint64(0), images[1].Mask)
}
