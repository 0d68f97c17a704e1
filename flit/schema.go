package flit

import "strings"

// Restrict limits a match field to one watchpoint direction. The source and
// target node IDs share wiring, so a download watchpoint can only see srcid
// and an upload watchpoint can only see tgtid.
type Restrict uint8

const (
	AnyDir Restrict = iota
	UpOnly
	DownOnly
)

// MatchField describes one field of a watchpoint match group: where it sits
// in the 64-bit wp_val/wp_mask image and the names that resolve to it.
type MatchField struct {
	Names []string // Names[0] is canonical
	Lo    uint8    // low bit, inclusive
	Hi    uint8    // high bit, inclusive
	Only  Restrict
}

// Name returns the canonical field name.
func (f MatchField) Name() string { return f.Names[0] }

// Width returns the field width in bits.
func (f MatchField) Width() int { return int(f.Hi-f.Lo) + 1 }

// Max returns the largest value the field can hold.
func (f MatchField) Max() uint64 {
	return (1 << uint(f.Width())) - 1
}

// Mask returns the all-ones mask of the field at its position.
func (f MatchField) Mask() uint64 {
	return f.Max() << f.Lo
}

type groupKey struct {
	chn   Channel
	group int
}

// Watchpoint match group layouts. Group 0 carries the node ID and opcode
// view, group 1 the address view, group 2 the attribute view. Offsets are
// within the 64-bit match data presented to the watchpoint comparator.
var matchSchemas = map[groupKey][]MatchField{
	{ChnREQ, 0}: {
		{Names: []string{"tgtid", "tgt"}, Lo: 0, Hi: 10, Only: UpOnly},
		{Names: []string{"srcid", "src"}, Lo: 11, Hi: 21, Only: DownOnly},
		{Names: []string{"txnid", "txn"}, Lo: 22, Hi: 33},
		{Names: []string{"opcode"}, Lo: 34, Hi: 40},
		{Names: []string{"lpid"}, Lo: 41, Hi: 45},
		{Names: []string{"excl"}, Lo: 46, Hi: 46},
		{Names: []string{"expcompack"}, Lo: 47, Hi: 47},
		{Names: []string{"qos"}, Lo: 48, Hi: 51},
		{Names: []string{"tagop"}, Lo: 52, Hi: 53},
	},
	{ChnREQ, 1}: {
		{Names: []string{"addr", "address"}, Lo: 0, Hi: 51},
		{Names: []string{"ns"}, Lo: 52, Hi: 52},
		{Names: []string{"size"}, Lo: 53, Hi: 55},
		{Names: []string{"memattr"}, Lo: 56, Hi: 59},
		{Names: []string{"order"}, Lo: 60, Hi: 61},
		{Names: []string{"allowretry"}, Lo: 62, Hi: 62},
		{Names: []string{"likelyshared"}, Lo: 63, Hi: 63},
	},
	{ChnREQ, 2}: {
		{Names: []string{"opcode"}, Lo: 0, Hi: 6},
		{Names: []string{"mpam"}, Lo: 7, Hi: 17},
		{Names: []string{"pcrdtype"}, Lo: 18, Hi: 21},
		{Names: []string{"snpattr"}, Lo: 22, Hi: 22},
		{Names: []string{"pgroupid"}, Lo: 24, Hi: 31},
		{Names: []string{"stashnid"}, Lo: 32, Hi: 42, Only: UpOnly},
		{Names: []string{"stashnidvalid"}, Lo: 43, Hi: 43},
	},
	{ChnRSP, 0}: {
		{Names: []string{"tgtid", "tgt"}, Lo: 0, Hi: 10, Only: UpOnly},
		{Names: []string{"srcid", "src"}, Lo: 11, Hi: 21, Only: DownOnly},
		{Names: []string{"txnid", "txn"}, Lo: 22, Hi: 33},
		{Names: []string{"opcode"}, Lo: 34, Hi: 38},
		{Names: []string{"resp"}, Lo: 39, Hi: 41},
		{Names: []string{"resperr"}, Lo: 42, Hi: 43},
		{Names: []string{"cbusy"}, Lo: 44, Hi: 46},
		{Names: []string{"dbid"}, Lo: 47, Hi: 58},
		{Names: []string{"pcrdtype"}, Lo: 59, Hi: 62},
	},
	{ChnRSP, 1}: {
		{Names: []string{"opcode"}, Lo: 0, Hi: 4},
		{Names: []string{"fwdstate"}, Lo: 5, Hi: 7},
		{Names: []string{"datapull"}, Lo: 8, Hi: 10},
		{Names: []string{"tagop"}, Lo: 11, Hi: 12},
		{Names: []string{"tracetag"}, Lo: 13, Hi: 13},
	},
	{ChnRSP, 2}: {
		{Names: []string{"txnid", "txn"}, Lo: 0, Hi: 11},
		{Names: []string{"dbid"}, Lo: 12, Hi: 23},
		{Names: []string{"opcode"}, Lo: 24, Hi: 28},
	},
	{ChnSNP, 0}: {
		{Names: []string{"srcid", "src"}, Lo: 0, Hi: 10, Only: DownOnly},
		{Names: []string{"txnid", "txn"}, Lo: 11, Hi: 22},
		{Names: []string{"fwdnid", "fwd"}, Lo: 23, Hi: 33},
		{Names: []string{"opcode"}, Lo: 34, Hi: 38},
		{Names: []string{"fwdtxnid"}, Lo: 39, Hi: 50},
		{Names: []string{"nse"}, Lo: 51, Hi: 51},
		{Names: []string{"donottgtfwd"}, Lo: 52, Hi: 52},
	},
	{ChnSNP, 1}: {
		{Names: []string{"addr", "address"}, Lo: 0, Hi: 48},
		{Names: []string{"ns"}, Lo: 49, Hi: 49},
		{Names: []string{"opcode"}, Lo: 50, Hi: 54},
		{Names: []string{"rettosrc"}, Lo: 55, Hi: 55},
		{Names: []string{"tracetag"}, Lo: 56, Hi: 56},
	},
	{ChnSNP, 2}: {
		{Names: []string{"mpam"}, Lo: 0, Hi: 10},
		{Names: []string{"vmidext"}, Lo: 11, Hi: 18},
		{Names: []string{"opcode"}, Lo: 19, Hi: 23},
	},
	{ChnDAT, 0}: {
		{Names: []string{"tgtid", "tgt"}, Lo: 0, Hi: 10, Only: UpOnly},
		{Names: []string{"srcid", "src"}, Lo: 11, Hi: 21, Only: DownOnly},
		{Names: []string{"txnid", "txn"}, Lo: 22, Hi: 33},
		{Names: []string{"opcode"}, Lo: 34, Hi: 37},
		{Names: []string{"homenid", "home"}, Lo: 38, Hi: 48},
		{Names: []string{"resp"}, Lo: 49, Hi: 51},
		{Names: []string{"dbid"}, Lo: 52, Hi: 63},
	},
	{ChnDAT, 1}: {
		{Names: []string{"opcode"}, Lo: 0, Hi: 3},
		{Names: []string{"datasrc"}, Lo: 4, Hi: 7},
		{Names: []string{"cbusy"}, Lo: 8, Hi: 10},
		{Names: []string{"ccid"}, Lo: 11, Hi: 12},
		{Names: []string{"dataid"}, Lo: 13, Hi: 14},
		{Names: []string{"tagop"}, Lo: 15, Hi: 16},
		{Names: []string{"tag"}, Lo: 17, Hi: 32},
		{Names: []string{"poison"}, Lo: 33, Hi: 36},
	},
	{ChnDAT, 2}: {
		{Names: []string{"txnid", "txn"}, Lo: 0, Hi: 11},
		{Names: []string{"dbid"}, Lo: 12, Hi: 23},
		{Names: []string{"opcode"}, Lo: 24, Hi: 27},
		{Names: []string{"resperr"}, Lo: 28, Hi: 29},
	},
}

// NumGroups is the number of match groups each channel provides.
const NumGroups = 3

// MatchSchema returns the ordered match fields of a (channel, group) pair.
func MatchSchema(chn Channel, group int) ([]MatchField, bool) {
	fields, ok := matchSchemas[groupKey{chn, group}]
	return fields, ok
}

// LookupMatchField resolves a field name, case-insensitively, against the
// (channel, group) match schema.
func LookupMatchField(chn Channel, group int, name string) (MatchField, bool) {
	name = strings.ToLower(name)
	fields, ok := matchSchemas[groupKey{chn, group}]
	if !ok {
		return MatchField{}, false
	}
	for _, f := range fields {
		for _, alias := range f.Names {
			if alias == name {
				return f, true
			}
		}
	}
	return MatchField{}, false
}
