package flit

// TraceField locates one field within a captured 192-bit trace packet.
type TraceField struct {
	Name string
	Lo   uint16 // low bit, inclusive
	Hi   uint16 // high bit, inclusive
}

// cycleLo/cycleHi locate the DTC cycle count the hardware appends to every
// trace packet when wp_cc_en is set.
const (
	cycleLo = 128 + 48
	cycleHi = 128 + 63
)

// Captured packets always carry the full flit, whichever match group armed
// the watchpoint, so trace layouts are keyed by channel alone. MPAM is
// assumed enabled (shifts addr and later REQ/SNP fields).
var traceSchemas = map[Channel][]TraceField{
	ChnREQ: {
		{"srcid", 15, 25},
		{"tgtid", 4, 14},
		{"txnid", 26, 37},
		{"opcode", 62, 68},
		{"lpid", 86, 90},
		{"mpam", 99, 109},
		{"addr", 110, 161},
	},
	ChnRSP: {
		{"srcid", 15, 25},
		{"tgtid", 4, 14},
		{"txnid", 26, 37},
		{"opcode", 38, 42},
		{"dbid", 54, 65},
		{"cbusy", 51, 53},
	},
	ChnSNP: {
		{"srcid", 4, 14},
		{"fwdnid", 27, 37},
		{"txnid", 15, 26},
		{"opcode", 50, 54},
		{"mpam", 59, 69},
		{"addr", 70, 118},
	},
	ChnDAT: {
		{"srcid", 15, 25},
		{"tgtid", 4, 14},
		{"txnid", 26, 37},
		{"opcode", 49, 52},
		{"homenid", 38, 48},
		{"dbid", 65, 76},
		{"resp", 55, 57},
		{"datasrc", 58, 61},
		{"cbusy", 62, 64},
	},
}

// TraceSchema returns the ordered trace packet fields of a channel.
func TraceSchema(chn Channel) []TraceField {
	return traceSchemas[chn]
}

// FieldValue is one decoded field of a trace packet.
type FieldValue struct {
	Name  string
	Value uint64
}

// Decoded is one trace packet broken into named fields, in schema order,
// plus the cycle count the packet was captured at.
type Decoded struct {
	Channel Channel
	Fields  []FieldValue
	Cycle   uint64
}

// Value returns the value of a named field, or false if the channel's schema
// has no such field.
func (d Decoded) Value(name string) (uint64, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return 0, false
}

// Decode extracts every schema field of the packet's channel. The match
// group the packet was captured under does not change the packet layout;
// it is kept by the caller for labeling only.
func Decode(chn Channel, p Packet) Decoded {
	schema := traceSchemas[chn]
	d := Decoded{
		Channel: chn,
		Fields:  make([]FieldValue, 0, len(schema)),
		Cycle:   p.Bits(cycleLo, cycleHi),
	}
	for _, f := range schema {
		d.Fields = append(d.Fields, FieldValue{
			Name:  f.Name,
			Value: p.Bits(uint(f.Lo), uint(f.Hi)),
		})
	}
	return d
}
