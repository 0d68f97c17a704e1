// Package pmu compiles textual watchpoint events into hardware register
// images, programs the per-crosspoint debug/trace monitors (DTM) and
// debug/trace controllers (DTC), and runs the counting and tracing loops.
package pmu

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cyb70289/cmn-analyzer/flit"
)

// FieldMatch is one resolved field constraint of an event.
type FieldMatch struct {
	Field flit.MatchField
	Value uint64
}

// Event is one parsed watchpoint specification.
type Event struct {
	MeshID  int
	XPID    int // crosspoint node id
	Port    int
	Dir     flit.Direction
	Channel flit.Channel
	Group   int

	HasOpcode bool
	Opcode    uint64
	opField   flit.MatchField

	Matches []FieldMatch

	// Label identifies the event in reports, trace logs, and export file
	// names. It is derived deterministically from the fields above.
	Label string
}

var (
	eventListRe = regexp.MustCompile(`^(cmn\d+/[^/]*/)(,cmn\d+/[^/]*/)*$`)
	eventRe     = regexp.MustCompile(`cmn\d+/[^/]+/`)
)

// ParseEvents parses every `-e` argument into events. One argument may hold
// several comma-joined cmnX/.../ specs. Labels must be unique across the
// whole session.
func ParseEvents(args []string) ([]*Event, error) {
	var events []*Event
	seen := make(map[string]bool)
	for _, arg := range args {
		lower := strings.ToLower(arg)
		if !eventListRe.MatchString(lower) {
			return nil, &SyntaxError{arg, "expect cmnN/key=value,.../"}
		}
		for _, one := range eventRe.FindAllString(lower, -1) {
			ev, err := ParseEvent(one)
			if err != nil {
				return nil, err
			}
			if seen[ev.Label] {
				return nil, &DuplicateLabelError{ev.Label}
			}
			seen[ev.Label] = true
			events = append(events, ev)
		}
	}
	if len(events) == 0 {
		return nil, &SyntaxError{strings.Join(args, " "), "no event found"}
	}
	return events, nil
}

// ParseEvent parses one cmnN/key=value,.../ event string.
func ParseEvent(s string) (*Event, error) {
	spec := strings.ToLower(strings.TrimSpace(s))
	if !strings.HasPrefix(spec, "cmn") {
		return nil, &SyntaxError{s, `expect leading "cmn"`}
	}
	parts := strings.Split(strings.Trim(spec, "/"), "/")
	if len(parts) != 2 {
		return nil, &SyntaxError{s, "expect cmnN/key=value,.../"}
	}
	meshID, err := strconv.Atoi(parts[0][3:])
	if err != nil || meshID < 0 {
		return nil, &SyntaxError{s, "bad mesh id"}
	}

	var (
		xpID    = -1
		port    = -1
		group   = -1
		channel flit.Channel
		hasChn  bool
		dir     flit.Direction
		hasDir  bool
		opcode  string
		hasOp   bool
		rawKVs  [][2]string
	)
	for _, item := range strings.Split(parts[1], ",") {
		if item == "up" || item == "down" {
			if hasDir {
				return nil, &SyntaxError{s, "duplicated up|down"}
			}
			hasDir = true
			if item == "down" {
				dir = flit.DirDown
			}
			continue
		}
		key, value, ok := strings.Cut(item, "=")
		if !ok {
			return nil, &SyntaxError{s, fmt.Sprintf("bad item %q", item)}
		}
		switch key {
		case "xp":
			if xpID >= 0 {
				return nil, &SyntaxError{s, "duplicated xp=n"}
			}
			xpID, err = parseInt(key, value)
		case "port":
			if port >= 0 {
				return nil, &SyntaxError{s, "duplicated port=n"}
			}
			port, err = parseInt(key, value)
		case "group":
			if group >= 0 {
				return nil, &SyntaxError{s, "duplicated group=n"}
			}
			group, err = parseInt(key, value)
		case "channel":
			if hasChn {
				return nil, &SyntaxError{s, "duplicated channel=c"}
			}
			channel, ok = flit.ParseChannel(value)
			if !ok {
				return nil, &InvalidValueError{key, value,
					"must be req|rsp|snp|dat"}
			}
			hasChn = true
		case "opcode":
			if hasOp {
				return nil, &SyntaxError{s, "duplicated opcode=v"}
			}
			opcode, hasOp = value, true
		default:
			rawKVs = append(rawKVs, [2]string{key, value})
		}
		if err != nil {
			return nil, err
		}
	}

	switch {
	case xpID < 0:
		return nil, &MissingKeyError{"xp"}
	case port < 0:
		return nil, &MissingKeyError{"port"}
	case !hasChn:
		return nil, &MissingKeyError{"channel"}
	case !hasDir:
		return nil, &MissingKeyError{"up|down"}
	case group < 0:
		return nil, &MissingKeyError{"group"}
	}
	if port >= 6 {
		return nil, &InvalidValueError{"port", strconv.Itoa(port),
			"must be 0 to 5"}
	}
	if group >= flit.NumGroups {
		return nil, &InvalidValueError{"group", strconv.Itoa(group),
			"must be 0 to 2"}
	}

	ev := &Event{
		MeshID:  meshID,
		XPID:    xpID,
		Port:    port,
		Dir:     dir,
		Channel: channel,
		Group:   group,
	}
	if hasOp {
		if err := ev.resolveOpcode(opcode); err != nil {
			return nil, err
		}
	}
	for _, kv := range rawKVs {
		if err := ev.resolveMatch(kv[0], kv[1]); err != nil {
			return nil, err
		}
	}
	ev.Label = ev.deriveLabel()
	return ev, nil
}

func parseInt(key, value string) (int, error) {
	n, err := strconv.ParseInt(value, 0, 32)
	if err != nil || n < 0 {
		return -1, &InvalidValueError{key, value,
			"must be a non-negative integer"}
	}
	return int(n), nil
}

func (ev *Event) resolveOpcode(value string) error {
	op, ok := flit.ResolveOpcode(ev.Channel, value)
	if !ok {
		return &InvalidValueError{"opcode", value,
			fmt.Sprintf("not in channel %s opcode table", ev.Channel)}
	}
	field, ok := flit.LookupMatchField(ev.Channel, ev.Group, "opcode")
	if !ok {
		return &UnknownFieldError{"opcode", ev.Channel, ev.Group}
	}
	ev.HasOpcode, ev.Opcode, ev.opField = true, op, field
	return nil
}

func (ev *Event) resolveMatch(key, value string) error {
	field, ok := flit.LookupMatchField(ev.Channel, ev.Group, key)
	if !ok {
		return &UnknownFieldError{key, ev.Channel, ev.Group}
	}
	switch {
	case field.Only == flit.UpOnly && ev.Dir != flit.DirUp,
		field.Only == flit.DownOnly && ev.Dir != flit.DirDown:
		return &DirectionMismatchError{field.Name(), ev.Dir}
	}
	for _, m := range ev.Matches {
		if m.Field.Name() == field.Name() {
			return &SyntaxError{key, "duplicated field"}
		}
	}
	v, err := strconv.ParseUint(value, 0, 64)
	if err != nil {
		return &InvalidValueError{key, value, "not an integer"}
	}
	if v > field.Max() {
		return &InvalidValueError{key, value,
			fmt.Sprintf("exceeds %d-bit field", field.Width())}
	}
	ev.Matches = append(ev.Matches, FieldMatch{field, v})
	return nil
}

// deriveLabel builds the stable report/log key of the event, e.g.
// cmn0-xp8-port1-up-grp0-req-readunique-srcid8.
func (ev *Event) deriveLabel() string {
	var b strings.Builder
	fmt.Fprintf(&b, "cmn%d-xp%d-port%d-%s-grp%d-%s",
		ev.MeshID, ev.XPID, ev.Port, ev.Dir, ev.Group, ev.Channel)
	if ev.HasOpcode {
		b.WriteByte('-')
		b.WriteString(strings.ToLower(flit.OpcodeName(ev.Channel, ev.Opcode)))
	} else {
		b.WriteString("-all")
	}
	for _, m := range ev.Matches {
		fmt.Fprintf(&b, "-%s%d", m.Field.Name(), m.Value)
	}
	return b.String()
}
