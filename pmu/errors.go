package pmu

import (
	"fmt"

	"github.com/cyb70289/cmn-analyzer/flit"
)

// Every event-spec error below is raised while parsing or encoding, before
// any hardware register is touched, and is fatal to the run.

// SyntaxError reports a malformed event string.
type SyntaxError struct {
	Spec   string
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("bad event %q: %s", e.Spec, e.Reason)
}

// MissingKeyError reports an event string without one of the mandatory
// items (xp, port, channel, group, up|down).
type MissingKeyError struct {
	Key string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("missing mandatory %q in event", e.Key)
}

// UnknownFieldError reports a key that resolves to no match field of the
// event's (channel, group) schema.
type UnknownFieldError struct {
	Field   string
	Channel flit.Channel
	Group   int
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field %q: channel=%s, group=%d",
		e.Field, e.Channel, e.Group)
}

// DirectionMismatchError reports a field that is only wired for the
// opposite watchpoint direction.
type DirectionMismatchError struct {
	Field     string
	Direction flit.Direction
}

func (e *DirectionMismatchError) Error() string {
	only := flit.DirDown
	if e.Direction == flit.DirDown {
		only = flit.DirUp
	}
	return fmt.Sprintf("field %q is only supported by %s watchpoints",
		e.Field, only)
}

// InvalidValueError reports a value that does not parse, exceeds its field
// width, or names an opcode absent from the channel's table.
type InvalidValueError struct {
	Key    string
	Value  string
	Reason string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid value %s=%s: %s", e.Key, e.Value, e.Reason)
}

// DuplicateLabelError reports two events of one session deriving the same
// label, which would collide in reports and export files.
type DuplicateLabelError struct {
	Label string
}

func (e *DuplicateLabelError) Error() string {
	return fmt.Sprintf("duplicated event label %q", e.Label)
}

// ProgramError reports a watchpoint register write that did not read back
// the written value during arming. It is fatal and triggers an immediate
// reset of whatever was already programmed.
type ProgramError struct {
	Reg   uint64
	Wrote uint64
	Read  uint64
}

func (e *ProgramError) Error() string {
	return fmt.Sprintf(
		"register 0x%x readback 0x%016x after writing 0x%016x",
		e.Reg, e.Read, e.Wrote)
}
