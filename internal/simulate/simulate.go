// Package simulate interprets a compiled TDFA against an input (§4.10):
// one state lookup and a handful of register updates per input byte, then
// a fixed-tag finalizer reconstructs the positions of markers the
// optimizer never gave a runtime register to.
package simulate

import (
	"fmt"

	"github.com/KromDaniel/retdfa/internal/groupmarker"
	"github.com/KromDaniel/retdfa/internal/tdfa"
	"github.com/KromDaniel/retdfa/internal/tnfa"
)

// InternalError reports a broken simulator invariant (§7 "Illegal simulator
// state"): a wrong-sized output array, a malformed TDFA, or an "unavoidable"
// fixed-distance class resolving to unset. Never produced for a well-formed
// TDFA driven through the public pkg/regex API; a caller seeing one has
// found a bug in the engine, not a failed match.
type InternalError struct {
	msg string
}

func (e *InternalError) Error() string { return "simulate: " + e.msg }

func internalErrorf(format string, args ...interface{}) error {
	return &InternalError{msg: fmt.Sprintf(format, args...)}
}

// Run scans input[start:end] against d (§4.10's pseudocode, extended with
// the GO ADAPTATION boundary-assertion gate recorded in SPEC_FULL.md). out
// must have length 2*groupCount (§3 "Match result"); classes is the output
// of groupmarker.Classes.FixedClasses for d's mode, used to reconstruct
// every marker not given a runtime register. On a successful match, out is
// filled in and Run returns true; on no match, out is reset to all -1 and
// Run returns false; a non-nil error always indicates an internal bug.
func Run(d *tdfa.TDFA, classes []groupmarker.ClassInfo, groupCount int, input []byte, start, end int, out []int) (bool, error) {
	if len(out) != 2*groupCount {
		return false, internalErrorf("output group array has length %d, want %d", len(out), 2*groupCount)
	}
	for i := range out {
		out[i] = -1
	}
	if start < 0 || end > len(input) || start > end {
		return false, internalErrorf("invalid region [%d,%d) over input of length %d", start, end, len(input))
	}

	regs := make([]int, d.NumRegisters)
	for i := range regs {
		regs[i] = -1
	}

	if !boundariesHold(d.InitialBoundaries, input, start) {
		return false, nil
	}

	state := d.Initial
	pos := start
	for pos < end {
		tr, ok := findTransition(d.States[state], input[pos])
		if ok && !boundariesHold(boundariesAt(d, tr.Target), input, pos+1) {
			// Entering the target would violate its zero-width
			// requirements; treat as a missing transition.
			ok = false
		}
		if !ok {
			if d.Mode == tdfa.Prefix {
				if _, final := d.FinalCommands[state]; final {
					break
				}
			}
			return false, nil
		}
		execute(regs, tr.Commands, pos)
		state = tr.Target
		pos++
	}

	cmds, final := d.FinalCommands[state]
	if !final || !boundariesHold(d.FinalBoundaries[state], input, pos) {
		return false, nil
	}
	execute(regs, cmds, pos)

	if err := materialize(out, classes, groupCount, regs, d.MarkerRegister, start, pos); err != nil {
		return false, err
	}
	return true, nil
}

func execute(regs []int, cmds []tdfa.Command, pos int) {
	for _, c := range cmds {
		switch c.Kind {
		case tdfa.SetPos:
			regs[c.Dst] = pos
		case tdfa.Copy:
			regs[c.Dst] = regs[c.Src]
		}
	}
}

func findTransition(trans []tdfa.Transition, b byte) (tdfa.Transition, bool) {
	r := rune(b)
	for _, tr := range trans {
		if tr.CodeUnits.Contains(r) {
			return tr, true
		}
	}
	return tdfa.Transition{}, false
}

func boundariesAt(d *tdfa.TDFA, state int) []tnfa.BoundaryKind {
	if state < 0 || state >= len(d.StateBoundaries) {
		return nil
	}
	return d.StateBoundaries[state]
}

func boundariesHold(kinds []tnfa.BoundaryKind, input []byte, pos int) bool {
	for _, k := range kinds {
		if !boundaryHolds(k, input, pos) {
			return false
		}
	}
	return true
}

// boundaryHolds evaluates one zero-width assertion against the whole input
// buffer at byte offset pos (text anchors bind to the true start/end of
// the buffer, not the caller's [start,end) search region, matching
// conventional \A/\z semantics).
func boundaryHolds(kind tnfa.BoundaryKind, input []byte, pos int) bool {
	switch kind {
	case tnfa.BeginText:
		return pos == 0
	case tnfa.EndText:
		return pos == len(input)
	case tnfa.BeginLine:
		return pos == 0 || input[pos-1] == '\n'
	case tnfa.EndLine:
		return pos == len(input) || input[pos] == '\n'
	case tnfa.WordBoundary, tnfa.NoWordBoundary:
		before := pos > 0 && isWordByte(input[pos-1])
		after := pos < len(input) && isWordByte(input[pos])
		atBoundary := before != after
		if kind == tnfa.WordBoundary {
			return atBoundary
		}
		return !atBoundary
	default:
		return true
	}
}

func isWordByte(b byte) bool {
	return b == '_' ||
		(b >= '0' && b <= '9') ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z')
}

// materialize reconstructs every group's [start,end) offsets (§4.10 "After
// accept, materialize output"): tracked markers are read straight out of
// their register; untracked markers are reconstructed from their fixed-
// distance class's representative (or anchor) plus the class's recorded
// offset.
func materialize(out []int, classes []groupmarker.ClassInfo, groupCount int, regs []int, markerReg map[groupmarker.Marker]tdfa.Register, start, end int) error {
	for _, ci := range classes {
		slot, ok := slotOf(ci.Marker, groupCount)
		if !ok {
			continue
		}
		switch {
		case ci.AnchoredStart:
			out[slot] = start + ci.Distance
		case ci.AnchoredEnd:
			out[slot] = end + ci.Distance
		default:
			reg, ok := markerReg[ci.Representative]
			if !ok {
				return internalErrorf("no register for representative %v of class containing %v", ci.Representative, ci.Marker)
			}
			repPos := regs[reg]
			if repPos == -1 {
				if ci.Marker.Group == 0 {
					return internalErrorf("unavoidable class for %v resolved to an unset position", ci.Marker)
				}
				out[slot] = -1
				continue
			}
			out[slot] = repPos + ci.Distance
		}
	}
	return nil
}

func slotOf(m groupmarker.Marker, groupCount int) (int, bool) {
	if m.Group < 0 || m.Group >= groupCount {
		return 0, false
	}
	if m.IsStart {
		return 2 * m.Group, true
	}
	return 2*m.Group + 1, true
}
