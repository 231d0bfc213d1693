package tagopt

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/KromDaniel/retdfa/internal/groupmarker"
	"github.com/KromDaniel/retdfa/internal/rangeset"
	"github.com/KromDaniel/retdfa/internal/tdfa"
)

// straightLine builds a trivial 3-state TDFA (0 --a--> 1 --b--> 2, 2
// accepting) with a single canonical destination register (register 0),
// so the optimizer's dead-store logic can be exercised directly without
// going through the full frontend/tnfa/tdfa pipeline. Register 1 is used
// in some tests as a scratch temporary, to verify it is never forced live
// by the final block.
func straightLine(t1Cmds, t2Cmds []tdfa.Command, finalCmds []tdfa.Command) *tdfa.TDFA {
	groups := groupmarker.New()
	m := groupmarker.Marker{Group: 1, IsStart: true}
	groups.AddFresh(m)

	states := [][]tdfa.Transition{
		{{CodeUnits: rangeset.Single('a', 'a'), Commands: t1Cmds, Target: 1}},
		{{CodeUnits: rangeset.Single('b', 'b'), Commands: t2Cmds, Target: 2}},
		nil,
	}
	final := map[int][]tdfa.Command{2: finalCmds}

	return &tdfa.TDFA{
		States:         states,
		FinalCommands:  final,
		Initial:        0,
		Groups:         groups,
		Mode:           tdfa.Full,
		TrackedMarkers: []groupmarker.Marker{m},
		MarkerRegister: map[groupmarker.Marker]tdfa.Register{m: 0},
		NumRegisters:   1,
	}
}

func TestOptimizeDropsDeadCopyWhenDestinationNeverRead(t *testing.T) {
	// register 1 is written by a Copy on the second transition but nothing
	// downstream reads it (the final block only forces the destination
	// register 0 live), so the Copy must be eliminated as dead.
	d := straightLine(
		[]tdfa.Command{{Kind: tdfa.SetPos, Dst: 0}},
		[]tdfa.Command{{Kind: tdfa.Copy, Dst: 1, Src: 0}},
		nil,
	)
	out := Optimize(d)
	require.Empty(t, out.States[1][0].Commands)
}

func TestOptimizeKeepsLiveSetPos(t *testing.T) {
	// The only SetPos for the tracked register happens on the first
	// transition; nothing overwrites it afterward, so it must survive all
	// the way to the final block's forced-live-out requirement.
	d := straightLine(
		[]tdfa.Command{{Kind: tdfa.SetPos, Dst: 0}},
		nil,
		nil,
	)
	out := Optimize(d)
	require.NotEmpty(t, out.States[0][0].Commands)
	require.Equal(t, tdfa.SetPos, out.States[0][0].Commands[0].Kind)
}

func TestOptimizeCoalescesNonInterferingCopy(t *testing.T) {
	// Register 1 is a pure scratch value (not a destination register, so
	// never forced live at the final block) that is set on the first
	// transition and copied into the tracked register 0 on the second; the two
	// registers are never simultaneously live, so they should coalesce and
	// the Copy should collapse into a no-op.
	d := straightLine(
		[]tdfa.Command{{Kind: tdfa.SetPos, Dst: 1}},
		[]tdfa.Command{{Kind: tdfa.Copy, Dst: 0, Src: 1}},
		nil,
	)
	out := Optimize(d)
	require.Empty(t, out.States[1][0].Commands)
	require.NotEmpty(t, out.States[0][0].Commands)
	require.Equal(t, tdfa.Register(0), out.States[0][0].Commands[0].Dst)
}

func TestOptimizeDoesNotCoalesceInterferingRegisters(t *testing.T) {
	// Two distinct destination registers (S1's and E1's, both forced
	// live-out of the final block) can never be safely coalesced even
	// though one is copied from the other.
	groups := groupmarker.New()
	m0 := groupmarker.Marker{Group: 1, IsStart: true}
	m1 := groupmarker.Marker{Group: 1, IsStart: false}
	groups.AddFresh(m0)
	groups.AddFresh(m1)

	states := [][]tdfa.Transition{
		{{CodeUnits: rangeset.Single('a', 'a'), Commands: []tdfa.Command{{Kind: tdfa.SetPos, Dst: 0}}, Target: 1}},
		{{CodeUnits: rangeset.Single('b', 'b'), Commands: []tdfa.Command{{Kind: tdfa.Copy, Dst: 1, Src: 0}}, Target: 2}},
		nil,
	}
	final := map[int][]tdfa.Command{2: nil}
	d := &tdfa.TDFA{
		States:         states,
		FinalCommands:  final,
		Initial:        0,
		Groups:         groups,
		Mode:           tdfa.Full,
		TrackedMarkers: []groupmarker.Marker{m0, m1},
		MarkerRegister: map[groupmarker.Marker]tdfa.Register{m0: 0, m1: 1},
		NumRegisters:   2,
	}
	out := Optimize(d)
	require.Len(t, out.States[1][0].Commands, 1)
	require.Equal(t, tdfa.Copy, out.States[1][0].Commands[0].Kind)
}
