// Package tagopt implements the TDFA tag-command optimizer (§4.8): a
// basic-block liveness analysis over SetPos/Copy commands that removes
// dead stores and coalesces registers that never interfere, iterated to
// a fixpoint.
package tagopt

import (
	"github.com/KromDaniel/retdfa/internal/tdfa"
)

// blockID names one basic block: either a state (empty) or one of its
// outgoing transitions/final-command lists (non-empty, one command list).
type blockID struct {
	state int
	// transIdx selects which outgoing transition of `state`; -2 means the
	// final-commands block of `state` instead of a transition, and -1 (used
	// only in successor lists) names the state node itself.
	transIdx int
}

type block struct {
	id       blockID
	commands []tdfa.Command
	succ     []blockID
	gen      map[tdfa.Register]bool // used before any def in this block
	kill     map[tdfa.Register]bool // defined somewhere in this block
	liveIn   map[tdfa.Register]bool
	liveOut  map[tdfa.Register]bool
	// forcedLiveOut holds registers that must be treated as live-out
	// regardless of successors, e.g. every tracked register for a final
	// block (§4.8: "final blocks mark all tracked markers as live-out").
	forcedLiveOut map[tdfa.Register]bool
}

// Optimize runs dead-store elimination and register coalescing to a
// fixpoint and returns a new TDFA with optimized command lists. The input
// machine is not mutated.
func Optimize(d *tdfa.TDFA) *tdfa.TDFA {
	out := cloneTDFA(d)
	for {
		blocks := buildCFG(out)
		computeLiveness(blocks)
		changedDead := eliminateDeadStores(out, blocks)
		changedCoalesce := coalesce(out, blocks)
		if !changedDead && !changedCoalesce {
			break
		}
	}
	return out
}

func cloneTDFA(d *tdfa.TDFA) *tdfa.TDFA {
	states := make([][]tdfa.Transition, len(d.States))
	for i, trs := range d.States {
		cp := make([]tdfa.Transition, len(trs))
		for j, tr := range trs {
			cmds := make([]tdfa.Command, len(tr.Commands))
			copy(cmds, tr.Commands)
			cp[j] = tdfa.Transition{CodeUnits: tr.CodeUnits, Commands: cmds, Target: tr.Target}
		}
		states[i] = cp
	}
	final := make(map[int][]tdfa.Command, len(d.FinalCommands))
	for k, v := range d.FinalCommands {
		cp := make([]tdfa.Command, len(v))
		copy(cp, v)
		final[k] = cp
	}

	return &tdfa.TDFA{
		States:            states,
		FinalCommands:     final,
		Initial:           d.Initial,
		Groups:            d.Groups,
		Mode:              d.Mode,
		TrackedMarkers:    d.TrackedMarkers,
		MarkerRegister:    d.MarkerRegister,
		NumRegisters:      d.NumRegisters,
		StateBoundaries:   d.StateBoundaries,
		InitialBoundaries: d.InitialBoundaries,
		FinalBoundaries:   d.FinalBoundaries,
	}
}

// buildCFG constructs one block per transition and one per final-command
// list. Final blocks force every canonical destination register live-out
// (§4.8 "final blocks mark all tracked markers as live-out"): those are
// the registers the accept-time materialization reads.
func buildCFG(d *tdfa.TDFA) map[blockID]*block {
	blocks := make(map[blockID]*block)

	mk := func(id blockID, commands []tdfa.Command, succ []blockID, forced map[tdfa.Register]bool) {
		b := &block{id: id, commands: commands, succ: succ, gen: map[tdfa.Register]bool{}, kill: map[tdfa.Register]bool{}, forcedLiveOut: forced}
		for _, c := range commands {
			if c.Kind == tdfa.Copy && !b.kill[c.Src] {
				b.gen[c.Src] = true
			}
			b.kill[c.Dst] = true
		}
		blocks[id] = b
	}

	dests := make(map[tdfa.Register]bool, len(d.MarkerRegister))
	for _, r := range d.MarkerRegister {
		dests[r] = true
	}

	for s, trs := range d.States {
		for i, tr := range trs {
			succ := []blockID{{state: tr.Target, transIdx: -1}}
			mk(blockID{state: s, transIdx: i}, tr.Commands, succ, nil)
		}
		if cmds, ok := d.FinalCommands[s]; ok {
			mk(blockID{state: s, transIdx: -2}, cmds, nil, dests)
		}
	}
	return blocks
}

// computeLiveness runs the standard backwards fixed-point over the
// transition/final blocks (state nodes themselves are empty pass-through
// points and do not need their own liveIn/liveOut; a block's successors
// are resolved to the set of transition/final blocks leaving its target
// state).
func computeLiveness(blocks map[blockID]*block) {
	// Blocks leaving a given state, so a transition block's successor set
	// resolves through the (empty) state node to every block hanging off
	// that state.
	outOf := make(map[int][]blockID)
	for id := range blocks {
		if id.state >= 0 {
			outOf[id.state] = append(outOf[id.state], id)
		}
	}

	for _, b := range blocks {
		b.liveIn = map[tdfa.Register]bool{}
		b.liveOut = map[tdfa.Register]bool{}
	}

	changed := true
	for changed {
		changed = false
		for _, b := range blocks {
			newOut := map[tdfa.Register]bool{}
			for r := range b.forcedLiveOut {
				newOut[r] = true
			}
			for _, s := range b.succ {
				for _, sb := range outOf[s.state] {
					for r := range blocks[sb].liveIn {
						newOut[r] = true
					}
				}
			}
			newIn := map[tdfa.Register]bool{}
			for r := range b.gen {
				newIn[r] = true
			}
			for r := range newOut {
				if !b.kill[r] {
					newIn[r] = true
				}
			}
			if !setEqual(newIn, b.liveIn) || !setEqual(newOut, b.liveOut) {
				b.liveIn = newIn
				b.liveOut = newOut
				changed = true
			}
		}
	}
}

func setEqual(a, b map[tdfa.Register]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for r := range a {
		if !b[r] {
			return false
		}
	}
	return true
}

// eliminateDeadStores drops any command whose destination register is not
// live-out of its own block, reporting whether anything changed.
func eliminateDeadStores(d *tdfa.TDFA, blocks map[blockID]*block) bool {
	changed := false
	rewrite := func(id blockID, cmds []tdfa.Command) []tdfa.Command {
		b := blocks[id]
		var out []tdfa.Command
		for _, c := range cmds {
			if b.liveOut[c.Dst] {
				out = append(out, c)
			} else {
				changed = true
			}
		}
		return out
	}

	for s, trs := range d.States {
		for i := range trs {
			id := blockID{state: s, transIdx: i}
			d.States[s][i].Commands = rewrite(id, trs[i].Commands)
		}
		if cmds, ok := d.FinalCommands[s]; ok {
			d.FinalCommands[s] = rewrite(blockID{state: s, transIdx: -2}, cmds)
		}
	}
	return changed
}

// coalesce merges Copy(a <- b) into a single register wherever a and b do
// not interfere (are never simultaneously live-in or live-out of the same
// block), rewriting every command through the resulting canonical map and
// dropping the now-trivial self-copies.
func coalesce(d *tdfa.TDFA, blocks map[blockID]*block) bool {
	interferes := make(map[[2]tdfa.Register]bool)
	mark := func(set map[tdfa.Register]bool) {
		var regs []tdfa.Register
		for r := range set {
			regs = append(regs, r)
		}
		for i := 0; i < len(regs); i++ {
			for j := i + 1; j < len(regs); j++ {
				a, b := regs[i], regs[j]
				if a > b {
					a, b = b, a
				}
				interferes[[2]tdfa.Register{a, b}] = true
			}
		}
	}
	for _, b := range blocks {
		mark(b.liveIn)
		mark(b.liveOut)
	}

	canon := map[tdfa.Register]tdfa.Register{}
	find := func(r tdfa.Register) tdfa.Register {
		for {
			p, ok := canon[r]
			if !ok {
				return r
			}
			r = p
		}
	}
	does := func(a, b tdfa.Register) bool {
		if a == b {
			return false
		}
		if a > b {
			a, b = b, a
		}
		return interferes[[2]tdfa.Register{a, b}]
	}

	dests := make(map[tdfa.Register]bool, len(d.MarkerRegister))
	for _, r := range d.MarkerRegister {
		dests[r] = true
	}

	changed := false
	walk := func(cmds []tdfa.Command) {
		for _, c := range cmds {
			if c.Kind != tdfa.Copy {
				continue
			}
			a, b := find(c.Dst), find(c.Src)
			if a == b {
				continue
			}
			// A canonical destination register is what the accept-time
			// materialization reads; it keeps its identity.
			if dests[b] {
				continue
			}
			if !does(a, b) {
				canon[b] = a
				changed = true
			}
		}
	}
	for _, trs := range d.States {
		for _, tr := range trs {
			walk(tr.Commands)
		}
	}
	for _, cmds := range d.FinalCommands {
		walk(cmds)
	}
	if !changed {
		return false
	}

	rewrite := func(cmds []tdfa.Command) []tdfa.Command {
		var out []tdfa.Command
		for _, c := range cmds {
			c.Dst = find(c.Dst)
			if c.Kind == tdfa.Copy {
				c.Src = find(c.Src)
				if c.Src == c.Dst {
					continue // drop self-copy
				}
			}
			out = append(out, c)
		}
		return out
	}
	for s, trs := range d.States {
		for i := range trs {
			d.States[s][i].Commands = rewrite(trs[i].Commands)
		}
	}
	for s, cmds := range d.FinalCommands {
		d.FinalCommands[s] = rewrite(cmds)
	}
	return true
}
