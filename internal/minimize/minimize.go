// Package minimize implements Hopcroft-style TDFA minimization (§4.9): a
// refinement that treats two transitions as equivalent only when both
// their code-unit set and their command list match, so minimization never
// merges states whose capture-group bookkeeping differs.
package minimize

import (
	"fmt"
	"sort"
	"strings"

	"github.com/KromDaniel/retdfa/internal/rangeset"
	"github.com/KromDaniel/retdfa/internal/tdfa"
	"github.com/KromDaniel/retdfa/internal/tnfa"
)

// Minimize collapses equivalent states, keeping the smallest id of each
// partition as canonical. When ignoreCommands is true, transitions are
// compared only by code-unit set (used for a check-only, no-capture
// matcher); otherwise both the code-unit set and the command list must
// match.
func Minimize(d *tdfa.TDFA, ignoreCommands bool) *tdfa.TDFA {
	n := len(d.States)
	if n == 0 {
		return d
	}

	partition := initialPartition(d, n)
	partition = refineToFixpoint(d, partition, n, ignoreCommands)

	return rebuild(d, partition, ignoreCommands)
}

// initialPartition separates final states (keyed by their exact final
// command list and accept-time boundary requirements, so two final states
// with different capture-group materializations never start in the same
// block) from non-final states. States whose entry is gated by different
// zero-width assertions are also kept apart — the gate is part of their
// observable behaviour.
func initialPartition(d *tdfa.TDFA, n int) []int {
	groupOf := make(map[string]int)
	partition := make([]int, n)
	nextGroup := 0

	for s := 0; s < n; s++ {
		key := boundsKey(stateBoundariesOf(d, s))
		if cmds, isFinal := d.FinalCommands[s]; isFinal {
			key += "|F:" + commandsKey(cmds) + "|" + boundsKey(d.FinalBoundaries[s])
		}
		g, ok := groupOf[key]
		if !ok {
			g = nextGroup
			nextGroup++
			groupOf[key] = g
		}
		partition[s] = g
	}
	return partition
}

func stateBoundariesOf(d *tdfa.TDFA, s int) []tnfa.BoundaryKind {
	if s < 0 || s >= len(d.StateBoundaries) {
		return nil
	}
	return d.StateBoundaries[s]
}

func boundsKey(kinds []tnfa.BoundaryKind) string {
	var sb strings.Builder
	for _, k := range kinds {
		fmt.Fprintf(&sb, "%d,", k)
	}
	return sb.String()
}

func commandsKey(cmds []tdfa.Command) string {
	var sb strings.Builder
	for _, c := range cmds {
		fmt.Fprintf(&sb, "%d:%d:%d;", c.Kind, c.Dst, c.Src)
	}
	return sb.String()
}

func setKey(s rangeset.Set) string {
	var sb strings.Builder
	for _, r := range s {
		fmt.Fprintf(&sb, "%d-%d,", r.Lo, r.Hi)
	}
	return sb.String()
}

// refineToFixpoint repeatedly splits any partition block whose member
// states disagree on the signature of their outgoing transitions relative
// to the current partition (standard Hopcroft-style splitter refinement,
// driven to a fixpoint rather than via an explicit worklist since the
// expected automaton sizes here are modest).
func refineToFixpoint(d *tdfa.TDFA, partition []int, n int, ignoreCommands bool) []int {
	for {
		sig := make([]string, n)
		for s := 0; s < n; s++ {
			sig[s] = stateSignature(d, partition, s, ignoreCommands)
		}

		newGroupOf := make(map[string]int)
		newPartition := make([]int, n)
		// Key each new group by the (old partition id, signature) pair so
		// that states from different old blocks never merge.
		next := 0
		for s := 0; s < n; s++ {
			key := fmt.Sprintf("%d|%s", partition[s], sig[s])
			g, ok := newGroupOf[key]
			if !ok {
				g = next
				next++
				newGroupOf[key] = g
			}
			newPartition[s] = g
		}

		if samePartition(partition, newPartition) {
			return partition
		}
		partition = newPartition
	}
}

func samePartition(a, b []int) bool {
	// Two partitions are the same partition of states (not necessarily
	// using the same group ids) iff every pair of states grouped together
	// in one is grouped together in the other.
	if len(a) != len(b) {
		return false
	}
	pair := make(map[[2]int]bool)
	for i := range a {
		pair[[2]int{a[i], b[i]}] = true
	}
	seenA := make(map[int]int)
	seenB := make(map[int]int)
	for i := range a {
		if prev, ok := seenA[a[i]]; ok && prev != b[i] {
			return false
		}
		seenA[a[i]] = b[i]
		if prev, ok := seenB[b[i]]; ok && prev != a[i] {
			return false
		}
		seenB[b[i]] = a[i]
	}
	return true
}

// stateSignature summarizes a state's outgoing transitions as a sorted
// list of (code-unit set, command list, target-partition) triples, plus
// whether it's final and, if so, its final command list.
func stateSignature(d *tdfa.TDFA, partition []int, s int, ignoreCommands bool) string {
	type entry struct {
		setKey string
		cmdKey string
		target int
	}
	var entries []entry
	for _, tr := range d.States[s] {
		e := entry{setKey: setKey(tr.CodeUnits), target: partition[tr.Target]}
		if !ignoreCommands {
			e.cmdKey = commandsKey(tr.Commands)
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].setKey != entries[j].setKey {
			return entries[i].setKey < entries[j].setKey
		}
		return entries[i].cmdKey < entries[j].cmdKey
	})

	var sb strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&sb, "[%s|%s|%d]", e.setKey, e.cmdKey, e.target)
	}
	if cmds, ok := d.FinalCommands[s]; ok {
		sb.WriteString("F:")
		if !ignoreCommands {
			sb.WriteString(commandsKey(cmds))
		}
	}
	return sb.String()
}

// rebuild emits a new TDFA with one state per partition block, the
// smallest original state id in each block chosen as its representative's
// identity (renumbered densely by first appearance).
func rebuild(d *tdfa.TDFA, partition []int, ignoreCommands bool) *tdfa.TDFA {
	n := len(d.States)

	canonical := make(map[int]int) // partition id -> smallest original state id
	for s := 0; s < n; s++ {
		p := partition[s]
		if cur, ok := canonical[p]; !ok || s < cur {
			canonical[p] = s
		}
	}

	// Dense renumbering by ascending canonical id (the determinizer gives
	// the initial state id 0, so it stays first).
	order := make([]int, 0, len(canonical))
	for _, s := range canonical {
		order = append(order, s)
	}
	sort.Ints(order)

	newID := make(map[int]int, len(order)) // original canonical state id -> dense id
	for i, s := range order {
		newID[s] = i
	}
	remap := func(origState int) int {
		return newID[canonical[partition[origState]]]
	}

	states := make([][]tdfa.Transition, len(order))
	finalCommands := make(map[int][]tdfa.Command)
	finalBoundaries := make(map[int][]tnfa.BoundaryKind)
	var stateBoundaries [][]tnfa.BoundaryKind
	if d.StateBoundaries != nil {
		stateBoundaries = make([][]tnfa.BoundaryKind, len(order))
	}
	for i, s := range order {
		var trs []tdfa.Transition
		for _, tr := range d.States[s] {
			cmds := tr.Commands
			if ignoreCommands {
				cmds = nil
			}
			trs = append(trs, tdfa.Transition{
				CodeUnits: tr.CodeUnits,
				Commands:  cmds,
				Target:    remap(tr.Target),
			})
		}
		states[i] = trs
		if cmds, ok := d.FinalCommands[s]; ok {
			if ignoreCommands {
				finalCommands[i] = nil
			} else {
				finalCommands[i] = cmds
			}
			finalBoundaries[i] = d.FinalBoundaries[s]
		}
		if stateBoundaries != nil {
			stateBoundaries[i] = stateBoundariesOf(d, s)
		}
	}

	return &tdfa.TDFA{
		States:            states,
		FinalCommands:     finalCommands,
		Initial:           remap(d.Initial),
		Groups:            d.Groups,
		Mode:              d.Mode,
		TrackedMarkers:    d.TrackedMarkers,
		MarkerRegister:    d.MarkerRegister,
		NumRegisters:      d.NumRegisters,
		StateBoundaries:   stateBoundaries,
		InitialBoundaries: d.InitialBoundaries,
		FinalBoundaries:   finalBoundaries,
	}
}
