// Package tdfa determinizes a TNFA into a Tagged DFA (§4.7): a powerset
// construction over TNFA states enriched with registers and lookahead
// annotations, so that capture-group positions are threaded
// deterministically alongside the scan.
//
// Each DFA state is an ordered list of rows. A row pairs one TNFA boundary
// state with a map from tracked markers to the registers currently holding
// their positions, plus the marker/boundary events crossed on the ε-path
// that produced the row. Marker assignment is deferred by one step: a
// marker crossed after consuming input[pos] belongs at offset pos+1, which
// is exactly the scan position when the *next* transition's commands
// execute, so the SetPos for it is emitted on the successor state's
// outgoing transitions rather than on the transition that crossed it.
package tdfa

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/KromDaniel/retdfa/internal/closure"
	"github.com/KromDaniel/retdfa/internal/groupmarker"
	"github.com/KromDaniel/retdfa/internal/rangeset"
	"github.com/KromDaniel/retdfa/internal/tnfa"
)

// Register names a runtime slot holding one absolute input offset, -1
// meaning "unset". Registers 0..len(TrackedMarkers)-1 are the canonical
// destinations the simulator reads at accept time; higher registers are
// temporaries allocated during determinization.
type Register int

// CmdKind discriminates a Command's active field.
type CmdKind int

const (
	SetPos CmdKind = iota
	Copy
)

// Command is one tag command (§3): either SetPos(Dst) (assign the
// current scan offset to Dst) or Copy(Dst <- Src).
type Command struct {
	Kind CmdKind
	Dst  Register
	Src  Register
}

// Transition is one outgoing edge of a TDFA state.
type Transition struct {
	CodeUnits rangeset.Set
	Commands  []Command
	Target    int
}

// Mode selects FULL (must consume the whole input region) or PREFIX
// (accept at the last successful final state, used for find/looking-at).
type Mode int

const (
	Full Mode = iota
	Prefix
)

// TDFA is the determinized, not-yet-optimized machine (§3). A state id is
// accepting iff it has an entry in FinalCommands; in PREFIX mode that
// includes pass-through states reached after an accept already happened
// (their command list may be empty — the destination registers were
// updated on the way through).
type TDFA struct {
	States         [][]Transition
	FinalCommands  map[int][]Command
	Initial        int
	Groups         *groupmarker.Classes
	Mode           Mode
	TrackedMarkers []groupmarker.Marker
	MarkerRegister map[groupmarker.Marker]Register
	NumRegisters   int
	// StateBoundaries[s] lists the zero-width assertions that must hold at
	// the byte offset where state s is entered, taken from the state's
	// highest-priority row (the GO ADAPTATION recorded in SPEC_FULL.md:
	// boundary requirements are deferred from compile time to simulate
	// time; rows of one state disagreeing on a boundary requirement are an
	// accepted approximation, see DESIGN.md).
	StateBoundaries [][]tnfa.BoundaryKind
	// InitialBoundaries must hold at startOffset, before the scan loop.
	InitialBoundaries []tnfa.BoundaryKind
	// FinalBoundaries[s] lists the assertions that must hold at the accept
	// offset for s's final commands to apply.
	FinalBoundaries map[int][]tnfa.BoundaryKind
}

// row is one constituent of a DFA state: a TNFA boundary state plus the
// registers holding each tracked marker's position along the path that
// reached it, and the marker/boundary events of that path (the markers
// are this row's lookahead: they still need their positions assigned on
// the next step).
type row struct {
	nfaState   tnfa.StateID
	regs       map[groupmarker.Marker]Register
	markers    []groupmarker.Marker
	boundaries []tnfa.BoundaryKind
}

type dfaState struct {
	rows          []row
	prefixMatched bool
}

// Determinize runs the powerset-with-registers construction over t.
func Determinize(t *tnfa.TNFA, mode Mode) (*TDFA, error) {
	classes, err := t.Groups.FixedClasses(mode == Full)
	if err != nil {
		return nil, errors.Wrap(err, "tdfa: fixed-distance class analysis")
	}

	tracked := trackedMarkers(classes)
	dest := make(map[groupmarker.Marker]Register, len(tracked))
	for i, m := range tracked {
		dest[m] = Register(i)
	}

	d := &determinizer{
		t:            t,
		mode:         mode,
		tracked:      tracked,
		dest:         dest,
		nextReg:      Register(len(tracked)),
		buckets:      make(map[string][]int),
		closureCache: make(map[tnfa.StateID]closureResult),
	}
	return d.run()
}

// trackedMarkers selects, deterministically (sorted by (Group, IsStart)),
// every class representative whose class is neither anchored to start nor
// to end — the only markers that need runtime tracking at all.
func trackedMarkers(classes []groupmarker.ClassInfo) []groupmarker.Marker {
	var out []groupmarker.Marker
	for _, ci := range classes {
		if ci.AnchoredStart || ci.AnchoredEnd {
			continue
		}
		if ci.Marker == ci.Representative {
			out = append(out, ci.Marker)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Group != out[j].Group {
			return out[i].Group < out[j].Group
		}
		return out[i].IsStart && !out[j].IsStart
	})
	return out
}

type closureResult struct {
	order []tnfa.StateID
	paths map[tnfa.StateID]closure.Path
}

type determinizer struct {
	t       *tnfa.TNFA
	mode    Mode
	tracked []groupmarker.Marker
	dest    map[groupmarker.Marker]Register
	nextReg Register
	// buckets groups existing state ids by structural key; candidates in a
	// bucket are checked for register isomorphism before a new state is
	// interned.
	buckets      map[string][]int
	states       []dfaState
	queue        []int
	closureCache map[tnfa.StateID]closureResult
}

func (d *determinizer) closureOf(s tnfa.StateID) closureResult {
	if c, ok := d.closureCache[s]; ok {
		return c
	}
	order, paths := closure.Closure(d.t, s)
	c := closureResult{order: order, paths: paths}
	d.closureCache[s] = c
	return c
}

func (d *determinizer) newTemp() Register {
	r := d.nextReg
	d.nextReg++
	return r
}

// stateKey is the structural identity of a DFA state (§3 "TDFA state id"):
// the ordered TNFA state list, the prefix-matched flag, and each row's
// pending marker/boundary events. Register layouts are deliberately left
// out — two states equal under this key are candidates for the
// isomorphism check in tryMerge.
func stateKey(rows []row, prefixMatched bool) string {
	var sb strings.Builder
	if prefixMatched {
		sb.WriteString("p|")
	}
	for _, r := range rows {
		fmt.Fprintf(&sb, "%d", r.nfaState)
		for _, m := range r.markers {
			fmt.Fprintf(&sb, ",%v", m)
		}
		for _, bk := range r.boundaries {
			fmt.Fprintf(&sb, ",b%d", bk)
		}
		sb.WriteByte(';')
	}
	return sb.String()
}

// eachTrackedReg visits row r's register holdings in the global tracked-
// marker order, so callers stay deterministic without sorting map keys.
func (d *determinizer) eachTrackedReg(r row, f func(m groupmarker.Marker, reg Register, ok bool)) {
	for _, m := range d.tracked {
		reg, ok := r.regs[m]
		f(m, reg, ok)
	}
}

// tryMerge checks whether fresh's rows are isomorphic to those of existing
// state id under a register bijection φ (§4.7 "Merging"), and if so
// returns the Copy commands realizing φ (fresh register -> existing
// register), sequenced so no source is clobbered before it is read; φ
// cycles are broken through a temporary register.
func (d *determinizer) tryMerge(id int, fresh []row) ([]Command, bool) {
	old := d.states[id].rows
	if len(old) != len(fresh) {
		return nil, false
	}

	phi := make(map[Register]Register)    // fresh -> existing
	phiInv := make(map[Register]Register) // existing -> fresh
	consistent := true
	for i := range fresh {
		d.eachTrackedReg(fresh[i], func(m groupmarker.Marker, fReg Register, fOK bool) {
			if !consistent {
				return
			}
			oReg, oOK := old[i].regs[m]
			if fOK != oOK {
				consistent = false
				return
			}
			if !fOK {
				return
			}
			if prev, ok := phi[fReg]; ok && prev != oReg {
				consistent = false
				return
			}
			if prev, ok := phiInv[oReg]; ok && prev != fReg {
				consistent = false
				return
			}
			phi[fReg] = oReg
			phiInv[oReg] = fReg
		})
	}
	if !consistent {
		return nil, false
	}

	type move struct{ dst, src Register }
	var pending []move
	var srcs []Register
	for s := range phi {
		srcs = append(srcs, s)
	}
	sort.Slice(srcs, func(i, j int) bool { return srcs[i] < srcs[j] })
	for _, s := range srcs {
		if phi[s] != s {
			pending = append(pending, move{dst: phi[s], src: s})
		}
	}

	var cmds []Command
	for len(pending) > 0 {
		emitted := false
		for i, p := range pending {
			blocked := false
			for j, q := range pending {
				if i != j && q.src == p.dst {
					blocked = true
					break
				}
			}
			if blocked {
				continue
			}
			cmds = append(cmds, Command{Kind: Copy, Dst: p.dst, Src: p.src})
			pending = append(pending[:i], pending[i+1:]...)
			emitted = true
			break
		}
		if !emitted {
			// Pure cycle: spill one source into a scratch register, which
			// unblocks its destination for the next round.
			p := pending[0]
			tmp := d.newTemp()
			cmds = append(cmds, Command{Kind: Copy, Dst: tmp, Src: p.src})
			pending[0].src = tmp
		}
	}
	return cmds, true
}

// intern returns the id of an existing state isomorphic to rows (plus the
// renaming commands bridging into it), or records rows as a new state.
func (d *determinizer) intern(rows []row, prefixMatched bool) (int, []Command) {
	key := stateKey(rows, prefixMatched)
	for _, id := range d.buckets[key] {
		if cmds, ok := d.tryMerge(id, rows); ok {
			return id, cmds
		}
	}
	id := len(d.states)
	d.states = append(d.states, dfaState{rows: rows, prefixMatched: prefixMatched})
	d.buckets[key] = append(d.buckets[key], id)
	d.queue = append(d.queue, id)
	return id, nil
}

// updatedRow computes a row's register view after its pending ε-path
// events are applied: crossing a group-start marker invalidates the
// registers of every group nested inside it (a fresh iteration must not
// inherit stale positions from the previous one), and every tracked
// marker on the path is redirected to the fresh register chosen for it in
// this expansion. ops collects the fresh registers this row needs
// assigned to the current position.
func (d *determinizer) updatedRow(r row, fresh map[groupmarker.Marker]Register) (map[groupmarker.Marker]Register, map[Register]bool) {
	updated := make(map[groupmarker.Marker]Register, len(r.regs))
	for m, reg := range r.regs {
		updated[m] = reg
	}
	ops := make(map[Register]bool)
	for _, m := range r.markers {
		if m.IsStart {
			for _, nm := range d.t.Nested[m.Group] {
				delete(updated, nm)
			}
		}
		if _, tracked := d.dest[m]; tracked {
			f := fresh[m]
			updated[m] = f
			ops[f] = true
		}
	}
	return updated, ops
}

// finalCommandsFor emits the accept-time command list for a final row
// (§4.7): each tracked marker's canonical destination register receives
// the marker's current holding register, except that a register about to
// be assigned the current position collapses the Copy into a direct
// SetPos of the destination. Markers absent from the row's register map
// stay unset (-1), which is how non-participating groups surface.
func (d *determinizer) finalCommandsFor(updated map[groupmarker.Marker]Register, ops map[Register]bool) []Command {
	cmds := []Command{}
	for _, m := range d.tracked {
		src, ok := updated[m]
		if !ok {
			continue
		}
		dst := d.dest[m]
		if ops[src] {
			cmds = append(cmds, Command{Kind: SetPos, Dst: dst})
		} else {
			cmds = append(cmds, Command{Kind: Copy, Dst: dst, Src: src})
		}
	}
	return cmds
}

// normalizeCommands rewrites any Copy whose source was assigned by a
// SetPos earlier in the same list into a direct SetPos of its destination
// (§3 "Tag command" invariant: within one command list, a register written
// by SetPos is never read by a Copy).
func normalizeCommands(cmds []Command) []Command {
	setHere := make(map[Register]bool)
	for i, c := range cmds {
		if c.Kind == SetPos {
			setHere[c.Dst] = true
			continue
		}
		if setHere[c.Src] {
			cmds[i] = Command{Kind: SetPos, Dst: c.Dst}
			setHere[c.Dst] = true
		}
	}
	return cmds
}

func (d *determinizer) run() (*TDFA, error) {
	initClosure := d.closureOf(d.t.Initial)
	var initRows []row
	for _, b := range initClosure.order {
		p := initClosure.paths[b]
		initRows = append(initRows, row{
			nfaState:   b,
			regs:       map[groupmarker.Marker]Register{},
			markers:    p.Groups(),
			boundaries: p.Boundaries(),
		})
	}
	initID, _ := d.intern(initRows, false)

	var outTrans [][]Transition
	finalCommands := make(map[int][]Command)
	finalBoundaries := make(map[int][]tnfa.BoundaryKind)
	var stateBoundaries [][]tnfa.BoundaryKind

	for len(d.queue) > 0 {
		id := d.queue[0]
		d.queue = d.queue[1:]
		for len(outTrans) <= id {
			outTrans = append(outTrans, nil)
			stateBoundaries = append(stateBoundaries, nil)
		}
		st := d.states[id]
		if len(st.rows) > 0 {
			stateBoundaries[id] = st.rows[0].boundaries
		}

		// Step 1: one fresh register per distinct tracked marker pending
		// anywhere in this state.
		fresh := make(map[groupmarker.Marker]Register)
		for _, r := range st.rows {
			for _, m := range r.markers {
				if _, tracked := d.dest[m]; !tracked {
					continue
				}
				if _, ok := fresh[m]; !ok {
					fresh[m] = d.newTemp()
				}
			}
		}

		// Step 2: walk rows in priority order, collecting code-unit edges
		// annotated with each row's updated register view.
		type codeEdge struct {
			set     rangeset.Set
			to      tnfa.StateID
			updated map[groupmarker.Marker]Register
			ops     map[Register]bool
		}
		var edges []codeEdge
		accepted := false

		for _, r := range st.rows {
			updated, ops := d.updatedRow(r, fresh)

			if r.nfaState == d.t.Final {
				if _, ok := finalCommands[id]; !ok {
					finalCommands[id] = d.finalCommandsFor(updated, ops)
					finalBoundaries[id] = r.boundaries
					accepted = true
				}
				if d.mode == Prefix {
					// Rows below an accepting row lose: the match that
					// already succeeded here outranks them.
					break
				}
				continue
			}
			for _, e := range d.t.Trans[r.nfaState] {
				if e.Transition.Kind != tnfa.KindCodeUnits {
					continue
				}
				edges = append(edges, codeEdge{set: e.Transition.CodeUnits, to: e.To, updated: updated, ops: ops})
			}
		}
		if d.mode == Prefix && !accepted && st.prefixMatched {
			// A pass-through state after an accept: accepting with no
			// commands of its own (destinations already hold the last
			// match).
			if _, ok := finalCommands[id]; !ok {
				finalCommands[id] = []Command{}
			}
		}

		if len(edges) == 0 {
			continue
		}

		childPrefixMatched := st.prefixMatched
		if d.mode == Prefix {
			if _, ok := finalCommands[id]; ok {
				childPrefixMatched = true
			}
		}

		// Step 3: split the edge labels into disjoint parts; each part
		// becomes one deterministic transition.
		sets := make([]rangeset.Set, len(edges))
		for i, e := range edges {
			sets[i] = e.set
		}
		parts, membership := rangeset.DisjointPartition(sets)

		for pi, part := range parts {
			var childRows []row
			present := make(map[tnfa.StateID]bool)
			opsAcc := make(map[Register]bool)

			for _, origIdx := range membership[pi] {
				e := edges[origIdx]
				for reg := range e.ops {
					opsAcc[reg] = true
				}
				c := d.closureOf(e.to)
				for _, b := range c.order {
					if present[b] {
						continue
					}
					present[b] = true
					p := c.paths[b]
					childRows = append(childRows, row{
						nfaState:   b,
						regs:       e.updated,
						markers:    p.Groups(),
						boundaries: p.Boundaries(),
					})
				}
			}

			var cmds []Command
			if d.mode == Prefix {
				// Keep the already-matched positions visible even when the
				// scan continues past this accepting state.
				cmds = append(cmds, finalCommands[id]...)
			}
			var regs []Register
			for reg := range opsAcc {
				regs = append(regs, reg)
			}
			sort.Slice(regs, func(i, j int) bool { return regs[i] < regs[j] })
			for _, reg := range regs {
				cmds = append(cmds, Command{Kind: SetPos, Dst: reg})
			}

			childID, renames := d.intern(childRows, childPrefixMatched)
			cmds = normalizeCommands(append(cmds, renames...))
			outTrans[id] = append(outTrans[id], Transition{
				CodeUnits: rangeset.Of(part),
				Commands:  cmds,
				Target:    childID,
			})
		}
	}
	for len(outTrans) < len(d.states) {
		outTrans = append(outTrans, nil)
		stateBoundaries = append(stateBoundaries, nil)
	}

	var initialBoundaries []tnfa.BoundaryKind
	if len(initRows) > 0 {
		initialBoundaries = initRows[0].boundaries
	}

	return &TDFA{
		States:            outTrans,
		FinalCommands:     finalCommands,
		Initial:           initID,
		Groups:            d.t.Groups,
		Mode:              d.mode,
		TrackedMarkers:    d.tracked,
		MarkerRegister:    d.dest,
		NumRegisters:      int(d.nextReg),
		StateBoundaries:   stateBoundaries,
		InitialBoundaries: initialBoundaries,
		FinalBoundaries:   finalBoundaries,
	}, nil
}
