// Package tnfa builds the Tagged NFA (§3, §4.5): a state graph whose
// transitions are one of four kinds — code-unit consumption, alternation
// priority, capture-group boundary, or zero-width boundary assertion.
// internal/frontend drives a Builder bottom-up from a regex AST; the TNFA
// itself is frozen (immutable) once Finalize returns.
package tnfa

import (
	"github.com/pkg/errors"

	"github.com/KromDaniel/retdfa/internal/codeunit"
	"github.com/KromDaniel/retdfa/internal/groupmarker"
	"github.com/KromDaniel/retdfa/internal/rangeset"
)

// StateID is a dense state index into a TNFA's transition vector.
type StateID int

// AltMark is the alternation priority marker. PLUS < MINUS per §3.
type AltMark int

const (
	Plus AltMark = iota
	Minus
)

func (a AltMark) String() string {
	if a == Plus {
		return "+"
	}
	return "-"
}

// BoundaryKind enumerates the zero-width assertions the engine recognizes.
// This is the GO ADAPTATION that turns §9's open question on boundary
// anchors into a supported Boundary transition kind instead of a rejected
// construct (see SPEC_FULL.md).
type BoundaryKind int

const (
	BeginText BoundaryKind = iota
	EndText
	BeginLine
	EndLine
	WordBoundary
	NoWordBoundary
)

// Kind discriminates a Transition's active fields.
type Kind int

const (
	KindCodeUnits Kind = iota
	KindAlternation
	KindGroup
	KindBoundary
)

// Transition is the tagged transition label of §3. Exactly one of the
// kind-specific fields is meaningful, selected by Kind.
type Transition struct {
	Kind      Kind
	CodeUnits rangeset.Set
	Alt       AltMark
	Group     groupmarker.Marker
	Boundary  BoundaryKind
}

func codeUnitsTransition(s rangeset.Set) Transition {
	return Transition{Kind: KindCodeUnits, CodeUnits: s}
}

// Edge is one outgoing transition from a state.
type Edge struct {
	Transition Transition
	To         StateID
}

// TNFA is the frozen tagged NFA produced by Finalize.
type TNFA struct {
	Trans   [][]Edge // Trans[s] = outgoing edges of state s, insertion order preserved
	Initial StateID
	Final   StateID
	Groups  *groupmarker.Classes
	// Nested maps a capture group index to the markers of every group
	// properly nested inside it. Crossing a group's start marker begins a
	// fresh iteration, so the determinizer drops the nested groups'
	// register holdings at that point instead of carrying positions from a
	// previous iteration.
	Nested map[int][]groupmarker.Marker
}

// Builder accumulates states and transitions before Finalize freezes them.
type Builder struct {
	trans  [][]Edge
	groups *groupmarker.Classes
	nested map[int][]groupmarker.Marker
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{groups: groupmarker.New()}
}

// Groups exposes the fixed-distance class forest being built up alongside
// the state graph, so the frontend can call RecordFixedDistance/RecordAnchor
// as it discovers group-boundary placements.
func (b *Builder) Groups() *groupmarker.Classes { return b.groups }

// SetNested records the group-nesting relation the frontend derives from
// the AST (see TNFA.Nested).
func (b *Builder) SetNested(nested map[int][]groupmarker.Marker) { b.nested = nested }

// NewState allocates a fresh state with no outgoing transitions.
func (b *Builder) NewState() StateID {
	id := StateID(len(b.trans))
	b.trans = append(b.trans, nil)
	return id
}

// AddCodeUnitClass wires a character class from `from` to `to`, expanding
// the class into a UTF-8 byte trie (§4.2 GO ADAPTATION) and allocating
// intermediate states for multi-byte code points so the class becomes a
// small DAG whose accepting edges all converge on `to`.
func (b *Builder) AddCodeUnitClass(from StateID, runes rangeset.Set, to StateID) {
	if runes.IsEmpty() {
		return
	}
	root := codeunit.BuildTrie(runes)
	b.wireTrieNode(from, root, to)
}

func (b *Builder) wireTrieNode(from StateID, n *codeunit.Node, to StateID) {
	if n == nil {
		return
	}
	for _, e := range n.Edges {
		set := rangeset.Single(rune(e.Range.Lo), rune(e.Range.Hi))
		if e.Leaf {
			b.addEdge(from, codeUnitsTransition(set), to)
		}
		if e.Next != nil {
			mid := b.NewState()
			b.addEdge(from, codeUnitsTransition(set), mid)
			b.wireTrieNode(mid, e.Next, to)
		}
	}
}

// AddAlternation wires the prioritized choice between lhs and rhs (§4.5):
// a MINUS edge to rhs is inserted before a PLUS edge to lhs. The
// epsilon-closure walk (internal/closure) visits the PLUS edge first, so
// lhs is the higher-priority branch.
func (b *Builder) AddAlternation(from, lhs, rhs StateID) {
	b.addEdge(from, Transition{Kind: KindAlternation, Alt: Minus}, rhs)
	b.addEdge(from, Transition{Kind: KindAlternation, Alt: Plus}, lhs)
}

// AddGroup wires a capture-boundary marker transition.
func (b *Builder) AddGroup(from StateID, m groupmarker.Marker, to StateID) {
	b.addEdge(from, Transition{Kind: KindGroup, Group: m}, to)
}

// AddBoundary wires a zero-width assertion transition.
func (b *Builder) AddBoundary(from StateID, kind BoundaryKind, to StateID) {
	b.addEdge(from, Transition{Kind: KindBoundary, Boundary: kind}, to)
}

func (b *Builder) addEdge(from StateID, t Transition, to StateID) {
	b.trans[from] = append(b.trans[from], Edge{Transition: t, To: to})
}

// Finalize normalizes every state's code-unit transitions into pairwise
// disjoint ranges (§4.5 step 1) and freezes the graph. Non-code-unit
// transitions are left untouched; the §3 invariant that a state's outgoing
// transitions are homogeneous in kind is the frontend's responsibility to
// maintain (every AddXxx call on a freshly allocated state adds only one
// transition kind to it).
func (b *Builder) Finalize(initial, final StateID) (*TNFA, error) {
	for s, edges := range b.trans {
		normalized, err := normalizeCodeUnitEdges(edges)
		if err != nil {
			return nil, errors.Wrapf(err, "tnfa: state %d", s)
		}
		b.trans[s] = normalized
	}
	return &TNFA{Trans: b.trans, Initial: initial, Final: final, Groups: b.groups, Nested: b.nested}, nil
}

// normalizeCodeUnitEdges replaces a state's code-unit edges with edges
// over the disjoint partition of their ranges, preserving every original
// (range, target) pairing — including deliberately ambiguous ones, where
// the same byte value reaches two different targets (this is the TNFA's
// non-determinism, later resolved by the TDFA powerset construction, and
// must not be collapsed here).
func normalizeCodeUnitEdges(edges []Edge) ([]Edge, error) {
	var codeUnitIdx []int
	var sets []rangeset.Set
	for i, e := range edges {
		if e.Transition.Kind == KindCodeUnits {
			codeUnitIdx = append(codeUnitIdx, i)
			sets = append(sets, e.Transition.CodeUnits)
		}
	}
	if len(codeUnitIdx) <= 1 {
		return edges, nil
	}

	parts, membership := rangeset.DisjointPartition(sets)
	var out []Edge
	for _, e := range edges {
		if e.Transition.Kind != KindCodeUnits {
			out = append(out, e)
		}
	}
	for i, part := range parts {
		for _, memberIdx := range membership[i] {
			origEdge := edges[codeUnitIdx[memberIdx]]
			out = append(out, Edge{
				Transition: codeUnitsTransition(rangeset.Of(part)),
				To:         origEdge.To,
			})
		}
	}
	return out, nil
}
