// Package closure implements prioritized epsilon-closure (§4.6): given a
// TNFA state, find every reachable "boundary" state (one with outgoing
// code-unit transitions, or the TNFA's final state) together with the
// highest-priority path of alternation/group/boundary markers that reaches
// it.
package closure

import (
	"github.com/KromDaniel/retdfa/internal/groupmarker"
	"github.com/KromDaniel/retdfa/internal/tnfa"
)

// ElemKind discriminates a PathElem's active field.
type ElemKind int

const (
	ElemAlt ElemKind = iota
	ElemGroup
	ElemBoundary
)

// PathElem is one marker encountered along an epsilon path.
type PathElem struct {
	Kind     ElemKind
	Alt      tnfa.AltMark
	Group    groupmarker.Marker
	Boundary tnfa.BoundaryKind
}

// Path is an ordered, immutable-by-convention sequence of markers (§3);
// callers must not mutate a Path returned from Closure.
type Path []PathElem

// Groups returns the group-boundary markers in path order.
func (p Path) Groups() []groupmarker.Marker {
	var out []groupmarker.Marker
	for _, e := range p {
		if e.Kind == ElemGroup {
			out = append(out, e.Group)
		}
	}
	return out
}

// Boundaries returns the zero-width assertion requirements in path order;
// every one of these must hold, at the byte offset where the closure was
// computed, for this path to be a live alternative (§ GO ADAPTATIONS:
// boundary requirements are carried to simulate-time rather than resolved
// at compile time).
func (p Path) Boundaries() []tnfa.BoundaryKind {
	var out []tnfa.BoundaryKind
	for _, e := range p {
		if e.Kind == ElemBoundary {
			out = append(out, e.Boundary)
		}
	}
	return out
}

func isBoundaryState(t *tnfa.TNFA, s tnfa.StateID) bool {
	if s == t.Final {
		return true
	}
	edges := t.Trans[s]
	return len(edges) > 0 && edges[0].Transition.Kind == tnfa.KindCodeUnits
}

// Closure computes the prioritized epsilon-closure of a single TNFA state.
// order lists reached boundary states highest-priority first; paths maps
// each to its canonical (highest-priority) path.
//
// The DFS visits a state's PLUS branch before its MINUS branch, so paths
// are enumerated in descending lexicographic priority (PLUS > MINUS) and
// the first path to reach any boundary state is its canonical one. This
// is the reversed-comparison equivalent of the MINUS-first, last-write-
// wins enumeration described in §4.6/§9; the builder still inserts MINUS
// before PLUS, the walk just consumes them in priority order.
func Closure(t *tnfa.TNFA, start tnfa.StateID) (order []tnfa.StateID, paths map[tnfa.StateID]Path) {
	visited := make(map[tnfa.StateID]bool)
	paths = make(map[tnfa.StateID]Path)

	var walk func(s tnfa.StateID, path Path)
	step := func(e tnfa.Edge, path Path) {
		switch e.Transition.Kind {
		case tnfa.KindAlternation:
			walk(e.To, append(path, PathElem{Kind: ElemAlt, Alt: e.Transition.Alt}))
		case tnfa.KindGroup:
			walk(e.To, append(path, PathElem{Kind: ElemGroup, Group: e.Transition.Group}))
		case tnfa.KindBoundary:
			walk(e.To, append(path, PathElem{Kind: ElemBoundary, Boundary: e.Transition.Boundary}))
		}
	}
	walk = func(s tnfa.StateID, path Path) {
		if visited[s] {
			return
		}
		visited[s] = true

		if isBoundaryState(t, s) {
			cp := make(Path, len(path))
			copy(cp, path)
			paths[s] = cp
			order = append(order, s)
			return
		}

		edges := t.Trans[s]
		if len(edges) == 2 && edges[0].Transition.Kind == tnfa.KindAlternation {
			// Alternation states store MINUS then PLUS; walk PLUS first.
			step(edges[1], path)
			step(edges[0], path)
			return
		}
		for _, e := range edges {
			step(e, path)
		}
	}
	walk(start, nil)
	return order, paths
}

