// Package groupmarker implements the fixed-distance class analysis for
// capture-group markers (§3, §4.3): a union-find forest over markers with
// integer edge weights, so that a marker provably at a constant offset from
// another marker (or from an input endpoint) need not be tracked with a
// runtime register.
package groupmarker

import (
	"fmt"

	"github.com/pkg/errors"
)

// Marker identifies either the start or end boundary of capture group
// Group. Group 0 is the whole match.
type Marker struct {
	Group   int
	IsStart bool
}

func (m Marker) String() string {
	if m.IsStart {
		return fmt.Sprintf("S%d", m.Group)
	}
	return fmt.Sprintf("E%d", m.Group)
}

// ContradictionError is raised when a requested fixed distance or anchor
// conflicts with one already established.
type ContradictionError struct {
	A, B     Marker
	Want     int
	Have     int
	IsAnchor bool
}

func (e *ContradictionError) Error() string {
	if e.IsAnchor {
		return fmt.Sprintf("groupmarker: anchor distance for %s contradicts existing distance: want %d, have %d", e.A, e.Want, e.Have)
	}
	return fmt.Sprintf("groupmarker: distance(%s, %s) contradicts existing distance: want %d, have %d", e.A, e.B, e.Want, e.Have)
}

type node struct {
	parent    int  // index of parent in forest; self for a root
	distToPar int  // signed distance from this node to its parent
	rank      int
}

// anchor records a class's offset from an input endpoint.
type anchor struct {
	set      bool
	distance int // distance from the class representative to the anchor
}

// Classes is the fixed-distance class forest over group markers.
type Classes struct {
	index   map[Marker]int
	markers []Marker
	nodes   []node
	// anchors are keyed by the *root* index at the time they were recorded;
	// callers must requery via the representative after every union, which
	// is why Classes re-derives anchors through find instead of
	// storing them per-marker.
	startAnchor map[int]anchor // root index -> anchor to start-of-input
	endAnchor   map[int]anchor // root index -> anchor to end-of-input
}

// New creates an empty forest.
func New() *Classes {
	return &Classes{
		index:       make(map[Marker]int),
		startAnchor: make(map[int]anchor),
		endAnchor:   make(map[int]anchor),
	}
}

// AddFresh registers a marker as its own singleton class, if not already
// present. Idempotent.
func (c *Classes) AddFresh(m Marker) {
	if _, ok := c.index[m]; ok {
		return
	}
	idx := len(c.nodes)
	c.index[m] = idx
	c.markers = append(c.markers, m)
	c.nodes = append(c.nodes, node{parent: idx, distToPar: 0})
}

// find returns the root index of m's class and m's signed distance to that
// root (root - m, i.e. the offset you add to m's position to reach the
// root's position), with path splitting for amortised near-constant time.
func (c *Classes) find(idx int) (root, dist int) {
	dist = 0
	for c.nodes[idx].parent != idx {
		p := c.nodes[idx]
		gp := c.nodes[p.parent]
		dist += p.distToPar
		if gp.parent != p.parent {
			// path splitting: point idx directly at its grandparent.
			c.nodes[idx].parent = gp.parent
			c.nodes[idx].distToPar = p.distToPar + gp.distToPar
		}
		idx = p.parent
	}
	return idx, dist
}

// RecordFixedDistance asserts that g2's position equals g1's position + d
// (d may be negative). Returns a *ContradictionError if this conflicts with
// an already-known distance.
func (c *Classes) RecordFixedDistance(g1 Marker, d int, g2 Marker) error {
	c.AddFresh(g1)
	c.AddFresh(g2)
	i1, i2 := c.index[g1], c.index[g2]
	r1, d1 := c.find(i1) // r1 = i1 + d1
	r2, d2 := c.find(i2) // r2 = i2 + d2

	if r1 == r2 {
		// i1 = r - d1, i2 = r - d2 (same root r) => i2 - i1 = d1 - d2.
		have := d1 - d2
		if have != d {
			return errors.WithStack(&ContradictionError{A: g1, B: g2, Want: d, Have: have})
		}
		return nil
	}

	// Union: want i2 = i1 + d, i.e. (r2 - d2) = (r1 - d1) + d
	// => r2 = r1 + (d2 - d1 + d)
	offset := d2 - d1 + d // r2's position relative to r1: r2 = r1 + offset
	if err := c.union(r1, r2, offset); err != nil {
		if ce, ok := errors.Cause(err).(*ContradictionError); ok {
			ce.A, ce.B = g1, g2
		}
		return err
	}
	return nil
}

// union merges roots r1 and r2 such that r2's position = r1's position +
// offset. Per §4.3, the root of the smaller-position side becomes a child
// of the larger-position side, so parent-edge distances stay non-negative
// and the surviving root is always the rightmost marker of the merged
// class.
func (c *Classes) union(r1, r2, offset int) error {
	// offset: position(r2) - position(r1).
	a1, a2 := c.startAnchor[r1], c.startAnchor[r2]
	e1, e2 := c.endAnchor[r1], c.endAnchor[r2]

	if offset >= 0 {
		// r2 is at or to the right of r1: r1 becomes a child of r2.
		// distToPar(r1) = position(r2) - position(r1) = offset.
		c.nodes[r1].parent = r2
		c.nodes[r1].distToPar = offset
		return c.mergeAnchors(r2, r1, offset, a2, a1, e2, e1)
	}
	// r1 is to the right of r2: r2 becomes a child of r1.
	// distToPar(r2) = position(r1) - position(r2) = -offset.
	c.nodes[r2].parent = r1
	c.nodes[r2].distToPar = -offset
	return c.mergeAnchors(r1, r2, -offset, a1, a2, e1, e2)
}

// mergeAnchors folds the anchors of the absorbed root into the surviving
// root's anchor maps. survivorOffsetOfAbsorbed is the surviving root's
// position minus the absorbed root's position (position(survivor) =
// position(absorbed) + survivorOffsetOfAbsorbed). The merge itself always
// proceeds (the forest must stay consistent even when the error below is
// returned); the caller surfaces the contradiction without leaving the
// union half-applied.
func (c *Classes) mergeAnchors(survivor, absorbed, survivorOffsetOfAbsorbed int, survivorStart, absorbedStart, survivorEnd, absorbedEnd anchor) error {
	delete(c.startAnchor, absorbed)
	delete(c.endAnchor, absorbed)
	var contradiction error

	if absorbedStart.set {
		// absorbed's start anchor: position(absorbed) = position(anchor) + absorbedStart.distance
		// => position(survivor) = position(anchor) + absorbedStart.distance + survivorOffsetOfAbsorbed
		want := survivorOffsetOfAbsorbed + absorbedStart.distance
		if survivorStart.set && survivorStart.distance != want {
			contradiction = errors.WithStack(&ContradictionError{Want: want, Have: survivorStart.distance, IsAnchor: true})
		} else {
			c.startAnchor[survivor] = anchor{set: true, distance: want}
		}
	} else if survivorStart.set {
		c.startAnchor[survivor] = survivorStart
	}

	if absorbedEnd.set {
		want := survivorOffsetOfAbsorbed + absorbedEnd.distance
		if survivorEnd.set && survivorEnd.distance != want {
			if contradiction == nil {
				contradiction = errors.WithStack(&ContradictionError{Want: want, Have: survivorEnd.distance, IsAnchor: true})
			}
		} else {
			c.endAnchor[survivor] = anchor{set: true, distance: want}
		}
	} else if survivorEnd.set {
		c.endAnchor[survivor] = survivorEnd
	}
	return contradiction
}

// RecordAnchor asserts that g's position equals the input start (isStart
// true) or input end (isStart false) plus d.
func (c *Classes) RecordAnchor(g Marker, d int, isStart bool) error {
	c.AddFresh(g)
	idx := c.index[g]
	root, dist := c.find(idx) // root = g + dist, i.e. g = root - dist

	// Caller asserts position(g) = anchorPos + d. anchor.distance stores
	// position(root) - anchorPos, so that FixedClasses can recover any
	// member's position as anchorPos + anchor.distance + member.offset.
	// position(root) - anchorPos = (g + dist) - (g - d) = dist + d.
	want := dist + d
	m := c.startAnchor
	if !isStart {
		m = c.endAnchor
	}
	if existing, ok := m[root]; ok {
		if existing.distance != want {
			return errors.WithStack(&ContradictionError{A: g, Want: want, Have: existing.distance, IsAnchor: true})
		}
		return nil
	}
	m[root] = anchor{set: true, distance: want}
	return nil
}

// ClassInfo describes, for one marker, how to obtain its position: either
// anchored directly to an input endpoint, or as an offset from its class's
// representative register.
type ClassInfo struct {
	Marker Marker
	// AnchoredStart/AnchoredEnd: position = (start|end)Offset + Distance.
	AnchoredStart bool
	AnchoredEnd   bool
	Distance      int
	// Representative: when not anchored, Marker's position is
	// RepresentativeRegister's position + Distance, and Representative
	// itself is the one marker in the class that must be tracked with a
	// runtime register (Representative == Marker for that one marker).
	Representative Marker
}

// FixedClasses computes, for every registered marker, how its position can
// be reconstructed at accept time. allowEndAnchor selects whether anchoring to
// end-of-input is permitted (disallowed in PREFIX mode, since the end
// offset is not known at compile time — see §4.3, §9 open question).
func (c *Classes) FixedClasses(allowEndAnchor bool) ([]ClassInfo, error) {
	// Choose, for each root, a representative: the class member with the
	// largest relative distance from the root (the "rightmost" marker),
	// matching the invariant that parent-edge distances from the root are
	// non-negative, i.e. other members are encoded as root - same as or less.
	// We derive each marker's absolute offset from its root, then for roots
	// without an anchor pick the member with max(offset) as representative
	// (offset 0 relative to itself), so every other member's Distance (its
	// position minus the representative's) is zero or negative.
	type memberInfo struct {
		marker Marker
		offset int // position(marker) - position(root)
	}
	byRoot := make(map[int][]memberInfo)
	for m, idx := range c.index {
		root, dist := c.find(idx) // root = marker + dist => marker = root - dist
		byRoot[root] = append(byRoot[root], memberInfo{marker: m, offset: -dist})
	}

	var out []ClassInfo
	for root, members := range byRoot {
		sa, saOK := c.startAnchor[root]
		ea, eaOK := c.endAnchor[root]
		if eaOK && !allowEndAnchor {
			return nil, errors.Errorf("groupmarker: class containing %v is anchored to end-of-input, not permitted in this mode", members[0].marker)
		}

		switch {
		case saOK:
			for _, mem := range members {
				out = append(out, ClassInfo{
					Marker:        mem.marker,
					AnchoredStart: true,
					Distance:      sa.distance + mem.offset,
				})
			}
		case eaOK:
			for _, mem := range members {
				out = append(out, ClassInfo{
					Marker:      mem.marker,
					AnchoredEnd: true,
					Distance:    ea.distance + mem.offset,
				})
			}
		default:
			// Pick the rightmost member (max offset) as representative.
			rep := members[0]
			for _, mem := range members[1:] {
				if mem.offset > rep.offset {
					rep = mem
				}
			}
			for _, mem := range members {
				out = append(out, ClassInfo{
					Marker:         mem.marker,
					Representative: rep.marker,
					Distance:       mem.offset - rep.offset,
				})
			}
		}
	}
	return out, nil
}

// Markers returns every marker registered so far, in registration order.
func (c *Classes) Markers() []Marker {
	out := make([]Marker, len(c.markers))
	copy(out, c.markers)
	return out
}
