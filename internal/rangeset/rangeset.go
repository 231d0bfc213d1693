// Package rangeset implements canonical sets of non-negative integer ranges
// (code point ranges in this module) with the usual set algebra, plus a
// disjoint-partition operation used to make a TNFA state's outgoing
// code-unit transitions pairwise disjoint.
package rangeset

import "sort"

// Range is an inclusive interval [Lo, Hi] over non-negative code points.
// Lo must be <= Hi; this invariant is the caller's responsibility.
type Range struct {
	Lo, Hi rune
}

// Set is a canonical, ordered sequence of non-overlapping, non-adjacent
// ranges: for consecutive ranges r1, r2 in a Set, r1.Hi+1 < r2.Lo.
type Set []Range

// Of builds a canonical Set from a (possibly overlapping, unordered) list
// of ranges.
func Of(ranges ...Range) Set {
	if len(ranges) == 0 {
		return nil
	}
	cp := make([]Range, len(ranges))
	copy(cp, ranges)
	sort.Slice(cp, func(i, j int) bool { return cp[i].Lo < cp[j].Lo })

	out := make(Set, 0, len(cp))
	cur := cp[0]
	for _, r := range cp[1:] {
		if r.Lo <= cur.Hi+1 {
			if r.Hi > cur.Hi {
				cur.Hi = r.Hi
			}
			continue
		}
		out = append(out, cur)
		cur = r
	}
	return append(out, cur)
}

// Single returns the canonical set containing just r.
func Single(lo, hi rune) Set { return Set{{Lo: lo, Hi: hi}} }

// Contains reports whether x lies in the set. O(log n).
func (s Set) Contains(x rune) bool {
	i := sort.Search(len(s), func(i int) bool { return s[i].Hi >= x })
	return i < len(s) && s[i].Lo <= x
}

// IsEmpty reports whether the set has no ranges.
func (s Set) IsEmpty() bool { return len(s) == 0 }

// Union returns the canonical union of a and b.
func Union(a, b Set) Set {
	merged := make([]Range, 0, len(a)+len(b))
	merged = append(merged, a...)
	merged = append(merged, b...)
	return Of(merged...)
}

// Intersection returns the canonical intersection of a and b via a sweep
// over both sorted range lists.
func Intersection(a, b Set) Set {
	var out Set
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		lo := max(a[i].Lo, b[j].Lo)
		hi := min(a[i].Hi, b[j].Hi)
		if lo <= hi {
			out = append(out, Range{Lo: lo, Hi: hi})
		}
		if a[i].Hi < b[j].Hi {
			i++
		} else {
			j++
		}
	}
	return out
}

// Difference returns the canonical set of elements in a but not in b.
func Difference(a, b Set) Set {
	var out Set
	j := 0
	for _, r := range a {
		lo := r.Lo
		for j < len(b) && b[j].Hi < lo {
			j++
		}
		k := j
		for k < len(b) && b[k].Lo <= r.Hi {
			if b[k].Lo > lo {
				out = append(out, Range{Lo: lo, Hi: b[k].Lo - 1})
			}
			if b[k].Hi+1 > lo {
				lo = b[k].Hi + 1
			}
			k++
		}
		if lo <= r.Hi {
			out = append(out, Range{Lo: lo, Hi: r.Hi})
		}
	}
	return Of([]Range(out)...)
}

// Negate returns the complement of s within [lo, hi].
func Negate(s Set, lo, hi rune) Set {
	return Difference(Single(lo, hi), s)
}

func max(a, b rune) rune {
	if a > b {
		return a
	}
	return b
}

func min(a, b rune) rune {
	if a < b {
		return a
	}
	return b
}

// DisjointPartition computes the coarsest partition of the union of the
// given sets such that each part lies in exactly the same subset of inputs.
// It returns the parts (ascending and non-overlapping across the whole
// union; adjacent parts stay separate, so the result is not a canonical
// Set) and, for each part, the indices into `sets` whose set contains it.
//
// This is used to normalise a TNFA state's outgoing code-unit transitions
// so that they become pairwise disjoint (hence deterministic along the
// code-unit axis).
func DisjointPartition(sets []Set) (parts Set, membership [][]int) {
	type boundary struct {
		pos   rune
		delta int // +1 at a Lo, -1 at Hi+1
	}
	var bounds []boundary
	for _, s := range sets {
		for _, r := range s {
			bounds = append(bounds, boundary{pos: r.Lo, delta: 1})
			bounds = append(bounds, boundary{pos: r.Hi + 1, delta: -1})
		}
	}
	if len(bounds) == 0 {
		return nil, nil
	}
	sort.Slice(bounds, func(i, j int) bool {
		if bounds[i].pos != bounds[j].pos {
			return bounds[i].pos < bounds[j].pos
		}
		// process closings before openings isn't needed since deltas are
		// applied cumulatively at each distinct position.
		return bounds[i].delta < bounds[j].delta
	})

	// Collapse to distinct positions with summed deltas, in order.
	type point struct {
		pos   rune
		delta int
	}
	var pts []point
	for _, b := range bounds {
		if len(pts) > 0 && pts[len(pts)-1].pos == b.pos {
			pts[len(pts)-1].delta += b.delta
			continue
		}
		pts = append(pts, point{pos: b.pos, delta: b.delta})
	}

	depth := 0
	for i := 0; i < len(pts); i++ {
		depth += pts[i].delta
		if depth > 0 && i+1 < len(pts) {
			parts = append(parts, Range{Lo: pts[i].pos, Hi: pts[i+1].pos - 1})
			membership = append(membership, membersOf(sets, pts[i].pos))
		}
	}
	return parts, membership
}

func membersOf(sets []Set, x rune) []int {
	var idx []int
	for i, s := range sets {
		if s.Contains(x) {
			idx = append(idx, i)
		}
	}
	return idx
}
