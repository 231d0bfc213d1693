package regex

// MatchResult is a successful match (§3 "Match result"): a reference to
// the matched input plus an even-length array of byte offsets, two per
// capture group (index 0 is always the whole match), -1 meaning unset.
type MatchResult struct {
	input  []byte
	groups []int
}

// GroupCount returns the number of capture groups, including group 0 (the
// whole match).
func (r *MatchResult) GroupCount() int {
	return len(r.groups) / 2
}

func (r *MatchResult) checkIndex(i int) {
	if i < 0 || i >= r.GroupCount() {
		panic(&IndexOutOfBoundsError{Index: i, GroupCount: r.GroupCount()})
	}
}

// Start returns group i's start offset, or -1 if group i did not
// participate in the match.
func (r *MatchResult) Start(i int) int {
	r.checkIndex(i)
	return r.groups[2*i]
}

// End returns group i's end offset, or -1 if group i did not participate
// in the match.
func (r *MatchResult) End(i int) int {
	r.checkIndex(i)
	return r.groups[2*i+1]
}

// Group returns the slice of the input matched by group i, or nil if
// group i did not participate in the match.
func (r *MatchResult) Group(i int) []byte {
	s, e := r.Start(i), r.End(i)
	if s < 0 || e < 0 {
		return nil
	}
	return r.input[s:e]
}

// GroupString is Group, converted to a string.
func (r *MatchResult) GroupString(i int) string {
	g := r.Group(i)
	if g == nil {
		return ""
	}
	return string(g)
}

// Start0 returns the whole match's start offset (group 0).
func (r *MatchResult) Start0() int { return r.Start(0) }

// End0 returns the whole match's end offset (group 0).
func (r *MatchResult) End0() int { return r.End(0) }

// Bytes returns the whole match's slice of the input (group 0).
func (r *MatchResult) Bytes() []byte { return r.Group(0) }

// String returns the whole match's slice of the input (group 0), as a
// string.
func (r *MatchResult) String() string { return r.GroupString(0) }
