package groupmarker

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func s(g int) Marker { return Marker{Group: g, IsStart: true} }
func e(g int) Marker { return Marker{Group: g, IsStart: false} }

func TestAddFreshIdempotent(t *testing.T) {
	c := New()
	c.AddFresh(s(0))
	c.AddFresh(s(0))
	require.Equal(t, []Marker{s(0)}, c.Markers())
}

func TestRecordFixedDistanceUnionsAndReconstructs(t *testing.T) {
	c := New()
	// e(0) = s(1) + 2, s(1) = e(1) - 3  =>  e(0) = e(1) - 1
	require.NoError(t, c.RecordFixedDistance(s(1), 2, e(0)))
	require.NoError(t, c.RecordFixedDistance(e(1), -3, s(1)))

	classes, err := c.FixedClasses(true)
	require.NoError(t, err)

	byMarker := make(map[Marker]ClassInfo)
	for _, ci := range classes {
		byMarker[ci.Marker] = ci
	}

	// All three markers land in one unanchored class; verify the
	// pairwise relative offsets are preserved regardless of which
	// member was chosen as representative.
	var pos func(Marker) int
	pos = func(m Marker) int {
		ci := byMarker[m]
		if ci.Representative == m {
			return 0
		}
		return ci.Distance + pos(ci.Representative)
	}
	require.Equal(t, pos(s(1))+2, pos(e(0)))
	require.Equal(t, pos(s(1)), pos(e(1))-3)
}

func TestRecordFixedDistanceContradiction(t *testing.T) {
	c := New()
	require.NoError(t, c.RecordFixedDistance(s(1), 2, e(1)))
	err := c.RecordFixedDistance(s(1), 3, e(1))
	require.Error(t, err)
	var ce *ContradictionError
	require.ErrorAs(t, err, &ce)
	require.False(t, ce.IsAnchor)
}

func TestRecordAnchorStartAndReconstruct(t *testing.T) {
	c := New()
	require.NoError(t, c.RecordAnchor(s(0), 0, true))
	require.NoError(t, c.RecordFixedDistance(s(0), 5, e(0)))

	classes, err := c.FixedClasses(true)
	require.NoError(t, err)

	var startInfo, endInfo ClassInfo
	for _, ci := range classes {
		switch ci.Marker {
		case s(0):
			startInfo = ci
		case e(0):
			endInfo = ci
		}
	}
	require.True(t, startInfo.AnchoredStart)
	require.Equal(t, 0, startInfo.Distance)
	require.True(t, endInfo.AnchoredStart)
	require.Equal(t, 5, endInfo.Distance)
}

func TestRecordAnchorContradiction(t *testing.T) {
	c := New()
	require.NoError(t, c.RecordAnchor(s(0), 0, true))
	err := c.RecordAnchor(s(0), 1, true)
	require.Error(t, err)
	var ce *ContradictionError
	require.ErrorAs(t, err, &ce)
	require.True(t, ce.IsAnchor)
}

func TestUnionMergesAnchorsFromBothSides(t *testing.T) {
	c := New()
	require.NoError(t, c.RecordAnchor(s(0), 0, true))
	require.NoError(t, c.RecordAnchor(e(1), 10, false))
	// Join the two anchored classes together: e(1) = s(0) + 7.
	require.NoError(t, c.RecordFixedDistance(s(0), 7, e(1)))

	classes, err := c.FixedClasses(true)
	require.NoError(t, err)
	for _, ci := range classes {
		require.True(t, ci.AnchoredStart || ci.AnchoredEnd)
	}
}

func TestUnionDetectsAnchorContradictionOnMerge(t *testing.T) {
	c := New()
	require.NoError(t, c.RecordAnchor(s(0), 0, true))
	require.NoError(t, c.RecordAnchor(s(1), 100, true))
	// This asserts s(1) = s(0) + 7, which conflicts with their
	// independently recorded start-anchor distances (0 vs 100): merging
	// the two classes would require s(1)'s start-anchor distance to be
	// 7, not 100.
	err := c.RecordFixedDistance(s(0), 7, s(1))
	require.Error(t, err)
	var ce *ContradictionError
	require.ErrorAs(t, err, &ce)
	require.True(t, ce.IsAnchor)
}

func TestFixedClassesRejectsEndAnchorWhenDisallowed(t *testing.T) {
	c := New()
	require.NoError(t, c.RecordAnchor(e(0), 0, false))
	_, err := c.FixedClasses(false)
	require.Error(t, err)
}

func TestFixedClassesAllowsEndAnchorWhenPermitted(t *testing.T) {
	c := New()
	require.NoError(t, c.RecordAnchor(e(0), 0, false))
	classes, err := c.FixedClasses(true)
	require.NoError(t, err)
	require.Len(t, classes, 1)
	require.True(t, classes[0].AnchoredEnd)
}

func TestFixedClassesRepresentativeIsRightmost(t *testing.T) {
	c := New()
	// s(1) is 5 to the left of e(1): e(1) = s(1) + 5.
	require.NoError(t, c.RecordFixedDistance(s(1), 5, e(1)))

	classes, err := c.FixedClasses(true)
	require.NoError(t, err)

	repOf := make(map[Marker]Marker)
	for _, ci := range classes {
		repOf[ci.Marker] = ci.Representative
	}
	// Both markers share the same representative, and it must be the
	// rightmost one (e(1), at the larger position).
	require.Equal(t, repOf[s(1)], repOf[e(1)])
	require.Equal(t, e(1), repOf[s(1)])
}
