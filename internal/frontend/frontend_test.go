package frontend

import (
	"regexp/syntax"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/KromDaniel/retdfa/internal/groupmarker"
)

func parse(t *testing.T, pattern string) *syntax.Regexp {
	t.Helper()
	re, err := syntax.Parse(pattern, syntax.Perl)
	require.NoError(t, err)
	return re.Simplify()
}

func TestBuildLiteral(t *testing.T) {
	re := parse(t, "abc")
	n, err := Build(re, re.MaxCap()+1)
	require.NoError(t, err)
	require.NotNil(t, n)
	require.NotEmpty(t, n.Trans)
}

func TestBuildCaptureGroupsRegisterMarkers(t *testing.T) {
	re := parse(t, "(a)(b)")
	n, err := Build(re, re.MaxCap()+1)
	require.NoError(t, err)

	classes, err := n.Groups.FixedClasses(true)
	require.NoError(t, err)
	require.NotEmpty(t, classes)

	seen := make(map[groupmarker.Marker]bool)
	for _, ci := range classes {
		seen[ci.Marker] = true
	}
	for g := 0; g <= 2; g++ {
		require.True(t, seen[groupmarker.Marker{Group: g, IsStart: true}], "missing S%d", g)
		require.True(t, seen[groupmarker.Marker{Group: g, IsStart: false}], "missing E%d", g)
	}
}

func TestBuildFixedWidthCaptureIsAnchored(t *testing.T) {
	re := parse(t, "(abc)")
	n, err := Build(re, re.MaxCap()+1)
	require.NoError(t, err)

	classes, err := n.Groups.FixedClasses(true)
	require.NoError(t, err)
	byMarker := make(map[groupmarker.Marker]struct {
		anchoredStart bool
		distance      int
	})
	for _, ci := range classes {
		byMarker[ci.Marker] = struct {
			anchoredStart bool
			distance      int
		}{ci.AnchoredStart, ci.Distance}
	}
	require.True(t, byMarker[groupmarker.Marker{Group: 1, IsStart: true}].anchoredStart)
	require.Equal(t, 0, byMarker[groupmarker.Marker{Group: 1, IsStart: true}].distance)
	require.True(t, byMarker[groupmarker.Marker{Group: 1, IsStart: false}].anchoredStart)
	require.Equal(t, 3, byMarker[groupmarker.Marker{Group: 1, IsStart: false}].distance)
}

func TestBuildStarVariableWidthCaptureEndNotStartAnchored(t *testing.T) {
	re := parse(t, "(a*)bbb")
	n, err := Build(re, re.MaxCap()+1)
	require.NoError(t, err)
	classes, err := n.Groups.FixedClasses(true)
	require.NoError(t, err)
	for _, ci := range classes {
		if ci.Marker == (groupmarker.Marker{Group: 1, IsStart: false}) {
			require.False(t, ci.AnchoredStart)
		}
	}
}

func TestBuildAlternationQuestRepeatDoNotError(t *testing.T) {
	patterns := []string{
		"a|b|c",
		"a?",
		"a??",
		"a{2,4}",
		"a{2,}",
		"a{0,3}",
		".",
		`\bfoo\b`,
		"^abc$",
		"[a-z0-9_]+",
	}
	for _, p := range patterns {
		re := parse(t, p)
		_, err := Build(re, re.MaxCap()+1)
		require.NoError(t, err, "pattern %q", p)
	}
}
