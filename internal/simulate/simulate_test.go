package simulate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/KromDaniel/retdfa/internal/frontend"
	"github.com/KromDaniel/retdfa/internal/groupmarker"
	"github.com/KromDaniel/retdfa/internal/minimize"
	"github.com/KromDaniel/retdfa/internal/tagopt"
	"github.com/KromDaniel/retdfa/internal/tdfa"
	"github.com/KromDaniel/retdfa/internal/tnfa"

	"regexp/syntax"
)

// buildProgram runs the full compiler pipeline for tests, mirroring what
// pkg/regex.CompileWithOptions does internally.
func buildProgram(t *testing.T, pattern string, mode tdfa.Mode, wildcardPrefix bool) (*tdfa.TDFA, []groupmarker.ClassInfo, int) {
	t.Helper()
	ast, err := syntax.Parse(pattern, syntax.Perl)
	require.NoError(t, err)
	numGroups := ast.MaxCap() + 1

	var n *tnfa.TNFA
	if mode == tdfa.Full {
		n, err = frontend.Build(ast, numGroups)
	} else {
		n, err = frontend.BuildPrefix(ast, numGroups, wildcardPrefix)
	}
	require.NoError(t, err)

	d, err := tdfa.Determinize(n, mode)
	require.NoError(t, err)

	d = tagopt.Optimize(d)
	d = minimize.Minimize(d, false)

	classes, err := d.Groups.FixedClasses(mode == tdfa.Full)
	require.NoError(t, err)

	return d, classes, numGroups
}

func TestRunFullMatchWithCapture(t *testing.T) {
	d, classes, numGroups := buildProgram(t, "a(b*)c", tdfa.Full, false)

	out := make([]int, 2*numGroups)
	ok, err := Run(d, classes, numGroups, []byte("abbbc"), 0, 5, out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []int{0, 5, 1, 4}, out)
}

func TestRunFullMatchEmptyGroup(t *testing.T) {
	d, classes, numGroups := buildProgram(t, "a(b*)c", tdfa.Full, false)

	out := make([]int, 2*numGroups)
	ok, err := Run(d, classes, numGroups, []byte("ac"), 0, 2, out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []int{0, 2, 1, 1}, out)
}

func TestRunFullMatchUnsetGroup(t *testing.T) {
	d, classes, numGroups := buildProgram(t, "(a)|b", tdfa.Full, false)

	out := make([]int, 2*numGroups)
	ok, err := Run(d, classes, numGroups, []byte("b"), 0, 1, out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 0, out[0])
	require.Equal(t, 1, out[1])
	require.Equal(t, -1, out[2])
	require.Equal(t, -1, out[3])
}

func TestRunFullMatchRejectsPartialInput(t *testing.T) {
	d, classes, numGroups := buildProgram(t, "abc", tdfa.Full, false)

	out := make([]int, 2*numGroups)
	ok, err := Run(d, classes, numGroups, []byte("abcd"), 0, 4, out)
	require.NoError(t, err)
	require.False(t, ok)
	for _, v := range out {
		require.Equal(t, -1, v)
	}
}

func TestRunPrefixLookingAtStopsAtAcceptingState(t *testing.T) {
	d, classes, numGroups := buildProgram(t, "a*", tdfa.Prefix, false)

	out := make([]int, 2*numGroups)
	ok, err := Run(d, classes, numGroups, []byte("aaab"), 0, 4, out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 0, out[0])
	require.Equal(t, 3, out[1])
}

func TestRunPrefixWildcardFind(t *testing.T) {
	d, classes, numGroups := buildProgram(t, `\d+`, tdfa.Prefix, true)

	out := make([]int, 2*numGroups)
	ok, err := Run(d, classes, numGroups, []byte("xx123yy"), 0, 7, out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 2, out[0])
	require.Equal(t, 5, out[1])
}

func TestRunRejectsWrongSizedOutputArray(t *testing.T) {
	d, classes, numGroups := buildProgram(t, "a", tdfa.Full, false)

	out := make([]int, 1)
	_, err := Run(d, classes, numGroups, []byte("a"), 0, 1, out)
	require.Error(t, err)
	var ie *InternalError
	require.ErrorAs(t, err, &ie)
}

func TestBoundaryWordBoundary(t *testing.T) {
	d, classes, numGroups := buildProgram(t, `\bfoo\b`, tdfa.Full, false)

	out := make([]int, 2*numGroups)
	ok, err := Run(d, classes, numGroups, []byte("foo"), 0, 3, out)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = Run(d, classes, numGroups, []byte("foobar"), 0, 3, out)
	require.NoError(t, err)
	require.False(t, ok)
}
