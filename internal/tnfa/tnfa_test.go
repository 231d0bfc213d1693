package tnfa

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/KromDaniel/retdfa/internal/groupmarker"
	"github.com/KromDaniel/retdfa/internal/rangeset"
)

func TestAddCodeUnitClassASCII(t *testing.T) {
	b := NewBuilder()
	from := b.NewState()
	to := b.NewState()
	b.AddCodeUnitClass(from, rangeset.Of(rangeset.Range{Lo: 'a', Hi: 'c'}), to)

	n, err := b.Finalize(from, to)
	require.NoError(t, err)
	require.Len(t, n.Trans[from], 1)
	edge := n.Trans[from][0]
	require.Equal(t, KindCodeUnits, edge.Transition.Kind)
	require.Equal(t, to, edge.To)
	require.True(t, edge.Transition.CodeUnits.Contains('a'))
	require.True(t, edge.Transition.CodeUnits.Contains('c'))
	require.False(t, edge.Transition.CodeUnits.Contains('d'))
}

func TestAddCodeUnitClassMultiByte(t *testing.T) {
	b := NewBuilder()
	from := b.NewState()
	to := b.NewState()
	// U+00E9 (é) encodes as 2 UTF-8 bytes, so this must allocate one
	// intermediate state and converge back on `to`.
	b.AddCodeUnitClass(from, rangeset.Of(rangeset.Range{Lo: 0x00E9, Hi: 0x00E9}), to)

	n, err := b.Finalize(from, to)
	require.NoError(t, err)
	require.Len(t, n.Trans[from], 1)
	first := n.Trans[from][0]
	require.Equal(t, KindCodeUnits, first.Transition.Kind)
	require.NotEqual(t, to, first.To) // lands on the intermediate state
	require.Len(t, n.Trans[first.To], 1)
	second := n.Trans[first.To][0]
	require.Equal(t, to, second.To)
}

func TestAddAlternationOrdersMinusBeforePlus(t *testing.T) {
	b := NewBuilder()
	from := b.NewState()
	lhs := b.NewState()
	rhs := b.NewState()
	final := b.NewState()
	b.AddAlternation(from, lhs, rhs)

	n, err := b.Finalize(from, final)
	require.NoError(t, err)
	require.Len(t, n.Trans[from], 2)
	require.Equal(t, Minus, n.Trans[from][0].Transition.Alt)
	require.Equal(t, rhs, n.Trans[from][0].To)
	require.Equal(t, Plus, n.Trans[from][1].Transition.Alt)
	require.Equal(t, lhs, n.Trans[from][1].To)
}

func TestAddGroupAndBoundary(t *testing.T) {
	b := NewBuilder()
	s0 := b.NewState()
	s1 := b.NewState()
	s2 := b.NewState()
	m := groupmarker.Marker{Group: 1, IsStart: true}
	b.AddGroup(s0, m, s1)
	b.AddBoundary(s1, BeginText, s2)

	n, err := b.Finalize(s0, s2)
	require.NoError(t, err)
	require.Equal(t, KindGroup, n.Trans[s0][0].Transition.Kind)
	require.Equal(t, m, n.Trans[s0][0].Transition.Group)
	require.Equal(t, KindBoundary, n.Trans[s1][0].Transition.Kind)
	require.Equal(t, BeginText, n.Trans[s1][0].Transition.Boundary)
}

func TestFinalizeSplitsOverlappingCodeUnitEdges(t *testing.T) {
	b := NewBuilder()
	from := b.NewState()
	toA := b.NewState()
	toB := b.NewState()
	// Two overlapping single-byte ranges from the same state, targeting
	// different states: must become disjoint parts, each retargeted to
	// every original edge whose range contained it.
	b.addEdge(from, codeUnitsTransition(rangeset.Of(rangeset.Range{Lo: 'a', Hi: 'm'})), toA)
	b.addEdge(from, codeUnitsTransition(rangeset.Of(rangeset.Range{Lo: 'g', Hi: 'z'})), toB)

	n, err := b.Finalize(from, toB)
	require.NoError(t, err)

	var sawOverlap bool
	for _, e := range n.Trans[from] {
		if e.Transition.CodeUnits.Contains('g') && e.Transition.CodeUnits.Contains('h') {
			sawOverlap = true
		}
		require.False(t, e.Transition.CodeUnits.Contains('a') && e.Transition.CodeUnits.Contains('z'),
			"a single part must not span the full original overlap region")
	}
	require.True(t, sawOverlap)
}
