package rangeset

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOfMergesOverlappingAndAdjacent(t *testing.T) {
	s := Of(Range{0, 5}, Range{6, 10}, Range{20, 25}, Range{3, 7})
	require.Equal(t, Set{{0, 10}, {20, 25}}, s)
}

func TestContains(t *testing.T) {
	s := Of(Range{'a', 'z'}, Range{'0', '9'})
	require.True(t, s.Contains('m'))
	require.True(t, s.Contains('5'))
	require.False(t, s.Contains('A'))
}

func TestUnionIntersectionDifference(t *testing.T) {
	a := Of(Range{0, 10})
	b := Of(Range{5, 15})

	require.Equal(t, Set{{0, 15}}, Union(a, b))
	require.Equal(t, Set{{5, 10}}, Intersection(a, b))
	require.Equal(t, Set{{0, 4}}, Difference(a, b))
	require.Equal(t, Set{{11, 15}}, Difference(b, a))
}

func TestNegate(t *testing.T) {
	s := Of(Range{'b', 'd'})
	neg := Negate(s, 'a', 'z')
	require.Equal(t, Set{{'a', 'a'}, {'e', 'z'}}, neg)
}

func TestDisjointPartition(t *testing.T) {
	word := Of(Range{'0', '9'}, Range{'A', 'Z'}, Range{'_', '_'}, Range{'a', 'z'})
	digit := Of(Range{'0', '9'})

	parts, membership := DisjointPartition([]Set{word, digit})
	require.NotEmpty(t, parts)

	// Every part must be a subset of exactly the sets that contain its
	// first code point, and parts must tile the union without overlap.
	for i, p := range parts {
		for _, memberIdx := range membership[i] {
			var s Set
			if memberIdx == 0 {
				s = word
			} else {
				s = digit
			}
			require.True(t, s.Contains(p.Lo))
			require.True(t, s.Contains(p.Hi))
		}
	}
	for i := 1; i < len(parts); i++ {
		require.Less(t, parts[i-1].Hi, parts[i].Lo)
	}
}

func TestDisjointPartitionEmpty(t *testing.T) {
	parts, membership := DisjointPartition(nil)
	require.Nil(t, parts)
	require.Nil(t, membership)
}
