package codeunit

import (
	"sort"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"github.com/KromDaniel/retdfa/internal/rangeset"
)

// decodeAll walks every root-to-leaf path in the trie and decodes the
// spelled byte sequence back to a rune, returning the full set of runes
// the trie accepts.
func decodeAll(t *testing.T, n *Node) []rune {
	t.Helper()
	var runes []rune
	var walk func(node *Node, prefix []byte)
	walk = func(node *Node, prefix []byte) {
		if node == nil {
			return
		}
		for _, e := range node.Edges {
			for b := int(e.Range.Lo); b <= int(e.Range.Hi); b++ {
				next := append(append([]byte{}, prefix...), byte(b))
				if e.Leaf {
					r, size := utf8.DecodeRune(next)
					require.NotEqual(t, utf8.RuneError, r, "invalid utf8 sequence decoded: % x", next)
					require.Equal(t, len(next), size)
					runes = append(runes, r)
				}
				if e.Next != nil {
					walk(e.Next, next)
				}
			}
		}
	}
	walk(n, nil)
	return runes
}

func runeSet(rs []rune) []rune {
	sort.Slice(rs, func(i, j int) bool { return rs[i] < rs[j] })
	out := rs[:0]
	var last rune = -1
	for _, r := range rs {
		if r != last {
			out = append(out, r)
			last = r
		}
	}
	return out
}

func TestBuildTrieASCII(t *testing.T) {
	s := rangeset.Of(rangeset.Range{Lo: 'a', Hi: 'c'})
	trie := BuildTrie(s)
	got := runeSet(decodeAll(t, trie))
	require.Equal(t, []rune{'a', 'b', 'c'}, got)
}

func TestBuildTrieMultiByte(t *testing.T) {
	// Spans 1-byte, 2-byte and 3-byte encodings plus a 4-byte code point.
	s := rangeset.Of(
		rangeset.Range{Lo: 'a', Hi: 'a'},
		rangeset.Range{Lo: 0x00E9, Hi: 0x00E9}, // é, 2 bytes
		rangeset.Range{Lo: 0x4E2D, Hi: 0x4E2D}, // 中, 3 bytes
		rangeset.Range{Lo: 0x1F600, Hi: 0x1F600}, // emoji, 4 bytes
	)
	trie := BuildTrie(s)
	got := runeSet(decodeAll(t, trie))
	want := []rune{'a', 0x00E9, 0x4E2D, 0x1F600}
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })
	require.Equal(t, want, got)
}

func TestBuildTrieRangeAcrossSurrogateGap(t *testing.T) {
	s := rangeset.Of(rangeset.Range{Lo: 0xD700, Hi: 0xE010})
	trie := BuildTrie(s)
	got := runeSet(decodeAll(t, trie))
	// Every returned rune must be a valid, in-range code point, and the
	// surrogate range itself must be absent.
	for _, r := range got {
		require.False(t, r >= 0xD800 && r <= 0xDFFF, "surrogate %x leaked into trie", r)
		require.True(t, r >= 0xD700 && r <= 0xE010)
	}
	require.Equal(t, int(0xE010-0xD700+1)-int(0xDFFF-0xD800+1), len(got))
}

func TestSplitRangeProducesSequences(t *testing.T) {
	seqs := splitRange(0x0800, 0xFFFF-0x0800) // arbitrary wide 3-byte-ish range clipped by chunking
	require.NotEmpty(t, seqs)
}
