// Package codeunit converts sets of Unicode code points into a trie of
// UTF-8 byte sequences, so the TNFA builder can turn a character class into
// a small DAG of byte-consuming transitions whose accepting edges converge
// on one class target state (§4.2, §4.5 of the design).
package codeunit

import (
	"unicode/utf8"

	"github.com/KromDaniel/retdfa/internal/rangeset"
)

// ByteRange is an inclusive range of raw byte values, one edge label in the
// trie.
type ByteRange struct {
	Lo, Hi byte
}

// Edge is one trie edge: a byte range leading to a continuation Node
// (multi-byte sequences still in progress) and/or directly accepting
// (Leaf) when that byte completes an encoded code point.
type Edge struct {
	Range ByteRange
	Next  *Node
	Leaf  bool
}

// Node is one trie node. Children have pairwise-disjoint Range labels.
type Node struct {
	Edges []Edge
}

// byteLenChunks partitions the valid code point space by UTF-8 encoded
// length, skipping the UTF-16 surrogate gap (those code points have no
// valid UTF-8 encoding).
var byteLenChunks = []struct {
	lo, hi rune
	n      int
}{
	{0x0000, 0x007F, 1},
	{0x0080, 0x07FF, 2},
	{0x0800, 0xD7FF, 3},
	{0xE000, 0xFFFF, 3},
	{0x10000, 0x10FFFF, 4},
}

// BuildTrie builds the byte trie for a canonical code point set.
func BuildTrie(s rangeset.Set) *Node {
	var seqs [][]ByteRange
	for _, r := range s {
		seqs = append(seqs, splitRange(r.Lo, r.Hi)...)
	}
	return buildNode(seqs)
}

// splitRange decomposes a single code point range into byte-sequence
// ranges, one group per UTF-8 encoded length.
func splitRange(lo, hi rune) [][]ByteRange {
	var out [][]ByteRange
	for _, chunk := range byteLenChunks {
		l := maxRune(lo, chunk.lo)
		h := minRune(hi, chunk.hi)
		if l > h {
			continue
		}
		loBytes := encode(l, chunk.n)
		hiBytes := encode(h, chunk.n)
		out = append(out, splitSameLen(loBytes, hiBytes)...)
	}
	return out
}

func encode(r rune, n int) []byte {
	var buf [utf8.UTFMax]byte
	k := utf8.EncodeRune(buf[:], r)
	if k != n {
		// Should not happen: chunk boundaries are exact UTF-8 length classes.
		panic("codeunit: unexpected encoded length")
	}
	cp := make([]byte, n)
	copy(cp, buf[:n])
	return cp
}

// splitSameLen splits the range [start, end] (byte sequences of equal
// length, start <= end lexicographically, both valid encodings within the
// same length class) into the minimal set of per-position byte ranges.
// Standard UTF-8 range-splitting algorithm.
func splitSameLen(start, end []byte) [][]ByteRange {
	n := len(start)
	if n == 1 {
		return [][]ByteRange{{{Lo: start[0], Hi: end[0]}}}
	}
	if start[0] == end[0] {
		subs := splitSameLen(start[1:], end[1:])
		out := make([][]ByteRange, len(subs))
		for i, s := range subs {
			out[i] = append([]ByteRange{{Lo: start[0], Hi: start[0]}}, s...)
		}
		return out
	}

	lowFirst, highFirst := start[0], end[0]
	allMin := make([]byte, n-1)
	allMax := make([]byte, n-1)
	for i := range allMin {
		allMin[i] = 0x80
		allMax[i] = 0xBF
	}

	var out [][]ByteRange
	if !bytesEqual(start[1:], allMin) {
		subs := splitSameLen(start[1:], allMax)
		for _, s := range subs {
			out = append(out, append([]ByteRange{{Lo: start[0], Hi: start[0]}}, s...))
		}
		lowFirst = start[0] + 1
	}
	if !bytesEqual(end[1:], allMax) {
		subs := splitSameLen(allMin, end[1:])
		for _, s := range subs {
			out = append(out, append([]ByteRange{{Lo: end[0], Hi: end[0]}}, s...))
		}
		highFirst = end[0] - 1
	}
	if lowFirst <= highFirst {
		row := make([]ByteRange, 0, n)
		row = append(row, ByteRange{Lo: lowFirst, Hi: highFirst})
		for i := 0; i < n-1; i++ {
			row = append(row, ByteRange{Lo: 0x80, Hi: 0xBF})
		}
		out = append(out, row)
	}
	return out
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func buildNode(seqs [][]ByteRange) *Node {
	if len(seqs) == 0 {
		return nil
	}
	sets := make([]rangeset.Set, len(seqs))
	for i, s := range seqs {
		sets[i] = rangeset.Single(rune(s[0].Lo), rune(s[0].Hi))
	}
	parts, membership := rangeset.DisjointPartition(sets)

	node := &Node{}
	for i, part := range parts {
		edge := Edge{Range: ByteRange{Lo: byte(part.Lo), Hi: byte(part.Hi)}}
		var tails [][]ByteRange
		for _, idx := range membership[i] {
			tail := seqs[idx][1:]
			if len(tail) == 0 {
				edge.Leaf = true
				continue
			}
			tails = append(tails, tail)
		}
		if len(tails) > 0 {
			edge.Next = buildNode(tails)
		}
		node.Edges = append(node.Edges, edge)
	}
	return node
}

func maxRune(a, b rune) rune {
	if a > b {
		return a
	}
	return b
}

func minRune(a, b rune) rune {
	if a < b {
		return a
	}
	return b
}
