package frontend

import (
	"regexp/syntax"
	"unicode/utf8"
)

// fixedWidth returns the exact number of input bytes a match of re always
// consumes, when that number is the same for every possible match (e.g. a
// literal, a single-width character class, a capture of such a thing, or a
// concatenation of such things). Variable-width constructs (Star, Plus,
// Quest, Repeat with Min != Max, or an Alternate whose branches disagree)
// report ok=false: their markers cannot be placed at a compile-time-known
// offset and must be tracked with runtime registers instead.
func fixedWidth(re *syntax.Regexp) (width int, ok bool) {
	if re == nil {
		return 0, true
	}
	switch re.Op {
	case syntax.OpNoMatch:
		return 0, false
	case syntax.OpEmptyMatch,
		syntax.OpBeginLine, syntax.OpEndLine,
		syntax.OpBeginText, syntax.OpEndText,
		syntax.OpWordBoundary, syntax.OpNoWordBoundary:
		return 0, true
	case syntax.OpLiteral:
		total := 0
		for _, r := range re.Rune {
			total += utf8.RuneLen(r)
		}
		return total, true
	case syntax.OpCharClass:
		return fixedWidthCharClass(re)
	case syntax.OpAnyCharNotNL, syntax.OpAnyChar:
		return 0, false // spans 1-4 bytes depending on the matched rune
	case syntax.OpCapture:
		if len(re.Sub) == 0 {
			return 0, true
		}
		return fixedWidth(re.Sub[0])
	case syntax.OpStar, syntax.OpPlus, syntax.OpQuest:
		return 0, false
	case syntax.OpRepeat:
		if re.Min != re.Max || re.Max < 0 {
			return 0, false
		}
		if len(re.Sub) == 0 {
			return 0, true
		}
		w, ok := fixedWidth(re.Sub[0])
		if !ok {
			return 0, false
		}
		return re.Min * w, true
	case syntax.OpConcat:
		total := 0
		for _, sub := range re.Sub {
			w, ok := fixedWidth(sub)
			if !ok {
				return 0, false
			}
			total += w
		}
		return total, true
	case syntax.OpAlternate:
		if len(re.Sub) == 0 {
			return 0, true
		}
		w, ok := fixedWidth(re.Sub[0])
		if !ok {
			return 0, false
		}
		for _, sub := range re.Sub[1:] {
			w2, ok := fixedWidth(sub)
			if !ok || w2 != w {
				return 0, false
			}
		}
		return w, true
	default:
		return 0, false
	}
}

// fixedWidthCharClass reports a fixed width only when every rune in the
// class encodes to the same number of UTF-8 bytes (e.g. [a-z], but not
// [a-\x{10000}]).
func fixedWidthCharClass(re *syntax.Regexp) (int, bool) {
	if len(re.Rune) == 0 {
		return 0, false
	}
	width := -1
	for i := 0; i < len(re.Rune); i += 2 {
		lo, hi := re.Rune[i], re.Rune[i+1]
		loLen, hiLen := utf8.RuneLen(lo), utf8.RuneLen(hi)
		if loLen != hiLen {
			return 0, false
		}
		if width == -1 {
			width = loLen
		} else if width != loLen {
			return 0, false
		}
	}
	return width, true
}
