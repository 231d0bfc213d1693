// Package frontend realizes the regex AST visitor contract of §4.4 over
// Go's standard regexp/syntax parser (the GO ADAPTATION recorded in
// SPEC_FULL.md: regexp/syntax.Parse supplies the external parser/AST
// collaborator that §6 leaves unspecified). Build walks a *syntax.Regexp
// bottom-up and drives an *tnfa.Builder, threading a `to` continuation
// state through every recursive call so that shared sub-patterns such as
// bounded repetitions can be materialized once per required copy without
// any separate node-sharing machinery.
package frontend

import (
	"regexp/syntax"

	"github.com/pkg/errors"

	"github.com/KromDaniel/retdfa/internal/groupmarker"
	"github.com/KromDaniel/retdfa/internal/rangeset"
	"github.com/KromDaniel/retdfa/internal/tnfa"
)

// maxRune is the highest valid Unicode code point, the upper bound for
// `.` and character-class negation.
const maxRune = 0x10FFFF

// Build compiles a parsed pattern into a TNFA for full matching. numGroups
// is re.MaxCap()+1 (group 0 is the whole match, always present). Marker
// classes may anchor to either input endpoint: a full match is known to
// end exactly at the region end, so trailing fixed-width context pins
// markers without runtime tracking (§4.3).
func Build(re *syntax.Regexp, numGroups int) (*tnfa.TNFA, error) {
	return compile(re, numGroups, false, true)
}

// BuildPrefix compiles a parsed pattern into a TNFA for prefix matching
// (lookingAt/find). End-of-input anchoring is disabled — where a prefix
// match ends is only known at run time (§4.3, §9). wildcardPrefix
// additionally prepends an implicit lazy "consume any prefix" construct
// (§6 "includeWildcardPrefix") so the resulting TDFA scans for the first
// position a match begins rather than requiring the caller to retry at
// every offset. The prefix is wired directly at the TNFA level rather
// than by splicing a synthetic `.*?` onto the AST, because group 0's
// S0/E0 markers must bracket only the real pattern's match, never the
// skipped prefix bytes.
func BuildPrefix(re *syntax.Regexp, numGroups int, wildcardPrefix bool) (*tnfa.TNFA, error) {
	return compile(re, numGroups, wildcardPrefix, false)
}

func compile(re *syntax.Regexp, numGroups int, wildcardPrefix, endAnchors bool) (*tnfa.TNFA, error) {
	if re == nil {
		return nil, errors.New("frontend: nil AST")
	}
	b := tnfa.NewBuilder()
	final := b.NewState()

	startMarker := groupmarker.Marker{Group: 0, IsStart: true}
	endMarker := groupmarker.Marker{Group: 0, IsStart: false}

	eState := b.NewState()
	b.AddGroup(eState, endMarker, final)
	bodyFrom, err := build(b, re, eState)
	if err != nil {
		return nil, err
	}
	sState := b.NewState()
	b.AddGroup(sState, startMarker, bodyFrom)

	var initial tnfa.StateID
	if wildcardPrefix {
		initial = wirePrefix(b, sState)
	} else {
		initial = sState
	}

	zero := 0
	// Behind a wildcard prefix the real match does not begin at the run's
	// start, so no marker may be anchored to it.
	startOffset := &zero
	if wildcardPrefix {
		startOffset = nil
	}
	if err := registerAnchors(b.Groups(), re, startOffset); err != nil {
		return nil, errors.Wrap(err, "frontend: contradictory fixed-distance facts")
	}
	if !wildcardPrefix {
		if err := b.Groups().RecordAnchor(startMarker, 0, true); err != nil {
			return nil, errors.Wrap(err, "frontend: group 0 anchor")
		}
	}
	if endAnchors {
		if err := b.Groups().RecordAnchor(endMarker, 0, false); err != nil {
			return nil, errors.Wrap(err, "frontend: group 0 end anchor")
		}
		if err := registerEndAnchors(b.Groups(), re, &zero); err != nil {
			return nil, errors.Wrap(err, "frontend: contradictory fixed-distance facts")
		}
	}
	if w, ok := fixedWidth(re); ok {
		if err := b.Groups().RecordFixedDistance(startMarker, w, endMarker); err != nil {
			return nil, errors.Wrap(err, "frontend: group 0 fixed distance")
		}
	}
	for g := 0; g < numGroups; g++ {
		b.Groups().AddFresh(groupmarker.Marker{Group: g, IsStart: true})
		b.Groups().AddFresh(groupmarker.Marker{Group: g, IsStart: false})
	}
	b.SetNested(nestedMarkers(re, numGroups))

	return b.Finalize(initial, final)
}

// wirePrefix adds a lazy `(?s:.*?)` loop ahead of realInitial: at the head
// state, PLUS (higher priority) exits straight into the real pattern and
// MINUS consumes one more arbitrary byte and loops, mirroring buildStar's
// lazy-quantifier mirroring (§4.5 "All quantifiers apply the same mirror
// symmetry"). Because PLUS wins ties in epsilon-closure priority (§4.6),
// the construction always prefers starting the real match as early as
// possible, i.e. `find` reports the leftmost match.
func wirePrefix(b *tnfa.Builder, realInitial tnfa.StateID) tnfa.StateID {
	head := b.NewState()
	any := b.NewState()
	b.AddCodeUnitClass(any, rangeset.Of(rangeset.Range{Lo: 0, Hi: maxRune}), head)
	b.AddAlternation(head, realInitial, any)
	return head
}

// build compiles re so that, once state `from` (the return value) is
// reached and re's consumption completes, control continues at `to`.
func build(b *tnfa.Builder, re *syntax.Regexp, to tnfa.StateID) (tnfa.StateID, error) {
	switch re.Op {
	case syntax.OpEmptyMatch:
		return to, nil

	case syntax.OpNoMatch:
		return b.NewState(), nil // dead state: no outgoing transitions

	case syntax.OpLiteral:
		cur := to
		for i := len(re.Rune) - 1; i >= 0; i-- {
			from := b.NewState()
			b.AddCodeUnitClass(from, rangeset.Single(re.Rune[i], re.Rune[i]), cur)
			cur = from
		}
		return cur, nil

	case syntax.OpCharClass:
		from := b.NewState()
		b.AddCodeUnitClass(from, runesToSet(re.Rune), to)
		return from, nil

	case syntax.OpAnyCharNotNL:
		from := b.NewState()
		set := rangeset.Difference(rangeset.Of(rangeset.Range{Lo: 0, Hi: maxRune}), rangeset.Of(rangeset.Range{Lo: '\n', Hi: '\n'}))
		b.AddCodeUnitClass(from, set, to)
		return from, nil

	case syntax.OpAnyChar:
		from := b.NewState()
		b.AddCodeUnitClass(from, rangeset.Of(rangeset.Range{Lo: 0, Hi: maxRune}), to)
		return from, nil

	case syntax.OpBeginLine:
		return addBoundary(b, tnfa.BeginLine, to), nil
	case syntax.OpEndLine:
		return addBoundary(b, tnfa.EndLine, to), nil
	case syntax.OpBeginText:
		return addBoundary(b, tnfa.BeginText, to), nil
	case syntax.OpEndText:
		return addBoundary(b, tnfa.EndText, to), nil
	case syntax.OpWordBoundary:
		return addBoundary(b, tnfa.WordBoundary, to), nil
	case syntax.OpNoWordBoundary:
		return addBoundary(b, tnfa.NoWordBoundary, to), nil

	case syntax.OpCapture:
		return buildCapture(b, re, to)

	case syntax.OpStar:
		return buildStar(b, re, to)
	case syntax.OpPlus:
		return buildPlus(b, re, to)
	case syntax.OpQuest:
		return buildQuest(b, re, to)
	case syntax.OpRepeat:
		return buildRepeat(b, re, to)

	case syntax.OpConcat:
		cur := to
		for i := len(re.Sub) - 1; i >= 0; i-- {
			var err error
			cur, err = build(b, re.Sub[i], cur)
			if err != nil {
				return 0, err
			}
		}
		return cur, nil

	case syntax.OpAlternate:
		return buildAlternate(b, re, to)

	default:
		return 0, errors.Errorf("frontend: unsupported AST operation %v", re.Op)
	}
}

func addBoundary(b *tnfa.Builder, kind tnfa.BoundaryKind, to tnfa.StateID) tnfa.StateID {
	from := b.NewState()
	b.AddBoundary(from, kind, to)
	return from
}

func runesToSet(runePairs []rune) rangeset.Set {
	var ranges []rangeset.Range
	for i := 0; i+1 < len(runePairs); i += 2 {
		ranges = append(ranges, rangeset.Range{Lo: runePairs[i], Hi: runePairs[i+1]})
	}
	return rangeset.Of(ranges...)
}

func buildCapture(b *tnfa.Builder, re *syntax.Regexp, to tnfa.StateID) (tnfa.StateID, error) {
	if re.Cap <= 0 {
		// Should not happen for a well-formed parse (group 0 is handled
		// by Build itself, never as a nested OpCapture node), but fall
		// back to transparent pass-through rather than erroring.
		if len(re.Sub) == 0 {
			return to, nil
		}
		return build(b, re.Sub[0], to)
	}
	endMarker := groupmarker.Marker{Group: re.Cap, IsStart: false}
	startMarker := groupmarker.Marker{Group: re.Cap, IsStart: true}

	eState := b.NewState()
	b.AddGroup(eState, endMarker, to)

	var bodyFrom tnfa.StateID
	var err error
	if len(re.Sub) == 0 {
		bodyFrom = eState
	} else {
		bodyFrom, err = build(b, re.Sub[0], eState)
		if err != nil {
			return 0, err
		}
	}

	sState := b.NewState()
	b.AddGroup(sState, startMarker, bodyFrom)
	return sState, nil
}

func isLazy(re *syntax.Regexp) bool {
	return re.Flags&syntax.NonGreedy != 0
}

// buildStar implements `*`/`*?` (§4.5: "Greedy *: create loop such that
// PLUS goes to the body, MINUS exits. Lazy *?: PLUS exits, MINUS enters
// the body.").
func buildStar(b *tnfa.Builder, re *syntax.Regexp, to tnfa.StateID) (tnfa.StateID, error) {
	head := b.NewState()
	bodyFrom, err := build(b, re.Sub[0], head)
	if err != nil {
		return 0, err
	}
	if isLazy(re) {
		b.AddAlternation(head, to, bodyFrom)
	} else {
		b.AddAlternation(head, bodyFrom, to)
	}
	return head, nil
}

// buildPlus implements `+`/`+?`: one mandatory iteration, then the same
// loop-or-exit choice as Star.
func buildPlus(b *tnfa.Builder, re *syntax.Regexp, to tnfa.StateID) (tnfa.StateID, error) {
	head := b.NewState()
	bodyFrom, err := build(b, re.Sub[0], head)
	if err != nil {
		return 0, err
	}
	if isLazy(re) {
		b.AddAlternation(head, to, bodyFrom)
	} else {
		b.AddAlternation(head, bodyFrom, to)
	}
	return bodyFrom, nil
}

// buildQuest implements `?`/`??`: a single optional occurrence, no loop.
func buildQuest(b *tnfa.Builder, re *syntax.Regexp, to tnfa.StateID) (tnfa.StateID, error) {
	bodyFrom, err := build(b, re.Sub[0], to)
	if err != nil {
		return 0, err
	}
	head := b.NewState()
	if isLazy(re) {
		b.AddAlternation(head, to, bodyFrom)
	} else {
		b.AddAlternation(head, bodyFrom, to)
	}
	return head, nil
}

// buildRepeat implements `{m,n}` by materializing re.Min mandatory copies
// concatenated with either (re.Max - re.Min) nested-optional copies, or,
// when unbounded (re.Max == -1), a trailing Star of the body.
func buildRepeat(b *tnfa.Builder, re *syntax.Regexp, to tnfa.StateID) (tnfa.StateID, error) {
	sub := re.Sub[0]
	cur := to

	if re.Max == -1 {
		starNode := &syntax.Regexp{Op: syntax.OpStar, Flags: re.Flags, Sub: []*syntax.Regexp{sub}}
		var err error
		cur, err = build(b, starNode, to)
		if err != nil {
			return 0, err
		}
		for i := 0; i < re.Min; i++ {
			cur, err = build(b, sub, cur)
			if err != nil {
				return 0, err
			}
		}
		return cur, nil
	}

	for i := 0; i < re.Max-re.Min; i++ {
		bodyFrom, err := build(b, sub, cur)
		if err != nil {
			return 0, err
		}
		head := b.NewState()
		if isLazy(re) {
			b.AddAlternation(head, cur, bodyFrom)
		} else {
			b.AddAlternation(head, bodyFrom, cur)
		}
		cur = head
	}
	for i := 0; i < re.Min; i++ {
		var err error
		cur, err = build(b, sub, cur)
		if err != nil {
			return 0, err
		}
	}
	return cur, nil
}

// buildAlternate implements n-ary alternation by right-folding binary
// choices, preserving the written left-to-right priority order (re.Sub[0]
// is tried first, matching §4.5's visitAlternation(lhs, rhs): PLUS → lhs).
func buildAlternate(b *tnfa.Builder, re *syntax.Regexp, to tnfa.StateID) (tnfa.StateID, error) {
	n := len(re.Sub)
	if n == 0 {
		return to, nil
	}
	cur, err := build(b, re.Sub[n-1], to)
	if err != nil {
		return 0, err
	}
	for i := n - 2; i >= 0; i-- {
		lhsFrom, err := build(b, re.Sub[i], to)
		if err != nil {
			return 0, err
		}
		head := b.NewState()
		b.AddAlternation(head, lhsFrom, cur)
		cur = head
	}
	return cur, nil
}
