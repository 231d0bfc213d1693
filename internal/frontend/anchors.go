package frontend

import (
	"regexp/syntax"

	"github.com/KromDaniel/retdfa/internal/groupmarker"
)

// registerAnchors walks the AST top-down, registering fixed-distance facts
// in groups as they become statically knowable (§4.5's "enclosing context
// ... propagated top-down via an auxiliary location"). offset, when
// non-nil, is the number of input bytes between the run's start and the
// point where re begins matching; it is threaded through concatenation
// siblings and invalidated (nil) the moment a variable-width construct is
// crossed. A non-nil error return means the pattern itself is contradictory
// (impossible in practice for facts derived purely from one consistent
// AST, but surfaced rather than ignored).
func registerAnchors(groups *groupmarker.Classes, re *syntax.Regexp, offset *int) error {
	if re == nil {
		return nil
	}
	switch re.Op {
	case syntax.OpCapture:
		if re.Cap <= 0 {
			return nil
		}
		startMarker := groupmarker.Marker{Group: re.Cap, IsStart: true}
		endMarker := groupmarker.Marker{Group: re.Cap, IsStart: false}
		if offset != nil {
			if err := groups.RecordAnchor(startMarker, *offset, true); err != nil {
				return err
			}
		}
		var sub *syntax.Regexp
		if len(re.Sub) > 0 {
			sub = re.Sub[0]
		}
		if w, ok := fixedWidth(sub); ok {
			if err := groups.RecordFixedDistance(startMarker, w, endMarker); err != nil {
				return err
			}
		}
		return registerAnchors(groups, sub, offset)
	case syntax.OpConcat:
		cur := offset
		for _, sub := range re.Sub {
			if err := registerAnchors(groups, sub, cur); err != nil {
				return err
			}
			if cur == nil {
				continue
			}
			if w, ok := fixedWidth(sub); ok {
				next := *cur + w
				cur = &next
			} else {
				cur = nil
			}
		}
		return nil
	default:
		for _, sub := range re.Sub {
			if err := registerAnchors(groups, sub, nil); err != nil {
				return err
			}
		}
		return nil
	}
}

// registerEndAnchors is registerAnchors mirrored: it walks the AST with
// the byte distance between where re's match ends and the pattern's end,
// anchoring group end markers to end-of-input wherever that distance is
// fixed. Only meaningful for full-mode TNFAs, where the match end is the
// region end (§4.3: PREFIX mode must not anchor to end).
func registerEndAnchors(groups *groupmarker.Classes, re *syntax.Regexp, suffix *int) error {
	if re == nil {
		return nil
	}
	switch re.Op {
	case syntax.OpCapture:
		if re.Cap <= 0 {
			return nil
		}
		endMarker := groupmarker.Marker{Group: re.Cap, IsStart: false}
		if suffix != nil {
			if err := groups.RecordAnchor(endMarker, -*suffix, false); err != nil {
				return err
			}
		}
		var sub *syntax.Regexp
		if len(re.Sub) > 0 {
			sub = re.Sub[0]
		}
		return registerEndAnchors(groups, sub, suffix)
	case syntax.OpConcat:
		cur := suffix
		for i := len(re.Sub) - 1; i >= 0; i-- {
			if err := registerEndAnchors(groups, re.Sub[i], cur); err != nil {
				return err
			}
			if cur == nil {
				continue
			}
			if w, ok := fixedWidth(re.Sub[i]); ok {
				next := *cur + w
				cur = &next
			} else {
				cur = nil
			}
		}
		return nil
	default:
		for _, sub := range re.Sub {
			if err := registerEndAnchors(groups, sub, nil); err != nil {
				return err
			}
		}
		return nil
	}
}

// nestedMarkers derives, for every capture group, the markers of the
// groups properly nested inside it. Group 0 contains every other group.
func nestedMarkers(re *syntax.Regexp, numGroups int) map[int][]groupmarker.Marker {
	nested := make(map[int][]groupmarker.Marker)
	for g := 1; g < numGroups; g++ {
		nested[0] = append(nested[0],
			groupmarker.Marker{Group: g, IsStart: true},
			groupmarker.Marker{Group: g, IsStart: false})
	}

	var walk func(re *syntax.Regexp, enclosing []int)
	walk = func(re *syntax.Regexp, enclosing []int) {
		if re == nil {
			return
		}
		if re.Op == syntax.OpCapture && re.Cap > 0 {
			for _, outer := range enclosing {
				nested[outer] = append(nested[outer],
					groupmarker.Marker{Group: re.Cap, IsStart: true},
					groupmarker.Marker{Group: re.Cap, IsStart: false})
			}
			enclosing = append(enclosing, re.Cap)
		}
		for _, sub := range re.Sub {
			walk(sub, enclosing)
		}
	}
	walk(re, nil)
	return nested
}
