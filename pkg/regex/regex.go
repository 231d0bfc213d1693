// Package regex is the external interface of the engine (§6): Compile
// turns a pattern into a Matcher; Matcher exposes Match/LookingAt/Find
// (each as a String/Bytes pair, per SPEC_FULL.md's "byte and string dual
// surface"), FindAll, and ReplaceAll. Everything underneath — TNFA
// construction, determinization, tag-command optimization, minimization,
// simulation — is a private, one-shot construction pipeline; the compiled
// Matcher is immutable and safe for concurrent use by multiple goroutines
// (§5).
package regex

import (
	"bytes"
	"fmt"
	"regexp/syntax"

	"github.com/pkg/errors"

	"github.com/KromDaniel/retdfa/internal/frontend"
	"github.com/KromDaniel/retdfa/internal/groupmarker"
	"github.com/KromDaniel/retdfa/internal/minimize"
	"github.com/KromDaniel/retdfa/internal/rlog"
	"github.com/KromDaniel/retdfa/internal/simulate"
	"github.com/KromDaniel/retdfa/internal/tagopt"
	"github.com/KromDaniel/retdfa/internal/tdfa"
	"github.com/KromDaniel/retdfa/internal/tnfa"
)

// compiled pairs one determinized, optimized, minimized TDFA with the
// fixed-distance class analysis needed to reconstruct every group at
// accept time.
type compiled struct {
	tdfa    *tdfa.TDFA
	classes []groupmarker.ClassInfo
}

// Matcher is a compiled pattern (§3 "TDFA is immutable after
// minimization"). It holds three TDFAs built off one parsed AST: FULL for
// Match, PREFIX without a wildcard prefix for LookingAt, and PREFIX with
// the wildcard prefix for Find.
type Matcher struct {
	pattern    string
	groupCount int
	full       *compiled
	lookingAt  *compiled
	find       *compiled
	logger     *rlog.Logger
}

// Compile builds a Matcher from pattern using default options.
func Compile(pattern string) (*Matcher, error) {
	return CompileWithOptions(pattern, CompileOptions{})
}

// CompileWithOptions builds a Matcher from pattern (§6 "Compile"). It
// fails with a *PatternSyntaxError if the pattern is ill-formed, a
// *GroupClassContradictionError if capture-group placement is internally
// inconsistent, or a *FeatureUnsupportedError if opts.MaxTDFAStates is
// exceeded.
func CompileWithOptions(pattern string, opts CompileOptions) (*Matcher, error) {
	logger := rlog.New(opts.Verbose)

	ast, err := syntax.Parse(pattern, syntax.Perl)
	if err != nil {
		return nil, &PatternSyntaxError{Pattern: pattern, Cause: err}
	}
	ast = ast.Simplify()
	numGroups := ast.MaxCap() + 1
	logger.Log("parsed %q: %d capture groups", pattern, numGroups-1)

	full, err := buildProgram(ast, numGroups, tdfa.Full, false, opts, logger)
	if err != nil {
		return nil, err
	}
	lookingAt, err := buildProgram(ast, numGroups, tdfa.Prefix, false, opts, logger)
	if err != nil {
		return nil, err
	}
	find, err := buildProgram(ast, numGroups, tdfa.Prefix, true, opts, logger)
	if err != nil {
		return nil, err
	}

	return &Matcher{
		pattern:    pattern,
		groupCount: numGroups,
		full:       full,
		lookingAt:  lookingAt,
		find:       find,
		logger:     logger,
	}, nil
}

// buildProgram realizes the §2 pipeline for one mode: TNFA construction
// (§4.5), determinization (§4.7), tag-command optimization (§4.8),
// minimization (§4.9), and the fixed-distance class analysis (§4.3) the
// simulator needs at accept time.
func buildProgram(ast *syntax.Regexp, numGroups int, mode tdfa.Mode, wildcardPrefix bool, opts CompileOptions, logger *rlog.Logger) (*compiled, error) {
	var n *tnfa.TNFA
	var err error
	if mode == tdfa.Full {
		n, err = frontend.Build(ast, numGroups)
	} else {
		n, err = frontend.BuildPrefix(ast, numGroups, wildcardPrefix)
	}
	if err != nil {
		var ce *groupmarker.ContradictionError
		if errors.As(err, &ce) {
			return nil, &GroupClassContradictionError{Cause: ce}
		}
		return nil, errors.Wrap(err, "regex: TNFA construction")
	}
	logger.Log("TNFA: %d states", len(n.Trans))

	d, err := tdfa.Determinize(n, mode)
	if err != nil {
		var ce *groupmarker.ContradictionError
		if errors.As(err, &ce) {
			return nil, &GroupClassContradictionError{Cause: ce}
		}
		return nil, errors.Wrap(err, "regex: determinization")
	}
	logger.Log("TDFA: %d states before optimization", len(d.States))

	if opts.MaxTDFAStates > 0 && len(d.States) > opts.MaxTDFAStates {
		return nil, &FeatureUnsupportedError{
			Feature: fmt.Sprintf("pattern determinizes to %d TDFA states, exceeding the configured ceiling of %d", len(d.States), opts.MaxTDFAStates),
		}
	}

	d = tagopt.Optimize(d)
	d = minimize.Minimize(d, false)
	logger.Log("TDFA: %d states after tag-command optimization and minimization", len(d.States))

	classes, err := d.Groups.FixedClasses(mode == tdfa.Full)
	if err != nil {
		return nil, errors.Wrap(err, "regex: fixed-distance class analysis")
	}

	return &compiled{tdfa: d, classes: classes}, nil
}

// Pattern returns the source pattern the Matcher was compiled from.
func (m *Matcher) Pattern() string { return m.pattern }

// String implements fmt.Stringer, returning the source pattern.
func (m *Matcher) String() string { return m.pattern }

// GroupCount returns the number of capture groups, including group 0.
func (m *Matcher) GroupCount() int { return m.groupCount }

func (m *Matcher) run(c *compiled, input []byte, start, end int) (*MatchResult, bool, error) {
	out := make([]int, 2*m.groupCount)
	ok, err := simulate.Run(c.tdfa, c.classes, m.groupCount, input, start, end, out)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return &MatchResult{input: input, groups: out}, true, nil
}

// MatchBytes reports whether input fully matches the pattern (§6 "match
// uses a FULL-mode TDFA").
func (m *Matcher) MatchBytes(input []byte) (*MatchResult, bool, error) {
	return m.run(m.full, input, 0, len(input))
}

// MatchString is MatchBytes over a string's bytes.
func (m *Matcher) MatchString(s string) (*MatchResult, bool, error) {
	return m.MatchBytes([]byte(s))
}

// LookingAtBytes reports whether some prefix of input, starting at byte
// 0, matches the pattern (§6 "lookingAt ... use[s] PREFIX-mode TDFAs").
func (m *Matcher) LookingAtBytes(input []byte) (*MatchResult, bool, error) {
	return m.run(m.lookingAt, input, 0, len(input))
}

// LookingAtString is LookingAtBytes over a string's bytes.
func (m *Matcher) LookingAtString(s string) (*MatchResult, bool, error) {
	return m.LookingAtBytes([]byte(s))
}

// FindBytes returns the first match anywhere in input (§6 "find", via the
// PREFIX-mode-with-wildcard-prefix TDFA, so a single scan suffices — no
// need to retry LookingAt at every offset).
func (m *Matcher) FindBytes(input []byte) (*MatchResult, bool, error) {
	return m.FindBytesFrom(input, 0)
}

// FindString is FindBytes over a string's bytes.
func (m *Matcher) FindString(s string) (*MatchResult, bool, error) {
	return m.FindBytesFrom([]byte(s), 0)
}

// FindBytesFrom is FindBytes restricted to input[from:], reported with
// offsets relative to the whole of input.
func (m *Matcher) FindBytesFrom(input []byte, from int) (*MatchResult, bool, error) {
	return m.run(m.find, input, from, len(input))
}

// FindAllBytes returns every non-overlapping match in input, left to
// right (§6 "Replace-all" / SPEC_FULL.md's "FindAll" companion to it). An
// empty match advances by one byte before the next search, so a pattern
// that can match empty (e.g. `a*`) still terminates.
func (m *Matcher) FindAllBytes(input []byte) ([]*MatchResult, error) {
	var out []*MatchResult
	for pos := 0; pos <= len(input); {
		res, ok, err := m.FindBytesFrom(input, pos)
		if err != nil {
			return out, err
		}
		if !ok {
			break
		}
		out = append(out, res)
		if res.End0() == res.Start0() {
			pos = res.End0() + 1
		} else {
			pos = res.End0()
		}
	}
	return out, nil
}

// FindAllString is FindAllBytes over a string's bytes.
func (m *Matcher) FindAllString(s string) ([]*MatchResult, error) {
	return m.FindAllBytes([]byte(s))
}

// ReplaceAllBytes splices replacement literally in place of every match
// FindAllBytes reports (§6 "Replace-all": "no dollar substitution in this
// core").
func (m *Matcher) ReplaceAllBytes(input, replacement []byte) ([]byte, error) {
	matches, err := m.FindAllBytes(input)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		out := make([]byte, len(input))
		copy(out, input)
		return out, nil
	}
	var buf bytes.Buffer
	prev := 0
	for _, r := range matches {
		buf.Write(input[prev:r.Start0()])
		buf.Write(replacement)
		prev = r.End0()
	}
	buf.Write(input[prev:])
	return buf.Bytes(), nil
}

// ReplaceAllString is ReplaceAllBytes over strings.
func (m *Matcher) ReplaceAllString(s, replacement string) (string, error) {
	out, err := m.ReplaceAllBytes([]byte(s), []byte(replacement))
	if err != nil {
		return "", err
	}
	return string(out), nil
}
