// Package suffix derives index keys from regular expressions: fixed byte
// strings such that every match of the expression ends with one of them.
package suffix

import (
	"errors"
	"regexp/syntax"
	"strings"
	"unicode"
)

// MaxAlternatives caps how many distinct suffixes one expression may expand
// into. Past the cap the walk stops extending and keeps what it has proven.
const MaxAlternatives = 64

// maxClassSize is the largest character class expanded into single-char suffixes.
const maxClassSize = 8

// ErrNoSuffix is returned when no non-empty suffix can be proven.
var ErrNoSuffix = errors.New("suffix: expression has no fixed suffix")

// info describes the tail of a sub-expression.
//
// exact: every string the node matches is listed in set.
// otherwise: every string the node matches ends with some element of set.
// An element "" carries no information.
type info struct {
	set   []string
	exact bool
}

var unknown = info{set: []string{""}}

// Extract parses pattern with Perl syntax flags and reports its suffixes.
func Extract(pattern string, fn func(suffix []byte) error) error {
	re, err := syntax.Parse(pattern, syntax.Perl)
	if err != nil {
		return err
	}
	return ExtractRegexp(re, fn)
}

// ExtractRegexp calls fn once per suffix of re, in a stable order. The set is
// minimal: no reported suffix ends with another reported one.
func ExtractRegexp(re *syntax.Regexp, fn func(suffix []byte) error) error {
	in := walk(re.Simplify())
	set := minimize(in.set)
	if len(set) == 0 {
		return ErrNoSuffix
	}
	for _, s := range set {
		if err := fn([]byte(s)); err != nil {
			return err
		}
	}
	return nil
}

func walk(re *syntax.Regexp) info {
	switch re.Op {
	case syntax.OpEmptyMatch, syntax.OpBeginLine, syntax.OpEndLine,
		syntax.OpBeginText, syntax.OpEndText, syntax.OpWordBoundary, syntax.OpNoWordBoundary:
		return info{set: []string{""}, exact: true}
	case syntax.OpLiteral:
		return literal(re)
	case syntax.OpCharClass:
		return charClass(re)
	case syntax.OpCapture:
		return walk(re.Sub[0])
	case syntax.OpQuest:
		sub := walk(re.Sub[0])
		if !sub.exact {
			return unknown
		}
		return info{set: union(sub.set, []string{""}), exact: true}
	case syntax.OpPlus:
		sub := walk(re.Sub[0])
		return info{set: sub.set}
	case syntax.OpAlternate:
		return alternate(re.Sub)
	case syntax.OpConcat:
		return concat(re.Sub)
	default:
		// OpStar, OpAnyChar, OpAnyCharNotNL, OpRepeat, OpNoMatch
		return unknown
	}
}

// literal keeps case-folded runes out of the set: only the tail of runes
// without case variants is fixed.
func literal(re *syntax.Regexp) info {
	if re.Flags&syntax.FoldCase == 0 {
		return info{set: []string{string(re.Rune)}, exact: true}
	}
	i := len(re.Rune)
	for i > 0 && unicode.SimpleFold(re.Rune[i-1]) == re.Rune[i-1] {
		i--
	}
	if i == 0 {
		return info{set: []string{string(re.Rune)}, exact: true}
	}
	return info{set: []string{string(re.Rune[i:])}}
}

func charClass(re *syntax.Regexp) info {
	if re.Flags&syntax.FoldCase != 0 {
		return unknown
	}
	var set []string
	for i := 0; i+1 < len(re.Rune); i += 2 {
		lo, hi := re.Rune[i], re.Rune[i+1]
		if int(hi-lo)+1+len(set) > maxClassSize {
			return unknown
		}
		for r := lo; r <= hi; r++ {
			set = append(set, string(r))
		}
	}
	if len(set) == 0 {
		return unknown
	}
	return info{set: set, exact: true}
}

func alternate(subs []*syntax.Regexp) info {
	out := info{exact: true}
	for _, s := range subs {
		si := walk(s)
		if !si.exact {
			out.exact = false
		}
		out.set = union(out.set, si.set)
		if len(out.set) > MaxAlternatives {
			return unknown
		}
	}
	return out
}

// concat walks right to left, prepending exact parts to the running suffix
// set until a part is not exact or the product grows past MaxAlternatives.
func concat(subs []*syntax.Regexp) info {
	if len(subs) == 0 {
		return info{set: []string{""}, exact: true}
	}
	cur := walk(subs[len(subs)-1])
	for i := len(subs) - 2; i >= 0; i-- {
		if !cur.exact {
			return cur
		}
		prev := walk(subs[i])
		if len(prev.set)*len(cur.set) > MaxAlternatives {
			return info{set: cur.set}
		}
		cur = info{set: product(prev.set, cur.set), exact: prev.exact}
	}
	return cur
}

func product(left, right []string) []string {
	out := make([]string, 0, len(left)*len(right))
	for _, l := range left {
		for _, r := range right {
			out = append(out, l+r)
		}
	}
	return union(nil, out)
}

// union appends the elements of b missing from a, keeping first-seen order.
func union(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// minimize drops every suffix that ends with a shorter one in the set.
// A set holding "" has no usable suffix at all.
func minimize(set []string) []string {
	out := make([]string, 0, len(set))
	for i, s := range set {
		if s == "" {
			return nil
		}
		covered := false
		for j, t := range set {
			if i == j || len(t) > len(s) || t == "" {
				continue
			}
			if strings.HasSuffix(s, t) && (len(t) < len(s) || j < i) {
				covered = true
				break
			}
		}
		if !covered {
			out = append(out, s)
		}
	}
	return out
}
