package regexlist

import (
	"strings"

	"github.com/haukened/rr-urlcheck/internal/urlcheck/common/utils"
	"github.com/haukened/rr-urlcheck/internal/urlcheck/domain"
)

// Match classifies a (real, display) pair. With hostOnly on a blacklist only
// the real slot is examined. It is safe for concurrent use on a Built matcher.
func (m *Matcher) Match(realURL, displayURL string, pre *domain.PreFixup, hostOnly bool, p domain.Polarity) (domain.Result, error) {
	if m.state != domain.StateBuilt {
		m.lg().Debug(map[string]any{"state": m.state.String()}, "regex_list_match_not_built")
		return domain.NoMatchResult(), nil
	}
	real := strings.TrimPrefix(realURL, ".")
	display := strings.TrimPrefix(displayURL, ".")
	hostOnlyBlack := hostOnly && p == domain.Blacklist

	n := len(real) + 1
	if !hostOnlyBlack {
		n += len(display) + 1
	}
	if n < 3 {
		return domain.NoMatchResult(), nil
	}
	if n > m.opts.MaxQueryLen {
		m.lg().Warn(map[string]any{"len": n, "max": m.opts.MaxQueryLen}, "regex_list_query_too_long")
		return domain.NoMatchResult(), domain.ErrOutOfMemory
	}

	buf := make([]byte, 0, n)
	buf = append(buf, real...)
	if !hostOnlyBlack {
		buf = append(buf, ':')
		buf = append(buf, display...)
	}
	buf = append(buf, '/')

	rev := append(make([]byte, 0, n), buf...)
	utils.ReverseBytes(rev)
	if m.filter.Search(rev) < 0 {
		return domain.NoMatchResult(), nil
	}

	for _, bi := range m.index.Scan(rev) {
		for _, r := range m.buckets[bi].rules {
			switch r.kind {
			case ruleRegex:
				if m.regexes[r.re].Match(buf) {
					m.lg().Debug(map[string]any{"pattern": r.pattern}, "regex_list_match")
					return domain.Result{Verdict: domain.Match, Pattern: r.pattern}, nil
				}
			case ruleStatic:
				if start, ok := validateSubdomain(r.pattern, pre, buf); ok {
					m.lg().Debug(map[string]any{"pattern": r.pattern}, "regex_list_match")
					return domain.Result{
						Verdict:      domain.Match,
						Pattern:      r.pattern,
						RewrittenURL: dotRewrite(real, r.pattern, start),
					}, nil
				}
				m.lg().Debug(map[string]any{"pattern": r.pattern}, "regex_list_false_match")
			}
		}
	}
	return domain.NoMatchResult(), nil
}
