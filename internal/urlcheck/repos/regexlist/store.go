package regexlist

import (
	"fmt"
	"regexp"

	"github.com/haukened/rr-urlcheck/internal/urlcheck/domain"
)

// ruleKind tags the two ways a candidate rule is validated.
type ruleKind uint8

const (
	// ruleRegex runs the compiled expression against the forward buffer.
	ruleRegex ruleKind = iota
	// ruleStatic checks the literal for a subdomain boundary.
	ruleStatic
)

// rule is one classifier entry. re indexes Matcher.regexes for ruleRegex and
// is -1 for ruleStatic.
type rule struct {
	kind    ruleKind
	pattern string
	re      int
}

// bucket is the ordered list of rules sharing one suffix key. Earlier rules
// are tried first.
type bucket struct {
	rules []rule
}

// addRegex appends re to the arena and returns its index. Entries are never
// moved or removed until teardown.
func (m *Matcher) addRegex(re *regexp.Regexp) int {
	m.regexes = append(m.regexes, re)
	return len(m.regexes) - 1
}

// addPatternSuffix files r under the reversed suffix rev. A new suffix gets a
// bucket, an automaton pattern, and an entry in the shift-or filter.
func (m *Matcher) addPatternSuffix(rev []byte, r rule) error {
	key := string(rev)
	if v, ok := m.suffixKeys.Get(key); ok {
		idx := v.(int)
		m.buckets[idx].rules = append(m.buckets[idx].rules, r)
		m.lg().Debug(map[string]any{"suffix": key, "pattern": r.pattern, "bucket": idx}, "regex_list_suffix_existing")
		return nil
	}
	idx := len(m.buckets)
	if err := m.index.Add(rev, idx); err != nil {
		return fmt.Errorf("%w: suffix %q: %v", domain.ErrMalformedDB, key, err)
	}
	m.buckets = append(m.buckets, bucket{rules: []rule{r}})
	m.suffixKeys.Insert(key, idx)
	m.filter.Add(rev)
	m.lg().Debug(map[string]any{"suffix": key, "pattern": r.pattern, "bucket": idx}, "regex_list_suffix_new")
	return nil
}
