// Package regexlist classifies (real URL, display URL) pairs against a rule
// database of host regexes, static host patterns and URL digests.
//
// A query runs a cascade: a shift-or filter over the reversed canonical
// buffer rejects most inputs, an Aho-Corasick scan over reversed rule
// suffixes yields candidate buckets, and each candidate rule is confirmed
// either by its regular expression or by a subdomain-boundary check.
//
// Lifecycle: New (Inited) -> Load, one or more times (Loaded) -> Build
// (Built) -> any number of concurrent Match calls -> Close. A load error moves
// the matcher to Failed, after which it refuses further loads.
package regexlist

import (
	"crypto/md5"
	"fmt"
	"regexp"

	"github.com/armon/go-radix"

	"github.com/haukened/rr-urlcheck/internal/urlcheck/common/log"
	"github.com/haukened/rr-urlcheck/internal/urlcheck/domain"
	"github.com/haukened/rr-urlcheck/internal/urlcheck/repos/regexlist/acindex"
	"github.com/haukened/rr-urlcheck/internal/urlcheck/repos/regexlist/hashset"
	"github.com/haukened/rr-urlcheck/internal/urlcheck/repos/regexlist/shiftor"
)

const (
	// MaxLineLen is the longest database line accepted, terminator excluded.
	MaxLineLen = 8192
	// DefaultMaxQueryLen bounds the canonical query buffer.
	DefaultMaxQueryLen = 1 << 16
)

// Options configures a Matcher.
type Options struct {
	// Name labels log events, e.g. "whitelist".
	Name string
	// Logger defaults to the global logger.
	Logger log.Logger
	// FunctionalityLevel gates database lines carrying a min-max range.
	FunctionalityLevel uint
	// MaxQueryLen caps the query buffer; larger queries fail with
	// domain.ErrOutOfMemory. Zero means DefaultMaxQueryLen.
	MaxQueryLen int
	// HashFPRate is the bloom false-positive target of the digest set.
	// Zero means hashset.DefaultFPRate.
	HashFPRate float64
}

// Stats reports the size of a matcher.
type Stats struct {
	State            domain.MatcherState
	Rules            int // regex and static lines loaded
	Suffixes         int // distinct suffix keys
	Regexes          int
	Hashes           int
	LongestSuffix    int
	FilterAcceptsAll bool
}

// Matcher is the rule database root. It owns every compiled expression,
// bucket, automaton and filter table. The zero value is Uninit; Load
// initializes it lazily.
type Matcher struct {
	opts   Options
	logger log.Logger
	state  domain.MatcherState

	filter *shiftor.Filter
	index  *acindex.Index
	hashes *hashset.Set

	// suffixKeys maps reversed suffix -> bucket index while loading; nil once built.
	suffixKeys *radix.Tree
	buckets    []bucket
	regexes    []*regexp.Regexp
	rules      int
}

// New returns an initialized, empty matcher.
func New(opts Options) *Matcher {
	m := &Matcher{opts: opts}
	m.init()
	return m
}

func (m *Matcher) init() {
	if m.opts.MaxQueryLen <= 0 {
		m.opts.MaxQueryLen = DefaultMaxQueryLen
	}
	if m.opts.HashFPRate <= 0 {
		m.opts.HashFPRate = hashset.DefaultFPRate
	}
	base := m.opts.Logger
	if base == nil {
		base = log.GetLogger()
	}
	m.logger = base.With(map[string]any{"component": "regex_list", "list": m.opts.Name})
	m.filter = shiftor.New()
	m.index = &acindex.Index{}
	m.hashes = hashset.New(m.opts.HashFPRate)
	m.suffixKeys = radix.New()
	m.buckets = nil
	m.regexes = nil
	m.rules = 0
	m.state = domain.StateInited
}

// lg returns the matcher logger. A zero Matcher logs through the global one.
func (m *Matcher) lg() log.Logger {
	if m.logger == nil {
		return log.GetLogger()
	}
	return m.logger
}

// Build freezes the indexes. It requires a Loaded matcher.
func (m *Matcher) Build() error {
	switch m.state {
	case domain.StateBuilt:
		return domain.ErrAlreadyBuilt
	case domain.StateFailed:
		return fmt.Errorf("%w: list previously failed to load", domain.ErrMalformedDB)
	case domain.StateUninit, domain.StateInited:
		m.lg().Error(map[string]any{"state": m.state.String()}, "regex_list_not_loaded")
		return domain.ErrNotLoaded
	}
	m.suffixKeys = nil
	if err := m.index.Build(); err != nil {
		return m.fail(err)
	}
	m.hashes.Build()
	m.state = domain.StateBuilt
	st := m.Stats()
	m.lg().Info(map[string]any{
		"rules":    st.Rules,
		"suffixes": st.Suffixes,
		"regexes":  st.Regexes,
		"hashes":   st.Hashes,
	}, "regex_list_built")
	return nil
}

// Close releases every owned resource and returns the matcher to Uninit.
// It is safe to call more than once.
func (m *Matcher) Close() error {
	m.teardown()
	m.state = domain.StateUninit
	return nil
}

// teardown drops buckets first (they reference regexes), then regexes, then
// the digest set and filter tables.
func (m *Matcher) teardown() {
	m.buckets = nil
	m.suffixKeys = nil
	m.index = nil
	m.regexes = nil
	m.hashes = nil
	m.filter = nil
	m.rules = 0
}

// fail tears down partial state and moves to the Failed sink. Callers such
// as the phishing check disable themselves when a list reports !IsOK.
func (m *Matcher) fail(err error) error {
	m.teardown()
	m.state = domain.StateFailed
	m.lg().Error(map[string]any{"error": err.Error()}, "regex_list_failed")
	return err
}

// IsOK reports whether the matcher has not failed.
func (m *Matcher) IsOK() bool { return m.state != domain.StateFailed }

// State returns the lifecycle state.
func (m *Matcher) State() domain.MatcherState { return m.state }

// Stats returns current counts.
func (m *Matcher) Stats() Stats {
	st := Stats{State: m.state, Rules: m.rules, Suffixes: len(m.buckets), Regexes: len(m.regexes)}
	if m.hashes != nil {
		st.Hashes = m.hashes.Len()
	}
	if m.index != nil {
		st.LongestSuffix = m.index.MaxPatternLen()
	}
	if m.filter != nil {
		st.FilterAcceptsAll = m.filter.AcceptsAll()
	}
	return st
}

// MatchHash looks a digest up in the URL hash list.
func (m *Matcher) MatchHash(sig hashset.Signature) (domain.Result, error) {
	if m.state != domain.StateBuilt {
		m.lg().Debug(map[string]any{"state": m.state.String()}, "regex_list_match_not_built")
		return domain.NoMatchResult(), nil
	}
	flag, ok := m.hashes.Lookup(sig)
	if !ok {
		return domain.NoMatchResult(), nil
	}
	return domain.Result{Verdict: domain.Match, Pattern: sig.String(), Flag: flag}, nil
}

// MatchURLHash looks up the MD5 digest of url.
func (m *Matcher) MatchURLHash(url string) (domain.Result, error) {
	return m.MatchHash(md5.Sum([]byte(url)))
}
