// Package acindex wraps an Aho-Corasick automaton over the reversed rule
// suffixes. Each pattern carries an integer payload (a bucket index in the
// owning rule store); a scan returns the payloads of all patterns present.
package acindex

import (
	"errors"
	"fmt"

	"github.com/cloudflare/ahocorasick"
)

var (
	// ErrEmptyPattern is returned by Add for a zero-length pattern.
	ErrEmptyPattern = errors.New("acindex: empty pattern")
	// ErrFrozen is returned when adding to, or rebuilding, a built index.
	ErrFrozen = errors.New("acindex: index already built")
)

// Index collects patterns until Build, then answers Scan. The zero value is
// ready to use.
type Index struct {
	patterns [][]byte
	payloads []int
	maxLen   int
	m        *ahocorasick.Matcher
	built    bool
}

// Add registers pattern with payload. The pattern bytes are copied.
func (x *Index) Add(pattern []byte, payload int) error {
	if x.built {
		return ErrFrozen
	}
	if len(pattern) == 0 {
		return ErrEmptyPattern
	}
	p := make([]byte, len(pattern))
	copy(p, pattern)
	x.patterns = append(x.patterns, p)
	x.payloads = append(x.payloads, payload)
	if len(p) > x.maxLen {
		x.maxLen = len(p)
	}
	return nil
}

// Build constructs the automaton. An index with no patterns builds
// successfully and never matches.
func (x *Index) Build() (err error) {
	if x.built {
		return ErrFrozen
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("acindex: build failed: %v", r)
		}
	}()
	if len(x.patterns) > 0 {
		x.m = ahocorasick.NewMatcher(x.patterns)
	}
	x.built = true
	return nil
}

// Scan returns the payloads of every pattern occurring in data, in automaton
// discovery order. Each pattern is reported at most once per call. Scan on an
// unbuilt index returns nil. It is safe for concurrent use after Build.
func (x *Index) Scan(data []byte) []int {
	if !x.built || x.m == nil {
		return nil
	}
	hits := x.m.MatchThreadSafe(data)
	if len(hits) == 0 {
		return nil
	}
	out := make([]int, len(hits))
	for i, h := range hits {
		out[i] = x.payloads[h]
	}
	return out
}

// Len returns the number of registered patterns.
func (x *Index) Len() int { return len(x.patterns) }

// MaxPatternLen returns the longest registered pattern length.
func (x *Index) MaxPatternLen() int { return x.maxLen }
