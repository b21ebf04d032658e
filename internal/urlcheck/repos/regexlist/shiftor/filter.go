// Package shiftor implements a bit-parallel 2-gram pre-filter. It answers
// "might any registered pattern occur in this buffer" with no false negatives
// and a tunable, usually small, false-positive rate.
package shiftor

// MaxPatternLen is the number of pattern bytes tracked per registered pattern.
// One state bit per alignment, so it is bounded by the uint32 word.
const MaxPatternLen = 32

const allOnes = ^uint32(0)

// Filter holds the Shift-Or transition masks. A zero bit j in B[q] means the
// 2-gram q may appear at offset j of some pattern; a zero bit j in end[q]
// means a pattern may end with q at offset j. endFast is the same information
// keyed by the final byte only, consulted first because it is 256x smaller.
//
// Registering add("abc") and add("bcd") accepts [ab][bc][cd], which is where
// the false positives come from.
type Filter struct {
	b         [1 << 16]uint32
	end       [1 << 16]uint32
	endFast   [1 << 8]uint32
	acceptAll bool
	patterns  int
}

// New returns an empty filter that rejects everything.
func New() *Filter {
	f := &Filter{}
	f.Reset()
	return f
}

// Reset clears every registered pattern.
func (f *Filter) Reset() {
	for i := range f.b {
		f.b[i] = allOnes
		f.end[i] = allOnes
	}
	for i := range f.endFast {
		f.endFast[i] = allOnes
	}
	f.acceptAll = false
	f.patterns = 0
}

// Add merges pattern into the filter. Only the first MaxPatternLen bytes,
// rounded down to an even length, are indexed. A pattern too short to yield a
// single 2-gram switches the filter to accepting every non-empty buffer.
func (f *Filter) Add(pattern []byte) {
	n := patternLen(len(pattern))
	if len(pattern) > 0 {
		f.patterns++
	}
	if n == 0 {
		if len(pattern) > 0 {
			f.acceptAll = true
		}
		return
	}
	var q uint16
	for j := 0; j < n-1; j++ {
		// overlapping 2-grams, a match can start at any position
		q = gram(pattern, j)
		f.b[q] &^= 1 << j
	}
	// mark that at state n-2 the 2-gram q can end the pattern
	j := n - 2
	f.end[q] &^= 1 << j
	f.endFast[pattern[j+1]] &^= 1 << j
}

// Search returns -1 when no registered pattern can occur in data, otherwise
// a position at most MaxPatternLen bytes before the probable match end.
//
// The whole buffer is scanned: patterns may be found anywhere in it, not only
// inside the first MaxPatternLen bytes.
func (f *Filter) Search(data []byte) int {
	if len(data) == 0 {
		return -1
	}
	if f.acceptAll {
		return 0
	}
	state := allOnes
	for j := 0; j < len(data)-1; j++ {
		q := gram(data, j)
		state = (state << 1) | f.b[q]
		// endFast is checked first so end[] is only touched on likely hits
		if state|f.endFast[data[j+1]] != allOnes && state|f.end[q] != allOnes {
			if j >= MaxPatternLen {
				return j - MaxPatternLen
			}
			return 0
		}
	}
	return -1
}

// Len returns the number of non-empty patterns added.
func (f *Filter) Len() int { return f.patterns }

// AcceptsAll reports whether a too-short pattern disabled filtering.
func (f *Filter) AcceptsAll() bool { return f.acceptAll }

// patternLen cuts the indexed length to MaxPatternLen and makes it even.
func patternLen(n int) int {
	if n > MaxPatternLen {
		return MaxPatternLen
	}
	return n &^ 1
}

// gram reads the little-endian 2-gram starting at b[j].
func gram(b []byte, j int) uint16 {
	return uint16(b[j]) | uint16(b[j+1])<<8
}
