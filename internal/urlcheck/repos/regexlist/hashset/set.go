// Package hashset is an exact-match set of 16-byte digests (MD5 of URLs).
//
// Lookups go through three gates: a Shift-Or 2-gram filter, a bloom filter
// (after Build), and a Boyer-Moore style block-shift scan over the candidate
// buffer. Each digest carries a one-byte tag returned on a hit.
package hashset

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"

	bitsbloom "github.com/bits-and-blooms/bloom/v3"

	"github.com/haukened/rr-urlcheck/internal/urlcheck/repos/regexlist/shiftor"
)

// SignatureLen is the digest length in bytes.
const SignatureLen = 16

// blockSize is the width of the block hashed for the shift table.
const blockSize = 3

// maxShift is the shift for blocks that do not occur in any signature.
const maxShift = SignatureLen - blockSize + 1

// DefaultFPRate is the bloom false-positive target used by Build.
const DefaultFPRate = 0.001

// ErrBadSignature reports a digest that is not 32 hex digits.
var ErrBadSignature = errors.New("hashset: signature must be 32 hex digits")

// Signature is one 16-byte digest.
type Signature [SignatureLen]byte

// String returns the lowercase hex form.
func (s Signature) String() string { return hex.EncodeToString(s[:]) }

// ParseSignature decodes a 32-digit hex digest.
func ParseSignature(s string) (Signature, error) {
	var sig Signature
	if len(s) != 2*SignatureLen {
		return sig, fmt.Errorf("%w: got %d digits", ErrBadSignature, len(s))
	}
	if _, err := hex.Decode(sig[:], []byte(s)); err != nil {
		return sig, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	return sig, nil
}

type entry struct {
	sig  Signature
	flag byte
}

// Set is a Boyer-Moore set of signatures. The zero value is not usable; call New.
type Set struct {
	shift   []uint8
	buckets map[uint16][]entry
	filter  *shiftor.Filter
	bloom   *bitsbloom.BloomFilter
	fpRate  float64
	count   int
}

// New returns an empty set whose bloom gate targets fpRate once built.
func New(fpRate float64) *Set {
	s := &Set{
		shift:   make([]uint8, 1<<16),
		buckets: make(map[uint16][]entry),
		filter:  shiftor.New(),
		fpRate:  fpRate,
	}
	for i := range s.shift {
		s.shift[i] = maxShift
	}
	return s
}

// blockHash mixes three bytes into the 16-bit shift-table index.
func blockHash(b []byte) uint16 {
	return uint16(211*uint32(b[0]) + 37*uint32(b[1]) + uint32(b[2]))
}

// Add registers sig with its tag byte. When the same signature is added
// twice, the first tag wins on lookup.
func (s *Set) Add(sig Signature, flag byte) {
	for k := 0; k+blockSize <= SignatureLen; k++ {
		h := blockHash(sig[k : k+blockSize])
		d := uint8(SignatureLen - blockSize - k)
		if d < s.shift[h] {
			s.shift[h] = d
		}
	}
	last := blockHash(sig[SignatureLen-blockSize:])
	s.buckets[last] = append(s.buckets[last], entry{sig: sig, flag: flag})
	s.filter.Add(sig[:])
	if s.bloom != nil {
		s.bloom.Add(sig[:])
	}
	s.count++
}

// Build sizes and fills the bloom gate for the signatures added so far.
// Signatures added after Build are added to the bloom gate as well.
func (s *Set) Build() {
	m, k := bloomSize(uint64(s.count), s.fpRate)
	bf := bitsbloom.New(uint(m), uint(k))
	for _, list := range s.buckets {
		for _, e := range list {
			bf.Add(e.sig[:])
		}
	}
	s.bloom = bf
}

// Lookup returns the tag of sig when it is in the set.
func (s *Set) Lookup(sig Signature) (byte, bool) {
	if s.count == 0 {
		return 0, false
	}
	if s.bloom != nil && !s.bloom.Test(sig[:]) {
		return 0, false
	}
	flag, _, ok := s.Scan(sig[:])
	return flag, ok
}

// Scan looks for any registered signature inside data and returns the tag
// and offset of the leftmost one found.
func (s *Set) Scan(data []byte) (byte, int, bool) {
	if s.count == 0 || len(data) < SignatureLen {
		return 0, -1, false
	}
	if s.filter.Search(data) < 0 {
		return 0, -1, false
	}
	for i := 0; i+SignatureLen <= len(data); {
		h := blockHash(data[i+SignatureLen-blockSize : i+SignatureLen])
		step := int(s.shift[h])
		if step == 0 {
			window := data[i : i+SignatureLen]
			for _, e := range s.buckets[h] {
				if bytes.Equal(e.sig[:], window) {
					return e.flag, i, true
				}
			}
			step = 1
		}
		i += step
	}
	return 0, -1, false
}

// Len returns the number of signatures added.
func (s *Set) Len() int { return s.count }
