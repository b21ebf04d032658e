package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RuleKind identifies how a database line is interpreted. The kind is chosen by
// the first letter of the line and must agree with the polarity of the list
// being loaded.
type RuleKind uint8

const (
	// RuleHostRegex (R) is a blacklist regex over the host portion.
	RuleHostRegex RuleKind = iota
	// RuleHostStatic (H) is a blacklist literal matched against the displayed host.
	RuleHostStatic
	// RuleURLHash (U) is a blacklist MD5 digest with a trailing flag byte.
	RuleURLHash
	// RuleURLRegex (X) is a whitelist regex over the full real:display URL pair.
	RuleURLRegex
	// RuleWhiteHostRegex (Y) is a whitelist regex over the host.
	RuleWhiteHostRegex
	// RuleWhiteStatic (M) is a whitelist literal.
	RuleWhiteStatic
)

var ruleLetters = [...]byte{'R', 'H', 'U', 'X', 'Y', 'M'}

// String returns a stable string representation of the rule kind.
func (k RuleKind) String() string {
	switch k {
	case RuleHostRegex:
		return "host_regex"
	case RuleHostStatic:
		return "host_static"
	case RuleURLHash:
		return "url_hash"
	case RuleURLRegex:
		return "url_regex"
	case RuleWhiteHostRegex:
		return "white_host_regex"
	case RuleWhiteStatic:
		return "white_static"
	default:
		return fmt.Sprintf("RuleKind(%d)", k)
	}
}

// Letter returns the database letter for the kind.
func (k RuleKind) Letter() byte {
	if int(k) < len(ruleLetters) {
		return ruleLetters[k]
	}
	return '?'
}

// Polarity returns the list the kind belongs to.
func (k RuleKind) Polarity() Polarity {
	switch k {
	case RuleURLRegex, RuleWhiteHostRegex, RuleWhiteStatic:
		return Whitelist
	default:
		return Blacklist
	}
}

// IsRegex returns true for kinds whose pattern is a regular expression.
func (k RuleKind) IsRegex() bool {
	return k == RuleHostRegex || k == RuleURLRegex || k == RuleWhiteHostRegex
}

// IsStatic returns true for literal host patterns.
func (k RuleKind) IsStatic() bool { return k == RuleHostStatic || k == RuleWhiteStatic }

// RuleKindFromLetter maps a line letter to a RuleKind for the given polarity.
// Letters of the other polarity are rejected like unknown letters.
func RuleKindFromLetter(c byte, p Polarity) (RuleKind, error) {
	for i, l := range ruleLetters {
		if l != c {
			continue
		}
		k := RuleKind(i)
		if k.Polarity() != p {
			return 0, fmt.Errorf("%w: rule letter %q not allowed in %s", ErrMalformedDB, c, p)
		}
		return k, nil
	}
	return 0, fmt.Errorf("%w: unknown rule letter %q", ErrMalformedDB, c)
}

// RuleLine is one parsed database line.
//
// Notes:
//   - Pattern is the raw text after the first ':' (f-level tail already removed);
//     normalization happens in the loader.
//   - For RuleURLHash, Pattern holds only the hex digest and Flag the tag byte.
type RuleLine struct {
	Kind    RuleKind
	Flags   string // letters between the kind letter and the first ':'
	Pattern string
	Flag    byte
}

// ParseRuleLine parses `<FLAGS>:<PATTERN>` for the given polarity. The
// functionality-level tail must have been handled by FLevelCheck first.
func ParseRuleLine(line string, p Polarity) (RuleLine, error) {
	i := strings.IndexByte(line, ':')
	if i < 0 {
		return RuleLine{}, fmt.Errorf("%w: missing ':' separator", ErrMalformedDB)
	}
	if i == 0 {
		return RuleLine{}, fmt.Errorf("%w: missing rule letter", ErrMalformedDB)
	}
	kind, err := RuleKindFromLetter(line[0], p)
	if err != nil {
		return RuleLine{}, err
	}
	rl := RuleLine{Kind: kind, Flags: line[1:i], Pattern: line[i+1:]}
	if kind == RuleURLHash {
		if rl.Flags != "" {
			rl.Flag = rl.Flags[0]
		}
		if j := strings.IndexByte(rl.Pattern, ':'); j >= 0 {
			if rl.Flag == 0 && j+1 < len(rl.Pattern) {
				rl.Flag = rl.Pattern[j+1]
			}
			rl.Pattern = rl.Pattern[:j]
		}
	}
	if err := rl.Validate(); err != nil {
		return RuleLine{}, err
	}
	return rl, nil
}

// Validate checks the RuleLine for required fields.
func (rl RuleLine) Validate() error {
	if rl.Pattern == "" {
		return fmt.Errorf("%w: empty %s pattern", ErrMalformedDB, rl.Kind)
	}
	if rl.Kind == RuleURLHash && len(rl.Pattern) != 32 {
		return fmt.Errorf("%w: hash must be 32 hex digits, got %d", ErrMalformedDB, len(rl.Pattern))
	}
	return nil
}

// FLevelCheck applies the functionality-level gate to a raw line.
//
// The last ':'-separated token is a range only when it has the form
// `<digits>-<digits>` (either side may be empty; an empty max is unbounded).
// Lines with such a range outside [min, max] are inactive. For active lines the
// range tail is removed. Any other tail is left untouched and the line is active.
func FLevelCheck(line string, level uint) (string, bool) {
	i := strings.LastIndexByte(line, ':')
	if i < 0 {
		return line, true
	}
	tail := line[i+1:]
	d := strings.IndexByte(tail, '-')
	if d < 0 {
		return line, true
	}
	minText, maxText := tail[:d], tail[d+1:]
	if !allDigits(minText) || !allDigits(maxText) {
		return line, true
	}
	lo := parseLevel(minText, 0)
	hi := parseLevel(maxText, math.MaxUint)
	if lo > level || hi < level {
		return line, false
	}
	return line[:i], true
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// parseLevel returns def for an empty string and saturates on overflow.
func parseLevel(s string, def uint) uint {
	if s == "" {
		return def
	}
	v, err := strconv.ParseUint(s, 10, 0)
	if err != nil {
		return math.MaxUint
	}
	return uint(v)
}
