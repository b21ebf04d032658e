package domain

import (
	"fmt"
	"strings"
)

// Polarity selects which of the two rule databases a lookup or load targets.
//
// blacklist - domain list (.pdb): R, H and U lines
// whitelist - allow list (.wdb): X, Y and M lines
type Polarity uint8

const (
	// Blacklist is the protected-domain list.
	Blacklist Polarity = iota
	// Whitelist is the list of known-good real/display pairs.
	Whitelist
)

// String returns a stable string representation of the polarity.
func (p Polarity) String() string {
	switch p {
	case Blacklist:
		return "blacklist"
	case Whitelist:
		return "whitelist"
	default:
		return fmt.Sprintf("Polarity(%d)", p)
	}
}

// ParsePolarity converts a string into a Polarity.
// Accepts "blacklist"/"black"/"pdb" and "whitelist"/"white"/"wdb" (case-insensitive).
func ParsePolarity(s string) (Polarity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "blacklist", "black", "pdb":
		return Blacklist, nil
	case "whitelist", "white", "wdb":
		return Whitelist, nil
	default:
		return 0, fmt.Errorf("unsupported Polarity: %q", s)
	}
}
