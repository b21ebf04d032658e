package domain

import "fmt"

// Link is one anchor extracted from a message: the href target and the text
// the user sees. Pre is optional.
type Link struct {
	RealURL    string
	DisplayURL string
	Pre        *PreFixup
}

// PhishVerdict is the outcome of the full phishing check on a Link.
type PhishVerdict uint8

const (
	// Clean means no phishing indication.
	Clean PhishVerdict = iota
	// Phishing means the link was classified as phishing.
	Phishing
	// Disabled means the check could not run because a list failed to load.
	Disabled
)

// String returns a stable string representation of the verdict.
func (v PhishVerdict) String() string {
	switch v {
	case Clean:
		return "clean"
	case Phishing:
		return "phishing"
	case Disabled:
		return "disabled"
	default:
		return fmt.Sprintf("PhishVerdict(%d)", v)
	}
}

// Decision represents the outcome of checking one Link.
type Decision struct {
	Verdict PhishVerdict
	Reason  string // short snake_case reason, e.g. "whitelisted", "host_mismatch"
	Pattern string // matched rule, when a list decided
	Flag    byte   // hash rule flag, when the hash list decided
}

// IsPhishing is a convenience accessor.
func (d Decision) IsPhishing() bool { return d.Verdict == Phishing }
