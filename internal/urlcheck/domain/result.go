package domain

// Verdict is the outcome of a single list lookup.
type Verdict uint8

const (
	NoMatch Verdict = iota
	Match
)

// String returns "match" or "no_match".
func (v Verdict) String() string {
	if v == Match {
		return "match"
	}
	return "no_match"
}

// Result represents the outcome of looking a URL pair up in one regex list.
// Pure value type, no external dependencies.
type Result struct {
	Verdict Verdict
	// Pattern is the normalized text of the rule that matched (hex digest for hash hits).
	Pattern string
	// Flag is the tag byte attached to a hash rule, zero otherwise.
	Flag byte
	// RewrittenURL is the real URL with a '.' inserted in front of the matched
	// host when the subdomain validator accepted a match across a collapsed
	// separator. Empty when no rewrite was needed.
	RewrittenURL string
}

// IsMatch is a convenience accessor.
func (r Result) IsMatch() bool { return r.Verdict == Match }

// NoMatchResult returns an empty, not-matched Result.
func NoMatchResult() Result { return Result{Verdict: NoMatch} }

// PreFixup carries the display link text as it was before the HTML
// normalizer collapsed whitespace, with the byte offsets of the host inside it.
// The subdomain validator uses it to look through collapsed separators.
type PreFixup struct {
	DisplayLink string
	HostStart   int
	HostEnd     int
}
