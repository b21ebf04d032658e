package utils

import (
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// CanonicalHost returns a host name in canonical form:
//   - Trimmed of surrounding whitespace
//   - Lowercased
//   - No trailing dots
//   - IDNA labels converted to their ASCII (punycode) form
//
// Names that IDNA rejects are returned lowercased and trimmed but otherwise unchanged.
func CanonicalHost(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.TrimRight(name, ".")
	if name == "" {
		return ""
	}
	if ascii, err := idna.Lookup.ToASCII(name); err == nil {
		return ascii
	}
	return name
}

// HostOf extracts the canonical host from a URL or bare host string.
// Inputs without a scheme are treated as "host[/path]".
func HostOf(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return CanonicalHost(u.Hostname())
}

// Reverse returns s with its bytes in reverse order. Rule suffixes are indexed
// reversed so that shared TLD tails become shared prefixes.
func Reverse(s string) string {
	b := []byte(s)
	ReverseBytes(b)
	return string(b)
}

// ReverseBytes reverses b in place.
func ReverseBytes(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}
