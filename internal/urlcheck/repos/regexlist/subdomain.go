package regexlist

import (
	"bytes"

	"github.com/haukened/rr-urlcheck/internal/urlcheck/domain"
)

// validateSubdomain reports whether pattern ends buf on a host boundary: the
// byte past the buffer must be end, ' ', '/' or '?' and the match must either
// span the whole buffer or be preceded by '.' or ' '. The start offset of the
// match is returned.
func validateSubdomain(pattern string, pre *domain.PreFixup, buf []byte) (int, bool) {
	pat := []byte(pattern)
	if len(pat) == 0 || !bytes.HasSuffix(buf, pat) {
		return 0, false
	}
	start := len(buf) - len(pat)
	if !boundaryAfter(charAt(pre, buf, len(buf)+1)) {
		return 0, false
	}
	if start > 0 && !boundaryBefore(charAt(pre, buf, start)) {
		return 0, false
	}
	return start, true
}

func boundaryAfter(c byte) bool  { return c == 0 || c == ' ' || c == '/' || c == '?' }
func boundaryBefore(c byte) bool { return c == '.' || c == ' ' }

// dotRewrite returns real with a '.' inserted in front of the matched host when
// the match covers the tail of the real slot and is not already dot-separated.
// An empty string means no rewrite.
func dotRewrite(real, pattern string, start int) string {
	ml := len(pattern)
	if pattern[ml-1] == '/' {
		ml--
	}
	if start == 0 || start+ml != len(real) || real[start-1] == '.' {
		return ""
	}
	return real[:start] + "." + real[start:]
}

// charAt returns the byte at 1-based position pos of the query. With a
// pre-fixup the position is resolved against the original display text,
// counting from the host start, skipping leading punctuation and ignoring
// whitespace that normalization removed. Positions past the end yield 0.
func charAt(pre *domain.PreFixup, buf []byte, pos int) byte {
	if pre == nil {
		if pos > len(buf) {
			return 0
		}
		i := pos - 1
		if i < 0 {
			i = 0
		}
		if i >= len(buf) {
			return 0
		}
		return buf[i]
	}
	str := pre.DisplayLink
	at := func(i int) byte {
		if i < len(str) {
			return str[i]
		}
		return 0
	}
	pos += pre.HostStart
	rp := 0
	for at(rp) != 0 && !isAlnum(at(rp)) {
		rp++
	}
	for ; at(rp) != 0 && pos > 0; pos-- {
		for at(rp) == ' ' {
			rp++
		}
		rp++
	}
	for at(rp) == ' ' {
		rp++
	}
	if pos > 0 && at(rp) == 0 {
		return 0
	}
	if rp > 0 {
		return at(rp - 1)
	}
	return at(0)
}

func isAlnum(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
