package dbsource

import (
	"bufio"
	"io"
	"strings"
	"unicode"

	"github.com/haukened/rr-urlcheck/internal/urlcheck/common/log"
	"github.com/haukened/rr-urlcheck/internal/urlcheck/common/utils"
)

// ParsePlainList converts a newline-delimited list of protected domains into
// blacklist host rules ("H:<host>").
//
// Behavior:
//   - '#' starts a comment (inline or whole-line)
//   - "*." and "." prefixes are dropped; host rules already match subdomains
//   - names are canonicalized (lowercase, no trailing dot, punycode)
//   - invalid names are skipped, duplicates keep their first position
func ParsePlainList(r io.Reader, logger log.Logger) ([]string, error) {
	if logger == nil {
		logger = log.GetLogger()
	}
	scanner := bufio.NewScanner(r)
	seen := make(map[string]struct{})
	out := make([]string, 0, 256)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimPrefix(scanner.Text(), "\ufeff")
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		raw := strings.TrimSpace(line)
		if raw == "" {
			continue
		}
		name := normalizeDomainName(raw)
		if !isValidHost(name) {
			logger.Debug(map[string]any{"line": lineNum, "raw": raw}, "skip_invalid_host")
			continue
		}
		if _, ok := seen[name]; ok {
			logger.Debug(map[string]any{"line": lineNum, "name": name}, "skip_duplicate")
			continue
		}
		seen[name] = struct{}{}
		out = append(out, "H:"+name)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	logger.Debug(map[string]any{"count": len(out)}, "parse_plain_list_done")
	return out, nil
}

func normalizeDomainName(name string) string {
	name = strings.TrimPrefix(name, "*.")
	name = strings.TrimPrefix(name, ".")
	return utils.CanonicalHost(name)
}

// isValidHost requires at least two labels of 1-63 bytes, a total of at most
// 255 bytes, an alphanumeric first byte and no rule separators.
func isValidHost(name string) bool {
	if len(name) == 0 || len(name) > 255 || strings.ContainsAny(name, ": /") {
		return false
	}
	labels := strings.Split(name, ".")
	if len(labels) < 2 {
		return false
	}
	for _, label := range labels {
		if len(label) == 0 || len(label) > 63 {
			return false
		}
	}
	r := rune(name[0])
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
