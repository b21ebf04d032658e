package regexlist

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/haukened/rr-urlcheck/internal/urlcheck/common/utils"
	"github.com/haukened/rr-urlcheck/internal/urlcheck/domain"
	"github.com/haukened/rr-urlcheck/internal/urlcheck/repos/regexlist/hashset"
	"github.com/haukened/rr-urlcheck/internal/urlcheck/repos/regexlist/suffix"
)

// pathTails are regex endings that only match an optional path. They are
// collapsed to a single '/' so the host suffix stays indexable.
var pathTails = []string{
	`([/?].*)?/`,
	`([/?].*)/`,
	`([/?].*)?`,
	`([/?].*)`,
}

// Load reads database lines from r into the matcher. It may be called
// several times before Build. Any error tears the matcher down and leaves it
// Failed.
func (m *Matcher) Load(ctx context.Context, r io.Reader, p domain.Polarity) error {
	switch m.state {
	case domain.StateFailed:
		m.lg().Error(nil, "regex_list_already_failed")
		return fmt.Errorf("%w: list previously failed to load", domain.ErrMalformedDB)
	case domain.StateBuilt:
		return domain.ErrAlreadyBuilt
	case domain.StateUninit:
		m.lg().Debug(nil, "regex_list_reinit")
		m.init()
	}
	if r == nil {
		return fmt.Errorf("%w: nil reader", domain.ErrIO)
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), MaxLineLen+2)
	lineNum, loaded, skipped := 0, 0, 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return m.fail(err)
		}
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if lineNum == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		if len(line) > MaxLineLen {
			return m.fail(fmt.Errorf("%w: line %d longer than %d bytes", domain.ErrMalformedDB, lineNum, MaxLineLen))
		}
		if line == "" {
			continue
		}
		active, ok := domain.FLevelCheck(line, m.opts.FunctionalityLevel)
		if !ok {
			skipped++
			m.lg().Debug(map[string]any{"line": lineNum}, "regex_list_flevel_skip")
			continue
		}
		if err := m.loadLine(active, p); err != nil {
			return m.fail(fmt.Errorf("line %d: %w", lineNum, err))
		}
		loaded++
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return m.fail(fmt.Errorf("%w: line %d longer than %d bytes", domain.ErrMalformedDB, lineNum+1, MaxLineLen))
		}
		return m.fail(fmt.Errorf("%w: %v", domain.ErrIO, err))
	}
	m.state = domain.StateLoaded
	m.lg().Info(map[string]any{
		"polarity": p.String(),
		"lines":    lineNum,
		"loaded":   loaded,
		"skipped":  skipped,
	}, "regex_list_loaded")
	return nil
}

func (m *Matcher) loadLine(line string, p domain.Polarity) error {
	rl, err := domain.ParseRuleLine(line, p)
	if err != nil {
		return err
	}
	switch {
	case rl.Kind.IsRegex():
		err = m.addRegexPattern(rl.Pattern)
	case rl.Kind.IsStatic():
		err = m.addStaticPattern(rl.Pattern)
	default:
		var sig hashset.Signature
		if sig, err = hashset.ParseSignature(rl.Pattern); err != nil {
			err = fmt.Errorf("%w: %v", domain.ErrMalformedDB, err)
			break
		}
		m.hashes.Add(sig, rl.Flag)
	}
	if err != nil {
		return fmt.Errorf("%c rule: %w", rl.Kind.Letter(), err)
	}
	return nil
}

func (m *Matcher) addRegexPattern(pattern string) error {
	pattern = normalizeRegex(pattern)
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedDB, err)
	}
	r := rule{kind: ruleRegex, pattern: pattern, re: m.addRegex(re)}
	err = suffix.Extract(pattern, func(s []byte) error {
		rev := append([]byte(nil), s...)
		utils.ReverseBytes(rev)
		return m.addPatternSuffix(rev, r)
	})
	if errors.Is(err, suffix.ErrNoSuffix) {
		return fmt.Errorf("%w: regex %q has no fixed suffix", domain.ErrMalformedDB, pattern)
	}
	if err != nil {
		return err
	}
	m.rules++
	return nil
}

func (m *Matcher) addStaticPattern(pattern string) error {
	pattern = normalizeStatic(pattern)
	r := rule{kind: ruleStatic, pattern: pattern, re: -1}
	if err := m.addPatternSuffix([]byte(utils.Reverse(pattern)), r); err != nil {
		return err
	}
	m.rules++
	return nil
}

func normalizeStatic(p string) string {
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

func normalizeRegex(p string) string {
	for _, tail := range pathTails {
		if len(p) > len(tail) && strings.HasSuffix(p, tail) {
			return p[:len(p)-len(tail)] + "/"
		}
	}
	return normalizeStatic(p)
}
