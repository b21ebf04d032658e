// Package phishcheck decides whether a link is phishing by comparing the
// host a user sees against the host the link really targets.
package phishcheck

import (
	"fmt"
	"strings"

	"github.com/haukened/rr-urlcheck/internal/urlcheck/common/log"
	"github.com/haukened/rr-urlcheck/internal/urlcheck/common/utils"
	"github.com/haukened/rr-urlcheck/internal/urlcheck/domain"
)

// ListMatcher is the query surface of a built rule list.
type ListMatcher interface {
	Match(realURL, displayURL string, pre *domain.PreFixup, hostOnly bool, p domain.Polarity) (domain.Result, error)
	MatchURLHash(url string) (domain.Result, error)
	IsOK() bool
}

// DecisionCache caches decisions by link key with basic metrics.
type DecisionCache interface {
	Get(key string) (domain.Decision, bool)
	Put(key string, d domain.Decision)
	Len() int
	Purge()
	Stats() (hits, misses, evictions uint64)
}

// Options wires a Checker. Either list may be nil.
type Options struct {
	Whitelist ListMatcher
	Blacklist ListMatcher
	Cache     DecisionCache
	Logger    log.Logger
}

// Checker runs the phishing decision cascade. It is safe for concurrent use
// once its lists are built.
type Checker struct {
	white  ListMatcher
	black  ListMatcher
	cache  DecisionCache
	logger log.Logger
}

// New constructs a Checker.
func New(opts Options) *Checker {
	c := &Checker{white: opts.Whitelist, black: opts.Blacklist, cache: opts.Cache, logger: opts.Logger}
	if c.cache == nil {
		c.cache = noCache{}
	}
	if c.logger == nil {
		c.logger = log.GetLogger()
	}
	c.logger = c.logger.With(map[string]any{"component": "phish_check"})
	return c
}

// Enabled reports whether every configured list loaded cleanly.
func (c *Checker) Enabled() bool {
	for _, l := range []ListMatcher{c.white, c.black} {
		if l != nil && !l.IsOK() {
			return false
		}
	}
	return true
}

// WhitelistMatch consults the whitelist with a real:display pair.
func (c *Checker) WhitelistMatch(realURL, displayURL string, hostOnly bool) (domain.Result, error) {
	if c.white == nil {
		return domain.NoMatchResult(), nil
	}
	return c.white.Match(realURL, displayURL, nil, hostOnly, domain.Whitelist)
}

// DomainListMatch asks whether the displayed host is a protected domain. The
// displayed host is what the user trusts, so it occupies the real-URL slot of
// the query and realHost trails it.
func (c *Checker) DomainListMatch(realHost, displayHost string, pre *domain.PreFixup, hostOnly bool) (domain.Result, error) {
	if c.black == nil {
		return domain.NoMatchResult(), nil
	}
	return c.black.Match(displayHost, realHost, pre, hostOnly, domain.Blacklist)
}

// Check classifies link. Results without an error are cached.
func (c *Checker) Check(link domain.Link) (domain.Decision, error) {
	if !c.Enabled() {
		c.logger.Warn(nil, "phish_check_disabled")
		return domain.Decision{Verdict: domain.Disabled, Reason: "list_failed"}, nil
	}
	key := cacheKey(link)
	if d, ok := c.cache.Get(key); ok {
		return d, nil
	}
	d, err := c.decide(link)
	if err != nil {
		c.logger.Error(map[string]any{"real": link.RealURL, "error": err.Error()}, "phish_check_error")
		return domain.Decision{}, err
	}
	c.cache.Put(key, d)
	c.logger.Debug(map[string]any{
		"real":    link.RealURL,
		"display": link.DisplayURL,
		"verdict": d.Verdict.String(),
		"reason":  d.Reason,
	}, "phish_check_decision")
	return d, nil
}

func (c *Checker) decide(link domain.Link) (domain.Decision, error) {
	realHost := utils.HostOf(link.RealURL)
	displayHost := utils.HostOf(link.DisplayURL)
	if realHost == "" || displayHost == "" {
		return domain.Decision{Verdict: domain.Clean, Reason: "no_host"}, nil
	}

	res, err := c.WhitelistMatch(link.RealURL, link.DisplayURL, false)
	if err != nil {
		return domain.Decision{}, fmt.Errorf("whitelist: %w", err)
	}
	if !res.IsMatch() {
		if res, err = c.WhitelistMatch(realHost, displayHost, true); err != nil {
			return domain.Decision{}, fmt.Errorf("whitelist: %w", err)
		}
	}
	if res.IsMatch() {
		return domain.Decision{Verdict: domain.Clean, Reason: "whitelisted", Pattern: res.Pattern}, nil
	}

	if c.black != nil {
		hres, err := c.black.MatchURLHash(link.RealURL)
		if err != nil {
			return domain.Decision{}, fmt.Errorf("url hash: %w", err)
		}
		if hres.IsMatch() {
			return domain.Decision{Verdict: domain.Phishing, Reason: "url_hash", Pattern: hres.Pattern, Flag: hres.Flag}, nil
		}
	}

	dres, err := c.DomainListMatch(realHost, displayHost, link.Pre, true)
	if err != nil {
		return domain.Decision{}, fmt.Errorf("domain list: %w", err)
	}
	if !dres.IsMatch() {
		return domain.Decision{Verdict: domain.Clean, Reason: "not_protected"}, nil
	}
	if hostsAgree(realHost, displayHost) {
		return domain.Decision{Verdict: domain.Clean, Reason: "hosts_match", Pattern: dres.Pattern}, nil
	}
	return domain.Decision{Verdict: domain.Phishing, Reason: "host_mismatch", Pattern: dres.Pattern}, nil
}

// hostsAgree is true when the hosts are equal or one is a subdomain of the other.
func hostsAgree(a, b string) bool {
	return a == b || strings.HasSuffix(a, "."+b) || strings.HasSuffix(b, "."+a)
}

func cacheKey(link domain.Link) string {
	k := link.RealURL + "\x00" + link.DisplayURL
	if link.Pre != nil {
		k += fmt.Sprintf("\x00%d:%d:%s", link.Pre.HostStart, link.Pre.HostEnd, link.Pre.DisplayLink)
	}
	return k
}

// CacheStats exposes the decision cache counters.
func (c *Checker) CacheStats() (size int, hits, misses, evictions uint64) {
	hits, misses, evictions = c.cache.Stats()
	return c.cache.Len(), hits, misses, evictions
}

// Purge drops cached decisions, e.g. after lists are reloaded.
func (c *Checker) Purge() { c.cache.Purge() }

type noCache struct{}

func (noCache) Get(string) (domain.Decision, bool) { return domain.Decision{}, false }
func (noCache) Put(string, domain.Decision)        {}
func (noCache) Len() int                           { return 0 }
func (noCache) Purge()                             {}
func (noCache) Stats() (uint64, uint64, uint64)    { return 0, 0, 0 }
