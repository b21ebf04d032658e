package lru

import (
	"errors"
	"testing"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/haukened/rr-urlcheck/internal/urlcheck/domain"
)

func TestVerdictCache_HitMissAndPut(t *testing.T) {
	c, err := New(2)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	d := domain.Decision{Verdict: domain.Phishing, Reason: "host_mismatch"}

	if _, ok := c.Get("http://evil.example\x00paypal.com"); ok {
		t.Fatalf("expected miss before put")
	}
	c.Put("http://evil.example\x00paypal.com", d)

	got, ok := c.Get("http://evil.example\x00paypal.com")
	if !ok || !got.IsPhishing() || got.Reason != "host_mismatch" {
		t.Fatalf("unexpected get: ok=%v got=%+v", ok, got)
	}
	hits, misses, _ := c.Stats()
	if hits != 1 || misses != 1 {
		t.Fatalf("hits=%d misses=%d want 1/1", hits, misses)
	}
}

func TestVerdictCache_EvictionAndLen(t *testing.T) {
	c, err := New(2)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	c.Put("a", domain.Decision{Verdict: domain.Clean})
	c.Put("b", domain.Decision{Verdict: domain.Clean})
	if got := c.Len(); got != 2 {
		t.Fatalf("len=%d want=2", got)
	}
	c.Put("c", domain.Decision{Verdict: domain.Clean})
	if got := c.Len(); got != 2 {
		t.Fatalf("len=%d want=2 after eviction", got)
	}
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected oldest entry evicted")
	}
	if _, _, ev := c.Stats(); ev != 1 {
		t.Fatalf("evictions=%d want=1", ev)
	}
}

func TestVerdictCache_PurgeCountsEvictions(t *testing.T) {
	c, err := New(3)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	c.Put("a", domain.Decision{})
	c.Put("b", domain.Decision{})
	c.Put("c", domain.Decision{})

	c.Purge()
	if got := c.Len(); got != 0 {
		t.Fatalf("len=%d want=0 after purge", got)
	}
	if _, _, ev := c.Stats(); ev != 3 {
		t.Fatalf("evictions=%d want=3 after purge", ev)
	}
}

func TestVerdictCache_Disabled(t *testing.T) {
	c, err := New(0)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if _, ok := c.Get("x"); ok {
		t.Fatalf("expected miss in disabled cache")
	}
	c.Put("x", domain.Decision{Verdict: domain.Phishing})
	if got := c.Len(); got != 0 {
		t.Fatalf("len=%d want=0 for disabled", got)
	}
	c.Purge()
	if h, m, e := c.Stats(); h+m+e != 0 {
		t.Fatalf("disabled cache tracked stats: %d %d %d", h, m, e)
	}
}

func TestNewLRU_Error(t *testing.T) {
	original := newLRU
	newLRU = func(int, func(string, domain.Decision)) (*lru.Cache[string, domain.Decision], error) {
		return nil, errors.New("cache creation error")
	}
	defer func() { newLRU = original }()
	if _, err := New(1); err == nil {
		t.Fatalf("expected error but got nil")
	}
}
