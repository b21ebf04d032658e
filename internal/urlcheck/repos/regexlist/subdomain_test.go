package regexlist

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/haukened/rr-urlcheck/internal/urlcheck/domain"
)

func TestValidateSubdomain(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		buf     string
		start   int
		ok      bool
	}{
		{"whole buffer", "paypal.com/", "paypal.com/", 0, true},
		{"dot before", "paypal.com/", "www.paypal.com/", 4, true},
		{"letter before", "paypal.com/", "mypaypal.com/", 0, false},
		{"colon before", "paypal.com/", "x.net:paypal.com/", 0, false},
		{"earlier occurrence ignored", "a.com/", "a.com/ ba.com/", 0, false},
		{"literal inside path", "paypal.com:paypal.com/", "http://evil.example/.paypal.com:paypal.com//:http://www.evil.example/login/", 0, false},
		{"space before", "paypal.com", "see paypal.com", 4, true},
		{"not at the tail", "paypal.com", "www.paypal.com?q", 0, false},
		{"letter after", "paypal.com", "www.paypal.comx", 0, false},
		{"overlapping", "aa/", "xaaa/", 0, false},
		{"pattern longer than buffer", "paypal.com/", "a/", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, ok := validateSubdomain(tt.pattern, nil, []byte(tt.buf))
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.start, start)
			}
		})
	}
}

func TestCharAt_Plain(t *testing.T) {
	buf := []byte("abc")
	assert.Equal(t, byte('a'), charAt(nil, buf, 0))
	assert.Equal(t, byte('a'), charAt(nil, buf, 1))
	assert.Equal(t, byte('c'), charAt(nil, buf, 3))
	assert.Equal(t, byte(0), charAt(nil, buf, 4))
	assert.Equal(t, byte(0), charAt(nil, nil, 0))
}

func TestCharAt_PreFixup(t *testing.T) {
	pre := &domain.PreFixup{DisplayLink: "  www paypal.com"}
	// positions count non-space characters from the first alphanumeric
	assert.Equal(t, byte('w'), charAt(pre, nil, 1))
	assert.Equal(t, byte(' '), charAt(pre, nil, 3))
	assert.Equal(t, byte('p'), charAt(pre, nil, 4))
	assert.Equal(t, byte('m'), charAt(pre, nil, 13))
	assert.Equal(t, byte(0), charAt(pre, nil, 15))

	shifted := &domain.PreFixup{DisplayLink: "  www paypal.com", HostStart: 3}
	assert.Equal(t, byte('p'), charAt(shifted, nil, 1))
}

func TestDotRewrite(t *testing.T) {
	assert.Equal(t, "www.paypal.com", dotRewrite("wwwpaypal.com", "paypal.com/", 3))
	assert.Equal(t, "", dotRewrite("www.paypal.com", "paypal.com/", 4))
	assert.Equal(t, "", dotRewrite("paypal.com", "paypal.com/", 0))
	// match outside the real slot
	assert.Equal(t, "", dotRewrite("x.net", "paypal.com/", 6))
}
