package regexlist

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/rr-urlcheck/internal/urlcheck/common/log"
	"github.com/haukened/rr-urlcheck/internal/urlcheck/domain"
)

func loadOnly(t *testing.T, opts Options, p domain.Polarity, db string) (*Matcher, error) {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	m := New(opts)
	return m, m.Load(context.Background(), strings.NewReader(db), p)
}

func suffixKeys(t *testing.T, m *Matcher) []string {
	t.Helper()
	require.NotNil(t, m.suffixKeys)
	var keys []string
	m.suffixKeys.Walk(func(k string, _ interface{}) bool {
		keys = append(keys, k)
		return false
	})
	sort.Strings(keys)
	return keys
}

func TestNormalizeRegex(t *testing.T) {
	tests := []struct{ in, want string }{
		{`paypal\.com`, `paypal\.com/`},
		{`paypal\.com/`, `paypal\.com/`},
		{`paypal\.com([/?].*)?/`, `paypal\.com/`},
		{`paypal\.com([/?].*)/`, `paypal\.com/`},
		{`paypal\.com([/?].*)?`, `paypal\.com/`},
		{`paypal\.com([/?].*)`, `paypal\.com/`},
		{`([/?].*)?/`, `([/?].*)?/`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeRegex(tt.in), "normalizeRegex(%q)", tt.in)
	}
	assert.Equal(t, "a.com/", normalizeStatic("a.com"))
	assert.Equal(t, "a.com/", normalizeStatic("a.com/"))
}

func TestLoad_PathTailSameIndex(t *testing.T) {
	for _, pair := range [][2]string{
		{`R:^(www\.)?bank\.example\.com([/?].*)?/`, `R:^(www\.)?bank\.example\.com`},
		{`R:(foo|bar)\.net([/?].*)/`, `R:(foo|bar)\.net/`},
	} {
		a, err := loadOnly(t, Options{}, domain.Blacklist, pair[0])
		require.NoError(t, err)
		b, err := loadOnly(t, Options{}, domain.Blacklist, pair[1])
		require.NoError(t, err)
		assert.Equal(t, suffixKeys(t, b), suffixKeys(t, a))
	}
}

func TestLoad_SuffixesAreReversed(t *testing.T) {
	m, err := loadOnly(t, Options{}, domain.Blacklist, "H:example.com\nR:(foo|bar)\\.org\n")
	require.NoError(t, err)
	assert.Equal(t, []string{"/gro.oof", "/gro.rab", "/moc.elpmaxe"}, suffixKeys(t, m))
}

func TestLoad_SkipsBlankAndBOM(t *testing.T) {
	m, err := loadOnly(t, Options{}, domain.Blacklist, "\ufeffH:a.com\r\n\n\r\nH:b.com\n")
	require.NoError(t, err)
	assert.Equal(t, domain.StateLoaded, m.State())
	assert.Equal(t, 2, m.Stats().Rules)
}

func TestLoad_FunctionalityLevel(t *testing.T) {
	db := "H:old.com:1-10\nH:new.com:50-\nH:any.com\nH:mid.com:20-30\n"
	m, err := loadOnly(t, Options{FunctionalityLevel: 25}, domain.Blacklist, db)
	require.NoError(t, err)
	assert.Equal(t, []string{"/moc.dim", "/moc.yna"}, suffixKeys(t, m))
}

func TestLoad_MultipleCalls(t *testing.T) {
	m, err := loadOnly(t, Options{}, domain.Blacklist, "H:a.com\n")
	require.NoError(t, err)
	require.NoError(t, m.Load(context.Background(), strings.NewReader("H:b.com\n"), domain.Blacklist))
	require.NoError(t, m.Build())
	for _, q := range []string{"a.com", "b.com"} {
		res, err := m.Match(q, "", nil, true, domain.Blacklist)
		require.NoError(t, err)
		assert.True(t, res.IsMatch(), q)
	}
}

func TestLoad_SingleByteSuffixAcceptsAll(t *testing.T) {
	m, err := loadOnly(t, Options{}, domain.Blacklist, "R:.*\n")
	require.NoError(t, err)
	assert.True(t, m.Stats().FilterAcceptsAll)
	require.NoError(t, m.Build())
	res, err := m.Match("anything.example", "", nil, true, domain.Blacklist)
	require.NoError(t, err)
	assert.True(t, res.IsMatch())
}

func TestLoad_ErrorNamesRuleLetter(t *testing.T) {
	_, err := loadOnly(t, Options{}, domain.Blacklist, "H:ok.com\nR:(unclosed\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2: R rule:")
}

func TestLoad_Malformed(t *testing.T) {
	tests := []struct {
		name string
		p    domain.Polarity
		db   string
	}{
		{"unknown letter", domain.Blacklist, "Q:foo\n"},
		{"whitelist letter in blacklist", domain.Blacklist, "H:ok.com\nX:foo\n"},
		{"blacklist letter in whitelist", domain.Whitelist, "R:foo\n"},
		{"missing separator", domain.Blacklist, "Hfoo.com\n"},
		{"bad regex", domain.Blacklist, "R:(unclosed\n"},
		{"bad hash", domain.Blacklist, "U:zz41d8cd98f00b204e9800998ecf8427:1\n"},
		{"short hash", domain.Blacklist, "U:d41d8cd9:1\n"},
		{"line too long", domain.Blacklist, "H:" + strings.Repeat("a", MaxLineLen) + "\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := loadOnly(t, Options{}, tt.p, tt.db)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrMalformedDB)
			assert.Equal(t, domain.StateFailed, m.State())
			assert.False(t, m.IsOK())
			assert.Equal(t, 0, m.Stats().Suffixes)

			// the failed sink refuses further work
			err = m.Load(context.Background(), strings.NewReader("H:a.com\n"), tt.p)
			assert.ErrorIs(t, err, domain.ErrMalformedDB)
			assert.ErrorIs(t, m.Build(), domain.ErrMalformedDB)

			res, err := m.Match("a.com", "", nil, true, tt.p)
			require.NoError(t, err)
			assert.False(t, res.IsMatch())
		})
	}
}

func TestLoad_FailedThenClose(t *testing.T) {
	m, err := loadOnly(t, Options{}, domain.Blacklist, "Z:x\n")
	require.Error(t, err)
	require.NoError(t, m.Close())
	assert.True(t, m.IsOK())
	require.NoError(t, m.Load(context.Background(), strings.NewReader("H:a.com\n"), domain.Blacklist))
	assert.Equal(t, domain.StateLoaded, m.State())
}

func TestLoad_ReadError(t *testing.T) {
	m := New(Options{Logger: log.NewNoopLogger()})
	boom := errors.New("disk on fire")
	err := m.Load(context.Background(), iotest.ErrReader(boom), domain.Blacklist)
	assert.ErrorIs(t, err, domain.ErrIO)
	assert.Equal(t, domain.StateFailed, m.State())

	m = New(Options{Logger: log.NewNoopLogger()})
	assert.ErrorIs(t, m.Load(context.Background(), nil, domain.Blacklist), domain.ErrIO)
}

func TestLoad_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := New(Options{Logger: log.NewNoopLogger()})
	err := m.Load(ctx, strings.NewReader("H:a.com\n"), domain.Blacklist)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, m.IsOK())
}
