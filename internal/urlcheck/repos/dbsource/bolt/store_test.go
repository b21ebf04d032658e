package bolt

import (
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	bbolt "go.etcd.io/bbolt"
	bberrors "go.etcd.io/bbolt/errors"

	"github.com/haukened/rr-urlcheck/internal/urlcheck/common/clock"
	"github.com/haukened/rr-urlcheck/internal/urlcheck/domain"
)

type assertErr struct{}

func (assertErr) Error() string { return "assert error" }

func tempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "feeds.db")
}

func newStore(t *testing.T, clk clock.Clock) *Store {
	t.Helper()
	st, err := New(tempDB(t), clk)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func readString(t *testing.T, st *Store, p domain.Polarity) string {
	t.Helper()
	r, err := st.Reader(p)
	if err != nil {
		t.Fatalf("Reader: %v", err)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	return string(b)
}

func TestStore_ImportAndReader(t *testing.T) {
	clk := clock.NewMockClock(time.Unix(1723550000, 0))
	st := newStore(t, clk)

	n, err := st.Import("daily", domain.Blacklist, strings.NewReader("\ufeffH:paypal.com\n\nR:bank\\.example\\.com\n"))
	if err != nil || n != 2 {
		t.Fatalf("Import: n=%d err=%v", n, err)
	}
	clk.Advance(time.Hour)
	if _, err := st.Import("custom", domain.Blacklist, strings.NewReader("H:example.org\n")); err != nil {
		t.Fatalf("Import custom: %v", err)
	}
	if _, err := st.Import("daily", domain.Whitelist, strings.NewReader("M:a.com:a.com\n")); err != nil {
		t.Fatalf("Import white: %v", err)
	}

	// feeds come back in name order, lines in file order
	want := "H:example.org\nH:paypal.com\nR:bank\\.example\\.com\n"
	if got := readString(t, st, domain.Blacklist); got != want {
		t.Fatalf("blacklist reader = %q; want %q", got, want)
	}
	if got := readString(t, st, domain.Whitelist); got != "M:a.com:a.com\n" {
		t.Fatalf("whitelist reader = %q", got)
	}

	feeds, err := st.Feeds()
	if err != nil {
		t.Fatalf("Feeds: %v", err)
	}
	if len(feeds) != 3 {
		t.Fatalf("feeds=%d want=3: %+v", len(feeds), feeds)
	}
	if feeds[0].Name != "custom" || feeds[0].Polarity != domain.Blacklist || feeds[0].Lines != 1 ||
		!feeds[0].ImportedAt.Equal(time.Unix(1723553600, 0)) {
		t.Fatalf("feeds[0] unexpected: %+v", feeds[0])
	}
	if feeds[1].Name != "daily" || feeds[1].Lines != 2 || !feeds[1].ImportedAt.Equal(time.Unix(1723550000, 0)) {
		t.Fatalf("feeds[1] unexpected: %+v", feeds[1])
	}
	if feeds[2].Polarity != domain.Whitelist {
		t.Fatalf("feeds[2] unexpected: %+v", feeds[2])
	}

	stats := st.Stats()
	if stats.BlacklistLines != 3 || stats.WhitelistLines != 1 || stats.Feeds != 3 {
		t.Fatalf("stats unexpected: %+v", stats)
	}
}

func TestStore_ReimportReplacesFeed(t *testing.T) {
	st := newStore(t, nil)
	if _, err := st.Import("daily", domain.Blacklist, strings.NewReader("H:a.com\nH:b.com\nH:c.com\n")); err != nil {
		t.Fatalf("Import: %v", err)
	}
	if _, err := st.Import("daily", domain.Blacklist, strings.NewReader("H:d.com\n")); err != nil {
		t.Fatalf("re-Import: %v", err)
	}
	if got := readString(t, st, domain.Blacklist); got != "H:d.com\n" {
		t.Fatalf("reader after re-import = %q", got)
	}
}

func TestStore_ImportRejectsBadLines(t *testing.T) {
	st := newStore(t, nil)
	if _, err := st.Import("daily", domain.Blacklist, strings.NewReader("H:keep.com\n")); err != nil {
		t.Fatalf("Import: %v", err)
	}
	_, err := st.Import("daily", domain.Blacklist, strings.NewReader("H:ok.com\nX:white-only\nnocolon\n"))
	if err == nil {
		t.Fatalf("expected error for bad lines")
	}
	if !errors.Is(err, domain.ErrMalformedDB) {
		t.Fatalf("expected ErrMalformedDB, got %v", err)
	}
	if !strings.Contains(err.Error(), "line 2") || !strings.Contains(err.Error(), "line 3") {
		t.Fatalf("expected both line errors, got %v", err)
	}
	// nothing written
	if got := readString(t, st, domain.Blacklist); got != "H:keep.com\n" {
		t.Fatalf("reader after failed import = %q", got)
	}

	if _, err := st.Import("", domain.Blacklist, strings.NewReader("H:a.com\n")); !errors.Is(err, ErrEmptyFeed) {
		t.Fatalf("expected ErrEmptyFeed, got %v", err)
	}
	if _, err := st.Import("a\x00b", domain.Blacklist, strings.NewReader("H:a.com\n")); !errors.Is(err, ErrEmptyFeed) {
		t.Fatalf("expected ErrEmptyFeed for NUL, got %v", err)
	}
}

func TestStore_DeleteAndPurge(t *testing.T) {
	st := newStore(t, nil)
	for _, feed := range []string{"a", "ab"} {
		if _, err := st.Import(feed, domain.Blacklist, strings.NewReader("H:"+feed+".com\n")); err != nil {
			t.Fatalf("Import %s: %v", feed, err)
		}
	}
	// "a" must not take "ab" with it
	if err := st.Delete("a", domain.Blacklist); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := readString(t, st, domain.Blacklist); got != "H:ab.com\n" {
		t.Fatalf("reader after delete = %q", got)
	}
	if err := st.Purge(); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if s := st.Stats(); s != (Stats{}) {
		t.Fatalf("stats after purge = %+v", s)
	}
	feeds, err := st.Feeds()
	if err != nil || len(feeds) != 0 {
		t.Fatalf("feeds after purge: %v %v", feeds, err)
	}
}

func TestStore_Reopen(t *testing.T) {
	path := tempDB(t)
	st, err := New(path, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := st.Import("daily", domain.Whitelist, strings.NewReader("M:a.com:a.com\n")); err != nil {
		t.Fatalf("Import: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	st, err = New(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()
	if got := readString(t, st, domain.Whitelist); got != "M:a.com:a.com\n" {
		t.Fatalf("reader after reopen = %q", got)
	}
}

type fakeBucketCreator struct{ errs map[string]error }

func (f fakeBucketCreator) CreateBucketIfNotExists(name []byte) (*bbolt.Bucket, error) {
	if err := f.errs[string(name)]; err != nil {
		return nil, err
	}
	return nil, nil
}

func TestNew_EnsureBucketsErrors(t *testing.T) {
	for _, fail := range []string{string(bucketWhitelist), string(bucketBlacklist), string(bucketMeta)} {
		t.Run(fail, func(t *testing.T) {
			old := ensureBucketsFn
			ensureBucketsFn = func(tx bucketCreator) error {
				return ensureBuckets(fakeBucketCreator{errs: map[string]error{fail: assertErr{}}})
			}
			defer func() { ensureBucketsFn = old }()

			st, err := New(tempDB(t), nil)
			if err == nil || st != nil {
				t.Fatalf("expected error from New when %s fails", fail)
			}
			if !errors.Is(err, domain.ErrIO) {
				t.Fatalf("expected ErrIO, got %v", err)
			}
		})
	}
}

func TestDeleteBuckets(t *testing.T) {
	tests := []struct {
		name    string
		errs    map[string]error
		wantErr bool
	}{
		{name: "all deleted", errs: nil, wantErr: false},
		{name: "ignore ErrBucketNotFound", errs: map[string]error{"a": bberrors.ErrBucketNotFound}, wantErr: false},
		{name: "first fails", errs: map[string]error{"a": assertErr{}}, wantErr: true},
		{name: "second fails", errs: map[string]error{"b": assertErr{}}, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var calls []string
			del := bucketDeleterFunc(func(name []byte) error {
				calls = append(calls, string(name))
				return tc.errs[string(name)]
			})
			err := deleteBuckets(del, []byte("a"), []byte("b"))
			if tc.wantErr != (err != nil) {
				t.Fatalf("wantErr=%v err=%v", tc.wantErr, err)
			}
			if tc.name == "first fails" && len(calls) != 1 {
				t.Fatalf("expected stop after first failure, calls=%v", calls)
			}
		})
	}
}
