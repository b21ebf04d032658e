// Package bolt keeps imported rule feeds in a bbolt database so lists can be
// rebuilt without the original files.
package bolt

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	bbolt "go.etcd.io/bbolt"
	bberrors "go.etcd.io/bbolt/errors"
	"go.uber.org/multierr"

	"github.com/haukened/rr-urlcheck/internal/urlcheck/common/clock"
	"github.com/haukened/rr-urlcheck/internal/urlcheck/domain"
)

var (
	bucketWhitelist = []byte("whitelist")
	bucketBlacklist = []byte("blacklist")
	bucketMeta      = []byte("meta")
)

// maxLineLen matches the loader limit so imported lines always load.
const maxLineLen = 8192

// ErrEmptyFeed is returned for an empty feed name or one containing NUL.
var ErrEmptyFeed = errors.New("bolt: invalid feed name")

// FeedInfo describes one imported feed.
type FeedInfo struct {
	Name       string
	Polarity   domain.Polarity
	Lines      uint64
	ImportedAt time.Time
}

// Stats captures line counts per polarity.
type Stats struct {
	WhitelistLines uint64
	BlacklistLines uint64
	Feeds          int
}

// Store is a bbolt-backed feed store. Lines are keyed by
// feed + NUL + big-endian line number, so a cursor walk yields every feed in
// name order with its lines in file order.
type Store struct {
	db    *bbolt.DB
	clock clock.Clock
}

type bucketCreator interface {
	CreateBucketIfNotExists(name []byte) (*bbolt.Bucket, error)
}

type bucketDeleter interface {
	DeleteBucket(name []byte) error
}

type bucketDeleterFunc func(name []byte) error

func (f bucketDeleterFunc) DeleteBucket(name []byte) error { return f(name) }

func ensureBuckets(tx bucketCreator) error {
	for _, name := range [][]byte{bucketWhitelist, bucketBlacklist, bucketMeta} {
		if _, err := tx.CreateBucketIfNotExists(name); err != nil {
			return err
		}
	}
	return nil
}

// ensureBucketsFn is a seam for tests.
var ensureBucketsFn = func(tx bucketCreator) error { return ensureBuckets(tx) }

// deleteBuckets removes the named buckets, ignoring ones that do not exist.
func deleteBuckets(tx bucketDeleter, names ...[]byte) error {
	for _, name := range names {
		if err := tx.DeleteBucket(name); err != nil && !errors.Is(err, bberrors.ErrBucketNotFound) {
			return err
		}
	}
	return nil
}

// New opens (or creates) a store at path. A nil clk uses the wall clock.
func New(path string, clk clock.Clock) (*Store, error) {
	if clk == nil {
		clk = clock.RealClock{}
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIO, err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error { return ensureBucketsFn(tx) }); err != nil {
		return nil, multierr.Append(fmt.Errorf("%w: %v", domain.ErrIO, err), db.Close())
	}
	return &Store{db: db, clock: clk}, nil
}

// Close releases the database file.
func (s *Store) Close() error { return s.db.Close() }

func bucketFor(p domain.Polarity) []byte {
	if p == domain.Whitelist {
		return bucketWhitelist
	}
	return bucketBlacklist
}

func lineKey(feed string, n uint64) []byte {
	k := make([]byte, len(feed)+1+8)
	copy(k, feed)
	binary.BigEndian.PutUint64(k[len(feed)+1:], n)
	return k
}

func metaKey(feed string, p domain.Polarity) []byte {
	return []byte(p.String() + "\x00" + feed)
}

// Import replaces feed in the polarity's bucket with the lines of r. Blank
// lines are dropped. Every non-blank line must parse as a rule of that
// polarity; otherwise nothing is written and all line errors are returned.
func (s *Store) Import(feed string, p domain.Polarity, r io.Reader) (uint64, error) {
	if feed == "" || strings.IndexByte(feed, 0) >= 0 {
		return 0, ErrEmptyFeed
	}
	lines, err := readLines(r, p)
	if err != nil {
		return 0, err
	}
	now := s.clock.Now()
	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketFor(p))
		if err := deleteFeed(b, feed); err != nil {
			return err
		}
		for i, line := range lines {
			if err := b.Put(lineKey(feed, uint64(i)), []byte(line)); err != nil {
				return err
			}
		}
		meta := make([]byte, 16)
		binary.BigEndian.PutUint64(meta[:8], uint64(now.Unix()))
		binary.BigEndian.PutUint64(meta[8:], uint64(len(lines)))
		return tx.Bucket(bucketMeta).Put(metaKey(feed, p), meta)
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrIO, err)
	}
	return uint64(len(lines)), nil
}

func readLines(r io.Reader, p domain.Polarity) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineLen+2)
	var (
		lines []string
		errs  error
		n     int
	)
	for scanner.Scan() {
		n++
		line := scanner.Text()
		if n == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if _, err := domain.ParseRuleLine(line, p); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("line %d: %w", n, err))
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, multierr.Append(errs, fmt.Errorf("%w: line %d too long", domain.ErrMalformedDB, n+1))
		}
		return nil, multierr.Append(errs, fmt.Errorf("%w: %v", domain.ErrIO, err))
	}
	if errs != nil {
		return nil, errs
	}
	return lines, nil
}

func deleteFeed(b *bbolt.Bucket, feed string) error {
	prefix := append([]byte(feed), 0)
	c := b.Cursor()
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Seek(prefix) {
		if err := c.Delete(); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a feed and its metadata.
func (s *Store) Delete(feed string, p domain.Polarity) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := deleteFeed(tx.Bucket(bucketFor(p)), feed); err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Delete(metaKey(feed, p))
	})
}

// Reader returns every stored line of the polarity, newline terminated, in
// feed name order.
func (s *Store) Reader(p domain.Polarity) (io.Reader, error) {
	var buf bytes.Buffer
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketFor(p)).ForEach(func(_, v []byte) error {
			buf.Write(v)
			buf.WriteByte('\n')
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIO, err)
	}
	return &buf, nil
}

// Feeds lists imported feeds sorted by polarity then name.
func (s *Store) Feeds() ([]FeedInfo, error) {
	var out []FeedInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketMeta).ForEach(func(k, v []byte) error {
			i := bytes.IndexByte(k, 0)
			if i < 0 || len(v) != 16 {
				return nil
			}
			p, err := domain.ParsePolarity(string(k[:i]))
			if err != nil {
				return nil
			}
			out = append(out, FeedInfo{
				Name:       string(k[i+1:]),
				Polarity:   p,
				ImportedAt: time.Unix(int64(binary.BigEndian.Uint64(v[:8])), 0).UTC(),
				Lines:      binary.BigEndian.Uint64(v[8:]),
			})
			return nil
		})
	})
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Polarity != out[b].Polarity {
			return out[a].Polarity < out[b].Polarity
		}
		return out[a].Name < out[b].Name
	})
	return out, err
}

// Stats returns line counts read in a single read-only transaction.
func (s *Store) Stats() Stats {
	st := Stats{}
	_ = s.db.View(func(tx *bbolt.Tx) error {
		if b := tx.Bucket(bucketWhitelist); b != nil {
			st.WhitelistLines = uint64(b.Stats().KeyN)
		}
		if b := tx.Bucket(bucketBlacklist); b != nil {
			st.BlacklistLines = uint64(b.Stats().KeyN)
		}
		if b := tx.Bucket(bucketMeta); b != nil {
			st.Feeds = b.Stats().KeyN
		}
		return nil
	})
	return st
}

// Purge drops every feed.
func (s *Store) Purge() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := deleteBuckets(tx, bucketWhitelist, bucketBlacklist, bucketMeta); err != nil {
			return err
		}
		return ensureBucketsFn(tx)
	})
}
