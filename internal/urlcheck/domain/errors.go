package domain

import "errors"

var (
	// ErrOutOfMemory is returned when a query would need a buffer above the
	// configured allocation limit.
	ErrOutOfMemory = errors.New("out of memory")
	// ErrMalformedDB reports an unparseable or inconsistent database line, and is
	// returned by every load on a matcher that already failed.
	ErrMalformedDB = errors.New("malformed database")
	// ErrIO reports a read failure on the database source.
	ErrIO = errors.New("database i/o error")
	// ErrNotLoaded is returned by Build when nothing was loaded.
	ErrNotLoaded = errors.New("regex list not loaded")
	// ErrAlreadyBuilt is returned when loading into or rebuilding a frozen matcher.
	ErrAlreadyBuilt = errors.New("regex list already built")
)
