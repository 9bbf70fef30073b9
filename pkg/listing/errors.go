package listing

import (
	"errors"
	"fmt"
)

// ErrNoListing indicates the listing page did not contain the expected
// directory table. Without an enumeration nothing downstream can proceed,
// so this is never downgraded to a per-key failure.
var ErrNoListing = errors.New("listing table not found")

// Error represents an enumeration failure.
type Error struct {
	// Op is the enumeration being attempted ("tickers" or "dates").
	Op string

	// Path is the listing path that was requested.
	Path string

	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("enumerate %s (%s): %v", e.Op, e.Path, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}
