// Package honeyerrors defines the error kinds shared by the honey table packages. Errors
// returned by those packages wrap one of these sentinels and are classified with errors.Is.
package honeyerrors

import "errors"

var (
	// ErrOpen is returned when the file backing a table cannot be obtained.
	ErrOpen = errors.New("honey: failed to open table")
	// ErrClosed is returned on access after a table was closed permanently.
	ErrClosed = errors.New("honey: table is closed")
	// ErrInvalidArgument reports caller contract violations such as bad key sizes,
	// out-of-order keys or writes to a sealed table.
	ErrInvalidArgument = errors.New("honey: invalid argument")
	// ErrCorrupt reports on-disk data that cannot be decoded.
	ErrCorrupt = errors.New("honey: corrupt data")
)
