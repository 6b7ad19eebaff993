package vspace

import "errors"

var (
	// ErrReserveFailed indicates the initial address-range reservation failed.
	ErrReserveFailed = errors.New("vspace: reservation failed")

	// ErrBadAlignment indicates a size or alignment that is not a
	// power-of-two multiple of the system page size.
	ErrBadAlignment = errors.New("vspace: bad size or alignment")
)
