//go:build !unix

package vspace

import "os"

// pageSize returns the system page size.
func pageSize() int {
	return os.Getpagesize()
}

// reserve allocates a plain byte slice when mmap is not available. The
// committed-frontier bookkeeping still applies; there is just no page
// protection backing it up.
func reserve(size uint64) ([]byte, error) {
	return make([]byte, size), nil
}

// commit is a no-op for slice-backed reservations; the memory already
// reads as zero.
func commit(seg []byte) error {
	return nil
}

// uncommit zeroes the segment so a later commit sees the same
// zero-filled contents the mmap path guarantees.
func uncommit(seg []byte) error {
	for i := range seg {
		seg[i] = 0
	}
	return nil
}

// release drops the slice.
func release(data []byte) error {
	return nil
}
