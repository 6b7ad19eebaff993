//go:build unix

package vspace

import (
	"golang.org/x/sys/unix"
)

// pageSize returns the system page size.
func pageSize() int {
	return unix.Getpagesize()
}

// reserve maps an anonymous PROT_NONE range of the given size. No
// physical memory is consumed until pages are committed and touched.
func reserve(size uint64) ([]byte, error) {
	return unix.Mmap(-1, 0, int(size), unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
}

// commit makes the segment readable and writable. Anonymous private
// pages are zero-filled on first touch, so no explicit clearing is
// needed for freshly committed memory.
func commit(seg []byte) error {
	return unix.Mprotect(seg, unix.PROT_READ|unix.PROT_WRITE)
}

// uncommit drops the segment's pages and seals it against access.
// MADV_DONTNEED guarantees the pages read as zero if the segment is
// ever committed again.
func uncommit(seg []byte) error {
	if err := unix.Madvise(seg, unix.MADV_DONTNEED); err != nil {
		return err
	}
	return unix.Mprotect(seg, unix.PROT_NONE)
}

// release unmaps the whole reservation.
func release(data []byte) error {
	return unix.Munmap(data)
}
