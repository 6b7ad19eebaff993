// Package gen implements the old (tenured) generation of a
// generational, parallel-collected heap: a logically contiguous
// address range that grows and shrinks between operator-configured
// bounds while keeping its coverage side-structures — the object-start
// array and the card table — exactly synchronized with the allocatable
// region at all times.
//
// # Overview
//
// A Generation owns four collaborators:
//
//   - internal/vspace: the reserved address range with a committed
//     low-addressed prefix (the only code touching real memory)
//   - gen/space: the [bottom, top, end) object space with
//     compare-and-swap bump allocation
//   - gen/startarr: the object-start array mapping any address to the
//     start of the object containing it
//   - gen/card: the card table recording coarse-grained dirty memory
//
// On top of these it provides four protocols:
//
//   - Sizing: Resize translates a desired-free-space target into an
//     expand or shrink with alignment, NUMA widening, min/max clamping,
//     and overflow-safe arithmetic; ExpandForAllocate grows the
//     generation on behalf of a failed allocation, rechecking free
//     space under the resize lock to avoid expand storms.
//   - Resize synchronization: after every committed-boundary change,
//     coverage is re-declared on the start array and the card table
//     before the new end is published to allocators. Publishing the
//     end is strictly the last visible mutation of a resize.
//   - Cooperative pretouch: allocating threads drive a lock-free
//     pretouch wave ahead of the allocation frontier with a single
//     compare-and-swap attempt per allocation (no retry loops).
//   - Block iteration: the live region is partitioned into 1 MiB
//     blocks; IterateBlock visits every object whose start lies in a
//     block exactly once, letting parallel workers scan disjoint
//     blocks without double-visiting straddling objects.
//
// # Concurrency
//
// Resizes are serialized by the generation's resize lock; the
// lower-level grow and shrink paths require a resizePermit token
// minted only while that lock is held. Resize driven by sizing policy
// is expected to run at a global synchronization point; concurrent
// expansion happens only on behalf of allocating threads via
// ExpandForAllocate. Pretouch takes no locks at all. Block iteration
// assumes no concurrent allocation or resize, which whole-generation
// scans guarantee by running at a synchronization point.
//
// # Failure model
//
// Running out of reservable memory is a soft failure reported by
// boolean returns from the expand paths; sizing policy decides what to
// do about it. A failed initial commit is a hard error from New.
// Broken internal invariants (stale coverage, misordered resize,
// corrupt object headers) panic: the generation is not safely
// continuable past them.
package gen
