package gen

import "errors"

var (
	// ErrInvalidBounds indicates min/max/initial sizes that do not
	// satisfy min <= initial <= max, or a zero maximum.
	ErrInvalidBounds = errors.New("gen: invalid generation size bounds")

	// ErrUnalignedSize indicates a size that is not a multiple of the
	// generation alignment, or an alignment that is not a power of two.
	ErrUnalignedSize = errors.New("gen: size not aligned to generation alignment")

	// ErrInitialCommit indicates the initial commit at construction
	// failed. A generation with no guaranteed capacity cannot satisfy
	// its contract, so this is fatal to construction.
	ErrInitialCommit = errors.New("gen: could not commit initial generation size")

	// ErrBadPageSize indicates a configured page size that is not a
	// power of two.
	ErrBadPageSize = errors.New("gen: page size must be a power of two")

	// ErrVerify indicates a structural self-check found an
	// inconsistency.
	ErrVerify = errors.New("gen: verification failed")
)
