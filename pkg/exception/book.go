package exception

import "errors"

var (
	// ErrEmptyBookSide is returned by a best-price query on a side without levels.
	ErrEmptyBookSide = errors.New("book: empty book side")

	// ErrUnknownPriceOnDelete is returned when a delete references a price that is not resting.
	ErrUnknownPriceOnDelete = errors.New("book: unknown price on delete")

	// ErrNonPositiveSize is returned when an upsert carries a size <= 0.
	ErrNonPositiveSize = errors.New("book: non-positive size")

	ErrUnknownBookSide = errors.New("book: unknown book side")
)
