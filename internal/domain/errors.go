package domain

import "errors"

var (
	// ErrNotLoggedIn rejects remote-store operations made without a user.
	ErrNotLoggedIn = errors.New("user not logged in")

	// ErrInvalidItem rejects list additions missing a product id.
	ErrInvalidItem = errors.New("invalid item: missing id")

	// ErrProductNotFound means the product id is absent from its partition.
	ErrProductNotFound = errors.New("product not found in partition")

	// ErrPartitionNotFound means the gateway has no document for the category.
	ErrPartitionNotFound = errors.New("partition not found")

	// ErrConflict means a compare-and-set write lost to a concurrent writer.
	ErrConflict = errors.New("version conflict")

	// ErrOffline means the remote store could not be reached in time.
	ErrOffline = errors.New("remote store unreachable")
)
