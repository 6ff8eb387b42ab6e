package metadata

import "errors"

// Standard metadata store errors. Implementations wrap these with the
// database and key for context; callers test with errors.Is.
var (
	// ErrRecordNotFound indicates no record exists for the requested
	// content key.
	ErrRecordNotFound = errors.New("record not found")

	// ErrDuplicateKey indicates an insert collided with an existing
	// record's key. The dedup check makes this rare, but stores that
	// can enforce it cheaply (badger transactions) do, narrowing the
	// duplicate-upload race window.
	ErrDuplicateKey = errors.New("duplicate record key")

	// ErrParamsNotFound indicates no params document exists for the
	// database name.
	ErrParamsNotFound = errors.New("params not found")
)
