package blob

import "errors"

// Standard blob store errors. Implementations wrap these with the key
// for context:
//
//	return fmt.Errorf("blob %s: %w", key, blob.ErrNotFound)
//
// Callers test with errors.Is.
var (
	// ErrNotFound indicates no object is stored at the requested key.
	ErrNotFound = errors.New("blob not found")

	// ErrInvalidKey indicates the key is empty or malformed for the
	// implementation (the filesystem store rejects path traversal).
	ErrInvalidKey = errors.New("invalid blob key")
)
