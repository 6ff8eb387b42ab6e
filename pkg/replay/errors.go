package replay

import "errors"

// Reason is the category of an admission rejection.
//
// The ingestion engine translates every failed admission into exactly
// one Reason. Callers (the HTTP layer, archive reports) surface the
// reason and message; they never need to inspect the wrapped cause
// except for StoreUnavailable, where the underlying store error is
// preserved for logging.
type Reason string

const (
	// UnsupportedKind: the filename extension is not recognized for
	// the pipeline that received it.
	UnsupportedKind Reason = "unsupported_kind"

	// TooSmall / TooLarge: payload size outside the database's
	// per-file bounds. Bounds are inclusive: a payload of exactly
	// min_size_per_file or max_size_per_file is accepted.
	TooSmall Reason = "too_small"
	TooLarge Reason = "too_large"

	// Duplicate: an item with the same content key already has a
	// metadata record in this database.
	Duplicate Reason = "duplicate"

	// QuotaExceeded: admitting the item would push the database past
	// max_total_size or max_files.
	QuotaExceeded Reason = "quota_exceeded"

	// CorruptArchive: the uploaded container could not be parsed.
	// Always rejects the whole archive with zero admissions.
	CorruptArchive Reason = "corrupt_archive"

	// StoreUnavailable: a backing store failed mid-operation. Unlike
	// the validation reasons above, this may leave partial state (an
	// orphan blob when the metadata write fails after the blob write).
	StoreUnavailable Reason = "store_unavailable"
)

// RejectionError is a failed admission. Validation rejections (all
// reasons except StoreUnavailable) are side-effect free and safe to
// retry after correcting the input.
type RejectionError struct {
	// Reason is the rejection category.
	Reason Reason

	// Name is the submitted filename the rejection applies to.
	Name string

	// Message is a human-readable description, suitable for returning
	// to the uploader verbatim.
	Message string

	// Err is the underlying cause for StoreUnavailable rejections,
	// nil otherwise.
	Err error
}

func (e *RejectionError) Error() string {
	if e.Name != "" {
		return e.Name + ": " + e.Message
	}
	return e.Message
}

func (e *RejectionError) Unwrap() error {
	return e.Err
}

// AsRejection extracts a RejectionError from an error chain.
func AsRejection(err error) (*RejectionError, bool) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}
