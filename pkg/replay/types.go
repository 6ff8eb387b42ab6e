// Package replay defines the domain types for the replay ingestion
// pipeline: the metadata record stored for every accepted item, the
// per-database quota parameters, and the admission rejection taxonomy.
//
// These types are shared by the metadata store, the quota ledger, the
// database registry and the ingestion engine. They carry no behavior
// beyond defaulting and backfill; all pipeline logic lives in pkg/ingest.
package replay

import "time"

// Kind identifies what an ingested item is: a validated single replay,
// a member extracted from an archive, or a raw container upload whose
// declared type is recorded verbatim.
type Kind string

const (
	// KindSlp is a standalone .slp replay admitted through the
	// content-hash pipeline.
	KindSlp Kind = "slp"

	// KindArchiveMember is a .slp replay extracted from an uploaded
	// archive. Its record carries a RawKey back-reference when the
	// archive itself was stored as a raw upload.
	KindArchiveMember Kind = "archive-member"

	// KindZip and Kind7z are raw container uploads. The container is
	// stored as-is under the /raw/ namespace and expanded later.
	KindZip Kind = "zip"
	Kind7z  Kind = "7z"
)

// HashMethod identifies which algorithm produced a record's Key.
//
// Two digest algorithms exist across pipeline variants: sha256 for
// validated single items (identical bytes collide regardless of name)
// and md5 for archive members where speed matters more than collision
// strength. Raw uploads use the filename itself as the key, recorded
// as HashName.
type HashMethod string

const (
	HashSHA256 HashMethod = "sha256"
	HashMD5    HashMethod = "md5"
	HashName   HashMethod = "name"
)

// Compression identifies the payload transform applied before the blob
// write. Records store it so downstream consumers can reverse it.
type Compression string

const (
	CompressionZlib Compression = "zlib"
	CompressionNone Compression = "none"
)

// Record is the metadata document for one accepted item.
//
// Invariants:
//   - Key is unique within a database collection.
//   - The blob store holds an object at the record's derived blob key
//     for the lifetime of the record.
//   - Records are never mutated by the ingestion core after creation,
//     with the single exception of the Processed flag on raw uploads,
//     which the raw-expansion pass flips after admitting members.
type Record struct {
	// Key is the content key: a hex digest (sha256/md5) or, for raw
	// uploads, the sanitized original filename.
	Key string `json:"key"`

	// Name is the original filename as submitted. Informational only;
	// it takes no part in dedup for content-hash pipelines.
	Name string `json:"name"`

	// Kind records which pipeline admitted the item.
	Kind Kind `json:"kind"`

	// HashMethod records which algorithm produced Key.
	HashMethod HashMethod `json:"hash_method"`

	// Compression records the transform applied to the stored blob.
	Compression Compression `json:"compression"`

	// OriginalSize is the uncompressed payload size in bytes.
	OriginalSize int64 `json:"original_size"`

	// StoredSize is the post-compression byte count actually written
	// to the blob store. Quota accounting sums this field.
	StoredSize int64 `json:"stored_size"`

	// Processed is a downstream-consumer flag. False on creation.
	Processed bool `json:"processed"`

	// RawKey links an archive member back to the raw container upload
	// it was extracted from. Empty for direct uploads.
	RawKey string `json:"raw_key,omitempty"`

	// UploadedAt is the admission timestamp.
	UploadedAt time.Time `json:"uploaded_at"`
}

// Params holds the quota parameters for one logical database.
//
// Exactly one Params document exists per database name. The registry
// creates it with defaults on first access and backfills missing
// fields on every read, so documents written by older revisions keep
// working as new limits are added.
type Params struct {
	Name           string `json:"name" mapstructure:"name"`
	MaxSizePerFile int64  `json:"max_size_per_file" mapstructure:"max_size_per_file"`
	MinSizePerFile int64  `json:"min_size_per_file" mapstructure:"min_size_per_file"`
	MaxFiles       int64  `json:"max_files" mapstructure:"max_files"`
	MaxTotalSize   int64  `json:"max_total_size" mapstructure:"max_total_size"`
}

// MB is the decimal megabyte used by all default limits.
const MB = 1_000_000

// Default quota limits, applied when a database is first used and as
// backfill for params documents missing a field.
const (
	DefaultMaxSizePerFile = 10 * MB
	DefaultMinSizePerFile = 1 * MB
	DefaultMaxFiles       = 100
)

// DefaultParams returns a fully populated Params document for a
// database that has never been configured.
func DefaultParams(name string) Params {
	p := Params{Name: name}
	p.Backfill()
	return p
}

// Backfill replaces zero-valued limits with defaults. MaxTotalSize
// defaults to MaxFiles * MaxSizePerFile, the loosest bound consistent
// with the per-file limits, so databases written before the aggregate
// limit existed keep their effective capacity.
func (p *Params) Backfill() {
	if p.MaxSizePerFile == 0 {
		p.MaxSizePerFile = DefaultMaxSizePerFile
	}
	if p.MinSizePerFile == 0 {
		p.MinSizePerFile = DefaultMinSizePerFile
	}
	if p.MaxFiles == 0 {
		p.MaxFiles = DefaultMaxFiles
	}
	if p.MaxTotalSize == 0 {
		p.MaxTotalSize = p.MaxFiles * p.MaxSizePerFile
	}
}
