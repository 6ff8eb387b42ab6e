// Package hashing computes content keys for uploaded replays.
//
// The hash method is part of each record's wire format, so the string
// values (sha256, md5, name) are stable identifiers rather than Go
// constants free to change.
package hashing

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"github.com/vladfi1/SlippiDump/pkg/replay"
)

// chunkSize bounds memory while hashing large archive members.
const chunkSize = 64 * 1024

// New returns a fresh hash.Hash for the given method. HashName has no
// digest; callers derive the key from the upload name instead.
func New(method replay.HashMethod) (hash.Hash, error) {
	switch method {
	case replay.HashSHA256:
		return sha256.New(), nil
	case replay.HashMD5:
		return md5.New(), nil
	default:
		return nil, fmt.Errorf("no digest for hash method %q", method)
	}
}

// Sum computes the hex-encoded digest of data using the given method.
func Sum(data []byte, method replay.HashMethod) (string, error) {
	h, err := New(method)
	if err != nil {
		return "", err
	}
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SumReader computes the hex-encoded digest of the reader's full
// contents and then rewinds it to the start, so the caller can stream
// the same bytes into the blob store afterwards.
func SumReader(r io.ReadSeeker, method replay.HashMethod) (string, error) {
	h, err := New(method)
	if err != nil {
		return "", err
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to rewind reader: %w", err)
	}

	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", fmt.Errorf("failed to hash contents: %w", err)
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to rewind reader: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
