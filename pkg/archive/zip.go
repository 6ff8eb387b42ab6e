// Package archive opens uploaded zip archives and exposes the replay
// files they contain.
package archive

import (
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/zip"
)

// ErrCorruptArchive indicates the upload could not be parsed as a zip
// archive.
var ErrCorruptArchive = errors.New("corrupt or unreadable archive")

// replayExtension filters archive members: only Slippi replays are
// expanded, everything else in the archive is ignored.
const replayExtension = ".slp"

// Entry is a single replay file inside an archive.
type Entry struct {
	// Name is the member's base name, stripped of any directory
	// components inside the archive.
	Name string

	// UncompressedSize is the member's size after inflation, as
	// declared by the archive's central directory.
	UncompressedSize int64

	file *zip.File
}

// Open returns a reader over the entry's inflated contents.
func (e *Entry) Open() (io.ReadCloser, error) {
	rc, err := e.file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open archive member %s: %w", e.Name, err)
	}
	return rc, nil
}

// Archive is an opened zip upload, filtered down to its replay members.
type Archive struct {
	entries []Entry
}

// OpenZip parses a zip archive from the given reader. Directories and
// non-replay members are filtered out up front, so Len reflects the
// number of replays the archive would expand to.
func OpenZip(r io.ReaderAt, size int64) (*Archive, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptArchive, err)
	}

	var entries []Entry
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := path.Base(f.Name)
		if !strings.HasSuffix(strings.ToLower(name), replayExtension) {
			continue
		}
		entries = append(entries, Entry{
			Name:             name,
			UncompressedSize: int64(f.UncompressedSize64),
			file:             f,
		})
	}

	return &Archive{entries: entries}, nil
}

// Len returns the number of replay members in the archive.
func (a *Archive) Len() int {
	return len(a.entries)
}

// Entries returns the archive's replay members in archive order.
func (a *Archive) Entries() []Entry {
	return a.entries
}
