// Package lostfound builds the content-digest index over a recovery directory.
package lostfound

import (
	"github.com/elliotchance/orderedmap/v2"
)

// Entry is one indexed recovery file.
type Entry struct {
	Digest string // canonical lowercase hex SHA-256
	Path   string // absolute path
	Size   int64
}

// Index maps content digests to recovery file paths. It is immutable once built.
type Index struct {
	dir          string
	entries      *orderedmap.OrderedMap[string, Entry]
	scannedFiles int
	scannedBytes int64
}

// NewIndex creates an index from entries. Later entries replace earlier ones
// with the same digest.
func NewIndex(dir string, entries ...Entry) *Index {
	ix := &Index{
		dir:     dir,
		entries: orderedmap.NewOrderedMap[string, Entry](),
	}
	for _, e := range entries {
		ix.add(e)
	}
	return ix
}

// add records e and reports whether it replaced an existing digest.
func (ix *Index) add(e Entry) bool {
	ix.scannedFiles++
	ix.scannedBytes += e.Size
	return !ix.entries.Set(e.Digest, e)
}

// Lookup returns the recovery file path for a canonical digest.
func (ix *Index) Lookup(digest string) (string, bool) {
	if digest == "" {
		return "", false
	}
	e, ok := ix.entries.Get(digest)
	if !ok {
		return "", false
	}
	return e.Path, true
}

// Len returns the number of distinct digests.
func (ix *Index) Len() int {
	return ix.entries.Len()
}

// Dir returns the directory the index was built from.
func (ix *Index) Dir() string {
	return ix.dir
}

// ScannedFiles returns the number of files hashed, duplicates included.
func (ix *Index) ScannedFiles() int {
	return ix.scannedFiles
}

// ScannedBytes returns the number of bytes hashed, duplicates included.
func (ix *Index) ScannedBytes() int64 {
	return ix.scannedBytes
}

// Entries returns the indexed files in first-seen digest order.
func (ix *Index) Entries() []Entry {
	out := make([]Entry, 0, ix.entries.Len())
	for el := ix.entries.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value)
	}
	return out
}
