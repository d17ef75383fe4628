// Package queue holds the ordered input list used by the merge and
// images-to-PDF tools.
package queue

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// Entry is one queued input. Contents are read lazily through Open.
type Entry struct {
	Name    string    `json:"name"`
	Path    string    `json:"path,omitempty"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`

	open func() (io.ReadCloser, error)
}

// FromFile stats path and returns an entry that reads it on demand
func FromFile(path string) (Entry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return Entry{}, fmt.Errorf("%s is a directory", path)
	}

	return Entry{
		Name:    filepath.Base(path),
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// FromBytes wraps in-memory contents as an entry
func FromBytes(name string, data []byte, modTime time.Time) Entry {
	return Entry{
		Name:    name,
		Size:    int64(len(data)),
		ModTime: modTime,
		open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// Open returns a reader over the entry contents
func (e Entry) Open() (io.ReadCloser, error) {
	if e.open == nil {
		return nil, fmt.Errorf("entry %s has no content", e.Name)
	}
	return e.open()
}

// ReadAll reads the whole entry
func (e Entry) ReadAll() ([]byte, error) {
	rc, err := e.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", e.Name, err)
	}
	return data, nil
}

// Ext returns the lower-cased extension of the entry name, including the dot
func (e Entry) Ext() string {
	return strings.ToLower(filepath.Ext(e.Name))
}

func (e Entry) key() entryKey {
	return entryKey{name: e.Name, size: e.Size, mod: e.ModTime.UnixNano()}
}

type entryKey struct {
	name string
	size int64
	mod  int64
}

// Filter decides whether an entry may join a queue
type Filter func(Entry) bool

// SuffixFilter accepts names ending in any of the suffixes, ignoring case
func SuffixFilter(suffixes ...string) Filter {
	return func(e Entry) bool {
		name := strings.ToLower(e.Name)
		for _, s := range suffixes {
			if strings.HasSuffix(name, strings.ToLower(s)) {
				return true
			}
		}
		return false
	}
}

var (
	// PDFFilter matches the merge tool's accept rule
	PDFFilter = SuffixFilter("pdf")
	// ImageFilter matches the image formats that can be embedded
	ImageFilter = SuffixFilter(".jpg", ".jpeg", ".png")
)

// Queue is an ordered list of entries without duplicates
type Queue struct {
	filter  Filter
	entries []Entry
}

// New creates an empty queue. A nil filter accepts everything.
func New(filter Filter) *Queue {
	return &Queue{filter: filter}
}

// Add appends the entries that pass the filter and are not already queued.
// It returns how many were added.
func (q *Queue) Add(entries ...Entry) int {
	seen := make(map[entryKey]bool, len(q.entries)+len(entries))
	for _, e := range q.entries {
		seen[e.key()] = true
	}

	added := 0
	for _, e := range entries {
		if q.filter != nil && !q.filter(e) {
			continue
		}
		k := e.key()
		if seen[k] {
			continue
		}
		seen[k] = true
		q.entries = append(q.entries, e)
		added++
	}
	return added
}

// MoveUp swaps entry i with the one before it
func (q *Queue) MoveUp(i int) bool {
	if i <= 0 || i >= len(q.entries) {
		return false
	}
	q.entries[i-1], q.entries[i] = q.entries[i], q.entries[i-1]
	return true
}

// MoveDown swaps entry i with the one after it
func (q *Queue) MoveDown(i int) bool {
	if i < 0 || i >= len(q.entries)-1 {
		return false
	}
	q.entries[i+1], q.entries[i] = q.entries[i], q.entries[i+1]
	return true
}

// Remove deletes entry i
func (q *Queue) Remove(i int) bool {
	if i < 0 || i >= len(q.entries) {
		return false
	}
	q.entries = slices.Delete(q.entries, i, i+1)
	return true
}

// Clear empties the queue
func (q *Queue) Clear() {
	q.entries = nil
}

// Entries returns a copy of the queued entries in order
func (q *Queue) Entries() []Entry {
	return slices.Clone(q.entries)
}

// Len reports the number of queued entries
func (q *Queue) Len() int {
	return len(q.entries)
}
