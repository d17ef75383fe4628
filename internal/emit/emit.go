// Package emit delivers generated documents and reports run status.
package emit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// MimePDF is the media type of every artifact the tools produce
const MimePDF = "application/pdf"

// Artifact is one generated document ready for delivery
type Artifact struct {
	Filename string
	MimeType string
	Bytes    []byte
	Pages    int
}

// NewPDF wraps a serialised PDF
func NewPDF(filename string, data []byte, pages int) Artifact {
	return Artifact{Filename: filename, MimeType: MimePDF, Bytes: data, Pages: pages}
}

// Record describes a delivered artifact
type Record struct {
	Filename string `json:"filename"`
	Path     string `json:"path,omitempty"`
	Bytes    int    `json:"bytes"`
	Pages    int    `json:"pages"`
}

// Emitter delivers artifacts one at a time
type Emitter interface {
	Emit(ctx context.Context, a Artifact) (Record, error)
}

// DirEmitter writes artifacts into a directory, overwriting files of the
// same name
type DirEmitter struct {
	Dir string
}

// NewDirEmitter returns an emitter for dir, which must be absolute
func NewDirEmitter(dir string) (*DirEmitter, error) {
	if !filepath.IsAbs(dir) {
		return nil, fmt.Errorf("output directory must be an absolute path, got %q", dir)
	}
	return &DirEmitter{Dir: dir}, nil
}

func (d *DirEmitter) Emit(ctx context.Context, a Artifact) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	if err := os.MkdirAll(d.Dir, 0700); err != nil {
		return Record{}, fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(d.Dir, filepath.Base(a.Filename))
	if err := os.WriteFile(path, a.Bytes, 0600); err != nil {
		return Record{}, fmt.Errorf("failed to write %s: %w", a.Filename, err)
	}

	return Record{Filename: a.Filename, Path: path, Bytes: len(a.Bytes), Pages: a.Pages}, nil
}

// MemoryEmitter keeps artifacts in memory
type MemoryEmitter struct {
	mu        sync.Mutex
	artifacts []Artifact
}

func (m *MemoryEmitter) Emit(ctx context.Context, a Artifact) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.artifacts = append(m.artifacts, a)
	return Record{Filename: a.Filename, Bytes: len(a.Bytes), Pages: a.Pages}, nil
}

// Artifacts returns everything emitted so far, in order
func (m *MemoryEmitter) Artifacts() []Artifact {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.artifacts)
}

// Filenames returns the names of everything emitted so far, in order
func (m *MemoryEmitter) Filenames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, len(m.artifacts))
	for i, a := range m.artifacts {
		names[i] = a.Filename
	}
	return names
}
