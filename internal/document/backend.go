// Package document loads PDFs and produces new ones through a Backend.
package document

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/sammcj/mcp-pdftools/internal/naming"
	"github.com/sammcj/mcp-pdftools/internal/pdferr"
	"github.com/sammcj/mcp-pdftools/internal/plan"
)

// DefaultMaxFileSize caps the size of a single input (200MB)
const DefaultMaxFileSize int64 = 200 * 1024 * 1024

// Backend is the set of document operations the tools need. Page indices are
// zero-based throughout.
type Backend interface {
	// Open decodes data and returns its page count
	Open(data []byte) (int, error)
	// Assemble builds a new document from the pages at indices, in order
	Assemble(data []byte, indices []int) ([]byte, error)
	// Merge concatenates whole documents in order
	Merge(sources [][]byte) ([]byte, error)
	// Rotations returns the current rotation of every page
	Rotations(data []byte) ([]int, error)
	// SetRotations overwrites the rotation of the pages in angles
	SetRotations(data []byte, angles map[int]int) ([]byte, error)
	// ComposeImages renders one page per image
	ComposeImages(pages []ImagePage) ([]byte, error)
}

// Document is a loaded, decodable PDF
type Document struct {
	Name      string `json:"name"`
	BaseName  string `json:"base_name"`
	PageCount int    `json:"page_count"`
	Bytes     []byte `json:"-"`
}

// Load reads r fully and decodes it with backend. Inputs larger than
// maxSize are rejected before decoding; maxSize <= 0 disables the check.
func Load(ctx context.Context, backend Backend, name string, r io.Reader, maxSize int64) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if maxSize > 0 {
		r = io.LimitReader(r, maxSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", pdferr.ErrLoad, name, err)
	}
	if maxSize > 0 && int64(len(data)) > maxSize {
		return nil, fmt.Errorf("%w: %s exceeds the maximum size of %d bytes", pdferr.ErrLoad, name, maxSize)
	}

	return FromBytes(backend, name, data)
}

// FromBytes decodes data that is already in memory
func FromBytes(backend Backend, name string, data []byte) (*Document, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", pdferr.ErrLoad, name)
	}

	count, err := backend.Open(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", pdferr.ErrLoad, name, err)
	}
	if count < 1 {
		return nil, fmt.Errorf("%w: %s has no pages", pdferr.ErrLoad, name)
	}

	return &Document{
		Name:      name,
		BaseName:  naming.StripPDFExt(name),
		PageCount: count,
		Bytes:     data,
	}, nil
}

// ImageType is the embedded image encoding
type ImageType string

const (
	ImagePNG  ImageType = "PNG"
	ImageJPEG ImageType = "JPG"
)

// ImageTypeForExt maps a file extension to an image type. Only .png is PNG.
func ImageTypeForExt(ext string) ImageType {
	if ext == ".png" {
		return ImagePNG
	}
	return ImageJPEG
}

// ImagePage is one image and where to draw it
type ImagePage struct {
	Name      string
	Type      ImageType
	Data      []byte
	Placement plan.Placement
}

// ImageSize reads pixel dimensions from the image header
func ImageSize(data []byte) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: cannot read image header: %w", pdferr.ErrEncode, err)
	}
	if cfg.Width < 1 || cfg.Height < 1 {
		return 0, 0, fmt.Errorf("%w: image has no pixels", pdferr.ErrEncode)
	}
	return cfg.Width, cfg.Height, nil
}
