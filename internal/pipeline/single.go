package pipeline

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/sammcj/mcp-pdftools/internal/document"
	"github.com/sammcj/mcp-pdftools/internal/emit"
	"github.com/sammcj/mcp-pdftools/internal/naming"
	"github.com/sammcj/mcp-pdftools/internal/pagerange"
	"github.com/sammcj/mcp-pdftools/internal/pdferr"
	"github.com/sammcj/mcp-pdftools/internal/plan"
	"github.com/sammcj/mcp-pdftools/internal/telemetry"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// SingleSession operates on one loaded document
type SingleSession struct {
	session

	mu  sync.RWMutex
	doc *document.Document
}

// NewSingleSession creates a session with nothing loaded
func NewSingleSession(opts Options) *SingleSession {
	return &SingleSession{session: newSession(opts)}
}

// Load replaces the current document. On failure the previous document stays.
func (s *SingleSession) Load(ctx context.Context, name string, r io.Reader) (*document.Document, error) {
	s.report("Busy", "Loading PDF…", emit.ModeBusy)

	doc, err := document.Load(ctx, s.opts.Backend, name, r, s.opts.MaxFileSize)
	if err != nil {
		s.opts.Logger.WithError(err).WithField("name", name).Warn("Failed to load PDF")
		s.report("Error", "Failed to load PDF.", emit.ModeErr)
		return nil, err
	}

	s.mu.Lock()
	s.doc = doc
	s.mu.Unlock()

	s.opts.Logger.WithFields(logrus.Fields{"name": name, "pages": doc.PageCount}).Debug("PDF loaded")
	s.report("Ready", "PDF loaded.", emit.ModeOK)
	return doc, nil
}

// Document returns the loaded document or nil
func (s *SingleSession) Document() *document.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc
}

// Clear drops the loaded document
func (s *SingleSession) Clear() {
	s.mu.Lock()
	s.doc = nil
	s.mu.Unlock()
	s.report("Ready", "Cleared.", emit.ModeReady)
}

// RunEnabled reports whether a run could start now
func (s *SingleSession) RunEnabled() bool {
	return s.Document() != nil && !s.Running()
}

// loaded snapshots the document for one run
func (s *SingleSession) loaded(doc **document.Document) func() error {
	return func() error {
		*doc = s.Document()
		if *doc == nil {
			return fmt.Errorf("%w: add a PDF first", pdferr.ErrNoInput)
		}
		return nil
	}
}

func pageCountAttr(r *run, doc *document.Document) {
	r.span.SetAttributes(attribute.Int(telemetry.AttrPageCount, doc.PageCount))
}

// SplitRanges writes one document per range item. Items are emitted in
// ascending start order unless keepOrder is set.
func (s *SingleSession) SplitRanges(ctx context.Context, ranges string, keepOrder bool, base string) (*Result, error) {
	var doc *document.Document
	return s.execute(ctx, ToolSplitRanges, "Splitting…", s.loaded(&doc), func(ctx context.Context, r *run) (string, error) {
		pageCountAttr(r, doc)

		items, err := pagerange.ParseRangeItems(ranges, doc.PageCount, keepOrder)
		if err != nil {
			return "", err
		}

		name := naming.Resolve(base, doc.BaseName)
		for _, item := range items {
			out, err := s.opts.Backend.Assemble(doc.Bytes, plan.RangeIndices(item))
			if err != nil {
				return "", encodeErr(fmt.Errorf("range %s: %w", item.Token, err))
			}
			if err := r.emit(ctx, naming.PageFileName(name, item.Start, item.End), out, item.Pages()); err != nil {
				return "", err
			}
		}
		return "Split files written.", nil
	})
}

// Extract writes the listed pages, in the order entered, as one document
func (s *SingleSession) Extract(ctx context.Context, pages string, base string) (*Result, error) {
	var doc *document.Document
	return s.execute(ctx, ToolExtract, "Extracting…", s.loaded(&doc), func(ctx context.Context, r *run) (string, error) {
		pageCountAttr(r, doc)

		list, err := pagerange.ExpandPageList(pages, doc.PageCount, pagerange.ListOptions{})
		if err != nil {
			return "", err
		}
		if err := s.assembleOne(ctx, r, doc, list, s.baseName(ToolExtract, base)); err != nil {
			return "", err
		}
		return "Extracted file written.", nil
	})
}

// Delete writes the document without the listed pages
func (s *SingleSession) Delete(ctx context.Context, pages string, base string) (*Result, error) {
	var doc *document.Document
	return s.execute(ctx, ToolDelete, "Deleting pages…", s.loaded(&doc), func(ctx context.Context, r *run) (string, error) {
		pageCountAttr(r, doc)

		drop, err := pagerange.ExpandPageList(pages, doc.PageCount, pagerange.ListOptions{Sort: true})
		if err != nil {
			return "", err
		}
		keep, err := plan.Complement(drop, doc.PageCount)
		if err != nil {
			return "", err
		}
		if err := s.assembleOne(ctx, r, doc, keep, s.baseName(ToolDelete, base)); err != nil {
			return "", err
		}
		return "Cleaned file written.", nil
	})
}

// Reorder writes the pages in exactly the order entered. Pages may repeat
// or be left out.
func (s *SingleSession) Reorder(ctx context.Context, order string, base string) (*Result, error) {
	var doc *document.Document
	return s.execute(ctx, ToolReorder, "Reordering…", s.loaded(&doc), func(ctx context.Context, r *run) (string, error) {
		pageCountAttr(r, doc)

		list, err := pagerange.ExpandPageList(order, doc.PageCount, pagerange.ListOptions{})
		if err != nil {
			return "", err
		}
		if err := s.assembleOne(ctx, r, doc, list, s.baseName(ToolReorder, base)); err != nil {
			return "", err
		}
		return "Reordered file written.", nil
	})
}

// Rotate adds degrees to the rotation of the target pages and writes the
// whole document. all selects every page and ignores pages.
func (s *SingleSession) Rotate(ctx context.Context, degrees int, all bool, pages string, base string) (*Result, error) {
	var doc *document.Document
	ready := func() error {
		if err := s.loaded(&doc)(); err != nil {
			return err
		}
		return plan.ValidateRotation(degrees)
	}

	return s.execute(ctx, ToolRotate, "Rotating…", ready, func(ctx context.Context, r *run) (string, error) {
		pageCountAttr(r, doc)

		targets, err := plan.RotationTargets(all, pages, doc.PageCount)
		if err != nil {
			return "", err
		}

		current, err := s.opts.Backend.Rotations(doc.Bytes)
		if err != nil {
			return "", encodeErr(err)
		}
		next := plan.ApplyRotation(current, targets, degrees)

		angles := make(map[int]int, len(targets))
		for p := range targets {
			angles[p-1] = next[p-1]
		}

		out, err := s.opts.Backend.SetRotations(doc.Bytes, angles)
		if err != nil {
			return "", encodeErr(err)
		}
		if err := r.emit(ctx, naming.PDFFileName(s.baseName(ToolRotate, base)), out, doc.PageCount); err != nil {
			return "", err
		}
		return "Rotated file written.", nil
	})
}

// SplitEvery writes consecutive chunks of n pages. n arrives as a raw number
// and must be a whole number of 1 or more.
func (s *SingleSession) SplitEvery(ctx context.Context, n float64, base string) (*Result, error) {
	var (
		doc  *document.Document
		size int
	)
	ready := func() error {
		if err := s.loaded(&doc)(); err != nil {
			return err
		}
		var err error
		size, err = plan.ChunkSize(n)
		return err
	}

	return s.execute(ctx, ToolSplitEvery, "Splitting…", ready, func(ctx context.Context, r *run) (string, error) {
		pageCountAttr(r, doc)

		chunks, err := plan.Chunks(doc.PageCount, size)
		if err != nil {
			return "", err
		}

		name := s.baseName(ToolSplitEvery, base)
		for _, chunk := range chunks {
			out, err := s.opts.Backend.Assemble(doc.Bytes, plan.RangeIndices(chunk))
			if err != nil {
				return "", encodeErr(fmt.Errorf("pages %s: %w", chunk.Token, err))
			}
			if err := r.emit(ctx, naming.RangeFileName(name, chunk.Start, chunk.End), out, chunk.Pages()); err != nil {
				return "", err
			}
		}
		return "Batch split files written.", nil
	})
}

func (s *SingleSession) assembleOne(ctx context.Context, r *run, doc *document.Document, pages []int, base string) error {
	out, err := s.opts.Backend.Assemble(doc.Bytes, plan.ListIndices(pages))
	if err != nil {
		return encodeErr(err)
	}
	return r.emit(ctx, naming.PDFFileName(base), out, len(pages))
}

// Info describes the loaded document
type Info struct {
	Name      string `json:"name"`
	BaseName  string `json:"base_name"`
	PageCount int    `json:"page_count"`
	Bytes     int    `json:"bytes"`
	Rotations []int  `json:"rotations"`
}

// Info reports the page count and per-page rotation without producing output
func (s *SingleSession) Info(ctx context.Context) (*Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc := s.Document()
	if doc == nil {
		return nil, fmt.Errorf("%w: add a PDF first", pdferr.ErrNoInput)
	}

	rotations, err := s.opts.Backend.Rotations(doc.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", pdferr.ErrLoad, err)
	}

	return &Info{
		Name:      doc.Name,
		BaseName:  doc.BaseName,
		PageCount: doc.PageCount,
		Bytes:     len(doc.Bytes),
		Rotations: rotations,
	}, nil
}
