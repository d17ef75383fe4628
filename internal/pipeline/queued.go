package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/sammcj/mcp-pdftools/internal/document"
	"github.com/sammcj/mcp-pdftools/internal/emit"
	"github.com/sammcj/mcp-pdftools/internal/naming"
	"github.com/sammcj/mcp-pdftools/internal/pdferr"
	"github.com/sammcj/mcp-pdftools/internal/plan"
	"github.com/sammcj/mcp-pdftools/internal/queue"
	"github.com/sammcj/mcp-pdftools/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// QueueSession operates on an ordered list of inputs
type QueueSession struct {
	session

	tool    Tool
	updated string
	empty   string

	mu    sync.Mutex
	queue *queue.Queue
}

// NewMergeSession creates a session whose queue accepts PDFs
func NewMergeSession(opts Options) *QueueSession {
	return &QueueSession{
		session: newSession(opts),
		tool:    ToolMerge,
		updated: "Files updated.",
		empty:   "add PDFs to merge",
		queue:   queue.New(queue.PDFFilter),
	}
}

// NewImageSession creates a session whose queue accepts JPEG and PNG images
func NewImageSession(opts Options) *QueueSession {
	return &QueueSession{
		session: newSession(opts),
		tool:    ToolImagesToPDF,
		updated: "Images updated.",
		empty:   "add images first",
		queue:   queue.New(queue.ImageFilter),
	}
}

// Add queues the entries the filter accepts and returns how many were added
func (q *QueueSession) Add(entries ...queue.Entry) int {
	q.mu.Lock()
	added := q.queue.Add(entries...)
	q.mu.Unlock()

	q.report("Ready", q.updated, emit.ModeOK)
	return added
}

// MoveUp moves entry i one place towards the front
func (q *QueueSession) MoveUp(i int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.queue.MoveUp(i)
}

// MoveDown moves entry i one place towards the back
func (q *QueueSession) MoveDown(i int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.queue.MoveDown(i)
}

// Remove drops entry i
func (q *QueueSession) Remove(i int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.queue.Remove(i)
}

// Entries returns the queued entries in order
func (q *QueueSession) Entries() []queue.Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.queue.Entries()
}

// Clear empties the queue
func (q *QueueSession) Clear() {
	q.mu.Lock()
	q.queue.Clear()
	q.mu.Unlock()
	q.report("Ready", "Cleared.", emit.ModeReady)
}

// RunEnabled reports whether a run could start now
func (q *QueueSession) RunEnabled() bool {
	return len(q.Entries()) > 0 && !q.Running()
}

func (q *QueueSession) snapshot(entries *[]queue.Entry) func() error {
	return func() error {
		*entries = q.Entries()
		if len(*entries) == 0 {
			return fmt.Errorf("%w: %s", pdferr.ErrNoInput, q.empty)
		}
		return nil
	}
}

// Merge concatenates every queued PDF in queue order
func (q *QueueSession) Merge(ctx context.Context, base string) (*Result, error) {
	if q.tool != ToolMerge {
		return nil, fmt.Errorf("%w: session does not merge PDFs", pdferr.ErrInvalidParameter)
	}

	var entries []queue.Entry
	return q.execute(ctx, ToolMerge, "Merging…", q.snapshot(&entries), func(ctx context.Context, r *run) (string, error) {
		r.span.SetAttributes(attribute.Int(telemetry.AttrInputCount, len(entries)))

		sources := make([][]byte, 0, len(entries))
		pages := 0
		for _, e := range entries {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			doc, err := q.loadEntry(ctx, e)
			if err != nil {
				return "", err
			}
			sources = append(sources, doc.Bytes)
			pages += doc.PageCount
		}

		out, err := q.opts.Backend.Merge(sources)
		if err != nil {
			return "", encodeErr(err)
		}
		if err := r.emit(ctx, naming.PDFFileName(q.baseName(ToolMerge, base)), out, pages); err != nil {
			return "", err
		}
		return "Merged file written.", nil
	})
}

func (q *QueueSession) loadEntry(ctx context.Context, e queue.Entry) (*document.Document, error) {
	rc, err := e.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", pdferr.ErrLoad, e.Name, err)
	}
	defer func() { _ = rc.Close() }()
	return document.Load(ctx, q.opts.Backend, e.Name, rc, q.opts.MaxFileSize)
}

// ImagesToPDF draws each queued image on its own page. mode is FIT, A4P or
// A4L; marginMM only applies to the A4 modes.
func (q *QueueSession) ImagesToPDF(ctx context.Context, mode string, marginMM float64, base string) (*Result, error) {
	if q.tool != ToolImagesToPDF {
		return nil, fmt.Errorf("%w: session does not hold images", pdferr.ErrInvalidParameter)
	}

	var (
		entries  []queue.Entry
		pageMode plan.PageMode
	)
	ready := func() error {
		if err := q.snapshot(&entries)(); err != nil {
			return err
		}
		var err error
		pageMode, err = plan.ParsePageMode(mode)
		return err
	}

	return q.execute(ctx, ToolImagesToPDF, "Building PDF…", ready, func(ctx context.Context, r *run) (string, error) {
		r.span.SetAttributes(attribute.Int(telemetry.AttrInputCount, len(entries)))

		pages := make([]document.ImagePage, 0, len(entries))
		for _, e := range entries {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			page, err := q.imagePage(e, pageMode, marginMM)
			if err != nil {
				return "", err
			}
			pages = append(pages, page)
		}

		out, err := q.opts.Backend.ComposeImages(pages)
		if err != nil {
			return "", encodeErr(err)
		}
		if err := r.emit(ctx, naming.PDFFileName(q.baseName(ToolImagesToPDF, base)), out, len(pages)); err != nil {
			return "", err
		}
		return "Images PDF written.", nil
	})
}

func (q *QueueSession) imagePage(e queue.Entry, mode plan.PageMode, marginMM float64) (document.ImagePage, error) {
	if limit := q.opts.MaxFileSize; limit > 0 && e.Size > limit {
		return document.ImagePage{}, fmt.Errorf("%w: %s exceeds the maximum size of %d bytes", pdferr.ErrEncode, e.Name, limit)
	}

	data, err := e.ReadAll()
	if err != nil {
		return document.ImagePage{}, fmt.Errorf("%w: %w", pdferr.ErrEncode, err)
	}

	w, h, err := document.ImageSize(data)
	if err != nil {
		return document.ImagePage{}, fmt.Errorf("%s: %w", e.Name, err)
	}

	return document.ImagePage{
		Name:      e.Name,
		Type:      document.ImageTypeForExt(e.Ext()),
		Data:      data,
		Placement: plan.ImagePlacement(mode, marginMM, float64(w), float64(h)),
	}, nil
}
