// Package pipeline runs the PDF tools: it validates input against the loaded
// document, plans the output pages, produces documents through a backend and
// emits them in order while reporting status.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sammcj/mcp-pdftools/internal/document"
	"github.com/sammcj/mcp-pdftools/internal/emit"
	"github.com/sammcj/mcp-pdftools/internal/naming"
	"github.com/sammcj/mcp-pdftools/internal/pdferr"
	"github.com/sammcj/mcp-pdftools/internal/telemetry"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Tool identifies an operation. The values double as MCP tool names.
type Tool string

const (
	ToolSplitRanges Tool = "pdf_split_ranges"
	ToolMerge       Tool = "pdf_merge"
	ToolExtract     Tool = "pdf_extract"
	ToolDelete      Tool = "pdf_delete"
	ToolRotate      Tool = "pdf_rotate"
	ToolReorder     Tool = "pdf_reorder"
	ToolSplitEvery  Tool = "pdf_split_every"
	ToolImagesToPDF Tool = "pdf_images_to_pdf"
	ToolInfo        Tool = "pdf_info"
)

// DefaultBaseNames are used when the caller gives no base name. Split by
// ranges falls back to the loaded document's name instead.
var DefaultBaseNames = map[Tool]string{
	ToolMerge:       "PDF-Merge",
	ToolExtract:     "PDF-Extract",
	ToolDelete:      "PDF-Delete",
	ToolRotate:      "PDF-Rotate",
	ToolReorder:     "PDF-Reorder",
	ToolSplitEvery:  "PDF-BatchSplit",
	ToolImagesToPDF: "PDF-ImagesToPDF",
}

// Options configures a session
type Options struct {
	Backend document.Backend
	Emitter emit.Emitter
	Status  emit.StatusSink
	Logger  *logrus.Logger

	// Delay spaces successive artifacts of multi-output tools. Zero disables it.
	Delay time.Duration
	// MaxFileSize caps each input. Zero or less disables the check.
	MaxFileSize int64
	// BaseNames overrides DefaultBaseNames per tool
	BaseNames map[Tool]string
}

func (o Options) withDefaults() Options {
	if o.Emitter == nil {
		o.Emitter = &emit.MemoryEmitter{}
	}
	if o.Status == nil {
		o.Status = emit.Discard
	}
	if o.Logger == nil {
		o.Logger = logrus.New()
		o.Logger.SetOutput(io.Discard)
	}
	if o.Delay < 0 {
		o.Delay = 0
	}
	return o
}

// Result describes a finished run. On failure it holds whatever was emitted
// before the error.
type Result struct {
	Tool      Tool          `json:"tool"`
	RunID     string        `json:"run_id"`
	Summary   string        `json:"summary,omitempty"`
	Artifacts []emit.Record `json:"artifacts"`
}

// session holds what every tool kind shares: options, the run guard and the
// run-control listeners.
type session struct {
	opts    Options
	running atomic.Bool

	listenerMu sync.Mutex
	listeners  []func(enabled bool)
}

func newSession(opts Options) session {
	return session{opts: opts.withDefaults()}
}

// OnRunControl registers fn to be told when runs start (false) and end (true)
func (s *session) OnRunControl(fn func(enabled bool)) {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Running reports whether a run is in progress
func (s *session) Running() bool {
	return s.running.Load()
}

func (s *session) notify(enabled bool) {
	s.listenerMu.Lock()
	listeners := append([]func(bool){}, s.listeners...)
	s.listenerMu.Unlock()

	for _, fn := range listeners {
		fn(enabled)
	}
}

func (s *session) report(title, detail string, mode emit.Mode) {
	s.opts.Status.Report(title, detail, mode)
}

func (s *session) fail(err error) error {
	s.report("Error", err.Error(), emit.ModeErr)
	return err
}

func (s *session) baseName(tool Tool, user string) string {
	fallback := DefaultBaseNames[tool]
	if override, ok := s.opts.BaseNames[tool]; ok && override != "" {
		fallback = override
	}
	return naming.Resolve(user, fallback)
}

// run is the state of one tool invocation
type run struct {
	emitter emit.Emitter
	result  *Result
	span    trace.Span
	logger  *logrus.Entry
}

func (r *run) emit(ctx context.Context, filename string, data []byte, pages int) error {
	rec, err := r.emitter.Emit(ctx, emit.NewPDF(filename, data, pages))
	if err != nil {
		return err
	}
	r.result.Artifacts = append(r.result.Artifacts, rec)
	r.logger.WithFields(logrus.Fields{
		"filename": filename,
		"bytes":    rec.Bytes,
		"pages":    pages,
	}).Debug("Artifact emitted")
	return nil
}

// task is the body of a run. It returns the success sentence.
type task func(ctx context.Context, r *run) (string, error)

// execute guards, traces and reports one run. ready runs before the busy
// status so that missing input is reported without a busy flash.
func (s *session) execute(ctx context.Context, tool Tool, verb string, ready func() error, work task) (*Result, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("%w: %s", pdferr.ErrBusy, tool)
	}
	s.notify(false)
	defer func() {
		s.running.Store(false)
		s.notify(true)
	}()

	result := &Result{Tool: tool, RunID: uuid.NewString(), Artifacts: []emit.Record{}}
	logger := s.opts.Logger.WithFields(logrus.Fields{"tool": string(tool), "run_id": result.RunID})

	ctx, span := telemetry.StartRunSpan(ctx, string(tool), result.RunID)
	finish := func(err error) {
		var bytes int
		for _, a := range result.Artifacts {
			bytes += a.Bytes
		}
		span.SetAttributes(
			attribute.Int(telemetry.AttrArtifactCount, len(result.Artifacts)),
			attribute.Int(telemetry.AttrArtifactBytes, bytes),
		)
		telemetry.EndRunSpan(span, err, pdferr.Kind(err))
	}

	if ready != nil {
		if err := ready(); err != nil {
			finish(err)
			return result, s.fail(err)
		}
	}

	s.report("Busy", verb, emit.ModeBusy)
	logger.Debug("Run started")
	start := time.Now()

	r := &run{
		emitter: emit.NewSequencer(s.opts.Emitter, s.opts.Delay),
		result:  result,
		span:    span,
		logger:  logger,
	}
	summary, err := work(ctx, r)
	finish(err)

	fields := logrus.Fields{
		"artifacts": len(result.Artifacts),
		"duration":  time.Since(start).String(),
	}
	if err != nil {
		logger.WithFields(fields).WithError(err).Warn("Run failed")
		return result, s.fail(err)
	}

	result.Summary = summary
	logger.WithFields(fields).Info("Run finished")
	s.report("Done", summary, emit.ModeOK)
	return result, nil
}

// encodeErr marks a backend failure as an encoding error unless it already
// carries a taxonomy sentinel
func encodeErr(err error) error {
	if err == nil {
		return nil
	}
	if pdferr.Kind(err) != "internal" || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", pdferr.ErrEncode, err)
}
