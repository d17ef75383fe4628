package pipeline

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sammcj/mcp-pdftools/internal/emit"
	"github.com/sammcj/mcp-pdftools/internal/pdferr"
	"github.com/sammcj/mcp-pdftools/internal/plan"
	"github.com/sammcj/mcp-pdftools/internal/queue"
	"github.com/sammcj/mcp-pdftools/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	backend *fakeBackend
	emitter *emit.MemoryEmitter
	status  *emit.RecordingSink
	opts    Options
}

func newHarness() *harness {
	h := &harness{
		backend: &fakeBackend{},
		emitter: &emit.MemoryEmitter{},
		status:  &emit.RecordingSink{},
	}
	h.opts = Options{
		Backend: h.backend,
		Emitter: h.emitter,
		Status:  h.status,
		Logger:  testutils.CreateTestLogger(),
	}
	return h
}

func (h *harness) single(t *testing.T, name string, pages int) *SingleSession {
	t.Helper()
	s := NewSingleSession(h.opts)
	_, err := s.Load(context.Background(), name, bytes.NewReader(fakePDF(pages)))
	require.NoError(t, err)
	return s
}

func (h *harness) labels(i int) []string {
	return fakeLabels(h.emitter.Artifacts()[i].Bytes)
}

func (h *harness) titles() []string {
	var out []string
	for _, s := range h.status.Entries() {
		out = append(out, s.Title)
	}
	return out
}

func TestLoad_Status(t *testing.T) {
	h := newHarness()
	s := NewSingleSession(h.opts)
	assert.False(t, s.RunEnabled())

	doc, err := s.Load(context.Background(), "Report.pdf", bytes.NewReader(fakePDF(3)))
	require.NoError(t, err)
	assert.Equal(t, "Report", doc.BaseName)
	assert.True(t, s.RunEnabled())
	assert.Equal(t, []emit.Status{
		{Title: "Busy", Detail: "Loading PDF…", Mode: emit.ModeBusy},
		{Title: "Ready", Detail: "PDF loaded.", Mode: emit.ModeOK},
	}, h.status.Entries())
}

func TestLoad_FailureKeepsPreviousDocument(t *testing.T) {
	h := newHarness()
	s := h.single(t, "first.pdf", 4)

	_, err := s.Load(context.Background(), "broken.pdf", strings.NewReader("garbage"))
	require.ErrorIs(t, err, pdferr.ErrLoad)

	last, _ := h.status.Last()
	assert.Equal(t, emit.Status{Title: "Error", Detail: "Failed to load PDF.", Mode: emit.ModeErr}, last)
	require.NotNil(t, s.Document())
	assert.Equal(t, "first.pdf", s.Document().Name)
	assert.Equal(t, 4, s.Document().PageCount)
}

func TestLoad_MaxFileSize(t *testing.T) {
	h := newHarness()
	h.opts.MaxFileSize = 10
	s := NewSingleSession(h.opts)

	_, err := s.Load(context.Background(), "big.pdf", bytes.NewReader(fakePDF(5)))
	assert.ErrorIs(t, err, pdferr.ErrLoad)
	assert.Nil(t, s.Document())
}

func TestClear(t *testing.T) {
	h := newHarness()
	s := h.single(t, "doc.pdf", 2)
	s.Clear()
	assert.Nil(t, s.Document())
	assert.False(t, s.RunEnabled())

	last, _ := h.status.Last()
	assert.Equal(t, emit.Status{Title: "Ready", Detail: "Cleared.", Mode: emit.ModeReady}, last)
}

func TestSplitRanges(t *testing.T) {
	h := newHarness()
	s := h.single(t, "doc.pdf", 10)

	res, err := s.SplitRanges(context.Background(), "7-10,1-3,5", false, "")
	require.NoError(t, err)

	assert.Equal(t, []string{"doc_p001-003.pdf", "doc_p005.pdf", "doc_p007-010.pdf"}, h.emitter.Filenames())
	assert.Equal(t, []string{"p1", "p2", "p3"}, h.labels(0))
	assert.Equal(t, []string{"p5"}, h.labels(1))
	assert.Equal(t, []string{"p7", "p8", "p9", "p10"}, h.labels(2))

	assert.Equal(t, ToolSplitRanges, res.Tool)
	assert.NotEmpty(t, res.RunID)
	require.Len(t, res.Artifacts, 3)
	assert.Equal(t, 4, res.Artifacts[2].Pages)
	assert.Equal(t, "Split files written.", res.Summary)

	entries := h.status.Entries()
	assert.Equal(t, emit.Status{Title: "Busy", Detail: "Splitting…", Mode: emit.ModeBusy}, entries[len(entries)-2])
	assert.Equal(t, emit.Status{Title: "Done", Detail: "Split files written.", Mode: emit.ModeOK}, entries[len(entries)-1])
}

func TestSplitRanges_KeepOrderAndBase(t *testing.T) {
	h := newHarness()
	s := h.single(t, "doc.pdf", 10)

	_, err := s.SplitRanges(context.Background(), "7-10,1-3", true, "My:Split")
	require.NoError(t, err)
	assert.Equal(t, []string{"My_Split_p007-010.pdf", "My_Split_p001-003.pdf"}, h.emitter.Filenames())
}

func TestSplitRanges_ErrorsEmitNothing(t *testing.T) {
	h := newHarness()
	s := h.single(t, "doc.pdf", 5)

	_, err := s.SplitRanges(context.Background(), "1-3, 4-9", false, "")
	require.ErrorIs(t, err, pdferr.ErrOutOfRange)
	assert.Empty(t, h.emitter.Artifacts())

	last, _ := h.status.Last()
	assert.Equal(t, emit.Status{Title: "Error", Detail: "out of range: 4-9", Mode: emit.ModeErr}, last)
	assert.True(t, s.RunEnabled())
}

func TestRun_NoDocument(t *testing.T) {
	h := newHarness()
	s := NewSingleSession(h.opts)

	_, err := s.Extract(context.Background(), "1", "")
	require.ErrorIs(t, err, pdferr.ErrNoInput)
	assert.Equal(t, []string{"Error"}, h.titles())
	assert.Equal(t, "no input: add a PDF first", h.status.Entries()[0].Detail)
}

func TestExtract_KeepsOrderAndDuplicates(t *testing.T) {
	h := newHarness()
	s := h.single(t, "doc.pdf", 5)

	res, err := s.Extract(context.Background(), "3, 1, 3, 4-5", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"PDF-Extract.pdf"}, h.emitter.Filenames())
	assert.Equal(t, []string{"p3", "p1", "p3", "p4", "p5"}, h.labels(0))
	assert.Equal(t, 5, res.Artifacts[0].Pages)
}

func TestDelete(t *testing.T) {
	h := newHarness()
	s := h.single(t, "doc.pdf", 8)

	_, err := s.Delete(context.Background(), "2, 4-6, 4", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"PDF-Delete.pdf"}, h.emitter.Filenames())
	assert.Equal(t, []string{"p1", "p3", "p7", "p8"}, h.labels(0))
}

func TestDelete_AllPages(t *testing.T) {
	h := newHarness()
	s := h.single(t, "doc.pdf", 3)

	_, err := s.Delete(context.Background(), "1-3", "")
	require.ErrorIs(t, err, pdferr.ErrEmptyResult)
	assert.Empty(t, h.emitter.Artifacts())
}

func TestReorder(t *testing.T) {
	h := newHarness()
	s := h.single(t, "doc.pdf", 4)

	_, err := s.Reorder(context.Background(), "4,3,2,1,1", "reversed")
	require.NoError(t, err)
	assert.Equal(t, []string{"reversed.pdf"}, h.emitter.Filenames())
	assert.Equal(t, []string{"p4", "p3", "p2", "p1", "p1"}, h.labels(0))
}

func TestRotate(t *testing.T) {
	h := newHarness()
	s := h.single(t, "doc.pdf", 3)

	_, err := s.Rotate(context.Background(), 90, false, "1, 3", "")
	require.NoError(t, err)

	rotations, err := h.backend.Rotations(h.emitter.Artifacts()[0].Bytes)
	require.NoError(t, err)
	assert.Equal(t, []int{90, 0, 90}, rotations)
	assert.Equal(t, []string{"PDF-Rotate.pdf"}, h.emitter.Filenames())

	// rotating the output again accumulates
	_, err = s.Load(context.Background(), "rotated.pdf", bytes.NewReader(h.emitter.Artifacts()[0].Bytes))
	require.NoError(t, err)
	_, err = s.Rotate(context.Background(), 270, true, "", "")
	require.NoError(t, err)

	rotations, err = h.backend.Rotations(h.emitter.Artifacts()[1].Bytes)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 270, 0}, rotations)
}

func TestRotate_InvalidDegrees(t *testing.T) {
	h := newHarness()
	s := h.single(t, "doc.pdf", 3)

	_, err := s.Rotate(context.Background(), 45, true, "", "")
	require.ErrorIs(t, err, pdferr.ErrInvalidParameter)
	assert.NotContains(t, h.titles(), "Busy")
}

func TestRotate_BadPageList(t *testing.T) {
	h := newHarness()
	s := h.single(t, "doc.pdf", 3)

	_, err := s.Rotate(context.Background(), 90, false, "4", "")
	require.ErrorIs(t, err, pdferr.ErrOutOfRange)
	assert.Empty(t, h.emitter.Artifacts())
}

func TestSplitEvery(t *testing.T) {
	h := newHarness()
	s := h.single(t, "doc.pdf", 10)

	res, err := s.SplitEvery(context.Background(), 3, "base")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"base_p001-003.pdf",
		"base_p004-006.pdf",
		"base_p007-009.pdf",
		"base_p010-010.pdf",
	}, h.emitter.Filenames())
	assert.Equal(t, []string{"p10"}, h.labels(3))
	assert.Equal(t, "Batch split files written.", res.Summary)
}

func TestSplitEvery_InvalidSize(t *testing.T) {
	for _, n := range []float64{0, -1, 2.5} {
		h := newHarness()
		s := h.single(t, "doc.pdf", 10)

		_, err := s.SplitEvery(context.Background(), n, "")
		require.ErrorIs(t, err, pdferr.ErrInvalidParameter, "n=%v", n)
		assert.Empty(t, h.emitter.Artifacts())
	}
}

func TestSplitEvery_DefaultBaseAndOverride(t *testing.T) {
	h := newHarness()
	h.opts.BaseNames = map[Tool]string{ToolSplitEvery: "Chunk"}
	s := h.single(t, "doc.pdf", 2)

	_, err := s.SplitEvery(context.Background(), 5, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Chunk_p001-002.pdf"}, h.emitter.Filenames())

	h2 := newHarness()
	s2 := h2.single(t, "doc.pdf", 2)
	_, err = s2.SplitEvery(context.Background(), 5, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"PDF-BatchSplit_p001-002.pdf"}, h2.emitter.Filenames())
}

func TestFailureMidLoopKeepsEmittedArtifacts(t *testing.T) {
	h := newHarness()
	s := h.single(t, "doc.pdf", 9)
	h.backend.failAssembleAt = 2

	res, err := s.SplitEvery(context.Background(), 3, "x")
	require.ErrorIs(t, err, pdferr.ErrEncode)
	assert.Equal(t, []string{"x_p001-003.pdf"}, h.emitter.Filenames())
	require.NotNil(t, res)
	assert.Len(t, res.Artifacts, 1)

	last, _ := h.status.Last()
	assert.Equal(t, emit.ModeErr, last.Mode)
	assert.True(t, s.RunEnabled())
}

func TestEmitDelay(t *testing.T) {
	h := newHarness()
	h.opts.Delay = 30 * time.Millisecond
	s := h.single(t, "doc.pdf", 3)

	start := time.Now()
	_, err := s.SplitEvery(context.Background(), 1, "")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 55*time.Millisecond)
	assert.Len(t, h.emitter.Artifacts(), 3)
}

func TestCancelledContextStopsRun(t *testing.T) {
	h := newHarness()
	h.opts.Delay = time.Hour
	s := h.single(t, "doc.pdf", 4)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	res, err := s.SplitEvery(ctx, 1, "")
	require.Error(t, err)
	assert.Len(t, res.Artifacts, 1)
}

// blockingEmitter holds the first Emit until released
type blockingEmitter struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingEmitter) Emit(ctx context.Context, a emit.Artifact) (emit.Record, error) {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return emit.Record{Filename: a.Filename}, nil
}

func TestRunGuard(t *testing.T) {
	h := newHarness()
	blocker := &blockingEmitter{started: make(chan struct{}), release: make(chan struct{})}
	h.opts.Emitter = blocker
	s := h.single(t, "doc.pdf", 3)

	var mu sync.Mutex
	var control []bool
	s.OnRunControl(func(enabled bool) {
		mu.Lock()
		control = append(control, enabled)
		mu.Unlock()
	})

	done := make(chan error, 1)
	go func() {
		_, err := s.Extract(context.Background(), "1", "")
		done <- err
	}()

	<-blocker.started
	assert.False(t, s.RunEnabled())
	assert.True(t, s.Running())

	_, err := s.Reorder(context.Background(), "1", "")
	assert.ErrorIs(t, err, pdferr.ErrBusy)

	close(blocker.release)
	require.NoError(t, <-done)
	assert.True(t, s.RunEnabled())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{false, true}, control)
}

func TestInfo(t *testing.T) {
	h := newHarness()
	s := NewSingleSession(h.opts)

	_, err := s.Info(context.Background())
	require.ErrorIs(t, err, pdferr.ErrNoInput)

	s = h.single(t, "doc.pdf", 2)
	info, err := s.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, info.PageCount)
	assert.Equal(t, []int{0, 0}, info.Rotations)
	assert.Equal(t, "doc", info.BaseName)
}

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestMerge(t *testing.T) {
	h := newHarness()
	q := NewMergeSession(h.opts)
	assert.False(t, q.RunEnabled())

	added := q.Add(
		queue.FromBytes("b.pdf", fakePDFNamed("b", 2), epoch),
		queue.FromBytes("notes.txt", []byte("x"), epoch),
		queue.FromBytes("a.PDF", fakePDFNamed("a", 1), epoch),
	)
	assert.Equal(t, 2, added)
	assert.True(t, q.RunEnabled())
	last, _ := h.status.Last()
	assert.Equal(t, "Files updated.", last.Detail)

	require.True(t, q.MoveUp(1))

	res, err := q.Merge(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"PDF-Merge.pdf"}, h.emitter.Filenames())
	assert.Equal(t, []string{"a1", "b1", "b2"}, h.labels(0))
	assert.Equal(t, 3, res.Artifacts[0].Pages)
	assert.Equal(t, "Merged file written.", res.Summary)
}

func TestMerge_EmptyQueueAndBadEntry(t *testing.T) {
	h := newHarness()
	q := NewMergeSession(h.opts)

	_, err := q.Merge(context.Background(), "")
	require.ErrorIs(t, err, pdferr.ErrNoInput)
	assert.Contains(t, err.Error(), "add PDFs to merge")

	q.Add(
		queue.FromBytes("good.pdf", fakePDF(1), epoch),
		queue.FromBytes("bad.pdf", []byte("junk"), epoch),
	)
	_, err = q.Merge(context.Background(), "")
	require.ErrorIs(t, err, pdferr.ErrLoad)
	assert.Contains(t, err.Error(), "bad.pdf")
	assert.Empty(t, h.emitter.Artifacts())

	q.Clear()
	assert.Empty(t, q.Entries())
}

func TestImagesToPDF(t *testing.T) {
	h := newHarness()
	q := NewImageSession(h.opts)

	q.Add(
		queue.FromBytes("wide.png", testutils.SamplePNG(t, 200, 100), epoch),
		queue.FromBytes("tall.JPG", testutils.SampleJPEG(t, 50, 150), epoch),
		queue.FromBytes("doc.pdf", fakePDF(1), epoch),
	)
	require.Len(t, q.Entries(), 2)

	res, err := q.ImagesToPDF(context.Background(), "FIT", 10, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"PDF-ImagesToPDF.pdf"}, h.emitter.Filenames())
	assert.Equal(t, 2, res.Artifacts[0].Pages)
	assert.Equal(t, "Images PDF written.", res.Summary)

	require.Len(t, h.backend.composed, 1)
	pages := h.backend.composed[0]
	assert.Equal(t, "PNG", string(pages[0].Type))
	assert.Equal(t, "JPG", string(pages[1].Type))
	assert.Equal(t, plan.Placement{PageWidth: 200, PageHeight: 100, Width: 200, Height: 100}, pages[0].Placement)
	assert.Equal(t, plan.Placement{PageWidth: 50, PageHeight: 150, Width: 50, Height: 150}, pages[1].Placement)
}

func TestImagesToPDF_A4Margins(t *testing.T) {
	h := newHarness()
	q := NewImageSession(h.opts)
	q.Add(queue.FromBytes("square.png", testutils.SamplePNG(t, 100, 100), epoch))

	_, err := q.ImagesToPDF(context.Background(), "a4-landscape", 10, "album")
	require.NoError(t, err)
	assert.Equal(t, []string{"album.pdf"}, h.emitter.Filenames())

	pl := h.backend.composed[0][0].Placement
	assert.Equal(t, plan.ImagePlacement(plan.ModeA4Landscape, 10, 100, 100), pl)
	assert.Greater(t, pl.PageWidth, pl.PageHeight)
}

func TestImagesToPDF_Errors(t *testing.T) {
	h := newHarness()
	q := NewImageSession(h.opts)

	_, err := q.ImagesToPDF(context.Background(), "A4P", 10, "")
	require.ErrorIs(t, err, pdferr.ErrNoInput)
	assert.Contains(t, err.Error(), "add images first")

	q.Add(queue.FromBytes("broken.png", []byte("not an image"), epoch))
	_, err = q.ImagesToPDF(context.Background(), "A4P", 10, "")
	require.ErrorIs(t, err, pdferr.ErrEncode)

	_, err = q.ImagesToPDF(context.Background(), "letter", 10, "")
	require.ErrorIs(t, err, pdferr.ErrInvalidParameter)
	assert.Empty(t, h.emitter.Artifacts())
}

func TestQueueSession_WrongTool(t *testing.T) {
	h := newHarness()
	_, err := NewImageSession(h.opts).Merge(context.Background(), "")
	assert.ErrorIs(t, err, pdferr.ErrInvalidParameter)
	_, err = NewMergeSession(h.opts).ImagesToPDF(context.Background(), "FIT", 0, "")
	assert.ErrorIs(t, err, pdferr.ErrInvalidParameter)
}
