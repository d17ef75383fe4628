package pipeline

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/sammcj/mcp-pdftools/internal/document"
	"github.com/sammcj/mcp-pdftools/internal/emit"
	"github.com/sammcj/mcp-pdftools/internal/queue"
	"github.com/sammcj/mcp-pdftools/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func realOptions(t *testing.T) (Options, *emit.MemoryEmitter, *document.PDFCPU) {
	t.Helper()
	backend, err := document.NewPDFCPU("relaxed")
	require.NoError(t, err)
	m := &emit.MemoryEmitter{}
	return Options{
		Backend:     backend,
		Emitter:     m,
		Logger:      testutils.CreateTestLogger(),
		MaxFileSize: document.DefaultMaxFileSize,
	}, m, backend
}

func pageCount(t *testing.T, b *document.PDFCPU, data []byte) int {
	t.Helper()
	n, err := b.Open(data)
	require.NoError(t, err)
	return n
}

func TestPDFCPU_SplitAndRotate(t *testing.T) {
	opts, m, backend := realOptions(t)
	s := NewSingleSession(opts)

	_, err := s.Load(context.Background(), "sample.pdf", bytes.NewReader(testutils.SamplePDF(t, 6)))
	require.NoError(t, err)

	_, err = s.SplitRanges(context.Background(), "1-2, 6, 3-5", false, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"sample_p001-002.pdf", "sample_p003-005.pdf", "sample_p006.pdf"}, m.Filenames())

	arts := m.Artifacts()
	assert.Equal(t, 2, pageCount(t, backend, arts[0].Bytes))
	assert.Equal(t, 3, pageCount(t, backend, arts[1].Bytes))
	assert.Equal(t, 1, pageCount(t, backend, arts[2].Bytes))

	_, err = s.Rotate(context.Background(), -90, false, "2", "")
	require.NoError(t, err)
	rotated := m.Artifacts()[3].Bytes
	angles, err := backend.Rotations(rotated)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 270, 0, 0, 0, 0}, angles)
}

func TestPDFCPU_MergeAndImages(t *testing.T) {
	opts, m, backend := realOptions(t)

	merge := NewMergeSession(opts)
	merge.Add(
		queue.FromBytes("one.pdf", testutils.SamplePDF(t, 2), time.Unix(1, 0)),
		queue.FromBytes("two.pdf", testutils.SamplePDF(t, 3), time.Unix(2, 0)),
	)
	res, err := merge.Merge(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 5, res.Artifacts[0].Pages)
	assert.Equal(t, 5, pageCount(t, backend, m.Artifacts()[0].Bytes))

	images := NewImageSession(opts)
	images.Add(
		queue.FromBytes("a.png", testutils.SamplePNG(t, 64, 32), time.Unix(1, 0)),
		queue.FromBytes("b.jpeg", testutils.SampleJPEG(t, 32, 64), time.Unix(1, 0)),
	)
	_, err = images.ImagesToPDF(context.Background(), "A4P", 10, "")
	require.NoError(t, err)
	assert.Equal(t, 2, pageCount(t, backend, m.Artifacts()[1].Bytes))
}
