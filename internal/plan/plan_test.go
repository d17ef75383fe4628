package plan

import (
	"math"
	"testing"

	"github.com/sammcj/mcp-pdftools/internal/pagerange"
	"github.com/sammcj/mcp-pdftools/internal/pdferr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRangeIndices(t *testing.T) {
	assert.Equal(t, []int{4, 5, 6}, RangeIndices(pagerange.RangeItem{Start: 5, End: 7}))
	assert.Equal(t, []int{0}, RangeIndices(pagerange.RangeItem{Start: 1, End: 1}))
	assert.Nil(t, RangeIndices(pagerange.RangeItem{Start: 3, End: 2}))
}

func TestListIndices(t *testing.T) {
	assert.Equal(t, []int{2, 0, 1, 1}, ListIndices([]int{3, 1, 2, 2}))
	assert.Empty(t, ListIndices(nil))
}

func TestComplement(t *testing.T) {
	keep, err := Complement([]int{2, 4, 5, 6}, 8)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 7, 8}, keep)

	keep, err = Complement([]int{3, 3, 3, 1}, 5)
	require.NoError(t, err)
	assert.Len(t, keep, 5-2)
	assert.Equal(t, []int{2, 4, 5}, keep)
}

func TestComplement_AllPagesDeleted(t *testing.T) {
	_, err := Complement([]int{1, 2, 3, 2}, 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, pdferr.ErrEmptyResult)
}

func TestChunks(t *testing.T) {
	chunks, err := Chunks(10, 3)
	require.NoError(t, err)
	require.Len(t, chunks, 4)

	got := make([][2]int, len(chunks))
	for i, c := range chunks {
		got[i] = [2]int{c.Start, c.End}
	}
	assert.Equal(t, [][2]int{{1, 3}, {4, 6}, {7, 9}, {10, 10}}, got)
}

func TestChunks_Edges(t *testing.T) {
	chunks, err := Chunks(4, 10)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].Start)
	assert.Equal(t, 4, chunks[0].End)

	chunks, err = Chunks(3, 1)
	require.NoError(t, err)
	assert.Len(t, chunks, 3)

	chunks, err = Chunks(5, math.MaxInt)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 5, chunks[0].End)

	_, err = Chunks(5, 0)
	assert.ErrorIs(t, err, pdferr.ErrInvalidParameter)
}

func TestChunkSize(t *testing.T) {
	n, err := ChunkSize(5)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	for _, bad := range []float64{0, -2, 2.5, math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := ChunkSize(bad)
		assert.ErrorIs(t, err, pdferr.ErrInvalidParameter, "value %v", bad)
	}
}

func TestRotationTargets(t *testing.T) {
	targets, err := RotationTargets(true, "ignored", 3)
	require.NoError(t, err)
	assert.Equal(t, map[int]bool{1: true, 2: true, 3: true}, targets)

	targets, err = RotationTargets(false, "1, 3-4", 5)
	require.NoError(t, err)
	assert.Equal(t, map[int]bool{1: true, 3: true, 4: true}, targets)

	_, err = RotationTargets(false, "9", 5)
	assert.ErrorIs(t, err, pdferr.ErrOutOfRange)
}

func TestValidateRotation(t *testing.T) {
	for _, ok := range []int{0, 90, 180, 270, -90, 450} {
		assert.NoError(t, ValidateRotation(ok))
	}
	for _, bad := range []int{45, 100, -30} {
		assert.ErrorIs(t, ValidateRotation(bad), pdferr.ErrInvalidParameter)
	}
}

func TestApplyRotation(t *testing.T) {
	all := map[int]bool{1: true}

	once := ApplyRotation([]int{0}, all, 90)
	twice := ApplyRotation(once, all, 90)
	assert.Equal(t, []int{180}, twice)

	assert.Equal(t, []int{0}, ApplyRotation([]int{270}, all, 90))
	assert.Equal(t, []int{270}, ApplyRotation([]int{0}, all, -90))

	mixed := ApplyRotation([]int{0, 90, 180, 270}, map[int]bool{2: true, 4: true}, 180)
	assert.Equal(t, []int{0, 270, 180, 90}, mixed)
}

func TestNormalizeRotation(t *testing.T) {
	assert.Equal(t, 0, NormalizeRotation(360))
	assert.Equal(t, 90, NormalizeRotation(450))
	assert.Equal(t, 270, NormalizeRotation(-90))
	assert.Equal(t, 0, NormalizeRotation(-720))
}
