// Package plan turns validated page references into zero-based index plans
// for the document backend. Nothing here performs I/O.
package plan

import (
	"fmt"
	"math"

	"github.com/sammcj/mcp-pdftools/internal/pagerange"
	"github.com/sammcj/mcp-pdftools/internal/pdferr"
)

// RangeIndices returns the zero-based indices start-1..end-1, ascending
func RangeIndices(item pagerange.RangeItem) []int {
	if item.End < item.Start {
		return nil
	}
	indices := make([]int, 0, item.Pages())
	for p := item.Start; p <= item.End; p++ {
		indices = append(indices, p-1)
	}
	return indices
}

// ListIndices converts 1-based pages to zero-based indices in the same order
func ListIndices(pages []int) []int {
	indices := make([]int, len(pages))
	for i, p := range pages {
		indices[i] = p - 1
	}
	return indices
}

// Complement returns the 1-based pages of [1, pageCount] that are not in
// deleted, ascending. Repeated entries in deleted count once.
func Complement(deleted []int, pageCount int) ([]int, error) {
	drop := make(map[int]bool, len(deleted))
	for _, p := range deleted {
		drop[p] = true
	}

	keep := make([]int, 0, pageCount)
	for p := 1; p <= pageCount; p++ {
		if !drop[p] {
			keep = append(keep, p)
		}
	}

	if len(keep) == 0 {
		return nil, fmt.Errorf("%w: delete list removes all pages", pdferr.ErrEmptyResult)
	}
	return keep, nil
}

// ChunkSize validates a raw numeric "pages per file" control
func ChunkSize(v float64) (int, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 1 {
		return 0, fmt.Errorf("%w: pages per file must be 1 or more", pdferr.ErrInvalidParameter)
	}
	if v != math.Trunc(v) {
		return 0, fmt.Errorf("%w: pages per file must be a whole number", pdferr.ErrInvalidParameter)
	}
	if v > float64(math.MaxInt32) {
		return math.MaxInt32, nil
	}
	return int(v), nil
}

// Chunks splits [1, pageCount] into consecutive groups of n pages. The last
// group is truncated to pageCount.
func Chunks(pageCount, n int) ([]pagerange.RangeItem, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: pages per file must be 1 or more", pdferr.ErrInvalidParameter)
	}

	var chunks []pagerange.RangeItem
	for start := 1; start <= pageCount; {
		end := min(start+n-1, pageCount)
		// start+n-1 can overflow for very large n
		if end < start {
			end = pageCount
		}
		chunks = append(chunks, pagerange.RangeItem{
			Token: fmt.Sprintf("%d-%d", start, end),
			Start: start,
			End:   end,
		})
		start = end + 1
	}
	return chunks, nil
}

// RotationTargets returns the set of 1-based pages to rotate: every page when
// all is set, otherwise the pages listed in text.
func RotationTargets(all bool, text string, pageCount int) (map[int]bool, error) {
	targets := make(map[int]bool)
	if all {
		for p := 1; p <= pageCount; p++ {
			targets[p] = true
		}
		return targets, nil
	}

	pages, err := pagerange.ExpandPageList(text, pageCount, pagerange.ListOptions{})
	if err != nil {
		return nil, err
	}
	for _, p := range pages {
		targets[p] = true
	}
	return targets, nil
}

// ValidateRotation checks that degrees is a quarter turn multiple, the only
// values a page /Rotate entry may hold.
func ValidateRotation(degrees int) error {
	if degrees%90 != 0 {
		return fmt.Errorf("%w: rotation must be a multiple of 90 degrees, got %d", pdferr.ErrInvalidParameter, degrees)
	}
	return nil
}

// NormalizeRotation maps any angle into [0, 360)
func NormalizeRotation(angle int) int {
	return ((angle % 360) + 360) % 360
}

// ApplyRotation adds degrees to the current angle of each target page. current
// is indexed by zero-based page index; targets holds 1-based page numbers.
// The returned slice has the same length and order as current.
func ApplyRotation(current []int, targets map[int]bool, degrees int) []int {
	out := make([]int, len(current))
	for i, angle := range current {
		if targets[i+1] {
			out[i] = NormalizeRotation(angle + degrees)
			continue
		}
		out[i] = angle
	}
	return out
}
