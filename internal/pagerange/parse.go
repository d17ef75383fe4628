// Package pagerange parses user-entered page references such as "1-3, 5, 7-10".
//
// Two grammars share the same tokens: ExpandPageList resolves every token to
// individual page numbers, ParseRangeItems keeps ranges as intervals so each
// interval can become its own output document.
package pagerange

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/sammcj/mcp-pdftools/internal/pdferr"
)

var (
	singlePattern = regexp.MustCompile(`^(\d+)$`)
	rangePattern  = regexp.MustCompile(`^(\d+)\s*-\s*(\d+)$`)
)

// RangeItem is one validated interval of 1-based pages, inclusive on both ends
type RangeItem struct {
	Token string `json:"token"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Pages returns the number of pages covered by the item
func (r RangeItem) Pages() int {
	return r.End - r.Start + 1
}

// ListOptions controls ExpandPageList output ordering
type ListOptions struct {
	// Sort orders the expanded list ascending. Duplicates are kept either way.
	Sort bool
}

// ParseTokens splits text on commas, trims each segment and drops empty ones
func ParseTokens(text string) []string {
	var tokens []string
	for part := range strings.SplitSeq(text, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			tokens = append(tokens, part)
		}
	}
	return tokens
}

// ExpandPageList resolves text into an ordered list of 1-based page numbers.
// Ranges expand ascending. Syntax and inverted-range errors are reported in
// token order; bounds are checked once every token has been examined.
func ExpandPageList(text string, pageCount int, opts ListOptions) ([]int, error) {
	tokens := ParseTokens(text)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: enter at least one page or range", pdferr.ErrEmptyInput)
	}

	var pages []int
	// firstBad holds the first out-of-range page in expansion order. Once set,
	// nothing more is appended since the call is going to fail anyway.
	firstBad, haveBad := 0, false

	for _, t := range tokens {
		start, end, err := parseToken(t)
		if err != nil {
			return nil, err
		}
		if start > end {
			return nil, fmt.Errorf("%w: %s", pdferr.ErrInvalidRange, t)
		}
		if haveBad {
			continue
		}
		if bad, ok := firstOutOfRange(start, end, pageCount); ok {
			firstBad, haveBad = bad, true
			continue
		}
		for p := start; p <= end; p++ {
			pages = append(pages, p)
		}
	}

	if haveBad {
		return nil, fmt.Errorf("%w: %d", pdferr.ErrOutOfRange, firstBad)
	}

	if opts.Sort {
		slices.Sort(pages)
	}
	return pages, nil
}

// ParseRangeItems resolves text into range items without expanding them.
// When keepOrder is false the items are stable-sorted by start page.
func ParseRangeItems(text string, pageCount int, keepOrder bool) ([]RangeItem, error) {
	tokens := ParseTokens(text)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: enter at least one range item", pdferr.ErrEmptyInput)
	}

	items := make([]RangeItem, 0, len(tokens))
	for _, t := range tokens {
		start, end, err := parseToken(t)
		if err != nil {
			return nil, fmt.Errorf("range %w", err)
		}
		items = append(items, RangeItem{Token: t, Start: start, End: end})
	}

	for _, it := range items {
		if it.Start < 1 || it.End > pageCount {
			return nil, fmt.Errorf("%w: %s", pdferr.ErrOutOfRange, it.Token)
		}
		if it.Start > it.End {
			return nil, fmt.Errorf("%w: %s", pdferr.ErrInvalidRange, it.Token)
		}
	}

	if !keepOrder {
		slices.SortStableFunc(items, func(a, b RangeItem) int {
			return a.Start - b.Start
		})
	}
	return items, nil
}

// parseToken matches a token against the single and range patterns.
// Numbers too large for int are clamped so they fail the bounds check.
func parseToken(t string) (start, end int, err error) {
	if m := singlePattern.FindStringSubmatch(t); m != nil {
		p := atoiClamp(m[1])
		return p, p, nil
	}
	if m := rangePattern.FindStringSubmatch(t); m != nil {
		return atoiClamp(m[1]), atoiClamp(m[2]), nil
	}
	return 0, 0, fmt.Errorf("%w: %s", pdferr.ErrTokenSyntax, t)
}

// firstOutOfRange reports the first page of start..end (ascending) outside
// [1, pageCount] without materialising the range.
func firstOutOfRange(start, end, pageCount int) (int, bool) {
	if start < 1 {
		return start, true
	}
	if end > pageCount {
		return max(start, pageCount+1), true
	}
	return 0, false
}

func atoiClamp(digits string) int {
	n, err := strconv.Atoi(digits)
	if err != nil {
		// only digits reach here, so the sole failure is overflow
		return int(^uint(0) >> 1)
	}
	return n
}
