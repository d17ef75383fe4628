package pagerange

import (
	"strconv"
	"testing"

	"github.com/sammcj/mcp-pdftools/internal/pdferr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTokens(t *testing.T) {
	assert.Equal(t, []string{"1-3", "5", "7 - 10"}, ParseTokens(" 1-3 , 5,, 7 - 10 ,"))
	assert.Empty(t, ParseTokens(""))
	assert.Empty(t, ParseTokens(" , ,\t,"))
}

func TestExpandPageList(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		count    int
		sort     bool
		expected []int
		err      error
	}{
		{name: "full range", text: "1-5", count: 5, expected: []int{1, 2, 3, 4, 5}},
		{name: "order preserved", text: "3,1,2", count: 3, expected: []int{3, 1, 2}},
		{name: "sorted", text: "3,1,2", count: 3, sort: true, expected: []int{1, 2, 3}},
		{name: "duplicates kept", text: "2,2,1-2", count: 4, expected: []int{2, 2, 1, 2}},
		{name: "duplicates kept when sorted", text: "2,1-2", count: 4, sort: true, expected: []int{1, 2, 2}},
		{name: "whitespace around dash", text: "2 -  4", count: 4, expected: []int{2, 3, 4}},
		{name: "zero padded accepted", text: "007", count: 10, expected: []int{7}},
		{name: "mixed", text: "1, 3, 5-8", count: 8, expected: []int{1, 3, 5, 6, 7, 8}},
		{name: "empty", text: "  ,  ", count: 5, err: pdferr.ErrEmptyInput},
		{name: "inverted range", text: "5-2", count: 10, err: pdferr.ErrInvalidRange},
		{name: "inverted range with tiny count", text: "5-2", count: 1, err: pdferr.ErrInvalidRange},
		{name: "above count", text: "6", count: 5, err: pdferr.ErrOutOfRange},
		{name: "zero", text: "0", count: 5, err: pdferr.ErrOutOfRange},
		{name: "range past end", text: "4-9", count: 5, err: pdferr.ErrOutOfRange},
		{name: "huge range", text: "1-999999999999", count: 5, err: pdferr.ErrOutOfRange},
		{name: "overflowing number", text: "99999999999999999999999", count: 5, err: pdferr.ErrOutOfRange},
		{name: "garbage", text: "abc", count: 5, err: pdferr.ErrTokenSyntax},
		{name: "negative", text: "-3", count: 5, err: pdferr.ErrTokenSyntax},
		{name: "open range", text: "3-", count: 5, err: pdferr.ErrTokenSyntax},
		{name: "syntax after out of range", text: "9, x", count: 5, err: pdferr.ErrTokenSyntax},
		{name: "inverted after out of range", text: "9, 4-1", count: 5, err: pdferr.ErrInvalidRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pages, err := ExpandPageList(tt.text, tt.count, ListOptions{Sort: tt.sort})
			if tt.err != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.err)
				assert.Nil(t, pages)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, pages)
		})
	}
}

func TestExpandPageList_FullRangeForAnyCount(t *testing.T) {
	for n := 1; n <= 40; n++ {
		pages, err := ExpandPageList("1-"+strconv.Itoa(n), n, ListOptions{})
		require.NoError(t, err)
		require.Len(t, pages, n)
		for i, p := range pages {
			assert.Equal(t, i+1, p)
		}
	}
}

func TestExpandPageList_ReportsFirstOffendingPage(t *testing.T) {
	_, err := ExpandPageList("2, 4-9, 12", 5, ListOptions{})
	require.Error(t, err)
	assert.EqualError(t, err, "out of range: 6")

	_, err = ExpandPageList("0-3", 5, ListOptions{})
	assert.EqualError(t, err, "out of range: 0")
}

func TestExpandPageList_MessagesNameToken(t *testing.T) {
	_, err := ExpandPageList("1, 5-2", 10, ListOptions{})
	assert.EqualError(t, err, "invalid range: 5-2")

	_, err = ExpandPageList("1, two", 10, ListOptions{})
	assert.EqualError(t, err, "not recognised: two")
}

func TestParseRangeItems(t *testing.T) {
	items, err := ParseRangeItems("1-3,5,7-10", 10, true)
	require.NoError(t, err)
	assert.Equal(t, []RangeItem{
		{Token: "1-3", Start: 1, End: 3},
		{Token: "5", Start: 5, End: 5},
		{Token: "7-10", Start: 7, End: 10},
	}, items)

	items, err = ParseRangeItems("7-10,1-3,5", 10, false)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, [][2]int{{1, 3}, {5, 5}, {7, 10}}, bounds(items))

	items, err = ParseRangeItems("7-10,1-3,5", 10, true)
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{7, 10}, {1, 3}, {5, 5}}, bounds(items))
}

func TestParseRangeItems_StableForEqualStarts(t *testing.T) {
	items, err := ParseRangeItems("4-6, 1, 4, 1-2", 10, false)
	require.NoError(t, err)
	tokens := make([]string, len(items))
	for i, it := range items {
		tokens[i] = it.Token
	}
	assert.Equal(t, []string{"1", "1-2", "4-6", "4"}, tokens)
}

func TestParseRangeItems_Errors(t *testing.T) {
	tests := []struct {
		name string
		text string
		err  error
		msg  string
	}{
		{name: "empty", text: "", err: pdferr.ErrEmptyInput},
		{name: "syntax", text: "1-3, x", err: pdferr.ErrTokenSyntax, msg: "range not recognised: x"},
		{name: "syntax wins over bounds", text: "99, x", err: pdferr.ErrTokenSyntax},
		{name: "end past count", text: "8-12", err: pdferr.ErrOutOfRange, msg: "out of range: 8-12"},
		{name: "zero start", text: "0-2", err: pdferr.ErrOutOfRange},
		{name: "inverted", text: "5-2", err: pdferr.ErrInvalidRange, msg: "invalid range: 5-2"},
		{name: "bounds before inversion", text: "15-12", err: pdferr.ErrOutOfRange},
		{name: "inverted inside bounds", text: "9-2", err: pdferr.ErrInvalidRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := ParseRangeItems(tt.text, 10, true)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)
			assert.Nil(t, items)
			if tt.msg != "" {
				assert.EqualError(t, err, tt.msg)
			}
		})
	}
}

func TestRangeItemPages(t *testing.T) {
	assert.Equal(t, 1, RangeItem{Start: 4, End: 4}.Pages())
	assert.Equal(t, 4, RangeItem{Start: 7, End: 10}.Pages())
}

func bounds(items []RangeItem) [][2]int {
	out := make([][2]int, len(items))
	for i, it := range items {
		out[i] = [2]int{it.Start, it.End}
	}
	return out
}
