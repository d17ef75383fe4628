package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/mcp-pdftools/internal/registry"
	"github.com/sammcj/mcp-pdftools/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct{ names []string }

func (r *recorder) RecordTool(name string) error {
	r.names = append(r.names, name)
	return nil
}

func newRunner(out *bytes.Buffer, rec ToolRecorder) *Runner {
	return NewRunner(testutils.CreateTestLogger(), testutils.CreateTestCache(), OutputText, out, rec)
}

func TestParseArgs(t *testing.T) {
	def := mcp.NewTool("pdf_test",
		mcp.WithString("file_path"),
		mcp.WithNumber("pages_per_file"),
		mcp.WithBoolean("keep_order"),
		mcp.WithArray("file_paths", mcp.WithStringItems()),
	)

	params, err := parseArgs([]string{
		"--file-path=/tmp/a.pdf",
		"--pages-per-file", "3",
		"--keep-order",
		"--file-paths=/a.pdf, /b.pdf",
		`{"file_path": "/ignored.pdf", "base_name": "x"}`,
	}, def)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/a.pdf", params["file_path"])
	assert.Equal(t, float64(3), params["pages_per_file"])
	assert.Equal(t, true, params["keep_order"])
	assert.Equal(t, []any{"/a.pdf", "/b.pdf"}, params["file_paths"])
	assert.Equal(t, "x", params["base_name"])

	_, err = parseArgs([]string{"stray"}, def)
	assert.Error(t, err)
	_, err = parseArgs([]string{"--file-path"}, def)
	assert.ErrorContains(t, err, "requires a value")
	_, err = parseArgs([]string{"{bad"}, def)
	assert.ErrorContains(t, err, "invalid JSON")
}

func TestCoerceValue(t *testing.T) {
	assert.Equal(t, 2.5, coerceValue("2.5", "number"))
	assert.Equal(t, "abc", coerceValue("abc", "number"))
	assert.Equal(t, false, coerceValue("no", "boolean"))
	assert.Equal(t, []any{"a", "b"}, coerceValue(`["a","b"]`, "array"))
}

func TestSuggest(t *testing.T) {
	known := []string{"pdf_delete", "pdf_merge", "pdf_split_every", "pdf_split_ranges"}

	assert.Equal(t, "pdf_merge", suggest("pdf-merg", known)[0])
	assert.ElementsMatch(t, []string{"pdf_split_every", "pdf_split_ranges"}, suggest("split", known))
	assert.Empty(t, suggest("zzz", known))
}

func TestRunner_RunTool(t *testing.T) {
	registry.Register(testutils.NewMockTool("cli_mock"))

	var out bytes.Buffer
	rec := &recorder{}
	r := newRunner(&out, rec)

	require.NoError(t, r.RunTool(context.Background(), "cli-mock", []string{"--input=hello"}))
	assert.Contains(t, out.String(), "mock result")
	assert.Equal(t, []string{"cli_mock"}, rec.names)

	err := r.RunTool(context.Background(), "cli_mok", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did you mean cli_mock")
}

func TestRunner_FailureInBody(t *testing.T) {
	registry.Register(testutils.NewMockTool("cli_failing").
		WithResult(mcp.NewToolResultText(`{"error": "out of range: page 9", "error_kind": "out_of_range"}`)))

	var out bytes.Buffer
	err := newRunner(&out, nil).RunTool(context.Background(), "cli_failing", []string{"--input=x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page 9")
	assert.Contains(t, out.String(), "out_of_range")
}

func TestRunner_ToolError(t *testing.T) {
	registry.Register(testutils.NewMockTool("cli_broken").WithError(errors.New("boom")))

	var out bytes.Buffer
	err := newRunner(&out, nil).RunTool(context.Background(), "cli_broken", nil)
	assert.ErrorContains(t, err, "boom")
}

func TestRunner_ListAndHelp(t *testing.T) {
	registry.Register(testutils.NewMockTool("cli_listed"))

	var out bytes.Buffer
	r := newRunner(&out, nil)
	require.NoError(t, r.ListTools())
	assert.Contains(t, out.String(), "cli_listed")

	out.Reset()
	require.NoError(t, r.HelpTool("cli_listed"))
	assert.Contains(t, out.String(), "--input")
	assert.Contains(t, out.String(), "(required)")

	assert.Error(t, r.HelpTool("nothing_like_it"))
}
