// Package pdferr defines the error taxonomy shared by the parser, planner,
// document backend and pipeline. Callers wrap these sentinels with
// fmt.Errorf("%w: ...") and match them with errors.Is.
package pdferr

import "errors"

var (
	// ErrEmptyInput is returned when no tokens remain after splitting and trimming
	ErrEmptyInput = errors.New("empty input")

	// ErrTokenSyntax is returned when a token is neither a page number nor a range
	ErrTokenSyntax = errors.New("not recognised")

	// ErrInvalidRange is returned when a range has start > end
	ErrInvalidRange = errors.New("invalid range")

	// ErrOutOfRange is returned when a page falls outside [1, pageCount]
	ErrOutOfRange = errors.New("out of range")

	// ErrEmptyResult is returned when an operation would produce a zero-page document
	ErrEmptyResult = errors.New("empty result")

	// ErrInvalidParameter is returned for missing, non-finite or non-positive numeric controls
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrLoad is returned when source bytes cannot be decoded as a document
	ErrLoad = errors.New("failed to load PDF")

	// ErrEncode is returned when embedding an image or serialising a document fails
	ErrEncode = errors.New("failed to encode document")

	// ErrNoInput is returned when a tool is run before anything was loaded
	ErrNoInput = errors.New("no input")

	// ErrBusy is returned when a run is requested while another is still active
	ErrBusy = errors.New("a run is already in progress")
)

var kinds = []struct {
	err  error
	name string
}{
	{ErrEmptyInput, "empty_input"},
	{ErrTokenSyntax, "token_syntax"},
	{ErrInvalidRange, "invalid_range"},
	{ErrOutOfRange, "out_of_range"},
	{ErrEmptyResult, "empty_result"},
	{ErrInvalidParameter, "invalid_parameter"},
	{ErrLoad, "load"},
	{ErrEncode, "encode"},
	{ErrNoInput, "no_input"},
	{ErrBusy, "busy"},
}

// Kind returns a short machine-readable name for err, or "internal" when err
// does not wrap any sentinel. A nil error has no kind.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "internal"
}
