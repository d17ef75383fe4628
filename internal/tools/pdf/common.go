// Package pdf exposes the page tools over MCP. Each tool reads its inputs
// from absolute paths, runs one pipeline operation and writes the results
// into an output directory.
package pdf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/mcp-pdftools/internal/config"
	"github.com/sammcj/mcp-pdftools/internal/document"
	"github.com/sammcj/mcp-pdftools/internal/emit"
	"github.com/sammcj/mcp-pdftools/internal/pdferr"
	"github.com/sammcj/mcp-pdftools/internal/pipeline"
	"github.com/sammcj/mcp-pdftools/internal/queue"
	"github.com/sammcj/mcp-pdftools/internal/tools"
	"github.com/sirupsen/logrus"
)

// Request holds the arguments every tool shares
type Request struct {
	Files     []string `json:"files"`
	OutputDir string   `json:"output_dir"`
	BaseName  string   `json:"base_name,omitempty"`
}

// Response is the JSON body of every page tool
type Response struct {
	Tool      string         `json:"tool"`
	RunID     string         `json:"run_id,omitempty"`
	Summary   string         `json:"summary,omitempty"`
	OutputDir string         `json:"output_dir"`
	Inputs    []InputFile    `json:"inputs,omitempty"`
	Skipped   []string       `json:"skipped,omitempty"`
	Artifacts []emit.Record  `json:"artifacts"`
	Status    []emit.Status  `json:"status"`
	Error     string         `json:"error,omitempty"`
	ErrorKind string         `json:"error_kind,omitempty"`
	Info      *pipeline.Info `json:"info,omitempty"`
}

// InputFile is one queued input as listed in a response
type InputFile struct {
	Name string `json:"name"`
	Size string `json:"size"`
}

// Common parameter options, shared so every tool describes them the same way
func outputDirParam() mcp.ToolOption {
	return mcp.WithString("output_dir",
		mcp.Description("Absolute directory for the output files (defaults to the directory of the first input)"),
	)
}

func baseNameParam(fallback string) mcp.ToolOption {
	return mcp.WithString("base_name",
		mcp.Description(fmt.Sprintf("Base name for output files (default: %s). Characters not allowed in file names are replaced with _", fallback)),
	)
}

func filePathParam() mcp.ToolOption {
	return mcp.WithString("file_path",
		mcp.Required(),
		mcp.Description("Absolute file path to the PDF document"),
	)
}

func filePathsParam(what string) mcp.ToolOption {
	return mcp.WithArray("file_paths",
		mcp.Required(),
		mcp.Description(fmt.Sprintf("Absolute paths of the %s, in output order", what)),
		mcp.WithStringItems(),
	)
}

// ParseSingle reads file_path, output_dir and base_name for tools that work
// on one PDF
func ParseSingle(args map[string]any, settings *config.Settings) (*Request, error) {
	filePath, ok := args["file_path"].(string)
	if !ok || filePath == "" {
		return nil, fmt.Errorf("missing or invalid required parameter: file_path")
	}
	if !filepath.IsAbs(filePath) {
		return nil, fmt.Errorf("file_path must be an absolute path")
	}
	if !strings.HasSuffix(strings.ToLower(filePath), ".pdf") {
		return nil, fmt.Errorf("file_path must be a PDF file (.pdf extension)")
	}
	return finishRequest(args, []string{filePath}, settings)
}

// ParseMany reads file_paths, output_dir and base_name for the queue tools
func ParseMany(args map[string]any, settings *config.Settings) (*Request, error) {
	raw, ok := args["file_paths"].([]any)
	if !ok || len(raw) == 0 {
		return nil, fmt.Errorf("missing or invalid required parameter: file_paths")
	}
	files := make([]string, 0, len(raw))
	for i, v := range raw {
		path, ok := v.(string)
		if !ok || path == "" {
			return nil, fmt.Errorf("file_paths[%d] must be a non-empty string", i)
		}
		if !filepath.IsAbs(path) {
			return nil, fmt.Errorf("file_paths[%d] must be an absolute path", i)
		}
		files = append(files, path)
	}
	return finishRequest(args, files, settings)
}

func finishRequest(args map[string]any, files []string, settings *config.Settings) (*Request, error) {
	request := &Request{Files: files}

	if outputDir, ok := args["output_dir"].(string); ok && outputDir != "" {
		if !filepath.IsAbs(outputDir) {
			return nil, fmt.Errorf("output_dir must be an absolute path")
		}
		request.OutputDir = outputDir
	} else if settings != nil && settings.OutputDir != "" {
		request.OutputDir = settings.OutputDir
	} else {
		request.OutputDir = filepath.Dir(files[0])
	}

	if baseName, ok := args["base_name"].(string); ok {
		request.BaseName = baseName
	}
	return request, nil
}

// ValidateFileSize checks one input against the configured limit
func ValidateFileSize(size, limit int64) error {
	if limit > 0 && size > limit {
		return fmt.Errorf("file size %.1fMB exceeds maximum allowed size of %.1fMB (use %s environment variable to adjust limit)",
			float64(size)/(1024*1024), float64(limit)/(1024*1024), config.EnvMaxFileSize)
	}
	return nil
}

// statInput checks an input exists and is within the size limit
func statInput(path string, limit int64) error {
	fileInfo, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("file does not exist: %s", path)
	}
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	if fileInfo.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if err := ValidateFileSize(fileInfo.Size(), limit); err != nil {
		return fmt.Errorf("file size validation failed: %w", err)
	}
	return nil
}

var extraSink atomic.Pointer[emit.StatusSink]

// SetStatusSink adds a sink that receives the status of every run. Passing
// nil removes it.
func SetStatusSink(sink emit.StatusSink) {
	if sink == nil {
		extraSink.Store(nil)
		return
	}
	extraSink.Store(&sink)
}

// env is the per-call wiring between a tool and the pipeline
type env struct {
	request *Request
	status  *emit.RecordingSink
	opts    pipeline.Options
}

func newEnv(logger *logrus.Logger, tool pipeline.Tool, request *Request, settings *config.Settings) (*env, error) {
	backend, err := document.NewPDFCPU(settings.Validation)
	if err != nil {
		return nil, err
	}

	emitter, err := emit.NewDirEmitter(request.OutputDir)
	if err != nil {
		return nil, err
	}

	baseNames := make(map[pipeline.Tool]string, len(settings.BaseNames))
	for name, base := range settings.BaseNames {
		baseNames[pipeline.Tool(name)] = base
	}

	recording := &emit.RecordingSink{}
	sinks := emit.MultiSink{
		recording,
		emit.LogSink{Logger: logger, Fields: logrus.Fields{"tool": string(tool)}},
	}
	if extra := extraSink.Load(); extra != nil {
		sinks = append(sinks, *extra)
	}

	return &env{
		request: request,
		status:  recording,
		opts: pipeline.Options{
			Backend:     backend,
			Emitter:     emitter,
			Status:      sinks,
			Logger:      logger,
			Delay:       settings.EmitDelay,
			MaxFileSize: settings.MaxFileSize,
			BaseNames:   baseNames,
		},
	}, nil
}

// loadSingle opens the request's PDF into a fresh session
func (e *env) loadSingle(ctx context.Context) (*pipeline.SingleSession, error) {
	session := pipeline.NewSingleSession(e.opts)

	path := e.request.Files[0]
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := session.Load(ctx, filepath.Base(path), f); err != nil {
		return session, err
	}
	return session, nil
}

// queueFiles adds every request file to session and returns the names the
// session's filter rejected
func (e *env) queueFiles(session *pipeline.QueueSession) ([]string, error) {
	var (
		entries []queue.Entry
		skipped []string
	)
	for _, path := range e.request.Files {
		entry, err := queue.FromFile(path)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	session.Add(entries...)
	accepted := map[string]bool{}
	for _, entry := range session.Entries() {
		accepted[entry.Path] = true
	}
	for _, entry := range entries {
		if !accepted[entry.Path] {
			skipped = append(skipped, entry.Name)
		}
	}
	return skipped, nil
}

// response assembles the JSON body for a finished or failed run
func (e *env) response(tool pipeline.Tool, result *pipeline.Result, runErr error) *Response {
	resp := &Response{
		Tool:      string(tool),
		OutputDir: e.request.OutputDir,
		Artifacts: []emit.Record{},
		Status:    e.status.Entries(),
	}
	if result != nil {
		resp.RunID = result.RunID
		resp.Summary = result.Summary
		resp.Artifacts = result.Artifacts
	}
	if runErr != nil {
		resp.Error = runErr.Error()
		resp.ErrorKind = pdferr.Kind(runErr)
	}
	return resp
}

func listInputs(entries []queue.Entry) []InputFile {
	inputs := make([]InputFile, len(entries))
	for i, entry := range entries {
		inputs[i] = InputFile{Name: entry.Name, Size: humanize.Bytes(uint64(max(entry.Size, 0)))}
	}
	return inputs
}

// cancelled reports whether err came from the caller's context, which ends
// the call as a Go error instead of a JSON body
func cancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// finish logs the outcome and encodes the response. Pipeline failures are
// reported in the body so the caller sees what was written before the error.
func finish(logger *logrus.Logger, args map[string]any, resp *Response, runErr error) (*mcp.CallToolResult, error) {
	if runErr != nil && cancelled(runErr) {
		return nil, runErr
	}

	fields := logrus.Fields{
		"tool":      resp.Tool,
		"run_id":    resp.RunID,
		"artifacts": len(resp.Artifacts),
	}
	if runErr != nil {
		logger.WithFields(fields).WithError(runErr).Debug("PDF tool run failed")
		// pipeline failures never reach the server as Go errors
		tools.GetGlobalErrorLogger().LogToolError(resp.Tool, args, runErr, "")
	} else {
		logger.WithFields(fields).Debug("PDF tool run completed successfully")
	}
	return newToolResultJSON(resp)
}

// newToolResultJSON creates a new tool result with JSON content
func newToolResultJSON(data any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// numberArg reads a JSON number, which arrives as float64
func numberArg(args map[string]any, key string) (float64, bool, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case float64:
		return v, true, nil
	case int:
		return float64(v), true, nil
	case int64:
		return float64(v), true, nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false, fmt.Errorf("%s must be a number", key)
		}
		return f, true, nil
	default:
		return 0, false, fmt.Errorf("%s must be a number", key)
	}
}

// requiredString reads a string parameter that must be present. An empty
// value is passed through so the pipeline can report it.
func requiredString(args map[string]any, key string) (string, error) {
	s, ok := args[key].(string)
	if !ok {
		return "", fmt.Errorf("missing or invalid required parameter: %s", key)
	}
	return s, nil
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func boolArg(args map[string]any, key string) bool {
	b, _ := args[key].(bool)
	return b
}

func loadSettings() (*config.Settings, error) {
	settings, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return settings, nil
}

// singleOp runs one operation on a loaded document
type singleOp func(ctx context.Context, session *pipeline.SingleSession, base string) (*pipeline.Result, error)

// runSingle is the shared body of the one-document tools
func runSingle(ctx context.Context, logger *logrus.Logger, args map[string]any, tool pipeline.Tool, op singleOp) (*mcp.CallToolResult, error) {
	settings, err := loadSettings()
	if err != nil {
		return nil, err
	}
	request, err := ParseSingle(args, settings)
	if err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"tool":       string(tool),
		"file_path":  request.Files[0],
		"output_dir": request.OutputDir,
		"base_name":  request.BaseName,
	}).Debug("PDF tool parameters")

	if err := statInput(request.Files[0], settings.MaxFileSize); err != nil {
		return nil, err
	}

	e, err := newEnv(logger, tool, request, settings)
	if err != nil {
		return nil, err
	}

	session, err := e.loadSingle(ctx)
	if err != nil {
		return finish(logger, args, e.response(tool, nil, err), err)
	}

	result, runErr := op(ctx, session, request.BaseName)
	return finish(logger, args, e.response(tool, result, runErr), runErr)
}

// queueOp runs one operation over the queued inputs
type queueOp func(ctx context.Context, session *pipeline.QueueSession, base string) (*pipeline.Result, error)

// runQueue is the shared body of the merge and images tools
func runQueue(ctx context.Context, logger *logrus.Logger, args map[string]any, tool pipeline.Tool, newSession func(pipeline.Options) *pipeline.QueueSession, op queueOp) (*mcp.CallToolResult, error) {
	settings, err := loadSettings()
	if err != nil {
		return nil, err
	}
	request, err := ParseMany(args, settings)
	if err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"tool":       string(tool),
		"inputs":     len(request.Files),
		"output_dir": request.OutputDir,
		"base_name":  request.BaseName,
	}).Debug("PDF tool parameters")

	for _, path := range request.Files {
		if err := statInput(path, settings.MaxFileSize); err != nil {
			return nil, err
		}
	}

	e, err := newEnv(logger, tool, request, settings)
	if err != nil {
		return nil, err
	}

	session := newSession(e.opts)
	skipped, err := e.queueFiles(session)
	if err != nil {
		return nil, err
	}

	result, runErr := op(ctx, session, request.BaseName)
	resp := e.response(tool, result, runErr)
	resp.Inputs = listInputs(session.Entries())
	resp.Skipped = skipped
	return finish(logger, args, resp, runErr)
}
