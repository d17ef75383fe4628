package pdf

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/mcp-pdftools/internal/cache"
	"github.com/sammcj/mcp-pdftools/internal/pipeline"
	"github.com/sammcj/mcp-pdftools/internal/registry"
	"github.com/sammcj/mcp-pdftools/internal/tools"
	"github.com/sirupsen/logrus"
)

// infoTTL bounds how long a file's page details are reused
const infoTTL = 5 * time.Minute

// InfoTool reports page count and rotation without writing anything
type InfoTool struct {
	seen *cache.Cache[infoKey, pipeline.Info]
}

// infoKey identifies a file version
type infoKey struct {
	path    string
	size    int64
	modTime int64
}

func init() {
	registry.Register(NewInfoTool())
}

// NewInfoTool creates the tool with an empty cache
func NewInfoTool() *InfoTool {
	return &InfoTool{seen: cache.NewCache[infoKey, pipeline.Info](infoTTL)}
}

// Definition returns the tool's definition for MCP registration
func (t *InfoTool) Definition() mcp.Tool {
	return mcp.NewTool(
		string(pipeline.ToolInfo),
		mcp.WithDescription("Report the page count and each page's rotation for a PDF. Use before the page tools to check page numbers."),
		filePathParam(),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

// Execute loads the PDF and describes it
func (t *InfoTool) Execute(ctx context.Context, logger *logrus.Logger, _ *sync.Map, args map[string]any) (*mcp.CallToolResult, error) {
	settings, err := loadSettings()
	if err != nil {
		return nil, err
	}
	request, err := ParseSingle(args, settings)
	if err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}

	path := request.Files[0]
	if err := statInput(path, settings.MaxFileSize); err != nil {
		return nil, err
	}
	fileInfo, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	key := infoKey{path: path, size: fileInfo.Size(), modTime: fileInfo.ModTime().UnixNano()}

	e, err := newEnv(logger, pipeline.ToolInfo, request, settings)
	if err != nil {
		return nil, err
	}

	if cached, ok := t.seen.Get(key); ok {
		logger.WithField("file_path", path).Debug("Using cached PDF info")
		resp := e.response(pipeline.ToolInfo, nil, nil)
		resp.Info = &cached
		return newToolResultJSON(resp)
	}

	session, err := e.loadSingle(ctx)
	if err != nil {
		return finish(logger, args, e.response(pipeline.ToolInfo, nil, err), err)
	}

	info, err := session.Info(ctx)
	resp := e.response(pipeline.ToolInfo, nil, err)
	if err == nil {
		t.seen.Set(key, *info)
		resp.Info = info
	}
	return finish(logger, args, resp, err)
}

// ProvideExtendedInfo provides detailed usage information for the tool
func (t *InfoTool) ProvideExtendedInfo() *tools.ExtendedHelp {
	return &tools.ExtendedHelp{
		Examples: []tools.ToolExample{
			{
				Description: "Check the page count before splitting",
				Arguments: map[string]any{
					"file_path": "/Users/me/report.pdf",
				},
				ExpectedResult: `{"info": {"page_count": 20, "rotations": [0, 0, 90, ...]}}`,
			},
		},
		WhenToUse: "Learning how many pages a document has and which pages are already rotated",
	}
}
