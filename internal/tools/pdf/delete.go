package pdf

import (
	"context"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/mcp-pdftools/internal/pipeline"
	"github.com/sammcj/mcp-pdftools/internal/registry"
	"github.com/sammcj/mcp-pdftools/internal/tools"
	"github.com/sirupsen/logrus"
)

// DeleteTool writes a copy of a PDF without the listed pages
type DeleteTool struct{}

func init() {
	registry.Register(&DeleteTool{})
}

// Definition returns the tool's definition for MCP registration
func (t *DeleteTool) Definition() mcp.Tool {
	return mcp.NewTool(
		string(pipeline.ToolDelete),
		mcp.WithDescription("Write a copy of a PDF with the listed pages removed. The input file is not changed."),
		filePathParam(),
		mcp.WithString("pages",
			mcp.Required(),
			mcp.Description(`Pages to remove, e.g. "1, 4-6"`),
		),
		outputDirParam(),
		baseNameParam(pipeline.DefaultBaseNames[pipeline.ToolDelete]),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

// Execute removes the pages
func (t *DeleteTool) Execute(ctx context.Context, logger *logrus.Logger, cache *sync.Map, args map[string]any) (*mcp.CallToolResult, error) {
	pages, err := requiredString(args, "pages")
	if err != nil {
		return nil, err
	}
	return runSingle(ctx, logger, args, pipeline.ToolDelete, func(ctx context.Context, s *pipeline.SingleSession, base string) (*pipeline.Result, error) {
		return s.Delete(ctx, pages, base)
	})
}

// ProvideExtendedInfo provides detailed usage information for the tool
func (t *DeleteTool) ProvideExtendedInfo() *tools.ExtendedHelp {
	return &tools.ExtendedHelp{
		Examples: []tools.ToolExample{
			{
				Description: "Drop a cover page and a blank page",
				Arguments: map[string]any{
					"file_path": "/tmp/scan.pdf",
					"pages":     "1, 8",
					"base_name": "scan-clean",
				},
				ExpectedResult: "Writes /tmp/scan-clean.pdf with the remaining pages in their original order",
			},
		},
		Troubleshooting: []tools.TroubleshootingTip{
			{
				Problem:  `error_kind "empty_result"`,
				Solution: "The list covers every page. At least one page has to remain",
			},
		},
		WhenToUse: "Removing a few pages while keeping the rest in order",
	}
}
