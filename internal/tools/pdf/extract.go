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

// ExtractTool writes the selected pages to one PDF
type ExtractTool struct{}

func init() {
	registry.Register(&ExtractTool{})
}

// Definition returns the tool's definition for MCP registration
func (t *ExtractTool) Definition() mcp.Tool {
	return mcp.NewTool(
		string(pipeline.ToolExtract),
		mcp.WithDescription("Copy selected pages of a PDF, in the order listed, into a new PDF. Pages may repeat."),
		filePathParam(),
		mcp.WithString("pages",
			mcp.Required(),
			mcp.Description(`Pages to keep, e.g. "3, 1-2, 3"`),
		),
		outputDirParam(),
		baseNameParam(pipeline.DefaultBaseNames[pipeline.ToolExtract]),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

// Execute extracts the pages
func (t *ExtractTool) Execute(ctx context.Context, logger *logrus.Logger, cache *sync.Map, args map[string]any) (*mcp.CallToolResult, error) {
	pages, err := requiredString(args, "pages")
	if err != nil {
		return nil, err
	}
	return runSingle(ctx, logger, args, pipeline.ToolExtract, func(ctx context.Context, s *pipeline.SingleSession, base string) (*pipeline.Result, error) {
		return s.Extract(ctx, pages, base)
	})
}

// ProvideExtendedInfo provides detailed usage information for the tool
func (t *ExtractTool) ProvideExtendedInfo() *tools.ExtendedHelp {
	return &tools.ExtendedHelp{
		Examples: []tools.ToolExample{
			{
				Description: "Pull the summary and appendix out of a long document",
				Arguments: map[string]any{
					"file_path": "/Users/me/thesis.pdf",
					"pages":     "2, 140-152",
				},
				ExpectedResult: "Writes PDF-Extract.pdf with 14 pages",
			},
		},
		Troubleshooting: []tools.TroubleshootingTip{
			{
				Problem:  `error_kind "empty_input"`,
				Solution: "pages was empty or only commas. List at least one page",
			},
		},
		ParameterDetails: map[string]string{
			"pages": "Order is kept exactly as written and repeated pages are written again",
		},
		WhenToUse:    "Building one document from a subset of pages",
		WhenNotToUse: "Use pdf_delete when it is easier to name the pages to drop",
	}
}
