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

// ReorderTool writes the pages of a PDF in a new order
type ReorderTool struct{}

func init() {
	registry.Register(&ReorderTool{})
}

// Definition returns the tool's definition for MCP registration
func (t *ReorderTool) Definition() mcp.Tool {
	return mcp.NewTool(
		string(pipeline.ToolReorder),
		mcp.WithDescription("Write the pages of a PDF in a new order. Pages left out of the order are dropped and repeated pages are duplicated."),
		filePathParam(),
		mcp.WithString("order",
			mcp.Required(),
			mcp.Description(`The complete new page order, e.g. "3, 1, 2" or "10, 1-9"`),
		),
		outputDirParam(),
		baseNameParam(pipeline.DefaultBaseNames[pipeline.ToolReorder]),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

// Execute reorders the pages
func (t *ReorderTool) Execute(ctx context.Context, logger *logrus.Logger, cache *sync.Map, args map[string]any) (*mcp.CallToolResult, error) {
	order, err := requiredString(args, "order")
	if err != nil {
		return nil, err
	}
	return runSingle(ctx, logger, args, pipeline.ToolReorder, func(ctx context.Context, s *pipeline.SingleSession, base string) (*pipeline.Result, error) {
		return s.Reorder(ctx, order, base)
	})
}

// ProvideExtendedInfo provides detailed usage information for the tool
func (t *ReorderTool) ProvideExtendedInfo() *tools.ExtendedHelp {
	return &tools.ExtendedHelp{
		Examples: []tools.ToolExample{
			{
				Description: "Move the last page of a four page file to the front",
				Arguments: map[string]any{
					"file_path": "/tmp/slides.pdf",
					"order":     "4, 1-3",
				},
				ExpectedResult: "Writes PDF-Reorder.pdf with pages 4, 1, 2, 3",
			},
		},
		ParameterDetails: map[string]string{
			"order": `Ranges expand in the direction written, so "3-1" is not allowed; spell a reversal out as "3, 2, 1"`,
		},
		WhenToUse: "Fixing page order after scanning or assembling",
	}
}
