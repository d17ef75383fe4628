package pdf

import (
	"context"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/mcp-pdftools/internal/pipeline"
	"github.com/sammcj/mcp-pdftools/internal/registry"
	"github.com/sammcj/mcp-pdftools/internal/tools"
	"github.com/sirupsen/logrus"
)

// SplitEveryTool cuts a PDF into fixed size chunks
type SplitEveryTool struct{}

func init() {
	registry.Register(&SplitEveryTool{})
}

// Definition returns the tool's definition for MCP registration
func (t *SplitEveryTool) Definition() mcp.Tool {
	return mcp.NewTool(
		string(pipeline.ToolSplitEvery),
		mcp.WithDescription("Split a PDF into consecutive files of N pages each. The last file holds whatever pages remain."),
		filePathParam(),
		mcp.WithNumber("pages_per_file",
			mcp.Required(),
			mcp.Description("Pages in each output file, a whole number of 1 or more"),
		),
		outputDirParam(),
		baseNameParam(pipeline.DefaultBaseNames[pipeline.ToolSplitEvery]),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

// Execute splits the PDF into chunks
func (t *SplitEveryTool) Execute(ctx context.Context, logger *logrus.Logger, cache *sync.Map, args map[string]any) (*mcp.CallToolResult, error) {
	n, ok, err := numberArg(args, "pages_per_file")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("missing or invalid required parameter: pages_per_file")
	}
	return runSingle(ctx, logger, args, pipeline.ToolSplitEvery, func(ctx context.Context, s *pipeline.SingleSession, base string) (*pipeline.Result, error) {
		return s.SplitEvery(ctx, n, base)
	})
}

// ProvideExtendedInfo provides detailed usage information for the tool
func (t *SplitEveryTool) ProvideExtendedInfo() *tools.ExtendedHelp {
	return &tools.ExtendedHelp{
		Examples: []tools.ToolExample{
			{
				Description: "Break a 10 page file into threes",
				Arguments: map[string]any{
					"file_path":      "/tmp/handouts.pdf",
					"pages_per_file": 3,
				},
				ExpectedResult: "Writes PDF-BatchSplit_p001-003.pdf, _p004-006.pdf, _p007-009.pdf and _p010-010.pdf",
			},
		},
		Troubleshooting: []tools.TroubleshootingTip{
			{
				Problem:  `error_kind "invalid_parameter"`,
				Solution: "pages_per_file must be a whole number of 1 or more",
			},
		},
		ParameterDetails: map[string]string{
			"pages_per_file": "Values larger than the page count produce a single file with every page",
		},
	}
}
