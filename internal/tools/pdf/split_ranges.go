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

// SplitRangesTool writes one PDF per page range
type SplitRangesTool struct{}

func init() {
	registry.Register(&SplitRangesTool{})
}

// Definition returns the tool's definition for MCP registration
func (t *SplitRangesTool) Definition() mcp.Tool {
	return mcp.NewTool(
		string(pipeline.ToolSplitRanges),
		mcp.WithDescription(`Split a PDF into several files, one per page range. Each range such as "1-3" or "7" becomes its own file named <base>_p001-003.pdf or <base>_p007.pdf.`),
		filePathParam(),
		mcp.WithString("ranges",
			mcp.Required(),
			mcp.Description(`Comma separated pages or ranges, e.g. "1-3, 5, 8-10". Every page must exist`),
		),
		mcp.WithBoolean("keep_order",
			mcp.Description("Write ranges in the order given instead of sorting by first page (default: false)"),
			mcp.DefaultBool(false),
		),
		outputDirParam(),
		baseNameParam("the input file name"),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

// Execute splits the PDF
func (t *SplitRangesTool) Execute(ctx context.Context, logger *logrus.Logger, cache *sync.Map, args map[string]any) (*mcp.CallToolResult, error) {
	ranges, err := requiredString(args, "ranges")
	if err != nil {
		return nil, err
	}
	keepOrder := boolArg(args, "keep_order")

	return runSingle(ctx, logger, args, pipeline.ToolSplitRanges, func(ctx context.Context, s *pipeline.SingleSession, base string) (*pipeline.Result, error) {
		return s.SplitRanges(ctx, ranges, keepOrder, base)
	})
}

// ProvideExtendedInfo provides detailed usage information for the tool
func (t *SplitRangesTool) ProvideExtendedInfo() *tools.ExtendedHelp {
	return &tools.ExtendedHelp{
		Examples: []tools.ToolExample{
			{
				Description: "Split chapters out of a report",
				Arguments: map[string]any{
					"file_path": "/Users/me/report.pdf",
					"ranges":    "1-4, 5-12, 13-20",
				},
				ExpectedResult: "Writes report_p001-004.pdf, report_p005-012.pdf and report_p013-020.pdf next to the input",
			},
			{
				Description: "Keep the order the ranges were typed in",
				Arguments: map[string]any{
					"file_path":  "/Users/me/report.pdf",
					"ranges":     "9, 1-2",
					"keep_order": true,
					"base_name":  "excerpt",
				},
				ExpectedResult: "Writes excerpt_p009.pdf before excerpt_p001-002.pdf",
			},
		},
		CommonPatterns: []string{
			"Call pdf_info first to learn the page count",
			"Ranges may overlap; each range is written independently",
		},
		Troubleshooting: []tools.TroubleshootingTip{
			{
				Problem:  `error_kind "out_of_range"`,
				Solution: "A page is beyond the end of the document. The message names the first page that does not exist",
			},
			{
				Problem:  `error_kind "invalid_range"`,
				Solution: `A range runs backwards, such as "5-2". Write it as "2-5"`,
			},
			{
				Problem:  `error_kind "token_syntax"`,
				Solution: `Only digits, "-" and "," are understood. Words such as "all" or open ranges such as "3-" are rejected`,
			},
		},
		ParameterDetails: map[string]string{
			"ranges":     "Whitespace is ignored and empty entries between commas are skipped. Numbers are 1-based",
			"keep_order": "When false, files are written in ascending order of each range's first page",
			"base_name":  "Defaults to the input file name without .pdf",
		},
		WhenToUse:    "Cutting a document into several named pieces in one call",
		WhenNotToUse: "For one output file with a selection of pages use pdf_extract; for fixed size chunks use pdf_split_every",
	}
}
