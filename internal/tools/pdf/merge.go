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

// MergeTool concatenates PDFs
type MergeTool struct{}

func init() {
	registry.Register(&MergeTool{})
}

// Definition returns the tool's definition for MCP registration
func (t *MergeTool) Definition() mcp.Tool {
	return mcp.NewTool(
		string(pipeline.ToolMerge),
		mcp.WithDescription("Merge several PDFs into one, in the order given. Paths that are not PDFs, and repeats of the same file, are skipped and listed in the response."),
		filePathsParam("PDFs to merge"),
		outputDirParam(),
		baseNameParam(pipeline.DefaultBaseNames[pipeline.ToolMerge]),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

// Execute merges the PDFs
func (t *MergeTool) Execute(ctx context.Context, logger *logrus.Logger, cache *sync.Map, args map[string]any) (*mcp.CallToolResult, error) {
	return runQueue(ctx, logger, args, pipeline.ToolMerge, pipeline.NewMergeSession, func(ctx context.Context, s *pipeline.QueueSession, base string) (*pipeline.Result, error) {
		return s.Merge(ctx, base)
	})
}

// ProvideExtendedInfo provides detailed usage information for the tool
func (t *MergeTool) ProvideExtendedInfo() *tools.ExtendedHelp {
	return &tools.ExtendedHelp{
		Examples: []tools.ToolExample{
			{
				Description: "Combine a cover letter and a CV",
				Arguments: map[string]any{
					"file_paths": []string{"/Users/me/letter.pdf", "/Users/me/cv.pdf"},
					"base_name":  "application",
				},
				ExpectedResult: "Writes /Users/me/application.pdf with the letter's pages first",
			},
		},
		Troubleshooting: []tools.TroubleshootingTip{
			{
				Problem:  `error_kind "no_input"`,
				Solution: "None of the paths were PDFs. Check the skipped list in the response",
			},
			{
				Problem:  `error_kind "load"`,
				Solution: "One of the inputs is damaged or encrypted. The message names it",
			},
		},
		WhenToUse:    "Joining whole documents end to end",
		WhenNotToUse: "To join images use pdf_images_to_pdf",
	}
}
