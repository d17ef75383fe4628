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

// ImagesToPDFTool draws images onto pages of a new PDF
type ImagesToPDFTool struct{}

func init() {
	registry.Register(&ImagesToPDFTool{})
}

// Definition returns the tool's definition for MCP registration
func (t *ImagesToPDFTool) Definition() mcp.Tool {
	return mcp.NewTool(
		string(pipeline.ToolImagesToPDF),
		mcp.WithDescription("Build a PDF from JPEG and PNG images, one image per page, in the order given."),
		filePathsParam("JPEG or PNG images"),
		mcp.WithString("page_size",
			mcp.Description("FIT sizes each page to its image; A4P and A4L scale the image onto an A4 portrait or landscape page (default: A4P)"),
			mcp.Enum("A4P", "A4L", "FIT"),
			mcp.DefaultString("A4P"),
		),
		mcp.WithNumber("margin_mm",
			mcp.Description("Margin around the image on A4 pages, in millimetres (default: 0)"),
			mcp.DefaultNumber(0),
		),
		outputDirParam(),
		baseNameParam(pipeline.DefaultBaseNames[pipeline.ToolImagesToPDF]),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

// Execute builds the PDF
func (t *ImagesToPDFTool) Execute(ctx context.Context, logger *logrus.Logger, cache *sync.Map, args map[string]any) (*mcp.CallToolResult, error) {
	margin, _, err := numberArg(args, "margin_mm")
	if err != nil {
		return nil, err
	}
	mode := stringArg(args, "page_size")

	return runQueue(ctx, logger, args, pipeline.ToolImagesToPDF, pipeline.NewImageSession, func(ctx context.Context, s *pipeline.QueueSession, base string) (*pipeline.Result, error) {
		return s.ImagesToPDF(ctx, mode, margin, base)
	})
}

// ProvideExtendedInfo provides detailed usage information for the tool
func (t *ImagesToPDFTool) ProvideExtendedInfo() *tools.ExtendedHelp {
	return &tools.ExtendedHelp{
		Examples: []tools.ToolExample{
			{
				Description: "Turn phone photos of receipts into one A4 document",
				Arguments: map[string]any{
					"file_paths": []string{"/tmp/r1.jpg", "/tmp/r2.jpg"},
					"margin_mm":  10,
					"base_name":  "receipts",
				},
				ExpectedResult: "Writes /tmp/receipts.pdf with each photo centred on a portrait A4 page",
			},
			{
				Description: "Keep screenshots at their native size",
				Arguments: map[string]any{
					"file_paths": []string{"/tmp/shot.png"},
					"page_size":  "FIT",
				},
			},
		},
		Troubleshooting: []tools.TroubleshootingTip{
			{
				Problem:  `error_kind "encode"`,
				Solution: "An image could not be decoded. Files ending in .png must be PNG; everything else is read as JPEG",
			},
		},
		ParameterDetails: map[string]string{
			"page_size": "A4-portrait and A4-landscape are accepted as spellings of A4P and A4L",
			"margin_mm": "Ignored for FIT. Negative margins count as zero",
		},
	}
}
