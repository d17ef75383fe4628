package pdf

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/mcp-pdftools/internal/pipeline"
	"github.com/sammcj/mcp-pdftools/internal/registry"
	"github.com/sammcj/mcp-pdftools/internal/tools"
	"github.com/sirupsen/logrus"
)

// RotateTool turns pages by quarter turns
type RotateTool struct{}

func init() {
	registry.Register(&RotateTool{})
}

// Definition returns the tool's definition for MCP registration
func (t *RotateTool) Definition() mcp.Tool {
	return mcp.NewTool(
		string(pipeline.ToolRotate),
		mcp.WithDescription("Rotate pages of a PDF clockwise by a multiple of 90 degrees and write the whole document. The rotation is added to any rotation the page already has."),
		filePathParam(),
		mcp.WithNumber("degrees",
			mcp.Required(),
			mcp.Description("Clockwise rotation: 90, 180, 270 or any other multiple of 90. Negative values turn anticlockwise"),
		),
		mcp.WithBoolean("all",
			mcp.Description("Rotate every page (default: true when pages is omitted)"),
		),
		mcp.WithString("pages",
			mcp.Description(`Pages to rotate when all is false, e.g. "2, 4-5"`),
		),
		outputDirParam(),
		baseNameParam(pipeline.DefaultBaseNames[pipeline.ToolRotate]),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

// Execute rotates the pages
func (t *RotateTool) Execute(ctx context.Context, logger *logrus.Logger, cache *sync.Map, args map[string]any) (*mcp.CallToolResult, error) {
	raw, ok, err := numberArg(args, "degrees")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("missing or invalid required parameter: degrees")
	}
	if raw != math.Trunc(raw) || math.Abs(raw) > math.MaxInt32 {
		return nil, fmt.Errorf("degrees must be a whole number, got %v", raw)
	}
	degrees := int(raw)

	pages := stringArg(args, "pages")
	all := pages == ""
	if _, set := args["all"]; set {
		all = boolArg(args, "all")
	}

	return runSingle(ctx, logger, args, pipeline.ToolRotate, func(ctx context.Context, s *pipeline.SingleSession, base string) (*pipeline.Result, error) {
		return s.Rotate(ctx, degrees, all, pages, base)
	})
}

// ProvideExtendedInfo provides detailed usage information for the tool
func (t *RotateTool) ProvideExtendedInfo() *tools.ExtendedHelp {
	return &tools.ExtendedHelp{
		Examples: []tools.ToolExample{
			{
				Description: "Turn a landscape scan upright",
				Arguments: map[string]any{
					"file_path": "/tmp/scan.pdf",
					"degrees":   90,
				},
				ExpectedResult: "Writes PDF-Rotate.pdf with every page turned a quarter clockwise",
			},
			{
				Description: "Flip two upside down pages",
				Arguments: map[string]any{
					"file_path": "/tmp/scan.pdf",
					"degrees":   180,
					"all":       false,
					"pages":     "3, 7",
				},
				ExpectedResult: "Only pages 3 and 7 change; the rest keep their rotation",
			},
		},
		Troubleshooting: []tools.TroubleshootingTip{
			{
				Problem:  `error_kind "invalid_parameter"`,
				Solution: "degrees is not a multiple of 90. PDF pages can only be turned in quarter turns",
			},
			{
				Problem:  `error_kind "empty_input" with all set to false`,
				Solution: "Name the pages to rotate or set all to true",
			},
		},
		ParameterDetails: map[string]string{
			"degrees": "Added to the page's current angle and normalised to 0, 90, 180 or 270",
			"all":     "When true, pages is ignored",
		},
		WhenToUse: "Correcting page orientation; pdf_info shows the current rotation of each page",
	}
}
