// Package imports links every tool package into the binary so their init
// functions register them.
package imports

import (
	_ "github.com/sammcj/mcp-pdftools/internal/tools/pdf"
	_ "github.com/sammcj/mcp-pdftools/internal/tools/utilities/toolhelp"
)
