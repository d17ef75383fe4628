package plan

import (
	"fmt"
	"strings"

	"github.com/sammcj/mcp-pdftools/internal/pdferr"
)

// PageMode selects how an image page is sized
type PageMode string

const (
	// ModeFit sizes the page to the image's pixel dimensions, drawn 1:1
	ModeFit PageMode = "FIT"
	// ModeA4Portrait uses a 595.28x841.89pt page with the image scaled and centred
	ModeA4Portrait PageMode = "A4P"
	// ModeA4Landscape is ModeA4Portrait transposed
	ModeA4Landscape PageMode = "A4L"
)

const (
	a4Width  = 595.28
	a4Height = 841.89
)

// Placement is the page size and image rectangle for one image page, in points.
// X and Y are measured from the bottom-left corner of the page.
type Placement struct {
	PageWidth  float64 `json:"page_width"`
	PageHeight float64 `json:"page_height"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
}

// ParsePageMode accepts FIT, A4P, A4L and the long a4-portrait / a4-landscape
// spellings. An empty mode is A4P.
func ParsePageMode(s string) (PageMode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "A4P", "A4-PORTRAIT":
		return ModeA4Portrait, nil
	case "A4L", "A4-LANDSCAPE":
		return ModeA4Landscape, nil
	case "FIT":
		return ModeFit, nil
	default:
		return "", fmt.Errorf("%w: unknown page size %q (use FIT, A4P or A4L)", pdferr.ErrInvalidParameter, s)
	}
}

// MMToPoints converts millimetres to PDF points
func MMToPoints(mm float64) float64 {
	return mm * 72 / 25.4
}

// ImagePlacement computes where an imgW x imgH pixel image lands. Negative
// margins are treated as zero.
func ImagePlacement(mode PageMode, marginMM, imgW, imgH float64) Placement {
	if mode == ModeFit {
		return Placement{
			PageWidth:  imgW,
			PageHeight: imgH,
			Width:      imgW,
			Height:     imgH,
		}
	}

	w, h := a4Width, a4Height
	if mode == ModeA4Landscape {
		w, h = h, w
	}

	marginPt := MMToPoints(max(0, marginMM))
	maxW := max(1, w-marginPt*2)
	maxH := max(1, h-marginPt*2)
	scale := min(maxW/imgW, maxH/imgH)

	drawW := imgW * scale
	drawH := imgH * scale
	return Placement{
		PageWidth:  w,
		PageHeight: h,
		X:          (w - drawW) / 2,
		Y:          (h - drawH) / 2,
		Width:      drawW,
		Height:     drawH,
	}
}
