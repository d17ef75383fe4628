package document

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// ComposeImages draws each image on its own page. Placements are bottom-left
// based; gofpdf measures from the top so Y is flipped here.
func (p *PDFCPU) ComposeImages(pages []ImagePage) ([]byte, error) {
	return composeImages(pages)
}

func composeImages(pages []ImagePage) ([]byte, error) {
	if len(pages) == 0 {
		return nil, fmt.Errorf("no images to compose")
	}

	first := pages[0].Placement
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: first.PageWidth, Ht: first.PageHeight},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCreator("mcp-pdftools", true)

	for i, page := range pages {
		pl := page.Placement
		pdf.AddPageFormat("P", gofpdf.SizeType{Wd: pl.PageWidth, Ht: pl.PageHeight})

		opts := gofpdf.ImageOptions{ImageType: string(page.Type)}
		name := fmt.Sprintf("image-%d", i)
		pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(page.Data))
		if err := pdf.Error(); err != nil {
			return nil, fmt.Errorf("failed to embed %s: %w", page.Name, err)
		}

		top := pl.PageHeight - pl.Y - pl.Height
		pdf.ImageOptions(name, pl.X, top, pl.Width, pl.Height, false, opts, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write image PDF: %w", err)
	}
	return buf.Bytes(), nil
}
