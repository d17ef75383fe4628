package document

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/sammcj/mcp-pdftools/internal/plan"
)

var disableConfigDir sync.Once

// PDFCPU implements Backend with pdfcpu. Image pages are drawn with gofpdf.
type PDFCPU struct {
	validation model.ValidationMode
}

// NewPDFCPU creates a backend. mode is "strict" or "relaxed" (the default).
func NewPDFCPU(mode string) (*PDFCPU, error) {
	disableConfigDir.Do(api.DisableConfigDir)

	v, err := ParseValidationMode(mode)
	if err != nil {
		return nil, err
	}
	return &PDFCPU{validation: v}, nil
}

// ParseValidationMode maps a config string to a pdfcpu validation mode
func ParseValidationMode(mode string) (model.ValidationMode, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "relaxed":
		return model.ValidationRelaxed, nil
	case "strict":
		return model.ValidationStrict, nil
	default:
		return 0, fmt.Errorf("unknown validation mode %q (use relaxed or strict)", mode)
	}
}

// configuration returns a fresh config per call since pdfcpu mutates it
func (p *PDFCPU) configuration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = p.validation
	return conf
}

func (p *PDFCPU) read(data []byte) (*model.Context, error) {
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), p.configuration())
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF: %w", err)
	}
	return ctx, nil
}

func write(ctx *model.Context) ([]byte, error) {
	var buf bytes.Buffer
	if err := api.WriteContext(ctx, &buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func (p *PDFCPU) Open(data []byte) (int, error) {
	ctx, err := p.read(data)
	if err != nil {
		return 0, err
	}
	return ctx.PageCount, nil
}

func (p *PDFCPU) Assemble(data []byte, indices []int) ([]byte, error) {
	if len(indices) == 0 {
		return nil, fmt.Errorf("no pages selected")
	}

	ctx, err := p.read(data)
	if err != nil {
		return nil, err
	}

	pageNrs := make([]int, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= ctx.PageCount {
			return nil, fmt.Errorf("page index %d outside document of %d pages", idx, ctx.PageCount)
		}
		pageNrs[i] = idx + 1
	}

	// page cache lets a page appear more than once
	out, err := pdfcpu.ExtractPages(ctx, pageNrs, true)
	if err != nil {
		return nil, fmt.Errorf("failed to copy pages: %w", err)
	}
	return write(out)
}

func (p *PDFCPU) Merge(sources [][]byte) ([]byte, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("nothing to merge")
	}

	readers := make([]io.ReadSeeker, len(sources))
	for i, src := range sources {
		readers[i] = bytes.NewReader(src)
	}

	var buf bytes.Buffer
	if err := api.MergeRaw(readers, &buf, false, p.configuration()); err != nil {
		return nil, fmt.Errorf("failed to merge: %w", err)
	}
	return buf.Bytes(), nil
}

func (p *PDFCPU) Rotations(data []byte) ([]int, error) {
	ctx, err := p.read(data)
	if err != nil {
		return nil, err
	}

	angles := make([]int, ctx.PageCount)
	for i := range angles {
		_, _, inherited, err := ctx.PageDict(i+1, false)
		if err != nil {
			return nil, fmt.Errorf("failed to read page %d: %w", i+1, err)
		}
		if inherited != nil {
			angles[i] = plan.NormalizeRotation(inherited.Rotate)
		}
	}
	return angles, nil
}

func (p *PDFCPU) SetRotations(data []byte, angles map[int]int) ([]byte, error) {
	ctx, err := p.read(data)
	if err != nil {
		return nil, err
	}

	for idx, angle := range angles {
		if idx < 0 || idx >= ctx.PageCount {
			return nil, fmt.Errorf("page index %d outside document of %d pages", idx, ctx.PageCount)
		}
		d, _, _, err := ctx.PageDict(idx+1, false)
		if err != nil {
			return nil, fmt.Errorf("failed to read page %d: %w", idx+1, err)
		}
		if d == nil {
			return nil, fmt.Errorf("page %d has no dictionary", idx+1)
		}
		d.Update("Rotate", types.Integer(plan.NormalizeRotation(angle)))
	}
	return write(ctx)
}
