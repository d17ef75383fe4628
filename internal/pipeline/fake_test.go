package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/sammcj/mcp-pdftools/internal/document"
)

type fakePage struct {
	Label  string `json:"label"`
	Rotate int    `json:"rotate"`
}

type fakeDoc struct {
	Pages []fakePage `json:"pages"`
}

func fakePDF(n int) []byte {
	return fakePDFNamed("p", n)
}

func fakePDFNamed(prefix string, n int) []byte {
	doc := fakeDoc{}
	for i := 1; i <= n; i++ {
		doc.Pages = append(doc.Pages, fakePage{Label: fmt.Sprintf("%s%d", prefix, i)})
	}
	data, _ := json.Marshal(doc)
	return data
}

func decodeFake(data []byte) (fakeDoc, error) {
	var doc fakeDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return fakeDoc{}, errors.New("not a fake PDF")
	}
	return doc, nil
}

func fakeLabels(data []byte) []string {
	doc, err := decodeFake(data)
	if err != nil {
		return nil
	}
	labels := make([]string, len(doc.Pages))
	for i, p := range doc.Pages {
		labels[i] = p.Label
	}
	return labels
}

// fakeBackend stores documents as JSON page lists
type fakeBackend struct {
	mu sync.Mutex
	// failAssembleAt makes the nth Assemble call (1-based) fail
	failAssembleAt int
	assembleCalls  int
	composed       [][]document.ImagePage
}

func encodeFake(doc fakeDoc) ([]byte, error) {
	return json.Marshal(doc)
}

func (f *fakeBackend) Open(data []byte) (int, error) {
	doc, err := decodeFake(data)
	if err != nil {
		return 0, err
	}
	return len(doc.Pages), nil
}

func (f *fakeBackend) Assemble(data []byte, indices []int) ([]byte, error) {
	f.mu.Lock()
	f.assembleCalls++
	call := f.assembleCalls
	f.mu.Unlock()

	if f.failAssembleAt > 0 && call == f.failAssembleAt {
		return nil, errors.New("assemble exploded")
	}

	src, err := decodeFake(data)
	if err != nil {
		return nil, err
	}
	var out fakeDoc
	for _, idx := range indices {
		if idx < 0 || idx >= len(src.Pages) {
			return nil, fmt.Errorf("index %d out of bounds", idx)
		}
		out.Pages = append(out.Pages, src.Pages[idx])
	}
	return encodeFake(out)
}

func (f *fakeBackend) Merge(sources [][]byte) ([]byte, error) {
	var out fakeDoc
	for _, src := range sources {
		doc, err := decodeFake(src)
		if err != nil {
			return nil, err
		}
		out.Pages = append(out.Pages, doc.Pages...)
	}
	return encodeFake(out)
}

func (f *fakeBackend) Rotations(data []byte) ([]int, error) {
	doc, err := decodeFake(data)
	if err != nil {
		return nil, err
	}
	angles := make([]int, len(doc.Pages))
	for i, p := range doc.Pages {
		angles[i] = p.Rotate
	}
	return angles, nil
}

func (f *fakeBackend) SetRotations(data []byte, angles map[int]int) ([]byte, error) {
	doc, err := decodeFake(data)
	if err != nil {
		return nil, err
	}
	for idx, a := range angles {
		doc.Pages[idx].Rotate = a
	}
	return encodeFake(doc)
}

func (f *fakeBackend) ComposeImages(pages []document.ImagePage) ([]byte, error) {
	f.mu.Lock()
	f.composed = append(f.composed, pages)
	f.mu.Unlock()

	var out fakeDoc
	for _, p := range pages {
		out.Pages = append(out.Pages, fakePage{Label: p.Name})
	}
	return encodeFake(out)
}
