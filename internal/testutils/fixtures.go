package testutils

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/jung-kurt/gofpdf"
)

// SamplePDF builds an A4 document with pages numbered "Page 1".."Page n"
func SamplePDF(t testing.TB, pages int) []byte {
	t.Helper()

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Helvetica", "", 16)
	for i := 1; i <= pages; i++ {
		pdf.AddPage()
		pdf.Cell(40, 10, fmt.Sprintf("Page %d", i))
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatalf("Failed to build sample PDF: %v", err)
	}
	return buf.Bytes()
}

// WriteSamplePDF writes SamplePDF into dir and returns the absolute path
func WriteSamplePDF(t testing.TB, dir, name string, pages int) string {
	t.Helper()
	return WriteFile(t, dir, name, SamplePDF(t, pages))
}

// SamplePNG encodes a solid w x h PNG
func SamplePNG(t testing.TB, w, h int) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := png.Encode(&buf, solid(w, h)); err != nil {
		t.Fatalf("Failed to encode PNG: %v", err)
	}
	return buf.Bytes()
}

// SampleJPEG encodes a solid w x h JPEG
func SampleJPEG(t testing.TB, w, h int) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, solid(w, h), &jpeg.Options{Quality: 80}); err != nil {
		t.Fatalf("Failed to encode JPEG: %v", err)
	}
	return buf.Bytes()
}

// WriteFile writes data into dir/name and returns the absolute path
func WriteFile(t testing.TB, dir, name string, data []byte) string {
	t.Helper()

	path, err := filepath.Abs(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("Failed to resolve %s: %v", name, err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
	return path
}

func solid(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	c := color.RGBA{R: 200, G: 80, B: 40, A: 255}
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	return img
}
