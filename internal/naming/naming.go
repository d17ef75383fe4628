// Package naming builds output file names for generated documents.
package naming

import (
	"fmt"
	"strings"
)

const (
	defaultBase  = "output"
	defaultInput = "input"
)

// SanitizeBaseName replaces characters that are unsafe in file names with
// underscores. An empty result becomes "output".
func SanitizeBaseName(name string) string {
	name = strings.TrimSpace(name)
	cleaned := strings.Map(func(r rune) rune {
		if r < 0x20 {
			return '_'
		}
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
			return '_'
		}
		return r
	}, name)

	if cleaned == "" {
		return defaultBase
	}
	return cleaned
}

// PageFileName names a single page or a page range taken from base
func PageFileName(base string, start, end int) string {
	if start == end {
		return fmt.Sprintf("%s_p%03d.pdf", base, start)
	}
	return RangeFileName(base, start, end)
}

// RangeFileName always uses the start-end form, even for a single page
func RangeFileName(base string, start, end int) string {
	return fmt.Sprintf("%s_p%03d-%03d.pdf", base, start, end)
}

// PDFFileName appends the .pdf extension
func PDFFileName(base string) string {
	return base + ".pdf"
}

// StripPDFExt removes a trailing .pdf in any case
func StripPDFExt(name string) string {
	if len(name) >= 4 && strings.EqualFold(name[len(name)-4:], ".pdf") {
		name = name[:len(name)-4]
	}
	if name == "" {
		return defaultInput
	}
	return name
}

// Resolve returns the sanitised user base, or fallback when user is blank
func Resolve(user, fallback string) string {
	if strings.TrimSpace(user) == "" {
		return SanitizeBaseName(fallback)
	}
	return SanitizeBaseName(user)
}
