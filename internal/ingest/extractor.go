package ingest

import (
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// PageText is the normalised text of a single PDF page.
type PageText struct {
	Number int // 1-based page number
	Text   string
}

// Extraction is the result of extracting text from a document file.
type Extraction struct {
	// Pages holds only pages with non-empty extractable text, in order.
	Pages []PageText
	// TotalPages is the page count of the file, including empty pages.
	TotalPages int
}

// TextExtractor extracts text from a stored document file.
type TextExtractor interface {
	Extract(path string) (*Extraction, error)
}

// PDFExtractor extracts text from PDF files using go-fitz.
type PDFExtractor struct{}

// NewPDFExtractor creates a new PDFExtractor.
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// Extract opens the PDF at path and extracts normalised text per page.
// Pages without extractable text are skipped. An unreadable file returns
// ErrExtractionFailed.
func (e *PDFExtractor) Extract(path string) (*Extraction, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open PDF: %v", ErrExtractionFailed, err)
	}
	defer func() {
		_ = doc.Close()
	}()

	total := doc.NumPage()
	pages := make([]PageText, 0, total)
	for i := 0; i < total; i++ {
		text, err := doc.Text(i)
		if err != nil {
			// A single unreadable page does not fail the document.
			continue
		}
		cleaned := normalizeText(text)
		if cleaned == "" {
			continue
		}
		pages = append(pages, PageText{Number: i + 1, Text: cleaned})
	}

	return &Extraction{Pages: pages, TotalPages: total}, nil
}

// normalizeText collapses runs of whitespace into single spaces and trims the
// result. PDF text layers carry layout artifacts (hard line breaks, column
// padding) that would otherwise split retrieval units mid-sentence.
func normalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
