package ingest

import "errors"

var (
	// ErrUnsupportedFormat is returned when the uploaded file is not a PDF.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrTooLarge is returned when the uploaded file exceeds the size limit.
	ErrTooLarge = errors.New("file exceeds size limit")
	// ErrExtractionFailed is returned when text extraction from the PDF fails
	// (corrupt file, unreadable pages). A readable PDF with no text layer is
	// not an extraction failure; it produces a document in the failed status
	// with zero chunks.
	ErrExtractionFailed = errors.New("text extraction failed")
)
