package ingest

import "strings"

// Chunker splits extracted text into overlapping fixed-size pieces.
// Splitting is deterministic: the same input always yields the same chunk
// boundaries. Size is measured in runes so multi-byte text does not get cut
// mid-character.
type Chunker struct {
	chunkSize int
	overlap   int
}

// NewChunker creates a chunker with the given window size and overlap.
// Overlap must be smaller than chunkSize.
func NewChunker(chunkSize, overlap int) *Chunker {
	return &Chunker{chunkSize: chunkSize, overlap: overlap}
}

// Chunk splits text into ordered, overlapping pieces of at most chunkSize
// runes. Boundaries prefer the last word break inside the window. Empty or
// whitespace-only input yields no chunks; any other input yields at least
// one, and concatenating the chunks in order reconstructs the input modulo
// the overlapping regions.
func (c *Chunker) Chunk(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= c.chunkSize {
		return []string{text}
	}

	var chunks []string
	start := 0

	for start < len(runes) {
		end := start + c.chunkSize

		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}

		// Prefer to break at the last word boundary inside the window.
		window := string(runes[start:end])
		cut := end
		if boundary := strings.LastIndex(window, " "); boundary > 0 {
			cut = start + len([]rune(window[:boundary]))
		}

		chunks = append(chunks, string(runes[start:cut]))

		next := cut - c.overlap
		// Always make forward progress, even when the overlap would step
		// back past the previous start.
		if next <= start {
			next = cut
		}
		start = next
	}

	return chunks
}
