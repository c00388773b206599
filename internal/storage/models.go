package storage

import "time"

// Document processing statuses. A document starts as pending, moves to
// processed once its chunks are stored, and to failed when extraction or
// chunking did not succeed.
const (
	StatusPending   = "pending"
	StatusProcessed = "processed"
	StatusFailed    = "failed"
)

// DocumentRecord represents an uploaded document in the database.
type DocumentRecord struct {
	ID               string // UUID
	OriginalFilename string // Filename as provided by the uploader
	StoredPath       string // Path of the stored file on disk
	FileSize         int64  // Size in bytes
	PageCount        int    // Pages with extractable text
	Status           string // One of StatusPending, StatusProcessed, StatusFailed
	CreatedAt        time.Time
}

// ChunkRecord represents a chunk of extracted text from a document.
// A chunk belongs to exactly one document and is deleted with it.
type ChunkRecord struct {
	ID         string // UUID
	DocumentID string // Foreign key to documents.id
	ChunkIndex int    // Index within document (starts at 0)
	PageNumber int    // Page the chunk was extracted from (1-based)
	Text       string // Chunk text content
	Length     int    // Character length of Text
}

// DocumentSummary is a listing view of a document with its chunk count.
type DocumentSummary struct {
	ID               string
	OriginalFilename string
	PageCount        int
	ChunkCount       int
	Status           string
	CreatedAt        time.Time
}
