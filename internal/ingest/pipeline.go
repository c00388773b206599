package ingest

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"pilot-rag/internal/contextutil"
	"pilot-rag/internal/storage"
)

// %PDF magic bytes at the start of every PDF file.
var pdfMagic = []byte("%PDF")

// IndexRebuilder rebuilds the retrieval index over the current chunk set.
// Any change to the chunk corpus (ingest or delete) invalidates the index.
type IndexRebuilder interface {
	Rebuild(ctx context.Context) error
}

// Result describes a successfully ingested document.
type Result struct {
	DocumentID string
	PageCount  int
	ChunkCount int
	Status     string
}

// Pipeline owns the document ingestion lifecycle: validation, storage,
// extraction, chunking and index invalidation.
type Pipeline struct {
	docRepo        storage.DocumentStore
	chunkRepo      storage.ChunkStore
	extractor      TextExtractor
	chunker        *Chunker
	rebuilder      IndexRebuilder
	uploadDir      string
	maxUploadBytes int64
	minChunkLength int
	logger         *slog.Logger
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	docRepo storage.DocumentStore,
	chunkRepo storage.ChunkStore,
	extractor TextExtractor,
	chunker *Chunker,
	rebuilder IndexRebuilder,
	uploadDir string,
	maxUploadBytes int64,
	minChunkLength int,
) *Pipeline {
	return &Pipeline{
		docRepo:        docRepo,
		chunkRepo:      chunkRepo,
		extractor:      extractor,
		chunker:        chunker,
		rebuilder:      rebuilder,
		uploadDir:      uploadDir,
		maxUploadBytes: maxUploadBytes,
		minChunkLength: minChunkLength,
		logger:         slog.Default(),
	}
}

// Ingest validates and processes an uploaded document: the file is stored
// under a generated name, its text extracted, chunked and persisted, and the
// retrieval index rebuilt. A readable PDF with no text layer produces a
// document in the failed status with zero chunks rather than an error.
func (p *Pipeline) Ingest(ctx context.Context, fileBytes []byte, originalFilename string) (*Result, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if err := p.validate(fileBytes, originalFilename); err != nil {
		return nil, err
	}

	docID := uuid.NewString()
	storedPath := filepath.Join(p.uploadDir, docID+".pdf")
	if err := os.WriteFile(storedPath, fileBytes, 0644); err != nil {
		return nil, fmt.Errorf("failed to store uploaded file: %w", err)
	}

	doc := &storage.DocumentRecord{
		ID:               docID,
		OriginalFilename: originalFilename,
		StoredPath:       storedPath,
		FileSize:         int64(len(fileBytes)),
		Status:           storage.StatusPending,
	}
	if err := p.docRepo.Insert(ctx, doc); err != nil {
		_ = os.Remove(storedPath)
		return nil, err
	}

	extraction, err := p.extractor.Extract(storedPath)
	if err != nil {
		logger.ErrorContext(ctx, "text extraction failed", "document_id", docID, "filename", originalFilename, "error", err)
		p.cleanup(ctx, docID, storedPath)
		return nil, err
	}

	chunks := p.buildChunks(docID, extraction)
	if len(chunks) == 0 {
		// No extractable text. Keep the document so the user sees what
		// happened, but mark it failed; it contributes nothing to the index.
		logger.WarnContext(ctx, "document has no extractable text", "document_id", docID, "filename", originalFilename)
		if err := p.docRepo.UpdateStatus(ctx, docID, storage.StatusFailed, extraction.TotalPages); err != nil {
			return nil, err
		}
		return &Result{
			DocumentID: docID,
			PageCount:  extraction.TotalPages,
			Status:     storage.StatusFailed,
		}, nil
	}

	if err := p.chunkRepo.InsertBatch(ctx, chunks); err != nil {
		p.cleanup(ctx, docID, storedPath)
		return nil, err
	}
	if err := p.docRepo.UpdateStatus(ctx, docID, storage.StatusProcessed, len(extraction.Pages)); err != nil {
		return nil, err
	}

	if err := p.rebuilder.Rebuild(ctx); err != nil {
		logger.ErrorContext(ctx, "index rebuild failed after ingest", "document_id", docID, "error", err)
		return nil, err
	}

	logger.InfoContext(ctx, "document ingested",
		"document_id", docID,
		"filename", originalFilename,
		"pages", len(extraction.Pages),
		"chunks", len(chunks),
	)

	return &Result{
		DocumentID: docID,
		PageCount:  len(extraction.Pages),
		ChunkCount: len(chunks),
		Status:     storage.StatusProcessed,
	}, nil
}

// Delete removes a document, its stored file and all of its chunks, then
// rebuilds the index so deleted chunks can never appear in query results.
func (p *Pipeline) Delete(ctx context.Context, documentID string) error {
	logger := contextutil.LoggerFromContext(ctx)

	doc, err := p.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return err
	}

	if err := p.docRepo.Delete(ctx, documentID); err != nil {
		return err
	}
	if err := os.Remove(doc.StoredPath); err != nil && !os.IsNotExist(err) {
		logger.WarnContext(ctx, "failed to remove stored file", "path", doc.StoredPath, "error", err)
	}

	if err := p.rebuilder.Rebuild(ctx); err != nil {
		logger.ErrorContext(ctx, "index rebuild failed after delete", "document_id", documentID, "error", err)
		return err
	}

	logger.InfoContext(ctx, "document deleted", "document_id", documentID, "filename", doc.OriginalFilename)
	return nil
}

// List returns summaries of all documents, newest first.
func (p *Pipeline) List(ctx context.Context) ([]storage.DocumentSummary, error) {
	return p.docRepo.ListSummaries(ctx)
}

func (p *Pipeline) validate(fileBytes []byte, originalFilename string) error {
	if int64(len(fileBytes)) > p.maxUploadBytes {
		return fmt.Errorf("%w: %d bytes (limit %d)", ErrTooLarge, len(fileBytes), p.maxUploadBytes)
	}
	if !strings.EqualFold(filepath.Ext(originalFilename), ".pdf") {
		return fmt.Errorf("%w: %q is not a PDF", ErrUnsupportedFormat, originalFilename)
	}
	if !bytes.HasPrefix(fileBytes, pdfMagic) {
		return fmt.Errorf("%w: file content is not a PDF", ErrUnsupportedFormat)
	}
	return nil
}

// buildChunks splits each extracted page and assigns document-wide chunk
// indexes. Fragments shorter than minChunkLength are dropped; they are
// typically headers, page numbers or other layout artifacts.
func (p *Pipeline) buildChunks(docID string, extraction *Extraction) []storage.ChunkRecord {
	var records []storage.ChunkRecord
	chunkIndex := 0

	for _, page := range extraction.Pages {
		for _, text := range p.chunker.Chunk(page.Text) {
			trimmed := strings.TrimSpace(text)
			if len(trimmed) < p.minChunkLength {
				continue
			}
			records = append(records, storage.ChunkRecord{
				ID:         uuid.NewString(),
				DocumentID: docID,
				ChunkIndex: chunkIndex,
				PageNumber: page.Number,
				Text:       trimmed,
				Length:     len(trimmed),
			})
			chunkIndex++
		}
	}

	return records
}

// cleanup removes a document record and its stored file after a failed
// ingest so no half-processed document lingers.
func (p *Pipeline) cleanup(ctx context.Context, docID, storedPath string) {
	logger := contextutil.LoggerFromContext(ctx)
	if err := p.docRepo.Delete(ctx, docID); err != nil {
		logger.WarnContext(ctx, "failed to clean up document after error", "document_id", docID, "error", err)
	}
	if err := os.Remove(storedPath); err != nil && !os.IsNotExist(err) {
		logger.WarnContext(ctx, "failed to clean up stored file after error", "path", storedPath, "error", err)
	}
}
