package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_document_store.go -package=mocks pilot-rag/internal/storage DocumentStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// DocumentStore defines the interface for document storage operations.
type DocumentStore interface {
	// Insert inserts a new document record. The document.ID must be set
	// (UUID) before calling this method.
	Insert(ctx context.Context, doc *DocumentRecord) error
	// UpdateStatus sets the processing status and page count of a document.
	UpdateStatus(ctx context.Context, id, status string, pageCount int) error
	// GetByID gets a document by its ID. Returns ErrNotFound if not found.
	GetByID(ctx context.Context, id string) (*DocumentRecord, error)
	// ListSummaries returns all documents with chunk counts, newest first.
	ListSummaries(ctx context.Context) ([]DocumentSummary, error)
	// Delete removes a document. Its chunks are removed by the foreign key
	// cascade. Returns ErrNotFound if the document does not exist.
	Delete(ctx context.Context, id string) error
}

// DocumentRepo provides methods for document operations.
// It implements the DocumentStore interface.
type DocumentRepo struct {
	db *sql.DB
}

// NewDocumentRepo creates a new DocumentRepo.
func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

// Insert inserts a new document record.
func (r *DocumentRepo) Insert(ctx context.Context, doc *DocumentRecord) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO documents (id, original_filename, stored_path, file_size, page_count, status) VALUES (?, ?, ?, ?, ?, ?)",
		doc.ID, doc.OriginalFilename, doc.StoredPath, doc.FileSize, doc.PageCount, doc.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

// UpdateStatus sets the processing status and page count of a document.
func (r *DocumentRepo) UpdateStatus(ctx context.Context, id, status string, pageCount int) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE documents SET status = ?, page_count = ? WHERE id = ?",
		status, pageCount, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update document status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID gets a document by its ID. Returns ErrNotFound if not found.
func (r *DocumentRepo) GetByID(ctx context.Context, id string) (*DocumentRecord, error) {
	var doc DocumentRecord
	err := r.db.QueryRowContext(ctx,
		"SELECT id, original_filename, stored_path, file_size, page_count, status, created_at FROM documents WHERE id = ?",
		id,
	).Scan(&doc.ID, &doc.OriginalFilename, &doc.StoredPath, &doc.FileSize, &doc.PageCount, &doc.Status, &doc.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query document: %w", err)
	}

	return &doc, nil
}

// ListSummaries returns all documents with chunk counts, newest first.
func (r *DocumentRepo) ListSummaries(ctx context.Context) ([]DocumentSummary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT d.id, d.original_filename, d.page_count, d.status, d.created_at,
			(SELECT COUNT(*) FROM chunks c WHERE c.document_id = d.id) AS chunk_count
		FROM documents d
		ORDER BY d.created_at DESC, d.id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var summaries []DocumentSummary
	for rows.Next() {
		var s DocumentSummary
		if err := rows.Scan(&s.ID, &s.OriginalFilename, &s.PageCount, &s.Status, &s.CreatedAt, &s.ChunkCount); err != nil {
			return nil, fmt.Errorf("failed to scan document summary: %w", err)
		}
		summaries = append(summaries, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return summaries, nil
}

// Delete removes a document. Chunks are removed by the ON DELETE CASCADE
// constraint. Returns ErrNotFound if the document does not exist.
func (r *DocumentRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
