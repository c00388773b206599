package retrieval

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_retriever.go -package=mocks pilot-rag/internal/retrieval Retriever

import (
	"context"
	"fmt"
	"log/slog"

	"pilot-rag/internal/contextutil"
	"pilot-rag/internal/index"
	"pilot-rag/internal/storage"
)

// RetrievedChunk is a chunk returned by retrieval, carrying enough document
// metadata for citation.
type RetrievedChunk struct {
	ChunkID          string
	DocumentID       string
	OriginalFilename string
	PageNumber       int
	ChunkIndex       int
	Text             string
	Score            float64
}

// Retriever answers queries over the indexed chunk corpus.
type Retriever interface {
	// Retrieve returns at most k chunks relevant to query, descending by
	// score, filtered to scores >= minScore. An empty result is a normal
	// outcome, not an error.
	Retrieve(ctx context.Context, query string, k int, minScore float64) ([]RetrievedChunk, error)
	// Rebuild recomputes the index over the current chunk corpus.
	Rebuild(ctx context.Context) error
}

// corpusRetriever implements Retriever over the storage-backed chunk corpus.
type corpusRetriever struct {
	chunkRepo storage.ChunkStore
	docRepo   storage.DocumentStore
	idx       index.Index
	logger    *slog.Logger
}

// NewRetriever creates a Retriever over the given repositories and index.
func NewRetriever(chunkRepo storage.ChunkStore, docRepo storage.DocumentStore, idx index.Index) Retriever {
	return &corpusRetriever{
		chunkRepo: chunkRepo,
		docRepo:   docRepo,
		idx:       idx,
		logger:    slog.Default(),
	}
}

// Rebuild loads every chunk of every processed document and rebuilds the
// index snapshot from them.
func (r *corpusRetriever) Rebuild(ctx context.Context) error {
	logger := contextutil.LoggerFromContext(ctx)

	chunks, err := r.chunkRepo.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load chunk corpus: %w", err)
	}

	entries := make([]index.Entry, len(chunks))
	for i, chunk := range chunks {
		entries[i] = index.Entry{
			ChunkID:    chunk.ID,
			DocumentID: chunk.DocumentID,
			Text:       chunk.Text,
		}
	}

	if err := r.idx.Build(entries); err != nil {
		return fmt.Errorf("failed to rebuild index: %w", err)
	}

	logger.InfoContext(ctx, "index rebuilt", "chunks", len(entries))
	return nil
}

// Retrieve queries the index and joins document metadata onto each hit.
func (r *corpusRetriever) Retrieve(ctx context.Context, query string, k int, minScore float64) ([]RetrievedChunk, error) {
	logger := contextutil.LoggerFromContext(ctx)

	hits := r.idx.Query(query, k)

	// Chunk metadata lives in storage; the index only carries IDs and text.
	// Fetch each document once.
	docs := make(map[string]*storage.DocumentRecord)
	results := make([]RetrievedChunk, 0, len(hits))
	for _, hit := range hits {
		if hit.Score < minScore {
			continue
		}

		doc, ok := docs[hit.Entry.DocumentID]
		if !ok {
			var err error
			doc, err = r.docRepo.GetByID(ctx, hit.Entry.DocumentID)
			if err != nil {
				// The owning document vanished between rebuilds. Skip the
				// chunk rather than cite a deleted document.
				logger.WarnContext(ctx, "chunk references missing document", "chunk_id", hit.Entry.ChunkID, "document_id", hit.Entry.DocumentID, "error", err)
				continue
			}
			docs[hit.Entry.DocumentID] = doc
		}

		chunk, err := r.chunkRepo.GetByID(ctx, hit.Entry.ChunkID)
		if err != nil {
			logger.WarnContext(ctx, "failed to fetch chunk", "chunk_id", hit.Entry.ChunkID, "error", err)
			continue // Skip this chunk
		}

		results = append(results, RetrievedChunk{
			ChunkID:          chunk.ID,
			DocumentID:       chunk.DocumentID,
			OriginalFilename: doc.OriginalFilename,
			PageNumber:       chunk.PageNumber,
			ChunkIndex:       chunk.ChunkIndex,
			Text:             chunk.Text,
			Score:            hit.Score,
		})
	}

	logger.InfoContext(ctx, "retrieval completed", "query_length", len(query), "hits", len(results), "k", k)
	return results, nil
}
