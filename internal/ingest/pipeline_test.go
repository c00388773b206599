package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pilot-rag/internal/storage"
)

// fakeExtractor returns canned pages instead of parsing a real PDF.
type fakeExtractor struct {
	extraction *Extraction
	err        error
}

func (f *fakeExtractor) Extract(path string) (*Extraction, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.extraction, nil
}

// fakeRebuilder records rebuild calls.
type fakeRebuilder struct {
	calls int
	err   error
}

func (f *fakeRebuilder) Rebuild(ctx context.Context) error {
	f.calls++
	return f.err
}

func setupPipelineTest(t *testing.T, extractor TextExtractor, rebuilder IndexRebuilder) (*Pipeline, *storage.DocumentRepo, *storage.ChunkRepo) {
	t.Helper()

	tmpDir := t.TempDir()
	db, err := storage.New(tmpDir + "/test.db")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	if err := storage.Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	docRepo := storage.NewDocumentRepo(db)
	chunkRepo := storage.NewChunkRepo(db)

	uploadDir := filepath.Join(tmpDir, "uploads")
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	pipeline := NewPipeline(docRepo, chunkRepo, extractor, NewChunker(100, 20), rebuilder, uploadDir, 1024*1024, 10)
	return pipeline, docRepo, chunkRepo
}

func pdfBytes(size int) []byte {
	b := []byte("%PDF-1.4 ")
	for len(b) < size {
		b = append(b, 'x')
	}
	return b
}

func TestPipeline_Ingest(t *testing.T) {
	extractor := &fakeExtractor{
		extraction: &Extraction{
			Pages: []PageText{
				{Number: 1, Text: strings.Repeat("engine oil pressure check procedure ", 5)},
				{Number: 2, Text: strings.Repeat("fuel system inspection steps ", 5)},
			},
			TotalPages: 2,
		},
	}
	rebuilder := &fakeRebuilder{}
	pipeline, docRepo, chunkRepo := setupPipelineTest(t, extractor, rebuilder)

	result, err := pipeline.Ingest(context.Background(), pdfBytes(100), "manual.pdf")
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	if result.Status != storage.StatusProcessed {
		t.Errorf("Ingest() Status = %v, want %v", result.Status, storage.StatusProcessed)
	}
	if result.PageCount != 2 {
		t.Errorf("Ingest() PageCount = %d, want 2", result.PageCount)
	}
	if result.ChunkCount == 0 {
		t.Error("Ingest() ChunkCount = 0, want chunks")
	}
	if rebuilder.calls != 1 {
		t.Errorf("Ingest() triggered %d rebuilds, want 1", rebuilder.calls)
	}

	doc, err := docRepo.GetByID(context.Background(), result.DocumentID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if doc.Status != storage.StatusProcessed {
		t.Errorf("stored document Status = %v, want %v", doc.Status, storage.StatusProcessed)
	}
	if doc.OriginalFilename != "manual.pdf" {
		t.Errorf("stored document OriginalFilename = %v, want manual.pdf", doc.OriginalFilename)
	}
	if _, err := os.Stat(doc.StoredPath); err != nil {
		t.Errorf("stored file missing: %v", err)
	}

	count, err := chunkRepo.CountByDocument(context.Background(), result.DocumentID)
	if err != nil {
		t.Fatalf("CountByDocument() error = %v", err)
	}
	if count != result.ChunkCount {
		t.Errorf("stored chunk count = %d, want %d", count, result.ChunkCount)
	}
}

func TestPipeline_Ingest_Validation(t *testing.T) {
	tests := []struct {
		name     string
		bytes    []byte
		filename string
		wantErr  error
	}{
		{
			name:     "wrong extension",
			bytes:    pdfBytes(100),
			filename: "notes.txt",
			wantErr:  ErrUnsupportedFormat,
		},
		{
			name:     "wrong magic bytes",
			bytes:    []byte("not a pdf at all"),
			filename: "fake.pdf",
			wantErr:  ErrUnsupportedFormat,
		},
		{
			name:     "too large",
			bytes:    pdfBytes(2 * 1024 * 1024),
			filename: "big.pdf",
			wantErr:  ErrTooLarge,
		},
		{
			name:     "uppercase extension accepted",
			bytes:    pdfBytes(100),
			filename: "MANUAL.PDF",
			wantErr:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			extractor := &fakeExtractor{
				extraction: &Extraction{
					Pages:      []PageText{{Number: 1, Text: strings.Repeat("page text content ", 10)}},
					TotalPages: 1,
				},
			}
			pipeline, _, _ := setupPipelineTest(t, extractor, &fakeRebuilder{})

			_, err := pipeline.Ingest(context.Background(), tt.bytes, tt.filename)

			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Ingest() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Ingest() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPipeline_Ingest_ExtractionFailure(t *testing.T) {
	extractor := &fakeExtractor{err: ErrExtractionFailed}
	rebuilder := &fakeRebuilder{}
	pipeline, docRepo, _ := setupPipelineTest(t, extractor, rebuilder)

	_, err := pipeline.Ingest(context.Background(), pdfBytes(100), "corrupt.pdf")
	if !errors.Is(err, ErrExtractionFailed) {
		t.Fatalf("Ingest() error = %v, want ErrExtractionFailed", err)
	}

	// Nothing half-processed may linger after the failure.
	summaries, err := docRepo.ListSummaries(context.Background())
	if err != nil {
		t.Fatalf("ListSummaries() error = %v", err)
	}
	if len(summaries) != 0 {
		t.Errorf("failed ingest left %d documents behind, want 0", len(summaries))
	}
	if rebuilder.calls != 0 {
		t.Errorf("failed ingest triggered %d rebuilds, want 0", rebuilder.calls)
	}
}

func TestPipeline_Ingest_NoExtractableText(t *testing.T) {
	// A scanned PDF opens fine but yields no text layer.
	extractor := &fakeExtractor{
		extraction: &Extraction{Pages: nil, TotalPages: 3},
	}
	rebuilder := &fakeRebuilder{}
	pipeline, docRepo, _ := setupPipelineTest(t, extractor, rebuilder)

	result, err := pipeline.Ingest(context.Background(), pdfBytes(100), "scanned.pdf")
	if err != nil {
		t.Fatalf("Ingest() error = %v, want nil for a text-free document", err)
	}

	if result.Status != storage.StatusFailed {
		t.Errorf("Ingest() Status = %v, want %v", result.Status, storage.StatusFailed)
	}
	if result.ChunkCount != 0 {
		t.Errorf("Ingest() ChunkCount = %d, want 0", result.ChunkCount)
	}

	doc, err := docRepo.GetByID(context.Background(), result.DocumentID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if doc.Status != storage.StatusFailed {
		t.Errorf("stored document Status = %v, want %v", doc.Status, storage.StatusFailed)
	}
	if doc.PageCount != 3 {
		t.Errorf("stored document PageCount = %d, want 3", doc.PageCount)
	}
}

func TestPipeline_Ingest_DropsShortFragments(t *testing.T) {
	extractor := &fakeExtractor{
		extraction: &Extraction{
			Pages: []PageText{
				{Number: 1, Text: "short"}, // below the 10-char minimum
				{Number: 2, Text: strings.Repeat("meaningful page content ", 5)},
			},
			TotalPages: 2,
		},
	}
	pipeline, _, chunkRepo := setupPipelineTest(t, extractor, &fakeRebuilder{})

	result, err := pipeline.Ingest(context.Background(), pdfBytes(100), "manual.pdf")
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	chunks, err := chunkRepo.ListByDocument(context.Background(), result.DocumentID)
	if err != nil {
		t.Fatalf("ListByDocument() error = %v", err)
	}
	for _, chunk := range chunks {
		if chunk.PageNumber == 1 {
			t.Errorf("chunk from page 1 survived, fragments below the minimum length must be dropped")
		}
		if len(chunk.Text) < 10 {
			t.Errorf("chunk %q is below the minimum length", chunk.Text)
		}
	}
}

func TestPipeline_Delete(t *testing.T) {
	extractor := &fakeExtractor{
		extraction: &Extraction{
			Pages:      []PageText{{Number: 1, Text: strings.Repeat("page text content ", 10)}},
			TotalPages: 1,
		},
	}
	rebuilder := &fakeRebuilder{}
	pipeline, _, chunkRepo := setupPipelineTest(t, extractor, rebuilder)

	result, err := pipeline.Ingest(context.Background(), pdfBytes(100), "manual.pdf")
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	if err := pipeline.Delete(context.Background(), result.DocumentID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	count, err := chunkRepo.CountByDocument(context.Background(), result.DocumentID)
	if err != nil {
		t.Fatalf("CountByDocument() error = %v", err)
	}
	if count != 0 {
		t.Errorf("Delete() left %d chunks behind, want 0", count)
	}
	if rebuilder.calls != 2 { // one for ingest, one for delete
		t.Errorf("expected 2 rebuilds (ingest + delete), got %d", rebuilder.calls)
	}
}

func TestPipeline_Delete_NotFound(t *testing.T) {
	pipeline, _, _ := setupPipelineTest(t, &fakeExtractor{}, &fakeRebuilder{})

	err := pipeline.Delete(context.Background(), "no-such-doc")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
}
