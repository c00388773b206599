// Package index provides a TF-IDF term-weight index over the chunk corpus
// with cosine-similarity search. The index is a recomputed snapshot: any
// change to the chunk set requires a full rebuild, and queries always run
// against the last snapshot that finished building. This is an explicit
// scalability ceiling, acceptable for corpora of dozens of documents.
package index

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_index.go -package=mocks pilot-rag/internal/index Index

import (
	"sort"
	"sync"
)

// Entry is the projection of a chunk into the index.
type Entry struct {
	ChunkID    string
	DocumentID string
	Text       string
}

// Hit is a single search result.
type Hit struct {
	Entry Entry
	Score float64
}

// Index builds term-weight vectors over a chunk corpus and answers
// similarity queries. Implementations must never expose a partially-built
// state: a query issued during a rebuild sees either the old snapshot or the
// new one.
type Index interface {
	// Build replaces the current snapshot with one computed over entries.
	Build(entries []Entry) error
	// Query returns up to k entries ranked by descending cosine similarity
	// to text. Ties keep corpus insertion order. An empty corpus returns an
	// empty result, never an error.
	Query(text string, k int) []Hit
	// Size returns the number of entries in the current snapshot.
	Size() int
}

// TFIDFIndex is the in-memory TF-IDF implementation of Index.
type TFIDFIndex struct {
	mu   sync.RWMutex
	snap *snapshot
}

// snapshot is an immutable build over one chunk corpus.
type snapshot struct {
	vectorizer *vectorizer
	entries    []Entry
	// vectors[i] is the L2-normalised sparse term-weight vector of
	// entries[i], keyed by vocabulary index.
	vectors []map[int]float64
}

// NewTFIDFIndex creates an empty index.
func NewTFIDFIndex() *TFIDFIndex {
	return &TFIDFIndex{snap: &snapshot{vectorizer: newVectorizer(nil)}}
}

// Build computes a fresh snapshot over entries and swaps it in atomically.
// Queries running concurrently keep reading the previous snapshot until the
// swap happens.
func (ix *TFIDFIndex) Build(entries []Entry) error {
	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = e.Text
	}

	v := newVectorizer(texts)
	vectors := make([]map[int]float64, len(entries))
	for i, text := range texts {
		vectors[i] = v.vectorize(text)
	}

	next := &snapshot{
		vectorizer: v,
		entries:    append([]Entry(nil), entries...),
		vectors:    vectors,
	}

	ix.mu.Lock()
	ix.snap = next
	ix.mu.Unlock()
	return nil
}

// Query ranks the corpus by cosine similarity to text and returns the top k
// hits. Vectors are L2-normalised at build time, so cosine similarity is the
// sparse dot product.
func (ix *TFIDFIndex) Query(text string, k int) []Hit {
	ix.mu.RLock()
	snap := ix.snap
	ix.mu.RUnlock()

	if k <= 0 || len(snap.entries) == 0 {
		return nil
	}

	queryVec := snap.vectorizer.vectorize(text)
	if len(queryVec) == 0 {
		return nil
	}

	hits := make([]Hit, 0, len(snap.entries))
	for i, vec := range snap.vectors {
		score := sparseDot(queryVec, vec)
		if score <= 0 {
			continue
		}
		hits = append(hits, Hit{Entry: snap.entries[i], Score: score})
	}

	// Stable sort keeps insertion order for equal scores.
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// Size returns the number of entries in the current snapshot.
func (ix *TFIDFIndex) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.snap.entries)
}

// sparseDot iterates the smaller vector for efficiency.
func sparseDot(a, b map[int]float64) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	sum := 0.0
	for idx, av := range a {
		if bv, ok := b[idx]; ok {
			sum += av * bv
		}
	}
	return sum
}
