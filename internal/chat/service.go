package chat

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_completion_client.go -package=mocks pilot-rag/internal/chat CompletionClient
//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_retriever.go -package=mocks pilot-rag/internal/retrieval Retriever

import (
	"context"
	"fmt"
	"log/slog"

	"pilot-rag/internal/contextutil"
	"pilot-rag/internal/llm"
	"pilot-rag/internal/retrieval"
	"pilot-rag/internal/session"
)

// CompletionClient is the chat service's view of the completion gateway.
// This interface is defined from the service layer's perspective (consumer-first).
type CompletionClient interface {
	// ChatWithMessages sends an assembled message list and returns the
	// generated text, or one of the typed llm failures.
	ChatWithMessages(ctx context.Context, apiKey, model string, messages []llm.Message, params llm.ChatParams) (*llm.Completion, error)
	// Probe performs one small real completion call to verify a credential.
	Probe(ctx context.Context, apiKey, model string) error
}

// DocumentRef identifies a document whose chunks informed an answer.
type DocumentRef struct {
	ID       string  `json:"id"`
	Filename string  `json:"filename"`
	Score    float64 `json:"relevance_score"`
}

// TurnResult is the outcome of a successful chat turn.
type TurnResult struct {
	Reply               string
	Model               string
	ChunksUsed          int
	ContextUsed         bool
	ReferencedDocuments []DocumentRef
	Usage               llm.Usage
}

// Config holds the policy knobs of the chat service.
type Config struct {
	TopK         int
	MinScore     float64
	HistoryCap   int
	DefaultModel string
	// FallbackAPIKey is the server-level credential used when a session has
	// not configured its own. May be empty.
	FallbackAPIKey  string
	SystemDirective string
}

// Service orchestrates a chat turn: retrieve relevant chunks, assemble the
// prompt, call the completion gateway and maintain the conversation history
// with failure-safe rollback.
type Service struct {
	retriever   retrieval.Retriever
	completions CompletionClient
	cfg         Config
	logger      *slog.Logger
}

// NewService creates a new chat Service.
func NewService(retriever retrieval.Retriever, completions CompletionClient, cfg Config) *Service {
	if cfg.SystemDirective == "" {
		cfg.SystemDirective = DefaultSystemDirective
	}
	return &Service{
		retriever:   retriever,
		completions: completions,
		cfg:         cfg,
		logger:      slog.Default(),
	}
}

// ProcessTurn runs one chat turn for the session. Turns of the same session
// are serialized on the session lock, which is held across the whole
// append/complete/rollback sequence; retries after a failure are clean
// because the failed user message is always rolled back before the error
// returns.
func (s *Service) ProcessTurn(ctx context.Context, sess *session.Session, message string) (TurnResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if message == "" {
		logger.WarnContext(ctx, "empty message in chat turn")
		return TurnResult{}, &ValidationError{Field: "message", Message: "cannot be empty"}
	}

	sess.Lock()
	defer sess.Unlock()

	apiKey := sess.APIKey
	if apiKey == "" {
		apiKey = s.cfg.FallbackAPIKey
	}
	if apiKey == "" {
		return TurnResult{}, ErrNotConfigured
	}
	model := sess.Model
	if model == "" {
		model = s.cfg.DefaultModel
	}

	// History snapshot before this turn; the assembler only reads it.
	history := sess.History.Snapshot()

	chunks, err := s.retriever.Retrieve(ctx, message, s.cfg.TopK, s.cfg.MinScore)
	if err != nil {
		// Retrieval failure is internal; an empty result is the normal path
		// for "no relevant context".
		logger.ErrorContext(ctx, "retrieval failed", "error", err)
		return TurnResult{}, fmt.Errorf("retrieval failed: %w", err)
	}

	messages := AssembleMessages(s.cfg.SystemDirective, chunks, history, s.cfg.HistoryCap, message)

	if err := sess.History.AppendUser(message); err != nil {
		return TurnResult{}, err
	}

	completion, err := s.completions.ChatWithMessages(ctx, apiKey, model, messages, llm.ChatParams{})
	if err != nil {
		// Rollback is mandatory before surfacing the failure so the history
		// never ends with an unanswered user message.
		if rbErr := sess.History.RollbackLastUser(); rbErr != nil {
			logger.ErrorContext(ctx, "CONSISTENCY: rollback after failed turn did not succeed",
				"session_id", sess.ID, "rollback_error", rbErr, "turn_error", err)
		}
		logger.ErrorContext(ctx, "completion failed", "model", model, "error", err)
		return TurnResult{}, fmt.Errorf("%w: %w", ErrCompletionFailed, err)
	}

	if err := sess.History.AppendAssistant(completion.Content); err != nil {
		return TurnResult{}, err
	}
	sess.History.Truncate(s.cfg.HistoryCap)

	logger.InfoContext(ctx, "chat turn completed",
		"session_id", sess.ID,
		"model", completion.Model,
		"chunks_used", len(chunks),
		"history_len", sess.History.Len(),
	)

	return TurnResult{
		Reply:               completion.Content,
		Model:               completion.Model,
		ChunksUsed:          len(chunks),
		ContextUsed:         len(chunks) > 0,
		ReferencedDocuments: referencedDocuments(chunks),
		Usage:               completion.Usage,
	}, nil
}

// ClearHistory resets the session's conversation to empty. Credential and
// model selection are untouched.
func (s *Service) ClearHistory(sess *session.Session) {
	sess.Lock()
	defer sess.Unlock()
	sess.History.Clear()
}

// History returns a snapshot of the session's conversation.
func (s *Service) History(sess *session.Session) []session.Message {
	sess.Lock()
	defer sess.Unlock()
	return sess.History.Snapshot()
}

// TestCredential performs one real probe call. On success the credential and
// model are stored in the session; on failure nothing is persisted.
func (s *Service) TestCredential(ctx context.Context, sess *session.Session, apiKey, model string) error {
	if apiKey == "" {
		return &ValidationError{Field: "api_key", Message: "cannot be empty"}
	}
	if model == "" {
		model = s.cfg.DefaultModel
	}

	if err := s.completions.Probe(ctx, apiKey, model); err != nil {
		return fmt.Errorf("%w: %w", ErrCompletionFailed, err)
	}

	sess.Lock()
	defer sess.Unlock()
	sess.APIKey = apiKey
	sess.Model = model
	return nil
}

// referencedDocuments deduplicates chunks by owning document, keeping the
// best (first, highest) score per document.
func referencedDocuments(chunks []retrieval.RetrievedChunk) []DocumentRef {
	seen := make(map[string]bool)
	refs := make([]DocumentRef, 0, len(chunks))
	for _, chunk := range chunks {
		if seen[chunk.DocumentID] {
			continue
		}
		seen[chunk.DocumentID] = true
		refs = append(refs, DocumentRef{
			ID:       chunk.DocumentID,
			Filename: chunk.OriginalFilename,
			Score:    chunk.Score,
		})
	}
	return refs
}
