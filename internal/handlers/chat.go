package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"pilot-rag/internal/chat"
	"pilot-rag/internal/contextutil"
	"pilot-rag/internal/llm"
	"pilot-rag/internal/session"
)

// ChatHandler handles chat turns and session-scoped settings.
type ChatHandler struct {
	service  *chat.Service
	sessions session.Store
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(service *chat.Service, sessions session.Store) *ChatHandler {
	return &ChatHandler{service: service, sessions: sessions}
}

// ChatRequest represents the HTTP request payload for a chat turn.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse represents the HTTP response payload for a chat turn.
type ChatResponse struct {
	Reply               string             `json:"reply"`
	Model               string             `json:"model"`
	ContextUsed         bool               `json:"context_used"`
	ChunksUsed          int                `json:"chunks_used"`
	ReferencedDocuments []chat.DocumentRef `json:"referenced_documents"`
	Usage               llm.Usage          `json:"usage"`
}

// SessionResponse describes the caller's session without exposing the
// credential itself.
type SessionResponse struct {
	KeyConfigured bool              `json:"key_configured"`
	Model         string            `json:"model"`
	HistoryLength int               `json:"history_length"`
	History       []session.Message `json:"history"`
}

// SettingsTestRequest represents the HTTP request payload for a credential test.
type SettingsTestRequest struct {
	APIKey string `json:"api_key"`
	Model  string `json:"model"`
}

// SettingsTestResponse represents the HTTP response payload for a credential test.
type SettingsTestResponse struct {
	Success bool   `json:"success"`
	Model   string `json:"model"`
}

// Chat handles a single chat turn.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid chat request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sess := h.session(r)

	result, err := h.service.ProcessTurn(ctx, sess, req.Message)
	if err != nil {
		h.handleTurnError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		Reply:               result.Reply,
		Model:               result.Model,
		ContextUsed:         result.ContextUsed,
		ChunksUsed:          result.ChunksUsed,
		ReferencedDocuments: result.ReferencedDocuments,
		Usage:               result.Usage,
	})
}

// ClearHistory empties the conversation history, keeping credential and model.
func (h *ChatHandler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	sess := h.session(r)
	h.service.ClearHistory(sess)
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// ClearSession discards the whole session, history and credential included.
func (h *ChatHandler) ClearSession(w http.ResponseWriter, r *http.Request) {
	token := contextutil.SessionTokenFromContext(r.Context())
	h.sessions.Delete(token)
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// GetSession reports the session's configuration state and history. The API
// key never leaves the server.
func (h *ChatHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess := h.session(r)
	history := h.service.History(sess)

	sess.Lock()
	keyConfigured := sess.APIKey != ""
	model := sess.Model
	sess.Unlock()

	writeJSON(w, http.StatusOK, SessionResponse{
		KeyConfigured: keyConfigured,
		Model:         model,
		HistoryLength: len(history),
		History:       history,
	})
}

// TestSettings verifies a credential with a real probe completion and stores
// it in the session on success.
func (h *ChatHandler) TestSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req SettingsTestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid settings request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sess := h.session(r)

	if err := h.service.TestCredential(ctx, sess, req.APIKey, req.Model); err != nil {
		h.handleTurnError(w, r, err)
		return
	}

	sess.Lock()
	model := sess.Model
	sess.Unlock()

	writeJSON(w, http.StatusOK, SettingsTestResponse{Success: true, Model: model})
}

// session resolves the caller's session from the token set by the session
// middleware.
func (h *ChatHandler) session(r *http.Request) *session.Session {
	token := contextutil.SessionTokenFromContext(r.Context())
	return h.sessions.GetOrCreate(token)
}

// handleTurnError maps chat service errors to HTTP status codes. Invalid
// credentials are surfaced distinctly; other upstream failures collapse into
// a generic 502 so internals are not leaked to the client.
func (h *ChatHandler) handleTurnError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var validationErr *chat.ValidationError
	var authErr *llm.AuthError
	var rateErr *llm.RateLimitError

	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, validationErr.Error())
	case errors.Is(err, chat.ErrNotConfigured):
		writeError(w, http.StatusUnauthorized, "No API key configured for this session")
	case errors.As(err, &authErr):
		writeError(w, http.StatusUnauthorized, "Invalid API key")
	case errors.As(err, &rateErr):
		writeError(w, http.StatusTooManyRequests, "Rate limited by the model provider")
	case errors.Is(err, chat.ErrCompletionFailed):
		logger.ErrorContext(ctx, "completion failed", "error", err)
		writeError(w, http.StatusBadGateway, "The model provider could not be reached")
	default:
		logger.ErrorContext(ctx, "chat turn failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to process message")
	}
}
