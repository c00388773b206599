package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/mock/gomock"

	"pilot-rag/internal/chat"
	"pilot-rag/internal/chat/mocks"
	"pilot-rag/internal/contextutil"
	"pilot-rag/internal/llm"
	"pilot-rag/internal/retrieval"
	"pilot-rag/internal/session"
)

const testToken = "test-session-token"

func newChatRouter(t *testing.T) (http.Handler, *mocks.MockRetriever, *mocks.MockCompletionClient, session.Store) {
	t.Helper()

	ctrl := gomock.NewController(t)
	retriever := mocks.NewMockRetriever(ctrl)
	completions := mocks.NewMockCompletionClient(ctrl)

	service := chat.NewService(retriever, completions, chat.Config{
		TopK:         5,
		MinScore:     0.1,
		HistoryCap:   20,
		DefaultModel: "default-model",
	})
	sessions := session.NewMemoryStore()
	h := NewChatHandler(service, sessions)

	r := chi.NewRouter()
	// Stand-in for the session middleware: a fixed token per test.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := contextutil.WithSessionToken(req.Context(), testToken)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Post("/api/chat", h.Chat)
	r.Post("/api/chat/clear", h.ClearHistory)
	r.Get("/api/session", h.GetSession)
	r.Post("/api/session/clear", h.ClearSession)
	r.Post("/api/settings/test", h.TestSettings)

	return r, retriever, completions, sessions
}

func postJSON(t *testing.T, router http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestChatHandler_Chat(t *testing.T) {
	router, retriever, completions, sessions := newChatRouter(t)
	sessions.GetOrCreate(testToken).APIKey = "key"

	chunks := []retrieval.RetrievedChunk{
		{ChunkID: "c1", DocumentID: "d1", OriginalFilename: "manual.pdf", PageNumber: 2, Text: "Oil info.", Score: 0.7},
	}
	retriever.EXPECT().Retrieve(gomock.Any(), "oil?", 5, 0.1).Return(chunks, nil)
	completions.EXPECT().
		ChatWithMessages(gomock.Any(), "key", "default-model", gomock.Any(), gomock.Any()).
		Return(&llm.Completion{Content: "Here is the answer.", Model: "default-model", Usage: llm.Usage{TotalTokens: 20}}, nil)

	w := postJSON(t, router, "/api/chat", ChatRequest{Message: "oil?"})

	if w.Code != http.StatusOK {
		t.Fatalf("Chat() status = %v, want %v: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp ChatResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Reply != "Here is the answer." {
		t.Errorf("Chat() reply = %v, want the completion", resp.Reply)
	}
	if !resp.ContextUsed || resp.ChunksUsed != 1 {
		t.Errorf("Chat() context metadata = %v/%d, want true/1", resp.ContextUsed, resp.ChunksUsed)
	}
	if len(resp.ReferencedDocuments) != 1 || resp.ReferencedDocuments[0].Filename != "manual.pdf" {
		t.Errorf("Chat() referenced documents = %+v", resp.ReferencedDocuments)
	}
}

func TestChatHandler_Chat_EmptyMessage(t *testing.T) {
	router, _, _, sessions := newChatRouter(t)
	sessions.GetOrCreate(testToken).APIKey = "key"

	w := postJSON(t, router, "/api/chat", ChatRequest{Message: ""})

	if w.Code != http.StatusBadRequest {
		t.Errorf("Chat() status = %v, want %v", w.Code, http.StatusBadRequest)
	}
}

func TestChatHandler_Chat_NotConfigured(t *testing.T) {
	router, _, _, _ := newChatRouter(t)

	w := postJSON(t, router, "/api/chat", ChatRequest{Message: "hello"})

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Chat() status = %v, want %v", w.Code, http.StatusUnauthorized)
	}
}

func TestChatHandler_Chat_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		gatewayErr error
		wantStatus int
	}{
		{
			name:       "auth error surfaced distinctly",
			gatewayErr: &llm.AuthError{Status: 401},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "rate limit",
			gatewayErr: &llm.RateLimitError{Status: 429},
			wantStatus: http.StatusTooManyRequests,
		},
		{
			name:       "timeout collapses to bad gateway",
			gatewayErr: &llm.TimeoutError{Err: context.DeadlineExceeded},
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "transport failure collapses to bad gateway",
			gatewayErr: &llm.TransportError{Status: 500},
			wantStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, retriever, completions, sessions := newChatRouter(t)
			sessions.GetOrCreate(testToken).APIKey = "key"

			retriever.EXPECT().Retrieve(gomock.Any(), gomock.Any(), 5, 0.1).Return(nil, nil)
			completions.EXPECT().
				ChatWithMessages(gomock.Any(), "key", "default-model", gomock.Any(), gomock.Any()).
				Return(nil, tt.gatewayErr)

			w := postJSON(t, router, "/api/chat", ChatRequest{Message: "hello"})

			if w.Code != tt.wantStatus {
				t.Errorf("Chat() status = %v, want %v: %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestChatHandler_ClearHistory(t *testing.T) {
	router, _, _, sessions := newChatRouter(t)
	sess := sessions.GetOrCreate(testToken)
	sess.APIKey = "key"
	_ = sess.History.AppendUser("question")
	_ = sess.History.AppendAssistant("answer")

	w := postJSON(t, router, "/api/chat/clear", struct{}{})

	if w.Code != http.StatusOK {
		t.Fatalf("ClearHistory() status = %v, want %v", w.Code, http.StatusOK)
	}
	if sess.History.Len() != 0 {
		t.Errorf("ClearHistory() left %d messages", sess.History.Len())
	}
	if sess.APIKey != "key" {
		t.Error("ClearHistory() must keep the credential")
	}
}

func TestChatHandler_ClearSession(t *testing.T) {
	router, _, _, sessions := newChatRouter(t)
	sess := sessions.GetOrCreate(testToken)
	sess.APIKey = "key"

	w := postJSON(t, router, "/api/session/clear", struct{}{})

	if w.Code != http.StatusOK {
		t.Fatalf("ClearSession() status = %v, want %v", w.Code, http.StatusOK)
	}
	if _, ok := sessions.Get(testToken); ok {
		t.Error("ClearSession() must destroy the session entirely")
	}
}

func TestChatHandler_GetSession(t *testing.T) {
	router, _, _, sessions := newChatRouter(t)
	sess := sessions.GetOrCreate(testToken)
	sess.APIKey = "super-secret-key"
	sess.Model = "chosen-model"
	_ = sess.History.AppendUser("question")
	_ = sess.History.AppendAssistant("answer")

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("GetSession() status = %v, want %v", w.Code, http.StatusOK)
	}

	if bytes.Contains(w.Body.Bytes(), []byte("super-secret-key")) {
		t.Fatal("GetSession() leaked the API key")
	}

	var resp SessionResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.KeyConfigured {
		t.Error("GetSession() KeyConfigured = false, want true")
	}
	if resp.Model != "chosen-model" {
		t.Errorf("GetSession() Model = %v, want chosen-model", resp.Model)
	}
	if resp.HistoryLength != 2 || len(resp.History) != 2 {
		t.Errorf("GetSession() history length = %d/%d, want 2", resp.HistoryLength, len(resp.History))
	}
}

func TestChatHandler_TestSettings(t *testing.T) {
	router, _, completions, sessions := newChatRouter(t)

	completions.EXPECT().Probe(gomock.Any(), "new-key", "chosen-model").Return(nil)

	w := postJSON(t, router, "/api/settings/test", SettingsTestRequest{APIKey: "new-key", Model: "chosen-model"})

	if w.Code != http.StatusOK {
		t.Fatalf("TestSettings() status = %v, want %v: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp SettingsTestResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Success || resp.Model != "chosen-model" {
		t.Errorf("TestSettings() response = %+v", resp)
	}

	sess, ok := sessions.Get(testToken)
	if !ok {
		t.Fatal("TestSettings() did not create the session")
	}
	if sess.APIKey != "new-key" || sess.Model != "chosen-model" {
		t.Errorf("TestSettings() persisted %v/%v, want new-key/chosen-model", sess.APIKey, sess.Model)
	}
}

func TestChatHandler_TestSettings_BadCredential(t *testing.T) {
	router, _, completions, sessions := newChatRouter(t)

	completions.EXPECT().Probe(gomock.Any(), "bad-key", "default-model").Return(&llm.AuthError{Status: 401})

	w := postJSON(t, router, "/api/settings/test", SettingsTestRequest{APIKey: "bad-key"})

	if w.Code != http.StatusUnauthorized {
		t.Errorf("TestSettings() status = %v, want %v", w.Code, http.StatusUnauthorized)
	}

	sess := sessions.GetOrCreate(testToken)
	if sess.APIKey != "" {
		t.Error("failed TestSettings() must not persist the credential")
	}
}

func TestChatHandler_TestSettings_EmptyKey(t *testing.T) {
	router, _, _, _ := newChatRouter(t)

	w := postJSON(t, router, "/api/settings/test", SettingsTestRequest{APIKey: ""})

	if w.Code != http.StatusBadRequest {
		t.Errorf("TestSettings() status = %v, want %v", w.Code, http.StatusBadRequest)
	}
}
