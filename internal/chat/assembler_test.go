package chat

import (
	"strings"
	"testing"

	"pilot-rag/internal/retrieval"
	"pilot-rag/internal/session"
)

func TestAssembleMessages_Structure(t *testing.T) {
	chunks := []retrieval.RetrievedChunk{
		{OriginalFilename: "manual.pdf", PageNumber: 4, Text: "Check the oil level weekly.", Score: 0.82},
	}
	history := []session.Message{
		{Role: session.RoleUser, Content: "earlier question"},
		{Role: session.RoleAssistant, Content: "earlier answer"},
	}

	messages := AssembleMessages("Directive.", chunks, history, 20, "how often to check oil?")

	if len(messages) != 4 {
		t.Fatalf("AssembleMessages() returned %d messages, want 4", len(messages))
	}
	if messages[0].Role != "system" {
		t.Errorf("message[0].Role = %v, want system", messages[0].Role)
	}
	if messages[1].Content != "earlier question" || messages[2].Content != "earlier answer" {
		t.Error("history must appear verbatim between system and user messages")
	}
	if messages[3].Role != "user" || messages[3].Content != "how often to check oil?" {
		t.Errorf("last message = %+v, want the new user turn", messages[3])
	}
}

func TestAssembleMessages_ContextBlock(t *testing.T) {
	chunks := []retrieval.RetrievedChunk{
		{OriginalFilename: "manual.pdf", PageNumber: 4, Text: "Check the oil level weekly.", Score: 0.82},
		{OriginalFilename: "guide.pdf", PageNumber: 12, Text: "Use 5W-30 oil.", Score: 0.61},
	}

	messages := AssembleMessages("Directive.", chunks, nil, 20, "oil?")

	system := messages[0].Content
	if !strings.Contains(system, "=== RELEVANT DOCUMENT INFORMATION ===") {
		t.Error("system message missing context block header")
	}
	if !strings.Contains(system, "Source 1: manual.pdf (Page 4)") {
		t.Error("system message missing first source attribution")
	}
	if !strings.Contains(system, "Source 2: guide.pdf (Page 12)") {
		t.Error("system message missing second source attribution")
	}
	if !strings.Contains(system, "Check the oil level weekly.") {
		t.Error("system message missing chunk text")
	}
	if !strings.Contains(system, "=== END DOCUMENT INFORMATION ===") {
		t.Error("system message missing context block footer")
	}
}

func TestAssembleMessages_NoChunksNoContextBlock(t *testing.T) {
	messages := AssembleMessages("Directive.", nil, nil, 20, "hello")

	if len(messages) != 2 {
		t.Fatalf("AssembleMessages() returned %d messages, want 2", len(messages))
	}
	if messages[0].Content != "Directive." {
		t.Errorf("system message = %q, want the bare directive when no chunks matched", messages[0].Content)
	}
	if strings.Contains(messages[0].Content, "DOCUMENT INFORMATION") {
		t.Error("system message must not contain a context block without chunks")
	}
}

func TestAssembleMessages_HistoryWindow(t *testing.T) {
	history := []session.Message{
		{Role: session.RoleUser, Content: "q1"},
		{Role: session.RoleAssistant, Content: "a1"},
		{Role: session.RoleUser, Content: "q2"},
		{Role: session.RoleAssistant, Content: "a2"},
		{Role: session.RoleUser, Content: "q3"},
		{Role: session.RoleAssistant, Content: "a3"},
	}

	messages := AssembleMessages("Directive.", nil, history, 4, "q4")

	// system + 4 most recent history messages + new user turn
	if len(messages) != 6 {
		t.Fatalf("AssembleMessages() returned %d messages, want 6", len(messages))
	}
	if messages[1].Content != "q2" {
		t.Errorf("oldest included history message = %q, want q2 (window keeps the most recent)", messages[1].Content)
	}
	if messages[4].Content != "a3" {
		t.Errorf("newest history message = %q, want a3", messages[4].Content)
	}
}

func TestAssembleMessages_DoesNotMutateHistory(t *testing.T) {
	history := []session.Message{
		{Role: session.RoleUser, Content: "q1"},
		{Role: session.RoleAssistant, Content: "a1"},
	}

	_ = AssembleMessages("Directive.", nil, history, 20, "q2")

	if history[0].Content != "q1" || history[1].Content != "a1" {
		t.Error("AssembleMessages() must not mutate the history snapshot")
	}
}
