package chat

import (
	"fmt"
	"strings"

	"pilot-rag/internal/llm"
	"pilot-rag/internal/retrieval"
	"pilot-rag/internal/session"
)

// DefaultSystemDirective restricts the assistant to automotive topics and
// instructs it to ground answers in retrieved document context.
const DefaultSystemDirective = `You are an automotive expert assistant with access to technical documentation. You ONLY discuss topics related to:

- Cars, trucks, motorcycles, and other vehicles
- Automotive technology, engines, and mechanical systems
- Vehicle maintenance, repair, and troubleshooting
- Car manufacturers, models, and automotive history
- Racing, motorsports, and automotive performance
- Electric vehicles, hybrids, and automotive innovations
- Vehicle safety, regulations, and automotive industry news

When answering questions:
1. Use the provided document context to give accurate, detailed answers
2. If the documents contain relevant information, cite the specific details
3. If the documents don't contain enough information, say so and provide general automotive knowledge
4. Always stay focused on automotive topics
5. If asked about non-automotive topics, politely redirect to automotive discussions

Format your responses clearly with proper paragraphs and bullet points when helpful.`

// AssembleMessages builds the ordered message list for the completion
// gateway: one system message first (the directive plus, when chunks are
// non-empty, a context block enumerating them with document attribution),
// then the trailing window of the conversation history, then the new user
// message last. The history slice is a read-only snapshot; nothing here
// mutates the conversation store.
func AssembleMessages(directive string, chunks []retrieval.RetrievedChunk, history []session.Message, historyWindow int, userMessage string) []llm.Message {
	system := directive
	if len(chunks) > 0 {
		system = directive + "\n\n" + buildContextBlock(chunks)
	}

	if historyWindow > 0 && len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: "system", Content: system})
	for _, m := range history {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: userMessage})
	return messages
}

// buildContextBlock formats retrieved chunks with document attribution so
// the model can cite its sources.
func buildContextBlock(chunks []retrieval.RetrievedChunk) string {
	var b strings.Builder
	b.WriteString("Use only the following document context when it is relevant to the question.\n")
	b.WriteString("=== RELEVANT DOCUMENT INFORMATION ===\n")
	for i, chunk := range chunks {
		fmt.Fprintf(&b, "Source %d: %s (Page %d)\n", i+1, chunk.OriginalFilename, chunk.PageNumber)
		fmt.Fprintf(&b, "Content: %s\n", chunk.Text)
		fmt.Fprintf(&b, "Relevance Score: %.3f\n\n", chunk.Score)
	}
	b.WriteString("=== END DOCUMENT INFORMATION ===")
	return b.String()
}
