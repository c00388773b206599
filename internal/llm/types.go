package llm

// Message represents a single message in a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatParams holds parameters for chat completion requests.
type ChatParams struct {
	// MaxTokens specifies the maximum number of tokens to generate.
	// If 0, the client default of 1000 is used.
	MaxTokens int

	// Temperature controls the randomness of the output.
	// Default is 0.7 if not specified.
	Temperature float32
}

// Usage holds token usage metadata reported by the provider.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is the result of a successful completion call.
type Completion struct {
	Content string
	Model   string
	Usage   Usage
}
