package backend

import "encoding/json"

// ChatMessage is one entry of a chat completion request
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// OpenAIRequest represents the request body for the chat completions API
type OpenAIRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// OpenAIResponse represents the response from the chat completions API
type OpenAIResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage map[string]interface{} `json:"usage"`
}

// ErrorResponse is the error envelope returned with non-2xx statuses
type ErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Tool enables a built-in assistant capability such as code_interpreter
type Tool struct {
	Type string `json:"type"`
}

// AssistantRequest represents the request body for POST /assistants
type AssistantRequest struct {
	Name         string `json:"name"`
	Instructions string `json:"instructions"`
	Model        string `json:"model"`
	Tools        []Tool `json:"tools,omitempty"`
}

// Assistant is a stored persona configuration
type Assistant struct {
	ID        string `json:"id"`
	Object    string `json:"object"`
	CreatedAt int64  `json:"created_at"`
	Name      string `json:"name"`
	Model     string `json:"model"`
}

// Thread is a server-side conversation
type Thread struct {
	ID        string `json:"id"`
	Object    string `json:"object"`
	CreatedAt int64  `json:"created_at"`
}

// MessageRequest represents the request body for POST /threads/{id}/messages
type MessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ThreadMessage is a message stored on a thread
type ThreadMessage struct {
	ID        string           `json:"id"`
	Object    string           `json:"object"`
	CreatedAt int64            `json:"created_at"`
	ThreadID  string           `json:"thread_id"`
	Role      string           `json:"role"`
	Content   []MessageContent `json:"content"`
	RunID     string           `json:"run_id,omitempty"`
}

// MessageContent is one content part; only "text" parts carry Text
type MessageContent struct {
	Type string       `json:"type"`
	Text *TextContent `json:"text,omitempty"`
}

// TextContent holds the text value of a content part
type TextContent struct {
	Value       string            `json:"value"`
	Annotations []json.RawMessage `json:"annotations,omitempty"`
}

// MessageList is the paginated response of GET /threads/{id}/messages
type MessageList struct {
	Object  string          `json:"object"`
	Data    []ThreadMessage `json:"data"`
	FirstID string          `json:"first_id"`
	LastID  string          `json:"last_id"`
	HasMore bool            `json:"has_more"`
}

// RunRequest represents the request body for POST /threads/{id}/runs
type RunRequest struct {
	AssistantID string `json:"assistant_id"`
}

// Run is an asynchronous assistant execution on a thread
type Run struct {
	ID          string    `json:"id"`
	Object      string    `json:"object"`
	CreatedAt   int64     `json:"created_at"`
	ThreadID    string    `json:"thread_id"`
	AssistantID string    `json:"assistant_id"`
	Status      string    `json:"status"`
	Model       string    `json:"model"`
	LastError   *RunError `json:"last_error,omitempty"`
}

// RunError describes why a run failed
type RunError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
