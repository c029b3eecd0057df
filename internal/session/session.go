package session

import (
	"time"

	"github.com/google/uuid"
)

// Message represents a single chat message
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session represents one coaching request and what it exchanged
type Session struct {
	ID        string    `json:"id"`
	Function  string    `json:"function"`
	Backend   string    `json:"backend"` // assistants or chat
	Model     string    `json:"model"`
	ThreadID  string    `json:"thread_id,omitempty"`
	RunID     string    `json:"run_id,omitempty"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Messages  []Message `json:"messages"`
}

// New creates a session with a fresh id
func New(function, backend, model string) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Function:  function,
		Backend:   backend,
		Model:     model,
		StartTime: time.Now(),
		Messages:  []Message{},
	}
}

// Append adds a message stamped with the current time
func (s *Session) Append(role, content string) {
	s.Messages = append(s.Messages, Message{Role: role, Content: content, Timestamp: time.Now()})
}
