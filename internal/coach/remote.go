// Package coach implements the run-and-poll protocol used to get coaching
// feedback from a remote assistant: create a thread, submit a message and a
// run, poll the run until it settles, then read back the newest assistant
// message.
package coach

import (
	"context"
	"time"

	"FitCoach/internal/persona"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Status is the remote lifecycle state of a job.
type Status string

const (
	StatusQueued         Status = "queued"
	StatusInProgress     Status = "in_progress"
	StatusCancelling     Status = "cancelling"
	StatusCompleted      Status = "completed"
	StatusFailed         Status = "failed"
	StatusCancelled      Status = "cancelled"
	StatusExpired        Status = "expired"
	StatusRequiresAction Status = "requires_action"
	StatusIncomplete     Status = "incomplete"
)

// Pending reports whether the job may still change state on its own.
// Anything else, including statuses this package does not know, is terminal.
func (s Status) Pending() bool {
	switch s {
	case StatusQueued, StatusInProgress, StatusCancelling:
		return true
	}
	return false
}

// Job is one asynchronous run against a conversation context.
type Job struct {
	ID        string
	ContextID string
	Status    Status
}

// Message is an entry in a conversation context.
type Message struct {
	ID        string
	Role      Role
	Content   string
	CreatedAt time.Time
}

// Remote is the subset of the assistant service the protocol consumes.
type Remote interface {
	// CreateContext creates a new, empty conversation context.
	CreateContext(ctx context.Context) (string, error)

	// AppendMessage adds a message to the context.
	AppendMessage(ctx context.Context, contextID string, role Role, content string) (Message, error)

	// CreateJob starts a run on the context using the persona's configuration.
	CreateJob(ctx context.Context, contextID string, p persona.Persona) (Job, error)

	// RetrieveJob returns the current state of a job.
	RetrieveJob(ctx context.Context, contextID, jobID string) (Job, error)

	// ListMessages returns the messages of a context, newest first.
	ListMessages(ctx context.Context, contextID string) ([]Message, error)
}

// Completer answers a prompt in a single synchronous call.
type Completer interface {
	Complete(ctx context.Context, p persona.Persona, prompt string) (string, error)
}
