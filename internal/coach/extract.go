package coach

import (
	"context"
	"fmt"
	"log/slog"
)

// Extractor reads the assistant's answer back from a context.
type Extractor struct {
	remote Remote
	logger *slog.Logger
}

func NewExtractor(remote Remote, logger *slog.Logger) *Extractor {
	return &Extractor{remote: remote, logger: logger}
}

// ExtractLatestAssistantText returns the content of the newest assistant
// message. A job that did not complete yields a *JobFailedError without
// listing messages.
func (e *Extractor) ExtractLatestAssistantText(ctx context.Context, job Job) (string, error) {
	if job.Status != StatusCompleted {
		return "", &JobFailedError{JobID: job.ID, Status: job.Status}
	}

	messages, err := e.remote.ListMessages(ctx, job.ContextID)
	if err != nil {
		return "", fmt.Errorf("failed to list messages: %w", err)
	}

	for _, msg := range messages {
		if msg.Role == RoleAssistant {
			return msg.Content, nil
		}
	}

	e.logger.Warn("completed run left no assistant message", "thread_id", job.ContextID, "run_id", job.ID, "messages", len(messages))
	return "", ErrNoAssistantMessage
}
