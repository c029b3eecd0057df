package coach

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"FitCoach/internal/persona"
)

// SessionManager creates conversation contexts.
type SessionManager struct {
	remote Remote
	logger *slog.Logger
}

func NewSessionManager(remote Remote, logger *slog.Logger) *SessionManager {
	return &SessionManager{remote: remote, logger: logger}
}

// CreateContext always creates a fresh remote context; ids are never reused.
func (m *SessionManager) CreateContext(ctx context.Context) (string, error) {
	id, err := m.remote.CreateContext(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create thread: %w", err)
	}
	m.logger.Info("created thread", "thread_id", id)
	return id, nil
}

// Submitter appends a user message to a context and starts a job for it.
type Submitter struct {
	remote Remote
	logger *slog.Logger
}

func NewSubmitter(remote Remote, logger *slog.Logger) *Submitter {
	return &Submitter{remote: remote, logger: logger}
}

// Submit sends the message built from prompt and data, then starts a job
// bound to the context and persona. Calls are not deduplicated: submitting
// twice appends two messages and starts two jobs.
func (s *Submitter) Submit(ctx context.Context, contextID string, p persona.Persona, prompt, label string, data map[string]any) (Job, error) {
	content, err := BuildMessage(prompt, label, data)
	if err != nil {
		return Job{}, err
	}

	if _, err := s.remote.AppendMessage(ctx, contextID, RoleUser, content); err != nil {
		return Job{}, fmt.Errorf("failed to add message: %w", err)
	}

	job, err := s.remote.CreateJob(ctx, contextID, p)
	if err != nil {
		return Job{}, fmt.Errorf("failed to create run: %w", err)
	}
	if job.ContextID == "" {
		job.ContextID = contextID
	}

	s.logger.Info("submitted run", "thread_id", contextID, "run_id", job.ID, "persona", p.Key, "status", job.Status)
	return job, nil
}

// BuildMessage returns prompt followed, when data is non-empty, by a blank
// line, the label line and the indented JSON encoding of data.
func BuildMessage(prompt, label string, data map[string]any) (string, error) {
	if len(data) == 0 {
		return prompt, nil
	}
	if label == "" {
		label = persona.DefaultDataLabel
	}

	pretty, err := PrettyJSON(data)
	if err != nil {
		return "", fmt.Errorf("failed to encode data: %w", err)
	}

	var b strings.Builder
	b.WriteString(prompt)
	b.WriteString("\n\n")
	b.WriteString(label)
	b.WriteString(":\n")
	b.WriteString(pretty)
	return b.String(), nil
}

// PrettyJSON encodes v with two-space indentation and no HTML escaping.
func PrettyJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// ParseData decodes a JSON object given on the command line. Blank input,
// non-object values and anything after the object are malformed.
func ParseData(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, &MalformedInputError{Err: errors.New("empty payload")}
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, &MalformedInputError{Err: err}
	}
	if data == nil {
		return nil, &MalformedInputError{Err: errors.New("payload must be a JSON object")}
	}
	var rest json.RawMessage
	if err := dec.Decode(&rest); err != io.EOF {
		return nil, &MalformedInputError{Err: errors.New("unexpected data after JSON object")}
	}
	return data, nil
}
