package coach

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrNoAssistantMessage is returned when a completed job left no assistant
// message in its context.
var ErrNoAssistantMessage = errors.New("no assistant message in conversation")

// ConfigurationError reports a missing or invalid setting.
type ConfigurationError struct {
	Setting string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s %s", e.Setting, e.Reason)
}

// TransportError wraps a failed call to the remote service. StatusCode is 0
// when no HTTP response was received.
type TransportError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: API error %d: %s", e.Op, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Transient reports whether repeating the call may succeed.
func (e *TransportError) Transient() bool {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 500:
		return true
	case e.StatusCode != 0:
		return false
	}
	return e.Err != nil &&
		!errors.Is(e.Err, context.Canceled) &&
		!errors.Is(e.Err, context.DeadlineExceeded)
}

// JobFailedError reports a job that settled in a status other than completed.
type JobFailedError struct {
	JobID  string
	Status Status
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("Assistant run failed with status: %s", e.Status)
}

// TimeoutError reports a job still pending when the poll deadline passed.
type TimeoutError struct {
	JobID      string
	LastStatus Status
	Waited     time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("run %s still %s after %s", e.JobID, e.LastStatus, e.Waited.Round(time.Millisecond))
}

func (e *TimeoutError) Unwrap() error { return context.DeadlineExceeded }

// MalformedInputError reports structured data that could not be parsed.
type MalformedInputError struct {
	Err error
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("invalid JSON payload: %v", e.Err)
}

func (e *MalformedInputError) Unwrap() error { return e.Err }

// UnknownCommandError reports a function name with no matching task.
type UnknownCommandError struct {
	Name string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("Unknown function: %s", e.Name)
}
