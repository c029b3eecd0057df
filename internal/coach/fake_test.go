package coach

import (
	"context"
	"fmt"
	"sync"
	"time"

	"FitCoach/internal/persona"
)

// step is one scripted RetrieveJob outcome.
type step struct {
	status Status
	err    error
}

// fakeRemote is an in-memory Remote whose job statuses follow a script.
type fakeRemote struct {
	mu sync.Mutex

	createStatus Status
	script       []step
	reply        string

	createContextErr error
	appendErr        error
	createJobErr     error
	listErr          error

	nextID        int
	messages      map[string][]Message
	jobs          []Job
	personas      []persona.Persona
	retrieveCalls int
	listCalls     int
	replied       map[string]bool
}

func newFakeRemote(reply string, script ...step) *fakeRemote {
	return &fakeRemote{
		createStatus: StatusQueued,
		script:       script,
		reply:        reply,
		messages:     map[string][]Message{},
		replied:      map[string]bool{},
	}
}

func (f *fakeRemote) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s_%d", prefix, f.nextID)
}

func (f *fakeRemote) CreateContext(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createContextErr != nil {
		return "", f.createContextErr
	}
	id := f.id("thread")
	f.messages[id] = nil
	return id, nil
}

func (f *fakeRemote) AppendMessage(ctx context.Context, contextID string, role Role, content string) (Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return Message{}, f.appendErr
	}
	msg := Message{ID: f.id("msg"), Role: role, Content: content, CreatedAt: time.Now()}
	f.messages[contextID] = append(f.messages[contextID], msg)
	return msg, nil
}

func (f *fakeRemote) CreateJob(ctx context.Context, contextID string, p persona.Persona) (Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createJobErr != nil {
		return Job{}, f.createJobErr
	}
	job := Job{ID: f.id("run"), ContextID: contextID, Status: f.createStatus}
	f.jobs = append(f.jobs, job)
	f.personas = append(f.personas, p)
	f.settle(job)
	return job, nil
}

func (f *fakeRemote) RetrieveJob(ctx context.Context, contextID, jobID string) (Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := f.retrieveCalls
	f.retrieveCalls++

	var s step
	switch {
	case idx < len(f.script):
		s = f.script[idx]
	case len(f.script) > 0:
		s = f.script[len(f.script)-1]
	default:
		s = step{status: StatusCompleted}
	}
	if s.err != nil {
		return Job{}, s.err
	}
	job := Job{ID: jobID, ContextID: contextID, Status: s.status}
	f.settle(job)
	return job, nil
}

// settle appends the scripted reply once the job completes.
func (f *fakeRemote) settle(job Job) {
	if job.Status != StatusCompleted || f.reply == "" || f.replied[job.ID] {
		return
	}
	f.replied[job.ID] = true
	f.messages[job.ContextID] = append(f.messages[job.ContextID], Message{
		ID:        f.id("msg"),
		Role:      RoleAssistant,
		Content:   f.reply,
		CreatedAt: time.Now(),
	})
}

func (f *fakeRemote) ListMessages(ctx context.Context, contextID string) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	msgs := f.messages[contextID]
	out := make([]Message, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		out = append(out, msgs[i])
	}
	return out, nil
}

func (f *fakeRemote) userMessages(contextID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.messages[contextID] {
		if m.Role == RoleUser {
			out = append(out, m.Content)
		}
	}
	return out
}

type fakeCompleter struct {
	prompts []string
	reply   string
	err     error
}

func (f *fakeCompleter) Complete(ctx context.Context, p persona.Persona, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}
