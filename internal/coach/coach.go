package coach

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"FitCoach/internal/persona"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Options configures a Coach.
type Options struct {
	Poll      PollOptions
	Completer Completer // Used by Complete; may be nil
	Logger    *slog.Logger
}

// Result is the outcome of one coaching request. On failure the fields that
// were reached are still set.
type Result struct {
	Text       string
	Message    string // Message sent to the assistant
	ContextID  string
	JobID      string
	Status     Status
	StartedAt  time.Time
	FinishedAt time.Time
}

// Coach runs tasks through the remote run-and-poll protocol.
type Coach struct {
	sessions  *SessionManager
	submitter *Submitter
	poller    *Poller
	extractor *Extractor
	completer Completer
	logger    *slog.Logger
	tracer    trace.Tracer
}

// New wires the protocol components around remote.
func New(remote Remote, opts Options) *Coach {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Coach{
		sessions:  NewSessionManager(remote, logger),
		submitter: NewSubmitter(remote, logger),
		poller:    NewPoller(remote, opts.Poll, logger),
		extractor: NewExtractor(remote, logger),
		completer: opts.Completer,
		logger:    logger,
		tracer:    otel.Tracer("fitcoach/coach"),
	}
}

// Ask creates a context, submits the task, waits for the job and returns the
// assistant's reply. No further call touches the context until the job is
// terminal.
func (c *Coach) Ask(ctx context.Context, task persona.Task, data map[string]any) (Result, error) {
	ctx, span := c.tracer.Start(ctx, "coach.ask", trace.WithAttributes(
		attribute.String("task", task.Name),
		attribute.String("persona", task.Persona.Key),
		attribute.String("model", task.Persona.Model),
	))
	defer span.End()

	res := Result{StartedAt: time.Now()}
	fail := func(err error) (Result, error) {
		res.FinishedAt = time.Now()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Error("coaching request failed", "task", task.Name, "thread_id", res.ContextID, "run_id", res.JobID, "error", err)
		return res, err
	}

	msg, err := BuildMessage(task.Prompt, task.DataLabel, data)
	if err != nil {
		return fail(err)
	}
	res.Message = msg

	contextID, err := c.sessions.CreateContext(ctx)
	if err != nil {
		return fail(err)
	}
	res.ContextID = contextID

	job, err := c.submitter.Submit(ctx, contextID, task.Persona, task.Prompt, task.DataLabel, data)
	if err != nil {
		return fail(err)
	}
	res.JobID = job.ID
	res.Status = job.Status

	job, err = c.poller.AwaitCompletion(ctx, job)
	res.Status = job.Status
	if err != nil {
		return fail(err)
	}
	span.SetAttributes(attribute.String("run.status", string(job.Status)))

	text, err := c.extractor.ExtractLatestAssistantText(ctx, job)
	if err != nil {
		return fail(err)
	}
	res.Text = text
	res.FinishedAt = time.Now()

	c.logger.Info("coaching request completed", "task", task.Name, "thread_id", contextID, "run_id", job.ID, "response_len", len(text))
	return res, nil
}

// Complete answers the task with a single chat completion instead of a run.
func (c *Coach) Complete(ctx context.Context, task persona.Task, data map[string]any) (Result, error) {
	ctx, span := c.tracer.Start(ctx, "coach.complete", trace.WithAttributes(
		attribute.String("task", task.Name),
		attribute.String("model", task.Persona.Model),
	))
	defer span.End()

	res := Result{StartedAt: time.Now()}
	if c.completer == nil {
		err := errors.New("chat mode is not configured")
		span.RecordError(err)
		return res, err
	}

	msg, err := BuildMessage(task.Prompt, task.DataLabel, data)
	if err != nil {
		return res, err
	}
	res.Message = msg

	text, err := c.completer.Complete(ctx, task.Persona, msg)
	res.FinishedAt = time.Now()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Error("chat completion failed", "task", task.Name, "error", err)
		return res, err
	}
	res.Text = text
	res.Status = StatusCompleted
	return res, nil
}
