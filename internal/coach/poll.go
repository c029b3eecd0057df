package coach

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const maxPollBackoff = 30 * time.Second

// PollOptions bounds the poll loop.
type PollOptions struct {
	Interval  time.Duration // Wait between retrievals
	Timeout   time.Duration // Zero disables the poller's own deadline
	MaxErrors int           // Consecutive transient failures tolerated
}

// Poller waits for jobs to reach a terminal status.
type Poller struct {
	remote Remote
	opts   PollOptions
	logger *slog.Logger
	polls  metric.Int64Counter
}

func NewPoller(remote Remote, opts PollOptions, logger *slog.Logger) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	polls, err := otel.Meter("fitcoach/coach").Int64Counter(
		"fitcoach.poll.count",
		metric.WithDescription("Run status retrievals"),
	)
	if err != nil {
		logger.Warn("failed to create poll counter", "error", err)
	}
	return &Poller{remote: remote, opts: opts, logger: logger, polls: polls}
}

// AwaitCompletion re-fetches job every interval while its status is pending
// and returns the first terminal observation. The job passed in is the one
// returned by Submit, so a job created as queued that goes in_progress then
// completed costs two retrievals.
//
// Transient transport failures are retried with exponential backoff up to
// MaxErrors in a row. When the deadline passes first a *TimeoutError carrying
// the last observed status is returned.
func (p *Poller) AwaitCompletion(ctx context.Context, job Job) (Job, error) {
	start := time.Now()
	if p.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
	}

	failures := 0
	delay := p.opts.Interval
	for job.Status.Pending() {
		if err := sleep(ctx, delay); err != nil {
			return job, p.stopped(ctx, job, start)
		}

		next, err := p.remote.RetrieveJob(ctx, job.ContextID, job.ID)
		if p.polls != nil {
			p.polls.Add(ctx, 1, metric.WithAttributes(attribute.Bool("error", err != nil)))
		}
		if err != nil {
			if ctx.Err() != nil {
				return job, p.stopped(ctx, job, start)
			}
			var te *TransportError
			if errors.As(err, &te) && te.Transient() && failures < p.opts.MaxErrors {
				failures++
				delay = backoff(p.opts.Interval, failures)
				p.logger.Warn("transient error polling run, retrying",
					"run_id", job.ID, "attempt", failures, "retry_in", delay, "error", err)
				continue
			}
			return job, fmt.Errorf("failed to retrieve run %s: %w", job.ID, err)
		}

		failures = 0
		delay = p.opts.Interval
		if next.ContextID == "" {
			next.ContextID = job.ContextID
		}
		if next.Status != job.Status {
			p.logger.Debug("run status changed", "run_id", job.ID, "from", job.Status, "to", next.Status)
		}
		job = next
	}

	p.logger.Info("run settled", "run_id", job.ID, "status", job.Status, "elapsed", time.Since(start))
	return job, nil
}

func (p *Poller) stopped(ctx context.Context, job Job, start time.Time) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{JobID: job.ID, LastStatus: job.Status, Waited: time.Since(start)}
	}
	return fmt.Errorf("polling run %s: %w", job.ID, ctx.Err())
}

func backoff(base time.Duration, attempt int) time.Duration {
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= maxPollBackoff {
			return maxPollBackoff
		}
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
