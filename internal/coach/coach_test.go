package coach

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"FitCoach/internal/persona"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastPoll() PollOptions {
	return PollOptions{Interval: time.Millisecond, Timeout: 2 * time.Second, MaxErrors: 3}
}

func analyzeTask(t *testing.T) persona.Task {
	t.Helper()
	task, ok := persona.Builtin().Task("analyze")
	require.True(t, ok)
	return task
}

func TestBuildMessage_PromptPrefixDataSuffix(t *testing.T) {
	cases := []map[string]any{
		{"total_reps": 4},
		{"date": "2025-07-03", "sessions": []any{map[string]any{"time": "04:36 PM", "reps": 1}}},
		{"note": "<b>bench & rows</b>"},
		{"nested": map[string]any{"z": 1, "a": []any{true, nil, 2.5}}},
	}
	for _, data := range cases {
		msg, err := BuildMessage("Coach me.", "Current Workout Data", data)
		require.NoError(t, err)

		pretty, err := PrettyJSON(data)
		require.NoError(t, err)

		assert.True(t, strings.HasPrefix(msg, "Coach me."))
		assert.True(t, strings.HasSuffix(msg, pretty))
		assert.Equal(t, "Coach me.\n\nCurrent Workout Data:\n"+pretty, msg)
	}
}

func TestBuildMessage_Format(t *testing.T) {
	msg, err := BuildMessage("P", "Client Stats", map[string]any{"age": 62, "goal": "recomp"})
	require.NoError(t, err)
	assert.Equal(t, "P\n\nClient Stats:\n{\n  \"age\": 62,\n  \"goal\": \"recomp\"\n}", msg)

	msg, err = BuildMessage("P", "", map[string]any{"x": 1})
	require.NoError(t, err)
	assert.Contains(t, msg, "\n\nCurrent Workout Data:\n")

	msg, err = BuildMessage("P", "Label", nil)
	require.NoError(t, err)
	assert.Equal(t, "P", msg)

	msg, err = BuildMessage("P", "Label", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "P", msg)
}

func TestParseData(t *testing.T) {
	data, err := ParseData(`{"total_reps":4}`)
	require.NoError(t, err)
	pretty, err := PrettyJSON(data)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"total_reps\": 4\n}", pretty)

	data, err = ParseData("  {\"a\": {\"b\": [1, 2]}}\n")
	require.NoError(t, err)
	assert.Contains(t, data, "a")

	for _, bad := range []string{
		`{"total_reps":`, `[1,2]`, `{"a":1} trailing`, `"str"`,
		`{"a":1}}`, `{"a":1}]`, `{"a":1}{"b":2}`, `null`, "", "   ",
	} {
		_, err := ParseData(bad)
		var mi *MalformedInputError
		assert.True(t, errors.As(err, &mi), "expected MalformedInputError for %q, got %v", bad, err)
	}
}

func TestSubmit_NotIdempotent(t *testing.T) {
	remote := newFakeRemote("")
	sub := NewSubmitter(remote, discardLogger())
	task := analyzeTask(t)
	ctx := context.Background()

	contextID, err := remote.CreateContext(ctx)
	require.NoError(t, err)

	data := map[string]any{"total_reps": 4}
	first, err := sub.Submit(ctx, contextID, task.Persona, task.Prompt, task.DataLabel, data)
	require.NoError(t, err)
	second, err := sub.Submit(ctx, contextID, task.Persona, task.Prompt, task.DataLabel, data)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Len(t, remote.jobs, 2)
	msgs := remote.userMessages(contextID)
	require.Len(t, msgs, 2)
	assert.Equal(t, msgs[0], msgs[1])
	assert.Equal(t, contextID, first.ContextID)
	assert.Equal(t, StatusQueued, first.Status)
}

func TestSubmit_Errors(t *testing.T) {
	task := analyzeTask(t)

	remote := newFakeRemote("")
	remote.appendErr = &TransportError{Op: "create message", StatusCode: 400, Body: "bad"}
	_, err := NewSubmitter(remote, discardLogger()).Submit(context.Background(), "thread_x", task.Persona, task.Prompt, task.DataLabel, nil)
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Empty(t, remote.jobs)

	remote = newFakeRemote("")
	remote.createJobErr = errors.New("boom")
	_, err = NewSubmitter(remote, discardLogger()).Submit(context.Background(), "thread_x", task.Persona, task.Prompt, task.DataLabel, nil)
	assert.ErrorContains(t, err, "failed to create run")
}

func TestAwaitCompletion_TwoPolls(t *testing.T) {
	remote := newFakeRemote("", step{status: StatusInProgress}, step{status: StatusCompleted})
	p := NewPoller(remote, fastPoll(), discardLogger())

	job, err := p.AwaitCompletion(context.Background(), Job{ID: "run_1", ContextID: "thread_1", Status: StatusQueued})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, 2, remote.retrieveCalls)
}

func TestAwaitCompletion_AlreadyTerminal(t *testing.T) {
	remote := newFakeRemote("")
	p := NewPoller(remote, fastPoll(), discardLogger())

	for _, s := range []Status{StatusCompleted, StatusFailed, StatusExpired, Status("mystery")} {
		job, err := p.AwaitCompletion(context.Background(), Job{ID: "run_1", ContextID: "thread_1", Status: s})
		require.NoError(t, err)
		assert.Equal(t, s, job.Status)
	}
	assert.Zero(t, remote.retrieveCalls)
}

func TestAwaitCompletion_StopsOnUnknownStatus(t *testing.T) {
	remote := newFakeRemote("", step{status: StatusCancelling}, step{status: "requires_action"}, step{status: StatusCompleted})
	p := NewPoller(remote, fastPoll(), discardLogger())

	job, err := p.AwaitCompletion(context.Background(), Job{ID: "run_1", ContextID: "thread_1", Status: StatusQueued})
	require.NoError(t, err)
	assert.Equal(t, StatusRequiresAction, job.Status)
	assert.Equal(t, 2, remote.retrieveCalls)
}

func TestAwaitCompletion_RetriesTransientErrors(t *testing.T) {
	remote := newFakeRemote("",
		step{err: &TransportError{Op: "retrieve run", StatusCode: http.StatusServiceUnavailable, Body: "busy"}},
		step{err: &TransportError{Op: "retrieve run", Err: errors.New("connection reset")}},
		step{status: StatusInProgress},
		step{err: &TransportError{Op: "retrieve run", StatusCode: http.StatusTooManyRequests}},
		step{status: StatusCompleted},
	)
	opts := fastPoll()
	opts.MaxErrors = 2
	p := NewPoller(remote, opts, discardLogger())

	job, err := p.AwaitCompletion(context.Background(), Job{ID: "run_1", ContextID: "thread_1", Status: StatusQueued})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, 5, remote.retrieveCalls)
}

func TestAwaitCompletion_GivesUpAfterMaxErrors(t *testing.T) {
	transient := step{err: &TransportError{Op: "retrieve run", StatusCode: http.StatusBadGateway}}
	remote := newFakeRemote("", transient, transient, transient)
	opts := fastPoll()
	opts.MaxErrors = 2
	p := NewPoller(remote, opts, discardLogger())

	job, err := p.AwaitCompletion(context.Background(), Job{ID: "run_1", ContextID: "thread_1", Status: StatusQueued})
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusBadGateway, te.StatusCode)
	assert.Equal(t, StatusQueued, job.Status)
	assert.Equal(t, 3, remote.retrieveCalls)
}

func TestAwaitCompletion_PermanentErrorNotRetried(t *testing.T) {
	remote := newFakeRemote("", step{err: &TransportError{Op: "retrieve run", StatusCode: http.StatusUnauthorized, Body: "bad key"}})
	p := NewPoller(remote, fastPoll(), discardLogger())

	_, err := p.AwaitCompletion(context.Background(), Job{ID: "run_1", ContextID: "thread_1", Status: StatusQueued})
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.False(t, te.Transient())
	assert.Equal(t, 1, remote.retrieveCalls)
}

func TestAwaitCompletion_Timeout(t *testing.T) {
	remote := newFakeRemote("", step{status: StatusInProgress})
	p := NewPoller(remote, PollOptions{Interval: time.Millisecond, Timeout: 30 * time.Millisecond}, discardLogger())

	job, err := p.AwaitCompletion(context.Background(), Job{ID: "run_1", ContextID: "thread_1", Status: StatusQueued})
	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "run_1", te.JobID)
	assert.True(t, te.LastStatus.Pending())
	assert.True(t, job.Status.Pending())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAwaitCompletion_Cancelled(t *testing.T) {
	remote := newFakeRemote("", step{status: StatusInProgress})
	p := NewPoller(remote, PollOptions{Interval: 5 * time.Millisecond}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := p.AwaitCompletion(ctx, Job{ID: "run_1", ContextID: "thread_1", Status: StatusQueued})
	assert.ErrorIs(t, err, context.Canceled)
	var te *TimeoutError
	assert.False(t, errors.As(err, &te))
}

func TestExtract_ReturnsAssistantText(t *testing.T) {
	remote := newFakeRemote("")
	ctx := context.Background()
	contextID, _ := remote.CreateContext(ctx)
	_, _ = remote.AppendMessage(ctx, contextID, RoleUser, "How many sets?")
	_, _ = remote.AppendMessage(ctx, contextID, RoleAssistant, "Three sets of five.")

	text, err := NewExtractor(remote, discardLogger()).ExtractLatestAssistantText(ctx, Job{ID: "run_1", ContextID: contextID, Status: StatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, "Three sets of five.", text)
}

func TestExtract_NewestAssistantWins(t *testing.T) {
	remote := newFakeRemote("")
	ctx := context.Background()
	contextID, _ := remote.CreateContext(ctx)
	_, _ = remote.AppendMessage(ctx, contextID, RoleAssistant, "old advice")
	_, _ = remote.AppendMessage(ctx, contextID, RoleUser, "again")
	_, _ = remote.AppendMessage(ctx, contextID, RoleAssistant, "new advice")

	text, err := NewExtractor(remote, discardLogger()).ExtractLatestAssistantText(ctx, Job{ID: "run_1", ContextID: contextID, Status: StatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, "new advice", text)
}

func TestExtract_FailedJobSkipsListing(t *testing.T) {
	remote := newFakeRemote("")
	_, err := NewExtractor(remote, discardLogger()).ExtractLatestAssistantText(context.Background(), Job{ID: "run_1", ContextID: "thread_1", Status: StatusFailed})

	var jf *JobFailedError
	require.ErrorAs(t, err, &jf)
	assert.Equal(t, StatusFailed, jf.Status)
	assert.Contains(t, err.Error(), "failed")
	assert.Equal(t, "Assistant run failed with status: failed", err.Error())
	assert.Zero(t, remote.listCalls)
}

func TestExtract_NoAssistantMessage(t *testing.T) {
	remote := newFakeRemote("")
	ctx := context.Background()
	contextID, _ := remote.CreateContext(ctx)
	_, _ = remote.AppendMessage(ctx, contextID, RoleUser, "hello?")

	_, err := NewExtractor(remote, discardLogger()).ExtractLatestAssistantText(ctx, Job{ID: "run_1", ContextID: contextID, Status: StatusCompleted})
	assert.ErrorIs(t, err, ErrNoAssistantMessage)
}

func TestAsk_EndToEnd(t *testing.T) {
	remote := newFakeRemote("Do negatives twice a week.", step{status: StatusInProgress}, step{status: StatusCompleted})
	c := New(remote, Options{Poll: fastPoll(), Logger: discardLogger()})
	task := analyzeTask(t)

	res, err := c.Ask(context.Background(), task, map[string]any{"total_reps": 4})
	require.NoError(t, err)
	assert.Equal(t, "Do negatives twice a week.", res.Text)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.NotEmpty(t, res.ContextID)
	assert.NotEmpty(t, res.JobID)
	assert.False(t, res.FinishedAt.Before(res.StartedAt))

	msgs := remote.userMessages(res.ContextID)
	require.Len(t, msgs, 1)
	assert.Equal(t, res.Message, msgs[0])
	assert.True(t, strings.HasPrefix(msgs[0], task.Prompt))
	assert.True(t, strings.HasSuffix(msgs[0], "Current Workout Data:\n{\n  \"total_reps\": 4\n}"))

	require.Len(t, remote.personas, 1)
	assert.Equal(t, task.Persona, remote.personas[0])
	assert.Equal(t, 2, remote.retrieveCalls)
}

func TestAsk_JobFailed(t *testing.T) {
	remote := newFakeRemote("", step{status: StatusFailed})
	c := New(remote, Options{Poll: fastPoll(), Logger: discardLogger()})

	res, err := c.Ask(context.Background(), analyzeTask(t), nil)
	var jf *JobFailedError
	require.ErrorAs(t, err, &jf)
	assert.Equal(t, StatusFailed, res.Status)
	assert.NotEmpty(t, res.JobID)
	assert.Zero(t, remote.listCalls)
}

func TestAsk_ContextCreationFails(t *testing.T) {
	remote := newFakeRemote("")
	remote.createContextErr = &TransportError{Op: "create thread", StatusCode: http.StatusUnauthorized, Body: "invalid api key"}
	c := New(remote, Options{Poll: fastPoll(), Logger: discardLogger()})

	res, err := c.Ask(context.Background(), analyzeTask(t), nil)
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Empty(t, res.ContextID)
	assert.Empty(t, remote.jobs)
}

func TestComplete(t *testing.T) {
	completer := &fakeCompleter{reply: "Eat 160g protein."}
	c := New(newFakeRemote(""), Options{Poll: fastPoll(), Completer: completer, Logger: discardLogger()})
	task, _ := persona.Builtin().Task("nutrition")

	res, err := c.Complete(context.Background(), task, map[string]any{"age": 62})
	require.NoError(t, err)
	assert.Equal(t, "Eat 160g protein.", res.Text)
	assert.Equal(t, StatusCompleted, res.Status)
	require.Len(t, completer.prompts, 1)
	assert.True(t, strings.HasSuffix(completer.prompts[0], "Client Stats:\n{\n  \"age\": 62\n}"))

	_, err = New(newFakeRemote(""), Options{Poll: fastPoll(), Logger: discardLogger()}).Complete(context.Background(), task, nil)
	assert.Error(t, err)
}

func TestTransportError_Transient(t *testing.T) {
	cases := []struct {
		err  *TransportError
		want bool
	}{
		{&TransportError{StatusCode: 500}, true},
		{&TransportError{StatusCode: 503}, true},
		{&TransportError{StatusCode: 429}, true},
		{&TransportError{StatusCode: 400}, false},
		{&TransportError{StatusCode: 401}, false},
		{&TransportError{Err: errors.New("dial tcp: connection refused")}, true},
		{&TransportError{Err: context.Canceled}, false},
		{&TransportError{Err: context.DeadlineExceeded}, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.err.Transient(), "%+v", tc.err)
	}
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 2*time.Second, backoff(time.Second, 1))
	assert.Equal(t, 8*time.Second, backoff(time.Second, 3))
	assert.Equal(t, maxPollBackoff, backoff(time.Second, 10))
}
