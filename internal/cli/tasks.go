package cli

import (
	"context"
	"fmt"

	"FitCoach/internal/coach"
	"FitCoach/internal/config"
	"FitCoach/internal/persona"
	"FitCoach/internal/session"
	"FitCoach/internal/workout"

	"github.com/spf13/cobra"
)

func (a *app) taskCmd(name, short string, withLog bool) *cobra.Command {
	var fromLog bool
	cmd := &cobra.Command{
		Use:   name + " [jsonPayload]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTask(cmd.Context(), name, args, fromLog)
		},
	}
	if withLog {
		cmd.Flags().BoolVar(&fromLog, "from-log", false, "build workout data from the local pull-up log")
	}
	return cmd
}

// runTask sends one task to the coach and prints the reply. The task's
// defaults come first, then the summary taken from the log, then the payload.
func (a *app) runTask(ctx context.Context, name string, args []string, fromLog bool) error {
	task, ok := a.catalog.Task(name)
	if !ok {
		return &coach.UnknownCommandError{Name: name}
	}

	var logData, payload map[string]any
	if fromLog {
		db, err := a.store()
		if err != nil {
			return err
		}
		sum, err := workout.Summarize(ctx, db, a.opts.Now())
		if err != nil {
			return fmt.Errorf("failed to summarize pull-up log: %w", err)
		}
		logData = sum.Data()
	}
	if len(args) > 0 {
		var err error
		payload, err = coach.ParseData(args[0])
		if err != nil {
			return err
		}
	}
	data := task.Data(logData, payload)

	c, err := a.newCoach()
	if err != nil {
		return err
	}

	var res coach.Result
	if a.cfg.Mode == config.ModeChat {
		res, err = c.Complete(ctx, task, data)
	} else {
		res, err = c.Ask(ctx, task, data)
	}
	a.record(ctx, task, a.cfg.Mode, res, err)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.opts.Stdout, res.Text)
	return nil
}

// record saves the exchange to history. Failures are logged, never returned.
func (a *app) record(ctx context.Context, task persona.Task, backend string, res coach.Result, runErr error) {
	ctx = context.WithoutCancel(ctx)

	sess := session.New(task.Name, backend, task.Persona.Model)
	if !res.StartedAt.IsZero() {
		sess.StartTime = res.StartedAt
	}
	sess.EndTime = res.FinishedAt
	if sess.EndTime.IsZero() {
		sess.EndTime = a.opts.Now()
	}
	sess.ThreadID = res.ContextID
	sess.RunID = res.JobID
	sess.Status = string(res.Status)
	if res.Message != "" {
		sess.Append(string(coach.RoleUser), res.Message)
	}
	if res.Text != "" {
		sess.Append(string(coach.RoleAssistant), res.Text)
	}
	if runErr != nil {
		sess.Error = runErr.Error()
		if sess.Status == "" {
			sess.Status = "error"
		}
	}

	db, err := a.store()
	if err == nil {
		err = db.SaveSession(ctx, sess)
	}
	if err != nil {
		a.logger.Warn("failed to save session history", "session_id", sess.ID, "error", err)
		return
	}
	a.logger.Debug("session saved", "session_id", sess.ID, "status", sess.Status)
}
