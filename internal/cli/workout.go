package cli

import (
	"fmt"
	"strconv"

	"FitCoach/internal/coach"
	"FitCoach/internal/config"
	"FitCoach/internal/persona"
	"FitCoach/internal/workout"

	"github.com/spf13/cobra"
)

func (a *app) logCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "log <reps>",
		Short: "Record a set of pull-ups",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reps, err := strconv.Atoi(args[0])
			if err != nil || reps <= 0 {
				return fmt.Errorf("reps must be a positive integer, got %q", args[0])
			}
			db, err := a.store()
			if err != nil {
				return err
			}
			l, err := db.AddPullupLog(cmd.Context(), reps, a.opts.Now())
			if err != nil {
				return err
			}
			a.logger.Info("pull-up set logged", "id", l.ID, "reps", l.Reps)
			fmt.Fprintf(a.opts.Stdout, "Logged %d reps at %s\n", l.Reps, l.Timestamp.Format("15:04"))
			return nil
		},
	}
}

func (a *app) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show today's and this week's totals and the personal record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.store()
			if err != nil {
				return err
			}
			sum, err := workout.Summarize(cmd.Context(), db, a.opts.Now())
			if err != nil {
				return err
			}
			out, err := coach.PrettyJSON(sum.Data())
			if err != nil {
				return err
			}
			fmt.Fprintln(a.opts.Stdout, out)
			return nil
		},
	}
}

func (a *app) exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Print the pull-up log as a plain-text progress report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.store()
			if err != nil {
				return err
			}
			logs, err := db.PullupLogs(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(a.opts.Stdout, workout.ExportText(logs, a.opts.Now()))
			return nil
		},
	}
}

// sendCmd reviews the export with the pull-up coach in one chat completion,
// whatever --mode says.
func (a *app) sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send",
		Short: "Send the pull-up log export to the coach for feedback",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, ok := a.catalog.Persona(persona.PullupCoach)
			if !ok {
				return fmt.Errorf("persona %s is not configured", persona.PullupCoach)
			}

			db, err := a.store()
			if err != nil {
				return err
			}
			logs, err := db.PullupLogs(ctx)
			if err != nil {
				return err
			}

			c, err := a.newCoach()
			if err != nil {
				return err
			}
			task := persona.Task{
				Name:    "send",
				Persona: p,
				Prompt:  workout.ExportText(logs, a.opts.Now()),
			}
			res, err := c.Complete(ctx, task, nil)
			a.record(ctx, task, config.ModeChat, res, err)
			if err != nil {
				return err
			}

			a.logger.Info("pull-up export sent", "logs", len(logs), "response_len", len(res.Text))
			fmt.Fprintln(a.opts.Stdout, res.Text)
			return nil
		},
	}
}

func (a *app) historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent coaching sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.store()
			if err != nil {
				return err
			}
			sessions, err := db.ListSessions(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Fprintln(a.opts.Stdout, "No saved sessions found.")
				return nil
			}
			for _, s := range sessions {
				line := fmt.Sprintf("%s  %s  %-10s %-10s %s",
					s.ID, s.StartTime.Local().Format("2006-01-02 15:04"), s.Function, s.Backend, s.Status)
				if s.Error != "" {
					line += "  " + s.Error
				}
				fmt.Fprintln(a.opts.Stdout, line)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of sessions to show")
	return cmd
}
