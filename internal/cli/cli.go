// Package cli implements the fitcoach command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"FitCoach/internal/coach"
	"FitCoach/internal/config"
	"FitCoach/internal/history"
	"FitCoach/internal/openai"
	"FitCoach/internal/persona"
	"FitCoach/internal/telemetry"

	"github.com/spf13/cobra"
)

const usage = "Usage: fitcoach <function> [jsonPayload]"

var errUsage = errors.New("missing function")

// Options carries the process environment. Zero values mean the real one.
type Options struct {
	Stdout io.Writer
	Stderr io.Writer
	Getenv func(string) string

	// Remote and Completer replace the OpenAI client when set.
	Remote    coach.Remote
	Completer coach.Completer

	// Logger skips log file and telemetry setup when set.
	Logger *slog.Logger
	Now    func() time.Time
}

type app struct {
	opts    Options
	cfg     config.Config
	logger  *slog.Logger
	catalog *persona.Catalog
	db      *history.Store
	closers []func()
}

// Execute runs the command line in args and returns the process exit code.
func Execute(ctx context.Context, args []string, opts Options) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	a := &app{opts: opts}
	if opts.Getenv != nil {
		a.cfg = config.FromLookup(opts.Getenv)
	} else {
		cfg, err := config.FromEnv()
		if err != nil {
			return a.report(err)
		}
		a.cfg = cfg
	}

	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(opts.Stdout)
	root.SetErr(opts.Stderr)

	err := root.ExecuteContext(ctx)
	a.close()
	return a.report(err)
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "fitcoach <function> [jsonPayload]",
		Short: "Hypertrophy and nutrition coaching from your workout data",
		Long: `fitcoach sends workout data to an AI coaching persona and prints its advice.

Functions:
  analyze     Evaluate workout data and suggest program changes
  nutrition   Nutrition and recovery advice from client stats

Extra functions can be defined with --personas.`,
		Args:              cobra.ArbitraryArgs,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return errUsage
			}
			if len(args) > 2 {
				return fmt.Errorf("too many arguments for %s", args[0])
			}
			return a.runTask(cmd.Context(), args[0], args[1:], false)
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	f := root.PersistentFlags()
	f.StringVar(&a.cfg.Mode, "mode", a.cfg.Mode, "remote protocol: assistants or chat")
	f.StringVar(&a.cfg.Model, "model", a.cfg.Model, "model for every persona (default: per persona)")
	f.DurationVar(&a.cfg.PollInterval, "poll-interval", a.cfg.PollInterval, "delay between run status checks")
	f.DurationVar(&a.cfg.PollTimeout, "poll-timeout", a.cfg.PollTimeout, "give up on a run after this long (0 waits forever)")
	f.StringVar(&a.cfg.DBPath, "db", a.cfg.DBPath, "sqlite history database")
	f.StringVar(&a.cfg.PersonasFile, "personas", a.cfg.PersonasFile, "YAML file with persona and task overrides")
	f.BoolVar(&a.cfg.Debug, "debug", a.cfg.Debug, "debug logging")

	root.AddCommand(
		a.taskCmd("analyze", "Evaluate workout data and suggest program changes", true),
		a.taskCmd("nutrition", "Nutrition and recovery advice from client stats", false),
		a.logCmd(),
		a.statsCmd(),
		a.exportCmd(),
		a.sendCmd(),
		a.historyCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	if a.opts.Logger != nil {
		a.logger = a.opts.Logger
	} else {
		logger, closer, err := telemetry.InitLogger(a.cfg.LogDir, a.cfg.Debug)
		if err != nil {
			return err
		}
		a.logger = logger
		a.closers = append(a.closers, func() {
			if err := closer.Close(); err != nil {
				fmt.Fprintf(a.opts.Stderr, "failed to close log file: %v\n", err)
			}
		})

		cleanup, err := telemetry.InitTelemetry(cmd.Context(), a.cfg.LogDir)
		if err != nil {
			logger.Warn("telemetry disabled", "error", err)
		} else {
			a.closers = append(a.closers, cleanup)
		}
	}

	catalog := persona.Builtin()
	if a.cfg.PersonasFile != "" {
		var err error
		catalog, err = persona.LoadFile(catalog, a.cfg.PersonasFile)
		if err != nil {
			return err
		}
	}
	a.catalog = catalog.WithModel(a.cfg.Model)

	a.logger.Debug("configuration loaded",
		"mode", a.cfg.Mode,
		"base_url", a.cfg.BaseURL,
		"db", a.cfg.DBPath,
		"tasks", a.catalog.TaskNames(),
	)
	return nil
}

// store opens the history database on first use.
func (a *app) store() (*history.Store, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := history.Open(a.cfg.DBPath)
	if err != nil {
		return nil, err
	}
	a.db = db
	a.closers = append(a.closers, func() {
		if err := db.Close(); err != nil {
			a.logger.Warn("failed to close history database", "error", err)
		}
	})
	return db, nil
}

func (a *app) newCoach() (*coach.Coach, error) {
	remote, completer := a.opts.Remote, a.opts.Completer
	if remote == nil {
		client, err := openai.NewClient(openai.Config{
			APIKey:  a.cfg.APIKey,
			BaseURL: a.cfg.BaseURL,
			Logger:  a.logger,
		})
		if err != nil {
			return nil, err
		}
		remote, completer = client, client
	}

	return coach.New(remote, coach.Options{
		Poll: coach.PollOptions{
			Interval:  a.cfg.PollInterval,
			Timeout:   a.cfg.PollTimeout,
			MaxErrors: a.cfg.MaxPollErrors,
		},
		Completer: completer,
		Logger:    a.logger,
	}), nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *app) report(err error) int {
	if err == nil {
		return 0
	}

	var unknown *coach.UnknownCommandError
	switch {
	case errors.Is(err, errUsage):
		fmt.Fprintln(a.opts.Stderr, usage)
		fmt.Fprintf(a.opts.Stderr, "Functions: %s\n", strings.Join(a.taskNames(), ", "))
	case errors.As(err, &unknown):
		fmt.Fprintln(a.opts.Stderr, unknown.Error())
	default:
		fmt.Fprintf(a.opts.Stderr, "Error: %v\n", err)
	}
	return 1
}

func (a *app) taskNames() []string {
	if a.catalog != nil {
		return a.catalog.TaskNames()
	}
	return persona.Builtin().TaskNames()
}
