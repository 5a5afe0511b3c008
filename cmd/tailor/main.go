package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/OdaNilseng/FLSworkflow/internal/definition"
	"github.com/OdaNilseng/FLSworkflow/internal/graph"
	"github.com/OdaNilseng/FLSworkflow/pkg/api"
	"github.com/OdaNilseng/FLSworkflow/pkg/log"
	"github.com/OdaNilseng/FLSworkflow/pkg/workflow"
)

type runFlags struct {
	mode         string
	project      string
	workDir      string
	workers      int
	keepWorkDirs bool
}

var ErrRunFailed = errors.New("run did not succeed")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           workflow.Name,
		Short:         "Run workflows of dependent, duplicable tasks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newRunCmd(),
		newValidateCmd(),
		newActionsCmd(),
		newVersionCmd(),
	)
	return root
}

func newRunCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Run a YAML workflow definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := workflow.LoadConfig()
			if err != nil {
				return report(cmd, "Invalid configuration", err)
			}
			f.apply(cmd, cfg)
			setupLogging(cmd, cfg)

			e, err := workflow.New(cfg, workflow.Deps{
				Stdout: cmd.OutOrStdout(),
			})
			if err != nil {
				return report(cmd, "Failed to create engine", err)
			}
			defer func() { _ = e.Close() }()

			ctx, stop := signal.NotifyContext(
				cmd.Context(), syscall.SIGINT, syscall.SIGTERM,
			)
			defer stop()

			run, err := e.RunFile(ctx, args[0])
			if err != nil {
				return report(cmd, "Failed to start run", err)
			}
			defer func() { _ = run.Close() }()

			fmt.Fprintln(cmd.ErrOrStderr(), run.String())
			for _, inst := range run.Failed() {
				fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %s\n", inst.ID, inst.Error)
			}
			if run.Status() != api.RunSucceeded {
				return fmt.Errorf("%w: %s", ErrRunFailed, run.ID())
			}
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.mode, "mode", "", "dispatch mode (serial or concurrent)")
	fl.StringVar(&f.project, "project", "", "default project for the run")
	fl.StringVar(&f.workDir, "work-dir", "", "root of instance working directories")
	fl.IntVar(&f.workers, "workers", 0, "concurrent worker count")
	fl.BoolVar(&f.keepWorkDirs, "keep-workdirs", false, "keep working directories")
	return cmd
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a YAML workflow definition without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, err := definition.LoadFile(args[0])
			if err != nil {
				return report(cmd, "Invalid definition", err)
			}
			g, err := graph.Build(wf.TaskDef)
			if err != nil {
				return report(cmd, "Invalid definition", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d definitions, %d actions\n",
				args[0], len(g.Nodes()), len(g.Actions()),
			)
			return nil
		},
	}
}

func newActionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "actions",
		Short: "List the registered action references",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := workflow.NewDefaultConfig()
			e, err := workflow.New(cfg, workflow.Deps{})
			if err != nil {
				return report(cmd, "Failed to create engine", err)
			}
			defer func() { _ = e.Close() }()
			for _, ref := range e.Actions() {
				fmt.Fprintln(cmd.OutOrStdout(), ref)
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n",
				workflow.Name, workflow.Version,
			)
		},
	}
}

func (f *runFlags) apply(cmd *cobra.Command, cfg *workflow.Config) {
	fl := cmd.Flags()
	if fl.Changed("mode") {
		cfg.Mode = api.Mode(f.mode)
	}
	if fl.Changed("project") {
		cfg.Project = f.project
	}
	if fl.Changed("work-dir") {
		cfg.WorkDir = f.workDir
	}
	if fl.Changed("workers") {
		cfg.Workers = f.workers
	}
	if fl.Changed("keep-workdirs") {
		cfg.KeepWorkDirs = f.keepWorkDirs
	}
}

func setupLogging(cmd *cobra.Command, cfg *workflow.Config) {
	level := log.ParseLevel(cfg.LogLevel)
	env := os.Getenv("ENV")
	logger := log.NewWithWriter(
		cmd.ErrOrStderr(), workflow.Name, env, workflow.Version, level,
	)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level)

	slog.Debug("Configuration loaded",
		slog.String("mode", string(cfg.Mode)),
		slog.Int("workers", cfg.Workers),
		slog.String("work_dir", cfg.WorkDir),
		slog.String("project", cfg.Project),
		slog.String("redis_addr", cfg.Redis.Addr))
}

func report(cmd *cobra.Command, msg string, err error) error {
	fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", msg, err)
	return err
}
