package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/OdaNilseng/FLSworkflow/internal/action"
	"github.com/OdaNilseng/FLSworkflow/internal/config"
	"github.com/OdaNilseng/FLSworkflow/internal/expand"
	"github.com/OdaNilseng/FLSworkflow/internal/graph"
	"github.com/OdaNilseng/FLSworkflow/internal/persist"
	"github.com/OdaNilseng/FLSworkflow/internal/storage"
	"github.com/OdaNilseng/FLSworkflow/pkg/api"
	"github.com/OdaNilseng/FLSworkflow/pkg/log"
)

type (
	// Engine is the workflow execution engine
	Engine struct {
		config   *config.Config
		actions  ActionResolver
		projects ProjectResolver
		sink     Sink
		stdout   io.Writer
	}

	// Deps are the collaborators an Engine relies on. Sink and Stdout are
	// optional
	Deps struct {
		Actions  ActionResolver
		Projects ProjectResolver
		Sink     Sink
		Stdout   io.Writer
	}

	// ActionResolver resolves the action reference of a task
	ActionResolver interface {
		Resolve(ref string) (action.Invocable, error)
	}

	// ProjectResolver resolves a project name to its storage configuration
	ProjectResolver interface {
		Resolve(name string) (api.ProjectConfig, error)
	}

	// Sink receives run snapshots as a run progresses
	Sink interface {
		Persist(ctx context.Context, snap *api.RunSnapshot) error
	}
)

var (
	ErrActionsRequired  = errors.New("action resolver is required")
	ErrProjectsRequired = errors.New("project resolver is required")
	ErrOpenBucket       = errors.New("failed to open project bucket")
)

// New creates an Engine from a validated configuration and its
// collaborators
func New(cfg *config.Config, deps Deps) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Actions == nil {
		return nil, ErrActionsRequired
	}
	if deps.Projects == nil {
		return nil, ErrProjectsRequired
	}

	sink := deps.Sink
	if sink == nil {
		sink = persist.NopSink{}
	}
	stdout := deps.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	return &Engine{
		config:   cfg,
		actions:  deps.Actions,
		projects: deps.Projects,
		sink:     sink,
		stdout:   action.SyncWriter(stdout),
	}, nil
}

// Run executes a workflow to completion. Errors in the workflow itself,
// its definition tree or its duplication factors are returned before any
// instance executes. Failures of individual instances are recorded on the
// returned Run, which must be closed once its files are no longer needed.
// A workflow that names no project runs in the configured default project
func (e *Engine) Run(ctx context.Context, wf *api.Workflow) (*Run, error) {
	if err := wf.Validate(); err != nil {
		return nil, err
	}

	name := wf.ProjectName
	if name == "" {
		name = e.config.Project
	}
	if name == "" {
		return nil, api.ErrProjectRequired
	}
	project, err := e.projects.Resolve(name)
	if err != nil {
		return nil, err
	}

	g, err := graph.Build(wf.TaskDef)
	if err != nil {
		return nil, err
	}

	id := api.RunID(uuid.NewString())
	bucket, err := storage.OpenBucket(ctx, project.BucketURL, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrOpenBucket, project.Name, err)
	}

	files := storage.NewManager(bucket, id)
	if err := files.Seed(ctx, wf.Files); err != nil {
		_ = bucket.Close()
		return nil, err
	}

	plan, err := expand.Expand(g, wf.Inputs, files)
	if err != nil {
		_ = bucket.Close()
		return nil, err
	}

	r := newRun(e, id, wf, project, plan, files, bucket)
	slog.Info("Run started",
		log.RunID(id),
		log.Workflow(wf.Name),
		slog.String("project", project.Name),
		slog.String("mode", string(r.mode)),
		slog.Int("instances", plan.Len()))

	r.execute(ctx)

	slog.Info("Run finished",
		log.RunID(id),
		log.Workflow(wf.Name),
		log.Status(r.Status()))
	return r, nil
}

func (e *Engine) mode(wf *api.Workflow) api.Mode {
	if wf.Mode != "" {
		return wf.Mode
	}
	return e.config.Mode.Resolve()
}
