package helpers

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/OdaNilseng/FLSworkflow/internal/action"
	"github.com/OdaNilseng/FLSworkflow/internal/config"
	"github.com/OdaNilseng/FLSworkflow/internal/engine"
	"github.com/OdaNilseng/FLSworkflow/internal/persist"
	"github.com/OdaNilseng/FLSworkflow/pkg/api"
)

type (
	// TestEngineEnv holds all the components needed for engine testing
	TestEngineEnv struct {
		Engine   *engine.Engine
		Config   *config.Config
		Actions  *action.Registry
		Projects *config.Projects
		Sink     *persist.RedisSink
		Redis    *miniredis.Miniredis
		Recorder *Recorder
		Stdout   *Buffer
	}

	// Buffer is a bytes.Buffer safe for concurrent use
	Buffer struct {
		buf bytes.Buffer
		mu  sync.Mutex
	}
)

const (
	TestProject = "test"
	TestPrefix  = "test-runs"
)

// NewTestConfig creates a default configuration with debug logging enabled
// and a private working directory
func NewTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.LogLevel = "debug"
	cfg.WorkDir = t.TempDir()
	cfg.Project = TestProject
	return cfg
}

// NewTestEngine creates a fully configured test engine environment with an
// in-memory Redis sink, an in-memory project bucket and the recording test
// actions registered
func NewTestEngine(t *testing.T) *TestEngineEnv {
	t.Helper()
	return NewTestEngineWithConfig(t, NewTestConfig(t))
}

// NewTestEngineWithConfig is NewTestEngine with a caller-supplied
// configuration
func NewTestEngineWithConfig(
	t *testing.T, cfg *config.Config,
) *TestEngineEnv {
	t.Helper()

	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	client := persist.NewRedisClient(config.RedisConfig{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sink, err := persist.NewRedisSink(client, TestPrefix, 0)
	require.NoError(t, err)

	projects, err := cfg.Projects()
	require.NoError(t, err)

	rec := NewRecorder()
	actions := action.NewRegistry(cfg.HTTPTimeout)
	rec.RegisterAll(actions)

	stdout := &Buffer{}
	eng, err := engine.New(cfg, engine.Deps{
		Actions:  actions,
		Projects: projects,
		Sink:     sink,
		Stdout:   stdout,
	})
	require.NoError(t, err)

	return &TestEngineEnv{
		Engine:   eng,
		Config:   cfg,
		Actions:  actions,
		Projects: projects,
		Sink:     sink,
		Redis:    server,
		Recorder: rec,
		Stdout:   stdout,
	}
}

// NewWorkflow wraps a definition tree in a workflow for the test project
func NewWorkflow(def api.TaskDef, inputs api.Args) *api.Workflow {
	return &api.Workflow{
		Name:        "test-workflow",
		ProjectName: TestProject,
		TaskDef:     def,
		Inputs:      inputs,
	}
}

// Run executes the workflow and closes the run when the test ends
func (e *TestEngineEnv) Run(t *testing.T, wf *api.Workflow) *engine.Run {
	t.Helper()
	run, err := e.Engine.Run(context.Background(), wf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = run.Close() })
	return run
}

// Persisted loads the last snapshot the sink received for a run
func (e *TestEngineEnv) Persisted(
	t *testing.T, id api.RunID,
) *api.RunSnapshot {
	t.Helper()
	snap, err := e.Sink.Load(context.Background(), id)
	require.NoError(t, err)
	return snap
}

func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Task creates an action task with the given parents
func Task(name, ref string, parents ...api.TaskDef) *api.ActionTask {
	return &api.ActionTask{
		Name:    api.Name(name),
		Action:  ref,
		Parents: parents,
	}
}

// Group creates a group definition
func Group(name string, defs ...api.TaskDef) *api.GroupDef {
	return &api.GroupDef{Name: api.Name(name), TaskDefs: defs}
}

