// Package workflow wires the run engine to its default collaborators: the
// action registry with its built-in, Lua, Ale and HTTP actions, the
// configured projects, and a Redis run sink when one is configured
package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/OdaNilseng/FLSworkflow/internal/action"
	"github.com/OdaNilseng/FLSworkflow/internal/config"
	"github.com/OdaNilseng/FLSworkflow/internal/definition"
	"github.com/OdaNilseng/FLSworkflow/internal/engine"
	"github.com/OdaNilseng/FLSworkflow/internal/persist"
	"github.com/OdaNilseng/FLSworkflow/pkg/api"
	"github.com/OdaNilseng/FLSworkflow/pkg/log"
)

type (
	// Engine executes workflows using the default collaborators
	Engine struct {
		*engine.Engine
		actions *action.Registry
		client  *redis.Client
		archive *persist.ArchiveSink
	}

	// Deps overrides parts of the default wiring. Actions are registered
	// in addition to the built-ins
	Deps struct {
		Stdout  io.Writer
		Sink    Sink
		Actions map[string]Action
	}

	Run    = engine.Run
	Config = config.Config
	Sink   = engine.Sink
	Action = action.Invocable
	Call   = action.Call
	Func   = action.Func
)

const (
	Name    = "tailor"
	Version = "0.1.0"
)

var ErrCreateSink = errors.New("failed to create run sink")

// NewDefaultConfig returns the default configuration
func NewDefaultConfig() *Config {
	return config.NewDefaultConfig()
}

// LoadConfig returns the default configuration overlaid by the environment
func LoadConfig() (*Config, error) {
	cfg := config.NewDefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// New creates an Engine for cfg. When deps supplies no sink, run snapshots
// go to Redis if cfg names an address, and finished runs are archived to
// cfg.ArchiveURL if set
func New(cfg *Config, deps Deps) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	projects, err := cfg.Projects()
	if err != nil {
		return nil, err
	}

	actions := action.NewRegistry(cfg.HTTPTimeout)
	for ref, a := range deps.Actions {
		actions.Register(ref, a)
	}

	e := &Engine{actions: actions}

	sink := deps.Sink
	if sink == nil {
		if sink, err = e.defaultSink(cfg); err != nil {
			e.release()
			return nil, err
		}
	}

	e.Engine, err = engine.New(cfg, engine.Deps{
		Actions:  actions,
		Projects: projects,
		Sink:     sink,
		Stdout:   deps.Stdout,
	})
	if err != nil {
		e.release()
		return nil, err
	}
	return e, nil
}

// Register binds an action reference for every later run
func (e *Engine) Register(ref string, a Action) {
	e.actions.Register(ref, a)
}

// Actions returns every registered action reference
func (e *Engine) Actions() []string {
	return e.actions.Refs()
}

// RunFile loads a YAML workflow definition from path and runs it
func (e *Engine) RunFile(ctx context.Context, path string) (*Run, error) {
	wf, err := definition.LoadFile(path)
	if err != nil {
		return nil, err
	}
	if wf.Name == "" {
		wf.Name = api.Name(path)
	}
	return e.Run(ctx, wf)
}

// Close releases the engine's Redis connection and run archive, if any
func (e *Engine) Close() error {
	return e.release()
}

func (e *Engine) defaultSink(cfg *Config) (Sink, error) {
	var sinks persist.MultiSink
	if cfg.Redis.Addr != "" {
		e.client = persist.NewRedisClient(cfg.Redis)
		rs, err := persist.NewRedisSink(
			e.client, cfg.Redis.Prefix, cfg.Redis.TTL,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCreateSink, err)
		}
		sinks = append(sinks, rs)
		slog.Info("Persisting runs to Redis",
			slog.String("redis_addr", cfg.Redis.Addr),
			slog.Int("redis_db", cfg.Redis.DB))
	}
	if cfg.ArchiveURL != "" {
		as, err := persist.OpenArchiveSink(
			context.Background(), cfg.ArchiveURL, persist.DefaultArchivePrefix,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCreateSink, err)
		}
		e.archive = as
		sinks = append(sinks, as)
		slog.Info("Archiving finished runs",
			slog.String("archive_url", cfg.ArchiveURL))
	}

	switch len(sinks) {
	case 0:
		return nil, nil
	case 1:
		return sinks[0], nil
	default:
		return sinks, nil
	}
}

func (e *Engine) release() error {
	var errs []error
	if e.client != nil {
		errs = append(errs, e.client.Close())
		e.client = nil
	}
	if e.archive != nil {
		errs = append(errs, e.archive.Close())
		e.archive = nil
	}
	err := errors.Join(errs...)
	if err != nil {
		slog.Warn("Failed to release engine resources", log.Error(err))
	}
	return err
}
