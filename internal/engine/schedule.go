package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/OdaNilseng/FLSworkflow/pkg/api"
	"github.com/OdaNilseng/FLSworkflow/pkg/log"
)

func (r *Run) execute(ctx context.Context) {
	r.setRunStatus(api.RunRunning)
	r.persist(ctx)

	switch r.mode {
	case api.ModeConcurrent:
		r.runConcurrent(ctx)
	default:
		r.runSerial(ctx)
	}

	r.finish(ctx)
}

// runSerial executes one instance at a time, always picking the first ready
// instance in plan order
func (r *Run) runSerial(ctx context.Context) {
	for {
		r.promote(ctx)
		if err := ctx.Err(); err != nil {
			r.skipRemaining(ctx, err)
			return
		}
		t := r.nextReady()
		if t == nil {
			return
		}
		r.perform(ctx, t)
	}
}

// runConcurrent dispatches every ready instance to a bounded worker pool
// and re-evaluates the remaining instances as each one completes
func (r *Run) runConcurrent(ctx context.Context) {
	var g errgroup.Group
	g.SetLimit(r.engine.config.Workers)

	done := make(chan *task, len(r.tasks))
	running := 0
	for {
		ready := r.promote(ctx)
		if err := ctx.Err(); err != nil {
			r.skipRemaining(ctx, err)
			ready = nil
		}
		for _, t := range ready {
			running++
			g.Go(func() error {
				r.perform(ctx, t)
				done <- t
				return nil
			})
		}
		if running == 0 {
			break
		}
		<-done
		running--
	}
	_ = g.Wait()
}

// promote moves every pending instance whose parents are all terminal to
// ready, or to skipped when any parent did not succeed. Skips cascade
// within a single call. The instances made ready are returned in plan order
func (r *Run) promote(ctx context.Context) []*task {
	var ready []*task
	skipped := false

	r.mu.Lock()
	for changed := true; changed; {
		changed = false
		for _, t := range r.tasks {
			if t.state.Status != api.TaskPending {
				continue
			}
			blocked, cause := r.parentsState(t)
			switch {
			case blocked:
				continue
			case cause != nil:
				r.transition(t, api.TaskSkipped, cause)
				skipped = true
			default:
				r.transition(t, api.TaskReady, nil)
				ready = append(ready, t)
			}
			changed = true
		}
	}
	r.mu.Unlock()

	if skipped {
		r.persist(ctx)
	}
	return ready
}

// parentsState reports whether any parent is still unfinished and, once
// all are finished, the first parent that did not succeed
func (r *Run) parentsState(t *task) (bool, error) {
	var cause error
	for _, p := range t.Parents {
		pt := r.byID[p.ID]
		switch pt.state.Status {
		case api.TaskSucceeded:
		case api.TaskFailed, api.TaskSkipped:
			if cause == nil {
				cause = fmt.Errorf("parent %s %s", pt.ID, pt.state.Status)
			}
		default:
			return true, nil
		}
	}
	return false, cause
}

func (r *Run) nextReady() *task {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.tasks {
		if t.state.Status == api.TaskReady {
			return t
		}
	}
	return nil
}

// skipRemaining skips every instance that has not been dispatched
func (r *Run) skipRemaining(ctx context.Context, cause error) {
	r.mu.Lock()
	n := 0
	for _, t := range r.tasks {
		switch t.state.Status {
		case api.TaskPending, api.TaskReady:
			r.transition(t, api.TaskSkipped, cause)
			n++
		}
	}
	r.mu.Unlock()

	if n > 0 {
		slog.Warn("Run cancelled",
			log.RunID(r.id),
			slog.Int("skipped", n),
			log.Error(cause))
		r.persist(ctx)
	}
}

// transition moves t to a new status. The run lock must be held
func (r *Run) transition(t *task, to api.TaskStatus, cause error) bool {
	from := t.state.Status
	if !taskTransitions.CanTransition(from, to) {
		slog.Error("Invalid task transition",
			log.RunID(r.id),
			log.TaskID(t.ID),
			slog.String("from", string(from)),
			slog.String("to", string(to)))
		return false
	}

	t.state.Status = to
	now := time.Now()
	switch to {
	case api.TaskRunning:
		t.state.StartedAt = now
	case api.TaskSucceeded, api.TaskFailed, api.TaskSkipped:
		t.state.CompletedAt = now
	}
	if cause != nil {
		t.state.Error = cause.Error()
	}

	slog.Debug("Task transition",
		log.RunID(r.id),
		log.TaskID(t.ID),
		log.Path(t.Path),
		log.Status(to))
	return true
}

func (r *Run) setRunStatus(to api.RunStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !runTransitions.CanTransition(r.status, to) {
		return
	}
	r.status = to
	if runTransitions.IsTerminal(to) {
		r.completedAt = time.Now()
	}
}

func (r *Run) finish(ctx context.Context) {
	status := api.RunSucceeded
	r.mu.RLock()
	for _, t := range r.tasks {
		if t.state.Status != api.TaskSucceeded {
			status = api.RunFailed
			break
		}
	}
	r.mu.RUnlock()

	r.setRunStatus(status)
	if !r.engine.config.KeepWorkDirs {
		if err := os.RemoveAll(r.workDir); err != nil {
			slog.Warn("Failed to remove run directory",
				log.RunID(r.id),
				slog.String("dir", r.workDir),
				log.Error(err))
		}
	}
	r.persist(ctx)
}

// persist hands a snapshot to the sink. Sink failures never affect the run
func (r *Run) persist(ctx context.Context) {
	snap := r.Snapshot()
	if err := r.engine.sink.Persist(context.WithoutCancel(ctx), snap); err != nil {
		slog.Warn("Failed to persist run snapshot",
			log.RunID(r.id),
			log.Error(err))
	}
}
