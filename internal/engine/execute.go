package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/OdaNilseng/FLSworkflow/internal/action"
	"github.com/OdaNilseng/FLSworkflow/internal/query"
	"github.com/OdaNilseng/FLSworkflow/internal/storage"
	"github.com/OdaNilseng/FLSworkflow/pkg/api"
	"github.com/OdaNilseng/FLSworkflow/pkg/log"
	"github.com/OdaNilseng/FLSworkflow/pkg/util/call"
)

// execution carries one instance through its pipeline
type execution struct {
	ctx     context.Context
	run     *Run
	task    *task
	fn      action.Invocable
	call    *action.Call
	result  any
	outputs map[api.Name]any
	uploads *storage.Pending
	dir     string
}

var ErrCreateWorkDir = errors.New("failed to create working directory")

// perform executes a ready instance and records the outcome. An instance
// that has not started when ctx is cancelled is skipped instead. Running
// actions are not cancelled along with ctx
func (r *Run) perform(ctx context.Context, t *task) {
	r.mu.Lock()
	if t.state.Status == api.TaskSkipped {
		r.mu.Unlock()
		return
	}
	if err := ctx.Err(); err != nil {
		r.transition(t, api.TaskSkipped, err)
		r.mu.Unlock()
		r.persist(ctx)
		return
	}
	ok := r.transition(t, api.TaskRunning, nil)
	r.mu.Unlock()
	if !ok {
		return
	}

	ex := &execution{
		ctx:  context.WithoutCancel(ctx),
		run:  r,
		task: t,
	}
	err := ex.perform()

	r.mu.Lock()
	if err != nil {
		r.transition(t, api.TaskFailed, err)
	} else {
		t.state.Result = ex.result
		r.transition(t, api.TaskSucceeded, nil)
	}
	r.mu.Unlock()

	if err != nil {
		slog.Error("Task failed",
			log.RunID(r.id),
			log.TaskID(t.ID),
			log.Action(t.Action().Action),
			log.Error(err))
	}
	r.persist(ctx)
}

func (ex *execution) perform() error {
	defer ex.cleanup()
	return call.Perform(
		ex.resolveAction,
		ex.resolveArgs,
		ex.prepareWorkDir,
		ex.stageFiles,
		ex.invoke,
		ex.extractOutputs,
		ex.matchUploads,
		ex.commit,
	)
}

func (ex *execution) resolveAction() error {
	ref := ex.task.Action().Action
	fn, err := ex.run.engine.actions.Resolve(ref)
	if err != nil {
		if errors.Is(err, api.ErrActionExecution) {
			return err
		}
		return fmt.Errorf("%w: %s: %w", api.ErrActionExecution, ref, err)
	}
	ex.fn = fn
	return nil
}

func (ex *execution) resolveArgs() error {
	sc := scope{run: ex.run, pinned: ex.task.Pinned}
	args, err := query.ResolveList(ex.task.Args, sc, ex.task.Path)
	if err != nil {
		return err
	}
	kwargs, err := query.ResolveArgs(ex.task.Kwargs, sc, ex.task.Path)
	if err != nil {
		return err
	}

	ex.call = &action.Call{
		Args:   args,
		Kwargs: kwargs,
		Stdout: ex.run.engine.stdout,
	}

	ex.run.mu.Lock()
	ex.task.state.Args = args
	ex.task.state.Kwargs = kwargs
	ex.run.mu.Unlock()
	return nil
}

func (ex *execution) prepareWorkDir() error {
	name := api.SanitizeID(string(ex.task.Node.Name()))
	dir := filepath.Join(ex.run.workDir, strconv.Itoa(ex.task.seq)+"-"+name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %w", ErrCreateWorkDir, err)
	}
	ex.dir = dir
	ex.call.WorkDir = dir
	ex.call.Metadata = api.Metadata{
		api.MetaRunID:      string(ex.run.id),
		api.MetaInstanceID: string(ex.task.ID),
		api.MetaTaskName:   string(ex.task.Node.Name()),
		api.MetaPath:       ex.task.Path.String(),
		api.MetaWorkDir:    dir,
	}

	ex.run.mu.Lock()
	ex.task.state.WorkDir = dir
	ex.run.mu.Unlock()
	return nil
}

func (ex *execution) stageFiles() error {
	if len(ex.task.Download) == 0 {
		return nil
	}
	return ex.run.files.Stage(
		ex.ctx, ex.task.Download, ex.task.Path, ex.task.Pinned, ex.dir,
	)
}

func (ex *execution) invoke() error {
	res, err := ex.fn.Invoke(ex.ctx, ex.call)
	if err != nil {
		return fmt.Errorf("%w: %s: %w",
			api.ErrActionExecution, ex.task.Action().Action, err)
	}
	ex.result = res
	return nil
}

// extractOutputs computes either the whole result under the single output
// tag, or each extraction query's value under its own tag
func (ex *execution) extractOutputs() error {
	a := ex.task.Action()
	if a.OutputTo != "" {
		ex.outputs = map[api.Name]any{a.OutputTo: ex.result}
		return nil
	}
	ex.outputs = make(map[api.Name]any, len(a.OutputExtraction))
	for _, tag := range slices.Sorted(maps.Keys(a.OutputExtraction)) {
		v, err := query.Extract(a.OutputExtraction[tag], ex.result)
		if err != nil {
			return err
		}
		ex.outputs[tag] = v
	}
	return nil
}

func (ex *execution) matchUploads() error {
	upload := ex.task.Action().Upload
	if len(upload) == 0 {
		return nil
	}
	p, err := ex.run.files.Match(upload, ex.result, ex.task.Path, ex.dir)
	if err != nil {
		return err
	}
	ex.uploads = p
	return nil
}

// commit makes the instance's uploads and outputs visible together. A
// failing instance leaves neither behind
func (ex *execution) commit() error {
	files := ex.run.files
	if err := files.Commit(ex.ctx, ex.uploads); err != nil {
		return err
	}
	err := ex.run.outputs.PutAll(ex.task.Path, ex.outputs)
	if err == nil {
		return nil
	}
	if derr := files.Discard(ex.ctx, ex.uploads); derr != nil {
		slog.Warn("Failed to discard uploads",
			log.RunID(ex.run.id),
			log.TaskID(ex.task.ID),
			log.Error(derr))
	}
	return err
}

func (ex *execution) cleanup() {
	if ex.dir == "" || ex.run.engine.config.KeepWorkDirs {
		return
	}
	if err := os.RemoveAll(ex.dir); err != nil {
		slog.Warn("Failed to remove working directory",
			log.RunID(ex.run.id),
			log.TaskID(ex.task.ID),
			slog.String("dir", ex.dir),
			log.Error(err))
	}
}
