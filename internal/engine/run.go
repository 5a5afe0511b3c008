package engine

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/OdaNilseng/FLSworkflow/internal/expand"
	"github.com/OdaNilseng/FLSworkflow/internal/query"
	"github.com/OdaNilseng/FLSworkflow/internal/storage"
	"github.com/OdaNilseng/FLSworkflow/pkg/api"
	"github.com/OdaNilseng/FLSworkflow/pkg/log"
)

type (
	// Run is a single execution of a workflow, along with everything it
	// produced
	Run struct {
		createdAt   time.Time
		completedAt time.Time
		engine      *Engine
		workflow    *api.Workflow
		plan        *expand.Plan
		files       *storage.Manager
		bucket      *storage.Bucket
		outputs     *query.Store[any]
		byID        map[api.InstanceID]*task
		project     api.ProjectConfig
		id          api.RunID
		mode        api.Mode
		status      api.RunStatus
		workDir     string
		tasks       []*task
		mu          sync.RWMutex
	}

	// task pairs an expanded instance with its execution state
	task struct {
		*expand.Instance
		state api.InstanceState
		seq   int
	}

	// scope exposes the run's inputs, outputs and storage to query
	// resolution. Pinned files replace the visible set of their tag
	scope struct {
		run    *Run
		pinned map[api.Name]api.FileRef
	}
)

var _ query.Context = scope{}

func newRun(
	e *Engine, id api.RunID, wf *api.Workflow, project api.ProjectConfig,
	plan *expand.Plan, files *storage.Manager, bucket *storage.Bucket,
) *Run {
	r := &Run{
		createdAt: time.Now(),
		engine:    e,
		workflow:  wf,
		plan:      plan,
		files:     files,
		bucket:    bucket,
		outputs:   query.NewStore[any](api.ErrOutputConflict),
		byID:      map[api.InstanceID]*task{},
		project:   project,
		id:        id,
		mode:      e.mode(wf),
		status:    api.RunPending,
		workDir:   filepath.Join(e.config.WorkDir, string(id)),
	}

	for i, inst := range plan.Instances() {
		t := &task{
			Instance: inst,
			seq:      i,
			state: api.InstanceState{
				ID:     inst.ID,
				DefID:  inst.Node.ID,
				Name:   inst.Node.Name(),
				Action: inst.Action().Action,
				Status: api.TaskPending,
				Path:   inst.Path,
			},
		}
		for _, p := range inst.Parents {
			t.state.Parents = append(t.state.Parents, p.ID)
		}
		r.tasks = append(r.tasks, t)
		r.byID[inst.ID] = t
	}
	return r
}

// ID returns the run's unique identifier
func (r *Run) ID() api.RunID {
	return r.id
}

// Workflow returns the name of the workflow being run
func (r *Run) Workflow() api.Name {
	return r.workflow.Name
}

// Mode returns the dispatch mode the run executed with
func (r *Run) Mode() api.Mode {
	return r.mode
}

// Status returns the run's current status
func (r *Run) Status() api.RunStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// Inputs returns a copy of the run's inputs
func (r *Run) Inputs() api.Args {
	return maps.Clone(r.workflow.Inputs)
}

// Outputs resolves every output tag from the root scope. Tags produced
// inside duplications appear as index-keyed mappings. Tags that cannot be
// resolved from the root are left out
func (r *Run) Outputs() api.Args {
	res := api.Args{}
	for _, tag := range r.outputs.Tags() {
		v, err := r.Output(tag)
		if err != nil {
			slog.Debug("Output not visible from root",
				log.RunID(r.id),
				log.Tag(tag),
				log.Error(err))
			continue
		}
		res[tag] = v
	}
	return res
}

// Output resolves a single output tag from the root scope
func (r *Run) Output(tag api.Name) (any, error) {
	return scope{run: r}.Output(tag, nil)
}

// FileList returns every file stored during the run
func (r *Run) FileList() []api.FileRef {
	return r.files.FileList()
}

// ReadFile returns the content of a stored file
func (r *Run) ReadFile(ctx context.Context, ref api.FileRef) ([]byte, error) {
	return r.files.Read(ctx, ref)
}

// Instances returns the state of every instance, in plan order
func (r *Run) Instances() []*api.InstanceState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]*api.InstanceState, len(r.tasks))
	for i, t := range r.tasks {
		res[i] = t.snapshot()
	}
	return res
}

// Instance returns the state of one instance
func (r *Run) Instance(id api.InstanceID) (*api.InstanceState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return t.snapshot(), true
}

// Failed returns the instances that failed
func (r *Run) Failed() []*api.InstanceState {
	return r.byStatus(api.TaskFailed)
}

// Skipped returns the instances that were never executed because an
// ancestor did not succeed or the run was cancelled
func (r *Run) Skipped() []*api.InstanceState {
	return r.byStatus(api.TaskSkipped)
}

// Snapshot returns a point-in-time view of the run
func (r *Run) Snapshot() *api.RunSnapshot {
	snap := &api.RunSnapshot{
		Inputs:   r.Inputs(),
		Outputs:  r.Outputs(),
		ID:       r.id,
		Workflow: r.workflow.Name,
		Project:  r.project.Name,
		Mode:     r.mode,
		Files:    r.FileList(),
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	snap.CreatedAt = r.createdAt
	snap.CompletedAt = r.completedAt
	snap.Status = r.status
	snap.Instances = make([]*api.InstanceState, len(r.tasks))
	for i, t := range r.tasks {
		snap.Instances[i] = t.snapshot()
	}
	return snap
}

// Close releases the run's file storage
func (r *Run) Close() error {
	return r.bucket.Close()
}

func (r *Run) String() string {
	counts := map[api.TaskStatus]int{}
	r.mu.RLock()
	for _, t := range r.tasks {
		counts[t.state.Status]++
	}
	status := r.status
	r.mu.RUnlock()

	var sb strings.Builder
	fmt.Fprintf(&sb, "Run %s of %s: %s, %d instances",
		r.id, r.workflow.Name, status, len(r.tasks))
	for _, s := range []api.TaskStatus{
		api.TaskSucceeded, api.TaskFailed, api.TaskSkipped,
	} {
		if n := counts[s]; n > 0 {
			fmt.Fprintf(&sb, ", %d %s", n, s)
		}
	}
	return sb.String()
}

func (r *Run) byStatus(status api.TaskStatus) []*api.InstanceState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var res []*api.InstanceState
	for _, t := range r.tasks {
		if t.state.Status == status {
			res = append(res, t.snapshot())
		}
	}
	return res
}

func (t *task) snapshot() *api.InstanceState {
	res := t.state
	return &res
}

func (s scope) Inputs() api.Args {
	return s.run.workflow.Inputs
}

func (s scope) Output(tag api.Name, at api.Path) (any, error) {
	return s.run.outputs.Scoped(tag, at, identity, api.ErrTagNotFound)
}

func (s scope) Storage(tag api.Name, at api.Path) (any, error) {
	if ref, ok := s.pinned[tag]; ok {
		return []any{ref.Name}, nil
	}
	return s.run.files.Scoped(tag, at)
}

func identity(v any) any {
	return v
}
