package assert

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OdaNilseng/FLSworkflow/internal/config"
	"github.com/OdaNilseng/FLSworkflow/pkg/api"
)

// Wrapper wraps testify assertions with engine-specific helpers
type Wrapper struct {
	*testing.T
	*assert.Assertions
	Require *require.Assertions
}

// New creates a new test assertion wrapper with both assert and require from
// testify plus engine-specific helpers
func New(t *testing.T) *Wrapper {
	return &Wrapper{
		T:          t,
		Assertions: assert.New(t),
		Require:    require.New(t),
	}
}

// ConfigValid asserts that a configuration is valid
func (w *Wrapper) ConfigValid(cfg *config.Config) {
	w.Helper()
	w.NoError(cfg.Validate())
	w.True(cfg.Workers > 0)
	w.NotEmpty(cfg.WorkDir)
}

// ConfigInvalid asserts that a configuration is invalid
func (w *Wrapper) ConfigInvalid(cfg *config.Config, contains string) {
	w.Helper()
	err := cfg.Validate()
	w.Error(err)
	if err != nil && contains != "" {
		w.Contains(err.Error(), contains)
	}
}

// RunStatus asserts the status of a run
func (w *Wrapper) RunStatus(snap *api.RunSnapshot, expected api.RunStatus) {
	w.Helper()
	w.Equal(expected, snap.Status)
}

// InstanceStatus asserts the status of one instance of a run
func (w *Wrapper) InstanceStatus(
	snap *api.RunSnapshot, id api.InstanceID, expected api.TaskStatus,
) {
	w.Helper()
	inst, ok := snap.Instance(id)
	if !w.True(ok, "run should have instance: %s", id) {
		return
	}
	w.Equal(expected, inst.Status, "instance %s", id)
}

// InstancesInStatus asserts exactly which instances of a run are in the
// given status
func (w *Wrapper) InstancesInStatus(
	snap *api.RunSnapshot, status api.TaskStatus, ids ...api.InstanceID,
) {
	w.Helper()
	var got []api.InstanceID
	for _, inst := range snap.ByStatus(status) {
		got = append(got, inst.ID)
	}
	slices.Sort(got)
	want := slices.Clone(ids)
	slices.Sort(want)
	w.Equal(want, got, "instances %s", status)
}
