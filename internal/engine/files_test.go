package engine_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OdaNilseng/FLSworkflow/internal/assert/helpers"
	"github.com/OdaNilseng/FLSworkflow/pkg/api"
)

func writeInputs(t *testing.T, files map[string]string) []string {
	t.Helper()
	dir := t.TempDir()
	var res []string
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		content, ok := files[name]
		if !ok {
			continue
		}
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		res = append(res, path)
	}
	return res
}

func TestSeedAndDownload(t *testing.T) {
	env := helpers.NewTestEngine(t)

	read := &api.ActionTask{
		Name:     "read",
		Action:   helpers.RefRead,
		Args:     []any{"<% $.storage.inputs %>"},
		Download: []api.Name{"inputs"},
		OutputTo: "contents",
	}
	wf := helpers.NewWorkflow(helpers.Group("wf", read), nil)
	wf.Files = map[api.Name][]string{
		"inputs": writeInputs(t, map[string]string{
			"a.txt": "alpha", "b.txt": "beta",
		}),
	}
	run := env.Run(t, wf)

	require.Equal(t, api.RunSucceeded, run.Status())
	assert.Equal(t, []any{"alpha", "beta"}, run.Outputs()["contents"])
	assert.Len(t, run.FileList(), 2)
}

func TestUploadAndConsume(t *testing.T) {
	env := helpers.NewTestEngine(t)

	byGlob := &api.ActionTask{
		Name:   "by-glob",
		Action: helpers.RefWrite,
		Args:   []any{"out.txt", "data"},
		Upload: map[api.Name][]string{"results": {"*.txt"}},
	}
	byQuery := &api.ActionTask{
		Name:   "by-query",
		Action: helpers.RefWrite,
		Args:   []any{"report.csv", "1,2"},
		Upload: map[api.Name][]string{"reports": {"<% $ %>"}},
	}
	consume := &api.ActionTask{
		Name:     "consume",
		Action:   helpers.RefRead,
		Args:     []any{"<% $.storage.results %>", "<% $.storage.reports %>"},
		Download: []api.Name{"results", "reports"},
		OutputTo: "read",
		Parents:  []api.TaskDef{byGlob, byQuery},
	}
	run := env.Run(t, helpers.NewWorkflow(
		helpers.Group("wf", byGlob, byQuery, consume), nil,
	))

	require.Equal(t, api.RunSucceeded, run.Status())
	assert.Equal(t, []any{"data", "1,2"}, run.Outputs()["read"])

	files := run.FileList()
	require.Len(t, files, 2)
	byTag := map[api.Name]api.FileRef{}
	for _, f := range files {
		byTag[f.Tag] = f
	}
	assert.Equal(t, "out.txt", byTag["results"].Name)
	assert.Equal(t, "report.csv", byTag["reports"].Name)

	data, err := run.ReadFile(context.Background(), byTag["results"])
	assert.NoError(t, err)
	assert.Equal(t, "data", string(data))
}

func TestDownloadDuplicationPinsFiles(t *testing.T) {
	env := helpers.NewTestEngine(t)

	read := &api.ActionTask{
		Name:     "read",
		Action:   helpers.RefRead,
		Args:     []any{"<% $.storage.inputs %>"},
		OutputTo: "contents",
	}
	dup := &api.DuplicateDef{
		Name: "per-file", TaskDef: read, Download: "inputs",
	}
	wf := helpers.NewWorkflow(helpers.Group("wf", dup), nil)
	wf.Files = map[api.Name][]string{
		"inputs": writeInputs(t, map[string]string{
			"a.txt": "alpha", "b.txt": "beta", "c.txt": "gamma",
		}),
	}
	run := env.Run(t, wf)

	require.Equal(t, api.RunSucceeded, run.Status())
	assert.Equal(t, map[int]any{
		0: []any{"alpha"},
		1: []any{"beta"},
		2: []any{"gamma"},
	}, run.Outputs()["contents"])
}

func TestDuplicateUploads(t *testing.T) {
	write := &api.ActionTask{
		Name:   "write",
		Action: helpers.RefWrite,
		Upload: map[api.Name][]string{"parts": {"*.txt"}},
	}

	t.Run("distinct names", func(t *testing.T) {
		env := helpers.NewTestEngine(t)
		dup := &api.DuplicateDef{
			Name:    "dup",
			TaskDef: write,
			Args:    []any{[]any{"f0.txt", "zero"}, []any{"f1.txt", "one"}},
		}
		merge := &api.ActionTask{
			Name:     "merge",
			Action:   helpers.RefRead,
			Args:     []any{"f0.txt", "f1.txt"},
			Download: []api.Name{"parts"},
			OutputTo: "merged",
			Parents:  []api.TaskDef{dup},
		}
		run := env.Run(t, helpers.NewWorkflow(
			helpers.Group("wf", dup, merge), nil,
		))

		require.Equal(t, api.RunSucceeded, run.Status())
		assert.Equal(t, []any{"zero", "one"}, run.Outputs()["merged"])

		var paths []string
		for _, f := range run.FileList() {
			paths = append(paths, f.Path.String()+f.Name)
		}
		assert.ElementsMatch(t, []string{"[0]f0.txt", "[1]f1.txt"}, paths)
	})

	t.Run("name conflict", func(t *testing.T) {
		env := helpers.NewTestEngine(t)
		dup := &api.DuplicateDef{
			Name:    "dup",
			TaskDef: write,
			Args:    []any{[]any{"same.txt", "a"}, []any{"same.txt", "b"}},
		}
		merge := &api.ActionTask{
			Name:     "merge",
			Action:   helpers.RefEcho,
			Download: []api.Name{"parts"},
			Parents:  []api.TaskDef{dup},
		}
		run := env.Run(t, helpers.NewWorkflow(
			helpers.Group("wf", dup, merge), nil,
		))

		assert.Equal(t, api.RunFailed, run.Status())
		failed := run.Failed()
		require.Len(t, failed, 1)
		assert.Equal(t, api.InstanceID("wf/merge"), failed[0].ID)
		assert.Contains(t, failed[0].Error, api.ErrNameConflict.Error())
	})
}
