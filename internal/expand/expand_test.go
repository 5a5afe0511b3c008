package expand_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OdaNilseng/FLSworkflow/internal/expand"
	"github.com/OdaNilseng/FLSworkflow/internal/graph"
	"github.com/OdaNilseng/FLSworkflow/pkg/api"
)

type fileSource map[api.Name][]api.FileRef

func (f fileSource) Files(tag api.Name) ([]api.FileRef, error) {
	refs, ok := f[tag]
	if !ok {
		return nil, api.ErrStorageTagNotFound
	}
	return refs, nil
}

func task(name string, parents ...api.TaskDef) *api.ActionTask {
	return &api.ActionTask{
		Name:    api.Name(name),
		Action:  "builtins.print",
		Parents: parents,
	}
}

func mustExpand(
	t *testing.T, root api.TaskDef, inputs api.Args, files expand.FileSource,
) *expand.Plan {
	t.Helper()
	g, err := graph.Build(root)
	require.NoError(t, err)
	plan, err := expand.Expand(g, inputs, files)
	require.NoError(t, err)
	return plan
}

func expandErr(
	t *testing.T, root api.TaskDef, inputs api.Args, files expand.FileSource,
) error {
	t.Helper()
	g, err := graph.Build(root)
	require.NoError(t, err)
	_, err = expand.Expand(g, inputs, files)
	return err
}

func TestExpandPlainGroup(t *testing.T) {
	a := task("A")
	b := task("B", a)
	dag := &api.GroupDef{Name: "dag", TaskDefs: []api.TaskDef{b, a}}

	plan := mustExpand(t, dag, nil, nil)
	require.Equal(t, 2, plan.Len())

	insts := plan.Instances()
	assert.Equal(t, api.InstanceID("dag/B"), insts[0].ID)
	assert.Equal(t, api.InstanceID("dag/A"), insts[1].ID)

	bi, ok := plan.Instance("dag/B")
	require.True(t, ok)
	require.Len(t, bi.Parents, 1)
	assert.Equal(t, api.InstanceID("dag/A"), bi.Parents[0].ID)
	assert.Empty(t, bi.Path)
}

func TestExpandSingleTaskArgs(t *testing.T) {
	inner := &api.ActionTask{
		Name: "print", Action: "builtins.print", Args: []any{"orig"},
	}
	dup := &api.DuplicateDef{
		Name: "dup", TaskDef: inner, Args: []any{"A", "B", []any{1, 2}},
	}
	dag := &api.GroupDef{Name: "dag", TaskDefs: []api.TaskDef{dup}}

	plan := mustExpand(t, dag, nil, nil)
	insts := plan.ByDef("dag/dup/print")
	require.Len(t, insts, 3)

	assert.Equal(t, []any{"A"}, insts[0].Args)
	assert.Equal(t, []any{"B"}, insts[1].Args)
	assert.Equal(t, []any{1, 2}, insts[2].Args)
	assert.Equal(t, []any{"orig"}, inner.Args)

	for i, inst := range insts {
		assert.Equal(t, []int{i}, inst.Path.Indices())
		assert.Empty(t, inst.Parents)
	}
	assert.Equal(t, api.InstanceID("dag/dup/print[1]"), insts[1].ID)
}

func TestExpandGroupRelinking(t *testing.T) {
	e := task("E")
	a := task("A")
	b := task("B")
	c := task("C", a, b)
	sub := &api.GroupDef{Name: "sub", TaskDefs: []api.TaskDef{a, b, c}}
	dup := &api.DuplicateDef{
		Name: "dup", TaskDef: sub, Args: []any{1, 2, 3}, Parents: []api.TaskDef{e},
	}
	d := task("D", dup)
	dag := &api.GroupDef{Name: "dag", TaskDefs: []api.TaskDef{e, dup, d}}

	plan := mustExpand(t, dag, nil, nil)
	const n = 3

	as := plan.ByDef("dag/dup/sub/A")
	bs := plan.ByDef("dag/dup/sub/B")
	cs := plan.ByDef("dag/dup/sub/C")
	require.Len(t, as, n)
	require.Len(t, bs, n)
	require.Len(t, cs, n)
	assert.Equal(t, 2+3*n, plan.Len())

	di, _ := plan.Instance("dag/D")
	assert.ElementsMatch(t, cs, di.Parents)

	ei, _ := plan.Instance("dag/E")
	assert.ElementsMatch(t, append(append([]*expand.Instance{}, as...), bs...),
		ei.Children,
	)

	for i := range n {
		assert.ElementsMatch(t, []*expand.Instance{as[i], bs[i]}, cs[i].Parents)
		assert.Equal(t, []any{i + 1}, as[i].Args)
		assert.Equal(t, []any{i + 1}, bs[i].Args)
		assert.Nil(t, cs[i].Args)
	}
}

func TestExpandNestedFactors(t *testing.T) {
	leaf := task("leaf")
	inner := &api.DuplicateDef{Name: "inner", TaskDef: leaf, Args: []any{0, 1, 2}}
	outer := &api.DuplicateDef{Name: "outer", TaskDef: inner, Args: []any{"a", "b"}}

	plan := mustExpand(t, outer, nil, nil)
	insts := plan.ByDef("outer/inner/leaf")
	require.Len(t, insts, 6)

	var seen [][]int
	for _, inst := range insts {
		seen = append(seen, inst.Path.Indices())
		assert.Equal(t, []any{inst.Path[1].Index}, inst.Args)
		assert.Equal(t, api.DefID("outer"), inst.Path[0].Dup)
		assert.Equal(t, api.DefID("outer/inner"), inst.Path[1].Dup)
	}
	assert.Equal(t, [][]int{
		{0, 0}, {0, 1}, {0, 2}, {1, 0}, {1, 1}, {1, 2},
	}, seen)
}

func TestExpandInheritedFactor(t *testing.T) {
	leaf := task("task 1")
	dup1 := &api.DuplicateDef{Name: "dup 1", TaskDef: leaf}
	dup2 := &api.DuplicateDef{Name: "dup 2", TaskDef: dup1}
	dup3 := &api.DuplicateDef{
		Name: "dup 3", TaskDef: dup2, ArgsQuery: "<% $.inputs.args %>",
	}
	dag := &api.GroupDef{Name: "nested", TaskDefs: []api.TaskDef{dup3}}

	inputs := api.Args{
		"args": []any{
			[]any{
				[]any{[]any{2, 1, 1}, []any{1, 1, 2}, []any{1, 1, 3}},
				[]any{[]any{1, 4, 1}, []any{1, 2, 2}, []any{1, 2, 3}},
			},
			[]any{
				[]any{6, 7, 8},
				[]any{9, 10, 11},
			},
		},
	}

	plan := mustExpand(t, dag, inputs, nil)
	insts := plan.ByDef("nested/dup 3/dup 2/dup 1/task 1")
	require.Len(t, insts, 12)

	assert.Equal(t, []int{0, 0, 0}, insts[0].Path.Indices())
	assert.Equal(t, []any{2.0, 1.0, 1.0}, insts[0].Args)
	assert.Equal(t, []int{1, 0, 0}, insts[6].Path.Indices())
	assert.Equal(t, []any{6.0}, insts[6].Args)
	assert.Equal(t, []int{1, 1, 2}, insts[11].Path.Indices())
	assert.Equal(t, []any{11.0}, insts[11].Args)
}

func TestExpandInheritedFactorNotList(t *testing.T) {
	dup1 := &api.DuplicateDef{Name: "dup 1", TaskDef: task("t")}
	dup2 := &api.DuplicateDef{Name: "dup 2", TaskDef: dup1, Args: []any{1, 2}}

	err := expandErr(t, dup2, nil, nil)
	assert.ErrorIs(t, err, api.ErrInvalidFactor)
	assert.ErrorIs(t, err, api.ErrDuplication)
}

func TestExpandKwargs(t *testing.T) {
	inner := &api.ActionTask{
		Name:   "t",
		Action: "builtins.print",
		Args:   []any{"a", "few", "arguments"},
		Kwargs: api.Args{"sep": " -- ", "end": "\n"},
	}

	t.Run("query", func(t *testing.T) {
		dup := &api.DuplicateDef{
			Name: "dup", TaskDef: inner, KwargsQuery: "<% $.inputs.kwargs %>",
		}
		inputs := api.Args{"kwargs": []any{
			map[string]any{"end": "\n\n"},
			map[string]any{"end": "\n\n\n"},
		}}
		plan := mustExpand(t, dup, inputs, nil)
		insts := plan.Instances()
		require.Len(t, insts, 2)
		assert.Equal(t,
			api.Args{"sep": " -- ", "end": "\n\n"}, insts[0].Kwargs,
		)
		assert.Equal(t,
			api.Args{"sep": " -- ", "end": "\n\n\n"}, insts[1].Kwargs,
		)
		assert.Equal(t, []any{"a", "few", "arguments"}, insts[0].Args)
		assert.Equal(t, api.Args{"sep": " -- ", "end": "\n"}, inner.Kwargs)
	})

	t.Run("element_queries", func(t *testing.T) {
		dup := &api.DuplicateDef{
			Name: "dup", TaskDef: inner,
			Kwargs: []any{
				"<% $.inputs.kwargs[0] %>",
				api.Args{"sep": "+"},
			},
		}
		inputs := api.Args{"kwargs": []any{map[string]any{"end": "!"}}}
		plan := mustExpand(t, dup, inputs, nil)
		insts := plan.Instances()
		require.Len(t, insts, 2)
		assert.Equal(t, "!", insts[0].Kwargs["end"])
		assert.Equal(t, "+", insts[1].Kwargs["sep"])
		assert.Equal(t, "\n", insts[1].Kwargs["end"])
	})

	t.Run("not_mapping", func(t *testing.T) {
		dup := &api.DuplicateDef{
			Name: "dup", TaskDef: inner, Kwargs: []any{"nope"},
		}
		err := expandErr(t, dup, nil, nil)
		assert.ErrorIs(t, err, api.ErrInvalidFactor)
	})
}

func TestExpandDownload(t *testing.T) {
	t1 := &api.ActionTask{
		Name: "task 1", Action: "glob.glob", Args: []any{"*"},
		OutputTo: "downloaded_files",
	}
	t2 := task("task 2", t1)
	sub := &api.GroupDef{Name: "sub-dag", TaskDefs: []api.TaskDef{t1, t2}}
	dup := &api.DuplicateDef{Name: "duplicate", TaskDef: sub, Download: "input_files"}
	t3 := task("task 3", dup)
	dag := &api.GroupDef{Name: "dag", TaskDefs: []api.TaskDef{dup, t3}}

	files := fileSource{"input_files": {
		{Tag: "input_files", Name: "testfile_01.txt"},
		{Tag: "input_files", Name: "testfile_02.txt"},
		{Tag: "input_files", Name: "testfile_03.txt"},
	}}

	plan := mustExpand(t, dag, nil, files)
	t1s := plan.ByDef("dag/duplicate/sub-dag/task 1")
	require.Len(t, t1s, 3)
	for i, inst := range t1s {
		assert.Equal(t, []api.Name{"input_files"}, inst.Download)
		assert.Equal(t,
			files["input_files"][i], inst.Pinned["input_files"],
		)
	}
	for _, inst := range plan.ByDef("dag/duplicate/sub-dag/task 2") {
		assert.Empty(t, inst.Download)
		assert.Nil(t, inst.Pinned)
	}

	t3i, _ := plan.Instance("dag/task 3")
	assert.ElementsMatch(t, plan.ByDef("dag/duplicate/sub-dag/task 2"),
		t3i.Parents,
	)
}

func TestExpandCombinedSources(t *testing.T) {
	files := fileSource{"f": {{Name: "a"}, {Name: "b"}}}

	t.Run("agree", func(t *testing.T) {
		dup := &api.DuplicateDef{
			Name: "d", TaskDef: task("t"),
			Args: []any{1, 2}, Download: "f",
		}
		plan := mustExpand(t, dup, nil, files)
		insts := plan.Instances()
		require.Len(t, insts, 2)
		assert.Equal(t, []any{2}, insts[1].Args)
		assert.Equal(t, "b", insts[1].Pinned["f"].Name)
	})

	t.Run("mismatch", func(t *testing.T) {
		dup := &api.DuplicateDef{
			Name: "d", TaskDef: task("t"),
			Args: []any{1, 2, 3}, Download: "f",
		}
		err := expandErr(t, dup, nil, files)
		assert.ErrorIs(t, err, api.ErrFactorMismatch)
		assert.ErrorIs(t, err, api.ErrDuplication)
	})
}

func TestExpandErrors(t *testing.T) {
	t.Run("zero", func(t *testing.T) {
		dup := &api.DuplicateDef{Name: "d", TaskDef: task("t"), Args: []any{}}
		assert.ErrorIs(t, expandErr(t, dup, nil, nil), api.ErrZeroFactor)
	})

	t.Run("zero_query", func(t *testing.T) {
		dup := &api.DuplicateDef{
			Name: "d", TaskDef: task("t"), ArgsQuery: "<% $.inputs.l %>",
		}
		err := expandErr(t, dup, api.Args{"l": []any{}}, nil)
		assert.ErrorIs(t, err, api.ErrZeroFactor)
	})

	t.Run("missing", func(t *testing.T) {
		dup := &api.DuplicateDef{Name: "d", TaskDef: task("t")}
		assert.ErrorIs(t, expandErr(t, dup, nil, nil), api.ErrMissingFactor)
	})

	t.Run("query_not_list", func(t *testing.T) {
		dup := &api.DuplicateDef{
			Name: "d", TaskDef: task("t"), ArgsQuery: "<% $.inputs.x %>",
		}
		err := expandErr(t, dup, api.Args{"x": "scalar"}, nil)
		assert.ErrorIs(t, err, api.ErrInvalidFactor)
	})

	t.Run("query_unresolvable", func(t *testing.T) {
		dup := &api.DuplicateDef{
			Name: "d", TaskDef: task("t"), ArgsQuery: "<% $.outputs.x %>",
		}
		err := expandErr(t, dup, nil, nil)
		assert.ErrorIs(t, err, api.ErrInvalidFactor)
		assert.ErrorIs(t, err, api.ErrTagNotFound)
	})

	t.Run("download_missing_tag", func(t *testing.T) {
		dup := &api.DuplicateDef{Name: "d", TaskDef: task("t"), Download: "x"}
		err := expandErr(t, dup, nil, fileSource{})
		assert.ErrorIs(t, err, api.ErrInvalidFactor)
		assert.True(t, errors.Is(err, api.ErrStorageTagNotFound))
	})

	t.Run("download_without_source", func(t *testing.T) {
		dup := &api.DuplicateDef{Name: "d", TaskDef: task("t"), Download: "x"}
		err := expandErr(t, dup, nil, nil)
		assert.ErrorIs(t, err, api.ErrInvalidFactor)
	})
}

func TestCompare(t *testing.T) {
	leaf := task("leaf")
	dup := &api.DuplicateDef{Name: "d", TaskDef: leaf, Args: []any{1, 2}}
	other := task("other")
	dag := &api.GroupDef{Name: "g", TaskDefs: []api.TaskDef{other, dup}}

	plan := mustExpand(t, dag, nil, nil)
	insts := plan.Instances()
	require.Len(t, insts, 3)
	assert.Equal(t, -1, expand.Compare(insts[0], insts[1]))
	assert.Equal(t, -1, expand.Compare(insts[1], insts[2]))
	assert.Equal(t, 1, expand.Compare(insts[2], insts[1]))
	assert.Equal(t, "leaf", string(insts[2].Action().Name))
}
