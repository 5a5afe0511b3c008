package query_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OdaNilseng/FLSworkflow/internal/query"
	"github.com/OdaNilseng/FLSworkflow/pkg/api"
)

type testContext struct {
	inputs  api.Args
	outputs *query.Store[any]
	storage *query.Store[[]string]
}

func newTestContext(inputs api.Args) *testContext {
	return &testContext{
		inputs:  inputs,
		outputs: query.NewStore[any](api.ErrOutputConflict),
		storage: query.NewStore[[]string](api.ErrTagConflict),
	}
}

func (c *testContext) Inputs() api.Args {
	return c.inputs
}

func (c *testContext) Output(tag api.Name, at api.Path) (any, error) {
	return c.outputs.Scoped(tag, at, identity, api.ErrTagNotFound)
}

func (c *testContext) Storage(tag api.Name, at api.Path) (any, error) {
	return c.storage.Scoped(tag, at, func(v []string) any {
		res := make([]any, len(v))
		for i, s := range v {
			res[i] = s
		}
		return res
	}, api.ErrTagNotFound)
}

func TestResolveLiterals(t *testing.T) {
	ctx := newTestContext(nil)
	for _, v := range []any{"plain", 42, 1.5, true, nil} {
		res, err := query.Resolve(v, ctx, root)
		require.NoError(t, err)
		assert.Equal(t, v, res)
	}
}

func TestResolveInputs(t *testing.T) {
	ctx := newTestContext(api.Args{
		"name":  "world",
		"count": 3,
		"files": []any{"a.txt", "b.txt"},
		"nested": map[string]any{
			"deep": map[string]any{"value": "found"},
		},
	})

	t.Run("raw_single", func(t *testing.T) {
		res, err := query.Resolve("<% $.inputs.count %>", ctx, root)
		require.NoError(t, err)
		assert.Equal(t, float64(3), res)
	})

	t.Run("raw_list", func(t *testing.T) {
		res, err := query.Resolve("<% $.inputs.files %>", ctx, root)
		require.NoError(t, err)
		assert.Equal(t, []any{"a.txt", "b.txt"}, res)
	})

	t.Run("index", func(t *testing.T) {
		res, err := query.Resolve("<% $.inputs.files[1] %>", ctx, root)
		require.NoError(t, err)
		assert.Equal(t, "b.txt", res)
	})

	t.Run("nested", func(t *testing.T) {
		res, err := query.Resolve(
			"<% $.inputs.nested.deep.value %>", ctx, root,
		)
		require.NoError(t, err)
		assert.Equal(t, "found", res)
	})

	t.Run("interpolated", func(t *testing.T) {
		res, err := query.Resolve(
			"hello <% $.inputs.name %> x<% $.inputs.count %>", ctx, root,
		)
		require.NoError(t, err)
		assert.Equal(t, "hello world x3", res)
	})

	t.Run("list_and_map", func(t *testing.T) {
		res, err := query.Resolve(
			[]any{"<% $.inputs.name %>", map[string]any{
				"n": "<% $.inputs.count %>",
			}}, ctx, root,
		)
		require.NoError(t, err)
		assert.Equal(t,
			[]any{"world", map[string]any{"n": float64(3)}}, res,
		)
	})

	t.Run("whole_inputs", func(t *testing.T) {
		res, err := query.Resolve("<% $.inputs %>", ctx, root)
		require.NoError(t, err)
		assert.Equal(t, "world", res.(map[string]any)["name"])
	})
}

func TestResolveErrors(t *testing.T) {
	ctx := newTestContext(api.Args{"s": "str", "l": []any{1}})

	for _, src := range []string{
		"<% $ %>",
		"<% $[0] %>",
		"<% $.other %>",
		"<% $.outputs %>",
		"<% $.inputs.missing %>",
		"<% $.inputs.s.x %>",
		"<% $.inputs.l[4] %>",
	} {
		t.Run(src, func(t *testing.T) {
			_, err := query.Resolve(src, ctx, root)
			assert.ErrorIs(t, err, api.ErrBadPath)
			assert.ErrorIs(t, err, api.ErrQueryResolution)
		})
	}

	_, err := query.Resolve("<% $.outputs.nope %>", ctx, root)
	assert.ErrorIs(t, err, api.ErrTagNotFound)

	_, err = query.Resolve("<% $.inputs.[ %>", ctx, root)
	assert.ErrorIs(t, err, api.ErrQuerySyntax)
}

func TestResolveOutputsScoped(t *testing.T) {
	ctx := newTestContext(nil)
	require.NoError(t, ctx.outputs.Put("single", root, map[string]any{
		"curdir": "/tmp/x",
	}))
	for i := range 3 {
		require.NoError(t,
			ctx.outputs.Put("fan", root.Extend("dup", i), i+1),
		)
	}

	res, err := query.Resolve("<% $.outputs.single.curdir %>", ctx, root)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x", res)

	res, err = query.Resolve("<% $.outputs.fan %>", ctx, root)
	require.NoError(t, err)
	assert.Equal(t, map[int]any{0: 1, 1: 2, 2: 3}, res)

	res, err = query.Resolve("<% $.outputs.fan[2] %>", ctx, root)
	require.NoError(t, err)
	assert.Equal(t, float64(3), res)

	res, err = query.Resolve(
		"<% $.outputs.fan %>", ctx, root.Extend("dup", 1),
	)
	require.NoError(t, err)
	assert.Equal(t, 2, res)

	res, err = query.Resolve(
		"v=<% $.outputs.fan %>", ctx, root,
	)
	require.NoError(t, err)
	assert.Equal(t, `v={"0":1,"1":2,"2":3}`, res)
}

func TestResolveStorage(t *testing.T) {
	ctx := newTestContext(nil)
	require.NoError(t, ctx.storage.Put("files", root, []string{"a", "b"}))

	res, err := query.Resolve("<% $.storage.files %>", ctx, root)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, res)

	res, err = query.Resolve("<% $.storage.files[0] %>", ctx, root)
	require.NoError(t, err)
	assert.Equal(t, "a", res)
}

func TestResolveArgsAndList(t *testing.T) {
	ctx := newTestContext(api.Args{"x": "X"})

	args, err := query.ResolveArgs(api.Args{
		"a": "<% $.inputs.x %>", "b": 2,
	}, ctx, root)
	require.NoError(t, err)
	assert.Equal(t, api.Args{"a": "X", "b": 2}, args)

	list, err := query.ResolveList([]any{"<% $.inputs.x %>", 1}, ctx, root)
	require.NoError(t, err)
	assert.Equal(t, []any{"X", 1}, list)

	args, err = query.ResolveArgs(nil, ctx, root)
	assert.NoError(t, err)
	assert.Nil(t, args)

	_, err = query.ResolveList([]any{"<% $.inputs.y %>"}, ctx, root)
	assert.ErrorIs(t, err, api.ErrBadPath)
}

func TestExtract(t *testing.T) {
	result := map[string]any{
		"dir":   "/work",
		"files": []any{"a.txt", "b.txt"},
	}

	res, err := query.Extract("<% $ %>", "/cwd")
	require.NoError(t, err)
	assert.Equal(t, "/cwd", res)

	res, err = query.Extract("<% $.dir %>", result)
	require.NoError(t, err)
	assert.Equal(t, "/work", res)

	res, err = query.Extract([]string{"<% $.files[0] %>", "*.log"}, result)
	require.NoError(t, err)
	assert.Equal(t, []any{"a.txt", "*.log"}, res)

	_, err = query.Extract("<% $.nothing %>", result)
	assert.ErrorIs(t, err, api.ErrBadPath)
}
