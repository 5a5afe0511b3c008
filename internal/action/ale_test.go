package action_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OdaNilseng/FLSworkflow/internal/action"
	"github.com/OdaNilseng/FLSworkflow/pkg/api"
)

func TestAleCompile(t *testing.T) {
	env := action.NewAleEnv()

	comp, err := env.Compile("(+ a b)")
	assert.NoError(t, err)
	assert.NotNil(t, comp)

	again, err := env.Compile("(+ a b)")
	assert.NoError(t, err)
	assert.Same(t, comp, again)

	_, err = env.Compile("  ")
	assert.ErrorIs(t, err, action.ErrAleCompile)
}

func TestAleInvoke(t *testing.T) {
	env := action.NewAleEnv()

	tests := []struct {
		name     string
		script   string
		call     *action.Call
		expected any
	}{
		{
			name:   "object result",
			script: "{:result (+ a b)}",
			call: &action.Call{
				Kwargs: api.Args{"a": 5, "b": 10},
			},
			expected: map[string]any{"result": 15},
		},
		{
			name:     "predicate",
			script:   "(> x 10)",
			call:     &action.Call{Kwargs: api.Args{"x": 15}},
			expected: true,
		},
		{
			name:     "positional",
			script:   "args",
			call:     &action.Call{Args: []any{"first", 2}},
			expected: []any{"first", 2},
		},
		{
			name:     "vector",
			script:   "[a a]",
			call:     &action.Call{Kwargs: api.Args{"a": 1.5}},
			expected: []any{1.5, 1.5},
		},
		{
			name:     "null",
			script:   "x",
			call:     &action.Call{Kwargs: api.Args{"x": nil}},
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			comp, err := env.Compile(tt.script)
			require.NoError(t, err)
			res, err := comp.Invoke(context.Background(), tt.call)
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, res)
		})
	}
}

func TestAleInvokeErrors(t *testing.T) {
	env := action.NewAleEnv()

	comp, err := env.Compile("(+ a missing)")
	require.NoError(t, err)
	_, err = comp.Invoke(context.Background(), &action.Call{
		Kwargs: api.Args{"a": 1},
	})
	assert.Error(t, err)

	comp, err = env.Compile("(+ a")
	require.NoError(t, err)
	_, err = comp.Invoke(context.Background(), &action.Call{
		Kwargs: api.Args{"a": 1},
	})
	assert.ErrorIs(t, err, action.ErrAleCompile)
}

func TestAleRegistryPrefix(t *testing.T) {
	reg := action.NewRegistry(time.Second)

	fn, err := reg.Resolve("ale:(* n 2)")
	require.NoError(t, err)
	assert.IsType(t, &action.AleAction{}, fn)

	res, err := fn.Invoke(context.Background(), &action.Call{
		Kwargs: api.Args{"n": 21},
	})
	assert.NoError(t, err)
	assert.Equal(t, 42, res)
}
