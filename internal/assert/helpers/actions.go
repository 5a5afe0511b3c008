package helpers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/OdaNilseng/FLSworkflow/internal/action"
	"github.com/OdaNilseng/FLSworkflow/pkg/api"
)

type (
	// Recorder registers test actions that remember every call made to
	// them
	Recorder struct {
		calls map[string][]*action.Call
		order []string
		mu    sync.Mutex
	}

	// Handler is the behavior of a recorded test action
	Handler func(c *action.Call) (any, error)
)

const (
	RefEcho   = "test.echo"
	RefFail   = "test.fail"
	RefSum    = "test.sum"
	RefWrite  = "test.write"
	RefKwargs = "test.kwargs"
	RefRead   = "test.read"
)

var ErrTestFailure = errors.New("test action failed")

// NewRecorder creates an empty Recorder
func NewRecorder() *Recorder {
	return &Recorder{calls: map[string][]*action.Call{}}
}

// RegisterAll registers the standard test actions
func (r *Recorder) RegisterAll(reg *action.Registry) {
	r.Register(reg, RefEcho, echo)
	r.Register(reg, RefFail, fail)
	r.Register(reg, RefSum, sum)
	r.Register(reg, RefWrite, write)
	r.Register(reg, RefKwargs, kwargs)
	r.Register(reg, RefRead, read)
}

// Register binds ref to a recorded action
func (r *Recorder) Register(reg *action.Registry, ref string, h Handler) {
	reg.Register(ref, action.Func(
		func(_ context.Context, c *action.Call) (any, error) {
			r.record(ref, c)
			return h(c)
		},
	))
}

// Calls returns the calls made to ref, in invocation order
func (r *Recorder) Calls(ref string) []*action.Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls[ref])
}

// Count returns how many times ref was invoked
func (r *Recorder) Count(ref string) int {
	return len(r.Calls(ref))
}

// Order returns the instance IDs of every recorded call, in invocation
// order
func (r *Recorder) Order() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.order)
}

func (r *Recorder) record(ref string, c *action.Call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[ref] = append(r.calls[ref], c)
	id, _ := api.GetMetaString[string](c.Metadata, api.MetaInstanceID)
	r.order = append(r.order, id)
}

func echo(c *action.Call) (any, error) {
	v, _ := c.Arg(0)
	return v, nil
}

func fail(c *action.Call) (any, error) {
	if v, ok := c.Arg(0); ok {
		return nil, fmt.Errorf("%w: %v", ErrTestFailure, v)
	}
	return nil, ErrTestFailure
}

func sum(c *action.Call) (any, error) {
	var total float64
	for _, arg := range c.Args {
		switch v := arg.(type) {
		case int:
			total += float64(v)
		case float64:
			total += v
		default:
			return nil, fmt.Errorf("%w: cannot add %T", ErrTestFailure, v)
		}
	}
	return total, nil
}

func write(c *action.Call) (any, error) {
	name, _ := c.Arg(0)
	content, _ := c.Arg(1)
	file := fmt.Sprint(name)
	err := os.WriteFile(c.Path(file), []byte(fmt.Sprint(content)), 0o644)
	if err != nil {
		return nil, err
	}
	return file, nil
}

func kwargs(c *action.Call) (any, error) {
	return c.Kwargs.Plain(), nil
}

// read returns the content of every file named by its arguments, which may
// be names or lists of names
func read(c *action.Call) (any, error) {
	var res []any
	for _, arg := range c.Args {
		names, ok := arg.([]any)
		if !ok {
			names = []any{arg}
		}
		for _, n := range names {
			data, err := os.ReadFile(c.Path(fmt.Sprint(n)))
			if err != nil {
				return nil, err
			}
			res = append(res, string(data))
		}
	}
	return res, nil
}
