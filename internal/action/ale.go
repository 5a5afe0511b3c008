package action

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/kode4food/ale"
	"github.com/kode4food/ale/core/bootstrap"
	"github.com/kode4food/ale/data"
	"github.com/kode4food/ale/env"
	"github.com/kode4food/ale/eval"
	"github.com/kode4food/lru"

	"github.com/OdaNilseng/FLSworkflow/pkg/api"
)

type (
	// AleEnv compiles and runs Ale actions against one bootstrapped
	// environment
	AleEnv struct {
		env     *env.Environment
		actions *lru.Cache[*AleAction]
		procs   *lru.Cache[data.Procedure]
		once    sync.Once
	}

	// AleAction is an Ale expression evaluated once per call. Keyword
	// arguments are bound by name and positional arguments as the vector
	// args. The expression's value is the action result
	AleAction struct {
		env    *AleEnv
		script string
	}
)

const (
	aleCacheSize      = 1024
	aleLambdaTemplate = "(lambda (%s) %s)"
	aleArgsName       = "args"
)

var (
	ErrAleNotProcedure = errors.New("not a procedure")
	ErrAleCompile      = errors.New("ale compile error")
	ErrAleCall         = errors.New("ale call error")
)

var _ Invocable = (*AleAction)(nil)

// NewAleEnv creates an Ale environment. The core library is bootstrapped
// on first use
func NewAleEnv() *AleEnv {
	return &AleEnv{
		actions: lru.NewCache[*AleAction](aleCacheSize),
		procs:   lru.NewCache[data.Procedure](aleCacheSize),
	}
}

// Compile returns the action for script, reusing earlier actions for the
// same source
func (e *AleEnv) Compile(script string) (*AleAction, error) {
	if strings.TrimSpace(script) == "" {
		return nil, fmt.Errorf("%w: empty script", ErrAleCompile)
	}
	return e.actions.Get(hashScript(script), func() (*AleAction, error) {
		return &AleAction{env: e, script: script}, nil
	})
}

// Invoke binds the call's arguments and evaluates the expression. Ale
// evaluation cannot be interrupted, so ctx is not consulted
func (a *AleAction) Invoke(_ context.Context, c *Call) (any, error) {
	names := aleParamNames(c.Kwargs)
	proc, err := a.env.procedure(a.script, names)
	if err != nil {
		return nil, err
	}

	args := make(data.Vector, len(names))
	for i, name := range names {
		if name == aleArgsName {
			args[i] = jsonArrayToAle(c.Args)
			continue
		}
		args[i] = jsonToAle(c.Kwargs[api.Name(name)])
	}

	res, err := catchPanic(ErrAleCall, func() (ale.Value, error) {
		return proc.Call(args...), nil
	})
	if err != nil {
		return nil, err
	}
	return aleToJSON(res), nil
}

func (e *AleEnv) procedure(
	script string, names []string,
) (data.Procedure, error) {
	params := strings.Join(names, " ")
	key := hashScript(params + "\n" + script)
	return e.procs.Get(key, func() (data.Procedure, error) {
		return e.compile(script, params)
	})
}

func (e *AleEnv) compile(script, params string) (data.Procedure, error) {
	e.once.Do(func() {
		e.env = env.NewEnvironment()
		bootstrap.Into(e.env)
	})
	src := fmt.Sprintf(aleLambdaTemplate, params, script)

	return catchPanic(ErrAleCompile, func() (data.Procedure, error) {
		ns := e.env.GetAnonymous()
		res, err := eval.String(ns, data.String(src))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrAleCompile, err)
		}
		proc, ok := res.(data.Procedure)
		if !ok {
			return nil, fmt.Errorf("%w: %w, got %T",
				ErrAleCompile, ErrAleNotProcedure, res)
		}
		return proc, nil
	})
}

// aleParamNames returns the lambda parameters for a call: args followed by
// the sorted keyword names
func aleParamNames(kwargs api.Args) []string {
	names := []string{aleArgsName}
	for _, k := range slices.Sorted(maps.Keys(kwargs)) {
		if k != aleArgsName {
			names = append(names, string(k))
		}
	}
	return names
}

func jsonToAle(value any) ale.Value {
	switch v := value.(type) {
	case string:
		return data.String(v)
	case bool:
		return data.Bool(v)
	case int:
		return data.Integer(v)
	case int64:
		return data.Integer(v)
	case float64:
		return data.Float(v)
	case []any:
		return jsonArrayToAle(v)
	case []string:
		vec := make(data.Vector, len(v))
		for i, s := range v {
			vec[i] = data.String(s)
		}
		return vec
	case map[string]any:
		return jsonMapToAle(v)
	case api.Args:
		return jsonMapToAle(v.Plain())
	case nil:
		return data.Null
	default:
		return data.String(fmt.Sprintf("%v", v))
	}
}

func jsonArrayToAle(arr []any) data.Vector {
	vec := make(data.Vector, len(arr))
	for i, item := range arr {
		vec[i] = jsonToAle(item)
	}
	return vec
}

func jsonMapToAle(m map[string]any) *data.Object {
	obj := data.NewObject()
	for k, val := range m {
		pair := data.NewCons(data.Keyword(k), jsonToAle(val))
		obj = obj.Put(pair).(*data.Object)
	}
	return obj
}

func aleToJSON(value ale.Value) any {
	switch v := value.(type) {
	case data.Bool:
		return bool(v)
	case data.String:
		return string(v)
	case data.Keyword:
		return string(v)
	case data.Integer:
		return int(v)
	case data.Float:
		return float64(v)
	case data.Vector:
		return aleVectorToJSON(v)
	case *data.List:
		return aleListToJSON(v)
	case *data.Object:
		return aleObjectToJSON(v)
	default:
		if value == data.Null {
			return nil
		}
		return fmt.Sprintf("%v", v)
	}
}

func aleVectorToJSON(v data.Vector) []any {
	res := make([]any, len(v))
	for i, item := range v {
		res[i] = aleToJSON(item)
	}
	return res
}

func aleListToJSON(list *data.List) []any {
	res := []any{}
	for l := list; !l.IsEmpty(); {
		head, tail, ok := l.Split()
		if !ok {
			break
		}
		res = append(res, aleToJSON(head))
		l = tail.(*data.List)
	}
	return res
}

func aleObjectToJSON(obj *data.Object) map[string]any {
	res := map[string]any{}
	for _, pair := range obj.Pairs() {
		key := fmt.Sprintf("%v", aleToJSON(pair.Car()))
		res[key] = aleToJSON(pair.Cdr())
	}
	return res
}

func catchPanic[T any](base error, fn func() (T, error)) (res T, err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if e, ok := r.(error); ok {
			err = fmt.Errorf("%w: %w", base, e)
			return
		}
		err = fmt.Errorf("%w: %v", base, r)
	}()
	return fn()
}
