package query

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kode4food/lru"

	"github.com/OdaNilseng/FLSworkflow/pkg/api"
)

// Context supplies the roots of a run's query tree
type Context interface {
	Inputs() api.Args
	Output(tag api.Name, at api.Path) (any, error)
	Storage(tag api.Name, at api.Path) (any, error)
}

const templateCacheSize = 4096

const (
	RootInputs  = "inputs"
	RootOutputs = "outputs"
	RootStorage = "storage"
)

var templateCache = lru.NewCache[*Template](templateCacheSize)

// Compile parses s, reusing a cached template when one exists
func Compile(s string) (*Template, error) {
	return templateCache.Get(s, func() (*Template, error) {
		return ParseTemplate(s)
	})
}

// Resolve evaluates every expression found in v against the run context,
// as seen from duplication path at. Strings are evaluated, lists and maps
// are resolved element-wise and other values are returned unchanged
func Resolve(v any, ctx Context, at api.Path) (any, error) {
	return walk(v, func(e *Expr) (any, error) {
		return evalContext(e, ctx, at)
	})
}

// ResolveArgs resolves every value of a keyword argument map
func ResolveArgs(args api.Args, ctx Context, at api.Path) (api.Args, error) {
	if args == nil {
		return nil, nil
	}
	res := make(api.Args, len(args))
	for k, v := range args {
		r, err := Resolve(v, ctx, at)
		if err != nil {
			return nil, err
		}
		res[k] = r
	}
	return res, nil
}

// ResolveList resolves every element of a positional argument list
func ResolveList(list []any, ctx Context, at api.Path) ([]any, error) {
	if list == nil {
		return nil, nil
	}
	res := make([]any, len(list))
	for i, v := range list {
		r, err := Resolve(v, ctx, at)
		if err != nil {
			return nil, err
		}
		res[i] = r
	}
	return res, nil
}

// Extract evaluates the expressions in v with $ bound to value, as used for
// output extraction and upload specifications
func Extract(v any, value any) (any, error) {
	return walk(v, func(e *Expr) (any, error) {
		return navigate(value, e.Path, e.Source)
	})
}

func walk(v any, eval func(*Expr) (any, error)) (any, error) {
	switch v := v.(type) {
	case string:
		return evalString(v, eval)
	case []any:
		res := make([]any, len(v))
		for i, elem := range v {
			r, err := walk(elem, eval)
			if err != nil {
				return nil, err
			}
			res[i] = r
		}
		return res, nil
	case []string:
		res := make([]any, len(v))
		for i, elem := range v {
			r, err := evalString(elem, eval)
			if err != nil {
				return nil, err
			}
			res[i] = r
		}
		return res, nil
	case map[string]any:
		res := make(map[string]any, len(v))
		for k, elem := range v {
			r, err := walk(elem, eval)
			if err != nil {
				return nil, err
			}
			res[k] = r
		}
		return res, nil
	case api.Args:
		res := make(api.Args, len(v))
		for k, elem := range v {
			r, err := walk(elem, eval)
			if err != nil {
				return nil, err
			}
			res[k] = r
		}
		return res, nil
	default:
		return v, nil
	}
}

func evalString(s string, eval func(*Expr) (any, error)) (any, error) {
	if !IsQuery(s) {
		return s, nil
	}
	t, err := Compile(s)
	if err != nil {
		return nil, err
	}
	if t.single {
		for _, p := range t.parts {
			if p.expr != nil {
				return eval(p.expr)
			}
		}
	}

	var sb strings.Builder
	for _, p := range t.parts {
		if p.expr == nil {
			sb.WriteString(p.literal)
			continue
		}
		v, err := eval(p.expr)
		if err != nil {
			return nil, err
		}
		if err := writeValue(&sb, v); err != nil {
			return nil, err
		}
	}
	return sb.String(), nil
}

func writeValue(sb *strings.Builder, v any) error {
	if s, ok := v.(string); ok {
		sb.WriteString(s)
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: %w", api.ErrBadPath, err)
	}
	sb.Write(data)
	return nil
}

func evalContext(e *Expr, ctx Context, at api.Path) (any, error) {
	if len(e.Path) == 0 || e.Path[0].IsIndex {
		return nil, fmt.Errorf("%w: %q: expected $.%s, $.%s or $.%s",
			api.ErrBadPath, e.Source, RootInputs, RootOutputs, RootStorage,
		)
	}

	root := e.Path[0].Key
	if root == RootInputs {
		return navigate(ctx.Inputs().Plain(), e.Path[1:], e.Source)
	}
	if root != RootOutputs && root != RootStorage {
		return nil, fmt.Errorf("%w: %q: unknown root %q",
			api.ErrBadPath, e.Source, root,
		)
	}
	if len(e.Path) < 2 || e.Path[1].IsIndex {
		return nil, fmt.Errorf("%w: %q: %s requires a tag",
			api.ErrBadPath, e.Source, root,
		)
	}

	tag := api.Name(e.Path[1].Key)
	var v any
	var err error
	if root == RootOutputs {
		v, err = ctx.Output(tag, at)
	} else {
		v, err = ctx.Storage(tag, at)
	}
	if err != nil {
		return nil, err
	}
	return navigate(v, e.Path[2:], e.Source)
}
