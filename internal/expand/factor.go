package expand

import (
	"fmt"

	"github.com/OdaNilseng/FLSworkflow/internal/graph"
	"github.com/OdaNilseng/FLSworkflow/internal/query"
	"github.com/OdaNilseng/FLSworkflow/pkg/api"
)

// factor computes one override per duplicate index of n, and the enclosing
// overrides left for the copies. A duplication without its own factor
// consumes the innermost enclosing args element
func (e *expander) factor(
	n *graph.Node, ovs []override,
) ([]override, []override, error) {
	dup := n.Duplicate()
	if !dup.HasFactor() {
		return e.inheritedFactor(n, ovs)
	}

	var sources []int
	var args, kwargs []any
	var files []api.FileRef
	var err error

	if dup.Args != nil || dup.ArgsQuery != "" {
		if args, err = e.argsFactor(n); err != nil {
			return nil, nil, err
		}
		sources = append(sources, len(args))
	}
	if dup.Kwargs != nil || dup.KwargsQuery != "" {
		if kwargs, err = e.kwargsFactor(n); err != nil {
			return nil, nil, err
		}
		sources = append(sources, len(kwargs))
	}
	if dup.Download != "" {
		if e.files == nil {
			return nil, nil, fmt.Errorf("%w: %q: no files available",
				api.ErrInvalidFactor, n.ID,
			)
		}
		if files, err = e.files.Files(dup.Download); err != nil {
			return nil, nil, fmt.Errorf("%w: %q: %w",
				api.ErrInvalidFactor, n.ID, err,
			)
		}
		sources = append(sources, len(files))
	}

	size, err := factorSize(n, sources)
	if err != nil {
		return nil, nil, err
	}

	res := make([]override, size)
	for i := range size {
		if args != nil {
			res[i].element = args[i]
			res[i].hasArgs = true
		}
		if kwargs != nil {
			kw, err := e.kwargsElement(n, kwargs[i])
			if err != nil {
				return nil, nil, err
			}
			res[i].kwargs = kw
		}
		if files != nil {
			res[i].file = &files[i]
			res[i].tag = dup.Download
		}
	}
	return res, ovs, nil
}

func (e *expander) inheritedFactor(
	n *graph.Node, ovs []override,
) ([]override, []override, error) {
	if len(ovs) == 0 || !ovs[len(ovs)-1].hasArgs {
		return nil, nil, fmt.Errorf("%w: %q", api.ErrMissingFactor, n.ID)
	}
	last := ovs[len(ovs)-1]
	rest := ovs[:len(ovs)-1]

	el, err := e.resolve(n, last.element)
	if err != nil {
		return nil, nil, err
	}
	list, ok := el.([]any)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q: inherited element %v is not a list",
			api.ErrInvalidFactor, n.ID, el,
		)
	}
	if _, err := factorSize(n, []int{len(list)}); err != nil {
		return nil, nil, err
	}

	res := make([]override, len(list))
	for i, v := range list {
		res[i] = override{element: v, hasArgs: true}
	}
	if last.kwargs != nil || last.file != nil {
		carried := last
		carried.hasArgs = false
		carried.element = nil
		rest = append(rest, carried)
	}
	return res, rest, nil
}

func (e *expander) argsFactor(n *graph.Node) ([]any, error) {
	dup := n.Duplicate()
	if dup.ArgsQuery == "" {
		return dup.Args, nil
	}
	return e.queryList(n, dup.ArgsQuery)
}

func (e *expander) kwargsFactor(n *graph.Node) ([]any, error) {
	dup := n.Duplicate()
	if dup.KwargsQuery == "" {
		return dup.Kwargs, nil
	}
	return e.queryList(n, dup.KwargsQuery)
}

func (e *expander) queryList(n *graph.Node, src string) ([]any, error) {
	v, err := e.resolve(n, src)
	if err != nil {
		return nil, err
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %q: %s resolved to %T, not a list",
			api.ErrInvalidFactor, n.ID, src, v,
		)
	}
	return list, nil
}

func (e *expander) kwargsElement(n *graph.Node, el any) (api.Args, error) {
	v, err := e.resolve(n, el)
	if err != nil {
		return nil, err
	}
	switch m := v.(type) {
	case api.Args:
		return m, nil
	case map[string]any:
		return api.ArgsFrom(m), nil
	default:
		return nil, fmt.Errorf("%w: %q: kwargs element %v is not a mapping",
			api.ErrInvalidFactor, n.ID, v,
		)
	}
}

func (e *expander) resolve(n *graph.Node, v any) (any, error) {
	if s, ok := v.(string); !ok || !query.IsQuery(s) {
		return v, nil
	}
	res, err := query.Resolve(v, e.ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", api.ErrInvalidFactor, n.ID, err)
	}
	return res, nil
}

func factorSize(n *graph.Node, sources []int) (int, error) {
	size := sources[0]
	for _, s := range sources[1:] {
		if s != size {
			return 0, fmt.Errorf("%w: %q: sources give %v",
				api.ErrFactorMismatch, n.ID, sources,
			)
		}
	}
	if size == 0 {
		return 0, fmt.Errorf("%w: %q", api.ErrZeroFactor, n.ID)
	}
	return size, nil
}
