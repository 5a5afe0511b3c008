package expand

import (
	"fmt"
	"maps"
	"slices"

	"github.com/OdaNilseng/FLSworkflow/internal/graph"
	"github.com/OdaNilseng/FLSworkflow/internal/query"
	"github.com/OdaNilseng/FLSworkflow/pkg/api"
)

type (
	// FileSource lists the files registered under a tag before execution
	FileSource interface {
		Files(tag api.Name) ([]api.FileRef, error)
	}

	expander struct {
		plan  *Plan
		ctx   query.Context
		files FileSource
	}

	// override is what one duplicate index hands to the root instances of
	// its copy
	override struct {
		element any
		kwargs  api.Args
		file    *api.FileRef
		tag     api.Name
		hasArgs bool
	}

	inputsOnly api.Args
)

// Expand builds the instance graph for g. Factor queries are evaluated
// against inputs only, and download factors count the files already held by
// files. Failures wrap api.ErrDuplication
func Expand(g *graph.Graph, inputs api.Args, files FileSource) (*Plan, error) {
	e := &expander{
		plan:  &Plan{byID: map[api.InstanceID]*Instance{}},
		ctx:   inputsOnly(inputs),
		files: files,
	}
	if _, _, err := e.expand(g.Root(), nil, nil); err != nil {
		return nil, err
	}
	e.plan.sort()
	return e.plan, nil
}

func (e *expander) expand(
	n *graph.Node, path api.Path, ovs []override,
) ([]*Instance, []*Instance, error) {
	switch n.Kind {
	case graph.KindAction:
		inst := e.newInstance(n, path, ovs)
		return []*Instance{inst}, []*Instance{inst}, nil
	case graph.KindGroup:
		return e.expandScope(n.Body, path, ovs)
	default:
		return e.expandDuplicate(n, path, ovs)
	}
}

func (e *expander) expandScope(
	s *graph.Scope, path api.Path, ovs []override,
) ([]*Instance, []*Instance, error) {
	roots := map[*graph.Node][]*Instance{}
	leaves := map[*graph.Node][]*Instance{}
	for _, n := range s.Nodes {
		var nodeOvs []override
		if n.IsRoot() {
			nodeOvs = ovs
		}
		r, l, err := e.expand(n, path, nodeOvs)
		if err != nil {
			return nil, nil, err
		}
		roots[n], leaves[n] = r, l
	}

	for _, n := range s.Nodes {
		for _, p := range n.Parents {
			for _, from := range leaves[p] {
				for _, to := range roots[n] {
					link(from, to)
				}
			}
		}
	}

	var resRoots, resLeaves []*Instance
	for _, n := range s.Roots {
		resRoots = append(resRoots, roots[n]...)
	}
	for _, n := range s.Leaves {
		resLeaves = append(resLeaves, leaves[n]...)
	}
	return resRoots, resLeaves, nil
}

func (e *expander) expandDuplicate(
	n *graph.Node, path api.Path, ovs []override,
) ([]*Instance, []*Instance, error) {
	elems, rest, err := e.factor(n, ovs)
	if err != nil {
		return nil, nil, err
	}

	var roots, leaves []*Instance
	for i, el := range elems {
		childOvs := append(slices.Clone(rest), el)
		r, l, err := e.expand(n.Inner(), path.Extend(n.ID, i), childOvs)
		if err != nil {
			return nil, nil, err
		}
		roots = append(roots, r...)
		leaves = append(leaves, l...)
	}
	return roots, leaves, nil
}

func (e *expander) newInstance(
	n *graph.Node, path api.Path, ovs []override,
) *Instance {
	act := n.Action()
	inst := &Instance{
		Node:     n,
		ID:       api.NewInstanceID(n.ID, path),
		Path:     path,
		Args:     slices.Clone(act.Args),
		Kwargs:   maps.Clone(act.Kwargs),
		Download: slices.Clone(act.Download),
	}
	for _, ov := range ovs {
		ov.apply(inst)
	}
	e.plan.add(inst)
	return inst
}

func (ov override) apply(inst *Instance) {
	if ov.hasArgs {
		inst.Args = asList(ov.element)
	}
	if ov.kwargs != nil {
		inst.Kwargs = inst.Kwargs.Merge(ov.kwargs)
	}
	if ov.file != nil {
		if inst.Pinned == nil {
			inst.Pinned = map[api.Name]api.FileRef{}
		}
		inst.Pinned[ov.tag] = *ov.file
		if !slices.Contains(inst.Download, ov.tag) {
			inst.Download = append(inst.Download, ov.tag)
		}
	}
}

func asList(v any) []any {
	if l, ok := v.([]any); ok {
		return slices.Clone(l)
	}
	return []any{v}
}

func (c inputsOnly) Inputs() api.Args {
	return api.Args(c)
}

func (c inputsOnly) Output(tag api.Name, _ api.Path) (any, error) {
	return nil, fmt.Errorf("%w: %q: outputs are not available during expansion",
		api.ErrTagNotFound, tag,
	)
}

func (c inputsOnly) Storage(tag api.Name, _ api.Path) (any, error) {
	return nil, fmt.Errorf("%w: %q: storage is not available during expansion",
		api.ErrTagNotFound, tag,
	)
}
