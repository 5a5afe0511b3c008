package graph

import (
	"fmt"
	"strings"

	"github.com/OdaNilseng/FLSworkflow/pkg/api"
	"github.com/OdaNilseng/FLSworkflow/pkg/util"
)

type builder struct {
	nodes   map[api.DefID]*Node
	active  util.Set[api.TaskDef]
	order   []*Node
	ordinal int
}

// Build validates a definition tree and flattens it into a Graph. All
// failures wrap api.ErrGraph
func Build(root api.TaskDef) (*Graph, error) {
	if root == nil {
		return nil, fmt.Errorf("%w: %w", api.ErrInvalidDefinition, api.ErrNilTaskDef)
	}
	b := &builder{
		nodes:  map[api.DefID]*Node{},
		active: util.Set[api.TaskDef]{},
	}
	top, err := b.buildScope(nil, "", []api.TaskDef{root})
	if err != nil {
		return nil, err
	}
	return &Graph{
		Top:   top,
		nodes: b.nodes,
		order: b.order,
	}, nil
}

func (b *builder) buildScope(
	owner *Node, prefix api.DefID, defs []api.TaskDef,
) (*Scope, error) {
	s := &Scope{Owner: owner}
	byDef := map[api.TaskDef]*Node{}
	names := util.Set[api.Name]{}

	for _, def := range defs {
		if def == nil {
			return nil, fmt.Errorf("%w: %s: %w",
				api.ErrInvalidDefinition, prefix, api.ErrNilTaskDef,
			)
		}
		if err := def.Validate(); err != nil {
			return nil, err
		}
		name := def.TaskName()
		if names.Contains(name) {
			return nil, fmt.Errorf("%w: %q in %q",
				api.ErrDuplicateName, name, scopeName(prefix),
			)
		}
		names.Add(name)

		n, err := b.newNode(def, prefix.Child(name))
		if err != nil {
			return nil, err
		}
		n.Scope = s
		s.Nodes = append(s.Nodes, n)
		byDef[def] = n

		if err := b.buildBody(n); err != nil {
			return nil, err
		}
	}

	if err := linkParents(s, byDef, prefix); err != nil {
		return nil, err
	}
	if err := checkCycles(s); err != nil {
		return nil, err
	}
	for _, n := range s.Nodes {
		if n.IsRoot() {
			s.Roots = append(s.Roots, n)
		}
		if n.IsLeaf() {
			s.Leaves = append(s.Leaves, n)
		}
	}
	return s, nil
}

func (b *builder) newNode(def api.TaskDef, id api.DefID) (*Node, error) {
	n := &Node{Def: def, ID: id, Ordinal: b.ordinal}
	switch def.(type) {
	case *api.ActionTask:
		n.Kind = KindAction
	case *api.GroupDef:
		n.Kind = KindGroup
	case *api.DuplicateDef:
		n.Kind = KindDuplicate
	default:
		return nil, fmt.Errorf("%w: %q: unsupported type %T",
			api.ErrInvalidDefinition, def.TaskName(), def,
		)
	}
	b.ordinal++
	b.order = append(b.order, n)
	b.nodes[id] = n
	return n, nil
}

func (b *builder) buildBody(n *Node) error {
	var members []api.TaskDef
	switch def := n.Def.(type) {
	case *api.GroupDef:
		members = def.TaskDefs
	case *api.DuplicateDef:
		members = []api.TaskDef{def.TaskDef}
	default:
		return nil
	}

	if b.active.Contains(n.Def) {
		return fmt.Errorf("%w: %q contains itself", api.ErrCycle, n.ID)
	}
	b.active.Add(n.Def)
	defer b.active.Remove(n.Def)

	body, err := b.buildScope(n, n.ID, members)
	if err != nil {
		return err
	}
	n.Body = body
	return nil
}

func linkParents(
	s *Scope, byDef map[api.TaskDef]*Node, prefix api.DefID,
) error {
	for _, n := range s.Nodes {
		seen := util.Set[*Node]{}
		for _, pd := range n.Def.TaskParents() {
			p, ok := byDef[pd]
			if !ok {
				return fmt.Errorf("%w: %q is not a sibling of %q in %q",
					api.ErrUnknownParent, parentName(pd), n.Name(),
					scopeName(prefix),
				)
			}
			if seen.Contains(p) {
				continue
			}
			seen.Add(p)
			n.Parents = append(n.Parents, p)
			p.Children = append(p.Children, n)
		}
	}
	return nil
}

func checkCycles(s *Scope) error {
	done := util.Set[*Node]{}
	visiting := util.Set[*Node]{}
	var stack []*Node

	var visit func(n *Node) error
	visit = func(n *Node) error {
		if done.Contains(n) {
			return nil
		}
		if visiting.Contains(n) {
			return fmt.Errorf("%w: %s", api.ErrCycle, cyclePath(stack, n))
		}
		visiting.Add(n)
		stack = append(stack, n)
		for _, c := range n.Children {
			if err := visit(c); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		visiting.Remove(n)
		done.Add(n)
		return nil
	}

	for _, n := range s.Nodes {
		if err := visit(n); err != nil {
			return err
		}
	}
	return nil
}

func cyclePath(stack []*Node, back *Node) string {
	start := 0
	for i, n := range stack {
		if n == back {
			start = i
			break
		}
	}
	parts := make([]string, 0, len(stack)-start+1)
	for _, n := range stack[start:] {
		parts = append(parts, string(n.Name()))
	}
	parts = append(parts, string(back.Name()))
	return strings.Join(parts, " -> ")
}

func parentName(def api.TaskDef) api.Name {
	if def == nil {
		return "<nil>"
	}
	return def.TaskName()
}

func scopeName(prefix api.DefID) string {
	if prefix == "" {
		return "<top>"
	}
	return string(prefix)
}
