package graph

import (
	"github.com/OdaNilseng/FLSworkflow/pkg/api"
)

type (
	// Kind identifies the definition variant behind a Node
	Kind int

	// Node is one definition placed in the tree
	Node struct {
		Def      api.TaskDef
		Scope    *Scope
		Body     *Scope
		ID       api.DefID
		Parents  []*Node
		Children []*Node
		Ordinal  int
		Kind     Kind
	}

	// Scope holds the sibling definitions of one group, duplication body or
	// the top level, in definition order
	Scope struct {
		Owner  *Node
		Nodes  []*Node
		Roots  []*Node
		Leaves []*Node
	}

	// Graph is the validated, flattened definition tree
	Graph struct {
		Top   *Scope
		nodes map[api.DefID]*Node
		order []*Node
	}
)

const (
	KindAction Kind = iota
	KindGroup
	KindDuplicate
)

// Root returns the node of the root definition
func (g *Graph) Root() *Node {
	return g.Top.Nodes[0]
}

// Node returns the node with the given qualified ID
func (g *Graph) Node(id api.DefID) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns every node in pre-order
func (g *Graph) Nodes() []*Node {
	return g.order
}

// Actions returns the action nodes in pre-order
func (g *Graph) Actions() []*Node {
	var res []*Node
	for _, n := range g.order {
		if n.Kind == KindAction {
			res = append(res, n)
		}
	}
	return res
}

// Name returns the definition's own name
func (n *Node) Name() api.Name {
	return n.Def.TaskName()
}

// IsRoot reports whether the node has no parents inside its scope
func (n *Node) IsRoot() bool {
	return len(n.Parents) == 0
}

// IsLeaf reports whether the node has no children inside its scope
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// Action returns the action definition of an action node
func (n *Node) Action() *api.ActionTask {
	t, _ := n.Def.(*api.ActionTask)
	return t
}

// Duplicate returns the duplication definition of a duplicate node
func (n *Node) Duplicate() *api.DuplicateDef {
	d, _ := n.Def.(*api.DuplicateDef)
	return d
}

// Inner returns the single node wrapped by a duplicate node
func (n *Node) Inner() *Node {
	if n.Kind != KindDuplicate {
		return nil
	}
	return n.Body.Nodes[0]
}

func (k Kind) String() string {
	switch k {
	case KindAction:
		return "action"
	case KindGroup:
		return "group"
	case KindDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}
