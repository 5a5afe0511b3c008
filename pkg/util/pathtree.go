package util

import "slices"

type (
	// PathTree indexes values by hierarchical key paths
	PathTree[K comparable, T any] struct {
		root *pathTreeNode[K, T]
	}

	pathTreeNode[K comparable, T any] struct {
		value    T
		hasValue bool
		children map[K]*pathTreeNode[K, T]
	}
)

// NewPathTree creates a new hierarchical path index
func NewPathTree[K comparable, T any]() *PathTree[K, T] {
	return &PathTree[K, T]{root: newPathTreeNode[K, T]()}
}

func newPathTreeNode[K comparable, T any]() *pathTreeNode[K, T] {
	return &pathTreeNode[K, T]{children: map[K]*pathTreeNode[K, T]{}}
}

// Insert stores a value at the exact path, reporting false if a value was
// already stored there
func (t *PathTree[K, T]) Insert(path []K, v T) bool {
	cur := t.root
	for _, p := range path {
		next, ok := cur.children[p]
		if !ok {
			next = newPathTreeNode[K, T]()
			cur.children[p] = next
		}
		cur = next
	}
	if cur.hasValue {
		return false
	}
	cur.value = v
	cur.hasValue = true
	return true
}

// Remove clears the value stored at the exact path, reporting whether one
// was there. Branches left without values are pruned
func (t *PathTree[K, T]) Remove(path []K) bool {
	nodes := make([]*pathTreeNode[K, T], 0, len(path)+1)
	cur := t.root
	nodes = append(nodes, cur)
	for _, p := range path {
		next, ok := cur.children[p]
		if !ok {
			return false
		}
		cur = next
		nodes = append(nodes, cur)
	}
	if !cur.hasValue {
		return false
	}
	var zero T
	cur.value = zero
	cur.hasValue = false

	for i := len(path); i > 0; i-- {
		if !nodes[i].isEmpty() {
			break
		}
		delete(nodes[i-1].children, path[i-1])
	}
	return true
}

// Get returns the value stored at the exact path
func (t *PathTree[K, T]) Get(path []K) (T, bool) {
	if n := t.root.find(path); n != nil && n.hasValue {
		return n.value, true
	}
	var zero T
	return zero, false
}

// Nearest returns the value stored at the longest prefix of path (including
// path itself and the empty prefix) that holds one
func (t *PathTree[K, T]) Nearest(path []K) (T, bool) {
	var res T
	found := false
	cur := t.root
	for i := 0; ; i++ {
		if cur.hasValue {
			res, found = cur.value, true
		}
		if i == len(path) {
			break
		}
		next, ok := cur.children[path[i]]
		if !ok {
			break
		}
		cur = next
	}
	return res, found
}

// Sub returns a view of the subtree rooted at path, or nil if no value is
// stored at or below it
func (t *PathTree[K, T]) Sub(path []K) *PathTree[K, T] {
	n := t.root.find(path)
	if n == nil || n.isEmpty() {
		return nil
	}
	return &PathTree[K, T]{root: n}
}

// Value returns the value stored at the root of the tree
func (t *PathTree[K, T]) Value() (T, bool) {
	return t.root.value, t.root.hasValue
}

// ChildKeys returns the keys of the root's direct children that lead to a
// stored value, ordered by the provided comparison
func (t *PathTree[K, T]) ChildKeys(compare func(a, b K) int) []K {
	res := make([]K, 0, len(t.root.children))
	for k, n := range t.root.children {
		if !n.isEmpty() {
			res = append(res, k)
		}
	}
	slices.SortFunc(res, compare)
	return res
}

// Values returns every stored value in the tree
func (t *PathTree[K, T]) Values() []T {
	return t.root.values()
}

// IsEmpty reports whether the tree holds no values
func (t *PathTree[K, T]) IsEmpty() bool {
	return t.root.isEmpty()
}

func (n *pathTreeNode[K, T]) find(path []K) *pathTreeNode[K, T] {
	cur := n
	for _, p := range path {
		next, ok := cur.children[p]
		if !ok {
			return nil
		}
		cur = next
	}
	return cur
}

func (n *pathTreeNode[K, T]) isEmpty() bool {
	if n.hasValue {
		return false
	}
	for _, child := range n.children {
		if !child.isEmpty() {
			return false
		}
	}
	return true
}

func (n *pathTreeNode[K, T]) values() []T {
	res := make([]T, 0)
	if n.hasValue {
		res = append(res, n.value)
	}
	for _, child := range n.children {
		res = append(res, child.values()...)
	}
	return res
}
