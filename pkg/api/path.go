package api

import (
	"slices"
	"strconv"
	"strings"
)

type (
	// PathSegment records one duplication boundary crossed by an instance:
	// the duplicate definition that expanded it and the branch index taken
	PathSegment struct {
		Dup   DefID `json:"dup"`
		Index int   `json:"index"`
	}

	// Path is the duplication path of an instance or producer, outermost
	// boundary first. The empty path is the root scope
	Path []PathSegment
)

// Key returns a stable string form of the segment
func (s PathSegment) Key() string {
	return string(s.Dup) + "#" + strconv.Itoa(s.Index)
}

// String renders the path as its sequence of indices, e.g. "[0][2]"
func (p Path) String() string {
	var sb strings.Builder
	for _, s := range p {
		sb.WriteByte('[')
		sb.WriteString(strconv.Itoa(s.Index))
		sb.WriteByte(']')
	}
	return sb.String()
}

// Keys returns the segment keys, suitable for indexing a path tree
func (p Path) Keys() []string {
	res := make([]string, len(p))
	for i, s := range p {
		res[i] = s.Key()
	}
	return res
}

// Indices returns the duplicate indices of the path, outermost first
func (p Path) Indices() []int {
	res := make([]int, len(p))
	for i, s := range p {
		res[i] = s.Index
	}
	return res
}

// Extend returns a new path with one more segment appended
func (p Path) Extend(dup DefID, idx int) Path {
	res := make(Path, len(p), len(p)+1)
	copy(res, p)
	return append(res, PathSegment{Dup: dup, Index: idx})
}

// HasPrefix reports whether prefix is equal to or an ancestor of p
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	return slices.Equal(p[:len(prefix)], prefix)
}

// Equal reports whether both paths contain the same segments
func (p Path) Equal(other Path) bool {
	return slices.Equal(p, other)
}

// Compare orders paths by their indices, then by length
func (p Path) Compare(other Path) int {
	return slices.Compare(p.Indices(), other.Indices())
}
