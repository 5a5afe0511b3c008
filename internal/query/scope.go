package query

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/OdaNilseng/FLSworkflow/pkg/api"
	"github.com/OdaNilseng/FLSworkflow/pkg/util"
)

type (
	// Store holds tagged values keyed by the duplication path of the
	// instance that produced them. Each (tag, path) key is written once
	Store[T any] struct {
		tags     map[api.Name]*tree[T]
		conflict error
		mu       sync.RWMutex
	}

	tree[T any] = util.PathTree[api.PathSegment, T]
)

// NewStore creates an empty Store. conflict is the error returned when a
// key is written twice
func NewStore[T any](conflict error) *Store[T] {
	return &Store[T]{
		tags:     map[api.Name]*tree[T]{},
		conflict: conflict,
	}
}

// Put records the value produced for tag at path
func (s *Store[T]) Put(tag api.Name, at api.Path, v T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tags[tag]
	if !ok {
		t = util.NewPathTree[api.PathSegment, T]()
		s.tags[tag] = t
	}
	if !t.Insert(at, v) {
		return fmt.Errorf("%w: %q at %q", s.conflict, tag, at.String())
	}
	return nil
}

// PutAll records one value per tag, all produced at path. Either every
// value is recorded or, when any key is already taken, none is
func (s *Store[T]) PutAll(at api.Path, vals map[api.Name]T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tags := slices.Sorted(maps.Keys(vals))
	if err := s.check(at, tags); err != nil {
		return err
	}
	for _, tag := range tags {
		t, ok := s.tags[tag]
		if !ok {
			t = util.NewPathTree[api.PathSegment, T]()
			s.tags[tag] = t
		}
		t.Insert(at, vals[tag])
	}
	return nil
}

// Check reports the conflict error if any of tags already holds a value
// at path
func (s *Store[T]) Check(at api.Path, tags ...api.Name) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.check(at, tags)
}

// Remove discards the values recorded for tags at path. A tag left with no
// values is forgotten
func (s *Store[T]) Remove(at api.Path, tags ...api.Name) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tag := range tags {
		t, ok := s.tags[tag]
		if !ok {
			continue
		}
		t.Remove(at)
		if t.IsEmpty() {
			delete(s.tags, tag)
		}
	}
}

// Has reports whether any value was recorded for tag
func (s *Store[T]) Has(tag api.Name) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tags[tag]
	return ok
}

// Tags returns every tag with a recorded value, sorted
func (s *Store[T]) Tags() []api.Name {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]api.Name, 0, len(s.tags))
	for tag := range s.tags {
		res = append(res, tag)
	}
	slices.Sort(res)
	return res
}

// Scoped returns the value of tag as seen from path at. A producer at or
// above at yields its value directly. Producers below at yield nested
// mappings from duplicate index to value, one level per boundary crossed
func (s *Store[T]) Scoped(
	tag api.Name, at api.Path, conv func(T) any, notFound error,
) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tags[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %q", notFound, tag)
	}
	if v, ok := t.Nearest(at); ok {
		return conv(v), nil
	}
	sub := t.Sub(at)
	if sub == nil {
		return nil, fmt.Errorf("%w: %q from %q",
			api.ErrUnreachableTag, tag, at.String(),
		)
	}
	return fanOut(sub, tag, conv)
}

// Visible returns every value of tag visible from path at, flattened in
// duplicate index order
func (s *Store[T]) Visible(
	tag api.Name, at api.Path, notFound error,
) ([]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tags[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %q", notFound, tag)
	}
	if v, ok := t.Nearest(at); ok {
		return []T{v}, nil
	}
	sub := t.Sub(at)
	if sub == nil {
		return nil, fmt.Errorf("%w: %q from %q",
			api.ErrUnreachableTag, tag, at.String(),
		)
	}
	return flatten(sub), nil
}

// All returns every recorded value, ordered by tag then duplicate index
func (s *Store[T]) All() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []T
	for _, tag := range slices.Sorted(maps.Keys(s.tags)) {
		res = append(res, flatten(s.tags[tag])...)
	}
	return res
}

func (s *Store[T]) check(at api.Path, tags []api.Name) error {
	for _, tag := range tags {
		if t, ok := s.tags[tag]; ok {
			if _, taken := t.Get(at); taken {
				return fmt.Errorf("%w: %q at %q", s.conflict, tag, at.String())
			}
		}
	}
	return nil
}

func fanOut[T any](t *tree[T], tag api.Name, conv func(T) any) (any, error) {
	if v, ok := t.Value(); ok {
		return conv(v), nil
	}
	keys := t.ChildKeys(compareSegments)
	res := make(map[int]any, len(keys))
	for _, k := range keys {
		if k.Dup != keys[0].Dup {
			return nil, fmt.Errorf("%w: %q produced under %q and %q",
				api.ErrUnreachableTag, tag, keys[0].Dup, k.Dup,
			)
		}
		v, err := fanOut(t.Sub([]api.PathSegment{k}), tag, conv)
		if err != nil {
			return nil, err
		}
		res[k.Index] = v
	}
	return res, nil
}

func flatten[T any](t *tree[T]) []T {
	var res []T
	if v, ok := t.Value(); ok {
		res = append(res, v)
	}
	for _, k := range t.ChildKeys(compareSegments) {
		res = append(res, flatten(t.Sub([]api.PathSegment{k}))...)
	}
	return res
}

func compareSegments(a, b api.PathSegment) int {
	if c := cmp.Compare(a.Dup, b.Dup); c != 0 {
		return c
	}
	return cmp.Compare(a.Index, b.Index)
}
