package set

import (
	"cmp"
	"slices"
)

// Set formalizes set semantics for ordered values, so members can be listed deterministically.
type Set[T cmp.Ordered] map[T]struct{}

// New creates a new [Set] from the given values.
func New[T cmp.Ordered](vals ...T) Set[T] {
	s := make(Set[T], len(vals))
	for _, v := range vals {
		s[v] = struct{}{}
	}
	return s
}

// FromKeys will create a new [Set] from the keys of the given map.
func FromKeys[T cmp.Ordered, E any](vals map[T]E) Set[T] {
	s := make(Set[T], len(vals))
	for v := range vals {
		s[v] = struct{}{}
	}
	return s
}

// Add adds val to the set, returning false if it was already present.
// Add panics on a nil Set.
func (s Set[T]) Add(val T) bool {
	if _, ok := s[val]; ok {
		return false
	}
	s[val] = struct{}{}
	return true
}

func (s Set[T]) Remove(val T) {
	delete(s, val)
}

func (s Set[T]) Has(val T) bool {
	_, ok := s[val]
	return ok
}

// Missing returns the values that aren't in the set, in the order given.
func (s Set[T]) Missing(vals ...T) []T {
	var missing []T
	for _, v := range vals {
		if !s.Has(v) {
			missing = append(missing, v)
		}
	}
	return missing
}

// Sorted returns the members in ascending order, or nil if the set is empty.
func (s Set[T]) Sorted() []T {
	if len(s) == 0 {
		return nil
	}
	vals := make([]T, 0, len(s))
	for v := range s {
		vals = append(vals, v)
	}
	slices.Sort(vals)
	return vals
}
