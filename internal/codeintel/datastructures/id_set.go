package datastructures

import "github.com/google/go-cmp/cmp/cmpopts"

// IDSet is a set of interned element identifiers.
type IDSet map[int]struct{}

// NewIDSet creates a new empty identifier set.
func NewIDSet() IDSet {
	return IDSet{}
}

// IDSetComparer is a go-cmp option that treats IDSet as an unordered set for
// comparison purposes, matching its map-of-struct{} representation.
var IDSetComparer = cmpopts.EquateEmpty()

// Add inserts id into the set.
func (s IDSet) Add(id int) {
	s[id] = struct{}{}
}

// Contains returns true if id is a member of the set.
func (s IDSet) Contains(id int) bool {
	_, ok := s[id]
	return ok
}

// AddAll inserts every member of other into the set.
func (s IDSet) AddAll(other IDSet) {
	for id := range other {
		s.Add(id)
	}
}

// Keys returns the members of the set as a slice, in no particular order.
func (s IDSet) Keys() []int {
	keys := make([]int, 0, len(s))
	for id := range s {
		keys = append(keys, id)
	}
	return keys
}

// Choose returns an arbitrary member of the set. The second return value is
// false if the set is empty.
func (s IDSet) Choose() (int, bool) {
	for id := range s {
		return id, true
	}
	return 0, false
}
