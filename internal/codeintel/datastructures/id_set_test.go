package datastructures

import "testing"

func TestIDSetAddContains(t *testing.T) {
	s := NewIDSet()
	if s.Contains(1) {
		t.Error("expected empty set to not contain 1")
	}

	s.Add(1)
	if !s.Contains(1) {
		t.Error("expected set to contain 1 after Add")
	}
	if s.Contains(2) {
		t.Error("expected set to not contain 2")
	}
}

func TestIDSetAddAll(t *testing.T) {
	a := NewIDSet()
	a.Add(1)
	a.Add(2)

	b := NewIDSet()
	b.Add(2)
	b.Add(3)

	a.AddAll(b)

	for _, id := range []int{1, 2, 3} {
		if !a.Contains(id) {
			t.Errorf("expected union to contain %d", id)
		}
	}
	if len(a) != 3 {
		t.Errorf("expected union to have 3 members, has %d", len(a))
	}
}

func TestIDSetChoose(t *testing.T) {
	s := NewIDSet()
	if _, ok := s.Choose(); ok {
		t.Error("expected Choose on empty set to report false")
	}

	s.Add(5)
	id, ok := s.Choose()
	if !ok || id != 5 {
		t.Errorf("expected Choose to return the set's only member, got id=%d ok=%v", id, ok)
	}
}

func TestIDSetKeys(t *testing.T) {
	s := NewIDSet()
	s.Add(1)
	s.Add(2)
	s.Add(3)

	keys := s.Keys()
	if len(keys) != 3 {
		t.Fatalf("expected 3 keys, got %d", len(keys))
	}

	seen := map[int]bool{}
	for _, k := range keys {
		seen[k] = true
	}
	for _, want := range []int{1, 2, 3} {
		if !seen[want] {
			t.Errorf("expected keys to include %d, got %v", want, keys)
		}
	}
}

func TestDefaultIDSetMapGetOrCreate(t *testing.T) {
	m := DefaultIDSetMap{}

	s := m.GetOrCreate(1)
	s.Add(10)

	if !m.GetOrCreate(1).Contains(10) {
		t.Error("expected the set returned by a second GetOrCreate call to alias the first")
	}
	if len(m) != 1 {
		t.Errorf("expected exactly one entry, got %d", len(m))
	}
}

func TestDisjointIDSetMapUnionAndExtractSet(t *testing.T) {
	m := DisjointIDSetMap{}
	m.Union(1, 2)
	m.Union(2, 3)
	m.Union(10, 11)

	component := m.ExtractSet(1)
	for _, want := range []int{1, 2, 3} {
		if !component.Contains(want) {
			t.Errorf("expected component of 1 to contain %d, got %v", want, component)
		}
	}
	if component.Contains(10) || component.Contains(11) {
		t.Errorf("expected component of 1 to not reach the disjoint (10, 11) component, got %v", component)
	}

	if !m.Contains(1) {
		t.Error("expected Contains to report true for a linked id")
	}
	if m.Contains(99) {
		t.Error("expected Contains to report false for an id with no links")
	}
}

func TestDisjointIDSetMapExtractSetSingleton(t *testing.T) {
	m := DisjointIDSetMap{}

	component := m.ExtractSet(42)
	if len(component) != 1 || !component.Contains(42) {
		t.Errorf("expected a singleton component for an unlinked id, got %v", component)
	}
}
