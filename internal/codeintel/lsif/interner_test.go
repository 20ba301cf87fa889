package lsif

import "testing"

func TestInternerAssignsDenseIDs(t *testing.T) {
	i := NewInterner()

	if got := i.Intern("a"); got != 0 {
		t.Errorf("expected first interned value to get id 0, got %d", got)
	}
	if got := i.Intern("b"); got != 1 {
		t.Errorf("expected second interned value to get id 1, got %d", got)
	}
	if got := i.Intern("a"); got != 0 {
		t.Errorf("expected re-interning a known value to return its original id, got %d", got)
	}
	if got := i.Intern("c"); got != 2 {
		t.Errorf("expected a third distinct value to get id 2, got %d", got)
	}
}
