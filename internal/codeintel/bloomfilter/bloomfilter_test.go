package bloomfilter

import "testing"

func TestCreateFilterMembership(t *testing.T) {
	identifiers := []string{"alpha", "beta", "gamma", "delta"}

	encoded, err := CreateFilter(identifiers)
	if err != nil {
		t.Fatalf("unexpected error creating filter: %s", err)
	}

	filter, err := Decode(encoded)
	if err != nil {
		t.Fatalf("unexpected error decoding filter: %s", err)
	}

	for _, identifier := range identifiers {
		if !filter.Test(identifier) {
			t.Errorf("expected %q to test as a member", identifier)
		}
	}
}

func TestFilterRejectsObviousNonMembers(t *testing.T) {
	encoded, err := CreateFilter([]string{"only-member"})
	if err != nil {
		t.Fatalf("unexpected error creating filter: %s", err)
	}

	filter, err := Decode(encoded)
	if err != nil {
		t.Fatalf("unexpected error decoding filter: %s", err)
	}

	falsePositives := 0
	total := 200
	for i := 0; i < total; i++ {
		if filter.Test(nonMemberIdentifier(i)) {
			falsePositives++
		}
	}

	// bitsPerElement=10 keeps the false-positive rate low; a sane
	// filter shouldn't flag a large fraction of these as members.
	if falsePositives > total/2 {
		t.Errorf("unexpectedly high false-positive count: %d/%d", falsePositives, total)
	}
}

func TestDecodeRejectsShortInput(t *testing.T) {
	if _, err := Decode([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error decoding short input")
	}
}

func nonMemberIdentifier(i int) string {
	return "definitely-not-a-member-" + string(rune('a'+i%26)) + string(rune(i))
}
