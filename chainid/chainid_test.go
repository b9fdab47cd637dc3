package chainid

import "testing"

func TestNewProducesValidIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 32; i++ {
		id, err := New()
		if err != nil {
			t.Fatalf("minting id: %v", err)
		}
		if !Valid(id) {
			t.Fatalf("fresh id %q should validate", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestValidRejectsGarbage(t *testing.T) {
	bad := []string{
		"",
		"not-base58-0OIl",
		"abc",
		"1111111111111111111111111",
	}
	for _, id := range bad {
		if Valid(id) {
			t.Fatalf("%q should not validate", id)
		}
	}
}

func TestValidRejectsCorruptedChecksum(t *testing.T) {
	id, err := New()
	if err != nil {
		t.Fatalf("minting id: %v", err)
	}

	// Flip one character; base58 has no 'l', so swap against a letter the
	// alphabet does contain.
	corrupted := []byte(id)
	if corrupted[len(corrupted)-1] == 'a' {
		corrupted[len(corrupted)-1] = 'b'
	} else {
		corrupted[len(corrupted)-1] = 'a'
	}
	if Valid(string(corrupted)) {
		t.Fatalf("corrupted id %q should not validate", corrupted)
	}
}
