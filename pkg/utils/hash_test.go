package utils

import "testing"

func TestHashPartsSeparatesBoundaries(t *testing.T) {
	if HashParts("ab", "c") == HashParts("a", "bc") {
		t.Error("different splits of the same text must hash differently")
	}
	if HashParts("v1", "Age") != HashParts("v1", "Age") {
		t.Error("hash must be stable")
	}
	if got := HashParts("v1"); len(got) != 32 {
		t.Errorf("expected 32 hex chars, got %q", got)
	}
}
