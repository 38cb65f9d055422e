package xid

import (
	"strings"
	"testing"
)

func TestNewCarriesPrefix(t *testing.T) {
	id := New("mut")
	if !strings.HasPrefix(id, "mut-") {
		t.Fatalf("expected mut- prefix, got %s", id)
	}
	if id == New("mut") {
		t.Fatal("expected distinct ids")
	}
}

func TestTempStrictlyIncreasing(t *testing.T) {
	prev := Temp()
	for i := 0; i < 1000; i++ {
		next := Temp()
		if next <= prev {
			t.Fatalf("expected strictly increasing ids, got %d after %d", next, prev)
		}
		prev = next
	}
}
