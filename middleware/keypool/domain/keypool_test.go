package domain

import (
	"strings"
	"testing"
)

func TestKeyID_StableShortAndOpaque(t *testing.T) {
	k := Key("sk-super-secret-token")

	id := k.ID()
	if len(id) != 8 {
		t.Fatalf("expected 8-char id, got %q", id)
	}
	if id != k.ID() {
		t.Fatalf("expected stable id, got %q then %q", id, k.ID())
	}
	// o id nunca pode vazar o segredo
	if strings.Contains(string(k), id) {
		t.Fatalf("id %q must not be a substring of the key", id)
	}

	if Key("other-key").ID() == id {
		t.Fatalf("expected different keys to have different ids")
	}
}
