package infra

import (
	"testing"
	"time"
)

func TestBucketStore_BurstUpToLimitThenRejects(t *testing.T) {
	// janela longa: o refil dentro do teste é desprezível
	s := NewBucketStore([]string{"k"}, 3, time.Hour)

	for i := 0; i < 3; i++ {
		if !s.Admit("k") {
			t.Fatalf("expected admit %d to be true", i+1)
		}
	}
	if s.Admit("k") {
		t.Fatalf("expected admit past burst to be false")
	}
}

func TestBucketStore_UnknownKeyFailsClosed(t *testing.T) {
	s := NewBucketStore([]string{"a"}, 3, time.Minute)

	if s.Admit("intruder") {
		t.Fatalf("expected unknown key to be rejected")
	}
}
