package models

import (
	"errors"
	"testing"
)

func TestParseKindsEmptyMeansAll(t *testing.T) {
	t.Parallel()
	kinds, err := ParseKinds(nil)
	if err != nil {
		t.Fatalf("ParseKinds(nil): %v", err)
	}
	want := AllKinds()
	if len(kinds) != len(want) {
		t.Fatalf("expected %d kinds got %d", len(want), len(kinds))
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("position %d: expected %s got %s", i, want[i], kinds[i])
		}
	}
}

func TestParseKindsPreservesRequestOrder(t *testing.T) {
	t.Parallel()
	kinds, err := ParseKinds([]string{"reddit", "Web", "NEWS"})
	if err != nil {
		t.Fatalf("ParseKinds: %v", err)
	}
	want := []SourceKind{KindReddit, KindWeb, KindNews}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("position %d: expected %s got %s", i, want[i], kinds[i])
		}
	}
}

func TestParseKindsDeduplicates(t *testing.T) {
	t.Parallel()
	kinds, err := ParseKinds([]string{"web", "Web", "web"})
	if err != nil {
		t.Fatalf("ParseKinds: %v", err)
	}
	if len(kinds) != 1 || kinds[0] != KindWeb {
		t.Fatalf("expected [Web] got %v", kinds)
	}
}

func TestParseKindsRejectsUnknown(t *testing.T) {
	t.Parallel()
	_, err := ParseKinds([]string{"web", "myspace"})
	if err == nil {
		t.Fatalf("expected error for unknown kind")
	}
	if !errors.Is(err, ErrInvalidFilter) {
		t.Fatalf("expected ErrInvalidFilter got %v", err)
	}
}
