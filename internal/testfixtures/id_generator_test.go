package testfixtures

import "testing"

func TestIDGeneratorProducesSequentialIDs(t *testing.T) {
	gen := NewIDGenerator("meeting")

	if peek := gen.Peek(); peek != "meeting-1" {
		t.Fatalf("expected meeting-1 from Peek, got %q", peek)
	}
	first := gen.Next()
	second := gen.NextFunc()()

	if first != "meeting-1" || second != "meeting-2" {
		t.Fatalf("unexpected identifiers: %q, %q", first, second)
	}
}

func TestIDGeneratorReset(t *testing.T) {
	gen := NewIDGenerator("")
	_ = gen.Next()

	gen.Reset("")
	if next := gen.Next(); next != "id-1" {
		t.Fatalf("expected id-1 after reset, got %q", next)
	}

	gen.Reset("mtg")
	if next := gen.Next(); next != "mtg-1" {
		t.Fatalf("expected mtg-1 after reset, got %q", next)
	}
}
