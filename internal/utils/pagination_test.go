package utils

import "testing"

func TestAtoiDefault(t *testing.T) {
	if got := AtoiDefault("", 7); got != 7 {
		t.Fatalf("empty -> %d, want 7", got)
	}
	if got := AtoiDefault("12", 7); got != 12 {
		t.Fatalf("12 -> %d", got)
	}
	if got := AtoiDefault("x", 7); got != 7 {
		t.Fatalf("unparseable -> %d, want 7", got)
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp(0, 1, 100); got != 1 {
		t.Fatalf("below -> %d", got)
	}
	if got := Clamp(200, 1, 100); got != 100 {
		t.Fatalf("above -> %d", got)
	}
	if got := Clamp(50, 1, 100); got != 50 {
		t.Fatalf("within -> %d", got)
	}
}
