package util

import "testing"

func TestBlake3HashHex(t *testing.T) {
	a := Blake3HashHex([]byte("hello\n"))
	b := Blake3HashHex([]byte("hello\n"))
	if a != b {
		t.Errorf("digest not stable: %q vs %q", a, b)
	}
	if len(a) != 64 {
		t.Errorf("digest length = %d, want 64 hex chars", len(a))
	}
	if a == Blake3HashHex([]byte("other")) {
		t.Error("distinct content collided")
	}
}
