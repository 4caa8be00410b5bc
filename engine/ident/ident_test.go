package ident

import "testing"

func TestFNV1aBytes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int32
	}{
		{"null string hashes to 0", "", 0},
		{"stable for a given input", "hello", FNV1aBytes("hello")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FNV1aBytes(tt.in); got != tt.want {
				t.Errorf("FNV1aBytes(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestFNV1aBytesKnownVector(t *testing.T) {
	// Independently computed 32-bit FNV-1a of "a" (offset 0x811c9dc5, prime
	// 0x01000193): h = (0x811c9dc5 ^ 'a') * 0x01000193, truncated to uint32.
	got := FNV1aBytes("a")
	want := uint32(0xe40c292c)
	if uint32(got) != want {
		t.Errorf("FNV1aBytes(%q) = %#x, want %#x", "a", uint32(got), want)
	}
}

func TestCombineEmpty(t *testing.T) {
	if got := Combine(); got != 0 {
		t.Errorf("Combine() = %d, want 0", got)
	}
}

func TestCombineDeterministic(t *testing.T) {
	a := Combine(1, 2, 3)
	b := Combine(1, 2, 3)
	if a != b {
		t.Errorf("Combine(1,2,3) not stable across calls: %d vs %d", a, b)
	}
	if Combine(1, 2, 3) == Combine(3, 2, 1) {
		t.Error("Combine should be order-sensitive")
	}
}

func TestMethodTokenStability(t *testing.T) {
	a := MethodToken("T", "M", "int", "string")
	b := MethodToken("T", "M", "int", "string")
	if a != b {
		t.Errorf("MethodToken not stable across independent calls: %d vs %d", a, b)
	}
	c := MethodToken("T", "M", "string", "int")
	if a == c {
		t.Error("MethodToken should be sensitive to parameter order")
	}
}

func TestMethodTokenDistinguishesMethods(t *testing.T) {
	a := MethodToken("T", "M")
	b := MethodToken("T", "N")
	c := MethodToken("U", "M")
	if a == b || a == c || b == c {
		t.Errorf("expected distinct tokens, got a=%d b=%d c=%d", a, b, c)
	}
}
