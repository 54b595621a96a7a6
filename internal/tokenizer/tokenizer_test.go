package tokenizer

import "testing"

func TestCount(t *testing.T) {
	tests := []struct {
		name string
		in   string
		min  int
		max  int
	}{
		{"empty", "", 0, 0},
		{"single word", "hello", 1, 1},
		{"long identifier", "veryLongIdentifierName", 3, 8},
		{"sentence", "the quick brown fox jumps", 5, 10},
		{"punctuation", "a.b.c", 2, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Count(tt.in)
			if got < tt.min || got > tt.max {
				t.Errorf("Count(%q) = %d, want in [%d, %d]", tt.in, got, tt.min, tt.max)
			}
		})
	}
}

func TestCountMonotonic(t *testing.T) {
	short := Count("hello")
	long := Count("hello world this is a much longer piece of text with many words")
	if long <= short {
		t.Errorf("expected longer text to have more tokens: short=%d long=%d", short, long)
	}
}

func TestCountBytes(t *testing.T) {
	if got := CountBytes(0); got != 0 {
		t.Errorf("CountBytes(0) = %d, want 0", got)
	}
	if got := CountBytes(4); got != 1 {
		t.Errorf("CountBytes(4) = %d, want 1", got)
	}
	if got := CountBytes(1); got != 1 {
		t.Errorf("CountBytes(1) = %d, want 1 (min one token)", got)
	}
}
