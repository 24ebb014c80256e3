package embedder

import "testing"

func TestEstimateTokens(t *testing.T) {
	cases := []struct {
		text string
		want uint32
	}{
		{"", 0},
		{"abcd", 1},
		{"abcdefgh", 2},
		{"abcdefghijk", 2},
	}
	for _, c := range cases {
		got := EstimateTokens(c.text)
		if got != c.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", c.text, got, c.want)
		}
	}
}

func TestTokenCounterNeverFails(t *testing.T) {
	c := NewTokenCounter()

	// Whether or not the BPE encoding loaded, Count must return a usable
	// value rather than erroring.
	n := c.Count("the quick brown fox jumps over the lazy dog")
	if n == 0 {
		t.Error("expected a nonzero token count for non-empty text")
	}
}

func TestTokenCounterEmptyText(t *testing.T) {
	c := NewTokenCounter()
	if n := c.Count(""); n != 0 {
		t.Errorf("expected 0 tokens for empty text, got %d", n)
	}
}
