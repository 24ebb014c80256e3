package embedder

import (
	"math"
	"testing"
)

func TestDeterministicProviderIsDeterministic(t *testing.T) {
	p1 := NewDeterministicProvider(32, true, 0)
	p2 := NewDeterministicProvider(32, true, 0)

	v1, err := p1.Embed("hello world")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	v2, err := p2.Embed("hello world")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	for i := range v1 {
		if v1[i] != v2[i] {
			t.Fatalf("expected identical embeddings, diverged at index %d: %f != %f", i, v1[i], v2[i])
		}
	}
}

func TestDeterministicProviderDifferentSeedsDiverge(t *testing.T) {
	p1 := NewDeterministicProvider(32, false, 1)
	p2 := NewDeterministicProvider(32, false, 2)

	v1, _ := p1.Embed("hello world")
	v2, _ := p2.Embed("hello world")

	same := true
	for i := range v1 {
		if v1[i] != v2[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("expected different seeds to produce different embeddings")
	}
}

func TestDeterministicProviderEmptyTextIsZeroVector(t *testing.T) {
	p := NewDeterministicProvider(16, true, 0)

	vec, err := p.Embed("")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	for _, x := range vec {
		if x != 0 {
			t.Errorf("expected zero vector for empty text, got %v", vec)
			break
		}
	}
}

func TestDeterministicProviderNormalizesToUnitLength(t *testing.T) {
	p := NewDeterministicProvider(16, true, 0)

	vec, err := p.Embed("a reasonably long piece of text to embed")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	var sum float64
	for _, x := range vec {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if math.Abs(norm-1.0) > 1e-4 {
		t.Errorf("expected unit-length vector, got norm %f", norm)
	}
}

func TestDeterministicProviderDefaultsDimensions(t *testing.T) {
	p := NewDeterministicProvider(0, false, 0)
	if p.Dimensions() != 384 {
		t.Errorf("expected default dimensions 384, got %d", p.Dimensions())
	}
}

func TestEmbedderSerializesProviderCalls(t *testing.T) {
	e := New(NewDeterministicProvider(8, false, 0))

	vec, err := e.Embed("concurrent safety")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vec) != 8 {
		t.Errorf("expected 8-dim vector, got %d", len(vec))
	}
	if e.Dimensions() != 8 {
		t.Errorf("expected Dimensions() 8, got %d", e.Dimensions())
	}
}

func TestEmbedBatchMatchesIndividualEmbeds(t *testing.T) {
	e := New(NewDeterministicProvider(16, true, 0))

	texts := []string{"one", "two", "three"}
	batch, err := e.EmbedBatch(texts)
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if len(batch) != len(texts) {
		t.Fatalf("expected %d vectors, got %d", len(texts), len(batch))
	}
	for i, text := range texts {
		single, err := e.Embed(text)
		if err != nil {
			t.Fatalf("Embed failed: %v", err)
		}
		for j := range single {
			if single[j] != batch[i][j] {
				t.Errorf("batch[%d] diverges from individual Embed at index %d", i, j)
				break
			}
		}
	}
}
