package embedding

import (
	"errors"
	"math"
	"testing"
)

func TestCosineSimilarity_Symmetric(t *testing.T) {
	pairs := [][2][]float32{
		{{1, 2, 3}, {4, 5, 6}},
		{{0.9, 0.1}, {1, 0}},
		{{-1, 0.5, 2}, {3, -2, 0.25}},
	}
	for _, p := range pairs {
		ab, err := CosineSimilarity(p[0], p[1])
		if err != nil {
			t.Fatal(err)
		}
		ba, err := CosineSimilarity(p[1], p[0])
		if err != nil {
			t.Fatal(err)
		}
		if ab != ba {
			t.Errorf("expected symmetric similarity, got %f and %f", ab, ba)
		}
		if ab < -1-1e-9 || ab > 1+1e-9 {
			t.Errorf("similarity out of range: %f", ab)
		}
	}
}

func TestCosineSimilarity_Self(t *testing.T) {
	v := []float32{0.3, -0.7, 2.5, 1}
	sim, err := CosineSimilarity(v, v)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(sim-1) > 1e-9 {
		t.Errorf("expected ~1, got %f", sim)
	}
}

func TestCosineSimilarity_Orthogonal(t *testing.T) {
	sim, err := CosineSimilarity([]float32{1, 0}, []float32{0, 1})
	if err != nil {
		t.Fatal(err)
	}
	if sim != 0 {
		t.Errorf("expected 0, got %f", sim)
	}
}

func TestCosineSimilarity_DimensionMismatch(t *testing.T) {
	_, err := CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestCosineSimilarity_ZeroVector(t *testing.T) {
	sim, err := CosineSimilarity([]float32{0, 0}, []float32{1, 0})
	if err != nil {
		t.Fatal(err)
	}
	if !math.IsNaN(sim) {
		t.Errorf("expected NaN for zero vector, got %f", sim)
	}
}
