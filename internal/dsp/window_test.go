package dsp

import (
	"math"
	"testing"
)

func TestHamming(t *testing.T) {
	win := Hamming(4)
	expected := []float64{0.08, 0.77, 0.77, 0.08}
	if len(win) != len(expected) {
		t.Fatalf("unexpected length: %d", len(win))
	}
	for i := range expected {
		if math.Abs(win[i]-expected[i]) > 1e-6 {
			t.Fatalf("index %d expected %.2f got %.6f", i, expected[i], win[i])
		}
	}
}

func TestApply(t *testing.T) {
	samples := []float32{1, 2}
	win := []float64{0.5, 0.25}
	out := Apply(win, samples)
	if len(out) != 2 {
		t.Fatalf("length mismatch")
	}
	if out[0] != 0.5 || out[1] != 0.5 {
		t.Fatalf("unexpected values %v", out)
	}
	if len(Apply([]float64{1}, samples)) != 0 {
		t.Fatalf("expected empty slice when lengths differ")
	}
}
