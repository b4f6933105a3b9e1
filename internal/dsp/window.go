package dsp

import "math"

// Hamming returns a Hamming window of length n.
// If n is zero or negative, an empty slice is returned.
func Hamming(n int) []float64 {
	if n <= 0 {
		return []float64{}
	}
	win := make([]float64, n)
	for i := 0; i < n; i++ {
		win[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return win
}

// Apply multiplies the input samples with the provided window.
// The window length must match the input length.
func Apply(window []float64, samples []float32) []float64 {
	if len(samples) != len(window) {
		return []float64{}
	}
	out := make([]float64, len(samples))
	for i, v := range samples {
		out[i] = float64(v) * window[i]
	}
	return out
}
