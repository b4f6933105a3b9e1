package dsp

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// BandPower estimates the mean squared spectral amplitude of samples
// inside the [lo, hi] frequency band in Hz. The signal is Hamming
// windowed, transformed with a real FFT and normalized by the window sum.
func BandPower(samples []float32, rate, lo, hi float64) float64 {
	n := len(samples)
	if n < 2 || rate <= 0 || hi < lo {
		return 0
	}
	win := Hamming(n)
	seq := Apply(win, samples)
	sumWin := 0.0
	for _, v := range win {
		sumWin += v
	}
	if sumWin == 0 {
		return 0
	}

	coeffs := fourier.NewFFT(n).Coefficients(nil, seq)
	power := 0.0
	for i, c := range coeffs {
		f := float64(i) * rate / float64(n)
		if f < lo || f > hi {
			continue
		}
		mag := cmplx.Abs(c) / sumWin
		power += mag * mag
	}
	return power
}
