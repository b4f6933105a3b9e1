package dsp

// DetectCrossings returns the sample indices where the signal crosses the
// threshold in the negative-going direction. After each detection the
// following refractory samples are skipped so one transient cannot
// trigger twice.
func DetectCrossings(samples []float32, threshold float32, refractory int) []int {
	if refractory < 1 {
		refractory = 1
	}
	var out []int
	for i := 1; i < len(samples); i++ {
		if samples[i-1] >= threshold && samples[i] < threshold {
			out = append(out, i)
			i += refractory - 1
		}
	}
	return out
}
