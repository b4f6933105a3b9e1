package samplebuf

import "testing"

func TestRingAppendAndSample(t *testing.T) {
	r := New(2, 8)

	r.Append(0, []float32{1, 2, 3})
	r.Append(1, []float32{10, 20})

	if got := r.Sample(0, 0); got != 1 {
		t.Errorf("channel 0 pos 0: got %g, want 1", got)
	}
	if got := r.Sample(0, 2); got != 3 {
		t.Errorf("channel 0 pos 2: got %g, want 3", got)
	}
	if got := r.Sample(1, 1); got != 20 {
		t.Errorf("channel 1 pos 1: got %g, want 20", got)
	}

	// Channels advance independently.
	if lo, hi := r.ValidRange(0); lo != 0 || hi != 3 {
		t.Errorf("channel 0 range: got [%d, %d), want [0, 3)", lo, hi)
	}
	if lo, hi := r.ValidRange(1); lo != 0 || hi != 2 {
		t.Errorf("channel 1 range: got [%d, %d), want [0, 2)", lo, hi)
	}
}

func TestRingWraps(t *testing.T) {
	r := New(1, 4)
	r.Append(0, []float32{1, 2, 3, 4, 5, 6})

	lo, hi := r.ValidRange(0)
	if lo != 2 || hi != 6 {
		t.Fatalf("range: got [%d, %d), want [2, 6)", lo, hi)
	}

	// Positions 0 and 1 were overwritten.
	if got := r.Sample(0, 0); got != 0 {
		t.Errorf("overwritten position: got %g, want 0", got)
	}
	for pos := 2; pos < 6; pos++ {
		if got := r.Sample(0, pos); got != float32(pos+1) {
			t.Errorf("pos %d: got %g, want %d", pos, got, pos+1)
		}
	}
	if got := r.Sample(0, 6); got != 0 {
		t.Errorf("future position: got %g, want 0", got)
	}
}

func TestRingOutOfRangeChannel(t *testing.T) {
	r := New(1, 4)
	r.Append(5, []float32{1})
	r.Append(-1, []float32{1})
	if got := r.Sample(5, 0); got != 0 {
		t.Errorf("bad channel sample: got %g, want 0", got)
	}
	if lo, hi := r.ValidRange(5); lo != 0 || hi != 0 {
		t.Errorf("bad channel range: got [%d, %d), want [0, 0)", lo, hi)
	}
}

func TestRingClampsArguments(t *testing.T) {
	r := New(0, -3)
	if r.Channels() != 1 || r.Capacity() != 1 {
		t.Errorf("got %d channels cap %d, want 1/1", r.Channels(), r.Capacity())
	}
}
