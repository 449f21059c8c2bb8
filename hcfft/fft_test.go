package hcfft

import (
	"math"
	"testing"
)

func approxEqual(a, b, eps float32) bool {
	return math.Abs(float64(a-b)) <= float64(eps)
}

func TestForwardInverseRoundTrip(t *testing.T) {
	f, err := New(6) // size = 128
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	n := f.Size()
	src := make([]float32, n)
	for i := range src {
		src[i] = float32(math.Sin(float64(i) * 0.3))
	}

	work := make([]complex64, f.WorkSize())
	hc := make([]float32, n)
	if err := f.Forward(hc, src, work); err != nil {
		t.Fatalf("Forward: %v", err)
	}

	back := make([]float32, n)
	if err := f.Inverse(back, hc, work); err != nil {
		t.Fatalf("Inverse: %v", err)
	}

	for i := range src {
		if !approxEqual(src[i], back[i], 1e-3) {
			t.Fatalf("round trip mismatch at %d: got %v want %v", i, back[i], src[i])
		}
	}
}

func TestForwardDCAndNyquist(t *testing.T) {
	f, err := New(3) // size = 16
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	n := f.Size()
	src := make([]float32, n)
	for i := range src {
		src[i] = 1
	}

	work := make([]complex64, f.WorkSize())
	hc := make([]float32, n)
	if err := f.Forward(hc, src, work); err != nil {
		t.Fatalf("Forward: %v", err)
	}

	// A constant signal has all its energy at DC; Nyquist and every other bin
	// should be ~0.
	if !approxEqual(hc[0], float32(n), 1e-3) {
		t.Fatalf("DC = %v, want %v", hc[0], n)
	}
	if !approxEqual(hc[n/2], 0, 1e-3) {
		t.Fatalf("Nyquist = %v, want 0", hc[n/2])
	}
}

func TestNewRejectsOutOfRangeLogSize(t *testing.T) {
	if _, err := New(-1); err == nil {
		t.Fatal("expected error for negative logSize")
	}
	if _, err := New(MaxLogSize + 1); err == nil {
		t.Fatal("expected error for logSize beyond MaxLogSize")
	}
}
