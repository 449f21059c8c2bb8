package convolver

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-convolve/hcfft"
	"github.com/cwbudde/algo-convolve/partition"
)

func approxEqual(a, b, eps float32) bool {
	return math.Abs(float64(a-b)) <= float64(eps)
}

func newTestModule(t *testing.T, offset, size, count int) partition.Module {
	t.Helper()
	fft, err := hcfft.Get(ceilLog2(size), true)
	if err != nil {
		t.Fatalf("hcfft.Get: %v", err)
	}
	return partition.Module{Offset: offset, Size: size, Count: count, FFT: fft}
}

func ceilLog2(n int) int {
	l := 0
	for 1<<l < n {
		l++
	}
	return l
}

func TestZeroKernelYieldsZeroOutput(t *testing.T) {
	m := newTestModule(t, 0, 64, 1)
	cv, err := New(1, 64, m, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	silence := [][]float32{make([]float32, 64)}
	if err := cv.SetKernel(silence, 1); err != nil {
		t.Fatalf("SetKernel: %v", err)
	}

	src := [][]float32{make([]float32, 64)}
	for i := range src[0] {
		src[0][i] = float32(i%7) - 3
	}
	cv.PushInput(src, 64)
	if err := cv.Compute(0); err != nil {
		t.Fatalf("Compute: %v", err)
	}

	dst := [][]float32{make([]float32, 64)}
	cv.PullOutput(dst, 64)
	for i, v := range dst[0] {
		if !approxEqual(v, 0, 1e-4) {
			t.Fatalf("dst[%d] = %v, want 0 for zero kernel", i, v)
		}
	}
}

func TestPullOutputAssignsWhenIROffsetZero(t *testing.T) {
	m := newTestModule(t, 0, 64, 1)
	cv, err := New(1, 64, m, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ring := cv.outputRing.Channel(0)
	for i := range ring {
		ring[i] = float32(i + 1)
	}

	dst := [][]float32{{100, 100, 100, 100}}
	cv.PullOutput(dst, 4)
	want := []float32{1, 2, 3, 4}
	for i, v := range dst[0] {
		if v != want[i] {
			t.Fatalf("dst[%d] = %v, want %v (assign, not mix)", i, v, want[i])
		}
	}
}

func TestPullOutputMixesWhenIROffsetNonzero(t *testing.T) {
	m := newTestModule(t, 256, 64, 2)
	cv, err := New(1, 64, m, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ring := cv.outputRing.Channel(0)
	for i := range ring {
		ring[i] = float32(i + 1)
	}
	cv.outputReadPos = 0

	dst := [][]float32{{100, 100, 100, 100}}
	cv.PullOutput(dst, 4)
	want := []float32{101, 102, 103, 104}
	for i, v := range dst[0] {
		if v != want[i] {
			t.Fatalf("dst[%d] = %v, want %v (mix with existing contents)", i, v, want[i])
		}
	}
}

func TestPushInputCompletesPartitionBoundary(t *testing.T) {
	m := newTestModule(t, 0, 128, 1)
	cv, err := New(1, 64, m, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if cv.NumBins() != 2 {
		t.Fatalf("NumBins() = %d, want 2", cv.NumBins())
	}

	src := [][]float32{make([]float32, 64)}
	cv.PushInput(src, 64)
	if cv.pushCount != 1 {
		t.Fatalf("pushCount = %d, want 1 after first of 2 bins", cv.pushCount)
	}
	cv.PushInput(src, 64)
	if cv.pushCount != 0 {
		t.Fatalf("pushCount = %d, want 0 reset after partition boundary", cv.pushCount)
	}
	// Total advance per period = fftSize = 2*partitionSize = 256.
	if cv.inputWritePos != 256%cv.inputRing.NumFrames() {
		t.Fatalf("inputWritePos = %d, want %d", cv.inputWritePos, 256%cv.inputRing.NumFrames())
	}
}

func TestNewRejectsNonDivisibleBinSize(t *testing.T) {
	m := newTestModule(t, 0, 100, 1)
	if _, err := New(1, 64, m, 0); err == nil {
		t.Fatal("expected error when binSize does not evenly divide module size")
	}
}

func TestComputeSchedulingNumBinsOne(t *testing.T) {
	m := newTestModule(t, 0, 64, 1)
	cv, err := New(1, 64, m, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// With numBins==1 the predicate is unconditionally true every call.
	for bi := 0; bi < 4; bi++ {
		if err := cv.Compute(bi); err != nil {
			t.Fatalf("Compute(%d): %v", bi, err)
		}
	}
}
