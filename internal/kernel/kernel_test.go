package kernel

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-convolve/internal/cpu"
)

func approxEqual(a, b, eps float32) bool {
	return math.Abs(float64(a-b)) <= float64(eps)
}

func TestMixScalarAndUnrolledAgree(t *testing.T) {
	n := 32
	src := make([]float32, n)
	for i := range src {
		src[i] = float32(i) * 0.5
	}

	dstScalar := make([]float32, n)
	dstUnrolled := make([]float32, n)
	for i := range dstScalar {
		dstScalar[i] = float32(i)
		dstUnrolled[i] = float32(i)
	}

	mixScalar(dstScalar, src, n)
	mixUnrolled(dstUnrolled, src, n)

	for i := range dstScalar {
		if !approxEqual(dstScalar[i], dstUnrolled[i], 1e-6) {
			t.Fatalf("mix mismatch at %d: scalar=%v unrolled=%v", i, dstScalar[i], dstUnrolled[i])
		}
	}
}

func TestMixDispatch(t *testing.T) {
	cpu.SetForcedFeatures(cpu.Features{})
	defer cpu.ResetDetection()

	dst := []float32{1, 2, 3, 4, 5, 6, 7, 8}
	src := []float32{1, 1, 1, 1, 1, 1, 1, 1}
	Mix(dst, src, len(dst))
	for i, v := range dst {
		want := float32(i+1) + 1
		if !approxEqual(v, want, 1e-6) {
			t.Fatalf("Mix[%d] = %v, want %v", i, v, want)
		}
	}
}

// regularBin returns the complex value at a non-DC/Nyquist lane: group g,
// lane l in [0,3], logical bin index 4*g+l (valid for g>0, or g==0 && l>0).
func regularBin(buf []float32, g, l int) complex64 {
	base := g * 8
	return complex(buf[base+l], buf[base+4+l])
}

func setRegularBin(buf []float32, g, l int, v complex64) {
	base := g * 8
	buf[base+l] = real(v)
	buf[base+4+l] = imag(v)
}

// TestCMACHalfComplexMatchesComplexArithmetic checks the regular (non-DC,
// non-Nyquist) lanes behave as elementwise complex multiply-accumulate, and
// that the DC/Nyquist slots (index 0 and 4) receive only the real update.
func TestCMACHalfComplexMatchesComplexArithmetic(t *testing.T) {
	const numGroups = 2
	const n = numGroups * 8
	a := make([]float32, n)
	b := make([]float32, n)
	dst := make([]float32, n)

	type wantEntry struct {
		g, l int
		want complex64
	}
	var wants []wantEntry

	val := 1
	next := func() float32 {
		v := float32(val)
		val++
		return v
	}

	for g := 0; g < numGroups; g++ {
		startLane := 0
		if g == 0 {
			startLane = 1 // lane 0 of group 0 is DC/Nyquist, handled separately
		}
		for l := startLane; l < 4; l++ {
			av := complex(next(), next())
			bv := complex(next(), next())
			dv := complex(next(), next())
			setRegularBin(a, g, l, av)
			setRegularBin(b, g, l, bv)
			setRegularBin(dst, g, l, dv)
			wants = append(wants, wantEntry{g, l, dv + av*bv})
		}
	}

	// DC and Nyquist: purely real scalars.
	a[0], b[0], dst[0] = 2, 3, 5
	a[4], b[4], dst[4] = 4, 5, 1
	wantDC := float32(5 + 2*3)
	wantNyquist := float32(1 + 4*5)

	CMACHalfComplex(dst, a, b, n)

	if !approxEqual(dst[0], wantDC, 1e-4) {
		t.Fatalf("DC: got %v want %v", dst[0], wantDC)
	}
	if !approxEqual(dst[4], wantNyquist, 1e-4) {
		t.Fatalf("Nyquist: got %v want %v", dst[4], wantNyquist)
	}

	for _, w := range wants {
		got := regularBin(dst, w.g, w.l)
		if !approxEqual(real(got), real(w.want), 1e-3) || !approxEqual(imag(got), imag(w.want), 1e-3) {
			t.Fatalf("bin (g=%d,l=%d): got %v want %v", w.g, w.l, got, w.want)
		}
	}
}

func TestCMACHalfComplexPanicsOnBadLength(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for non-multiple-of-8 length")
		}
	}()
	buf := make([]float32, 9)
	CMACHalfComplex(buf, buf, buf, 9)
}
