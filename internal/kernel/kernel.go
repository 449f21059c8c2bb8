// Package kernel implements the per-sample DSP primitives the convolution
// engine runs in its innermost loop: block mixing and the complex
// multiply-accumulate over the shuffled half-complex spectrum layout used by
// hcfft.FFT.
//
// CMACHalfComplex operates on lengths that are multiples of 8 (cmac_hc's
// packed group size); Mix accepts any length. Both dispatch between a scalar
// loop and an unrolled loop (8 lanes for CMACHalfComplex, 4 for Mix) based
// on detected CPU features via cpu.HasAVX2()/cpu.HasNEON(). No Go assembly
// is included here (see DESIGN.md): both branches are plain Go, the "SIMD"
// branch expressed as explicit 8-wide unrolling rather than hardware
// intrinsics.
package kernel

import (
	"fmt"

	"github.com/cwbudde/algo-convolve/internal/cpu"
)

// ErrInvalidLength is the panic value CMACHalfComplex uses when its length is
// not a positive multiple of the kernel's lane width.
var ErrInvalidLength = fmt.Errorf("kernel: length must be a positive multiple of 8")

// Mix adds src into dst element-wise: dst[i] += src[i] for i in [0, n).
// len(dst) and len(src) must both be >= n.
func Mix(dst, src []float32, n int) {
	if n == 0 {
		return
	}
	if cpu.HasAVX2() || cpu.HasNEON() {
		mixUnrolled(dst, src, n)
		return
	}
	mixScalar(dst, src, n)
}

func mixScalar(dst, src []float32, n int) {
	for i := 0; i < n; i++ {
		dst[i] += src[i]
	}
}

// mixUnrolled is functionally identical to mixScalar; it is laid out in
// 4-wide groups so the compiler can autovectorize it on platforms where
// algo-fft's shuffled layout keeps data 16-byte aligned.
func mixUnrolled(dst, src []float32, n int) {
	i := 0
	for ; i+4 <= n; i += 4 {
		dst[i+0] += src[i+0]
		dst[i+1] += src[i+1]
		dst[i+2] += src[i+2]
		dst[i+3] += src[i+3]
	}
	for ; i < n; i++ {
		dst[i] += src[i]
	}
}

// CMACHalfComplex performs an elementwise complex multiply-accumulate of a
// and b into dst, all three in the shuffled half-complex layout produced by
// hcfft.Shuffle: groups of four real coefficients followed by the four
// matching imaginary coefficients, with DC and Nyquist co-located in the
// first group's slots 0 and 4.
//
// n must be a positive multiple of 8; CMACHalfComplex panics otherwise
// (programmer error per spec §7 — not a runtime condition a caller should
// need to recover from).
func CMACHalfComplex(dst, a, b []float32, n int) {
	if n <= 0 || n%8 != 0 {
		panic(ErrInvalidLength)
	}

	d0, d4 := dst[0], dst[4]

	if cpu.HasAVX2() || cpu.HasNEON() {
		cmacHCUnrolled(dst, a, b, n)
	} else {
		cmacHCScalar(dst, a, b, n)
	}

	// DC and Nyquist are purely real; the group-wise complex update above
	// would otherwise cross-contaminate them with imaginary cross terms.
	dst[0] = d0 + a[0]*b[0]
	dst[4] = d4 + a[4]*b[4]
}

func cmacHCScalar(dst, a, b []float32, n int) {
	for i := 0; i < n; i += 8 {
		for k := 0; k < 4; k++ {
			re := i + k
			im := i + 4 + k
			dst[re] += a[re]*b[re] - a[im]*b[im]
			dst[im] += a[re]*b[im] + a[im]*b[re]
		}
	}
}

// cmacHCUnrolled is the same computation as cmacHCScalar with the k-loop
// fully unrolled to a straight-line 8-lane group, matching the shuffled
// layout's SIMD-friendly grouping.
func cmacHCUnrolled(dst, a, b []float32, n int) {
	for i := 0; i < n; i += 8 {
		ar0, ar1, ar2, ar3 := a[i+0], a[i+1], a[i+2], a[i+3]
		ai0, ai1, ai2, ai3 := a[i+4], a[i+5], a[i+6], a[i+7]
		br0, br1, br2, br3 := b[i+0], b[i+1], b[i+2], b[i+3]
		bi0, bi1, bi2, bi3 := b[i+4], b[i+5], b[i+6], b[i+7]

		dst[i+0] += ar0*br0 - ai0*bi0
		dst[i+1] += ar1*br1 - ai1*bi1
		dst[i+2] += ar2*br2 - ai2*bi2
		dst[i+3] += ar3*br3 - ai3*bi3

		dst[i+4] += ar0*bi0 + ai0*br0
		dst[i+5] += ar1*bi1 + ai1*br1
		dst[i+6] += ar2*bi2 + ai2*br2
		dst[i+7] += ar3*bi3 + ai3*br3
	}
}
