package hcfft

// Shuffle rearranges a real-to-complex "half-complex" (HC) spectrum of size N
// (DC at index 0, Nyquist at N/2, Re(bin k) at index k, Im(bin k) at index
// N-k) into the SIMD-friendly layout the convolution engine's kernel.CMACHalfComplex
// consumes: consecutive groups of four real coefficients followed by the four
// matching imaginary coefficients, with DC and Nyquist co-located in the
// first group.
//
// dst and src must both have length N; N must be a power of two >= 8.
// Shuffle does not alias-check dst and src: pass distinct backing arrays.
func Shuffle(dst, src []float32, n int) {
	dst[0] = src[0]
	dst[1] = src[1]
	dst[2] = src[2]
	dst[3] = src[3]
	dst[4] = src[n/2]
	dst[5] = src[n-1]
	dst[6] = src[n-2]
	dst[7] = src[n-3]

	for si := 4; si <= n/2-4; si += 4 {
		di := si * 2
		dst[di+0] = src[si+0]
		dst[di+1] = src[si+1]
		dst[di+2] = src[si+2]
		dst[di+3] = src[si+3]
		dst[di+4] = src[n-si]
		dst[di+5] = src[n-si-1]
		dst[di+6] = src[n-si-2]
		dst[di+7] = src[n-si-3]
	}
}

// Unshuffle is the exact inverse of Shuffle: it restores the standard
// half-complex layout from the SIMD-friendly shuffled layout.
func Unshuffle(dst, src []float32, n int) {
	dst[0] = src[0]
	dst[1] = src[1]
	dst[2] = src[2]
	dst[3] = src[3]
	dst[n/2] = src[4]
	dst[n-1] = src[5]
	dst[n-2] = src[6]
	dst[n-3] = src[7]

	for si := 4; si <= n/2-4; si += 4 {
		di := si * 2
		dst[si+0] = src[di+0]
		dst[si+1] = src[di+1]
		dst[si+2] = src[di+2]
		dst[si+3] = src[di+3]
		dst[n-si] = src[di+4]
		dst[n-si-1] = src[di+5]
		dst[n-si-2] = src[di+6]
		dst[n-si-3] = src[di+7]
	}
}
