// Package hcfft implements the engine's real-valued, half-complex (HC) FFT
// abstraction (spec component 1): a forward real→HC transform and its
// inverse, plus the SIMD-friendly shuffled HC layout the convolution kernel
// operates on (see Shuffle/Unshuffle).
//
// It is a thin wrapper over github.com/cwbudde/algo-fft's generic complex
// Plan. The complex buffer the underlying plan operates on is real-packed
// (imaginary part zero) going in and read back as a standard HC array
// coming out, the usual packReal/unpackReal convention around algofft.Plan.
package hcfft

import (
	"fmt"
	"sync"

	algofft "github.com/cwbudde/algo-fft"
)

// MaxLogSize bounds the cached plan sizes at 2*2^16 = 131072 samples, per
// spec §3 (kMaxLogSize = 16).
const MaxLogSize = 16

// FFT is a real↔half-complex transform of a fixed size N = 2 * 2^logSize.
// An FFT is immutable after construction and safe for concurrent use by
// multiple callers operating on distinct buffers (the underlying algofft
// plan carries no per-call mutable state beyond its own internal twiddle
// tables, which are read-only after planning).
type FFT struct {
	logSize int
	size    int // N
	norm    float32
	plan    *algofft.Plan[complex64]
}

// New creates an FFT for the given log-size (size = 2*2^logSize).
// logSize must be in [0, MaxLogSize].
func New(logSize int) (*FFT, error) {
	if logSize < 0 || logSize > MaxLogSize {
		return nil, fmt.Errorf("hcfft: logSize %d out of range [0,%d]", logSize, MaxLogSize)
	}

	size := 2 << logSize

	plan, err := algofft.NewPlan32(size)
	if err != nil {
		return nil, fmt.Errorf("hcfft: failed to create plan for size %d: %w", size, err)
	}

	return &FFT{
		logSize: logSize,
		size:    size,
		norm:    1.0 / float32(size),
		plan:    plan,
	}, nil
}

// LogSize returns the FFT's log2(size/2).
func (f *FFT) LogSize() int { return f.logSize }

// Size returns N = 2*2^logSize, the number of real samples this FFT
// transforms.
func (f *FFT) Size() int { return f.size }

// Norm returns 1/N, the normalization spec §6 requires be applied exactly
// once so a forward/inverse round trip is unity.
func (f *FFT) Norm() float32 { return f.norm }

// Forward computes the real→HC transform of src (length N, real-valued) into
// dst (length N, standard half-complex layout — not shuffled). src and dst
// may alias. work is caller-owned scratch of length N (see WorkSize): the
// FFT instance itself is shared across every Module of a given size (see
// Get), so per-call scratch cannot live on FFT without racing callers that
// run concurrently on different threads.
func (f *FFT) Forward(dst, src []float32, work []complex64) error {
	for i, v := range src {
		work[i] = complex(v, 0)
	}

	if err := f.plan.Forward(work, work); err != nil {
		return fmt.Errorf("hcfft: forward failed: %w", err)
	}

	packHCFromComplex(dst, work, f.size)
	return nil
}

// Inverse computes the HC→real inverse transform of src (length N, standard
// half-complex layout) into dst (length N, real-valued). The underlying
// algofft plan applies the 1/N normalization automatically, matching
// spec §6: "FFT scaling is 1/N applied once ... so the forward/backward pair
// is unity."
func (f *FFT) Inverse(dst, src []float32, work []complex64) error {
	unpackComplexFromHC(work, src, f.size)

	if err := f.plan.Inverse(work, work); err != nil {
		return fmt.Errorf("hcfft: inverse failed: %w", err)
	}

	for i := range dst {
		dst[i] = real(work[i])
	}
	return nil
}

// WorkSize returns the length of the complex64 scratch buffer Forward and
// Inverse require.
func (f *FFT) WorkSize() int { return f.size }

// packHCFromComplex converts a full complex spectrum (as produced by a
// generic complex FFT of a real-packed input) into the standard half-complex
// layout: DC at 0, Nyquist at N/2, Re(bin k) at k, Im(bin k) at N-k.
func packHCFromComplex(dst []float32, src []complex64, n int) {
	dst[0] = real(src[0])
	dst[n/2] = real(src[n/2])
	for k := 1; k < n/2; k++ {
		dst[k] = real(src[k])
		dst[n-k] = imag(src[k])
	}
}

// unpackComplexFromHC is the inverse of packHCFromComplex: it expands a
// half-complex array into the full (conjugate-symmetric) complex spectrum a
// generic complex inverse FFT expects.
func unpackComplexFromHC(dst []complex64, src []float32, n int) {
	dst[0] = complex(src[0], 0)
	dst[n/2] = complex(src[n/2], 0)
	for k := 1; k < n/2; k++ {
		re := src[k]
		im := src[n-k]
		dst[k] = complex(re, im)
		dst[n-k] = complex(re, -im)
	}
}

// cache is the process-wide, lazily-populated plan cache keyed by logSize,
// a single fixed-key map (logSize -> *FFT) rather than a priority list,
// since there is no CPU-feature selection at this layer.
var cache = struct {
	mu      sync.RWMutex
	plans   [MaxLogSize + 1]*FFT
	errs    [MaxLogSize + 1]error
	planned [MaxLogSize + 1]bool
}{}

// Get returns the shared FFT instance for logSize, creating and caching it on
// first use. Planning must happen before the first audio callback (spec
// §4.1); callers on the real-time path should call Get during construction
// (or Warm) and never on the hot path, since plan creation may allocate.
//
// The measure parameter is currently unused — algo-fft's NewPlan32 does not
// expose a distinct "measure" planning mode — but is kept in the signature
// to mirror the FFTW-style planning contract spec §4.1 describes
// (`FFT::get(logSize, measure)`), so callers can pass a future planning
// effort hint without an API break.
func Get(logSize int, measure bool) (*FFT, error) {
	_ = measure

	cache.mu.RLock()
	if cache.planned[clampLogSize(logSize)] {
		f, err := cache.plans[clampLogSize(logSize)], cache.errs[clampLogSize(logSize)]
		cache.mu.RUnlock()
		return f, err
	}
	cache.mu.RUnlock()

	cache.mu.Lock()
	defer cache.mu.Unlock()

	idx := clampLogSize(logSize)
	if cache.planned[idx] {
		return cache.plans[idx], cache.errs[idx]
	}

	f, err := New(logSize)
	cache.plans[idx] = f
	cache.errs[idx] = err
	cache.planned[idx] = true
	return f, err
}

// Warm pre-plans every FFT size in [0, maxLogSize], so that Get never
// allocates a new plan once the audio callback starts.
func Warm(maxLogSize int) error {
	if maxLogSize > MaxLogSize {
		maxLogSize = MaxLogSize
	}
	for i := 0; i <= maxLogSize; i++ {
		if _, err := Get(i, true); err != nil {
			return err
		}
	}
	return nil
}

func clampLogSize(logSize int) int {
	if logSize < 0 {
		return 0
	}
	if logSize > MaxLogSize {
		return MaxLogSize
	}
	return logSize
}
