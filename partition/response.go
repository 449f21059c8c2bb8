// Package partition computes the non-uniform partitioning of an impulse
// response into Modules of increasing power-of-two size, the scheme that
// lets the convolution engine keep its earliest output samples low-latency
// while a long IR stays tractable.
//
// The partitioning algorithm's growth pattern (exponentially increasing
// block sizes capped by a maximum order) and its helpers (isPowerOf2,
// truncLog2) follow a standard non-uniform block scheme.
package partition

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-convolve/hcfft"
)

// ErrInvalidSizes is returned when minPartSize/maxPartSize are not powers of
// two, minPartSize > maxPartSize, or maxPartSize exceeds the FFT size cap.
var ErrInvalidSizes = errors.New("partition: minPartSize/maxPartSize invalid")

// Module is one partition of a Response: a contiguous run of `count`
// same-sized blocks sharing one FFT plan.
type Module struct {
	Offset int       // start offset into the IR, in samples
	Size   int       // partition size for this module
	Count  int       // number of partitions of this size
	FFT    *hcfft.FFT // shared forward/inverse transform for Size*2
}

// Response is the derived sequence of Modules covering an impulse response
// of NumFrames samples across NumChannels channels.
type Response struct {
	NumChannels int
	NumFrames   int
	MinPartSize int
	MaxPartSize int
	Modules     []Module
}

// isPowerOf2 reports whether n is a power of two.
func isPowerOf2(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// truncLog2 returns floor(log2(n)) for n >= 1.
func truncLog2(n int) int {
	if n <= 0 {
		return 0
	}
	result := 0
	for n > 1 {
		n >>= 1
		result++
	}
	return result
}

// ceilLog2 returns ceil(log2(n)) for n >= 1.
func ceilLog2(n int) int {
	l := truncLog2(n)
	if 1<<l < n {
		l++
	}
	return l
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// NewResponse computes the Module sequence for an IR of numFrames samples
// across numChannels channels, using the algorithm in the engine's design:
//
//	partSize = minPartSize; rest = numFrames; offset = 0; i = 0
//	while rest > 0:
//	    maxCount = unbounded if partSize >= maxPartSize, else 4 (i==0) else 2
//	    count    = min(maxCount, ceil(rest/partSize))
//	    emit Module(offset, partSize, count, FFT::get(ceil(log2(partSize))))
//	    offset  += partSize*count; rest -= min(rest, partSize*count)
//	    partSize *= 2; i++
func NewResponse(numChannels, numFrames, minPartSize, maxPartSize int) (*Response, error) {
	if !isPowerOf2(minPartSize) || !isPowerOf2(maxPartSize) || minPartSize > maxPartSize {
		return nil, fmt.Errorf("%w: minPartSize=%d maxPartSize=%d", ErrInvalidSizes, minPartSize, maxPartSize)
	}
	if maxPartSize > 1<<hcfft.MaxLogSize {
		return nil, fmt.Errorf("%w: maxPartSize=%d exceeds 2^%d", ErrInvalidSizes, maxPartSize, hcfft.MaxLogSize)
	}

	var modules []Module
	partSize := minPartSize
	rest := numFrames
	offset := 0
	i := 0

	for rest > 0 {
		var maxCount int
		switch {
		case partSize >= maxPartSize:
			maxCount = 0 // unbounded, sentinel handled below
		case i == 0:
			maxCount = 4
		default:
			maxCount = 2
		}

		need := ceilDiv(rest, partSize)
		count := need
		if maxCount > 0 && count > maxCount {
			count = maxCount
		}
		if count < 1 {
			count = 1
		}

		fft, err := hcfft.Get(ceilLog2(partSize), true)
		if err != nil {
			return nil, fmt.Errorf("partition: failed to plan FFT for size %d: %w", partSize, err)
		}

		modules = append(modules, Module{
			Offset: offset,
			Size:   partSize,
			Count:  count,
			FFT:    fft,
		})

		consumed := partSize * count
		offset += consumed
		if consumed > rest {
			rest = 0
		} else {
			rest -= consumed
		}
		partSize *= 2
		i++
	}

	return &Response{
		NumChannels: numChannels,
		NumFrames:   numFrames,
		MinPartSize: minPartSize,
		MaxPartSize: maxPartSize,
		Modules:     modules,
	}, nil
}

// TotalSize returns Σ module.Size*module.Count, the IR length the
// partitioning actually covers (>= NumFrames; the tail is zero-padded).
func (r *Response) TotalSize() int {
	total := 0
	for _, m := range r.Modules {
		total += m.Size * m.Count
	}
	return total
}

// NumModules returns the number of Modules.
func (r *Response) NumModules() int { return len(r.Modules) }
