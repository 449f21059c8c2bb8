// Package host implements the engine's collaborator contracts: the
// per-instance parameters a plugin host reads on construction, the
// sound-buffer accessor used to resolve a kernel buffer id into samples, a
// command-envelope pool standing in for the host's realtime
// allocator, and the adapter that wires all three to an engine.Lifecycle.
//
// None of this is part of the convolution core (spec §1 states the host
// glue is out of scope, its contracts only); it exists so the engine has a
// runnable collaborator to be driven by in tests and in cmd/convolve-bench.
package host

import (
	"errors"
	"fmt"
)

// ErrInvalidParams is returned by Parameters.Validate.
var ErrInvalidParams = errors.New("host: invalid parameters")

// Parameters is the set of per-instance values a plugin host reads on
// construction, per spec §6: "kernelBufferId, kernelMaxSize, kernelTrigger,
// kernelOffset, kernelSize, minPartSize, maxPartSize, numRTProcs. All
// numeric."
type Parameters struct {
	KernelBufferID int
	KernelMaxSize  int
	KernelTrigger  int
	KernelOffset   int
	KernelSize     int
	MinPartSize    int
	MaxPartSize    int
	NumRTProcs     int
}

// Validate checks the numeric constraints the engine's construction path
// depends on. It does not check KernelBufferID/KernelTrigger, which are
// meaningful only once resolved against a BufferProvider.
func (p Parameters) Validate() error {
	if p.MinPartSize <= 0 || p.MinPartSize&(p.MinPartSize-1) != 0 {
		return fmt.Errorf("%w: minPartSize %d is not a positive power of two", ErrInvalidParams, p.MinPartSize)
	}
	if p.MaxPartSize <= 0 || p.MaxPartSize&(p.MaxPartSize-1) != 0 {
		return fmt.Errorf("%w: maxPartSize %d is not a positive power of two", ErrInvalidParams, p.MaxPartSize)
	}
	if p.MinPartSize > p.MaxPartSize {
		return fmt.Errorf("%w: minPartSize %d exceeds maxPartSize %d", ErrInvalidParams, p.MinPartSize, p.MaxPartSize)
	}
	if p.KernelSize < 0 || p.KernelOffset < 0 {
		return fmt.Errorf("%w: kernelOffset/kernelSize must be non-negative", ErrInvalidParams)
	}
	if p.KernelMaxSize > 0 && p.KernelSize > p.KernelMaxSize {
		return fmt.Errorf("%w: kernelSize %d exceeds kernelMaxSize %d", ErrInvalidParams, p.KernelSize, p.KernelMaxSize)
	}
	return nil
}
