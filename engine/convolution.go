// Package engine implements the convolution engine's composite scheduler
// (Convolution), its background worker (Process, in process.go), the
// worker wakeup primitive (Condition), and the asynchronous host command
// state machine that wraps them (lifecycle.go).
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/algo-convolve/audio"
	"github.com/cwbudde/algo-convolve/convolver"
	"github.com/cwbudde/algo-convolve/internal/kernel"
	"github.com/cwbudde/algo-convolve/partition"
)

// ErrInvalidBinPeriod is returned when the largest module's numBins-1 is
// not a power-of-two-minus-one, a precondition the RT-thread bin-index
// modulo arithmetic depends on.
var ErrInvalidBinPeriod = errors.New("engine: largest module's numBins-1 must be a power of two minus one")

// TraceFunc receives per-module timing: moduleIndex identifies the
// Convolver, elapsed is the wall time its push/compute/pull sequence took
// for one block. Supplied in place of the source's benchmark scaffolding
// (design note 9).
type TraceFunc func(moduleIndex int, elapsed time.Duration)

// defaultSpinRetries bounds the audio thread's wait for the worker FIFO before it
// falls back to zero-filling the worker's contribution for this call
// (design note 9: the source's unbounded spin is a bug risk, reproduced
// here as bounded and configurable).
const defaultSpinRetries = 64

// Convolution is the composite scheduler: it owns a Response, one
// Convolver per Module, and an optional background Process for the
// modules beyond numRTProcs.
type Convolution struct {
	numChannels int
	binSize     int // B

	response   *partition.Response
	convolvers []*convolver.Convolver
	numRTProcs int

	process *Process

	binPeriod  int // largest convolver's numBins - 1
	rtBinIndex int
	wkBinIndex int

	spinRetries int
	trace       TraceFunc
	logger      *slog.Logger

	starvationCount int
	workerOut       *audio.Buffer // scratch for mixing the worker's FIFO contribution into dst
}

// Option configures a Convolution at construction time.
type Option func(*Convolution)

// WithTrace installs a tracing hook called after every Convolver.Compute.
func WithTrace(fn TraceFunc) Option {
	return func(c *Convolution) { c.trace = fn }
}

// WithSpinRetries overrides the bounded FIFO spin-wait retry count.
func WithSpinRetries(n int) Option {
	return func(c *Convolution) {
		if n >= 0 {
			c.spinRetries = n
		}
	}
}

// WithLogger overrides the structured logger used for starvation and
// configuration diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Convolution) {
		if l != nil {
			c.logger = l
		}
	}
}

// New builds a Convolution from a Response. numRTProcs selects how many of
// the leading (smallest) modules run synchronously on the audio thread;
// the rest run on a spawned Process. In offline (non-realtime) rendering,
// pass numRTProcs = resp.NumModules() so every module runs on the caller's
// own thread and no worker is spawned. numRTProcs == 0 means every module
// is RT (spec §9's pinned semantics for the ambiguous source behaviour).
func New(resp *partition.Response, numChannels, binSize, numRTProcs, externalDelay int, opts ...Option) (*Convolution, error) {
	k := resp.NumModules()
	if numRTProcs <= 0 {
		numRTProcs = k
	}
	if numRTProcs > k {
		numRTProcs = k
	}

	convs := make([]*convolver.Convolver, k)
	for i, m := range resp.Modules {
		cv, err := convolver.New(numChannels, binSize, m, externalDelay)
		if err != nil {
			return nil, fmt.Errorf("engine: building convolver for module %d: %w", i, err)
		}
		convs[i] = cv
	}

	largestBins := 1
	for _, cv := range convs {
		if cv.NumBins() > largestBins {
			largestBins = cv.NumBins()
		}
	}
	binPeriod := largestBins - 1
	if binPeriod&(binPeriod+1) != 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBinPeriod, binPeriod)
	}

	c := &Convolution{
		numChannels: numChannels,
		binSize:     binSize,
		response:    resp,
		convolvers:  convs,
		numRTProcs:  numRTProcs,
		binPeriod:   binPeriod,
		spinRetries: defaultSpinRetries,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if numRTProcs < k {
		irOffset := resp.Modules[numRTProcs].Offset
		fifoCapacity := 4 * irOffset
		if fifoCapacity < binSize {
			fifoCapacity = 4 * binSize
		}
		c.process = NewProcess(c, numChannels, binSize, fifoCapacity, c.logger)
		c.workerOut = audio.NewBuffer(numChannels, binSize)
	}

	return c, nil
}

// Start launches the background worker, if one was spawned.
func (c *Convolution) Start() {
	if c.process != nil {
		c.process.Start()
	}
}

// Stop shuts down the background worker, if one was spawned.
func (c *Convolution) Stop() {
	if c.process != nil {
		c.process.Stop()
	}
}

// HasWorker reports whether this Convolution spawned a background Process.
func (c *Convolution) HasWorker() bool { return c.process != nil }

// SetKernel loads src into every Convolver's IR spectrum buffer. Spec
// requires this never run concurrently with Process; callers route it
// through the same command channel as construction (see lifecycle.go).
func (c *Convolution) SetKernel(src [][]float32, srcNumChannels int) error {
	for i, cv := range c.convolvers {
		if err := cv.SetKernel(src, srcNumChannels); err != nil {
			return fmt.Errorf("engine: loading kernel into convolver %d: %w", i, err)
		}
	}
	return nil
}

// Process runs one audio-thread block: hand the block to the worker (if
// any), run the RT convolvers, then collect the worker's delayed
// contribution.
func (c *Convolution) Process(dst, src [][]float32, n int) {
	if c.process != nil {
		if !c.spinUntil(func() bool { return c.process.Write(src, c.numChannels, n) }) {
			c.starvationCount++
			c.logger.Warn("engine: worker input FIFO starved, dropping this block's worker write")
		}
	}

	for i := 0; i < c.numRTProcs; i++ {
		cv := c.convolvers[i]
		start := time.Now()
		cv.PushInput(src, n)
		if err := cv.Compute(c.rtBinIndex); err != nil {
			c.logger.Error("engine: RT convolver compute failed", "module", i, "error", err)
		}
		cv.PullOutput(dst, n)
		if c.trace != nil {
			c.trace(i, time.Since(start))
		}
	}
	c.rtBinIndex = (c.rtBinIndex + 1) & c.binPeriod

	if c.process != nil {
		if c.spinUntil(func() bool { return c.process.Read(c.workerOut.Channels(), c.numChannels, n) }) {
			mixInto(dst, c.workerOut.Channels(), c.numChannels, n)
		} else {
			c.starvationCount++
			c.logger.Warn("engine: worker output FIFO starved, zero-filling worker contribution")
		}
	}
}

// mixInto adds src into dst, channel by channel, for n samples. Used to
// fold the worker's delayed contribution (read from its output FIFO) into
// the block the RT convolvers already wrote.
func mixInto(dst, src [][]float32, numChannels, n int) {
	for c := 0; c < numChannels && c < len(dst) && c < len(src); c++ {
		kernel.Mix(dst[c], src[c], n)
	}
}

// ProcessWorker implements WorkerHost: it runs the modules beyond
// numRTProcs, mirroring Process's structure with the worker's own bin
// counter.
func (c *Convolution) ProcessWorker(dst, src [][]float32, numChannels, n int) {
	for i := c.numRTProcs; i < len(c.convolvers); i++ {
		cv := c.convolvers[i]
		start := time.Now()
		cv.PushInput(src, n)
		if err := cv.Compute(c.wkBinIndex); err != nil {
			c.logger.Error("engine: worker convolver compute failed", "module", i, "error", err)
		}
		cv.PullOutput(dst, n)
		if c.trace != nil {
			c.trace(i, time.Since(start))
		}
	}
	c.wkBinIndex = (c.wkBinIndex + 1) & c.binPeriod
}

// spinUntil retries fn up to spinRetries times, returning true the first
// time it succeeds. This is the bounded replacement for the source's
// unbounded FIFO spin (design note 9): a caller that exhausts the retry
// budget falls back to treating the worker's contribution as silent for
// this call rather than risk a dropped audio deadline.
func (c *Convolution) spinUntil(fn func() bool) bool {
	for i := 0; i <= c.spinRetries; i++ {
		if fn() {
			return true
		}
	}
	return false
}

// StarvationCount returns the number of bounded spin-waits since
// construction that hit the retry limit. A single Process call can add two:
// one for the input FIFO write and one for the output FIFO read. Exposed so a
// host can surface it as a metric rather than only a log line.
func (c *Convolution) StarvationCount() int { return c.starvationCount }

// BinPeriod returns the shared modulo mask the RT and worker bin counters
// wrap against.
func (c *Convolution) BinPeriod() int { return c.binPeriod }

// NumModules returns the number of Convolvers (== Response.NumModules()).
func (c *Convolution) NumModules() int { return len(c.convolvers) }
