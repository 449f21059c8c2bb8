package engine

import (
	"log/slog"
	"runtime"
	"sync/atomic"

	"github.com/cwbudde/algo-convolve/audio"
)

// WorkerHost is the one method a Convolution exposes to its background
// Process: run the worker-side convolvers over one block. Modelling the
// back-reference as an interface rather than a *Convolution pointer avoids
// the Process↔Convolution ownership cycle design note 9 flags.
type WorkerHost interface {
	ProcessWorker(dst, src [][]float32, numChannels, n int)
}

// Process owns the background worker thread: two SPSC FIFOs (in/out)
// backed by audio.RingBuffer in atomic-advance mode, a Condition for
// one-shot wakeups, and a shouldRun flag. Convolution drives it through
// Write/Read on the real-time thread.
type Process struct {
	host        WorkerHost
	numChannels int
	binSize     int

	in  *audio.RingBuffer
	out *audio.RingBuffer

	cond      *Condition
	shouldRun atomic.Bool

	startupDone chan struct{}
	done        chan struct{}

	logger *slog.Logger
}

// NewProcess constructs a Process whose FIFOs have the given per-channel
// capacity (spec: 4*irOffset of the first worker-side module). It does not
// start the worker thread; call Start.
func NewProcess(host WorkerHost, numChannels, binSize, fifoCapacity int, logger *slog.Logger) *Process {
	if logger == nil {
		logger = slog.Default()
	}
	return &Process{
		host:        host,
		numChannels: numChannels,
		binSize:     binSize,
		in:          audio.NewRingBuffer(numChannels, fifoCapacity, true),
		out:         audio.NewRingBuffer(numChannels, fifoCapacity, true),
		cond:        NewCondition(),
		startupDone: make(chan struct{}),
		done:        make(chan struct{}),
		logger:      logger,
	}
}

// Start spawns the worker goroutine and blocks until it has finished
// startup (raised its scheduling priority), per spec §4.7 step 1: "the RT
// thread is not allowed to call write/read until the worker has set itself
// up."
func (p *Process) Start() {
	p.shouldRun.Store(true)
	go p.run()
	<-p.startupDone
}

// Stop clears shouldRun, signals the condition, and waits for the worker
// goroutine to exit.
func (p *Process) Stop() {
	p.shouldRun.Store(false)
	p.cond.Signal()
	<-p.done
}

func (p *Process) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(p.done)

	if err := raiseWorkerPriority(); err != nil {
		p.logger.Warn("engine: worker priority raise failed, running at default priority", "error", err)
	}
	close(p.startupDone)

	srcBlock := audio.NewBuffer(p.numChannels, p.binSize)
	dstBlock := audio.NewBuffer(p.numChannels, p.binSize)

	for {
		p.cond.WaitWhile(func() bool {
			return p.shouldRun.Load() && (p.in.ReadSpace() < p.binSize || p.out.WriteSpace() < p.binSize)
		})
		if !p.shouldRun.Load() {
			return
		}

		for p.in.ReadSpace() >= p.binSize && p.out.WriteSpace() >= p.binSize {
			if !p.in.Read(srcBlock.Channels(), p.numChannels, p.binSize) {
				break
			}
			dstBlock.Zero()
			p.host.ProcessWorker(dstBlock.Channels(), srcBlock.Channels(), p.numChannels, p.binSize)
			if !p.out.Write(dstBlock.Channels(), p.numChannels, p.binSize) {
				break
			}
		}
	}
}

// Write pushes one block into the worker's input FIFO and wakes the
// worker. It returns false if the FIFO does not have n samples of free
// space (the starvation case the caller spins on).
func (p *Process) Write(src [][]float32, numChannels, n int) bool {
	ok := p.in.Write(src, numChannels, n)
	if ok {
		p.cond.Signal()
	}
	return ok
}

// Read pulls one block from the worker's output FIFO. It returns false if
// fewer than n samples are available yet.
func (p *Process) Read(dst [][]float32, numChannels, n int) bool {
	return p.out.Read(dst, numChannels, n)
}
