package engine

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/cwbudde/algo-convolve/partition"
)

// State is the asynchronous command state machine's current phase:
// Uninitialised → pending init → Ready → pending release → Dead.
type State int

const (
	// StateUninitialised is the initial state: process emits zeros, and a
	// setKernel call is queued rather than applied.
	StateUninitialised State = iota
	// StatePendingInit means Init has been accepted and is running on the
	// non-RT stage; process still emits zeros until the RT stage installs
	// the constructed Convolution.
	StatePendingInit
	// StateReady means a Convolution is installed and process runs it.
	StateReady
	// StatePendingRelease means Release has been accepted and the
	// Convolution reference has already been dropped; process emits zeros
	// while the worker is being stopped.
	StatePendingRelease
	// StateDead is terminal: the Lifecycle no longer accepts commands.
	StateDead
)

func (s State) String() string {
	switch s {
	case StateUninitialised:
		return "uninitialised"
	case StatePendingInit:
		return "pending-init"
	case StateReady:
		return "ready"
	case StatePendingRelease:
		return "pending-release"
	case StateDead:
		return "dead"
	default:
		return "unknown"
	}
}

// InitParams carries what Init needs to build a Response and a Convolution.
type InitParams struct {
	NumChannels   int
	NumFrames     int
	MinPartSize   int
	MaxPartSize   int
	NumRTProcs    int
	ExternalDelay int
	Realtime      bool
	Options       []Option
}

// pendingKernel is a setKernel call queued while Uninitialised, per spec §9
// ("setKernel in Uninitialised queues one pending IR"). Only the most recent
// call is kept; an older pending kernel is replaced, never stacked.
type pendingKernel struct {
	src           [][]float32
	srcNumChannel int
}

// Lifecycle wraps a Convolution with the host's asynchronous command state
// machine (spec §9, §6): Init/SetKernel/Release arrive on a non-RT thread
// (the host's command pump) and the RT thread only ever calls Process,
// which must never block on the state transition. The RT-visible pointer is
// swapped under a mutex rather than the four-stage hand-off the source
// describes, since Go gives us a cheap, correct substitute (spec's
// "RT stage installs the pointer" collapses to one guarded read in
// Process: there is no separate non-RT/RT/non-RT/cleanup pump to model
// faithfully without inventing a host we do not have).
type Lifecycle struct {
	mu      sync.Mutex
	state   State
	conv    *Convolution
	pending *pendingKernel
	logger  *slog.Logger
}

// NewLifecycle returns a Lifecycle in StateUninitialised.
func NewLifecycle(logger *slog.Logger) *Lifecycle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lifecycle{state: StateUninitialised, logger: logger}
}

// State returns the current lifecycle phase.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Init builds a Response and Convolution from p and installs it, moving
// Uninitialised → PendingInit → Ready. Any kernel queued while Uninitialised
// is applied immediately after construction, before the engine is marked
// Ready. Init on a non-Uninitialised Lifecycle is rejected: the host must
// Release first.
func (l *Lifecycle) Init(p InitParams) error {
	l.mu.Lock()
	if l.state != StateUninitialised {
		state := l.state
		l.mu.Unlock()
		return fmt.Errorf("engine: Init called in state %s, expected %s", state, StateUninitialised)
	}
	l.state = StatePendingInit
	pending := l.pending
	l.pending = nil
	l.mu.Unlock()

	resp, err := partition.NewResponse(p.NumChannels, p.NumFrames, p.MinPartSize, p.MaxPartSize)
	if err != nil {
		l.mu.Lock()
		l.state = StateUninitialised
		l.mu.Unlock()
		return fmt.Errorf("engine: Init building response: %w", err)
	}

	numRTProcs := p.NumRTProcs
	if p.Realtime {
		if numRTProcs <= 0 {
			numRTProcs = resp.NumModules()
		}
	} else {
		numRTProcs = resp.NumModules()
	}

	conv, err := New(resp, p.NumChannels, p.MinPartSize, numRTProcs, p.ExternalDelay, p.Options...)
	if err != nil {
		l.mu.Lock()
		l.state = StateUninitialised
		l.mu.Unlock()
		return fmt.Errorf("engine: Init building convolution: %w", err)
	}

	if pending != nil {
		if err := conv.SetKernel(pending.src, pending.srcNumChannel); err != nil {
			l.logger.Warn("engine: applying kernel queued before Init failed", "error", err)
		}
	}

	conv.Start()

	l.mu.Lock()
	l.conv = conv
	l.state = StateReady
	l.mu.Unlock()
	return nil
}

// SetKernel loads src into the installed Convolution. If the Lifecycle is
// still Uninitialised the call is queued (replacing any earlier pending
// kernel) and applied by the next Init. In every other state but Ready the
// call is silently dropped, matching §7's "kernel swap on an uninitialised
// engine is deferred ... if the engine is never initialised the swap is
// silently dropped" (extended here to PendingRelease/Dead, where there is no
// safe place left to apply it).
func (l *Lifecycle) SetKernel(src [][]float32, srcNumChannels int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateUninitialised:
		l.pending = &pendingKernel{src: src, srcNumChannel: srcNumChannels}
		return nil
	case StateReady:
		return l.conv.SetKernel(src, srcNumChannels)
	default:
		l.logger.Warn("engine: SetKernel dropped, engine not ready", "state", l.state.String())
		return nil
	}
}

// Process runs one audio-thread block. Outside StateReady it zero-fills dst
// rather than running anything, per §9 ("process in Uninitialised emits
// zeros") — extended to PendingInit/PendingRelease/Dead for the same reason.
func (l *Lifecycle) Process(dst, src [][]float32, n int) {
	l.mu.Lock()
	state := l.state
	conv := l.conv
	l.mu.Unlock()

	if state != StateReady || conv == nil {
		zeroBlock(dst, n)
		return
	}
	conv.Process(dst, src, n)
}

// Release moves Ready → PendingRelease → Dead, stopping the worker and
// dropping the Convolution reference. Release on any other state is a no-op
// that advances straight to Dead, since there is nothing to tear down.
func (l *Lifecycle) Release() {
	l.mu.Lock()
	conv := l.conv
	l.conv = nil
	l.state = StatePendingRelease
	l.mu.Unlock()

	if conv != nil {
		conv.Stop()
	}

	l.mu.Lock()
	l.state = StateDead
	l.mu.Unlock()
}

func zeroBlock(dst [][]float32, n int) {
	for _, ch := range dst {
		end := n
		if end > len(ch) {
			end = len(ch)
		}
		for i := 0; i < end; i++ {
			ch[i] = 0
		}
	}
}
