package host

import (
	"fmt"
	"log/slog"

	"github.com/cwbudde/algo-convolve/engine"
)

// Adapter drives an engine.Lifecycle from the three command kinds a plugin
// host's asynchronous command pump issues (spec §6), resolving kernel
// buffer ids through a BufferProvider and reporting configuration errors
// through a *slog.Logger rather than failing the audio callback (spec §7:
// "detected at construction, reported to host via a log-style message,
// engine then clears its outputs each block until reconfigured").
type Adapter struct {
	lifecycle *engine.Lifecycle
	buffers   BufferProvider
	pool      *CommandPool
	logger    *slog.Logger
}

// Option configures an Adapter at construction time.
type Option func(*Adapter)

// WithLogger overrides the structured logger used for configuration-error
// reporting.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAdapter builds an Adapter over buffers, using the given logger (or
// slog.Default if nil) for configuration-error reporting.
func NewAdapter(buffers BufferProvider, logger *slog.Logger, opts ...Option) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Adapter{
		lifecycle: engine.NewLifecycle(logger),
		buffers:   buffers,
		pool:      NewCommandPool(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handle dispatches cmd to the lifecycle. It is the non-RT side of the
// four-stage command execution spec §6 describes; the RT thread only ever
// calls Process.
func (a *Adapter) Handle(cmd *Command) {
	defer cmd.Release()

	switch cmd.Kind {
	case CommandInit:
		a.handleInit(cmd.Init)
	case CommandSetKernel:
		a.handleSetKernel(cmd.KernelBufferID, cmd.KernelOffset, cmd.KernelSize)
	case CommandRelease:
		a.lifecycle.Release()
	}
}

func (a *Adapter) handleInit(req InitRequest) {
	err := a.lifecycle.Init(engine.InitParams{
		NumChannels:   req.NumChannels,
		NumFrames:     req.NumFrames,
		MinPartSize:   req.MinPartSize,
		MaxPartSize:   req.MaxPartSize,
		NumRTProcs:    req.NumRTProcs,
		ExternalDelay: req.ExternalDelay,
		Realtime:      req.Realtime,
	})
	if err != nil {
		a.logger.Error("host: Init failed, engine will emit zeros until reconfigured", "error", err)
	}
}

func (a *Adapter) handleSetKernel(bufferID, offset, size int) {
	data, channels, frames, err := a.buffers.Buffer(bufferID)
	if err != nil {
		a.logger.Error("host: SetKernel buffer lookup failed", "bufferId", bufferID, "error", err)
		return
	}

	if offset < 0 || offset > frames {
		a.logger.Error("host: SetKernel offset out of range", "bufferId", bufferID, "offset", offset, "frames", frames)
		return
	}
	end := offset + size
	if size <= 0 || end > frames {
		end = frames
	}

	sliced := make([][]float32, len(data))
	for c, ch := range data {
		if offset <= len(ch) && end <= len(ch) {
			sliced[c] = ch[offset:end]
		} else {
			sliced[c] = nil
		}
	}

	if err := a.lifecycle.SetKernel(sliced, channels); err != nil {
		a.logger.Error("host: SetKernel failed", "bufferId", bufferID, "error", err)
	}
}

// Process runs one audio-thread block through the installed engine, or
// emits zeros if it is not yet Ready. Safe to call at audio-callback
// cadence: it never blocks on the command pump, only reads the lifecycle's
// current state.
func (a *Adapter) Process(dst, src [][]float32, n int) {
	a.lifecycle.Process(dst, src, n)
}

// NewCommand is a convenience wrapper over the Adapter's CommandPool.
func (a *Adapter) NewCommand(kind CommandKind) *Command {
	cmd := a.pool.Get()
	cmd.Kind = kind
	return cmd
}

// State reports the lifecycle's current phase, useful for host diagnostics.
func (a *Adapter) State() engine.State { return a.lifecycle.State() }

// Validate is a convenience that checks Parameters and, if the
// KernelBufferID is already known, confirms the provider can resolve it.
func (a *Adapter) Validate(p Parameters) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.KernelBufferID != 0 {
		if _, _, _, err := a.buffers.Buffer(p.KernelBufferID); err != nil {
			return fmt.Errorf("host: kernel buffer %d: %w", p.KernelBufferID, err)
		}
	}
	return nil
}
