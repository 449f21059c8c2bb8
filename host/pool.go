package host

import (
	"sync"
	"sync/atomic"
)

// CommandKind identifies which of the three asynchronous commands an
// envelope carries (spec §6: Init, SetKernel, Release).
type CommandKind int

const (
	// CommandInit allocates Response/Convolution and spawns the worker.
	CommandInit CommandKind = iota
	// CommandSetKernel loads (or queues) a new impulse response.
	CommandSetKernel
	// CommandRelease tears the engine down.
	CommandRelease
)

// Command is one envelope travelling through the host's asynchronous
// command channel. Fields not relevant to Kind are zero.
type Command struct {
	Kind           CommandKind
	Init           InitRequest
	KernelBufferID int
	KernelOffset   int
	KernelSize     int

	refCount int32
	pool     *CommandPool
}

// InitRequest carries the subset of Parameters an Init command needs.
type InitRequest struct {
	NumChannels   int
	NumFrames     int
	MinPartSize   int
	MaxPartSize   int
	NumRTProcs    int
	ExternalDelay int
	Realtime      bool
}

// Acquire increments the envelope's reference count. The command pump holds
// one reference from Get until the command finishes every stage of its
// four-stage execution (spec §6); a consumer that hangs onto a Command
// past that point (e.g. to log it asynchronously) should Acquire its own
// reference first.
func (c *Command) Acquire() {
	atomic.AddInt32(&c.refCount, 1)
}

// Release drops a reference; when the count reaches zero the envelope
// returns to its pool, per the tiered-pool-with-atomic-refcount pattern
// this type is adapted from.
func (c *Command) Release() {
	if atomic.AddInt32(&c.refCount, -1) == 0 && c.pool != nil {
		c.pool.put(c)
	}
}

// CommandPool is a reusable source of Command envelopes, standing in for
// the host's realtime allocator for command envelopes. It is not bounded:
// the underlying sync.Pool creates a new envelope whenever it is empty and
// places no limit on how many are outstanding. Construction
// commands themselves run on a non-RT thread, so a sync.Pool (which may
// itself allocate on a pool miss, but never on a hit) is a faithful
// stand-in for the source's custom realtime allocator — adapted from
// birdnet-go's audiocore.bufferPoolImpl tiered-pool shape, collapsed to a
// single tier since command envelopes are fixed-size, unlike audio buffers.
type CommandPool struct {
	pool sync.Pool
}

// NewCommandPool returns a ready-to-use pool.
func NewCommandPool() *CommandPool {
	p := &CommandPool{}
	p.pool.New = func() any { return &Command{} }
	return p
}

// Get returns a Command with refCount 1, ready for the caller to fill in
// and hand to the command pump.
func (p *CommandPool) Get() *Command {
	c := p.pool.Get().(*Command)
	*c = Command{pool: p, refCount: 1}
	return c
}

func (p *CommandPool) put(c *Command) {
	p.pool.Put(c)
}
