package audio

import "sync/atomic"

// RingBuffer is a per-channel circular buffer with continuous read/write
// vectors: ReadSpace/WriteSpace report the contiguous run available to the
// end of the backing array, not total occupancy, so callers can hand a flat
// slice to a copy() without wrap-around logic — the cost is that consuming
// a wrapped region takes two advances instead of one.
//
// One slot is always kept empty as the full/empty discriminator, the
// classic single-producer/single-consumer ring buffer convention.
//
// When Atomic is true, AdvanceRead and AdvanceWrite publish the new cursor
// with a release store (atomic.Store) so a concurrent reader/writer on
// another goroutine observes it promptly; ReadSpace/WriteSpace load the
// opposite cursor with an acquire load. This is the mode the engine uses
// for the RT-thread/worker-thread FIFOs (spec's audio-worker SPSC channel);
// single-threaded callers can leave Atomic false for a plain-store fast
// path.
type RingBuffer struct {
	channels [][]float32
	size     int
	atomic   bool

	readPos  atomic.Int64
	writePos atomic.Int64

	// readPosPlain/writePosPlain back the non-atomic fast path used when
	// the buffer is single-threaded and the atomic.Int64 overhead is
	// unwarranted.
	readPosPlain  int
	writePosPlain int
}

// NewRingBuffer allocates a RingBuffer with numChannels channels, each of
// capacity size samples (one slot of which is never used for data). When
// atomicAdvance is true, cursor advances use atomic release stores so the
// buffer is safe for single-producer/single-consumer use across goroutines.
func NewRingBuffer(numChannels, size int, atomicAdvance bool) *RingBuffer {
	if size < 1 {
		size = 1
	}
	channels := make([][]float32, numChannels)
	for c := range channels {
		channels[c] = make([]float32, size)
	}
	return &RingBuffer{channels: channels, size: size, atomic: atomicAdvance}
}

// NumChannels returns the channel count.
func (r *RingBuffer) NumChannels() int { return len(r.channels) }

// Size returns the per-channel backing array capacity (including the one
// slot that is never filled).
func (r *RingBuffer) Size() int { return r.size }

func (r *RingBuffer) loadRead() int {
	if r.atomic {
		return int(r.readPos.Load())
	}
	return r.readPosPlain
}

func (r *RingBuffer) loadWrite() int {
	if r.atomic {
		return int(r.writePos.Load())
	}
	return r.writePosPlain
}

// occupied returns the number of filled slots (not the continuous run).
func (r *RingBuffer) occupied() int {
	rp, wp := r.loadRead(), r.loadWrite()
	o := wp - rp
	if o < 0 {
		o += r.size
	}
	return o
}

// ReadSpace returns the contiguous number of samples available to read
// before the backing array wraps.
func (r *RingBuffer) ReadSpace() int {
	rp := r.loadRead()
	o := r.occupied()
	span := r.size - rp
	if span > o {
		span = o
	}
	return span
}

// WriteSpace returns the contiguous number of free samples available to
// write before the backing array wraps.
func (r *RingBuffer) WriteSpace() int {
	wp := r.loadWrite()
	free := r.size - r.occupied() - 1
	if free < 0 {
		free = 0
	}
	span := r.size - wp
	if span > free {
		span = free
	}
	return span
}

// ReadVector returns a slice positioned at the current read cursor on
// channel c, of length ReadSpace(). The caller must not read past the
// returned slice without calling AdvanceRead first.
func (r *RingBuffer) ReadVector(c int) []float32 {
	rp := r.loadRead()
	n := r.ReadSpace()
	return r.channels[c][rp : rp+n]
}

// WriteVector returns a slice positioned at the current write cursor on
// channel c, of length WriteSpace().
func (r *RingBuffer) WriteVector(c int) []float32 {
	wp := r.loadWrite()
	n := r.WriteSpace()
	return r.channels[c][wp : wp+n]
}

// AdvanceRead moves the read cursor forward by n samples, modulo Size().
// Consuming a wrapped region requires calling AdvanceRead twice (once for
// the tail run, once for the wrapped head), since ReadVector only ever
// returns a contiguous run.
func (r *RingBuffer) AdvanceRead(n int) {
	rp := (r.loadRead() + n) % r.size
	if r.atomic {
		r.readPos.Store(int64(rp))
	} else {
		r.readPosPlain = rp
	}
}

// AdvanceWrite moves the write cursor forward by n samples, modulo Size().
func (r *RingBuffer) AdvanceWrite(n int) {
	wp := (r.loadWrite() + n) % r.size
	if r.atomic {
		r.writePos.Store(int64(wp))
	} else {
		r.writePosPlain = wp
	}
}

// Reset returns both cursors to 0. Not safe to call concurrently with a
// reader or writer; callers use it only before handing the buffer to
// another goroutine.
func (r *RingBuffer) Reset() {
	if r.atomic {
		r.readPos.Store(0)
		r.writePos.Store(0)
	} else {
		r.readPosPlain = 0
		r.writePosPlain = 0
	}
}

// Write copies n samples per channel from src into the ring, issuing a
// second contiguous write if the first run wraps the backing array. It
// returns false without writing anything if fewer than n samples of space
// are available (the FIFO-starvation case the caller must handle, e.g. by
// the bounded spin-wait described in the engine package).
func (r *RingBuffer) Write(src [][]float32, numChannels, n int) bool {
	if r.totalWriteSpace() < n {
		return false
	}
	remaining := n
	srcOff := 0
	for remaining > 0 {
		span := r.WriteSpace()
		if span > remaining {
			span = remaining
		}
		for c := 0; c < numChannels && c < len(r.channels); c++ {
			copy(r.WriteVector(c)[:span], src[c][srcOff:srcOff+span])
		}
		r.AdvanceWrite(span)
		srcOff += span
		remaining -= span
	}
	return true
}

// Read copies n samples per channel from the ring into dst, issuing a
// second contiguous read if the first run wraps the backing array. It
// returns false without consuming anything if fewer than n samples are
// available.
func (r *RingBuffer) Read(dst [][]float32, numChannels, n int) bool {
	if r.totalReadSpace() < n {
		return false
	}
	remaining := n
	dstOff := 0
	for remaining > 0 {
		span := r.ReadSpace()
		if span > remaining {
			span = remaining
		}
		for c := 0; c < numChannels && c < len(r.channels); c++ {
			copy(dst[c][dstOff:dstOff+span], r.ReadVector(c)[:span])
		}
		r.AdvanceRead(span)
		dstOff += span
		remaining -= span
	}
	return true
}

func (r *RingBuffer) totalReadSpace() int { return r.occupied() }

func (r *RingBuffer) totalWriteSpace() int {
	d := r.size - r.occupied() - 1
	if d < 0 {
		return 0
	}
	return d
}
