// Package audio holds the engine's fixed-size multichannel buffer
// (Buffer) and the single-producer/single-consumer ring buffer
// (RingBuffer) used to move audio blocks between the real-time thread and
// the background worker.
//
// Buffer is a reuse-friendly slice wrapper generalized from one channel to
// a fixed channel count fixed at construction, matching how the convolution
// engine allocates one array per channel up front and never resizes it on
// the hot path.
package audio

// Buffer is a fixed-size, per-channel float32 buffer. Once created its
// channel count and frame count never change; only the sample contents are
// written.
type Buffer struct {
	channels [][]float32
	frames   int
}

// NewBuffer allocates a Buffer with numChannels channels of numFrames
// samples each, zero-initialized.
func NewBuffer(numChannels, numFrames int) *Buffer {
	if numChannels < 0 {
		numChannels = 0
	}
	if numFrames < 0 {
		numFrames = 0
	}
	channels := make([][]float32, numChannels)
	for c := range channels {
		channels[c] = make([]float32, numFrames)
	}
	return &Buffer{channels: channels, frames: numFrames}
}

// NumChannels returns the channel count.
func (b *Buffer) NumChannels() int { return len(b.channels) }

// NumFrames returns the per-channel sample count.
func (b *Buffer) NumFrames() int { return b.frames }

// Channel returns the backing slice for channel c. The slice is owned by
// the Buffer; callers must not retain it beyond the Buffer's lifetime if
// the Buffer is pooled.
func (b *Buffer) Channel(c int) []float32 { return b.channels[c] }

// Channels returns the Buffer's per-channel slices directly, for passing to
// APIs that take [][]float32 (e.g. RingBuffer.Read/Write, WorkerHost).
// The returned slice is owned by the Buffer.
func (b *Buffer) Channels() [][]float32 { return b.channels }

// Zero clears every channel to 0.
func (b *Buffer) Zero() {
	for _, ch := range b.channels {
		for i := range ch {
			ch[i] = 0
		}
	}
}

// ZeroChannel clears channel c to 0.
func (b *Buffer) ZeroChannel(c int) {
	ch := b.channels[c]
	for i := range ch {
		ch[i] = 0
	}
}

// ZeroRange clears samples in [start,end) on every channel. Indices are
// clamped to valid bounds.
func (b *Buffer) ZeroRange(start, end int) {
	if start < 0 {
		start = 0
	}
	if end > b.frames {
		end = b.frames
	}
	for _, ch := range b.channels {
		for i := start; i < end; i++ {
			ch[i] = 0
		}
	}
}

// CopyFrom copies min(b.NumFrames(), src frame count) samples per channel
// from src, channel-for-channel up to min(channel counts). Channels beyond
// src's channel count are left untouched by the caller's choice (typically
// zeroed first via Zero).
func (b *Buffer) CopyFrom(src [][]float32, numFrames int) {
	n := numFrames
	if n > b.frames {
		n = b.frames
	}
	for c := 0; c < len(b.channels) && c < len(src); c++ {
		copy(b.channels[c][:n], src[c][:n])
	}
}
