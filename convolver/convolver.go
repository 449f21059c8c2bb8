// Package convolver implements one uniformly-partitioned frequency-domain
// convolution stage: the per-Module worker that a Response splits an
// impulse response into. Its pipeline (push a block of input, transform,
// multiply-accumulate against stored IR partitions, inverse-transform with
// overlap-add, pull a block of output) follows a standard block-convolution
// shape, generalized from a "shift the whole ring on every latency boundary"
// scheme to the cursor-based ring buffers and explicit two-stage scheduling
// the engine's non-uniform scheduler requires.
package convolver

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-convolve/audio"
	"github.com/cwbudde/algo-convolve/hcfft"
	"github.com/cwbudde/algo-convolve/internal/kernel"
	"github.com/cwbudde/algo-convolve/partition"
)

// ErrInvalidParams is returned when the binSize does not evenly divide the
// module's partition size.
var ErrInvalidParams = errors.New("convolver: binSize must evenly divide module size")

// Convolver runs the forward-transform/MAC/inverse-transform pipeline for
// one partition size. A Convolution owns one Convolver per Module in its
// Response.
type Convolver struct {
	numChannels   int
	binSize       int // B
	partitionSize int // module.Size
	numBins       int // partitionSize / B
	count         int // module.Count
	fftSize       int // 2*partitionSize
	specSize      int // count*fftSize
	irOffset      int // module.Offset: this module's output delay, in samples
	externalDelay int // E

	fft *hcfft.FFT

	inputRing     *audio.Buffer // [c][4*partitionSize]
	inputWritePos int
	pushCount     int // pushInput calls since the last partition boundary

	specRing     *audio.Buffer // [c][specSize], flat ring of `count` fftSize blocks
	specWritePos int           // sample position of the most-recently-written block

	irSpectrum *audio.Buffer // [c][count*fftSize]
	macAccum   *audio.Buffer // [c][fftSize]
	overlap    *audio.Buffer // [c][partitionSize], carried from one period's IFFT tail

	outputRing     *audio.Buffer // [c][irOffset+partitionSize]
	outputWritePos int
	outputReadPos  int

	timeScratch    *audio.Buffer // [c][fftSize] reusable real scratch
	hcScratch      *audio.Buffer // [c][fftSize] reusable half-complex scratch
	complexScratch []complex64   // [fftSize] reusable FFT work buffer, reused across channels

	stage int // 0 or 1, alternates between the two per-period compute stages
}

func properMod(a, m int) int {
	if m <= 0 {
		return 0
	}
	r := a % m
	if r < 0 {
		r += m
	}
	return r
}

// New constructs a Convolver for the given Module. binSize is the engine's
// block size B (spec's P_min); it must evenly divide module.Size.
// externalDelay is the host's configured external delay compensation E.
func New(numChannels, binSize int, m partition.Module, externalDelay int) (*Convolver, error) {
	if binSize <= 0 || m.Size%binSize != 0 {
		return nil, fmt.Errorf("%w: binSize=%d moduleSize=%d", ErrInvalidParams, binSize, m.Size)
	}

	numBins := m.Size / binSize
	fftSize := m.Size * 2
	specSize := m.Count * fftSize
	outRingSize := m.Offset + m.Size

	cv := &Convolver{
		numChannels:   numChannels,
		binSize:       binSize,
		partitionSize: m.Size,
		numBins:       numBins,
		count:         m.Count,
		fftSize:       fftSize,
		specSize:      specSize,
		irOffset:      m.Offset,
		externalDelay: externalDelay,
		fft:           m.FFT,

		inputRing:      audio.NewBuffer(numChannels, 4*m.Size),
		specRing:       audio.NewBuffer(numChannels, specSize),
		irSpectrum:     audio.NewBuffer(numChannels, m.Count*fftSize),
		macAccum:       audio.NewBuffer(numChannels, fftSize),
		overlap:        audio.NewBuffer(numChannels, m.Size),
		outputRing:     audio.NewBuffer(numChannels, outRingSize),
		timeScratch:    audio.NewBuffer(numChannels, fftSize),
		hcScratch:      audio.NewBuffer(numChannels, fftSize),
		complexScratch: make([]complex64, m.FFT.WorkSize()),

		specWritePos: properMod(-fftSize, specSize),
	}

	if m.Offset > 0 {
		advance := properMod(m.Offset-(m.Size-externalDelay), outRingSize)
		cv.outputWritePos = advance
	}

	return cv, nil
}

// NumBins returns partitionSize/binSize, the number of PushInput/Compute
// calls per partition period.
func (cv *Convolver) NumBins() int { return cv.numBins }

// IROffset returns the module's offset/output-delay in samples.
func (cv *Convolver) IROffset() int { return cv.irOffset }

// PushInput copies n (<= binSize) samples per channel into the input ring,
// zero-padding short blocks, and advances the write cursor by binSize. When
// the cursor completes a full partition's worth of real samples it also
// writes the zero-stuffed second half of the FFT frame, per spec.
func (cv *Convolver) PushInput(src [][]float32, n int) {
	for c := 0; c < cv.numChannels; c++ {
		ring := cv.inputRing.Channel(c)
		pos := cv.inputWritePos
		for i := 0; i < cv.binSize; i++ {
			if c < len(src) && i < n {
				ring[pos+i] = src[c][i]
			} else {
				ring[pos+i] = 0
			}
		}
	}
	cv.inputWritePos = (cv.inputWritePos + cv.binSize) % cv.inputRing.NumFrames()
	cv.pushCount++

	if cv.pushCount == cv.numBins {
		for c := 0; c < cv.numChannels; c++ {
			ring := cv.inputRing.Channel(c)
			n := len(ring)
			pos := cv.inputWritePos
			for i := 0; i < cv.partitionSize; i++ {
				ring[(pos+i)%n] = 0
			}
		}
		cv.inputWritePos = (cv.inputWritePos + cv.partitionSize) % cv.inputRing.NumFrames()
		cv.pushCount = 0
	}
}

// frameStart returns the ring position of the last complete, partition-aligned
// FFT frame: the fftSize samples that end at the most recent partition
// boundary, skipping the pushCount blocks already written into the current
// period.
func (cv *Convolver) frameStart() int {
	return properMod(cv.inputWritePos-cv.pushCount*cv.binSize-cv.fftSize, cv.inputRing.NumFrames())
}

func (cv *Convolver) extractFrame(c int, dst []float32) {
	ring := cv.inputRing.Channel(c)
	n := len(ring)
	start := cv.frameStart()
	if start+cv.fftSize <= n {
		copy(dst, ring[start:start+cv.fftSize])
		return
	}
	k := n - start
	copy(dst[:k], ring[start:])
	copy(dst[k:], ring[:cv.fftSize-k])
}

// Compute runs the convolver's scheduled work for the given (already
// wrapped) global bin index. It is a no-op unless the scheduling predicate
// fires for this binIndex.
func (cv *Convolver) Compute(binIndex int) error {
	denom := cv.numBins / 2
	if denom < 1 {
		denom = 1
	}
	if properMod(binIndex-cv.numBins/4, denom) != 0 {
		return nil
	}

	if cv.numBins == 1 {
		if err := cv.computeInput(); err != nil {
			return err
		}
		return cv.computeOutput()
	}

	if cv.stage == 0 {
		cv.stage = 1
		return cv.computeInput()
	}
	cv.stage = 0
	return cv.computeOutput()
}

// computeInput is stage 0: forward-FFT the oldest 2*partitionSize input
// samples, shuffle-copy into the spectral history ring, clear the MAC
// accumulator, and run MACs for the first half of the IR partitions.
func (cv *Convolver) computeInput() error {
	cv.specWritePos = (cv.specWritePos + cv.fftSize) % cv.specSize

	for c := 0; c < cv.numChannels; c++ {
		timeScratch := cv.timeScratch.Channel(c)
		hcScratch := cv.hcScratch.Channel(c)

		cv.extractFrame(c, timeScratch)
		if err := cv.fft.Forward(hcScratch, timeScratch, cv.complexScratch); err != nil {
			return fmt.Errorf("convolver: forward FFT: %w", err)
		}
		block := cv.specRing.Channel(c)[cv.specWritePos : cv.specWritePos+cv.fftSize]
		hcfft.Shuffle(block, hcScratch, cv.fftSize)
	}
	cv.macAccum.Zero()

	cv.macRange(0, cv.count/2)
	return nil
}

// computeOutput is stage 1: run MACs for the remaining IR partitions,
// unshuffle and inverse-FFT the accumulator, and overlap-add into the
// output ring.
func (cv *Convolver) computeOutput() error {
	cv.macRange(cv.count/2, cv.count)

	for c := 0; c < cv.numChannels; c++ {
		hcScratch := cv.hcScratch.Channel(c)
		timeScratch := cv.timeScratch.Channel(c)
		overlap := cv.overlap.Channel(c)

		hcfft.Unshuffle(hcScratch, cv.macAccum.Channel(c), cv.fftSize)
		if err := cv.fft.Inverse(timeScratch, hcScratch, cv.complexScratch); err != nil {
			return fmt.Errorf("convolver: inverse FFT: %w", err)
		}

		out := cv.outputRing.Channel(c)
		n := len(out)
		pos := cv.outputWritePos
		for i := 0; i < cv.partitionSize; i++ {
			out[(pos+i)%n] = timeScratch[i] + overlap[i]
		}
		copy(overlap, timeScratch[cv.partitionSize:cv.fftSize])
	}
	cv.outputWritePos = (cv.outputWritePos + cv.partitionSize) % cv.outputRing.NumFrames()
	return nil
}

// macRange accumulates cmac_hc(macAccum, specRing[p periods ago], irSpectrum[p])
// for IR partitions p in [from, to).
func (cv *Convolver) macRange(from, to int) {
	for c := 0; c < cv.numChannels; c++ {
		specRing := cv.specRing.Channel(c)
		irSpectrum := cv.irSpectrum.Channel(c)
		macAccum := cv.macAccum.Channel(c)
		for p := from; p < to; p++ {
			off := properMod(cv.specWritePos-p*cv.fftSize, cv.specSize)
			a := specRing[off : off+cv.fftSize]
			b := irSpectrum[p*cv.fftSize : (p+1)*cv.fftSize]
			kernel.CMACHalfComplex(macAccum, a, b, cv.fftSize)
		}
	}
}

// PullOutput reads n samples per channel from the output ring into dst. If
// irOffset == 0 the convolver owns the whole output for this call and
// assigns; otherwise it mixes (adds) its delayed contribution into dst.
func (cv *Convolver) PullOutput(dst [][]float32, n int) {
	for c := 0; c < cv.numChannels && c < len(dst); c++ {
		ring := cv.outputRing.Channel(c)
		rn := len(ring)
		pos := cv.outputReadPos
		first := n
		if pos+first > rn {
			first = rn - pos
		}
		if cv.irOffset == 0 {
			copy(dst[c][:first], ring[pos:pos+first])
			if first < n {
				copy(dst[c][first:n], ring[:n-first])
			}
		} else {
			kernel.Mix(dst[c], ring[pos:pos+first], first)
			if first < n {
				kernel.Mix(dst[c][first:], ring[:n-first], n-first)
			}
		}
	}
	cv.outputReadPos = (cv.outputReadPos + n) % cv.outputRing.NumFrames()
}

// SetKernel loads this convolver's slice of the impulse response: for each
// channel, the samples starting at irOffset in src, split into `count`
// partitions each scaled by norm = 1/(2*partitionSize), zero-padded,
// forward-transformed and shuffle-copied into the IR spectrum buffer.
// Channels beyond srcNumChannels are left silent (zero IR).
func (cv *Convolver) SetKernel(src [][]float32, srcNumChannels int) error {
	norm := float32(1) / float32(2*cv.partitionSize)

	for c := 0; c < cv.numChannels; c++ {
		var channelData []float32
		if c < srcNumChannels && c < len(src) && cv.irOffset < len(src[c]) {
			channelData = src[c][cv.irOffset:]
		}

		scratch := cv.timeScratch.Channel(c)
		hcScratch := cv.hcScratch.Channel(c)
		for p := 0; p < cv.count; p++ {
			cv.timeScratch.ZeroChannel(c)

			if channelData != nil {
				start := p * cv.partitionSize
				if start < len(channelData) {
					end := start + cv.partitionSize
					if end > len(channelData) {
						end = len(channelData)
					}
					for i := start; i < end; i++ {
						scratch[i-start] = channelData[i] * norm
					}
				}
			}

			if err := cv.fft.Forward(hcScratch, scratch, cv.complexScratch); err != nil {
				return fmt.Errorf("convolver: IR forward FFT: %w", err)
			}
			dst := cv.irSpectrum.Channel(c)[p*cv.fftSize : (p+1)*cv.fftSize]
			hcfft.Shuffle(dst, hcScratch, cv.fftSize)
		}
	}
	return nil
}

// Reset clears all ring buffers and cursors, ready for a fresh stream.
func (cv *Convolver) Reset() {
	cv.inputRing.Zero()
	cv.specRing.Zero()
	cv.macAccum.Zero()
	cv.overlap.Zero()
	cv.outputRing.Zero()

	cv.inputWritePos = 0
	cv.pushCount = 0
	cv.specWritePos = properMod(-cv.fftSize, cv.specSize)
	cv.outputReadPos = 0
	cv.outputWritePos = 0
	if cv.irOffset > 0 {
		cv.outputWritePos = properMod(cv.irOffset-(cv.partitionSize-cv.externalDelay), cv.outputRing.NumFrames())
	}
	cv.stage = 0
}
