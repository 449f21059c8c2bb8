package engine

import (
	"testing"
	"time"

	"github.com/cwbudde/algo-convolve/audio"
)

// addOneHost is a WorkerHost that adds 1.0 to every sample, enough to
// observe that blocks actually flow end to end through the worker.
type addOneHost struct{}

func (addOneHost) ProcessWorker(dst, src [][]float32, numChannels, n int) {
	for c := 0; c < numChannels; c++ {
		for i := 0; i < n; i++ {
			dst[c][i] = src[c][i] + 1
		}
	}
}

func TestProcessRoundTripsThroughWorker(t *testing.T) {
	const channels, binSize = 1, 64
	p := NewProcess(addOneHost{}, channels, binSize, 4*binSize, nil)
	p.Start()
	defer p.Stop()

	src := audio.NewBuffer(channels, binSize).Channels()
	for i := range src[0] {
		src[0][i] = float32(i)
	}

	if !p.Write(src, channels, binSize) {
		t.Fatal("Write reported no space in an empty fresh FIFO")
	}

	dst := audio.NewBuffer(channels, binSize).Channels()
	deadline := time.Now().Add(time.Second)
	for !p.Read(dst, channels, binSize) {
		if time.Now().After(deadline) {
			t.Fatal("worker never produced output within the deadline")
		}
		time.Sleep(time.Millisecond)
	}

	for i := range dst[0] {
		want := src[0][i] + 1
		if dst[0][i] != want {
			t.Fatalf("sample %d: got %v, want %v", i, dst[0][i], want)
		}
	}
}

func TestProcessStopJoinsWorker(t *testing.T) {
	p := NewProcess(addOneHost{}, 1, 32, 128, nil)
	p.Start()

	done := make(chan struct{})
	go func() {
		p.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return promptly")
	}
}

func TestProcessReadFailsWithoutInput(t *testing.T) {
	p := NewProcess(addOneHost{}, 1, 32, 128, nil)
	p.Start()
	defer p.Stop()

	dst := audio.NewBuffer(1, 32).Channels()
	if p.Read(dst, 1, 32) {
		t.Fatal("Read succeeded with nothing ever written")
	}
}
