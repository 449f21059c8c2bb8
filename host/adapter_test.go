package host

import (
	"testing"

	"github.com/cwbudde/algo-convolve/engine"
)

func TestAdapterInitSetKernelProcess(t *testing.T) {
	buffers := NewMemoryBufferProvider()
	ir := [][]float32{make([]float32, 64)}
	ir[0][0] = 1
	buffers.Register(1, ir)

	a := NewAdapter(buffers, nil)

	initCmd := a.NewCommand(CommandInit)
	initCmd.Init = InitRequest{
		NumChannels: 1,
		NumFrames:   64,
		MinPartSize: 64,
		MaxPartSize: 64,
		Realtime:    true,
	}
	a.Handle(initCmd)

	if got := a.State(); got != engine.StateReady {
		t.Fatalf("State() = %v, want %v", got, engine.StateReady)
	}

	kernelCmd := a.NewCommand(CommandSetKernel)
	kernelCmd.KernelBufferID = 1
	kernelCmd.KernelSize = 64
	a.Handle(kernelCmd)

	x := [][]float32{make([]float32, 64)}
	x[0][0] = 1
	dst := [][]float32{make([]float32, 64)}
	a.Process(dst, x, 64)

	if dst[0][0] < 0.9999 || dst[0][0] > 1.0001 {
		t.Fatalf("dst[0] = %v, want ~1", dst[0][0])
	}

	releaseCmd := a.NewCommand(CommandRelease)
	a.Handle(releaseCmd)
	if got := a.State(); got != engine.StateDead {
		t.Fatalf("State() = %v, want %v", got, engine.StateDead)
	}
}

func TestAdapterSetKernelMissingBufferLogsAndContinues(t *testing.T) {
	buffers := NewMemoryBufferProvider()
	a := NewAdapter(buffers, nil)

	initCmd := a.NewCommand(CommandInit)
	initCmd.Init = InitRequest{NumChannels: 1, NumFrames: 64, MinPartSize: 64, MaxPartSize: 64, Realtime: true}
	a.Handle(initCmd)
	defer func() {
		a.Handle(a.NewCommand(CommandRelease))
	}()

	kernelCmd := a.NewCommand(CommandSetKernel)
	kernelCmd.KernelBufferID = 999
	a.Handle(kernelCmd) // must not panic

	dst := [][]float32{make([]float32, 64)}
	src := [][]float32{make([]float32, 64)}
	a.Process(dst, src, 64) // engine stays Ready with a zero IR, must not panic
}
