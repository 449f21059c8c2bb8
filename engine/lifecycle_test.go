package engine

import "testing"

func TestLifecycleStartsUninitialised(t *testing.T) {
	l := NewLifecycle(nil)
	if got := l.State(); got != StateUninitialised {
		t.Fatalf("State() = %v, want %v", got, StateUninitialised)
	}
}

func TestLifecycleProcessEmitsZerosBeforeInit(t *testing.T) {
	l := NewLifecycle(nil)
	dst := [][]float32{{1, 2, 3, 4}}
	src := [][]float32{{5, 6, 7, 8}}

	l.Process(dst, src, 4)

	for i, v := range dst[0] {
		if v != 0 {
			t.Fatalf("dst[%d] = %v, want 0 before Init", i, v)
		}
	}
}

func TestLifecycleInitReachesReady(t *testing.T) {
	l := NewLifecycle(nil)
	err := l.Init(InitParams{
		NumChannels: 1,
		NumFrames:   64,
		MinPartSize: 64,
		MaxPartSize: 64,
		Realtime:    true,
	})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if got := l.State(); got != StateReady {
		t.Fatalf("State() = %v, want %v", got, StateReady)
	}
	l.Release()
}

func TestLifecycleDoubleInitRejected(t *testing.T) {
	l := NewLifecycle(nil)
	params := InitParams{NumChannels: 1, NumFrames: 64, MinPartSize: 64, MaxPartSize: 64, Realtime: true}
	if err := l.Init(params); err != nil {
		t.Fatalf("first Init: %v", err)
	}
	defer l.Release()

	if err := l.Init(params); err == nil {
		t.Fatal("expected the second Init to be rejected")
	}
}

func TestLifecycleQueuesKernelBeforeInit(t *testing.T) {
	l := NewLifecycle(nil)

	h := [][]float32{make([]float32, 64)}
	h[0][0] = 1
	if err := l.SetKernel(h, 1); err != nil {
		t.Fatalf("SetKernel before Init: %v", err)
	}

	if err := l.Init(InitParams{NumChannels: 1, NumFrames: 64, MinPartSize: 64, MaxPartSize: 64, Realtime: true}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer l.Release()

	x := [][]float32{make([]float32, 64)}
	x[0][0] = 1
	dst := [][]float32{make([]float32, 64)}

	l.Process(dst, x, 64)

	if !approxEqual(dst[0][0], 1, 1e-4) {
		t.Fatalf("dst[0] = %v, want ~1 (queued impulse kernel applied at Init)", dst[0][0])
	}
}

func TestLifecycleReleaseReachesDead(t *testing.T) {
	l := NewLifecycle(nil)
	if err := l.Init(InitParams{NumChannels: 1, NumFrames: 64, MinPartSize: 64, MaxPartSize: 64, Realtime: true}); err != nil {
		t.Fatalf("Init: %v", err)
	}

	l.Release()

	if got := l.State(); got != StateDead {
		t.Fatalf("State() = %v, want %v", got, StateDead)
	}

	dst := [][]float32{{1}}
	src := [][]float32{{1}}
	l.Process(dst, src, 1)
	if dst[0][0] != 0 {
		t.Fatal("Process after Release must emit zeros")
	}
}

func TestLifecycleSetKernelDroppedAfterDead(t *testing.T) {
	l := NewLifecycle(nil)
	l.Release()
	if got := l.State(); got != StateDead {
		t.Fatalf("State() = %v, want %v", got, StateDead)
	}
	if err := l.SetKernel([][]float32{{1}}, 1); err != nil {
		t.Fatalf("SetKernel on a dead lifecycle should be a silent no-op, got error: %v", err)
	}
}
