package kernel

import "testing"

func TestQueueManagerAdvancesOnceCurrentExhausted(t *testing.T) {
	k1 := &Kernel{ID: 1}
	k2 := &Kernel{ID: 2}
	m := NewQueueManager([]*Kernel{k1, k2})

	got, ok := m.SelectKernel()
	if !ok || got.ID != 1 {
		t.Fatalf("expected kernel 1 selected first, got %+v", got)
	}

	k1.IncrementRunningBlocks()
	got, _ = m.SelectKernel()
	if got.ID != 1 {
		t.Fatalf("expected kernel 1 to remain selected while it still has running blocks")
	}

	k1.DecrementRunningBlocks()
	k1.SetNoMoreBlocksToRun()
	got, ok = m.SelectKernel()
	if !ok || got.ID != 2 {
		t.Fatalf("expected kernel 2 selected once kernel 1 is exhausted, got %+v", got)
	}
}

func TestQueueManagerEmptyReturnsFalse(t *testing.T) {
	m := NewQueueManager(nil)
	if _, ok := m.SelectKernel(); ok {
		t.Fatalf("expected no kernel available from an empty queue")
	}
}

func TestKernelRunningReflectsBlockCount(t *testing.T) {
	k := &Kernel{}
	if k.Running() {
		t.Fatalf("expected a fresh kernel to report not running")
	}
	k.IncrementRunningBlocks()
	if !k.Running() {
		t.Fatalf("expected kernel running after incrementing a block")
	}
	k.DecrementRunningBlocks()
	if k.Running() {
		t.Fatalf("expected kernel not running after decrementing its only block")
	}
}
