package dram

import (
	"testing"

	"github.com/sarchlab/gpucore/mem"
)

func TestCycleReleasesFetchAfterFixedLatency(t *testing.T) {
	m := NewModel(10, 4)
	f := mem.NewFetch(mem.Access{}, mem.ReadRequest, 0, 0, 0)
	m.Accept(f, 100)

	if got := m.Cycle(105); len(got) != 0 {
		t.Fatalf("expected nothing ready before latency elapses, got %v", got)
	}
	got := m.Cycle(110)
	if len(got) != 1 || got[0] != f {
		t.Fatalf("expected the fetch ready at exactly time+latency, got %v", got)
	}
	if m.Len() != 0 {
		t.Fatalf("expected the model empty after draining")
	}
}

func TestBankAccessCounterIncrementsPerAccept(t *testing.T) {
	m := NewModel(1, 2)
	f := mem.NewFetch(mem.Access{}, mem.ReadRequest, 0, 0, 0)
	f.Physical.Bank = 1
	m.Accept(f, 0)
	m.Accept(f, 0)

	if got := m.BankAccessCount(1); got != 2 {
		t.Fatalf("expected bank 1 access count 2, got %d", got)
	}
	if got := m.BankAccessCount(0); got != 0 {
		t.Fatalf("expected bank 0 untouched, got %d", got)
	}
}
